package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/Kumule/internal/hermes"
	"github.com/MikeSquared-Agency/Kumule/internal/importer"
	"github.com/MikeSquared-Agency/Kumule/internal/scoring"
	"github.com/MikeSquared-Agency/Kumule/internal/store"
)

// Options wires the router to its collaborators. Hermes may be nil.
type Options struct {
	Store       store.Store
	Hermes      hermes.Client
	Engine      *scoring.Engine
	Importer    *importer.Importer
	Scenarios   []string
	DefaultUser string
	// CalcYear is the default project reference year; 0 means the current year.
	CalcYear       int
	MaxUploadBytes int64
	RateLimit      int
	Logger         *slog.Logger
	Now            func() time.Time
}

// env is the state shared by every handler.
type env struct {
	store       store.Store
	hermes      hermes.Client
	engine      *scoring.Engine
	importer    *importer.Importer
	scenarios   []string
	defaultUser string
	calcYear    int
	maxUpload   int64
	logger      *slog.Logger
	now         func() time.Time
}

func newEnv(o Options) *env {
	e := &env{
		store:       o.Store,
		hermes:      o.Hermes,
		engine:      o.Engine,
		importer:    o.Importer,
		scenarios:   o.Scenarios,
		defaultUser: o.DefaultUser,
		calcYear:    o.CalcYear,
		maxUpload:   o.MaxUploadBytes,
		logger:      o.Logger,
		now:         o.Now,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.maxUpload <= 0 {
		e.maxUpload = 20 << 20
	}
	return e
}

func NewRouter(o Options) http.Handler {
	e := newEnv(o)
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(e.logger))
	r.Use(RateLimitMiddleware(o.RateLimit))

	records := NewRecordsHandler(e)
	zones := NewZonesHandler(e)
	reports := NewReportsHandler(e)
	imports := NewImportHandler(e)
	database := NewDatabaseHandler(e)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/records", records.List)
		r.Post("/records", records.Create)
		r.Get("/records/{key}", records.Get)
		r.Patch("/records/{key}", records.Update)
		r.Delete("/records/{key}", records.Delete)
		r.Post("/records/{key}/clone", records.Clone)
		r.Get("/records/{key}/explain", records.Explain)

		r.Get("/zones", zones.List)
		r.Post("/zones/{zone}/selection", zones.Select)
		r.Get("/scenarios", zones.Scenarios)
		r.Get("/scenarios/{scenario}/zones/{zone}", zones.GetDescription)
		r.Put("/scenarios/{scenario}/zones/{zone}", zones.PutDescription)

		r.Get("/aggregate", reports.Aggregate)
		r.Get("/export.csv", reports.ExportCSV)
		r.Get("/export.html", reports.ExportHTML)

		r.Post("/import", imports.Upload)

		r.Get("/database", database.Download)
		r.Put("/database", database.Merge)
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// user returns the underwriter named by the request, or the configured default.
func (e *env) user(r *http.Request) string {
	if u := strings.TrimSpace(r.Header.Get(UserHeader)); u != "" {
		return u
	}
	return e.defaultUser
}

// year reads the ?year= query parameter.
func (e *env) year(r *http.Request) (int, error) {
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1900 || y > 9999 {
			return 0, invalid("year must be a four-digit year")
		}
		return y, nil
	}
	if e.calcYear != 0 {
		return e.calcYear, nil
	}
	return e.now().Year(), nil
}

func (e *env) evaluate(rec *store.Record, scenario string, year int) scoring.Result {
	res := e.engine.Evaluate(rec, scenario, year)
	evaluationsTotal.WithLabelValues(string(res.Source)).Inc()
	return res
}

func (e *env) knownScenario(s string) bool {
	for _, known := range e.scenarios {
		if strings.EqualFold(known, s) {
			return true
		}
	}
	return false
}

func (e *env) publish(subject string, event interface{}) {
	if e.hermes == nil {
		return
	}
	if err := e.hermes.Publish(subject, event); err != nil {
		e.logger.Warn("publish event", "subject", subject, "error", err)
	}
}

// pathParam returns a decoded URL parameter. Keys may hold spaces and slashes.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}
