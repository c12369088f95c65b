package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MikeSquared-Agency/Kumule/internal/export"
	"github.com/MikeSquared-Agency/Kumule/internal/scoring"
)

// ReportsHandler serves zone aggregation and exports.
type ReportsHandler struct {
	env *env
}

func NewReportsHandler(e *env) *ReportsHandler {
	return &ReportsHandler{env: e}
}

func (h *ReportsHandler) filter(r *http.Request) (scoring.Filter, error) {
	year, err := h.env.year(r)
	if err != nil {
		return scoring.Filter{}, err
	}
	q := r.URL.Query()
	return scoring.Filter{
		Scenario: q.Get("scenario"),
		Zone:     q.Get("kumule"),
		CalcYear: year,
	}, nil
}

func (h *ReportsHandler) Aggregate(w http.ResponseWriter, r *http.Request) {
	f, err := h.filter(r)
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}
	doc, err := h.env.store.Load(r.Context())
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}
	report := h.env.engine.Aggregate(doc, f)
	withRows, _ := strconv.ParseBool(r.URL.Query().Get("rows"))
	for i := range report.Zones {
		for _, row := range report.Zones[i].Rows {
			evaluationsTotal.WithLabelValues(string(row.Result.Source)).Inc()
		}
		if !withRows {
			report.Zones[i].Rows = nil
		}
	}
	writeJSON(w, http.StatusOK, report)
}

// ExportCSV writes the evaluated records as CSV. ?all=true lists every record
// instead of the included ones; ?delimiter=; switches the separator.
func (h *ReportsHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	f, err := h.filter(r)
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}
	delim := ','
	if d := r.URL.Query().Get("delimiter"); d != "" {
		rn, size := utf8.DecodeRuneInString(d)
		if size != len(d) || rn == '"' || rn == '\r' || rn == '\n' {
			h.env.writeError(w, r, invalid("delimiter must be a single character"))
			return
		}
		delim = rn
	}
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))

	doc, err := h.env.store.Load(r.Context())
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, export.Rows(h.env.engine, doc, f, all), delim); err != nil {
		h.env.writeError(w, r, invalid(err.Error()))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportName(f, "csv")))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *ReportsHandler) ExportHTML(w http.ResponseWriter, r *http.Request) {
	f, err := h.filter(r)
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}
	doc, err := h.env.store.Load(r.Context())
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteHTML(&buf, doc, h.env.engine.Aggregate(doc, f), h.env.now()); err != nil {
		h.env.writeError(w, r, fmt.Errorf("render report: %w", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func exportName(f scoring.Filter, ext string) string {
	name := "eml"
	if f.Scenario != "" {
		name += "_" + fileToken(f.Scenario)
	}
	if f.Zone != "" {
		name += "_" + fileToken(f.Zone)
	}
	return name + "." + ext
}

func fileToken(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			return r
		}
		return '_'
	}, s)
}
