package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Kumule/internal/export"
	"github.com/MikeSquared-Agency/Kumule/internal/hermes"
	"github.com/MikeSquared-Agency/Kumule/internal/scoring"
	"github.com/MikeSquared-Agency/Kumule/internal/store"
)

// OriginManual marks records entered by hand.
const OriginManual = "manuell"

const dateLayout = "2006-01-02"

type RecordsHandler struct {
	env *env
}

func NewRecordsHandler(e *env) *RecordsHandler {
	return &RecordsHandler{env: e}
}

type recordView struct {
	Key    string         `json:"key"`
	Record *store.Record  `json:"record"`
	EML    scoring.Result `json:"eml"`
}

func (h *RecordsHandler) view(key string, rec *store.Record, scenario string, year int) recordView {
	return recordView{Key: key, Record: rec, EML: h.env.evaluate(rec, scenario, year)}
}

func (h *RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	year, err := h.env.year(r)
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}
	doc, err := h.env.store.Load(r.Context())
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	filter := store.RecordFilter{
		Customer: q.Get("kunde"),
		Address:  q.Get("adresse"),
		Zone:     q.Get("kumule"),
	}
	scenario := q.Get("scenario")

	keys := doc.Filter(filter)
	views := make([]recordView, 0, len(keys))
	for _, key := range keys {
		views = append(views, h.view(key, doc.Records[key], scenario, year))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *RecordsHandler) Get(w http.ResponseWriter, r *http.Request) {
	year, err := h.env.year(r)
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}
	key := pathParam(r, "key")
	doc, err := h.env.store.Load(r.Context())
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}
	rec, err := doc.Get(key)
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(key, rec, r.URL.Query().Get("scenario"), year))
}

// Create stores a manually entered record under a generated MAN_ key.
func (h *RecordsHandler) Create(w http.ResponseWriter, r *http.Request) {
	year, err := h.env.year(r)
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}
	fields, err := decodeFields(w, r, h.env.maxUpload)
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}
	if err := h.env.validate(fields); err != nil {
		h.env.writeError(w, r, err)
		return
	}
	for _, f := range []string{"kumulesone", "risikonr"} {
		if store.ParseString(fields[f]).Value == "" {
			h.env.writeError(w, r, invalid(f+" is required"))
			return
		}
	}

	now := h.env.now()
	user := h.env.user(r)
	base := store.NewRecord(now)
	base.Origin = OriginManual
	base.CalculatedOn = now.Format(dateLayout)
	base.CalculatedBy = user
	if len(h.env.scenarios) > 0 {
		base.Scenario = h.env.scenarios[0]
	}
	rec, err := applyFields(base, fields)
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}
	rec.Origin = OriginManual
	if rec.Fire != nil {
		rec.Fire.Updated = store.Timestamp(now)
	}
	rec.Touch(now)

	key := "MAN_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	err = h.env.store.Update(r.Context(), func(doc *store.Document) error {
		return doc.Create(key, rec)
	})
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}

	v := h.view(key, rec, "", year)
	h.publishSaved(v, "created", user)
	writeJSON(w, http.StatusCreated, v)
}

// Update overlays the request fields on the stored record. Nested brann and
// prosjekt objects are replaced whole.
func (h *RecordsHandler) Update(w http.ResponseWriter, r *http.Request) {
	year, err := h.env.year(r)
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}
	key := pathParam(r, "key")
	fields, err := decodeFields(w, r, h.env.maxUpload)
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}
	if err := h.env.validate(fields); err != nil {
		h.env.writeError(w, r, err)
		return
	}

	now := h.env.now()
	user := h.env.user(r)
	var saved *store.Record
	err = h.env.store.Update(r.Context(), func(doc *store.Document) error {
		rec, err := doc.Get(key)
		if err != nil {
			return err
		}
		next, err := applyFields(rec, fields)
		if err != nil {
			return err
		}
		if _, ok := fields["brann"]; ok && next.Fire != nil {
			next.Fire.Updated = store.Timestamp(now)
		}
		if _, ok := fields["eml_beregnet_dato"]; !ok {
			next.CalculatedOn = now.Format(dateLayout)
		}
		if _, ok := fields["eml_beregnet_av"]; !ok {
			next.CalculatedBy = user
		}
		next.Touch(now)
		doc.Put(key, next)
		saved = next
		return nil
	})
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}

	v := h.view(key, saved, "", year)
	h.publishSaved(v, "updated", user)
	writeJSON(w, http.StatusOK, v)
}

func (h *RecordsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key := pathParam(r, "key")
	err := h.env.store.Update(r.Context(), func(doc *store.Document) error {
		return doc.Delete(key)
	})
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}
	h.env.publish(hermes.SubjectRecordDeleted(key), hermes.RecordDeletedEvent{
		Key: key,
		By:  h.env.user(r),
		At:  store.Timestamp(h.env.now()),
	})
	w.WriteHeader(http.StatusNoContent)
}

// Clone copies a record to "<key> kopi N".
func (h *RecordsHandler) Clone(w http.ResponseWriter, r *http.Request) {
	year, err := h.env.year(r)
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}
	key := pathParam(r, "key")
	var newKey string
	var rec *store.Record
	err = h.env.store.Update(r.Context(), func(doc *store.Document) error {
		k, err := doc.Clone(key, h.env.now())
		if err != nil {
			return err
		}
		newKey, rec = k, doc.Records[k]
		return nil
	})
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}
	v := h.view(newKey, rec, "", year)
	h.publishSaved(v, "cloned", h.env.user(r))
	writeJSON(w, http.StatusCreated, v)
}

type explainView struct {
	Key      string            `json:"key"`
	RateText string            `json:"rate_text"`
	Levels   map[string]string `json:"levels"`
	Result   scoring.Result    `json:"result"`
}

// Explain returns the factor breakdown behind a record's rate.
func (h *RecordsHandler) Explain(w http.ResponseWriter, r *http.Request) {
	year, err := h.env.year(r)
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}
	key := pathParam(r, "key")
	doc, err := h.env.store.Load(r.Context())
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}
	rec, err := doc.Get(key)
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}
	res := h.env.evaluate(rec, r.URL.Query().Get("scenario"), year)
	writeJSON(w, http.StatusOK, explainView{
		Key:      key,
		RateText: export.FormatRate(res.Rate),
		Levels: map[string]string{
			"brannrisiko":           scoring.LevelLabel(rec.FireRisk),
			"eksponering_nabo":      scoring.LevelLabel(rec.Exposure),
			"deteksjon_beskyttelse": scoring.LevelLabel(rec.Protection),
			"begrensende_faktorer":  scoring.LevelLabel(rec.LimitingFactors),
		},
		Result: res,
	})
}

func (h *RecordsHandler) publishSaved(v recordView, action, user string) {
	h.env.publish(hermes.SubjectRecordSaved(v.Key), hermes.RecordSavedEvent{
		Key:      v.Key,
		Action:   action,
		Zone:     v.Record.Zone,
		Scenario: v.Record.Scenario,
		Included: v.Record.Included,
		Rate:     v.EML.Rate,
		Source:   string(v.EML.Source),
		EML:      v.EML.EML,
		By:       user,
		At:       store.Timestamp(h.env.now()),
	})
}

func decodeFields(w http.ResponseWriter, r *http.Request, limit int64) (map[string]interface{}, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.UseNumber()
	var fields map[string]interface{}
	if err := dec.Decode(&fields); err != nil {
		return nil, invalid("invalid request body: " + err.Error())
	}
	if fields == nil {
		return nil, invalid("request body must be a JSON object")
	}
	return fields, nil
}

// applyFields returns a copy of rec with fields laid over its stored form.
func applyFields(rec *store.Record, fields map[string]interface{}) (*store.Record, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var merged map[string]interface{}
	if err := dec.Decode(&merged); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	for k, v := range fields {
		merged[k] = v
	}
	data, err = json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var out store.Record
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &out, nil
}

type fieldKind int

const (
	kindText fieldKind = iota
	kindAmount
	kindShare
	kindLevel
	kindFlag
	kindCoverage
	kindScenario
	kindFire
	kindProject
)

// editable lists the record fields a client may set.
var editable = map[string]fieldKind{
	"kumulesone":                 kindText,
	"risikonr":                   kindText,
	"forsnr":                     kindText,
	"adresse":                    kindText,
	"kundenavn":                  kindText,
	"postnummer":                 kindText,
	"kommune":                    kindText,
	"beskrivelse":                kindText,
	"brannrisiko_note":           kindText,
	"begrensende_faktorer_note":  kindText,
	"deteksjon_beskyttelse_note": kindText,
	"eksponering_nabo_note":      kindText,
	"eml_beregnet_dato":          kindText,
	"eml_beregnet_av":            kindText,
	"sum_forsikring":             kindAmount,
	"eml_belop_manual":           kindAmount,
	"brann_eml_manual":           kindAmount,
	"eml_rate_manual":            kindShare,
	"brannrisiko":                kindLevel,
	"begrensende_faktorer":       kindLevel,
	"deteksjon_beskyttelse":      kindLevel,
	"eksponering_nabo":           kindLevel,
	"eml_rate_manual_on":         kindFlag,
	"eml_belop_manual_on":        kindFlag,
	"brann_eml_manual_on":        kindFlag,
	"include":                    kindFlag,
	"dekning":                    kindCoverage,
	"scenario":                   kindScenario,
	"brann":                      kindFire,
	"prosjekt":                   kindProject,
}

func (e *env) validate(fields map[string]interface{}) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		kind, ok := editable[name]
		if !ok {
			return invalid(fmt.Sprintf("%s cannot be set", name))
		}
		if err := e.validateField(name, kind, fields[name]); err != nil {
			return err
		}
	}
	return nil
}

func (e *env) validateField(name string, kind fieldKind, raw interface{}) error {
	switch kind {
	case kindText:
		if p := store.ParseString(raw); p.Malformed() {
			return invalid(name + " must be text")
		}
	case kindAmount:
		p := store.ParseNumber(raw, 0)
		if p.Malformed() {
			return invalid(name + " must be a number")
		}
		if p.Value < 0 {
			return invalid(name + " must not be negative")
		}
	case kindShare:
		p := store.ParseNumber(raw, 0)
		if p.Malformed() {
			return invalid(name + " must be a number")
		}
		if p.Value < 0 || p.Value > 1 {
			return invalid(name + " must be between 0 and 1")
		}
	case kindLevel:
		p := store.ParseInt(raw)
		if p.Malformed() {
			return invalid(name + " must be a whole number")
		}
		if !store.Level(p.Value).Valid() {
			return invalid(name + " must be between 0 and 3")
		}
	case kindFlag:
		if p := store.ParseBool(raw, false); p.Malformed() {
			return invalid(name + " must be true or false")
		}
	case kindCoverage:
		switch store.Coverage(strings.ToUpper(store.ParseString(raw).Value)) {
		case "", store.CoveragePD, store.CoverageBI:
		default:
			return invalid(name + " must be PD or BI")
		}
	case kindScenario:
		s := store.ParseString(raw).Value
		if s != "" && !e.knownScenario(s) {
			return invalid(fmt.Sprintf("unknown scenario %q", s))
		}
	case kindFire:
		return e.validateFire(raw)
	case kindProject:
		return validateProject(raw)
	}
	return nil
}

func (e *env) validateFire(raw interface{}) error {
	if raw == nil {
		return nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return invalid("brann must be an object")
	}
	tables := e.engine.Config().Scenario
	for k, v := range m {
		var table map[string]float64
		switch k {
		case "risiko_for_brann":
			table = tables.Ignition
		case "spredning_av_brann":
			table = tables.Spread
		case "tid_for_slukkeinnsats":
			table = tables.SuppressionDelay
		default:
			return invalid("brann." + k + " cannot be set")
		}
		p := store.ParseString(v)
		if p.Malformed() {
			return invalid("brann." + k + " must be text")
		}
		if p.Value != "" && !scoring.ValidChoice(table, p.Value) {
			return invalid("brann." + k + " must be one of " + strings.Join(scoring.Labels(table), ", "))
		}
	}
	return nil
}

func validateProject(raw interface{}) error {
	if raw == nil {
		return nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return invalid("prosjekt must be an object")
	}
	for k, v := range m {
		switch k {
		case "er_prosjekt", "manuell_on":
			if p := store.ParseBool(v, false); p.Malformed() {
				return invalid("prosjekt." + k + " must be true or false")
			}
		case "start_ar", "slutt_ar":
			if p := store.ParseInt(v); p.Malformed() {
				return invalid("prosjekt." + k + " must be a year")
			}
		case "manuell_verdi":
			p := store.ParseNumber(v, 0)
			if p.Malformed() || p.Value < 0 {
				return invalid("prosjekt.manuell_verdi must not be negative")
			}
		default:
			return invalid("prosjekt." + k + " cannot be set")
		}
	}
	return nil
}
