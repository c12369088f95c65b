package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	metaScenarios  = "_scenario_meta"
	metaLastImport = "_last_import"
)

var ErrNotObject = errors.New("database must be a JSON object")

type recordJSON struct {
	Zone         string `json:"kumulesone"`
	RiskNo       string `json:"risikonr"`
	PolicyNo     string `json:"forsnr"`
	Address      string `json:"adresse"`
	Customer     string `json:"kundenavn"`
	PostalCode   string `json:"postnummer,omitempty"`
	Municipality string `json:"kommune,omitempty"`
	Description  string `json:"beskrivelse,omitempty"`

	SumInsured float64 `json:"sum_forsikring"`

	FireRisk            Level  `json:"brannrisiko"`
	FireRiskNote        string `json:"brannrisiko_note"`
	LimitingFactors     Level  `json:"begrensende_faktorer"`
	LimitingFactorsNote string `json:"begrensende_faktorer_note"`
	Protection          Level  `json:"deteksjon_beskyttelse"`
	ProtectionNote      string `json:"deteksjon_beskyttelse_note"`
	Exposure            Level  `json:"eksponering_nabo"`
	ExposureNote        string `json:"eksponering_nabo_note"`

	Coverage Coverage `json:"dekning,omitempty"`

	RateOn     bool    `json:"eml_rate_manual_on"`
	Rate       float64 `json:"eml_rate_manual"`
	AmountOn   bool    `json:"eml_belop_manual_on"`
	Amount     float64 `json:"eml_belop_manual"`
	SeverityOn bool    `json:"brann_eml_manual_on"`
	Severity   float64 `json:"brann_eml_manual"`

	Fire    *FireScenario `json:"brann,omitempty"`
	Project *projectJSON  `json:"prosjekt,omitempty"`

	Scenario string `json:"scenario"`
	Included bool   `json:"include"`

	CalculatedOn string `json:"eml_beregnet_dato,omitempty"`
	CalculatedBy string `json:"eml_beregnet_av,omitempty"`
	Origin       string `json:"kilde,omitempty"`
	Updated      string `json:"updated"`
}

type projectJSON struct {
	IsProject     *bool   `json:"er_prosjekt,omitempty"`
	StartYear     *int    `json:"start_ar,omitempty"`
	EndYear       *int    `json:"slutt_ar,omitempty"`
	OverrideOn    bool    `json:"manuell_on"`
	OverrideValue float64 `json:"manuell_verdi"`
}

func (r *Record) MarshalJSON() ([]byte, error) {
	w := recordJSON{
		Zone:                r.Zone,
		RiskNo:              r.RiskNo,
		PolicyNo:            r.PolicyNo,
		Address:             r.Address,
		Customer:            r.Customer,
		PostalCode:          r.PostalCode,
		Municipality:        r.Municipality,
		Description:         r.Description,
		SumInsured:          r.SumInsured,
		FireRisk:            r.FireRisk,
		FireRiskNote:        r.FireRiskNote,
		LimitingFactors:     r.LimitingFactors,
		LimitingFactorsNote: r.LimitingFactorsNote,
		Protection:          r.Protection,
		ProtectionNote:      r.ProtectionNote,
		Exposure:            r.Exposure,
		ExposureNote:        r.ExposureNote,
		Coverage:            r.Coverage,
		RateOn:              r.RateOverride.Enabled,
		Rate:                r.RateOverride.Value,
		AmountOn:            r.AmountOverride.Enabled,
		Amount:              r.AmountOverride.Value,
		SeverityOn:          r.SeverityOverride.Enabled,
		Severity:            r.SeverityOverride.Value,
		Fire:                r.Fire,
		Scenario:            r.Scenario,
		Included:            r.Included,
		CalculatedOn:        r.CalculatedOn,
		CalculatedBy:        r.CalculatedBy,
		Origin:              r.Origin,
		Updated:             r.Updated,
	}
	if p := r.Project; p != nil {
		w.Project = &projectJSON{
			IsProject:     p.IsProject,
			StartYear:     p.StartYear,
			EndYear:       p.EndYear,
			OverrideOn:    p.Override.Enabled,
			OverrideValue: p.Override.Value,
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON runs the same normalization as Decode and drops the issues.
func (r *Record) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := unmarshalNumbers(data, &m); err != nil {
		return err
	}
	if m == nil {
		return ErrNotObject
	}
	*r = *normalizeRecord("", m, nil)
	return nil
}

// Decode parses a whole database and normalizes every record once. Values that
// could not be read are defaulted and reported as issues. Top-level values that
// are not objects are kept verbatim in Extra. Only a document that is not a JSON
// object is an error.
func Decode(data []byte) (*Document, []Issue, error) {
	doc := NewDocument()
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil, nil
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	if top == nil {
		return nil, nil, ErrNotObject
	}

	var issues []Issue
	for key, raw := range top {
		switch {
		case key == metaScenarios:
			metas, ok := decodeScenarioMeta(raw)
			if !ok {
				issues = append(issues, Issue{Key: key, Reason: "unreadable scenario metadata kept verbatim"})
				doc.Extra[key] = raw
				continue
			}
			doc.Scenarios = metas
		case key == metaLastImport:
			var stamp ImportStamp
			if err := json.Unmarshal(raw, &stamp); err != nil {
				doc.Extra[key] = raw
				continue
			}
			doc.LastImport = &stamp
		case IsMetaKey(key):
			doc.Extra[key] = raw
		default:
			var v any
			if err := unmarshalNumbers(raw, &v); err != nil {
				return nil, nil, fmt.Errorf("decode %q: %w", key, err)
			}
			m, ok := v.(map[string]any)
			if !ok {
				issues = append(issues, Issue{Key: key, Raw: v, Reason: "not an object, kept verbatim and skipped"})
				doc.Extra[key] = raw
				continue
			}
			doc.Records[key] = normalizeRecord(key, m, &issues)
		}
	}
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Key != issues[j].Key {
			return issues[i].Key < issues[j].Key
		}
		return issues[i].Field < issues[j].Field
	})
	return doc, issues, nil
}

func decodeScenarioMeta(raw json.RawMessage) (map[string]ScenarioMeta, bool) {
	var m map[string]map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	out := make(map[string]ScenarioMeta, len(m))
	for k, v := range m {
		out[k] = ScenarioMeta{
			Scenario:    ParseString(v["scenario"]).Value,
			Zone:        ParseString(v["kumulesone"]).Value,
			Description: ParseString(v["beskrivelse"]).Value,
			Updated:     ParseString(v["updated"]).Value,
			UpdatedBy:   ParseString(v["updated_by"]).Value,
		}
	}
	return out, true
}

func unmarshalNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// MarshalJSON writes records and metadata as one flat object with sorted keys.
func (d *Document) MarshalJSON() ([]byte, error) {
	top := make(map[string]any, len(d.Records)+len(d.Extra)+2)
	for k, raw := range d.Extra {
		top[k] = json.RawMessage(raw)
	}
	if len(d.Scenarios) > 0 {
		top[metaScenarios] = d.Scenarios
	}
	if d.LastImport != nil {
		top[metaLastImport] = d.LastImport
	}
	for k, r := range d.Records {
		top[k] = r
	}
	return json.Marshal(top)
}

// Encode renders the document with two-space indentation, the layout of
// risiko_db.json files written by earlier tools.
func Encode(d *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type recordReader struct {
	key    string
	m      map[string]any
	issues *[]Issue
}

func (rr recordReader) report(field string, raw any, reason string) {
	if rr.issues == nil {
		return
	}
	*rr.issues = append(*rr.issues, Issue{Key: rr.key, Field: field, Raw: raw, Reason: reason})
}

func (rr recordReader) str(field string) string {
	p := ParseString(rr.m[field])
	if p.Malformed() {
		rr.report(field, p.Raw, "not text")
	}
	return p.Value
}

func (rr recordReader) num(field string) float64 {
	p := ParseNumber(rr.m[field], 0)
	if p.Malformed() {
		rr.report(field, p.Raw, "not a number, using 0")
	}
	return p.Value
}

func (rr recordReader) flag(field string) bool {
	p := ParseBool(rr.m[field], false)
	if p.Malformed() {
		rr.report(field, p.Raw, "not a boolean, using false")
	}
	return p.Value
}

func (rr recordReader) level(field string) Level {
	p := ParseLevel(rr.m[field])
	if p.Malformed() {
		rr.report(field, p.Raw, "not a level, using 0")
	}
	return p.Value
}

func (rr recordReader) year(m map[string]any, field string) *int {
	p := ParseInt(m[field])
	if p.Malformed() {
		rr.report("prosjekt."+field, p.Raw, "not a year, ignored")
	}
	if !p.OK {
		return nil
	}
	v := p.Value
	return &v
}

func normalizeRecord(key string, m map[string]any, issues *[]Issue) *Record {
	rr := recordReader{key: key, m: m, issues: issues}

	r := &Record{
		Zone:                rr.str("kumulesone"),
		RiskNo:              rr.str("risikonr"),
		PolicyNo:            rr.str("forsnr"),
		Address:             rr.str("adresse"),
		Customer:            rr.str("kundenavn"),
		PostalCode:          rr.str("postnummer"),
		Municipality:        rr.str("kommune"),
		Description:         rr.str("beskrivelse"),
		SumInsured:          rr.num("sum_forsikring"),
		FireRisk:            rr.level("brannrisiko"),
		FireRiskNote:        rr.str("brannrisiko_note"),
		LimitingFactors:     rr.level("begrensende_faktorer"),
		LimitingFactorsNote: rr.str("begrensende_faktorer_note"),
		Protection:          rr.level("deteksjon_beskyttelse"),
		ProtectionNote:      rr.str("deteksjon_beskyttelse_note"),
		Exposure:            rr.level("eksponering_nabo"),
		ExposureNote:        rr.str("eksponering_nabo_note"),
		RateOverride:        Override{Enabled: rr.flag("eml_rate_manual_on"), Value: rr.num("eml_rate_manual")},
		AmountOverride:      Override{Enabled: rr.flag("eml_belop_manual_on"), Value: rr.num("eml_belop_manual")},
		SeverityOverride:    Override{Enabled: rr.flag("brann_eml_manual_on"), Value: rr.num("brann_eml_manual")},
		Scenario:            rr.str("scenario"),
		Included:            rr.flag("include"),
		CalculatedOn:        rr.str("eml_beregnet_dato"),
		CalculatedBy:        rr.str("eml_beregnet_av"),
		Origin:              rr.str("kilde"),
		Updated:             rr.str("updated"),
	}

	if r.SumInsured < 0 {
		rr.report("sum_forsikring", r.SumInsured, "negative, using 0")
		r.SumInsured = 0
	}

	switch c := Coverage(strings.ToUpper(rr.str("dekning"))); c {
	case CoveragePD, CoverageBI:
		r.Coverage = c
	case "":
	default:
		rr.report("dekning", string(c), "unknown coverage, classifying by description")
	}

	if raw, ok := m["brann"]; ok && raw != nil {
		fm, isMap := raw.(map[string]any)
		if !isMap {
			rr.report("brann", raw, "not an object, ignored")
		} else {
			r.Fire = &FireScenario{
				Ignition:         ParseString(fm["risiko_for_brann"]).Value,
				Spread:           ParseString(fm["spredning_av_brann"]).Value,
				SuppressionDelay: ParseString(fm["tid_for_slukkeinnsats"]).Value,
				Updated:          ParseString(fm["updated"]).Value,
			}
		}
	}

	if raw, ok := m["prosjekt"]; ok && raw != nil {
		pm, isMap := raw.(map[string]any)
		if !isMap {
			rr.report("prosjekt", raw, "not an object, ignored")
		} else {
			p := &Project{
				StartYear: rr.year(pm, "start_ar"),
				EndYear:   rr.year(pm, "slutt_ar"),
				Override: Override{
					Enabled: ParseBool(pm["manuell_on"], false).Value,
					Value:   ParseNumber(pm["manuell_verdi"], 0).Value,
				},
			}
			if flag := ParseBool(pm["er_prosjekt"], false); flag.OK {
				v := flag.Value
				p.IsProject = &v
			}
			r.Project = p
		}
	}

	return r
}
