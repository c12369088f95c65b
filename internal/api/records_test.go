package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Kumule/internal/hermes"
	"github.com/MikeSquared-Agency/Kumule/internal/scoring"
	"github.com/MikeSquared-Agency/Kumule/internal/store"
)

func TestCreateRecord(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/records", map[string]interface{}{
		"kumulesone":         "101",
		"risikonr":           "7",
		"adresse":            "Kaigata 3",
		"sum_forsikring":     10000000,
		"scenario":           "Skred",
		"eml_rate_manual_on": true,
		"eml_rate_manual":    0.1,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var v recordView
	decode(t, w, &v)
	assert.True(t, strings.HasPrefix(v.Key, "MAN_"), v.Key)
	assert.Len(t, v.Key, len("MAN_")+8)
	assert.Equal(t, OriginManual, v.Record.Origin)
	assert.Equal(t, "kari", v.Record.CalculatedBy)
	assert.Equal(t, "2026-03-01", v.Record.CalculatedOn)
	assert.Equal(t, int64(1_000_000), v.EML.EML)
	assert.Equal(t, scoring.SourceManualRate, v.EML.Source)

	assert.Contains(t, ts.hermes.published(), hermes.SubjectRecordSaved(v.Key))

	g := ts.do(t, http.MethodGet, "/api/v1/records/"+v.Key, nil)
	require.Equal(t, http.StatusOK, g.Code)
	var got recordView
	decode(t, g, &got)
	assert.Equal(t, "Kaigata 3", got.Record.Address)
	assert.Equal(t, "Skred", got.Record.Scenario)
}

func TestCreateRecordDefaultsScenario(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/api/v1/records", map[string]interface{}{
		"kumulesone": "101",
		"risikonr":   "8",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var v recordView
	decode(t, w, &v)
	assert.Equal(t, "Brann", v.Record.Scenario)
	assert.False(t, v.Record.Included)
}

func TestCreateRecordValidation(t *testing.T) {
	ts := newTestServer(t)
	cases := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing zone", map[string]interface{}{"risikonr": "1"}},
		{"missing risk", map[string]interface{}{"kumulesone": "101"}},
		{"rate above one", map[string]interface{}{"kumulesone": "101", "risikonr": "1", "eml_rate_manual": 1.5}},
		{"negative sum", map[string]interface{}{"kumulesone": "101", "risikonr": "1", "sum_forsikring": -5}},
		{"level out of range", map[string]interface{}{"kumulesone": "101", "risikonr": "1", "brannrisiko": 4}},
		{"fractional level", map[string]interface{}{"kumulesone": "101", "risikonr": "1", "brannrisiko": 1.5}},
		{"malformed number", map[string]interface{}{"kumulesone": "101", "risikonr": "1", "sum_forsikring": "mange"}},
		{"unknown field", map[string]interface{}{"kumulesone": "101", "risikonr": "1", "farge": "rød"}},
		{"read-only field", map[string]interface{}{"kumulesone": "101", "risikonr": "1", "kilde": "import"}},
		{"unknown scenario", map[string]interface{}{"kumulesone": "101", "risikonr": "1", "scenario": "Meteor"}},
		{"bad coverage", map[string]interface{}{"kumulesone": "101", "risikonr": "1", "dekning": "XX"}},
		{"bad project year", map[string]interface{}{"kumulesone": "101", "risikonr": "1", "prosjekt": map[string]interface{}{"start_ar": "snart"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/v1/records", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}

	doc, err := ts.store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc.Records)
}

func TestCreateProjectManualFactorAboveOne(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/api/v1/records", map[string]interface{}{
		"kumulesone":     "101",
		"risikonr":       "9",
		"sum_forsikring": 1000000,
		"prosjekt": map[string]interface{}{
			"er_prosjekt":   true,
			"manuell_on":    true,
			"manuell_verdi": 1.5,
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var v recordView
	decode(t, w, &v)
	assert.True(t, v.EML.IsProject)
	assert.Equal(t, 1.5, v.EML.ExposureFactor)

	w = ts.do(t, http.MethodPatch, "/api/v1/records/"+v.Key, map[string]interface{}{
		"prosjekt": map[string]interface{}{"manuell_verdi": -0.5},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "must not be negative")
}

func TestCreateRecordRejectsBadJSON(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/api/v1/records", "not an object")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRecordNotFound(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/api/v1/records/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRecordsFilters(t *testing.T) {
	ts := newTestServer(t)
	a := sampleRecord("101", "1", 1_000_000)
	b := sampleRecord("102", "2", 2_000_000)
	b.Customer = "Bergen Havn KF"
	ts.seed(t, map[string]*store.Record{"101-1": a, "102-2": b})

	w := ts.do(t, http.MethodGet, "/api/v1/records?kunde=havn", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var views []recordView
	decode(t, w, &views)
	require.Len(t, views, 1)
	assert.Equal(t, "102-2", views[0].Key)

	w = ts.do(t, http.MethodGet, "/api/v1/records", nil)
	decode(t, w, &views)
	assert.Len(t, views, 2)

	w = ts.do(t, http.MethodGet, "/api/v1/records?year=20x6", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPatchRecord(t *testing.T) {
	ts := newTestServer(t)
	rec := sampleRecord("101", "7", 10_000_000)
	rec.Scenario = "Skred"
	ts.seed(t, map[string]*store.Record{"101-7-Storgata 7": rec})

	path := "/api/v1/records/" + url.PathEscape("101-7-Storgata 7")
	w := ts.do(t, http.MethodPatch, path, map[string]interface{}{
		"eml_rate_manual_on": true,
		"eml_rate_manual":    "0,25",
		"brannrisiko":        3,
		"brannrisiko_note":   "Lakkeri i 1. etasje",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var v recordView
	decode(t, w, &v)
	assert.Equal(t, int64(2_500_000), v.EML.EML)
	assert.Equal(t, store.LevelHigh, v.Record.FireRisk)
	assert.Equal(t, "Lakkeri i 1. etasje", v.Record.FireRiskNote)
	assert.Equal(t, "kari", v.Record.CalculatedBy)
	assert.Equal(t, store.Timestamp(testNow), v.Record.Updated)
	assert.Equal(t, "Fjord AS", v.Record.Customer, "untouched fields survive")

	doc, err := ts.store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, doc.Records["101-7-Storgata 7"].RateOverride.Enabled)
}

func TestPatchFireScenario(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, map[string]*store.Record{"101-7": sampleRecord("101", "7", 10_000_000)})

	w := ts.do(t, http.MethodPatch, "/api/v1/records/101-7", map[string]interface{}{
		"brann": map[string]interface{}{
			"risiko_for_brann":      "Middels",
			"spredning_av_brann":    "Middels",
			"tid_for_slukkeinnsats": "Middels",
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var v recordView
	decode(t, w, &v)
	require.NotNil(t, v.Record.Fire)
	assert.Equal(t, store.Timestamp(testNow), v.Record.Fire.Updated)
	assert.Equal(t, scoring.PathFire, v.EML.Path)
	assert.Equal(t, scoring.SourceScenarioAuto, v.EML.Source)
	assert.Equal(t, int64(3_840_000), v.EML.EML)
}

func TestPatchFireScenarioRejectsUnknownChoice(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, map[string]*store.Record{"101-7": sampleRecord("101", "7", 10_000_000)})

	w := ts.do(t, http.MethodPatch, "/api/v1/records/101-7", map[string]interface{}{
		"brann": map[string]interface{}{"risiko_for_brann": "Hoy"},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Lav, Middels, Høy")

	w = ts.do(t, http.MethodPatch, "/api/v1/records/101-7", map[string]interface{}{
		"brann": map[string]interface{}{"risiko_for_brann": "high", "spredning_av_brann": ""},
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestPatchRecordValidation(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, map[string]*store.Record{"101-7": sampleRecord("101", "7", 1_000_000)})

	w := ts.do(t, http.MethodPatch, "/api/v1/records/101-7", map[string]interface{}{"eml_rate_manual": -0.1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPatch, "/api/v1/records/missing", map[string]interface{}{"brannrisiko": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteRecord(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, map[string]*store.Record{"101-7": sampleRecord("101", "7", 1_000_000)})

	w := ts.do(t, http.MethodDelete, "/api/v1/records/101-7", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, ts.hermes.published(), hermes.SubjectRecordDeleted("101-7"))

	w = ts.do(t, http.MethodDelete, "/api/v1/records/101-7", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCloneRecord(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, map[string]*store.Record{"101-7": sampleRecord("101", "7", 1_000_000)})

	w := ts.do(t, http.MethodPost, "/api/v1/records/101-7/clone", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var v recordView
	decode(t, w, &v)
	assert.Equal(t, "101-7 kopi 1", v.Key)

	w = ts.do(t, http.MethodPost, "/api/v1/records/101-7/clone", nil)
	decode(t, w, &v)
	assert.Equal(t, "101-7 kopi 2", v.Key)

	w = ts.do(t, http.MethodGet, "/api/v1/records/"+url.PathEscape("101-7 kopi 1"), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestExplainRecord(t *testing.T) {
	ts := newTestServer(t)
	rec := sampleRecord("101", "7", 1_000_000)
	rec.Scenario = "Skred"
	rec.FireRisk = store.LevelHigh
	rec.Exposure = store.LevelMedium
	ts.seed(t, map[string]*store.Record{"101-7": rec})

	w := ts.do(t, http.MethodGet, "/api/v1/records/101-7/explain", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var v explainView
	decode(t, w, &v)
	assert.Equal(t, "Høy", v.Levels["brannrisiko"])
	assert.Equal(t, "Middels", v.Levels["eksponering_nabo"])
	assert.Equal(t, scoring.SourceMachine, v.Result.Source)
	assert.NotEmpty(t, v.Result.Factors)
	assert.True(t, strings.HasSuffix(v.RateText, " %"), v.RateText)
}
