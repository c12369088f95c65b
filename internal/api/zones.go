package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/MikeSquared-Agency/Kumule/internal/hermes"
	"github.com/MikeSquared-Agency/Kumule/internal/store"
)

// ZonesHandler serves zone selection and the per-scenario zone descriptions.
type ZonesHandler struct {
	env *env
}

func NewZonesHandler(e *env) *ZonesHandler {
	return &ZonesHandler{env: e}
}

type zoneSummary struct {
	Zone     string `json:"zone"`
	Records  int    `json:"records"`
	Included int    `json:"included"`
}

func (h *ZonesHandler) List(w http.ResponseWriter, r *http.Request) {
	doc, err := h.env.store.Load(r.Context())
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}
	counts := make(map[string]*zoneSummary)
	for _, rec := range doc.Records {
		z := strings.TrimSpace(rec.Zone)
		if z == "" {
			continue
		}
		s, ok := counts[z]
		if !ok {
			s = &zoneSummary{Zone: z}
			counts[z] = s
		}
		s.Records++
		if rec.Included {
			s.Included++
		}
	}
	out := make([]zoneSummary, 0, len(counts))
	for _, z := range doc.Zones() {
		out = append(out, *counts[z])
	}
	writeJSON(w, http.StatusOK, out)
}

type selectionRequest struct {
	Include  bool   `json:"include"`
	Scenario string `json:"scenario"`
}

// Select includes or excludes every record of a zone. Including with a
// scenario also moves the records to that scenario.
func (h *ZonesHandler) Select(w http.ResponseWriter, r *http.Request) {
	zone := pathParam(r, "zone")
	var req selectionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.env.maxUpload)).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Scenario = strings.TrimSpace(req.Scenario)
	if req.Scenario != "" && !h.env.knownScenario(req.Scenario) {
		h.env.writeError(w, r, invalid(fmt.Sprintf("unknown scenario %q", req.Scenario)))
		return
	}

	now := h.env.now()
	var touched int
	err := h.env.store.Update(r.Context(), func(doc *store.Document) error {
		touched = doc.SetZoneSelection(zone, req.Include, req.Scenario, now)
		if touched == 0 {
			return fmt.Errorf("zone %q: %w", zone, store.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}

	ev := hermes.ZoneSelectionEvent{
		Zone:     zone,
		Included: req.Include,
		Scenario: req.Scenario,
		Records:  touched,
		By:       h.env.user(r),
		At:       store.Timestamp(now),
	}
	h.env.publish(hermes.SubjectZoneSelection(zone), ev)
	writeJSON(w, http.StatusOK, ev)
}

func (h *ZonesHandler) Scenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scenarios": h.env.scenarios,
		"fire":      h.env.engine.Config().FireScenario,
	})
}

// GetDescription returns the description of a zone for a scenario. A zone
// never described yields an empty description.
func (h *ZonesHandler) GetDescription(w http.ResponseWriter, r *http.Request) {
	scenario, zone := pathParam(r, "scenario"), pathParam(r, "zone")
	doc, err := h.env.store.Load(r.Context())
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}
	meta, ok := doc.Scenarios[store.ScenarioMetaKey(scenario, zone)]
	if !ok {
		meta = store.ScenarioMeta{Scenario: scenario, Zone: zone}
	}
	writeJSON(w, http.StatusOK, meta)
}

type descriptionRequest struct {
	Description string `json:"beskrivelse"`
}

func (h *ZonesHandler) PutDescription(w http.ResponseWriter, r *http.Request) {
	scenario, zone := pathParam(r, "scenario"), pathParam(r, "zone")
	if !h.env.knownScenario(scenario) {
		h.env.writeError(w, r, invalid(fmt.Sprintf("unknown scenario %q", scenario)))
		return
	}
	var req descriptionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.env.maxUpload)).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	now := h.env.now()
	meta := store.ScenarioMeta{
		Scenario:    scenario,
		Zone:        zone,
		Description: req.Description,
		Updated:     store.Timestamp(now),
		UpdatedBy:   h.env.user(r),
	}
	err := h.env.store.Update(r.Context(), func(doc *store.Document) error {
		doc.Scenarios[store.ScenarioMetaKey(scenario, zone)] = meta
		return nil
	})
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}

	h.env.publish(hermes.SubjectScenarioDescribed(scenario, zone), hermes.ScenarioDescribedEvent{
		Scenario: scenario,
		Zone:     zone,
		By:       meta.UpdatedBy,
		At:       meta.Updated,
	})
	writeJSON(w, http.StatusOK, meta)
}
