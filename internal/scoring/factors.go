package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/MikeSquared-Agency/Kumule/internal/store"
)

// FactorResult captures one multiplier's contribution to a rate.
type FactorResult struct {
	Name       string  `json:"name"`
	Input      string  `json:"input"`
	Multiplier float64 `json:"multiplier"`
	// Running is the product of all factors up to and including this one.
	Running   float64 `json:"running"`
	Available bool    `json:"available"`
	Reason    string  `json:"reason"`
}

// RateResult is the outcome of one of the two rate models.
type RateResult struct {
	Rate     float64        `json:"rate"`
	Fallback bool           `json:"fallback"`
	Factors  []FactorResult `json:"factors"`
}

// --- Standard model ---

// MachineRate evaluates the standard formula
//
//	Base × FireRisk[f] × Exposure[e] × (1 − ProtectionReduction[p]) × (1 − LimitingReduction[l])
//
// clamped to [0,1]. A level outside 0..3 or a non-finite product yields
// FallbackRate; it never fails.
func MachineRate(rec *store.Record, t Tables) RateResult {
	running := t.Base
	factors := []FactorResult{
		{Name: "base", Input: "", Multiplier: t.Base, Running: running, Available: true, Reason: "baseline share at risk"},
	}

	steps := []struct {
		name  string
		level store.Level
		value func(i int) float64
	}{
		{"fire_risk", rec.FireRisk, func(i int) float64 { return t.FireRisk[i] }},
		{"exposure", rec.Exposure, func(i int) float64 { return t.Exposure[i] }},
		{"protection", rec.Protection, func(i int) float64 { return 1 - t.ProtectionReduction[i] }},
		{"limiting_factors", rec.LimitingFactors, func(i int) float64 { return 1 - t.LimitingReduction[i] }},
	}

	for _, s := range steps {
		input := fmt.Sprintf("%d", s.level)
		if !s.level.Valid() {
			factors = append(factors, FactorResult{Name: s.name, Input: input, Available: false, Reason: "level outside 0..3"})
			return RateResult{Rate: t.FallbackRate, Fallback: true, Factors: factors}
		}
		m := s.value(int(s.level))
		running *= m
		factors = append(factors, FactorResult{
			Name:       s.name,
			Input:      input,
			Multiplier: m,
			Running:    running,
			Available:  true,
			Reason:     LevelLabel(s.level),
		})
	}

	if !finite(running) {
		return RateResult{Rate: t.FallbackRate, Fallback: true, Factors: factors}
	}
	return RateResult{Rate: clamp(running, 0, 1), Factors: factors}
}

// LevelLabel is the display label of an ordinal level.
func LevelLabel(l store.Level) string {
	switch l {
	case store.LevelLow:
		return "Lav"
	case store.LevelMedium:
		return "Middels"
	case store.LevelHigh:
		return "Høy"
	default:
		return "Ikke satt"
	}
}

// --- Fire scenario model ---

// ScenarioSeverity multiplies the three fire scenario factors, clamped to [0,1].
// Until all three choices hold a known label the result is FallbackSeverity.
// The standard model is never consulted here.
func ScenarioSeverity(fire *store.FireScenario, s ScenarioTables) RateResult {
	if fire == nil {
		return RateResult{
			Rate:     s.FallbackSeverity,
			Fallback: true,
			Factors: []FactorResult{
				{Name: "scenario", Available: false, Reason: "no fire scenario entered"},
			},
		}
	}

	steps := []struct {
		name   string
		choice string
		table  map[string]float64
	}{
		{"ignition", fire.Ignition, s.Ignition},
		{"spread", fire.Spread, s.Spread},
		{"suppression_delay", fire.SuppressionDelay, s.SuppressionDelay},
	}

	running := 1.0
	complete := true
	factors := make([]FactorResult, 0, len(steps))
	for _, st := range steps {
		m, ok := lookupChoice(st.table, st.choice)
		if !ok {
			complete = false
			reason := "not set"
			if strings.TrimSpace(st.choice) != "" {
				reason = "unknown choice"
			}
			factors = append(factors, FactorResult{Name: st.name, Input: st.choice, Available: false, Reason: reason})
			continue
		}
		running *= m
		factors = append(factors, FactorResult{
			Name:       st.name,
			Input:      st.choice,
			Multiplier: m,
			Running:    running,
			Available:  true,
			Reason:     "scenario choice",
		})
	}

	if !complete {
		return RateResult{Rate: s.FallbackSeverity, Fallback: true, Factors: factors}
	}
	return RateResult{Rate: clamp(running, 0, 1), Factors: factors}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}
