package scoring

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Tables holds the multipliers of the standard rate formula. Each slice is
// indexed by the ordinal level 0..3.
type Tables struct {
	Base                float64    `yaml:"base" json:"base"`
	FireRisk            [4]float64 `yaml:"fire_risk" json:"fire_risk"`
	Exposure            [4]float64 `yaml:"exposure" json:"exposure"`
	ProtectionReduction [4]float64 `yaml:"protection_reduction" json:"protection_reduction"`
	LimitingReduction   [4]float64 `yaml:"limiting_reduction" json:"limiting_reduction"`
	// FallbackRate is returned when the formula cannot be evaluated.
	FallbackRate float64 `yaml:"fallback_rate" json:"fallback_rate"`
}

// DefaultTables returns the calibrated prototype model.
func DefaultTables() Tables {
	return Tables{
		Base:                0.6,
		FireRisk:            [4]float64{1.00, 1.15, 1.35, 1.60},
		Exposure:            [4]float64{1.30, 1.15, 1.00, 0.85},
		ProtectionReduction: [4]float64{0.40, 0.30, 0.20, 0.10},
		LimitingReduction:   [4]float64{0.05, 0.10, 0.15, 0.20},
		FallbackRate:        0.30,
	}
}

// Validate checks that multipliers are non-negative and reductions are shares.
func (t Tables) Validate() error {
	if !finite(t.Base) || t.Base < 0 {
		return fmt.Errorf("base must be a non-negative number, got %v", t.Base)
	}
	for i := 0; i < 4; i++ {
		if !finite(t.FireRisk[i]) || t.FireRisk[i] < 0 {
			return fmt.Errorf("fire_risk[%d] must be non-negative, got %v", i, t.FireRisk[i])
		}
		if !finite(t.Exposure[i]) || t.Exposure[i] < 0 {
			return fmt.Errorf("exposure[%d] must be non-negative, got %v", i, t.Exposure[i])
		}
		if !isShare(t.ProtectionReduction[i]) {
			return fmt.Errorf("protection_reduction[%d] must be within [0,1], got %v", i, t.ProtectionReduction[i])
		}
		if !isShare(t.LimitingReduction[i]) {
			return fmt.Errorf("limiting_reduction[%d] must be within [0,1], got %v", i, t.LimitingReduction[i])
		}
	}
	if !isShare(t.FallbackRate) {
		return fmt.Errorf("fallback_rate must be within [0,1], got %v", t.FallbackRate)
	}
	return nil
}

// ScenarioTables holds the qualitative factors of the fire scenario. Keys are
// the Norwegian choice labels.
type ScenarioTables struct {
	Ignition         map[string]float64 `yaml:"ignition" json:"ignition"`
	Spread           map[string]float64 `yaml:"spread" json:"spread"`
	SuppressionDelay map[string]float64 `yaml:"suppression_delay" json:"suppression_delay"`
	// FallbackSeverity is used until all three choices are set.
	FallbackSeverity float64 `yaml:"fallback_severity" json:"fallback_severity"`
}

func DefaultScenarioTables() ScenarioTables {
	return ScenarioTables{
		Ignition:         map[string]float64{"Lav": 0.20, "Middels": 0.60, "Høy": 1.00},
		Spread:           map[string]float64{"Liten": 0.40, "Middels": 0.80, "Stor": 1.00},
		SuppressionDelay: map[string]float64{"Kort": 0.40, "Middels": 0.80, "Lang": 1.00},
		FallbackSeverity: 1.0,
	}
}

func (s ScenarioTables) Validate() error {
	for name, table := range map[string]map[string]float64{
		"ignition":          s.Ignition,
		"spread":            s.Spread,
		"suppression_delay": s.SuppressionDelay,
	} {
		if len(table) == 0 {
			return fmt.Errorf("%s table is empty", name)
		}
		for choice, v := range table {
			if !isShare(v) {
				return fmt.Errorf("%s[%s] must be within [0,1], got %v", name, choice, v)
			}
		}
	}
	if !finite(s.FallbackSeverity) || s.FallbackSeverity < 0 {
		return fmt.Errorf("fallback_severity must be non-negative, got %v", s.FallbackSeverity)
	}
	return nil
}

// choiceAliases maps English labels onto the stored Norwegian ones.
var choiceAliases = map[string]string{
	"low":    "Lav",
	"medium": "Middels",
	"high":   "Høy",
	"small":  "Liten",
	"large":  "Stor",
	"short":  "Kort",
	"long":   "Lang",
}

func lookupChoice(table map[string]float64, choice string) (float64, bool) {
	c := strings.TrimSpace(choice)
	if c == "" {
		return 0, false
	}
	if alias, ok := choiceAliases[strings.ToLower(c)]; ok {
		c = alias
	}
	for k, v := range table {
		if strings.EqualFold(k, c) {
			return v, true
		}
	}
	return 0, false
}

// ValidChoice reports whether choice names an entry of table, directly or
// through its English alias.
func ValidChoice(table map[string]float64, choice string) bool {
	_, ok := lookupChoice(table, choice)
	return ok
}

// Labels lists the choices of table from the lowest factor to the highest.
func Labels(table map[string]float64) []string {
	labels := make([]string, 0, len(table))
	for k := range table {
		labels = append(labels, k)
	}
	sort.Slice(labels, func(i, j int) bool {
		if table[labels[i]] != table[labels[j]] {
			return table[labels[i]] < table[labels[j]]
		}
		return labels[i] < labels[j]
	})
	return labels
}

// Config bundles everything the engine needs. It is built from the service
// configuration at startup and never mutated afterwards.
type Config struct {
	Tables   Tables
	Scenario ScenarioTables
	// FireScenario is the scenario tag evaluated with the fire scenario model.
	FireScenario string
	// ProjectKeywords mark a record as a construction project when found in
	// its description or address.
	ProjectKeywords []string
}

func DefaultConfig() Config {
	return Config{
		Tables:          DefaultTables(),
		Scenario:        DefaultScenarioTables(),
		FireScenario:    "Brann",
		ProjectKeywords: []string{"prosjekt", "byggeprosjekt", "nybygg", "under oppføring"},
	}
}

func (c Config) Validate() error {
	if err := c.Tables.Validate(); err != nil {
		return fmt.Errorf("rate tables: %w", err)
	}
	if err := c.Scenario.Validate(); err != nil {
		return fmt.Errorf("scenario tables: %w", err)
	}
	if strings.TrimSpace(c.FireScenario) == "" {
		return errors.New("fire scenario name is required")
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func isShare(v float64) bool {
	return finite(v) && v >= 0 && v <= 1
}
