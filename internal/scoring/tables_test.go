package scoring

import (
	"math"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestTablesValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Tables)
	}{
		{"negative base", func(tb *Tables) { tb.Base = -0.1 }},
		{"nan base", func(tb *Tables) { tb.Base = math.NaN() }},
		{"negative fire multiplier", func(tb *Tables) { tb.FireRisk[2] = -1 }},
		{"reduction above one", func(tb *Tables) { tb.ProtectionReduction[0] = 1.2 }},
		{"negative limiting reduction", func(tb *Tables) { tb.LimitingReduction[3] = -0.2 }},
		{"fallback above one", func(tb *Tables) { tb.FallbackRate = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := DefaultTables()
			tt.mutate(&tb)
			if err := tb.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestScenarioTablesValidate(t *testing.T) {
	s := DefaultScenarioTables()
	s.Spread = map[string]float64{}
	if err := s.Validate(); err == nil {
		t.Error("expected error for empty spread table")
	}

	s = DefaultScenarioTables()
	s.Ignition["Ekstrem"] = 1.4
	if err := s.Validate(); err == nil {
		t.Error("expected error for factor above 1")
	}

	cfg := DefaultConfig()
	cfg.FireScenario = " "
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty fire scenario")
	}
}

func TestLookupChoice(t *testing.T) {
	table := DefaultScenarioTables().Ignition
	tests := []struct {
		choice string
		want   float64
		ok     bool
	}{
		{"Høy", 1.0, true},
		{"høy", 1.0, true},
		{" Middels ", 0.6, true},
		{"low", 0.2, true},
		{"HIGH", 1.0, true},
		{"", 0, false},
		{"Ekstrem", 0, false},
	}
	for _, tt := range tests {
		got, ok := lookupChoice(table, tt.choice)
		if ok != tt.ok || got != tt.want {
			t.Errorf("lookupChoice(%q) = %v, %v; want %v, %v", tt.choice, got, ok, tt.want, tt.ok)
		}
	}
}

func TestValidChoice(t *testing.T) {
	table := DefaultScenarioTables().Spread
	for _, c := range []string{"Liten", "stor", "large", "Middels"} {
		if !ValidChoice(table, c) {
			t.Errorf("ValidChoice(%q) = false", c)
		}
	}
	for _, c := range []string{"Hoy", "Lang", ""} {
		if ValidChoice(table, c) {
			t.Errorf("ValidChoice(%q) = true", c)
		}
	}
}

func TestLabelsOrderedByFactor(t *testing.T) {
	got := Labels(DefaultScenarioTables().Ignition)
	want := []string{"Lav", "Middels", "Høy"}
	if len(got) != len(want) {
		t.Fatalf("Labels = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Labels = %v, want %v", got, want)
			break
		}
	}
}
