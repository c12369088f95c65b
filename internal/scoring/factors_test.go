package scoring

import (
	"math"
	"testing"

	"github.com/MikeSquared-Agency/Kumule/internal/store"
)

func TestMachineRateBounded(t *testing.T) {
	tables := DefaultTables()
	for f := store.LevelNone; f <= store.LevelHigh; f++ {
		for l := store.LevelNone; l <= store.LevelHigh; l++ {
			for p := store.LevelNone; p <= store.LevelHigh; p++ {
				for e := store.LevelNone; e <= store.LevelHigh; e++ {
					rec := &store.Record{FireRisk: f, LimitingFactors: l, Protection: p, Exposure: e}
					r := MachineRate(rec, tables)
					if r.Rate < 0 || r.Rate > 1 {
						t.Fatalf("rate %v out of bounds for f=%d l=%d p=%d e=%d", r.Rate, f, l, p, e)
					}
					if r.Fallback {
						t.Fatalf("unexpected fallback for f=%d l=%d p=%d e=%d", f, l, p, e)
					}
				}
			}
		}
	}
}

func TestMachineRateFormula(t *testing.T) {
	rec := &store.Record{FireRisk: 2, Exposure: 1, Protection: 1, LimitingFactors: 0}
	r := MachineRate(rec, DefaultTables())

	want := 0.6 * 1.35 * 1.15 * (1 - 0.30) * (1 - 0.05)
	if math.Abs(r.Rate-want) > 1e-12 {
		t.Errorf("expected %v, got %v", want, r.Rate)
	}
	if len(r.Factors) != 5 {
		t.Fatalf("expected 5 factors, got %d", len(r.Factors))
	}
	if last := r.Factors[len(r.Factors)-1]; math.Abs(last.Running-want) > 1e-12 {
		t.Errorf("running product %v, want %v", last.Running, want)
	}
	if r.Factors[1].Name != "fire_risk" || r.Factors[1].Reason != "Middels" {
		t.Errorf("unexpected fire factor %+v", r.Factors[1])
	}
}

func TestMachineRateUnsetLevels(t *testing.T) {
	r := MachineRate(&store.Record{}, DefaultTables())
	want := 0.6 * 1.0 * 1.30 * 0.60 * 0.95
	if math.Abs(r.Rate-want) > 1e-12 {
		t.Errorf("expected %v for unset levels, got %v", want, r.Rate)
	}
}

func TestMachineRateClamped(t *testing.T) {
	tables := DefaultTables()
	tables.Base = 2.0
	r := MachineRate(&store.Record{FireRisk: 3}, tables)
	if r.Rate != 1.0 {
		t.Errorf("expected clamp to 1.0, got %v", r.Rate)
	}
}

func TestMachineRateFallback(t *testing.T) {
	r := MachineRate(&store.Record{FireRisk: 5}, DefaultTables())
	if !r.Fallback || r.Rate != 0.30 {
		t.Errorf("expected fallback 0.30, got %v (fallback=%v)", r.Rate, r.Fallback)
	}

	r = MachineRate(&store.Record{Exposure: -1}, DefaultTables())
	if !r.Fallback || r.Rate != 0.30 {
		t.Errorf("expected fallback 0.30 for negative level, got %v", r.Rate)
	}
}

func TestScenarioSeverity(t *testing.T) {
	tables := DefaultScenarioTables()
	tests := []struct {
		name     string
		fire     *store.FireScenario
		want     float64
		fallback bool
	}{
		{"worst case", &store.FireScenario{Ignition: "Høy", Spread: "Stor", SuppressionDelay: "Lang"}, 1.0, false},
		{"medium", &store.FireScenario{Ignition: "Middels", Spread: "Middels", SuppressionDelay: "Middels"}, 0.6 * 0.8 * 0.8, false},
		{"best case", &store.FireScenario{Ignition: "Lav", Spread: "Liten", SuppressionDelay: "Kort"}, 0.2 * 0.4 * 0.4, false},
		{"english labels", &store.FireScenario{Ignition: "high", Spread: "large", SuppressionDelay: "long"}, 1.0, false},
		{"nil", nil, 1.0, true},
		{"partial", &store.FireScenario{Ignition: "Lav", Spread: "Liten"}, 1.0, true},
		{"unknown", &store.FireScenario{Ignition: "Lav", Spread: "Liten", SuppressionDelay: "Evig"}, 1.0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ScenarioSeverity(tt.fire, tables)
			if math.Abs(r.Rate-tt.want) > 1e-12 {
				t.Errorf("expected %v, got %v", tt.want, r.Rate)
			}
			if r.Fallback != tt.fallback {
				t.Errorf("expected fallback=%v, got %v", tt.fallback, r.Fallback)
			}
		})
	}
}

func TestLevelLabel(t *testing.T) {
	want := map[store.Level]string{0: "Ikke satt", 1: "Lav", 2: "Middels", 3: "Høy", 7: "Ikke satt"}
	for l, label := range want {
		if got := LevelLabel(l); got != label {
			t.Errorf("LevelLabel(%d) = %q, want %q", l, got, label)
		}
	}
}
