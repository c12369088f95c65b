package scoring

import (
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/MikeSquared-Agency/Kumule/internal/store"
)

// Source names the rule in the precedence chain that produced a rate.
type Source string

const (
	SourceManualRate     Source = "manual rate"
	SourceManualAmount   Source = "manual amount (legacy)"
	SourceMachine        Source = "machine"
	SourceManualSeverity Source = "manual severity"
	SourceScenarioAuto   Source = "scenario auto"
)

// Path is the model a record was evaluated with.
type Path string

const (
	PathStandard Path = "standard"
	PathFire     Path = "fire"
)

// Result is the complete evaluation of one record for one scenario and year.
type Result struct {
	Scenario           string         `json:"scenario"`
	Path               Path           `json:"path"`
	Rate               float64        `json:"rate"`
	Source             Source         `json:"source"`
	Fallback           bool           `json:"fallback"`
	IsProject          bool           `json:"is_project"`
	ExposureFactor     float64        `json:"exposure_factor"`
	AdjustedSumInsured float64        `json:"adjusted_sum_insured"`
	EML                int64          `json:"eml"`
	EMLPD              int64          `json:"eml_pd"`
	EMLBI              int64          `json:"eml_bi"`
	Coverage           store.Coverage `json:"coverage"`
	Factors            []FactorResult `json:"factors"`
}

// Engine evaluates records against a fixed Config. It holds no mutable state
// and is safe for concurrent use.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// NewEngine validates cfg and returns an Engine.
func NewEngine(cfg Config, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, logger: logger}, nil
}

func (e *Engine) Config() Config { return e.cfg }

// IsFireScenario reports whether scenario is evaluated with the fire model.
func (e *Engine) IsFireScenario(scenario string) bool {
	return strings.EqualFold(strings.TrimSpace(scenario), e.cfg.FireScenario)
}

// Evaluate computes the effective rate, EML and PD/BI split of rec. An empty
// scenario means the record's own tag. rec is never modified.
func (e *Engine) Evaluate(rec *store.Record, scenario string, calcYear int) Result {
	if scenario == "" {
		scenario = rec.Scenario
	}

	res := Result{
		Scenario:       scenario,
		ExposureFactor: 1.0,
		Coverage:       ClassifyCoverage(rec),
	}

	if e.IsFireScenario(scenario) {
		res.Path = PathFire
		e.resolveSeverity(rec, &res)
	} else {
		res.Path = PathStandard
		e.resolveRate(rec, &res)
	}

	res.IsProject = IsProject(rec, e.cfg.ProjectKeywords)
	if res.IsProject {
		res.ExposureFactor = ProjectFactor(rec.Project, calcYear)
	}
	res.AdjustedSumInsured = rec.SumInsured * res.ExposureFactor
	res.EML = roundAmount(res.AdjustedSumInsured * res.Rate)

	switch res.Coverage {
	case store.CoverageBI:
		res.EMLBI = res.EML
	default:
		res.EMLPD = res.EML
	}

	if res.Fallback {
		e.logger.Debug("rate fell back to default", "path", res.Path, "rate", res.Rate)
	}
	return res
}

// resolveRate applies the standard precedence: rate override, then the legacy
// amount override, then the machine formula.
func (e *Engine) resolveRate(rec *store.Record, res *Result) {
	machine := MachineRate(rec, e.cfg.Tables)
	res.Factors = machine.Factors

	switch {
	case rec.RateOverride.Enabled:
		res.Rate = clamp(nonNegative(rec.RateOverride.Value), 0, 1)
		res.Source = SourceManualRate
	case rec.AmountOverride.Enabled:
		// Zero or negative sum insured gives rate 0 whatever the amount.
		if rec.SumInsured > 0 {
			res.Rate = clamp(nonNegative(rec.AmountOverride.Value)/rec.SumInsured, 0, 1)
		}
		res.Source = SourceManualAmount
	default:
		res.Rate = machine.Rate
		res.Fallback = machine.Fallback
		res.Source = SourceMachine
	}
}

// resolveSeverity applies the fire scenario precedence. A manual severity is
// only bounded below, so a loss above the sum insured can be expressed.
func (e *Engine) resolveSeverity(rec *store.Record, res *Result) {
	auto := ScenarioSeverity(rec.Fire, e.cfg.Scenario)
	res.Factors = auto.Factors

	if rec.SeverityOverride.Enabled {
		res.Rate = nonNegative(rec.SeverityOverride.Value)
		res.Source = SourceManualSeverity
		return
	}
	res.Rate = auto.Rate
	res.Fallback = auto.Fallback
	res.Source = SourceScenarioAuto
}

// roundAmount rounds half to even, the rounding used by earlier EML sheets.
func roundAmount(v float64) int64 {
	if !finite(v) {
		return 0
	}
	return decimal.NewFromFloat(v).RoundBank(0).IntPart()
}
