package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/Kumule/internal/scoring"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Hermes   HermesConfig   `yaml:"hermes"`
	Import   ImportConfig   `yaml:"import"`
	Engine   EngineConfig   `yaml:"engine"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port        int `yaml:"port"`
	MetricsPort int `yaml:"metrics_port"`
	// DefaultUser is recorded as author when a request carries no X-Kumule-User header.
	DefaultUser string `yaml:"default_user"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
	// RateLimit is requests per minute per user; 0 disables limiting.
	RateLimit int `yaml:"rate_limit"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "file" or "postgres"
	Path   string `yaml:"path"`
	URL    string `yaml:"url"`
	Name   string `yaml:"name"`
}

type HermesConfig struct {
	URL string `yaml:"url"`
}

type ImportConfig struct {
	// Columns maps each target field to the header names accepted for it.
	Columns   map[string][]string `yaml:"columns"`
	Required  []string            `yaml:"required"`
	Scenarios []string            `yaml:"scenarios"`
}

type EngineConfig struct {
	Base                float64            `yaml:"base"`
	FireRisk            []float64          `yaml:"fire_risk"`
	Exposure            []float64          `yaml:"exposure"`
	ProtectionReduction []float64          `yaml:"protection_reduction"`
	LimitingReduction   []float64          `yaml:"limiting_reduction"`
	FallbackRate        float64            `yaml:"fallback_rate"`
	FireScenario        string             `yaml:"fire_scenario"`
	Ignition            map[string]float64 `yaml:"ignition"`
	Spread              map[string]float64 `yaml:"spread"`
	SuppressionDelay    map[string]float64 `yaml:"suppression_delay"`
	FallbackSeverity    float64            `yaml:"fallback_severity"`
	ProjectKeywords     []string           `yaml:"project_keywords"`
	// CalcYear is the reference year for project exposure; 0 means the current year.
	CalcYear int `yaml:"calc_year"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ScoringConfig converts the engine section into the engine's own config.
func (e EngineConfig) ScoringConfig() (scoring.Config, error) {
	var sc scoring.Config
	tables := map[string]struct {
		src []float64
		dst *[4]float64
	}{
		"fire_risk":            {e.FireRisk, &sc.Tables.FireRisk},
		"exposure":             {e.Exposure, &sc.Tables.Exposure},
		"protection_reduction": {e.ProtectionReduction, &sc.Tables.ProtectionReduction},
		"limiting_reduction":   {e.LimitingReduction, &sc.Tables.LimitingReduction},
	}
	for name, t := range tables {
		if len(t.src) != 4 {
			return scoring.Config{}, fmt.Errorf("engine.%s must have 4 entries, got %d", name, len(t.src))
		}
		copy(t.dst[:], t.src)
	}
	sc.Tables.Base = e.Base
	sc.Tables.FallbackRate = e.FallbackRate
	sc.Scenario = scoring.ScenarioTables{
		Ignition:         e.Ignition,
		Spread:           e.Spread,
		SuppressionDelay: e.SuppressionDelay,
		FallbackSeverity: e.FallbackSeverity,
	}
	sc.FireScenario = e.FireScenario
	sc.ProjectKeywords = e.ProjectKeywords

	if err := sc.Validate(); err != nil {
		return scoring.Config{}, err
	}
	return sc, nil
}

func defaults() *Config {
	sc := scoring.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
			MaxUploadMB: 20,
			RateLimit:   600,
		},
		Database: DatabaseConfig{
			Driver: "file",
			Path:   "risiko_db.json",
			Name:   "default",
		},
		Import: ImportConfig{
			Columns: map[string][]string{
				"kumulenr":    {"kumulenr", "kumule", "kumulesone"},
				"risikonr":    {"risikonr", "risiko"},
				"forsnr":      {"forsnr", "polisenr"},
				"adresse":     {"adresse"},
				"kundenavn":   {"kundenavn", "kunde"},
				"tariffsum":   {"tariffsum", "sum_forsikring", "forsikringssum"},
				"postnummer":  {"postnummer", "postnr"},
				"kommune":     {"kommune"},
				"beskrivelse": {"beskrivelse"},
			},
			Required:  []string{"kumulenr", "risikonr"},
			Scenarios: []string{"Brann", "Skred", "Flom", "Annet"},
		},
		Engine: EngineConfig{
			Base:                sc.Tables.Base,
			FireRisk:            sc.Tables.FireRisk[:],
			Exposure:            sc.Tables.Exposure[:],
			ProtectionReduction: sc.Tables.ProtectionReduction[:],
			LimitingReduction:   sc.Tables.LimitingReduction[:],
			FallbackRate:        sc.Tables.FallbackRate,
			FireScenario:        sc.FireScenario,
			Ignition:            sc.Scenario.Ignition,
			Spread:              sc.Scenario.Spread,
			SuppressionDelay:    sc.Scenario.SuppressionDelay,
			FallbackSeverity:    sc.Scenario.FallbackSeverity,
			ProjectKeywords:     sc.ProjectKeywords,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	switch cfg.Database.Driver {
	case "file", "postgres":
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
	if cfg.Database.Driver == "postgres" && cfg.Database.URL == "" {
		return nil, fmt.Errorf("database.url is required for the postgres driver")
	}
	if len(cfg.Import.Scenarios) == 0 {
		return nil, fmt.Errorf("import.scenarios must name at least one scenario")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("KUMULE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("KUMULE_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("KUMULE_DEFAULT_USER"); v != "" {
		cfg.Server.DefaultUser = v
	}
	if v := os.Getenv("KUMULE_DB_DRIVER"); v != "" {
		cfg.Database.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("KUMULE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("KUMULE_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("KUMULE_HERMES_URL"); v != "" {
		cfg.Hermes.URL = v
	}
	if v := os.Getenv("KUMULE_FIRE_SCENARIO"); v != "" {
		cfg.Engine.FireScenario = v
	}
	if v := os.Getenv("KUMULE_CALC_YEAR"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.CalcYear = n
		}
	}
	if v := os.Getenv("KUMULE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("KUMULE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
