package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	KB         KBConfig         `yaml:"kb" mapstructure:"kb"`
	Agents     AgentsConfig     `yaml:"agents" mapstructure:"agents"`
	Ingest     IngestConfig     `yaml:"ingest" mapstructure:"ingest"`
	Facts      FactsConfig      `yaml:"facts" mapstructure:"facts"`
	Coverage   CoverageConfig   `yaml:"coverage" mapstructure:"coverage"`
	Compliance ComplianceConfig `yaml:"compliance" mapstructure:"compliance"`
	Draft      DraftConfig      `yaml:"draft" mapstructure:"draft"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds content-generation API settings.
type AnthropicConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	Model     string  `yaml:"model" mapstructure:"model"`
	MaxTokens int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RPS       float64 `yaml:"rps" mapstructure:"rps"`
}

// KBConfig holds knowledge-base / retrieval service settings.
type KBConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AgentsConfig holds the orchestrator service settings. An empty base URL
// disables the orchestrated path and every run executes via local fallback.
type AgentsConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// IngestConfig configures bundle ingestion.
type IngestConfig struct {
	FetchTimeoutSecs int `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
	MaxEntryBytes    int `yaml:"max_entry_bytes" mapstructure:"max_entry_bytes"`
}

// FactsConfig configures the fact miner. Confidence clamps and boosts are
// policy knobs, kept overridable rather than inlined.
type FactsConfig struct {
	ConfidenceFloor float64 `yaml:"confidence_floor" mapstructure:"confidence_floor"`
	ConfidenceCeil  float64 `yaml:"confidence_ceil" mapstructure:"confidence_ceil"`
	EvidenceBoost   float64 `yaml:"evidence_boost" mapstructure:"evidence_boost"`
	ParseBoost      float64 `yaml:"parse_boost" mapstructure:"parse_boost"`
}

// CoverageConfig configures scoring and fix-next ranking.
type CoverageConfig struct {
	EffortMissing float64 `yaml:"effort_missing" mapstructure:"effort_missing"`
	EffortStubbed float64 `yaml:"effort_stubbed" mapstructure:"effort_stubbed"`
	ShouldWeight  float64 `yaml:"should_weight" mapstructure:"should_weight"`
}

// ComplianceConfig configures the format simulator.
type ComplianceConfig struct {
	BaseWordsPerPage  int     `yaml:"base_words_per_page" mapstructure:"base_words_per_page"`
	FloorWordsPerPage int     `yaml:"floor_words_per_page" mapstructure:"floor_words_per_page"`
	DefaultFontSize   float64 `yaml:"default_font_size" mapstructure:"default_font_size"`
	DefaultSpacing    string  `yaml:"default_spacing" mapstructure:"default_spacing"`
	DefaultMargins    string  `yaml:"default_margins" mapstructure:"default_margins"`
}

// DraftConfig configures section drafting.
type DraftConfig struct {
	MaxSlots int `yaml:"max_slots" mapstructure:"max_slots"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROPOSAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "proposal.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("anthropic.rps", 2.0)
	v.SetDefault("ingest.fetch_timeout_secs", 30)
	v.SetDefault("ingest.max_entry_bytes", 4<<20)
	v.SetDefault("facts.confidence_floor", 0.5)
	v.SetDefault("facts.confidence_ceil", 0.95)
	v.SetDefault("facts.evidence_boost", 0.15)
	v.SetDefault("facts.parse_boost", 0.1)
	v.SetDefault("coverage.effort_missing", 0.6)
	v.SetDefault("coverage.effort_stubbed", 0.4)
	v.SetDefault("coverage.should_weight", 0.5)
	v.SetDefault("compliance.base_words_per_page", 500)
	v.SetDefault("compliance.floor_words_per_page", 150)
	v.SetDefault("compliance.default_font_size", 11)
	v.SetDefault("compliance.default_spacing", "single")
	v.SetDefault("compliance.default_margins", "normal")
	v.SetDefault("draft.max_slots", 6)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
