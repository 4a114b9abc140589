// File: internal/config/config.go
package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Engine() EngineConfig
	Analysis() AnalysisConfig
	Output() OutputConfig

	// Setters used by CLI flag overrides.
	SetEngineWorkerConcurrency(int)
	SetOutputFormat(string)
	SetOutputStream(bool)
	SetOutputPath(string)
	SetAnalysisMinRank(int)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	EngineCfg   EngineConfig   `mapstructure:"engine" yaml:"engine"`
	AnalysisCfg AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	OutputCfg   OutputConfig   `mapstructure:"output" yaml:"output"`
}

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Engine() EngineConfig     { return c.EngineCfg }
func (c *Config) Analysis() AnalysisConfig { return c.AnalysisCfg }
func (c *Config) Output() OutputConfig     { return c.OutputCfg }

func (c *Config) SetEngineWorkerConcurrency(w int) { c.EngineCfg.WorkerConcurrency = w }
func (c *Config) SetOutputFormat(f string)         { c.OutputCfg.Format = f }
func (c *Config) SetOutputStream(b bool)           { c.OutputCfg.Stream = b }
func (c *Config) SetOutputPath(p string)           { c.OutputCfg.Path = p }
func (c *Config) SetAnalysisMinRank(r int)         { c.AnalysisCfg.MinRank = r }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// EngineConfig configures the method analysis worker pool and the streaming
// findings processor.
type EngineConfig struct {
	WorkerConcurrency     int           `mapstructure:"worker_concurrency" yaml:"worker_concurrency"`
	FindingsBatchSize     int           `mapstructure:"findings_batch_size" yaml:"findings_batch_size"`
	FindingsFlushInterval time.Duration `mapstructure:"findings_flush_interval" yaml:"findings_flush_interval"`
}

// AnalysisConfig selects rules and filters findings.
type AnalysisConfig struct {
	// DisabledRules are rule IDs removed from the registry before a run.
	DisabledRules []string `mapstructure:"disabled_rules" yaml:"disabled_rules"`
	// SuppressedKinds are finding kind names that are never emitted.
	SuppressedKinds []string `mapstructure:"suppressed_kinds" yaml:"suppressed_kinds"`
	// MinRank drops emitted findings ranked below it.
	MinRank int `mapstructure:"min_rank" yaml:"min_rank"`
	// CheckAssertions enables assert_warning / assert_no_warning checks from
	// tree documents.
	CheckAssertions bool `mapstructure:"check_assertions" yaml:"check_assertions"`
}

// Output formats.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatSARIF = "sarif"
)

// OutputConfig controls how results are printed.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	// Path is the report file. Empty means stdout.
	Path string `mapstructure:"path" yaml:"path"`
	// Stream writes findings as JSON lines while the run is in progress.
	Stream bool `mapstructure:"stream" yaml:"stream"`
}

// NewDefaultConfig returns a configuration populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "bugscan")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Engine --
	v.SetDefault("engine.worker_concurrency", 8)
	v.SetDefault("engine.findings_batch_size", 100)
	v.SetDefault("engine.findings_flush_interval", "2s")

	// -- Analysis --
	v.SetDefault("analysis.disabled_rules", []string{})
	v.SetDefault("analysis.suppressed_kinds", []string{})
	v.SetDefault("analysis.min_rank", 0)
	v.SetDefault("analysis.check_assertions", true)

	// -- Output --
	v.SetDefault("output.format", FormatText)
	v.SetDefault("output.path", "")
	v.SetDefault("output.stream", false)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.EngineCfg.WorkerConcurrency <= 0 {
		return fmt.Errorf("engine.worker_concurrency must be a positive integer")
	}
	if c.EngineCfg.FindingsBatchSize <= 0 {
		return fmt.Errorf("engine.findings_batch_size must be a positive integer")
	}
	if c.EngineCfg.FindingsFlushInterval <= 0 {
		return fmt.Errorf("engine.findings_flush_interval must be a positive duration")
	}
	if c.AnalysisCfg.MinRank < 0 {
		return fmt.Errorf("analysis.min_rank must not be negative")
	}
	if !slices.Contains([]string{FormatText, FormatJSON, FormatSARIF}, c.OutputCfg.Format) {
		return fmt.Errorf("output.format must be %q, %q or %q, got %q", FormatText, FormatJSON, FormatSARIF, c.OutputCfg.Format)
	}
	return nil
}
