package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration.
// Analysis inputs (indicators, countries, years) are constants and are not
// part of Config.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Source    SourceConfig    `yaml:"source" envconfig:"SOURCE"`
	Output    OutputConfig    `yaml:"output" envconfig:"OUTPUT"`
	Analysis  AnalysisConfig  `yaml:"analysis" envconfig:"ANALYSIS"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"eq=json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required_unless=Output console"`
}

// SourceConfig contains settings for the statistical data source
type SourceConfig struct {
	BaseURL      string        `yaml:"base_url" envconfig:"BASE_URL" validate:"required,url"`
	PerPage      int           `yaml:"per_page" envconfig:"PER_PAGE" validate:"gte=1,lte=32500"`
	HTTPTimeout  time.Duration `yaml:"http_timeout" envconfig:"HTTP_TIMEOUT" validate:"gt=0"`
	RequestRate  float64       `yaml:"request_rate" envconfig:"REQUEST_RATE" validate:"gt=0"`
	RequestBurst int           `yaml:"request_burst" envconfig:"REQUEST_BURST" validate:"gte=1"`
}

// OutputConfig contains output location and rendering settings
type OutputConfig struct {
	Root      string `yaml:"root" envconfig:"ROOT" validate:"required"`
	FigureDPI int    `yaml:"figure_dpi" envconfig:"FIGURE_DPI" validate:"gte=72,lte=1200"`
	Workbook  bool   `yaml:"workbook" envconfig:"WORKBOOK"`
}

// AnalysisConfig contains tunables of the descriptive analysis
type AnalysisConfig struct {
	MaxLag int `yaml:"max_lag" envconfig:"MAX_LAG" validate:"gte=0,lte=15"`
}

// TelemetryConfig toggles tracing and metrics files for a run
type TelemetryConfig struct {
	Tracing bool `yaml:"tracing" envconfig:"TRACING"`
	Metrics bool `yaml:"metrics" envconfig:"METRICS"`
}

// Load loads configuration from defaults, an optional YAML file and
// environment variables (INEQ_*), in increasing order of precedence.
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom is Load with an explicit config file path. An empty path skips the
// file layer.
func LoadFrom(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			if err := loadFromFile(configFile, cfg); err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	// Fields are only overwritten when the variable is set; no default tags
	// are used so the file layer is preserved.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays YAML settings onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// normalize lower-cases enumerations and enforces JSON logs
func (c *Config) normalize() {
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Output = strings.ToLower(c.Logging.Output)
	c.Logging.Format = "json"
	c.Source.BaseURL = strings.TrimRight(c.Source.BaseURL, "/")
}

// Validate checks the configuration against its validation tags
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, formatValidationError(fe))
			}
			return fmt.Errorf("%s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// formatValidationError formats a validation error into a readable message
func formatValidationError(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required", "required_unless":
		return fmt.Sprintf("%s is required", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if explicit := os.Getenv(EnvConfigFile); explicit != "" {
		return explicit
	}

	locations := []string{
		DefaultConfigFile,
		"configs/" + DefaultConfigFile,
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Format:   "json",
			Output:   DefaultLogOutput,
			FilePath: DefaultLogFile,
		},
		Source: SourceConfig{
			BaseURL:      DefaultWorldBankURL,
			PerPage:      DefaultPerPage,
			HTTPTimeout:  DefaultHTTPTimeout,
			RequestRate:  DefaultRequestRate,
			RequestBurst: DefaultRequestBurst,
		},
		Output: OutputConfig{
			Root:      DefaultOutputRoot,
			FigureDPI: DefaultFigureDPI,
			Workbook:  true,
		},
		Analysis: AnalysisConfig{
			MaxLag: DefaultMaxLag,
		},
		Telemetry: TelemetryConfig{
			Tracing: true,
			Metrics: true,
		},
	}
}
