package infra

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"eso_go/internal/domain"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds every application setting.
// LoadConfig reads it from YAML, then applies environment overrides.
type Config struct {
	App struct {
		Name    string `yaml:"name" validate:"required"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Valuation struct {
		DefaultSteps    int   `yaml:"default_steps" validate:"min=1"`
		MaxSteps        int   `yaml:"max_steps" validate:"min=1,max=5000"`
		Workers         int   `yaml:"workers" validate:"min=1,max=256"`
		ReportPrecision int32 `yaml:"report_precision" validate:"min=0,max=12"`
	} `yaml:"valuation"`

	Server struct {
		Addr            string `yaml:"addr" validate:"required"`
		ReadTimeoutSec  int    `yaml:"read_timeout_sec" validate:"min=1"`
		StreamReadLimit int64  `yaml:"stream_read_limit" validate:"min=256"`
	} `yaml:"server"`

	Storage struct {
		Path string `yaml:"path"` // empty: user config dir
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// DefaultConfig returns the settings used when no file is present
func DefaultConfig() *Config {
	var cfg Config
	cfg.App.Name = "eso-valuation"
	cfg.App.Version = "dev"
	cfg.Valuation.DefaultSteps = 100
	cfg.Valuation.MaxSteps = 2000
	cfg.Valuation.Workers = 4
	cfg.Valuation.ReportPrecision = 4
	cfg.Server.Addr = "localhost:8080"
	cfg.Server.ReadTimeoutSec = 10
	cfg.Server.StreamReadLimit = 64 * 1024
	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"
	return &cfg
}

// LoadConfig reads and parses the YAML file at path on top of DefaultConfig.
// A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &domain.ConfigError{Field: path, Err: err}
		}
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

var validate = validator.New()

// Validate checks configuration validity
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &domain.ConfigError{Field: verrs[0].Namespace(), Err: verrs[0]}
		}
		return &domain.ConfigError{Field: "config", Err: err}
	}

	if c.Valuation.DefaultSteps > c.Valuation.MaxSteps {
		return &domain.ConfigError{
			Field: "valuation.default_steps",
			Err:   fmt.Errorf("default steps %d exceed max steps %d", c.Valuation.DefaultSteps, c.Valuation.MaxSteps),
		}
	}

	return nil
}

// overrideWithEnv overwrites settings from environment variables when present.
func overrideWithEnv(cfg *Config) {
	if path := os.Getenv("ESO_STORAGE_PATH"); path != "" {
		cfg.Storage.Path = path
	}
	if addr := os.Getenv("ESO_SERVER_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if level := os.Getenv("ESO_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if workers := os.Getenv("ESO_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil {
			cfg.Valuation.Workers = n
		}
	}
}
