package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/pagecore/pkg/engine"
	"github.com/openfroyo/pagecore/pkg/telemetry"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	d := engine.DefaultDefaults()
	return &Config{
		Browser: BrowserConfig{
			Engine:   "chromium",
			Headless: true,
		},
		Timeouts: TimeoutsConfig{
			Action:     d.ActionTimeout,
			Navigation: 30 * time.Second,
			Assert:     d.AssertTimeout,
			Wait:       d.WaitTimeout,
		},
		Snapshots: SnapshotsConfig{
			Dir: "__snapshots__",
		},
		Journal: JournalConfig{
			Path: "pagecore.db",
		},
		Telemetry: *telemetry.DefaultConfig(),
	}
}

// Load reads a configuration file. Files ending in .cue are evaluated with
// CUE; everything else is read as YAML. Values not set in the file keep
// their defaults.
func Load(path string) (*Config, error) {
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		cfg, err := NewCUEParser().Parse([]string{path})
		if err != nil {
			return nil, err
		}
		cfg.Source = path
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Source = path
	return cfg, nil
}

// ParseYAML decodes YAML over the defaults and validates the result.
func ParseYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks every field constraint and returns ValidationErrors.
func (c *Config) Validate() error {
	var errs ValidationErrors
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("failed to validate config: %w", err)
		}
		for _, fe := range verrs {
			errs = append(errs, ValidationError{
				File:    c.Source,
				Path:    strings.TrimPrefix(fe.Namespace(), "Config."),
				Message: fmt.Sprintf("failed %q (value %v)", fe.Tag(), fe.Value()),
			})
		}
	}
	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, ValidationError{File: c.Source, Path: "telemetry", Message: err.Error()})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// EngineOptions returns the core options this configuration implies.
func (c *Config) EngineOptions() []engine.Option {
	return []engine.Option{
		engine.WithDefaults(engine.Defaults{
			ActionTimeout:    c.Timeouts.Action,
			AssertTimeout:    c.Timeouts.Assert,
			WaitTimeout:      c.Timeouts.Wait,
			CalendarMaxSteps: c.Timeouts.CalendarMaxSteps,
		}),
		engine.WithSnapshotDir(c.Snapshots.Dir),
	}
}
