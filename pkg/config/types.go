package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/openfroyo/pagecore/pkg/telemetry"
)

// Config is a pagecore run configuration.
type Config struct {
	Browser   BrowserConfig    `yaml:"browser" json:"browser"`
	Timeouts  TimeoutsConfig   `yaml:"timeouts" json:"timeouts"`
	Snapshots SnapshotsConfig  `yaml:"snapshots" json:"snapshots"`
	Journal   JournalConfig    `yaml:"journal" json:"journal"`
	Telemetry telemetry.Config `yaml:"telemetry" json:"telemetry" validate:"-"`

	// Source is the file the configuration was loaded from, empty for
	// defaults and inline content.
	Source string `yaml:"-" json:"-"`
}

// BrowserConfig selects and launches the browser.
type BrowserConfig struct {
	// Engine is the browser engine (chromium, firefox, webkit).
	Engine string `yaml:"engine" json:"engine" validate:"oneof=chromium firefox webkit"`

	// Headless runs the browser without a window.
	Headless bool `yaml:"headless" json:"headless"`

	// Channel picks a branded build such as "chrome" or "msedge".
	Channel string `yaml:"channel" json:"channel"`

	// SlowMo delays every driver operation.
	SlowMo time.Duration `yaml:"slowMo" json:"slowMo" validate:"gte=0"`

	Viewport Viewport `yaml:"viewport" json:"viewport"`

	// BaseURL is prefixed to relative scenario URLs.
	BaseURL string `yaml:"baseURL" json:"baseURL" validate:"omitempty,url"`

	Locale   string `yaml:"locale" json:"locale"`
	Timezone string `yaml:"timezone" json:"timezone"`
}

// Viewport is the page size in CSS pixels. Zero keeps the driver default.
type Viewport struct {
	Width  int `yaml:"width" json:"width" validate:"gte=0"`
	Height int `yaml:"height" json:"height" validate:"gte=0"`
}

// TimeoutsConfig holds the engine defaults applied when a step leaves its
// own timeout unset.
type TimeoutsConfig struct {
	Action     time.Duration `yaml:"action" json:"action" validate:"gte=0"`
	Navigation time.Duration `yaml:"navigation" json:"navigation" validate:"gte=0"`
	Assert     time.Duration `yaml:"assert" json:"assert" validate:"gte=0"`
	Wait       time.Duration `yaml:"wait" json:"wait" validate:"gte=0"`

	// CalendarMaxSteps caps calendar paging. Zero means no cap.
	CalendarMaxSteps int `yaml:"calendarMaxSteps" json:"calendarMaxSteps" validate:"gte=0"`
}

// SnapshotsConfig configures toMatchSnapshot baselines.
type SnapshotsConfig struct {
	Dir          string  `yaml:"dir" json:"dir" validate:"required"`
	Update       bool    `yaml:"update" json:"update"`
	MaxDiffRatio float64 `yaml:"maxDiffRatio" json:"maxDiffRatio" validate:"gte=0,lte=1"`
}

// JournalConfig configures the SQLite run journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path" validate:"required_if=Enabled true"`
}

// ValidationError represents a configuration error.
type ValidationError struct {
	// File is the source file where the error occurred.
	File string `json:"file,omitempty"`

	// Line is the line number where the error occurred.
	Line int `json:"line,omitempty"`

	// Column is the column number where the error occurred.
	Column int `json:"column,omitempty"`

	// Path is the configuration path (e.g., "timeouts.action").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d:%d", e.Line, e.Column)
		}
		b.WriteString(": ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// ValidationErrors is every problem found in one configuration.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}
