package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCUEParser_ParseInline(t *testing.T) {
	parser := NewCUEParser()

	tests := []struct {
		name      string
		content   string
		wantErr   string
		checkFunc func(*testing.T, *Config)
	}{
		{
			name: "valid config",
			content: `
browser: {
	engine:   "webkit"
	headless: true
}
timeouts: {
	action: "5s"
	wait:   "1m30s"
}
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				if cfg.Browser.Engine != "webkit" {
					t.Errorf("expected engine webkit, got %s", cfg.Browser.Engine)
				}
				if cfg.Timeouts.Action != 5*time.Second || cfg.Timeouts.Wait != 90*time.Second {
					t.Errorf("unexpected timeouts %+v", cfg.Timeouts)
				}
			},
		},
		{
			name: "references and defaults",
			content: `
_base: "5s"
timeouts: {
	action: _base
	assert: _base
}
snapshots: dir: "baselines"
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				if cfg.Timeouts.Assert != 5*time.Second {
					t.Errorf("expected assert 5s, got %v", cfg.Timeouts.Assert)
				}
				if cfg.Snapshots.Dir != "baselines" {
					t.Errorf("expected snapshot dir baselines, got %s", cfg.Snapshots.Dir)
				}
			},
		},
		{
			name:    "invalid CUE syntax",
			content: "browser: {\n\tengine: \"chromium\"\n",
			wantErr: "inline",
		},
		{
			name:    "unknown engine",
			content: `browser: engine: "netscape"`,
			wantErr: "browser.engine",
		},
		{
			name:    "malformed duration",
			content: `timeouts: action: "soon"`,
			wantErr: "timeouts.action",
		},
		{
			name:    "unknown key",
			content: `browsr: engine: "chromium"`,
			wantErr: "browsr",
		},
		{
			name:    "ratio out of range",
			content: `snapshots: maxDiffRatio: 1.5`,
			wantErr: "snapshots.maxDiffRatio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parser.ParseInline(tt.content)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatal("expected error")
				}
				var verrs ValidationErrors
				if !errors.As(err, &verrs) {
					t.Fatalf("expected ValidationErrors, got %T: %v", err, err)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error %q does not mention %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseInline() error = %v", err)
			}
			tt.checkFunc(t, cfg)
		})
	}
}

func TestCUEParser_ParseFiles(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.cue", `
browser: engine: "firefox"
timeouts: action: "10s"
`)
	ci := writeFile(t, dir, "ci.cue", `
browser: headless: true
journal: {
	enabled: true
	path:    "ci.db"
}
`)

	cfg, err := NewCUEParser().Parse([]string{base, ci})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Browser.Engine != "firefox" || !cfg.Browser.Headless {
		t.Errorf("Browser = %+v", cfg.Browser)
	}
	if !cfg.Journal.Enabled || cfg.Journal.Path != "ci.db" {
		t.Errorf("Journal = %+v", cfg.Journal)
	}
}

func TestCUEParser_ConflictingFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.cue", `browser: engine: "firefox"`)
	b := writeFile(t, dir, "b.cue", `browser: engine: "webkit"`)

	_, err := NewCUEParser().Parse([]string{a, b})
	if err == nil {
		t.Fatal("expected conflict error")
	}
	if !strings.Contains(err.Error(), "browser.engine") {
		t.Errorf("error %q does not name the conflicting field", err)
	}
}

func TestCUEParser_ErrorPositions(t *testing.T) {
	path := writeFile(t, t.TempDir(), "run.cue", "timeouts: {\n\taction: 5\n}\n")

	_, err := Load(path)
	var verrs ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	var found bool
	for _, e := range verrs {
		if e.Path == "timeouts.action" && e.Line > 0 {
			found = true
		}
	}
	if !found {
		t.Errorf("no positioned error for timeouts.action in %v", verrs)
	}
}

func TestCUEParser_NoSources(t *testing.T) {
	if _, err := NewCUEParser().Parse(nil); err == nil {
		t.Fatal("expected error for no sources")
	}
	if _, err := NewCUEParser().Parse([]string{filepath.Join(t.TempDir(), "missing.cue")}); err == nil {
		t.Fatal("expected error for missing source")
	}
}
