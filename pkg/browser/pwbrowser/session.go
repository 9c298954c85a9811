// Package pwbrowser backs the browser capability boundary with
// playwright-go. A Session owns the Playwright driver and one browser; every
// page it opens gets a fresh browser context, so scenarios never share
// cookies or storage.
package pwbrowser

import (
	"errors"
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/openfroyo/pagecore/pkg/config"
)

// Install downloads the Playwright driver and the given browsers. An empty
// list installs the default set.
func Install(browsers ...string) error {
	return playwright.Install(&playwright.RunOptions{Browsers: browsers})
}

// Session is a running Playwright driver with one launched browser.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	cfg     config.BrowserConfig

	mu     sync.Mutex
	closed bool
}

// Launch starts the driver and the configured browser engine.
func Launch(cfg config.BrowserConfig) (*Session, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	var bt playwright.BrowserType
	switch cfg.Engine {
	case "", "chromium":
		bt = pw.Chromium
	case "firefox":
		bt = pw.Firefox
	case "webkit":
		bt = pw.WebKit
	default:
		_ = pw.Stop()
		return nil, fmt.Errorf("unknown browser engine %q", cfg.Engine)
	}

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Channel:  optString(cfg.Channel),
	}
	if cfg.SlowMo > 0 {
		opts.SlowMo = ms(cfg.SlowMo)
	}
	b, err := bt.Launch(opts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch %s: %w", bt.Name(), err)
	}
	return &Session{pw: pw, browser: b, cfg: cfg}, nil
}

// NewPage opens a page in a fresh browser context. A zero width or height
// falls back to the configured viewport.
func (s *Session) NewPage(width, height int) (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("session is closed")
	}

	if width == 0 || height == 0 {
		width, height = s.cfg.Viewport.Width, s.cfg.Viewport.Height
	}
	opts := playwright.BrowserNewContextOptions{
		AcceptDownloads: playwright.Bool(true),
		BaseURL:         optString(s.cfg.BaseURL),
		Locale:          optString(s.cfg.Locale),
		TimezoneId:      optString(s.cfg.Timezone),
	}
	if width > 0 && height > 0 {
		opts.Viewport = &playwright.Size{Width: width, Height: height}
	}
	bc, err := s.browser.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	pg, err := bc.NewPage()
	if err != nil {
		_ = bc.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	p := Wrap(pg)
	p.owned = bc
	return p, nil
}

// Close closes the browser and stops the driver.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return errors.Join(s.browser.Close(), s.pw.Stop())
}
