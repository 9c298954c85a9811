package engine

import (
	"fmt"
	"strings"

	"github.com/openfroyo/pagecore/pkg/browser"
)

// Strategy is a lookup method. The set is closed: the only implementations
// are the package-level values below.
type Strategy interface {
	// Name returns the canonical tag of the strategy.
	Name() string

	locate(scope browser.Scope, value string, opts LocateOptions) browser.Locator
}

// The closed set of strategies.
var (
	Role        Strategy = byRole{}
	Text        Strategy = byText{}
	Label       Strategy = byLabel{}
	Placeholder Strategy = byPlaceholder{}
	AltText     Strategy = byAltText{}
	Title       Strategy = byTitle{}
	TestID      Strategy = byTestID{}
	RawSelector Strategy = byRawSelector{}
)

// Strategies lists every strategy in a stable order.
func Strategies() []Strategy {
	return []Strategy{Role, Text, Label, Placeholder, AltText, Title, TestID, RawSelector}
}

type byRole struct{}

func (byRole) Name() string { return "role" }

func (byRole) locate(scope browser.Scope, value string, opts LocateOptions) browser.Locator {
	return scope.GetByRole(value, opts.Role)
}

type byText struct{}

func (byText) Name() string { return "text" }

func (byText) locate(scope browser.Scope, value string, opts LocateOptions) browser.Locator {
	return scope.GetByText(value, opts.Text)
}

type byLabel struct{}

func (byLabel) Name() string { return "label" }

func (byLabel) locate(scope browser.Scope, value string, opts LocateOptions) browser.Locator {
	return scope.GetByLabel(value, opts.Text)
}

type byPlaceholder struct{}

func (byPlaceholder) Name() string { return "placeholder" }

func (byPlaceholder) locate(scope browser.Scope, value string, opts LocateOptions) browser.Locator {
	return scope.GetByPlaceholder(value, opts.Text)
}

type byAltText struct{}

func (byAltText) Name() string { return "altText" }

func (byAltText) locate(scope browser.Scope, value string, opts LocateOptions) browser.Locator {
	return scope.GetByAltText(value, opts.Text)
}

type byTitle struct{}

func (byTitle) Name() string { return "title" }

func (byTitle) locate(scope browser.Scope, value string, opts LocateOptions) browser.Locator {
	return scope.GetByTitle(value, opts.Text)
}

type byTestID struct{}

func (byTestID) Name() string { return "testId" }

func (byTestID) locate(scope browser.Scope, value string, _ LocateOptions) browser.Locator {
	return scope.GetByTestID(value)
}

type byRawSelector struct{}

func (byRawSelector) Name() string { return "locator" }

func (byRawSelector) locate(scope browser.Scope, value string, opts LocateOptions) browser.Locator {
	return scope.Locator(value, opts.Selector)
}

var strategyTags = map[string]Strategy{
	"role":        Role,
	"text":        Text,
	"label":       Label,
	"placeholder": Placeholder,
	"alttext":     AltText,
	"alt":         AltText,
	"title":       Title,
	"testid":      TestID,
	"locator":     RawSelector,
	"selector":    RawSelector,
	"css":         RawSelector,
	"xpath":       RawSelector,
}

// ParseStrategy maps a strategy tag to its Strategy. Tags are matched
// case-insensitively, so "placeHolder" and "testId" are accepted.
func ParseStrategy(tag string) (Strategy, error) {
	if s, ok := strategyTags[strings.ToLower(strings.TrimSpace(tag))]; ok {
		return s, nil
	}
	return nil, NewResolutionError(fmt.Sprintf("unknown strategy %q", tag), nil).
		WithCode(ErrCodeUnknownStrategy).
		WithOperation(tag)
}
