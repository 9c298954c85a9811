package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/openfroyo/pagecore/pkg/browser"
)

// Apply composes or narrows base. Combinator-specific arguments always win
// over the generic options base was resolved with; the rule does not depend
// on the strategy that produced base. Positional combinators never check the
// index against the match count: an out-of-range handle fails when used.
func (c *Core) Apply(ctx context.Context, base *Handle, comb Combinator, args CombinatorArgs) (h *Handle, err error) {
	ctx, done := c.step(ctx, "combine", comb.String(), "Apply "+comb.String(), Fields{
		"combinator": comb.String(),
		"base":       describeHandle(base),
	})
	defer func() { done(err) }()

	if base == nil || base.locator == nil {
		return nil, c.fail(ctx, NewResolutionError("combinator needs a base handle", nil).
			WithOperation(comb.String()), nil)
	}

	var l browser.Locator
	switch comb {
	case Identity:
		return base, nil

	case Filter:
		opts := preferSpecific(args.Filter, base.Options.Filter)
		if opts == nil {
			opts = &browser.FilterOptions{}
		}
		l = base.Filter(*opts)

	case And, Or:
		if args.Other == nil {
			return nil, c.fail(ctx, NewResolutionError(comb.String()+" needs a second lookup", nil).
				WithCode(ErrCodeInvalidOptions).
				WithOperation(comb.String()).
				WithTarget(base.Describe()), nil)
		}
		if base.scope == nil {
			return nil, c.fail(ctx, NewResolutionError("base handle has no scope to resolve the second lookup in", nil).
				WithOperation(comb.String()).
				WithTarget(base.Describe()), nil)
		}
		other, serr := c.locateSub(ctx, base, base.scope, *args.Other, comb)
		if serr != nil {
			return nil, serr
		}
		if comb == And {
			l = base.And(other)
		} else {
			l = base.Or(other)
		}

	case Descendant:
		if args.Sub == nil {
			return nil, c.fail(ctx, NewResolutionError("descendant needs a sub lookup", nil).
				WithCode(ErrCodeInvalidOptions).
				WithOperation(comb.String()).
				WithTarget(base.Describe()), nil)
		}
		sub, serr := c.locateSub(ctx, base, base.locator, *args.Sub, comb)
		if serr != nil {
			return nil, serr
		}
		strategy := base.Strategy
		if args.Sub.Strategy != nil {
			strategy = args.Sub.Strategy
		}
		return &Handle{
			locator:  sub,
			Strategy: strategy,
			Options:  *preferSpecific(args.Sub.Options, &base.Options),
			scope:    base.locator,
		}, nil

	case Nth:
		idx := preferSpecific(args.Index, base.Options.Index)
		if idx == nil {
			return nil, c.fail(ctx, NewResolutionError("nth needs an index", nil).
				WithCode(ErrCodeInvalidOptions).
				WithOperation(comb.String()).
				WithTarget(base.Describe()), nil)
		}
		if *idx < 0 {
			return nil, c.fail(ctx, NewResolutionError(fmt.Sprintf("nth index %d is negative", *idx), nil).
				WithCode(ErrCodeInvalidOptions).
				WithOperation(comb.String()).
				WithTarget(base.Describe()), nil)
		}
		l = base.Nth(*idx)

	case First:
		l = base.First()

	case Last:
		l = base.Last()

	default:
		return nil, c.fail(ctx, NewResolutionError(fmt.Sprintf("unknown combinator %s", comb), nil).
			WithCode(ErrCodeInvalidOptions).
			WithTarget(base.Describe()), nil)
	}

	h = base.derive(l)
	c.sink.Info(ctx, "Combinator applied", Fields{
		"combinator": comb.String(),
		"locator":    h.Describe(),
	})
	return h, nil
}

// locateSub resolves the second lookup of and, or and descendant inside scope.
// A missing strategy or options record falls back to base's.
func (c *Core) locateSub(ctx context.Context, base *Handle, scope browser.Scope, sub SubRequest, comb Combinator) (browser.Locator, error) {
	strategy := base.Strategy
	if sub.Strategy != nil {
		strategy = sub.Strategy
	}
	if strategy == nil {
		return nil, c.fail(ctx, NewResolutionError("no lookup strategy for "+comb.String(), nil).
			WithCode(ErrCodeUnknownStrategy).
			WithOperation(comb.String()).
			WithTarget(base.Describe()), nil)
	}
	if strings.TrimSpace(sub.Value) == "" {
		return nil, c.fail(ctx, NewResolutionError("selector value is empty", nil).
			WithCode(ErrCodeEmptySelector).
			WithOperation(strategy.Name()).
			WithTarget(base.Describe()), Fields{"combinator": comb.String()})
	}
	opts := preferSpecific(sub.Options, &base.Options)
	return strategy.locate(scope, sub.Value, *opts), nil
}

func describeHandle(h *Handle) string {
	if h == nil || h.locator == nil {
		return "<nil>"
	}
	return h.Describe()
}
