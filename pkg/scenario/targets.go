package scenario

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/openfroyo/pagecore/pkg/browser"
	"github.com/openfroyo/pagecore/pkg/engine"
)

// resolve turns a target spec into a handle on the current page.
func (x *execution) resolve(ctx context.Context, spec *TargetSpec) (*engine.Handle, error) {
	strategy, err := engine.ParseStrategy(spec.Strategy)
	if err != nil {
		return nil, err
	}
	opts, err := x.locateOptions(ctx, spec.Options)
	if err != nil {
		return nil, err
	}
	comb, err := engine.ParseCombinator(spec.Combinator)
	if err != nil {
		return nil, err
	}

	req := engine.ResolutionRequest{
		Strategy:       strategy,
		Value:          x.expand(spec.Value),
		Options:        opts,
		Frame:          spec.Frame,
		Combinator:     comb,
		RequireVisible: spec.RequireVisible,
	}
	req.Args.Index = spec.Index
	if spec.Filter != nil {
		if req.Args.Filter, err = x.filter(ctx, spec.Filter); err != nil {
			return nil, err
		}
	}
	if spec.Other != nil {
		if req.Args.Other, err = x.sub(ctx, spec.Other); err != nil {
			return nil, err
		}
	}
	if spec.Sub != nil {
		if req.Args.Sub, err = x.sub(ctx, spec.Sub); err != nil {
			return nil, err
		}
	}
	return x.core.Resolve(ctx, x.page, req)
}

func (x *execution) locateOptions(ctx context.Context, m map[string]interface{}) (engine.LocateOptions, error) {
	var opts engine.LocateOptions
	rest := make(map[string]interface{}, len(m))
	for k, v := range m {
		rest[k] = v
	}
	if raw, ok := rest["filter"]; ok {
		delete(rest, "filter")
		fm, ok := raw.(map[string]interface{})
		if !ok {
			return opts, invalidOptions("filter must be a mapping", nil)
		}
		f, err := x.filter(ctx, fm)
		if err != nil {
			return opts, err
		}
		opts.Filter = f
	}
	if err := decode(rest, &opts); err != nil {
		return opts, invalidOptions("invalid lookup options", err)
	}
	return opts, nil
}

// filter decodes filter options. has and hasNot are resolved as targets.
func (x *execution) filter(ctx context.Context, m map[string]interface{}) (*browser.FilterOptions, error) {
	f := &browser.FilterOptions{}
	rest := make(map[string]interface{}, len(m))
	for k, v := range m {
		switch k {
		case "has", "hasNot":
			spec, err := targetFrom(v)
			if err != nil {
				return nil, invalidOptions(fmt.Sprintf("filter.%s", k), err)
			}
			h, err := x.resolve(ctx, spec)
			if err != nil {
				return nil, err
			}
			if k == "has" {
				f.Has = h
			} else {
				f.HasNot = h
			}
		default:
			rest[k] = v
		}
	}
	if err := decode(rest, f); err != nil {
		return nil, invalidOptions("invalid filter options", err)
	}
	return f, nil
}

func (x *execution) sub(ctx context.Context, spec *SubSpec) (*engine.SubRequest, error) {
	sub := &engine.SubRequest{Value: x.expand(spec.Value)}
	if spec.Strategy != "" {
		s, err := engine.ParseStrategy(spec.Strategy)
		if err != nil {
			return nil, err
		}
		sub.Strategy = s
	}
	if spec.Options != nil {
		opts, err := x.locateOptions(ctx, spec.Options)
		if err != nil {
			return nil, err
		}
		sub.Options = &opts
	}
	return sub, nil
}

// targetFrom decodes a nested target written inside an options mapping.
func targetFrom(v interface{}) (*TargetSpec, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("expected a target mapping, got %T", v)
	}
	var spec TargetSpec
	if err := mapstructure.Decode(m, &spec); err != nil {
		return nil, err
	}
	if spec.Strategy == "" || spec.Value == "" {
		return nil, fmt.Errorf("a target needs strategy and value")
	}
	return &spec, nil
}

func invalidOptions(msg string, err error) *engine.EngineError {
	return engine.NewResolutionError(msg, err).WithCode(engine.ErrCodeInvalidOptions)
}
