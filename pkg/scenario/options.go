package scenario

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/openfroyo/pagecore/pkg/engine"
)

// decode maps flat scenario options onto a typed option record. Unknown
// keys are an error.
func decode(input map[string]interface{}, out interface{}) error {
	if len(input) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// sectionKeys lists the keys of each ActionOptions section.
var sectionKeys = map[string]map[string]bool{
	"click":      {"button": true, "modifiers": true, "delay": true, "force": true, "trial": true, "timeout": true},
	"input":      {"force": true, "timeout": true},
	"type":       {"delay": true, "timeout": true},
	"navigate":   {"direction": true, "waitUntil": true, "timeout": true},
	"dialog":     {"response": true},
	"read":       {"source": true},
	"upload":     {"via": true},
	"screenshot": {"fullPage": true},
	"mouse":      {"action": true, "x": true, "y": true, "button": true, "clickCount": true, "delay": true, "steps": true},
	"keyboard":   {"action": true, "delay": true},
	"table":      {"rows": true, "cells": true, "pager": true, "maxPages": true},
}

// verbSections is where a verb's flat keys go, first match wins. Verbs
// not listed use the input section.
var verbSections = map[engine.Verb][]string{
	engine.VerbClick:           {"click"},
	engine.VerbDoubleClick:     {"click"},
	engine.VerbType:            {"type"},
	engine.VerbNavigate:        {"navigate"},
	engine.VerbHandleDialog:    {"dialog", "click"},
	engine.VerbSwitchToNewPage: {"click"},
	engine.VerbDownloadFile:    {"click"},
	engine.VerbUploadFile:      {"upload", "input"},
	engine.VerbReadValue:       {"read"},
	engine.VerbScreenshot:      {"screenshot"},
	engine.VerbMouse:           {"mouse"},
	engine.VerbKeyboard:        {"keyboard"},
	engine.VerbPaginateTable:   {"table", "click"},
}

// eventVerbs wait for a page event; their timeout bounds that wait.
var eventVerbs = map[engine.Verb]bool{
	engine.VerbHandleDialog:    true,
	engine.VerbSwitchToNewPage: true,
	engine.VerbDownloadFile:    true,
	engine.VerbUploadFile:      true,
}

// actionOptions routes flat keys into the verb's section. Keys that name a
// section are taken as already nested.
func actionOptions(verb engine.Verb, flat map[string]interface{}) (engine.ActionOptions, error) {
	var out engine.ActionOptions
	sections, ok := verbSections[verb]
	if !ok {
		sections = []string{"input"}
	}

	nested := make(map[string]interface{}, len(flat))
	for k, v := range flat {
		if _, isSection := sectionKeys[k]; isSection {
			m, ok := v.(map[string]interface{})
			if !ok {
				return out, fmt.Errorf("options.%s must be a mapping", k)
			}
			merge(nested, k, m)
			continue
		}
		if k == "timeout" && eventVerbs[verb] {
			nested[k] = v
			continue
		}
		dst := ""
		for _, s := range sections {
			if sectionKeys[s][k] {
				dst = s
				break
			}
		}
		if dst == "" {
			nested[k] = v
			continue
		}
		merge(nested, dst, map[string]interface{}{k: v})
	}

	if err := decode(nested, &out); err != nil {
		return out, fmt.Errorf("invalid %s options: %w", verb, err)
	}
	return out, nil
}

func merge(dst map[string]interface{}, section string, m map[string]interface{}) {
	sec, _ := dst[section].(map[string]interface{})
	if sec == nil {
		sec = make(map[string]interface{}, len(m))
		dst[section] = sec
	}
	for k, v := range m {
		sec[k] = v
	}
}

var snapshotKeys = map[string]bool{
	"dir": true, "maxDiffPixelRatio": true, "threshold": true, "fullPage": true, "update": true,
}

// assertOptions decodes assertion options. For toMatchSnapshot the
// snapshot keys, name included, may be given flat.
func assertOptions(pred engine.Predicate, flat map[string]interface{}) (engine.AssertOptions, error) {
	var out engine.AssertOptions
	nested := make(map[string]interface{}, len(flat))
	for k, v := range flat {
		if pred == engine.ToMatchSnapshot && (snapshotKeys[k] || k == "name") {
			merge(nested, "snapshot", map[string]interface{}{k: v})
			continue
		}
		if k == "snapshot" {
			m, ok := v.(map[string]interface{})
			if !ok {
				return out, fmt.Errorf("options.snapshot must be a mapping")
			}
			merge(nested, k, m)
			continue
		}
		nested[k] = v
	}
	if err := decode(nested, &out); err != nil {
		return out, fmt.Errorf("invalid %s options: %w", pred, err)
	}
	return out, nil
}
