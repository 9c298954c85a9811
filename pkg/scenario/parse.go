package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/openfroyo/pagecore/pkg/config"
)

var (
	schemasOnce sync.Once
	schemas     *config.SchemaRegistry
)

func registry() *config.SchemaRegistry {
	schemasOnce.Do(func() { schemas = config.NewSchemaRegistry() })
	return schemas
}

// Load reads and parses one scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	sc, err := parse(data, path)
	if err != nil {
		return nil, err
	}
	sc.Source = path
	return sc, nil
}

// LoadAll loads every path. Directories contribute their .yaml and .yml
// files in name order.
func LoadAll(paths []string) ([]*Scenario, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		var found []string
		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
				found = append(found, filepath.Join(p, e.Name()))
			}
		}
		sort.Strings(found)
		files = append(files, found...)
	}

	out := make([]*Scenario, 0, len(files))
	for _, f := range files {
		sc, err := Load(f)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

// Parse decodes a YAML scenario. The document is checked against the
// scenario schema before it is decoded, and every step must do exactly
// one thing.
func Parse(data []byte) (*Scenario, error) {
	return parse(data, "")
}

func parse(data []byte, file string) (*Scenario, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode scenario: %w", err)
	}
	if raw == nil {
		return nil, config.ValidationErrors{{File: file, Message: "scenario is empty"}}
	}
	if err := registry().ValidateAgainstSchema("scenario", raw); err != nil {
		var verrs config.ValidationErrors
		if errors.As(err, &verrs) {
			for i := range verrs {
				verrs[i].File = file
			}
			return nil, verrs
		}
		return nil, err
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to decode scenario: %w", err)
	}
	if errs := sc.check(file); len(errs) > 0 {
		return nil, errs
	}
	return &sc, nil
}

func (sc *Scenario) check(file string) config.ValidationErrors {
	var errs config.ValidationErrors
	for i := range sc.Steps {
		errs = append(errs, checkStep(&sc.Steps[i], fmt.Sprintf("steps.%d", i), file)...)
	}
	return errs
}

func checkStep(st *Step, path, file string) config.ValidationErrors {
	var errs config.ValidationErrors
	add := func(field, msg string) {
		p := path
		if field != "" {
			p += "." + field
		}
		errs = append(errs, config.ValidationError{File: file, Path: p, Message: msg})
	}

	var set []string
	for name, on := range map[string]bool{
		"action":   st.Action != "",
		"assert":   st.Assert != "",
		"wait":     st.Wait != "",
		"calendar": st.Calendar != nil,
	} {
		if on {
			set = append(set, name)
		}
	}
	switch len(set) {
	case 0:
		add("", "step needs one of action, assert, wait or calendar")
	case 1:
	default:
		sort.Strings(set)
		add("", fmt.Sprintf("step sets %s; only one is allowed", strings.Join(set, " and ")))
	}

	if st.Trigger != nil {
		if st.Wait == "" {
			add("trigger", "only waits take a trigger")
		}
		if st.Trigger.Action == "" {
			add("trigger", "a trigger must be an action")
		}
		errs = append(errs, checkStep(st.Trigger, path+".trigger", file)...)
	}
	if st.Save != "" && st.Action == "" {
		add("save", "only actions produce a value to save")
	}
	return errs
}
