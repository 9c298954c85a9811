package config

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with the built-in
// "config" and "scenario" schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}

	for _, b := range builtinSchemas {
		if err := sr.RegisterSchema(b.name, b.definition, b.source); err != nil {
			panic(err)
		}
	}

	return sr
}

// Context returns the CUE context schemas are compiled in. Values checked
// against them must come from the same context.
func (sr *SchemaRegistry) Context() *cue.Context {
	return sr.ctx
}

// RegisterSchema compiles source and registers its definition (for example
// "#Config") under name.
func (sr *SchemaRegistry) RegisterSchema(name, definition, source string) error {
	val := sr.ctx.CompileString(source, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}
	def := val.LookupPath(cue.ParsePath(definition))
	if !def.Exists() {
		return fmt.Errorf("schema %s does not define %s", name, definition)
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.schemas[name] = def
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// Check unifies val with the named schema and requires a concrete result.
func (sr *SchemaRegistry) Check(name string, val cue.Value) error {
	schema, ok := sr.GetSchema(name)
	if !ok {
		return fmt.Errorf("schema %s not found", name)
	}
	return schema.Unify(val).Validate(cue.Concrete(true))
}

// ValidateAgainstSchema validates Go data, such as a decoded YAML document,
// against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(schemaName string, data interface{}) error {
	dataVal := sr.ctx.Encode(plainTimes(data))
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	if err := sr.Check(schemaName, dataVal); err != nil {
		return ValidationErrors(convertCUEErrors(err))
	}
	return nil
}

// plainTimes copies data with the timestamps YAML infers from unquoted
// dates turned back into text: a date alone becomes YYYY-MM-DD.
func plainTimes(v interface{}) interface{} {
	switch x := v.(type) {
	case time.Time:
		if x.Location() == time.UTC && x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339Nano)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[k] = plainTimes(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = plainTimes(e)
		}
		return out
	}
	return v
}

// ListSchemas returns all registered schema names, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var builtinSchemas = []struct {
	name, definition, source string
}{
	{"config", "#Config", builtinConfigSchema},
	{"scenario", "#Scenario", builtinScenarioSchema},
}

// Built-in schema definitions

const builtinConfigSchema = `
#Duration: string & =~"^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"

#Config: {
	browser?: {
		engine?:   "chromium" | "firefox" | "webkit"
		headless?: bool
		channel?:  string
		slowMo?:   #Duration
		viewport?: {
			width?:  int & >=0
			height?: int & >=0
		}
		baseURL?:  string
		locale?:   string
		timezone?: string
	}

	timeouts?: {
		action?:           #Duration
		navigation?:       #Duration
		assert?:           #Duration
		wait?:             #Duration
		calendarMaxSteps?: int & >=0
	}

	snapshots?: {
		dir?:          string & !=""
		update?:       bool
		maxDiffRatio?: number & >=0 & <=1
	}

	journal?: {
		enabled?: bool
		path?:    string
	}

	// Checked by the telemetry package itself.
	telemetry?: {...}
}
`

const builtinScenarioSchema = `
#Duration: string & =~"^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"

#Sub: {
	strategy?: string
	value:     string & !=""
	options?: {...}
}

#Target: {
	strategy:        string & !=""
	value:           string & !=""
	options?: {...}
	frame?:          string
	combinator?:     string
	index?:          int & >=0
	filter?: {...}
	other?:          #Sub
	sub?:            #Sub
	requireVisible?: bool
}

#Step: {
	title?:    string
	action?:   string
	assert?:   string
	wait?:     string
	calendar?: #Calendar
	target?:   #Target
	dragTo?:   #Target
	value?:    _
	values?: [...string]
	path?:     string
	expected?: _
	actual?:   _
	save?:     string
	mode?:     "hard" | "not" | "soft" | "negated"
	pattern?:  string
	state?:    string
	duration?: #Duration
	timeout?:  #Duration
	trigger?:  #Step
	options?: {...}
}

#Calendar: {
	opener?:     #Target
	label:       #Target
	previous:    #Target
	next:        #Target
	days?:       #Target
	daySelector?: string
	layout?:     string
	date:        string & =~"^[0-9]{4}-[0-9]{2}-[0-9]{2}$"
	maxSteps?:   int & >=0
}

#Scenario: {
	name:     string & !=""
	url?:     string
	viewport?: {
		width?:  int & >=0
		height?: int & >=0
	}
	steps: [...#Step] & [_, ...]
}
`
