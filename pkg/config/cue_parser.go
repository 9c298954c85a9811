package config

import (
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

// CUEParser evaluates CUE run configurations.
type CUEParser struct {
	ctx            *cue.Context
	schemaRegistry *SchemaRegistry
}

// NewCUEParser creates a new CUE parser.
func NewCUEParser() *CUEParser {
	sr := NewSchemaRegistry()
	return &CUEParser{
		ctx:            sr.Context(),
		schemaRegistry: sr,
	}
}

// Parse unifies the given files and directories, checks the result against
// the config schema and decodes it over the defaults. CUE errors come back
// as ValidationErrors with file positions.
func (cp *CUEParser) Parse(sources []string) (*Config, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources provided")
	}

	var cueValue cue.Value
	var parseErrors []ValidationError

	for _, source := range sources {
		info, err := os.Stat(source)
		if err != nil {
			return nil, fmt.Errorf("failed to stat source %s: %w", source, err)
		}

		var val cue.Value
		var errs []ValidationError
		if info.IsDir() {
			val, errs = cp.loadDirectory(source)
		} else {
			val, errs = cp.loadFile(source)
		}
		parseErrors = append(parseErrors, errs...)
		if val.Exists() {
			if cueValue.Exists() {
				cueValue = cueValue.Unify(val)
			} else {
				cueValue = val
			}
		}
	}

	if len(parseErrors) > 0 {
		return nil, ValidationErrors(parseErrors)
	}

	return cp.decode(cueValue)
}

// ParseInline evaluates inline CUE content.
func (cp *CUEParser) ParseInline(content string) (*Config, error) {
	val := cp.ctx.CompileString(content, cue.Filename("inline"))
	if err := val.Err(); err != nil {
		return nil, ValidationErrors(convertCUEErrors(err))
	}
	return cp.decode(val)
}

func (cp *CUEParser) decode(val cue.Value) (*Config, error) {
	if err := val.Err(); err != nil {
		return nil, ValidationErrors(convertCUEErrors(err))
	}
	if err := cp.schemaRegistry.Check("config", val); err != nil {
		return nil, ValidationErrors(convertCUEErrors(err))
	}

	// JSON is YAML, so the CUE result decodes through the same tags and
	// duration handling as a YAML file.
	data, err := val.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to export config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDirectory loads a directory as a CUE package.
func (cp *CUEParser) loadDirectory(dir string) (cue.Value, []ValidationError) {
	buildInstances := load.Instances([]string{dir}, nil)
	if len(buildInstances) == 0 {
		return cue.Value{}, []ValidationError{{
			File:    dir,
			Message: "no CUE files found",
		}}
	}

	inst := buildInstances[0]
	if inst.Err != nil {
		return cue.Value{}, convertCUEErrors(inst.Err)
	}

	val := cp.ctx.BuildInstance(inst)
	if err := val.Err(); err != nil {
		return cue.Value{}, convertCUEErrors(err)
	}

	return val, nil
}

// loadFile loads a single CUE file.
func (cp *CUEParser) loadFile(path string) (cue.Value, []ValidationError) {
	content, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, []ValidationError{{
			File:    path,
			Message: fmt.Sprintf("failed to read file: %v", err),
		}}
	}

	val := cp.ctx.CompileBytes(content, cue.Filename(path))
	if err := val.Err(); err != nil {
		return cue.Value{}, convertCUEErrors(err)
	}

	return val, nil
}

// convertCUEErrors converts CUE errors to ValidationError slice. Paths are
// relative to the document, so the schema definition they were checked
// under is dropped, and positions inside the built-in schemas are skipped
// in favour of the document's own.
func convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	for _, e := range errors.Errors(err) {
		var file string
		var line, column int
		if pos, ok := documentPosition(errors.Positions(e)); ok {
			file = pos.Filename()
			line = pos.Line()
			column = pos.Column()
		}

		path := e.Path()
		for len(path) > 0 && strings.HasPrefix(path[0], "#") {
			path = path[1:]
		}

		format, args := e.Msg()
		validationErrors = append(validationErrors, ValidationError{
			File:    file,
			Line:    line,
			Column:  column,
			Path:    strings.Join(path, "."),
			Message: fmt.Sprintf(format, args...),
		})
	}

	return validationErrors
}

func documentPosition(positions []token.Pos) (token.Pos, bool) {
	for _, pos := range positions {
		if !isBuiltinSchemaFile(pos.Filename()) {
			return pos, true
		}
	}
	if len(positions) > 0 {
		return positions[0], true
	}
	return token.NoPos, false
}

func isBuiltinSchemaFile(name string) bool {
	for _, b := range builtinSchemas {
		if name == b.name+".cue" {
			return true
		}
	}
	return false
}
