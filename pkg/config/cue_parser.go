package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// CUEParser parses CUE parameter files and checks values against the
// registered schemas.
type CUEParser struct {
	ctx            *cue.Context
	schemaRegistry *SchemaRegistry
}

// NewCUEParser creates a new CUE parser.
func NewCUEParser() *CUEParser {
	ctx := cuecontext.New()
	return &CUEParser{
		ctx:            ctx,
		schemaRegistry: newSchemaRegistry(ctx),
	}
}

// ParseFile compiles a CUE file and checks it against the
// #NeutronServer schema. The result is the exported parameter map.
func (cp *CUEParser) ParseFile(_ context.Context, path string) (map[string]any, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return cp.parse(path, content)
}

// ParseInline parses inline CUE content.
func (cp *CUEParser) ParseInline(_ context.Context, content string) (map[string]any, error) {
	return cp.parse("inline", []byte(content))
}

func (cp *CUEParser) parse(source string, content []byte) (map[string]any, error) {
	val := cp.ctx.CompileBytes(content, cue.Filename(source))
	if err := val.Err(); err != nil {
		return nil, &ParseError{Source: source, Errors: cp.convertCUEErrors(err)}
	}

	if val.IncompleteKind() != cue.StructKind {
		return nil, &ParseError{Source: source, Errors: []ValidationError{{
			File:     source,
			Message:  "top level must be a struct of parameters",
			Severity: "error",
		}}}
	}

	if err := cp.schemaRegistry.Unify(SchemaNeutronServer, val); err != nil {
		return nil, &ParseError{Source: source, Errors: cp.convertCUEErrors(err)}
	}

	data, err := cp.ExportJSON(val)
	if err != nil {
		return nil, &ParseError{Source: source, Errors: cp.convertCUEErrors(err)}
	}

	return decodeJSONObject(source, data)
}

// ValidateValues checks already-decoded values against the #NeutronServer
// schema. Positions are unknown, so errors carry the parameter path only.
func (cp *CUEParser) ValidateValues(ctx context.Context, source string, values map[string]any) error {
	if err := cp.schemaRegistry.ValidateAgainstSchema(ctx, SchemaNeutronServer, values); err != nil {
		errs := cp.convertCUEErrors(err)
		for i := range errs {
			errs[i].File = source
			errs[i].Line, errs[i].Column = 0, 0
		}
		return &ParseError{Source: source, Errors: errs}
	}
	return nil
}

// convertCUEErrors converts CUE errors to ValidationError slice.
func (cp *CUEParser) convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	for _, e := range errors.Errors(err) {
		pos := errors.Positions(e)
		var file string
		var line, column int

		if len(pos) > 0 {
			file = pos[0].Filename()
			line = pos[0].Line()
			column = pos[0].Column()
		}

		validationErrors = append(validationErrors, ValidationError{
			File:     file,
			Line:     line,
			Column:   column,
			Path:     strings.Join(e.Path(), "."),
			Message:  strings.TrimSpace(errors.Details(e, nil)),
			Severity: "error",
		})
	}

	if len(validationErrors) == 0 {
		validationErrors = append(validationErrors, ValidationError{
			Message:  err.Error(),
			Severity: "error",
		})
	}

	return validationErrors
}

// GetSchemaRegistry returns the schema registry.
func (cp *CUEParser) GetSchemaRegistry() *SchemaRegistry {
	return cp.schemaRegistry
}

// ExtractValue extracts a specific path from a CUE value.
func (cp *CUEParser) ExtractValue(val cue.Value, path string) (interface{}, error) {
	v := val.LookupPath(cue.ParsePath(path))
	if !v.Exists() {
		return nil, fmt.Errorf("path %s not found", path)
	}

	var result interface{}
	if err := v.Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode value at %s: %w", path, err)
	}

	return result, nil
}

// ExportJSON exports a concrete CUE value to JSON.
func (cp *CUEParser) ExportJSON(val cue.Value) ([]byte, error) {
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return nil, err
	}
	return json.Marshal(val)
}
