package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/froyo-neutron/pkg/engine"
)

// Loader reads parameter files in any supported format. It implements
// engine.ParamLoader.
type Loader struct {
	logger   zerolog.Logger
	cue      *CUEParser
	starlark *StarlarkEvaluator
	facts    engine.Facts
}

var _ engine.ParamLoader = (*Loader)(nil)

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithScriptFacts sets the facts predeclared as `facts` in Starlark scripts.
func WithScriptFacts(facts engine.Facts) LoaderOption {
	return func(l *Loader) { l.facts = facts }
}

// WithStarlarkTimeout bounds Starlark script execution.
func WithStarlarkTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) { l.starlark = NewStarlarkEvaluator(d) }
}

// NewLoader creates a new parameter loader.
func NewLoader(logger zerolog.Logger, opts ...LoaderOption) *Loader {
	l := &Loader{
		logger:   logger.With().Str("component", "param-loader").Logger(),
		cue:      NewCUEParser(),
		starlark: NewStarlarkEvaluator(0),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Supports reports whether the file extension is a known format.
func (l *Loader) Supports(path string) bool {
	_, ok := FormatOf(path)
	return ok
}

// Load reads path and returns its parameters. Facts pinned in the file
// are dropped; use LoadDocument to get them.
func (l *Loader) Load(ctx context.Context, path string) (map[string]any, error) {
	doc, err := l.LoadDocument(ctx, path)
	if err != nil {
		return nil, err
	}
	return doc.Params, nil
}

// LoadDocument reads path and returns its parameters and pinned facts.
// Type errors are reported as a *ParseError wrapped in an EngineError
// with code ErrCodeValidation.
func (l *Loader) LoadDocument(ctx context.Context, path string) (*Document, error) {
	format, ok := FormatOf(path)
	if !ok {
		return nil, engine.NewPermanentError(fmt.Sprintf("unsupported parameter file %s", path), nil).
			WithCode(engine.ErrCodeUnsupported).WithSubject(path)
	}

	values, err := l.read(ctx, path, format)
	if err != nil {
		return nil, l.classify(path, err)
	}

	doc, err := l.document(path, format, values)
	if err != nil {
		return nil, l.classify(path, err)
	}

	l.logger.Debug().
		Str("path", path).
		Str("format", string(format)).
		Int("params", len(doc.Params)).
		Bool("pinned_facts", doc.Facts != nil).
		Msg("Parameter file loaded")

	return doc, nil
}

// ParseBytes decodes content in the given format without touching the
// filesystem. source is used in error messages.
func (l *Loader) ParseBytes(ctx context.Context, source string, format Format, content []byte) (*Document, error) {
	var values map[string]any
	var err error
	switch format {
	case FormatCUE:
		values, err = l.cue.parse(source, content)
	default:
		values, err = l.decode(ctx, source, format, content)
	}
	if err != nil {
		return nil, l.classify(source, err)
	}
	doc, err := l.document(source, format, values)
	if err != nil {
		return nil, l.classify(source, err)
	}
	return doc, nil
}

func (l *Loader) read(ctx context.Context, path string, format Format) (map[string]any, error) {
	if format == FormatCUE {
		return l.cue.ParseFile(ctx, path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return l.decode(ctx, path, format, content)
}

// decode handles the non-CUE formats, then type-checks the values against
// the same CUE schema the CUE format uses.
func (l *Loader) decode(ctx context.Context, source string, format Format, content []byte) (map[string]any, error) {
	var values map[string]any
	var err error

	switch format {
	case FormatYAML:
		values, err = decodeYAML(source, content)
	case FormatJSON:
		values, err = decodeJSONObject(source, content)
	case FormatStarlark:
		values, err = l.evalStarlark(ctx, source, content)
	default:
		return nil, fmt.Errorf("unsupported format %s", format)
	}
	if err != nil {
		return nil, err
	}

	values = normalizeMap(values)
	if err := l.cue.ValidateValues(ctx, source, dropNulls(values)); err != nil {
		return nil, err
	}
	return values, nil
}

func (l *Loader) evalStarlark(ctx context.Context, source string, content []byte) (map[string]any, error) {
	input := map[string]interface{}{
		FactsKey: map[string]interface{}{
			"osfamily":       l.facts.OSFamily,
			"processorcount": l.facts.ProcessorCount,
		},
	}

	result, err := l.starlark.Evaluate(ctx, source, string(content), input)
	if err != nil {
		return nil, &ParseError{Source: source, Errors: []ValidationError{{
			File:     source,
			Message:  err.Error(),
			Severity: "error",
		}}}
	}
	for _, msg := range result.Printed {
		l.logger.Debug().Str("path", source).Msg(msg)
	}

	// The predeclared facts are not an export unless the script rebinds them.
	return result.Output, nil
}

// document splits pinned facts off the parameter values.
func (l *Loader) document(source string, format Format, values map[string]any) (*Document, error) {
	values = dropNulls(normalizeMap(values))

	doc := &Document{
		Source:   source,
		Format:   format,
		Params:   values,
		LoadedAt: time.Now(),
	}

	raw, ok := values[FactsKey]
	if !ok {
		return doc, nil
	}
	delete(values, FactsKey)

	m, ok := raw.(map[string]any)
	if !ok {
		return nil, &ParseError{Source: source, Errors: []ValidationError{{
			File:     source,
			Path:     FactsKey,
			Message:  fmt.Sprintf("facts must be a mapping, got %T", raw),
			Severity: "error",
		}}}
	}

	facts := &FactsOverride{}
	for _, key := range sortedKeys(m) {
		s, err := scalarString(m[key])
		if err != nil {
			return nil, &ParseError{Source: source, Errors: []ValidationError{{
				File:     source,
				Path:     FactsKey + "." + key,
				Message:  err.Error(),
				Severity: "error",
			}}}
		}
		switch key {
		case "osfamily":
			facts.OSFamily = s
		case "processorcount":
			facts.ProcessorCount = s
		default:
			return nil, &ParseError{Source: source, Errors: []ValidationError{{
				File:     source,
				Path:     FactsKey + "." + key,
				Message:  fmt.Sprintf("unknown fact %q", key),
				Severity: "error",
			}}}
		}
	}
	doc.Facts = facts

	return doc, nil
}

func (l *Loader) classify(path string, err error) error {
	if _, ok := err.(*ParseError); ok {
		return engine.NewPermanentError("invalid parameter file", err).
			WithCode(engine.ErrCodeValidation).WithSubject(path)
	}
	if os.IsNotExist(err) {
		return engine.NewPermanentError("parameter file not found", err).
			WithCode(engine.ErrCodeNotFound).WithSubject(path)
	}
	return engine.NewPermanentError("failed to load parameter file", err).
		WithCode(engine.ErrCodeInvalidInput).WithSubject(path)
}

func decodeYAML(source string, content []byte) (map[string]any, error) {
	var values map[string]any
	if err := yaml.Unmarshal(content, &values); err != nil {
		ve := ValidationError{File: source, Message: err.Error(), Severity: "error"}
		if te, ok := err.(*yaml.TypeError); ok && len(te.Errors) > 0 {
			ve.Message = te.Errors[0]
		}
		return nil, &ParseError{Source: source, Errors: []ValidationError{ve}}
	}
	if values == nil {
		values = map[string]any{}
	}
	return values, nil
}

func decodeJSONObject(source string, content []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()

	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		ve := ValidationError{File: source, Message: err.Error(), Severity: "error"}
		if se, ok := err.(*json.SyntaxError); ok {
			ve.Line, ve.Column = lineColumn(content, se.Offset)
		}
		return nil, &ParseError{Source: source, Errors: []ValidationError{ve}}
	}
	if values == nil {
		values = map[string]any{}
	}
	return normalizeMap(values), nil
}

// normalizeMap converts decoder-specific number types so every format
// yields int64 for integral numbers and float64 otherwise.
func normalizeMap(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case int:
		return int64(val)
	case uint64:
		if val <= math.MaxInt64 {
			return int64(val)
		}
		return float64(val)
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return int64(val)
		}
		return val
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, err := val.Float64()
		if err != nil {
			return val.String()
		}
		return normalizeValue(f)
	case map[string]any:
		return normalizeMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}

func dropNulls(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if v == nil {
			continue
		}
		if m, ok := v.(map[string]any); ok {
			v = dropNulls(m)
		}
		out[k] = v
	}
	return out
}

func scalarString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case bool:
		return strconv.FormatBool(val), nil
	default:
		return "", fmt.Errorf("must be a scalar, got %T", v)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func lineColumn(content []byte, offset int64) (int, int) {
	if offset > int64(len(content)) {
		offset = int64(len(content))
	}
	before := content[:offset]
	line := bytes.Count(before, []byte("\n")) + 1
	col := int(offset) - bytes.LastIndexByte(before, '\n')
	return line, col
}
