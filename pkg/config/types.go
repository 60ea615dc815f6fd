package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/openfroyo/froyo-neutron/pkg/engine"
)

// Format is the syntax of a parameter file.
type Format string

const (
	FormatCUE      Format = "cue"
	FormatYAML     Format = "yaml"
	FormatJSON     Format = "json"
	FormatStarlark Format = "starlark"
)

// FactsKey is the top-level key under which a parameter file may pin facts.
const FactsKey = "facts"

// FormatOf returns the format for path based on its extension.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return FormatCUE, true
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".json":
		return FormatJSON, true
	case ".star":
		return FormatStarlark, true
	default:
		return "", false
	}
}

// Document is a loaded parameter file.
type Document struct {
	// Source is the path the document was read from.
	Source string `json:"source"`

	// Format is the syntax the document was written in.
	Format Format `json:"format"`

	// Params are the class parameters, keyed by parameter name. Null
	// values are dropped so defaults apply.
	Params map[string]any `json:"params"`

	// Facts holds the facts pinned by the document, if any.
	Facts *FactsOverride `json:"facts,omitempty"`

	// LoadedAt is when the document was read.
	LoadedAt time.Time `json:"loaded_at"`
}

// FactsOverride pins some or all facts from a parameter file.
type FactsOverride struct {
	OSFamily       string `json:"osfamily,omitempty" yaml:"osfamily,omitempty"`
	ProcessorCount string `json:"processorcount,omitempty" yaml:"processorcount,omitempty"`
}

// Apply overlays the pinned facts on base.
func (f *FactsOverride) Apply(base engine.Facts) engine.Facts {
	if f == nil {
		return base
	}
	if f.OSFamily != "" {
		base.OSFamily = f.OSFamily
	}
	if f.ProcessorCount != "" {
		base.ProcessorCount = f.ProcessorCount
	}
	return base
}

// ValidationError is a single problem found while loading a file.
type ValidationError struct {
	// File is the file path where the error occurred.
	File string `json:"file,omitempty"`

	// Line is the line number where the error occurred.
	Line int `json:"line,omitempty"`

	// Column is the column number where the error occurred.
	Column int `json:"column,omitempty"`

	// Path is the parameter path, e.g. "api_workers" or "facts.osfamily".
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`

	// Severity is the error severity (error, warning, info).
	Severity string `json:"severity"`
}

// String formats the error with its position when known.
func (e ValidationError) String() string {
	if e.File != "" && e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ParseError reports every problem found in one parameter file.
type ParseError struct {
	Source string
	Errors []ValidationError
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.String()
	}
	return fmt.Sprintf("invalid parameter file %s: %s", e.Source, strings.Join(msgs, "; "))
}

// Parameter returns the first parameter path named by the errors, or "".
func (e *ParseError) Parameter() string {
	for _, ve := range e.Errors {
		if ve.Path != "" {
			return ve.Path
		}
	}
	return ""
}

// StarlarkResult represents the result of Starlark script execution.
type StarlarkResult struct {
	// Output is the exported globals of the script.
	Output map[string]interface{} `json:"output"`

	// Printed collects print() output.
	Printed []string `json:"printed,omitempty"`

	// ExecutionTime is how long the script took to execute.
	ExecutionTime time.Duration `json:"execution_time"`

	// Error is set if execution failed.
	Error string `json:"error,omitempty"`
}
