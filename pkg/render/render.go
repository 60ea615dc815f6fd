package render

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-ini/ini"

	"github.com/openfroyo/froyo-neutron/pkg/engine"
)

func init() {
	// oslo.config rejects keys before the first section header.
	ini.DefaultHeader = true
}

var loadOptions = ini.LoadOptions{
	IgnoreInlineComment:     true,
	PreserveSurroundedQuote: true,
}

// Options controls rendering.
type Options struct {
	// RevealSecrets renders secret values instead of the redaction marker.
	RevealSecrets bool

	// BaseRoot, when set, is a root directory the target files are read
	// from before the catalog is applied to them, e.g. "/" to preview
	// against the live host. Missing files start empty.
	BaseRoot string
}

// File is the rendered preview of one config file.
type File struct {
	// Path is the target path, e.g. /etc/neutron/neutron.conf.
	Path string

	// Content is the rendered INI text.
	Content []byte

	// Set is the number of keys the catalog assigns.
	Set int

	// Absent is the number of keys the catalog removes.
	Absent int
}

// Render applies the config directives of a catalog to their files and
// returns one preview per file, sorted by path. Keys keep emission order
// within their section. Tombstoned keys are removed and listed as
// "# key (absent)" comments above their section.
func Render(catalog *engine.Catalog, opts Options) ([]File, error) {
	byPath := make(map[string]*fileState)
	var order []string

	for i := range catalog.Directives {
		d := &catalog.Directives[i]
		if !d.Kind.IsConfig() || d.Config == nil {
			continue
		}
		cfg := d.Config

		st, ok := byPath[cfg.File]
		if !ok {
			var err error
			st, err = loadBase(opts.BaseRoot, cfg.File)
			if err != nil {
				return nil, err
			}
			byPath[cfg.File] = st
			order = append(order, cfg.File)
		}

		if err := st.apply(d, opts.RevealSecrets); err != nil {
			return nil, err
		}
	}

	sort.Strings(order)
	files := make([]File, 0, len(order))
	for _, path := range order {
		st := byPath[path]
		st.annotate()

		var buf bytes.Buffer
		if _, err := st.ini.WriteTo(&buf); err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", path, err)
		}
		files = append(files, File{
			Path:    path,
			Content: buf.Bytes(),
			Set:     st.set,
			Absent:  st.absent,
		})
	}

	return files, nil
}

// fileState accumulates the directives for one file.
type fileState struct {
	ini    *ini.File
	set    int
	absent int

	// removed lists tombstoned keys by section.
	removed map[string][]string

	// comments are the section comments read from the base file.
	comments map[string]string
}

func loadBase(root, path string) (*fileState, error) {
	st := &fileState{
		removed:  make(map[string][]string),
		comments: make(map[string]string),
	}

	if root == "" {
		st.ini = ini.Empty(loadOptions)
		return st, nil
	}

	base := filepath.Join(root, path)
	data, err := os.ReadFile(base)
	switch {
	case os.IsNotExist(err):
		st.ini = ini.Empty(loadOptions)
		return st, nil
	case err != nil:
		return nil, engine.NewPermanentError("failed to read base file", err).
			WithCode(engine.ErrCodeNotFound).WithSubject(base)
	}

	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return nil, engine.NewPermanentError("failed to parse base file", err).
			WithCode(engine.ErrCodeInvalidInput).WithSubject(base)
	}
	st.ini = f
	for _, sec := range f.Sections() {
		st.comments[sec.Name()] = sec.Comment
	}
	return st, nil
}

func (st *fileState) apply(d *engine.Directive, reveal bool) error {
	cfg := d.Config
	sec := st.ini.Section(cfg.Section)

	if cfg.Ensure == engine.EnsureAbsent {
		sec.DeleteKey(cfg.Key)
		st.removed[cfg.Section] = append(st.removed[cfg.Section], cfg.Key)
		st.absent++
		return nil
	}

	value := cfg.Value
	if cfg.Secret && !reveal {
		value = engine.RedactedValue
	}

	if sec.HasKey(cfg.Key) {
		sec.Key(cfg.Key).SetValue(value)
	} else if _, err := sec.NewKey(cfg.Key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", d.Ref(), err)
	}
	st.set++
	return nil
}

func (st *fileState) annotate() {
	for section, keys := range st.removed {
		sec := st.ini.Section(section)
		comment := st.comments[section]
		for _, key := range keys {
			if comment != "" {
				comment += "\n"
			}
			comment += "# " + key + " (absent)"
		}
		sec.Comment = comment
	}
}
