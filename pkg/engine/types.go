package engine

import (
	"fmt"
	"strings"
)

// Kind is the resource type a directive manages.
type Kind string

const (
	// KindNeutronConfig manages a key in /etc/neutron/neutron.conf.
	KindNeutronConfig Kind = "neutron_config"

	// KindNeutronAPIConfig manages a key in /etc/neutron/api-paste.ini.
	KindNeutronAPIConfig Kind = "neutron_api_config"

	// KindPackage manages an OS package.
	KindPackage Kind = "package"

	// KindService manages a system service.
	KindService Kind = "service"

	// KindExec runs a one-shot command.
	KindExec Kind = "exec"
)

// IsConfig reports whether the kind is a config-file assignment.
func (k Kind) IsConfig() bool {
	return k == KindNeutronConfig || k == KindNeutronAPIConfig
}

// Ref identifies a directive by kind and title.
type Ref struct {
	Kind  Kind   `json:"kind" yaml:"kind"`
	Title string `json:"title" yaml:"title"`
}

// String renders the reference the way an applier names resources,
// e.g. Neutron_config[database/connection].
func (r Ref) String() string {
	kind := string(r.Kind)
	if kind != "" {
		kind = strings.ToUpper(kind[:1]) + kind[1:]
	}
	return fmt.Sprintf("%s[%s]", kind, r.Title)
}

// Ensure is the desired presence of a config key.
type Ensure string

const (
	// EnsurePresent sets the key to a value.
	EnsurePresent Ensure = "present"

	// EnsureAbsent removes the key from the file.
	EnsureAbsent Ensure = "absent"
)

// Service ensure values.
const (
	ServiceRunning = "running"
	ServiceStopped = "stopped"
)

// Directive is a single declared unit of desired system state.
// Exactly one of Config, Package, Service or Exec is set, matching Kind.
type Directive struct {
	// Kind is the resource type of this directive.
	Kind Kind `json:"kind" yaml:"kind"`

	// Title uniquely identifies the directive within its kind.
	Title string `json:"title" yaml:"title"`

	Config  *ConfigAssignment `json:"config,omitempty" yaml:"config,omitempty"`
	Package *PackageDirective `json:"package,omitempty" yaml:"package,omitempty"`
	Service *ServiceDirective `json:"service,omitempty" yaml:"service,omitempty"`
	Exec    *ExecDirective    `json:"exec,omitempty" yaml:"exec,omitempty"`

	// Relations are the ordering and refresh edges declared on this directive.
	Relations Relations `json:"relations,omitempty" yaml:"relations,omitempty"`
}

// Ref returns the reference to this directive.
func (d *Directive) Ref() Ref {
	return Ref{Kind: d.Kind, Title: d.Title}
}

// Relations are the edges a directive declares toward others.
type Relations struct {
	// Before lists directives that must be applied after this one.
	Before []Ref `json:"before,omitempty" yaml:"before,omitempty"`

	// Require lists directives that must be applied before this one.
	Require []Ref `json:"require,omitempty" yaml:"require,omitempty"`

	// Subscribe lists directives whose change refreshes this one.
	Subscribe []Ref `json:"subscribe,omitempty" yaml:"subscribe,omitempty"`

	// Notify lists directives refreshed when this one changes.
	Notify []Ref `json:"notify,omitempty" yaml:"notify,omitempty"`
}

// IsEmpty reports whether no relation is declared.
func (r Relations) IsEmpty() bool {
	return len(r.Before) == 0 && len(r.Require) == 0 &&
		len(r.Subscribe) == 0 && len(r.Notify) == 0
}

// ConfigAssignment sets or removes a key in an INI-style config file.
type ConfigAssignment struct {
	// File is the path of the config file the key lives in.
	File string `json:"file" yaml:"file"`

	// Section is the INI section, e.g. "database" or "filter:authtoken".
	Section string `json:"section" yaml:"section"`

	// Key is the option name within the section.
	Key string `json:"key" yaml:"key"`

	// Value is the option value; empty and omitted for tombstones.
	Value string `json:"value,omitempty" yaml:"value,omitempty"`

	// Secret marks values that must be redacted in logs and reports.
	Secret bool `json:"secret,omitempty" yaml:"secret,omitempty"`

	// Ensure is present for assignments and absent for tombstones.
	Ensure Ensure `json:"ensure" yaml:"ensure"`
}

// PackageDirective installs an OS package.
type PackageDirective struct {
	Name   string `json:"name" yaml:"name"`
	Ensure string `json:"ensure" yaml:"ensure"`
}

// ServiceDirective manages a system service.
type ServiceDirective struct {
	Name   string `json:"name" yaml:"name"`
	Enable bool   `json:"enable" yaml:"enable"`

	// Ensure is nil when the service state is not managed.
	Ensure *string `json:"ensure,omitempty" yaml:"ensure,omitempty"`
}

// ExecDirective runs a command.
type ExecDirective struct {
	Command string `json:"command" yaml:"command"`
	Path    string `json:"path" yaml:"path"`

	// RefreshOnly execs run only when a subscribed dependency changes.
	RefreshOnly bool `json:"refreshonly" yaml:"refreshonly"`
}

// Facts are ambient environment values supplied by the caller.
type Facts struct {
	// OSFamily is the operating system family (Debian, RedHat).
	OSFamily string `json:"osfamily" yaml:"osfamily" validate:"required"`

	// ProcessorCount is the number of processors as a decimal string. It
	// seeds worker counts that are not set explicitly.
	ProcessorCount string `json:"processorcount" yaml:"processorcount" validate:"omitempty,numeric"`
}

// Catalog is the ordered result of a successful resolution.
type Catalog struct {
	// Class is the name of the class that produced the catalog.
	Class string `json:"class" yaml:"class"`

	// Facts echoes the facts the catalog was compiled against.
	Facts Facts `json:"facts" yaml:"facts"`

	// Directives are the emitted directives in emission order.
	Directives []Directive `json:"directives" yaml:"directives"`
}

// Find returns the directive with the given reference.
func (c *Catalog) Find(ref Ref) (*Directive, bool) {
	for i := range c.Directives {
		if c.Directives[i].Kind == ref.Kind && c.Directives[i].Title == ref.Title {
			return &c.Directives[i], true
		}
	}
	return nil, false
}

// OfKind returns the directives of the given kind in emission order.
func (c *Catalog) OfKind(kind Kind) []Directive {
	var out []Directive
	for _, d := range c.Directives {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// Refs returns the references of all directives in emission order.
func (c *Catalog) Refs() []Ref {
	refs := make([]Ref, len(c.Directives))
	for i := range c.Directives {
		refs[i] = c.Directives[i].Ref()
	}
	return refs
}
