package policy

import (
	"fmt"
	"time"

	"github.com/openfroyo/froyo-neutron/pkg/engine"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for errors that should block operations.
	SeverityError Severity = "error"

	// SeverityCritical is for critical violations that must be addressed immediately.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether the severity denies a catalog in enforcing mode.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// ParseSeverity parses a severity name.
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(s); sev {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return sev, nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

// Mode controls what a blocking violation does.
type Mode string

const (
	// ModeAdvisory logs violations and always allows the catalog.
	ModeAdvisory Mode = "advisory"

	// ModeEnforcing denies catalogs with error or critical violations.
	ModeEnforcing Mode = "enforcing"
)

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAdvisory, ModeEnforcing:
		return m, nil
	default:
		return "", fmt.Errorf("unknown policy mode %q (must be advisory or enforcing)", s)
	}
}

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code. Violations are read from the
	// module's deny set.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Builtin marks policies shipped with the engine.
	Builtin bool `json:"builtin,omitempty"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Source is the file the policy was loaded from.
	Source string `json:"source,omitempty"`

	// LoadedAt is when the policy was loaded.
	LoadedAt time.Time `json:"loaded_at"`
}

// Violation represents a single policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Directive is the reference of the offending directive, if any.
	Directive string `json:"directive,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`

	// Remediation provides suggested fixes.
	Remediation string `json:"remediation,omitempty"`
}

// String formats the violation for reports.
func (v Violation) String() string {
	if v.Directive != "" {
		return fmt.Sprintf("[%s] %s: %s (%s)", v.Severity, v.Policy, v.Message, v.Directive)
	}
	return fmt.Sprintf("[%s] %s: %s", v.Severity, v.Policy, v.Message)
}

// Result represents the result of evaluating all policies on a catalog.
type Result struct {
	// Allowed indicates if the catalog may be used.
	Allowed bool `json:"allowed"`

	// Mode is the mode the evaluation ran in.
	Mode Mode `json:"mode"`

	// Violations lists all policy violations, sorted.
	Violations []Violation `json:"violations"`

	// Warnings lists policies that failed to evaluate.
	Warnings []string `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// EvaluatedAt is when the policy was evaluated.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Blocking returns the violations that deny the catalog in enforcing mode.
func (r *Result) Blocking() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity.Blocking() {
			out = append(out, v)
		}
	}
	return out
}

// DeniedError returns a POLICY_DENIED engine error when the result does
// not allow the catalog, and nil otherwise.
func (r *Result) DeniedError() error {
	if r.Allowed {
		return nil
	}
	blocking := r.Blocking()
	err := engine.NewPermanentError(
		fmt.Sprintf("catalog denied by %d policy violation(s)", len(blocking)), nil).
		WithCode(engine.ErrCodePolicyDenied)
	for i, v := range blocking {
		err = err.WithDetail(fmt.Sprintf("violation_%d", i), v.String())
	}
	return err
}

// Input is the document policies are evaluated against.
type Input struct {
	// Class is the class that produced the catalog.
	Class string `json:"class"`

	// Facts are the facts the catalog was compiled against.
	Facts engine.Facts `json:"facts"`

	// Directives are the catalog's directives with secret values redacted.
	Directives []InputDirective `json:"directives"`

	// Context describes the evaluation.
	Context InputContext `json:"context"`
}

// InputDirective is a directive with its rendered reference.
type InputDirective struct {
	// Ref is the directive reference, e.g. Service[neutron-server].
	Ref string `json:"ref"`

	engine.Directive
}

// InputContext provides context information for policy evaluation.
type InputContext struct {
	// Source is the parameter file the catalog was compiled from.
	Source string `json:"source,omitempty"`

	// Mode is the evaluation mode.
	Mode Mode `json:"mode"`

	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`
}

// NewInput builds the policy input for a catalog. Secret values never
// reach policies.
func NewInput(catalog *engine.Catalog, source string, mode Mode) *Input {
	redacted := catalog.Redacted()
	in := &Input{
		Class:      redacted.Class,
		Facts:      redacted.Facts,
		Directives: make([]InputDirective, len(redacted.Directives)),
		Context: InputContext{
			Source:    source,
			Mode:      mode,
			Timestamp: time.Now().UTC(),
		},
	}
	for i, d := range redacted.Directives {
		in.Directives[i] = InputDirective{Ref: d.Ref().String(), Directive: d}
	}
	return in
}
