package policy

import (
	"time"
)

// DefaultSensitiveKeys are the key fragments the secret-values policy
// treats as credentials.
var DefaultSensitiveKeys = []string{"password", "connection", "secret", "token"}

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		secretValuesPolicy(),
		refreshOnlyExecPolicy(),
		packageOrderingPolicy(),
		execTriggerPolicy(),
	}
}

func builtin(p Policy) Policy {
	p.Enabled = true
	p.Builtin = true
	p.LoadedAt = time.Now()
	return p
}

// secretValuesPolicy requires credentials to be marked secret so they are
// redacted in reports and sealed in the archive.
func secretValuesPolicy() Policy {
	return builtin(Policy{
		Name:        "secret-values",
		Description: "Config keys holding credentials must be marked secret",
		Severity:    SeverityError,
		Tags:        []string{"secrets"},
		Rego: `package froyo.policies.secrets

import rego.v1

sensitive(key) if {
	some fragment in data.froyo.sensitive_keys
	contains(key, fragment)
}

deny contains violation if {
	some d in input.directives
	d.config.ensure == "present"
	sensitive(d.config.key)
	not d.config.secret
	violation := {
		"message": sprintf("%s holds a credential but is not marked secret", [d.ref]),
		"severity": "error",
		"directive": d.ref,
		"remediation": "mark the assignment secret",
	}
}
`,
	})
}

// refreshOnlyExecPolicy forbids execs that run on every apply.
func refreshOnlyExecPolicy() Policy {
	return builtin(Policy{
		Name:        "refreshonly-exec",
		Description: "Exec directives must only run when refreshed",
		Severity:    SeverityError,
		Tags:        []string{"exec"},
		Rego: `package froyo.policies.exec

import rego.v1

deny contains violation if {
	some d in input.directives
	d.kind == "exec"
	not d.exec.refreshonly
	violation := {
		"message": sprintf("%s runs on every apply", [d.ref]),
		"severity": "error",
		"directive": d.ref,
		"remediation": "set refreshonly and subscribe the exec to its trigger",
	}
}
`,
	})
}

// packageOrderingPolicy requires every service to be ordered after a
// package.
func packageOrderingPolicy() Policy {
	return builtin(Policy{
		Name:        "package-ordering",
		Description: "Services must be ordered after the package that installs them",
		Severity:    SeverityError,
		Tags:        []string{"ordering"},
		Rego: `package froyo.policies.ordering

import rego.v1

installed_before(svc) if {
	some pkg in input.directives
	pkg.kind == "package"
	some ref in pkg.relations.before
	ref.kind == "service"
	ref.title == svc.title
}

installed_before(svc) if {
	some ref in svc.relations.require
	ref.kind == "package"
}

deny contains violation if {
	some svc in input.directives
	svc.kind == "service"
	not installed_before(svc)
	violation := {
		"message": sprintf("%s is not ordered after any package", [svc.ref]),
		"severity": "error",
		"directive": svc.ref,
		"remediation": "require the package from the service",
	}
}
`,
	})
}

// execTriggerPolicy warns about refresh-only execs nothing can refresh.
func execTriggerPolicy() Policy {
	return builtin(Policy{
		Name:        "exec-trigger",
		Description: "Refresh-only execs need a subscription or a notifier",
		Severity:    SeverityWarning,
		Tags:        []string{"exec"},
		Rego: `package froyo.policies.trigger

import rego.v1

triggered(d) if count(d.relations.subscribe) > 0

triggered(d) if {
	some other in input.directives
	some ref in other.relations.notify
	ref.kind == "exec"
	ref.title == d.title
}

deny contains violation if {
	some d in input.directives
	d.kind == "exec"
	d.exec.refreshonly
	not triggered(d)
	violation := {
		"message": sprintf("%s is refresh-only but nothing refreshes it", [d.ref]),
		"severity": "warning",
		"directive": d.ref,
	}
}
`,
	})
}
