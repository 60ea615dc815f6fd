// Package policy evaluates compiled catalogs against Open Policy Agent
// (OPA) Rego policies.
//
// Each policy is a Rego module whose `deny` set lists violations. An entry
// is either a message string or an object:
//
//	deny contains violation if {
//	    some d in input.directives
//	    d.kind == "exec"
//	    not d.exec.refreshonly
//	    violation := {
//	        "message": sprintf("%s runs on every apply", [d.ref]),
//	        "severity": "error",
//	        "directive": d.ref,
//	    }
//	}
//
// # Input
//
// Policies see the catalog with secret values redacted:
//
//	input.class        the class name, e.g. neutron::server
//	input.facts        osfamily and processorcount
//	input.directives   directives in emission order, each with a `ref`
//	                   such as Service[neutron-server]
//	input.context      source file, mode and timestamp
//
// data.froyo.sensitive_keys holds the key fragments the secret-values
// policy treats as credentials.
//
// # Built-in Policies
//
//   - secret-values: credential keys must be marked secret
//   - refreshonly-exec: execs must be refresh-only
//   - package-ordering: services must be ordered after a package
//   - exec-trigger: refresh-only execs need a subscription or notifier (warning)
//
// # Modes
//
// In advisory mode violations are logged and the catalog is always
// allowed. In enforcing mode an error or critical violation denies the
// catalog; Result.DeniedError returns an engine.EngineError with code
// POLICY_DENIED.
//
// # Usage
//
//	eng, err := policy.NewEngine(logger, policy.WithMode(policy.ModeEnforcing))
//	if err != nil {
//	    return err
//	}
//	if err := eng.LoadPolicies(ctx, []string{"/etc/froyo/policies"}); err != nil {
//	    return err
//	}
//	result, err := eng.Evaluate(ctx, catalog, "neutron.yaml")
//	if err != nil {
//	    return err
//	}
//	if err := result.DeniedError(); err != nil {
//	    return err
//	}
//
// Custom policies are loaded from .rego files, named after the file, or
// from .json policy definitions. A "# severity: <level>" line in the
// leading comment block sets a .rego policy's default severity.
// WatchPolicies reloads them on change.
package policy
