package neutron

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/openfroyo/froyo-neutron/pkg/engine"
)

// AdminPrefixPattern is the shape auth_admin_prefix must have: empty, or
// one or more "/segment" groups without a trailing slash.
const AdminPrefixPattern = `^(/[a-z0-9_-]+)*$`

var adminPrefixRe = regexp.MustCompile(AdminPrefixPattern)

var structValidator = newStructValidator()

// newStructValidator reports field errors by their parameter names and adds
// the intstr tag for the string-encoded integer parameters.
func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("intstr", func(fl validator.FieldLevel) bool {
		_, err := strconv.ParseUint(fl.Field().String(), 10, 64)
		return err == nil
	})
	return v
}

// Validate checks a parameter set and the facts it will be resolved with.
// It returns a *ValidationError describing the first problem found.
func Validate(p Params, facts engine.Facts) error {
	p = p.normalized()

	if p.AuthPassword == "" {
		return newValidationError("auth_password", "auth_password must be set")
	}

	if p.AuthAdminPrefix != nil && !adminPrefixRe.MatchString(*p.AuthAdminPrefix) {
		return newValidationError("auth_admin_prefix",
			fmt.Sprintf("auth_admin_prefix: %q does not match %q", *p.AuthAdminPrefix, AdminPrefixPattern))
	}

	if err := validateIntegers(p); err != nil {
		return err
	}

	if err := structValidator.Struct(p); err != nil {
		return fromValidatorError(err)
	}

	if p.L3HA && p.MaxL3AgentsPerRouter != "0" {
		// Both parse; validateIntegers ran first.
		maxAgents, _ := strconv.ParseUint(p.MaxL3AgentsPerRouter, 10, 64)
		minAgents, _ := strconv.ParseUint(p.MinL3AgentsPerRouter, 10, 64)
		if minAgents > maxAgents {
			return newValidationError("min_l3_agents_per_router",
				"min_l3_agents_per_router should be less than or equal to max_l3_agents_per_router.")
		}
	}

	return validateFacts(p, facts)
}

func validateIntegers(p Params) error {
	ints := []struct{ name, value string }{
		{"auth_port", p.AuthPort},
		{"database_max_retries", p.DatabaseMaxRetries},
		{"database_idle_timeout", p.DatabaseIdleTimeout},
		{"database_retry_interval", p.DatabaseRetryInterval},
		{"database_min_pool_size", p.DatabaseMinPoolSize},
		{"database_max_pool_size", p.DatabaseMaxPoolSize},
		{"database_max_overflow", p.DatabaseMaxOverflow},
		{"agent_down_time", p.AgentDownTime},
		{"max_l3_agents_per_router", p.MaxL3AgentsPerRouter},
		{"min_l3_agents_per_router", p.MinL3AgentsPerRouter},
	}
	if p.APIWorkers != nil {
		ints = append(ints, struct{ name, value string }{"api_workers", *p.APIWorkers})
	}
	if p.RPCWorkers != nil {
		ints = append(ints, struct{ name, value string }{"rpc_workers", *p.RPCWorkers})
	}

	for _, i := range ints {
		if err := checkInteger(i.name, i.value); err != nil {
			return err
		}
	}
	return nil
}

func checkInteger(name, value string) error {
	if err := structValidator.Var(value, "intstr"); err != nil {
		return newValidationError(name,
			fmt.Sprintf("%s: %q is not a non-negative integer", name, value))
	}
	return nil
}

func validateFacts(p Params, facts engine.Facts) error {
	if err := structValidator.Struct(facts); err != nil {
		return fromValidatorError(err)
	}
	if _, ok := LookupPlatform(facts.OSFamily); !ok {
		return newValidationError("osfamily",
			fmt.Sprintf("unsupported osfamily %q", facts.OSFamily))
	}
	if facts.ProcessorCount == "" {
		// processorcount is only read for worker counts left unset.
		if p.APIWorkers == nil || p.RPCWorkers == nil {
			return newValidationError("processorcount", "processorcount must be set")
		}
		return nil
	}
	if n, err := strconv.Atoi(facts.ProcessorCount); err != nil || n < 1 {
		return newValidationError("processorcount",
			fmt.Sprintf("processorcount: %q is not a positive integer", facts.ProcessorCount))
	}
	return nil
}

// fromValidatorError turns the first struct-tag failure into a
// ValidationError named after the offending parameter.
func fromValidatorError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return newValidationError("", err.Error())
	}

	fe := fieldErrs[0]
	name := fe.Field()
	value := fmt.Sprint(fe.Value())

	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s must be set", name)
	case "oneof":
		msg = fmt.Sprintf("%s: %q is not one of [%s]", name, value, fe.Param())
	case "cidr":
		msg = fmt.Sprintf("%s: %q is not a valid CIDR", name, value)
	case "url":
		msg = fmt.Sprintf("%s: %q is not a valid URL", name, value)
	case "numeric":
		msg = fmt.Sprintf("%s: %q is not numeric", name, value)
	case "printascii":
		msg = fmt.Sprintf("%s: %q contains non-printable characters", name, value)
	case "excludesall":
		msg = fmt.Sprintf("%s: %q must not contain any of %q", name, value, fe.Param())
	default:
		msg = fmt.Sprintf("%s: %q failed %s validation", name, value, fe.Tag())
	}
	return newValidationError(name, msg)
}
