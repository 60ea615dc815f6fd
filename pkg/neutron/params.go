package neutron

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Params is the parameter set of the neutron server class.
//
// Optional parameters whose presence matters are pointers: nil means unset,
// while a pointer to "" is an explicit empty value.
type Params struct {
	PackageEnsure string `json:"package_ensure" yaml:"package_ensure" validate:"required"`
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	ManageService bool   `json:"manage_service" yaml:"manage_service"`

	// ServiceName defaults to the platform service name when empty.
	ServiceName string `json:"service_name,omitempty" yaml:"service_name,omitempty" validate:"omitempty,printascii,excludesall=/"`

	AuthType        string  `json:"auth_type" yaml:"auth_type" validate:"oneof=keystone"`
	AuthHost        string  `json:"auth_host" yaml:"auth_host" validate:"required"`
	AuthPort        string  `json:"auth_port" yaml:"auth_port" validate:"required"`
	AuthProtocol    string  `json:"auth_protocol" yaml:"auth_protocol" validate:"oneof=http https"`
	AuthTenant      string  `json:"auth_tenant" yaml:"auth_tenant" validate:"required"`
	AuthUser        string  `json:"auth_user" yaml:"auth_user" validate:"required"`
	AuthPassword    string  `json:"auth_password" yaml:"auth_password"`
	AuthAdminPrefix *string `json:"auth_admin_prefix,omitempty" yaml:"auth_admin_prefix,omitempty"`
	AuthURI         *string `json:"auth_uri,omitempty" yaml:"auth_uri,omitempty" validate:"omitempty,url"`
	IdentityURI     *string `json:"identity_uri,omitempty" yaml:"identity_uri,omitempty" validate:"omitempty,url"`

	DatabaseConnection    string `json:"database_connection" yaml:"database_connection" validate:"required"`
	DatabaseMaxRetries    string `json:"database_max_retries" yaml:"database_max_retries"`
	DatabaseIdleTimeout   string `json:"database_idle_timeout" yaml:"database_idle_timeout"`
	DatabaseRetryInterval string `json:"database_retry_interval" yaml:"database_retry_interval"`
	DatabaseMinPoolSize   string `json:"database_min_pool_size" yaml:"database_min_pool_size"`
	DatabaseMaxPoolSize   string `json:"database_max_pool_size" yaml:"database_max_pool_size"`
	DatabaseMaxOverflow   string `json:"database_max_overflow" yaml:"database_max_overflow"`
	SyncDB                bool   `json:"sync_db" yaml:"sync_db"`

	// APIWorkers and RPCWorkers default to the processor count fact.
	APIWorkers *string `json:"api_workers,omitempty" yaml:"api_workers,omitempty"`
	RPCWorkers *string `json:"rpc_workers,omitempty" yaml:"rpc_workers,omitempty"`

	AgentDownTime         string `json:"agent_down_time" yaml:"agent_down_time"`
	RouterSchedulerDriver string `json:"router_scheduler_driver" yaml:"router_scheduler_driver" validate:"required"`
	RouterDistributed     bool   `json:"router_distributed" yaml:"router_distributed"`
	L3HA                  bool   `json:"l3_ha" yaml:"l3_ha"`
	MaxL3AgentsPerRouter  string `json:"max_l3_agents_per_router" yaml:"max_l3_agents_per_router"`
	MinL3AgentsPerRouter  string `json:"min_l3_agents_per_router" yaml:"min_l3_agents_per_router"`
	L3HANetCIDR           string `json:"l3_ha_net_cidr" yaml:"l3_ha_net_cidr" validate:"cidr"`

	// StatePath and LockPath override the base configuration when set.
	StatePath *string `json:"state_path,omitempty" yaml:"state_path,omitempty"`
	LockPath  *string `json:"lock_path,omitempty" yaml:"lock_path,omitempty"`
}

// DefaultParams returns the parameter set with every declared default.
// AuthPassword has no default and must be supplied.
func DefaultParams() Params {
	return Params{
		PackageEnsure:         "present",
		Enabled:               true,
		ManageService:         true,
		AuthType:              "keystone",
		AuthHost:              "localhost",
		AuthPort:              "35357",
		AuthProtocol:          "http",
		AuthTenant:            "services",
		AuthUser:              "neutron",
		DatabaseConnection:    "sqlite:////var/lib/neutron/ovs.sqlite",
		DatabaseMaxRetries:    "10",
		DatabaseIdleTimeout:   "3600",
		DatabaseRetryInterval: "10",
		DatabaseMinPoolSize:   "1",
		DatabaseMaxPoolSize:   "10",
		DatabaseMaxOverflow:   "20",
		AgentDownTime:         "75",
		RouterSchedulerDriver: "neutron.scheduler.l3_agent_scheduler.ChanceScheduler",
		MaxL3AgentsPerRouter:  "3",
		MinL3AgentsPerRouter:  "2",
		L3HANetCIDR:           "169.254.192.0/18",
	}
}

// normalized treats an empty auth_uri or identity_uri as unset, so the
// derived endpoint and the legacy keys apply.
func (p Params) normalized() Params {
	if p.AuthURI != nil && *p.AuthURI == "" {
		p.AuthURI = nil
	}
	if p.IdentityURI != nil && *p.IdentityURI == "" {
		p.IdentityURI = nil
	}
	return p
}

// StringPtr returns a pointer to s, for optional parameters.
func StringPtr(s string) *string {
	return &s
}

type paramKind int

const (
	kindString paramKind = iota
	kindInt
	kindBool
	kindOptString
	kindOptInt
)

// paramSetter applies a raw value to one field of Params.
type paramSetter struct {
	kind paramKind
	str  func(p *Params) *string
	opt  func(p *Params) **string
	flag func(p *Params) *bool
}

// paramTable maps parameter names to their field. It is the single source
// of truth for which names ParamsFromMap accepts.
var paramTable = map[string]paramSetter{
	"package_ensure":           {kind: kindString, str: func(p *Params) *string { return &p.PackageEnsure }},
	"enabled":                  {kind: kindBool, flag: func(p *Params) *bool { return &p.Enabled }},
	"manage_service":           {kind: kindBool, flag: func(p *Params) *bool { return &p.ManageService }},
	"service_name":             {kind: kindString, str: func(p *Params) *string { return &p.ServiceName }},
	"auth_type":                {kind: kindString, str: func(p *Params) *string { return &p.AuthType }},
	"auth_host":                {kind: kindString, str: func(p *Params) *string { return &p.AuthHost }},
	"auth_port":                {kind: kindInt, str: func(p *Params) *string { return &p.AuthPort }},
	"auth_protocol":            {kind: kindString, str: func(p *Params) *string { return &p.AuthProtocol }},
	"auth_tenant":              {kind: kindString, str: func(p *Params) *string { return &p.AuthTenant }},
	"auth_user":                {kind: kindString, str: func(p *Params) *string { return &p.AuthUser }},
	"auth_password":            {kind: kindString, str: func(p *Params) *string { return &p.AuthPassword }},
	"auth_admin_prefix":        {kind: kindOptString, opt: func(p *Params) **string { return &p.AuthAdminPrefix }},
	"auth_uri":                 {kind: kindOptString, opt: func(p *Params) **string { return &p.AuthURI }},
	"identity_uri":             {kind: kindOptString, opt: func(p *Params) **string { return &p.IdentityURI }},
	"database_connection":      {kind: kindString, str: func(p *Params) *string { return &p.DatabaseConnection }},
	"database_max_retries":     {kind: kindInt, str: func(p *Params) *string { return &p.DatabaseMaxRetries }},
	"database_idle_timeout":    {kind: kindInt, str: func(p *Params) *string { return &p.DatabaseIdleTimeout }},
	"database_retry_interval":  {kind: kindInt, str: func(p *Params) *string { return &p.DatabaseRetryInterval }},
	"database_min_pool_size":   {kind: kindInt, str: func(p *Params) *string { return &p.DatabaseMinPoolSize }},
	"database_max_pool_size":   {kind: kindInt, str: func(p *Params) *string { return &p.DatabaseMaxPoolSize }},
	"database_max_overflow":    {kind: kindInt, str: func(p *Params) *string { return &p.DatabaseMaxOverflow }},
	"sync_db":                  {kind: kindBool, flag: func(p *Params) *bool { return &p.SyncDB }},
	"api_workers":              {kind: kindOptInt, opt: func(p *Params) **string { return &p.APIWorkers }},
	"rpc_workers":              {kind: kindOptInt, opt: func(p *Params) **string { return &p.RPCWorkers }},
	"agent_down_time":          {kind: kindInt, str: func(p *Params) *string { return &p.AgentDownTime }},
	"router_scheduler_driver":  {kind: kindString, str: func(p *Params) *string { return &p.RouterSchedulerDriver }},
	"router_distributed":       {kind: kindBool, flag: func(p *Params) *bool { return &p.RouterDistributed }},
	"l3_ha":                    {kind: kindBool, flag: func(p *Params) *bool { return &p.L3HA }},
	"max_l3_agents_per_router": {kind: kindInt, str: func(p *Params) *string { return &p.MaxL3AgentsPerRouter }},
	"min_l3_agents_per_router": {kind: kindInt, str: func(p *Params) *string { return &p.MinL3AgentsPerRouter }},
	"l3_ha_net_cidr":           {kind: kindString, str: func(p *Params) *string { return &p.L3HANetCIDR }},
	"state_path":               {kind: kindOptString, opt: func(p *Params) **string { return &p.StatePath }},
	"lock_path":                {kind: kindOptString, opt: func(p *Params) **string { return &p.LockPath }},
}

// ParameterNames returns every accepted parameter name, sorted.
func ParameterNames() []string {
	names := make([]string, 0, len(paramTable))
	for name := range paramTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParamsFromMap builds a parameter set from loosely typed values, starting
// from DefaultParams. Integer-like parameters accept integral numbers or
// strings, booleans accept bools or "true"/"false". A nil value leaves the
// default in place. Unknown names are rejected.
func ParamsFromMap(values map[string]any) (Params, error) {
	p := DefaultParams()

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		raw := values[name]
		setter, ok := paramTable[name]
		if !ok {
			return Params{}, newValidationError(name, fmt.Sprintf("unknown parameter %q", name))
		}
		if raw == nil {
			continue
		}

		switch setter.kind {
		case kindString, kindInt:
			s, err := coerceString(name, raw, setter.kind == kindInt)
			if err != nil {
				return Params{}, err
			}
			*setter.str(&p) = s
		case kindOptString, kindOptInt:
			s, err := coerceString(name, raw, setter.kind == kindOptInt)
			if err != nil {
				return Params{}, err
			}
			*setter.opt(&p) = &s
		case kindBool:
			b, err := coerceBool(name, raw)
			if err != nil {
				return Params{}, err
			}
			*setter.flag(&p) = b
		}
	}

	return p, nil
}

// coerceString renders a scalar as the string form the class emits.
func coerceString(name string, raw any, integer bool) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return "", newValidationError(name, fmt.Sprintf("%s must be an integer, got %v", name, v))
		}
		return strconv.FormatInt(int64(v), 10), nil
	case bool:
		if integer {
			return "", newValidationError(name, fmt.Sprintf("%s must be an integer, got %v", name, v))
		}
		return strconv.FormatBool(v), nil
	default:
		return "", newValidationError(name, fmt.Sprintf("%s must be a scalar, got %T", name, raw))
	}
}

func coerceBool(name string, raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(v) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, newValidationError(name, fmt.Sprintf("%s must be a boolean, got %v", name, raw))
}
