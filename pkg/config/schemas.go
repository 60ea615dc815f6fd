package config

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Schema names registered by default.
const (
	SchemaNeutronServer = "neutron_server"
	SchemaFacts         = "facts"
)

// SchemaRegistry manages CUE schemas for validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	return newSchemaRegistry(cuecontext.New())
}

func newSchemaRegistry(ctx *cue.Context) *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     ctx,
		schemas: make(map[string]cue.Value),
	}

	// Built-in schemas always compile.
	if err := sr.registerBuiltInSchemas(); err != nil {
		panic(err)
	}

	return sr
}

// registerBuiltInSchemas registers all built-in schemas.
func (sr *SchemaRegistry) registerBuiltInSchemas() error {
	base := sr.ctx.CompileString(builtinNeutronSchema, cue.Filename("neutron.cue"))
	if err := base.Err(); err != nil {
		return fmt.Errorf("failed to compile built-in schema: %w", err)
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.schemas[SchemaNeutronServer] = base.LookupPath(cue.MakePath(cue.Def("NeutronServer")))
	sr.schemas[SchemaFacts] = base.LookupPath(cue.MakePath(cue.Def("Facts")))
	return nil
}

// RegisterSchema registers a CUE schema with the given name. The schema
// source must evaluate to the constraint itself, e.g. "{a: int}".
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateAgainstSchema validates data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(_ context.Context, schemaName string, data interface{}) error {
	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}
	return sr.Unify(schemaName, dataVal)
}

// Unify checks an already-built CUE value against a named schema.
func (sr *SchemaRegistry) Unify(schemaName string, val cue.Value) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return err
	}

	return nil
}

// ListSchemas returns all registered schema names, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Built-in schema definitions.
//
// #NeutronServer checks value types only; value rules such as the admin
// prefix pattern and the HA agent bounds are checked by neutron.Validate.
// The definition is open: unknown names are rejected by neutron.ParamsFromMap.
const builtinNeutronSchema = `
#IntString: (int & >=0) | (string & =~"^[0-9]+$")

#Facts: {
	osfamily?:       string
	processorcount?: #IntString
}

#NeutronServer: {
	package_ensure?: string
	enabled?:        bool
	manage_service?: bool
	service_name?:   string

	auth_type?:         string
	auth_host?:         string
	auth_port?:         #IntString
	auth_protocol?:     string
	auth_tenant?:       string
	auth_user?:         string
	auth_password?:     string
	auth_admin_prefix?: string
	auth_uri?:          string
	identity_uri?:      string

	database_connection?:     string
	database_max_retries?:    #IntString
	database_idle_timeout?:   #IntString
	database_retry_interval?: #IntString
	database_min_pool_size?:  #IntString
	database_max_pool_size?:  #IntString
	database_max_overflow?:   #IntString
	sync_db?:                 bool

	api_workers?:     #IntString
	rpc_workers?:     #IntString
	agent_down_time?: #IntString

	router_scheduler_driver?:  string
	router_distributed?:       bool
	l3_ha?:                    bool
	max_l3_agents_per_router?: #IntString
	min_l3_agents_per_router?: #IntString
	l3_ha_net_cidr?:           string

	state_path?: string
	lock_path?:  string

	facts?: #Facts
	...
}
`
