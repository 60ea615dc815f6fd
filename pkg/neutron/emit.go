package neutron

import (
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/openfroyo/froyo-neutron/pkg/engine"
)

// ClassName is the class name recorded on emitted catalogs.
const ClassName = "neutron::server"

// DBSyncCommand migrates the neutron database schema.
const DBSyncCommand = "neutron-db-manage --config-file /etc/neutron/neutron.conf " +
	"--config-file /etc/neutron/plugin.ini upgrade head"

const (
	dbSyncTitle = "neutron-db-sync"
	dbSyncPath  = "/usr/bin"

	// serviceTitle is fixed so relations stay stable when service_name
	// is customized.
	serviceTitle = "neutron-server"
)

// ServiceRef is the reference of the server service directive.
var ServiceRef = engine.Ref{Kind: engine.KindService, Title: serviceTitle}

// DatabaseConnectionRef is the reference of the database connection key.
var DatabaseConnectionRef = engine.Ref{Kind: engine.KindNeutronConfig, Title: "database/connection"}

// Emit validates the parameters and resolves them into a catalog.
//
// On a validation failure it returns a nil catalog and a *ValidationError.
// Identical inputs always produce identical catalogs.
func Emit(p Params, facts engine.Facts) (*engine.Catalog, error) {
	p = p.normalized()
	if err := Validate(p, facts); err != nil {
		return nil, err
	}

	platform, _ := LookupPlatform(facts.OSFamily)

	var directives []engine.Directive
	directives = append(directives, emitDatabase(p)...)
	directives = append(directives, resolveAuth(p)...)
	directives = append(directives, emitDefaults(p, facts)...)

	var configRefs []engine.Ref
	for i := range directives {
		configRefs = append(configRefs, directives[i].Ref())
	}

	pkg := emitPackage(p, platform, configRefs)
	directives = append(directives, pkg)

	directives = append(directives, emitService(p, platform, pkg.Ref(), configRefs))

	if p.SyncDB {
		directives = append(directives, emitDBSync())
	}

	catalog := &engine.Catalog{
		Class:      ClassName,
		Facts:      facts,
		Directives: directives,
	}

	if _, err := engine.NewGraphBuilder().BuildGraph(catalog); err != nil {
		return nil, engine.NewPermanentError("emitted catalog has invalid relations", err).
			WithCode(engine.ErrCodeInternal)
	}

	log.Debug().
		Str("osfamily", facts.OSFamily).
		Str("auth_mode", modeOf(p).String()).
		Int("directives", len(directives)).
		Msg("Resolved neutron server catalog")

	return catalog, nil
}

func emitDatabase(p Params) []engine.Directive {
	db := newSection(engine.KindNeutronConfig, NeutronConfPath, "database")
	db.secret("connection", p.DatabaseConnection)
	db.set("max_retries", p.DatabaseMaxRetries)
	db.set("idle_timeout", p.DatabaseIdleTimeout)
	db.set("retry_interval", p.DatabaseRetryInterval)
	db.set("min_pool_size", p.DatabaseMinPoolSize)
	db.set("max_pool_size", p.DatabaseMaxPoolSize)
	db.set("max_overflow", p.DatabaseMaxOverflow)
	return db.directives
}

func emitDefaults(p Params, facts engine.Facts) []engine.Directive {
	def := newSection(engine.KindNeutronConfig, NeutronConfPath, "DEFAULT")
	def.set("api_workers", orDefault(p.APIWorkers, facts.ProcessorCount))
	def.set("rpc_workers", orDefault(p.RPCWorkers, facts.ProcessorCount))
	def.set("agent_down_time", p.AgentDownTime)
	def.set("router_scheduler_driver", p.RouterSchedulerDriver)
	def.set("router_distributed", strconv.FormatBool(p.RouterDistributed))
	def.set("l3_ha", strconv.FormatBool(p.L3HA))
	if p.L3HA {
		def.set("max_l3_agents_per_router", p.MaxL3AgentsPerRouter)
		def.set("min_l3_agents_per_router", p.MinL3AgentsPerRouter)
		def.set("l3_ha_net_cidr", p.L3HANetCIDR)
	}
	if p.StatePath != nil {
		def.set("state_path", *p.StatePath)
	}
	if p.LockPath != nil {
		def.set("lock_path", *p.LockPath)
	}
	return def.directives
}

func emitPackage(p Params, platform Platform, configRefs []engine.Ref) engine.Directive {
	before := make([]engine.Ref, 0, len(configRefs)+1)
	before = append(before, configRefs...)
	before = append(before, ServiceRef)

	return engine.Directive{
		Kind:  engine.KindPackage,
		Title: platform.PackageTitle,
		Package: &engine.PackageDirective{
			Name:   platform.PackageName,
			Ensure: p.PackageEnsure,
		},
		Relations: engine.Relations{Before: before},
	}
}

func emitService(p Params, platform Platform, pkg engine.Ref, configRefs []engine.Ref) engine.Directive {
	name := p.ServiceName
	if name == "" {
		name = platform.ServiceName
	}

	svc := &engine.ServiceDirective{
		Name:   name,
		Enable: p.Enabled,
	}
	if p.ManageService {
		ensure := engine.ServiceStopped
		if p.Enabled {
			ensure = engine.ServiceRunning
		}
		svc.Ensure = &ensure
	}

	return engine.Directive{
		Kind:    engine.KindService,
		Title:   serviceTitle,
		Service: svc,
		Relations: engine.Relations{
			Require:   []engine.Ref{pkg},
			Subscribe: append([]engine.Ref(nil), configRefs...),
		},
	}
}

func emitDBSync() engine.Directive {
	return engine.Directive{
		Kind:  engine.KindExec,
		Title: dbSyncTitle,
		Exec: &engine.ExecDirective{
			Command:     DBSyncCommand,
			Path:        dbSyncPath,
			RefreshOnly: true,
		},
		Relations: engine.Relations{
			Before:    []engine.Ref{ServiceRef},
			Subscribe: []engine.Ref{DatabaseConnectionRef},
		},
	}
}

func orDefault(v *string, def string) string {
	if v != nil {
		return *v
	}
	return def
}

// section accumulates config directives for one file section.
type section struct {
	kind       engine.Kind
	file       string
	name       string
	directives []engine.Directive
}

func newSection(kind engine.Kind, file, name string) *section {
	return &section{kind: kind, file: file, name: name}
}

func (s *section) add(key, value string, secret bool, ensure engine.Ensure) {
	s.directives = append(s.directives, engine.Directive{
		Kind:  s.kind,
		Title: s.name + "/" + key,
		Config: &engine.ConfigAssignment{
			File:    s.file,
			Section: s.name,
			Key:     key,
			Value:   value,
			Secret:  secret,
			Ensure:  ensure,
		},
	})
}

func (s *section) set(key, value string) {
	s.add(key, value, false, engine.EnsurePresent)
}

func (s *section) secret(key, value string) {
	s.add(key, value, true, engine.EnsurePresent)
}

func (s *section) absent(key string) {
	s.add(key, "", false, engine.EnsureAbsent)
}

// setOptional sets the key when v is non-nil and tombstones it otherwise.
func (s *section) setOptional(key string, v *string) {
	if v == nil {
		s.absent(key)
		return
	}
	s.set(key, *v)
}
