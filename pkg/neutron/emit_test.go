package neutron

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/openfroyo/froyo-neutron/pkg/engine"
)

func debianFacts() engine.Facts {
	return engine.Facts{OSFamily: engine.OSFamilyDebian, ProcessorCount: "2"}
}

func redhatFacts() engine.Facts {
	return engine.Facts{OSFamily: engine.OSFamilyRedHat, ProcessorCount: "2"}
}

func testParams() Params {
	p := DefaultParams()
	p.AuthPassword = "passw0rd"
	return p
}

func mustEmit(t *testing.T, p Params, facts engine.Facts) *engine.Catalog {
	t.Helper()
	catalog, err := Emit(p, facts)
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	return catalog
}

func configRef(title string) engine.Ref {
	return engine.Ref{Kind: engine.KindNeutronConfig, Title: title}
}

func apiConfigRef(title string) engine.Ref {
	return engine.Ref{Kind: engine.KindNeutronAPIConfig, Title: title}
}

func mustFind(t *testing.T, catalog *engine.Catalog, ref engine.Ref) *engine.Directive {
	t.Helper()
	d, ok := catalog.Find(ref)
	if !ok {
		t.Fatalf("Directive %s not emitted", ref)
	}
	return d
}

func assertValue(t *testing.T, catalog *engine.Catalog, ref engine.Ref, want string) {
	t.Helper()
	d := mustFind(t, catalog, ref)
	if d.Config.Ensure != engine.EnsurePresent {
		t.Errorf("%s: expected ensure present, got %s", ref, d.Config.Ensure)
	}
	if d.Config.Value != want {
		t.Errorf("%s: expected value %q, got %q", ref, want, d.Config.Value)
	}
}

func assertAbsent(t *testing.T, catalog *engine.Catalog, ref engine.Ref) {
	t.Helper()
	d := mustFind(t, catalog, ref)
	if d.Config.Ensure != engine.EnsureAbsent {
		t.Errorf("%s: expected ensure absent, got %s (value %q)", ref, d.Config.Ensure, d.Config.Value)
	}
	if d.Config.Value != "" {
		t.Errorf("%s: tombstone carries value %q", ref, d.Config.Value)
	}
}

func assertNotEmitted(t *testing.T, catalog *engine.Catalog, ref engine.Ref) {
	t.Helper()
	if _, ok := catalog.Find(ref); ok {
		t.Errorf("Directive %s should not be emitted", ref)
	}
}

func TestEmit_DatabaseDefaults(t *testing.T) {
	for _, facts := range []engine.Facts{debianFacts(), redhatFacts()} {
		t.Run(facts.OSFamily, func(t *testing.T) {
			catalog := mustEmit(t, testParams(), facts)

			assertValue(t, catalog, configRef("database/connection"), "sqlite:////var/lib/neutron/ovs.sqlite")
			assertValue(t, catalog, configRef("database/max_retries"), "10")
			assertValue(t, catalog, configRef("database/idle_timeout"), "3600")
			assertValue(t, catalog, configRef("database/retry_interval"), "10")
			assertValue(t, catalog, configRef("database/min_pool_size"), "1")
			assertValue(t, catalog, configRef("database/max_pool_size"), "10")
			assertValue(t, catalog, configRef("database/max_overflow"), "20")

			if !mustFind(t, catalog, configRef("database/connection")).Config.Secret {
				t.Error("database/connection should be secret")
			}
		})
	}
}

func TestEmit_DatabaseConnectionSpecified(t *testing.T) {
	p := testParams()
	p.DatabaseConnection = "sqlite:////var/lib/neutron/ovs-TEST_parameter.sqlite"

	catalog := mustEmit(t, p, debianFacts())
	assertValue(t, catalog, configRef("database/connection"), p.DatabaseConnection)
}

func TestEmit_AuthMiddlewareDefaults(t *testing.T) {
	catalog := mustEmit(t, testParams(), debianFacts())

	assertValue(t, catalog, apiConfigRef("filter:authtoken/auth_host"), "localhost")
	assertValue(t, catalog, apiConfigRef("filter:authtoken/auth_port"), "35357")
	assertValue(t, catalog, apiConfigRef("filter:authtoken/auth_protocol"), "http")
	assertValue(t, catalog, apiConfigRef("filter:authtoken/admin_tenant_name"), "services")
	assertValue(t, catalog, apiConfigRef("filter:authtoken/admin_user"), "neutron")
	assertValue(t, catalog, apiConfigRef("filter:authtoken/admin_password"), "passw0rd")
	assertValue(t, catalog, apiConfigRef("filter:authtoken/auth_uri"), "http://localhost:5000/")
	assertAbsent(t, catalog, apiConfigRef("filter:authtoken/auth_admin_prefix"))

	if !mustFind(t, catalog, apiConfigRef("filter:authtoken/admin_password")).Config.Secret {
		t.Error("filter:authtoken/admin_password should be secret")
	}

	assertValue(t, catalog, configRef("keystone_authtoken/auth_uri"), "http://localhost:5000/")
	assertAbsent(t, catalog, configRef("keystone_authtoken/identity_uri"))
	assertValue(t, catalog, configRef("keystone_authtoken/auth_host"), "localhost")
	assertValue(t, catalog, configRef("keystone_authtoken/auth_port"), "35357")
	assertValue(t, catalog, configRef("keystone_authtoken/auth_protocol"), "http")
	assertAbsent(t, catalog, configRef("keystone_authtoken/auth_admin_prefix"))
	assertValue(t, catalog, configRef("keystone_authtoken/admin_password"), "passw0rd")
}

func TestEmit_DerivedAuthURIUsesProtocolAndHost(t *testing.T) {
	p := testParams()
	p.AuthProtocol = "https"
	p.AuthHost = "keystone.example.org"
	p.AuthPort = "443"

	catalog := mustEmit(t, p, debianFacts())
	assertValue(t, catalog, apiConfigRef("filter:authtoken/auth_uri"), "https://keystone.example.org:5000/")
	assertValue(t, catalog, configRef("keystone_authtoken/auth_uri"), "https://keystone.example.org:5000/")
}

func TestEmit_AuthURIOnlyKeepsLegacyValues(t *testing.T) {
	p := testParams()
	p.AuthURI = StringPtr("https://foo.bar:1234/")

	catalog := mustEmit(t, p, redhatFacts())

	assertValue(t, catalog, configRef("keystone_authtoken/auth_uri"), "https://foo.bar:1234/")
	assertValue(t, catalog, configRef("keystone_authtoken/auth_host"), "localhost")
	assertValue(t, catalog, configRef("keystone_authtoken/auth_port"), "35357")
	assertValue(t, catalog, configRef("keystone_authtoken/auth_protocol"), "http")
	assertAbsent(t, catalog, configRef("keystone_authtoken/identity_uri"))
	assertValue(t, catalog, apiConfigRef("filter:authtoken/auth_uri"), "https://foo.bar:1234/")
}

func TestEmit_IdentityURIOnlyKeepsLegacyValues(t *testing.T) {
	p := testParams()
	p.IdentityURI = StringPtr("https://foo.bar:1234/")

	catalog := mustEmit(t, p, redhatFacts())

	assertValue(t, catalog, configRef("keystone_authtoken/identity_uri"), "https://foo.bar:1234/")
	assertValue(t, catalog, configRef("keystone_authtoken/auth_uri"), "http://localhost:5000/")
	assertValue(t, catalog, configRef("keystone_authtoken/auth_host"), "localhost")
	assertValue(t, catalog, configRef("keystone_authtoken/auth_port"), "35357")
	assertValue(t, catalog, configRef("keystone_authtoken/auth_protocol"), "http")
}

func TestEmit_ExplicitWorkersWithoutProcessorCount(t *testing.T) {
	facts := engine.Facts{OSFamily: engine.OSFamilyRedHat}

	tests := []struct {
		name   string
		modify func(p *Params)
	}{
		{name: "auth_uri only", modify: func(p *Params) { p.AuthURI = StringPtr("https://foo.bar:1234/") }},
		{name: "identity_uri only", modify: func(p *Params) { p.IdentityURI = StringPtr("https://foo.bar:1234/") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams()
			tt.modify(&p)
			p.APIWorkers = StringPtr("4")
			p.RPCWorkers = StringPtr("4")

			catalog := mustEmit(t, p, facts)
			assertValue(t, catalog, configRef("DEFAULT/api_workers"), "4")
			assertValue(t, catalog, configRef("DEFAULT/rpc_workers"), "4")
		})
	}

	t.Run("one worker count derived", func(t *testing.T) {
		p := testParams()
		p.APIWorkers = StringPtr("4")

		_, err := Emit(p, facts)
		ve, ok := AsValidationError(err)
		if !ok {
			t.Fatalf("Expected ValidationError, got %v", err)
		}
		if ve.Parameter != "processorcount" {
			t.Errorf("Expected parameter processorcount, got %s", ve.Parameter)
		}
	})
}

func TestEmit_EmptyURIsAreUnset(t *testing.T) {
	p := testParams()
	p.AuthURI = StringPtr("")
	p.IdentityURI = StringPtr("")

	catalog := mustEmit(t, p, redhatFacts())

	assertValue(t, catalog, configRef("keystone_authtoken/auth_uri"), "http://localhost:5000/")
	assertValue(t, catalog, configRef("keystone_authtoken/auth_host"), "localhost")
	assertValue(t, catalog, configRef("keystone_authtoken/auth_port"), "35357")
	assertValue(t, catalog, configRef("keystone_authtoken/auth_protocol"), "http")
	assertAbsent(t, catalog, configRef("keystone_authtoken/identity_uri"))
	assertValue(t, catalog, apiConfigRef("filter:authtoken/auth_uri"), "http://localhost:5000/")
}

func TestEmit_IdentityAndAuthURITombstoneLegacy(t *testing.T) {
	p := testParams()
	p.IdentityURI = StringPtr("https://foo.bar:35357/")
	p.AuthURI = StringPtr("https://foo.bar:5000/v2.0/")
	p.AuthAdminPrefix = StringPtr("/keystone")

	catalog := mustEmit(t, p, redhatFacts())

	assertValue(t, catalog, configRef("keystone_authtoken/identity_uri"), "https://foo.bar:35357/")
	assertValue(t, catalog, configRef("keystone_authtoken/auth_uri"), "https://foo.bar:5000/v2.0/")
	assertAbsent(t, catalog, configRef("keystone_authtoken/auth_admin_prefix"))
	assertAbsent(t, catalog, configRef("keystone_authtoken/auth_port"))
	assertAbsent(t, catalog, configRef("keystone_authtoken/auth_protocol"))
	assertAbsent(t, catalog, configRef("keystone_authtoken/auth_host"))

	// Credentials are unaffected by the mode.
	assertValue(t, catalog, configRef("keystone_authtoken/admin_user"), "neutron")
	assertValue(t, catalog, configRef("keystone_authtoken/admin_tenant_name"), "services")
}

func TestEmit_AuthAdminPrefixAccepted(t *testing.T) {
	for _, prefix := range []string{"/keystone", "/keystone/admin", ""} {
		t.Run("prefix="+prefix, func(t *testing.T) {
			p := testParams()
			p.AuthAdminPrefix = StringPtr(prefix)

			catalog := mustEmit(t, p, debianFacts())
			assertValue(t, catalog, apiConfigRef("filter:authtoken/auth_admin_prefix"), prefix)
			assertValue(t, catalog, configRef("keystone_authtoken/auth_admin_prefix"), prefix)
		})
	}
}

func TestEmit_AuthAdminPrefixRejected(t *testing.T) {
	for _, prefix := range []string{"/keystone/", "keystone/", "keystone"} {
		t.Run("prefix="+prefix, func(t *testing.T) {
			p := testParams()
			p.AuthAdminPrefix = StringPtr(prefix)

			catalog, err := Emit(p, debianFacts())
			if catalog != nil {
				t.Error("Expected no catalog on validation failure")
			}
			ve, ok := AsValidationError(err)
			if !ok {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			want := `"` + prefix + `" does not match`
			if !strings.Contains(ve.Message, want) {
				t.Errorf("Expected message to contain %q, got %q", want, ve.Message)
			}
		})
	}
}

func TestEmit_BrokenAuthentication(t *testing.T) {
	p := DefaultParams()

	for _, facts := range []engine.Facts{debianFacts(), redhatFacts()} {
		catalog, err := Emit(p, facts)
		if catalog != nil {
			t.Error("Expected no catalog without auth_password")
		}
		if !IsValidationError(err) {
			t.Fatalf("Expected ValidationError, got %v", err)
		}
		if !strings.Contains(err.Error(), "auth_password must be set") {
			t.Errorf("Unexpected message: %v", err)
		}
	}
}

func TestEmit_PackageByPlatform(t *testing.T) {
	tests := []struct {
		name      string
		facts     engine.Facts
		wantTitle string
		wantName  string
	}{
		{
			name:      "debian ships a server package",
			facts:     debianFacts(),
			wantTitle: "neutron-server",
			wantName:  "neutron-server",
		},
		{
			name:      "redhat orders the base package",
			facts:     redhatFacts(),
			wantTitle: "neutron",
			wantName:  "openstack-neutron",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := mustEmit(t, testParams(), tt.facts)

			packages := catalog.OfKind(engine.KindPackage)
			if len(packages) != 1 {
				t.Fatalf("Expected 1 package, got %d", len(packages))
			}
			pkg := packages[0]
			if pkg.Title != tt.wantTitle || pkg.Package.Name != tt.wantName {
				t.Errorf("Expected Package[%s] name %s, got Package[%s] name %s",
					tt.wantTitle, tt.wantName, pkg.Title, pkg.Package.Name)
			}
			if pkg.Package.Ensure != "present" {
				t.Errorf("Expected ensure present, got %s", pkg.Package.Ensure)
			}

			before := make(map[engine.Ref]bool)
			for _, ref := range pkg.Relations.Before {
				before[ref] = true
			}
			for _, d := range catalog.Directives {
				if d.Kind.IsConfig() && !before[d.Ref()] {
					t.Errorf("Package is not ordered before %s", d.Ref())
				}
			}
			if !before[ServiceRef] {
				t.Error("Package is not ordered before Service[neutron-server]")
			}
		})
	}
}

func TestEmit_ServiceDefaults(t *testing.T) {
	catalog := mustEmit(t, testParams(), debianFacts())

	svc := mustFind(t, catalog, ServiceRef)
	if svc.Service.Name != "neutron-server" {
		t.Errorf("Expected service name neutron-server, got %s", svc.Service.Name)
	}
	if !svc.Service.Enable {
		t.Error("Expected service enabled")
	}
	if svc.Service.Ensure == nil || *svc.Service.Ensure != engine.ServiceRunning {
		t.Errorf("Expected ensure running, got %v", svc.Service.Ensure)
	}

	want := []engine.Ref{{Kind: engine.KindPackage, Title: "neutron-server"}}
	if diff := cmp.Diff(want, svc.Relations.Require); diff != "" {
		t.Errorf("Service require mismatch (-want +got):\n%s", diff)
	}

	if _, ok := catalog.Find(engine.Ref{Kind: engine.KindExec, Title: "neutron-db-sync"}); ok {
		t.Error("neutron-db-sync should not be emitted without sync_db")
	}
}

func TestEmit_ServiceOptions(t *testing.T) {
	tests := []struct {
		name       string
		modify     func(p *Params)
		wantName   string
		wantEnable bool
		wantEnsure *string
	}{
		{
			name:       "manage_service false leaves state alone",
			modify:     func(p *Params) { p.ManageService = false },
			wantName:   "neutron-server",
			wantEnable: true,
			wantEnsure: nil,
		},
		{
			name:       "disabled service is stopped",
			modify:     func(p *Params) { p.Enabled = false },
			wantName:   "neutron-server",
			wantEnable: false,
			wantEnsure: StringPtr(engine.ServiceStopped),
		},
		{
			name:       "custom service name",
			modify:     func(p *Params) { p.ServiceName = "custom-service-name" },
			wantName:   "custom-service-name",
			wantEnable: true,
			wantEnsure: StringPtr(engine.ServiceRunning),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams()
			tt.modify(&p)

			catalog := mustEmit(t, p, debianFacts())
			svc := mustFind(t, catalog, ServiceRef).Service

			if svc.Name != tt.wantName {
				t.Errorf("Expected name %s, got %s", tt.wantName, svc.Name)
			}
			if svc.Enable != tt.wantEnable {
				t.Errorf("Expected enable %v, got %v", tt.wantEnable, svc.Enable)
			}
			if diff := cmp.Diff(tt.wantEnsure, svc.Ensure); diff != "" {
				t.Errorf("Ensure mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEmit_ServiceSubscribesToConfig(t *testing.T) {
	catalog := mustEmit(t, testParams(), debianFacts())
	svc := mustFind(t, catalog, ServiceRef)

	subscribed := make(map[engine.Ref]bool)
	for _, ref := range svc.Relations.Subscribe {
		subscribed[ref] = true
	}
	for _, d := range catalog.Directives {
		if d.Kind.IsConfig() && !subscribed[d.Ref()] {
			t.Errorf("Service does not subscribe to %s", d.Ref())
		}
	}
}

func TestEmit_DefaultSection(t *testing.T) {
	catalog := mustEmit(t, testParams(), debianFacts())

	assertValue(t, catalog, configRef("DEFAULT/api_workers"), "2")
	assertValue(t, catalog, configRef("DEFAULT/rpc_workers"), "2")
	assertValue(t, catalog, configRef("DEFAULT/agent_down_time"), "75")
	assertValue(t, catalog, configRef("DEFAULT/router_scheduler_driver"),
		"neutron.scheduler.l3_agent_scheduler.ChanceScheduler")
	assertValue(t, catalog, configRef("DEFAULT/router_distributed"), "false")
	assertValue(t, catalog, configRef("DEFAULT/l3_ha"), "false")

	assertNotEmitted(t, catalog, configRef("DEFAULT/max_l3_agents_per_router"))
	assertNotEmitted(t, catalog, configRef("DEFAULT/min_l3_agents_per_router"))
	assertNotEmitted(t, catalog, configRef("DEFAULT/l3_ha_net_cidr"))
	assertNotEmitted(t, catalog, configRef("DEFAULT/state_path"))
	assertNotEmitted(t, catalog, configRef("DEFAULT/lock_path"))
}

func TestEmit_WorkersOverride(t *testing.T) {
	p := testParams()
	p.APIWorkers = StringPtr("8")
	p.RPCWorkers = StringPtr("0")

	catalog := mustEmit(t, p, debianFacts())
	assertValue(t, catalog, configRef("DEFAULT/api_workers"), "8")
	assertValue(t, catalog, configRef("DEFAULT/rpc_workers"), "0")
}

func TestEmit_DVR(t *testing.T) {
	p := testParams()
	p.RouterDistributed = true

	catalog := mustEmit(t, p, debianFacts())
	assertValue(t, catalog, configRef("DEFAULT/router_distributed"), "true")
}

func TestEmit_HARouters(t *testing.T) {
	tests := []struct {
		name      string
		maxAgents string
		minAgents string
		wantErr   string
	}{
		{name: "defaults", maxAgents: "3", minAgents: "2"},
		{name: "unlimited agents", maxAgents: "0", minAgents: "2"},
		{name: "equal bounds", maxAgents: "2", minAgents: "2"},
		{
			name:      "min above max",
			maxAgents: "2",
			minAgents: "3",
			wantErr:   "min_l3_agents_per_router should be less than or equal to max_l3_agents_per_router",
		},
		{
			name:      "numeric not lexical compare",
			maxAgents: "10",
			minAgents: "9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams()
			p.L3HA = true
			p.MaxL3AgentsPerRouter = tt.maxAgents
			p.MinL3AgentsPerRouter = tt.minAgents

			catalog, err := Emit(p, debianFacts())
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Expected error containing %q, got %v", tt.wantErr, err)
				}
				if catalog != nil {
					t.Error("Expected no catalog on validation failure")
				}
				return
			}
			if err != nil {
				t.Fatalf("Emit failed: %v", err)
			}

			assertValue(t, catalog, configRef("DEFAULT/l3_ha"), "true")
			assertValue(t, catalog, configRef("DEFAULT/max_l3_agents_per_router"), tt.maxAgents)
			assertValue(t, catalog, configRef("DEFAULT/min_l3_agents_per_router"), tt.minAgents)
			assertValue(t, catalog, configRef("DEFAULT/l3_ha_net_cidr"), "169.254.192.0/18")
		})
	}
}

func TestEmit_HABoundsIgnoredWithoutHA(t *testing.T) {
	p := testParams()
	p.MaxL3AgentsPerRouter = "2"
	p.MinL3AgentsPerRouter = "3"

	if _, err := Emit(p, debianFacts()); err != nil {
		t.Fatalf("Bounds should only be compared when l3_ha is set: %v", err)
	}
}

func TestEmit_StateAndLockPath(t *testing.T) {
	p := testParams()
	p.StatePath = StringPtr("state_path")
	p.LockPath = StringPtr("lock_path")

	catalog := mustEmit(t, p, debianFacts())
	assertValue(t, catalog, configRef("DEFAULT/state_path"), "state_path")
	assertValue(t, catalog, configRef("DEFAULT/lock_path"), "lock_path")
}

func TestEmit_SyncDB(t *testing.T) {
	p := testParams()
	p.SyncDB = true

	catalog := mustEmit(t, p, debianFacts())

	execs := catalog.OfKind(engine.KindExec)
	if len(execs) != 1 {
		t.Fatalf("Expected exactly 1 exec, got %d", len(execs))
	}

	want := engine.Directive{
		Kind:  engine.KindExec,
		Title: "neutron-db-sync",
		Exec: &engine.ExecDirective{
			Command:     "neutron-db-manage --config-file /etc/neutron/neutron.conf --config-file /etc/neutron/plugin.ini upgrade head",
			Path:        "/usr/bin",
			RefreshOnly: true,
		},
		Relations: engine.Relations{
			Before:    []engine.Ref{{Kind: engine.KindService, Title: "neutron-server"}},
			Subscribe: []engine.Ref{{Kind: engine.KindNeutronConfig, Title: "database/connection"}},
		},
	}
	if diff := cmp.Diff(want, execs[0]); diff != "" {
		t.Errorf("Exec mismatch (-want +got):\n%s", diff)
	}
}

func TestEmit_RelationsFormAcyclicGraph(t *testing.T) {
	p := testParams()
	p.SyncDB = true
	p.L3HA = true

	catalog := mustEmit(t, p, redhatFacts())

	graph, err := engine.NewGraphBuilder().BuildGraph(catalog)
	if err != nil {
		t.Fatalf("BuildGraph failed: %v", err)
	}

	pkg := engine.Ref{Kind: engine.KindPackage, Title: "neutron"}
	exec := engine.Ref{Kind: engine.KindExec, Title: "neutron-db-sync"}

	if !graph.Precedes(pkg, ServiceRef) {
		t.Error("Package should precede the service")
	}
	if !graph.Precedes(DatabaseConnectionRef, exec) {
		t.Error("database/connection should precede the db sync exec")
	}
	if !graph.Precedes(exec, ServiceRef) {
		t.Error("db sync exec should precede the service")
	}
}

func TestEmit_Idempotent(t *testing.T) {
	p := testParams()
	p.SyncDB = true
	p.L3HA = true
	p.AuthURI = StringPtr("https://foo.bar:5000/")

	first := mustEmit(t, p, debianFacts())
	second := mustEmit(t, p, debianFacts())

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("Catalogs differ (-first +second):\n%s", diff)
	}

	a, err := first.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	b, err := second.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("Encodings are not byte-identical")
	}
}

func TestEmit_EmissionOrder(t *testing.T) {
	p := testParams()
	p.SyncDB = true

	catalog := mustEmit(t, p, debianFacts())
	refs := catalog.Refs()

	if got := refs[0]; got != DatabaseConnectionRef {
		t.Errorf("Expected first directive %s, got %s", DatabaseConnectionRef, got)
	}

	n := len(refs)
	tail := []engine.Ref{
		{Kind: engine.KindPackage, Title: "neutron-server"},
		ServiceRef,
		{Kind: engine.KindExec, Title: "neutron-db-sync"},
	}
	if diff := cmp.Diff(tail, refs[n-3:]); diff != "" {
		t.Errorf("Tail mismatch (-want +got):\n%s", diff)
	}

	// 7 database, 9 keystone_authtoken, 8 filter:authtoken, 6 DEFAULT.
	if got := len(catalog.OfKind(engine.KindNeutronConfig)) + len(catalog.OfKind(engine.KindNeutronAPIConfig)); got != 30 {
		t.Errorf("Expected 30 config directives, got %d", got)
	}
}

func TestEmit_UnsupportedFacts(t *testing.T) {
	tests := []struct {
		name  string
		facts engine.Facts
		param string
	}{
		{name: "unknown family", facts: engine.Facts{OSFamily: "Solaris", ProcessorCount: "2"}, param: "osfamily"},
		{name: "missing family", facts: engine.Facts{ProcessorCount: "2"}, param: "osfamily"},
		{name: "zero processors", facts: engine.Facts{OSFamily: "Debian", ProcessorCount: "0"}, param: "processorcount"},
		{name: "missing processors", facts: engine.Facts{OSFamily: "Debian"}, param: "processorcount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Emit(testParams(), tt.facts)
			ve, ok := AsValidationError(err)
			if !ok {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if ve.Parameter != tt.param {
				t.Errorf("Expected parameter %s, got %s (%s)", tt.param, ve.Parameter, ve.Message)
			}
		})
	}
}
