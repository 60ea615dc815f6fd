package engine

import (
	"strings"
	"testing"
)

func cfg(title, value string) Directive {
	section, key, _ := strings.Cut(title, "/")
	return Directive{
		Kind:  KindNeutronConfig,
		Title: title,
		Config: &ConfigAssignment{
			File:    "/etc/neutron/neutron.conf",
			Section: section,
			Key:     key,
			Value:   value,
			Ensure:  EnsurePresent,
		},
	}
}

func pkgDirective(title string, before ...Ref) Directive {
	return Directive{
		Kind:      KindPackage,
		Title:     title,
		Package:   &PackageDirective{Name: title, Ensure: "present"},
		Relations: Relations{Before: before},
	}
}

func svcDirective(title string, rel Relations) Directive {
	running := ServiceRunning
	return Directive{
		Kind:      KindService,
		Title:     title,
		Service:   &ServiceDirective{Name: title, Enable: true, Ensure: &running},
		Relations: rel,
	}
}

func ref(kind Kind, title string) Ref {
	return Ref{Kind: kind, Title: title}
}

func TestRef_String(t *testing.T) {
	tests := []struct {
		ref  Ref
		want string
	}{
		{ref(KindNeutronConfig, "database/connection"), "Neutron_config[database/connection]"},
		{ref(KindNeutronAPIConfig, "filter:authtoken/auth_uri"), "Neutron_api_config[filter:authtoken/auth_uri]"},
		{ref(KindPackage, "neutron-server"), "Package[neutron-server]"},
		{ref(KindService, "neutron-server"), "Service[neutron-server]"},
		{ref(KindExec, "neutron-db-sync"), "Exec[neutron-db-sync]"},
	}

	for _, tt := range tests {
		if got := tt.ref.String(); got != tt.want {
			t.Errorf("Expected %s, got %s", tt.want, got)
		}
	}
}

func TestGraphBuilder_BuildGraph_EmptyCatalog(t *testing.T) {
	builder := NewGraphBuilder()
	graph, err := builder.BuildGraph(&Catalog{})
	if err != nil {
		t.Fatalf("Expected no error for empty catalog, got: %v", err)
	}

	if len(graph.Nodes) != 0 {
		t.Errorf("Expected 0 nodes, got %d", len(graph.Nodes))
	}
	if len(graph.Edges) != 0 {
		t.Errorf("Expected 0 edges, got %d", len(graph.Edges))
	}
	if len(graph.Levels) != 0 {
		t.Errorf("Expected 0 levels, got %d", len(graph.Levels))
	}
}

func TestGraphBuilder_BuildGraph_PackageConfigService(t *testing.T) {
	conn := ref(KindNeutronConfig, "database/connection")
	svc := ref(KindService, "neutron-server")
	pkg := ref(KindPackage, "neutron-server")

	catalog := &Catalog{Directives: []Directive{
		cfg("database/connection", "sqlite://"),
		pkgDirective("neutron-server", conn, svc),
		svcDirective("neutron-server", Relations{
			Require:   []Ref{pkg},
			Subscribe: []Ref{conn},
		}),
	}}

	builder := NewGraphBuilder()
	graph, err := builder.BuildGraph(catalog)
	if err != nil {
		t.Fatalf("BuildGraph failed: %v", err)
	}

	if len(graph.Nodes) != 3 {
		t.Errorf("Expected 3 nodes, got %d", len(graph.Nodes))
	}
	// before x2, require, subscribe
	if len(graph.Edges) != 4 {
		t.Errorf("Expected 4 edges, got %d", len(graph.Edges))
	}

	if len(graph.Roots) != 1 || graph.Roots[0] != pkg.String() {
		t.Errorf("Expected root %s, got %v", pkg, graph.Roots)
	}

	wantLevels := [][]string{
		{pkg.String()},
		{conn.String()},
		{svc.String()},
	}
	if len(graph.Levels) != len(wantLevels) {
		t.Fatalf("Expected %d levels, got %d: %v", len(wantLevels), len(graph.Levels), graph.Levels)
	}
	for i, level := range wantLevels {
		if strings.Join(graph.Levels[i], ",") != strings.Join(level, ",") {
			t.Errorf("Level %d: expected %v, got %v", i, level, graph.Levels[i])
		}
	}

	if !graph.Precedes(pkg, svc) {
		t.Error("Package should precede service")
	}
	if graph.Precedes(svc, pkg) {
		t.Error("Service should not precede package")
	}

	notify := 0
	for _, e := range graph.Edges {
		if e.Type == EdgeNotify {
			notify++
			if e.From != conn.String() || e.To != svc.String() {
				t.Errorf("Unexpected notify edge %s -> %s", e.From, e.To)
			}
		}
	}
	if notify != 1 {
		t.Errorf("Expected 1 notify edge, got %d", notify)
	}

	if err := builder.ValidateGraph(graph); err != nil {
		t.Errorf("ValidateGraph failed: %v", err)
	}
}

func TestGraphBuilder_BuildGraph_LevelsSorted(t *testing.T) {
	catalog := &Catalog{Directives: []Directive{
		cfg("DEFAULT/rpc_workers", "2"),
		cfg("DEFAULT/api_workers", "2"),
		cfg("database/connection", "sqlite://"),
	}}

	graph, err := NewGraphBuilder().BuildGraph(catalog)
	if err != nil {
		t.Fatalf("BuildGraph failed: %v", err)
	}

	if len(graph.Levels) != 1 {
		t.Fatalf("Expected 1 level, got %d", len(graph.Levels))
	}
	want := "Neutron_config[DEFAULT/api_workers],Neutron_config[DEFAULT/rpc_workers],Neutron_config[database/connection]"
	if got := strings.Join(graph.Levels[0], ","); got != want {
		t.Errorf("Expected sorted level %s, got %s", want, got)
	}
}

func TestGraphBuilder_DetectCycles(t *testing.T) {
	a := ref(KindService, "a")
	b := ref(KindService, "b")
	c := ref(KindService, "c")

	catalog := &Catalog{Directives: []Directive{
		svcDirective("a", Relations{Before: []Ref{b}}),
		svcDirective("b", Relations{Before: []Ref{c}}),
		svcDirective("c", Relations{Notify: []Ref{a}}),
	}}

	_, err := NewGraphBuilder().BuildGraph(catalog)
	if err == nil {
		t.Fatal("Expected cycle detection error, got nil")
	}
	if !HasCode(err, ErrCodeCycle) {
		t.Errorf("Expected cycle error code, got: %v", err)
	}
	if !strings.Contains(err.Error(), "Service[a] -> Service[b] -> Service[c] -> Service[a]") {
		t.Errorf("Expected cycle path in error, got: %v", err)
	}
}

func TestGraphBuilder_RequireCycle(t *testing.T) {
	catalog := &Catalog{Directives: []Directive{
		pkgDirective("neutron-server", ref(KindService, "neutron-server")),
		svcDirective("neutron-server", Relations{}),
	}}
	catalog.Directives[0].Relations.Require = []Ref{ref(KindService, "neutron-server")}

	_, err := NewGraphBuilder().BuildGraph(catalog)
	if !HasCode(err, ErrCodeCycle) {
		t.Errorf("Expected cycle error, got: %v", err)
	}
}

func TestGraphBuilder_DanglingReference(t *testing.T) {
	catalog := &Catalog{Directives: []Directive{
		svcDirective("neutron-server", Relations{
			Subscribe: []Ref{ref(KindNeutronConfig, "database/connection")},
		}),
	}}

	_, err := NewGraphBuilder().BuildGraph(catalog)
	if err == nil {
		t.Fatal("Expected error for dangling reference, got nil")
	}
	if !HasCode(err, ErrCodeDanglingRef) {
		t.Errorf("Expected dangling reference code, got: %v", err)
	}
	if !IsPermanent(err) {
		t.Error("Expected permanent error")
	}
}

func TestGraphBuilder_DuplicateDirectives(t *testing.T) {
	catalog := &Catalog{Directives: []Directive{
		cfg("database/connection", "a"),
		cfg("database/connection", "b"),
	}}

	_, err := NewGraphBuilder().BuildGraph(catalog)
	if !HasCode(err, ErrCodeDuplicateNode) {
		t.Errorf("Expected duplicate directive error, got: %v", err)
	}
}

func TestGraphBuilder_SameTitleDifferentKind(t *testing.T) {
	catalog := &Catalog{Directives: []Directive{
		pkgDirective("neutron-server", ref(KindService, "neutron-server")),
		svcDirective("neutron-server", Relations{}),
	}}

	if _, err := NewGraphBuilder().BuildGraph(catalog); err != nil {
		t.Errorf("Package and service may share a title: %v", err)
	}
}

func TestGraphBuilder_ToDOT(t *testing.T) {
	conn := ref(KindNeutronConfig, "database/connection")
	tomb := cfg("keystone_authtoken/identity_uri", "")
	tomb.Config.Ensure = EnsureAbsent

	catalog := &Catalog{Directives: []Directive{
		cfg("database/connection", "sqlite://"),
		tomb,
		svcDirective("neutron-server", Relations{Subscribe: []Ref{conn}}),
	}}

	builder := NewGraphBuilder()
	if _, err := builder.BuildGraph(catalog); err != nil {
		t.Fatalf("BuildGraph failed: %v", err)
	}

	dot := builder.ToDOT()

	expected := []string{
		"digraph Catalog",
		"rankdir=TB",
		`"Neutron_config[database/connection]"`,
		`"Service[neutron-server]" [fillcolor="lightblue"`,
		`"Neutron_config[keystone_authtoken/identity_uri]" [fillcolor="lightgray"`,
		`"Neutron_config[database/connection]" -> "Service[neutron-server]" [style=dashed, color=blue]`,
		"cluster_level_0",
		"cluster_level_1",
	}
	for _, s := range expected {
		if !strings.Contains(dot, s) {
			t.Errorf("Expected DOT output to contain %q\n%s", s, dot)
		}
	}
}
