package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/openfroyo/froyo-neutron/pkg/config"
	"github.com/openfroyo/froyo-neutron/pkg/engine"
	"github.com/openfroyo/froyo-neutron/pkg/neutron"
	"github.com/openfroyo/froyo-neutron/pkg/stores"
	"github.com/openfroyo/froyo-neutron/pkg/telemetry"
)

const validParams = `auth_password: passw0rd
sync_db: true
api_workers: 2
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testFlags(dir string) *compileFlags {
	return &compileFlags{
		osFamily:       "Debian",
		processorCount: "4",
		osRelease:      filepath.Join(dir, "missing-os-release"),
		policyMode:     "advisory",
		storePath:      filepath.Join(dir, "state.db"),
	}
}

func newTestPipeline(t *testing.T, flags *compileFlags) *pipeline {
	t.Helper()
	p, err := newPipeline(context.Background(), flags)
	if err != nil {
		t.Fatalf("newPipeline() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func findConfig(t *testing.T, cat *engine.Catalog, section, key string) *engine.Directive {
	t.Helper()
	d, ok := cat.Find(engine.Ref{Kind: engine.KindNeutronConfig, Title: section + "/" + key})
	if !ok {
		t.Fatalf("no directive for %s/%s", section, key)
	}
	return d
}

func events(t *testing.T, p *pipeline) []*stores.CompileEvent {
	t.Helper()
	got, err := p.store.ListCompileEvents(context.Background(), nil, 100, 0)
	if err != nil {
		t.Fatalf("ListCompileEvents() error = %v", err)
	}
	return got
}

func TestPipeline_CompileArchives(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "neutron.yaml", validParams)
	p := newTestPipeline(t, testFlags(dir))

	out, err := p.compile(context.Background(), source, true)
	if err != nil {
		t.Fatalf("compile() error = %v", err)
	}
	if out.Record == nil {
		t.Fatal("catalog was not archived")
	}
	if got := findConfig(t, out.Catalog, "DEFAULT", "api_workers").Config.Value; got != "2" {
		t.Errorf("api_workers = %q, want 2", got)
	}

	latest, err := p.store.LatestCatalog(context.Background(), source)
	if err != nil {
		t.Fatalf("LatestCatalog() error = %v", err)
	}
	if latest.ID != out.Record.ID {
		t.Errorf("LatestCatalog().ID = %s, want %s", latest.ID, out.Record.ID)
	}
	if diff := cmp.Diff(out.Catalog.Sealed(), latest.Catalog); diff != "" {
		t.Errorf("archived catalog mismatch (-want +got):\n%s", diff)
	}

	got := events(t, p)
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].Result != stores.CompileResultSuccess {
		t.Errorf("Result = %s, want success", got[0].Result)
	}
	if got[0].CatalogID == nil || *got[0].CatalogID != out.Record.ID {
		t.Errorf("CatalogID = %v, want %s", got[0].CatalogID, out.Record.ID)
	}
}

func TestPipeline_ValidationFailure(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "neutron.yaml", "sync_db: true\n")
	p := newTestPipeline(t, testFlags(dir))

	_, err := p.compile(context.Background(), source, true)
	if !neutron.IsValidationError(err) {
		t.Fatalf("compile() error = %v, want a validation error", err)
	}
	if code := ExitCode(err); code != exitValidationFailed {
		t.Errorf("ExitCode() = %d, want %d", code, exitValidationFailed)
	}

	got := events(t, p)
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].Result != stores.CompileResultValidationFailed {
		t.Errorf("Result = %s, want validation_failed", got[0].Result)
	}
	if got[0].Parameter == nil || *got[0].Parameter != "auth_password" {
		t.Errorf("Parameter = %v, want auth_password", got[0].Parameter)
	}
	if got[0].CatalogID != nil {
		t.Errorf("CatalogID = %s, want nil", *got[0].CatalogID)
	}

	if _, err := p.store.LatestCatalog(context.Background(), source); !engine.HasCode(err, engine.ErrCodeNotFound) {
		t.Errorf("LatestCatalog() error = %v, want NOT_FOUND", err)
	}
}

func TestPipeline_SetOverrides(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "neutron.yaml", validParams)

	flags := testFlags(dir)
	flags.sets = []string{"api_workers=8", "l3_ha=true"}
	p := newTestPipeline(t, flags)

	out, err := p.compile(context.Background(), source, false)
	if err != nil {
		t.Fatalf("compile() error = %v", err)
	}
	if got := findConfig(t, out.Catalog, "DEFAULT", "api_workers").Config.Value; got != "8" {
		t.Errorf("api_workers = %q, want 8", got)
	}
	if got := findConfig(t, out.Catalog, "DEFAULT", "l3_ha").Config.Value; got != "true" {
		t.Errorf("l3_ha = %q, want true", got)
	}
}

func TestPipeline_InvalidSet(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "neutron.yaml", validParams)

	tests := []struct {
		name string
		set  string
		code int
	}{
		{name: "missing equals", set: "api_workers", code: exitError},
		{name: "unknown parameter", set: "no_such_param=1", code: exitValidationFailed},
		{name: "not an integer", set: "api_workers=many", code: exitValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := testFlags(t.TempDir())
			flags.sets = []string{tt.set}
			p := newTestPipeline(t, flags)

			_, err := p.compile(context.Background(), source, false)
			if err == nil {
				t.Fatal("compile() error = nil")
			}
			if code := ExitCode(err); code != tt.code {
				t.Errorf("ExitCode(%v) = %d, want %d", err, code, tt.code)
			}
		})
	}
}

func TestPipeline_FactsPrecedence(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "neutron.yaml", validParams+`facts:
  osfamily: RedHat
  processorcount: 16
`)

	tests := []struct {
		name      string
		osFamily  string
		processor string
		want      engine.Facts
	}{
		{
			name: "pinned by file",
			want: engine.Facts{OSFamily: "RedHat", ProcessorCount: "16"},
		},
		{
			name:     "flag wins over file",
			osFamily: "Debian",
			want:     engine.Facts{OSFamily: "Debian", ProcessorCount: "16"},
		},
		{
			name:      "both flags",
			osFamily:  "Debian",
			processor: "3",
			want:      engine.Facts{OSFamily: "Debian", ProcessorCount: "3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := testFlags(t.TempDir())
			flags.osFamily = tt.osFamily
			flags.processorCount = tt.processor
			flags.storePath = ""
			p := newTestPipeline(t, flags)

			out, err := p.compile(context.Background(), source, false)
			if err != nil {
				t.Fatalf("compile() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, out.Facts); diff != "" {
				t.Errorf("facts mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.want, out.Catalog.Facts); diff != "" {
				t.Errorf("catalog facts mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPipeline_MissingFacts(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "neutron.yaml", validParams)

	flags := testFlags(dir)
	flags.osFamily = ""
	flags.storePath = ""
	p := newTestPipeline(t, flags)

	_, err := p.compile(context.Background(), source, false)
	if code := ExitCode(err); code != exitValidationFailed {
		t.Errorf("ExitCode(%v) = %d, want %d", err, code, exitValidationFailed)
	}
}

func TestPipeline_PolicyDenied(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "neutron.yaml", validParams)
	policyDir := filepath.Join(dir, "policies")
	if err := os.Mkdir(policyDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, policyDir, "no-db-sync.rego", `# Database migrations are run by hand.
# severity: error
package site.no_db_sync

import rego.v1

deny contains msg if {
	some d in input.directives
	d.kind == "exec"
	msg := sprintf("%s is not allowed", [d.ref])
}
`)

	for _, mode := range []string{"advisory", "enforcing"} {
		t.Run(mode, func(t *testing.T) {
			flags := testFlags(t.TempDir())
			flags.policyMode = mode
			flags.policyPaths = []string{policyDir}
			p := newTestPipeline(t, flags)

			out, err := p.compile(context.Background(), source, true)
			if mode == "advisory" {
				if err != nil {
					t.Fatalf("compile() error = %v", err)
				}
				if len(out.Policy.Violations) != 1 || out.Policy.Violations[0].Policy != "no-db-sync" {
					t.Errorf("Violations = %v, want one no-db-sync violation", out.Policy.Violations)
				}
				return
			}

			if !engine.HasCode(err, engine.ErrCodePolicyDenied) {
				t.Fatalf("compile() error = %v, want POLICY_DENIED", err)
			}
			if code := ExitCode(err); code != exitPolicyDenied {
				t.Errorf("ExitCode() = %d, want %d", code, exitPolicyDenied)
			}
			got := events(t, p)
			if len(got) != 1 || got[0].Result != stores.CompileResultPolicyDenied {
				t.Errorf("events = %v, want one policy_denied event", got)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantResult    string
		wantParameter string
	}{
		{
			name:          "resolver validation",
			err:           fmt.Errorf("compile: %w", &neutron.ValidationError{Parameter: "api_workers", Message: "bad"}),
			wantResult:    telemetry.ResultValidationFailed,
			wantParameter: "api_workers",
		},
		{
			name: "parse error",
			err: engine.NewPermanentError("invalid file", &config.ParseError{
				Source: "x.yaml",
				Errors: []config.ValidationError{{Path: "facts.osfamily", Message: "bad"}},
			}).WithCode(engine.ErrCodeValidation),
			wantResult:    telemetry.ResultValidationFailed,
			wantParameter: "facts.osfamily",
		},
		{
			name:       "policy denied",
			err:        engine.NewPermanentError("denied", nil).WithCode(engine.ErrCodePolicyDenied),
			wantResult: telemetry.ResultPolicyDenied,
		},
		{
			name:       "store failure",
			err:        engine.NewTransientError("disk full", nil).WithCode(engine.ErrCodeStoreFailure),
			wantResult: telemetry.ResultError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, parameter := classify(tt.err)
			if result != tt.wantResult || parameter != tt.wantParameter {
				t.Errorf("classify() = (%q, %q), want (%q, %q)",
					result, parameter, tt.wantResult, tt.wantParameter)
			}
		})
	}
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(&rootOptions{version: "test"}, "abc123", "today")
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCompileCommand(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "neutron.yaml", validParams)

	out, err := runRoot(t, "compile", source, "--osfamily", "RedHat", "--processorcount", "2")
	if err != nil {
		t.Fatalf("compile error = %v", err)
	}
	if strings.Contains(out, "passw0rd") {
		t.Error("compile output leaks a secret")
	}

	var cat engine.Catalog
	if err := json.Unmarshal([]byte(out), &cat); err != nil {
		t.Fatalf("output is not a catalog: %v\n%s", err, out)
	}
	if cat.Class != neutron.ClassName {
		t.Errorf("Class = %q, want %q", cat.Class, neutron.ClassName)
	}
	if _, ok := cat.Find(neutron.ServiceRef); !ok {
		t.Errorf("catalog has no %s", neutron.ServiceRef)
	}
}

func TestDiffCommand(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "neutron.yaml", validParams)
	store := filepath.Join(dir, "state.db")
	common := []string{"--osfamily", "Debian", "--processorcount", "2", "--store", store}

	if _, err := runRoot(t, append([]string{"compile", source}, common...)...); err != nil {
		t.Fatalf("compile error = %v", err)
	}

	out, err := runRoot(t, append([]string{"diff", source}, common...)...)
	if err != nil {
		t.Fatalf("diff error = %v", err)
	}
	if !strings.Contains(out, "No changes.") {
		t.Errorf("diff of an unchanged file:\n%s", out)
	}

	out, err = runRoot(t, append([]string{"diff", source, "--set", "auth_password=rotated"}, common...)...)
	if err != nil {
		t.Fatalf("diff error = %v", err)
	}
	if strings.Contains(out, "rotated") || strings.Contains(out, "passw0rd") {
		t.Errorf("diff leaks a secret:\n%s", out)
	}
	if !strings.Contains(out, "~ Neutron_config[keystone_authtoken/admin_password]") {
		t.Errorf("diff does not show the rotated password:\n%s", out)
	}
	if !strings.Contains(out, "! refresh "+neutron.ServiceRef.String()) {
		t.Errorf("diff does not refresh the service:\n%s", out)
	}
}

func TestDiffCommand_RequiresStore(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "neutron.yaml", validParams)

	_, err := runRoot(t, "diff", source, "--osfamily", "Debian", "--processorcount", "2")
	if !engine.HasCode(err, engine.ErrCodeInvalidInput) {
		t.Errorf("diff error = %v, want INVALID_INPUT", err)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runRoot(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out, "froyo-neutron test") || !strings.Contains(out, "abc123") {
		t.Errorf("version output = %q", out)
	}
}
