package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/froyo-neutron/pkg/config"
	"github.com/openfroyo/froyo-neutron/pkg/engine"
	"github.com/openfroyo/froyo-neutron/pkg/neutron"
	"github.com/openfroyo/froyo-neutron/pkg/policy"
	"github.com/openfroyo/froyo-neutron/pkg/stores"
	"github.com/openfroyo/froyo-neutron/pkg/telemetry"
)

// compileFlags are the inputs shared by every command that compiles a
// catalog.
type compileFlags struct {
	sets            []string
	osFamily        string
	processorCount  string
	osRelease       string
	policyMode      string
	policyPaths     []string
	storePath       string
	starlarkTimeout time.Duration
}

func (f *compileFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringArrayVar(&f.sets, "set", nil, "override a parameter (name=value, repeatable)")
	flags.StringVar(&f.osFamily, "osfamily", "", "osfamily fact (default: discovered)")
	flags.StringVar(&f.processorCount, "processorcount", "", "processorcount fact (default: discovered)")
	flags.StringVar(&f.osRelease, "os-release", engine.DefaultOSReleasePath, "os-release file used for fact discovery")
	flags.StringVar(&f.policyMode, "policy-mode", string(policy.ModeAdvisory), "policy mode (advisory, enforcing)")
	flags.StringSliceVar(&f.policyPaths, "policy", nil, "additional .rego policy files or directories")
	flags.StringVar(&f.storePath, "store", "", "SQLite catalog archive path")
	flags.DurationVar(&f.starlarkTimeout, "starlark-timeout", 5*time.Second, "maximum run time of .star parameter scripts")
}

// flagFacts returns the facts given on the command line.
func (f *compileFlags) flagFacts() *config.FactsOverride {
	return &config.FactsOverride{OSFamily: f.osFamily, ProcessorCount: f.processorCount}
}

// overrides parses the --set flags.
func (f *compileFlags) overrides() (map[string]any, error) {
	values := make(map[string]any, len(f.sets))
	for _, set := range f.sets {
		name, value, ok := strings.Cut(set, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, engine.NewPermanentError(fmt.Sprintf("invalid --set %q (want name=value)", set), nil).
				WithCode(engine.ErrCodeInvalidInput)
		}
		values[name] = value
	}
	return values, nil
}

// compileOutcome is a successfully compiled and checked catalog.
type compileOutcome struct {
	Source  string
	Facts   engine.Facts
	Catalog *engine.Catalog
	Digest  string
	Policy  *policy.Result

	// Record is set when the catalog was archived.
	Record *engine.CatalogRecord
}

// pipeline loads parameter files, resolves them into catalogs, checks the
// catalogs against policies and optionally archives them.
type pipeline struct {
	flags      *compileFlags
	logger     zerolog.Logger
	discovered engine.Facts
	loader     *config.Loader
	policies   *policy.Engine
	store      stores.Store
}

func newPipeline(ctx context.Context, flags *compileFlags) (*pipeline, error) {
	logger := log.Logger.With().Str("component", "pipeline").Logger()

	mode, err := policy.ParseMode(flags.policyMode)
	if err != nil {
		return nil, engine.NewPermanentError("invalid --policy-mode", err).
			WithCode(engine.ErrCodeInvalidInput)
	}

	p := &pipeline{flags: flags, logger: logger}

	if flags.osFamily == "" || flags.processorCount == "" {
		discovered, err := engine.DiscoverLocalFacts(flags.osRelease)
		if err != nil {
			// Parameter files may still pin the missing facts.
			logger.Debug().Err(err).Msg("Fact discovery failed")
		}
		p.discovered = discovered
	}

	p.loader = config.NewLoader(log.Logger,
		config.WithScriptFacts(flags.flagFacts().Apply(p.discovered)),
		config.WithStarlarkTimeout(flags.starlarkTimeout),
	)

	p.policies, err = policy.NewEngine(log.Logger, policy.WithMode(mode))
	if err != nil {
		return nil, engine.NewPermanentError("failed to start policy engine", err).
			WithCode(engine.ErrCodeInternal)
	}
	if err := p.policies.LoadPolicies(ctx, flags.policyPaths); err != nil {
		return nil, err
	}

	if flags.storePath != "" {
		store, err := openStore(ctx, flags.storePath)
		if err != nil {
			return nil, err
		}
		p.store = store
	}

	return p, nil
}

func openStore(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the archive, if one is open.
func (p *pipeline) Close() error {
	if p.store == nil {
		return nil
	}
	return p.store.Close()
}

// compile resolves source into a catalog. With archive set and a store
// configured the catalog is saved. Every attempt is recorded as a compile
// event when a store is configured.
func (p *pipeline) compile(ctx context.Context, source string, archive bool) (*compileOutcome, error) {
	base := p.flags.flagFacts().Apply(p.discovered)
	scope := telemetry.StartCompile(ctx, source, base.OSFamily)

	out, err := p.resolve(scope, source)
	if err != nil {
		result, parameter := classify(err)
		scope.Failed(result, parameter, err)
		p.recordEvent(ctx, source, result, parameter, err, nil)
		return nil, err
	}
	scope.Succeeded(out.Catalog, out.Digest)

	if archive && p.store != nil {
		record, err := p.store.SaveCatalog(ctx, out.Catalog, source)
		if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
			tel.Metrics.RecordArchiveWrite(err)
		}
		if err != nil {
			p.recordEvent(ctx, source, telemetry.ResultError, "", err, nil)
			return nil, err
		}
		out.Record = record
	}

	var catalogID *string
	if out.Record != nil {
		catalogID = &out.Record.ID
	}
	p.recordEvent(ctx, source, telemetry.ResultSuccess, "", nil, catalogID)

	return out, nil
}

func (p *pipeline) resolve(scope *telemetry.CompileScope, source string) (*compileOutcome, error) {
	ctx := scope.Ctx

	doc, err := p.loader.LoadDocument(ctx, source)
	if err != nil {
		return nil, err
	}

	overrides, err := p.flags.overrides()
	if err != nil {
		return nil, err
	}
	for name, value := range overrides {
		doc.Params[name] = value
	}

	params, err := neutron.ParamsFromMap(doc.Params)
	if err != nil {
		return nil, err
	}

	// Command-line facts win over pinned facts, which win over discovery.
	facts := p.flags.flagFacts().Apply(doc.Facts.Apply(p.discovered))

	catalog, err := neutron.Emit(params, facts)
	if err != nil {
		return nil, err
	}

	digest, err := catalog.Digest()
	if err != nil {
		return nil, err
	}

	result, err := p.policies.Evaluate(ctx, catalog, source)
	if err != nil {
		return nil, err
	}
	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		for _, v := range result.Violations {
			tel.Metrics.RecordPolicyViolation(v.Policy, string(v.Severity))
		}
	}
	denied := result.DeniedError()
	scope.PolicyEvaluated(len(result.Violations), denied != nil)
	if denied != nil {
		return nil, denied
	}

	return &compileOutcome{
		Source:  source,
		Facts:   facts,
		Catalog: catalog,
		Digest:  digest,
		Policy:  result,
	}, nil
}

func (p *pipeline) recordEvent(ctx context.Context, source, result, parameter string, cause error, catalogID *string) {
	if p.store == nil {
		return
	}

	event := &stores.CompileEvent{
		Source:    source,
		Result:    stores.CompileResult(result),
		CatalogID: catalogID,
	}
	if parameter != "" {
		event.Parameter = &parameter
	}
	if cause != nil {
		msg := cause.Error()
		event.Message = &msg
	}

	if err := p.store.AppendCompileEvent(ctx, event); err != nil {
		p.logger.Warn().Err(err).Str("source", source).Msg("Failed to record compile event")
	}
}

// classify maps a compile error to its result label and the offending
// parameter, if any.
func classify(err error) (result, parameter string) {
	if ve, ok := neutron.AsValidationError(err); ok {
		return telemetry.ResultValidationFailed, ve.Parameter
	}
	var pe *config.ParseError
	if errors.As(err, &pe) {
		return telemetry.ResultValidationFailed, pe.Parameter()
	}
	switch {
	case engine.HasCode(err, engine.ErrCodePolicyDenied):
		return telemetry.ResultPolicyDenied, ""
	case engine.HasCode(err, engine.ErrCodeValidation):
		return telemetry.ResultValidationFailed, ""
	default:
		return telemetry.ResultError, ""
	}
}

// Exit codes.
const (
	exitError            = 1
	exitValidationFailed = 2
	exitPolicyDenied     = 3
)

// ExitCode returns the process exit code for a command error.
func ExitCode(err error) int {
	switch result, _ := classify(err); result {
	case telemetry.ResultValidationFailed:
		return exitValidationFailed
	case telemetry.ResultPolicyDenied:
		return exitPolicyDenied
	default:
		return exitError
	}
}
