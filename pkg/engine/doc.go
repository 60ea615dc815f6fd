// Package engine provides the catalog model shared by froyo-neutron classes.
//
// # Overview
//
// A class (see package neutron) resolves input parameters and facts into a
// Catalog: an ordered list of Directives describing desired system state.
// The engine package owns that model and the machinery around it:
//
//  1. Directives - config assignments, packages, services and execs
//  2. Relations - before/require (ordering) and subscribe/notify (refresh)
//  3. Ordering graph - relation validation, cycle detection, levels, DOT
//  4. Change planning - diff of two catalogs and the refreshes it triggers
//
// # Directives
//
// Every directive has a Kind and a Title; together they form a Ref, printed
// the way appliers name resources:
//
//	Neutron_config[database/connection]
//	Package[neutron-server]
//	Service[neutron-server]
//	Exec[neutron-db-sync]
//
// A config assignment with Ensure set to EnsureAbsent is a tombstone: the
// key must be removed from the file rather than set.
//
// # Determinism
//
// Catalogs are plain values. Directives keep emission order and no map is
// iterated while encoding, so compiling the same input twice yields
// byte-identical encodings and equal digests.
//
// # Example Usage
//
//	catalog, err := neutron.Emit(params, facts)
//	if err != nil {
//	    return err
//	}
//
//	builder := engine.NewGraphBuilder()
//	graph, err := builder.BuildGraph(catalog)
//
//	changes := engine.PlanChanges(previous, catalog)
//	for _, exec := range changes.Execs {
//	    fmt.Println("would run", exec)
//	}
//
// # Error Classification
//
// Infrastructure errors are EngineErrors classified as transient or
// permanent and tagged with a code such as ErrCodeCycle or ErrCodeNotFound.
// Parameter validation failures are not EngineErrors; classes report them
// with their own validation error type.
package engine
