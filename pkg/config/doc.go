// Package config loads neutron-server class parameters from files.
//
// # Formats
//
// The format is chosen by file extension:
//
//   - .cue: CUE, unified with the built-in #NeutronServer schema
//   - .yaml, .yml: YAML
//   - .json: JSON
//   - .star: Starlark; exported globals become parameters and the
//     predeclared `facts` dict carries osfamily and processorcount
//
// Every format is type-checked against the same CUE schema, so a worker
// count given as a boolean fails the same way in YAML as in CUE. Value
// rules (admin prefix pattern, HA agent bounds, unknown names) are left to
// neutron.ParamsFromMap and neutron.Validate.
//
// A file may pin facts under a top-level `facts` key:
//
//	auth_password: secret
//	facts:
//	  osfamily: RedHat
//	  processorcount: 8
//
// # Usage
//
//	loader := config.NewLoader(log.Logger)
//	doc, err := loader.LoadDocument(ctx, "params.yaml")
//	if err != nil {
//	    return err
//	}
//	params, err := neutron.ParamsFromMap(doc.Params)
//
// Load errors are engine.EngineError values; type and syntax problems
// carry code VALIDATION_ERROR and wrap a *ParseError listing each problem
// with its position when known.
//
// # Watching
//
// Watcher reports debounced changes to parameter files using fsnotify; the
// CLI watch command recompiles on each change.
package config
