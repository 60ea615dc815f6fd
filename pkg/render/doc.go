// Package render previews the config files a catalog describes.
//
// Render groups the catalog's Neutron_config and Neutron_api_config
// directives by file and writes each file as INI with go-ini. Secret
// values show as <redacted> unless Options.RevealSecrets is set, and
// tombstoned keys are listed as "# key (absent)" comments above their
// section. With Options.BaseRoot the directives are applied on top of the
// existing files, so the preview shows the merged result.
//
// Write stores previews under a caller-chosen directory. Nothing in this
// package touches the real /etc.
package render
