// Package neutron resolves the parameters of the neutron server class into
// a catalog of directives.
//
// Resolution runs in three steps:
//
//  1. Validate rejects parameter sets that must block convergence: a missing
//     auth_password, a malformed auth_admin_prefix, or HA agent bounds where
//     min exceeds max ("0" means unlimited and skips the comparison).
//  2. The auth middleware reconciles the deprecated auth_host, auth_port,
//     auth_protocol and auth_admin_prefix parameters with auth_uri and
//     identity_uri. The deprecated keys are only tombstoned once both
//     unified parameters are supplied.
//  3. Emit writes the database, keystone_authtoken, filter:authtoken and
//     DEFAULT assignments, then the server package, the server service and,
//     when sync_db is set, the refreshonly neutron-db-sync exec.
//
// Emit is pure: facts are passed in, nothing is read from the host, and
// identical inputs produce identical catalogs.
//
// Example:
//
//	params := neutron.DefaultParams()
//	params.AuthPassword = "secret"
//	params.SyncDB = true
//
//	catalog, err := neutron.Emit(params, engine.Facts{OSFamily: "Debian", ProcessorCount: "4"})
//	if neutron.IsValidationError(err) {
//	    // misconfiguration, nothing was emitted
//	}
package neutron
