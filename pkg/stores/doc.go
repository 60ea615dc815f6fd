// Package stores provides persistence layer implementations for froyo-neutron.
// It includes a SQLite-based archive of compiled catalogs, with embedded
// golang-migrate migrations, and an append-only log of compile attempts.
// Secret config values are sealed before a catalog is written.
package stores
