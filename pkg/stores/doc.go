// Package stores persists pass history, device snapshots and an audit trail
// in SQLite. Schema changes are applied with embedded golang-migrate
// migrations.
package stores
