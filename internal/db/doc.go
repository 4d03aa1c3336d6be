// Package db defines the data-access contract for the account store.
//
// These types and interfaces exist so the authentication service can depend
// on stable storage semantics without coupling to a particular backend. The
// in-memory backend (db/mem) is the reference implementation; the SQLite
// backend (db/sqlite) implements the same contract for durable deployments.
package db
