package app

import (
	"fmt"

	"github.com/fenlight/authdb/internal/db"
	"github.com/fenlight/authdb/internal/db/mem"
	"github.com/fenlight/authdb/internal/db/sqlite"
)

// Backend names for Config.Backend.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config defines the inputs for the account store process.
type Config struct {
	// HTTPAddr is the listen address for the HTTP surface.
	HTTPAddr string `env:"AUTHDB_HTTP_ADDR"`
	// Backend selects the storage backend, "memory" or "sqlite".
	Backend string `env:"AUTHDB_BACKEND"`
	// SQLitePath locates the database file for the sqlite backend.
	SQLitePath string `env:"AUTHDB_SQLITE_PATH"`
}

// withDefaults fills unset fields with development defaults.
func (c Config) withDefaults() Config {
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8000"
	}
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "data/authdb.db"
	}
	return c
}

// openStore opens the backend selected by cfg.
func openStore(cfg Config) (db.Store, error) {
	switch cfg.Backend {
	case BackendMemory:
		return mem.New(mem.Options{}), nil
	case BackendSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite backend: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
