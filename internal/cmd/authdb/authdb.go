// Package authdb parses account store flags and launches the service.
package authdb

import (
	"context"
	"flag"

	"github.com/fenlight/authdb/internal/app"
	entrypoint "github.com/fenlight/authdb/internal/platform/cmd"
)

// Config holds authdb command configuration.
type Config struct {
	App app.Config
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg.App); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.App.HTTPAddr, "addr", cfg.App.HTTPAddr, "The HTTP listen address")
	fs.StringVar(&cfg.App.Backend, "backend", cfg.App.Backend, "The storage backend: memory or sqlite")
	fs.StringVar(&cfg.App.SQLitePath, "sqlite-path", cfg.App.SQLitePath, "The database file for the sqlite backend")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the account store HTTP service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceAuthDB, func(context.Context) error {
		return app.Run(ctx, cfg.App)
	})
}
