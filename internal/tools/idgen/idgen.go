// Package idgen generates account and token identifiers for operational
// use: seeding fixtures, smoke-testing a deployment, or minting ids by hand.
package idgen

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/fenlight/authdb/internal/platform/id"
)

// Kind values accepted by Config.Kind.
const (
	KindUID   = "uid"
	KindToken = "token"
)

// Config holds idgen command configuration.
type Config struct {
	// Kind selects the identifier length, "uid" or "token".
	Kind string
	// Count is how many identifiers to emit, one per line.
	Count int
}

// ParseConfig parses flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Kind: KindUID, Count: 1}
	fs.StringVar(&cfg.Kind, "kind", cfg.Kind, "identifier kind: uid or token (default: uid)")
	fs.IntVar(&cfg.Count, "n", cfg.Count, "number of identifiers to generate (default: 1)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run writes the requested identifiers to out.
func Run(cfg Config, out io.Writer) error {
	if cfg.Count < 1 {
		return errors.New("count must be at least 1")
	}
	if out == nil {
		return errors.New("output is required")
	}
	generate := id.NewUID
	switch cfg.Kind {
	case KindUID:
	case KindToken:
		generate = id.NewTokenID
	default:
		return fmt.Errorf("unknown identifier kind %q", cfg.Kind)
	}
	for i := 0; i < cfg.Count; i++ {
		value, err := generate()
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(out, value); err != nil {
			return fmt.Errorf("write identifier: %w", err)
		}
	}
	return nil
}
