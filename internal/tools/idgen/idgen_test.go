package idgen

import (
	"bytes"
	"flag"
	"strings"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("idgen", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Kind != KindUID {
		t.Fatalf("expected default kind %q, got %q", KindUID, cfg.Kind)
	}
	if cfg.Count != 1 {
		t.Fatalf("expected default count 1, got %d", cfg.Count)
	}
}

func TestParseConfigOverride(t *testing.T) {
	fs := flag.NewFlagSet("idgen", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-kind", "token", "-n", "3"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Kind != KindToken {
		t.Fatalf("expected kind %q, got %q", KindToken, cfg.Kind)
	}
	if cfg.Count != 3 {
		t.Fatalf("expected count 3, got %d", cfg.Count)
	}
}

func TestRunRejectsInvalidCount(t *testing.T) {
	if err := Run(Config{Kind: KindUID, Count: 0}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for non-positive count")
	}
}

func TestRunNilOutput(t *testing.T) {
	if err := Run(Config{Kind: KindUID, Count: 1}, nil); err == nil {
		t.Fatal("expected error for nil output")
	}
}

func TestRunRejectsUnknownKind(t *testing.T) {
	if err := Run(Config{Kind: "session", Count: 1}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestRunWritesUIDs(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := Run(Config{Kind: KindUID, Count: 2}, buf); err != nil {
		t.Fatalf("run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 identifiers, got %d", len(lines))
	}
	for _, line := range lines {
		if len(line) != 32 {
			t.Fatalf("expected 32 hex chars, got %d (%q)", len(line), line)
		}
	}
	if lines[0] == lines[1] {
		t.Fatal("expected distinct identifiers")
	}
}

func TestRunWritesTokenIDs(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := Run(Config{Kind: KindToken, Count: 1}, buf); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := strings.TrimSpace(buf.String())
	if len(got) != 64 {
		t.Fatalf("expected 64 hex chars, got %d (%q)", len(got), got)
	}
}
