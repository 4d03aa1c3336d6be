package app

import "testing"

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.HTTPAddr != ":8000" {
		t.Fatalf("http addr = %q", cfg.HTTPAddr)
	}
	if cfg.Backend != BackendMemory {
		t.Fatalf("backend = %q", cfg.Backend)
	}
	if cfg.SQLitePath == "" {
		t.Fatal("expected sqlite path default")
	}

	set := Config{HTTPAddr: ":9000", Backend: BackendSQLite, SQLitePath: "/tmp/x.db"}.withDefaults()
	if set.HTTPAddr != ":9000" || set.Backend != BackendSQLite || set.SQLitePath != "/tmp/x.db" {
		t.Fatalf("cfg = %+v, want explicit values kept", set)
	}
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	if _, err := openStore(Config{Backend: "redis"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestOpenStoreMemory(t *testing.T) {
	store, err := openStore(Config{Backend: BackendMemory})
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
}
