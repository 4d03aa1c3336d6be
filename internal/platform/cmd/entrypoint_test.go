package cmd

import (
	"context"
	"flag"
	"testing"
)

type testConfig struct {
	Address string `env:"AUTHDB_CMD_TEST_ADDRESS" envDefault:"127.0.0.1:8070"`
	Backend string `env:"AUTHDB_CMD_TEST_BACKEND" envDefault:"mem"`
}

func TestParseConfigReadsEnvAndFlags(t *testing.T) {
	t.Setenv("AUTHDB_CMD_TEST_ADDRESS", "env:9000")
	t.Setenv("AUTHDB_CMD_TEST_BACKEND", "env-backend")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfgRef := testConfig{}
	if err := ParseConfig(&cfgRef); err != nil {
		t.Fatalf("load config defaults: %v", err)
	}
	fs.StringVar(&cfgRef.Address, "address", cfgRef.Address, "address")
	fs.StringVar(&cfgRef.Backend, "backend", cfgRef.Backend, "backend")

	if err := ParseArgs(fs, []string{"-address", "flag:9001"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if cfgRef.Address != "flag:9001" {
		t.Fatalf("expected flag value for address, got %q", cfgRef.Address)
	}
	if cfgRef.Backend != "env-backend" {
		t.Fatalf("expected env default backend, got %q", cfgRef.Backend)
	}
}

func TestParseConfigFromArgsReadsEnvAndFlags(t *testing.T) {
	t.Setenv("AUTHDB_CMD_TEST_ADDRESS", "configarg:9000")
	t.Setenv("AUTHDB_CMD_TEST_BACKEND", "configarg-backend")

	cfgRef := testConfig{}
	fs := flag.NewFlagSet("configargs", flag.ContinueOnError)
	fs.StringVar(&cfgRef.Address, "address", "", "address")
	fs.StringVar(&cfgRef.Backend, "backend", "", "backend")
	if err := ParseConfigFromArgs(&cfgRef, fs, []string{"-address", "flag:9002"}); err != nil {
		t.Fatalf("parse config and args: %v", err)
	}
	if cfgRef.Address != "flag:9002" {
		t.Fatalf("expected parsed flag address, got %q", cfgRef.Address)
	}
	if cfgRef.Backend != "configarg-backend" {
		t.Fatalf("expected env default backend, got %q", cfgRef.Backend)
	}
}

func TestParseArgsRejectsNilParser(t *testing.T) {
	if err := ParseArgs(nil, []string{}); err == nil {
		t.Fatal("expected parse args to reject nil parser")
	}
}

func TestRunWithTelemetryRejectsMissingInputs(t *testing.T) {
	if err := RunWithTelemetry(nil, "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(nil, ServiceAuthDB, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}
