package main

import (
	"flag"
	"os"

	"github.com/fenlight/authdb/internal/platform/config"
	"github.com/fenlight/authdb/internal/tools/idgen"
)

func main() {
	cfg, err := idgen.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := idgen.Run(cfg, os.Stdout); err != nil {
		config.Exitf("generate identifiers: %v", err)
	}
}
