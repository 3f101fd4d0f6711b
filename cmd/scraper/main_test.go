package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cvantienen/gsaScrape/config"
	"github.com/cvantienen/gsaScrape/parser"
	"github.com/cvantienen/gsaScrape/scraper"
)

func TestSchemaCommandPrintsDefaultSchema(t *testing.T) {
	cfg := config.DefaultConfig()
	cmd := newRootCmd(cfg)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"schema"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	schema, err := parser.ParseSchema(out.Bytes())
	if err != nil {
		t.Fatalf("printed schema does not load: %v\n%s", err, out.String())
	}
	if got, want := len(schema.Fields), len(parser.DefaultSchema().Fields); got != want {
		t.Fatalf("fields=%d, want %d", got, want)
	}
	if !strings.Contains(out.String(), "Contract Number") {
		t.Fatalf("output missing Contract Number:\n%s", out.String())
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cmd := newRootCmd(cfg)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--workers", "3", "--letters", "A,B", "--driver", "http", "--rps", "0", "schema"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if cfg.Workers != 3 || cfg.Driver != config.DriverHTTP || cfg.RequestsPerSecond != 0 {
		t.Fatalf("cfg=%+v", cfg)
	}
	if strings.Join(cfg.Letters, "") != "AB" {
		t.Fatalf("letters=%v", cfg.Letters)
	}
}

func TestNewDriverHTTP(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Driver = config.DriverHTTP

	d, err := newDriver(cfg)
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	defer d.Close()
	if _, ok := d.(*scraper.CollyDriver); !ok {
		t.Fatalf("driver=%T, want *scraper.CollyDriver", d)
	}
}

func TestPrintSummaryNilResult(t *testing.T) {
	printSummary(nil, 0, 0, 0, "", nil)
}
