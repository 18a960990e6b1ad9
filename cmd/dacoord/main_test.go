package main

import (
	"testing"
	"time"
)

func TestResolveConfigFromExample(t *testing.T) {
	cfg, err := resolveConfig("ex.config.toml", "", "")
	if err != nil {
		t.Fatalf("load example: %v", err)
	}
	if cfg.ID != "master" || cfg.ListenAddr != ":5000" || cfg.AdminAddr != "127.0.0.1:5080" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Workers != 4 || cfg.ReadTimeout != 30*time.Second {
		t.Fatalf("unexpected tuning: %+v", cfg)
	}

	cfg, err = resolveConfig("ex.config.toml", "127.0.0.1:6000", " ")
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:6000" || cfg.AdminAddr != "127.0.0.1:5080" {
		t.Fatalf("unexpected override: %+v", cfg)
	}

	if _, err := resolveConfig("", ":5000", ":5000"); err == nil {
		t.Fatalf("expected clashing addresses to be rejected")
	}
}
