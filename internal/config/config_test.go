package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Fatalf("address %q, want :8080", cfg.Server.Address)
	}
	if cfg.Royalty.BaseRate != 500 || cfg.Royalty.OverflowRate != 1000 {
		t.Fatalf("unexpected royalty defaults: %+v", cfg.Royalty)
	}
	if cfg.Royalty.Treasury != "treasury" {
		t.Fatalf("treasury %q, want treasury", cfg.Royalty.Treasury)
	}
	if cfg.SweepSchedule != "@every 1m" {
		t.Fatalf("sweep schedule %q", cfg.SweepSchedule)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("ROYALTY_BASE_RATE", "250")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":9999" {
		t.Fatalf("address %q, want :9999", cfg.Server.Address)
	}
	if cfg.Royalty.BaseRate != 250 {
		t.Fatalf("base rate %d, want 250", cfg.Royalty.BaseRate)
	}
}

func TestLoad_YAMLOverlay(t *testing.T) {
	overlay := filepath.Join(t.TempDir(), "raffle.yaml")
	body := []byte("royalty:\n  base_rate: 123\n  treasury: vault-ops\nsweep_schedule: \"@every 5m\"\n")
	if err := os.WriteFile(overlay, body, 0o600); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	t.Setenv("CONFIG_FILE", overlay)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Royalty.BaseRate != 123 {
		t.Fatalf("base rate %d, want 123", cfg.Royalty.BaseRate)
	}
	if cfg.Royalty.Treasury != "vault-ops" {
		t.Fatalf("treasury %q, want vault-ops", cfg.Royalty.Treasury)
	}
	if cfg.SweepSchedule != "@every 5m" {
		t.Fatalf("sweep schedule %q, want @every 5m", cfg.SweepSchedule)
	}
}

func TestLoad_MissingOverlayFails(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing overlay file")
	}
}
