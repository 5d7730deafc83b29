package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Obras.EstadoInicial != "Planificacion" {
		t.Fatalf("unexpected initial state: %s", cfg.Obras.EstadoInicial)
	}
	if cfg.Paginacion.Size != 10 || cfg.Paginacion.MaxSize != 100 {
		t.Fatalf("unexpected pagination defaults: %+v", cfg.Paginacion)
	}
}

func TestFromYAMLOverridesKeepDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("server:\n  addr: :9090\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("override lost: %s", cfg.Server.Addr)
	}
	// untouched sections keep the defaults
	if cfg.Server.BasePath != "/api" || cfg.Obras.EstadoInicial != "Planificacion" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestFromYAMLRejectsInvalid(t *testing.T) {
	if _, err := FromYAML([]byte("paginacion:\n  size: 0\n")); err == nil {
		t.Fatal("expected validation error for size 0")
	}
	if _, err := FromYAML([]byte("paginacion:\n  size: 50\n  max_size: 10\n")); err == nil {
		t.Fatal("expected validation error for max_size < size")
	}
	if _, err := FromYAML([]byte("seed:\n  estados:\n    - ''\n")); err == nil {
		t.Fatal("expected validation error for empty seed name")
	}
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("expected defaults for missing file, got %+v", cfg.Server)
	}

	if err := os.WriteFile(filepath.Join(dir, "obras.yml"), []byte("server:\n  addr: :7070\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Fatalf("file override lost: %s", cfg.Server.Addr)
	}
}
