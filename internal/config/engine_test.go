package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEngineSpec_ResolvesRelativeStorageConfigAndSchema(t *testing.T) {
	dir := t.TempDir()
	eng := []byte(`schema_version: v1
storage:
  kind: s3
  config: storage.yml
notify:
  kind: stdout
`)
	if err := os.WriteFile(filepath.Join(dir, "engine.yml"), eng, 0o644); err != nil {
		t.Fatalf("write engine: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "storage.yml"), []byte("schema_version: v1\n"), 0o644); err != nil {
		t.Fatalf("write storage cfg: %v", err)
	}

	cfg, abs, err := LoadEngineSpec(filepath.Join(dir, "engine.yml"))
	if err != nil {
		t.Fatalf("LoadEngineSpec: %v", err)
	}
	if cfg.SchemaVersion != SupportedSchema {
		t.Fatalf("want schema %s, got %s", SupportedSchema, cfg.SchemaVersion)
	}
	if abs == "" || !filepath.IsAbs(abs) {
		t.Fatalf("want absolute storage config path, got %q", abs)
	}
	if cfg.Storage.Kind != "s3" || cfg.Notify.Kind != "stdout" {
		t.Fatalf("sections: %+v", cfg)
	}
}

func TestLoadEngineSpec_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "engine.yml"), []byte("schema_version: v1\n"), 0o644); err != nil {
		t.Fatalf("write engine: %v", err)
	}
	cfg, _, err := LoadEngineSpec(filepath.Join(dir, "engine.yml"))
	if err != nil {
		t.Fatalf("LoadEngineSpec: %v", err)
	}
	if cfg.Storage.Kind != "fs" {
		t.Fatalf("default storage kind: %q", cfg.Storage.Kind)
	}
	if cfg.RegisterKey == "" || cfg.BundleMaxItems != 10_000 {
		t.Fatalf("defaults: %+v", cfg)
	}
	if cfg.ListenPort != 8080 || cfg.MetricsPort != 9100 {
		t.Fatalf("ports: %+v", cfg)
	}
}

func TestLoadEngineSpec_InvalidSchema(t *testing.T) {
	dir := t.TempDir()
	eng := []byte(`schema_version: v999
storage: { kind: fs }
`)
	if err := os.WriteFile(filepath.Join(dir, "engine.yml"), eng, 0o644); err != nil {
		t.Fatalf("write engine: %v", err)
	}
	if _, _, err := LoadEngineSpec(filepath.Join(dir, "engine.yml")); err == nil {
		t.Fatal("expected error for invalid schema_version")
	}
}
