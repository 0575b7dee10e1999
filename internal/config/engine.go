package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"folio/internal/spec"
)

const SupportedSchema = "v1"

// LoadEngineSpec parses an engine YAML, validates schema_version, applies
// defaults, and returns the parsed spec and an absolute path to the storage
// driver config (if set).
func LoadEngineSpec(path string) (spec.File, string, error) {
	var cfg spec.File
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, "", err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, "", err
	}
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = SupportedSchema
	}
	if cfg.SchemaVersion != SupportedSchema {
		return cfg, "", fmt.Errorf("engine schema_version %q not supported (want %q)", cfg.SchemaVersion, SupportedSchema)
	}
	applyDefaults(&cfg)
	confPath := cfg.Storage.Config
	if confPath != "" && !filepath.IsAbs(confPath) {
		confPath = filepath.Join(filepath.Dir(path), confPath)
	}
	return cfg, confPath, nil
}

func applyDefaults(c *spec.File) {
	if c.Storage.Kind == "" {
		c.Storage.Kind = "fs"
	}
	if c.RegisterKey == "" {
		c.RegisterKey = spec.DefaultRegisterKey
	}
	if c.BundleMaxItems == 0 {
		c.BundleMaxItems = spec.DefaultBundleMaxItems
	}
	if c.ListenPort == 0 {
		c.ListenPort = 8080
	}
	if c.MetricsPort == 0 {
		c.MetricsPort = 9100
	}
}
