package config

import (
	scfg "folio/storage"
)

// LoadStorageConfig loads the storage driver config referenced by the
// engine file: YAML merged with FOLIO_STORAGE__ environment overrides.
func LoadStorageConfig(path string) (scfg.Config, error) {
	return scfg.LoadConfig(path)
}
