// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

import "github.com/BurntSushi/toml"

// Config holds the CLI's own settings. The core library never reads this
// file itself; Schema and dependency providers are explicit arguments
// everywhere else (spec §9). cmd/twpack registers a --config flag and a
// loadConfig helper for it, but no subcommand calls loadConfig, so none of
// these fields reaches a provider.
type Config struct {
	// DependencyCachePath points at a serialized Schema/AssemblyKitCache
	// pair used as a dependency backstop when resolving FieldRef lookups.
	DependencyCachePath string `toml:"dependency_cache_path"`

	// AssemblyKitRoot is the directory holding `TWaD_<table>.xml` definition
	// files and their paired raw data XML exports.
	AssemblyKitRoot string `toml:"assembly_kit_root"`

	// SchemaPath is a default Schema JSON-equivalent file path; nothing in
	// this module reads it.
	SchemaPath string `toml:"schema_path"`

	// VanillaTableDir is the optimizer's reference directory of unmodified
	// game tables (spec §4.C, "Optimizer").
	VanillaTableDir string `toml:"vanilla_table_dir"`
}

// LoadConfig decodes a TOML config file at path.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
