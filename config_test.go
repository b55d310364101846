// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleConfigTOML = `
dependency_cache_path = "/var/cache/twpack/deps.bin"
assembly_kit_root = "/opt/assembly-kit"
schema_path = "/etc/twpack/schema.json"
vanilla_table_dir = "/opt/vanilla-tables"
`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twpack.toml")
	if err := os.WriteFile(path, []byte(sampleConfigTOML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.DependencyCachePath != "/var/cache/twpack/deps.bin" {
		t.Errorf("DependencyCachePath = %q", cfg.DependencyCachePath)
	}
	if cfg.AssemblyKitRoot != "/opt/assembly-kit" {
		t.Errorf("AssemblyKitRoot = %q", cfg.AssemblyKitRoot)
	}
	if cfg.SchemaPath != "/etc/twpack/schema.json" {
		t.Errorf("SchemaPath = %q", cfg.SchemaPath)
	}
	if cfg.VanillaTableDir != "/opt/vanilla-tables" {
		t.Errorf("VanillaTableDir = %q", cfg.VanillaTableDir)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err == nil {
		t.Fatal("LoadConfig() with a missing file: want error, got nil")
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("this is not [valid toml"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("LoadConfig() with malformed TOML: want error, got nil")
	}
}
