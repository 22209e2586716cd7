// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	pimerr "pim-sm.dev/pimd/internal/errors"
)

// LoadFile reads and decodes the HCL configuration at path, applying
// spec §6.5 defaults and resolving every address/prefix field.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pimerr.Errorf(pimerr.KindConfiguration, "read config file: %w", err)
	}
	return LoadBytes(data, path)
}

// LoadBytes decodes raw HCL source, as LoadFile does, for callers that
// already have the document in memory (tests, config-check pipelines).
func LoadBytes(data []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, pimerr.Errorf(pimerr.KindConfiguration, "parse config: %w", diags)
	}

	var cfg Config
	if diags := gohcl.DecodeBody(f.Body, nil, &cfg); diags.HasErrors() {
		return nil, pimerr.Errorf(pimerr.KindConfiguration, "decode config: %w", diags)
	}

	cfg.applyDefaults()
	if err := cfg.resolveAddrs(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
