// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package install resolves the default filesystem locations pimd reads
// its HCL configuration from and writes runtime state to, the way the
// rest of the pack resolves config/state/run directories: the per-kind
// environment variable first, then PIMD_PREFIX, then a compiled-in
// default that build-time ldflags can replace.
package install

import (
	"os"
	"path/filepath"
)

// ConfigEnvPrefix namespaces every path override environment variable.
const ConfigEnvPrefix = "PIMD"

// Compiled-in defaults, overridable at build time via -ldflags
// -X pim-sm.dev/pimd/internal/install.BuildDefaultConfigDir=...
var (
	DefaultConfigDir = "/etc/pimd"
	DefaultStateDir  = "/var/lib/pimd"
	DefaultRunDir    = "/var/run/pimd"

	BuildDefaultConfigDir = ""
	BuildDefaultStateDir  = ""
	BuildDefaultRunDir    = ""
)

func init() {
	if BuildDefaultConfigDir != "" {
		DefaultConfigDir = BuildDefaultConfigDir
	}
	if BuildDefaultStateDir != "" {
		DefaultStateDir = BuildDefaultStateDir
	}
	if BuildDefaultRunDir != "" {
		DefaultRunDir = BuildDefaultRunDir
	}
}

// GetConfigDir returns the directory pimd looks in for its HCL config
// file absent an explicit -config flag.
// Priority: PIMD_CONFIG_DIR > PIMD_PREFIX/config > DefaultConfigDir
func GetConfigDir() string {
	if dir := os.Getenv(ConfigEnvPrefix + "_CONFIG_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "config")
	}
	return DefaultConfigDir
}

// GetStateDir returns the directory pimd persists BSR/RP-set snapshots
// and dataflow stats snapshots to across restarts.
// Priority: PIMD_STATE_DIR > PIMD_PREFIX/state > DefaultStateDir
func GetStateDir() string {
	if dir := os.Getenv(ConfigEnvPrefix + "_STATE_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "state")
	}
	return DefaultStateDir
}

// GetRunDir returns the directory pimd places its PID file and control
// socket in.
// Priority: PIMD_RUN_DIR > PIMD_PREFIX/run > DefaultRunDir
func GetRunDir() string {
	if dir := os.Getenv(ConfigEnvPrefix + "_RUN_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "run")
	}
	return DefaultRunDir
}

// GetSocketPath returns the full path to pimd's control socket, used by
// a future CLI to query node status without parsing log output.
func GetSocketPath() string {
	if path := os.Getenv(ConfigEnvPrefix + "_CTL_SOCKET"); path != "" {
		return path
	}
	return filepath.Join(GetRunDir(), "pimd.sock")
}
