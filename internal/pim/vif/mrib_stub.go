// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux
// +build !linux

package vif

import (
	"fmt"

	"pim-sm.dev/pimd/internal/pim/addr"
)

// LinuxMrib is unavailable outside Linux; netlink route lookups are a
// Linux kernel facility. Run with a SimMrib or --sim mode on other
// platforms.
type LinuxMrib struct{}

// NewLinuxMrib always returns an error on non-Linux platforms.
func NewLinuxMrib(namespace string) *LinuxMrib { return &LinuxMrib{} }

func (m *LinuxMrib) RPFLookup(dst addr.Addr) (RPFRoute, error) {
	return RPFRoute{}, fmt.Errorf("vif: LinuxMrib is only supported on linux")
}

func (m *LinuxMrib) Close() error { return nil }
