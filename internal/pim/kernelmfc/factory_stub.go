// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux
// +build !linux

package kernelmfc

import "fmt"

// NewReal is unavailable outside Linux; MRT_* sockopts are a Linux kernel
// facility. Run with --sim on other platforms.
func NewReal(fd int, isIPv6 bool) (Provider, error) {
	return nil, fmt.Errorf("kernelmfc: real MRT provider is only supported on linux")
}
