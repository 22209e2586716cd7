// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux
// +build linux

package kernelmfc

// NewReal opens the real MRT_* kernel provider on fd, the raw PIM
// socket's file descriptor.
func NewReal(fd int, isIPv6 bool) (Provider, error) {
	return NewLinuxProvider(fd, isIPv6)
}
