// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package testutil

import (
	"os"
	"testing"
)

// RequireVM skips the test if the PIMD_VM_TEST environment variable is
// not set, gating tests that need real kernel MRT socket capability
// (CAP_NET_ADMIN, an actual multicast-capable netns) that CI sandboxes
// don't grant.
func RequireVM(t *testing.T) {
	t.Helper()
	if os.Getenv("PIMD_VM_TEST") == "" {
		t.Skip("skipping test: requires PIMD_VM_TEST environment")
	}
}
