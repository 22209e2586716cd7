// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestWithComponentIncludesTag(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, slog.LevelDebug, false)
	defer Configure(&buf, slog.LevelInfo, false)

	WithComponent("mrt").Info("task drained", "kind", "sg")

	out := buf.String()
	if !strings.Contains(out, "component=mrt") {
		t.Errorf("expected component=mrt in output, got %q", out)
	}
	if !strings.Contains(out, "kind=sg") {
		t.Errorf("expected kind=sg in output, got %q", out)
	}
}

func TestWithErrorAttachesError(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, slog.LevelDebug, false)
	defer Configure(&buf, slog.LevelInfo, false)

	WithComponent("bsr").WithError(errTest("boom")).Error("merge failed")

	if !strings.Contains(buf.String(), "error=boom") {
		t.Errorf("expected error=boom in output, got %q", buf.String())
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
