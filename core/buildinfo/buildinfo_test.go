package buildinfo

import (
	"runtime"
	"strings"
	"testing"
)

func TestSummary(t *testing.T) {
	oldV, oldC, oldD := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = oldV, oldC, oldD })

	Version, Commit, Date = "v1.0.0", "abc123", ""
	got := Summary()
	want := "v1.0.0 (abc123, " + runtime.Version() + ")"
	if got != want {
		t.Fatalf("summary = %q, want %q", got, want)
	}

	Date = "2026-01-30T12:00:00Z"
	if got := Summary(); !strings.Contains(got, "abc123, 2026-01-30T12:00:00Z, ") {
		t.Fatalf("summary without date: %q", got)
	}
}
