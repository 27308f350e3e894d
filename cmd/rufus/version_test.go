package main

import (
	"bytes"
	"strings"
	"testing"
)

// TestNewVersionCmd tests the version command.
func TestNewVersionCmd(t *testing.T) {
	t.Parallel()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		cmd := NewVersionCmd()
		if cmd.Use != "version" {
			t.Errorf("expected use 'version', got %q", cmd.Use)
		}
	})

	t.Run("prints version information", func(t *testing.T) {
		t.Parallel()

		cmd := NewVersionCmd()
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{"rufus version ", "commit:", "built:"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected %q in output, got %q", want, output)
			}
		}
	})
}

// TestVersionHelpers tests the build information fallbacks.
func TestVersionHelpers(t *testing.T) {
	t.Parallel()

	if getVersion() == "" {
		t.Error("expected non-empty version")
	}
	if getCommit() == "" {
		t.Error("expected non-empty commit")
	}
	if len(getCommit()) > 7 && commit == "" {
		t.Errorf("expected short commit hash, got %q", getCommit())
	}
	if getDate() == "" {
		t.Error("expected non-empty date")
	}
	if got := buildSetting("no.such.setting"); got != "unknown" {
		t.Errorf("expected 'unknown', got %q", got)
	}
}
