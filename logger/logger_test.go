package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetLevelTogglesDebug(t *testing.T) {
	defer SetLevel("info")

	SetLevel("debug")
	if !IsDebugEnabled() {
		t.Fatalf("expected debug enabled")
	}

	SetLevel("  INFO ")
	if IsDebugEnabled() {
		t.Fatalf("expected debug disabled")
	}

	SetLevel("nonsense")
	if IsDebugEnabled() {
		t.Fatalf("expected unknown level to fall back to info")
	}
}

func TestLevelFiltersOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel("warn")
	defer SetLevel("info")

	Infof("hidden %d", 1)
	Warnf("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown 2") {
		t.Fatalf("warn line missing: %q", out)
	}
}

func TestWithAddsField(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel("info")

	l := With("share_id", 7)
	l.Info().Msg("claimed")

	if !strings.Contains(buf.String(), `"share_id":7`) {
		t.Fatalf("expected field in output: %q", buf.String())
	}
}
