package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestInit_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	Info().Msg("hidden")
	Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestInit_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "chatty", Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	Debug().Msg("debug")
	Info().Msg("info")

	out := buf.String()
	if strings.Contains(out, `"message":"debug"`) || !strings.Contains(out, `"message":"info"`) {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestPrinter_TagsRunID(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	NewPrinter("run-1").Printf("stage=%s ok", "verify")

	out := buf.String()
	if !strings.Contains(out, `"run_id":"run-1"`) || !strings.Contains(out, `"message":"stage=verify ok"`) {
		t.Fatalf("unexpected output %q", out)
	}
}
