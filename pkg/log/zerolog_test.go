package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewZerologAdapter_Level(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZerologAdapter(&buf, "warn")
	if err != nil {
		t.Fatalf("NewZerologAdapter: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("shown", Uint64("request_id", 42))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message written at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "42") {
		t.Errorf("warn message missing from output: %q", out)
	}
}

func TestNewZerologAdapter_InvalidLevel(t *testing.T) {
	if _, err := NewZerologAdapter(&bytes.Buffer{}, "loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestZerologAdapter_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologAdapterWithLogger(zerolog.New(&buf))

	logger.Error("dispatch failed",
		String("endpoint", "10.0.0.1:10081"),
		Strings("endpoints", []string{"a", "b"}),
		Int("pending", 3),
		Bool("sticky", true),
		Err(errors.New("connection reset")),
	)

	out := buf.String()
	for _, want := range []string{`"endpoint":"10.0.0.1:10081"`, `"endpoints":["a","b"]`, `"pending":3`, `"sticky":true`, `"error":"connection reset"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %s", out, want)
		}
	}
}
