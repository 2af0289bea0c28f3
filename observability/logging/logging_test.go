package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestSetupRenamesKeys(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger := SetupWithOptions("leveraged", "test", Options{Level: "debug", Output: &buf})
	logger.Debug("delivered call", "action", "borrow")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	for _, key := range []string{"timestamp", "severity", "message", "service", "env", "action"} {
		if _, ok := line[key]; !ok {
			t.Fatalf("expected key %q in %v", key, line)
		}
	}
	if line["severity"] != "DEBUG" {
		t.Fatalf("expected DEBUG severity, got %v", line["severity"])
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("WARN") != slog.LevelWarn {
		t.Fatalf("expected warn level")
	}
	if ParseLevel("") != slog.LevelInfo {
		t.Fatalf("expected info default")
	}
}

func TestMaskField(t *testing.T) {
	if attr := MaskField("token", "abc"); attr.Value.String() != RedactedValue {
		t.Fatalf("expected token to be redacted, got %s", attr.Value)
	}
	if attr := MaskField("action", "borrow"); attr.Value.String() != "borrow" {
		t.Fatalf("expected action to pass through, got %s", attr.Value)
	}
}
