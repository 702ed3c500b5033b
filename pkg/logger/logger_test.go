package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		want  slog.Level
		known bool
	}{
		{"debug", slog.LevelDebug, true},
		{" WARN ", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"", slog.LevelInfo, true},
		{"verbose", slog.LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, known := ParseLevel(tt.name)
			if got != tt.want || known != tt.known {
				t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.name, got, known, tt.want, tt.known)
			}
		})
	}
}

func TestNew_JSONWithService(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Output: &buf, Service: "reservations"})

	log.Debug("hidden")
	log.Info("visible", "slot", "09:00")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line at info level, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry[SERVICE] != "reservations" || entry["slot"] != "09:00" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Output: &buf, Format: TEXT})

	if FromContext(context.Background(), base) != base {
		t.Fatal("expected fallback without a stored logger")
	}

	ctx := WithContext(context.Background(), base.With("request_id", "abc"))
	FromContext(ctx, base).Info("handled")

	if !strings.Contains(buf.String(), "request_id=abc") {
		t.Errorf("request-scoped attribute missing: %q", buf.String())
	}
}
