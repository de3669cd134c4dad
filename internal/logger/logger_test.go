package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeRedactsCredentials(t *testing.T) {
	tests := []struct {
		key      string
		redacted bool
	}{
		{"api_key", true},
		{"ANTHROPIC_APIKEY", true},
		{"refresh_token", true},
		{"card_id", false},
		{"stars", false},
	}

	for _, tc := range tests {
		out := sanitize([]interface{}{tc.key, "value"})
		if len(out) != 2 {
			t.Fatalf("sanitize(%s) returned %d items", tc.key, len(out))
		}
		got := out[1] == "[REDACTED]"
		if got != tc.redacted {
			t.Errorf("key %q redacted = %v, expected %v", tc.key, got, tc.redacted)
		}
	}
}

func TestSanitizeOddLength(t *testing.T) {
	out := sanitize([]interface{}{"a", 1, "dangling"})
	if len(out) != 3 {
		t.Errorf("Expected 3 items, got %d", len(out))
	}
}

func TestNopLogger(t *testing.T) {
	log := NewNop()
	log.Info("hello", "k", "v")
	log.With("service", "test").Warn("still quiet")
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "explorer.log")
	log, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile failed: %v", err)
	}
	log.Info("hello", "api_key", "sk-secret")
	log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("Expected log line, got %q", data)
	}
	if strings.Contains(string(data), "sk-secret") {
		t.Error("Credential leaked into the log file")
	}
}
