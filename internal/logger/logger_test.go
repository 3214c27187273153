package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	apperrors "github.com/opensocial/backend/internal/errors"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn, "test")

	ctx := context.Background()
	l.Debug(ctx, "debug message")
	l.Info(ctx, "info message")
	l.Warn(ctx, "warn message")
	l.Error(ctx, "error message", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 entries at warn level, got %d", len(lines))
	}
}

func TestEntryFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo, "presence")

	ctx := apperrors.WithRequestID(context.Background(), "req-123")
	l.Info(ctx, "user online", map[string]interface{}{"user_id": "u1"})

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal entry: %v", err)
	}

	if entry.Level != "info" {
		t.Errorf("level = %q, want info", entry.Level)
	}
	if entry.Component != "presence" {
		t.Errorf("component = %q, want presence", entry.Component)
	}
	if entry.RequestID != "req-123" {
		t.Errorf("request_id = %q, want req-123", entry.RequestID)
	}
	if entry.Fields["user_id"] != "u1" {
		t.Errorf("fields.user_id = %v, want u1", entry.Fields["user_id"])
	}
}

func TestErrorDetails(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo, "")

	l.Error(context.Background(), "delivery failed", apperrors.PostNotFound())

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal entry: %v", err)
	}

	if entry.Error == nil {
		t.Fatal("expected error details")
	}
	if entry.Error.Code != apperrors.CodePostNotFound {
		t.Errorf("error code = %q, want %q", entry.Error.Code, apperrors.CodePostNotFound)
	}
	if entry.Caller == "" {
		t.Error("expected caller on error entries")
	}
}
