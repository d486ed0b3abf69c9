package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func newJSONLogger(buf *bytes.Buffer) *Logger {
	return New(Config{Format: "json", Output: buf, Level: slog.LevelDebug})
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("not a JSON record: %q", line)
	}
	buf.Reset()
	return rec
}

func TestLogger_Component(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf).WithComponent(ComponentLedger)
	logger.Info("Ledger ready", "count", 2)

	rec := decodeLine(t, &buf)
	if rec[FieldComponent] != ComponentLedger || rec["msg"] != "Ledger ready" {
		t.Errorf("record = %v", rec)
	}
	if logger.Component() != ComponentLedger {
		t.Errorf("Component() = %q", logger.Component())
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext without logger returned nil")
	}

	var buf bytes.Buffer
	logger := newJSONLogger(&buf).With(FieldRequestID, "req-1")
	FromContext(WithContext(context.Background(), logger)).Info("hello")
	if rec := decodeLine(t, &buf); rec[FieldRequestID] != "req-1" {
		t.Errorf("record = %v", rec)
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newJSONLogger(&buf))
	ctx := context.Background()

	sl.LogHTTPEnd(ctx, httptest.NewRequest("GET", "/api/transactions?q=tea", nil), 404, 12, "10.0.0.1")
	rec := decodeLine(t, &buf)
	if rec["level"] != "WARN" || rec[FieldStatusCode] != float64(404) || rec[FieldClientIP] != "10.0.0.1" {
		t.Errorf("http record = %v", rec)
	}

	sl.LogTransactionStored(ctx, OpCreate, "u1", "tx1", "EXPENSE", "Groceries", 1250)
	rec = decodeLine(t, &buf)
	if rec[FieldTxID] != "tx1" || rec[FieldAmountCents] != float64(1250) || rec[FieldUserID] != "u1" {
		t.Errorf("transaction record = %v", rec)
	}
	if _, ok := rec["description"]; ok {
		t.Error("description must not be logged")
	}

	sl.LogError(ctx, "Import failed", errors.New("boom"), ComponentBackup, OpImport, nil)
	rec = decodeLine(t, &buf)
	if rec["level"] != "ERROR" || rec[FieldError] != "boom" || rec[FieldOperation] != OpImport {
		t.Errorf("error record = %v", rec)
	}
}
