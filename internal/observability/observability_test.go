package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/contrib/processors/minsev"
)

func restoreDefault(t *testing.T) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestInstrumentLocalHandler(t *testing.T) {
	tests := []struct {
		name   string
		format string
		check  func(t *testing.T, out string)
	}{
		{
			name:   "text",
			format: "text",
			check: func(t *testing.T, out string) {
				if !strings.Contains(out, "msg=hello") || !strings.Contains(out, "user_id=u1") {
					t.Errorf("text output = %q", out)
				}
			},
		},
		{
			name:   "json",
			format: "json",
			check: func(t *testing.T, out string) {
				var rec map[string]any
				if err := json.Unmarshal([]byte(out), &rec); err != nil {
					t.Fatalf("output is not JSON: %v (%q)", err, out)
				}
				if rec["msg"] != "hello" || rec["user_id"] != "u1" {
					t.Errorf("json output = %v", rec)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreDefault(t)
			var buf bytes.Buffer

			shutdown, err := instrument(context.Background(), &buf, slog.LevelInfo, tt.format, ExporterNone)
			if err != nil {
				t.Fatalf("instrument() error = %v", err)
			}
			defer func() { _ = shutdown(context.Background()) }()

			slog.Debug("hidden")
			slog.Info("hello", "user_id", "u1")

			out := strings.TrimSpace(buf.String())
			if strings.Contains(out, "hidden") {
				t.Errorf("debug record logged at info level: %q", out)
			}
			tt.check(t, out)
		})
	}
}

func TestInstrumentStdoutExporter(t *testing.T) {
	restoreDefault(t)
	var buf bytes.Buffer

	shutdown, err := instrument(context.Background(), &buf, slog.LevelWarn, "text", ExporterStdout)
	if err != nil {
		t.Fatalf("instrument() error = %v", err)
	}

	slog.Info("dropped by severity filter")
	slog.Warn("token refresh failed")

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "token refresh failed") {
		t.Errorf("exported output missing warning: %q", out)
	}
	if strings.Contains(out, "dropped by severity filter") {
		t.Errorf("exported output contains info record: %q", out)
	}
}

func TestInstrumentRejectsUnknownSettings(t *testing.T) {
	restoreDefault(t)
	ctx := context.Background()

	if _, err := instrument(ctx, &bytes.Buffer{}, slog.LevelInfo, "xml", ExporterNone); err == nil {
		t.Error("instrument(format=xml) succeeded, want error")
	}
	if _, err := instrument(ctx, &bytes.Buffer{}, slog.LevelInfo, "text", Exporter("zipkin")); err == nil {
		t.Error("instrument(exporter=zipkin) succeeded, want error")
	}
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  minsev.Severity
	}{
		{slog.LevelDebug, minsev.SeverityDebug},
		{slog.LevelInfo, minsev.SeverityInfo},
		{slog.LevelWarn, minsev.SeverityWarn},
		{slog.LevelError, minsev.SeverityError},
		{slog.LevelError + 4, minsev.SeverityError},
	}

	for _, tt := range tests {
		if got := severity(tt.level); got != tt.want {
			t.Errorf("severity(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
