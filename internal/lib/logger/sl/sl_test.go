package sl

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	log := SetupLogger(&buf, EnvProd, "info")
	log.Debug("hidden")
	log.Info("shown", Err(errors.New("boom")))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug record should be filtered at info level")
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"error":"boom"`) {
		t.Errorf("expected JSON record with error attr, got %s", out)
	}

	buf.Reset()
	SetupLogger(&buf, EnvLocal, "debug").Debug("local")
	if !strings.Contains(buf.String(), "msg=local") {
		t.Errorf("expected text record, got %s", buf.String())
	}
}
