// ABOUTME: Tests for the leveled logging package
// ABOUTME: Validates level filtering and output routing through the tint handler

package log

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestSetLevel(t *testing.T) {
	savedLevel := GetLevel()
	defer SetLevel(savedLevel)

	SetLevel(LevelDebug)
	if GetLevel() != LevelDebug {
		t.Errorf("expected LevelDebug, got %v", GetLevel())
	}

	SetLevel(LevelError)
	if GetLevel() != LevelError {
		t.Errorf("expected LevelError, got %v", GetLevel())
	}
}

func TestLevelFiltering(t *testing.T) {
	savedLevel := GetLevel()
	defer SetLevel(savedLevel)
	defer SetOutput(os.Stderr)

	tests := []struct {
		name    string
		level   slog.Level
		emit    func(string, ...any)
		wantOut bool
	}{
		{"debug suppressed at info", LevelInfo, Debug, false},
		{"debug emitted at debug", LevelDebug, Debug, true},
		{"info emitted at info", LevelInfo, Info, true},
		{"warn suppressed at error", LevelError, Warn, false},
		{"error emitted at error", LevelError, Error, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			SetOutput(&buf)
			SetLevel(tt.level)

			tt.emit("request %d finished", 7)

			got := strings.Contains(buf.String(), "request 7 finished")
			if got != tt.wantOut {
				t.Errorf("output = %q, want emitted=%v", buf.String(), tt.wantOut)
			}
		})
	}
}

func TestBufferOutputHasNoColour(t *testing.T) {
	savedLevel := GetLevel()
	defer SetLevel(savedLevel)
	defer SetOutput(os.Stderr)

	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelInfo)

	Info("plain")

	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("expected no ANSI escapes for non-terminal writer, got %q", buf.String())
	}
}
