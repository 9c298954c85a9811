package main

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestSetupLogging(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		setupLogging(tt.level)
		if got := zerolog.GlobalLevel(); got != tt.want {
			t.Errorf("setupLogging(%q) level = %v, want %v", tt.level, got, tt.want)
		}
	}
}
