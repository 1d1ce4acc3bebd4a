package logger

import (
	"errors"
	"testing"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
		ok   bool
	}{
		{in: "debug", want: zapcore.DebugLevel, ok: true},
		{in: "WARN", want: zapcore.WarnLevel, ok: true},
		{in: "error", want: zapcore.ErrorLevel, ok: true},
		{in: "", ok: false},
		{in: "verbose", ok: false},
	}
	for _, tt := range tests {
		got, ok := parseLevel(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("parseLevel(%q) = %v, %v, want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestWithAndNamed(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := NewWithCore(core).Named("publisher").With(String("feed", "atom.xml"))

	log.Debug("dropped")
	log.Warn("conflict", Int("attempt", 2), Error(errors.New("stale")))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1 (debug is below the level)", len(entries))
	}
	e := entries[0]
	if e.LoggerName != "publisher" || e.Message != "conflict" {
		t.Errorf("entry = %s %q", e.LoggerName, e.Message)
	}
	fields := e.ContextMap()
	if fields["feed"] != "atom.xml" || fields["attempt"] != int64(2) || fields["error"] != "stale" {
		t.Errorf("fields = %v", fields)
	}
}

func TestNewBuilds(t *testing.T) {
	for _, pretty := range []bool{true, false} {
		if l := New("info", pretty); l == nil {
			t.Fatalf("New(info, %v) = nil", pretty)
		}
	}
}
