package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLogger_Environments(t *testing.T) {
	prod, err := NewLogger("prod")
	if err != nil {
		t.Fatalf("NewLogger(prod): %v", err)
	}
	if prod.Core().Enabled(zapcore.DebugLevel) {
		t.Error("prod must default to info")
	}

	for _, env := range []string{"local", "dev", "docker"} {
		l, err := NewLogger(env)
		if err != nil {
			t.Fatalf("NewLogger(%q): %v", env, err)
		}
		if !l.Core().Enabled(zapcore.DebugLevel) {
			t.Errorf("NewLogger(%q): must default to debug", env)
		}
	}
}

func TestNewLogger_LevelOverride(t *testing.T) {
	l, err := NewLogger("prod", "debug")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug override must lower the prod level")
	}

	l, err = NewLogger("local", "error")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if l.Core().Enabled(zapcore.WarnLevel) {
		t.Error("error override must raise the dev level")
	}
}

func TestNewLogger_UnknownEnvironment(t *testing.T) {
	if _, err := NewLogger("staging"); err == nil {
		t.Error("unknown environment must fail")
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	if _, err := NewLogger("prod", "loud"); err == nil {
		t.Error("invalid level must fail")
	}
}
