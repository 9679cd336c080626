package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNew_Level(t *testing.T) {
	log, err := New("warn", false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if log.Logger.GetLevel() != logrus.WarnLevel {
		t.Fatalf("level=%v want warn", log.Logger.GetLevel())
	}

	log, err = New("warn", true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if log.Logger.GetLevel() != logrus.DebugLevel {
		t.Fatalf("debug flag ignored: level=%v", log.Logger.GetLevel())
	}
}

func TestNew_BadLevel(t *testing.T) {
	if _, err := New("loud", false); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestComponent_Prefix(t *testing.T) {
	log, err := New("info", false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var buf bytes.Buffer
	log.Logger.SetOutput(&buf)

	Component(log, "solenoid").WithField("channel", 3).Info("on")
	out := buf.String()
	if !strings.Contains(out, "solenoid") || !strings.Contains(out, "channel=3") {
		t.Fatalf("output=%q", out)
	}
}

func TestDiscard(t *testing.T) {
	Discard().Error("dropped")
}
