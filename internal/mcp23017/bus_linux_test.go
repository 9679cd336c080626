//go:build linux

package mcp23017

import (
	"testing"
	"time"
)

// /dev/null opens like an adapter node but rejects every transfer ioctl.
func TestBus_NotAnAdapter(t *testing.T) {
	b, err := OpenBus("/dev/null")
	if err != nil {
		t.Fatalf("OpenBus: %v", err)
	}
	defer b.Close()

	if b.Probe(0x20) {
		t.Fatalf("probe should fail on /dev/null")
	}
	if err := b.SetClock(100000); err != nil {
		t.Fatalf("SetClock: %v", err)
	}
	if err := b.SetTimeout(50 * time.Millisecond); err == nil {
		t.Fatalf("expected SetTimeout ioctl error")
	}
	exp, err := b.Open(0x20)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := exp.ConfigureOutputs(); err == nil {
		t.Fatalf("expected transfer error")
	}
}

func TestOpenBus_Missing(t *testing.T) {
	if _, err := OpenBus("/dev/i2c-does-not-exist"); err == nil {
		t.Fatalf("expected error")
	}
}
