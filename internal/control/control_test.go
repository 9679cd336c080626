package control

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"keyplayer/internal/solenoid"
)

func newTestController(t *testing.T) (*Controller, *solenoid.Driver, *solenoid.FakeBus, *bytes.Buffer) {
	t.Helper()
	bus := solenoid.NewFakeBus()
	cfg := solenoid.DefaultConfig()
	cfg.MinOffTime = 0
	drv := solenoid.New(bus, cfg)
	if err := drv.Begin(0x20, 0x21); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	var out bytes.Buffer
	c, err := New(drv, &out, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, drv, bus, &out
}

func TestExec_ChannelCommands(t *testing.T) {
	c, drv, bus, _ := newTestController(t)

	if err := c.Exec("on 3; on 9 # two boards"); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if !drv.IsOn(3) || !drv.IsOn(9) {
		t.Fatalf("channels not on")
	}
	if bus.Device(0x20).Latch != 0x08 || bus.Device(0x21).Latch != 0x02 {
		t.Fatalf("latches=0x%02X/0x%02X", bus.Device(0x20).Latch, bus.Device(0x21).Latch)
	}
	if err := c.Exec("off 3; toggle 9"); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if drv.IsOn(3) || drv.IsOn(9) {
		t.Fatalf("channels still on")
	}
}

func TestExec_BoardAndBulk(t *testing.T) {
	c, drv, bus, _ := newTestController(t)

	if err := c.Exec("board 1 0xA5"); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if drv.BoardMask(1) != 0xA5 || bus.Device(0x21).Latch != 0xA5 {
		t.Fatalf("mask=0x%02X", drv.BoardMask(1))
	}
	if err := c.Exec("alloff"); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if drv.BoardMask(1) != 0 {
		t.Fatalf("alloff left mask=0x%02X", drv.BoardMask(1))
	}
	if err := c.Exec("allon; stop"); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if drv.BoardMask(0) != 0 || drv.BoardMask(1) != 0 {
		t.Fatalf("stop left outputs on")
	}
}

func TestExec_Pulse(t *testing.T) {
	c, drv, _, _ := newTestController(t)
	if err := c.Exec("pulse 4 1ms"); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if !drv.IsOn(4) {
		t.Fatalf("pulse did not start")
	}
	time.Sleep(5 * time.Millisecond)
	if err := drv.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if drv.IsOn(4) {
		t.Fatalf("pulse not ended by Update")
	}
}

func TestExec_StatusAndRead(t *testing.T) {
	c, _, _, out := newTestController(t)
	if err := c.Exec("on 2; status 2; status; read 0"); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"ch 2 board 0 pin 2 on=true",
		"activations=1",
		"board 0 addr=0x20 mask=00000100",
		"board 1 addr=0x21 mask=00000000",
		"board 0 latch=0x04 cached=0x04",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestExec_Errors(t *testing.T) {
	c, _, _, _ := newTestController(t)
	cases := []struct {
		line string
		code solenoid.Code
	}{
		{"on 16", solenoid.CodeInvalidChannel},
		{"board 2 0x01", solenoid.CodeInvalidBoard},
		{"on", solenoid.CodeUnknown},
		{"on x", solenoid.CodeUnknown},
		{"on 300", solenoid.CodeUnknown},
		{"pulse 1 20", solenoid.CodeUnknown},
		{"dance 1", solenoid.CodeUnknown},
		{"on 1 ; ; %", solenoid.CodeUnknown},
	}
	for _, tc := range cases {
		err := c.Exec(tc.line)
		if err == nil {
			t.Fatalf("Exec(%q) succeeded", tc.line)
		}
		if got := solenoid.CodeOf(err); got != tc.code {
			t.Fatalf("Exec(%q) code=%v want %v (err=%v)", tc.line, got, tc.code, err)
		}
	}
}

func TestExec_EmptyAndComment(t *testing.T) {
	c, _, _, _ := newTestController(t)
	for _, line := range []string{"", "   ", "# nothing", ";;"} {
		if err := c.Exec(line); err != nil {
			t.Fatalf("Exec(%q): %v", line, err)
		}
	}
}

func TestServe_ReportsAndContinues(t *testing.T) {
	c, drv, _, out := newTestController(t)
	in := strings.NewReader("on 1\nbogus\non 5\n")
	if err := c.Serve(context.Background(), in); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if !drv.IsOn(1) || !drv.IsOn(5) {
		t.Fatalf("commands after a failure were not run")
	}
	if !strings.Contains(out.String(), `unknown command "bogus"`) {
		t.Fatalf("output=%q", out.String())
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	c, _, _, _ := newTestController(t)
	r, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Serve(ctx, r) }()
	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not return after cancel")
	}
}
