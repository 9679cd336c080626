package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"keyplayer/internal/config"
	"keyplayer/internal/events"
	"keyplayer/internal/solenoid"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keyplayer.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

// execute runs the root command with args and stdin, returning stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	// Reset flags to prevent accumulation between tests
	configPath = ""
	simulate = false
	runDuration = 0

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestScanE2E(t *testing.T) {
	cfg := writeTempConfig(t, "bus:\n  boards: [0x20, 0x23]\nlog:\n  level: error\n")
	out, err := execute(t, "", "--sim", "--config", cfg, "scan")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	for _, want := range []string{"Found 8 device(s)", "0x20 (configured)", "0x23 (configured)", "0x27\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing expected string: %q\nGot:\n%s", want, out)
		}
	}
}

func TestPulseE2E(t *testing.T) {
	out, err := execute(t, "", "--sim", "pulse", "3", "15ms")
	if err != nil {
		t.Fatalf("pulse: %v", err)
	}
	if !strings.Contains(out, "pulsed channel 3 (board 0 pin 3)") {
		t.Fatalf("output=%q", out)
	}
}

func TestPulseE2E_BadArgs(t *testing.T) {
	cases := [][]string{
		{"--sim", "pulse", "x", "10ms"},
		{"--sim", "pulse", "3", "soon"},
		{"--sim", "pulse", "3", "0s"},
		{"--sim", "pulse", "8", "10ms"},
		{"--sim", "pulse", "3"},
	}
	for _, args := range cases {
		if _, err := execute(t, "", args...); err == nil {
			t.Errorf("args %v: expected error", args)
		}
	}
}

func TestStopE2E(t *testing.T) {
	cfg := writeTempConfig(t, "bus:\n  boards: [0x20, 0x21, 0x22]\ninterlock:\n  enable: true\n  line: 5\n")
	out, err := execute(t, "", "--sim", "--config", cfg, "stop")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !strings.Contains(out, "all outputs off on 3 board(s)") {
		t.Fatalf("output=%q", out)
	}
}

func TestRunE2E(t *testing.T) {
	in := "on 1; on 12\nstatus 1\nstatus\n"
	cfg := writeTempConfig(t, "bus:\n  boards: [0x20, 0x21]\n")
	out, err := execute(t, in, "--sim", "--config", cfg, "run", "--duration", "100ms")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{
		"ch 1 board 0 pin 1 on=true",
		"board 0 addr=0x20 mask=00000010",
		"board 1 addr=0x21 mask=00010000",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing expected string: %q\nGot:\n%s", want, out)
		}
	}
}

func TestRunE2E_PublishesEvents(t *testing.T) {
	pub := events.NewFakePublisher()
	old := newPublisherFn
	newPublisherFn = func(cfg config.Config) (events.Publisher, error) {
		if !cfg.MQTT.Enable {
			t.Errorf("mqtt not enabled in config")
		}
		return pub, nil
	}
	defer func() { newPublisherFn = old }()

	cfg := writeTempConfig(t, "mqtt:\n  enable: true\n  broker: tcp://127.0.0.1:1883\n")
	if _, err := execute(t, "on 40\n", "--sim", "--config", cfg, "run", "--duration", "100ms"); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := pub.Snapshot()
	if len(got) == 0 {
		t.Fatalf("no events published")
	}
	if got[0].Code != solenoid.CodeInvalidChannel || got[0].Channel != 40 {
		t.Fatalf("event=%+v", got[0])
	}
	if !pub.Closed {
		t.Fatalf("publisher not closed")
	}
}

func TestPlayE2E_MissingFile(t *testing.T) {
	if _, err := execute(t, "", "--sim", "play", filepath.Join(t.TempDir(), "none.mid")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestConfigErrorE2E(t *testing.T) {
	cfg := writeTempConfig(t, "bus:\n  boards: [0x50]\n")
	_, err := execute(t, "", "--sim", "--config", cfg, "stop")
	if err == nil || !strings.Contains(err.Error(), "bus.boards address 0x50") {
		t.Fatalf("err=%v", err)
	}
}
