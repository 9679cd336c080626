package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"keyplayer/internal/solenoid"
)

func TestFromError(t *testing.T) {
	now := time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC)
	err := fmt.Errorf("sweep: %w", &solenoid.Error{Code: solenoid.CodeSafetyTimeout, Channel: 12})

	ev := FromError(err, now)
	if ev.Code != solenoid.CodeSafetyTimeout || ev.Channel != 12 {
		t.Fatalf("event=%+v", ev)
	}
	if ev.ID == "" || !ev.Timestamp.Equal(now) || ev.Message != err.Error() {
		t.Fatalf("event=%+v", ev)
	}
	if !ev.Urgent() {
		t.Fatalf("safety timeout should be urgent")
	}

	other := FromError(errors.New("boom"), now)
	if other.Code != solenoid.CodeUnknown || other.Channel != solenoid.Global || other.Urgent() {
		t.Fatalf("foreign event=%+v", other)
	}
	if other.ID == ev.ID {
		t.Fatalf("ids should differ")
	}
}

func TestFormatPayload(t *testing.T) {
	event := Event{
		ID:        "0f4c",
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Code:      solenoid.CodeSafetyCooldown,
		Channel:   10,
		Message:   "solenoid: Safety cooldown on channel 10",
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	p := parsed.Solenoid
	if p.ID != "0f4c" || p.Timestamp != "2026-02-02T22:18:12Z" || p.Code != "SAFETY_COOLDOWN" {
		t.Errorf("unexpected payload: %+v", p)
	}
	if p.Channel == nil || *p.Channel != 10 || p.Board == nil || *p.Board != 1 {
		t.Errorf("unexpected channel/board: %v/%v", p.Channel, p.Board)
	}
	if p.Message != event.Message {
		t.Errorf("unexpected message: %s", p.Message)
	}
}

func TestFormatPayload_GlobalOmitsChannel(t *testing.T) {
	payload, err := FormatPayload(Event{Code: solenoid.CodeHardware, Channel: solenoid.Global})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var raw map[string]map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := raw["solenoid"]["channel"]; ok {
		t.Errorf("channel present in %s", payload)
	}
	if raw["solenoid"]["code"] != "HARDWARE_COMMUNICATION" {
		t.Errorf("code=%v", raw["solenoid"]["code"])
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()
	if err := f.Publish(Event{Code: solenoid.CodeBusy, Channel: solenoid.Global}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	f.PublishError = errors.New("offline")
	if err := f.Publish(Event{}); err == nil {
		t.Fatalf("expected PublishError")
	}
	if len(f.Snapshot()) != 1 || len(f.Payloads) != 1 {
		t.Fatalf("events=%d payloads=%d", len(f.Events), len(f.Payloads))
	}
	_ = f.Close()
	if !f.Closed {
		t.Fatalf("Closed not set")
	}
}

func TestSink_DeliversDriverReports(t *testing.T) {
	pub := NewFakePublisher()
	sink := NewSink(pub, nil, 8)

	bus := solenoid.NewFakeBus()
	drv := solenoid.New(bus, solenoid.DefaultConfig())
	drv.SetObserver(sink.Observe)
	if err := drv.Begin(0x20); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := drv.On(2); err != nil {
		t.Fatalf("On: %v", err)
	}
	if err := drv.Off(2); err != nil {
		t.Fatalf("Off: %v", err)
	}
	// Immediate re-activation hits the 50ms cooldown.
	if err := drv.On(2); !errors.Is(err, solenoid.ErrSafetyCooldown) {
		t.Fatalf("On err=%v want cooldown", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink.Run(ctx)

	got := pub.Snapshot()
	if len(got) != 1 {
		t.Fatalf("events=%+v want one", got)
	}
	if got[0].Code != solenoid.CodeSafetyCooldown || got[0].Channel != 2 {
		t.Fatalf("event=%+v", got[0])
	}
}

func TestSink_DropsWhenFull(t *testing.T) {
	pub := NewFakePublisher()
	sink := NewSink(pub, nil, 2)
	for i := 0; i < 5; i++ {
		sink.Observe(solenoid.ErrBusy)
	}
	sink.Observe(nil)
	if sink.Dropped() != 3 {
		t.Fatalf("dropped=%d want 3", sink.Dropped())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink.Run(ctx)
	if len(pub.Snapshot()) != 2 {
		t.Fatalf("published=%d want 2", len(pub.Snapshot()))
	}
}

func TestSink_RunPublishesUntilCancelled(t *testing.T) {
	pub := NewFakePublisher()
	sink := NewSink(pub, nil, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sink.Run(ctx)
		close(done)
	}()

	sink.Observe(solenoid.ErrHardware)
	deadline := time.Now().Add(2 * time.Second)
	for len(pub.Snapshot()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("event never published")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done
}
