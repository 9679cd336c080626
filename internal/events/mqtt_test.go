package events

import (
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

type stubToken struct {
	paho.Token
	done bool
	err  error
}

func (t *stubToken) WaitTimeout(time.Duration) bool { return t.done }
func (t *stubToken) Error() error                   { return t.err }

type stubClient struct {
	paho.Client
	token       *stubToken
	disconnects []uint
}

func (c *stubClient) Connect() paho.Token     { return c.token }
func (c *stubClient) Disconnect(quiesce uint) { c.disconnects = append(c.disconnects, quiesce) }

func withStubClient(t *testing.T, c *stubClient) {
	t.Helper()
	prevNew, prevTimeout := newClientFn, connectTimeout
	newClientFn = func(*paho.ClientOptions) paho.Client { return c }
	connectTimeout = time.Millisecond
	t.Cleanup(func() {
		newClientFn, connectTimeout = prevNew, prevTimeout
	})
}

func TestNewMQTTPublisher_FailureStopsClient(t *testing.T) {
	cases := []struct {
		name  string
		token *stubToken
	}{
		{"Timeout", &stubToken{done: false}},
		{"Refused", &stubToken{done: true, err: errors.New("refused")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &stubClient{token: tc.token}
			withStubClient(t, c)

			p, err := NewMQTTPublisher("tcp://broker:1883", "", "keyplayer/events")
			if err == nil || p != nil {
				t.Fatalf("publisher=%v err=%v want failure", p, err)
			}
			if len(c.disconnects) != 1 || c.disconnects[0] != 0 {
				t.Fatalf("disconnects=%v want [0]", c.disconnects)
			}
		})
	}
}

func TestNewMQTTPublisher_ConnectedKeepsClient(t *testing.T) {
	c := &stubClient{token: &stubToken{done: true}}
	withStubClient(t, c)

	p, err := NewMQTTPublisher("tcp://broker:1883", "player-1", "keyplayer/events")
	if err != nil {
		t.Fatalf("NewMQTTPublisher: %v", err)
	}
	if len(c.disconnects) != 0 {
		t.Fatalf("client disconnected on success: %v", c.disconnects)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(c.disconnects) != 1 || c.disconnects[0] != 1000 {
		t.Fatalf("disconnects=%v want [1000]", c.disconnects)
	}
}
