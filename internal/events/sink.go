package events

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Sink decouples the driver's observer callback from broker latency. Observe
// never blocks; events beyond the queue depth are dropped and counted.
type Sink struct {
	pub     Publisher
	log     *logrus.Entry
	queue   chan Event
	dropped uint64
	now     func() time.Time
}

func NewSink(pub Publisher, log *logrus.Entry, depth int) *Sink {
	if depth <= 0 {
		depth = 64
	}
	return &Sink{
		pub:   pub,
		log:   log,
		queue: make(chan Event, depth),
		now:   time.Now,
	}
}

// Observe matches the signature of solenoid.Driver.SetObserver.
func (s *Sink) Observe(err error) {
	if err == nil {
		return
	}
	ev := FromError(err, s.now())
	select {
	case s.queue <- ev:
	default:
		n := atomic.AddUint64(&s.dropped, 1)
		if s.log != nil {
			s.log.WithFields(logrus.Fields{"code": ev.Code.Name(), "dropped": n}).Warn("event queue full")
		}
	}
}

func (s *Sink) Dropped() uint64 { return atomic.LoadUint64(&s.dropped) }

// Run publishes queued events until ctx is done, then flushes what is
// already queued.
func (s *Sink) Run(ctx context.Context) {
	for {
		select {
		case ev := <-s.queue:
			s.publish(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-s.queue:
					s.publish(ev)
				default:
					return
				}
			}
		}
	}
}

func (s *Sink) publish(ev Event) {
	if err := s.pub.Publish(ev); err != nil && s.log != nil {
		s.log.WithError(err).WithField("code", ev.Code.Name()).Warn("publish failed")
	}
}
