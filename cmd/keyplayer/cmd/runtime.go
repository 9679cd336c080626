package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"keyplayer/internal/config"
	"keyplayer/internal/events"
	"keyplayer/internal/interlock"
	"keyplayer/internal/logging"
	"keyplayer/internal/mcp23017"
	"keyplayer/internal/solenoid"
)

// Swapped in tests.
var (
	openBusFn       = openBus
	openInterlockFn = openInterlock
	newPublisherFn  = newPublisher
)

// runtime is everything a command needs to drive the boards.
type runtime struct {
	cfg config.Config
	log *logrus.Entry
	drv *solenoid.Driver
	il  *interlock.Interlock

	pub      events.Publisher
	sink     *events.Sink
	stopSink context.CancelFunc
	sinkDone chan struct{}
}

func loadConfig() (config.Config, error) {
	if configPath == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.Load(configPath)
}

func openBus(cfg config.Config, log *logrus.Entry) (solenoid.Bus, error) {
	if simulate {
		log.Info("using simulated bus")
		return solenoid.NewFakeBus(), nil
	}
	b, err := mcp23017.OpenBus(cfg.Bus.Device)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func openInterlock(cfg config.Config, log *logrus.Entry) (solenoid.Interlock, *interlock.Interlock, error) {
	if !cfg.Interlock.Enable {
		return nil, nil, nil
	}
	if simulate {
		log.Info("using simulated interlock")
		return &solenoid.FakeInterlock{}, nil, nil
	}
	il, err := interlock.Open(interlock.Config{
		Chip:      cfg.Interlock.Chip,
		Line:      cfg.Interlock.Line,
		ActiveLow: cfg.Interlock.ActiveLow,
	})
	if err != nil {
		return nil, nil, err
	}
	return il, il, nil
}

func newPublisher(cfg config.Config) (events.Publisher, error) {
	if !cfg.MQTT.Enable {
		return nil, nil
	}
	p, err := events.NewMQTTPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Topic)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// openRuntime builds the driver. With begin set the configured boards are
// initialized and the interlock, if any, is asserted.
func openRuntime(begin bool) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Debug)
	if err != nil {
		return nil, err
	}

	bus, err := openBusFn(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("bus init failed: %w", err)
	}
	r := &runtime{cfg: cfg, log: log}
	r.drv = solenoid.New(bus, cfg.Solenoid())
	r.drv.SetLogger(logging.Component(log, "solenoid"))

	pub, err := newPublisherFn(cfg)
	if err != nil {
		// Events are best effort; the player still runs without a broker.
		log.WithError(err).Warn("mqtt disabled")
	} else if pub != nil {
		r.pub = pub
		r.sink = events.NewSink(pub, logging.Component(log, "events"), 64)
		sctx, cancel := context.WithCancel(context.Background())
		r.stopSink = cancel
		r.sinkDone = make(chan struct{})
		go func() {
			r.sink.Run(sctx)
			close(r.sinkDone)
		}()
		r.drv.SetObserver(r.sink.Observe)
	}

	if !begin {
		return r, nil
	}

	il, hw, err := openInterlockFn(cfg, log)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("interlock init failed: %w", err)
	}
	r.il = hw
	if il != nil {
		r.drv.SetInterlock(il)
	}

	if err := r.drv.Begin(cfg.Addresses()...); err != nil {
		r.Close()
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"boards":   r.drv.BoardCount(),
		"channels": r.drv.ChannelCount(),
		"safety":   cfg.Safety.Enabled,
	}).Info("driver ready")
	return r, nil
}

// Close forces all outputs off, drops the supply and flushes pending events.
func (r *runtime) Close() error {
	err := r.drv.Close()
	if r.il != nil {
		if cerr := r.il.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if r.stopSink != nil {
		r.stopSink()
		<-r.sinkDone
	}
	if r.pub != nil {
		_ = r.pub.Close()
	}
	if err != nil {
		r.log.WithError(err).Warn("shutdown")
	}
	return err
}
