//go:build linux

package interlock

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

func openLine(cfg Config) (line, func() error, error) {
	chip, err := gpiocdev.NewChip(cfg.Chip)
	if err != nil {
		return nil, nil, fmt.Errorf("interlock: open chip %s: %w", cfg.Chip, err)
	}
	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0), gpiocdev.WithConsumer("keyplayer-interlock")}
	if cfg.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	l, err := chip.RequestLine(cfg.Line, opts...)
	if err != nil {
		_ = chip.Close()
		return nil, nil, fmt.Errorf("interlock: request %s line %d: %w", cfg.Chip, cfg.Line, err)
	}
	return l, chip.Close, nil
}
