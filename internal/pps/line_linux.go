//go:build linux

package pps

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

func openLine(cfg Config, pulse func(ts time.Duration, seq uint32)) (*gpiocdev.Line, error) {
	if cfg.Line < 0 {
		return nil, fmt.Errorf("pps: invalid line %d", cfg.Line)
	}
	l, err := gpiocdev.RequestLine(cfg.Chip, cfg.Line,
		gpiocdev.AsInput,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithConsumer(cfg.Consumer),
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			pulse(evt.Timestamp, evt.LineSeqno)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("pps: request %s line %d: %w", cfg.Chip, cfg.Line, err)
	}
	return l, nil
}
