// Package pps counts time pulses from the receiver's timepulse pin.
package pps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"gnsswire/internal/logging"
)

// ErrUnsupported is returned by Start on platforms without GPIO character
// devices.
var ErrUnsupported = errors.New("pps: gpio not supported on this platform")

type Config struct {
	Chip     string
	Line     int
	Consumer string
}

type Snapshot struct {
	Enabled bool   `json:"enabled"`
	Chip    string `json:"chip,omitempty"`
	Line    int    `json:"line"`

	Count uint64 `json:"count"`
	// Missed counts pulses skipped according to the kernel sequence number.
	Missed     uint64    `json:"missed"`
	LastPulse  time.Time `json:"last_pulse,omitempty"`
	IntervalMs float64   `json:"interval_ms,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
}

// Monitor watches one GPIO line for rising edges.
type Monitor struct {
	cfg Config
	log *zap.Logger
	now func() time.Time

	mu     sync.Mutex
	line   io.Closer
	snap   Snapshot
	lastTS time.Duration
	seq    uint32
}

func New(cfg Config, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = logging.GetLogger()
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "gnsswire-pps"
	}
	return &Monitor{
		cfg:  cfg,
		log:  logger,
		now:  time.Now,
		snap: Snapshot{Enabled: true, Chip: cfg.Chip, Line: cfg.Line},
	}
}

// Start requests the line. Edges are delivered on a goroutine owned by the
// GPIO library until Close.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return fmt.Errorf("pps monitor is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.line != nil {
		return nil
	}
	l, err := openLine(m.cfg, m.pulse)
	if err != nil {
		m.snap.LastError = err.Error()
		return err
	}
	m.line = l
	m.log.Info("pps enabled", zap.String("chip", m.cfg.Chip), zap.Int("line", m.cfg.Line))

	if ctx != nil {
		go func() {
			<-ctx.Done()
			m.Close()
		}()
	}
	return nil
}

// pulse records one rising edge. ts is the kernel event timestamp and seq the
// per-line sequence number, starting at 1.
func (m *Monitor) pulse(ts time.Duration, seq uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snap.Count > 0 {
		if seq > m.seq+1 {
			m.snap.Missed += uint64(seq - m.seq - 1)
		}
		if ts > m.lastTS {
			m.snap.IntervalMs = float64(ts-m.lastTS) / float64(time.Millisecond)
		}
	}
	m.snap.Count++
	m.snap.LastPulse = m.now().UTC()
	m.lastTS = ts
	m.seq = seq
}

func (m *Monitor) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

func (m *Monitor) Close() {
	if m == nil {
		return
	}
	m.mu.Lock()
	l := m.line
	m.line = nil
	m.mu.Unlock()
	if l != nil {
		_ = l.Close()
	}
}
