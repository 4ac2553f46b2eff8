// Package stream demultiplexes a mixed NMEA/UBX byte stream onto the two
// protocol framers.
package stream

import (
	"errors"
	"fmt"
	"io"

	"gnsswire/internal/nmea"
	"gnsswire/internal/ubx"
)

type State uint8

const (
	StateIdle State = iota
	StateNMEA
	StateUBX
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNMEA:
		return "nmea"
	case StateUBX:
		return "ubx"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Dispatcher routes each byte to the framer whose frame is in progress.
//
// In idle, '$' starts an NMEA frame and 0xB5 starts a UBX frame; other bytes
// are discarded. Once the active framer returns to its own idle state the
// dispatcher is idle again. A Dispatcher is not safe for concurrent use.
type Dispatcher struct {
	nmea  *nmea.Framer
	ubx   *ubx.Framer
	state State

	discarded uint64
}

func NewDispatcher(n *nmea.Framer, u *ubx.Framer) (*Dispatcher, error) {
	if n == nil {
		return nil, errors.New("stream: nmea framer is nil")
	}
	if u == nil {
		return nil, errors.New("stream: ubx framer is nil")
	}
	n.Reset()
	u.Reset()
	return &Dispatcher{nmea: n, ubx: u}, nil
}

func (d *Dispatcher) State() State { return d.state }

// Reset abandons any partial frame in either framer.
func (d *Dispatcher) Reset() {
	d.nmea.Reset()
	d.ubx.Reset()
	d.state = StateIdle
}

func (d *Dispatcher) NMEA() *nmea.Framer { return d.nmea }

func (d *Dispatcher) UBX() *ubx.Framer { return d.ubx }

// Discarded counts bytes dropped while idle.
func (d *Dispatcher) Discarded() uint64 { return d.discarded }

func (d *Dispatcher) Feed(c byte) {
	switch d.state {
	case StateIdle:
		switch c {
		case '$':
			d.state = StateNMEA
			d.nmea.Feed(c)
		case ubx.Sync1:
			d.state = StateUBX
			d.ubx.Feed(c)
		default:
			d.discarded++
		}
	case StateNMEA:
		d.nmea.Feed(c)
		if d.nmea.State() == nmea.StateIdle {
			d.state = StateIdle
		}
	case StateUBX:
		d.ubx.Feed(c)
		if d.ubx.State() == ubx.StateIdle {
			d.state = StateIdle
		}
	}
}

// Write feeds p byte by byte. It never fails.
func (d *Dispatcher) Write(p []byte) (int, error) {
	for _, c := range p {
		d.Feed(c)
	}
	return len(p), nil
}

const readChunk = 512

// ReadFrom feeds everything read from r until r returns an error. io.EOF is
// not reported.
func (d *Dispatcher) ReadFrom(r io.Reader) (int64, error) {
	var buf [readChunk]byte
	var total int64
	for {
		n, err := r.Read(buf[:])
		if n > 0 {
			d.Write(buf[:n])
			total += int64(n)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return total, nil
			}
			return total, err
		}
	}
}
