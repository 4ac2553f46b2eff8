package nmea

import (
	"errors"
	"fmt"
)

// DefaultCapacity is the payload buffer size used when NewFramer is given a
// non-positive capacity. NMEA limits sentences to 82 characters but many
// receivers emit longer proprietary sentences.
const DefaultCapacity = 256

type State uint8

const (
	StateIdle State = iota
	StateCollect
	StateChecksumHi
	StateChecksumLo
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCollect:
		return "collect"
	case StateChecksumHi:
		return "checksum_hi"
	case StateChecksumLo:
		return "checksum_lo"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// ErrOverflow is reported when a sentence does not fit in the framer buffer.
var ErrOverflow = errors.New("nmea: sentence exceeds buffer capacity")

// ChecksumError is reported when the transmitted checksum does not match the
// payload.
type ChecksumError struct {
	Got  byte // computed over the payload
	Want byte // transmitted after '*'
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("nmea: checksum mismatch: got 0x%02X want 0x%02X", e.Got, e.Want)
}

// FrameHandler receives framer output. Both fields are optional.
//
// The payload slice aliases the framer buffer and is only valid for the
// duration of the call. A *ChecksumError is reused by the framer as well.
type FrameHandler struct {
	Sentence func(payload []byte)
	Error    func(err error, payload []byte)
}

type Stats struct {
	Sentences      uint64
	ChecksumErrors uint64
	Overflows      uint64
	BadDigits      uint64
}

// Framer recognizes "$...*hh" frames one byte at a time.
//
// A Framer is not safe for concurrent use.
type Framer struct {
	h     FrameHandler
	buf   []byte
	n     int
	state State
	sum   Checksum
	want  byte
	stats Stats
	ckErr ChecksumError
}

func NewFramer(capacity int, h FrameHandler) *Framer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Framer{h: h, buf: make([]byte, capacity)}
}

func (f *Framer) State() State { return f.state }

func (f *Framer) Capacity() int { return len(f.buf) }

func (f *Framer) Stats() Stats { return f.stats }

// Reset abandons any partial frame.
func (f *Framer) Reset() {
	f.state = StateIdle
	f.n = 0
	f.sum.Reset()
}

// Feed advances the state machine by one byte.
func (f *Framer) Feed(c byte) {
	switch f.state {
	case StateIdle:
		if c == '$' {
			f.n = 0
			f.sum.Reset()
			f.state = StateCollect
		}
	case StateCollect:
		if c == '*' {
			f.state = StateChecksumHi
			return
		}
		if f.n >= len(f.buf) {
			f.stats.Overflows++
			f.state = StateIdle
			f.report(ErrOverflow)
			return
		}
		f.buf[f.n] = c
		f.n++
		f.sum.Update(c)
	case StateChecksumHi:
		v, ok := hexNibble(c)
		if !ok {
			f.stats.BadDigits++
			f.state = StateIdle
			return
		}
		f.want = v << 4
		f.state = StateChecksumLo
	case StateChecksumLo:
		f.state = StateIdle
		v, ok := hexNibble(c)
		if !ok {
			f.stats.BadDigits++
			return
		}
		f.want |= v
		if f.want != f.sum.Sum() {
			f.stats.ChecksumErrors++
			f.ckErr = ChecksumError{Got: f.sum.Sum(), Want: f.want}
			f.report(&f.ckErr)
			return
		}
		f.stats.Sentences++
		if f.h.Sentence != nil {
			f.h.Sentence(f.buf[:f.n])
		}
	default:
		f.Reset()
	}
}

// Write feeds every byte of p. It never fails.
func (f *Framer) Write(p []byte) (int, error) {
	for _, c := range p {
		f.Feed(c)
	}
	return len(p), nil
}

func (f *Framer) report(err error) {
	if f.h.Error != nil {
		f.h.Error(err, f.buf[:f.n])
	}
}
