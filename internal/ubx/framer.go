package ubx

import "fmt"

// DefaultCapacity is the payload buffer size used when NewFramer is given a
// non-positive capacity.
const DefaultCapacity = 256

// MaxPayload is the largest payload the 16-bit length field can describe.
const MaxPayload = 0xFFFF

type State uint8

const (
	StateIdle State = iota
	StateSync2
	StateClass
	StateID
	StateLenLo
	StateLenHi
	StatePayload
	StateChecksumA
	StateChecksumB
)

var stateNames = [...]string{
	StateIdle:      "idle",
	StateSync2:     "sync2",
	StateClass:     "class",
	StateID:        "id",
	StateLenLo:     "len_lo",
	StateLenHi:     "len_hi",
	StatePayload:   "payload",
	StateChecksumA: "checksum_a",
	StateChecksumB: "checksum_b",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

type ErrorKind uint8

const (
	BufferOverflow ErrorKind = iota + 1
	BadChecksum
)

func (k ErrorKind) String() string {
	switch k {
	case BufferOverflow:
		return "buffer overflow"
	case BadChecksum:
		return "bad checksum"
	default:
		return fmt.Sprintf("error(%d)", uint8(k))
	}
}

// Error describes a rejected frame.
//
// For BufferOverflow, Length is the framer capacity, not the declared
// length. For BadChecksum it is the declared payload length.
type Error struct {
	Type   MessageType
	Length int
	Kind   ErrorKind
}

func (e *Error) Error() string {
	return fmt.Sprintf("ubx: %s len=%d: %s", e.Type, e.Length, e.Kind)
}

// Frame is one checksum-valid UBX message. Payload aliases the framer buffer
// and is only valid during the handler call.
type Frame struct {
	Type    MessageType
	Payload []byte
}

// FrameHandler receives framer output. Both fields are optional.
//
// The *Error passed to Error is reused by the framer; copy the value to keep
// it past the call.
type FrameHandler struct {
	Frame func(Frame)
	Error func(*Error)
}

type Stats struct {
	Frames         uint64
	ChecksumErrors uint64
	Overflows      uint64
	SyncMisses     uint64
}

// Framer recognizes UBX frames one byte at a time.
//
// A Framer is not safe for concurrent use.
type Framer struct {
	h     FrameHandler
	buf   []byte
	state State

	typ    MessageType
	length int
	pos    int
	sum    Checksum
	ckA    byte
	stats  Stats
	errBuf Error
}

func NewFramer(capacity int, h FrameHandler) *Framer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if capacity > MaxPayload {
		capacity = MaxPayload
	}
	return &Framer{h: h, buf: make([]byte, capacity)}
}

func (f *Framer) State() State { return f.state }

func (f *Framer) Capacity() int { return len(f.buf) }

func (f *Framer) Stats() Stats { return f.stats }

// Reset abandons any partial frame.
func (f *Framer) Reset() {
	f.state = StateIdle
	f.pos = 0
	f.length = 0
}

// Feed advances the state machine by one byte.
func (f *Framer) Feed(c byte) {
	switch f.state {
	case StateIdle:
		if c == Sync1 {
			f.state = StateSync2
		}
	case StateSync2:
		if c != Sync2 {
			f.stats.SyncMisses++
			f.state = StateIdle
			return
		}
		f.sum.Reset()
		f.state = StateClass
	case StateClass:
		f.typ.Class = c
		f.sum.Update(c)
		f.state = StateID
	case StateID:
		f.typ.ID = c
		f.sum.Update(c)
		f.state = StateLenLo
	case StateLenLo:
		f.length = int(c)
		f.sum.Update(c)
		f.state = StateLenHi
	case StateLenHi:
		f.length |= int(c) << 8
		f.sum.Update(c)
		f.pos = 0
		switch {
		case f.length == 0:
			f.state = StateChecksumA
		case f.length > len(f.buf):
			f.stats.Overflows++
			f.state = StateIdle
			f.report(len(f.buf), BufferOverflow)
		default:
			f.state = StatePayload
		}
	case StatePayload:
		f.buf[f.pos] = c
		f.pos++
		f.sum.Update(c)
		if f.pos == f.length {
			f.state = StateChecksumA
		}
	case StateChecksumA:
		f.ckA = c
		f.state = StateChecksumB
	case StateChecksumB:
		f.state = StateIdle
		if !f.sum.Match(f.ckA, c) {
			f.stats.ChecksumErrors++
			f.report(f.length, BadChecksum)
			return
		}
		f.stats.Frames++
		if f.h.Frame != nil {
			f.h.Frame(Frame{Type: f.typ, Payload: f.buf[:f.length]})
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

func (f *Framer) report(length int, kind ErrorKind) {
	if f.h.Error == nil {
		return
	}
	f.errBuf = Error{Type: f.typ, Length: length, Kind: kind}
	f.h.Error(&f.errBuf)
}
