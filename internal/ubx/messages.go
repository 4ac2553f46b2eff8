package ubx

import (
	"bytes"
	"fmt"
	"io"
)

// MON-VER layout: 30-byte software version and 10-byte hardware version,
// followed by any number of 30-byte extension strings. All strings are
// NUL-padded ASCII.
const (
	monVerSWLen     = 30
	monVerHWLen     = 10
	MonVerHeaderLen = monVerSWLen + monVerHWLen
	MonVerRecordLen = 30
)

// MonVer is the receiver/software version report.
type MonVer struct {
	SWVersion  string
	HWVersion  string
	Extensions []string
}

func (MonVer) MessageType() MessageType { return TypeMonVer }

func DecodeMonVer(payload []byte) (MonVer, error) {
	recs, err := NewRecords(payload, MonVerHeaderLen, MonVerRecordLen)
	if err != nil {
		return MonVer{}, fmt.Errorf("ubx: decode MON-VER: %w", err)
	}
	hdr := recs.Header()
	out := MonVer{
		SWVersion:  cString(hdr[:monVerSWLen]),
		HWVersion:  cString(hdr[monVerSWLen:]),
		Extensions: make([]string, 0, recs.Len()),
	}
	for {
		rec, ok := recs.Next()
		if !ok {
			break
		}
		out.Extensions = append(out.Extensions, cString(rec))
	}
	return out, nil
}

// MarshalUBX returns the MON-VER payload.
func (m MonVer) MarshalUBX() ([]byte, error) {
	buf := make([]byte, SizeFor(MonVerHeaderLen, MonVerRecordLen, len(m.Extensions)))
	recs, err := NewRecords(buf, MonVerHeaderLen, MonVerRecordLen)
	if err != nil {
		return nil, err
	}
	hdr := recs.Header()
	if err := putCString(hdr[:monVerSWLen], m.SWVersion); err != nil {
		return nil, fmt.Errorf("ubx: MON-VER swVersion: %w", err)
	}
	if err := putCString(hdr[monVerSWLen:], m.HWVersion); err != nil {
		return nil, fmt.Errorf("ubx: MON-VER hwVersion: %w", err)
	}
	for i, ext := range m.Extensions {
		rec, ok := recs.Next()
		if !ok {
			return nil, fmt.Errorf("ubx: MON-VER extension %d: no record space", i)
		}
		if err := putCString(rec, ext); err != nil {
			return nil, fmt.Errorf("ubx: MON-VER extension %d: %w", i, err)
		}
	}
	return buf, nil
}

// Ack is the payload of ACK-ACK and ACK-NAK: the type of the message being
// acknowledged.
type Ack struct {
	Nak   bool
	Acked MessageType
}

func (a Ack) MessageType() MessageType {
	if a.Nak {
		return TypeAckNak
	}
	return TypeAckAck
}

func DecodeAck(f Frame) (Ack, error) {
	if f.Type != TypeAckAck && f.Type != TypeAckNak {
		return Ack{}, fmt.Errorf("ubx: %s is not an ACK message", f.Type)
	}
	if len(f.Payload) != 2 {
		return Ack{}, fmt.Errorf("ubx: ACK payload is %d bytes, want 2", len(f.Payload))
	}
	return Ack{
		Nak:   f.Type == TypeAckNak,
		Acked: MessageType{Class: f.Payload[0], ID: f.Payload[1]},
	}, nil
}

func (a Ack) MarshalUBX() ([]byte, error) {
	return []byte{a.Acked.Class, a.Acked.ID}, nil
}

// Marshaler is implemented by catalog messages that carry a payload.
type Marshaler interface {
	Message
	MarshalUBX() ([]byte, error)
}

// EncodeMessage marshals m and writes it as one frame.
func EncodeMessage(w io.ByteWriter, m Marshaler) error {
	p, err := m.MarshalUBX()
	if err != nil {
		return err
	}
	return Encode(w, m.MessageType(), p)
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func putCString(dst []byte, s string) error {
	if len(s) > len(dst) {
		return fmt.Errorf("%q longer than %d bytes", s, len(dst))
	}
	n := copy(dst, s)
	clear(dst[n:])
	return nil
}
