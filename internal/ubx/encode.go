package ubx

import (
	"errors"
	"fmt"
	"io"
)

var ErrPayloadTooLarge = errors.New("ubx: payload exceeds 65535 bytes")

// Message is implemented by catalog types that know their class and id.
type Message interface {
	MessageType() MessageType
}

// Encode writes one UBX frame to w. The first write error aborts the frame.
func Encode(w io.ByteWriter, t MessageType, payload []byte) error {
	if len(payload) > MaxPayload {
		return ErrPayloadTooLarge
	}
	var sum Checksum
	put := func(b byte) error {
		if err := w.WriteByte(b); err != nil {
			return fmt.Errorf("ubx: encode %s: %w", t, err)
		}
		return nil
	}
	putSum := func(b byte) error {
		sum.Update(b)
		return put(b)
	}

	if err := put(Sync1); err != nil {
		return err
	}
	if err := put(Sync2); err != nil {
		return err
	}
	n := len(payload)
	for _, b := range [4]byte{t.Class, t.ID, byte(n), byte(n >> 8)} {
		if err := putSum(b); err != nil {
			return err
		}
	}
	sum.UpdateBytes(payload)
	for _, b := range payload {
		if err := put(b); err != nil {
			return err
		}
	}
	if err := put(sum.A); err != nil {
		return err
	}
	return put(sum.B)
}

// EncodePoll writes the zero-length frame that asks the receiver to report
// the current value of message t.
func EncodePoll(w io.ByteWriter, t MessageType) error {
	return Encode(w, t, nil)
}

// Poll writes the poll request for catalog type M.
func Poll[M Message](w io.ByteWriter) error {
	var m M
	return EncodePoll(w, m.MessageType())
}

// AppendFrame appends the framed message to dst.
func AppendFrame(dst []byte, t MessageType, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return dst, ErrPayloadTooLarge
	}
	w := appendWriter{buf: dst}
	// appendWriter never fails.
	_ = Encode(&w, t, payload)
	return w.buf, nil
}

type appendWriter struct {
	buf []byte
}

func (w *appendWriter) WriteByte(c byte) error {
	w.buf = append(w.buf, c)
	return nil
}
