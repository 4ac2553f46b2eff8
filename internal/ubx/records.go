package ubx

import (
	"errors"
	"fmt"
)

var ErrShortBuffer = errors.New("ubx: buffer shorter than message header")

// Records walks the fixed-size records that follow a fixed-size header.
//
// The record count is (len(buf)-headerSize)/recordSize; a trailing partial
// record is ignored. Records returned by Next alias buf, so the same view
// serves decoding and in-place encoding. A Records value is single pass.
type Records struct {
	buf        []byte
	headerSize int
	recordSize int
	count      int
	next       int
}

func NewRecords(buf []byte, headerSize, recordSize int) (*Records, error) {
	if recordSize <= 0 {
		return nil, fmt.Errorf("ubx: record size %d must be > 0", recordSize)
	}
	if headerSize < 0 {
		return nil, fmt.Errorf("ubx: header size %d must be >= 0", headerSize)
	}
	if len(buf) < headerSize {
		return nil, fmt.Errorf("%w: have %d bytes, header is %d", ErrShortBuffer, len(buf), headerSize)
	}
	return &Records{
		buf:        buf,
		headerSize: headerSize,
		recordSize: recordSize,
		count:      (len(buf) - headerSize) / recordSize,
	}, nil
}

// Len is the total number of whole records in the buffer.
func (r *Records) Len() int { return r.count }

// Remaining is the number of records Next has not yet returned.
func (r *Records) Remaining() int { return r.count - r.next }

func (r *Records) Header() []byte {
	return r.buf[:r.headerSize:r.headerSize]
}

// Next returns the next record, or false once every record was returned.
func (r *Records) Next() ([]byte, bool) {
	if r.next >= r.count {
		return nil, false
	}
	off := r.headerSize + r.next*r.recordSize
	end := off + r.recordSize
	if end > len(r.buf) {
		return nil, false
	}
	r.next++
	return r.buf[off:end:end], true
}

// SizeFor is the buffer size holding a header and n records. Encoders must
// use the same header and record sizes as the matching decoder.
func SizeFor(headerSize, recordSize, n int) int {
	return headerSize + n*recordSize
}
