package nmea

// Checksum is the running XOR of the bytes between '$' and '*'.
type Checksum byte

func (c *Checksum) Reset() { *c = 0 }

func (c *Checksum) Update(b byte) { *c ^= Checksum(b) }

func (c Checksum) Sum() byte { return byte(c) }

// ChecksumOf returns the NMEA checksum of a complete payload.
func ChecksumOf(payload []byte) byte {
	var c Checksum
	for _, b := range payload {
		c.Update(b)
	}
	return c.Sum()
}

const hexDigits = "0123456789ABCDEF"

// AppendSentence appends "$<payload>*<hh>\r\n" to dst.
func AppendSentence(dst []byte, payload []byte) []byte {
	ck := ChecksumOf(payload)
	dst = append(dst, '$')
	dst = append(dst, payload...)
	return append(dst, '*', hexDigits[ck>>4], hexDigits[ck&0x0F], '\r', '\n')
}

// hexNibble decodes a single hex digit (either case).
func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}
