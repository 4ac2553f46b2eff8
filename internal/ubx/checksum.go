package ubx

// Checksum is the UBX 8-bit Fletcher checksum.
type Checksum struct {
	A, B byte
}

func (c *Checksum) Reset() { c.A, c.B = 0, 0 }

func (c *Checksum) Update(b byte) {
	c.A += b
	c.B += c.A
}

func (c *Checksum) UpdateBytes(p []byte) {
	for _, b := range p {
		c.Update(b)
	}
}

// Match reports whether both transmitted checksum bytes agree.
func (c Checksum) Match(a, b byte) bool { return c.A == a && c.B == b }
