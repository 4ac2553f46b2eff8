// Package ubx frames, encodes and decodes u-blox UBX binary messages.
//
// Wire format:
//
//	0xB5 0x62 <class> <id> <len lo> <len hi> <payload...> <ckA> <ckB>
//
// The checksum is the 8-bit Fletcher sum over class, id, length and payload.
// Framer is a per-byte state machine; Encode writes a frame to a byte sink.
// Records gives offset-based access to messages that end in a run of
// fixed-size repeated records (for example MON-VER extensions).
package ubx
