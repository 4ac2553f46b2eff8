// Package nmea frames and decodes NMEA 0183 sentences from a raw byte stream.
//
// Framer consumes one byte at a time and delivers checksum-valid payloads
// (the bytes between '$' and '*'). Decoder splits a payload into fields and
// dispatches it by sentence identifier; GGA is decoded into typed values.
package nmea
