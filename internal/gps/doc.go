// Package gps runs a u-blox receiver connection.
//
// It reads raw bytes from a serial port or from gpsd in raw mode, optionally
// records them, and feeds them through a stream.Dispatcher:
// - NMEA GGA updates the position snapshot
// - UBX MON-VER fills in the receiver version
// - UBX ACK/NAK report the outcome of configuration writes
//
// Poll and Send write UBX frames back to the receiver.
package gps
