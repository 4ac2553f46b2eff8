package udp

import (
	"fmt"
	"net"
	"sync/atomic"

	"gnsswire/internal/nmea"
)

type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

type resolveFunc func(network, address string) (*net.UDPAddr, error)

type dialFunc func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)

// Forwarder sends each validated NMEA sentence as one UDP datagram,
// re-framed as "$payload*hh\r\n".
//
// Forward must not be called concurrently. Sent may be read from any
// goroutine.
type Forwarder struct {
	dest string
	conn udpConn
	buf  []byte
	sent atomic.Uint64
}

func NewForwarder(dest string) (*Forwarder, error) {
	return newForwarder(dest, net.ResolveUDPAddr, func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		// DialUDP selects a suitable local address automatically.
		return net.DialUDP(network, laddr, raddr)
	})
}

func newForwarder(dest string, resolve resolveFunc, dial dialFunc) (*Forwarder, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}
	return &Forwarder{dest: dest, conn: conn, buf: make([]byte, 0, 128)}, nil
}

func (f *Forwarder) Dest() string { return f.dest }

// Sent counts datagrams written successfully.
func (f *Forwarder) Sent() uint64 { return f.sent.Load() }

// Forward frames payload and writes it. Empty payloads are skipped.
func (f *Forwarder) Forward(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	f.buf = nmea.AppendSentence(f.buf[:0], payload)
	if _, err := f.conn.Write(f.buf); err != nil {
		return err
	}
	f.sent.Add(1)
	return nil
}

func (f *Forwarder) Close() error {
	if f.conn == nil {
		return nil
	}
	return f.conn.Close()
}
