package gps

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

const gpsdDefaultAddr = "127.0.0.1:2947"

// dialGPSD connects to gpsd over TCP.
func dialGPSD(ctx context.Context, addr string) (net.Conn, error) {
	if strings.TrimSpace(addr) == "" {
		addr = gpsdDefaultAddr
	}
	d := &net.Dialer{Timeout: 2 * time.Second}
	return d.DialContext(ctx, "tcp", addr)
}

// gpsdVersion is the banner gpsd sends on connect.
type gpsdVersion struct {
	Class      string `json:"class"`
	Release    string `json:"release"`
	ProtoMajor int    `json:"proto_major"`
	ProtoMinor int    `json:"proto_minor"`
}

type gpsdWatchRequest struct {
	Enable bool   `json:"enable"`
	Raw    int    `json:"raw"`
	Device string `json:"device,omitempty"`
}

// gpsdWatch asks gpsd for super-raw mode: the receiver's bytes verbatim,
// NMEA and UBX alike. device narrows the watch when non-empty.
func gpsdWatch(w io.Writer, device string) error {
	b, err := json.Marshal(gpsdWatchRequest{Enable: true, Raw: 2, Device: device})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "?WATCH=%s\n", b)
	return err
}

// gpsdConn reads through the buffered reader used for the banner so that no
// raw bytes are lost.
type gpsdConn struct {
	*bufio.Reader
	net.Conn
}

func (c gpsdConn) Read(p []byte) (int, error) { return c.Reader.Read(p) }

// Write is rejected: gpsd clients cannot send to the device.
func (c gpsdConn) Write([]byte) (int, error) { return 0, ErrReadOnly }

// gpsdHandshake reads the VERSION banner and enables raw watching. The
// returned stream carries everything gpsd sends afterwards; JSON control
// replies contain neither '$' nor 0xB5 at line start and fall out as noise.
func gpsdHandshake(conn net.Conn, device string, timeout time.Duration) (gpsdConn, gpsdVersion, error) {
	br := bufio.NewReaderSize(conn, 4096)
	var ver gpsdVersion

	if timeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
	}
	line, err := br.ReadBytes('\n')
	if err != nil {
		return gpsdConn{}, ver, fmt.Errorf("gpsd banner: %w", err)
	}
	if err := json.Unmarshal(line, &ver); err != nil {
		return gpsdConn{}, ver, fmt.Errorf("gpsd banner parse failed: %w", err)
	}
	if ver.Class != "VERSION" {
		return gpsdConn{}, ver, fmt.Errorf("gpsd banner: unexpected class %q", ver.Class)
	}
	if timeout > 0 {
		_ = conn.SetReadDeadline(time.Time{})
	}

	if err := gpsdWatch(conn, device); err != nil {
		return gpsdConn{}, ver, fmt.Errorf("gpsd watch failed: %w", err)
	}
	return gpsdConn{Reader: br, Conn: conn}, ver, nil
}
