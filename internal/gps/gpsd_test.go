package gps

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"
)

const gpsdBanner = `{"class":"VERSION","release":"3.25","rev":"3.25","proto_major":3,"proto_minor":15}` + "\n"

func TestGPSDWatch_RawRequest(t *testing.T) {
	var b bytes.Buffer
	if err := gpsdWatch(&b, ""); err != nil {
		t.Fatalf("gpsdWatch: %v", err)
	}
	if got, want := b.String(), "?WATCH={\"enable\":true,\"raw\":2}\n"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}

	b.Reset()
	if err := gpsdWatch(&b, "/dev/ttyACM0"); err != nil {
		t.Fatalf("gpsdWatch: %v", err)
	}
	if !strings.Contains(b.String(), `"device":"/dev/ttyACM0"`) {
		t.Fatalf("got %q", b.String())
	}
}

func TestGPSDHandshake_KeepsBufferedBytes(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		// Banner and the first raw bytes arrive together.
		server.Write([]byte(gpsdBanner + "$GPGGA"))
		line, _ := bufio.NewReader(server).ReadString('\n')
		server.Write([]byte(line))
	}()

	gc, ver, err := gpsdHandshake(client, "", time.Second)
	if err != nil {
		t.Fatalf("handshake: %v", err)
	}
	if ver.Release != "3.25" || ver.ProtoMajor != 3 {
		t.Fatalf("version=%+v", ver)
	}

	buf := make([]byte, 6)
	if _, err := gc.Read(buf); err != nil || string(buf) != "$GPGGA" {
		t.Fatalf("read %q err=%v", buf, err)
	}
	echo, err := gc.Reader.ReadString('\n')
	if err != nil || !strings.HasPrefix(echo, "?WATCH=") {
		t.Fatalf("watch echo %q err=%v", echo, err)
	}
	if _, err := gc.Write([]byte{1}); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("Write err=%v", err)
	}
}

func TestGPSDHandshake_RejectsBadBanner(t *testing.T) {
	for _, banner := range []string{"not json\n", `{"class":"TPV"}` + "\n"} {
		client, server := net.Pipe()
		go server.Write([]byte(banner))
		if _, _, err := gpsdHandshake(client, "", time.Second); err == nil {
			t.Fatalf("banner %q: expected error", banner)
		}
		client.Close()
		server.Close()
	}
}

func TestService_GPSDSource(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte(gpsdBanner))
		r := bufio.NewReader(conn)
		if _, err := r.ReadString('\n'); err != nil {
			return
		}
		conn.Write([]byte(`{"class":"DEVICES","devices":[]}` + "\n"))
		conn.Write(nmeaLine("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"))
		// Hold the connection until the client goes away.
		_, _ = r.ReadByte()
	}()

	s := New(Config{Source: "gpsd", GPSDAddr: ln.Addr().String()}, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Close()

	snap := waitFor(t, s, "gpsd fix", func(s Snapshot) bool { return s.Valid })
	if snap.Source != "gpsd" || snap.GPSDAddr != ln.Addr().String() || snap.GPSDRelease != "3.25" {
		t.Fatalf("identity=%q %q %q", snap.Source, snap.GPSDAddr, snap.GPSDRelease)
	}
	if err := s.Send([]byte{0xB5}); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("Send err=%v", err)
	}
}

func TestService_CloseRightAfterGPSDHandshake(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("listen: %v", err)
	}
	defer ln.Close()

	watched := make(chan struct{}, 1)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				conn.Write([]byte(gpsdBanner))
				r := bufio.NewReader(conn)
				if _, err := r.ReadString('\n'); err != nil {
					return
				}
				watched <- struct{}{}
				// Stay silent until the client hangs up.
				_, _ = r.ReadByte()
			}()
		}
	}()

	for i := 0; i < 20; i++ {
		s := New(Config{Source: "gpsd", GPSDAddr: ln.Addr().String()}, nil)
		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("Start: %v", err)
		}
		select {
		case <-watched:
		case <-time.After(2 * time.Second):
			t.Fatalf("round %d: no WATCH request", i)
		}

		done := make(chan struct{})
		go func() {
			s.Close()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("round %d: Close hung on a silent gpsd", i)
		}
	}
}
