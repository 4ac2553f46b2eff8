package main

import (
	"errors"
	"fmt"
	"io"

	"gnsswire/internal/nmea"
	"gnsswire/internal/stream"
	"gnsswire/internal/ubx"
)

// eventPrinter renders decoder output as one line per event.
type eventPrinter struct {
	w io.Writer
}

func (p eventPrinter) handlers() stream.Handlers {
	return stream.Handlers{
		GGA:       p.gga,
		NMEAError: p.nmeaError,
		Frame:     p.frame,
		UBXError:  func(e *ubx.Error) { fmt.Fprintf(p.w, "ERR %v\n", e) },
	}
}

func (p eventPrinter) gga(g nmea.GGA) {
	fmt.Fprintf(p.w, "GGA utc=%s lat=%s lon=%s q=%d sats=%d hdop=%.2f alt=%.1fm\n",
		formatUTC(g.UTC), formatCoord(g.Latitude), formatCoord(g.Longitude),
		g.Quality, g.Satellites, g.HDOP, g.AltitudeM)
}

func (p eventPrinter) sentence(payload []byte) {
	fmt.Fprintf(p.w, "NMEA %s\n", payload)
}

func (p eventPrinter) nmeaError(payload []byte, err error) {
	if errors.Is(err, nmea.ErrUnknownSentence) {
		fmt.Fprintf(p.w, "NMEA %s\n", payload)
		return
	}
	fmt.Fprintf(p.w, "ERR %v: %q\n", err, payload)
}

func (p eventPrinter) frame(f ubx.Frame) {
	switch f.Type {
	case ubx.TypeAckAck, ubx.TypeAckNak:
		if ack, err := ubx.DecodeAck(f); err == nil {
			fmt.Fprintf(p.w, "UBX %s %s\n", f.Type.Name(), ack.Acked.Name())
			return
		}
	case ubx.TypeMonVer:
		if mv, err := ubx.DecodeMonVer(f.Payload); err == nil {
			fmt.Fprintf(p.w, "UBX MON-VER sw=%q hw=%q ext=%q\n", mv.SWVersion, mv.HWVersion, mv.Extensions)
			return
		}
	}
	fmt.Fprintf(p.w, "UBX %s len=%d % X\n", f.Type.Name(), len(f.Payload), f.Payload)
}

// formatUTC renders hundredths of a second since midnight as hh:mm:ss.cc.
func formatUTC(cs uint32) string {
	s := cs / 100
	return fmt.Sprintf("%02d:%02d:%02d.%02d", s/3600, s/60%60, s%60, cs%100)
}

func formatCoord(v float64) string {
	if v == nmea.InvalidLatLon {
		return "-"
	}
	return fmt.Sprintf("%.6f", v)
}
