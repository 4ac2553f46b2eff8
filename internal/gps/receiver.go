package gps

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"gnsswire/internal/logging"
	"gnsswire/internal/nmea"
	"gnsswire/internal/stream"
	"gnsswire/internal/ubx"
)

// receiver holds decode state for one service run. It is owned by the
// reading goroutine.
type receiver struct {
	svc    *Service
	stream *stream.Stream

	gga     nmea.GGA
	haveGGA bool
	lastFix time.Time

	mon     ubx.MonVer
	lastAck string
	lastNak string

	bytesRead    uint64
	decodeErrors uint64
	gpsdRelease  string
	lastErr      string
}

func newReceiver(s *Service) *receiver {
	rx := &receiver{svc: s}
	rx.stream = stream.New(stream.Config{
		NMEABufferBytes: s.cfg.NMEABufferBytes,
		UBXPayloadBytes: s.cfg.UBXPayloadBytes,
	}, stream.Handlers{
		Sentence:  rx.onSentence,
		GGA:       rx.onGGA,
		NMEAError: rx.onNMEAError,
		Frame:     s.cfg.Frame,
		UBXError:  rx.onUBXError,
		Unhandled: rx.onUnhandled,
	})
	rx.stream.Router.Handle(ubx.TypeMonVer, rx.onMonVer)
	rx.stream.Router.Handle(ubx.TypeAckAck, rx.onAck)
	rx.stream.Router.Handle(ubx.TypeAckNak, rx.onAck)
	return rx
}

func (rx *receiver) onSentence(p []byte) {
	logging.LogSentence("rx", p)
	if rx.svc.cfg.Sentence != nil {
		rx.svc.cfg.Sentence(p)
	}
}

func (rx *receiver) onGGA(g nmea.GGA) {
	rx.gga = g
	rx.haveGGA = true
	if g.Valid() {
		rx.lastFix = rx.svc.now()
	}
}

func (rx *receiver) onNMEAError(p []byte, err error) {
	var ck *nmea.ChecksumError
	switch {
	case errors.As(err, &ck), errors.Is(err, nmea.ErrOverflow):
		// Counted by the framer.
	case errors.Is(err, nmea.ErrUnknownSentence):
		return
	default:
		rx.decodeErrors++
	}
	// Avoid spamming on bad noise; just keep the last error.
	rx.lastErr = err.Error()
	rx.svc.log.Debug("nmea rejected", zap.ByteString("payload", p), zap.Error(err))
}

func (rx *receiver) onUBXError(e *ubx.Error) {
	rx.lastErr = e.Error()
	rx.svc.log.Debug("ubx rejected",
		zap.Stringer("type", e.Type),
		zap.Int("length", e.Length),
		zap.Stringer("kind", e.Kind),
	)
}

func (rx *receiver) onUnhandled(f ubx.Frame) {
	logging.LogUBXFrame("rx", f)
}

func (rx *receiver) onMonVer(f ubx.Frame) {
	logging.LogUBXFrame("rx", f)
	mv, err := ubx.DecodeMonVer(f.Payload)
	if err != nil {
		rx.lastErr = err.Error()
		rx.svc.log.Warn("MON-VER decode failed", zap.Error(err))
		return
	}
	rx.mon = mv
	rx.svc.log.Info("receiver version",
		zap.String("sw", mv.SWVersion),
		zap.String("hw", mv.HWVersion),
		zap.Strings("extensions", mv.Extensions),
	)
}

func (rx *receiver) onAck(f ubx.Frame) {
	ack, err := ubx.DecodeAck(f)
	if err != nil {
		rx.lastErr = err.Error()
		return
	}
	if ack.Nak {
		rx.lastNak = ack.Acked.Name()
		rx.svc.log.Warn("receiver rejected message", zap.String("type", rx.lastNak))
		return
	}
	rx.lastAck = ack.Acked.Name()
	rx.svc.log.Info("receiver acknowledged message", zap.String("type", rx.lastAck))
}

func (rx *receiver) snapshot() Snapshot {
	out := rx.svc.baseSnapshot()
	out.GPSDRelease = rx.gpsdRelease
	out.LastError = rx.lastErr

	if rx.haveGGA {
		g := rx.gga
		out.Valid = g.Valid()
		out.UTC = g.UTC
		out.LatDeg = g.Latitude
		out.LonDeg = g.Longitude
		out.FixQuality = int(g.Quality)
		out.Satellites = int(g.Satellites)
		out.HDOP = g.HDOP
		out.AltitudeM = g.AltitudeM
		out.GeoidHeightM = g.GeoidHeightM
	}
	if !rx.lastFix.IsZero() {
		out.LastFixUTC = rx.lastFix.UTC().Format(time.RFC3339Nano)
	}

	out.SWVersion = rx.mon.SWVersion
	out.HWVersion = rx.mon.HWVersion
	if len(rx.mon.Extensions) > 0 {
		out.Extensions = append([]string(nil), rx.mon.Extensions...)
	}
	out.LastAck = rx.lastAck
	out.LastNak = rx.lastNak

	ns := rx.stream.NMEA().Stats()
	us := rx.stream.UBX().Stats()
	out.Stats = Stats{
		BytesRead:          rx.bytesRead,
		Discarded:          rx.stream.Discarded(),
		Sentences:          ns.Sentences,
		NMEAChecksumErrors: ns.ChecksumErrors,
		NMEAOverflows:      ns.Overflows,
		NMEABadDigits:      ns.BadDigits,
		DecodeErrors:       rx.decodeErrors,
		UBXFrames:          us.Frames,
		UBXChecksumErrors:  us.ChecksumErrors,
		UBXOverflows:       us.Overflows,
		UBXSyncMisses:      us.SyncMisses,
	}
	return out
}
