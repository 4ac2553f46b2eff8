package stream

import (
	"gnsswire/internal/nmea"
	"gnsswire/internal/ubx"
)

// Config sizes the framer buffers. Zero values select the framer defaults.
type Config struct {
	NMEABufferBytes int
	UBXPayloadBytes int
}

// Handlers receives everything a Stream produces. All fields are optional.
// Slices passed to handlers alias framer buffers and are only valid during
// the call.
type Handlers struct {
	// Sentence sees every checksum-valid NMEA payload before it is decoded.
	Sentence func(payload []byte)
	GGA      func(nmea.GGA)
	// NMEAError receives framing and decoding errors.
	NMEAError func(payload []byte, err error)
	// Frame sees every checksum-valid UBX frame before it is routed.
	Frame    func(ubx.Frame)
	UBXError func(*ubx.Error)
	// Unhandled receives UBX frames with no handler registered on Router.
	Unhandled func(ubx.Frame)
}

// Stream is a Dispatcher wired to an NMEA decoder and a UBX router.
type Stream struct {
	*Dispatcher
	Decoder *nmea.Decoder
	Router  *ubx.Router
}

func New(cfg Config, h Handlers) *Stream {
	dec := &nmea.Decoder{GGA: h.GGA, Error: h.NMEAError}
	router := ubx.NewRouter()
	router.Unhandled = h.Unhandled

	nh := nmea.FrameHandler{
		Sentence: func(p []byte) {
			if h.Sentence != nil {
				h.Sentence(p)
			}
			dec.Decode(p)
		},
	}
	if h.NMEAError != nil {
		nh.Error = func(err error, p []byte) { h.NMEAError(p, err) }
	}
	uh := ubx.FrameHandler{Frame: router.HandleFrame, Error: h.UBXError}
	if h.Frame != nil {
		uh.Frame = func(f ubx.Frame) {
			h.Frame(f)
			router.HandleFrame(f)
		}
	}

	d, _ := NewDispatcher(
		nmea.NewFramer(cfg.NMEABufferBytes, nh),
		ubx.NewFramer(cfg.UBXPayloadBytes, uh),
	)
	return &Stream{Dispatcher: d, Decoder: dec, Router: router}
}
