package nmea

import (
	"errors"
	"fmt"
	"math"
)

// MaxFields is the largest number of comma-separated fields a sentence may
// carry, the identifier included. A sentence that reaches MaxFields is only
// accepted when its last field is empty.
const MaxFields = 20

var (
	ErrEmptySentence   = errors.New("nmea: empty sentence")
	ErrTooManyFields   = errors.New("nmea: too many fields")
	ErrUnknownSentence = errors.New("nmea: unknown sentence")
)

// FieldCountError reports a known sentence with the wrong number of fields.
type FieldCountError struct {
	Sentence string
	Got      int
	Want     int
}

func (e *FieldCountError) Error() string {
	return fmt.Sprintf("nmea: %s has %d fields, want %d", e.Sentence, e.Got, e.Want)
}

// FieldError reports a field that is present but cannot be decoded.
type FieldError struct {
	Sentence string
	Index    int
	Err      error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("nmea: %s field %d: %v", e.Sentence, e.Index, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Fields is a comma-split payload. Index 0 is the sentence identifier.
// The slices alias the payload passed to Decode.
type Fields [][]byte

// GGA: Global Positioning System Fix Data.
type GGA struct {
	// UTC is hundredths of a second since midnight; 0 when the receiver
	// sent no time.
	UTC uint32

	// Latitude and Longitude are decimal degrees, or InvalidLatLon.
	Latitude  float64
	Longitude float64

	Quality      uint8
	Satellites   uint8
	HDOP         float64
	AltitudeM    float64
	GeoidHeightM float64
}

// Valid reports whether the fix carries a usable position.
func (g GGA) Valid() bool {
	return g.Quality > 0 && g.Latitude != InvalidLatLon && g.Longitude != InvalidLatLon
}

const ggaFieldCount = 15

// Decoder dispatches checksum-valid payloads by sentence identifier.
//
// A Decoder is not safe for concurrent use; it reuses an internal field table
// between calls.
type Decoder struct {
	// GGA receives decoded GPGGA/GNGGA sentences.
	GGA func(GGA)
	// Error receives unknown and malformed sentences. When nil they are
	// dropped.
	Error func(payload []byte, err error)

	handlers map[string]func(Fields) error
	fields   [MaxFields][]byte
}

// Handle registers fn for sentences whose identifier equals id exactly.
// A non-nil error from fn is passed to Decoder.Error.
func (d *Decoder) Handle(id string, fn func(Fields) error) {
	if d.handlers == nil {
		d.handlers = make(map[string]func(Fields) error)
	}
	d.handlers[id] = fn
}

// Sentence adapts the decoder to a framer handler.
func (d *Decoder) Sentence(payload []byte) { d.Decode(payload) }

func (d *Decoder) Decode(payload []byte) {
	if len(payload) == 0 {
		d.fail(payload, ErrEmptySentence)
		return
	}
	f, ok := d.split(payload)
	if !ok {
		d.fail(payload, ErrTooManyFields)
		return
	}

	if fn, ok := d.handlers[string(f[0])]; ok {
		if err := fn(f); err != nil {
			d.fail(payload, err)
		}
		return
	}

	switch string(f[0]) {
	case "GPGGA", "GNGGA":
		if err := d.decodeGGA(f); err != nil {
			d.fail(payload, err)
		}
	default:
		d.fail(payload, ErrUnknownSentence)
	}
}

func (d *Decoder) split(payload []byte) (Fields, bool) {
	n := 1
	start := 0
	for i, c := range payload {
		if n >= MaxFields {
			return nil, false
		}
		if c == ',' {
			d.fields[n-1] = payload[start:i]
			n++
			start = i + 1
		}
	}
	d.fields[n-1] = payload[start:]
	return Fields(d.fields[:n]), true
}

// GGA fields:
//
//	0: talker+type
//	1: time (hhmmss.ss)
//	2: latitude
//	3: N/S
//	4: longitude
//	5: E/W
//	6: fix quality (0=invalid)
//	7: number of satellites
//	8: HDOP
//	9: altitude (meters)
//
// 10: units (M)
// 11: geoid height (meters)
func (d *Decoder) decodeGGA(f Fields) error {
	if len(f) != ggaFieldCount {
		return &FieldCountError{Sentence: string(f[0]), Got: len(f), Want: ggaFieldCount}
	}

	var g GGA
	if len(f[1]) > 0 {
		utc, err := ParseUTC(f[1])
		if err != nil {
			return fieldError(f, 1, err)
		}
		g.UTC = utc
	}
	g.Latitude = ParseLatLon(f[2], f[3])
	g.Longitude = ParseLatLon(f[4], f[5])

	q := f[6]
	if len(q) != 1 || q[0] < '0' || q[0] > '9' {
		return fieldError(f, 6, fmt.Errorf("quality %q is not a digit", q))
	}
	g.Quality = q[0] - '0'

	sats, err := parseNumber(f[7])
	if err != nil || math.IsNaN(sats) || sats < 0 || sats > math.MaxUint8 {
		return fieldError(f, 7, fmt.Errorf("satellites %q out of range", f[7]))
	}
	g.Satellites = uint8(sats)

	if g.HDOP, err = parseNumber(f[8]); err != nil {
		return fieldError(f, 8, err)
	}
	if g.AltitudeM, err = parseNumber(f[9]); err != nil {
		return fieldError(f, 9, err)
	}
	if g.GeoidHeightM, err = parseNumber(f[11]); err != nil {
		return fieldError(f, 11, err)
	}

	if d.GGA != nil {
		d.GGA(g)
	}
	return nil
}

// fieldError copies the identifier out of the payload only on failure so
// that decoding a good sentence stays allocation free.
func fieldError(f Fields, idx int, err error) error {
	return &FieldError{Sentence: string(f[0]), Index: idx, Err: err}
}

func (d *Decoder) fail(payload []byte, err error) {
	if d.Error != nil {
		d.Error(payload, err)
	}
}
