package nmea

import (
	"errors"
	"strconv"
)

// InvalidLatLon is returned by ParseLatLon for any coordinate it cannot
// decode. It is out of range for both latitude and longitude.
const InvalidLatLon = 9999.0

var ErrBadTime = errors.New("nmea: bad utc time")

// ParseUTC decodes "hhmmss[.ff]" into hundredths of a second since midnight.
//
// Only the first two fraction digits are used; a single digit counts as
// tenths.
func ParseUTC(s []byte) (uint32, error) {
	if len(s) < 6 {
		return 0, ErrBadTime
	}
	hh, ok1 := twoDigits(s[0], s[1])
	mm, ok2 := twoDigits(s[2], s[3])
	ss, ok3 := twoDigits(s[4], s[5])
	if !ok1 || !ok2 || !ok3 || hh > 23 || mm > 59 || ss > 60 {
		return 0, ErrBadTime
	}

	var hundredths uint32
	if len(s) > 6 {
		frac := s[7:]
		if s[6] != '.' || len(frac) == 0 {
			return 0, ErrBadTime
		}
		for i, c := range frac {
			if c < '0' || c > '9' {
				return 0, ErrBadTime
			}
			switch i {
			case 0:
				hundredths = uint32(c-'0') * 10
			case 1:
				hundredths += uint32(c - '0')
			}
		}
	}
	return hundredths + 100*(ss+60*(mm+60*hh)), nil
}

func twoDigits(a, b byte) (uint32, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return uint32(a-'0')*10 + uint32(b-'0'), true
}

// ParseLatLon decodes an NMEA ddmm.mmmm / dddmm.mmmm coordinate plus its
// hemisphere into signed decimal degrees.
//
// The position of the decimal point selects the degree width: index 4 means
// two degree digits, index 5 means three. Anything else yields InvalidLatLon.
func ParseLatLon(v, hemi []byte) float64 {
	if len(v) == 0 || len(hemi) == 0 {
		return InvalidLatLon
	}
	dot := -1
	for i, c := range v {
		if c == '.' {
			dot = i
			break
		}
	}
	var degDigits int
	switch dot {
	case 4:
		degDigits = 2
	case 5:
		degDigits = 3
	default:
		return InvalidLatLon
	}

	deg := 0
	for _, c := range v[:degDigits] {
		if c < '0' || c > '9' {
			return InvalidLatLon
		}
		deg = deg*10 + int(c-'0')
	}
	mins, err := strconv.ParseFloat(string(v[degDigits:]), 64)
	if err != nil {
		return InvalidLatLon
	}

	out := float64(deg) + mins/60.0
	if hemi[0] == 'S' || hemi[0] == 'W' {
		out = -out
	}
	return out
}

// parseNumber decodes an optional numeric field. Empty fields are 0.
func parseNumber(b []byte) (float64, error) {
	if len(b) == 0 {
		return 0, nil
	}
	return strconv.ParseFloat(string(b), 64)
}
