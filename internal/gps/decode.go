package gps

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
)

// minFields is the smallest field count that addresses both coordinates and
// their hemisphere markers.
const minFields = 6

const (
	fieldTime   = 1
	fieldLat    = 2
	fieldLatDir = 3
	fieldLon    = 4
	fieldLonDir = 5
)

var (
	ErrTooFewFields = errors.New("gps: too few fields")
	ErrBadLatitude  = errors.New("gps: latitude is not a number")
	ErrBadLongitude = errors.New("gps: longitude is not a number")
)

// Decode converts a position-fix sentence into a Fix.
//
// The raw ddmm.mmmm / dddmm.mmmm magnitudes are divided by 100 as is; they
// are not converted to degrees + minutes/60. "S" negates the latitude and
// "W" the longitude; any other marker leaves the sign alone. Either
// coordinate failing to parse fails the whole sentence.
func Decode(s Sentence) (Fix, error) {
	if len(s.Fields) < minFields {
		return Fix{}, fmt.Errorf("%w: got %d, need %d", ErrTooFewFields, len(s.Fields), minFields)
	}

	rawLat, ok := parseMagnitude(s.Fields[fieldLat])
	if !ok {
		return Fix{}, fmt.Errorf("%w: %q", ErrBadLatitude, s.Fields[fieldLat])
	}
	rawLon, ok := parseMagnitude(s.Fields[fieldLon])
	if !ok {
		return Fix{}, fmt.Errorf("%w: %q", ErrBadLongitude, s.Fields[fieldLon])
	}

	lat := rawLat / 100.0
	lon := rawLon / 100.0
	if s.Fields[fieldLatDir] == nmea.South {
		lat = -lat
	}
	if s.Fields[fieldLonDir] == nmea.West {
		lon = -lon
	}

	return Fix{Latitude: lat, Longitude: lon, Time: fixTime(s.Fields[fieldTime])}, nil
}

// parseMagnitude accepts plain decimal text only: an optional sign, digits
// and at most one '.', with surrounding whitespace ignored. Hex, exponents,
// digit separators, inf and NaN are refused.
func parseMagnitude(field string) (float64, bool) {
	v := strings.TrimSpace(field)
	if !isPlainDecimal(v) {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func isPlainDecimal(v string) bool {
	if v != "" && (v[0] == '+' || v[0] == '-') {
		v = v[1:]
	}
	digits, dot := 0, false
	for i := 0; i < len(v); i++ {
		switch c := v[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return digits > 0
}

// fixTime is best effort; a bad time never invalidates a fix.
func fixTime(field string) string {
	t, err := nmea.ParseTime(field)
	if err != nil || !t.Valid {
		return ""
	}
	return t.String()
}
