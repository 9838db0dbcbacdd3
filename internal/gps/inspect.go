package gps

import (
	"fmt"

	nmea "github.com/adrianmo/go-nmea"
)

// Quality is the fix-quality view of a GGA sentence as seen by a full,
// checksum-validating NMEA parser. It is diagnostic only: the forwarding
// path never depends on it.
type Quality struct {
	FixQuality    string
	NumSatellites int64
	HDOP          float64
	Altitude      float64
}

// Inspect runs line through go-nmea. It fails for lines the strict parser
// refuses (bad checksum, truncated fields) even when Decode accepts them.
func Inspect(line string) (Quality, error) {
	s, err := nmea.Parse(line)
	if err != nil {
		return Quality{}, err
	}
	gga, ok := s.(nmea.GGA)
	if !ok {
		return Quality{}, fmt.Errorf("gps: inspect: unexpected sentence type %s", s.DataType())
	}
	return Quality{
		FixQuality:    gga.FixQuality,
		NumSatellites: gga.NumSatellites,
		HDOP:          gga.HDOP,
		Altitude:      gga.Altitude,
	}, nil
}
