package gps

import "strconv"

// Fix is a single decoded position, suitable for JSON and MQTT.
type Fix struct {
	Latitude  float64 `json:"lat"`            // decimal degrees, south negative
	Longitude float64 `json:"lon"`            // decimal degrees, west negative
	Time      string  `json:"time,omitempty"` // UTC time of day from the sentence, e.g. "12:35:19.0000"
}

// FormatCoord renders a coordinate with exactly six fractional digits.
func FormatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// LatitudeString returns the latitude as sent to the collector.
func (f Fix) LatitudeString() string { return FormatCoord(f.Latitude) }

// LongitudeString returns the longitude as sent to the collector.
func (f Fix) LongitudeString() string { return FormatCoord(f.Longitude) }
