package gps

import (
	"strings"

	nmea "github.com/adrianmo/go-nmea"
)

// FixPrefix identifies the position-fix sentence this package decodes.
const FixPrefix = "$GP" + nmea.TypeGGA

// Status tags what happened to a line on its way through the decoder.
type Status int

const (
	// StatusValid means the line produced a Fix.
	StatusValid Status = iota
	// StatusRejected means the line is not a position-fix sentence.
	StatusRejected
	// StatusInvalid means the line is a position-fix sentence that could not
	// be decoded.
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusRejected:
		return "rejected"
	case StatusInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Sentence is a line recognized as a position-fix sentence, split on commas.
type Sentence struct {
	Raw    string
	Fields []string
}

// Classify accepts lines starting with FixPrefix and splits them into
// fields. Everything else is StatusRejected.
func Classify(line string) (Sentence, Status) {
	if !strings.HasPrefix(line, FixPrefix) {
		return Sentence{}, StatusRejected
	}
	return Sentence{Raw: line, Fields: strings.Split(line, ",")}, StatusValid
}
