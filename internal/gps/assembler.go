package gps

import "bytes"

// Assembler turns an arbitrarily chunked byte stream into '\n' terminated
// lines. It holds the trailing fragment between calls; one Assembler per
// stream session.
//
// Assembler is not safe for concurrent use.
type Assembler struct {
	// MaxPending discards the retained fragment once it grows beyond this
	// many bytes. Zero means unbounded.
	MaxPending int

	pending   []byte
	overflows uint64
}

// NewAssembler returns an Assembler with an optional pending cutoff.
func NewAssembler(maxPending int) *Assembler {
	return &Assembler{MaxPending: maxPending}
}

// Append adds chunk to the retained fragment and returns every complete line
// in arrival order, without the terminator. The last segment after the final
// '\n' (possibly empty) replaces the retained fragment.
func (a *Assembler) Append(chunk []byte) []string {
	buf := append(a.pending, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(buf[:i]))
		buf = buf[i+1:]
	}

	// copy so the retained fragment never aliases the caller's chunk
	a.pending = append(a.pending[:0:0], buf...)

	if a.MaxPending > 0 && len(a.pending) > a.MaxPending {
		a.pending = nil
		a.overflows++
	}
	return lines
}

// Pending reports how many unterminated bytes are being held.
func (a *Assembler) Pending() int { return len(a.pending) }

// Overflows reports how many times the fragment was dropped for exceeding
// MaxPending.
func (a *Assembler) Overflows() uint64 { return a.overflows }

// Reset discards the retained fragment.
func (a *Assembler) Reset() { a.pending = nil }
