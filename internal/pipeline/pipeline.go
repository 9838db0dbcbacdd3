// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package pipeline drives one stream session: raw chunks in, forwarded
// fixes out.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/relabs-tech/gps_forwarder/internal/forward"
	"github.com/relabs-tech/gps_forwarder/internal/gps"
)

// DefaultReadSize is the chunk size used by Run when none is given.
const DefaultReadSize = 256

// Observer sees what flows through a pipeline. Calls for chunks and fixes
// happen on the feeding goroutine; OnOutcome happens on forwarder goroutines.
// The chunk passed to OnChunk is only valid for the duration of the call.
type Observer interface {
	OnChunk(chunk []byte)
	OnFix(fix gps.Fix)
	OnOutcome(o forward.Outcome)
}

// Result is the tagged outcome of one line.
type Result struct {
	Line   string
	Status gps.Status
	Fix    gps.Fix // set when Status is StatusValid
	Err    error   // set when Status is StatusInvalid
}

// Stats counts what a session has seen so far.
type Stats struct {
	Chunks    uint64 `json:"chunks"`
	Bytes     uint64 `json:"bytes"`
	Lines     uint64 `json:"lines"`
	Rejected  uint64 `json:"rejected"`
	Invalid   uint64 `json:"invalid"`
	Fixes     uint64 `json:"fixes"`
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
	Overflows uint64 `json:"overflows"`
}

// Options configures a Pipeline.
type Options struct {
	// MaxPending bounds the unterminated fragment; 0 is unbounded.
	MaxPending int
	Observer   Observer
	Log        zerolog.Logger
}

// Pipeline wires Assembler → Classify → Decode → Forwarder.
type Pipeline struct {
	fwd forward.Forwarder
	obs Observer
	log zerolog.Logger

	mu     sync.Mutex // serializes Feed; guards asm
	asm    *gps.Assembler
	closed atomic.Bool

	chunks, bytes, lines         atomic.Uint64
	rejected, invalid, fixes     atomic.Uint64
	delivered, failed, overflows atomic.Uint64
}

// New returns a pipeline for one stream session.
func New(fwd forward.Forwarder, opts Options) *Pipeline {
	return &Pipeline{
		fwd: fwd,
		obs: opts.Observer,
		log: opts.Log,
		asm: gps.NewAssembler(opts.MaxPending),
	}
}

// Feed processes one chunk in delivery order and returns a Result per
// complete line. Rejected and invalid lines are dropped here; nothing is
// returned as an error. Feed after Close is a no-op.
func (p *Pipeline) Feed(chunk []byte) []Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return nil
	}

	p.chunks.Add(1)
	p.bytes.Add(uint64(len(chunk)))
	if p.obs != nil {
		p.obs.OnChunk(chunk)
	}

	before := p.asm.Overflows()
	lines := p.asm.Append(chunk)
	if n := p.asm.Overflows() - before; n > 0 {
		p.overflows.Add(n)
		p.log.Warn().Int("max_pending", p.asm.MaxPending).Msg("pipeline: unterminated data exceeded limit, dropped")
	}

	results := make([]Result, 0, len(lines))
	for _, line := range lines {
		results = append(results, p.processLine(line))
	}
	return results
}

func (p *Pipeline) processLine(line string) Result {
	p.lines.Add(1)

	sentence, status := gps.Classify(line)
	if status != gps.StatusValid {
		p.rejected.Add(1)
		return Result{Line: line, Status: gps.StatusRejected}
	}

	fix, err := gps.Decode(sentence)
	if err != nil {
		p.invalid.Add(1)
		p.log.Debug().Err(err).Str("line", line).Msg("pipeline: dropped invalid sentence")
		return Result{Line: line, Status: gps.StatusInvalid, Err: err}
	}

	p.fixes.Add(1)
	if ev := p.log.Debug(); ev.Enabled() {
		p.logQuality(ev, line, fix)
	}
	if p.obs != nil {
		p.obs.OnFix(fix)
	}
	p.fwd.Submit(fix, p.onOutcome)

	return Result{Line: line, Status: gps.StatusValid, Fix: fix}
}

// logQuality is only worth its strict re-parse when ev will be written.
func (p *Pipeline) logQuality(ev *zerolog.Event, line string, fix gps.Fix) {
	ev.Str("lat", fix.LatitudeString()).Str("lon", fix.LongitudeString())
	q, err := gps.Inspect(strings.TrimSpace(line))
	if err != nil {
		ev.AnErr("strict", err).Msg("pipeline: fix decoded, strict parser disagrees")
		return
	}
	ev.Str("quality", q.FixQuality).Int64("sats", q.NumSatellites).Float64("hdop", q.HDOP).Msg("pipeline: fix decoded")
}

func (p *Pipeline) onOutcome(o forward.Outcome) {
	if p.closed.Load() {
		p.log.Debug().Str("id", o.ID.String()).Bool("delivered", o.Delivered()).Msg("pipeline: outcome after close ignored")
		return
	}

	if o.Delivered() {
		p.delivered.Add(1)
		p.log.Info().
			Str("dest", o.Destination).
			Str("lat", o.Fix.LatitudeString()).
			Str("lon", o.Fix.LongitudeString()).
			Dur("latency", o.Latency).
			Msg("pipeline: fix forwarded")
	} else {
		p.failed.Add(1)
		p.log.Warn().Err(o.Err).Str("dest", o.Destination).Str("id", o.ID.String()).Msg("pipeline: forward failed")
	}

	if p.obs != nil {
		p.obs.OnOutcome(o)
	}
}

// Run reads chunks from r and feeds them until r is exhausted, ctx is
// cancelled or a read fails. io.EOF ends the session cleanly.
func (p *Pipeline) Run(ctx context.Context, r io.Reader, readSize int) error {
	if readSize <= 0 {
		readSize = DefaultReadSize
	}
	buf := make([]byte, readSize)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		n, err := r.Read(buf)
		if n > 0 {
			p.Feed(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("pipeline: read: %w", err)
		}
	}
}

// Close ends the session: further chunks are ignored and the pending
// fragment is discarded. Submissions already in flight are not cancelled.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed.Swap(true) {
		return
	}
	p.asm.Reset()
}

// Pending reports how many unterminated bytes the session holds.
func (p *Pipeline) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.asm.Pending()
}

// Stats returns a snapshot of the session counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Chunks:    p.chunks.Load(),
		Bytes:     p.bytes.Load(),
		Lines:     p.lines.Load(),
		Rejected:  p.rejected.Load(),
		Invalid:   p.invalid.Load(),
		Fixes:     p.fixes.Load(),
		Delivered: p.delivered.Load(),
		Failed:    p.failed.Load(),
		Overflows: p.overflows.Load(),
	}
}
