// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package monitor keeps the latest state of a forwarding session and
// streams it to live viewers.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/relabs-tech/gps_forwarder/internal/forward"
	"github.com/relabs-tech/gps_forwarder/internal/gps"
	"github.com/relabs-tech/gps_forwarder/internal/pipeline"
)

// rawCap bounds the raw-data tail kept between clears.
const rawCap = 4096

// subscriberBuffer is how many events a slow viewer may lag behind before
// events are dropped for it.
const subscriberBuffer = 64

// Event types sent to subscribers.
const (
	EventRaw     = "raw"
	EventClear   = "clear"
	EventFix     = "fix"
	EventOutcome = "outcome"
	EventSent    = "sent"
)

var (
	// ErrPortClosed means no writable device is attached.
	ErrPortClosed = errors.New("monitor: serial port is not open")
	// ErrEmptyMessage means there was nothing to send.
	ErrEmptyMessage = errors.New("monitor: empty message, not sent")
)

// Event is one message on the live feed.
type Event struct {
	Type        string   `json:"type"`
	Time        string   `json:"time"`
	Data        string   `json:"data,omitempty"`
	Fix         *FixView `json:"fix,omitempty"`
	Destination string   `json:"destination,omitempty"`
	Delivered   *bool    `json:"delivered,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// FixView is a fix rendered the way the collector receives it.
type FixView struct {
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	Time      string `json:"time,omitempty"`
}

func viewOf(f gps.Fix) *FixView {
	return &FixView{Latitude: f.LatitudeString(), Longitude: f.LongitudeString(), Time: f.Time}
}

// Snapshot is a copy of the hub state.
type Snapshot struct {
	Fix       gps.Fix        `json:"fix"`
	HaveFix   bool           `json:"have_fix"`
	FixAt     time.Time      `json:"fix_at"`
	Raw       string         `json:"raw"`
	Stats     pipeline.Stats `json:"stats"`
	LastError string         `json:"last_error,omitempty"`
	Viewers   int            `json:"viewers"`
}

// Hub implements pipeline.Observer.
type Hub struct {
	now func() time.Time

	mu      sync.RWMutex
	fix     gps.Fix
	haveFix bool
	fixAt   time.Time
	raw     []byte
	lastErr string
	statsFn func() pipeline.Stats
	subs    map[chan Event]struct{}

	portMu sync.Mutex // serializes writes to port
	port   io.Writer
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{now: time.Now, subs: make(map[chan Event]struct{})}
}

// SetStatsSource tells the hub where session counters come from.
func (h *Hub) SetStatsSource(fn func() pipeline.Stats) {
	h.mu.Lock()
	h.statsFn = fn
	h.mu.Unlock()
}

func (h *Hub) OnChunk(chunk []byte) {
	h.mu.Lock()
	h.raw = append(h.raw, chunk...)
	if len(h.raw) > rawCap {
		h.raw = append([]byte(nil), h.raw[len(h.raw)-rawCap:]...)
	}
	h.mu.Unlock()

	h.broadcast(Event{Type: EventRaw, Data: string(chunk)})
}

func (h *Hub) OnFix(fix gps.Fix) {
	h.mu.Lock()
	h.fix = fix
	h.haveFix = true
	h.fixAt = h.now()
	h.mu.Unlock()

	h.broadcast(Event{Type: EventFix, Fix: viewOf(fix)})
}

func (h *Hub) OnOutcome(o forward.Outcome) {
	delivered := o.Delivered()
	ev := Event{Type: EventOutcome, Fix: viewOf(o.Fix), Destination: o.Destination, Delivered: &delivered}
	if o.Err != nil {
		ev.Error = o.Err.Error()
		h.mu.Lock()
		h.lastErr = ev.Error
		h.mu.Unlock()
	}
	h.broadcast(ev)
}

// SetPort attaches the device that Send writes to; nil detaches it.
func (h *Hub) SetPort(w io.Writer) {
	h.portMu.Lock()
	h.port = w
	h.portMu.Unlock()
}

// Send writes msg to the attached device unchanged and reports how many
// bytes went out. Viewers see a "sent" event either way.
func (h *Hub) Send(msg string) (int, error) {
	h.portMu.Lock()
	defer h.portMu.Unlock()

	if h.port == nil {
		return 0, ErrPortClosed
	}
	if msg == "" {
		return 0, ErrEmptyMessage
	}

	n, err := h.port.Write([]byte(msg))
	ev := Event{Type: EventSent, Data: msg}
	if err != nil {
		err = fmt.Errorf("monitor: write to port: %w", err)
		ev.Error = err.Error()
		h.mu.Lock()
		h.lastErr = ev.Error
		h.mu.Unlock()
	}
	h.broadcast(ev)
	return n, err
}

// ClearRaw empties the raw-data tail and tells viewers to do the same.
func (h *Hub) ClearRaw() {
	h.mu.Lock()
	h.raw = nil
	h.mu.Unlock()
	h.broadcast(Event{Type: EventClear})
}

// Run clears the raw-data tail every interval until ctx is done.
func (h *Hub) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.ClearRaw()
		}
	}
}

// Snapshot returns a copy of the current state.
func (h *Hub) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := Snapshot{
		Fix:       h.fix,
		HaveFix:   h.haveFix,
		FixAt:     h.fixAt,
		Raw:       string(h.raw),
		LastError: h.lastErr,
		Viewers:   len(h.subs),
	}
	if h.statsFn != nil {
		s.Stats = h.statsFn()
	}
	return s
}

// Subscribe registers a viewer. The returned cancel func must be called
// when the viewer goes away; it closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) broadcast(ev Event) {
	ev.Time = h.now().UTC().Format(time.RFC3339Nano)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// viewer is behind; drop rather than stall the pipeline
		}
	}
}
