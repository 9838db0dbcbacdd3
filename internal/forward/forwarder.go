// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package forward hands decoded fixes to remote collectors without blocking
// the caller. Every submission reports exactly one Outcome.
package forward

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/gps_forwarder/internal/gps"
)

var (
	// ErrTransport wraps network-level failures (dial, timeout, reset).
	ErrTransport = errors.New("forward: transport failed")
	// ErrStatus wraps non-2xx responses from the collector.
	ErrStatus = errors.New("forward: unexpected status")
)

// Outcome is the result of one submission.
type Outcome struct {
	ID          uuid.UUID
	Fix         gps.Fix
	Destination string
	Err         error // nil when delivered
	Latency     time.Duration
}

// Delivered reports whether the collector accepted the fix.
func (o Outcome) Delivered() bool { return o.Err == nil }

// OutcomeFunc receives an Outcome. It is called from a goroutine owned by
// the forwarder, once per submission.
type OutcomeFunc func(Outcome)

// Forwarder submits fixes asynchronously.
type Forwarder interface {
	// Submit returns immediately; onOutcome fires later, exactly once.
	Submit(fix gps.Fix, onOutcome OutcomeFunc)
	// Wait blocks until every submission made so far has reported.
	Wait()
}

// Fanout submits each fix to all of its members. Each member reports its own
// outcome.
type Fanout []Forwarder

func (f Fanout) Submit(fix gps.Fix, onOutcome OutcomeFunc) {
	for _, fw := range f {
		fw.Submit(fix, onOutcome)
	}
}

func (f Fanout) Wait() {
	for _, fw := range f {
		fw.Wait()
	}
}
