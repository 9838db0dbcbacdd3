// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package forward

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/gps_forwarder/internal/gps"
)

// DefaultURL is where fixes go when nothing else is configured.
const DefaultURL = "http://localhost:3000/recevoir_coordinates"

const formContentType = "application/x-www-form-urlencoded"

// HTTPConfig configures an HTTPForwarder.
type HTTPConfig struct {
	URL     string
	Timeout time.Duration
	// Client overrides the HTTP client, mostly for tests.
	Client *http.Client
}

// HTTPForwarder POSTs each fix as a form to a collector URL.
type HTTPForwarder struct {
	url     string
	timeout time.Duration
	client  *http.Client
	log     zerolog.Logger

	wg sync.WaitGroup
}

// NewHTTPForwarder validates cfg and returns a forwarder.
func NewHTTPForwarder(cfg HTTPConfig, log zerolog.Logger) (*HTTPForwarder, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("forward: invalid url %q: %w", cfg.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("forward: url %q must be http or https", cfg.URL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}

	return &HTTPForwarder{
		url:     cfg.URL,
		timeout: cfg.Timeout,
		client:  client,
		log:     log,
	}, nil
}

// URL returns the collector URL.
func (f *HTTPForwarder) URL() string { return f.url }

// EncodeForm renders the request body for fix: latitude and longitude with
// six fractional digits.
func EncodeForm(fix gps.Fix) string {
	v := url.Values{}
	v.Set("latitude", fix.LatitudeString())
	v.Set("longitude", fix.LongitudeString())
	return v.Encode()
}

func (f *HTTPForwarder) Submit(fix gps.Fix, onOutcome OutcomeFunc) {
	id := uuid.New()
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()

		start := time.Now()
		err := f.post(id, fix)
		out := Outcome{
			ID:          id,
			Fix:         fix,
			Destination: f.url,
			Err:         err,
			Latency:     time.Since(start),
		}
		if onOutcome != nil {
			onOutcome(out)
		}
	}()
}

func (f *HTTPForwarder) Wait() { f.wg.Wait() }

func (f *HTTPForwarder) post(id uuid.UUID, fix gps.Fix) error {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, strings.NewReader(EncodeForm(fix)))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", formContentType)
	req.Header.Set("X-Request-ID", id.String())

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}
	f.log.Debug().Str("id", id.String()).Int("status", resp.StatusCode).Msg("forward: collector accepted fix")
	return nil
}
