// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/relabs-tech/gps_forwarder/internal/logger"
	"github.com/relabs-tech/gps_forwarder/internal/monitor"
)

// startWeb serves the monitor API on port until ctx is cancelled. wg is
// released once the server has stopped.
func startWeb(ctx context.Context, wg *sync.WaitGroup, port int, hub *monitor.Hub) *http.Server {
	log := logger.Component("monitor")

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           monitor.Handler(hub, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		log.Info().Str("addr", srv.Addr).Msg("monitor: web server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("monitor: web server failed")
		}
	}()

	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return srv
}
