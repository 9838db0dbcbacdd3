// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package monitor

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler serves the monitor API:
//
//	GET /api/fix    latest fix, 503 until the first one
//	GET /api/stats  full snapshot with session counters
//	GET /ws         live feed of raw data, fixes and outcomes
//	POST /api/send  write the "message" form value to the serial port
func Handler(h *Hub, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	// dashboards on other origins may use the API
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		MaxAge:         300,
	}))

	r.Get("/api/fix", func(w http.ResponseWriter, req *http.Request) {
		snap := h.Snapshot()
		if !snap.HaveFix {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, log, viewOf(snap.Fix))
	})

	r.Get("/api/stats", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, log, h.Snapshot())
	})

	r.Post("/api/send", func(w http.ResponseWriter, req *http.Request) {
		n, err := h.Send(req.FormValue("message"))
		switch {
		case errors.Is(err, ErrPortClosed):
			http.Error(w, "port not open", http.StatusServiceUnavailable)
		case errors.Is(err, ErrEmptyMessage):
			http.Error(w, "empty message, not sent", http.StatusBadRequest)
		case err != nil:
			log.Warn().Err(err).Msg("monitor: send failed")
			http.Error(w, "error sending message", http.StatusBadGateway)
		default:
			writeJSON(w, log, SendResult{Bytes: n})
		}
	})

	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		serveWS(h, log, w, req)
	})

	return r
}

// SendResult is the reply to a successful POST /api/send.
type SendResult struct {
	Bytes int `json:"bytes"`
}

func writeJSON(w http.ResponseWriter, log zerolog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("monitor: json encode error")
	}
}

func serveWS(h *Hub, log zerolog.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("monitor: websocket upgrade error")
		return
	}
	defer conn.Close()

	events, cancel := h.Subscribe()
	defer cancel()
	log.Debug().Str("remote", r.RemoteAddr).Msg("monitor: viewer connected")

	// reader: only needed to notice the viewer going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug().Err(err).Msg("monitor: websocket read error")
				}
				return
			}
		}
	}()

	// current state first so a new viewer is not blank until the next fix
	snap := h.Snapshot()
	if snap.HaveFix {
		if err := send(conn, Event{Type: EventFix, Time: snap.FixAt.UTC().Format(time.RFC3339Nano), Fix: viewOf(snap.Fix)}); err != nil {
			return
		}
	}

	for {
		select {
		case <-gone:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := send(conn, ev); err != nil {
				log.Debug().Err(err).Msg("monitor: websocket write error")
				return
			}
		}
	}
}

func send(conn *websocket.Conn, ev Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}
