/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"github.com/Seednode/photobingo/internal/bingo"
	"github.com/Seednode/photobingo/internal/feed"
)

const sseHeartbeat = 25 * time.Second

type phaseRequest struct {
	State string `json:"state"`
}

func serveAdminState(cfg *Config, g *Game) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(cfg, w)

		msg := g.hub.snapshot(r.Context())
		if msg.Message != "" {
			jsonError(w, msg.Message, http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, msg)
	}
}

func serveSetPhase(cfg *Config, g *Game) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(cfg, w)

		var req phaseRequest
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, "Invalid request.", http.StatusBadRequest)
			return
		}

		phase, err := bingo.ParsePhase(req.State)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := g.store.SetPhase(r.Context(), phase); err != nil {
			log.Error().Err(err).Msg("ADMIN: set phase")
			jsonError(w, "Failed to update game state.", http.StatusInternalServerError)
			return
		}

		g.publish(r, feed.GameState, feed.Update)
		logf(cfg, "ADMIN: Phase set to %s by %s", phase, realIP(r))

		writeJSON(w, http.StatusOK, PhaseMessage{Type: "phase", Phase: phase})
	}
}

type resetResponse struct {
	Phase         bingo.Phase `json:"phase"`
	PhotosRemoved int         `json:"photos_removed"`
}

func serveReset(cfg *Config, g *Game) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(cfg, w)

		// Uploads are refused while finished; Reset moves the phase back to pending.
		if err := g.store.SetPhase(r.Context(), bingo.Finished); err != nil {
			log.Error().Err(err).Msg("ADMIN: reset phase")
			jsonError(w, "Failed to reset game.", http.StatusInternalServerError)
			return
		}

		removed, err := g.bucket.RemoveAll()
		if err != nil {
			log.Error().Err(err).Msg("ADMIN: clear photos")
			jsonError(w, "Failed to remove photos.", http.StatusInternalServerError)
			return
		}

		if err := g.store.Reset(r.Context()); err != nil {
			log.Error().Err(err).Msg("ADMIN: reset store")
			jsonError(w, "Failed to reset game.", http.StatusInternalServerError)
			return
		}

		g.publish(r, feed.GameState, feed.Update)
		g.publish(r, feed.Users, feed.Delete)

		logf(cfg, "ADMIN: Game reset by %s (%d photos removed)", realIP(r), removed)

		writeJSON(w, http.StatusOK, resetResponse{Phase: bingo.Pending, PhotosRemoved: removed})
	}
}

// serveAdminEvents streams the same messages as the admin websocket, as
// server-sent events.
func serveAdminEvents(cfg *Config, h *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

		securityHeaders(cfg, w)
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		c := newClient(nil, roleAdmin)
		if !h.Register(c) {
			http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
			return
		}
		defer h.Unregister(c)

		logf(cfg, "ADMIN: Event stream opened from %s", realIP(r))

		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ticker := time.NewTicker(sseHeartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case msg, ok := <-c.send:
				if !ok {
					return
				}

				data, err := json.Marshal(msg)
				if err != nil {
					log.Error().Err(err).Msg("ADMIN: encode event")
					continue
				}

				fmt.Fprintf(w, "data: %s\n\n", data)
				flusher.Flush()
			case <-ticker.C:
				fmt.Fprintf(w, ": heartbeat\n\n")
				flusher.Flush()
			}
		}
	}
}

func registerAdmin(cfg *Config, g *Game, mux *httprouter.Router, errs chan<- error) {
	mux.GET(cfg.prefix+"/admin", servePage(cfg, "admin.html", errs))

	mux.GET(cfg.prefix+"/api/admin/state", serveAdminState(cfg, g))
	mux.PUT(cfg.prefix+"/api/admin/phase", serveSetPhase(cfg, g))
	mux.POST(cfg.prefix+"/api/admin/reset", serveReset(cfg, g))

	mux.GET(cfg.prefix+"/admin/ws", serveWS(cfg, g.hub, roleAdmin))
	mux.GET(cfg.prefix+"/admin/events", serveAdminEvents(cfg, g.hub))
}
