package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dddot/internal/host"
	"github.com/starford/dddot/internal/sse"
)

// NewRouter creates a chi router with the panel gateway mounted:
//   - POST /bridge   panel → host envelopes
//   - GET  /events   host → panel envelopes (SSE)
//   - GET  /sections panel boot payload
//   - GET  /notes/*  note detail
//   - POST /select   select a note
//
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(h *host.Host, broker *sse.Broker, notes NoteDetailer, authEnabled bool, token string) chi.Router {
	hd := NewHandler(h, notes)

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))

		r.Post("/bridge", broker.HandlePost)
		r.Get("/events", broker.ServeHTTP)

		r.Get("/sections", hd.Sections)
		r.Get("/notes/*", hd.GetNote)
		r.Post("/select", hd.Select)
	})

	return r
}
