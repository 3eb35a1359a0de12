package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dddot/internal/apperr"
	"github.com/starford/dddot/internal/host"
)

// NoteDetailer is the part of the note service the gateway exposes.
type NoteDetailer interface {
	OpenNoteDetail(ctx context.Context, id string) (*NoteDetail, error)
	SelectNote(ctx context.Context, id string) error
}

// Handler holds API route handlers.
type Handler struct {
	host  *host.Host
	notes NoteDetailer
}

// NewHandler creates a new Handler.
func NewHandler(h *host.Host, notes NoteDetailer) *Handler {
	return &Handler{host: h, notes: notes}
}

// notePath extracts the note path from the URL (everything after /notes/).
// Supports encoded slashes (e.g. topics%2Fnote.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Sections handles GET /sections.
//
//	@Summary		Panel sections and their default order
//	@Tags			panel
//	@Produce		json
//	@Success		200	{object}	SectionsResponse
//	@Security		BearerAuth
//	@Router			/sections [get]
func (h *Handler) Sections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.host.Sections(r.Context()))
}

// GetNote handles GET /notes/*.
//
//	@Summary		Get the detail of a note by path
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	note, err := h.notes.OpenNoteDetail(r.Context(), path)
	if err != nil {
		writeError(w, "get note", path, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// Select handles POST /select.
//
//	@Summary		Select a note, as clicking it in the panel does
//	@Tags			notes
//	@Accept			json
//	@Param			body	body	SelectRequest	true	"Note to select"
//	@Success		204
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/select [post]
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err := h.notes.SelectNote(r.Context(), req.NoteID); err != nil {
		writeError(w, "select note", req.NoteID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, op, path string, err error) {
	if errors.Is(err, apperr.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	slog.Error(op+" failed", slog.String("path", path), slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}
