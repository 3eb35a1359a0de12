package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/dddot/internal/host"
	"github.com/starford/dddot/internal/noteservice"
)

// SectionsResponse is the panel boot payload (aliased from the host).
type SectionsResponse = host.SectionsInfo

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// SelectRequest is the request body for selecting a note.
type SelectRequest struct {
	NoteID string `json:"noteId" example:"projects/plan.md"`
}

// Validate validates the request.
func (r *SelectRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.NoteID, validation.Required),
	)
}
