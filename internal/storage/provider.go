// Package storage gives read access to the Markdown vault the host tools work on.
package storage

import "github.com/starford/dddot/internal/models"

// Provider is the read side of the vault. Paths are relative to the vault root.
type Provider interface {
	// List returns metadata for every .md file under dir.
	List(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// IsDir reports whether dir exists and is a directory.
	IsDir(dir string) bool
}
