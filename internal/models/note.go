// Package models defines the domain types shared by the host tools and the panel.
package models

import "time"

// NoteMetadata is a lightweight representation of a vault file returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Note is the host-side view of a vault note as returned by item lookups.
// Field names follow the host data API (parent_id, is_todo, todo_completed).
type Note struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	ParentID      string `json:"parent_id"`
	IsTodo        int    `json:"is_todo"`
	TodoCompleted int64  `json:"todo_completed"`
}

// Folder is a vault directory. Its ID is the directory path relative to the vault root.
type Folder struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ChangeKind describes a vault item change.
type ChangeKind string

// Change kinds emitted by the vault watcher.
const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// NoteChange is delivered to tools when a note changes on disk.
type NoteChange struct {
	ID    string     `json:"id"`
	Event ChangeKind `json:"event"`
}
