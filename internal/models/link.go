package models

import "encoding/json"

// LinkKind is the variant tag of a Link.
type LinkKind string

// Link variants.
const (
	NoteLink   LinkKind = "NoteLink"
	FolderLink LinkKind = "FolderLink"
)

// Valid reports whether k is one of the declared variants.
func (k LinkKind) Valid() bool {
	return k == NoteLink || k == FolderLink
}

// Link is a reference to a vault note or folder kept by the panel tools.
//
// FinalTitle is computed at render time and never persisted. The todo flags
// only exist on NoteLink values; the constructors and RehydrateLink keep them
// cleared on folder links.
type Link struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	ParentID        string   `json:"parentId,omitempty"`
	FinalTitle      string   `json:"-"`
	Kind            LinkKind `json:"type"`
	IsTodo          bool     `json:"isTodo,omitempty"`
	IsTodoCompleted bool     `json:"isTodoCompleted,omitempty"`
}

// NewNoteLink returns a note link.
func NewNoteLink(id, title, parentID string) Link {
	return Link{ID: id, Title: title, ParentID: parentID, Kind: NoteLink}
}

// NewTodoLink returns a note link for a to-do note.
func NewTodoLink(id, title, parentID string, completed bool) Link {
	l := NewNoteLink(id, title, parentID)
	l.IsTodo = true
	l.IsTodoCompleted = completed
	return l
}

// NewFolderLink returns a folder link.
func NewFolderLink(id, title string) Link {
	return Link{ID: id, Title: title, Kind: FolderLink}
}

// NoteLinkFromNote builds a note link from raw host note data.
func NoteLinkFromNote(n Note) Link {
	return Link{
		ID:              n.ID,
		Title:           n.Title,
		ParentID:        n.ParentID,
		Kind:            NoteLink,
		IsTodo:          n.IsTodo == 1,
		IsTodoCompleted: n.TodoCompleted > 0,
	}
}

// RehydrateLink decodes a persisted link. It reports false instead of
// returning a malformed record when the payload cannot be decoded, has an
// unknown kind or carries no id.
func RehydrateLink(raw json.RawMessage) (Link, bool) {
	var l Link
	if err := json.Unmarshal(raw, &l); err != nil {
		return Link{}, false
	}
	if !l.Kind.Valid() || l.ID == "" {
		return Link{}, false
	}
	if l.Kind == FolderLink {
		l.ParentID = ""
		l.IsTodo = false
		l.IsTodoCompleted = false
	}
	l.FinalTitle = ""
	return l, true
}

// LinkPatch holds optional field updates for a Link. Nil fields are left untouched.
type LinkPatch struct {
	Title           *string
	ParentID        *string
	IsTodo          *bool
	IsTodoCompleted *bool
}

// TitlePatch returns a patch that only updates the title.
func TitlePatch(title string) LinkPatch {
	return LinkPatch{Title: &title}
}

// Apply merges p into l and reports whether any field changed.
// Todo fields are ignored for folder links.
func (p LinkPatch) Apply(l *Link) bool {
	changed := false
	if p.Title != nil && *p.Title != l.Title {
		l.Title = *p.Title
		changed = true
	}
	if p.ParentID != nil && *p.ParentID != l.ParentID && l.Kind == NoteLink {
		l.ParentID = *p.ParentID
		changed = true
	}
	if l.Kind != NoteLink {
		return changed
	}
	if p.IsTodo != nil && *p.IsTodo != l.IsTodo {
		l.IsTodo = *p.IsTodo
		changed = true
	}
	if p.IsTodoCompleted != nil && *p.IsTodoCompleted != l.IsTodoCompleted {
		l.IsTodoCompleted = *p.IsTodoCompleted
		changed = true
	}
	return changed
}
