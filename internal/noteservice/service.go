// Package noteservice is the host data API the panel tools run against:
// note and folder lookups, backlinks, the current selection and the vault
// change feed.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sync"

	"github.com/starford/dddot/internal/apperr"
	"github.com/starford/dddot/internal/index"
	"github.com/starford/dddot/internal/models"
	"github.com/starford/dddot/internal/parser"
	"github.com/starford/dddot/internal/storage"
)

// RootFolderTitle is the title of the vault root folder.
const RootFolderTitle = "/"

// NoteDetail is the full representation of a note, shown by the note detail dialog.
type NoteDetail struct {
	Path        string         `json:"path"`
	Title       string         `json:"title"`
	ParentID    string         `json:"parent_id"`
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Links       []string       `json:"links"`
	Backlinks   []string       `json:"backlinks"`
}

// SelectionFunc is called with the newly selected note id.
type SelectionFunc func(ctx context.Context, noteID string)

// ChangeFunc is called for every note change seen in the vault.
type ChangeFunc func(ctx context.Context, change models.NoteChange)

// Service coordinates storage and index lookups and fans out selection and
// change notifications to the tools.
type Service struct {
	store  storage.Provider
	db     index.NoteIndex
	logger *slog.Logger

	mu        sync.Mutex
	selected  string
	nextID    int
	onSelect  map[int]SelectionFunc
	onChanges map[int]ChangeFunc
}

// NewService creates a new note service.
func NewService(store storage.Provider, db index.NoteIndex, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		db:        db,
		logger:    logger,
		onSelect:  make(map[int]SelectionFunc),
		onChanges: make(map[int]ChangeFunc),
	}
}

// GetNote returns the indexed note with the given id (its vault path).
func (s *Service) GetNote(_ context.Context, id string) (models.Note, error) {
	row, err := s.db.GetNote(id)
	if err != nil {
		return models.Note{}, err
	}
	return noteFromRow(*row), nil
}

// GetFolder returns the folder with the given id (its vault directory path).
// The empty id is the vault root.
func (s *Service) GetFolder(_ context.Context, id string) (models.Folder, error) {
	if id == "" {
		return models.Folder{ID: "", Title: RootFolderTitle}, nil
	}
	if !s.store.IsDir(id) {
		return models.Folder{}, fmt.Errorf("noteservice: folder %q: %w", id, apperr.ErrNotFound)
	}
	return models.Folder{ID: id, Title: path.Base(id)}, nil
}

// Backlinks returns the notes linking to the note with the given id.
func (s *Service) Backlinks(_ context.Context, id string) ([]models.Note, error) {
	rows, err := s.db.Backlinks(id)
	if err != nil {
		return nil, err
	}
	out := make([]models.Note, 0, len(rows))
	for _, r := range rows {
		out = append(out, noteFromRow(r))
	}
	return out, nil
}

// OpenNoteDetail reads and parses a note for the detail dialog.
func (s *Service) OpenNoteDetail(_ context.Context, id string) (*NoteDetail, error) {
	data, err := s.store.Read(id)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Backlinks(id)
	if err != nil {
		return nil, err
	}
	bl := make([]string, 0, len(rows))
	for _, r := range rows {
		bl = append(bl, r.Path)
	}
	return &NoteDetail{
		Path:        id,
		Title:       res.Title,
		ParentID:    index.ParentOf(id),
		Content:     string(data),
		Checksum:    storage.Checksum(data),
		Frontmatter: res.Frontmatter,
		Links:       nonNilSlice(res.Links),
		Backlinks:   bl,
	}, nil
}

// SelectNote makes id the selected note and notifies selection listeners.
// Selecting an unknown note fails with apperr.ErrNotFound.
func (s *Service) SelectNote(ctx context.Context, id string) error {
	if _, err := s.db.GetNote(id); err != nil {
		return err
	}
	s.mu.Lock()
	s.selected = id
	fns := make([]SelectionFunc, 0, len(s.onSelect))
	for _, fn := range s.onSelect {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	s.logger.Debug("noteservice: note selected", slog.String("id", id))
	for _, fn := range fns {
		fn(ctx, id)
	}
	return nil
}

// SelectedNote returns the selected note, or apperr.ErrNotFound when nothing
// is selected or the selection was deleted.
func (s *Service) SelectedNote(ctx context.Context) (models.Note, error) {
	s.mu.Lock()
	id := s.selected
	s.mu.Unlock()
	if id == "" {
		return models.Note{}, apperr.ErrNotFound
	}
	return s.GetNote(ctx, id)
}

// OnSelectionChange registers fn and returns a function that removes it.
func (s *Service) OnSelectionChange(fn SelectionFunc) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.onSelect[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.onSelect, id)
		s.mu.Unlock()
	}
}

// OnNoteChange registers fn and returns a function that removes it.
func (s *Service) OnNoteChange(fn ChangeFunc) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.onChanges[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.onChanges, id)
		s.mu.Unlock()
	}
}

// NotifyChange fans a vault change out to the change listeners. It has the
// shape of the index watcher callback.
func (s *Service) NotifyChange(change models.NoteChange) {
	s.mu.Lock()
	if change.Event == models.ChangeDeleted && change.ID == s.selected {
		s.selected = ""
	}
	fns := make([]ChangeFunc, 0, len(s.onChanges))
	for _, fn := range s.onChanges {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	ctx := context.Background()
	for _, fn := range fns {
		fn(ctx, change)
	}
}

func noteFromRow(r index.NoteRow) models.Note {
	n := models.Note{
		ID:            r.Path,
		Title:         r.Title,
		ParentID:      r.ParentID,
		TodoCompleted: r.CompletedAt,
	}
	if r.IsTodo {
		n.IsTodo = 1
	}
	return n
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
