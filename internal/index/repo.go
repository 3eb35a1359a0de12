package index

import (
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/starford/dddot/internal/apperr"
)

// NoteRow represents a row in the notes table. ParentID is the slash-separated
// directory of the note, "" for the vault root.
type NoteRow struct {
	Path        string
	Title       string
	ParentID    string
	IsTodo      bool
	CompletedAt int64
	Checksum    string
	UpdatedAt   time.Time
}

// ParentOf returns the folder id of a note path.
func ParentOf(notePath string) string {
	dir := path.Dir(notePath)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

// UpsertNote inserts or replaces a note and its outgoing links within a transaction.
func (db *DB) UpsertNote(n NoteRow, links []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = time.Now()
	}
	_, err = tx.Exec(`
		INSERT INTO notes (path, title, parent_id, is_todo, todo_completed, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title          = excluded.title,
			parent_id      = excluded.parent_id,
			is_todo        = excluded.is_todo,
			todo_completed = excluded.todo_completed,
			checksum       = excluded.checksum,
			updated_at     = excluded.updated_at
	`, n.Path, n.Title, n.ParentID, n.IsTodo, n.CompletedAt, n.Checksum, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, n.Path); err != nil {
		return fmt.Errorf("index: clear links: %w", err)
	}
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range links {
			if _, err := stmt.Exec(n.Path, target); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteNote removes a note and its outgoing links.
func (db *DB) DeleteNote(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, path); err != nil {
		return fmt.Errorf("index: delete links: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM notes WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit: %w", err)
	}
	return nil
}

// GetNote returns the indexed note at path, or apperr.ErrNotFound.
func (db *DB) GetNote(path string) (*NoteRow, error) {
	var n NoteRow
	err := db.conn.QueryRow(`
		SELECT path, title, parent_id, is_todo, todo_completed, checksum, updated_at
		FROM notes WHERE path = ?
	`, path).Scan(&n.Path, &n.Title, &n.ParentID, &n.IsTodo, &n.CompletedAt, &n.Checksum, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return &n, nil
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns the checksum of every indexed note keyed by path.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// linkTargets returns the wikilink spellings that resolve to notePath:
// the path itself, the path without ".md" and the bare file stem.
func linkTargets(notePath string) []string {
	stem := strings.TrimSuffix(notePath, ".md")
	targets := []string{notePath, stem}
	if base := path.Base(stem); base != stem {
		targets = append(targets, base)
	}
	return targets
}

// Backlinks returns the notes that link to the note at notePath, ordered by title.
func (db *DB) Backlinks(notePath string) ([]NoteRow, error) {
	targets := linkTargets(notePath)
	args := make([]any, 0, len(targets)+1)
	for _, t := range targets {
		args = append(args, t)
	}
	args = append(args, notePath)

	rows, err := db.conn.Query(`
		SELECT DISTINCT n.path, n.title, n.parent_id, n.is_todo, n.todo_completed, n.checksum, n.updated_at
		FROM links l
		JOIN notes n ON n.path = l.source
		WHERE l.target IN (?`+strings.Repeat(", ?", len(targets)-1)+`)
		  AND n.path <> ?
		ORDER BY n.title, n.path
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []NoteRow
	for rows.Next() {
		var n NoteRow
		if err := rows.Scan(&n.Path, &n.Title, &n.ParentID, &n.IsTodo, &n.CompletedAt, &n.Checksum, &n.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
