package index

// NoteIndex is the query surface of the vault index the note service uses.
type NoteIndex interface {
	UpsertNote(n NoteRow, links []string) error
	DeleteNote(path string) error
	GetNote(path string) (*NoteRow, error)
	GetChecksum(path string) (string, error)
	AllChecksums() (map[string]string, error)
	Backlinks(path string) ([]NoteRow, error)
	Close() error
}

var _ NoteIndex = (*DB)(nil)
