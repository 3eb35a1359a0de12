package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/starford/dddot/internal/models"
)

const tmpPrefix = ".dddot-tmp-"

// Checksum returns the hex-encoded SHA-256 digest of note contents.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// FS implements Provider on a directory of the local file system. All access
// goes through an afero base-path filesystem rooted at the vault.
type FS struct {
	root string // absolute path to vault directory
	fs   afero.Fs
}

// NewFS returns a provider rooted at an existing directory.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs, fs: afero.NewBasePathFs(afero.NewOsFs(), abs)}, nil
}

// Root returns the absolute vault root.
func (f *FS) Root() string {
	return f.root
}

// clean turns a slash-separated vault path into a path inside the base
// filesystem, rejecting absolute paths and anything that escapes the root.
func clean(rel string) (string, error) {
	if rel == "" {
		return ".", nil
	}
	slashed := filepath.ToSlash(rel)
	if path.IsAbs(slashed) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	cleaned := path.Clean(slashed)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("storage: path escapes vault root: %s", rel)
	}
	return filepath.FromSlash(cleaned), nil
}

// List walks dir and returns metadata for every .md file, with slash-separated paths.
func (f *FS) List(dir string) ([]models.NoteMetadata, error) {
	base, err := clean(dir)
	if err != nil {
		return nil, err
	}
	var out []models.NoteMetadata
	err = afero.Walk(f.fs, base, func(p string, info fs.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".md") || strings.HasPrefix(info.Name(), tmpPrefix) {
			return nil
		}
		data, err := afero.ReadFile(f.fs, p)
		if err != nil {
			return err
		}
		out = append(out, models.NoteMetadata{
			Path:      filepath.ToSlash(filepath.Clean(p)),
			Checksum:  Checksum(data),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

// Read returns the raw bytes of a vault file.
func (f *FS) Read(p string) ([]byte, error) {
	name, err := clean(p)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(f.fs, name)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", p, err)
	}
	return data, nil
}

// IsDir reports whether dir is a directory inside the vault.
func (f *FS) IsDir(dir string) bool {
	name, err := clean(dir)
	if err != nil {
		return false
	}
	ok, err := afero.IsDir(f.fs, name)
	return err == nil && ok
}

// Write atomically writes content: tmp file, fsync, rename. The panel never
// writes notes; this seeds vaults in tests and tooling.
func (f *FS) Write(p string, content []byte) error {
	name, err := clean(p)
	if err != nil {
		return err
	}
	if name == "." {
		return fmt.Errorf("storage: cannot write the vault root")
	}
	dir := filepath.Dir(name)
	if err := f.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := afero.TempFile(f.fs, dir, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = f.fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := f.fs.Rename(tmpName, name); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
