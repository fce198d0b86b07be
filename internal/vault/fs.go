// Package vault mirrors memos as Markdown files on disk and imports edits
// made to those files.
package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/starford/memos/internal/checksum"
	"github.com/starford/memos/internal/pattern"
)

// memoDir is the vault subdirectory holding one file per memo.
const memoDir = "memos"

// FileMeta describes one memo file in the vault.
type FileMeta struct {
	ID       int64
	Path     string
	Checksum string
	ModTime  time.Time
}

// FS reads and writes memo files under a vault root.
type FS struct {
	root string // absolute path to the memos directory
}

// NewFS creates the memos directory under root if needed.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(filepath.Join(root, memoDir))
	if err != nil {
		return nil, fmt.Errorf("vault: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("vault: create memos dir: %w", err)
	}
	return &FS{root: abs}, nil
}

// Dir returns the absolute path of the memos directory.
func (f *FS) Dir() string {
	return f.root
}

// FileName returns the file name of memo id.
func FileName(id int64) string {
	return strconv.FormatInt(id, 10) + ".md"
}

// ParseFileName returns the memo id a file name stands for.
func ParseFileName(name string) (int64, bool) {
	stem, ok := strings.CutSuffix(filepath.Base(name), ".md")
	if !ok {
		return 0, false
	}
	return pattern.ParseMemoID(stem)
}

func (f *FS) path(id int64) string {
	return filepath.Join(f.root, FileName(id))
}

// List returns metadata for every memo file.
func (f *FS) List() ([]FileMeta, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("vault: list: %w", err)
	}
	var out []FileMeta
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, ok := ParseFileName(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("vault: stat %s: %w", e.Name(), err)
		}
		data, err := os.ReadFile(filepath.Join(f.root, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("vault: read %s: %w", e.Name(), err)
		}
		out = append(out, FileMeta{
			ID:       id,
			Path:     e.Name(),
			Checksum: checksum.Sum(data),
			ModTime:  info.ModTime(),
		})
	}
	return out, nil
}

// Read returns the content of memo id's file.
func (f *FS) Read(id int64) ([]byte, error) {
	data, err := os.ReadFile(f.path(id))
	if err != nil {
		return nil, fmt.Errorf("vault: read %d: %w", id, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(id int64, content []byte) error {
	tmp, err := os.CreateTemp(f.root, ".memos-tmp-*")
	if err != nil {
		return fmt.Errorf("vault: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("vault: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("vault: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("vault: close temp: %w", err)
	}
	if err := os.Rename(tmpName, f.path(id)); err != nil {
		return fmt.Errorf("vault: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes memo id's file. A missing file is not an error.
func (f *FS) Delete(id int64) error {
	if err := os.Remove(f.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("vault: delete %d: %w", id, err)
	}
	return nil
}
