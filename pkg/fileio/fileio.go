// Package fileio provides whole-file snapshot reads and atomic writes.
package fileio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Ramsey-B/fern/pkg/fingerprint"
	"github.com/google/renameio/v2"
)

// DefaultPerm is the mode of newly created files
const DefaultPerm fs.FileMode = 0o644

// Snapshot is the content of a file at a point in time
type Snapshot struct {
	Path        string
	Data        []byte
	Exists      bool
	Fingerprint string
}

// Read returns a snapshot of path. A missing file is not an error.
func Read(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Snapshot{Path: path, Fingerprint: fingerprint.Absent}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Path:        path,
		Data:        data,
		Exists:      true,
		Fingerprint: fingerprint.FromBytes(data),
	}, nil
}

// WriteAtomic replaces path with data so readers never observe a partial
// file. The existing file mode is kept.
func WriteAtomic(path string, data []byte) error {
	pending, err := Stage(path, data)
	if err != nil {
		return err
	}
	_, err = Commit(pending)
	return err
}

// Pending is a fully written and synced temp file waiting to replace Path
type Pending struct {
	Path string
	file *renameio.PendingFile
}

// Stage writes data next to path without touching path itself
func Stage(path string, data []byte) (*Pending, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := renameio.NewPendingFile(path,
		renameio.WithPermissions(DefaultPerm),
		renameio.WithExistingPermissions(),
	)
	if err != nil {
		return nil, err
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Cleanup()
		return nil, err
	}
	return &Pending{Path: path, file: file}, nil
}

// Discard removes the temp file. It is a no-op once committed.
func (p *Pending) Discard() {
	if p != nil {
		_ = p.file.Cleanup()
	}
}

// Commit renames staged files over their targets in order. On failure the
// remaining temp files are removed and the paths already replaced are
// returned alongside the error.
func Commit(pending ...*Pending) (committed []string, err error) {
	for i, p := range pending {
		if err := p.file.CloseAtomicallyReplace(); err != nil {
			for _, rest := range pending[i:] {
				rest.Discard()
			}
			return committed, fmt.Errorf("replace %s: %w", p.Path, err)
		}
		committed = append(committed, p.Path)
	}
	return committed, nil
}
