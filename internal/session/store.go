// Package session persists the live conversation.
//
// The snapshot file is a single JSON document that is overwritten as a whole
// on every save:
//
//	{"characterName":"…","yourName":"…","messages":[{"role":"user","content":"…"}]}
//
// Completed turns are additionally appended to a bbolt archive (archive.go).
package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/duetvoice/duet/internal/schema"
)

const (
	// DefaultHistoryDir is relative to the working directory.
	DefaultHistoryDir = "History"
	snapshotFileName  = "ChatHistory.json"
)

// SnapshotStore writes chat snapshots to <dir>/ChatHistory.json.
type SnapshotStore struct {
	path string
}

// NewSnapshotStore returns a store rooted at dir. An empty dir means
// History under the current working directory. The directory is created
// lazily on the first Save.
func NewSnapshotStore(dir string) *SnapshotStore {
	if dir == "" {
		dir = DefaultHistoryDir
	}
	return &SnapshotStore{path: filepath.Join(dir, snapshotFileName)}
}

// Path returns the snapshot file location.
func (s *SnapshotStore) Path() string { return s.path }

// Save replaces the snapshot file with snap. The file is written to a
// temporary sibling and renamed into place so readers never see a partial
// document.
func (s *SnapshotStore) Save(snap schema.ChatSnapshot) error {
	if snap.Messages == nil {
		snap.Messages = []schema.Message{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // keep non-ASCII and markup readable
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace snapshot %s: %w", s.path, err)
	}
	return nil
}

// Load reads the current snapshot. A missing file is reported with an error
// satisfying errors.Is(err, os.ErrNotExist).
func (s *SnapshotStore) Load() (schema.ChatSnapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return schema.ChatSnapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snap schema.ChatSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return schema.ChatSnapshot{}, fmt.Errorf("parse snapshot %s: %w", s.path, err)
	}
	return snap, nil
}
