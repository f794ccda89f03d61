package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps the state document as pretty-printed JSON on disk, matching
// the layout written by external tooling:
//
//	{ "<providerId>:<model>": {"usedTokens": 0, "unblockAt": "..."} }
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the given file path. The file and
// its directory are created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (f *FileStore) Path() string { return f.path }

// Read loads the document. A missing or unparseable file yields an empty state.
func (f *FileStore) Read(_ context.Context) (State, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return State{}, nil
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, nil
	}
	if s == nil {
		s = State{}
	}
	return s, nil
}

// Write replaces the document. The new content is written to a temp file in
// the same directory and renamed into place so readers never observe a
// half-written document.
func (f *FileStore) Write(_ context.Context, s State) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".backend-state-*.json")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing state file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}
