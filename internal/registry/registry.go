// Package registry persists the mapping from project root to index
// directory and per-project metadata, in a single JSON file written
// atomically after every successful index commit.
package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	greperrors "github.com/greppy/greppy/internal/errors"
)

// Entry is the persisted metadata for one indexed project.
type Entry struct {
	Root         string    `json:"root"`
	Hash         string    `json:"hash"`
	LastIndexed  time.Time `json:"last_indexed"`
	ChunkCount   int       `json:"chunk_count"`
	FileCount    int       `json:"file_count"`
	IndexBytes   int64     `json:"index_bytes"`
}

// document is the on-disk shape of the registry file.
type document struct {
	Version  int              `json:"version"`
	Projects map[string]Entry `json:"projects"`
}

// Registry is a process-wide, file-backed map of project hash to Entry.
// Safe for concurrent use; every mutating call persists immediately.
type Registry struct {
	path string

	mu   sync.RWMutex
	docs document
}

// Open loads the registry file at path, creating an empty one in memory
// if it does not yet exist on disk (it is created on first Put).
func Open(path string) (*Registry, error) {
	r := &Registry{path: path, docs: document{Version: 1, Projects: map[string]Entry{}}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, greperrors.IO("reading registry", err)
	}
	if len(data) == 0 {
		return r, nil
	}
	if err := json.Unmarshal(data, &r.docs); err != nil {
		return nil, greperrors.IO("parsing registry", err)
	}
	if r.docs.Projects == nil {
		r.docs.Projects = map[string]Entry{}
	}
	return r, nil
}

// Get returns the entry for hash, if any.
func (r *Registry) Get(hash string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.docs.Projects[hash]
	return e, ok
}

// List returns all entries, in no particular order.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.docs.Projects))
	for _, e := range r.docs.Projects {
		out = append(out, e)
	}
	return out
}

// Put records or replaces an entry and persists the registry atomically.
// Called only after a successful index commit.
func (r *Registry) Put(e Entry) error {
	r.mu.Lock()
	r.docs.Projects[e.Hash] = e
	snapshot := r.docs.clone()
	r.mu.Unlock()

	return writeAtomic(r.path, snapshot)
}

// Forget removes the entry for hash and persists the registry. It does
// not touch the index directory on disk; callers remove that themselves
// on a best-effort basis so a failed directory removal never leaves the
// registry inconsistent with what the caller believes happened.
func (r *Registry) Forget(hash string) error {
	r.mu.Lock()
	_, existed := r.docs.Projects[hash]
	delete(r.docs.Projects, hash)
	snapshot := r.docs.clone()
	r.mu.Unlock()

	if !existed {
		return nil
	}
	return writeAtomic(r.path, snapshot)
}

// clone deep-copies the Projects map so writeAtomic can marshal it after
// the lock is released without racing a concurrent Put/Forget's map
// mutation (Entry itself holds no reference types, so a shallow copy of
// each value is sufficient).
func (d document) clone() document {
	projects := make(map[string]Entry, len(d.Projects))
	for k, v := range d.Projects {
		projects[k] = v
	}
	return document{Version: d.Version, Projects: projects}
}

func writeAtomic(path string, doc document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return greperrors.IO("creating registry directory", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return greperrors.IO("encoding registry", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".registry-*.tmp")
	if err != nil {
		return greperrors.IO("creating registry temp file", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return greperrors.IO("writing registry temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return greperrors.IO("closing registry temp file", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return greperrors.IO("renaming registry temp file", err)
	}
	return nil
}
