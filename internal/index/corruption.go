package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blevesearch/bleve/v2"
)

// validateIntegrity checks an on-disk index directory before opening it.
// A missing directory is not corruption (the index simply does not exist
// yet); a present but malformed index_meta.json is.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing")
	}
	if err != nil {
		return fmt.Errorf("stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is not valid JSON: %w", err)
	}
	return nil
}

// isCorruptionError reports whether err is a Bleve failure mode that
// indicates on-disk corruption rather than a transient or usage error.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	if err == bleve.ErrorIndexMetaCorrupt {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "unexpected end of JSON") ||
		strings.Contains(s, "error parsing mapping JSON") ||
		strings.Contains(s, "failed to load segment") ||
		strings.Contains(s, "error opening bolt")
}

// openOrCreate opens path, auto-recovering from a corrupted on-disk index
// by clearing it and starting fresh. An empty path opens an in-memory
// index, used for tests.
func openOrCreate(path string) (bleve.Index, error) {
	im, err := buildIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("build index mapping: %w", err)
	}

	if path == "" {
		return bleve.NewMemOnly(im)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index parent dir: %w", err)
	}

	if validErr := validateIntegrity(path); validErr != nil {
		if removeErr := os.RemoveAll(path); removeErr != nil {
			return nil, fmt.Errorf("index at %s is corrupted (%v) and cannot be cleared: %w", path, validErr, removeErr)
		}
	}

	idx, err := bleve.Open(path)
	switch {
	case err == bleve.ErrorIndexPathDoesNotExist:
		return bleve.New(path, im)
	case err != nil && isCorruptionError(err):
		if removeErr := os.RemoveAll(path); removeErr != nil {
			return nil, fmt.Errorf("index at %s open failed (%v) and cannot be cleared: %w", path, err, removeErr)
		}
		return bleve.New(path, im)
	case err != nil:
		return nil, err
	default:
		return idx, nil
	}
}
