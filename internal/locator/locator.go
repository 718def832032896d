// Package locator finds the project root for a working directory and
// derives the on-disk index directory name for that root.
package locator

import (
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"

	greperrors "github.com/greppy/greppy/internal/errors"
)

// markers are checked at each directory level while walking up. A project
// root is the nearest ancestor directory (the start directory included)
// that carries any one of these; an explicit .greppy.toml in a nearer
// directory takes precedence over, say, a .git further up.
var markers = []string{
	".greppy.toml",
	".git",
	"go.mod",
	"package.json",
	"Cargo.toml",
	"pyproject.toml",
}

// Find walks up from startDir looking for a project marker. It returns
// ProjectNotFound if no ancestor directory (including the filesystem root)
// carries one.
func Find(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", greperrors.IO("resolving start directory", err)
	}

	current := absDir
	for {
		for _, marker := range markers {
			if exists(filepath.Join(current, marker)) {
				return current, nil
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", greperrors.ProjectNotFound(absDir)
		}
		current = parent
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// HashRoot derives the lowercase hex xxhash64 of the project's absolute,
// cleaned path, used as the per-project index directory name under the
// data directory so two projects never collide and a given project always
// resolves to the same index path.
func HashRoot(root string) string {
	clean := filepath.Clean(root)
	sum := xxhash.Sum64String(clean)
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(sum >> (8 * (7 - i)))
	}
	return hex.EncodeToString(buf[:])
}
