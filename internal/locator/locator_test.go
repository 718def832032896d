package locator

import (
	"os"
	"path/filepath"
	"testing"

	greperrors "github.com/greppy/greppy/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindGitMarker(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := Find(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(root), found)
}

func TestFindGoModMarker(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module x\n"), 0o644))

	found, err := Find(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(root), found)
}

func TestFindExplicitMarkerWinsClosest(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, ".greppy.toml"), []byte(""), 0o644))

	found, err := Find(sub)
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(sub), found)
}

func TestFindNoMarkerReturnsProjectNotFound(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "x", "y")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	_, err := Find(nested)
	require.Error(t, err)
	assert.Equal(t, greperrors.CodeProjectNotFound, greperrors.Code(err))
}

func TestHashRootStableAndDistinct(t *testing.T) {
	h1 := HashRoot("/home/user/proj-a")
	h2 := HashRoot("/home/user/proj-a")
	h3 := HashRoot("/home/user/proj-b")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 16)
}

func TestHashRootNormalizesTrailingSlash(t *testing.T) {
	assert.Equal(t, HashRoot("/home/user/proj"), HashRoot("/home/user/proj/"))
}
