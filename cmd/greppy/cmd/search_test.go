package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greppy/greppy/internal/daemon"
)

func setupIndexedProject(t *testing.T) (root, home string) {
	t.Helper()
	root = t.TempDir()
	home = filepath.Join(t.TempDir(), "home")
	writeTestFile(t, root, "main.go", "package main\n\nfunc searchableFunc() {}\n")

	err := withDaemon(context.Background(), home, func(h daemon.Handler) error {
		_, indexErr := h.Index(context.Background(), daemon.IndexRequest{ProjectRoot: root})
		return indexErr
	})
	require.NoError(t, err)
	return root, home
}

func TestSearchCmd_FindsResultViaFallback(t *testing.T) {
	root, home := setupIndexedProject(t)
	t.Setenv(daemon.EnvDataHome, home)
	t.Setenv(daemon.EnvEndpoint, filepath.Join(home, "unreachable.sock"))

	cmd := newSearchCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"searchableFunc", "--project", root})

	err := cmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "main.go")
}

func TestSearchCmd_NoResultsReturnsSentinel(t *testing.T) {
	root, home := setupIndexedProject(t)
	t.Setenv(daemon.EnvDataHome, home)
	t.Setenv(daemon.EnvEndpoint, filepath.Join(home, "unreachable.sock"))

	cmd := newSearchCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"nonexistenttoken", "--project", root})

	err := cmd.Execute()

	assert.Equal(t, errNoResults, err)
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	root, home := setupIndexedProject(t)
	t.Setenv(daemon.EnvDataHome, home)
	t.Setenv(daemon.EnvEndpoint, filepath.Join(home, "unreachable.sock"))

	cmd := newSearchCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"searchableFunc", "--project", root, "--json"})

	err := cmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"query"`)
	assert.Contains(t, buf.String(), `"total"`)
}

func TestSearchCmd_HasExpectedFlags(t *testing.T) {
	cmd := newSearchCmd()

	for _, name := range []string{"limit", "project", "path", "json"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing --%s flag", name)
	}
}

func TestProjectRoot_NoMarkerIsError(t *testing.T) {
	// A directory with no project marker above it makes Find fail; the
	// caller (projectRoot) surfaces that as an error rather than silently
	// picking the directory itself.
	dir := t.TempDir()
	_, err := projectRoot(dir)
	require.Error(t, err)
}
