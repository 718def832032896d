package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	greperrors "github.com/greppy/greppy/internal/errors"
)

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()
	dataHome := filepath.Join(t.TempDir(), "home")
	d, err := NewDaemon(dataHome, DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func writeProjectFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	full := filepath.Join(root, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestNewDaemon(t *testing.T) {
	d := newTestDaemon(t)
	assert.NotNil(t, d)
	assert.Empty(t, d.projects)
}

func TestNewDaemon_InvalidConfig(t *testing.T) {
	_, err := NewDaemon(t.TempDir(), Config{})
	require.Error(t, err)
}

func TestDaemon_SearchWithoutIndexReturnsNoIndex(t *testing.T) {
	d := newTestDaemon(t)
	root := t.TempDir()

	_, err := d.Search(context.Background(), SearchRequest{
		ProjectRoot: root,
		Query:       "anything",
		Limit:       10,
	})

	require.Error(t, err)
	assert.Equal(t, greperrors.CodeNoIndex, greperrors.Code(err))
}

func TestDaemon_IndexThenSearchFindsMatch(t *testing.T) {
	d := newTestDaemon(t)
	root := t.TempDir()
	writeProjectFile(t, root, "main.go", "package main\n\nfunc helloWorld() {}\n")

	indexResp, err := d.Index(context.Background(), IndexRequest{ProjectRoot: root})
	require.NoError(t, err)
	assert.Equal(t, 1, indexResp.FilesIndexed)
	assert.Greater(t, indexResp.ChunksStored, 0)

	searchResp, err := d.Search(context.Background(), SearchRequest{
		ProjectRoot: root,
		Query:       "helloWorld",
		Limit:       10,
	})
	require.NoError(t, err)
	require.NotEmpty(t, searchResp.Results)
	assert.Equal(t, "helloWorld", searchResp.Results[0].SymbolName)
}

func TestDaemon_SearchServesFromCacheOnRepeat(t *testing.T) {
	d := newTestDaemon(t)
	root := t.TempDir()
	writeProjectFile(t, root, "main.go", "package main\n\nfunc cachedFunc() {}\n")

	_, err := d.Index(context.Background(), IndexRequest{ProjectRoot: root})
	require.NoError(t, err)

	req := SearchRequest{ProjectRoot: root, Query: "cachedFunc", Limit: 10}
	first, err := d.Search(context.Background(), req)
	require.NoError(t, err)

	second, err := d.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDaemon_IndexForceRebuildsFromScratch(t *testing.T) {
	d := newTestDaemon(t)
	root := t.TempDir()
	writeProjectFile(t, root, "main.go", "package main\n\nfunc original() {}\n")

	_, err := d.Index(context.Background(), IndexRequest{ProjectRoot: root})
	require.NoError(t, err)

	writeProjectFile(t, root, "main.go", "package main\n\nfunc renamed() {}\n")

	_, err = d.Index(context.Background(), IndexRequest{ProjectRoot: root, Force: true})
	require.NoError(t, err)

	resp, err := d.Search(context.Background(), SearchRequest{ProjectRoot: root, Query: "renamed", Limit: 10})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Results)
}

func TestDaemon_ListReflectsIndexedProjects(t *testing.T) {
	d := newTestDaemon(t)
	root := t.TempDir()
	writeProjectFile(t, root, "main.go", "package main\n")

	_, err := d.Index(context.Background(), IndexRequest{ProjectRoot: root})
	require.NoError(t, err)

	resp, err := d.List(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Projects, 1)
	assert.Equal(t, root, resp.Projects[0].Root)
	assert.Equal(t, 1, resp.Projects[0].FileCount)
}

func TestDaemon_ForgetRemovesProjectAndIndex(t *testing.T) {
	d := newTestDaemon(t)
	root := t.TempDir()
	writeProjectFile(t, root, "main.go", "package main\n")

	_, err := d.Index(context.Background(), IndexRequest{ProjectRoot: root})
	require.NoError(t, err)

	require.NoError(t, d.Forget(context.Background(), ForgetRequest{ProjectRoot: root}))

	resp, err := d.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, resp.Projects)

	_, err = d.Search(context.Background(), SearchRequest{ProjectRoot: root, Query: "anything", Limit: 10})
	require.Error(t, err)
	assert.Equal(t, greperrors.CodeNoIndex, greperrors.Code(err))
}

func TestDaemon_StatusReportsOpenProjectsAndUptime(t *testing.T) {
	d := newTestDaemon(t)
	root := t.TempDir()
	writeProjectFile(t, root, "main.go", "package main\n")

	_, err := d.Index(context.Background(), IndexRequest{ProjectRoot: root})
	require.NoError(t, err)

	status, err := d.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.ProjectCount)
	assert.Equal(t, 1, status.OpenIndexCount)
	assert.GreaterOrEqual(t, status.UptimeSeconds, 0.0)
}

func TestDaemon_IndexWatchIsIdempotent(t *testing.T) {
	d := newTestDaemon(t)
	root := t.TempDir()
	writeProjectFile(t, root, "main.go", "package main\n")

	_, err := d.Index(context.Background(), IndexRequest{ProjectRoot: root})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, d.IndexWatch(ctx, IndexWatchRequest{ProjectRoot: root}))
	require.NoError(t, d.IndexWatch(ctx, IndexWatchRequest{ProjectRoot: root}))

	d.watchMu.Lock()
	count := len(d.watchers)
	d.watchMu.Unlock()
	assert.Equal(t, 1, count)
}

func TestDaemon_IndexWatchPicksUpFileChanges(t *testing.T) {
	d := newTestDaemon(t)
	root := t.TempDir()
	writeProjectFile(t, root, "main.go", "package main\n")

	_, err := d.Index(context.Background(), IndexRequest{ProjectRoot: root})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, d.IndexWatch(ctx, IndexWatchRequest{ProjectRoot: root}))

	writeProjectFile(t, root, "added.go", "package main\n\nfunc watchedAddition() {}\n")

	require.Eventually(t, func() bool {
		resp, err := d.Search(context.Background(), SearchRequest{
			ProjectRoot: root,
			Query:       "watchedAddition",
			Limit:       10,
		})
		return err == nil && len(resp.Results) > 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestDaemon_CloseStopsWatchersAndClosesIndexes(t *testing.T) {
	d := newTestDaemon(t)
	root := t.TempDir()
	writeProjectFile(t, root, "main.go", "package main\n")

	_, err := d.Index(context.Background(), IndexRequest{ProjectRoot: root})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, d.IndexWatch(ctx, IndexWatchRequest{ProjectRoot: root}))

	require.NoError(t, d.Close())
	assert.Empty(t, d.projects)
	assert.Empty(t, d.watchers)
}
