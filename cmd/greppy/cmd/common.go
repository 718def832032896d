package cmd

import (
	"context"
	"time"

	"github.com/greppy/greppy/internal/daemon"
	greperrors "github.com/greppy/greppy/internal/errors"
	"github.com/greppy/greppy/internal/index"
	"github.com/greppy/greppy/internal/locator"
)

// dataHome resolves the data directory (GREPPY_HOME or the platform
// default) and ensures it exists.
func dataHome() (string, error) {
	home, err := daemon.DataHome()
	if err != nil {
		return "", greperrors.IO("resolve data directory", err)
	}
	if err := daemon.EnsureDataHome(home); err != nil {
		return "", greperrors.IO("create data directory", err)
	}
	return home, nil
}

// projectRoot resolves the project root for path, honoring an explicit
// --project override.
func projectRoot(path string) (string, error) {
	if path != "" {
		return locator.Find(path)
	}
	return locator.Find(".")
}

// fallbackSearcher answers a search in-process against a project's
// committed index, for when no daemon is reachable (§4.9's in-process
// fallback). It has no access to the daemon's L1/L2 caches.
type fallbackSearcher struct {
	home string
}

func (f fallbackSearcher) Search(ctx context.Context, req daemon.SearchRequest) (daemon.SearchResponse, error) {
	hash := locator.HashRoot(req.ProjectRoot)
	reader, err := index.OpenReader(daemon.IndexDir(f.home, hash))
	if err != nil {
		return daemon.SearchResponse{}, err
	}
	defer func() { _ = reader.Close() }()

	results, err := reader.Search(ctx, req.Query, req.Limit, req.PathFilter)
	if err != nil {
		return daemon.SearchResponse{}, err
	}

	wire := make([]daemon.WireResult, len(results))
	for i, r := range results {
		wire[i] = daemon.WireResult{
			Path:       r.Path,
			StartLine:  r.StartLine,
			EndLine:    r.EndLine,
			Content:    r.Content,
			SymbolName: r.SymbolName,
			SymbolKind: r.SymbolKind,
			Language:   r.Language,
			Score:      r.Score,
		}
	}
	return daemon.SearchResponse{Results: wire}, nil
}

// newClient builds an IPC client against the resolved endpoint, wired
// with an in-process search fallback.
func newClient(home string) *daemon.Client {
	socket := daemon.ResolveSocketPath(home)
	return daemon.NewClient(socket, 5*time.Second, fallbackSearcher{home: home})
}

// withDaemon runs fn against the daemon's Handler surface: if a daemon
// is reachable it is used directly; otherwise a transient in-process
// Daemon is constructed, used once, and closed. This generalizes §4.9's
// client-side fallback (specified for search) to every daemon operation,
// so every command works whether or not `greppy start` was ever run.
func withDaemon(ctx context.Context, home string, fn func(daemon.Handler) error) error {
	client := newClient(home)
	if client.IsRunning() {
		return fn(clientHandler{client})
	}

	d, err := daemon.NewDaemon(home, daemon.DefaultConfig())
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()
	return fn(d)
}

// clientHandler adapts *daemon.Client to the daemon.Handler interface so
// withDaemon can treat the IPC and in-process paths uniformly.
type clientHandler struct{ c *daemon.Client }

func (h clientHandler) Search(ctx context.Context, req daemon.SearchRequest) (daemon.SearchResponse, error) {
	return h.c.Search(ctx, req)
}
func (h clientHandler) Index(ctx context.Context, req daemon.IndexRequest) (daemon.IndexResponse, error) {
	return h.c.Index(ctx, req)
}
func (h clientHandler) IndexWatch(ctx context.Context, req daemon.IndexWatchRequest) error {
	return h.c.IndexWatch(ctx, req)
}
func (h clientHandler) Status(ctx context.Context) (daemon.StatusResponse, error) {
	return h.c.Status(ctx)
}
func (h clientHandler) List(ctx context.Context) (daemon.ListResponse, error) {
	return h.c.List(ctx)
}
func (h clientHandler) Forget(ctx context.Context, req daemon.ForgetRequest) error {
	return h.c.Forget(ctx, req)
}

// clampLimit enforces §6.3's 1..100 bound on --limit. limit <= 0 is left
// as-is: the query engine treats it as "return nothing" (§8.3), not an
// error.
func clampLimit(limit int) int {
	if limit > 100 {
		return 100
	}
	return limit
}
