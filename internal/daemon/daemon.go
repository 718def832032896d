package daemon

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/greppy/greppy/internal/chunk"
	"github.com/greppy/greppy/internal/config"
	greperrors "github.com/greppy/greppy/internal/errors"
	"github.com/greppy/greppy/internal/index"
	"github.com/greppy/greppy/internal/locator"
	"github.com/greppy/greppy/internal/registry"
	"github.com/greppy/greppy/internal/telemetry"
	"github.com/greppy/greppy/internal/walker"
	"github.com/greppy/greppy/internal/watcher"

	_ "modernc.org/sqlite"
)

// projectState is one project's open index, shared between its Writer
// and Reader (they wrap the same bleve.Index handle; see
// index.NewReaderFromIndex).
type projectState struct {
	root   string
	hash   string
	writer *index.Writer
	reader *index.Reader
}

// Daemon coordinates every registered project's index, the project
// registry, and the per-project watchers, and implements Handler so
// Server can dispatch wire requests straight into it.
type Daemon struct {
	dataHome string
	cfg      Config
	settings config.Config
	registry *registry.Registry
	cache    *index.ResultCache
	walker   *walker.Walker
	chunker  *chunk.CodeChunker
	started  time.Time

	metricsDB *sql.DB
	metrics   *telemetry.QueryMetrics

	mu       sync.Mutex
	projects map[string]*projectState

	watchMu  sync.Mutex
	watchers map[string]watcher.Watcher
}

// NewDaemon constructs a Daemon rooted at dataHome (see DataHome), with
// an already-loaded project registry.
func NewDaemon(dataHome string, cfg Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := EnsureDataHome(dataHome); err != nil {
		return nil, err
	}

	reg, err := registry.Open(RegistryPath(dataHome))
	if err != nil {
		return nil, err
	}

	settings, err := config.Load(ConfigPath(dataHome))
	if err != nil {
		return nil, err
	}

	cache, err := index.NewResultCache(settings.Cache.ResultCacheCapacity, settings.ResultCacheTTL())
	if err != nil {
		return nil, greperrors.IO("create result cache", err)
	}

	w, err := walker.New()
	if err != nil {
		return nil, greperrors.IO("create walker", err)
	}

	metricsDB, err := sql.Open("sqlite", MetricsDBPath(dataHome)+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, greperrors.IO("open telemetry database", err)
	}
	if err := telemetry.InitTelemetrySchema(metricsDB); err != nil {
		_ = metricsDB.Close()
		return nil, greperrors.IO("create telemetry schema", err)
	}
	metricsStore, err := telemetry.NewSQLiteMetricsStore(metricsDB)
	if err != nil {
		_ = metricsDB.Close()
		return nil, greperrors.IO("create telemetry store", err)
	}

	return &Daemon{
		dataHome:  dataHome,
		cfg:       cfg,
		settings:  settings,
		registry:  reg,
		cache:     cache,
		walker:    w,
		chunker:   chunk.NewCodeChunker(),
		started:   time.Now(),
		metricsDB: metricsDB,
		metrics:   telemetry.NewQueryMetrics(metricsStore),
		projects:  make(map[string]*projectState),
		watchers:  make(map[string]watcher.Watcher),
	}, nil
}

// Close releases every open project index and the code chunker's
// parser handles.
func (d *Daemon) Close() error {
	d.watchMu.Lock()
	for _, w := range d.watchers {
		_ = w.Stop()
	}
	d.watchers = make(map[string]watcher.Watcher)
	d.watchMu.Unlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	var firstErr error
	for _, ps := range d.projects {
		if err := ps.writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	d.projects = make(map[string]*projectState)
	d.chunker.Close()

	if err := d.metrics.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := d.metricsDB.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

// openProject returns the project's open index state, opening (and, if
// createIfMissing, creating) it on first use. Subsequent calls for the
// same project reuse the cached state.
func (d *Daemon) openProject(root string, createIfMissing bool) (*projectState, error) {
	hash := locator.HashRoot(root)

	d.mu.Lock()
	defer d.mu.Unlock()

	if ps, ok := d.projects[hash]; ok {
		return ps, nil
	}

	if !createIfMissing {
		if _, ok := d.registry.Get(hash); !ok {
			return nil, greperrors.NoIndex(root)
		}
	}

	dir := IndexDir(d.dataHome, hash)
	w, err := index.NewWriter(dir)
	if err != nil {
		return nil, err
	}
	w.OnCommit(func() { d.cache.InvalidateProject(hash) })

	ps := &projectState{
		root:   root,
		hash:   hash,
		writer: w,
		reader: index.NewReaderFromIndexWithCacheSize(w.Index(), d.settings.Cache.QueryCacheCapacity),
	}
	d.projects[hash] = ps
	return ps, nil
}

// Search implements Handler.
func (d *Daemon) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	hash := locator.HashRoot(req.ProjectRoot)
	key := index.ResultCacheKey{
		ProjectHash: hash,
		Query:       req.Query,
		Limit:       req.Limit,
		PathFilter:  req.PathFilter,
	}
	now := time.Now()
	if cached, ok := d.cache.Get(key, now); ok {
		d.recordQuery(req.Query, len(cached), time.Since(now), now)
		return SearchResponse{Results: toWireResults(cached)}, nil
	}

	ps, err := d.openProject(req.ProjectRoot, false)
	if err != nil {
		return SearchResponse{}, err
	}

	results, err := ps.reader.Search(ctx, req.Query, req.Limit, req.PathFilter)
	if err != nil {
		return SearchResponse{}, err
	}

	d.cache.Put(key, results, now)
	d.recordQuery(req.Query, len(results), time.Since(now), now)
	return SearchResponse{Results: toWireResults(results)}, nil
}

// recordQuery feeds one completed search into the daemon-wide query
// telemetry collector, whose in-memory totals `status` reports.
func (d *Daemon) recordQuery(query string, resultCount int, latency time.Duration, at time.Time) {
	d.metrics.Record(telemetry.QueryEvent{
		Query:       query,
		QueryType:   telemetry.QueryTypeLexical,
		ResultCount: resultCount,
		Latency:     latency,
		Timestamp:   at,
	})
}

// Index implements Handler: it walks the project tree, chunks every
// file, and reindexes it fully (§4.4's ReindexAll operation).
func (d *Daemon) Index(ctx context.Context, req IndexRequest) (IndexResponse, error) {
	start := time.Now()

	if req.Force {
		hash := locator.HashRoot(req.ProjectRoot)
		d.evict(hash)
		if err := os.RemoveAll(IndexDir(d.dataHome, hash)); err != nil && !os.IsNotExist(err) {
			return IndexResponse{}, greperrors.IO("remove index for force reindex", err)
		}
	}

	ps, err := d.openProject(req.ProjectRoot, true)
	if err != nil {
		return IndexResponse{}, err
	}

	walkedPaths, chunks, fileCount, err := d.collectChunks(ctx, req.ProjectRoot)
	if err != nil {
		return IndexResponse{}, err
	}

	if err := ps.writer.ReindexAll(ctx, walkedPaths, chunks); err != nil {
		return IndexResponse{}, err
	}

	indexBytes := dirSize(IndexDir(d.dataHome, ps.hash))
	if err := d.registry.Put(registry.Entry{
		Root:        req.ProjectRoot,
		Hash:        ps.hash,
		LastIndexed: time.Now(),
		ChunkCount:  len(chunks),
		FileCount:   fileCount,
		IndexBytes:  indexBytes,
	}); err != nil {
		return IndexResponse{}, err
	}

	return IndexResponse{
		FilesIndexed: fileCount,
		ChunksStored: len(chunks),
		DurationMS:   time.Since(start).Milliseconds(),
	}, nil
}

// collectChunks walks root and chunks every file it yields.
func (d *Daemon) collectChunks(ctx context.Context, root string) ([]string, []*chunk.Chunk, int, error) {
	results, err := d.walker.Walk(ctx, walker.Options{
		RootDir:          root,
		DenyDirs:         d.settings.Ignore.Patterns,
		DenyFiles:        d.settings.Ignore.Patterns,
		RespectGitignore: true,
		MaxFileSize:      d.settings.Limits.MaxFileSizeBytes,
		Submodules:       walker.SubmoduleConfig{Enabled: d.settings.Ignore.WalkSubmodules},
	})
	if err != nil {
		return nil, nil, 0, greperrors.IO("walk project tree", err)
	}

	var walkedPaths []string
	var chunks []*chunk.Chunk
	fileCount := 0

	for res := range results {
		if res.Error != nil {
			continue
		}
		f := res.File
		walkedPaths = append(walkedPaths, f.Path)

		content, err := os.ReadFile(f.AbsPath)
		if err != nil {
			continue
		}

		fileChunks, err := d.chunker.Chunk(ctx, &chunk.FileInput{
			Path:        f.Path,
			Content:     content,
			Language:    f.Language,
			ModifiedAt:  f.ModTime / int64(time.Second),
			IsTest:      f.IsTest,
			IsGenerated: f.IsGenerated,
		})
		if err != nil {
			continue
		}
		chunks = append(chunks, fileChunks...)
		fileCount++
	}

	return walkedPaths, chunks, fileCount, nil
}

// IndexWatch implements Handler: starts (idempotently) a file watcher
// for the project that triggers incremental reindexing on change
// (§4.7).
func (d *Daemon) IndexWatch(ctx context.Context, req IndexWatchRequest) error {
	hash := locator.HashRoot(req.ProjectRoot)

	d.watchMu.Lock()
	if _, ok := d.watchers[hash]; ok {
		d.watchMu.Unlock()
		return nil
	}

	opts := watcher.DefaultOptions()
	opts.DebounceWindow = d.settings.WatcherDebounce()
	w, err := watcher.NewHybridWatcher(opts)
	if err != nil {
		d.watchMu.Unlock()
		return greperrors.IO("create watcher", err)
	}
	if err := w.Start(ctx, req.ProjectRoot); err != nil {
		d.watchMu.Unlock()
		return greperrors.IO("start watcher", err)
	}
	d.watchers[hash] = w
	d.watchMu.Unlock()

	go d.watchLoop(ctx, req.ProjectRoot, w)
	return nil
}

// watchLoop consumes one watcher's events and applies incremental
// index updates, invalidating the project's L1 cache entries on each
// commit via the Writer's OnCommit hook.
func (d *Daemon) watchLoop(ctx context.Context, root string, w watcher.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events():
			if !ok {
				return
			}
			d.applyWatchEvent(ctx, root, ev)
		case _, ok := <-w.Errors():
			if !ok {
				return
			}
		}
	}
}

func (d *Daemon) applyWatchEvent(ctx context.Context, root string, ev watcher.FileEvent) {
	ps, err := d.openProject(root, true)
	if err != nil {
		return
	}

	if ev.Operation == watcher.OpDelete {
		_ = ps.writer.IncrementalUpdate(ctx, nil, []string{ev.Path})
		return
	}

	absPath := filepath.Join(root, ev.Path)
	content, err := os.ReadFile(absPath)
	if err != nil {
		return
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return
	}

	fileChunks, err := d.chunker.Chunk(ctx, &chunk.FileInput{
		Path:       ev.Path,
		Content:    content,
		Language:   walker.DetectLanguage(ev.Path),
		ModifiedAt: info.ModTime().Unix(),
	})
	if err != nil {
		return
	}

	_ = ps.writer.IncrementalUpdate(ctx, map[string][]*chunk.Chunk{ev.Path: fileChunks}, nil)
}

// Status implements Handler.
func (d *Daemon) Status(ctx context.Context) (StatusResponse, error) {
	d.mu.Lock()
	openCount := len(d.projects)
	queryCacheSize := 0
	for _, ps := range d.projects {
		queryCacheSize += ps.reader.QueryCacheLen()
	}
	d.mu.Unlock()

	snapshot := d.metrics.Snapshot()

	return StatusResponse{
		PID:                  os.Getpid(),
		UptimeSeconds:        time.Since(d.started).Seconds(),
		ProjectCount:         len(d.registry.List()),
		OpenIndexCount:       openCount,
		ResultCacheSize:      d.cache.Len(),
		QueryCacheSize:       queryCacheSize,
		TotalQueries:         snapshot.TotalQueries,
		ZeroResultCount:      snapshot.ZeroResultCount,
		ZeroResultPercentage: snapshot.ZeroResultPercentage(),
	}, nil
}

// List implements Handler.
func (d *Daemon) List(ctx context.Context) (ListResponse, error) {
	entries := d.registry.List()
	projects := make([]WireProject, len(entries))
	for i, e := range entries {
		projects[i] = WireProject{
			Root:        e.Root,
			Hash:        e.Hash,
			LastIndexed: e.LastIndexed.Format(time.RFC3339),
			ChunkCount:  e.ChunkCount,
			FileCount:   e.FileCount,
			IndexBytes:  e.IndexBytes,
		}
	}
	return ListResponse{Projects: projects}, nil
}

// Forget implements Handler: drops the registry entry, stops any
// watcher, closes and deletes the project's index directory, all
// best-effort.
func (d *Daemon) Forget(ctx context.Context, req ForgetRequest) error {
	hash := locator.HashRoot(req.ProjectRoot)

	d.watchMu.Lock()
	if w, ok := d.watchers[hash]; ok {
		_ = w.Stop()
		delete(d.watchers, hash)
	}
	d.watchMu.Unlock()

	d.evict(hash)

	if err := d.registry.Forget(hash); err != nil {
		return err
	}
	_ = os.RemoveAll(IndexDir(d.dataHome, hash))
	return nil
}

// evict closes and drops a project's open index state, if any.
func (d *Daemon) evict(hash string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ps, ok := d.projects[hash]; ok {
		_ = ps.writer.Close()
		delete(d.projects, hash)
	}
}

func toWireResults(results []*index.Result) []WireResult {
	out := make([]WireResult, len(results))
	for i, r := range results {
		out[i] = WireResult{
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
	return out
}

func dirSize(path string) int64 {
	var total int64
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total
}
