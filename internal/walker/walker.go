// Package walker traverses a project tree and yields indexable files,
// filtering out version-controlled ignores, a configured deny-list,
// oversized files, and binary content.
package walker

import (
	"bytes"
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/greppy/greppy/internal/gitignore"
)

// DefaultMaxFileSize is the byte threshold above which files are skipped
// when Options.MaxFileSize is left at zero.
const DefaultMaxFileSize = 10 * 1024 * 1024

const gitignoreCacheSize = 1000

// File is one walked, indexable file.
type File struct {
	Path        string // relative to the project root
	AbsPath     string
	Size        int64
	ModTime     int64 // unix nanoseconds, avoids importing time into the hot path
	Language    string
	IsTest      bool
	IsGenerated bool
}

// Result is streamed on the walker's output channel.
type Result struct {
	File  *File
	Error error
}

// SubmoduleConfig controls whether initialized git submodules are walked
// as part of the project tree.
type SubmoduleConfig struct {
	Enabled bool
}

// Options configures one walk.
type Options struct {
	RootDir string

	// DenyDirs are exact directory names or `**/`-style glob patterns that
	// are never descended into.
	DenyDirs []string
	// DenyFiles are exact file names or glob patterns that are never yielded.
	DenyFiles []string

	RespectGitignore bool
	MaxFileSize      int64
	Workers          int
	FollowSymlinks   bool
	Submodules       SubmoduleConfig
}

// Walker discovers files under a project root, caching compiled gitignore
// matchers per directory so repeated walks (incremental re-index) do not
// re-parse unchanged .gitignore files.
type Walker struct {
	gitignoreCache *lru.Cache[string, *gitignore.Matcher]
	cacheMu        sync.RWMutex
}

// New constructs a Walker.
func New() (*Walker, error) {
	cache, err := lru.New[string, *gitignore.Matcher](gitignoreCacheSize)
	if err != nil {
		return nil, err
	}
	return &Walker{gitignoreCache: cache}, nil
}

// Walk streams every indexable file under opts.RootDir on the returned
// channel. The channel is closed when the walk finishes or ctx is
// cancelled. Results arrive in directory-traversal order but callers must
// not rely on that order; the walk is not parallelized internally, but
// callers are expected to fan the results out to worker goroutines.
func (w *Walker) Walk(ctx context.Context, opts Options) (<-chan Result, error) {
	absRoot, err := filepath.Abs(opts.RootDir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &fs.PathError{Op: "walk", Path: absRoot, Err: fs.ErrInvalid}
	}

	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan Result, workers*10)

	go func() {
		defer close(results)
		w.walkTree(ctx, absRoot, absRoot, opts, maxFileSize, results)
		if opts.Submodules.Enabled {
			w.walkSubmodules(ctx, absRoot, opts, maxFileSize, results)
		}
	}()

	return results, nil
}

func (w *Walker) walkTree(ctx context.Context, absRoot, walkRoot string, opts Options, maxFileSize int64, results chan<- Result) {
	err := filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil || relPath == "." {
			return nil
		}

		if d.IsDir() {
			if d.Name() == ".git" || w.denyDir(relPath, opts.DenyDirs) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}
		if w.denyFile(relPath, opts.DenyFiles) {
			return nil
		}
		if opts.RespectGitignore && w.isGitignored(relPath, absRoot) {
			return nil
		}

		fileInfo, err := d.Info()
		if err != nil {
			return nil
		}
		if fileInfo.Size() > maxFileSize {
			return nil
		}
		if isBinary(path) {
			return nil
		}

		language := DetectLanguage(relPath)
		file := &File{
			Path:        relPath,
			AbsPath:     path,
			Size:        fileInfo.Size(),
			ModTime:     fileInfo.ModTime().UnixNano(),
			Language:    language,
			IsTest:      isTestPath(relPath, language),
			IsGenerated: isGeneratedFile(path, relPath),
		}

		select {
		case results <- Result{File: file}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	if err != nil && err != context.Canceled {
		select {
		case results <- Result{Error: err}:
		case <-ctx.Done():
		}
	}
}

func (w *Walker) denyDir(relPath string, patterns []string) bool {
	base := filepath.Base(relPath)
	for _, p := range patterns {
		p = strings.TrimSuffix(strings.TrimPrefix(p, "**/"), "/**")
		if base == p || relPath == p || strings.HasPrefix(relPath, p+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Walker) denyFile(relPath string, patterns []string) bool {
	base := filepath.Base(relPath)
	for _, p := range patterns {
		if matched, _ := filepath.Match(p, base); matched {
			return true
		}
		if p == base || p == relPath {
			return true
		}
	}
	return false
}

func isBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return false
	}
	return bytes.Contains(buf[:n], []byte{0})
}

func (w *Walker) isGitignored(relPath, absRoot string) bool {
	if m := w.gitignoreMatcher(absRoot, ""); m != nil && m.Match(relPath, false) {
		return true
	}

	parts := strings.Split(filepath.Dir(relPath), string(filepath.Separator))
	currentDir := absRoot
	currentBase := ""
	for _, part := range parts {
		if part == "." {
			continue
		}
		currentDir = filepath.Join(currentDir, part)
		if currentBase == "" {
			currentBase = part
		} else {
			currentBase = filepath.Join(currentBase, part)
		}
		if m := w.gitignoreMatcher(currentDir, currentBase); m != nil && m.Match(relPath, false) {
			return true
		}
	}
	return false
}

func (w *Walker) gitignoreMatcher(dir, base string) *gitignore.Matcher {
	w.cacheMu.RLock()
	m, ok := w.gitignoreCache.Get(dir)
	w.cacheMu.RUnlock()
	if ok {
		return m
	}

	gitignorePath := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(gitignorePath); err != nil {
		return nil
	}

	m = gitignore.New()
	if err := m.AddFromFile(gitignorePath, base); err != nil {
		return nil
	}

	w.cacheMu.Lock()
	w.gitignoreCache.Add(dir, m)
	w.cacheMu.Unlock()
	return m
}

// InvalidateGitignoreCache drops all cached matchers, forcing them to be
// recompiled from disk on next use. Called by the watcher when a
// .gitignore file changes.
func (w *Walker) InvalidateGitignoreCache() {
	w.cacheMu.Lock()
	defer w.cacheMu.Unlock()
	w.gitignoreCache.Purge()
}

// walkSubmodules walks each initialized git submodule, yielding files with
// paths relative to the project root (e.g. "vendor/lib/file.go").
func (w *Walker) walkSubmodules(ctx context.Context, absRoot string, opts Options, maxFileSize int64, results chan<- Result) {
	submodules, err := DiscoverSubmodules(absRoot)
	if err != nil {
		slog.Warn("submodule discovery failed", slog.String("error", err.Error()))
		return
	}
	for _, sm := range submodules {
		if !sm.Initialized {
			slog.Warn("skipping uninitialized submodule", slog.String("name", sm.Name), slog.String("path", sm.Path))
			continue
		}
		smAbs := filepath.Join(absRoot, sm.Path)
		w.walkSubmoduleTree(ctx, absRoot, smAbs, sm.Path, opts, maxFileSize, results)
	}
}

func (w *Walker) walkSubmoduleTree(ctx context.Context, absRoot, smAbs, smRelRoot string, opts Options, maxFileSize int64, results chan<- Result) {
	err := filepath.WalkDir(smAbs, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return nil
		}
		relFromSm, err := filepath.Rel(smAbs, path)
		if err != nil || relFromSm == "." {
			return nil
		}
		relPath := filepath.Join(smRelRoot, relFromSm)

		if d.IsDir() {
			if d.Name() == ".git" || w.denyDir(relFromSm, opts.DenyDirs) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}
		if w.denyFile(relFromSm, opts.DenyFiles) {
			return nil
		}
		if opts.RespectGitignore && w.isGitignored(relFromSm, smAbs) {
			return nil
		}
		fileInfo, err := d.Info()
		if err != nil {
			return nil
		}
		if fileInfo.Size() > maxFileSize {
			return nil
		}
		if isBinary(path) {
			return nil
		}

		language := DetectLanguage(relFromSm)
		file := &File{
			Path:        relPath,
			AbsPath:     path,
			Size:        fileInfo.Size(),
			ModTime:     fileInfo.ModTime().UnixNano(),
			Language:    language,
			IsTest:      isTestPath(relFromSm, language),
			IsGenerated: isGeneratedFile(path, relFromSm),
		}
		select {
		case results <- Result{File: file}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
	if err != nil && err != context.Canceled {
		slog.Warn("error walking submodule", slog.String("submodule", smRelRoot), slog.String("error", err.Error()))
	}
}

// DefaultDenyDirs are excluded regardless of user configuration.
var DefaultDenyDirs = []string{
	"node_modules", ".git", "vendor", "__pycache__", "dist", "build",
	".aws", ".gcp", ".azure", ".ssh",
}

// DefaultDenyFiles are excluded regardless of user configuration: lockfiles,
// minified bundles, and credential-shaped file names.
var DefaultDenyFiles = []string{
	"*.min.js", "*.min.css", "package-lock.json", "yarn.lock", "pnpm-lock.yaml", "go.sum",
	".env", ".env.*", "*.pem", "*.key", "*.p12", "*.pfx",
	"*credentials*", "*secrets*", "*password*",
	".netrc", ".npmrc", ".pypirc",
	"id_rsa", "id_dsa", "id_ecdsa", "id_ed25519",
}
