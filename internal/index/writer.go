package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/greppy/greppy/internal/chunk"
	greperrors "github.com/greppy/greppy/internal/errors"
)

// Writer is the single writer for one project's index. Callers must not
// share a Writer across goroutines without external synchronization beyond
// what Writer itself provides; at most one commit is in flight at a time.
type Writer struct {
	mu     sync.Mutex
	index  bleve.Index
	path   string
	closed bool

	batch *bleve.Batch

	// onCommit, when set, is invoked after every successful commit so the
	// daemon can invalidate this project's L1 cache entries.
	onCommit func()
}

// NewWriter opens or creates the index directory at path. An empty path
// opens an in-memory index for tests.
func NewWriter(path string) (*Writer, error) {
	idx, err := openOrCreate(path)
	if err != nil {
		return nil, greperrors.IndexError(fmt.Sprintf("open index at %s", path), err)
	}
	return &Writer{index: idx, path: path}, nil
}

// Index returns the underlying open bleve.Index, so a Reader can be
// attached to the same handle via NewReaderFromIndex instead of opening
// the directory a second time.
func (w *Writer) Index() bleve.Index {
	return w.index
}

// OnCommit registers a callback invoked after each successful commit.
func (w *Writer) OnCommit(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onCommit = fn
}

// AddChunks appends chunks to the pending write buffer (§4.4). They are
// not visible to readers until Commit.
func (w *Writer) AddChunks(chunks []*chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return greperrors.IndexError("index is closed", nil)
	}
	w.ensureBatch()

	for _, c := range chunks {
		if err := w.batch.Index(c.ID, toDocument(c)); err != nil {
			return greperrors.IndexError(fmt.Sprintf("buffer chunk %s", c.ID), err)
		}
	}
	return nil
}

// DeleteByPath schedules deletion of every chunk currently stored under
// path. It resolves existing document IDs for path and is safe to call
// even when path has never been indexed.
func (w *Writer) DeleteByPath(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return greperrors.IndexError("index is closed", nil)
	}

	ids, err := w.idsForPathLocked(path)
	if err != nil {
		return greperrors.IndexError(fmt.Sprintf("resolve existing chunks for %s", path), err)
	}
	if len(ids) == 0 {
		return nil
	}

	w.ensureBatch()
	for _, id := range ids {
		w.batch.Delete(id)
	}
	return nil
}

func (w *Writer) idsForPathLocked(path string) ([]string, error) {
	q := bleve.NewTermQuery(path)
	q.SetField(fieldPath)

	req := bleve.NewSearchRequest(q)
	req.Size = maxCandidates
	req.Fields = nil

	res, err := w.index.Search(req)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(res.Hits))
	for i, hit := range res.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

func (w *Writer) ensureBatch() {
	if w.batch == nil {
		w.batch = w.index.NewBatch()
	}
}

// Commit atomically makes all buffered adds and deletes visible to new
// readers (§4.4). An empty pending batch is a no-op.
func (w *Writer) Commit(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return greperrors.IndexError("index is closed", nil)
	}
	if w.batch == nil {
		return nil
	}

	batch := w.batch
	w.batch = nil

	if err := w.index.Batch(batch); err != nil {
		return greperrors.IndexError("commit batch", err)
	}
	if w.onCommit != nil {
		w.onCommit()
	}
	return nil
}

// ReindexAll performs the full-index sequence of §4.4: delete every walked
// path, add every new chunk, then a single commit.
func (w *Writer) ReindexAll(ctx context.Context, walkedPaths []string, chunks []*chunk.Chunk) error {
	for _, p := range walkedPaths {
		if err := w.DeleteByPath(p); err != nil {
			return err
		}
	}
	if err := w.AddChunks(chunks); err != nil {
		return err
	}
	return w.Commit(ctx)
}

// IncrementalUpdate applies the incremental-update sequence of §4.4: for
// each changed path, delete then add its fresh chunks; for each removed
// path, delete only. One commit for the whole batch.
func (w *Writer) IncrementalUpdate(ctx context.Context, changed map[string][]*chunk.Chunk, removed []string) error {
	for path, chunks := range changed {
		if err := w.DeleteByPath(path); err != nil {
			return err
		}
		if err := w.AddChunks(chunks); err != nil {
			return err
		}
	}
	for _, path := range removed {
		if err := w.DeleteByPath(path); err != nil {
			return err
		}
	}
	return w.Commit(ctx)
}

// Close releases the underlying index handle.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.index.Close()
}

func toDocument(c *chunk.Chunk) map[string]interface{} {
	return map[string]interface{}{
		fieldContent:      c.Content,
		fieldPath:         c.Path,
		fieldSymbolName:   c.SymbolName,
		fieldSymbolKind:   string(c.SymbolKind),
		fieldParentSymbol: c.ParentSymbol,
		fieldSignature:    c.Signature,
		fieldDocComment:   c.DocComment,
		fieldLanguage:     c.Language,
		fieldStartLine:    c.StartLine,
		fieldEndLine:      c.EndLine,
		fieldModifiedAt:   c.ModifiedAt,
		fieldIsExported:   c.IsExported,
		fieldIsTest:       c.IsTest,
		fieldIsGenerated:  c.IsGenerated,
	}
}
