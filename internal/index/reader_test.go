package index

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greppy/greppy/internal/chunk"
	greperrors "github.com/greppy/greppy/internal/errors"
)

func newTestReader(t *testing.T, chunks []*chunk.Chunk) *Reader {
	t.Helper()
	w, err := NewWriter("")
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	require.NoError(t, w.ReindexAll(context.Background(), nil, chunks))
	return &Reader{index: w.index, cache: newQueryCache(0)}
}

func TestSearchEmptyQueryReturnsQueryParseError(t *testing.T) {
	r := newTestReader(t, nil)
	_, err := r.Search(context.Background(), "   ", 10, "")
	require.Error(t, err)
	assert.Equal(t, greperrors.CodeQueryParseError, greperrors.Code(err))
}

func TestSearchNoIndexOnMissingDirectory(t *testing.T) {
	_, err := OpenReader("/nonexistent/path/that/does/not/exist")
	require.Error(t, err)
	assert.Equal(t, greperrors.CodeNoIndex, greperrors.Code(err))
}

func TestSearchRanksExportedSymbolsHigher(t *testing.T) {
	exported := sampleChunk("a.go", "Greet", 1, 1)
	exported.IsExported = true
	unexported := sampleChunk("b.go", "greet", 1, 1)
	unexported.IsExported = false

	r := newTestReader(t, []*chunk.Chunk{exported, unexported})
	results, err := r.Search(context.Background(), "greet", 10, "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a.go", results[0].Path)
}

func TestSearchPenalizesTestAndGeneratedFiles(t *testing.T) {
	plain := sampleChunk("a.go", "Handle", 1, 1)
	testFile := sampleChunk("a_test.go", "Handle", 1, 1)
	testFile.IsTest = true
	generated := sampleChunk("gen.go", "Handle", 1, 1)
	generated.IsGenerated = true

	r := newTestReader(t, []*chunk.Chunk{plain, testFile, generated})
	results, err := r.Search(context.Background(), "handle", 10, "")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "a.go", results[0].Path)
}

func TestSearchSymbolMatchBonus(t *testing.T) {
	bodyMatch := &chunk.Chunk{ID: "a.go:1:1", Path: "a.go", Content: "func helper() { process() }", StartLine: 1, EndLine: 1, SymbolName: "helper", SymbolKind: chunk.SymbolKindFunction, Language: "go"}
	symbolMatch := &chunk.Chunk{ID: "b.go:1:1", Path: "b.go", Content: "func process() {}", StartLine: 1, EndLine: 1, SymbolName: "process", SymbolKind: chunk.SymbolKindFunction, Language: "go"}

	r := newTestReader(t, []*chunk.Chunk{bodyMatch, symbolMatch})
	results, err := r.Search(context.Background(), "process", 10, "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "b.go", results[0].Path)
}

func TestSearchFiltersByPathPrefix(t *testing.T) {
	inSrc := sampleChunk("src/a.go", "Greet", 1, 1)
	inVendor := sampleChunk("vendor/a.go", "Greet", 1, 1)

	r := newTestReader(t, []*chunk.Chunk{inSrc, inVendor})
	results, err := r.Search(context.Background(), "greet", 10, "src/")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "src/a.go", results[0].Path)
}

func TestSearchRespectsLimit(t *testing.T) {
	chunks := make([]*chunk.Chunk, 5)
	for i := range chunks {
		chunks[i] = sampleChunk("f.go", "Greet", i+1, i+1)
		chunks[i].ID = fmt.Sprintf("f.go:%d:%d", i+1, i+1)
	}
	r := newTestReader(t, chunks)
	results, err := r.Search(context.Background(), "greet", 2, "")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
