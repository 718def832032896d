package index

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"

	greperrors "github.com/greppy/greppy/internal/errors"
)

var resultFields = []string{
	fieldPath, fieldContent, fieldSymbolName, fieldSymbolKind, fieldLanguage,
	fieldStartLine, fieldEndLine, fieldIsExported, fieldIsTest, fieldIsGenerated,
}

// Reader is the query engine over one project's committed index (§4.5).
type Reader struct {
	index bleve.Index
	cache *queryCache
}

// OpenReader opens an existing index directory read-only from the reader's
// perspective (Bleve readers observe new commits at the next query
// boundary, per §4.4's concurrency note).
func OpenReader(path string) (*Reader, error) {
	return OpenReaderWithCacheSize(path, 0)
}

// OpenReaderWithCacheSize is OpenReader with an explicit L2 query-cache
// capacity (§6.4's cache.query_cache_capacity); capacity <= 0 uses the
// default.
func OpenReaderWithCacheSize(path string, capacity int) (*Reader, error) {
	if err := validateIntegrity(path); err != nil {
		return nil, greperrors.IndexCorrupted(path, err)
	}
	idx, err := bleve.Open(path)
	if err != nil {
		if err == bleve.ErrorIndexPathDoesNotExist {
			return nil, greperrors.NoIndex(path)
		}
		if isCorruptionError(err) {
			return nil, greperrors.IndexCorrupted(path, err)
		}
		return nil, greperrors.IO(fmt.Sprintf("open index at %s", path), err)
	}
	return &Reader{index: idx, cache: newQueryCache(capacity)}, nil
}

// NewReaderFromIndex builds a Reader over an already-open bleve.Index,
// shared with a Writer in the same process. Bleve's bolt-backed store
// takes an exclusive lock per open, so a project served by this daemon
// opens the index once via NewWriter and attaches one Reader to that
// same handle rather than reopening the directory.
func NewReaderFromIndex(idx bleve.Index) *Reader {
	return NewReaderFromIndexWithCacheSize(idx, 0)
}

// NewReaderFromIndexWithCacheSize is NewReaderFromIndex with an explicit
// L2 query-cache capacity; capacity <= 0 uses the default.
func NewReaderFromIndexWithCacheSize(idx bleve.Index, capacity int) *Reader {
	return &Reader{index: idx, cache: newQueryCache(capacity)}
}

// Close releases the underlying index handle.
func (r *Reader) Close() error {
	return r.index.Close()
}

// QueryCacheLen returns the number of compiled queries currently held in
// this reader's L2 cache (§3.4).
func (r *Reader) QueryCacheLen() int {
	return r.cache.cache.Len()
}

// Search compiles query, retrieves candidates, applies the deterministic
// score adjustments of §4.5.2, and returns the top `limit` results
// selected by partial selection (§4.5.3), optionally restricted to paths
// sharing pathPrefix (§4.5.4).
func (r *Reader) Search(ctx context.Context, queryText string, limit int, pathPrefix string) ([]*Result, error) {
	normalized := normalizeQuery(queryText)
	tokens := queryTokens(normalized)
	if len(tokens) == 0 {
		return nil, greperrors.QueryParseError(queryText)
	}
	if limit <= 0 {
		return nil, nil
	}

	compiled := r.cache.compile(normalized, tokens)
	compiled = withPathPrefix(compiled, pathPrefix)

	req := bleve.NewSearchRequestOptions(compiled, candidateSize(limit), 0, false)
	req.Fields = resultFields

	res, err := r.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, greperrors.IO("search index", err)
	}

	candidates := make([]*candidate, 0, len(res.Hits))
	for _, hit := range res.Hits {
		doc := materialize(hit)
		score := adjustScore(doc, tokens)
		candidates = append(candidates, &candidate{result: doc.result, score: score})
	}

	selected := selectTopK(candidates, limit)
	out := make([]*Result, len(selected))
	for i, c := range selected {
		c.result.Score = c.score
		out[i] = c.result
	}
	return out, nil
}

// adjustScore implements the final_score formula of §4.5.2, evaluated
// exactly once per candidate.
func adjustScore(doc *scoredDoc, tokens []string) float64 {
	score := doc.result.Score
	if doc.isExported {
		score += ExportedBoost
	}
	if doc.isTest {
		score -= TestPenalty
	}
	if doc.isGenerated {
		score -= GeneratedPenalty
	}
	if symbolMatches(doc.result.SymbolName, tokens) {
		score += SymbolMatchBonus
	}
	return score
}

// symbolMatches reports whether any query token appears verbatim
// (case-insensitively) in symbolName.
func symbolMatches(symbolName string, tokens []string) bool {
	if symbolName == "" {
		return false
	}
	for _, t := range tokens {
		if containsFold(symbolName, t) {
			return true
		}
	}
	return false
}
