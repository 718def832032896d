// Package index is the persistent, memory-mappable inverted index for one
// project: a Bleve-backed writer that buffers chunk adds/deletes behind a
// single commit, and a reader that compiles search queries into weighted
// boolean queries, applies deterministic score adjustments, and selects the
// top-K results by partial selection rather than a full sort.
package index

const (
	fieldContent      = "content"
	fieldPath         = "path"
	fieldSymbolName   = "symbol_name"
	fieldSymbolKind   = "symbol_kind"
	fieldParentSymbol = "parent_symbol"
	fieldSignature    = "signature"
	fieldDocComment   = "doc_comment"
	fieldLanguage     = "language"
	fieldStartLine    = "start_line"
	fieldEndLine      = "end_line"
	fieldModifiedAt   = "modified_at"
	fieldIsExported   = "is_exported"
	fieldIsTest       = "is_test"
	fieldIsGenerated  = "is_generated"
)

// Score adjustment constants applied once per candidate result (§4.5.2).
const (
	ExportedBoost    = 0.5
	TestPenalty      = 0.5
	GeneratedPenalty = 1.0
	SymbolMatchBonus = 1.0
)

// Per-field query weights (§4.5.1).
const (
	contentWeight     = 1.0
	symbolNameWeight  = 3.0
	signatureWeight   = 2.0
	docCommentWeight  = 1.5
	prefixWeight      = 0.5
	minPrefixTokenLen = 3
)

// defaultCandidateMultiplier sets, through candidateSize, how many
// documents the underlying BM25 collector retrieves per requested result
// before the engine applies its own score adjustments and partial top-K
// selection. The candidate count must exceed limit for the adjustments to
// have any effect beyond the library's own ordering.
const defaultCandidateMultiplier = 20

const minCandidates = 200

const maxCandidates = 10000

func candidateSize(limit int) int {
	size := limit * defaultCandidateMultiplier
	if size < minCandidates {
		size = minCandidates
	}
	if size > maxCandidates {
		size = maxCandidates
	}
	return size
}
