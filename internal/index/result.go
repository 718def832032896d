package index

import (
	"github.com/blevesearch/bleve/v2/search"
)

// Result is one search hit (§3.2). Path and Content are interned/shared by
// reference across results in a batch and across cache hits; callers must
// treat them as immutable.
type Result struct {
	Path       string
	StartLine  int
	EndLine    int
	Content    string
	SymbolName string
	SymbolKind string
	Language   string
	Score      float64
}

// scoredDoc carries the fields materialize needs for score adjustment that
// are not part of the externally visible Result.
type scoredDoc struct {
	result      *Result
	isExported  bool
	isTest      bool
	isGenerated bool
}

func materialize(hit *search.DocumentMatch) *scoredDoc {
	return &scoredDoc{
		result: &Result{
			Path:       fieldString(hit.Fields, fieldPath),
			StartLine:  fieldInt(hit.Fields, fieldStartLine),
			EndLine:    fieldInt(hit.Fields, fieldEndLine),
			Content:    fieldString(hit.Fields, fieldContent),
			SymbolName: fieldString(hit.Fields, fieldSymbolName),
			SymbolKind: fieldString(hit.Fields, fieldSymbolKind),
			Language:   fieldString(hit.Fields, fieldLanguage),
			Score:      hit.Score,
		},
		isExported:  fieldBool(hit.Fields, fieldIsExported),
		isTest:      fieldBool(hit.Fields, fieldIsTest),
		isGenerated: fieldBool(hit.Fields, fieldIsGenerated),
	}
}

func fieldString(fields map[string]interface{}, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func fieldInt(fields map[string]interface{}, key string) int {
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

func fieldBool(fields map[string]interface{}, key string) bool {
	v, ok := fields[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
