package index

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/blevesearch/bleve/v2"
	bquery "github.com/blevesearch/bleve/v2/search/query"
)

// defaultL2CacheSize is used when a Reader is constructed without an
// explicit capacity (e.g. in tests).
const defaultL2CacheSize = 512

// queryCache memoizes compiled boolean queries keyed by normalized query
// text (§3.4 L2). Compiled queries are immutable and safely shared across
// concurrent readers.
type queryCache struct {
	cache *lru.Cache[string, bquery.Query]
}

func newQueryCache(capacity int) *queryCache {
	if capacity <= 0 {
		capacity = defaultL2CacheSize
	}
	c, _ := lru.New[string, bquery.Query](capacity)
	return &queryCache{cache: c}
}

// compile returns the cached compiled query for the normalized text,
// building and memoizing it on a cache miss.
func (qc *queryCache) compile(normalized string, tokens []string) bquery.Query {
	if cached, ok := qc.cache.Get(normalized); ok {
		return cached
	}
	q := compileQuery(tokens)
	qc.cache.Add(normalized, q)
	return q
}

// compileQuery builds the conjunction (AND) of per-token weighted
// disjunctions described in §4.5.1.
func compileQuery(tokens []string) bquery.Query {
	subqueries := make([]bquery.Query, len(tokens))
	for i, t := range tokens {
		subqueries[i] = tokenSubquery(t)
	}
	return bleve.NewConjunctionQuery(subqueries...)
}

func tokenSubquery(token string) bquery.Query {
	disjuncts := []bquery.Query{
		weightedTerm(token, fieldContent, contentWeight),
		weightedTerm(token, fieldSymbolName, symbolNameWeight),
		weightedTerm(token, fieldSignature, signatureWeight),
		weightedTerm(token, fieldDocComment, docCommentWeight),
	}
	if len(token) >= minPrefixTokenLen {
		prefix := bleve.NewPrefixQuery(token)
		prefix.SetField(fieldContent)
		prefix.SetBoost(prefixWeight)
		disjuncts = append(disjuncts, prefix)
	}
	return bleve.NewDisjunctionQuery(disjuncts...)
}

func weightedTerm(token, field string, boost float64) bquery.Query {
	t := bleve.NewTermQuery(token)
	t.SetField(field)
	t.SetBoost(boost)
	return t
}

// withPathPrefix conjuncts a path-prefix filter onto a compiled query so
// that non-matching documents are excluded from scoring entirely, not just
// filtered from the result set afterward (§4.5.4).
func withPathPrefix(q bquery.Query, pathPrefix string) bquery.Query {
	if pathPrefix == "" {
		return q
	}
	prefix := bleve.NewPrefixQuery(pathPrefix)
	prefix.SetField(fieldPath)
	return bleve.NewConjunctionQuery(q, prefix)
}
