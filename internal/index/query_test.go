package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bquery "github.com/blevesearch/bleve/v2/search/query"
)

func TestQueryCacheReusesCompiledQueryForSameNormalizedText(t *testing.T) {
	qc := newQueryCache(0)
	a := qc.compile("foo bar", []string{"foo", "bar"})
	b := qc.compile("foo bar", []string{"foo", "bar"})
	assert.Same(t, a, b)
}

func TestQueryCacheCompilesDistinctQueriesSeparately(t *testing.T) {
	qc := newQueryCache(0)
	a := qc.compile("foo", []string{"foo"})
	b := qc.compile("bar", []string{"bar"})
	assert.NotSame(t, a, b)
}

func TestTokenSubqueryIncludesPrefixOnlyForLongTokens(t *testing.T) {
	short, ok := tokenSubquery("ab").(*bquery.DisjunctionQuery)
	require.True(t, ok)
	long, ok := tokenSubquery("abc").(*bquery.DisjunctionQuery)
	require.True(t, ok)

	assert.Len(t, short.Disjuncts, 4)
	assert.Len(t, long.Disjuncts, 5)
}

func TestWithPathPrefixNoopOnEmptyPrefix(t *testing.T) {
	q := compileQuery([]string{"foo"})
	assert.Same(t, q, withPathPrefix(q, ""))
}
