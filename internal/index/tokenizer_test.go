package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeCodeSplitsWhitespaceAndPunctuation(t *testing.T) {
	assert.Equal(t, []string{"hello", "world"}, tokenizeCode("hello world"))
	assert.Equal(t, []string{"foo", "bar", "baz"}, tokenizeCode("foo.bar(baz)"))
}

func TestTokenizeCodeSplitsCamelAndSnakeCase(t *testing.T) {
	cases := []struct {
		input  string
		expect []string
	}{
		{"getUserById", []string{"get", "user", "by", "id"}},
		{"HTTPHandler", []string{"http", "handler"}},
		{"parse_http_request", []string{"parse", "http", "request"}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expect, tokenizeCode(tc.input))
	}
}

func TestTokenizeCodeDropsShortTokens(t *testing.T) {
	assert.Equal(t, []string{"ab"}, tokenizeCode("a ab"))
}

func TestQueryTokensKeepsSingleCharacterTokens(t *testing.T) {
	assert.Equal(t, []string{"a"}, queryTokens("a"))
}

func TestNormalizeQueryCollapsesWhitespaceAndCase(t *testing.T) {
	assert.Equal(t, "foo bar", normalizeQuery("  Foo   BAR  "))
}
