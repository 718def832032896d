package index

import (
	"regexp"
	"strings"
	"unicode"
)

var wordRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// tokenizeCode splits text into lowercase, code-aware tokens: identifiers
// are further split on camelCase and snake_case boundaries, and tokens
// shorter than two characters are dropped. It backs both the index-time
// analyzer and query compilation, so the two always agree on token
// boundaries.
func tokenizeCode(text string) []string {
	var tokens []string
	for _, word := range wordRegex.FindAllString(text, -1) {
		for _, t := range splitIdentifier(word) {
			lower := strings.ToLower(t)
			if len(lower) >= 2 {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}

// splitIdentifier splits snake_case then camelCase/PascalCase boundaries.
func splitIdentifier(token string) []string {
	if strings.Contains(token, "_") {
		var result []string
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				result = append(result, splitCamelCase(part)...)
			}
		}
		return result
	}
	return splitCamelCase(token)
}

// splitCamelCase splits camelCase and PascalCase identifiers, keeping runs
// of uppercase letters (acronyms) together: "parseHTTPRequest" ->
// ["parse", "HTTP", "Request"].
func splitCamelCase(s string) []string {
	if s == "" {
		return nil
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevIsLower || nextIsLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

// codeStopWords are common-enough tokens in source text that matching on
// them alone is rarely useful; filtered from the index-time analyzer only,
// never from query tokenization (the query engine needs every caller token
// to conjunction against, even "if" or "for").
var codeStopWords = buildStopWordSet([]string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
})

func buildStopWordSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}

// normalizeQuery is the text used as the L1/L2 cache key: lowercased,
// whitespace-collapsed.
func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// queryTokens tokenizes a raw query string with the same word-boundary
// splitting as index-time content, but keeps every non-empty token (the
// index-time analyzer additionally drops single-character terms and stop
// words; a one-character or stop-word query token is still a valid,
// if likely fruitless, conjunction term).
func queryTokens(q string) []string {
	var tokens []string
	for _, word := range wordRegex.FindAllString(q, -1) {
		for _, t := range splitIdentifier(word) {
			if lower := strings.ToLower(t); lower != "" {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}
