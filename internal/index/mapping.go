package index

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
)

const (
	tokenizerName  = "greppy_code_tokenizer"
	stopFilterName = "greppy_code_stop"
	analyzerName   = "greppy_code_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(tokenizerName, tokenizerConstructor)
	_ = registry.RegisterTokenFilter(stopFilterName, stopFilterConstructor)
}

// buildIndexMapping constructs the schema of §3.1: tokenized text fields for
// content/symbol_name/signature/doc_comment, keyword fields for
// path/language/symbol_kind/parent_symbol, numeric fields for the line
// range and modified_at, and boolean fields for the three visibility flags.
func buildIndexMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	if err := im.AddCustomAnalyzer(analyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": tokenizerName,
		"token_filters": []string{
			lowercase.Name,
			stopFilterName,
		},
	}); err != nil {
		return nil, fmt.Errorf("register code analyzer: %w", err)
	}
	im.DefaultAnalyzer = analyzerName

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(fieldContent, textField())
	doc.AddFieldMappingsAt(fieldSymbolName, textField())
	doc.AddFieldMappingsAt(fieldSignature, textField())
	doc.AddFieldMappingsAt(fieldDocComment, textField())

	doc.AddFieldMappingsAt(fieldPath, keywordField())
	doc.AddFieldMappingsAt(fieldLanguage, keywordField())
	doc.AddFieldMappingsAt(fieldSymbolKind, keywordField())
	doc.AddFieldMappingsAt(fieldParentSymbol, keywordField())

	doc.AddFieldMappingsAt(fieldStartLine, numericField())
	doc.AddFieldMappingsAt(fieldEndLine, numericField())
	doc.AddFieldMappingsAt(fieldModifiedAt, numericField())

	doc.AddFieldMappingsAt(fieldIsExported, boolField())
	doc.AddFieldMappingsAt(fieldIsTest, boolField())
	doc.AddFieldMappingsAt(fieldIsGenerated, boolField())

	im.DefaultMapping = doc
	return im, nil
}

func textField() *mapping.FieldMapping {
	fm := bleve.NewTextFieldMapping()
	fm.Analyzer = analyzerName
	fm.Store = true
	fm.IncludeInAll = false
	return fm
}

func keywordField() *mapping.FieldMapping {
	fm := bleve.NewTextFieldMapping()
	fm.Analyzer = keyword.Name
	fm.Store = true
	fm.IncludeInAll = false
	return fm
}

func numericField() *mapping.FieldMapping {
	fm := bleve.NewNumericFieldMapping()
	fm.Store = true
	fm.IncludeInAll = false
	return fm
}

func boolField() *mapping.FieldMapping {
	fm := bleve.NewBooleanFieldMapping()
	fm.Store = true
	fm.IncludeInAll = false
	return fm
}

// tokenizerConstructor builds the shared tokenizer registered under
// tokenizerName; it is the single source of word-boundary splitting used
// by both the indexing analyzer and query compilation.
func tokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &codeTokenizer{}, nil
}

type codeTokenizer struct{}

func (t *codeTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := tokenizeCode(text)

	stream := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0
	lowerText := strings.ToLower(text)

	for _, token := range tokens {
		start := strings.Index(lowerText[offset:], token)
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(token)

		stream = append(stream, &analysis.Token{
			Term:     []byte(token),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}
	return stream
}

func stopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &codeStopFilter{stopWords: codeStopWords}, nil
}

type codeStopFilter struct {
	stopWords map[string]struct{}
}

func (f *codeStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		if _, isStop := f.stopWords[strings.ToLower(string(token.Term))]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
