package chunk

import (
	"context"
	"fmt"
	"strings"
)

// CodeChunker implements AST-aware chunking using tree-sitter grammars,
// falling back to fixed-line partitioning for unsupported languages or
// on parse failure.
type CodeChunker struct {
	parser    *Parser
	extractor *extractor
	registry  *LanguageRegistry
}

// NewCodeChunker constructs a CodeChunker backed by the default language
// registry.
func NewCodeChunker() *CodeChunker {
	registry := DefaultRegistry()
	return &CodeChunker{
		parser:    NewParserWithRegistry(registry),
		extractor: newExtractor(registry),
		registry:  registry,
	}
}

// Close releases the underlying tree-sitter parser.
func (c *CodeChunker) Close() {
	if c.parser != nil {
		c.parser.Close()
	}
}

// SupportedExtensions returns the extensions with a registered grammar.
func (c *CodeChunker) SupportedExtensions() []string {
	return c.registry.SupportedExtensions()
}

// Chunk splits file into structural chunks when a grammar is available,
// else falls back to fixed-line partitioning. Parser errors are non-fatal:
// the file is chunked by lines instead.
func (c *CodeChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	if len(file.Content) == 0 {
		return nil, nil
	}

	if _, supported := c.registry.GetByName(file.Language); !supported {
		return c.chunkByLines(file), nil
	}

	tree, err := c.parser.Parse(ctx, file.Content, file.Language)
	if err != nil {
		return c.chunkByLines(file), nil
	}

	nodes := c.findSymbolNodes(tree, file.Language)
	if len(nodes) == 0 {
		return c.chunkByLines(file), nil
	}

	var chunks []*Chunk
	for _, n := range nodes {
		chunks = append(chunks, c.chunksFromNode(n, tree, file)...)
	}
	return chunks, nil
}

type matchedNode struct {
	node *Node
	info *symbolInfo
}

// findSymbolNodes walks the tree collecting every node that matches the
// language's structural node-type sets.
func (c *CodeChunker) findSymbolNodes(tree *Tree, language string) []*matchedNode {
	config, ok := c.registry.GetByName(language)
	if !ok {
		return nil
	}

	var matches []*matchedNode
	tree.Root.Walk(func(n *Node) bool {
		if n.Type == "lexical_declaration" || n.Type == "variable_declaration" {
			if info := c.extractor.extractSpecial(n, tree.Source, language); info != nil {
				matches = append(matches, &matchedNode{node: n, info: info})
				return true
			}
		}

		kind, found := c.extractor.kindFor(n, tree.Source, config, language)
		if !found {
			return true
		}
		name := c.extractor.extractName(n, tree.Source, language)
		if name == "" {
			return true
		}
		matches = append(matches, &matchedNode{
			node: n,
			info: &symbolInfo{
				Name:       name,
				Kind:       kind,
				StartLine:  int(n.StartPoint.Row) + 1,
				EndLine:    int(n.EndPoint.Row) + 1,
				Signature:  extractSignature(n, tree.Source, kind, language),
				DocComment: extractDocComment(n, tree.Source, language),
				Exported:   c.extractor.isNodeExported(n, tree.Source, name, language),
			},
		})
		return true
	})
	return matches
}

// chunksFromNode emits one chunk for a matched node, or splits it into
// subchunks when it exceeds MaxChunkLines.
func (c *CodeChunker) chunksFromNode(m *matchedNode, tree *Tree, file *FileInput) []*Chunk {
	info := m.info
	lineCount := info.EndLine - info.StartLine + 1
	if lineCount <= MaxChunkLines {
		content := string(tree.Source[m.node.StartByte:m.node.EndByte])
		return []*Chunk{c.newChunk(file, content, info, "")}
	}
	return c.splitLargeNode(m, tree, file)
}

// splitLargeNode breaks an oversized node into MaxChunkLines-sized
// subchunks, each tagged with the parent symbol.
func (c *CodeChunker) splitLargeNode(m *matchedNode, tree *Tree, file *FileInput) []*Chunk {
	content := string(tree.Source[m.node.StartByte:m.node.EndByte])
	lines := strings.Split(content, "\n")

	var chunks []*Chunk
	for i := 0; i < len(lines); i += MaxChunkLines {
		end := i + MaxChunkLines
		if end > len(lines) {
			end = len(lines)
		}
		sub := &symbolInfo{
			Name:      m.info.Name,
			Kind:      m.info.Kind,
			StartLine: m.info.StartLine + i,
			EndLine:   m.info.StartLine + end - 1,
			Exported:  m.info.Exported,
		}
		if i == 0 {
			sub.Signature = m.info.Signature
			sub.DocComment = m.info.DocComment
		}
		chunkContent := strings.Join(lines[i:end], "\n")
		chunks = append(chunks, c.newChunk(file, chunkContent, sub, m.info.Name))
	}
	return chunks
}

func (c *CodeChunker) newChunk(file *FileInput, content string, info *symbolInfo, parent string) *Chunk {
	return &Chunk{
		ID:           fmt.Sprintf("%s:%d:%d", file.Path, info.StartLine, info.EndLine),
		Path:         file.Path,
		Content:      content,
		StartLine:    info.StartLine,
		EndLine:      info.EndLine,
		SymbolName:   info.Name,
		SymbolKind:   info.Kind,
		ParentSymbol: parent,
		Signature:    info.Signature,
		DocComment:   info.DocComment,
		Language:     file.Language,
		ModifiedAt:   file.ModifiedAt,
		IsExported:   info.Exported,
		IsTest:       file.IsTest,
		IsGenerated:  file.IsGenerated,
	}
}

// chunkByLines partitions a file into fixed windows with no symbol
// metadata, used when no grammar is available or parsing failed.
func (c *CodeChunker) chunkByLines(file *FileInput) []*Chunk {
	content := string(file.Content)
	if strings.TrimSpace(content) == "" {
		return nil
	}
	lines := strings.Split(content, "\n")

	var chunks []*Chunk
	for i := 0; i < len(lines); i += FallbackWindowLines {
		end := i + FallbackWindowLines
		if end > len(lines) {
			end = len(lines)
		}
		startLine := i + 1
		endLine := end
		chunks = append(chunks, &Chunk{
			ID:          fmt.Sprintf("%s:%d:%d", file.Path, startLine, endLine),
			Path:        file.Path,
			Content:     strings.Join(lines[i:end], "\n"),
			StartLine:   startLine,
			EndLine:     endLine,
			Language:    file.Language,
			ModifiedAt:  file.ModifiedAt,
			IsTest:      file.IsTest,
			IsGenerated: file.IsGenerated,
		})
	}
	return chunks
}
