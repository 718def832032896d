// Package chunk splits source files into semantic chunks: function-, method-,
// class-, or region-scoped units, using a tree-sitter grammar when one is
// available for the file's language and a fixed-line fallback otherwise.
package chunk

import (
	"context"
)

// MaxChunkLines is the large-chunk threshold from the node-splitting edge
// case: a structural node spanning more lines than this is split into
// subchunks, each tagged with the parent symbol.
const MaxChunkLines = 400

// FallbackWindowLines is the window size used for fixed-line partitioning
// when no grammar is available for a file's language.
const FallbackWindowLines = 25

// SymbolKind classifies the structural construct a chunk was extracted
// from.
type SymbolKind string

const (
	SymbolKindFunction SymbolKind = "function"
	SymbolKindMethod   SymbolKind = "method"
	SymbolKindClass    SymbolKind = "class"
	SymbolKindStruct   SymbolKind = "struct"
	SymbolKindEnum     SymbolKind = "enum"
	SymbolKindImpl     SymbolKind = "impl"
	SymbolKindModule   SymbolKind = "module"
	SymbolKindOther    SymbolKind = "other"
)

// Chunk is one unit of indexing: a contiguous, disjoint line range of a
// source file, with structural metadata populated on a best-effort basis.
type Chunk struct {
	ID      string // "<path>:<start_line>:<end_line>", unique within a project
	Path    string // POSIX-style, relative to project root
	Content string // verbatim file bytes for [StartLine, EndLine]

	StartLine int // 1-indexed
	EndLine   int // inclusive, >= StartLine

	SymbolName   string
	SymbolKind   SymbolKind
	ParentSymbol string
	Signature    string
	DocComment   string

	Language string

	ModifiedAt int64 // unix seconds, source file mtime at index time

	IsExported  bool
	IsTest      bool
	IsGenerated bool
}

// FileInput is the input to a Chunker.
type FileInput struct {
	Path        string
	Content     []byte
	Language    string
	ModifiedAt  int64
	IsTest      bool
	IsGenerated bool
}

// Chunker splits one file into an ordered sequence of chunks covering
// disjoint, non-empty line ranges.
type Chunker interface {
	Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error)
	SupportedExtensions() []string
}

// Tree is a parsed abstract syntax tree.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Node is one node of a parsed AST, detached from the tree-sitter library
// types so the rest of the package only depends on this shape.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
	HasError   bool
}

// Point is a row/column position in source text.
type Point struct {
	Row    uint32 // 0-indexed
	Column uint32
}

// LanguageConfig describes how to recognize structural nodes for one
// tree-sitter grammar.
type LanguageConfig struct {
	Name       string
	Extensions []string

	FunctionTypes  []string
	ClassTypes     []string
	InterfaceTypes []string
	MethodTypes    []string
	TypeDefTypes   []string
	ConstantTypes  []string
	VariableTypes  []string

	NameField string
}
