package chunk

import (
	"strings"
	"unicode"
)

// symbolInfo is what a structural node yields before it is turned into a
// Chunk: identity, classification, and the pieces used for the signature
// and doc_comment fields.
type symbolInfo struct {
	Name       string
	Kind       SymbolKind
	StartLine  int
	EndLine    int
	Signature  string
	DocComment string
	Exported   bool
}

// extractor turns tree-sitter nodes matched by a LanguageConfig's node-type
// sets into symbolInfo values.
type extractor struct {
	registry *LanguageRegistry
}

func newExtractor(registry *LanguageRegistry) *extractor {
	return &extractor{registry: registry}
}

// kindFor classifies a matched node type for the given language, using the
// language's node-type sets augmented by structure-specific cases (Go
// struct vs. non-struct type declarations).
func (e *extractor) kindFor(n *Node, source []byte, config *LanguageConfig, language string) (SymbolKind, bool) {
	for _, t := range config.FunctionTypes {
		if n.Type == t {
			return SymbolKindFunction, true
		}
	}
	for _, t := range config.MethodTypes {
		if n.Type == t {
			return SymbolKindMethod, true
		}
	}
	for _, t := range config.ClassTypes {
		if n.Type == t {
			return SymbolKindClass, true
		}
	}
	for _, t := range config.InterfaceTypes {
		if n.Type == t {
			return SymbolKindOther, true
		}
	}
	for _, t := range config.TypeDefTypes {
		if n.Type == t {
			if language == "go" {
				return goTypeDeclKind(n), true
			}
			return SymbolKindOther, true
		}
	}
	for _, t := range config.ConstantTypes {
		if n.Type == t {
			return SymbolKindOther, true
		}
	}
	for _, t := range config.VariableTypes {
		if n.Type == t {
			return SymbolKindOther, true
		}
	}
	return "", false
}

// goTypeDeclKind distinguishes struct type declarations from every other
// type declaration (interfaces, aliases, named non-struct types) within a
// Go type_declaration node.
func goTypeDeclKind(n *Node) SymbolKind {
	for _, child := range n.Children {
		if child.Type != "type_spec" {
			continue
		}
		for _, grandchild := range child.Children {
			switch grandchild.Type {
			case "struct_type":
				return SymbolKindStruct
			case "interface_type":
				return SymbolKindOther
			}
		}
	}
	return SymbolKindOther
}

// extractName extracts the declared identifier for a node, per language.
func (e *extractor) extractName(n *Node, source []byte, language string) string {
	switch language {
	case "go":
		return extractGoName(n, source)
	case "typescript", "tsx", "javascript", "jsx":
		return extractJSName(n, source)
	case "python":
		return extractPythonName(n, source)
	default:
		for _, child := range n.Children {
			if child.Type == "identifier" {
				return child.GetContent(source)
			}
		}
	}
	return ""
}

func extractGoName(n *Node, source []byte) string {
	switch n.Type {
	case "function_declaration":
		for _, child := range n.Children {
			if child.Type == "identifier" {
				return child.GetContent(source)
			}
		}
	case "method_declaration":
		for _, child := range n.Children {
			if child.Type == "field_identifier" {
				return child.GetContent(source)
			}
		}
	case "type_declaration":
		for _, child := range n.Children {
			if child.Type == "type_spec" {
				for _, gc := range child.Children {
					if gc.Type == "type_identifier" {
						return gc.GetContent(source)
					}
				}
			}
		}
	case "const_declaration":
		for _, child := range n.Children {
			if child.Type == "const_spec" {
				for _, gc := range child.Children {
					if gc.Type == "identifier" {
						return gc.GetContent(source)
					}
				}
			}
		}
	case "var_declaration":
		for _, child := range n.Children {
			if child.Type == "var_spec" {
				for _, gc := range child.Children {
					if gc.Type == "identifier" {
						return gc.GetContent(source)
					}
				}
			}
		}
	}
	return ""
}

func extractJSName(n *Node, source []byte) string {
	if n.Type == "lexical_declaration" || n.Type == "variable_declaration" {
		for _, child := range n.Children {
			if child.Type == "variable_declarator" {
				for _, gc := range child.Children {
					if gc.Type == "identifier" {
						return gc.GetContent(source)
					}
				}
			}
		}
	}
	for _, child := range n.Children {
		if child.Type == "identifier" || child.Type == "type_identifier" {
			return child.GetContent(source)
		}
	}
	return ""
}

func extractPythonName(n *Node, source []byte) string {
	for _, child := range n.Children {
		if child.Type == "identifier" {
			return child.GetContent(source)
		}
	}
	return ""
}

// extractSpecial handles JS/TS `const name = () => {}` and function
// expressions, which the grammar represents as a variable declaration
// rather than a function_declaration node.
func (e *extractor) extractSpecial(n *Node, source []byte, language string) *symbolInfo {
	switch language {
	case "typescript", "tsx", "javascript", "jsx":
		if n.Type != "lexical_declaration" && n.Type != "variable_declaration" {
			return nil
		}
		for _, child := range n.Children {
			if child.Type != "variable_declarator" {
				continue
			}
			var name string
			var hasFunction bool
			for _, gc := range child.Children {
				if gc.Type == "identifier" {
					name = gc.GetContent(source)
				}
				if gc.Type == "arrow_function" || gc.Type == "function" || gc.Type == "function_expression" {
					hasFunction = true
				}
			}
			if name != "" && hasFunction {
				content := n.GetContent(source)
				return &symbolInfo{
					Name:      name,
					Kind:      SymbolKindFunction,
					StartLine: int(n.StartPoint.Row) + 1,
					EndLine:   int(n.EndPoint.Row) + 1,
					Signature: extractFunctionSignature(content, language),
					Exported:  isExportedJS(n, source),
				}
			}
		}
	}
	return nil
}

// extractDocComment walks backward from a node's start, collecting
// contiguous leading comment lines in the language's comment syntax.
func extractDocComment(n *Node, source []byte, language string) string {
	lineStart := int(n.StartByte)
	for lineStart > 0 && source[lineStart-1] != '\n' {
		lineStart--
	}
	if lineStart <= 1 {
		return ""
	}

	var commentLines []string
	pos := lineStart - 1

	for pos > 0 {
		prevLineEnd := pos
		pos--
		for pos > 0 && source[pos] != '\n' {
			pos--
		}
		prevLineStart := pos
		if pos > 0 {
			prevLineStart++
		}
		prevLine := strings.TrimSpace(string(source[prevLineStart:prevLineEnd]))

		switch language {
		case "go", "typescript", "tsx", "javascript", "jsx":
			if strings.HasPrefix(prevLine, "//") {
				commentLines = append([]string{strings.TrimPrefix(prevLine, "//")}, commentLines...)
				continue
			}
		case "python":
			if strings.HasPrefix(prevLine, "#") {
				commentLines = append([]string{strings.TrimPrefix(prevLine, "#")}, commentLines...)
				continue
			}
		}
		break
	}

	if len(commentLines) == 0 {
		return ""
	}
	return strings.TrimSpace(strings.Join(commentLines, "\n"))
}

// extractSignature derives a node's signature from its first source line:
// for functions, methods, and class/struct-like kinds, that line cut
// before any opening brace; SymbolKindOther yields no signature.
func extractSignature(n *Node, source []byte, kind SymbolKind, language string) string {
	content := n.GetContent(source)
	if content == "" {
		return ""
	}
	switch kind {
	case SymbolKindFunction, SymbolKindMethod:
		return extractFunctionSignature(content, language)
	case SymbolKindClass, SymbolKindStruct, SymbolKindEnum, SymbolKindImpl, SymbolKindModule:
		return extractTypeSignature(content, language)
	}
	return ""
}

func extractFunctionSignature(content, language string) string {
	firstLine := strings.TrimSpace(strings.SplitN(content, "\n", 2)[0])
	switch language {
	case "go", "typescript", "tsx", "javascript", "jsx":
		if idx := strings.Index(firstLine, "{"); idx != -1 {
			return strings.TrimSpace(firstLine[:idx])
		}
		return firstLine
	default:
		return firstLine
	}
}

func extractTypeSignature(content, language string) string {
	firstLine := strings.TrimSpace(strings.SplitN(content, "\n", 2)[0])
	if idx := strings.Index(firstLine, "{"); idx != -1 {
		return strings.TrimSpace(firstLine[:idx])
	}
	return firstLine
}

// isExported applies the language's visibility convention to a symbol name.
func isExported(name, language string) bool {
	if name == "" {
		return false
	}
	switch language {
	case "go":
		r := []rune(name)[0]
		return unicode.IsUpper(r)
	case "python":
		return !strings.HasPrefix(name, "_")
	default:
		return false // JS/TS default: refined by isExportedJS at the declaration site
	}
}

// isExportedJS reports whether a node's declaration is preceded by an
// `export` keyword token on the same source line.
func isExportedJS(n *Node, source []byte) bool {
	lineStart := int(n.StartByte)
	for lineStart > 0 && source[lineStart-1] != '\n' {
		lineStart--
	}
	line := string(source[lineStart:n.StartByte])
	return strings.Contains(line, "export")
}

// isNodeExported is the main findSymbolNodes walk's visibility check. For
// JS/TS it has the node in hand and uses isExportedJS (as extractSpecial
// also does), since the name-only isExported always reports false for
// those languages; every other language uses isExported's name convention.
func (e *extractor) isNodeExported(n *Node, source []byte, name, language string) bool {
	switch language {
	case "typescript", "tsx", "javascript", "jsx":
		return isExportedJS(n, source)
	default:
		return isExported(name, language)
	}
}
