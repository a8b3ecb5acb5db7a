package chunk

import (
	"strings"
)

// SymbolExtractor classifies AST nodes as chunk-boundary symbols and
// pulls their name, doc comment, and one-line signature. It looks at
// one node at a time; walking the tree and applying the token budget
// is the chunker's job.
type SymbolExtractor struct {
	registry *LanguageRegistry
}

// NewSymbolExtractor creates a symbol extractor backed by the default
// language registry.
func NewSymbolExtractor() *SymbolExtractor {
	return &SymbolExtractor{registry: DefaultRegistry()}
}

// NewSymbolExtractorWithRegistry creates a symbol extractor with a
// custom registry, for tests.
func NewSymbolExtractorWithRegistry(registry *LanguageRegistry) *SymbolExtractor {
	return &SymbolExtractor{registry: registry}
}

// ClassifyNode returns the Symbol for n if it is a boundary node for
// language, or nil if n is not a symbol-defining node at all (the
// caller should keep walking its children).
func (e *SymbolExtractor) ClassifyNode(n *Node, source []byte, language string) *Symbol {
	config, ok := e.registry.GetByName(language)
	if !ok {
		return nil
	}

	symbolType, found := matchSymbolType(n.Type, config)
	if !found {
		return e.extractSpecialSymbol(n, source, language)
	}

	name := e.extractName(n, source, language)
	if name == "" {
		return nil
	}

	signature := e.extractSignature(n, source, symbolType, language)
	return &Symbol{
		Name:       name,
		Type:       symbolType,
		StartByte:  int(n.StartByte),
		EndByte:    int(n.EndByte),
		StartLine:  int(n.StartPoint.Row) + 1,
		EndLine:    int(n.EndPoint.Row) + 1,
		Signature:  signature,
		DocComment: e.extractDocComment(n, source, language),
	}
}

func matchSymbolType(nodeType string, config *LanguageConfig) (SymbolType, bool) {
	for _, t := range config.FunctionTypes {
		if nodeType == t {
			return SymbolFunction, true
		}
	}
	for _, t := range config.MethodTypes {
		if nodeType == t {
			return SymbolMethod, true
		}
	}
	for _, t := range config.ClassTypes {
		if nodeType == t {
			return SymbolClass, true
		}
	}
	for _, t := range config.InterfaceTypes {
		if nodeType == t {
			return SymbolInterface, true
		}
	}
	for _, t := range config.TypeDefTypes {
		if nodeType == t {
			return SymbolTypeDecl, true
		}
	}
	for _, t := range config.ConstantTypes {
		if nodeType == t {
			return SymbolConstant, true
		}
	}
	for _, t := range config.VariableTypes {
		if nodeType == t {
			return SymbolVariable, true
		}
	}
	return "", false
}

func (e *SymbolExtractor) extractName(n *Node, source []byte, language string) string {
	switch language {
	case "go":
		return e.extractGoName(n, source)
	case "typescript", "tsx":
		return e.extractTypeScriptName(n, source)
	case "javascript", "jsx":
		return e.extractJavaScriptName(n, source)
	case "python":
		return e.extractPythonName(n, source)
	default:
		for _, child := range n.Children {
			if child.Type == "identifier" {
				return child.GetContent(source)
			}
		}
	}
	return ""
}

func (e *SymbolExtractor) extractGoName(n *Node, source []byte) string {
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

func (e *SymbolExtractor) extractTypeScriptName(n *Node, source []byte) string {
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

func (e *SymbolExtractor) extractJavaScriptName(n *Node, source []byte) string {
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
		if child.Type == "identifier" {
			return child.GetContent(source)
		}
	}
	return ""
}

func (e *SymbolExtractor) extractPythonName(n *Node, source []byte) string {
	for _, child := range n.Children {
		if child.Type == "identifier" {
			return child.GetContent(source)
		}
	}
	return ""
}

// extractSpecialSymbol handles `const name = () => {}` / `const name =
// function() {}` in the JS/TS family, where the boundary is a generic
// variable declaration rather than a dedicated function node.
func (e *SymbolExtractor) extractSpecialSymbol(n *Node, source []byte, language string) *Symbol {
	switch language {
	case "typescript", "tsx", "javascript", "jsx":
		if n.Type == "lexical_declaration" || n.Type == "variable_declaration" {
			return e.extractJSVariableFunctionSymbol(n, source)
		}
	}
	return nil
}

func (e *SymbolExtractor) extractJSVariableFunctionSymbol(n *Node, source []byte) *Symbol {
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
			return &Symbol{
				Name:      name,
				Type:      SymbolFunction,
				StartByte: int(n.StartByte),
				EndByte:   int(n.EndByte),
				StartLine: int(n.StartPoint.Row) + 1,
				EndLine:   int(n.EndPoint.Row) + 1,
				Signature: e.extractFunctionSignature(content, "javascript"),
			}
		}
	}
	return nil
}

// extractDocComment walks backward over preceding same-language
// single-line comments directly above a node, joining them in source
// order. Python docstrings live inside the body, not before it, so
// Python always returns empty here.
func (e *SymbolExtractor) extractDocComment(n *Node, source []byte, language string) string {
	if language == "python" || n.StartPoint.Row == 0 {
		return ""
	}

	lineStart := int(n.StartByte)
	for lineStart > 0 && source[lineStart-1] != '\n' {
		lineStart--
	}
	if lineStart <= 1 {
		return ""
	}

	marker := lineCommentMarker(language)
	if marker == "" {
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

		if strings.HasPrefix(prevLine, marker) {
			commentLines = append([]string{strings.TrimPrefix(prevLine, marker)}, commentLines...)
			continue
		}
		break
	}

	if len(commentLines) == 0 {
		return ""
	}
	return strings.TrimSpace(strings.Join(commentLines, "\n"))
}

func lineCommentMarker(language string) string {
	switch language {
	case "go", "typescript", "tsx", "javascript", "jsx":
		return "//"
	}
	return ""
}

// extractSignature extracts the one-line signature of a
// function/method/class/interface/type declaration, so a chunk carries
// its interface without its body.
func (e *SymbolExtractor) extractSignature(n *Node, source []byte, symbolType SymbolType, language string) string {
	content := n.GetContent(source)
	if content == "" {
		return ""
	}

	switch symbolType {
	case SymbolFunction, SymbolMethod:
		return e.extractFunctionSignature(content, language)
	case SymbolClass, SymbolInterface, SymbolTypeDecl:
		return e.extractTypeSignature(content, language)
	}
	return ""
}

func (e *SymbolExtractor) extractFunctionSignature(content, language string) string {
	firstLine := strings.TrimSpace(strings.SplitN(content, "\n", 2)[0])

	switch language {
	case "go", "typescript", "tsx", "javascript", "jsx":
		if idx := strings.Index(firstLine, "{"); idx != -1 {
			return strings.TrimSpace(firstLine[:idx])
		}
		return firstLine
	case "python":
		return firstLine
	}
	return firstLine
}

func (e *SymbolExtractor) extractTypeSignature(content, language string) string {
	firstLine := strings.TrimSpace(strings.SplitN(content, "\n", 2)[0])

	switch language {
	case "go", "typescript", "tsx", "javascript", "jsx":
		if idx := strings.Index(firstLine, "{"); idx != -1 {
			return strings.TrimSpace(firstLine[:idx])
		}
		return firstLine
	case "python":
		return firstLine
	}
	return firstLine
}
