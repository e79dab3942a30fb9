package chunker

import (
	"go/ast"
	"go/parser"
	"go/token"
	"log/slog"
	"strings"
	"sync"
)

// SyntaxSplitter parses a file to split at declaration boundaries —
// functions, types, top-level blocks — falling back to a character-based
// splitter on parse error or for extensions it does not understand. Only
// ".go" files get real AST-based splitting; every other language takes the
// character-based path.
type SyntaxSplitter struct {
	fallback *CharacterSplitter

	warnOnce sync.Map // extension -> struct{}, for the once-per-run fallback log
}

// NewSyntaxSplitter returns a SyntaxSplitter backed by fallback for
// extensions it cannot parse natively.
func NewSyntaxSplitter(fallback *CharacterSplitter) *SyntaxSplitter {
	if fallback == nil {
		fallback = NewCharacterSplitter(0, 0)
	}
	return &SyntaxSplitter{fallback: fallback}
}

// Split implements Splitter.
func (s *SyntaxSplitter) Split(relativePath, content, extension string) ([]Chunk, error) {
	if extension != ".go" {
		s.logFallbackOnce(extension)
		return s.fallback.Split(relativePath, content, extension)
	}

	chunks, err := s.splitGo(relativePath, content, extension)
	if err != nil {
		slog.Debug("chunker: go parse failed, falling back to character split",
			slog.String("path", relativePath), slog.String("error", err.Error()))
		return s.fallback.Split(relativePath, content, extension)
	}
	if len(chunks) == 0 {
		return s.fallback.Split(relativePath, content, extension)
	}
	return chunks, nil
}

func (s *SyntaxSplitter) logFallbackOnce(extension string) {
	if _, loaded := s.warnOnce.LoadOrStore(extension, struct{}{}); !loaded {
		slog.Debug("chunker: no syntax-aware splitter for extension, using character split",
			slog.String("extension", extension))
	}
}

func (s *SyntaxSplitter) splitGo(relativePath, content, extension string) ([]Chunk, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, relativePath, content, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(content, "\n")
	var chunks []Chunk

	for _, decl := range file.Decls {
		startLine := fset.Position(decl.Pos()).Line
		endLine := fset.Position(decl.End()).Line
		if startLine < 1 {
			startLine = 1
		}
		if endLine > len(lines) {
			endLine = len(lines)
		}
		if endLine < startLine {
			endLine = startLine
		}

		text := strings.Join(lines[startLine-1:endLine], "\n")
		if strings.TrimSpace(text) == "" {
			continue
		}

		var symbols []Symbol
		if sym := symbolFor(decl, fset); sym != nil {
			symbols = []Symbol{*sym}
		}

		chunks = append(chunks, Chunk{
			ID:            ID(relativePath, text, startLine, endLine),
			Content:       text,
			RelativePath:  relativePath,
			StartLine:     startLine,
			EndLine:       endLine,
			FileExtension: extension,
			Symbols:       symbols,
			Metadata:      map[string]any{},
		})
	}

	return chunks, nil
}

func symbolFor(decl ast.Decl, fset *token.FileSet) *Symbol {
	switch d := decl.(type) {
	case *ast.FuncDecl:
		typ := "function"
		if d.Recv != nil {
			typ = "method"
		}
		doc := ""
		if d.Doc != nil {
			doc = d.Doc.Text()
		}
		return &Symbol{
			Name:       d.Name.Name,
			Type:       typ,
			StartLine:  fset.Position(d.Pos()).Line,
			EndLine:    fset.Position(d.End()).Line,
			DocComment: doc,
		}
	case *ast.GenDecl:
		if len(d.Specs) == 0 {
			return nil
		}
		doc := ""
		if d.Doc != nil {
			doc = d.Doc.Text()
		}
		name := ""
		typ := "type"
		switch spec := d.Specs[0].(type) {
		case *ast.TypeSpec:
			name = spec.Name.Name
			if _, ok := spec.Type.(*ast.InterfaceType); ok {
				typ = "interface"
			}
		case *ast.ValueSpec:
			if len(spec.Names) > 0 {
				name = spec.Names[0].Name
			}
			if d.Tok == token.CONST {
				typ = "constant"
			} else {
				typ = "variable"
			}
		default:
			return nil
		}
		return &Symbol{
			Name:       name,
			Type:       typ,
			StartLine:  fset.Position(d.Pos()).Line,
			EndLine:    fset.Position(d.End()).Line,
			DocComment: doc,
		}
	default:
		return nil
	}
}
