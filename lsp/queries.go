package lsp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/viant/strictly/ast"
	"github.com/viant/strictly/core"
)

// Queries run against the most recently committed state and never mutate
// it; they block the loop only for their own duration.

// wordAt extracts the identifier or constant under an LSP position.
func (s *Server) wordAt(params PositionParams) (word string, file core.FileRef, offset uint32, ok bool) {
	path := uriToPath(params.TextDocument.URI)
	ref, found := s.gs.FindFileByPath(path)
	if !found {
		return "", 0, 0, false
	}
	src := s.gs.File(ref).Source
	offset = core.OffsetForPosition(src, core.Position{Line: params.Position.Line + 1, Column: params.Position.Character})
	isWord := func(c byte) bool {
		return c == '_' || c == '?' || c == '!' ||
			(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
	}
	begin := offset
	for begin > 0 && isWord(src[begin-1]) {
		begin--
	}
	end := offset
	for int(end) < len(src) && isWord(src[end]) {
		end++
	}
	if begin == end {
		return "", ref, offset, false
	}
	return src[begin:end], ref, offset, true
}

// lookupWord finds symbols matching a word: a constant matches every class
// or module of that name at any nesting, a method name every method of that
// name; both search the whole table.
func (s *Server) lookupWord(word string) []core.SymbolRef {
	gs := s.gs
	var out []core.SymbolRef
	if word == "" {
		return nil
	}
	if word[0] >= 'A' && word[0] <= 'Z' {
		raw, ok := gs.LookupNameUTF8(word)
		if !ok {
			return nil
		}
		for i := 1; i < gs.SymbolCount(); i++ {
			sym := gs.Symbol(core.SymbolRef(i))
			if sym.IsClassOrModule() && gs.NameData(sym.Name).Cnst == raw {
				out = append(out, core.SymbolRef(i))
			}
		}
		return out
	}
	raw, ok := gs.LookupNameUTF8(word)
	if !ok {
		return nil
	}
	for i := 1; i < gs.SymbolCount(); i++ {
		sym := gs.Symbol(core.SymbolRef(i))
		if sym.IsMethod() && sym.Name == raw {
			out = append(out, core.SymbolRef(i))
		}
	}
	return out
}

func (s *Server) symbolLocations(refs []core.SymbolRef) []Location {
	var out []Location
	for _, ref := range refs {
		for _, loc := range s.gs.Symbol(ref).Locs {
			if !loc.Exists() {
				continue
			}
			out = append(out, s.toLocation(loc))
		}
	}
	return out
}

func (s *Server) toLocation(loc core.Loc) Location {
	begin, end := loc.Detail(s.gs)
	return Location{
		URI: pathToURI(s.gs.File(loc.File).Path),
		Range: Range{
			Start: Position{Line: begin.Line - 1, Character: begin.Column},
			End:   Position{Line: end.Line - 1, Character: end.Column},
		},
	}
}

func (s *Server) definition(params PositionParams) any {
	word, _, _, ok := s.wordAt(params)
	if !ok {
		return []Location{}
	}
	locs := s.symbolLocations(s.lookupWord(word))
	if locs == nil {
		return []Location{}
	}
	return locs
}

func (s *Server) hover(params PositionParams) any {
	word, _, _, ok := s.wordAt(params)
	if !ok {
		return nil
	}
	refs := s.lookupWord(word)
	if len(refs) == 0 {
		return nil
	}
	var lines []string
	for _, ref := range refs {
		lines = append(lines, s.renderSymbol(ref))
	}
	return &Hover{Contents: MarkupContent{Kind: "markdown", Value: "```ruby\n" + strings.Join(lines, "\n") + "\n```"}}
}

// renderSymbol formats a symbol's declaration the way hover shows it.
func (s *Server) renderSymbol(ref core.SymbolRef) string {
	gs := s.gs
	sym := gs.Symbol(ref)
	switch sym.Kind {
	case core.SymbolMethod:
		var params []string
		for _, arg := range sym.Arguments {
			t := "T.untyped"
			if arg.Type != nil {
				t = arg.Type.Show(gs)
			}
			params = append(params, fmt.Sprintf("%s: %s", gs.ShowName(arg.Name), t))
		}
		result := "T.untyped"
		if sym.ResultType != nil {
			result = sym.ResultType.Show(gs)
		}
		return fmt.Sprintf("%s(%s) -> %s", gs.ShowSymbol(ref), strings.Join(params, ", "), result)
	case core.SymbolClassOrModule:
		kind := "class"
		if sym.Flags&core.FlagModule != 0 {
			kind = "module"
		}
		return fmt.Sprintf("%s %s", kind, gs.ShowSymbol(ref))
	default:
		return gs.ShowSymbol(ref)
	}
}

func (s *Server) references(params PositionParams) any {
	word, _, _, ok := s.wordAt(params)
	if !ok {
		return []Location{}
	}
	// Textual occurrence scan over the live file set; the committed state
	// is never mutated.
	var out []Location
	for _, ref := range s.gs.LiveFiles() {
		src := s.gs.File(ref).Source
		for idx := 0; ; {
			found := strings.Index(src[idx:], word)
			if found < 0 {
				break
			}
			begin := idx + found
			end := begin + len(word)
			boundedLeft := begin == 0 || !isIdentByte(src[begin-1])
			boundedRight := end >= len(src) || !isIdentByte(src[end])
			if boundedLeft && boundedRight {
				out = append(out, s.toLocation(core.MakeLoc(ref, uint32(begin), uint32(end))))
			}
			idx = end
		}
	}
	if out == nil {
		return []Location{}
	}
	return out
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func (s *Server) completion(params PositionParams) any {
	word, _, _, _ := s.wordAt(params)
	gs := s.gs
	seen := map[string]bool{}
	var items []CompletionItem
	for i := 1; i < gs.SymbolCount(); i++ {
		sym := gs.Symbol(core.SymbolRef(i))
		var label string
		var kind int
		switch sym.Kind {
		case core.SymbolMethod:
			label = gs.ShowName(sym.Name)
			kind = 2 // method
		case core.SymbolClassOrModule:
			label = gs.ShowName(sym.Name)
			kind = 7 // class
		default:
			continue
		}
		if label == "" || strings.HasPrefix(label, "<") {
			continue
		}
		if word != "" && !strings.HasPrefix(label, word) {
			continue
		}
		if seen[label] {
			continue
		}
		seen[label] = true
		items = append(items, CompletionItem{Label: label, Kind: kind, Detail: s.renderSymbol(core.SymbolRef(i))})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

func (s *Server) signatureHelp(params PositionParams) any {
	path := uriToPath(params.TextDocument.URI)
	ref, found := s.gs.FindFileByPath(path)
	if !found {
		return nil
	}
	src := s.gs.File(ref).Source
	offset := core.OffsetForPosition(src, core.Position{Line: params.Position.Line + 1, Column: params.Position.Character})

	// Walk back over the argument list to the callee name.
	depth := 0
	i := int(offset) - 1
	for ; i >= 0; i-- {
		switch src[i] {
		case ')':
			depth++
		case '(':
			if depth == 0 {
				goto foundParen
			}
			depth--
		}
	}
	return nil
foundParen:
	end := i
	for i--; i >= 0 && isIdentByte(src[i]); i-- {
	}
	callee := src[i+1 : end]
	if callee == "" {
		return nil
	}
	var signatures []SignatureInformation
	for _, symRef := range s.lookupWord(callee) {
		sym := s.gs.Symbol(symRef)
		if !sym.IsMethod() {
			continue
		}
		info := SignatureInformation{Label: s.renderSymbol(symRef)}
		for _, arg := range sym.Arguments {
			info.Parameters = append(info.Parameters, ParameterLabel{Label: s.gs.ShowName(arg.Name)})
		}
		signatures = append(signatures, info)
	}
	if len(signatures) == 0 {
		return nil
	}
	return &SignatureHelp{Signatures: signatures}
}

func (s *Server) documentSymbols(uri string) []DocumentSymbol {
	path := uriToPath(uri)
	ref, found := s.gs.FindFileByPath(path)
	if !found || s.run == nil {
		return []DocumentSymbol{}
	}
	prog, ok := s.run.Programs[ref]
	if !ok {
		return []DocumentSymbol{}
	}
	var convert func(stmts []ast.Node) []DocumentSymbol
	convert = func(stmts []ast.Node) []DocumentSymbol {
		var out []DocumentSymbol
		for _, stmt := range stmts {
			switch node := stmt.(type) {
			case *ast.ClassDef:
				kind := SymbolKindClass
				if node.IsModule {
					kind = SymbolKindModule
				}
				r := s.rangeFor(node.NodeLoc())
				out = append(out, DocumentSymbol{
					Name:           strings.Join(node.Name, "::"),
					Kind:           kind,
					Range:          r,
					SelectionRange: r,
					Children:       convert(node.Body),
				})
			case *ast.MethodDef:
				r := s.rangeFor(node.NodeLoc())
				out = append(out, DocumentSymbol{
					Name:           node.Name,
					Kind:           SymbolKindMethod,
					Range:          r,
					SelectionRange: r,
				})
			}
		}
		return out
	}
	syms := convert(prog.Stmts)
	if syms == nil {
		return []DocumentSymbol{}
	}
	return syms
}

func (s *Server) rangeFor(loc core.Loc) Range {
	begin, end := loc.Detail(s.gs)
	return Range{
		Start: Position{Line: begin.Line - 1, Character: begin.Column},
		End:   Position{Line: end.Line - 1, Character: end.Column},
	}
}

func (s *Server) workspaceSymbols(query string) []SymbolInformation {
	gs := s.gs
	query = strings.ToLower(query)
	var out []SymbolInformation
	for i := 1; i < gs.SymbolCount(); i++ {
		ref := core.SymbolRef(i)
		sym := gs.Symbol(ref)
		if len(sym.Locs) == 0 {
			continue
		}
		var kind int
		switch sym.Kind {
		case core.SymbolClassOrModule:
			kind = SymbolKindClass
		case core.SymbolMethod:
			kind = SymbolKindMethod
		default:
			continue
		}
		name := gs.ShowName(sym.Name)
		if query != "" && !strings.Contains(strings.ToLower(name), query) {
			continue
		}
		loc := sym.Locs[0]
		if !loc.Exists() {
			continue
		}
		out = append(out, SymbolInformation{Name: name, Kind: kind, Location: s.toLocation(loc)})
	}
	if out == nil {
		return []SymbolInformation{}
	}
	return out
}
