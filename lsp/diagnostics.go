package lsp

import (
	"sort"

	"github.com/viant/strictly/core"
)

// toDiagnostic converts one drained error into its protocol shape.
func (s *Server) toDiagnostic(e *core.Error) Diagnostic {
	begin, end := e.Loc.Detail(s.gs)
	severity := 1
	return Diagnostic{
		Range: Range{
			Start: Position{Line: begin.Line - 1, Character: begin.Column},
			End:   Position{Line: end.Line - 1, Character: end.Column},
		},
		Severity: severity,
		Code:     e.Class.Code,
		Source:   "strictly",
		Message:  e.Message,
	}
}

// publishAll replaces the diagnostics of every file, clearing files that no
// longer have any.
func (s *Server) publishAll(diags []*core.Error) {
	byPath := s.groupByPath(diags)
	for path := range s.published {
		if _, ok := byPath[path]; !ok {
			byPath[path] = nil
		}
	}
	s.publishGroups(byPath)
}

// publishFiles replaces diagnostics only for the given files; other files
// keep their previous sets.
func (s *Server) publishFiles(files []core.FileRef, diags []*core.Error) {
	byPath := s.groupByPath(diags)
	for _, ref := range files {
		path := s.gs.File(ref).Path
		if _, ok := byPath[path]; !ok {
			byPath[path] = nil
		}
	}
	s.publishGroups(byPath)
}

func (s *Server) groupByPath(diags []*core.Error) map[string][]Diagnostic {
	byPath := map[string][]Diagnostic{}
	for _, e := range diags {
		if !e.Loc.Exists() {
			continue
		}
		path := s.gs.File(e.Loc.File).Path
		byPath[path] = append(byPath[path], s.toDiagnostic(e))
	}
	return byPath
}

func (s *Server) publishGroups(byPath map[string][]Diagnostic) {
	paths := make([]string, 0, len(byPath))
	for path := range byPath {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		set := byPath[path]
		if set == nil {
			set = []Diagnostic{}
		}
		s.notify("textDocument/publishDiagnostics", &PublishDiagnosticsParams{
			URI:         pathToURI(path),
			Diagnostics: set,
		})
		if len(set) == 0 {
			delete(s.published, path)
		} else {
			s.published[path] = true
		}
	}
}
