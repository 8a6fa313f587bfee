// Package lsp implements the editor-service coordinator: a single-threaded
// cooperative loop that owns the global state, reads framed messages from a
// sidecar reader goroutine and serves edits and queries, choosing a fast or
// slow incremental path per edit.
package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"goa.design/clue/log"

	"github.com/viant/strictly/config"
	"github.com/viant/strictly/core"
	"github.com/viant/strictly/parser"
	"github.com/viant/strictly/pipeline"
	"github.com/viant/strictly/resolver"
)

// Server owns the committed global state and the request queue.
type Server struct {
	conn  *Conn
	queue *Queue
	conf  *config.Config

	// baseGS is the pristine post-payload state slow-path rebuilds clone.
	baseGS *core.GlobalState
	// gs is the most recently committed state; queries read it, only the
	// main loop writes it.
	gs  *core.GlobalState
	run *pipeline.Result

	// contents is the committed text of every tracked file.
	contents map[string]string

	// published tracks which files currently have diagnostics at the
	// client, so stale sets get cleared.
	published map[string]bool

	// TookFastPath reports whether the most recent edit took the fast path;
	// metrics and tests read it.
	TookFastPath bool

	initialized bool
}

// NewServer builds a server over a connection.
func NewServer(conn *Conn, conf *config.Config) *Server {
	base := core.NewGlobalState()
	base.Freeze()
	return &Server{
		conn:      conn,
		queue:     NewQueue(),
		conf:      conf,
		baseGS:    base,
		gs:        base,
		contents:  map[string]string{},
		published: map[string]bool{},
	}
}

// Queue exposes the request queue; the watcher bridge and tests enqueue
// through it.
func (s *Server) Queue() *Queue { return s.queue }

// Run services the queue until the reader terminates it. The reader
// goroutine is the only other thread; workers during the slow path receive
// immutable snapshots.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		defer s.queue.Terminate()
		for {
			msg, err := s.conn.ReadMessage()
			if err != nil {
				return
			}
			s.queue.Enqueue(msg)
		}
	}()

	for {
		msg, edit, ok := s.queue.Dequeue()
		if !ok {
			return nil
		}
		if edit != nil {
			s.applyEdit(ctx, edit)
			continue
		}
		s.handleMessage(ctx, msg)
	}
}

func (s *Server) respond(id *json.Number, result any) {
	_ = s.conn.WriteMessage(&Response{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *Server) respondError(id *json.Number, code int, message string) {
	_ = s.conn.WriteMessage(&Response{JSONRPC: "2.0", ID: id, Error: &ResponseError{Code: code, Message: message}})
}

func (s *Server) notify(method string, params any) {
	_ = s.conn.WriteMessage(&Notification{JSONRPC: "2.0", Method: method, Params: params})
}

func (s *Server) handleMessage(ctx context.Context, msg *Message) {
	if msg.cancelled {
		s.respondError(msg.ID, CodeRequestCancelled, "request cancelled")
		return
	}
	switch msg.Method {
	case "initialize":
		var params InitializeParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			s.respondError(msg.ID, CodeInvalidParams, err.Error())
			return
		}
		s.respond(msg.ID, &InitializeResult{Capabilities: ServerCapabilities{
			TextDocumentSync:        1,
			HoverProvider:           true,
			DefinitionProvider:      true,
			ReferencesProvider:      true,
			DocumentSymbolProvider:  true,
			WorkspaceSymbolProvider: true,
			CodeActionProvider:      true,
			CompletionProvider:      &Completions{TriggerCharacters: []string{"."}},
			SignatureHelpProvider:   &SigHelp{TriggerCharacters: []string{"(", ","}},
		}})
		rootPath := params.RootPath
		if rootPath == "" && params.RootURI != "" {
			rootPath = uriToPath(params.RootURI)
		}
		if rootPath != "" {
			if err := s.loadRoot(ctx, rootPath); err != nil {
				log.Errorf(ctx, err, "failed to load workspace root")
				s.notify("window/showMessage", &ShowMessageParams{Type: 1, Message: err.Error()})
			}
		}
		s.slowPath(ctx)
		s.initialized = true
	case "initialized":
		// Client acknowledgement; nothing to do.
	case "shutdown":
		s.respond(msg.ID, nil)
	case "exit":
		s.queue.Terminate()
	case "textDocument/hover":
		s.servePositional(msg, s.hover)
	case "textDocument/definition":
		s.servePositional(msg, s.definition)
	case "textDocument/references":
		s.servePositional(msg, s.references)
	case "textDocument/completion":
		s.servePositional(msg, s.completion)
	case "textDocument/signatureHelp":
		s.servePositional(msg, s.signatureHelp)
	case "textDocument/documentSymbol":
		var params PositionParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			s.respondError(msg.ID, CodeInvalidParams, err.Error())
			return
		}
		s.respond(msg.ID, s.documentSymbols(params.TextDocument.URI))
	case "workspace/symbol":
		var params WorkspaceSymbolParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			s.respondError(msg.ID, CodeInvalidParams, err.Error())
			return
		}
		s.respond(msg.ID, s.workspaceSymbols(params.Query))
	case "textDocument/codeAction":
		// No refactorings are offered yet; an empty list keeps clients
		// quiet.
		s.respond(msg.ID, []any{})
	default:
		if msg.IsRequest() {
			s.respondError(msg.ID, CodeMethodNotFound, fmt.Sprintf("unsupported method %s", msg.Method))
		}
	}
}

func (s *Server) servePositional(msg *Message, serve func(PositionParams) any) {
	var params PositionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.respondError(msg.ID, CodeInvalidParams, err.Error())
		return
	}
	s.respond(msg.ID, serve(params))
}

// loadRoot enters every workspace file into the committed contents map.
func (s *Server) loadRoot(ctx context.Context, root string) error {
	gs := core.NewGlobalState()
	if err := pipeline.LoadWorkspace(ctx, gs, root, s.conf); err != nil {
		return err
	}
	for _, ref := range gs.LiveFiles() {
		file := gs.File(ref)
		s.contents[file.Path] = file.Source
	}
	return nil
}

// applyEdit commits a fused workspace edit, selecting the fast or slow
// path.
func (s *Server) applyEdit(ctx context.Context, edit *WorkspaceEdit) {
	if !s.initialized {
		// Pre-initialization edits only update the pending contents.
		for path, text := range edit.Contents {
			if text == nil {
				delete(s.contents, path)
			} else {
				s.contents[path] = *text
			}
		}
		return
	}

	changed, fast := s.classifyEdit(ctx, edit)
	for path, text := range edit.Contents {
		if text == nil {
			delete(s.contents, path)
		} else {
			s.contents[path] = *text
		}
	}

	if fast {
		s.fastPath(ctx, changed)
		return
	}
	s.slowPath(ctx)
}

// classifyEdit decides the incremental strategy: the fast path applies when
// every touched file still parses to the same definitions and only method
// bodies changed.
func (s *Server) classifyEdit(ctx context.Context, edit *WorkspaceEdit) (changed map[core.FileRef][]string, fast bool) {
	if s.run == nil || len(edit.Reload) > 0 {
		return nil, false
	}
	changed = map[core.FileRef][]string{}
	p := parser.New()
	for path, text := range edit.Contents {
		if text == nil {
			return nil, false
		}
		ref, ok := s.gs.FindFileByPath(path)
		if !ok {
			// A brand new file always restructures the world.
			return nil, false
		}
		before := s.run.Summaries[ref]
		prog, _, err := p.ParseSource(ctx, []byte(*text), ref)
		if err != nil {
			return nil, false
		}
		after := pipeline.Summarize(*text, prog)
		methods, bodiesOnly := pipeline.OnlyBodiesChanged(before, after)
		if !bodiesOnly {
			return nil, false
		}
		changed[ref] = methods
	}
	return changed, true
}

// slowPath re-indexes every file, re-resolves and typechecks the world on a
// fresh clone of the base state, then commits.
func (s *Server) slowPath(ctx context.Context) {
	done := s.beginOperation("Typechecking in background")
	defer done()

	s.TookFastPath = false
	gs := s.baseGS.DeepCopy()
	gs.UnfreezeAll(func() {
		for path, text := range s.contents {
			pipeline.EnterSource(gs, path, text, s.conf.DefaultLevel())
		}
	})
	run, err := pipeline.Run(ctx, gs, pipeline.Options{
		MaxThreads:        s.conf.Threads(),
		DefaultStrictness: s.conf.DefaultLevel(),
	})
	if err != nil {
		log.Errorf(ctx, err, "slow path failed")
		s.notify("window/showMessage", &ShowMessageParams{Type: 1, Message: err.Error()})
		return
	}
	gs.Freeze()
	s.gs = gs
	s.run = run
	s.publishAll(run.Diagnostics)
	log.Debugf(ctx, "slow path committed: %d files", len(s.contents))
}

// fastPath re-runs inference on every method of each touched file, not only
// on the methods whose body hashes changed; methods in other files are not
// revisited. Signature changes never reach here; classifyEdit already routed
// them to the slow path.
func (s *Server) fastPath(ctx context.Context, changed map[core.FileRef][]string) {
	s.TookFastPath = true
	gs := s.gs
	p := parser.New()

	var units []resolver.MethodUnit
	var touchedFiles []core.FileRef
	for ref := range changed {
		path := gs.File(ref).Path
		text := s.contents[path]
		gs.UnfreezeFileTable(func() {
			file := gs.File(ref)
			file.Source = text
			file.Strictness = config.SniffStrictness(text, s.conf.DefaultLevel())
			pipeline.HashFileContents(gs, ref)
		})
		prog, errs, err := p.ParseSource(ctx, []byte(text), ref)
		if err != nil {
			continue
		}
		for _, e := range errs {
			gs.Errors.Push(e)
		}
		s.run.Programs[ref] = prog
		s.run.Summaries[ref] = pipeline.Summarize(text, prog)
		touchedFiles = append(touchedFiles, ref)

		// Every method of a touched file re-infers: published diagnostics
		// replace per-file, so unchanged siblings must re-emit theirs.
		// Methods in untouched files are never revisited.
		for _, unit := range resolver.Units(gs, prog) {
			if unit.Sym == 0 {
				continue
			}
			units = append(units, unit)
		}
	}

	var diags []*core.Error
	gs.UnfreezeNameTable(func() {
		diags = pipeline.TypecheckMethods(gs, units)
	})
	s.publishFiles(touchedFiles, diags)
	log.Debugf(ctx, "fast path committed: %d methods re-inferred", len(units))
}

// beginOperation sends the progress begin marker and returns the closer;
// callers defer it so the end marker fires on every exit path.
func (s *Server) beginOperation(title string) func() {
	token := uuid.NewString()
	s.notify("$/progress", &ProgressParams{Token: token, Value: ProgressValue{Kind: "begin", Title: title}})
	return func() {
		s.notify("$/progress", &ProgressParams{Token: token, Value: ProgressValue{Kind: "end"}})
	}
}

func uriToPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

func pathToURI(path string) string {
	if strings.HasPrefix(path, "file://") {
		return path
	}
	return "file://" + path
}
