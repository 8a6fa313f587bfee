// Package pipeline drives the typing passes: index (parse), resolve, CFG
// lowering and inference, with a bounded worker pool for the embarrassingly
// parallel stages.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"goa.design/clue/log"

	"github.com/viant/strictly/ast"
	"github.com/viant/strictly/cfg"
	"github.com/viant/strictly/config"
	"github.com/viant/strictly/core"
	"github.com/viant/strictly/infer"
	"github.com/viant/strictly/parser"
	"github.com/viant/strictly/resolver"
)

// Phase names the pipeline stages for --stop-after.
type Phase string

const (
	PhaseIndex   Phase = "index"
	PhaseResolve Phase = "resolve"
	PhaseCFG     Phase = "cfg"
	PhaseInfer   Phase = "infer"
)

// Options configure one run.
type Options struct {
	StopAfter         Phase
	MaxThreads        int
	DefaultStrictness core.StrictnessLevel
}

// Result is everything one run produced.
type Result struct {
	Programs  map[core.FileRef]*ast.Program
	Summaries map[core.FileRef]*FileSummary
	CFGs      map[core.SymbolRef]*cfg.CFG
	Methods   []resolver.MethodUnit
	// Diagnostics are drained, strictness-filtered and per-file sorted.
	Diagnostics []*core.Error
}

// LoadWorkspace walks root and enters every .rb file into gs.
func LoadWorkspace(ctx context.Context, gs *core.GlobalState, root string, conf *config.Config) error {
	fs := afs.New()
	var visitor storage.OnVisit = func(ctx context.Context, baseURL, parent string, info os.FileInfo, reader io.Reader) (bool, error) {
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".rb") {
			return true, nil
		}
		rel := filepath.Join(parent, info.Name())
		for _, prefix := range conf.Ignore {
			if strings.HasPrefix(rel, prefix) {
				return true, nil
			}
		}
		data, err := io.ReadAll(reader)
		if err != nil {
			return false, fmt.Errorf("failed to read %s: %w", rel, err)
		}
		EnterSource(gs, rel, string(data), conf.DefaultLevel())
		return true, nil
	}
	if err := fs.Walk(ctx, root, visitor); err != nil {
		return fmt.Errorf("failed to walk workspace %s: %w", root, err)
	}
	return nil
}

// EnterSource records one file with its sniffed strictness.
func EnterSource(gs *core.GlobalState, path, source string, fallback core.StrictnessLevel) core.FileRef {
	var ref core.FileRef
	gs.UnfreezeFileTable(func() {
		ref = gs.EnterFile(core.File{
			Path:       path,
			Source:     source,
			Type:       core.SourceNormal,
			Strictness: config.SniffStrictness(source, fallback),
		})
		HashFileContents(gs, ref)
	})
	return ref
}

// Run executes the pipeline over all live files in gs.
func Run(ctx context.Context, gs *core.GlobalState, opts Options) (*Result, error) {
	result := &Result{
		Programs:  map[core.FileRef]*ast.Program{},
		Summaries: map[core.FileRef]*FileSummary{},
		CFGs:      map[core.SymbolRef]*cfg.CFG{},
	}
	files := gs.LiveFiles()

	if err := indexAll(ctx, gs, files, opts.MaxThreads, result); err != nil {
		return nil, err
	}
	if opts.StopAfter == PhaseIndex {
		result.Diagnostics = drain(gs)
		return result, nil
	}

	var programs []*ast.Program
	for _, ref := range files {
		if prog, ok := result.Programs[ref]; ok {
			programs = append(programs, prog)
		}
	}
	res, err := resolver.New(gs).Run(programs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve: %w", err)
	}
	result.Methods = res.Methods
	if opts.StopAfter == PhaseResolve {
		result.Diagnostics = drain(gs)
		return result, nil
	}

	builder := cfg.NewBuilder(gs)
	for _, unit := range res.Methods {
		result.CFGs[unit.Sym] = builder.Build(unit.Sym, unit.Owner, unit.Def)
	}
	if opts.StopAfter == PhaseCFG {
		result.Diagnostics = drain(gs)
		return result, nil
	}

	inference := infer.New(gs)
	for _, unit := range res.Methods {
		if graph, ok := result.CFGs[unit.Sym]; ok {
			inference.Run(graph)
		}
	}
	result.Diagnostics = drain(gs)
	log.Debugf(ctx, "typechecked %d files, %d methods, %d diagnostics",
		len(files), len(res.Methods), len(result.Diagnostics))
	return result, nil
}

// indexAll parses files with a bounded pool. Workers read only immutable
// data (path, contents); all GS mutation happens on the calling goroutine
// after the join.
func indexAll(ctx context.Context, gs *core.GlobalState, files []core.FileRef, maxThreads int, result *Result) error {
	if maxThreads <= 0 {
		maxThreads = 4
	}
	if maxThreads > len(files) {
		maxThreads = len(files)
	}
	if maxThreads < 1 {
		maxThreads = 1
	}

	type job struct {
		ref    core.FileRef
		source string
	}
	type outcome struct {
		ref     core.FileRef
		prog    *ast.Program
		summary *FileSummary
		errs    []*core.Error
		err     error
	}

	jobs := make(chan job)
	outcomes := make(chan outcome, len(files))
	var wg sync.WaitGroup
	for w := 0; w < maxThreads; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := parser.New()
			for j := range jobs {
				prog, errs, err := p.ParseSource(ctx, []byte(j.source), j.ref)
				o := outcome{ref: j.ref, prog: prog, errs: errs, err: err}
				if prog != nil {
					o.summary = Summarize(j.source, prog)
				}
				outcomes <- o
			}
		}()
	}
	for _, ref := range files {
		file := gs.File(ref)
		if file.Strictness == core.StrictnessIgnore {
			continue
		}
		jobs <- job{ref: ref, source: file.Source}
	}
	close(jobs)
	wg.Wait()
	close(outcomes)

	for o := range outcomes {
		if o.err != nil {
			return fmt.Errorf("failed to index %s: %w", gs.File(o.ref).Path, o.err)
		}
		result.Programs[o.ref] = o.prog
		result.Summaries[o.ref] = o.summary
		for _, e := range o.errs {
			gs.Errors.Push(e)
		}
	}
	return nil
}

// drain empties the error queue, keeping only diagnostics at or above each
// file's strictness level.
func drain(gs *core.GlobalState) []*core.Error {
	var out []*core.Error
	for _, e := range gs.Errors.Drain() {
		level := core.StrictnessFalse
		if e.Loc.Exists() {
			level = gs.File(e.Loc.File).Strictness
		}
		if level == core.StrictnessIgnore {
			continue
		}
		if level < e.Class.MinStrictness() {
			continue
		}
		out = append(out, e)
	}
	return out
}

// TypecheckMethods re-runs CFG lowering and inference for a subset of
// methods; the fast path uses it after body-only edits.
func TypecheckMethods(gs *core.GlobalState, units []resolver.MethodUnit) []*core.Error {
	builder := cfg.NewBuilder(gs)
	inference := infer.New(gs)
	for _, unit := range units {
		graph := builder.Build(unit.Sym, unit.Owner, unit.Def)
		inference.Run(graph)
	}
	return drain(gs)
}
