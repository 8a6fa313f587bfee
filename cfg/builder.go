package cfg

import (
	"github.com/viant/strictly/ast"
	"github.com/viant/strictly/core"
)

// Builder lowers one method body at a time.
type Builder struct {
	gs *core.GlobalState
}

// NewBuilder builds a Builder over gs.
func NewBuilder(gs *core.GlobalState) *Builder {
	return &Builder{gs: gs}
}

type loopFrame struct {
	header *BasicBlock
	after  *BasicBlock
	merges map[core.NameRef]LocalRef
}

type buildState struct {
	gs     *core.GlobalState
	cfg    *CFG
	method core.SymbolRef
	owner  core.SymbolRef

	// current is nil once control has diverged (after return/raise/break).
	current *BasicBlock
	env     map[core.NameRef]LocalRef

	versions map[core.NameRef]int
	loops    []loopFrame
	links    []*BlockLink

	deadReported bool

	selfName core.NameRef
}

// Build lowers def's body into a CFG for method, which is owned by owner.
// The name table is unfrozen for the duration: lowering mints temporaries.
func (b *Builder) Build(method, owner core.SymbolRef, def *ast.MethodDef) *CFG {
	var out *CFG
	b.gs.UnfreezeNameTable(func() {
		out = b.build(method, owner, def)
	})
	return out
}

func (b *Builder) build(method, owner core.SymbolRef, def *ast.MethodDef) *CFG {
	s := &buildState{
		gs:       b.gs,
		cfg:      &CFG{Method: method, Locals: []Local{{}}},
		method:   method,
		owner:    owner,
		env:      map[core.NameRef]LocalRef{},
		versions: map[core.NameRef]int{},
		selfName: b.gs.EnterNameUTF8("self"),
	}
	entry := s.newBlock()
	exit := s.newBlock()
	s.cfg.Entry = entry
	s.cfg.Exit = exit
	s.current = entry

	selfLocal := s.newLocal(s.selfName)
	s.emit(selfLocal, &LoadSelf{Owner: owner}, def.NodeLoc())
	s.env[s.selfName] = selfLocal

	sym := b.gs.Symbol(method)
	for i, arg := range sym.Arguments {
		local := s.newLocal(arg.Name)
		s.emit(local, &LoadArg{Method: method, ArgIndex: i}, arg.Loc)
		s.env[arg.Name] = local
	}

	last := s.lowerSeq(def.Body)
	if s.current != nil {
		if last == 0 {
			last = s.temp(def.NodeLoc())
			s.emit(last, &Literal{Type: core.NilType()}, def.NodeLoc())
		}
		s.emit(0, &Return{What: s.use(last, def.NodeLoc())}, def.NodeLoc())
		s.jump(exit, def.NodeLoc())
	}
	s.pruneUnreachable()
	s.cfg.Sanity()
	return s.cfg
}

func (s *buildState) newBlock() *BasicBlock {
	block := &BasicBlock{ID: len(s.cfg.Blocks)}
	s.cfg.Blocks = append(s.cfg.Blocks, block)
	return block
}

func (s *buildState) newLocal(name core.NameRef) LocalRef {
	s.versions[name]++
	ref := LocalRef(len(s.cfg.Locals))
	s.cfg.Locals = append(s.cfg.Locals, Local{Name: name, Version: s.versions[name]})
	return ref
}

func (s *buildState) newMergeLocal(name core.NameRef) LocalRef {
	s.versions[name]++
	ref := LocalRef(len(s.cfg.Locals))
	s.cfg.Locals = append(s.cfg.Locals, Local{Name: name, Version: s.versions[name], IsMerge: true})
	return ref
}

func (s *buildState) temp(loc core.Loc) LocalRef {
	name := s.gs.FreshNameUnique(core.UniqueTemp, s.gs.EnterNameUTF8("<tmp>"), s.gs.FreshUniqueCounter())
	return s.newLocal(name)
}

func (s *buildState) use(ref LocalRef, loc core.Loc) VariableUseSite {
	return VariableUseSite{Variable: ref, Loc: loc}
}

func (s *buildState) emit(bind LocalRef, insn Instruction, loc core.Loc) {
	if s.current == nil {
		return
	}
	if bind == 0 {
		bind = s.temp(loc)
	}
	s.current.Exprs = append(s.current.Exprs, Binding{Bind: bind, Insn: insn, Loc: loc})
}

func (s *buildState) emitInto(block *BasicBlock, bind LocalRef, insn Instruction, loc core.Loc) {
	block.Exprs = append(block.Exprs, Binding{Bind: bind, Insn: insn, Loc: loc})
}

// jump terminates the current block with an unconditional edge.
func (s *buildState) jump(to *BasicBlock, loc core.Loc) {
	if s.current == nil {
		return
	}
	s.current.Exit = BlockExit{Then: to, Else: to, Loc: loc}
	s.current = nil
}

// branch terminates the current block on cond.
func (s *buildState) branch(cond LocalRef, then, els *BasicBlock, loc core.Loc) {
	if s.current == nil {
		return
	}
	s.current.Exit = BlockExit{Cond: s.use(cond, loc), Then: then, Else: els, Loc: loc}
	s.current = nil
}

func (s *buildState) enter(block *BasicBlock) {
	s.current = block
	s.deadReported = false
}

// pruneUnreachable drops blocks no path reaches; they exist only when both
// arms of a lowering diverged.
func (s *buildState) pruneUnreachable() {
	reachable := s.cfg.ReachableFromEntry()
	if !reachable[s.cfg.Exit.ID] {
		// Methods that cannot fall through still need their exit; keep the
		// exit block in the list even though no edge reaches it.
		reachable[s.cfg.Exit.ID] = true
	}
	var kept []*BasicBlock
	for _, block := range s.cfg.Blocks {
		if reachable[block.ID] {
			kept = append(kept, block)
		}
	}
	for i, block := range kept {
		block.ID = i
	}
	s.cfg.Blocks = kept
}

// lowerSeq lowers statements in order, returning the local holding the last
// value. Statements past a diverging point are reported dead and skipped.
func (s *buildState) lowerSeq(stmts []ast.Node) LocalRef {
	var last LocalRef
	for _, stmt := range stmts {
		if s.current == nil {
			if !s.deadReported {
				s.deadReported = true
				s.gs.Errors.Push(&core.Error{
					Loc:     stmt.NodeLoc(),
					Class:   core.ErrUnreachableCode,
					Message: "This code is unreachable",
				})
			}
			continue
		}
		last = s.lower(stmt)
	}
	return last
}

// mergeEnvs inserts phi-encoding copies into each predecessor and returns
// the merged environment. Predecessors whose env is nil diverged and are
// skipped.
func (s *buildState) mergeEnvs(loc core.Loc, preds []*BasicBlock, envs []map[core.NameRef]LocalRef) map[core.NameRef]LocalRef {
	var live []int
	for i := range preds {
		if preds[i] != nil && envs[i] != nil {
			live = append(live, i)
		}
	}
	if len(live) == 0 {
		return nil
	}
	if len(live) == 1 {
		return envs[live[0]]
	}
	merged := map[core.NameRef]LocalRef{}
	names := map[core.NameRef]bool{}
	for _, i := range live {
		for name := range envs[i] {
			names[name] = true
		}
	}
	for name := range names {
		same := true
		first := LocalRef(0)
		for _, i := range live {
			ref, ok := envs[i][name]
			if !ok {
				same = false
				break
			}
			if first == 0 {
				first = ref
			} else if ref != first {
				same = false
				break
			}
		}
		if same && first != 0 {
			merged[name] = first
			continue
		}
		m := s.newMergeLocal(name)
		for _, i := range live {
			if ref, ok := envs[i][name]; ok {
				s.emitInto(preds[i], m, &Ident{What: s.use(ref, loc)}, loc)
			} else {
				// The variable is nil on paths that never assigned it.
				s.emitInto(preds[i], m, &Literal{Type: core.NilType()}, loc)
			}
		}
		merged[name] = m
	}
	return merged
}

func copyEnv(env map[core.NameRef]LocalRef) map[core.NameRef]LocalRef {
	out := make(map[core.NameRef]LocalRef, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}

// collectAssigned gathers the local names any statement in the subtree
// assigns; loop headers need them to set up merge locals.
func collectAssigned(gs *core.GlobalState, nodes []ast.Node, into map[string]bool) {
	for _, n := range nodes {
		switch node := n.(type) {
		case *ast.Assign:
			if target, ok := node.Target.(*ast.Local); ok {
				into[target.Name] = true
			}
			collectAssigned(gs, []ast.Node{node.Value}, into)
		case *ast.If:
			collectAssigned(gs, []ast.Node{node.Cond}, into)
			collectAssigned(gs, node.Then, into)
			collectAssigned(gs, node.Else, into)
		case *ast.While:
			collectAssigned(gs, []ast.Node{node.Cond}, into)
			collectAssigned(gs, node.Body, into)
		case *ast.Case:
			for _, when := range node.Whens {
				collectAssigned(gs, when.Body, into)
			}
			collectAssigned(gs, node.Else, into)
		case *ast.Begin:
			collectAssigned(gs, node.Body, into)
			for _, rescue := range node.Rescues {
				collectAssigned(gs, rescue.Body, into)
			}
			collectAssigned(gs, node.Ensure, into)
		case *ast.Send:
			if node.Block != nil {
				collectAssigned(gs, node.Block.Body, into)
			}
		}
	}
}
