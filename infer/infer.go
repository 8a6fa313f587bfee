package infer

import (
	"fmt"

	"github.com/viant/strictly/ast"
	"github.com/viant/strictly/cfg"
	"github.com/viant/strictly/core"
)

// roundsPerBlock bounds the fixed-point iteration; the lattice is finite
// per method so a small multiple of the block count always suffices.
const roundsPerBlock = 4

// Inference runs the dataflow pass for one method at a time.
type Inference struct {
	gs *core.GlobalState
}

// New builds an Inference over gs.
func New(gs *core.GlobalState) *Inference {
	return &Inference{gs: gs}
}

// Result reports what inference computed for one method.
type Result struct {
	// ReturnType is the join of all returned values.
	ReturnType core.Type
	// Rounds is the number of fixed-point iterations taken.
	Rounds int
}

type blockState struct {
	entry Environment
	// thenEnv/elseEnv carry the branch-refined exit environments.
	thenEnv Environment
	elseEnv Environment
	seen    bool
}

// Run infers graph to fixed point.
func (inf *Inference) Run(graph *cfg.CFG) *Result {
	gs := inf.gs
	states := make([]blockState, len(graph.Blocks))
	preds := predecessors(graph)

	method := gs.Symbol(graph.Method)
	declaredReturn := method.ResultType
	if declaredReturn == nil {
		declaredReturn = core.Untyped
	}

	result := &Result{ReturnType: core.Bottom}

	// Diagnostics are buffered per round and only the final round's set is
	// pushed, so re-iteration does not duplicate errors.
	var pendingErrors []*core.Error

	maxRounds := roundsPerBlock*len(graph.Blocks) + 8
	rounds := 0
	changed := true
	for changed {
		rounds++
		if rounds > maxRounds {
			// The transfer functions are monotone; hitting the bound means a
			// lattice bug, not a user error. Give up deterministically.
			break
		}
		changed = false
		pendingErrors = pendingErrors[:0]
		result.ReturnType = core.Bottom

		for _, block := range graph.Blocks {
			state := &states[block.ID]
			entry := Environment{}
			anyPred := false
			for _, pred := range preds[block.ID] {
				predState := &states[pred.ID]
				if !predState.seen {
					continue
				}
				var incoming Environment
				if pred.Exit.Then == block && pred.Exit.Else == block {
					incoming = predState.thenEnv
				} else if pred.Exit.Then == block {
					incoming = predState.thenEnv
				} else {
					incoming = predState.elseEnv
				}
				if incoming == nil {
					continue
				}
				entry.joinInto(gs, incoming)
				anyPred = true
			}
			if block == graph.Entry {
				anyPred = true
			}
			if !anyPred {
				continue
			}
			if !state.seen || !state.entry.equal(entry) {
				changed = true
			}
			state.entry = entry
			state.seen = true

			env := entry.clone()
			exec := &execution{
				inf:     inf,
				graph:   graph,
				method:  graph.Method,
				owner:   method.Owner,
				declRet: declaredReturn,
				errors:  &pendingErrors,
				aliases: map[cfg.LocalRef]cfg.LocalRef{},
			}
			for i := range block.Exprs {
				exec.transfer(env, &block.Exprs[i])
			}
			for i := range block.Exprs {
				if ret, ok := block.Exprs[i].Insn.(*cfg.Return); ok {
					result.ReturnType = core.Join(gs, result.ReturnType, env.typeOf(ret.What.Variable))
				}
			}

			thenEnv, elseEnv := exec.refineBranches(env, block)
			if !envEqualNilable(state.thenEnv, thenEnv) || !envEqualNilable(state.elseEnv, elseEnv) {
				changed = true
			}
			state.thenEnv = thenEnv
			state.elseEnv = elseEnv
		}
	}
	result.Rounds = rounds

	for _, e := range pendingErrors {
		gs.Errors.Push(e)
	}
	return result
}

func envEqualNilable(a, b Environment) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	return a.equal(b)
}

func predecessors(graph *cfg.CFG) [][]*cfg.BasicBlock {
	out := make([][]*cfg.BasicBlock, len(graph.Blocks))
	for _, block := range graph.Blocks {
		for _, succ := range block.Successors() {
			out[succ.ID] = append(out[succ.ID], block)
		}
	}
	return out
}

// execution is the per-block transfer context.
type execution struct {
	inf     *Inference
	graph   *cfg.CFG
	method  core.SymbolRef
	owner   core.SymbolRef
	declRet core.Type
	errors  *[]*core.Error

	// aliases tracks Ident copies inside the block so branch refinements
	// reach the named local a condition actually tests.
	aliases map[cfg.LocalRef]cfg.LocalRef
}

func (x *execution) gs() *core.GlobalState { return x.inf.gs }

func (x *execution) report(loc core.Loc, class core.ErrorClass, format string, args ...any) {
	*x.errors = append(*x.errors, &core.Error{
		Loc:     loc,
		Class:   class,
		Message: fmt.Sprintf(format, args...),
	})
}

// transfer applies one binding's effect to env.
func (x *execution) transfer(env Environment, binding *cfg.Binding) {
	gs := x.gs()
	switch insn := binding.Insn.(type) {
	case *cfg.Literal:
		env[binding.Bind] = insn.Type
	case *cfg.Ident:
		insn.What.Type = env.typeOf(insn.What.Variable)
		env[binding.Bind] = insn.What.Type
		x.aliases[binding.Bind] = x.resolveAlias(insn.What.Variable)
	case *cfg.Alias:
		sym := gs.Symbol(insn.What)
		switch sym.Kind {
		case core.SymbolClassOrModule:
			env[binding.Bind] = &core.MetaType{Wrapped: core.MakeClassType(insn.What)}
		default:
			if sym.ResultType != nil {
				env[binding.Bind] = sym.ResultType
			} else {
				env[binding.Bind] = core.Untyped
			}
		}
	case *cfg.LoadSelf:
		env[binding.Bind] = core.MakeClassType(insn.Owner)
	case *cfg.LoadArg:
		args := gs.Symbol(insn.Method).Arguments
		if insn.ArgIndex < len(args) {
			t := args[insn.ArgIndex].Type
			if t == nil {
				t = core.Untyped
			}
			if args[insn.ArgIndex].Repeated {
				t = &core.AppliedType{Class: core.SymbolArray, Args: []core.Type{t}}
			}
			env[binding.Bind] = t
		} else {
			env[binding.Bind] = core.Untyped
		}
	case *cfg.LoadYieldParams:
		env[binding.Bind] = core.Untyped
	case *cfg.Send:
		env[binding.Bind] = x.dispatch(env, binding.Loc, insn)
	case *cfg.SolveConstraint:
		insn.Constraint.Solve(gs)
		env[binding.Bind] = core.Instantiate(gs, env.typeOf(insn.Send), insn.Constraint)
	case *cfg.Cast:
		insn.Value.Type = env.typeOf(insn.Value.Variable)
		env[binding.Bind] = x.applyCast(binding.Loc, insn)
	case *cfg.Return:
		insn.What.Type = env.typeOf(insn.What.Variable)
		x.checkReturn(binding.Loc, insn.What.Type)
		env[binding.Bind] = core.Bottom
	case *cfg.BlockReturn:
		insn.What.Type = env.typeOf(insn.What.Variable)
		if insn.Link.ReturnType == nil {
			insn.Link.ReturnType = insn.What.Type
		} else {
			insn.Link.ReturnType = core.Join(gs, insn.Link.ReturnType, insn.What.Type)
		}
		env[binding.Bind] = core.NilType()
	case *cfg.TAbsurd:
		insn.What.Type = env.typeOf(insn.What.Variable)
		if !core.IsBottom(insn.What.Type) {
			x.report(binding.Loc, core.ErrNonExhaustiveCase,
				"Control flow could reach `T.absurd` because the type `%s` wasn't handled",
				insn.What.Type.Show(gs))
		}
		env[binding.Bind] = core.Bottom
	case *cfg.Unanalyzable:
		env[binding.Bind] = core.Untyped
	case *cfg.NotSupported:
		env[binding.Bind] = core.Untyped
	}
}

func (x *execution) resolveAlias(ref cfg.LocalRef) cfg.LocalRef {
	for {
		next, ok := x.aliases[ref]
		if !ok || next == ref {
			return ref
		}
		ref = next
	}
}

func (x *execution) applyCast(loc core.Loc, insn *cfg.Cast) core.Type {
	gs := x.gs()
	from := insn.Value.Type
	switch insn.Kind {
	case ast.CastLet:
		if !core.IsSubType(gs, from, insn.Type) {
			x.report(loc, core.ErrCastTypeMismatch,
				"Argument does not have asserted type: expected `%s`, got `%s`",
				insn.Type.Show(gs), from.Show(gs))
		}
		return insn.Type
	case ast.CastAssertType:
		if !core.IsSubType(gs, from, insn.Type) {
			x.report(loc, core.ErrCastTypeMismatch,
				"Argument does not have asserted type: expected `%s`, got `%s`",
				insn.Type.Show(gs), from.Show(gs))
			return insn.Type
		}
		// The runtime check is the external concern; the static result
		// proxies the observed type over the asserted view.
		return core.MakeProxy(gs, from, insn.Type)
	case ast.CastCast:
		// A downcast is unchecked by design of the annotation.
		return insn.Type
	case ast.CastMust:
		refined := subtractType(gs, from, core.MakeClassType(core.SymbolNilClass))
		if core.IsBottom(refined) {
			return core.Untyped
		}
		return refined
	case ast.CastUnsafe:
		return core.Untyped
	}
	return core.Untyped
}

func (x *execution) checkReturn(loc core.Loc, got core.Type) {
	gs := x.gs()
	declared := x.declRet
	if core.IsVoid(declared) {
		// Any value may be returned from void; it is only usable for
		// control flow at the caller.
		return
	}
	declared = core.ReplaceSelfType(gs, declared, core.MakeClassType(x.owner))
	if !core.IsSubType(gs, got, declared) {
		x.report(loc, core.ErrReturnTypeMismatch,
			"Expected `%s` but found `%s` for method result type",
			declared.Show(gs), got.Show(gs))
	}
}
