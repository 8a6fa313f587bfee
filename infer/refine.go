package infer

import (
	"github.com/viant/strictly/cfg"
	"github.com/viant/strictly/core"
)

// refineBranches computes the then/else successor environments for a block,
// applying flow-sensitive refinement when the exit condition is a
// recognized predicate. Refinements affect only the branches, never their
// merge.
func (x *execution) refineBranches(env Environment, block *cfg.BasicBlock) (thenEnv, elseEnv Environment) {
	if block.Exit.Cond.Variable == 0 || block.Exit.Then == block.Exit.Else {
		return env, env
	}
	gs := x.gs()
	thenEnv = env.clone()
	elseEnv = env.clone()

	condVar := x.resolveAlias(block.Exit.Cond.Variable)

	// Truthiness of the condition itself: nil and false are excluded on the
	// then branch; the else branch keeps only the falsy remainder.
	condType := env.typeOf(condVar)
	if !core.IsUntyped(condType) {
		truthy := subtractType(gs, condType, core.MakeClassType(core.SymbolNilClass))
		truthy = subtractType(gs, truthy, core.MakeClassType(core.SymbolFalseClass))
		thenEnv[condVar] = truthy
		falsy := core.MakeOr(gs, core.NilType(), &core.LiteralType{Kind: core.LiteralBoolean, BoolVal: false})
		elseEnv[condVar] = core.Meet(gs, condType, falsy)
	}

	// Predicate sends refine their receiver or argument.
	defining := findDefining(block, block.Exit.Cond.Variable)
	send, ok := defining.(*cfg.Send)
	if !ok {
		return thenEnv, elseEnv
	}
	method := gs.ShowName(send.Method)
	recv := x.resolveAlias(send.Recv.Variable)
	recvType := env.typeOf(recv)

	switch method {
	case "nil?":
		thenEnv[recv] = core.NilType()
		elseEnv[recv] = subtractType(gs, recvType, core.MakeClassType(core.SymbolNilClass))
	case "is_a?", "kind_of?":
		if len(send.Args) == 1 {
			if meta, ok := env.typeOf(send.Args[0].Variable).(*core.MetaType); ok {
				x.refineTo(gs, thenEnv, elseEnv, recv, recvType, meta.Wrapped)
			}
		}
	case "===":
		// case-arm test: the pattern is the receiver, the scrutinee the
		// argument.
		if len(send.Args) == 1 {
			scrut := x.resolveAlias(send.Args[0].Variable)
			scrutType := env.typeOf(scrut)
			switch pattern := env.typeOf(recv).(type) {
			case *core.MetaType:
				x.refineTo(gs, thenEnv, elseEnv, scrut, scrutType, pattern.Wrapped)
			case *core.LiteralType:
				thenEnv[scrut] = pattern
			}
		}
	case "==":
		if len(send.Args) == 1 {
			if lit, ok := env.typeOf(send.Args[0].Variable).(*core.LiteralType); ok {
				thenEnv[recv] = lit
			}
		}
	}
	return thenEnv, elseEnv
}

// refineTo narrows target to klassType on the then branch and subtracts it
// on the else branch.
func (x *execution) refineTo(gs *core.GlobalState, thenEnv, elseEnv Environment, target cfg.LocalRef, current, klassType core.Type) {
	if core.IsUntyped(current) {
		thenEnv[target] = klassType
		return
	}
	meet := core.Meet(gs, current, klassType)
	if core.IsBottom(meet) {
		// The test can still pass for subclasses the static type does not
		// know about; keep the tested class.
		meet = klassType
	}
	thenEnv[target] = meet
	elseEnv[target] = subtractType(gs, current, klassType)
}

// findDefining locates the instruction that binds local inside block.
func findDefining(block *cfg.BasicBlock, local cfg.LocalRef) cfg.Instruction {
	for i := len(block.Exprs) - 1; i >= 0; i-- {
		if block.Exprs[i].Bind == local {
			return block.Exprs[i].Insn
		}
	}
	return nil
}

// subtractType removes the components of t that are subtypes of removed.
// Non-union types collapse to bottom when fully covered.
func subtractType(gs *core.GlobalState, t, removed core.Type) core.Type {
	t = core.DealiasType(gs, t)
	if core.IsUntyped(t) {
		return t
	}
	if or, ok := t.(*core.OrType); ok {
		left := subtractType(gs, or.Left, removed)
		right := subtractType(gs, or.Right, removed)
		return core.MakeOr(gs, left, right)
	}
	if core.IsSubType(gs, t, removed) {
		return core.Bottom
	}
	return t
}
