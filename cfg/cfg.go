// Package cfg lowers desugared method bodies into per-method control-flow
// graphs of three-address instructions in SSA form. Types are not computed
// here; the inference pass annotates the graph afterwards.
package cfg

import (
	"fmt"

	"github.com/viant/strictly/ast"
	"github.com/viant/strictly/core"
)

// LocalRef identifies an SSA local inside one CFG. Zero is invalid.
type LocalRef uint32

// Local is one SSA variable: a source name plus a version counter. Merge
// locals encode phi semantics and are assigned once per predecessor.
type Local struct {
	Name    core.NameRef
	Version int
	IsMerge bool
}

// VariableUseSite is one use of a local; inference fills Type in place.
type VariableUseSite struct {
	Variable LocalRef
	Type     core.Type
	Loc      core.Loc
}

// Instruction is the closed set of three-address operations.
type Instruction interface {
	insn()
}

// Ident copies another local.
type Ident struct {
	What VariableUseSite
}

// Alias references a global symbol (constant, static field).
type Alias struct {
	What core.SymbolRef
}

// Literal produces a constant of a known type.
type Literal struct {
	Type core.Type
}

// KeywordArg is one keyword argument at a send site.
type KeywordArg struct {
	Name core.NameRef
	Arg  VariableUseSite
}

// Send is a method call; the receiver was bound to a temporary by the
// builder.
type Send struct {
	Recv        VariableUseSite
	Method      core.NameRef
	Args        []VariableUseSite
	Kwargs      []KeywordArg
	Link        *BlockLink
	IsPrivateOk bool
	// MethodLoc is the name span used for method-level diagnostics.
	MethodLoc core.Loc
	// Constraint is attached when dispatch leaves unsolved type variables
	// for a later SolveConstraint.
	Constraint *core.TypeConstraint
}

// BlockLink ties a send to the literal block lowered inline after it.
type BlockLink struct {
	// Params are the block's declared parameter names.
	Params []core.NameRef
	// ReturnType accumulates BlockReturn joins during inference.
	ReturnType core.Type
}

// Return exits the method with a value.
type Return struct {
	What VariableUseSite
}

// BlockReturn ends one block-body evaluation.
type BlockReturn struct {
	Link *BlockLink
	What VariableUseSite
}

// LoadSelf produces the enclosing class's self type.
type LoadSelf struct {
	Owner core.SymbolRef
}

// LoadArg produces the declared type of one method argument.
type LoadArg struct {
	Method   core.SymbolRef
	ArgIndex int
}

// LoadYieldParams produces one parameter of an inline block.
type LoadYieldParams struct {
	Link     *BlockLink
	ArgIndex int
}

// SolveConstraint completes a deferred generic dispatch.
type SolveConstraint struct {
	Send       LocalRef
	Constraint *core.TypeConstraint
}

// Cast re-types a value; Kind selects let/cast/must/assert semantics.
type Cast struct {
	Value VariableUseSite
	Type  core.Type
	Kind  ast.CastKind
}

// TAbsurd asserts its operand was proven unreachable.
type TAbsurd struct {
	What VariableUseSite
}

// Unanalyzable types as untyped without complaint.
type Unanalyzable struct{}

// NotSupported marks constructs the lowering rejects outright.
type NotSupported struct {
	Reason string
}

func (*Ident) insn()           {}
func (*Alias) insn()           {}
func (*Literal) insn()         {}
func (*Send) insn()            {}
func (*Return) insn()          {}
func (*BlockReturn) insn()     {}
func (*LoadSelf) insn()        {}
func (*LoadArg) insn()         {}
func (*LoadYieldParams) insn() {}
func (*SolveConstraint) insn() {}
func (*Cast) insn()            {}
func (*TAbsurd) insn()         {}
func (*Unanalyzable) insn()    {}
func (*NotSupported) insn()    {}

// Binding assigns one instruction's result to a local.
type Binding struct {
	Bind LocalRef
	Insn Instruction
	Loc  core.Loc
}

// BlockExit terminates a basic block. Cond.Variable == 0 means an
// unconditional transfer through Then; Else mirrors Then in that case.
type BlockExit struct {
	Cond VariableUseSite
	Then *BasicBlock
	Else *BasicBlock
	Loc  core.Loc
}

// BasicBlock is an ordered instruction list plus a terminator.
type BasicBlock struct {
	ID    int
	Exprs []Binding
	Exit  BlockExit
}

// CFG is the per-method graph.
type CFG struct {
	Method core.SymbolRef
	Blocks []*BasicBlock
	Entry  *BasicBlock
	Exit   *BasicBlock

	// Locals[1:] are the SSA variables; index 0 is a placeholder so
	// LocalRef zero stays invalid.
	Locals []Local
}

// Local returns the variable behind a ref.
func (c *CFG) Local(ref LocalRef) Local {
	return c.Locals[ref]
}

// Successors lists a block's distinct successor blocks.
func (b *BasicBlock) Successors() []*BasicBlock {
	if b.Exit.Then == nil {
		return nil
	}
	if b.Exit.Else == nil || b.Exit.Else == b.Exit.Then {
		return []*BasicBlock{b.Exit.Then}
	}
	return []*BasicBlock{b.Exit.Then, b.Exit.Else}
}

// ReachableFromEntry returns the set of blocks reachable from entry.
func (c *CFG) ReachableFromEntry() map[int]bool {
	seen := map[int]bool{}
	var walk func(*BasicBlock)
	walk = func(b *BasicBlock) {
		if b == nil || seen[b.ID] {
			return
		}
		seen[b.ID] = true
		for _, succ := range b.Successors() {
			walk(succ)
		}
	}
	walk(c.Entry)
	return seen
}

// Sanity verifies the output contract: unique entry/exit, reachability and
// the single-assignment discipline. Violations panic; they are builder bugs.
func (c *CFG) Sanity() {
	if c.Entry == nil || c.Exit == nil {
		panic("cfg: missing entry or exit block")
	}
	reachable := c.ReachableFromEntry()
	assigned := map[LocalRef]int{}
	for _, block := range c.Blocks {
		if !reachable[block.ID] {
			panic(fmt.Sprintf("cfg: block %d unreachable from entry", block.ID))
		}
		for _, binding := range block.Exprs {
			assigned[binding.Bind]++
		}
	}
	for ref, count := range assigned {
		if count > 1 && !c.Locals[ref].IsMerge {
			panic(fmt.Sprintf("cfg: local %d assigned %d times", ref, count))
		}
	}
}
