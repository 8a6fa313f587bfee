// Package resolver populates the global state from desugared trees: classes,
// superclasses, methods and their declared signatures. It runs in two
// phases, headers first so signatures can mention constants defined later in
// the same pass.
package resolver

import (
	"fmt"

	"github.com/viant/strictly/ast"
	"github.com/viant/strictly/core"
)

// MethodUnit pairs an entered method symbol with the body the CFG builder
// will lower.
type MethodUnit struct {
	Sym   core.SymbolRef
	Owner core.SymbolRef
	Def   *ast.MethodDef
	File  core.FileRef
}

// Result carries everything resolution produced beyond GS mutations.
type Result struct {
	Methods []MethodUnit
}

// Resolver resolves one batch of programs against a state.
type Resolver struct {
	gs *core.GlobalState
}

// New builds a resolver over gs.
func New(gs *core.GlobalState) *Resolver {
	return &Resolver{gs: gs}
}

// Run enters symbols for all programs, then resolves signatures. The state's
// tables are unfrozen for the duration and re-frozen on every exit path.
func (r *Resolver) Run(programs []*ast.Program) (*Result, error) {
	result := &Result{}
	r.gs.UnfreezeAll(func() {
		for _, prog := range programs {
			r.enterScope(prog.File, core.SymbolRoot, prog.Stmts, result)
		}
		for i := range result.Methods {
			r.resolveSignature(&result.Methods[i])
		}
	})
	return result, nil
}

func (r *Resolver) enterScope(file core.FileRef, owner core.SymbolRef, stmts []ast.Node, result *Result) {
	private := false
	for _, stmt := range stmts {
		switch node := stmt.(type) {
		case *ast.ClassDef:
			klass := r.enterConstPath(node.NodeLoc(), owner, node.Name)
			sym := r.gs.Symbol(klass)
			if node.IsModule {
				sym.Flags |= core.FlagModule
			}
			if len(node.Superclass) > 0 {
				if super, ok := r.lookupConstPath(node.NodeLoc(), owner, node.Superclass); ok {
					sym.Superclass = super
				} else {
					r.gs.Errors.Push(&core.Error{
						Loc:     node.NodeLoc(),
						Class:   core.ErrUnresolvedConstant,
						Message: fmt.Sprintf("Unable to resolve constant `%s`", joinPath(node.Superclass)),
					})
				}
			}
			r.enterScope(file, klass, node.Body, result)
		case *ast.MethodDef:
			node.IsPrivate = node.IsPrivate || private
			method := r.gs.EnterMethodSymbol(node.NodeLoc(), owner, r.gs.EnterNameUTF8(node.Name))
			sym := r.gs.Symbol(method)
			if node.IsPrivate {
				sym.Flags |= core.FlagPrivate
			}
			result.Methods = append(result.Methods, MethodUnit{Sym: method, Owner: owner, Def: node, File: file})
		case *ast.Send:
			// `private` with no arguments flips visibility for the rest of
			// the body; with a def argument it is handled by the desugarer.
			if node.Recv == nil && node.Method == "private" && len(node.Args) == 0 {
				private = true
			}
			if node.Recv == nil && (node.Method == "include" || node.Method == "extend") && len(node.Args) == 1 {
				if constRef, ok := node.Args[0].(*ast.ConstRef); ok {
					if mixin, ok := r.lookupConstPath(node.NodeLoc(), owner, constRef.Path); ok {
						r.addMixin(owner, mixin, node.NodeLoc())
					} else {
						r.gs.Errors.Push(&core.Error{
							Loc:     node.NodeLoc(),
							Class:   core.ErrUnresolvedConstant,
							Message: fmt.Sprintf("Unable to resolve constant `%s`", joinPath(constRef.Path)),
						})
					}
				}
			}
		case *ast.Assign:
			if target, ok := node.Target.(*ast.ConstRef); ok && len(target.Path) == 1 {
				ref := r.gs.EnterStaticFieldSymbol(node.NodeLoc(), owner, r.gs.EnterNameUTF8(target.Path[0]))
				if r.gs.Symbol(ref).ResultType == nil {
					r.gs.Symbol(ref).ResultType = core.Untyped
				}
			}
		}
	}
}

func (r *Resolver) addMixin(owner, mixin core.SymbolRef, loc core.Loc) {
	sym := r.gs.Symbol(owner)
	for _, existing := range sym.Mixins {
		if existing == mixin {
			return
		}
	}
	if r.gs.DerivesFrom(mixin, owner) && mixin != owner {
		r.gs.Errors.Push(&core.Error{
			Loc:     loc,
			Class:   core.ErrCyclicInclude,
			Message: fmt.Sprintf("Circular dependency: `%s` and `%s`", r.gs.ShowSymbol(owner), r.gs.ShowSymbol(mixin)),
		})
		return
	}
	sym.Mixins = append(sym.Mixins, mixin)
}

func (r *Resolver) enterConstPath(loc core.Loc, owner core.SymbolRef, path []string) core.SymbolRef {
	current := owner
	for _, segment := range path {
		name := r.gs.EnterNameConstant(r.gs.EnterNameUTF8(segment))
		current = r.gs.EnterClassSymbol(loc, current, name)
	}
	return current
}

// lookupConstPath resolves a constant path lexically: the owner's namespace
// chain first, then root. At each step, a scope that lacks the constant
// itself may still reach it through its mixins; two distinct mixins
// supplying the same name at one step make the reference ambiguous, which
// is reported against loc and resolved to the first include for recovery.
func (r *Resolver) lookupConstPath(loc core.Loc, scope core.SymbolRef, path []string) (core.SymbolRef, bool) {
	if len(path) == 0 {
		return 0, false
	}
	first := path[0]
	name := r.gs.EnterNameConstant(r.gs.EnterNameUTF8(first))
	for cursor := scope; ; cursor = r.gs.Symbol(cursor).Owner {
		if found, ok := r.gs.Symbol(cursor).Member(name); ok {
			return r.descend(found, path[1:])
		}
		var candidates []core.SymbolRef
		for _, mixin := range r.gs.Symbol(cursor).Mixins {
			found, ok := r.gs.Symbol(mixin).Member(name)
			if !ok {
				continue
			}
			seen := false
			for _, c := range candidates {
				if c == found {
					seen = true
					break
				}
			}
			if !seen {
				candidates = append(candidates, found)
			}
		}
		if len(candidates) > 0 {
			if len(candidates) > 1 {
				r.gs.Errors.Push(&core.Error{
					Loc:   loc,
					Class: core.ErrAmbiguousConstant,
					Message: fmt.Sprintf("Ambiguous constant `%s`: defined in both `%s` and `%s`",
						first,
						r.gs.ShowSymbol(r.gs.Symbol(candidates[0]).Owner),
						r.gs.ShowSymbol(r.gs.Symbol(candidates[1]).Owner)),
				})
			}
			return r.descend(candidates[0], path[1:])
		}
		if cursor == core.SymbolRoot {
			break
		}
	}
	return 0, false
}

func (r *Resolver) descend(current core.SymbolRef, rest []string) (core.SymbolRef, bool) {
	for _, segment := range rest {
		name := r.gs.EnterNameConstant(r.gs.EnterNameUTF8(segment))
		found, ok := r.gs.Symbol(current).Member(name)
		if !ok {
			return 0, false
		}
		current = found
	}
	return current, true
}

func joinPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += "::"
		}
		out += p
	}
	return out
}
