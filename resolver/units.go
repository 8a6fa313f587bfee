package resolver

import (
	"github.com/viant/strictly/ast"
	"github.com/viant/strictly/core"
)

// Units maps an already-resolved program's method definitions back to their
// entered symbols. Lookups intern-or-return names, so an already-resolved
// program leaves gs unchanged. Definitions whose symbols are absent (new
// signatures, new classes) come back with Sym == 0 so the caller knows
// resolution is stale.
func Units(gs *core.GlobalState, prog *ast.Program) []MethodUnit {
	var out []MethodUnit
	var walk func(owner core.SymbolRef, stmts []ast.Node)
	walk = func(owner core.SymbolRef, stmts []ast.Node) {
		for _, stmt := range stmts {
			switch node := stmt.(type) {
			case *ast.ClassDef:
				current := owner
				found := true
				for _, segment := range node.Name {
					name := gs.EnterNameConstant(gs.EnterNameUTF8(segment))
					next, ok := gs.Symbol(current).Member(name)
					if !ok {
						found = false
						break
					}
					current = next
				}
				if found {
					walk(current, node.Body)
				}
			case *ast.MethodDef:
				name := gs.EnterNameUTF8(node.Name)
				sym, _ := gs.Symbol(owner).Member(name)
				out = append(out, MethodUnit{Sym: sym, Owner: owner, Def: node, File: prog.File})
			}
		}
	}
	walk(core.SymbolRoot, prog.Stmts)
	return out
}

// QualifiedName renders owner#method the way file summaries key method
// hashes.
func QualifiedName(gs *core.GlobalState, unit MethodUnit) string {
	prefix := ""
	for cursor := unit.Owner; cursor != core.SymbolRoot; cursor = gs.Symbol(cursor).Owner {
		segment := gs.ShowName(gs.Symbol(cursor).Name)
		if prefix == "" {
			prefix = segment
		} else {
			prefix = segment + "::" + prefix
		}
	}
	return prefix + "#" + unit.Def.Name
}
