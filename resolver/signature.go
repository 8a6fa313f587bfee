package resolver

import (
	"fmt"

	"github.com/viant/strictly/ast"
	"github.com/viant/strictly/core"
)

// resolveSignature attaches declared argument and result types to a method
// symbol. Unannotated methods get untyped arguments and an untyped result.
func (r *Resolver) resolveSignature(unit *MethodUnit) {
	gs := r.gs
	sym := gs.Symbol(unit.Sym)
	def := unit.Def
	sig := def.Sig

	typeParams := map[string]core.SymbolRef{}
	if sig != nil {
		if sig.Abstract {
			sym.Flags |= core.FlagAbstract
		}
		if sig.Override {
			sym.Flags |= core.FlagOverride
		}
		if sig.Overridable {
			sym.Flags |= core.FlagOverridable
		}
		if sig.Final {
			sym.Flags |= core.FlagFinal
		}
		for _, tp := range sig.TypeParams {
			ref := gs.EnterTypeArgument(sig.NodeLoc(), unit.Sym, gs.EnterNameUTF8(tp))
			typeParams[tp] = ref
		}
	}

	declared := map[string]core.Type{}
	declaredLoc := map[string]core.Loc{}
	if sig != nil {
		for _, p := range sig.Params {
			declared[p.Name] = r.resolveTypeExpr(unit.Owner, p.Type, typeParams)
			declaredLoc[p.Name] = p.Loc
		}
	}

	sym.Arguments = sym.Arguments[:0]
	for _, p := range def.Params {
		argType, ok := declared[p.Name]
		if !ok {
			argType = core.Untyped
		}
		loc := p.Loc
		if dl, ok := declaredLoc[p.Name]; ok {
			loc = dl
		}
		gs.EnterMethodArgument(unit.Sym, core.ArgInfo{
			Name:     gs.EnterNameUTF8(p.Name),
			Type:     argType,
			Loc:      loc,
			Keyword:  p.Kind == ast.ParamKeyword || p.Kind == ast.ParamKeywordOptional,
			Optional: p.Kind == ast.ParamOptional || p.Kind == ast.ParamKeywordOptional,
			Repeated: p.Kind == ast.ParamRest,
			Block:    p.Kind == ast.ParamBlock,
		})
	}

	switch {
	case sig == nil:
		sym.ResultType = core.Untyped
	case sig.Void:
		sym.ResultType = core.Void
		sym.Flags |= core.FlagVoidResult
	case sig.Return != nil:
		sym.ResultType = r.resolveTypeExpr(unit.Owner, sig.Return, typeParams)
	default:
		sym.ResultType = core.Untyped
	}
}

// resolveTypeExpr turns an annotation into a core.Type, emitting resolver
// diagnostics for unresolvable constants and degrading to untyped.
func (r *Resolver) resolveTypeExpr(scope core.SymbolRef, expr ast.TypeExpr, typeParams map[string]core.SymbolRef) core.Type {
	gs := r.gs
	if expr == nil {
		return core.Untyped
	}
	switch t := expr.(type) {
	case *ast.TypeUntyped:
		return core.Untyped
	case *ast.TypeSelf:
		return core.SelfTypeSingleton
	case *ast.TypeNoReturn:
		return core.Bottom
	case *ast.TypeBoolean:
		return core.BooleanType()
	case *ast.TypeNilable:
		return core.MakeOr(gs, r.resolveTypeExpr(scope, t.Inner, typeParams), core.NilType())
	case *ast.TypeAny:
		out := core.Type(core.Bottom)
		for _, opt := range t.Options {
			out = core.MakeOr(gs, out, r.resolveTypeExpr(scope, opt, typeParams))
		}
		return out
	case *ast.TypeAll:
		out := core.Type(core.Top)
		for _, opt := range t.Options {
			out = core.MakeAnd(gs, out, r.resolveTypeExpr(scope, opt, typeParams))
		}
		return out
	case *ast.TypeVarRef:
		if ref, ok := typeParams[t.Name]; ok {
			return &core.TypeMemberRef{Symbol: ref}
		}
		r.gs.Errors.Push(&core.Error{
			Loc:     t.NodeLoc(),
			Class:   core.ErrUnresolvedConstant,
			Message: fmt.Sprintf("Unknown type parameter `%s`", t.Name),
		})
		return core.Untyped
	case *ast.TypeTuple:
		elems := make([]core.Type, len(t.Elems))
		for i, e := range t.Elems {
			elems[i] = r.resolveTypeExpr(scope, e, typeParams)
		}
		return &core.TupleType{Elems: elems}
	case *ast.TypeShape:
		shape := &core.ShapeType{}
		for i, key := range t.Keys {
			shape.Keys = append(shape.Keys, &core.LiteralType{Kind: core.LiteralSymbol, StrVal: gs.EnterNameUTF8(key)})
			shape.Values = append(shape.Values, r.resolveTypeExpr(scope, t.Values[i], typeParams))
		}
		return shape
	case *ast.TypeConst:
		if len(t.Path) == 1 {
			if ref, ok := typeParams[t.Path[0]]; ok {
				return &core.TypeMemberRef{Symbol: ref}
			}
		}
		sym, ok := r.lookupConstPath(t.NodeLoc(), scope, t.Path)
		if !ok {
			r.gs.Errors.Push(&core.Error{
				Loc:     t.NodeLoc(),
				Class:   core.ErrUnresolvedConstant,
				Message: fmt.Sprintf("Unable to resolve constant `%s`", joinPath(t.Path)),
			})
			return core.Untyped
		}
		return core.MakeClassType(sym)
	case *ast.TypeApply:
		sym, ok := r.lookupConstPath(t.NodeLoc(), scope, t.Base.Path)
		if !ok {
			r.gs.Errors.Push(&core.Error{
				Loc:     t.NodeLoc(),
				Class:   core.ErrUnresolvedConstant,
				Message: fmt.Sprintf("Unable to resolve constant `%s`", joinPath(t.Base.Path)),
			})
			return core.Untyped
		}
		args := make([]core.Type, len(t.Args))
		for i, a := range t.Args {
			args[i] = r.resolveTypeExpr(scope, a, typeParams)
		}
		return &core.AppliedType{Class: sym, Args: args}
	}
	return core.Untyped
}
