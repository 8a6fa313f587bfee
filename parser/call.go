package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/viant/strictly/ast"
)

// call lowers a call node; the T.* cast helpers and sig blocks are
// intercepted here before generic Send lowering.
func (d *desugarer) call(n *sitter.Node) ast.Node {
	loc := d.loc(n)
	recvNode := n.ChildByFieldName("receiver")
	methodNode := n.ChildByFieldName("method")
	method := ""
	if methodNode != nil {
		method = d.text(methodNode)
	}

	if special := d.tHelper(n, recvNode, method); special != nil {
		return special
	}
	if method == "sig" && recvNode == nil {
		if sig := d.sigBlock(n); sig != nil {
			return sig
		}
	}
	if method == "private" && recvNode == nil {
		// `private def m ... end` lowers to the definition, marked private.
		if args := n.ChildByFieldName("arguments"); args != nil && args.NamedChildCount() == 1 {
			if inner := args.NamedChild(0); inner.Type() == "method" || inner.Type() == "singleton_method" {
				def := d.methodDef(inner, inner.Type() == "singleton_method").(*ast.MethodDef)
				def.IsPrivate = true
				return def
			}
		}
	}

	out := &ast.Send{Method: method}
	out.Loc = loc
	if methodNode != nil {
		out.MethodLoc = d.loc(methodNode)
	}
	if recvNode != nil {
		out.Recv = d.expr(recvNode)
	}
	if opNode := n.ChildByFieldName("operator"); opNode != nil && d.text(opNode) == "&." {
		out.SafeNav = true
	}
	if args := n.ChildByFieldName("arguments"); args != nil {
		d.lowerArguments(args, out)
	}
	if blockNode := n.ChildByFieldName("block"); blockNode != nil {
		out.Block = d.blockLit(blockNode)
	}
	return out
}

func (d *desugarer) lowerArguments(args *sitter.Node, out *ast.Send) {
	for i := 0; i < int(args.NamedChildCount()); i++ {
		child := args.NamedChild(i)
		switch child.Type() {
		case "pair":
			key := child.ChildByFieldName("key")
			name := strings.TrimSuffix(d.text(key), ":")
			out.KwNames = append(out.KwNames, name)
			out.KwValues = append(out.KwValues, d.expr(child.ChildByFieldName("value")))
		case "block_argument":
			// &blk forwarding; typed as untyped downstream.
			un := &ast.Unanalyzable{Reason: "block argument forwarding"}
			un.Loc = d.loc(child)
			out.Args = append(out.Args, un)
		default:
			out.Args = append(out.Args, d.expr(child))
		}
	}
}

func (d *desugarer) blockLit(n *sitter.Node) *ast.BlockLit {
	out := &ast.BlockLit{}
	out.Loc = d.loc(n)
	d.pushScope()
	defer d.popScope()
	if params := n.ChildByFieldName("parameters"); params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			child := params.NamedChild(i)
			if child.Type() != "identifier" {
				continue
			}
			name := d.text(child)
			d.declareLocal(name)
			out.Params = append(out.Params, ast.Param{Name: name, Kind: ast.ParamRequired, Loc: d.loc(child)})
		}
	}
	out.Body = d.stmts(n.ChildByFieldName("body"))
	return out
}

// tHelper recognizes the closed set of T.* builder calls.
func (d *desugarer) tHelper(n, recvNode *sitter.Node, method string) ast.Node {
	if recvNode == nil || recvNode.Type() != "constant" || d.text(recvNode) != "T" {
		return nil
	}
	loc := d.loc(n)
	args := n.ChildByFieldName("arguments")
	argAt := func(i int) *sitter.Node {
		if args == nil || int(args.NamedChildCount()) <= i {
			return nil
		}
		return args.NamedChild(i)
	}
	switch method {
	case "let", "cast":
		kind := ast.CastLet
		if method == "cast" {
			kind = ast.CastCast
		}
		out := &ast.Cast{Kind: kind, Value: d.expr(argAt(0)), Type: d.typeExpr(argAt(1))}
		out.Loc = loc
		return out
	case "assert_type!":
		out := &ast.Cast{Kind: ast.CastAssertType, Value: d.expr(argAt(0)), Type: d.typeExpr(argAt(1))}
		out.Loc = loc
		return out
	case "must":
		out := &ast.Cast{Kind: ast.CastMust, Value: d.expr(argAt(0))}
		out.Loc = loc
		return out
	case "unsafe":
		out := &ast.Cast{Kind: ast.CastUnsafe, Value: d.expr(argAt(0))}
		out.Loc = loc
		return out
	case "absurd":
		out := &ast.Absurd{Value: d.expr(argAt(0))}
		out.Loc = loc
		return out
	case "reveal_type":
		// Behaves as identity for inference; the diagnostic side is a
		// dedicated editor query concern.
		if v := d.expr(argAt(0)); v != nil {
			return v
		}
	}
	return nil
}

// sigBlock lowers `sig { params(...).returns(...) }` into an
// ast.Signature; returns nil when the block shape is not the builder chain.
func (d *desugarer) sigBlock(n *sitter.Node) ast.Node {
	blockNode := n.ChildByFieldName("block")
	if blockNode == nil {
		return nil
	}
	body := blockNode.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return nil
	}
	sig := &ast.Signature{}
	sig.Loc = d.loc(n)
	for i := 0; i < int(body.NamedChildCount()); i++ {
		if !d.sigChain(body.NamedChild(i), sig) {
			return nil
		}
	}
	return sig
}

// sigChain walks one builder chain like params(x: X).returns(Y),
// accumulating into sig. The chain is receiver-linked calls; recurse into
// the receiver first so builders apply left to right.
func (d *desugarer) sigChain(n *sitter.Node, sig *ast.Signature) bool {
	switch n.Type() {
	case "call":
		recv := n.ChildByFieldName("receiver")
		if recv != nil {
			if !d.sigChain(recv, sig) {
				return false
			}
		}
		method := d.text(n.ChildByFieldName("method"))
		return d.sigBuilder(n, method, sig)
	case "identifier":
		return d.sigBuilder(n, d.text(n), sig)
	}
	return false
}

func (d *desugarer) sigBuilder(n *sitter.Node, method string, sig *ast.Signature) bool {
	args := n.ChildByFieldName("arguments")
	switch method {
	case "params":
		if args == nil {
			return false
		}
		for i := 0; i < int(args.NamedChildCount()); i++ {
			pair := args.NamedChild(i)
			if pair.Type() != "pair" {
				return false
			}
			name := strings.TrimSuffix(d.text(pair.ChildByFieldName("key")), ":")
			sig.Params = append(sig.Params, ast.SigParam{
				Name: name,
				Type: d.typeExpr(pair.ChildByFieldName("value")),
				Loc:  d.loc(pair),
			})
		}
	case "returns":
		if args == nil || args.NamedChildCount() == 0 {
			return false
		}
		sig.Return = d.typeExpr(args.NamedChild(0))
	case "void":
		sig.Void = true
	case "abstract":
		sig.Abstract = true
	case "override":
		sig.Override = true
	case "overridable":
		sig.Overridable = true
	case "final":
		sig.Final = true
	case "type_parameters":
		if args == nil {
			return false
		}
		for i := 0; i < int(args.NamedChildCount()); i++ {
			arg := args.NamedChild(i)
			if arg.Type() == "simple_symbol" {
				sig.TypeParams = append(sig.TypeParams, strings.TrimPrefix(d.text(arg), ":"))
			}
		}
	case "bind":
		if args == nil || args.NamedChildCount() == 0 {
			return false
		}
		sig.Bind = d.typeExpr(args.NamedChild(0))
	default:
		return false
	}
	return true
}

// typeExpr converts an annotation expression into an unresolved TypeExpr.
func (d *desugarer) typeExpr(n *sitter.Node) ast.TypeExpr {
	if n == nil {
		return nil
	}
	loc := d.loc(n)
	switch n.Type() {
	case "constant":
		out := &ast.TypeConst{Path: []string{d.text(n)}}
		out.Loc = loc
		return out
	case "scope_resolution":
		path := d.constPath(n)
		if len(path) == 2 && path[0] == "T" && path[1] == "Boolean" {
			out := &ast.TypeBoolean{}
			out.Loc = loc
			return out
		}
		// T::Array and friends denote their bare stdlib class.
		if len(path) > 1 && path[0] == "T" {
			path = path[1:]
		}
		out := &ast.TypeConst{Path: path}
		out.Loc = loc
		return out
	case "element_reference":
		baseExpr := d.typeExpr(n.ChildByFieldName("object"))
		baseConst, ok := baseExpr.(*ast.TypeConst)
		if !ok {
			break
		}
		out := &ast.TypeApply{Base: baseConst}
		out.Loc = loc
		for i := 1; i < int(n.NamedChildCount()); i++ {
			out.Args = append(out.Args, d.typeExpr(n.NamedChild(i)))
		}
		return out
	case "array":
		out := &ast.TypeTuple{}
		out.Loc = loc
		for i := 0; i < int(n.NamedChildCount()); i++ {
			out.Elems = append(out.Elems, d.typeExpr(n.NamedChild(i)))
		}
		return out
	case "hash":
		out := &ast.TypeShape{}
		out.Loc = loc
		for i := 0; i < int(n.NamedChildCount()); i++ {
			pair := n.NamedChild(i)
			if pair.Type() != "pair" {
				continue
			}
			key := strings.TrimSuffix(d.text(pair.ChildByFieldName("key")), ":")
			out.Keys = append(out.Keys, strings.TrimPrefix(key, ":"))
			out.Values = append(out.Values, d.typeExpr(pair.ChildByFieldName("value")))
		}
		return out
	case "call":
		recv := n.ChildByFieldName("receiver")
		method := d.text(n.ChildByFieldName("method"))
		args := n.ChildByFieldName("arguments")
		if recv != nil && recv.Type() == "constant" && d.text(recv) == "T" {
			switch method {
			case "nilable":
				if args != nil && args.NamedChildCount() > 0 {
					out := &ast.TypeNilable{Inner: d.typeExpr(args.NamedChild(0))}
					out.Loc = loc
					return out
				}
			case "any", "all":
				var options []ast.TypeExpr
				if args != nil {
					for i := 0; i < int(args.NamedChildCount()); i++ {
						options = append(options, d.typeExpr(args.NamedChild(i)))
					}
				}
				if method == "any" {
					out := &ast.TypeAny{Options: options}
					out.Loc = loc
					return out
				}
				out := &ast.TypeAll{Options: options}
				out.Loc = loc
				return out
			case "untyped":
				out := &ast.TypeUntyped{}
				out.Loc = loc
				return out
			case "self_type":
				out := &ast.TypeSelf{}
				out.Loc = loc
				return out
			case "noreturn":
				out := &ast.TypeNoReturn{}
				out.Loc = loc
				return out
			case "type_parameter":
				if args != nil && args.NamedChildCount() > 0 {
					out := &ast.TypeVarRef{Name: strings.TrimPrefix(d.text(args.NamedChild(0)), ":")}
					out.Loc = loc
					return out
				}
			}
		}
	}
	// Unrecognized annotations degrade to untyped rather than failing the
	// whole signature.
	out := &ast.TypeUntyped{}
	out.Loc = loc
	return out
}
