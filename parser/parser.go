// Package parser lowers Ruby source into the desugared tree the checker
// consumes. It walks the tree-sitter grammar directly; surface sugar
// (short-circuit operators, unless, elsif chains, operator assignment) is
// desugared here so later passes never see it. Safe navigation (`&.`) stays
// a Send with SafeNav set; the CFG builder lowers it.
package parser

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/ruby"

	"github.com/viant/strictly/ast"
	"github.com/viant/strictly/core"
)

// Parser wraps a tree-sitter parser configured for Ruby.
type Parser struct {
	parser *sitter.Parser
}

// Option configures a Parser.
type Option func(*Parser)

// New builds a parser.
func New(opts ...Option) *Parser {
	p := &Parser{parser: sitter.NewParser()}
	p.parser.SetLanguage(ruby.GetLanguage())
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse lowers the file's contents into a Program. Syntax errors are pushed
// onto gs.Errors and parsing continues with a best-effort tree.
func (p *Parser) Parse(ctx context.Context, gs *core.GlobalState, fref core.FileRef) (*ast.Program, error) {
	prog, errs, err := p.ParseSource(ctx, []byte(gs.File(fref).Source), fref)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", gs.File(fref).Path, err)
	}
	for _, e := range errs {
		gs.Errors.Push(e)
	}
	return prog, nil
}

// ParseSource lowers raw bytes; it touches no shared state, so worker pools
// may call it against immutable snapshots. Syntax errors come back as
// diagnostics for the caller to merge.
func (p *Parser) ParseSource(ctx context.Context, src []byte, fref core.FileRef) (*ast.Program, []*core.Error, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse: %w", err)
	}
	defer tree.Close()

	d := &desugarer{src: src, file: fref}
	root := tree.RootNode()
	d.collectSyntaxErrors(root)
	prog := &ast.Program{File: fref, Stmts: d.stmts(root)}
	return prog, d.errs, nil
}

type desugarer struct {
	src  []byte
	file core.FileRef
	errs []*core.Error

	// locals tracks names assigned so far in the enclosing method, so bare
	// identifiers can be told apart from receiverless calls.
	locals []map[string]bool
}

func (d *desugarer) loc(n *sitter.Node) core.Loc {
	return core.MakeLoc(d.file, n.StartByte(), n.EndByte())
}

func (d *desugarer) text(n *sitter.Node) string {
	return n.Content(d.src)
}

func (d *desugarer) collectSyntaxErrors(n *sitter.Node) {
	if n.IsError() || n.IsMissing() {
		d.errs = append(d.errs, &core.Error{
			Loc:     d.loc(n),
			Class:   core.ErrSyntax,
			Message: fmt.Sprintf("unexpected %s", n.Type()),
		})
		return
	}
	if !n.HasError() {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		d.collectSyntaxErrors(n.Child(i))
	}
}

func (d *desugarer) pushScope() {
	d.locals = append(d.locals, map[string]bool{})
}

func (d *desugarer) popScope() {
	d.locals = d.locals[:len(d.locals)-1]
}

func (d *desugarer) declareLocal(name string) {
	if len(d.locals) > 0 {
		d.locals[len(d.locals)-1][name] = true
	}
}

func (d *desugarer) isLocal(name string) bool {
	for i := len(d.locals) - 1; i >= 0; i-- {
		if d.locals[i][name] {
			return true
		}
	}
	return false
}

// stmts lowers the named children of a container node (program,
// body_statement, then, else, do) into statements, folding sig calls into
// the method definitions that follow them.
func (d *desugarer) stmts(n *sitter.Node) []ast.Node {
	if n == nil {
		return nil
	}
	var raw []ast.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		if stmt := d.stmt(child); stmt != nil {
			raw = append(raw, stmt)
		}
	}
	return attachSignatures(raw)
}

// attachSignatures folds a pending *ast.Signature into the MethodDef that
// immediately follows it.
func attachSignatures(stmts []ast.Node) []ast.Node {
	var out []ast.Node
	var pending *ast.Signature
	for _, stmt := range stmts {
		if sig, ok := stmt.(*ast.Signature); ok {
			pending = sig
			continue
		}
		if def, ok := stmt.(*ast.MethodDef); ok && pending != nil {
			def.Sig = pending
			pending = nil
		}
		out = append(out, stmt)
	}
	return out
}

func (d *desugarer) stmt(n *sitter.Node) ast.Node {
	switch n.Type() {
	case "class":
		return d.classDef(n, false)
	case "module":
		return d.classDef(n, true)
	case "method":
		return d.methodDef(n, false)
	case "singleton_method":
		return d.methodDef(n, true)
	default:
		return d.expr(n)
	}
}

func (d *desugarer) classDef(n *sitter.Node, isModule bool) ast.Node {
	def := &ast.ClassDef{IsModule: isModule}
	def.Loc = d.loc(n)
	def.Name = d.constPath(n.ChildByFieldName("name"))
	if sup := n.ChildByFieldName("superclass"); sup != nil {
		for i := 0; i < int(sup.NamedChildCount()); i++ {
			child := sup.NamedChild(i)
			if path := d.constPath(child); path != nil {
				def.Superclass = path
				break
			}
		}
	}
	def.Body = d.stmts(n.ChildByFieldName("body"))
	return def
}

func (d *desugarer) constPath(n *sitter.Node) []string {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "constant":
		return []string{d.text(n)}
	case "scope_resolution":
		scope := d.constPath(n.ChildByFieldName("scope"))
		return append(scope, d.text(n.ChildByFieldName("name")))
	}
	return nil
}

func (d *desugarer) methodDef(n *sitter.Node, selfDef bool) ast.Node {
	def := &ast.MethodDef{SelfDef: selfDef}
	def.Loc = d.loc(n)
	def.Name = d.text(n.ChildByFieldName("name"))
	d.pushScope()
	defer d.popScope()
	if params := n.ChildByFieldName("parameters"); params != nil {
		def.Params = d.params(params)
	}
	def.Body = d.stmts(n.ChildByFieldName("body"))
	return def
}

func (d *desugarer) params(n *sitter.Node) []ast.Param {
	var out []ast.Param
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		param := ast.Param{Loc: d.loc(child)}
		switch child.Type() {
		case "identifier":
			param.Name = d.text(child)
			param.Kind = ast.ParamRequired
		case "optional_parameter":
			param.Name = d.text(child.ChildByFieldName("name"))
			param.Kind = ast.ParamOptional
			param.Default = d.expr(child.ChildByFieldName("value"))
		case "splat_parameter":
			if name := child.ChildByFieldName("name"); name != nil {
				param.Name = d.text(name)
			}
			param.Kind = ast.ParamRest
		case "keyword_parameter":
			param.Name = d.text(child.ChildByFieldName("name"))
			if value := child.ChildByFieldName("value"); value != nil {
				param.Kind = ast.ParamKeywordOptional
				param.Default = d.expr(value)
			} else {
				param.Kind = ast.ParamKeyword
			}
		case "block_parameter":
			if name := child.ChildByFieldName("name"); name != nil {
				param.Name = d.text(name)
			}
			param.Kind = ast.ParamBlock
		default:
			continue
		}
		d.declareLocal(param.Name)
		out = append(out, param)
	}
	return out
}

func (d *desugarer) expr(n *sitter.Node) ast.Node {
	if n == nil {
		return nil
	}
	loc := d.loc(n)
	switch n.Type() {
	case "parenthesized_statements":
		if n.NamedChildCount() == 1 {
			return d.expr(n.NamedChild(0))
		}
		// A multi-statement group evaluates to its last statement; keep the
		// whole sequence inside an immediately-dispatched block shape is
		// overkill, so surface only the last value.
		var last ast.Node
		for i := 0; i < int(n.NamedChildCount()); i++ {
			last = d.expr(n.NamedChild(i))
		}
		return last
	case "identifier":
		name := d.text(n)
		if d.isLocal(name) {
			out := &ast.Local{Name: name}
			out.Loc = loc
			return out
		}
		out := &ast.Send{Method: name, MethodLoc: loc}
		out.Loc = loc
		return out
	case "self":
		out := &ast.Self{}
		out.Loc = loc
		return out
	case "instance_variable":
		out := &ast.IVar{Name: d.text(n)}
		out.Loc = loc
		return out
	case "constant", "scope_resolution":
		out := &ast.ConstRef{Path: d.constPath(n)}
		out.Loc = loc
		return out
	case "nil":
		out := &ast.Nil{}
		out.Loc = loc
		return out
	case "true":
		out := &ast.True{}
		out.Loc = loc
		return out
	case "false":
		out := &ast.False{}
		out.Loc = loc
		return out
	case "integer":
		v, _ := strconv.ParseInt(strings.ReplaceAll(d.text(n), "_", ""), 0, 64)
		out := &ast.IntLit{Value: v}
		out.Loc = loc
		return out
	case "float":
		v, _ := strconv.ParseFloat(strings.ReplaceAll(d.text(n), "_", ""), 64)
		out := &ast.FloatLit{Value: v}
		out.Loc = loc
		return out
	case "string":
		out := &ast.StringLit{Value: d.stringContent(n)}
		out.Loc = loc
		return out
	case "simple_symbol":
		out := &ast.SymbolLit{Value: strings.TrimPrefix(d.text(n), ":")}
		out.Loc = loc
		return out
	case "array":
		out := &ast.ArrayLit{}
		out.Loc = loc
		for i := 0; i < int(n.NamedChildCount()); i++ {
			out.Elems = append(out.Elems, d.expr(n.NamedChild(i)))
		}
		return out
	case "hash":
		out := &ast.HashLit{}
		out.Loc = loc
		for i := 0; i < int(n.NamedChildCount()); i++ {
			pair := n.NamedChild(i)
			if pair.Type() != "pair" {
				continue
			}
			out.Keys = append(out.Keys, d.hashKey(pair.ChildByFieldName("key")))
			out.Values = append(out.Values, d.expr(pair.ChildByFieldName("value")))
		}
		return out
	case "assignment":
		return d.assignment(n)
	case "operator_assignment":
		return d.operatorAssignment(n)
	case "binary":
		return d.binary(n)
	case "unary":
		return d.unary(n)
	case "conditional":
		// a ? b : c
		out := &ast.If{
			Cond: d.expr(n.ChildByFieldName("condition")),
			Then: []ast.Node{d.expr(n.ChildByFieldName("consequence"))},
			Else: []ast.Node{d.expr(n.ChildByFieldName("alternative"))},
		}
		out.Loc = loc
		return out
	case "if", "unless":
		return d.ifStmt(n, n.Type() == "unless")
	case "if_modifier", "unless_modifier":
		out := &ast.If{Cond: d.expr(n.ChildByFieldName("condition"))}
		body := []ast.Node{d.expr(n.ChildByFieldName("body"))}
		if n.Type() == "if_modifier" {
			out.Then = body
		} else {
			out.Else = body
		}
		out.Loc = loc
		return out
	case "while", "until":
		cond := d.expr(n.ChildByFieldName("condition"))
		if n.Type() == "until" {
			cond = negate(cond, loc)
		}
		out := &ast.While{Cond: cond, Body: d.stmts(n.ChildByFieldName("body"))}
		out.Loc = loc
		return out
	case "case":
		return d.caseStmt(n)
	case "begin":
		return d.beginStmt(n)
	case "return":
		out := &ast.Return{}
		out.Loc = loc
		if n.NamedChildCount() > 0 {
			out.Value = d.argumentValue(n.NamedChild(0))
		}
		return out
	case "next":
		out := &ast.Next{}
		out.Loc = loc
		if n.NamedChildCount() > 0 {
			out.Value = d.argumentValue(n.NamedChild(0))
		}
		return out
	case "break":
		out := &ast.Break{}
		out.Loc = loc
		if n.NamedChildCount() > 0 {
			out.Value = d.argumentValue(n.NamedChild(0))
		}
		return out
	case "call", "method_call":
		return d.call(n)
	case "element_reference":
		// a[i] is Send(a, "[]", i)
		out := &ast.Send{Method: "[]", Recv: d.expr(n.ChildByFieldName("object")), MethodLoc: loc}
		out.Loc = loc
		for i := 1; i < int(n.NamedChildCount()); i++ {
			out.Args = append(out.Args, d.expr(n.NamedChild(i)))
		}
		return out
	case "comment", "empty_statement":
		return nil
	}
	out := &ast.Unanalyzable{Reason: n.Type()}
	out.Loc = loc
	return out
}

// argumentValue unwraps argument_list wrappers around return/next/break
// values.
func (d *desugarer) argumentValue(n *sitter.Node) ast.Node {
	if n.Type() == "argument_list" && n.NamedChildCount() > 0 {
		return d.expr(n.NamedChild(0))
	}
	return d.expr(n)
}

func (d *desugarer) stringContent(n *sitter.Node) string {
	var sb strings.Builder
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "string_content" {
			sb.WriteString(d.text(child))
		}
	}
	return sb.String()
}

func (d *desugarer) hashKey(n *sitter.Node) ast.Node {
	loc := d.loc(n)
	if n.Type() == "hash_key_symbol" {
		out := &ast.SymbolLit{Value: d.text(n)}
		out.Loc = loc
		return out
	}
	return d.expr(n)
}

func (d *desugarer) assignment(n *sitter.Node) ast.Node {
	left := n.ChildByFieldName("left")
	right := d.expr(n.ChildByFieldName("right"))
	out := &ast.Assign{Value: right}
	out.Loc = d.loc(n)
	switch left.Type() {
	case "identifier":
		name := d.text(left)
		d.declareLocal(name)
		target := &ast.Local{Name: name}
		target.Loc = d.loc(left)
		out.Target = target
	case "instance_variable":
		target := &ast.IVar{Name: d.text(left)}
		target.Loc = d.loc(left)
		out.Target = target
	case "constant", "scope_resolution":
		target := &ast.ConstRef{Path: d.constPath(left)}
		target.Loc = d.loc(left)
		out.Target = target
	default:
		un := &ast.Unanalyzable{Reason: "assignment to " + left.Type()}
		un.Loc = d.loc(left)
		return un
	}
	return out
}

// operatorAssignment desugars `x op= v` to `x = x op v`, including the
// ||= and &&= conditional forms.
func (d *desugarer) operatorAssignment(n *sitter.Node) ast.Node {
	left := n.ChildByFieldName("left")
	if left.Type() != "identifier" && left.Type() != "instance_variable" {
		un := &ast.Unanalyzable{Reason: "operator assignment to " + left.Type()}
		un.Loc = d.loc(n)
		return un
	}
	op := ""
	for i := 0; i < int(n.ChildCount()); i++ {
		t := n.Child(i).Type()
		if strings.HasSuffix(t, "=") && t != "=" && n.Child(i).IsNamed() == false {
			op = strings.TrimSuffix(t, "=")
		}
	}
	loc := d.loc(n)
	read := d.expr(left)
	right := d.expr(n.ChildByFieldName("right"))
	var value ast.Node
	switch op {
	case "||":
		value = &ast.If{Cond: read, Then: []ast.Node{d.expr(left)}, Else: []ast.Node{right}}
		value.(*ast.If).Loc = loc
	case "&&":
		value = &ast.If{Cond: read, Then: []ast.Node{right}, Else: []ast.Node{d.expr(left)}}
		value.(*ast.If).Loc = loc
	default:
		send := &ast.Send{Recv: read, Method: op, Args: []ast.Node{right}, MethodLoc: loc}
		send.Loc = loc
		value = send
	}
	if left.Type() == "identifier" {
		d.declareLocal(d.text(left))
	}
	out := &ast.Assign{Value: value}
	out.Loc = loc
	switch left.Type() {
	case "identifier":
		target := &ast.Local{Name: d.text(left)}
		target.Loc = d.loc(left)
		out.Target = target
	case "instance_variable":
		target := &ast.IVar{Name: d.text(left)}
		target.Loc = d.loc(left)
		out.Target = target
	}
	return out
}

// binary lowers operators; && and || become If so the CFG sees plain
// branches.
func (d *desugarer) binary(n *sitter.Node) ast.Node {
	loc := d.loc(n)
	left := d.expr(n.ChildByFieldName("left"))
	right := d.expr(n.ChildByFieldName("right"))
	op := d.text(n.ChildByFieldName("operator"))
	switch op {
	case "&&", "and":
		out := &ast.If{Cond: left, Then: []ast.Node{right}, Else: []ast.Node{falseLit(loc)}}
		out.Loc = loc
		return out
	case "||", "or":
		out := &ast.If{Cond: left, Then: []ast.Node{trueLit(loc)}, Else: []ast.Node{right}}
		out.Loc = loc
		return out
	}
	methodLoc := loc
	if opNode := n.ChildByFieldName("operator"); opNode != nil {
		methodLoc = d.loc(opNode)
	}
	out := &ast.Send{Recv: left, Method: op, Args: []ast.Node{right}, MethodLoc: methodLoc}
	out.Loc = loc
	return out
}

func (d *desugarer) unary(n *sitter.Node) ast.Node {
	loc := d.loc(n)
	operand := d.expr(n.ChildByFieldName("operand"))
	op := d.text(n.ChildByFieldName("operator"))
	switch op {
	case "!", "not":
		return negate(operand, loc)
	case "-":
		out := &ast.Send{Recv: operand, Method: "-@", MethodLoc: loc}
		out.Loc = loc
		return out
	}
	out := &ast.Unanalyzable{Reason: "unary " + op}
	out.Loc = loc
	return out
}

func negate(operand ast.Node, loc core.Loc) ast.Node {
	out := &ast.Send{Recv: operand, Method: "!", MethodLoc: loc}
	out.Loc = loc
	return out
}

func trueLit(loc core.Loc) ast.Node {
	out := &ast.True{}
	out.Loc = loc
	return out
}

func falseLit(loc core.Loc) ast.Node {
	out := &ast.False{}
	out.Loc = loc
	return out
}

func (d *desugarer) ifStmt(n *sitter.Node, invert bool) ast.Node {
	out := &ast.If{Cond: d.expr(n.ChildByFieldName("condition"))}
	out.Loc = d.loc(n)
	out.Then = d.stmts(n.ChildByFieldName("consequence"))
	if alt := n.ChildByFieldName("alternative"); alt != nil {
		if alt.Type() == "elsif" {
			out.Else = []ast.Node{d.ifStmt(alt, false)}
		} else {
			out.Else = d.stmts(alt)
		}
	}
	if invert {
		out.Then, out.Else = out.Else, out.Then
	}
	return out
}

func (d *desugarer) caseStmt(n *sitter.Node) ast.Node {
	out := &ast.Case{Scrutinee: d.expr(n.ChildByFieldName("value"))}
	out.Loc = d.loc(n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "when":
			when := ast.CaseWhen{Loc: d.loc(child)}
			for j := 0; j < int(child.NamedChildCount()); j++ {
				sub := child.NamedChild(j)
				switch sub.Type() {
				case "pattern":
					for k := 0; k < int(sub.NamedChildCount()); k++ {
						when.Patterns = append(when.Patterns, d.expr(sub.NamedChild(k)))
					}
				case "then":
					when.Body = d.stmts(sub)
				default:
					if pat := d.expr(sub); pat != nil {
						when.Patterns = append(when.Patterns, pat)
					}
				}
			}
			out.Whens = append(out.Whens, when)
		case "else":
			out.HasElse = true
			out.Else = d.stmts(child)
		}
	}
	return out
}

func (d *desugarer) beginStmt(n *sitter.Node) ast.Node {
	out := &ast.Begin{}
	out.Loc = d.loc(n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "rescue":
			rescue := ast.Rescue{Loc: d.loc(child)}
			for j := 0; j < int(child.NamedChildCount()); j++ {
				sub := child.NamedChild(j)
				switch sub.Type() {
				case "exceptions":
					for k := 0; k < int(sub.NamedChildCount()); k++ {
						rescue.Classes = append(rescue.Classes, d.expr(sub.NamedChild(k)))
					}
				case "exception_variable":
					if sub.NamedChildCount() > 0 {
						rescue.Binder = d.text(sub.NamedChild(0))
						d.declareLocal(rescue.Binder)
					}
				case "then":
					rescue.Body = d.stmts(sub)
				}
			}
			out.Rescues = append(out.Rescues, rescue)
		case "ensure":
			out.Ensure = d.stmts(child)
		case "else":
			out.Body = append(out.Body, d.stmts(child)...)
		default:
			if stmt := d.stmt(child); stmt != nil {
				out.Body = append(out.Body, stmt)
			}
		}
	}
	return out
}
