package parser_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/strictly/ast"
	"github.com/viant/strictly/core"
	"github.com/viant/strictly/parser"
)

func parse(t *testing.T, source string) (*core.GlobalState, *ast.Program) {
	t.Helper()
	gs := core.NewGlobalState()
	ref := gs.EnterFile(core.File{Path: "test.rb", Source: source, Type: core.SourceNormal})
	prog, err := parser.New().Parse(context.Background(), gs, ref)
	require.NoError(t, err)
	return gs, prog
}

func TestParseClassWithSuperclass(t *testing.T) {
	_, prog := parse(t, `class Foo < Bar
end
`)
	require.Len(t, prog.Stmts, 1)
	def, ok := prog.Stmts[0].(*ast.ClassDef)
	require.True(t, ok)
	assert.Equal(t, []string{"Foo"}, def.Name)
	assert.Equal(t, []string{"Bar"}, def.Superclass)
	assert.False(t, def.IsModule)
}

func TestParseSigAttachesToMethod(t *testing.T) {
	_, prog := parse(t, `class Foo
  sig { params(x: Integer, y: String).returns(String) }
  def fmt(x, y)
    y
  end
end
`)
	def := prog.Stmts[0].(*ast.ClassDef)
	require.Len(t, def.Body, 1)
	method, ok := def.Body[0].(*ast.MethodDef)
	require.True(t, ok)
	require.NotNil(t, method.Sig)
	require.Len(t, method.Sig.Params, 2)
	assert.Equal(t, "x", method.Sig.Params[0].Name)
	tc, ok := method.Sig.Params[0].Type.(*ast.TypeConst)
	require.True(t, ok)
	assert.Equal(t, []string{"Integer"}, tc.Path)
	rc, ok := method.Sig.Return.(*ast.TypeConst)
	require.True(t, ok)
	assert.Equal(t, []string{"String"}, rc.Path)
}

func TestParseSigModifiers(t *testing.T) {
	_, prog := parse(t, `class Foo
  sig { abstract.void }
  def run
  end
end
`)
	def := prog.Stmts[0].(*ast.ClassDef)
	method := def.Body[0].(*ast.MethodDef)
	require.NotNil(t, method.Sig)
	assert.True(t, method.Sig.Abstract)
	assert.True(t, method.Sig.Void)
}

func TestParseNilableAndUnion(t *testing.T) {
	_, prog := parse(t, `class Foo
  sig { params(a: T.nilable(String), b: T.any(Integer, Float)).returns(T.untyped) }
  def go(a, b)
  end
end
`)
	method := prog.Stmts[0].(*ast.ClassDef).Body[0].(*ast.MethodDef)
	require.NotNil(t, method.Sig)
	_, isNilable := method.Sig.Params[0].Type.(*ast.TypeNilable)
	assert.True(t, isNilable)
	union, isAny := method.Sig.Params[1].Type.(*ast.TypeAny)
	require.True(t, isAny)
	assert.Len(t, union.Options, 2)
	_, isUntyped := method.Sig.Return.(*ast.TypeUntyped)
	assert.True(t, isUntyped)
}

func TestShortCircuitDesugarsToIf(t *testing.T) {
	_, prog := parse(t, `class Foo
  def go(a, b)
    a && b
  end
end
`)
	method := prog.Stmts[0].(*ast.ClassDef).Body[0].(*ast.MethodDef)
	require.Len(t, method.Body, 1)
	_, isIf := method.Body[0].(*ast.If)
	assert.True(t, isIf, "&& should lower to If, got %T", method.Body[0])
}

func TestLocalVersusSelfSend(t *testing.T) {
	_, prog := parse(t, `class Foo
  def go
    x = 1
    x
    helper
  end
end
`)
	method := prog.Stmts[0].(*ast.ClassDef).Body[0].(*ast.MethodDef)
	require.Len(t, method.Body, 3)
	_, isAssign := method.Body[0].(*ast.Assign)
	assert.True(t, isAssign)
	_, isLocal := method.Body[1].(*ast.Local)
	assert.True(t, isLocal, "assigned name reads as a local")
	send, isSend := method.Body[2].(*ast.Send)
	require.True(t, isSend, "unassigned name reads as a send")
	assert.Equal(t, "helper", send.Method)
	assert.Nil(t, send.Recv)
}

func TestTCastHelpers(t *testing.T) {
	_, prog := parse(t, `class Foo
  def go(x)
    a = T.let(1, Integer)
    b = T.must(x)
    T.absurd(x)
  end
end
`)
	method := prog.Stmts[0].(*ast.ClassDef).Body[0].(*ast.MethodDef)
	require.Len(t, method.Body, 3)
	cast := method.Body[0].(*ast.Assign).Value.(*ast.Cast)
	assert.Equal(t, ast.CastLet, cast.Kind)
	must := method.Body[1].(*ast.Assign).Value.(*ast.Cast)
	assert.Equal(t, ast.CastMust, must.Kind)
	_, isAbsurd := method.Body[2].(*ast.Absurd)
	assert.True(t, isAbsurd)
}

func TestCaseLowering(t *testing.T) {
	_, prog := parse(t, `class Foo
  def go(x)
    case x
    when Integer
      1
    when String, Float
      2
    else
      3
    end
  end
end
`)
	method := prog.Stmts[0].(*ast.ClassDef).Body[0].(*ast.MethodDef)
	caseNode, ok := method.Body[0].(*ast.Case)
	require.True(t, ok)
	require.Len(t, caseNode.Whens, 2)
	assert.Len(t, caseNode.Whens[0].Patterns, 1)
	assert.Len(t, caseNode.Whens[1].Patterns, 2)
	assert.True(t, caseNode.HasElse)
}

func TestSafeNavigation(t *testing.T) {
	_, prog := parse(t, `class Foo
  def go(x)
    x&.length
  end
end
`)
	method := prog.Stmts[0].(*ast.ClassDef).Body[0].(*ast.MethodDef)
	send, ok := method.Body[0].(*ast.Send)
	require.True(t, ok)
	assert.True(t, send.SafeNav)
	assert.Equal(t, "length", send.Method)
}

func TestKeywordArguments(t *testing.T) {
	_, prog := parse(t, `class Foo
  def go
    draw(width: 10, height: 20)
  end
end
`)
	method := prog.Stmts[0].(*ast.ClassDef).Body[0].(*ast.MethodDef)
	send := method.Body[0].(*ast.Send)
	assert.Empty(t, send.Args)
	assert.Equal(t, []string{"width", "height"}, send.KwNames)
	require.Len(t, send.KwValues, 2)
}

func TestSyntaxErrorsReported(t *testing.T) {
	gs, _ := parse(t, `class Foo
  def broken(
end
`)
	drained := gs.Errors.Drain()
	require.NotEmpty(t, drained)
	assert.Equal(t, core.ErrSyntax, drained[0].Class)
}

func TestLocationsPointAtSource(t *testing.T) {
	source := `class Foo
  def go
    "payload"
  end
end
`
	_, prog := parse(t, source)
	method := prog.Stmts[0].(*ast.ClassDef).Body[0].(*ast.MethodDef)
	lit := method.Body[0].(*ast.StringLit)
	assert.Equal(t, "payload", lit.Value)
	begin := lit.NodeLoc().Begin
	end := lit.NodeLoc().End
	assert.Equal(t, `"payload"`, source[begin:end])
}
