package infer

import (
	"strconv"

	"github.com/viant/strictly/cfg"
	"github.com/viant/strictly/core"
)

// dispatch locates the method a send targets, unifies arguments against
// declared parameters and computes the result type. Union receivers
// dispatch component-wise; intersection receivers try components until one
// succeeds.
func (x *execution) dispatch(env Environment, loc core.Loc, send *cfg.Send) core.Type {
	gs := x.gs()
	send.Recv.Type = env.typeOf(send.Recv.Variable)
	for i := range send.Args {
		send.Args[i].Type = env.typeOf(send.Args[i].Variable)
	}
	for i := range send.Kwargs {
		send.Kwargs[i].Arg.Type = env.typeOf(send.Kwargs[i].Arg.Variable)
	}
	return x.dispatchOn(env, loc, send, send.Recv.Type, true)
}

func (x *execution) dispatchOn(env Environment, loc core.Loc, send *cfg.Send, recvType core.Type, report bool) core.Type {
	gs := x.gs()
	recvType = core.DealiasType(gs, recvType)

	if core.IsUntyped(recvType) {
		return core.Untyped
	}
	if core.IsBottom(recvType) {
		// Sends on noreturn are themselves unreachable.
		return core.Bottom
	}

	switch recv := recvType.(type) {
	case *core.OrType:
		// Component-wise dispatch; the result joins both sides.
		left := x.dispatchOn(env, loc, send, recv.Left, report)
		right := x.dispatchOn(env, loc, send, recv.Right, report)
		return core.Join(gs, left, right)
	case *core.AndType:
		// First component that understands the message wins.
		if t, ok := x.tryDispatch(env, loc, send, recv.Left); ok {
			return t
		}
		if t, ok := x.tryDispatch(env, loc, send, recv.Right); ok {
			return t
		}
		return x.dispatchOn(env, loc, send, recv.Left, report)
	case *core.LiteralType:
		return x.dispatchClass(env, loc, send, recv.UnderlyingClass(), nil, recvType, report)
	case *core.TupleType:
		return x.dispatchProxy(env, loc, send, recvType, report)
	case *core.ShapeType:
		return x.dispatchProxy(env, loc, send, recvType, report)
	case *core.ClassType:
		return x.dispatchClass(env, loc, send, recv.Symbol, nil, recvType, report)
	case *core.AppliedType:
		return x.dispatchClass(env, loc, send, recv.Class, recv.Args, recvType, report)
	case *core.ProxyType:
		// Sends trust the asserted coarser view.
		return x.dispatchOn(env, loc, send, recv.Underlying, report)
	case *core.MetaType:
		return x.dispatchMeta(env, loc, send, recv, report)
	case *core.SelfType:
		return x.dispatchClass(env, loc, send, x.owner, nil, core.MakeClassType(x.owner), report)
	case *core.TypeMemberRef:
		upper := gs.Symbol(recv.Symbol).ResultType
		if upper == nil {
			return core.Untyped
		}
		return x.dispatchOn(env, loc, send, upper, report)
	}
	if report {
		x.reportMissing(loc, send, recvType)
	}
	return core.Untyped
}

// tryDispatch attempts dispatch without reporting; ok is false when the
// method does not exist on that component.
func (x *execution) tryDispatch(env Environment, loc core.Loc, send *cfg.Send, recvType core.Type) (core.Type, bool) {
	gs := x.gs()
	klass, ok := classBehind(gs, recvType)
	if !ok {
		return core.Untyped, false
	}
	if _, found := gs.FindMemberTransitive(klass, send.Method); !found {
		return core.Untyped, false
	}
	return x.dispatchOn(env, loc, send, recvType, false), true
}

func classBehind(gs *core.GlobalState, t core.Type) (core.SymbolRef, bool) {
	switch tt := core.DealiasType(gs, t).(type) {
	case *core.ClassType:
		return tt.Symbol, true
	case *core.AppliedType:
		return tt.Class, true
	case *core.LiteralType:
		return tt.UnderlyingClass(), true
	case *core.ProxyType:
		return classBehind(gs, tt.Underlying)
	}
	return 0, false
}

func (x *execution) dispatchProxy(env Environment, loc core.Loc, send *cfg.Send, recvType core.Type, report bool) core.Type {
	gs := x.gs()
	method := gs.ShowName(send.Method)
	switch recv := recvType.(type) {
	case *core.TupleType:
		// Element access with a literal index stays precise.
		if method == "[]" && len(send.Args) == 1 {
			if lit, ok := send.Args[0].Type.(*core.LiteralType); ok && lit.Kind == core.LiteralInteger {
				if lit.IntVal >= 0 && int(lit.IntVal) < len(recv.Elems) {
					return recv.Elems[lit.IntVal]
				}
				return core.NilType()
			}
		}
		if method == "first" && len(recv.Elems) > 0 {
			return recv.Elems[0]
		}
		if method == "last" && len(recv.Elems) > 0 {
			return recv.Elems[len(recv.Elems)-1]
		}
		return x.dispatchClass(env, loc, send, core.SymbolArray, underlyingArgs(gs, recvType), recvType, report)
	case *core.ShapeType:
		if method == "[]" && len(send.Args) == 1 {
			if lit, ok := send.Args[0].Type.(*core.LiteralType); ok {
				for i, key := range recv.Keys {
					if core.TypeEqual(key, lit) {
						return recv.Values[i]
					}
				}
				return core.NilType()
			}
		}
		return x.dispatchClass(env, loc, send, core.SymbolHash, underlyingArgs(gs, recvType), recvType, report)
	}
	return core.Untyped
}

func underlyingArgs(gs *core.GlobalState, t core.Type) []core.Type {
	switch tt := t.(type) {
	case *core.TupleType:
		elem := core.Type(core.Bottom)
		for _, e := range tt.Elems {
			elem = core.Join(gs, elem, e)
		}
		if len(tt.Elems) == 0 {
			elem = core.Untyped
		}
		return []core.Type{elem}
	case *core.ShapeType:
		key, value := core.Type(core.Bottom), core.Type(core.Bottom)
		for i := range tt.Keys {
			key = core.Join(gs, key, tt.Keys[i])
			value = core.Join(gs, value, tt.Values[i])
		}
		if len(tt.Keys) == 0 {
			key, value = core.Untyped, core.Untyped
		}
		return []core.Type{key, value}
	}
	return nil
}

// dispatchMeta handles sends whose receiver is a class object, most notably
// constructors.
func (x *execution) dispatchMeta(env Environment, loc core.Loc, send *cfg.Send, recv *core.MetaType, report bool) core.Type {
	gs := x.gs()
	method := gs.ShowName(send.Method)
	klass, ok := classBehind(gs, recv.Wrapped)
	if !ok {
		return core.Untyped
	}
	switch method {
	case "new":
		// Check arguments against initialize when declared; the result is
		// the instance type.
		if init, found := gs.FindMemberTransitive(klass, gs.EnterNameUTF8("initialize")); found {
			x.checkArguments(env, loc, send, gs.Symbol(init), nil, recv.Wrapped, nil, nil, report)
		}
		return recv.Wrapped
	case "name", "to_s", "inspect":
		return core.MakeClassType(core.SymbolString)
	case "===":
		return core.BooleanType()
	case "<build-array>", "<build-hash>":
		// Literal construction dispatches through the container class so
		// array literals become tuples and hash literals shapes.
		return x.dispatchClass(env, loc, send, klass, nil, recv.Wrapped, report)
	}
	// Singleton methods defined with `def self.` live on the class symbol
	// itself in this model.
	if target, found := gs.FindMemberTransitive(klass, send.Method); found && gs.Symbol(target).IsMethod() {
		return x.invoke(env, loc, send, gs.Symbol(target), nil, recv, report)
	}
	if report {
		x.reportMissing(loc, send, recv)
	}
	return core.Untyped
}

func (x *execution) dispatchClass(env Environment, loc core.Loc, send *cfg.Send, klass core.SymbolRef, typeArgs []core.Type, selfType core.Type, report bool) core.Type {
	gs := x.gs()
	method := gs.ShowName(send.Method)

	// Container construction keeps literal structure: array literals become
	// tuples, hash literals shapes.
	switch method {
	case "<build-array>":
		elems := make([]core.Type, len(send.Args))
		for i := range send.Args {
			elems[i] = dropLiteralBools(send.Args[i].Type)
		}
		return &core.TupleType{Elems: elems}
	case "<build-hash>":
		shape := &core.ShapeType{}
		precise := true
		for i := 0; i+1 < len(send.Args); i += 2 {
			key, ok := send.Args[i].Type.(*core.LiteralType)
			if !ok {
				precise = false
				break
			}
			shape.Keys = append(shape.Keys, key)
			shape.Values = append(shape.Values, send.Args[i+1].Type)
		}
		if precise {
			return shape
		}
		key, value := core.Type(core.Bottom), core.Type(core.Bottom)
		for i := 0; i+1 < len(send.Args); i += 2 {
			key = core.Join(gs, key, send.Args[i].Type)
			value = core.Join(gs, value, send.Args[i+1].Type)
		}
		return &core.AppliedType{Class: core.SymbolHash, Args: []core.Type{key, value}}
	}

	target, found := gs.FindMemberTransitive(klass, send.Method)
	if !found || !gs.Symbol(target).IsMethod() {
		if report {
			x.reportMissing(loc, send, selfType)
		}
		return core.Untyped
	}
	sym := gs.Symbol(target)
	if sym.Flags&core.FlagPrivate != 0 && !send.IsPrivateOk {
		if report {
			x.report(loc, core.ErrPrivateMethod,
				"Non-private call to private method `%s` on `%s`",
				method, selfType.Show(gs))
		}
	}
	return x.invoke(env, loc, send, sym, typeArgs, selfType, report)
}

// invoke unifies arguments against sym's parameters and computes the return
// type. Generic methods allocate fresh type variables per declared type
// parameter and solve them from argument bounds.
func (x *execution) invoke(env Environment, loc core.Loc, send *cfg.Send, sym *core.Symbol, typeArgs []core.Type, selfType core.Type, report bool) core.Type {
	gs := x.gs()
	methodOwner := sym.Owner

	var constr *core.TypeConstraint
	varsByMember := map[core.SymbolRef]*core.TypeVar{}
	if len(sym.TypeParams) > 0 {
		constr = core.NewConstraint()
		for _, tp := range sym.TypeParams {
			if gs.Symbol(tp).Kind == core.SymbolTypeArgument {
				varsByMember[tp] = constr.FreshVar()
			}
		}
	}

	seen := func(t core.Type) core.Type {
		if t == nil {
			return core.Untyped
		}
		// Method-level type parameters become constraint variables; class
		// type members are re-expressed in the receiver's coordinates.
		t = substituteMembers(gs, t, varsByMember)
		if len(typeArgs) > 0 {
			t = core.ResultTypeAsSeenFrom(gs, t, methodOwner, methodOwner, typeArgs)
		}
		return t
	}

	x.checkArguments(env, loc, send, sym, typeArgs, selfType, seen, constr, report)

	if send.Link != nil {
		// The inline block's parameters and return participate as untyped
		// for now; a declared block signature would bound them here.
		send.Link.ReturnType = nil
	}

	ret := sym.ResultType
	if ret == nil {
		ret = core.Untyped
	}
	ret = seen(ret)
	ret = core.ReplaceSelfType(gs, ret, selfType)
	if constr != nil {
		constr.Solve(gs)
		ret = core.Instantiate(gs, ret, constr)
		if !constr.IsSolved() {
			// The constraint stays attached for later completion; the
			// visible result widens its unbound variables to untyped.
			send.Constraint = constr
			ret = widenUnsolved(gs, ret)
		}
	}
	if core.IsVoid(ret) {
		return core.Void
	}
	return ret
}

// checkArguments validates arity and argument types.
func (x *execution) checkArguments(env Environment, loc core.Loc, send *cfg.Send, sym *core.Symbol, typeArgs []core.Type, selfType core.Type, seen func(core.Type) core.Type, constr *core.TypeConstraint, report bool) {
	gs := x.gs()
	if seen == nil {
		seen = func(t core.Type) core.Type {
			if t == nil {
				return core.Untyped
			}
			if len(typeArgs) > 0 {
				return core.ResultTypeAsSeenFrom(gs, t, sym.Owner, sym.Owner, typeArgs)
			}
			return t
		}
	}

	var positional []core.ArgInfo
	kwParams := map[core.NameRef]core.ArgInfo{}
	hasRest := false
	var rest core.ArgInfo
	required := 0
	for _, arg := range sym.Arguments {
		switch {
		case arg.Block:
		case arg.Keyword:
			kwParams[arg.Name] = arg
		case arg.Repeated:
			hasRest = true
			rest = arg
		default:
			positional = append(positional, arg)
			if !arg.Optional {
				required++
			}
		}
	}

	nargs := len(send.Args)
	if nargs < required || (!hasRest && nargs > len(positional)) {
		if report {
			max := len(positional)
			expected := ""
			switch {
			case hasRest:
				expected = atLeast(required)
			case required == max:
				expected = strconv.Itoa(required)
			default:
				expected = strconv.Itoa(required) + ".." + strconv.Itoa(max)
			}
			x.report(loc, core.ErrArgumentCountMismatch,
				"Wrong number of arguments for `%s`: expected %s, got %d",
				gs.ShowName(send.Method), expected, nargs)
		}
		return
	}

	for i, arg := range send.Args {
		var declared core.Type
		var declaredName core.NameRef
		if i < len(positional) {
			declared = positional[i].Type
			declaredName = positional[i].Name
		} else if hasRest {
			declared = rest.Type
			declaredName = rest.Name
		} else {
			break
		}
		want := seen(declared)
		want = core.ReplaceSelfType(gs, want, selfType)
		got := arg.Type
		if got == nil {
			got = core.Untyped
		}
		if !x.flowsInto(got, want, constr) {
			if report {
				x.report(arg.Loc, core.ErrArgumentTypeMismatch,
					"Expected `%s` but found `%s` for argument `%s`",
					want.Show(gs), got.Show(gs), gs.ShowName(declaredName))
			}
		}
	}

	for _, kw := range send.Kwargs {
		param, ok := kwParams[kw.Name]
		if !ok {
			if report {
				x.report(kw.Arg.Loc, core.ErrArgumentCountMismatch,
					"Unrecognized keyword argument `%s` for `%s`",
					gs.ShowName(kw.Name), gs.ShowName(send.Method))
			}
			continue
		}
		want := core.ReplaceSelfType(gs, seen(param.Type), selfType)
		if !x.flowsInto(kw.Arg.Type, want, constr) {
			if report {
				x.report(kw.Arg.Loc, core.ErrArgumentTypeMismatch,
					"Expected `%s` but found `%s` for argument `%s`",
					want.Show(gs), kw.Arg.Type.Show(gs), gs.ShowName(kw.Name))
			}
		}
	}
	if report {
		for name, param := range kwParams {
			if param.Optional {
				continue
			}
			found := false
			for _, kw := range send.Kwargs {
				if kw.Name == name {
					found = true
					break
				}
			}
			if !found {
				x.report(loc, core.ErrArgumentCountMismatch,
					"Missing required keyword argument `%s` for `%s`",
					gs.ShowName(name), gs.ShowName(send.Method))
			}
		}
	}
}

// flowsInto is the argument compatibility check; when the parameter type
// mentions constraint variables the check records bounds instead of
// deciding.
func (x *execution) flowsInto(got, want core.Type, constr *core.TypeConstraint) bool {
	gs := x.gs()
	if constr != nil && containsVar(want) {
		return constr.RecordBound(gs, got, want)
	}
	return core.IsSubType(gs, got, want)
}

func containsVar(t core.Type) bool {
	switch tt := t.(type) {
	case *core.TypeVar:
		return true
	case *core.AppliedType:
		for _, a := range tt.Args {
			if containsVar(a) {
				return true
			}
		}
	case *core.OrType:
		return containsVar(tt.Left) || containsVar(tt.Right)
	case *core.AndType:
		return containsVar(tt.Left) || containsVar(tt.Right)
	case *core.TupleType:
		for _, e := range tt.Elems {
			if containsVar(e) {
				return true
			}
		}
	case *core.ProxyType:
		return containsVar(tt.Wrapped) || containsVar(tt.Underlying)
	}
	return false
}

func substituteMembers(gs *core.GlobalState, t core.Type, vars map[core.SymbolRef]*core.TypeVar) core.Type {
	if len(vars) == 0 {
		return t
	}
	switch tt := t.(type) {
	case *core.TypeMemberRef:
		if tv, ok := vars[tt.Symbol]; ok {
			return tv
		}
		return t
	case *core.AppliedType:
		args := make([]core.Type, len(tt.Args))
		for i, a := range tt.Args {
			args[i] = substituteMembers(gs, a, vars)
		}
		return &core.AppliedType{Class: tt.Class, Args: args}
	case *core.OrType:
		return core.MakeOr(gs, substituteMembers(gs, tt.Left, vars), substituteMembers(gs, tt.Right, vars))
	case *core.AndType:
		return core.MakeAnd(gs, substituteMembers(gs, tt.Left, vars), substituteMembers(gs, tt.Right, vars))
	case *core.TupleType:
		elems := make([]core.Type, len(tt.Elems))
		for i, e := range tt.Elems {
			elems[i] = substituteMembers(gs, e, vars)
		}
		return &core.TupleType{Elems: elems}
	}
	return t
}

// widenUnsolved replaces any remaining constraint variables with untyped.
func widenUnsolved(gs *core.GlobalState, t core.Type) core.Type {
	if !containsVar(t) {
		return t
	}
	switch tt := t.(type) {
	case *core.TypeVar:
		return core.Untyped
	case *core.AppliedType:
		args := make([]core.Type, len(tt.Args))
		for i, a := range tt.Args {
			args[i] = widenUnsolved(gs, a)
		}
		return &core.AppliedType{Class: tt.Class, Args: args}
	case *core.OrType:
		return core.MakeOr(gs, widenUnsolved(gs, tt.Left), widenUnsolved(gs, tt.Right))
	case *core.AndType:
		return core.MakeAnd(gs, widenUnsolved(gs, tt.Left), widenUnsolved(gs, tt.Right))
	case *core.TupleType:
		elems := make([]core.Type, len(tt.Elems))
		for i, e := range tt.Elems {
			elems[i] = widenUnsolved(gs, e)
		}
		return &core.TupleType{Elems: elems}
	}
	return t
}

// dropLiteralBools widens boolean literals inside tuple construction so
// `[true, false]` stays a Boolean pair instead of two singletons.
func dropLiteralBools(t core.Type) core.Type {
	if lit, ok := t.(*core.LiteralType); ok && lit.Kind == core.LiteralBoolean {
		return core.BooleanType()
	}
	return t
}

func (x *execution) reportMissing(loc core.Loc, send *cfg.Send, recvType core.Type) {
	gs := x.gs()
	x.report(send.MethodLoc.Join(loc), core.ErrMethodDoesNotExist,
		"Method `%s` does not exist on `%s`",
		gs.ShowName(send.Method), recvType.Show(gs))
}

func atLeast(n int) string { return "at least " + strconv.Itoa(n) }
