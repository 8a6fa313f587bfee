package cfg

import (
	"github.com/viant/strictly/ast"
	"github.com/viant/strictly/core"
)

// lower translates one node, emitting instructions into the current block
// and returning the local that holds the node's value.
func (s *buildState) lower(node ast.Node) LocalRef {
	if s.current == nil {
		return 0
	}
	loc := node.NodeLoc()
	switch n := node.(type) {
	case *ast.IntLit:
		return s.literal(&core.LiteralType{Kind: core.LiteralInteger, IntVal: n.Value}, loc)
	case *ast.FloatLit:
		return s.literal(&core.LiteralType{Kind: core.LiteralFloat, FloatVal: n.Value}, loc)
	case *ast.StringLit:
		return s.literal(&core.LiteralType{Kind: core.LiteralString, StrVal: s.gs.EnterNameUTF8(n.Value)}, loc)
	case *ast.SymbolLit:
		return s.literal(&core.LiteralType{Kind: core.LiteralSymbol, StrVal: s.gs.EnterNameUTF8(n.Value)}, loc)
	case *ast.Nil:
		return s.literal(core.NilType(), loc)
	case *ast.True:
		return s.literal(&core.LiteralType{Kind: core.LiteralBoolean, BoolVal: true}, loc)
	case *ast.False:
		return s.literal(&core.LiteralType{Kind: core.LiteralBoolean, BoolVal: false}, loc)
	case *ast.Self:
		return s.readLocal(s.selfName, loc)
	case *ast.Local:
		name := s.gs.EnterNameUTF8(n.Name)
		if _, ok := s.env[name]; !ok {
			s.gs.Errors.Push(&core.Error{
				Loc:     loc,
				Class:   core.ErrUndeclaredVariable,
				Message: "Use of undeclared variable `" + n.Name + "`",
			})
			tmp := s.temp(loc)
			s.emit(tmp, &Unanalyzable{}, loc)
			return tmp
		}
		return s.readLocal(name, loc)
	case *ast.IVar:
		// Instance variables are tracked as fields on the owner.
		field := s.gs.EnterNameUTF8(n.Name)
		tmp := s.temp(loc)
		if ref, ok := s.gs.FindMemberTransitive(s.owner, field); ok {
			s.emit(tmp, &Alias{What: ref}, loc)
		} else {
			s.emit(tmp, &Unanalyzable{}, loc)
		}
		return tmp
	case *ast.ConstRef:
		tmp := s.temp(loc)
		if sym, ok := s.lookupConst(n.Path); ok {
			s.emit(tmp, &Alias{What: sym}, loc)
		} else {
			s.gs.Errors.Push(&core.Error{
				Loc:     loc,
				Class:   core.ErrUnresolvedConstant,
				Message: "Unable to resolve constant",
			})
			s.emit(tmp, &Unanalyzable{}, loc)
		}
		return tmp
	case *ast.ArrayLit:
		elems := make([]VariableUseSite, len(n.Elems))
		for i, e := range n.Elems {
			elems[i] = s.use(s.lower(e), e.NodeLoc())
			if s.current == nil {
				return 0
			}
		}
		tmp := s.temp(loc)
		s.emit(tmp, &Send{
			Recv:      s.use(s.aliasClass(core.SymbolArray, loc), loc),
			Method:    s.gs.EnterNameUTF8("<build-array>"),
			Args:      elems,
			MethodLoc: loc,
		}, loc)
		return tmp
	case *ast.HashLit:
		args := make([]VariableUseSite, 0, len(n.Keys)*2)
		for i := range n.Keys {
			args = append(args, s.use(s.lower(n.Keys[i]), n.Keys[i].NodeLoc()))
			args = append(args, s.use(s.lower(n.Values[i]), n.Values[i].NodeLoc()))
			if s.current == nil {
				return 0
			}
		}
		tmp := s.temp(loc)
		s.emit(tmp, &Send{
			Recv:      s.use(s.aliasClass(core.SymbolHash, loc), loc),
			Method:    s.gs.EnterNameUTF8("<build-hash>"),
			Args:      args,
			MethodLoc: loc,
		}, loc)
		return tmp
	case *ast.Assign:
		return s.lowerAssign(n)
	case *ast.Send:
		return s.lowerSend(n)
	case *ast.If:
		return s.lowerIf(n)
	case *ast.While:
		return s.lowerWhile(n)
	case *ast.Case:
		return s.lowerCase(n)
	case *ast.Begin:
		return s.lowerBegin(n)
	case *ast.Return:
		var value LocalRef
		if n.Value != nil {
			value = s.lower(n.Value)
		} else {
			value = s.literal(core.NilType(), loc)
		}
		if s.current == nil {
			return 0
		}
		if s.gs.Symbol(s.method).Flags&core.FlagVoidResult != 0 && n.Value != nil {
			s.gs.Errors.Push(&core.Error{
				Loc:     loc,
				Class:   core.ErrReturnInVoid,
				Message: "Returning a value from a method declared `void`",
			})
		}
		s.emit(0, &Return{What: s.use(value, loc)}, loc)
		s.jump(s.cfg.Exit, loc)
		return 0
	case *ast.Break:
		if len(s.loops) > 0 {
			frame := s.loops[len(s.loops)-1]
			s.flushLoopMerges(frame, loc)
			s.jump(frame.after, loc)
		} else {
			s.jump(s.cfg.Exit, loc)
		}
		return 0
	case *ast.Next:
		if len(s.links) > 0 {
			link := s.links[len(s.links)-1]
			var value LocalRef
			if n.Value != nil {
				value = s.lower(n.Value)
			} else {
				value = s.literal(core.NilType(), loc)
			}
			s.emit(0, &BlockReturn{Link: link, What: s.use(value, loc)}, loc)
			return 0
		}
		if len(s.loops) > 0 {
			frame := s.loops[len(s.loops)-1]
			s.flushLoopMerges(frame, loc)
			s.jump(frame.header, loc)
		}
		return 0
	case *ast.Cast:
		value := s.lower(n.Value)
		if s.current == nil {
			return 0
		}
		tmp := s.temp(loc)
		castType := core.Untyped
		if n.Type != nil {
			castType = s.resolveCastType(n.Type)
		}
		s.emit(tmp, &Cast{Value: s.use(value, loc), Type: castType, Kind: n.Kind}, loc)
		return tmp
	case *ast.Absurd:
		value := s.lower(n.Value)
		if s.current == nil {
			return 0
		}
		tmp := s.temp(loc)
		s.emit(tmp, &TAbsurd{What: s.use(value, loc)}, loc)
		return tmp
	case *ast.Signature:
		// A sig not followed by a def has no runtime effect.
		return s.literal(core.NilType(), loc)
	case *ast.Unanalyzable:
		tmp := s.temp(loc)
		s.emit(tmp, &Unanalyzable{}, loc)
		return tmp
	case *ast.MethodDef, *ast.ClassDef:
		// Nested definitions were entered by the resolver; as expressions
		// they evaluate to a symbol.
		return s.literal(&core.LiteralType{Kind: core.LiteralSymbol, StrVal: s.gs.EnterNameUTF8("def")}, loc)
	}
	tmp := s.temp(loc)
	s.emit(tmp, &NotSupported{Reason: "unhandled node"}, loc)
	return tmp
}

func (s *buildState) literal(t core.Type, loc core.Loc) LocalRef {
	tmp := s.temp(loc)
	s.emit(tmp, &Literal{Type: t}, loc)
	return tmp
}

func (s *buildState) readLocal(name core.NameRef, loc core.Loc) LocalRef {
	ref := s.env[name]
	tmp := s.temp(loc)
	s.emit(tmp, &Ident{What: s.use(ref, loc)}, loc)
	return tmp
}

func (s *buildState) aliasClass(sym core.SymbolRef, loc core.Loc) LocalRef {
	tmp := s.temp(loc)
	s.emit(tmp, &Alias{What: sym}, loc)
	return tmp
}

func (s *buildState) lookupConst(path []string) (core.SymbolRef, bool) {
	current := s.owner
	name := s.gs.EnterNameConstant(s.gs.EnterNameUTF8(path[0]))
	for cursor := current; ; cursor = s.gs.Symbol(cursor).Owner {
		if found, ok := s.gs.Symbol(cursor).Member(name); ok {
			current = found
			for _, segment := range path[1:] {
				seg := s.gs.EnterNameConstant(s.gs.EnterNameUTF8(segment))
				next, ok := s.gs.Symbol(current).Member(seg)
				if !ok {
					return 0, false
				}
				current = next
			}
			return current, true
		}
		if cursor == core.SymbolRoot {
			return 0, false
		}
	}
}

// resolveCastType resolves the annotation of a T.let/T.cast inline; cast
// annotations may only mention already-entered constants.
func (s *buildState) resolveCastType(expr ast.TypeExpr) core.Type {
	switch t := expr.(type) {
	case *ast.TypeUntyped:
		return core.Untyped
	case *ast.TypeSelf:
		return core.MakeClassType(s.owner)
	case *ast.TypeNoReturn:
		return core.Bottom
	case *ast.TypeBoolean:
		return core.BooleanType()
	case *ast.TypeNilable:
		return core.MakeOr(s.gs, s.resolveCastType(t.Inner), core.NilType())
	case *ast.TypeAny:
		out := core.Type(core.Bottom)
		for _, opt := range t.Options {
			out = core.MakeOr(s.gs, out, s.resolveCastType(opt))
		}
		return out
	case *ast.TypeAll:
		out := core.Type(core.Top)
		for _, opt := range t.Options {
			out = core.MakeAnd(s.gs, out, s.resolveCastType(opt))
		}
		return out
	case *ast.TypeConst:
		if sym, ok := s.lookupConst(t.Path); ok {
			return core.MakeClassType(sym)
		}
		return core.Untyped
	case *ast.TypeApply:
		sym, ok := s.lookupConst(t.Base.Path)
		if !ok {
			return core.Untyped
		}
		args := make([]core.Type, len(t.Args))
		for i, a := range t.Args {
			args[i] = s.resolveCastType(a)
		}
		return &core.AppliedType{Class: sym, Args: args}
	case *ast.TypeTuple:
		elems := make([]core.Type, len(t.Elems))
		for i, e := range t.Elems {
			elems[i] = s.resolveCastType(e)
		}
		return &core.TupleType{Elems: elems}
	}
	return core.Untyped
}

func (s *buildState) lowerAssign(n *ast.Assign) LocalRef {
	loc := n.NodeLoc()
	value := s.lower(n.Value)
	if s.current == nil {
		return 0
	}
	switch target := n.Target.(type) {
	case *ast.Local:
		name := s.gs.EnterNameUTF8(target.Name)
		local := s.newLocal(name)
		s.emit(local, &Ident{What: s.use(value, loc)}, loc)
		s.env[name] = local
		return local
	case *ast.IVar:
		// Field writes lower to a plain copy of the value; no send is
		// emitted and the field's declared type is not checked.
		tmp := s.temp(loc)
		s.emit(tmp, &Ident{What: s.use(value, loc)}, loc)
		return tmp
	case *ast.ConstRef:
		tmp := s.temp(loc)
		s.emit(tmp, &Ident{What: s.use(value, loc)}, loc)
		return tmp
	}
	return value
}

func (s *buildState) lowerSend(n *ast.Send) LocalRef {
	loc := n.NodeLoc()
	var recv LocalRef
	isPrivateOk := false
	if n.Recv == nil {
		recv = s.readLocal(s.selfName, loc)
		isPrivateOk = true
	} else {
		recv = s.lower(n.Recv)
	}
	if s.current == nil {
		return 0
	}

	if n.SafeNav {
		return s.lowerSafeNav(n, recv)
	}

	send := &Send{
		Recv:        s.use(recv, loc),
		Method:      s.gs.EnterNameUTF8(n.Method),
		IsPrivateOk: isPrivateOk,
		MethodLoc:   n.MethodLoc,
	}
	for _, arg := range n.Args {
		send.Args = append(send.Args, s.use(s.lower(arg), arg.NodeLoc()))
		if s.current == nil {
			return 0
		}
	}
	for i, kwName := range n.KwNames {
		value := n.KwValues[i]
		send.Kwargs = append(send.Kwargs, KeywordArg{
			Name: s.gs.EnterNameUTF8(kwName),
			Arg:  s.use(s.lower(value), value.NodeLoc()),
		})
		if s.current == nil {
			return 0
		}
	}

	var link *BlockLink
	if n.Block != nil {
		link = &BlockLink{}
		for _, p := range n.Block.Params {
			link.Params = append(link.Params, s.gs.EnterNameUTF8(p.Name))
		}
		send.Link = link
	}

	result := s.temp(loc)
	s.emit(result, send, loc)

	if n.Block != nil {
		s.lowerBlockBody(n.Block, link)
	}
	return result
}

// lowerBlockBody lowers a literal block inline after its send: yield params
// load, body, block return.
func (s *buildState) lowerBlockBody(block *ast.BlockLit, link *BlockLink) {
	loc := block.NodeLoc()
	entry := s.newBlock()
	after := s.newBlock()
	s.jump(entry, loc)
	s.enter(entry)

	saved := copyEnv(s.env)
	for i, name := range link.Params {
		local := s.newLocal(name)
		s.emit(local, &LoadYieldParams{Link: link, ArgIndex: i}, loc)
		s.env[name] = local
	}
	s.links = append(s.links, link)
	last := s.lowerSeq(block.Body)
	s.links = s.links[:len(s.links)-1]
	if s.current != nil {
		if last == 0 {
			last = s.literal(core.NilType(), loc)
		}
		s.emit(0, &BlockReturn{Link: link, What: s.use(last, loc)}, loc)
		s.jump(after, loc)
	}
	s.env = saved
	s.enter(after)
}

// lowerSafeNav desugars a&.m(...) into `a.nil? ? nil : a.m(...)`.
func (s *buildState) lowerSafeNav(n *ast.Send, recv LocalRef) LocalRef {
	loc := n.NodeLoc()
	cond := s.temp(loc)
	s.emit(cond, &Send{
		Recv:      s.use(recv, loc),
		Method:    s.gs.EnterNameUTF8("nil?"),
		MethodLoc: loc,
	}, loc)

	thenBlock := s.newBlock()
	elseBlock := s.newBlock()
	merge := s.newBlock()
	s.branch(cond, thenBlock, elseBlock, loc)

	baseEnv := copyEnv(s.env)

	s.enter(thenBlock)
	nilResult := s.literal(core.NilType(), loc)
	thenEnv := s.env
	thenEnd := s.current
	s.jump(merge, loc)

	s.env = copyEnv(baseEnv)
	s.enter(elseBlock)
	send := &Send{
		Recv:      s.use(recv, loc),
		Method:    s.gs.EnterNameUTF8(n.Method),
		MethodLoc: n.MethodLoc,
	}
	for _, arg := range n.Args {
		send.Args = append(send.Args, s.use(s.lower(arg), arg.NodeLoc()))
		if s.current == nil {
			break
		}
	}
	callResult := s.temp(loc)
	s.emit(callResult, send, loc)
	elseEnv := s.env
	elseEnd := s.current
	s.jump(merge, loc)

	result := s.newMergeLocal(s.gs.FreshNameUnique(core.UniqueTemp, s.gs.EnterNameUTF8("<safe-nav>"), s.gs.FreshUniqueCounter()))
	if thenEnd != nil {
		s.emitInto(thenEnd, result, &Ident{What: s.use(nilResult, loc)}, loc)
	}
	if elseEnd != nil {
		s.emitInto(elseEnd, result, &Ident{What: s.use(callResult, loc)}, loc)
	}
	s.env = s.mergeEnvs(loc, []*BasicBlock{thenEnd, elseEnd}, []map[core.NameRef]LocalRef{thenEnv, elseEnv})
	s.enter(merge)
	return result
}

func (s *buildState) lowerIf(n *ast.If) LocalRef {
	loc := n.NodeLoc()
	cond := s.lower(n.Cond)
	if s.current == nil {
		return 0
	}
	thenBlock := s.newBlock()
	elseBlock := s.newBlock()
	merge := s.newBlock()
	s.branch(cond, thenBlock, elseBlock, loc)

	baseEnv := copyEnv(s.env)

	s.enter(thenBlock)
	thenValue := s.lowerSeq(n.Then)
	if s.current != nil && thenValue == 0 {
		thenValue = s.literal(core.NilType(), loc)
	}
	thenEnv := s.env
	thenEnd := s.current
	s.jump(merge, loc)

	s.env = copyEnv(baseEnv)
	s.enter(elseBlock)
	elseValue := s.lowerSeq(n.Else)
	if s.current != nil && elseValue == 0 {
		elseValue = s.literal(core.NilType(), loc)
	}
	elseEnv := s.env
	elseEnd := s.current
	s.jump(merge, loc)

	if thenEnd == nil && elseEnd == nil {
		// Both arms diverged; anything after is dead.
		s.env = baseEnv
		return 0
	}

	result := s.newMergeLocal(s.gs.FreshNameUnique(core.UniqueTemp, s.gs.EnterNameUTF8("<if>"), s.gs.FreshUniqueCounter()))
	if thenEnd != nil {
		s.emitInto(thenEnd, result, &Ident{What: s.use(thenValue, loc)}, loc)
	}
	if elseEnd != nil {
		s.emitInto(elseEnd, result, &Ident{What: s.use(elseValue, loc)}, loc)
	}
	s.env = s.mergeEnvs(loc, []*BasicBlock{thenEnd, elseEnd}, []map[core.NameRef]LocalRef{thenEnv, elseEnv})
	s.enter(merge)
	return result
}

// flushLoopMerges writes current versions back into the loop's merge locals
// before a jump to the header or after-block.
func (s *buildState) flushLoopMerges(frame loopFrame, loc core.Loc) {
	for name, m := range frame.merges {
		if ref, ok := s.env[name]; ok && ref != m {
			s.emit(m, &Ident{What: s.use(ref, loc)}, loc)
			s.env[name] = m
		}
	}
}

func (s *buildState) lowerWhile(n *ast.While) LocalRef {
	loc := n.NodeLoc()
	assigned := map[string]bool{}
	collectAssigned(s.gs, append([]ast.Node{n.Cond}, n.Body...), assigned)

	// Variables the body mutates get merge locals written before the header
	// and on the back edge.
	merges := map[core.NameRef]LocalRef{}
	for rawName := range assigned {
		name := s.gs.EnterNameUTF8(rawName)
		m := s.newMergeLocal(name)
		if ref, ok := s.env[name]; ok {
			s.emit(m, &Ident{What: s.use(ref, loc)}, loc)
		} else {
			s.emit(m, &Literal{Type: core.NilType()}, loc)
		}
		s.env[name] = m
		merges[name] = m
	}

	header := s.newBlock()
	body := s.newBlock()
	after := s.newBlock()
	s.jump(header, loc)

	s.enter(header)
	headerEnv := copyEnv(s.env)
	cond := s.lower(n.Cond)
	if s.current == nil {
		s.enter(after)
		return s.literal(core.NilType(), loc)
	}
	s.branch(cond, body, after, loc)

	s.enter(body)
	s.env = copyEnv(headerEnv)
	frame := loopFrame{header: header, after: after, merges: merges}
	s.loops = append(s.loops, frame)
	s.lowerSeq(n.Body)
	s.loops = s.loops[:len(s.loops)-1]
	if s.current != nil {
		s.flushLoopMerges(frame, loc)
		s.jump(header, loc) // back edge
	}

	s.env = headerEnv
	s.enter(after)
	return s.literal(core.NilType(), loc)
}

func (s *buildState) lowerCase(n *ast.Case) LocalRef {
	loc := n.NodeLoc()
	scrutinee := s.lower(n.Scrutinee)
	if s.current == nil {
		return 0
	}
	// Bind the scrutinee to a stable named local so refinements survive
	// across the arm tests.
	scrutName := s.gs.FreshNameUnique(core.UniqueTemp, s.gs.EnterNameUTF8("<case>"), s.gs.FreshUniqueCounter())
	scrutLocal := s.newLocal(scrutName)
	s.emit(scrutLocal, &Ident{What: s.use(scrutinee, loc)}, loc)
	s.env[scrutName] = scrutLocal
	if local, ok := n.Scrutinee.(*ast.Local); ok {
		// Refinements target the source variable itself.
		scrutName = s.gs.EnterNameUTF8(local.Name)
		scrutLocal = s.env[scrutName]
	}

	merge := s.newBlock()
	result := s.newMergeLocal(s.gs.FreshNameUnique(core.UniqueTemp, s.gs.EnterNameUTF8("<case-result>"), s.gs.FreshUniqueCounter()))

	var ends []*BasicBlock
	var envs []map[core.NameRef]LocalRef

	for _, when := range n.Whens {
		bodyBlock := s.newBlock()
		// Chain the pattern tests: any match enters the body.
		for _, pattern := range when.Patterns {
			patLoc := pattern.NodeLoc()
			pat := s.lower(pattern)
			if s.current == nil {
				break
			}
			cond := s.temp(patLoc)
			s.emit(cond, &Send{
				Recv:      s.use(pat, patLoc),
				Method:    s.gs.EnterNameUTF8("==="),
				Args:      []VariableUseSite{s.use(s.env[scrutName], patLoc)},
				MethodLoc: patLoc,
			}, patLoc)
			// On failure fall through to the next pattern, then to the next
			// arm's tests.
			next := s.newBlock()
			s.branch(cond, bodyBlock, next, patLoc)
			s.enter(next)
		}
		fallthroughEnv := copyEnv(s.env)
		fallthroughBlock := s.current

		s.enter(bodyBlock)
		s.env = copyEnv(fallthroughEnv)
		value := s.lowerSeq(when.Body)
		if s.current != nil {
			if value == 0 {
				value = s.literal(core.NilType(), when.Loc)
			}
			s.emitInto(s.current, result, &Ident{What: s.use(value, when.Loc)}, when.Loc)
			ends = append(ends, s.current)
			envs = append(envs, s.env)
			s.jump(merge, when.Loc)
		}

		s.env = fallthroughEnv
		s.current = fallthroughBlock
	}

	// No arm matched: the else body, or nil.
	if s.current != nil {
		value := s.lowerSeq(n.Else)
		if s.current != nil {
			if value == 0 {
				value = s.literal(core.NilType(), loc)
			}
			s.emitInto(s.current, result, &Ident{What: s.use(value, loc)}, loc)
			ends = append(ends, s.current)
			envs = append(envs, s.env)
			s.jump(merge, loc)
		}
	}

	s.env = s.mergeEnvs(loc, ends, envs)
	if s.env == nil {
		s.env = map[core.NameRef]LocalRef{}
	}
	s.enter(merge)
	return result
}

func (s *buildState) lowerBegin(n *ast.Begin) LocalRef {
	loc := n.NodeLoc()
	bodyBlock := s.newBlock()
	merge := s.newBlock()
	result := s.newMergeLocal(s.gs.FreshNameUnique(core.UniqueTemp, s.gs.EnterNameUTF8("<begin>"), s.gs.FreshUniqueCounter()))

	baseEnv := copyEnv(s.env)

	// The protected region may raise anywhere; each rescue header gets its
	// edge from the region entry so handler environments never assume body
	// effects.
	var rescueBlocks []*BasicBlock
	for range n.Rescues {
		rescueBlocks = append(rescueBlocks, s.newBlock())
	}

	// Cascade one synthetic raise predicate per handler so every rescue
	// header is reachable from the region entry.
	if len(rescueBlocks) == 0 {
		s.jump(bodyBlock, loc)
	} else {
		for i := range rescueBlocks {
			next := bodyBlock
			if i+1 < len(rescueBlocks) {
				next = s.newBlock()
			}
			s.branch(s.lowerRaisePredicate(loc), rescueBlocks[i], next, loc)
			if next != bodyBlock {
				s.enter(next)
			}
		}
	}

	var ends []*BasicBlock
	var envs []map[core.NameRef]LocalRef

	s.enter(bodyBlock)
	s.env = copyEnv(baseEnv)
	value := s.lowerSeq(n.Body)
	if s.current != nil {
		if value == 0 {
			value = s.literal(core.NilType(), loc)
		}
		s.emitInto(s.current, result, &Ident{What: s.use(value, loc)}, loc)
		ends = append(ends, s.current)
		envs = append(envs, s.env)
		s.jump(merge, loc)
	}

	for i, rescue := range n.Rescues {
		s.enter(rescueBlocks[i])
		s.env = copyEnv(baseEnv)
		if rescue.Binder != "" {
			binder := s.gs.EnterNameUTF8(rescue.Binder)
			local := s.newLocal(binder)
			exType := s.rescueClassType(rescue)
			s.emit(local, &Literal{Type: exType}, rescue.Loc)
			s.env[binder] = local
		}
		value := s.lowerSeq(rescue.Body)
		if s.current != nil {
			if value == 0 {
				value = s.literal(core.NilType(), rescue.Loc)
			}
			s.emitInto(s.current, result, &Ident{What: s.use(value, rescue.Loc)}, rescue.Loc)
			ends = append(ends, s.current)
			envs = append(envs, s.env)
			s.jump(merge, rescue.Loc)
		}
	}

	s.env = s.mergeEnvs(loc, ends, envs)
	if s.env == nil {
		s.env = baseEnv
	}
	s.enter(merge)

	// The finalizer is lowered once, in the merge block: it runs after the
	// body or a rescue falls through. Paths that leave the region by return
	// or break do not pass through it.
	if len(n.Ensure) > 0 {
		s.lowerSeq(n.Ensure)
	}
	return result
}

// lowerRaisePredicate produces the synthetic "did the region raise"
// condition guarding a rescue edge.
func (s *buildState) lowerRaisePredicate(loc core.Loc) LocalRef {
	tmp := s.temp(loc)
	s.emit(tmp, &Literal{Type: core.BooleanType()}, loc)
	return tmp
}

func (s *buildState) rescueClassType(rescue ast.Rescue) core.Type {
	if len(rescue.Classes) == 0 {
		return core.MakeClassType(core.SymbolStandardError)
	}
	out := core.Type(core.Bottom)
	for _, klass := range rescue.Classes {
		constRef, ok := klass.(*ast.ConstRef)
		if !ok {
			return core.Untyped
		}
		sym, found := s.lookupConst(constRef.Path)
		if !found {
			return core.Untyped
		}
		out = core.MakeOr(s.gs, out, core.MakeClassType(sym))
	}
	return out
}
