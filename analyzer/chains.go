package analyzer

import (
	"strconv"

	"github.com/chazu/loom/ast"
	"github.com/chazu/loom/syntax"
	"github.com/chazu/loom/types"
)

// ---------------------------------------------------------------------------
// Chain resolution
// ---------------------------------------------------------------------------

type chainMode int

const (
	chainRead chainMode = iota
	chainWrite
)

// chainState is the running state while resolving a chain left to right.
// Either cur is the type of the value on the stack, or static is the
// namespace or type the chain has navigated to without pushing a value.
type chainState struct {
	chain   *ast.Chain
	cur     types.Type
	static  types.Symbol
	viaBase bool
	failed  bool
}

func (st *chainState) add(n ast.Node) { st.chain.Add(n) }

// chain resolves x into a flat sequence of calls. In write mode the last
// item becomes a write; value, when non-nil, is attached as the written
// value. The returned type is the type of the value (or written location).
func (a *Analyzer) chain(ctx *funcCtx, x *syntax.ChainExpr, mode chainMode, value ast.Node) (*ast.Chain, types.Type) {
	st := &chainState{chain: &ast.Chain{Base: ast.Base{Ln: line(x)}}}
	items := x.Items
	last := len(items) - 1
	i := 0

	var first *syntax.CallItem
	if len(items) > 0 {
		first, _ = items[0].(*syntax.CallItem)
	}
	switch r := x.Root.(type) {
	case *syntax.Ident:
		if a.rootIdent(ctx, st, r, first, mode == chainWrite && last < 0, value) {
			i++
		}
	case *syntax.ThisExpr:
		a.pushThis(ctx, st, r)
	case *syntax.BaseExpr:
		a.pushBase(ctx, st, r, items)
	case *syntax.ParenExpr:
		node, t := a.expr(ctx, r.X, nil)
		st.add(node)
		st.cur, st.failed = t, t == nil
	case *syntax.FuncLit:
		node, t := a.funcLit(ctx, r)
		st.add(node)
		st.cur = t
	default:
		a.errorf(x, "unsupported chain root")
		st.failed = true
	}

	for ; i <= last && !st.failed; i++ {
		write := mode == chainWrite && i == last
		switch it := items[i].(type) {
		case *syntax.MemberItem:
			var next *syntax.CallItem
			if i < last {
				next, _ = items[i+1].(*syntax.CallItem)
			}
			if a.member(ctx, st, it, next, write, value) {
				i++
			}
		case *syntax.IndexItem:
			a.index(ctx, st, it, write, value)
		case *syntax.CallItem:
			a.callValue(ctx, st, it)
		}
	}

	if !st.failed && st.static != nil {
		a.errorf(x, "'%s' is not a value", st.static.Name())
		st.failed = true
	}
	if !st.failed && mode == chainWrite {
		call, ok := st.chain.Kids[len(st.chain.Kids)-1].(*ast.Call)
		if !ok || !call.Kind.IsWrite() {
			a.errorf(x, "invalid assignment target")
			st.failed = true
		}
	}
	if st.failed {
		return st.chain, nil
	}
	st.chain.Type = st.cur
	return st.chain, st.cur
}

// rootIdent resolves a bare name: locals first, then members of the
// enclosing class, then the namespace scope. It reports whether next was
// consumed as the call of a resolved function.
func (a *Analyzer) rootIdent(ctx *funcCtx, st *chainState, id *syntax.Ident, next *syntax.CallItem, write bool, value ast.Node) bool {
	if v := ctx.lookup(id.Name); v != nil {
		kind := ast.ReadVar
		if write {
			kind = ast.WriteVar
		}
		st.add(writeValue(&ast.Call{Base: ast.Base{Ln: line(id)}, Kind: kind, Name: id.Name, Symbol: v, Type: v.Type}, write, value))
		st.cur = v.Type
		return false
	}
	if cls := ctx.thisClass(); cls != nil && cls.Resolve(id.Name) != nil {
		a.pushThis(ctx, st, id)
		return a.member(ctx, st, &syntax.MemberItem{SpanVal: id.SpanVal, Name: id.Name}, next, write, value)
	}
	sym := ctx.scope.Resolve(id.Name)
	if sym == nil {
		a.errorf(id, "symbol '%s' not resolved", id.Name)
		st.failed = true
		return false
	}
	return a.symbolStep(ctx, st, id, sym, next, write, value)
}

func writeValue(call *ast.Call, write bool, value ast.Node) *ast.Call {
	if write && value != nil {
		call.Add(value)
	}
	return call
}

// symbolStep continues the chain with a symbol found by name lookup.
func (a *Analyzer) symbolStep(ctx *funcCtx, st *chainState, at syntax.Node, sym types.Symbol, next *syntax.CallItem, write bool, value ast.Node) bool {
	ln := line(at)
	switch s := sym.(type) {
	case *types.GlobalVar:
		kind := ast.ReadGlobal
		if write {
			kind = ast.WriteGlobal
		}
		st.add(writeValue(&ast.Call{Base: ast.Base{Ln: ln}, Kind: kind, Name: s.Name(), Symbol: s, Type: s.Type}, write, value))
		st.cur = s.Type

	case *types.FuncSymbol:
		if next == nil {
			st.add(&ast.Call{Base: ast.Base{Ln: ln}, Kind: ast.FuncRef, Name: s.Name(), Symbol: s, Type: s.Sig})
			st.cur = s.Sig
			return false
		}
		call := &ast.Call{Base: ast.Base{Ln: ln}, Kind: ast.Func, Name: s.Name(), Symbol: s, Type: s.Sig.Returns}
		a.args(ctx, call, s.Sig, s.Params, next)
		a.trackCall(call, next.SpanVal, s.Name(), s.Sig)
		st.add(call)
		st.cur = s.Sig.Returns
		return true

	case *types.Namespace, *types.ClassSymbol, *types.InterfaceSymbol, *types.EnumSymbol, *types.BuiltinType:
		st.static = sym

	default:
		a.errorf(at, "'%s' can't be used here", sym.Name())
		st.failed = true
	}
	return false
}

func (a *Analyzer) pushThis(ctx *funcCtx, st *chainState, at syntax.Node) {
	cls := ctx.thisClass()
	v := ctx.lookup("this")
	if cls == nil || v == nil {
		a.errorf(at, "'this' is only available in methods")
		st.failed = true
		return
	}
	st.add(&ast.Call{Base: ast.Base{Ln: line(at)}, Kind: ast.ReadVar, Name: "this", Symbol: v, Type: cls})
	st.cur = cls
}

// pushBase loads `this` upcast to the superclass; the following method
// call binds statically.
func (a *Analyzer) pushBase(ctx *funcCtx, st *chainState, at *syntax.BaseExpr, items []syntax.ChainItem) {
	cls := ctx.thisClass()
	switch {
	case cls == nil:
		a.errorf(at, "'base' is only available in methods")
		st.failed = true
		return
	case cls.Super == nil:
		a.errorf(at, "class '%s' has no base class", cls.TypeName())
		st.failed = true
		return
	}
	if len(items) == 0 {
		a.errorf(at, "'base' must be followed by a member")
		st.failed = true
		return
	}
	if _, ok := items[0].(*syntax.MemberItem); !ok {
		a.errorf(at, "'base' must be followed by a member")
		st.failed = true
		return
	}
	a.pushThis(ctx, st, at)
	if st.failed {
		return
	}
	this := st.chain.Kids[len(st.chain.Kids)-1]
	cast := &ast.TypeCast{Base: ast.Base{Ln: line(at), Kids: []ast.Node{this}}, Kind: ast.CastExplicit, Type: cls.Super}
	st.chain.Kids[len(st.chain.Kids)-1] = cast
	st.cur = cls.Super
	st.viaBase = true
}

// memberOf finds name on a value of type t.
func memberOf(t types.Type, name string) types.Symbol {
	switch tt := t.(type) {
	case *types.ClassSymbol:
		return tt.Resolve(name)
	case *types.InterfaceSymbol:
		return tt.Resolve(name)
	case *types.ArrayType:
		return types.ArrayMember(tt, name)
	case *types.MapType:
		return types.MapMember(tt, name)
	}
	return nil
}

// member resolves `.name`. It reports whether next was consumed as the
// call of a method.
func (a *Analyzer) member(ctx *funcCtx, st *chainState, it *syntax.MemberItem, next *syntax.CallItem, write bool, value ast.Node) bool {
	if st.static != nil {
		return a.staticMember(ctx, st, it, next, write, value)
	}
	viaBase := st.viaBase
	st.viaBase = false

	sym := memberOf(st.cur, it.Name)
	if sym == nil {
		a.errorf(it, "'%s' has no member '%s'", st.cur.TypeName(), it.Name)
		st.failed = true
		return false
	}
	ln := line(it)
	switch m := sym.(type) {
	case *types.FieldSymbol:
		if write && m.Native {
			a.errorf(it, "'%s' is read-only", it.Name)
			st.failed = true
			return false
		}
		kind := ast.ReadField
		if write {
			kind = ast.WriteField
		}
		st.add(writeValue(&ast.Call{Base: ast.Base{Ln: ln}, Kind: kind, Name: it.Name, Symbol: m, Type: m.Type}, write, value))
		st.cur = m.Type
		return false

	case *types.FuncSymbol:
		if next == nil {
			a.errorf(it, "method '%s' must be called", it.Name)
			st.failed = true
			return false
		}
		kind := ast.Method
		switch {
		case isInterface(m.Owner):
			kind = ast.MethodIface
		case !viaBase && (m.Virtual || m.Override):
			kind = ast.MethodVirtual
		}
		call := &ast.Call{Base: ast.Base{Ln: ln}, Kind: kind, Name: it.Name, Symbol: m, Type: m.Sig.Returns}
		a.args(ctx, call, m.Sig, m.Params, next)
		a.trackCall(call, next.SpanVal, it.Name, m.Sig)
		st.add(call)
		st.cur = m.Sig.Returns
		return true
	}
	a.errorf(it, "'%s' can't be used here", it.Name)
	st.failed = true
	return false
}

func isInterface(s types.Symbol) bool {
	_, ok := s.(*types.InterfaceSymbol)
	return ok
}

// staticMember resolves `.name` on a namespace or type.
func (a *Analyzer) staticMember(ctx *funcCtx, st *chainState, it *syntax.MemberItem, next *syntax.CallItem, write bool, value ast.Node) bool {
	owner := st.static
	st.static = nil
	switch s := owner.(type) {
	case *types.Namespace:
		sym := s.Resolve(it.Name)
		if sym == nil {
			a.errorf(it, "symbol '%s' not resolved", types.QualifiedName(s.Path, it.Name))
			st.failed = true
			return false
		}
		return a.symbolStep(ctx, st, it, sym, next, write, value)

	case *types.EnumSymbol:
		item, ok := s.Resolve(it.Name).(*types.EnumItem)
		if !ok {
			a.errorf(it, "enum '%s' has no item '%s'", s.TypeName(), it.Name)
			st.failed = true
			return false
		}
		st.add(&ast.Literal{Base: ast.Base{Ln: line(it)}, Kind: ast.LitInt, Int: item.Value, Type: s})
		st.cur = s
		return false

	case *types.ClassSymbol:
		switch s.Resolve(it.Name).(type) {
		case *types.FuncSymbol:
			a.errorf(it, "calling instance method '%s' without an instance", it.Name)
		case *types.FieldSymbol:
			a.errorf(it, "accessing field '%s' without an instance", it.Name)
		default:
			a.errorf(it, "class '%s' has no member '%s'", s.TypeName(), it.Name)
		}
	default:
		a.errorf(it, "'%s' has no member '%s'", owner.Name(), it.Name)
	}
	st.failed = true
	return false
}

func (a *Analyzer) index(ctx *funcCtx, st *chainState, it *syntax.IndexItem, write bool, value ast.Node) {
	if st.static != nil {
		a.errorf(it, "'%s' is not a value", st.static.Name())
		st.failed = true
		return
	}
	ln := line(it)
	switch t := st.cur.(type) {
	case *types.ArrayType:
		idx, xt := a.expr(ctx, it.Index, types.Int)
		if xt != nil && xt != types.Int {
			a.errorf(it.Index, "array index must be int, got '%s'", xt.TypeName())
		}
		kind := ast.ArrIdx
		if write {
			kind = ast.ArrIdxW
		}
		call := &ast.Call{Base: ast.Base{Ln: ln, Kids: []ast.Node{idx}}, Kind: kind, Type: t.Elem}
		st.add(writeValue(call, write, value))
		st.cur = t.Elem
	case *types.MapType:
		key, kt := a.expr(ctx, it.Index, t.Key)
		a.checkAssignable(it.Index, kt, t.Key)
		kind := ast.MapIdx
		if write {
			kind = ast.MapIdxW
		}
		call := &ast.Call{Base: ast.Base{Ln: ln, Kids: []ast.Node{key}}, Kind: kind, Type: t.Value}
		st.add(writeValue(call, write, value))
		st.cur = t.Value
	default:
		a.errorf(it, "'%s' can't be indexed", st.cur.TypeName())
		st.failed = true
	}
}

// callValue calls the function value on the stack.
func (a *Analyzer) callValue(ctx *funcCtx, st *chainState, it *syntax.CallItem) {
	if st.static != nil {
		a.errorf(it, "'%s' is not a function", st.static.Name())
		st.failed = true
		return
	}
	sig, ok := st.cur.(*types.FuncSignature)
	if !ok {
		a.errorf(it, "'%s' is not callable", st.cur.TypeName())
		st.failed = true
		return
	}
	call := &ast.Call{Base: ast.Base{Ln: line(it)}, Kind: ast.FuncPtr, Type: sig.Returns}
	a.args(ctx, call, sig, nil, it)
	a.trackCall(call, it.SpanVal, "func value", sig)
	st.add(call)
	st.cur = sig.Returns
}

func (a *Analyzer) trackCall(call *ast.Call, span syntax.Span, name string, sig *types.FuncSignature) {
	a.calls[call] = callInfo{span: span, name: name, coro: sig.Coro}
}

// ---------------------------------------------------------------------------
// Arguments
// ---------------------------------------------------------------------------

// args checks the call arguments against sig and attaches them to call in
// parameter order. names is nil for function values, which take only
// positional arguments. A skipped default followed by a passed argument
// gets a null placeholder; every skipped default sets its mask bit.
func (a *Analyzer) args(ctx *funcCtx, call *ast.Call, sig *types.FuncSignature, names []string, ci *syntax.CallItem) {
	n := len(sig.Params)
	provided := make([]*syntax.Arg, n)
	pos := 0
	named := false
	for _, arg := range ci.Args {
		idx := pos
		if arg.Name != "" {
			named = true
			idx = -1
			for i, name := range names {
				if name == arg.Name {
					idx = i
				}
			}
			if idx < 0 {
				a.errorAtSpan(arg.SpanVal, "no parameter named '%s'", arg.Name)
				continue
			}
		} else {
			if named {
				a.errorAtSpan(arg.SpanVal, "positional argument after a named argument")
				continue
			}
			pos++
		}
		if idx >= n {
			a.errorAtSpan(arg.SpanVal, "too many arguments, expected %d", n)
			break
		}
		if provided[idx] != nil {
			a.errorAtSpan(arg.SpanVal, "argument '%s' is already passed", paramName(names, idx))
			continue
		}
		provided[idx] = arg
	}

	last := -1
	for i, arg := range provided {
		if arg != nil {
			last = i
		}
	}
	if last+1 > ast.MaxArgs {
		a.errorAtSpan(ci.SpanVal, "too many arguments")
		return
	}

	var bits ast.ArgsBits
	required := sig.Required()
	for i := 0; i < n; i++ {
		arg := provided[i]
		if arg == nil {
			if i < required {
				a.errorAtSpan(ci.SpanVal, "missing argument '%s'", paramName(names, i))
				continue
			}
			bits = bits.UseDefault(i - required)
			if i < last {
				call.Add(&ast.Literal{Base: ast.Base{Ln: call.Ln}, Kind: ast.LitNull, Type: types.Null})
			}
			continue
		}
		call.Add(a.arg(ctx, arg, sig.Params[i], sig.Refs[i]))
	}
	call.Args = bits.WithCount(last + 1)
}

func paramName(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return "#" + strconv.Itoa(i+1)
}

func (a *Analyzer) arg(ctx *funcCtx, arg *syntax.Arg, pt types.Type, isRef bool) ast.Node {
	switch {
	case isRef && !arg.Ref:
		a.errorAtSpan(arg.SpanVal, "argument must be passed with 'ref'")
	case !isRef && arg.Ref:
		a.errorAtSpan(arg.SpanVal, "argument is not a 'ref' parameter")
	}
	if !arg.Ref {
		node, t := a.expr(ctx, arg.Value, pt)
		a.checkAssignable(arg.Value, t, pt)
		return node
	}

	var v *types.LocalVar
	if x, ok := arg.Value.(*syntax.ChainExpr); ok && len(x.Items) == 0 {
		if id, ok := x.Root.(*syntax.Ident); ok {
			v = ctx.lookup(id.Name)
		}
	}
	if v == nil {
		a.errorAtSpan(arg.SpanVal, "only local variables can be passed by 'ref'")
		return &ast.Literal{Base: ast.Base{Ln: line(arg.Value)}, Kind: ast.LitNull, Type: types.Null}
	}
	if isRef && !types.Identical(v.Type, pt) {
		a.errorAtSpan(arg.SpanVal, "incompatible types: '%s' and '%s'", pt.TypeName(), v.Type.TypeName())
	}
	return &ast.Call{Base: ast.Base{Ln: line(arg.Value)}, Kind: ast.VarRef, Name: v.Name(), Symbol: v, Type: v.Type}
}

// ---------------------------------------------------------------------------
// Coroutine calls
// ---------------------------------------------------------------------------

// checkCoroCalls enforces that coroutines are called only as the last
// call of a yield chain, and that yield chains end in a coroutine call.
func (a *Analyzer) checkCoroCalls(root ast.Node) {
	ast.Walk(root, func(n ast.Node) bool {
		ch, ok := n.(*ast.Chain)
		if !ok {
			return true
		}
		yield := a.yieldChains[ch]
		for i, kid := range ch.Kids {
			call, ok := kid.(*ast.Call)
			if !ok || !call.Kind.IsCall() {
				continue
			}
			info, ok := a.calls[call]
			if !ok {
				continue
			}
			terminal := yield && i == len(ch.Kids)-1
			switch {
			case info.coro && !terminal:
				a.errorAtSpan(info.span, "coro function '%s' must be called with yield", info.name)
			case !info.coro && terminal:
				a.errorAtSpan(info.span, "'%s' is not a coro function, it can't be yielded", info.name)
			}
		}
		return true
	})
}
