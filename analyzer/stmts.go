package analyzer

import (
	"github.com/chazu/loom/ast"
	"github.com/chazu/loom/syntax"
	"github.com/chazu/loom/types"
)

const maxLocals = 127

func (a *Analyzer) parseFuncBodies() {
	for _, p := range a.passes {
		switch {
		case p.fn != nil:
			a.funcBody(p, nil)
		case p.class != nil:
			a.checkClass(p)
			for _, m := range p.members {
				a.funcBody(m, p.classSym)
			}
		case p.global != nil:
			a.globalInit(p)
		}
	}
}

func (a *Analyzer) funcBody(p *pass, class *types.ClassSymbol) {
	sym := p.fnSym
	ctx := newFuncCtx(p.scope, sym.Sig, class)
	params, body := a.frame(ctx, p.fn.Params, p.fn.Body)
	p.fnNode.Add(params)
	p.fnNode.Add(body)
	p.fnNode.LocalsNum = ctx.nextSlot
	a.checkFrame(ctx, p.fn, p.fn.Body, sym.FullName())
	a.checkCoroCalls(body)
}

// frame declares params, analyzes default values and then the body.
func (a *Analyzer) frame(ctx *funcCtx, params []*syntax.Param, body *syntax.BlockStmt) (*ast.Params, *ast.Block) {
	pnode := &ast.Params{}
	for i, prm := range params {
		t := ctx.sig.Params[i]
		if prm.Name == "this" {
			a.errorf(prm, "'this' can't be used as a parameter name")
		}
		v := ctx.declare(prm.Name, t)
		v.Ref = prm.Ref
		pnode.Add(&ast.VarDecl{Base: ast.Base{Ln: line(prm)}, Name: prm.Name, Symbol: v, Type: t, IsRef: prm.Ref})
	}
	for i, prm := range params {
		if prm.Default == nil {
			continue
		}
		node, vt := a.expr(ctx, prm.Default, ctx.sig.Params[i])
		a.checkAssignable(prm.Default, vt, ctx.sig.Params[i])
		pnode.Kids[i].Add(node)
	}
	bnode := &ast.Block{Base: ast.Base{Ln: line(body)}, Kind: ast.BlockFuncBody}
	a.stmts(ctx, body.Stmts, bnode)
	return pnode, bnode
}

func (a *Analyzer) checkFrame(ctx *funcCtx, at syntax.Node, body *syntax.BlockStmt, name string) {
	if ctx.nextSlot > maxLocals {
		a.errorf(at, "too many local variables in '%s'", name)
	}
	if !types.IsVoid(ctx.sig.Returns) && !alwaysReturns(body.Stmts) {
		a.errorf(at, "matching return statement not found")
	}
	if ctx.sig.Coro && !ctx.hasYield {
		a.errorf(at, "coro function '%s' has no yield", name)
	}
}

func (a *Analyzer) globalInit(p *pass) {
	if p.global.Init == nil {
		return
	}
	ctx := &funcCtx{scope: p.scope, isInit: true}
	ctx.push()
	node, t := a.expr(ctx, p.global.Init, p.globalSym.Type)
	a.checkAssignable(p.global.Init, t, p.globalSym.Type)
	p.globalNode.Add(node)
	a.checkCoroCalls(node)
}

// alwaysReturns reports whether stmts return on every path. Loops and
// parallel blocks never count.
func alwaysReturns(stmts []syntax.Stmt) bool {
	for _, s := range stmts {
		if stmtReturns(s) {
			return true
		}
	}
	return false
}

func stmtReturns(s syntax.Stmt) bool {
	switch s := s.(type) {
	case *syntax.ReturnStmt:
		return true
	case *syntax.BlockStmt:
		return alwaysReturns(s.Stmts)
	case *syntax.KeywordBlockStmt:
		return s.Kind == syntax.BlockSeq && alwaysReturns(s.Body.Stmts)
	case *syntax.IfStmt:
		return s.Else != nil && alwaysReturns(s.Then.Stmts) && stmtReturns(s.Else)
	}
	return false
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (a *Analyzer) stmts(ctx *funcCtx, stmts []syntax.Stmt, out ast.Node) {
	for _, s := range stmts {
		a.stmt(ctx, s, out)
	}
}

func (a *Analyzer) block(ctx *funcCtx, b *syntax.BlockStmt, kind ast.BlockKind) *ast.Block {
	node := &ast.Block{Base: ast.Base{Ln: line(b)}, Kind: kind}
	ctx.push()
	a.stmts(ctx, b.Stmts, node)
	ctx.pop()
	return node
}

func (a *Analyzer) stmt(ctx *funcCtx, s syntax.Stmt, out ast.Node) {
	switch s := s.(type) {
	case *syntax.VarDecl:
		a.localVarDecl(ctx, s, out)
	case *syntax.AssignStmt:
		a.assign(ctx, s, out)
	case *syntax.ExprStmt:
		a.exprStmt(ctx, s, out)
	case *syntax.ReturnStmt:
		a.returnStmt(ctx, s, out)
	case *syntax.BreakStmt:
		a.checkLoopJump(ctx, s, "break")
		out.Add(&ast.Break{Base: ast.Base{Ln: line(s)}})
	case *syntax.ContinueStmt:
		a.checkLoopJump(ctx, s, "continue")
		out.Add(&ast.Continue{Base: ast.Base{Ln: line(s)}})
	case *syntax.IfStmt:
		node := &ast.Block{Base: ast.Base{Ln: line(s)}, Kind: ast.BlockIf}
		a.ifChain(ctx, s, node)
		out.Add(node)
	case *syntax.WhileStmt:
		node := &ast.Block{Base: ast.Base{Ln: line(s)}, Kind: ast.BlockWhile}
		node.Add(a.cond(ctx, s.Cond))
		node.Add(a.loopBody(ctx, s.Body))
		out.Add(node)
	case *syntax.DoWhileStmt:
		node := &ast.Block{Base: ast.Base{Ln: line(s)}, Kind: ast.BlockDoWhile}
		node.Add(a.loopBody(ctx, s.Body))
		node.Add(a.cond(ctx, s.Cond))
		out.Add(node)
	case *syntax.ForStmt:
		a.forStmt(ctx, s, out)
	case *syntax.YieldStmt:
		a.yieldStmt(ctx, s, out)
	case *syntax.KeywordBlockStmt:
		a.keywordBlock(ctx, s, out)
	case *syntax.BlockStmt:
		out.Add(a.block(ctx, s, ast.BlockSeq))
	default:
		a.errorf(s, "unsupported statement")
	}
}

func (a *Analyzer) checkLoopJump(ctx *funcCtx, s syntax.Stmt, what string) {
	inLoop, crossesDefer := ctx.loopState()
	switch {
	case !inLoop:
		a.errorf(s, "'%s' is not within a loop", what)
	case crossesDefer:
		a.errorf(s, "'%s' can't leave a defer block", what)
	}
}

func (a *Analyzer) cond(ctx *funcCtx, x syntax.Expr) ast.Node {
	node, t := a.expr(ctx, x, types.Bool)
	if t != nil && t != types.Bool {
		a.errorf(x, "condition must be bool, got '%s'", t.TypeName())
	}
	return node
}

func (a *Analyzer) loopBody(ctx *funcCtx, b *syntax.BlockStmt) *ast.Block {
	ctx.enter(frameLoop)
	defer ctx.leave()
	return a.block(ctx, b, ast.BlockSeq)
}

func (a *Analyzer) ifChain(ctx *funcCtx, s *syntax.IfStmt, node *ast.Block) {
	node.Add(a.cond(ctx, s.Cond))
	node.Add(a.block(ctx, s.Then, ast.BlockSeq))
	switch e := s.Else.(type) {
	case nil:
	case *syntax.IfStmt:
		a.ifChain(ctx, e, node)
	case *syntax.BlockStmt:
		node.Add(a.block(ctx, e, ast.BlockSeq))
	}
}

// forStmt lowers `for (init; cond; post) body` into a seq block holding
// init and a while loop whose third child is post.
func (a *Analyzer) forStmt(ctx *funcCtx, s *syntax.ForStmt, out ast.Node) {
	outer := &ast.Block{Base: ast.Base{Ln: line(s)}, Kind: ast.BlockSeq}
	ctx.push()
	defer ctx.pop()
	if s.Init != nil {
		a.stmt(ctx, s.Init, outer)
	}
	loop := &ast.Block{Base: ast.Base{Ln: line(s)}, Kind: ast.BlockWhile}
	if s.Cond != nil {
		loop.Add(a.cond(ctx, s.Cond))
	} else {
		loop.Add(boolLit(line(s), true))
	}
	loop.Add(a.loopBody(ctx, s.Body))
	post := &ast.Block{Base: ast.Base{Ln: line(s)}, Kind: ast.BlockSeq}
	if s.Post != nil {
		a.stmt(ctx, s.Post, post)
	}
	loop.Add(post)
	outer.Add(loop)
	out.Add(outer)
}

func boolLit(ln int, v bool) *ast.Literal {
	lit := &ast.Literal{Base: ast.Base{Ln: ln}, Kind: ast.LitBool, Type: types.Bool}
	if v {
		lit.Int = 1
	}
	return lit
}

func (a *Analyzer) keywordBlock(ctx *funcCtx, s *syntax.KeywordBlockStmt, out ast.Node) {
	kind := map[syntax.BlockKind]ast.BlockKind{
		syntax.BlockSeq:      ast.BlockSeq,
		syntax.BlockParal:    ast.BlockParal,
		syntax.BlockParalAll: ast.BlockParalAll,
		syntax.BlockDefer:    ast.BlockDefer,
	}[s.Kind]
	if kind == ast.BlockDefer {
		ctx.enter(frameDefer)
		defer ctx.leave()
	}
	out.Add(a.block(ctx, s.Body, kind))
}

func (a *Analyzer) yieldStmt(ctx *funcCtx, s *syntax.YieldStmt, out ast.Node) {
	if !ctx.isCoro() {
		a.errorf(s, "yield is only allowed in coro functions")
	}
	ctx.hasYield = true
	switch {
	case s.While != nil:
		loop := &ast.Block{Base: ast.Base{Ln: line(s)}, Kind: ast.BlockWhile}
		loop.Add(a.cond(ctx, s.While))
		body := &ast.Block{Base: ast.Base{Ln: line(s)}, Kind: ast.BlockSeq}
		body.Add(&ast.Yield{Base: ast.Base{Ln: line(s)}})
		loop.Add(body)
		out.Add(loop)

	case s.Call != nil:
		x, ok := s.Call.(*syntax.ChainExpr)
		if !ok || len(x.Items) == 0 {
			a.errorf(s.Call, "yield expects a coro function call")
			return
		}
		if _, isCall := x.Items[len(x.Items)-1].(*syntax.CallItem); !isCall {
			a.errorf(s.Call, "yield expects a coro function call")
			return
		}
		chain, t := a.chain(ctx, x, chainRead, nil)
		a.yieldChains[chain] = true
		out.Add(discard(chain, t))

	default:
		out.Add(&ast.Yield{Base: ast.Base{Ln: line(s)}})
	}
}

// discard wraps node so that its values are dropped.
func discard(node ast.Node, t types.Type) ast.Node {
	n := valueCount(t)
	if n == 0 {
		return node
	}
	return &ast.Discard{Base: ast.Base{Ln: node.Line(), Kids: []ast.Node{node}}, Num: n}
}

func valueCount(t types.Type) int {
	switch tt := t.(type) {
	case nil:
		return 0
	case *types.TupleType:
		return len(tt.Items)
	}
	if types.IsVoid(t) {
		return 0
	}
	return 1
}

func (a *Analyzer) exprStmt(ctx *funcCtx, s *syntax.ExprStmt, out ast.Node) {
	x, ok := s.X.(*syntax.ChainExpr)
	if !ok || len(x.Items) == 0 {
		a.errorf(s, "expression is not a statement")
		return
	}
	if _, isCall := x.Items[len(x.Items)-1].(*syntax.CallItem); !isCall {
		a.errorf(s, "expression is not a statement")
		return
	}
	chain, t := a.chain(ctx, x, chainRead, nil)
	out.Add(discard(chain, t))
}

func (a *Analyzer) returnStmt(ctx *funcCtx, s *syntax.ReturnStmt, out ast.Node) {
	if ctx.inDefer() {
		a.errorf(s, "return is not allowed in a defer block")
	}
	want := ctx.sig.Returns
	ret := &ast.Return{Base: ast.Base{Ln: line(s)}}
	defer out.Add(ret)

	switch {
	case len(s.Values) == 0:
		if !types.IsVoid(want) {
			a.errorf(s, "return value is missing")
		}
	case types.IsVoid(want):
		a.errorf(s, "function doesn't return a value")
	case len(s.Values) == 1:
		node, t := a.expr(ctx, s.Values[0], want)
		a.checkAssignable(s.Values[0], t, want)
		ret.Add(node)
		ret.Num = valueCount(want)
	default:
		tuple, ok := want.(*types.TupleType)
		if !ok || len(tuple.Items) != len(s.Values) {
			a.errorf(s, "function returns %d values, got %d", valueCount(want), len(s.Values))
			return
		}
		for i, v := range s.Values {
			node, t := a.expr(ctx, v, tuple.Items[i])
			a.checkAssignable(v, t, tuple.Items[i])
			ret.Add(node)
		}
		ret.Num = len(s.Values)
	}
}

// ---------------------------------------------------------------------------
// Declarations and assignments
// ---------------------------------------------------------------------------

func (a *Analyzer) localVarDecl(ctx *funcCtx, s *syntax.VarDecl, out ast.Node) {
	declTypes := make([]types.Type, len(s.Names))
	for i, te := range s.Types {
		if te != nil {
			declTypes[i] = a.resolveType(ctx.scope, te, false)
		}
	}

	var init ast.Node
	var initType types.Type
	if s.Init != nil {
		var expect types.Type
		if len(s.Names) == 1 {
			expect = declTypes[0]
		}
		init, initType = a.expr(ctx, s.Init, expect)
	}

	if len(s.Names) == 1 {
		t := declTypes[0]
		switch {
		case s.Types[0] != nil:
			a.checkAssignable(s.Init, initType, t)
		case s.Init == nil:
			a.errorf(s, "variable '%s' needs a type or an initial value", s.Names[0])
		case initType == types.Null:
			a.errorf(s.Init, "can't infer a type from null")
		case initType != nil && valueCount(initType) != 1:
			a.errorf(s.Init, "can't infer a type from '%s'", initType.TypeName())
		default:
			t = initType
		}
		v := a.declareLocal(ctx, s, s.Names[0], t)
		node := &ast.VarDecl{Base: ast.Base{Ln: line(s)}, Name: s.Names[0], Symbol: v, Type: v.Type}
		if init != nil {
			node.Add(init)
		}
		out.Add(node)
		return
	}

	// int a, string b = f();
	var items []types.Type
	if s.Init != nil && initType != nil {
		tuple, ok := initType.(*types.TupleType)
		if !ok || len(tuple.Items) != len(s.Names) {
			a.errorf(s.Init, "expected %d values, got '%s'", len(s.Names), initType.TypeName())
		} else {
			items = tuple.Items
		}
	}
	vars := make([]*types.LocalVar, len(s.Names))
	for i, name := range s.Names {
		t := declTypes[i]
		switch {
		case s.Types[i] == nil && items != nil:
			t = items[i]
		case s.Types[i] == nil:
			a.errorf(s, "can't infer the type of '%s'", name)
		case items != nil:
			a.checkAssignable(s.Init, items[i], t)
		}
		vars[i] = a.declareLocal(ctx, s, name, t)
		out.Add(&ast.VarDecl{Base: ast.Base{Ln: line(s)}, Name: name, Symbol: vars[i], Type: vars[i].Type})
	}
	if init == nil {
		return
	}
	out.Add(init)
	for i := len(vars) - 1; i >= 0; i-- {
		out.Add(writeLocal(line(s), vars[i]))
	}
}

func (a *Analyzer) declareLocal(ctx *funcCtx, at syntax.Node, name string, t types.Type) *types.LocalVar {
	if ctx.defined(name) {
		a.errorf(at, "variable '%s' is already defined", name)
	}
	if t == nil {
		t = types.Any
	}
	return ctx.declare(name, t)
}

func writeLocal(ln int, v *types.LocalVar) ast.Node {
	chain := &ast.Chain{Base: ast.Base{Ln: ln}, Type: v.Type}
	chain.Add(&ast.Call{Base: ast.Base{Ln: ln}, Kind: ast.WriteVar, Name: v.Name(), Symbol: v, Type: v.Type})
	return chain
}

var compoundOps = map[syntax.TokenType]ast.BinaryKind{
	syntax.TokenPlusAssign:  ast.OpAdd,
	syntax.TokenMinusAssign: ast.OpSub,
	syntax.TokenMulAssign:   ast.OpMul,
	syntax.TokenDivAssign:   ast.OpDiv,
}

func (a *Analyzer) assign(ctx *funcCtx, s *syntax.AssignStmt, out ast.Node) {
	if len(s.Targets) > 1 {
		a.multiAssign(ctx, s, out)
		return
	}
	target, ok := s.Targets[0].(*syntax.ChainExpr)
	if !ok {
		a.errorf(s.Targets[0], "invalid assignment target")
		return
	}

	if s.Op == syntax.TokenAssign {
		// The target comes first so its type can guide the value; the
		// value then becomes the write call's last child.
		chain, targetType := a.chain(ctx, target, chainWrite, nil)
		value, vt := a.expr(ctx, s.Value, targetType)
		a.checkAssignable(s.Value, vt, targetType)
		if n := len(chain.Kids); n > 0 {
			if call, ok := chain.Kids[n-1].(*ast.Call); ok && call.Kind.IsWrite() {
				call.Add(value)
			}
		}
		out.Add(chain)
		return
	}

	// x op= v evaluates the target chain twice: once to read, once to
	// write the result. The target may not call anything.
	if at := effectIn(target); at != nil {
		a.errorf(at, "compound assignment target can't contain a call; store it in a variable first")
		return
	}
	op := compoundOps[s.Op]
	read, lt := a.chain(ctx, target, chainRead, nil)
	value, rt := a.expr(ctx, s.Value, nil)
	bin := &ast.BinaryOp{Base: ast.Base{Ln: line(s), Kids: []ast.Node{read, value}}, Op: op}
	if lt != nil && rt != nil {
		t, err := types.BinaryResult(op.String(), lt, rt)
		if err != nil {
			a.errorf(s, "%v", err)
		} else {
			bin.Type = t
			a.checkAssignable(s, t, lt)
		}
	}
	chain, _ := a.chain(ctx, target, chainWrite, bin)
	out.Add(chain)
}

// effectIn returns the first call, construction or lambda inside e, or
// nil when evaluating e twice is the same as evaluating it once.
func effectIn(e syntax.Expr) syntax.Node {
	switch x := e.(type) {
	case *syntax.ChainExpr:
		if at := effectIn(x.Root); at != nil {
			return at
		}
		for _, it := range x.Items {
			switch it := it.(type) {
			case *syntax.CallItem:
				return it
			case *syntax.IndexItem:
				if at := effectIn(it.Index); at != nil {
					return at
				}
			}
		}
	case *syntax.ParenExpr:
		return effectIn(x.X)
	case *syntax.UnaryExpr:
		return effectIn(x.X)
	case *syntax.BinaryExpr:
		if at := effectIn(x.X); at != nil {
			return at
		}
		return effectIn(x.Y)
	case *syntax.CastExpr:
		return effectIn(x.X)
	case *syntax.AsExpr:
		return effectIn(x.X)
	case *syntax.IsExpr:
		return effectIn(x.X)
	case *syntax.CollectionLit:
		for _, el := range x.Elems {
			if at := effectIn(el); at != nil {
				return at
			}
		}
	case *syntax.NewExpr:
		return x
	case *syntax.FuncLit:
		return x
	}
	return nil
}

func (a *Analyzer) multiAssign(ctx *funcCtx, s *syntax.AssignStmt, out ast.Node) {
	if s.Op != syntax.TokenAssign {
		a.errorf(s, "compound assignment needs a single target")
		return
	}
	value, vt := a.expr(ctx, s.Value, nil)
	var items []types.Type
	if vt != nil {
		tuple, ok := vt.(*types.TupleType)
		if !ok || len(tuple.Items) != len(s.Targets) {
			a.errorf(s.Value, "expected %d values, got '%s'", len(s.Targets), vt.TypeName())
		} else {
			items = tuple.Items
		}
	}
	writes := make([]ast.Node, len(s.Targets))
	for i, tx := range s.Targets {
		x, ok := tx.(*syntax.ChainExpr)
		if ok {
			_, ok = x.Root.(*syntax.Ident)
		}
		if !ok || len(x.Items) != 0 {
			a.errorf(tx, "multiple assignment targets must be variables")
			return
		}
		chain, t := a.chain(ctx, x, chainWrite, nil)
		if items != nil {
			a.checkAssignable(tx, items[i], t)
		}
		writes[i] = chain
	}
	out.Add(value)
	for i := len(writes) - 1; i >= 0; i-- {
		out.Add(writes[i])
	}
}

// checkAssignable reports an error when a value of type src can't be
// stored as dst. Unknown types were already reported.
func (a *Analyzer) checkAssignable(at syntax.Node, src, dst types.Type) {
	if src == nil || dst == nil {
		return
	}
	if _, isTuple := src.(*types.TupleType); types.IsVoid(src) || (isTuple && !types.Identical(src, dst)) {
		a.errorf(at, "expression of type '%s' can't be used as a value", src.TypeName())
		return
	}
	if !types.AssignableTo(src, dst) {
		a.errorf(at, "incompatible types: '%s' and '%s'", dst.TypeName(), src.TypeName())
	}
}
