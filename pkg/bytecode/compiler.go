package bytecode

import (
	"github.com/tliron/commonlog"

	"github.com/chazu/loom/ast"
	"github.com/chazu/loom/types"
)

var log = commonlog.GetLogger("loom.bytecode")

// Compile lowers one analyzed module into bytecode. The tree must come
// from an analysis without diagnostics; anything the compiler can't trust
// panics with *InvariantError.
func Compile(mod *types.Module, tree *ast.Module) *CompiledModule {
	c := newCompiler(mod)
	c.module(tree)
	return c.finish()
}

// compiler holds the two output streams. Module initialisation goes to
// init, function bodies to code; every emitting method takes the target
// stream explicitly.
type compiler struct {
	mod   *types.Module
	pool  *ConstantPool
	init  *Stream
	code  *Stream
	loops []*loopCtx

	entries map[*types.FuncSymbol]*Instruction
	funcs   []funcEntry
	direct  []directCall
}

type funcEntry struct {
	name  string
	entry *Instruction
}

// directCall is a GetFunc/CallPtr pair calling a function of the module
// being compiled.
type directCall struct {
	stream    *Stream
	get, call *Instruction
	fn        *types.FuncSymbol
	constant  int
}

// loopCtx collects break and continue instructions until the loop's exit
// and continuation points exist.
type loopCtx struct {
	breaks    []*Instruction
	continues []*Instruction
}

func newCompiler(mod *types.Module) *compiler {
	return &compiler{
		mod:     mod,
		pool:    NewConstantPool(),
		init:    NewStream(),
		code:    NewStream(),
		entries: make(map[*types.FuncSymbol]*Instruction),
	}
}

func (c *compiler) module(tree *ast.Module) {
	last := 0
	for _, n := range tree.Kids {
		last = n.Line()
		switch n := n.(type) {
		case *ast.Import:
			c.init.Emit(OpImport, n.Ln, c.constant(ModuleConst(n.Module)))
		case *ast.FuncDecl:
			c.funcDecl(n)
		case *ast.ClassDecl:
			for _, m := range n.Kids {
				c.funcDecl(m.(*ast.FuncDecl))
			}
		case *ast.VarDecl:
			c.globalDecl(n)
		default:
			invariant("unexpected %s at module level", ast.Describe(n))
		}
	}
	c.init.Emit(OpReturn, last)
}

// finish runs the call optimisation, compacts the pool, resolves both
// streams and packages the result. Code is resolved first because init
// may call into it.
func (c *compiler) finish() *CompiledModule {
	c.optimizeCalls()
	c.remapConstants(c.pool.Compact())
	c.code.Resolve()
	c.init.Resolve()

	m := &CompiledModule{
		Version:   FormatVersion,
		Name:      c.mod.Name,
		File:      c.mod.File,
		Imports:   append([]string(nil), c.mod.Imports...),
		Namespace: types.ExportModule(c.mod),
		Init:      c.init.Bytes(),
		Code:      c.code.Bytes(),
		InitLines: c.init.Lines(),
		Lines:     c.code.Lines(),
	}
	if c.pool.Len() > 0 {
		m.Constants = append([]Constant(nil), c.pool.Entries()...)
	}
	if len(m.Code) == 0 {
		m.Code = nil
	}
	for _, f := range c.funcs {
		m.Funcs = append(m.Funcs, FuncAddr{Name: f.name, Pos: f.entry.Pos})
	}
	log.Debugf("compiled %s: %d constants, %d init bytes, %d code bytes, %d direct calls",
		m.Name, len(m.Constants), len(m.Init), len(m.Code), len(c.direct))
	return m
}

func (c *compiler) constant(k Constant) int64 {
	return int64(c.pool.Add(k))
}

func (c *compiler) typeConstant(t types.Type) int64 {
	if t == nil {
		invariant("missing type")
	}
	module := ""
	if d, ok := t.(types.Decl); ok {
		module = d.ModuleName()
	}
	return c.constant(TypeConst(module, t.TypeName()))
}

// optimizeCalls turns every GetFunc/CallPtr pair that targets a function
// of this module into a direct Call. The GetFunc becomes a marker, its pool
// reference is released and the address is patched once code is laid out.
func (c *compiler) optimizeCalls() {
	for _, d := range c.direct {
		entry, ok := c.entries[d.fn]
		if !ok {
			continue
		}
		args := d.call.Operand(0)
		d.get.Rewrite(OpMark)
		c.pool.Release(d.constant)
		d.call.Rewrite(OpCall, 0, args)
		call := d.call
		d.stream.OnResolve(func() {
			call.SetOperand(0, int64(entry.Pos))
		})
	}
}

func (c *compiler) remapConstants(remap []int) {
	apply := func(in *Instruction) {
		p := GetOpcodeInfo(in.Op).Pool
		if p < 0 {
			return
		}
		old := in.Operands[p]
		if old < 0 || int(old) >= len(remap) || remap[old] < 0 {
			invariant("%s refers to released constant %d", in.Op, old)
		}
		in.SetOperand(p, int64(remap[old]))
	}
	c.init.Each(apply)
	c.code.Each(apply)
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

func (c *compiler) funcDecl(n *ast.FuncDecl) {
	s := c.code
	entry := s.Emit(OpInitFrame, n.Ln, int64(n.LocalsNum))
	c.entries[n.Symbol] = entry
	c.funcs = append(c.funcs, funcEntry{name: n.Name, entry: entry})
	c.params(s, n.Params())
	if n.Symbol.IsMethod() {
		s.Emit(OpArgVar, n.Ln, 0) // this
	}
	c.frameBody(s, n.Body())
}

func (c *compiler) lambda(s *Stream, n *ast.LambdaDecl) {
	head := s.Emit(OpLambda, n.Ln, 0)
	s.Emit(OpInitFrame, n.Ln, int64(n.LocalsNum))
	c.params(s, n.Params())
	c.frameBody(s, n.Body())
	after := s.Mark(n.Ln)
	s.RequestOffset(head, after, 0)
	for _, uv := range n.Upvals {
		s.Emit(OpUseUpval, n.Ln, int64(uv.Src), int64(uv.Dst), int64(uv.Mode))
	}
}

// frameBody emits a function body with its own loop stack and makes sure
// control never falls off the end.
func (c *compiler) frameBody(s *Stream, body *ast.Block) {
	saved := c.loops
	c.loops = nil
	c.stmts(s, body.Kids, false)
	c.loops = saved
	ins := s.Instructions()
	if len(ins) == 0 || !ins[len(ins)-1].Op.IsReturn() {
		s.Emit(OpReturn, lastLine(body))
	}
}

// params pops arguments into their slots, last parameter first. A
// default value is computed only when the caller did not pass it.
func (c *compiler) params(s *Stream, p *ast.Params) {
	firstDefault := len(p.Kids)
	for i, k := range p.Kids {
		if len(k.Children()) > 0 {
			firstDefault = i
			break
		}
	}
	for i := len(p.Kids) - 1; i >= 0; i-- {
		v := p.Kids[i].(*ast.VarDecl)
		if len(v.Kids) > 0 {
			def := s.Emit(OpDefArg, v.Ln, int64(i-firstDefault), 0)
			c.expr(s, v.Kids[0])
			after := s.Mark(v.Ln)
			s.RequestOffset(def, after, 1)
		}
		op := OpArgVar
		if v.IsRef {
			op = OpArgRef
		}
		s.Emit(op, v.Ln, int64(localSlot(v.Symbol)))
	}
}

func (c *compiler) globalDecl(n *ast.VarDecl) {
	g, ok := n.Symbol.(*types.GlobalVar)
	if !ok {
		invariant("module level variable '%s' is not a global", n.Name)
	}
	if len(n.Kids) == 0 {
		return
	}
	c.expr(c.init, n.Kids[0])
	c.init.Emit(OpSetGVar, n.Ln, int64(g.Index))
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// stmts emits a statement list. underParal is set when some enclosing
// block runs its children in parallel.
func (c *compiler) stmts(s *Stream, list []ast.Node, underParal bool) {
	for _, n := range list {
		c.stmt(s, n, underParal)
	}
}

func (c *compiler) stmt(s *Stream, n ast.Node, underParal bool) {
	switch n := n.(type) {
	case *ast.Block:
		switch n.Kind {
		case ast.BlockIf:
			c.ifBlock(s, n, underParal)
		case ast.BlockWhile:
			c.whileBlock(s, n, underParal)
		case ast.BlockDoWhile:
			c.doWhileBlock(s, n, underParal)
		case ast.BlockFuncBody:
			c.stmts(s, n.Kids, underParal)
		default:
			c.block(s, n, underParal)
		}
	case *ast.VarDecl:
		slot := int64(localSlot(n.Symbol))
		if len(n.Kids) == 0 {
			s.Emit(OpDeclVar, n.Ln, slot, c.typeConstant(n.Type))
			return
		}
		c.expr(s, n.Kids[0])
		s.Emit(OpSetVar, n.Ln, slot)
	case *ast.Return:
		for _, k := range n.Kids {
			c.expr(s, k)
		}
		if n.Num == 0 {
			s.Emit(OpReturn, n.Ln)
		} else {
			s.Emit(OpReturnVal, n.Ln, int64(n.Num))
		}
	case *ast.Break:
		loop := c.loop()
		loop.breaks = append(loop.breaks, s.Emit(OpBreak, n.Ln, 0))
	case *ast.Continue:
		loop := c.loop()
		loop.continues = append(loop.continues, s.Emit(OpContinue, n.Ln, 0))
	case *ast.Yield:
		s.Emit(OpYield, n.Ln)
	case *ast.Discard:
		for _, k := range n.Kids {
			c.expr(s, k)
		}
		for i := 0; i < n.Num; i++ {
			s.Emit(OpPop, n.Ln)
		}
	default:
		c.expr(s, n)
	}
}

func (c *compiler) loop() *loopCtx {
	if len(c.loops) == 0 {
		invariant("break or continue outside a loop")
	}
	return c.loops[len(c.loops)-1]
}

func (c *compiler) pushLoop() *loopCtx {
	l := &loopCtx{}
	c.loops = append(c.loops, l)
	return l
}

// popLoop backpatches the loop's pending jumps.
func (c *compiler) popLoop(s *Stream, l *loopCtx, exit, cont *Instruction) {
	c.loops = c.loops[:len(c.loops)-1]
	for _, b := range l.breaks {
		s.RequestOffset(b, exit, 0)
	}
	for _, k := range l.continues {
		s.RequestOffset(k, cont, 0)
	}
}

// ifBlock lowers cond/body pairs and an optional trailing else body.
func (c *compiler) ifBlock(s *Stream, b *ast.Block, underParal bool) {
	var exits []*Instruction
	kids := b.Kids
	for i := 0; i+1 < len(kids); i += 2 {
		c.expr(s, kids[i])
		jz := s.Emit(OpJumpZ, kids[i].Line(), 0)
		c.stmt(s, kids[i+1], underParal)
		if i+2 < len(kids) {
			exits = append(exits, s.Emit(OpJump, kids[i+1].Line(), 0))
		}
		next := s.Mark(b.Ln)
		s.RequestOffset(jz, next, 0)
	}
	if len(kids)%2 == 1 {
		c.stmt(s, kids[len(kids)-1], underParal)
	}
	end := s.Mark(b.Ln)
	for _, j := range exits {
		s.RequestOffset(j, end, 0)
	}
}

// whileBlock lowers [cond, body] or [cond, body, post]. Continue targets
// the post statement.
func (c *compiler) whileBlock(s *Stream, b *ast.Block, underParal bool) {
	top := s.Mark(b.Ln)
	c.expr(s, b.Kids[0])
	jz := s.Emit(OpJumpZ, b.Ln, 0)
	l := c.pushLoop()
	c.stmt(s, b.Kids[1], underParal)
	cont := s.Mark(b.Ln)
	if len(b.Kids) > 2 {
		c.stmt(s, b.Kids[2], underParal)
	}
	back := s.Emit(OpJump, b.Ln, 0)
	s.RequestOffset(back, top, 0)
	exit := s.Mark(b.Ln)
	s.RequestOffset(jz, exit, 0)
	c.popLoop(s, l, exit, cont)
}

func (c *compiler) doWhileBlock(s *Stream, b *ast.Block, underParal bool) {
	top := s.Mark(b.Ln)
	l := c.pushLoop()
	c.stmt(s, b.Kids[0], underParal)
	cont := s.Mark(b.Ln)
	c.expr(s, b.Kids[1])
	jz := s.Emit(OpJumpZ, b.Ln, 0)
	back := s.Emit(OpJump, b.Ln, 0)
	s.RequestOffset(back, top, 0)
	exit := s.Mark(b.Ln)
	s.RequestOffset(jz, exit, 0)
	c.popLoop(s, l, exit, cont)
}

// block emits seq, paral, paral_all and defer blocks behind a Block
// header whose size operand spans the whole block. A seq header is turned
// into a marker unless the block runs under or around a paral block or
// has a defer child. Jumps never target a header: branches land on
// markers and loop tops.
func (c *compiler) block(s *Stream, b *ast.Block, underParal bool) {
	paral := b.Kind == ast.BlockParal || b.Kind == ast.BlockParalAll
	head := s.Emit(OpBlock, b.Ln, int64(b.Kind), 0)
	for _, kid := range b.Kids {
		if paral && !isSeqOrDefer(kid) {
			kid = &ast.Block{Base: ast.Base{Ln: kid.Line(), Kids: []ast.Node{kid}}, Kind: ast.BlockSeq}
		}
		c.stmt(s, kid, underParal || paral)
	}
	end := s.Mark(b.Ln)
	keep := b.Kind != ast.BlockSeq || underParal || hasParalDescendant(b) || hasDeferChild(b)
	if !keep {
		head.Rewrite(OpMark)
		return
	}
	s.RequestOffset(head, end, 1)
}

func isSeqOrDefer(n ast.Node) bool {
	b, ok := n.(*ast.Block)
	return ok && (b.Kind == ast.BlockSeq || b.Kind == ast.BlockDefer)
}

func hasDeferChild(b *ast.Block) bool {
	for _, k := range b.Kids {
		if kb, ok := k.(*ast.Block); ok && kb.Kind == ast.BlockDefer {
			return true
		}
	}
	return false
}

// hasParalDescendant stops at lambdas: their bodies run in another frame.
func hasParalDescendant(b *ast.Block) bool {
	found := false
	for _, k := range b.Kids {
		ast.Walk(k, func(n ast.Node) bool {
			switch n := n.(type) {
			case *ast.LambdaDecl:
				return false
			case *ast.Block:
				if n.Kind == ast.BlockParal || n.Kind == ast.BlockParalAll {
					found = true
				}
			}
			return !found
		})
	}
	return found
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

var binaryOpcodes = map[ast.BinaryKind]Opcode{
	ast.OpAdd: OpAdd,
	ast.OpSub: OpSub,
	ast.OpMul: OpMul,
	ast.OpDiv: OpDiv,
	ast.OpMod: OpMod,
	ast.OpLt:  OpLt,
	ast.OpLe:  OpLe,
	ast.OpGt:  OpGt,
	ast.OpGe:  OpGe,
	ast.OpEq:  OpEq,
	ast.OpNe:  OpNe,
}

var castOpcodes = map[ast.CastKind]Opcode{
	ast.CastExplicit: OpTypeCast,
	ast.CastAs:       OpTypeAs,
	ast.CastIs:       OpTypeIs,
}

func (c *compiler) expr(s *Stream, n ast.Node) {
	switch n := n.(type) {
	case *ast.Literal:
		s.Emit(OpConstant, n.Ln, c.constant(literalConstant(n)))
	case *ast.UnaryOp:
		c.expr(s, n.Kids[0])
		if n.Op == ast.OpNeg {
			s.Emit(OpUnaryNeg, n.Ln)
		} else {
			s.Emit(OpNot, n.Ln)
		}
	case *ast.BinaryOp:
		c.binary(s, n)
	case *ast.Chain:
		for _, k := range n.Kids {
			c.expr(s, k)
		}
	case *ast.Call:
		c.call(s, n)
	case *ast.TypeCast:
		c.expr(s, n.Kids[0])
		s.Emit(castOpcodes[n.Kind], n.Ln, c.typeConstant(n.Type))
	case *ast.New:
		s.Emit(OpNew, n.Ln, c.typeConstant(n.Type))
		for _, k := range n.Kids {
			c.expr(s, k)
		}
	case *ast.CollectionLit:
		s.Emit(OpNew, n.Ln, c.typeConstant(n.Type))
		for _, k := range n.Kids {
			app := k.(*ast.CollectionAppend)
			for _, v := range app.Kids {
				c.expr(s, v)
			}
			if app.IsMap {
				s.Emit(OpMapAddInplace, app.Ln)
			} else {
				s.Emit(OpArrAddInplace, app.Ln)
			}
		}
	case *ast.LambdaDecl:
		c.lambda(s, n)
	default:
		invariant("unexpected %s in expression", ast.Describe(n))
	}
}

func literalConstant(n *ast.Literal) Constant {
	switch n.Kind {
	case ast.LitInt:
		return IntConst(n.Int)
	case ast.LitFloat:
		return FloatConst(n.Float)
	case ast.LitString:
		return StringConst(n.Str)
	case ast.LitBool:
		return BoolConst(n.Int != 0)
	}
	return NullConst()
}

// binary short circuits && and || with peeking jumps that leave the
// deciding operand on the stack.
func (c *compiler) binary(s *Stream, n *ast.BinaryOp) {
	c.expr(s, n.Kids[0])
	switch n.Op {
	case ast.OpAnd, ast.OpOr:
		op := OpJumpPeekZ
		if n.Op == ast.OpOr {
			op = OpJumpPeekNZ
		}
		j := s.Emit(op, n.Ln, 0)
		c.expr(s, n.Kids[1])
		end := s.Mark(n.Ln)
		s.RequestOffset(j, end, 0)
		return
	}
	c.expr(s, n.Kids[1])
	op, ok := binaryOpcodes[n.Op]
	if !ok {
		invariant("no opcode for operator %s", n.Op)
	}
	s.Emit(op, n.Ln)
}

func (c *compiler) kids(s *Stream, n ast.Node) {
	for _, k := range n.Children() {
		c.expr(s, k)
	}
}

// call emits the instruction selected by the call kind. Children
// (arguments, indexes, stored values) come first.
func (c *compiler) call(s *Stream, n *ast.Call) {
	ln := n.Ln
	args := int64(int32(n.Args))
	switch n.Kind {
	case ast.ReadVar:
		s.Emit(OpGetVar, ln, int64(localSlot(n.Symbol)))
	case ast.WriteVar:
		c.kids(s, n)
		s.Emit(OpSetVar, ln, int64(localSlot(n.Symbol)))
	case ast.VarRef:
		s.Emit(OpRefVar, ln, int64(localSlot(n.Symbol)))

	case ast.ReadGlobal:
		c.global(s, n, false)
	case ast.WriteGlobal:
		c.kids(s, n)
		c.global(s, n, true)

	case ast.ReadField:
		f := field(n)
		if f.Native {
			s.Emit(OpCallMethodNative, ln, int64(f.Index), 0)
			return
		}
		s.Emit(OpGetAttr, ln, int64(f.Index))
	case ast.WriteField:
		c.kids(s, n)
		s.Emit(OpSetAttr, ln, int64(field(n).Index))
	case ast.InitField:
		c.kids(s, n)
		s.Emit(OpSetAttrInplace, ln, int64(field(n).Index))

	case ast.Func:
		c.funcCall(s, n, args)
	case ast.FuncRef:
		f := function(n)
		if f.Native {
			s.Emit(OpGetFuncNative, ln, int64(f.Index))
			return
		}
		s.Emit(OpGetFunc, ln, c.constant(FuncConst(f.Module, f.FullName())))

	case ast.Method:
		c.kids(s, n)
		f := function(n)
		if f.Native {
			s.Emit(OpCallMethodNative, ln, int64(f.Index), args)
			return
		}
		s.Emit(OpCallMethod, ln, c.constant(FuncConst(f.Module, f.FullName())), args)
	case ast.MethodVirtual:
		c.kids(s, n)
		s.Emit(OpCallMethodVirt, ln, int64(function(n).Index), args)
	case ast.MethodIface:
		c.kids(s, n)
		f := function(n)
		iface, ok := f.Owner.(*types.InterfaceSymbol)
		if !ok {
			invariant("interface call of '%s' without an interface", f.Name())
		}
		s.Emit(OpCallMethodIface, ln, int64(f.Index), c.typeConstant(iface), args)
	case ast.FuncPtr:
		c.kids(s, n)
		s.Emit(OpCallPtr, ln, args)

	case ast.ArrIdx:
		c.kids(s, n)
		s.Emit(OpArrIdx, ln)
	case ast.ArrIdxW:
		c.kids(s, n)
		s.Emit(OpArrIdxW, ln)
	case ast.MapIdx:
		c.kids(s, n)
		s.Emit(OpMapIdx, ln)
	case ast.MapIdxW:
		c.kids(s, n)
		s.Emit(OpMapIdxW, ln)
	default:
		invariant("unknown call kind %s", n.Kind)
	}
}

// funcCall emits GetFunc, the arguments and CallPtr. Calls into this
// module are recorded so optimizeCalls can make them direct.
func (c *compiler) funcCall(s *Stream, n *ast.Call, args int64) {
	f := function(n)
	if f.Native {
		c.kids(s, n)
		s.Emit(OpCallNative, n.Ln, int64(f.Index), args)
		return
	}
	idx := c.constant(FuncConst(f.Module, f.FullName()))
	get := s.Emit(OpGetFunc, n.Ln, idx)
	c.kids(s, n)
	call := s.Emit(OpCallPtr, n.Ln, args)
	if f.Module == c.mod.Name {
		c.direct = append(c.direct, directCall{stream: s, get: get, call: call, fn: f, constant: int(idx)})
	}
}

func (c *compiler) global(s *Stream, n *ast.Call, write bool) {
	g, ok := n.Symbol.(*types.GlobalVar)
	if !ok {
		invariant("global access '%s' without a global symbol", n.Name)
	}
	if g.Module == "" || g.Module == c.mod.Name {
		op := OpGetGVar
		if write {
			op = OpSetGVar
		}
		s.Emit(op, n.Ln, int64(g.Index))
		return
	}
	op := OpGetGVarImported
	if write {
		op = OpSetGVarImported
	}
	s.Emit(op, n.Ln, c.constant(ModuleConst(g.Module)), int64(g.Index))
}

func localSlot(sym types.Symbol) int {
	v, ok := sym.(*types.LocalVar)
	if !ok {
		invariant("expected a local variable, got %T", sym)
	}
	return v.Slot
}

func field(n *ast.Call) *types.FieldSymbol {
	f, ok := n.Symbol.(*types.FieldSymbol)
	if !ok {
		invariant("%s '%s' without a field symbol", n.Kind, n.Name)
	}
	return f
}

func function(n *ast.Call) *types.FuncSymbol {
	f, ok := n.Symbol.(*types.FuncSymbol)
	if !ok {
		invariant("%s '%s' without a function symbol", n.Kind, n.Name)
	}
	return f
}

func lastLine(b *ast.Block) int {
	if n := len(b.Kids); n > 0 {
		return b.Kids[n-1].Line()
	}
	return b.Ln
}
