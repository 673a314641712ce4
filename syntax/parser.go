package syntax

import (
	"fmt"
	"strconv"

	"github.com/chazu/loom/diag"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for Loom syntax
// ---------------------------------------------------------------------------

// bailout unwinds the parser to the nearest recovery point.
type bailout struct{}

// Parser parses Loom source code into a parse tree.
type Parser struct {
	path  string
	toks  []Token
	p     int
	diags diag.List
}

// NewParser creates a parser for src. Lexical errors are reported as
// syntax diagnostics and the offending tokens are dropped.
func NewParser(path, src string) *Parser {
	p := &Parser{path: path}
	for _, tok := range Tokenize(src) {
		if tok.Type == TokenError {
			p.diags.Addf(diag.SyntaxError, path, Span{tok.Pos, tok.End}.Range(), "%s", tok.Literal)
			continue
		}
		p.toks = append(p.toks, tok)
	}
	return p
}

// Parse parses one source file.
func Parse(path, src string) (*File, diag.List) {
	p := NewParser(path, src)
	f := p.ParseFile()
	return f, p.Errors()
}

// Errors returns accumulated syntax diagnostics.
func (p *Parser) Errors() diag.List {
	return p.diags
}

func (p *Parser) cur() Token {
	return p.toks[p.p]
}

func (p *Parser) peek(n int) Token {
	if p.p+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.p+n]
}

func (p *Parser) next() {
	if p.p < len(p.toks)-1 {
		p.p++
	}
}

func (p *Parser) is(t TokenType) bool {
	return p.cur().Type == t
}

// accept advances if the current token matches.
func (p *Parser) accept(t TokenType) bool {
	if p.is(t) {
		p.next()
		return true
	}
	return false
}

// expect advances if the current token matches, otherwise fails.
func (p *Parser) expect(t TokenType) Token {
	tok := p.cur()
	if tok.Type != t {
		p.failf("expected %s, got %s", t, describe(tok))
	}
	p.next()
	return tok
}

// failf records a syntax error at the current token and bails out.
func (p *Parser) failf(format string, args ...any) {
	tok := p.cur()
	p.diags.Addf(diag.SyntaxError, p.path, Span{tok.Pos, tok.End}.Range(), format, args...)
	panic(bailout{})
}

// span returns the span from start to the end of the previous token.
func (p *Parser) span(start Pos) Span {
	if p.p == 0 {
		return Span{start, start}
	}
	return Span{start, p.toks[p.p-1].End}
}

// guard runs fn and, if it bails out, skips to a synchronisation point.
func (p *Parser) guard(fn func()) {
	start := p.p
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
			p.sync(start)
		}
	}()
	fn()
}

// try runs fn and reports whether it completed without bailing out.
// Diagnostics raised during the attempt are discarded.
func (p *Parser) try(fn func()) (ok bool) {
	mark := len(p.diags)
	defer func() {
		if r := recover(); r != nil {
			if _, isBail := r.(bailout); !isBail {
				panic(r)
			}
			p.diags = p.diags[:mark]
			ok = false
		}
	}()
	fn()
	return true
}

// sync skips tokens up to and including the next ';', or up to the next
// '}' or EOF. It always makes progress.
func (p *Parser) sync(start int) {
	for !p.is(TokenEOF) {
		if p.accept(TokenSemicolon) {
			return
		}
		if p.is(TokenRBrace) {
			if p.p == start {
				p.next()
			}
			return
		}
		p.next()
	}
}

func describe(tok Token) string {
	switch tok.Type {
	case TokenIdent, TokenInt, TokenFloat:
		return fmt.Sprintf("'%s'", tok.Literal)
	case TokenString:
		return fmt.Sprintf("%q", tok.Literal)
	case TokenEOF:
		return "end of file"
	}
	return fmt.Sprintf("'%s'", tok.Type)
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

// ParseFile parses a whole source file.
func (p *Parser) ParseFile() *File {
	f := &File{Path: p.path}
	start := p.cur().Pos
	for !p.is(TokenEOF) {
		p.guard(func() {
			if p.is(TokenImport) {
				f.Imports = append(f.Imports, p.parseImport())
				return
			}
			f.Decls = append(f.Decls, p.parseDecl())
		})
	}
	f.SpanVal = Span{start, p.cur().End}
	return f
}

func (p *Parser) parseImport() *ImportDecl {
	start := p.cur().Pos
	p.expect(TokenImport)
	path := p.expect(TokenString).Literal
	p.expect(TokenSemicolon)
	return &ImportDecl{SpanVal: p.span(start), Path: path}
}

type modifiers struct {
	static, virtual, override bool
}

func (p *Parser) parseModifiers() modifiers {
	var m modifiers
	for {
		switch {
		case p.accept(TokenStatic):
			m.static = true
		case p.accept(TokenVirtual):
			m.virtual = true
		case p.accept(TokenOverride):
			m.override = true
		default:
			return m
		}
	}
}

func (p *Parser) parseDecl() Decl {
	start := p.cur().Pos
	switch p.cur().Type {
	case TokenNamespace:
		return p.parseNamespace()
	case TokenInterface:
		return p.parseInterface()
	case TokenEnum:
		return p.parseEnum()
	}

	mods := p.parseModifiers()
	switch {
	case p.is(TokenClass):
		if mods.virtual || mods.override {
			p.failf("invalid modifier on class")
		}
		return p.parseClass(start, mods.static)
	case p.isFuncStart() && !p.looksLikeVarDecl():
		return p.parseFunc(start, mods, true)
	}
	if mods.virtual || mods.override {
		p.failf("expected 'func', got %s", describe(p.cur()))
	}
	return p.parseVarDecl(start, mods.static, true)
}

func (p *Parser) isFuncStart() bool {
	return p.is(TokenFunc) || p.is(TokenCoro)
}

func (p *Parser) parseNamespace() *NamespaceDecl {
	start := p.cur().Pos
	p.expect(TokenNamespace)
	ns := &NamespaceDecl{}
	ns.Name = append(ns.Name, p.expect(TokenIdent).Literal)
	for p.accept(TokenDot) {
		ns.Name = append(ns.Name, p.expect(TokenIdent).Literal)
	}
	p.expect(TokenLBrace)
	for !p.is(TokenRBrace) && !p.is(TokenEOF) {
		p.guard(func() {
			ns.Decls = append(ns.Decls, p.parseDecl())
		})
	}
	p.expect(TokenRBrace)
	ns.SpanVal = p.span(start)
	return ns
}

// parseFuncHeader parses the return types and name that follow 'func'.
func (p *Parser) parseFuncHeader() ([]TypeExpr, string) {
	if p.is(TokenIdent) && p.peek(1).Type == TokenLParen {
		name := p.cur().Literal
		p.next()
		return nil, name
	}
	returns := []TypeExpr{p.parseType()}
	for p.accept(TokenComma) {
		returns = append(returns, p.parseType())
	}
	return returns, p.expect(TokenIdent).Literal
}

func (p *Parser) parseFunc(start Pos, mods modifiers, withBody bool) *FuncDecl {
	coro := p.accept(TokenCoro)
	p.expect(TokenFunc)
	fn := &FuncDecl{
		Static:   mods.static,
		Coro:     coro,
		Virtual:  mods.virtual,
		Override: mods.override,
	}
	fn.Returns, fn.Name = p.parseFuncHeader()
	fn.Params = p.parseParams()
	if withBody {
		fn.Body = p.parseBlock()
	} else {
		p.expect(TokenSemicolon)
	}
	fn.SpanVal = p.span(start)
	return fn
}

func (p *Parser) parseParams() []*Param {
	p.expect(TokenLParen)
	var params []*Param
	for !p.is(TokenRParen) {
		start := p.cur().Pos
		param := &Param{}
		param.Ref = p.accept(TokenRef)
		param.Type = p.parseType()
		param.Name = p.expect(TokenIdent).Literal
		if p.accept(TokenAssign) {
			param.Default = p.parseExpr()
		}
		param.SpanVal = p.span(start)
		params = append(params, param)
		if !p.accept(TokenComma) {
			break
		}
	}
	p.expect(TokenRParen)
	return params
}

func (p *Parser) parseBases() []TypeExpr {
	var bases []TypeExpr
	if p.accept(TokenColon) {
		bases = append(bases, p.parseType())
		for p.accept(TokenComma) {
			bases = append(bases, p.parseType())
		}
	}
	return bases
}

func (p *Parser) parseClass(start Pos, static bool) *ClassDecl {
	p.expect(TokenClass)
	cd := &ClassDecl{Static: static}
	cd.Name = p.expect(TokenIdent).Literal
	cd.Bases = p.parseBases()
	p.expect(TokenLBrace)
	for !p.is(TokenRBrace) && !p.is(TokenEOF) {
		p.guard(func() {
			mstart := p.cur().Pos
			mods := p.parseModifiers()
			if mods.static {
				p.failf("static class members are not supported")
			}
			if p.isFuncStart() && !p.looksLikeVarDecl() {
				cd.Methods = append(cd.Methods, p.parseFunc(mstart, mods, true))
				return
			}
			if mods.virtual || mods.override {
				p.failf("expected 'func', got %s", describe(p.cur()))
			}
			field := &FieldDecl{Type: p.parseType()}
			field.Name = p.expect(TokenIdent).Literal
			p.expect(TokenSemicolon)
			field.SpanVal = p.span(mstart)
			cd.Fields = append(cd.Fields, field)
		})
	}
	p.expect(TokenRBrace)
	cd.SpanVal = p.span(start)
	return cd
}

func (p *Parser) parseInterface() *InterfaceDecl {
	start := p.cur().Pos
	p.expect(TokenInterface)
	id := &InterfaceDecl{}
	id.Name = p.expect(TokenIdent).Literal
	id.Bases = p.parseBases()
	p.expect(TokenLBrace)
	for !p.is(TokenRBrace) && !p.is(TokenEOF) {
		p.guard(func() {
			mstart := p.cur().Pos
			mods := p.parseModifiers()
			if mods.static || mods.virtual || mods.override {
				p.failf("invalid modifier on interface method")
			}
			id.Methods = append(id.Methods, p.parseFunc(mstart, mods, false))
		})
	}
	p.expect(TokenRBrace)
	id.SpanVal = p.span(start)
	return id
}

func (p *Parser) parseEnum() *EnumDecl {
	start := p.cur().Pos
	p.expect(TokenEnum)
	ed := &EnumDecl{}
	ed.Name = p.expect(TokenIdent).Literal
	p.expect(TokenLBrace)
	for !p.is(TokenRBrace) {
		istart := p.cur().Pos
		item := &EnumItem{Name: p.expect(TokenIdent).Literal}
		p.expect(TokenAssign)
		neg := p.accept(TokenMinus)
		item.Value = p.parseIntLiteral().Value
		if neg {
			item.Value = -item.Value
		}
		item.SpanVal = p.span(istart)
		ed.Items = append(ed.Items, item)
		if !p.accept(TokenComma) {
			break
		}
	}
	p.expect(TokenRBrace)
	ed.SpanVal = p.span(start)
	return ed
}

// parseVarDecl parses `T a [, U b] [= init]` or `var a [= init]`.
func (p *Parser) parseVarDecl(start Pos, static bool, semi bool) *VarDecl {
	vd := &VarDecl{Static: static}
	for {
		if p.accept(TokenVar) {
			vd.Types = append(vd.Types, nil)
		} else {
			vd.Types = append(vd.Types, p.parseType())
		}
		vd.Names = append(vd.Names, p.expect(TokenIdent).Literal)
		if !p.accept(TokenComma) {
			break
		}
	}
	if p.accept(TokenAssign) {
		vd.Init = p.parseExpr()
	}
	if semi {
		p.expect(TokenSemicolon)
	}
	vd.SpanVal = p.span(start)
	return vd
}

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

func (p *Parser) parseType() TypeExpr {
	start := p.cur().Pos
	switch p.cur().Type {
	case TokenLBracket:
		p.next()
		if p.accept(TokenRBracket) {
			elem := p.parseType()
			return &ArrayTypeExpr{SpanVal: p.span(start), Elem: elem}
		}
		key := p.parseType()
		p.expect(TokenRBracket)
		val := p.parseType()
		return &MapTypeExpr{SpanVal: p.span(start), Key: key, Value: val}

	case TokenCoro, TokenFunc:
		coro := p.accept(TokenCoro)
		p.expect(TokenFunc)
		ft := &FuncTypeExpr{Coro: coro}
		if !p.is(TokenLParen) {
			ft.Returns = append(ft.Returns, p.parseType())
			for p.accept(TokenComma) {
				ft.Returns = append(ft.Returns, p.parseType())
			}
		}
		p.expect(TokenLParen)
		for !p.is(TokenRParen) {
			ft.Refs = append(ft.Refs, p.accept(TokenRef))
			ft.Params = append(ft.Params, p.parseType())
			if !p.accept(TokenComma) {
				break
			}
		}
		p.expect(TokenRParen)
		ft.SpanVal = p.span(start)
		return ft

	case TokenIdent:
		nt := &NamedType{Path: []string{p.cur().Literal}}
		p.next()
		for p.is(TokenDot) && p.peek(1).Type == TokenIdent {
			p.next()
			nt.Path = append(nt.Path, p.cur().Literal)
			p.next()
		}
		nt.SpanVal = p.span(start)
		return nt
	}
	p.failf("expected type, got %s", describe(p.cur()))
	return nil
}

// looksLikeVarDecl reports whether the tokens at the cursor start a typed
// variable declaration such as `[]int a = ...` or `Foo.Bar b;`.
func (p *Parser) looksLikeVarDecl() bool {
	switch p.cur().Type {
	case TokenIdent, TokenLBracket, TokenFunc, TokenCoro:
	default:
		return false
	}
	save := p.p
	defer func() { p.p = save }()
	if !p.try(func() { p.parseType() }) {
		return false
	}
	if !p.is(TokenIdent) {
		return false
	}
	switch p.peek(1).Type {
	case TokenAssign, TokenSemicolon, TokenComma:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) parseBlock() *BlockStmt {
	start := p.cur().Pos
	p.expect(TokenLBrace)
	b := &BlockStmt{}
	for !p.is(TokenRBrace) && !p.is(TokenEOF) {
		p.guard(func() {
			b.Stmts = append(b.Stmts, p.parseStmt())
		})
	}
	p.expect(TokenRBrace)
	b.SpanVal = p.span(start)
	return b
}

func (p *Parser) parseStmt() Stmt {
	start := p.cur().Pos
	switch p.cur().Type {
	case TokenLBrace:
		return p.parseBlock()
	case TokenVar:
		return p.parseVarDecl(start, false, true)
	case TokenReturn:
		p.next()
		rs := &ReturnStmt{}
		if !p.is(TokenSemicolon) {
			rs.Values = append(rs.Values, p.parseExpr())
			for p.accept(TokenComma) {
				rs.Values = append(rs.Values, p.parseExpr())
			}
		}
		p.expect(TokenSemicolon)
		rs.SpanVal = p.span(start)
		return rs
	case TokenBreak:
		p.next()
		p.expect(TokenSemicolon)
		return &BreakStmt{SpanVal: p.span(start)}
	case TokenContinue:
		p.next()
		p.expect(TokenSemicolon)
		return &ContinueStmt{SpanVal: p.span(start)}
	case TokenIf:
		return p.parseIf()
	case TokenWhile:
		p.next()
		ws := &WhileStmt{Cond: p.parseParenCond()}
		ws.Body = p.parseBlock()
		ws.SpanVal = p.span(start)
		return ws
	case TokenDo:
		p.next()
		ds := &DoWhileStmt{Body: p.parseBlock()}
		p.expect(TokenWhile)
		ds.Cond = p.parseParenCond()
		p.expect(TokenSemicolon)
		ds.SpanVal = p.span(start)
		return ds
	case TokenFor:
		return p.parseFor()
	case TokenYield:
		p.next()
		ys := &YieldStmt{}
		switch {
		case p.is(TokenSemicolon):
		case p.accept(TokenWhile):
			ys.While = p.parseParenCond()
		default:
			ys.Call = p.parseExpr()
		}
		p.expect(TokenSemicolon)
		ys.SpanVal = p.span(start)
		return ys
	case TokenSeq, TokenParal, TokenParalAll, TokenDefer:
		kind := map[TokenType]BlockKind{
			TokenSeq:      BlockSeq,
			TokenParal:    BlockParal,
			TokenParalAll: BlockParalAll,
			TokenDefer:    BlockDefer,
		}[p.cur().Type]
		p.next()
		body := p.parseBlock()
		return &KeywordBlockStmt{SpanVal: p.span(start), Kind: kind, Body: body}
	}

	s := p.parseSimpleStmt()
	p.expect(TokenSemicolon)
	return s
}

func (p *Parser) parseParenCond() Expr {
	p.expect(TokenLParen)
	x := p.parseExpr()
	p.expect(TokenRParen)
	return x
}

func (p *Parser) parseIf() *IfStmt {
	start := p.cur().Pos
	p.expect(TokenIf)
	is := &IfStmt{Cond: p.parseParenCond()}
	is.Then = p.parseBlock()
	if p.accept(TokenElse) {
		if p.is(TokenIf) {
			is.Else = p.parseIf()
		} else {
			is.Else = p.parseBlock()
		}
	}
	is.SpanVal = p.span(start)
	return is
}

func (p *Parser) parseFor() *ForStmt {
	start := p.cur().Pos
	p.expect(TokenFor)
	p.expect(TokenLParen)
	fs := &ForStmt{}
	if !p.is(TokenSemicolon) {
		fs.Init = p.parseSimpleStmt()
	}
	p.expect(TokenSemicolon)
	if !p.is(TokenSemicolon) {
		fs.Cond = p.parseExpr()
	}
	p.expect(TokenSemicolon)
	if !p.is(TokenRParen) {
		fs.Post = p.parseSimpleStmt()
	}
	p.expect(TokenRParen)
	fs.Body = p.parseBlock()
	fs.SpanVal = p.span(start)
	return fs
}

var assignOps = map[TokenType]bool{
	TokenAssign:      true,
	TokenPlusAssign:  true,
	TokenMinusAssign: true,
	TokenMulAssign:   true,
	TokenDivAssign:   true,
}

// parseSimpleStmt parses a declaration, assignment or expression statement
// without its terminating semicolon.
func (p *Parser) parseSimpleStmt() Stmt {
	start := p.cur().Pos
	if p.is(TokenVar) || p.looksLikeVarDecl() {
		return p.parseVarDecl(start, false, false)
	}

	targets := []Expr{p.parseExpr()}
	for p.accept(TokenComma) {
		targets = append(targets, p.parseExpr())
	}
	if op := p.cur().Type; assignOps[op] {
		p.next()
		value := p.parseExpr()
		if len(targets) > 1 && op != TokenAssign {
			p.failf("compound assignment needs a single target")
		}
		return &AssignStmt{SpanVal: p.span(start), Targets: targets, Op: op, Value: value}
	}
	if len(targets) > 1 {
		p.failf("expected '=', got %s", describe(p.cur()))
	}
	return &ExprStmt{SpanVal: p.span(start), X: targets[0]}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// ParseExpression parses a single expression.
func (p *Parser) ParseExpression() Expr {
	var x Expr
	p.guard(func() { x = p.parseExpr() })
	return x
}

func (p *Parser) parseExpr() Expr {
	return p.parseBinary(0)
}

// binaryPrec gives operator precedence; higher binds tighter.
var binaryPrec = map[TokenType]int{
	TokenOrOr:    1,
	TokenAndAnd:  2,
	TokenEq:      3,
	TokenNe:      3,
	TokenLt:      4,
	TokenLe:      4,
	TokenGt:      4,
	TokenGe:      4,
	TokenIs:      4,
	TokenAs:      4,
	TokenPlus:    5,
	TokenMinus:   5,
	TokenStar:    6,
	TokenSlash:   6,
	TokenPercent: 6,
}

func (p *Parser) parseBinary(minPrec int) Expr {
	x := p.parseUnary()
	for {
		op := p.cur().Type
		prec, ok := binaryPrec[op]
		if !ok || prec <= minPrec {
			return x
		}
		start := x.Span().Start
		p.next()
		switch op {
		case TokenIs:
			t := p.parseType()
			x = &IsExpr{SpanVal: p.span(start), X: x, Type: t}
		case TokenAs:
			t := p.parseType()
			x = &AsExpr{SpanVal: p.span(start), X: x, Type: t}
		default:
			y := p.parseBinary(prec)
			x = &BinaryExpr{SpanVal: p.span(start), Op: op, X: x, Y: y}
		}
	}
}

// castFollow lists tokens that may start the operand of a C-style cast.
var castFollow = map[TokenType]bool{
	TokenIdent:  true,
	TokenInt:    true,
	TokenFloat:  true,
	TokenString: true,
	TokenTrue:   true,
	TokenFalse:  true,
	TokenNull:   true,
	TokenThis:   true,
	TokenBase:   true,
	TokenNew:    true,
}

func (p *Parser) parseUnary() Expr {
	start := p.cur().Pos
	switch p.cur().Type {
	case TokenMinus, TokenNot:
		op := p.cur().Type
		p.next()
		x := p.parseUnary()
		return &UnaryExpr{SpanVal: p.span(start), Op: op, X: x}
	case TokenLParen:
		if t := p.tryCastPrefix(); t != nil {
			x := p.parseUnary()
			return &CastExpr{SpanVal: p.span(start), Type: t, X: x}
		}
	}
	return p.parsePostfix()
}

// tryCastPrefix consumes `(T)` when it is followed by a cast operand.
func (p *Parser) tryCastPrefix() TypeExpr {
	save := p.p
	var t TypeExpr
	ok := p.try(func() {
		p.expect(TokenLParen)
		t = p.parseType()
		p.expect(TokenRParen)
	})
	if ok && castFollow[p.cur().Type] {
		return t
	}
	p.p = save
	return nil
}

func (p *Parser) parsePostfix() Expr {
	start := p.cur().Pos
	root := p.parsePrimary()

	switch root.(type) {
	case *Ident, *ThisExpr, *BaseExpr, *ParenExpr, *FuncLit:
	default:
		return root
	}

	var items []ChainItem
	for {
		istart := p.cur().Pos
		switch p.cur().Type {
		case TokenLParen:
			args := p.parseArgs()
			items = append(items, &CallItem{SpanVal: p.span(istart), Args: args})
		case TokenDot:
			p.next()
			name := p.expect(TokenIdent).Literal
			items = append(items, &MemberItem{SpanVal: p.span(istart), Name: name})
		case TokenLBracket:
			p.next()
			idx := p.parseExpr()
			p.expect(TokenRBracket)
			items = append(items, &IndexItem{SpanVal: p.span(istart), Index: idx})
		default:
			switch root.(type) {
			case *ParenExpr, *FuncLit:
				if len(items) == 0 {
					return root
				}
			}
			return &ChainExpr{SpanVal: p.span(start), Root: root, Items: items}
		}
	}
}

func (p *Parser) parseArgs() []*Arg {
	p.expect(TokenLParen)
	var args []*Arg
	for !p.is(TokenRParen) {
		start := p.cur().Pos
		arg := &Arg{}
		arg.Ref = p.accept(TokenRef)
		if p.is(TokenIdent) && p.peek(1).Type == TokenColon {
			arg.Name = p.cur().Literal
			p.next()
			p.next()
		}
		arg.Value = p.parseExpr()
		arg.SpanVal = p.span(start)
		args = append(args, arg)
		if !p.accept(TokenComma) {
			break
		}
	}
	p.expect(TokenRParen)
	return args
}

func (p *Parser) parsePrimary() Expr {
	start := p.cur().Pos
	tok := p.cur()
	switch tok.Type {
	case TokenInt:
		return p.parseIntLiteral()
	case TokenFloat:
		p.next()
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.p--
			p.failf("invalid float literal %s", tok.Literal)
		}
		return &FloatLit{SpanVal: p.span(start), Value: v}
	case TokenString:
		p.next()
		return &StringLit{SpanVal: p.span(start), Value: tok.Literal}
	case TokenTrue, TokenFalse:
		p.next()
		return &BoolLit{SpanVal: p.span(start), Value: tok.Type == TokenTrue}
	case TokenNull:
		p.next()
		return &NullLit{SpanVal: p.span(start)}
	case TokenIdent:
		p.next()
		return &Ident{SpanVal: p.span(start), Name: tok.Literal}
	case TokenThis:
		p.next()
		return &ThisExpr{SpanVal: p.span(start)}
	case TokenBase:
		p.next()
		return &BaseExpr{SpanVal: p.span(start)}
	case TokenLParen:
		p.next()
		x := p.parseExpr()
		p.expect(TokenRParen)
		return &ParenExpr{SpanVal: p.span(start), X: x}
	case TokenCoro, TokenFunc:
		return p.parseFuncLit()
	case TokenNew:
		p.next()
		ne := &NewExpr{Type: p.parseType()}
		if p.accept(TokenLBrace) {
			for !p.is(TokenRBrace) {
				istart := p.cur().Pos
				name := p.expect(TokenIdent).Literal
				p.expect(TokenColon)
				val := p.parseExpr()
				ne.Inits = append(ne.Inits, &FieldInit{SpanVal: p.span(istart), Name: name, Value: val})
				if !p.accept(TokenComma) {
					break
				}
			}
			p.expect(TokenRBrace)
		}
		ne.SpanVal = p.span(start)
		return ne
	case TokenLBracket:
		p.next()
		cl := &CollectionLit{}
		for !p.is(TokenRBracket) {
			cl.Elems = append(cl.Elems, p.parseExpr())
			if !p.accept(TokenComma) {
				break
			}
		}
		p.expect(TokenRBracket)
		cl.SpanVal = p.span(start)
		return cl
	}
	p.failf("unexpected %s", describe(tok))
	return nil
}

func (p *Parser) parseIntLiteral() *IntLit {
	tok := p.expect(TokenInt)
	v, err := strconv.ParseInt(tok.Literal, 0, 64)
	if err != nil {
		p.p--
		p.failf("invalid integer literal %s", tok.Literal)
	}
	return &IntLit{SpanVal: Span{tok.Pos, tok.End}, Value: v}
}

func (p *Parser) parseFuncLit() *FuncLit {
	start := p.cur().Pos
	fl := &FuncLit{Coro: p.accept(TokenCoro)}
	p.expect(TokenFunc)
	if !p.is(TokenLParen) {
		fl.Returns = append(fl.Returns, p.parseType())
		for p.accept(TokenComma) {
			fl.Returns = append(fl.Returns, p.parseType())
		}
	}
	fl.Params = p.parseParams()
	fl.Body = p.parseBlock()
	fl.SpanVal = p.span(start)
	return fl
}

// ParseType parses a standalone type such as `[string][]int`.
func ParseType(src string) (TypeExpr, error) {
	p := NewParser("", src)
	var t TypeExpr
	p.guard(func() {
		t = p.parseType()
		if !p.is(TokenEOF) {
			p.failf("unexpected %s after type", describe(p.cur()))
		}
	})
	if p.diags.HasErrors() {
		return nil, p.diags
	}
	return t, nil
}
