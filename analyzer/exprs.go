package analyzer

import (
	"github.com/chazu/loom/ast"
	"github.com/chazu/loom/syntax"
	"github.com/chazu/loom/types"
)

// expr analyzes x. expect, when set, types collection literals; it is a
// hint and callers still check assignability. A nil type means an error
// was already reported.
func (a *Analyzer) expr(ctx *funcCtx, x syntax.Expr, expect types.Type) (ast.Node, types.Type) {
	base := ast.Base{Ln: line(x)}
	switch x := x.(type) {
	case *syntax.IntLit:
		return &ast.Literal{Base: base, Kind: ast.LitInt, Int: x.Value, Type: types.Int}, types.Int
	case *syntax.FloatLit:
		return &ast.Literal{Base: base, Kind: ast.LitFloat, Float: x.Value, Type: types.Float}, types.Float
	case *syntax.StringLit:
		return &ast.Literal{Base: base, Kind: ast.LitString, Str: x.Value, Type: types.String}, types.String
	case *syntax.BoolLit:
		return boolLit(base.Ln, x.Value), types.Bool
	case *syntax.NullLit:
		return &ast.Literal{Base: base, Kind: ast.LitNull, Type: types.Null}, types.Null

	case *syntax.ParenExpr:
		return a.expr(ctx, x.X, expect)
	case *syntax.ChainExpr:
		return a.chain(ctx, x, chainRead, nil)
	case *syntax.Ident, *syntax.ThisExpr, *syntax.BaseExpr:
		return a.chain(ctx, &syntax.ChainExpr{SpanVal: x.Span(), Root: x}, chainRead, nil)
	case *syntax.FuncLit:
		return a.funcLit(ctx, x)

	case *syntax.UnaryExpr:
		return a.unary(ctx, x)
	case *syntax.BinaryExpr:
		return a.binary(ctx, x)

	case *syntax.CastExpr:
		return a.typeCast(ctx, x, x.X, x.Type, ast.CastExplicit)
	case *syntax.AsExpr:
		return a.typeCast(ctx, x, x.X, x.Type, ast.CastAs)
	case *syntax.IsExpr:
		return a.typeCast(ctx, x, x.X, x.Type, ast.CastIs)

	case *syntax.NewExpr:
		return a.newExpr(ctx, x)
	case *syntax.CollectionLit:
		return a.collection(ctx, x, expect)
	}
	a.errorf(x, "unsupported expression")
	return &ast.Literal{Base: base, Kind: ast.LitNull, Type: types.Null}, nil
}

func (a *Analyzer) unary(ctx *funcCtx, x *syntax.UnaryExpr) (ast.Node, types.Type) {
	node := &ast.UnaryOp{Base: ast.Base{Ln: line(x)}}
	opText := "-"
	node.Op = ast.OpNeg
	if x.Op == syntax.TokenNot {
		opText = "!"
		node.Op = ast.OpNot
	}
	operand, t := a.expr(ctx, x.X, nil)
	node.Add(operand)
	if t == nil {
		return node, nil
	}
	rt, err := types.UnaryResult(opText, t)
	if err != nil {
		a.errorf(x, "%v", err)
		return node, nil
	}
	node.Type = rt
	return node, rt
}

var binaryOps = map[syntax.TokenType]ast.BinaryKind{
	syntax.TokenPlus:    ast.OpAdd,
	syntax.TokenMinus:   ast.OpSub,
	syntax.TokenStar:    ast.OpMul,
	syntax.TokenSlash:   ast.OpDiv,
	syntax.TokenPercent: ast.OpMod,
	syntax.TokenLt:      ast.OpLt,
	syntax.TokenLe:      ast.OpLe,
	syntax.TokenGt:      ast.OpGt,
	syntax.TokenGe:      ast.OpGe,
	syntax.TokenEq:      ast.OpEq,
	syntax.TokenNe:      ast.OpNe,
	syntax.TokenAndAnd:  ast.OpAnd,
	syntax.TokenOrOr:    ast.OpOr,
}

func (a *Analyzer) binary(ctx *funcCtx, x *syntax.BinaryExpr) (ast.Node, types.Type) {
	op, ok := binaryOps[x.Op]
	node := &ast.BinaryOp{Base: ast.Base{Ln: line(x)}, Op: op}
	if !ok {
		a.errorf(x, "unsupported operator '%s'", x.Op)
		return node, nil
	}
	l, lt := a.expr(ctx, x.X, nil)
	r, rt := a.expr(ctx, x.Y, nil)
	node.Add(l)
	node.Add(r)
	if lt == nil || rt == nil {
		return node, nil
	}
	t, err := types.BinaryResult(op.String(), lt, rt)
	if err != nil {
		a.errorf(x, "%v", err)
		return node, nil
	}
	node.Type = t
	return node, t
}

func (a *Analyzer) typeCast(ctx *funcCtx, at syntax.Expr, x syntax.Expr, te syntax.TypeExpr, kind ast.CastKind) (ast.Node, types.Type) {
	node := &ast.TypeCast{Base: ast.Base{Ln: line(at)}, Kind: kind}
	operand, src := a.expr(ctx, x, nil)
	node.Add(operand)
	dst := a.resolveType(ctx.scope, te, false)
	node.Type = dst
	if src == nil || dst == nil {
		return node, nil
	}
	if !types.CastableTo(src, dst) {
		a.errorf(at, "incompatible types for casting: '%s' to '%s'", src.TypeName(), dst.TypeName())
	}
	switch kind {
	case ast.CastIs:
		return node, types.Bool
	case ast.CastAs:
		if !types.IsReference(dst) {
			a.errorf(te, "'as' needs a reference type, got '%s'", dst.TypeName())
		}
	}
	return node, dst
}

func (a *Analyzer) newExpr(ctx *funcCtx, x *syntax.NewExpr) (ast.Node, types.Type) {
	t := a.resolveType(ctx.scope, x.Type, false)
	node := &ast.New{Base: ast.Base{Ln: line(x)}, Type: t}
	switch tt := t.(type) {
	case nil:
		return node, nil
	case *types.ClassSymbol:
		seen := map[string]bool{}
		for _, init := range x.Inits {
			field, ok := tt.Resolve(init.Name).(*types.FieldSymbol)
			if !ok {
				a.errorAtSpan(init.SpanVal, "class '%s' has no field '%s'", tt.TypeName(), init.Name)
				continue
			}
			if seen[init.Name] {
				a.errorAtSpan(init.SpanVal, "field '%s' is initialized twice", init.Name)
			}
			seen[init.Name] = true
			value, vt := a.expr(ctx, init.Value, field.Type)
			a.checkAssignable(init.Value, vt, field.Type)
			call := &ast.Call{Base: ast.Base{Ln: line(init.Value)}, Kind: ast.InitField, Name: init.Name, Symbol: field, Type: field.Type}
			call.Add(value)
			node.Add(call)
		}
		return node, t
	case *types.ArrayType, *types.MapType:
		if len(x.Inits) > 0 {
			a.errorf(x, "field initializers need a class type")
		}
		return node, t
	}
	a.errorf(x.Type, "can't create an instance of '%s'", t.TypeName())
	return node, nil
}

func (a *Analyzer) collection(ctx *funcCtx, x *syntax.CollectionLit, expect types.Type) (ast.Node, types.Type) {
	node := &ast.CollectionLit{Base: ast.Base{Ln: line(x)}}
	switch t := expect.(type) {
	case *types.ArrayType:
		node.Type = t
		for _, e := range x.Elems {
			v, vt := a.expr(ctx, e, t.Elem)
			a.checkAssignable(e, vt, t.Elem)
			node.Add(&ast.CollectionAppend{Base: ast.Base{Ln: line(e), Kids: []ast.Node{v}}})
		}
		return node, t

	case *types.MapType:
		node.Type = t
		for _, e := range x.Elems {
			pair, ok := e.(*syntax.CollectionLit)
			if !ok || len(pair.Elems) != 2 {
				a.errorf(e, "map literal entries must be [key, value]")
				continue
			}
			k, kt := a.expr(ctx, pair.Elems[0], t.Key)
			a.checkAssignable(pair.Elems[0], kt, t.Key)
			v, vt := a.expr(ctx, pair.Elems[1], t.Value)
			a.checkAssignable(pair.Elems[1], vt, t.Value)
			node.Add(&ast.CollectionAppend{Base: ast.Base{Ln: line(e), Kids: []ast.Node{k, v}}, IsMap: true})
		}
		return node, t
	}

	// No usable hint: the first element decides the element type.
	var elem types.Type
	for i, e := range x.Elems {
		v, vt := a.expr(ctx, e, elem)
		switch {
		case i == 0 && vt != nil && vt != types.Null && valueCount(vt) == 1:
			elem = vt
		case elem != nil:
			a.checkAssignable(e, vt, elem)
		}
		node.Add(&ast.CollectionAppend{Base: ast.Base{Ln: line(e), Kids: []ast.Node{v}}})
	}
	if elem == nil {
		elem = types.Any
	}
	node.Type = types.NewArray(elem)
	return node, node.Type
}

func (a *Analyzer) funcLit(ctx *funcCtx, x *syntax.FuncLit) (ast.Node, types.Type) {
	sig := a.signature(ctx.scope, x.Coro, x.Returns, x.Params)
	node := &ast.LambdaDecl{Base: ast.Base{Ln: line(x)}, Sig: sig}
	inner := &funcCtx{scope: ctx.scope, sig: sig, outer: ctx, lambda: node}
	inner.push()
	params, body := a.frame(inner, x.Params, x.Body)
	node.Add(params)
	node.Add(body)
	node.LocalsNum = inner.nextSlot
	a.checkFrame(inner, x, x.Body, "lambda")
	return node, sig
}
