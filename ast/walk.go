package ast

import (
	"fmt"
	"strings"
)

// Walk visits n and its descendants depth-first, parents before children.
// Returning false from fn skips the node's children.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children() {
		Walk(c, fn)
	}
}

// Calls returns every Call node under n in emission order.
func Calls(n Node) []*Call {
	var out []*Call
	Walk(n, func(n Node) bool {
		if c, ok := n.(*Call); ok {
			out = append(out, c)
		}
		return true
	})
	return out
}

// Dump renders n as an indented tree, one node per line.
func Dump(n Node) string {
	var b strings.Builder
	dump(&b, n, 0)
	return b.String()
}

func dump(b *strings.Builder, n Node, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(Describe(n))
	b.WriteByte('\n')
	for _, c := range n.Children() {
		dump(b, c, depth+1)
	}
}

// Describe renders one node without its children.
func Describe(n Node) string {
	switch v := n.(type) {
	case *Module:
		return "module " + v.Name
	case *Import:
		return "import " + v.Module
	case *FuncDecl:
		return fmt.Sprintf("func %s locals=%d", v.Name, v.LocalsNum)
	case *LambdaDecl:
		s := fmt.Sprintf("lambda locals=%d", v.LocalsNum)
		for _, u := range v.Upvals {
			s += fmt.Sprintf(" up(%s %d->%d)", u.Name, u.Src, u.Dst)
		}
		return s
	case *Params:
		return "params"
	case *ClassDecl:
		return "class " + v.Symbol.TypeName()
	case *VarDecl:
		ref := ""
		if v.IsRef {
			ref = "ref "
		}
		return fmt.Sprintf("var %s%s %s", ref, typeName(v.Type), v.Name)
	case *Block:
		return "block " + v.Kind.String()
	case *Return:
		return fmt.Sprintf("return %d", v.Num)
	case *Break:
		return "break"
	case *Continue:
		return "continue"
	case *Yield:
		return "yield"
	case *Discard:
		return fmt.Sprintf("discard %d", v.Num)
	case *Literal:
		switch v.Kind {
		case LitInt:
			return fmt.Sprintf("lit %d", v.Int)
		case LitFloat:
			return fmt.Sprintf("lit %g", v.Float)
		case LitString:
			return fmt.Sprintf("lit %q", v.Str)
		case LitBool:
			return fmt.Sprintf("lit %v", v.Int != 0)
		}
		return "lit null"
	case *UnaryOp:
		return "unary " + v.Op.String()
	case *BinaryOp:
		return "binary " + v.Op.String()
	case *Chain:
		return "chain " + typeName(v.Type)
	case *Call:
		return fmt.Sprintf("call %s %s args=%d", v.Kind, v.Name, v.Args.Count())
	case *TypeCast:
		return fmt.Sprintf("cast %d %s", v.Kind, typeName(v.Type))
	case *New:
		return "new " + typeName(v.Type)
	case *CollectionLit:
		return "collection " + typeName(v.Type)
	case *CollectionAppend:
		return "append"
	}
	return fmt.Sprintf("%T", n)
}

func typeName(t interface{ TypeName() string }) string {
	if t == nil {
		return "void"
	}
	return t.TypeName()
}
