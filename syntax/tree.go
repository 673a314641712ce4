package syntax

import (
	"strings"

	"github.com/chazu/loom/diag"
)

// ---------------------------------------------------------------------------
// Parse tree: the shape the semantic analyzer consumes
// ---------------------------------------------------------------------------

// Pos represents a source location.
type Pos struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Pos
	End   Pos
}

// Range converts the span to a diagnostic range.
func (s Span) Range() diag.Range {
	return diag.Range{
		Start: diag.Pos{Line: s.Start.Line, Column: s.Start.Column},
		End:   diag.Pos{Line: s.End.Line, Column: s.End.Column},
	}
}

// Node is the interface implemented by all parse-tree nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// Decl is a declaration that may appear at file or namespace level.
type Decl interface {
	Node
	decl()
}

// Stmt is a statement inside a function body.
type Stmt interface {
	Node
	stmt()
}

// Expr is an expression.
type Expr interface {
	Node
	expr()
}

// TypeExpr is a type written in source.
type TypeExpr interface {
	Node
	typeExpr()
	String() string
}

// ---------------------------------------------------------------------------
// File and declarations
// ---------------------------------------------------------------------------

// File is the parse tree of one source file.
type File struct {
	Path    string
	Imports []*ImportDecl
	Decls   []Decl
	SpanVal Span
}

func (n *File) Span() Span { return n.SpanVal }
func (n *File) node()      {}

// ImportDecl represents `import "path";`.
type ImportDecl struct {
	SpanVal Span
	Path    string
}

func (n *ImportDecl) Span() Span { return n.SpanVal }
func (n *ImportDecl) node()      {}

// NamespaceDecl represents `namespace a.b { ... }`.
type NamespaceDecl struct {
	SpanVal Span
	Name    []string
	Decls   []Decl
}

func (n *NamespaceDecl) Span() Span { return n.SpanVal }
func (n *NamespaceDecl) node()      {}
func (n *NamespaceDecl) decl()      {}

// Param is one function parameter.
type Param struct {
	SpanVal Span
	Ref     bool
	Type    TypeExpr
	Name    string
	Default Expr // nil when required
}

func (n *Param) Span() Span { return n.SpanVal }
func (n *Param) node()      {}

// FuncDecl is a function, method or interface method signature.
// Body is nil for interface methods.
type FuncDecl struct {
	SpanVal  Span
	Static   bool
	Coro     bool
	Virtual  bool
	Override bool
	Name     string
	Returns  []TypeExpr // empty means void
	Params   []*Param
	Body     *BlockStmt
}

func (n *FuncDecl) Span() Span { return n.SpanVal }
func (n *FuncDecl) node()      {}
func (n *FuncDecl) decl()      {}

// FieldDecl is a class field.
type FieldDecl struct {
	SpanVal Span
	Type    TypeExpr
	Name    string
}

func (n *FieldDecl) Span() Span { return n.SpanVal }
func (n *FieldDecl) node()      {}

// ClassDecl represents a class with optional superclass and interfaces.
type ClassDecl struct {
	SpanVal Span
	Static  bool
	Name    string
	Bases   []TypeExpr
	Fields  []*FieldDecl
	Methods []*FuncDecl
}

func (n *ClassDecl) Span() Span { return n.SpanVal }
func (n *ClassDecl) node()      {}
func (n *ClassDecl) decl()      {}

// InterfaceDecl represents an interface.
type InterfaceDecl struct {
	SpanVal Span
	Name    string
	Bases   []TypeExpr
	Methods []*FuncDecl
}

func (n *InterfaceDecl) Span() Span { return n.SpanVal }
func (n *InterfaceDecl) node()      {}
func (n *InterfaceDecl) decl()      {}

// EnumItem is one `Name = value` entry.
type EnumItem struct {
	SpanVal Span
	Name    string
	Value   int64
}

// EnumDecl represents an enum.
type EnumDecl struct {
	SpanVal Span
	Name    string
	Items   []*EnumItem
}

func (n *EnumDecl) Span() Span { return n.SpanVal }
func (n *EnumDecl) node()      {}
func (n *EnumDecl) decl()      {}

// VarDecl declares one or more variables. A nil entry in Types means the
// variable is declared with `var` and its type is inferred.
// Module-level declarations always have exactly one name.
type VarDecl struct {
	SpanVal Span
	Static  bool
	Names   []string
	Types   []TypeExpr
	Init    Expr
}

func (n *VarDecl) Span() Span { return n.SpanVal }
func (n *VarDecl) node()      {}
func (n *VarDecl) decl()      {}
func (n *VarDecl) stmt()      {}

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// NamedType is a possibly dotted type name.
type NamedType struct {
	SpanVal Span
	Path    []string
}

func (n *NamedType) Span() Span     { return n.SpanVal }
func (n *NamedType) node()          {}
func (n *NamedType) typeExpr()      {}
func (n *NamedType) String() string { return strings.Join(n.Path, ".") }

// ArrayTypeExpr is `[]Elem`.
type ArrayTypeExpr struct {
	SpanVal Span
	Elem    TypeExpr
}

func (n *ArrayTypeExpr) Span() Span     { return n.SpanVal }
func (n *ArrayTypeExpr) node()          {}
func (n *ArrayTypeExpr) typeExpr()      {}
func (n *ArrayTypeExpr) String() string { return "[]" + n.Elem.String() }

// MapTypeExpr is `[Key]Value`.
type MapTypeExpr struct {
	SpanVal Span
	Key     TypeExpr
	Value   TypeExpr
}

func (n *MapTypeExpr) Span() Span { return n.SpanVal }
func (n *MapTypeExpr) node()      {}
func (n *MapTypeExpr) typeExpr()  {}
func (n *MapTypeExpr) String() string {
	return "[" + n.Key.String() + "]" + n.Value.String()
}

// FuncTypeExpr is `func Ret(Params)`.
type FuncTypeExpr struct {
	SpanVal Span
	Coro    bool
	Returns []TypeExpr
	Params  []TypeExpr
	Refs    []bool
}

func (n *FuncTypeExpr) Span() Span { return n.SpanVal }
func (n *FuncTypeExpr) node()      {}
func (n *FuncTypeExpr) typeExpr()  {}
func (n *FuncTypeExpr) String() string {
	var b strings.Builder
	if n.Coro {
		b.WriteString("coro ")
	}
	b.WriteString("func ")
	for i, r := range n.Returns {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(r.String())
	}
	b.WriteString("(")
	for i, p := range n.Params {
		if i > 0 {
			b.WriteString(",")
		}
		if n.Refs[i] {
			b.WriteString("ref ")
		}
		b.WriteString(p.String())
	}
	b.WriteString(")")
	return b.String()
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// BlockStmt is `{ stmts }`.
type BlockStmt struct {
	SpanVal Span
	Stmts   []Stmt
}

func (n *BlockStmt) Span() Span { return n.SpanVal }
func (n *BlockStmt) node()      {}
func (n *BlockStmt) stmt()      {}

// ExprStmt evaluates an expression for its side effects.
type ExprStmt struct {
	SpanVal Span
	X       Expr
}

func (n *ExprStmt) Span() Span { return n.SpanVal }
func (n *ExprStmt) node()      {}
func (n *ExprStmt) stmt()      {}

// AssignStmt is `targets op value`. Op is one of = += -= *= /=.
type AssignStmt struct {
	SpanVal Span
	Targets []Expr
	Op      TokenType
	Value   Expr
}

func (n *AssignStmt) Span() Span { return n.SpanVal }
func (n *AssignStmt) node()      {}
func (n *AssignStmt) stmt()      {}

// ReturnStmt is `return [values]`.
type ReturnStmt struct {
	SpanVal Span
	Values  []Expr
}

func (n *ReturnStmt) Span() Span { return n.SpanVal }
func (n *ReturnStmt) node()      {}
func (n *ReturnStmt) stmt()      {}

// BreakStmt is `break`.
type BreakStmt struct{ SpanVal Span }

func (n *BreakStmt) Span() Span { return n.SpanVal }
func (n *BreakStmt) node()      {}
func (n *BreakStmt) stmt()      {}

// ContinueStmt is `continue`.
type ContinueStmt struct{ SpanVal Span }

func (n *ContinueStmt) Span() Span { return n.SpanVal }
func (n *ContinueStmt) node()      {}
func (n *ContinueStmt) stmt()      {}

// IfStmt is `if (cond) then [else ...]`. Else is nil, an *IfStmt or a
// *BlockStmt.
type IfStmt struct {
	SpanVal Span
	Cond    Expr
	Then    *BlockStmt
	Else    Stmt
}

func (n *IfStmt) Span() Span { return n.SpanVal }
func (n *IfStmt) node()      {}
func (n *IfStmt) stmt()      {}

// WhileStmt is `while (cond) body`.
type WhileStmt struct {
	SpanVal Span
	Cond    Expr
	Body    *BlockStmt
}

func (n *WhileStmt) Span() Span { return n.SpanVal }
func (n *WhileStmt) node()      {}
func (n *WhileStmt) stmt()      {}

// DoWhileStmt is `do body while (cond);`.
type DoWhileStmt struct {
	SpanVal Span
	Body    *BlockStmt
	Cond    Expr
}

func (n *DoWhileStmt) Span() Span { return n.SpanVal }
func (n *DoWhileStmt) node()      {}
func (n *DoWhileStmt) stmt()      {}

// ForStmt is `for (init; cond; post) body`. Any clause may be nil.
type ForStmt struct {
	SpanVal Span
	Init    Stmt
	Cond    Expr
	Post    Stmt
	Body    *BlockStmt
}

func (n *ForStmt) Span() Span { return n.SpanVal }
func (n *ForStmt) node()      {}
func (n *ForStmt) stmt()      {}

// YieldStmt is `yield;`, `yield call();` or `yield while (cond);`.
type YieldStmt struct {
	SpanVal Span
	Call    Expr // nil unless yielding a coroutine call
	While   Expr // nil unless `yield while`
}

func (n *YieldStmt) Span() Span { return n.SpanVal }
func (n *YieldStmt) node()      {}
func (n *YieldStmt) stmt()      {}

// BlockKind distinguishes the keyword blocks.
type BlockKind int

const (
	BlockSeq BlockKind = iota
	BlockParal
	BlockParalAll
	BlockDefer
)

// KeywordBlockStmt is `seq {}`, `paral {}`, `paral_all {}` or `defer {}`.
type KeywordBlockStmt struct {
	SpanVal Span
	Kind    BlockKind
	Body    *BlockStmt
}

func (n *KeywordBlockStmt) Span() Span { return n.SpanVal }
func (n *KeywordBlockStmt) node()      {}
func (n *KeywordBlockStmt) stmt()      {}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// IntLit is an integer literal.
type IntLit struct {
	SpanVal Span
	Value   int64
}

func (n *IntLit) Span() Span { return n.SpanVal }
func (n *IntLit) node()      {}
func (n *IntLit) expr()      {}

// FloatLit is a floating-point literal.
type FloatLit struct {
	SpanVal Span
	Value   float64
}

func (n *FloatLit) Span() Span { return n.SpanVal }
func (n *FloatLit) node()      {}
func (n *FloatLit) expr()      {}

// StringLit is a string literal.
type StringLit struct {
	SpanVal Span
	Value   string
}

func (n *StringLit) Span() Span { return n.SpanVal }
func (n *StringLit) node()      {}
func (n *StringLit) expr()      {}

// BoolLit is `true` or `false`.
type BoolLit struct {
	SpanVal Span
	Value   bool
}

func (n *BoolLit) Span() Span { return n.SpanVal }
func (n *BoolLit) node()      {}
func (n *BoolLit) expr()      {}

// NullLit is `null`.
type NullLit struct{ SpanVal Span }

func (n *NullLit) Span() Span { return n.SpanVal }
func (n *NullLit) node()      {}
func (n *NullLit) expr()      {}

// Ident is a bare name.
type Ident struct {
	SpanVal Span
	Name    string
}

func (n *Ident) Span() Span { return n.SpanVal }
func (n *Ident) node()      {}
func (n *Ident) expr()      {}

// ThisExpr is `this`.
type ThisExpr struct{ SpanVal Span }

func (n *ThisExpr) Span() Span { return n.SpanVal }
func (n *ThisExpr) node()      {}
func (n *ThisExpr) expr()      {}

// BaseExpr is `base`, valid only as the root of a member chain.
type BaseExpr struct{ SpanVal Span }

func (n *BaseExpr) Span() Span { return n.SpanVal }
func (n *BaseExpr) node()      {}
func (n *BaseExpr) expr()      {}

// ParenExpr is `(x)`.
type ParenExpr struct {
	SpanVal Span
	X       Expr
}

func (n *ParenExpr) Span() Span { return n.SpanVal }
func (n *ParenExpr) node()      {}
func (n *ParenExpr) expr()      {}

// UnaryExpr is `op x`.
type UnaryExpr struct {
	SpanVal Span
	Op      TokenType
	X       Expr
}

func (n *UnaryExpr) Span() Span { return n.SpanVal }
func (n *UnaryExpr) node()      {}
func (n *UnaryExpr) expr()      {}

// BinaryExpr is `x op y`.
type BinaryExpr struct {
	SpanVal Span
	Op      TokenType
	X       Expr
	Y       Expr
}

func (n *BinaryExpr) Span() Span { return n.SpanVal }
func (n *BinaryExpr) node()      {}
func (n *BinaryExpr) expr()      {}

// Arg is one call argument.
type Arg struct {
	SpanVal Span
	Ref     bool
	Name    string // set for named arguments
	Value   Expr
}

// ChainItem is one postfix step of a chain.
type ChainItem interface {
	Node
	chainItem()
}

// CallItem is `(args)`.
type CallItem struct {
	SpanVal Span
	Args    []*Arg
}

func (n *CallItem) Span() Span { return n.SpanVal }
func (n *CallItem) node()      {}
func (n *CallItem) chainItem() {}

// MemberItem is `.Name`.
type MemberItem struct {
	SpanVal Span
	Name    string
}

func (n *MemberItem) Span() Span { return n.SpanVal }
func (n *MemberItem) node()      {}
func (n *MemberItem) chainItem() {}

// IndexItem is `[Index]`.
type IndexItem struct {
	SpanVal Span
	Index   Expr
}

func (n *IndexItem) Span() Span { return n.SpanVal }
func (n *IndexItem) node()      {}
func (n *IndexItem) chainItem() {}

// ChainExpr is a root followed by postfix items. Root is an *Ident,
// *ThisExpr, *BaseExpr, *ParenExpr or *FuncLit.
type ChainExpr struct {
	SpanVal Span
	Root    Expr
	Items   []ChainItem
}

func (n *ChainExpr) Span() Span { return n.SpanVal }
func (n *ChainExpr) node()      {}
func (n *ChainExpr) expr()      {}

// FuncLit is a lambda.
type FuncLit struct {
	SpanVal Span
	Coro    bool
	Returns []TypeExpr
	Params  []*Param
	Body    *BlockStmt
}

func (n *FuncLit) Span() Span { return n.SpanVal }
func (n *FuncLit) node()      {}
func (n *FuncLit) expr()      {}

// CastExpr is `(T)x`.
type CastExpr struct {
	SpanVal Span
	Type    TypeExpr
	X       Expr
}

func (n *CastExpr) Span() Span { return n.SpanVal }
func (n *CastExpr) node()      {}
func (n *CastExpr) expr()      {}

// AsExpr is `x as T`.
type AsExpr struct {
	SpanVal Span
	X       Expr
	Type    TypeExpr
}

func (n *AsExpr) Span() Span { return n.SpanVal }
func (n *AsExpr) node()      {}
func (n *AsExpr) expr()      {}

// IsExpr is `x is T`.
type IsExpr struct {
	SpanVal Span
	X       Expr
	Type    TypeExpr
}

func (n *IsExpr) Span() Span { return n.SpanVal }
func (n *IsExpr) node()      {}
func (n *IsExpr) expr()      {}

// FieldInit is `name: value` inside a constructor initializer.
type FieldInit struct {
	SpanVal Span
	Name    string
	Value   Expr
}

// NewExpr is `new T` with an optional `{ field: value }` initializer.
type NewExpr struct {
	SpanVal Span
	Type    TypeExpr
	Inits   []*FieldInit
}

func (n *NewExpr) Span() Span { return n.SpanVal }
func (n *NewExpr) node()      {}
func (n *NewExpr) expr()      {}

// CollectionLit is `[a, b, c]`. Map literals are collections of
// two-element collections.
type CollectionLit struct {
	SpanVal Span
	Elems   []Expr
}

func (n *CollectionLit) Span() Span { return n.SpanVal }
func (n *CollectionLit) node()      {}
func (n *CollectionLit) expr()      {}
