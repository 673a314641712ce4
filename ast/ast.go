// Package ast defines the typed tree the analyzer produces and the
// bytecode compiler consumes. Nodes form a tree: every node owns an
// ordered list of children and nothing points back up.
package ast

import (
	"github.com/chazu/loom/types"
)

// ---------------------------------------------------------------------------
// AST: typed intermediate tree
// ---------------------------------------------------------------------------

// Node is implemented by every AST node. The set of implementations is
// closed; visitors switch over the concrete types.
type Node interface {
	Line() int
	Children() []Node
	Add(child Node)
	node() // marker method
}

// Base carries the source line and the children of a node.
type Base struct {
	Ln   int
	Kids []Node
}

func (b *Base) Line() int        { return b.Ln }
func (b *Base) Children() []Node { return b.Kids }
func (b *Base) Add(child Node)   { b.Kids = append(b.Kids, child) }

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

// Module is the root of one file's tree. Its children are imports,
// functions, classes and global variable declarations in source order.
type Module struct {
	Base
	Name string
}

// Import pulls another module in at init time.
type Import struct {
	Base
	Module string
}

// FuncDecl is a function or method. It always has exactly two children:
// a *Params node and a *Block of kind BlockFuncBody.
type FuncDecl struct {
	Base
	Symbol *types.FuncSymbol
	Name   string // qualified name, Class.Method for methods
	// LocalsNum is the number of frame slots, parameters included.
	LocalsNum int
}

// Params returns the parameter list slot.
func (f *FuncDecl) Params() *Params { return f.Kids[0].(*Params) }

// Body returns the function body slot.
func (f *FuncDecl) Body() *Block { return f.Kids[1].(*Block) }

// UpvalMode says how a lambda captures a variable.
type UpvalMode uint8

const (
	UpvalCopy UpvalMode = iota
	UpvalRef
)

// Upval is one captured variable.
type Upval struct {
	Name string
	Src  int // slot in the enclosing frame
	Dst  int // slot in the lambda frame
	Mode UpvalMode
}

// LambdaDecl is an anonymous function. Like FuncDecl it has a *Params
// and a *Block child.
type LambdaDecl struct {
	Base
	Sig       *types.FuncSignature
	LocalsNum int
	Upvals    []Upval
}

// Params returns the parameter list slot.
func (l *LambdaDecl) Params() *Params { return l.Kids[0].(*Params) }

// Body returns the function body slot.
func (l *LambdaDecl) Body() *Block { return l.Kids[1].(*Block) }

// Params holds one *VarDecl per parameter. A parameter with a default
// value has that expression as its VarDecl's only child.
type Params struct {
	Base
}

// ClassDecl is a class; its children are *FuncDecl methods.
type ClassDecl struct {
	Base
	Symbol *types.ClassSymbol
}

// VarDecl declares a local, a parameter or a global. Its optional child is
// the initializer (or a parameter's default value).
type VarDecl struct {
	Base
	Name   string
	Symbol types.Symbol // *types.LocalVar or *types.GlobalVar
	Type   types.Type
	IsRef  bool
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// BlockKind distinguishes block semantics.
type BlockKind uint8

const (
	BlockSeq BlockKind = iota
	BlockIf
	BlockWhile
	BlockDoWhile
	BlockFuncBody
	BlockParal
	BlockParalAll
	BlockDefer
)

var blockKindNames = [...]string{"seq", "if", "while", "do_while", "func", "paral", "paral_all", "defer"}

func (k BlockKind) String() string {
	if int(k) < len(blockKindNames) {
		return blockKindNames[k]
	}
	return "block?"
}

// IsLoop reports whether k is a loop.
func (k BlockKind) IsLoop() bool { return k == BlockWhile || k == BlockDoWhile }

// Block is a typed block.
//
//   - BlockIf children are cond/body pairs, optionally followed by one
//     more body for the final else.
//   - BlockWhile children are [cond, body] or [cond, body, post].
//   - BlockDoWhile children are [body, cond].
//   - Every other kind holds statements.
type Block struct {
	Base
	Kind BlockKind
}

// Return returns from the enclosing function.
type Return struct {
	Base
	Num int // number of returned values
}

// Break leaves the innermost loop.
type Break struct{ Base }

// Continue jumps to the innermost loop's continuation point.
type Continue struct{ Base }

// Yield suspends the running coroutine once.
type Yield struct{ Base }

// Discard evaluates its child and drops Num values from the stack.
type Discard struct {
	Base
	Num int
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// LiteralKind distinguishes literal values.
type LiteralKind uint8

const (
	LitInt LiteralKind = iota
	LitFloat
	LitString
	LitBool
	LitNull
)

// Literal is a constant value.
type Literal struct {
	Base
	Kind  LiteralKind
	Int   int64
	Float float64
	Str   string
	Type  types.Type
}

// UnaryKind is a unary operator.
type UnaryKind uint8

const (
	OpNeg UnaryKind = iota
	OpNot
)

func (k UnaryKind) String() string {
	if k == OpNeg {
		return "-"
	}
	return "!"
}

// UnaryOp applies an operator to its single child.
type UnaryOp struct {
	Base
	Op   UnaryKind
	Type types.Type
}

// BinaryKind is a binary operator.
type BinaryKind uint8

const (
	OpAdd BinaryKind = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe
	OpAnd
	OpOr
)

var binaryNames = [...]string{"+", "-", "*", "/", "%", "<", "<=", ">", ">=", "==", "!=", "&&", "||"}

func (k BinaryKind) String() string {
	if int(k) < len(binaryNames) {
		return binaryNames[k]
	}
	return "?"
}

// BinaryOp applies an operator to its two children. && and || short
// circuit.
type BinaryOp struct {
	Base
	Op   BinaryKind
	Type types.Type
}

// Chain is a resolved postfix chain: its children are emitted in order and
// the value of the chain is the value of the last one.
type Chain struct {
	Base
	Type types.Type
}

// CastKind distinguishes the three type tests.
type CastKind uint8

const (
	CastExplicit CastKind = iota // (T)x
	CastAs                       // x as T, null on mismatch
	CastIs                       // x is T, bool
)

// TypeCast converts or tests its single child against Type.
type TypeCast struct {
	Base
	Kind CastKind
	Type types.Type
}

// New allocates an instance of Type. Its children are field initializers:
// Call nodes of kind InitField.
type New struct {
	Base
	Type types.Type
}

// CollectionLit builds an array or map literal. Its children are
// *CollectionAppend nodes.
type CollectionLit struct {
	Base
	Type types.Type // *types.ArrayType or *types.MapType
}

// CollectionAppend adds one element ([value]) or entry ([key, value]) to
// the collection under construction.
type CollectionAppend struct {
	Base
	IsMap bool
}

// marker methods
func (*Module) node()           {}
func (*Import) node()           {}
func (*FuncDecl) node()         {}
func (*LambdaDecl) node()       {}
func (*Params) node()           {}
func (*ClassDecl) node()        {}
func (*VarDecl) node()          {}
func (*Block) node()            {}
func (*Return) node()           {}
func (*Break) node()            {}
func (*Continue) node()         {}
func (*Yield) node()            {}
func (*Discard) node()          {}
func (*Literal) node()          {}
func (*UnaryOp) node()          {}
func (*BinaryOp) node()         {}
func (*Chain) node()            {}
func (*Call) node()             {}
func (*TypeCast) node()         {}
func (*New) node()              {}
func (*CollectionLit) node()    {}
func (*CollectionAppend) node() {}
