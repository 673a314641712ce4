package analyzer

import (
	"github.com/chazu/loom/ast"
	"github.com/chazu/loom/types"
)

// ---------------------------------------------------------------------------
// Namespace scope chain
// ---------------------------------------------------------------------------

// nsScope is the scope of a declaration nested in `namespace a.b { }`.
// Lookups see the merged view of the namespace across every import, then
// fall back to the enclosing namespace.
type nsScope struct {
	root   *types.Namespace
	own    *types.Namespace
	path   []string
	parent *nsScope
}

func newRootScope(root *types.Namespace) *nsScope {
	return &nsScope{root: root, own: root}
}

func (s *nsScope) nested(own *types.Namespace, segs []string) *nsScope {
	path := make([]string, 0, len(s.path)+len(segs))
	path = append(path, s.path...)
	path = append(path, segs...)
	return &nsScope{root: s.root, own: own, path: path, parent: s}
}

// view is computed on demand because imports are linked after outline.
func (s *nsScope) view() *types.Namespace {
	if len(s.path) == 0 {
		return s.root
	}
	if sym, err := types.ResolvePath(s.root, s.path); err == nil {
		if ns, ok := sym.(*types.Namespace); ok {
			return ns
		}
	}
	return s.own
}

func (s *nsScope) Resolve(name string) types.Symbol {
	for cur := s; cur != nil; cur = cur.parent {
		if sym := cur.view().Resolve(name); sym != nil {
			return sym
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Function context
// ---------------------------------------------------------------------------

type frameKind int

const (
	frameLoop frameKind = iota
	frameDefer
)

// funcCtx tracks locals and control flow while analyzing one function,
// lambda or module initializer.
type funcCtx struct {
	scope  types.Scope
	sig    *types.FuncSignature
	class  *types.ClassSymbol // set for methods
	isInit bool

	blocks   []map[string]*types.LocalVar
	nextSlot int
	frames   []frameKind
	hasYield bool

	outer  *funcCtx
	lambda *ast.LambdaDecl
}

func newFuncCtx(scope types.Scope, sig *types.FuncSignature, class *types.ClassSymbol) *funcCtx {
	ctx := &funcCtx{scope: scope, sig: sig, class: class}
	ctx.push()
	if class != nil {
		ctx.declare("this", class)
	}
	return ctx
}

func (c *funcCtx) push() { c.blocks = append(c.blocks, map[string]*types.LocalVar{}) }
func (c *funcCtx) pop()  { c.blocks = c.blocks[:len(c.blocks)-1] }

// declare adds a local in the innermost block.
func (c *funcCtx) declare(name string, typ types.Type) *types.LocalVar {
	v := types.NewLocal(name, typ, c.nextSlot)
	c.nextSlot++
	c.blocks[len(c.blocks)-1][name] = v
	return v
}

// defined reports whether name is declared anywhere in this function.
func (c *funcCtx) defined(name string) bool {
	for i := len(c.blocks) - 1; i >= 0; i-- {
		if _, ok := c.blocks[i][name]; ok {
			return true
		}
	}
	return false
}

// lookup finds a local, capturing it from enclosing functions when the
// current function is a lambda.
func (c *funcCtx) lookup(name string) *types.LocalVar {
	for i := len(c.blocks) - 1; i >= 0; i-- {
		if v, ok := c.blocks[i][name]; ok {
			return v
		}
	}
	if c.outer == nil || c.lambda == nil {
		return nil
	}
	src := c.outer.lookup(name)
	if src == nil {
		return nil
	}
	mode := ast.UpvalRef
	if name == "this" {
		mode = ast.UpvalCopy
	}
	// Captured variables live in the lambda's outermost block.
	v := types.NewLocal(name, src.Type, c.nextSlot)
	v.Ref = src.Ref
	c.nextSlot++
	c.blocks[0][name] = v
	c.lambda.Upvals = append(c.lambda.Upvals, ast.Upval{Name: name, Src: src.Slot, Dst: v.Slot, Mode: mode})
	return v
}

// thisClass returns the class of `this`, looking through lambdas.
func (c *funcCtx) thisClass() *types.ClassSymbol {
	for cur := c; cur != nil; cur = cur.outer {
		if cur.class != nil {
			return cur.class
		}
	}
	return nil
}

func (c *funcCtx) enter(k frameKind) { c.frames = append(c.frames, k) }
func (c *funcCtx) leave()            { c.frames = c.frames[:len(c.frames)-1] }

// loopState reports whether a loop encloses the current statement and
// whether a defer block lies between them.
func (c *funcCtx) loopState() (inLoop, crossesDefer bool) {
	for i := len(c.frames) - 1; i >= 0; i-- {
		switch c.frames[i] {
		case frameLoop:
			return true, crossesDefer
		case frameDefer:
			crossesDefer = true
		}
	}
	return false, crossesDefer
}

func (c *funcCtx) inDefer() bool {
	for _, f := range c.frames {
		if f == frameDefer {
			return true
		}
	}
	return false
}

func (c *funcCtx) isCoro() bool { return c.sig != nil && c.sig.Coro }
