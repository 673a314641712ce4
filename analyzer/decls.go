package analyzer

import (
	"github.com/chazu/loom/ast"
	"github.com/chazu/loom/syntax"
	"github.com/chazu/loom/types"
)

// pass is one declaration carried from phase to phase. Classes and
// interfaces keep a nested pass per method.
type pass struct {
	scope *nsScope

	fn     *syntax.FuncDecl
	fnSym  *types.FuncSymbol
	fnNode *ast.FuncDecl

	class    *syntax.ClassDecl
	classSym *types.ClassSymbol

	iface    *syntax.InterfaceDecl
	ifaceSym *types.InterfaceSymbol

	global     *syntax.VarDecl
	globalSym  *types.GlobalVar
	globalNode *ast.VarDecl

	members []*pass
}

type importPass struct {
	decl *syntax.ImportDecl
	name string
	ns   *types.Namespace
}

func line(n syntax.Node) int { return n.Span().Start.Line }

// ---------------------------------------------------------------------------
// Outline: declare every top-level symbol
// ---------------------------------------------------------------------------

func (a *Analyzer) outline() {
	a.root.Ln = 1
	a.outlineDecls(newRootScope(a.mod.NS), a.tree.Decls)
}

func (a *Analyzer) outlineDecls(scope *nsScope, decls []syntax.Decl) {
	for _, d := range decls {
		switch d := d.(type) {
		case *syntax.NamespaceDecl:
			a.outlineNamespace(scope, d)
		case *syntax.FuncDecl:
			a.outlineFunc(scope, d)
		case *syntax.ClassDecl:
			a.outlineClass(scope, d)
		case *syntax.InterfaceDecl:
			a.outlineInterface(scope, d)
		case *syntax.EnumDecl:
			a.outlineEnum(scope, d)
		case *syntax.VarDecl:
			a.outlineGlobal(scope, d)
		}
	}
}

func (a *Analyzer) outlineNamespace(scope *nsScope, d *syntax.NamespaceDecl) {
	ns := scope.own
	for _, seg := range d.Name {
		child, err := ns.Child(seg)
		if err != nil {
			a.errorf(d, "%v", err)
			return
		}
		ns = child
	}
	a.outlineDecls(scope.nested(ns, d.Name), d.Decls)
}

func (a *Analyzer) define(scope *nsScope, node syntax.Node, sym types.Symbol) bool {
	if err := scope.own.Define(sym); err != nil {
		a.errorf(node, "%v", err)
		return false
	}
	return true
}

func (a *Analyzer) outlineFunc(scope *nsScope, d *syntax.FuncDecl) {
	if d.Virtual || d.Override {
		a.errorf(d, "only methods can be virtual or override")
	}
	sym := types.NewFunc(d.Name, nil, paramNames(d.Params)...)
	sym.Path = scope.own.Path
	sym.Module = a.mod.Name
	sym.Local = d.Static
	if !a.define(scope, d, sym) {
		return
	}
	node := &ast.FuncDecl{Base: ast.Base{Ln: line(d)}, Symbol: sym, Name: sym.FullName()}
	a.root.Add(node)
	a.passes = append(a.passes, &pass{scope: scope, fn: d, fnSym: sym, fnNode: node})
}

func paramNames(params []*syntax.Param) []string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return names
}

func (a *Analyzer) outlineClass(scope *nsScope, d *syntax.ClassDecl) {
	c := types.NewClass(d.Name)
	c.Path = scope.own.Path
	c.Module = a.mod.Name
	c.Local = d.Static
	if !a.define(scope, d, c) {
		return
	}
	node := &ast.ClassDecl{Base: ast.Base{Ln: line(d)}, Symbol: c}
	a.root.Add(node)
	p := &pass{scope: scope, class: d, classSym: c}

	for _, f := range d.Fields {
		if err := c.Define(types.NewField(f.Name, nil)); err != nil {
			a.errorf(f, "%v", err)
		}
	}
	for _, m := range d.Methods {
		if m.Static {
			a.errorf(m, "static methods are not supported")
		}
		sym := types.NewFunc(m.Name, nil, paramNames(m.Params)...)
		sym.Path = c.TypeName()
		sym.Module = a.mod.Name
		sym.Virtual = m.Virtual
		sym.Override = m.Override
		if err := c.Define(sym); err != nil {
			a.errorf(m, "%v", err)
			continue
		}
		fn := &ast.FuncDecl{Base: ast.Base{Ln: line(m)}, Symbol: sym, Name: sym.FullName()}
		node.Add(fn)
		p.members = append(p.members, &pass{scope: scope, fn: m, fnSym: sym, fnNode: fn})
	}
	a.passes = append(a.passes, p)
}

func (a *Analyzer) outlineInterface(scope *nsScope, d *syntax.InterfaceDecl) {
	iface := types.NewInterface(d.Name)
	iface.Path = scope.own.Path
	iface.Module = a.mod.Name
	if !a.define(scope, d, iface) {
		return
	}
	p := &pass{scope: scope, iface: d, ifaceSym: iface}
	for _, m := range d.Methods {
		sym := types.NewFunc(m.Name, nil, paramNames(m.Params)...)
		sym.Path = iface.TypeName()
		sym.Module = a.mod.Name
		if err := iface.Define(sym); err != nil {
			a.errorf(m, "%v", err)
			continue
		}
		p.members = append(p.members, &pass{scope: scope, fn: m, fnSym: sym})
	}
	a.passes = append(a.passes, p)
}

func (a *Analyzer) outlineEnum(scope *nsScope, d *syntax.EnumDecl) {
	e := types.NewEnum(d.Name)
	e.Path = scope.own.Path
	e.Module = a.mod.Name
	if !a.define(scope, d, e) {
		return
	}
	for _, it := range d.Items {
		if _, err := e.AddItem(it.Name, it.Value); err != nil {
			a.errorAtSpan(it.SpanVal, "%v", err)
		}
	}
}

func (a *Analyzer) outlineGlobal(scope *nsScope, d *syntax.VarDecl) {
	if len(d.Names) != 1 {
		a.errorf(d, "global declarations must declare exactly one variable")
		return
	}
	if d.Types[0] == nil {
		a.errorf(d, "global variable '%s' needs an explicit type", d.Names[0])
		return
	}
	g := types.NewGlobal(d.Names[0], nil)
	g.Path = scope.own.Path
	g.Local = d.Static
	if !a.define(scope, d, g) {
		return
	}
	a.mod.AddGlobal(g)
	node := &ast.VarDecl{Base: ast.Base{Ln: line(d)}, Name: g.Name(), Symbol: g}
	a.root.Add(node)
	a.passes = append(a.passes, &pass{scope: scope, global: d, globalSym: g, globalNode: node})
}

// ---------------------------------------------------------------------------
// Imports
// ---------------------------------------------------------------------------

func (a *Analyzer) linkImports1(proj *project) {
	seen := map[string]bool{}
	for _, imp := range a.tree.Imports {
		name, ns, err := proj.lookup(a.file, imp.Path)
		if err != nil {
			a.errorf(imp, "invalid import '%s': %v", imp.Path, err)
			continue
		}
		if name == a.mod.Name {
			a.errorf(imp, "module '%s' imports itself", name)
			continue
		}
		if seen[name] {
			a.errorf(imp, "module '%s' is already imported", name)
			continue
		}
		seen[name] = true
		a.imports = append(a.imports, &importPass{decl: imp, name: name, ns: ns})
	}
}

func (a *Analyzer) linkImports2() {
	// Imports come first in the tree so init code loads them before
	// running any global initializer.
	var nodes []ast.Node
	for _, imp := range a.imports {
		a.mod.AddImport(imp.name, imp.ns)
		nodes = append(nodes, &ast.Import{Base: ast.Base{Ln: line(imp.decl)}, Module: imp.name})
	}
	a.root.Kids = append(nodes, a.root.Kids...)
}

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// resolveType turns a written type into a type. It returns nil after
// reporting an error.
func (a *Analyzer) resolveType(scope types.Scope, te syntax.TypeExpr, allowVoid bool) types.Type {
	switch te := te.(type) {
	case *syntax.NamedType:
		t, err := types.ResolveType(scope, te.Path)
		if err != nil {
			a.errorf(te, "%v", err)
			return nil
		}
		if types.IsVoid(t) && !allowVoid {
			a.errorf(te, "void is not allowed here")
			return nil
		}
		return t
	case *syntax.ArrayTypeExpr:
		elem := a.resolveType(scope, te.Elem, false)
		if elem == nil {
			return nil
		}
		return types.NewArray(elem)
	case *syntax.MapTypeExpr:
		k := a.resolveType(scope, te.Key, false)
		v := a.resolveType(scope, te.Value, false)
		if k == nil || v == nil {
			return nil
		}
		return types.NewMap(k, v)
	case *syntax.FuncTypeExpr:
		ret := a.resolveReturns(scope, te.Returns)
		sig := &types.FuncSignature{Returns: ret, Refs: te.Refs, Coro: te.Coro}
		for _, p := range te.Params {
			pt := a.resolveType(scope, p, false)
			if pt == nil {
				return nil
			}
			sig.Params = append(sig.Params, pt)
		}
		if ret == nil {
			return nil
		}
		return sig
	}
	a.errorf(te, "unsupported type expression")
	return nil
}

func (a *Analyzer) resolveReturns(scope types.Scope, rets []syntax.TypeExpr) types.Type {
	switch len(rets) {
	case 0:
		return types.Void
	case 1:
		return a.resolveType(scope, rets[0], true)
	}
	items := make([]types.Type, 0, len(rets))
	for _, r := range rets {
		t := a.resolveType(scope, r, false)
		if t == nil {
			return nil
		}
		items = append(items, t)
	}
	return types.NewTuple(items...)
}

// signature resolves a declared function's signature. Unresolvable types
// degrade to any so the body can still be checked.
func (a *Analyzer) signature(scope types.Scope, coro bool, rets []syntax.TypeExpr, params []*syntax.Param) *types.FuncSignature {
	ret := a.resolveReturns(scope, rets)
	if ret == nil {
		ret = types.Any
	}
	sig := &types.FuncSignature{Returns: ret, Coro: coro}
	seen := map[string]bool{}
	for _, p := range params {
		if seen[p.Name] {
			a.errorf(p, "parameter '%s' is already defined", p.Name)
		}
		seen[p.Name] = true
		t := a.resolveType(scope, p.Type, false)
		if t == nil {
			t = types.Any
		}
		sig.Params = append(sig.Params, t)
		sig.Refs = append(sig.Refs, p.Ref)
		switch {
		case p.Default != nil && p.Ref:
			a.errorf(p, "ref parameter '%s' can't have a default value", p.Name)
		case p.Default != nil:
			sig.Defaults++
		case sig.Defaults > 0:
			a.errorf(p, "missing default value for parameter '%s'", p.Name)
		}
	}
	if len(sig.Params) > ast.MaxArgs {
		a.errorAtSpan(params[0].SpanVal, "too many parameters")
	}
	if sig.Defaults > ast.MaxDefaults {
		a.errorAtSpan(params[0].SpanVal, "too many default parameters")
	}
	return sig
}

func (a *Analyzer) parseTypes1() {
	for _, p := range a.passes {
		switch {
		case p.fn != nil:
			p.fnSym.Sig = a.signature(p.scope, p.fn.Coro, p.fn.Returns, p.fn.Params)
		case p.global != nil:
			p.globalSym.Type = a.resolveType(p.scope, p.global.Types[0], false)
			if p.globalSym.Type == nil {
				p.globalSym.Type = types.Any
			}
			p.globalNode.Type = p.globalSym.Type
		case p.class != nil:
			// Member names never shadow types here: field types resolve in
			// the enclosing namespace.
			for _, f := range p.class.Fields {
				sym, ok := p.classSym.ResolveLocal(f.Name).(*types.FieldSymbol)
				if !ok {
					continue
				}
				sym.Type = a.resolveType(p.scope, f.Type, false)
				if sym.Type == nil {
					sym.Type = types.Any
				}
			}
			for _, m := range p.members {
				m.fnSym.Sig = a.signature(p.scope, m.fn.Coro, m.fn.Returns, m.fn.Params)
			}
		case p.iface != nil:
			for _, m := range p.members {
				m.fnSym.Sig = a.signature(p.scope, m.fn.Coro, m.fn.Returns, m.fn.Params)
			}
		}
	}
}

// parseTypes2 links classes and interfaces to their bases.
func (a *Analyzer) parseTypes2() {
	for _, p := range a.passes {
		switch {
		case p.class != nil:
			a.linkClassBases(p)
		case p.iface != nil:
			a.linkInterfaceBases(p)
		}
	}
}

func (a *Analyzer) linkClassBases(p *pass) {
	c := p.classSym
	for i, b := range p.class.Bases {
		t := a.resolveType(p.scope, b, false)
		switch bt := t.(type) {
		case nil:
		case *types.ClassSymbol:
			switch {
			case bt == c:
				a.errorf(b, "self inheritance is not allowed")
			case i != 0:
				a.errorf(b, "superclass '%s' must be listed first", bt.TypeName())
			case bt.IsSubclassOf(c):
				a.errorf(b, "inheritance cycle: '%s' derives from '%s'", bt.TypeName(), c.TypeName())
			default:
				c.Super = bt
			}
		case *types.InterfaceSymbol:
			dup := false
			for _, have := range c.Implements {
				dup = dup || have == bt
			}
			if dup {
				a.errorf(b, "interface '%s' is implemented more than once", bt.TypeName())
				continue
			}
			c.Implements = append(c.Implements, bt)
		default:
			a.errorf(b, "'%s' can't be inherited from", t.TypeName())
		}
	}
}

func (a *Analyzer) linkInterfaceBases(p *pass) {
	iface := p.ifaceSym
	for _, b := range p.iface.Bases {
		t := a.resolveType(p.scope, b, false)
		bt, ok := t.(*types.InterfaceSymbol)
		switch {
		case t == nil:
		case !ok:
			a.errorf(b, "interface '%s' can only extend interfaces", iface.TypeName())
		case bt == iface:
			a.errorf(b, "self inheritance is not allowed")
		case bt.Extends(iface):
			a.errorf(b, "inheritance cycle: '%s' extends '%s'", bt.TypeName(), iface.TypeName())
		default:
			dup := false
			for _, have := range iface.Bases {
				dup = dup || have == bt
			}
			if dup {
				a.errorf(b, "interface '%s' is inherited more than once", bt.TypeName())
				continue
			}
			iface.Bases = append(iface.Bases, bt)
		}
	}
}

// checkClass runs once every class is linked: it lays out the class and
// validates overrides and interface conformance.
func (a *Analyzer) checkClass(p *pass) {
	c := p.classSym
	if c.Super != nil {
		for _, m := range p.members {
			a.checkOverride(c, m)
		}
		for _, f := range p.class.Fields {
			if _, ok := c.Super.Resolve(f.Name).(*types.FieldSymbol); ok {
				a.errorf(f, "field '%s' is already declared by a base class", f.Name)
			}
		}
	} else {
		for _, m := range p.members {
			if m.fnSym.Override {
				a.errorf(m.fn, "method '%s' overrides nothing", m.fn.Name)
			}
		}
	}
	c.Layout()
	for _, err := range types.CheckConformance(c) {
		a.errorf(p.class, "%v", err)
	}
}

func (a *Analyzer) checkOverride(c *types.ClassSymbol, m *pass) {
	sym := m.fnSym
	base, isMethod := c.Super.Resolve(sym.Name()).(*types.FuncSymbol)
	switch {
	case !isMethod && c.Super.Resolve(sym.Name()) != nil:
		a.errorf(m.fn, "method '%s' hides a base class field", sym.Name())
	case !isMethod:
		if sym.Override {
			a.errorf(m.fn, "method '%s' overrides nothing", sym.Name())
		}
	case !sym.Override:
		a.errorf(m.fn, "method '%s' hides a base class method, mark it override", sym.Name())
	case !base.Virtual && !base.Override:
		a.errorf(m.fn, "base method '%s' is not virtual", sym.Name())
	case !types.Identical(base.Sig, sym.Sig):
		a.errorf(m.fn, "method '%s' overrides %s with a different signature %s",
			sym.Name(), base.Sig.TypeName(), sym.Sig.TypeName())
	}
}
