package types

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// ClassSymbol: user and native classes
// ---------------------------------------------------------------------------

// ClassSymbol is a class type. Members holds only the fields and methods
// the class itself declares; inherited members are found through Super.
type ClassSymbol struct {
	name       string
	Path       string
	Module     string
	Local      bool
	Native     bool
	Super      *ClassSymbol
	Implements []*InterfaceSymbol
	Members    *SymbolTable

	laidOut bool
	fields  []*FieldSymbol
	vtable  []*FuncSymbol
}

// NewClass creates an empty class.
func NewClass(name string) *ClassSymbol {
	return &ClassSymbol{name: name, Members: NewSymbolTable()}
}

func (c *ClassSymbol) Name() string       { return c.name }
func (c *ClassSymbol) ModuleName() string { return c.Module }
func (c *ClassSymbol) IsLocal() bool      { return c.Local }
func (c *ClassSymbol) TypeName() string   { return QualifiedName(c.Path, c.name) }
func (c *ClassSymbol) isSymbol()          {}
func (c *ClassSymbol) isType()            {}

// Define declares a field or method on the class.
func (c *ClassSymbol) Define(sym Symbol) error {
	switch s := sym.(type) {
	case *FieldSymbol:
		s.Owner = c
	case *FuncSymbol:
		s.Owner = c
	}
	c.laidOut = false
	return c.Members.Define(sym)
}

// Resolve finds a member, searching superclasses.
func (c *ClassSymbol) Resolve(name string) Symbol {
	for cur := c; cur != nil; cur = cur.Super {
		if sym := cur.Members.Get(name); sym != nil {
			return sym
		}
	}
	return nil
}

// ResolveLocal finds a member declared by c itself.
func (c *ClassSymbol) ResolveLocal(name string) Symbol {
	return c.Members.Get(name)
}

// IsSubclassOf reports whether c is other or inherits from it.
func (c *ClassSymbol) IsSubclassOf(other *ClassSymbol) bool {
	for cur := c; cur != nil; cur = cur.Super {
		if cur == other {
			return true
		}
	}
	return false
}

// HasCycle reports whether following Super from c revisits a class.
func (c *ClassSymbol) HasCycle() bool {
	seen := map[*ClassSymbol]bool{}
	for cur := c; cur != nil; cur = cur.Super {
		if seen[cur] {
			return true
		}
		seen[cur] = true
	}
	return false
}

// Implementing reports whether c, or any superclass, implements iface.
func (c *ClassSymbol) Implementing(iface *InterfaceSymbol) bool {
	for cur := c; cur != nil; cur = cur.Super {
		for _, i := range cur.Implements {
			if i.Extends(iface) {
				return true
			}
		}
	}
	return false
}

// Layout assigns field slots and method slots. Inherited fields come
// first; an overriding method reuses its base method's slot. Layout is
// idempotent and lays out superclasses first.
func (c *ClassSymbol) Layout() {
	if c.laidOut {
		return
	}
	c.laidOut = true
	c.fields = nil
	c.vtable = nil
	if c.Super != nil && !c.Super.HasCycle() {
		c.Super.Layout()
		c.fields = append(c.fields, c.Super.fields...)
		c.vtable = append(c.vtable, c.Super.vtable...)
	}
	for _, sym := range c.Members.All() {
		switch m := sym.(type) {
		case *FieldSymbol:
			m.Index = len(c.fields)
			c.fields = append(c.fields, m)
		case *FuncSymbol:
			if base, ok := c.inheritedMethod(m.Name()); ok {
				m.Index = base.Index
				c.vtable[base.Index] = m
				continue
			}
			m.Index = len(c.vtable)
			c.vtable = append(c.vtable, m)
		}
	}
}

func (c *ClassSymbol) inheritedMethod(name string) (*FuncSymbol, bool) {
	if c.Super == nil || c.Super.HasCycle() {
		return nil, false
	}
	f, ok := c.Super.Resolve(name).(*FuncSymbol)
	return f, ok
}

// Fields returns every field, inherited ones first.
func (c *ClassSymbol) Fields() []*FieldSymbol {
	c.Layout()
	return c.fields
}

// Methods returns the method table indexed by slot.
func (c *ClassSymbol) Methods() []*FuncSymbol {
	c.Layout()
	return c.vtable
}

// ---------------------------------------------------------------------------
// InterfaceSymbol
// ---------------------------------------------------------------------------

// InterfaceSymbol is an interface type holding method signatures.
type InterfaceSymbol struct {
	name    string
	Path    string
	Module  string
	Bases   []*InterfaceSymbol
	Members *SymbolTable
}

// NewInterface creates an empty interface.
func NewInterface(name string) *InterfaceSymbol {
	return &InterfaceSymbol{name: name, Members: NewSymbolTable()}
}

func (i *InterfaceSymbol) Name() string       { return i.name }
func (i *InterfaceSymbol) ModuleName() string { return i.Module }
func (i *InterfaceSymbol) IsLocal() bool      { return false }
func (i *InterfaceSymbol) TypeName() string   { return QualifiedName(i.Path, i.name) }
func (i *InterfaceSymbol) isSymbol()          {}
func (i *InterfaceSymbol) isType()            {}

// Define declares a method signature. The method slot is its position.
func (i *InterfaceSymbol) Define(f *FuncSymbol) error {
	f.Owner = i
	f.Index = i.Members.Len()
	return i.Members.Define(f)
}

// Resolve finds a method, searching base interfaces.
func (i *InterfaceSymbol) Resolve(name string) Symbol {
	return i.resolve(name, map[*InterfaceSymbol]bool{})
}

func (i *InterfaceSymbol) resolve(name string, seen map[*InterfaceSymbol]bool) Symbol {
	if seen[i] {
		return nil
	}
	seen[i] = true
	if sym := i.Members.Get(name); sym != nil {
		return sym
	}
	for _, b := range i.Bases {
		if sym := b.resolve(name, seen); sym != nil {
			return sym
		}
	}
	return nil
}

// Extends reports whether i is other or inherits from it.
func (i *InterfaceSymbol) Extends(other *InterfaceSymbol) bool {
	return i.extends(other, map[*InterfaceSymbol]bool{})
}

func (i *InterfaceSymbol) extends(other *InterfaceSymbol, seen map[*InterfaceSymbol]bool) bool {
	if i == other {
		return true
	}
	if seen[i] {
		return false
	}
	seen[i] = true
	for _, b := range i.Bases {
		if b.extends(other, seen) {
			return true
		}
	}
	return false
}

// AllMethods returns every method i requires, own methods first.
func (i *InterfaceSymbol) AllMethods() []*FuncSymbol {
	var out []*FuncSymbol
	seen := map[string]bool{}
	var walk func(*InterfaceSymbol, map[*InterfaceSymbol]bool)
	walk = func(cur *InterfaceSymbol, visited map[*InterfaceSymbol]bool) {
		if visited[cur] {
			return
		}
		visited[cur] = true
		for _, sym := range cur.Members.All() {
			f := sym.(*FuncSymbol)
			if !seen[f.Name()] {
				seen[f.Name()] = true
				out = append(out, f)
			}
		}
		for _, b := range cur.Bases {
			walk(b, visited)
		}
	}
	walk(i, map[*InterfaceSymbol]bool{})
	return out
}

// CheckConformance verifies that c implements every method of every
// interface it declares, with an identical signature.
func CheckConformance(c *ClassSymbol) []error {
	var errs []error
	for _, iface := range c.Implements {
		for _, m := range iface.AllMethods() {
			impl, ok := c.Resolve(m.Name()).(*FuncSymbol)
			if !ok {
				errs = append(errs, fmt.Errorf("class '%s' doesn't implement interface '%s' method '%s'",
					c.TypeName(), iface.TypeName(), m.Name()))
				continue
			}
			if !Identical(impl.Sig, m.Sig) {
				errs = append(errs, fmt.Errorf("class '%s' implements interface '%s' method '%s' with a different signature: %s, expected %s",
					c.TypeName(), iface.TypeName(), m.Name(), impl.Sig.TypeName(), m.Sig.TypeName()))
			}
		}
	}
	return errs
}
