package types

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Portable records: the serialisable form of a module's namespace, stored
// alongside compiled bytecode so cached modules can take part in symbol
// lookup without being re-analyzed.
// ---------------------------------------------------------------------------

// TypeKind tags a TypeRecord.
type TypeKind uint8

const (
	TypeBuiltin TypeKind = iota
	TypeNamed
	TypeArray
	TypeMap
	TypeTuple
	TypeFunc
)

// TypeRecord is a serialisable type reference. Named types are referred to
// by qualified name and resolved against the importing scope.
type TypeRecord struct {
	Kind     TypeKind      `cbor:"1,keyasint"`
	Name     string        `cbor:"2,keyasint,omitempty"`
	Elem     *TypeRecord   `cbor:"3,keyasint,omitempty"` // array element, map key
	Value    *TypeRecord   `cbor:"4,keyasint,omitempty"` // map value, func return
	Items    []*TypeRecord `cbor:"5,keyasint,omitempty"` // tuple items, func params
	Refs     []bool        `cbor:"6,keyasint,omitempty"`
	Defaults int           `cbor:"7,keyasint,omitempty"`
	Coro     bool          `cbor:"8,keyasint,omitempty"`
}

// SymbolKind tags a SymbolRecord.
type SymbolKind uint8

const (
	SymNamespace SymbolKind = iota
	SymFunc
	SymGlobal
	SymClass
	SymInterface
	SymEnum
	SymField
	SymEnumItem
)

// SymbolRecord is a serialisable declaration.
type SymbolRecord struct {
	Kind     SymbolKind      `cbor:"1,keyasint"`
	Name     string          `cbor:"2,keyasint"`
	Local    bool            `cbor:"3,keyasint,omitempty"`
	Type     *TypeRecord     `cbor:"4,keyasint,omitempty"`
	Params   []string        `cbor:"5,keyasint,omitempty"`
	Index    int             `cbor:"6,keyasint,omitempty"`
	Value    int64           `cbor:"7,keyasint,omitempty"`
	Virtual  bool            `cbor:"8,keyasint,omitempty"`
	Override bool            `cbor:"9,keyasint,omitempty"`
	Bases    []*TypeRecord   `cbor:"10,keyasint,omitempty"` // superclass first for classes
	Super    bool            `cbor:"11,keyasint,omitempty"` // Bases[0] is a superclass
	Members  []*SymbolRecord `cbor:"12,keyasint,omitempty"`
}

// NamespaceRecord is the serialisable root namespace of a module.
type NamespaceRecord struct {
	Members []*SymbolRecord `cbor:"1,keyasint,omitempty"`
	Globals int             `cbor:"2,keyasint,omitempty"`
}

// RecordType converts a type into its record form.
func RecordType(t Type) *TypeRecord {
	switch v := t.(type) {
	case nil:
		return &TypeRecord{Kind: TypeBuiltin, Name: Void.name}
	case *BuiltinType:
		return &TypeRecord{Kind: TypeBuiltin, Name: v.name}
	case *ArrayType:
		return &TypeRecord{Kind: TypeArray, Elem: RecordType(v.Elem)}
	case *MapType:
		return &TypeRecord{Kind: TypeMap, Elem: RecordType(v.Key), Value: RecordType(v.Value)}
	case *TupleType:
		rec := &TypeRecord{Kind: TypeTuple}
		for _, it := range v.Items {
			rec.Items = append(rec.Items, RecordType(it))
		}
		return rec
	case *FuncSignature:
		rec := &TypeRecord{
			Kind:     TypeFunc,
			Value:    RecordType(v.Returns),
			Refs:     append([]bool(nil), v.Refs...),
			Defaults: v.Defaults,
			Coro:     v.Coro,
		}
		for _, p := range v.Params {
			rec.Items = append(rec.Items, RecordType(p))
		}
		return rec
	}
	return &TypeRecord{Kind: TypeNamed, Name: t.TypeName()}
}

// Resolve converts a record back into a type, looking named types up in
// scope.
func (r *TypeRecord) Resolve(scope Scope) (Type, error) {
	switch r.Kind {
	case TypeBuiltin:
		for _, b := range append(Builtins, Null) {
			if b.name == r.Name {
				return b, nil
			}
		}
		return nil, fmt.Errorf("unknown builtin type %q", r.Name)
	case TypeNamed:
		return ResolveType(scope, strings.Split(r.Name, "."))
	case TypeArray:
		elem, err := r.Elem.Resolve(scope)
		if err != nil {
			return nil, err
		}
		return NewArray(elem), nil
	case TypeMap:
		key, err := r.Elem.Resolve(scope)
		if err != nil {
			return nil, err
		}
		val, err := r.Value.Resolve(scope)
		if err != nil {
			return nil, err
		}
		return NewMap(key, val), nil
	case TypeTuple:
		items, err := resolveAll(scope, r.Items)
		if err != nil {
			return nil, err
		}
		return &TupleType{Items: items}, nil
	case TypeFunc:
		ret, err := r.Value.Resolve(scope)
		if err != nil {
			return nil, err
		}
		params, err := resolveAll(scope, r.Items)
		if err != nil {
			return nil, err
		}
		refs := make([]bool, len(params))
		copy(refs, r.Refs)
		return &FuncSignature{Returns: ret, Params: params, Refs: refs, Defaults: r.Defaults, Coro: r.Coro}, nil
	}
	return nil, fmt.Errorf("bad type record kind %d", r.Kind)
}

func resolveAll(scope Scope, recs []*TypeRecord) ([]Type, error) {
	out := make([]Type, len(recs))
	for i, rec := range recs {
		t, err := rec.Resolve(scope)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// ExportModule records every declaration of m.
func ExportModule(m *Module) *NamespaceRecord {
	return &NamespaceRecord{
		Members: exportMembers(m.NS.Members.All()),
		Globals: len(m.Globals),
	}
}

func exportMembers(syms []Symbol) []*SymbolRecord {
	var out []*SymbolRecord
	for _, sym := range syms {
		if rec := exportSymbol(sym); rec != nil {
			out = append(out, rec)
		}
	}
	return out
}

func exportSymbol(sym Symbol) *SymbolRecord {
	switch s := sym.(type) {
	case *Namespace:
		return &SymbolRecord{Kind: SymNamespace, Name: s.name, Members: exportMembers(s.Members.All())}
	case *FuncSymbol:
		return &SymbolRecord{
			Kind:     SymFunc,
			Name:     s.name,
			Local:    s.Local,
			Type:     RecordType(s.Sig),
			Params:   s.Params,
			Index:    s.Index,
			Virtual:  s.Virtual,
			Override: s.Override,
		}
	case *GlobalVar:
		return &SymbolRecord{Kind: SymGlobal, Name: s.name, Local: s.Local, Type: RecordType(s.Type), Index: s.Index}
	case *FieldSymbol:
		return &SymbolRecord{Kind: SymField, Name: s.name, Type: RecordType(s.Type), Index: s.Index}
	case *ClassSymbol:
		rec := &SymbolRecord{Kind: SymClass, Name: s.name, Local: s.Local, Members: exportMembers(s.Members.All())}
		if s.Super != nil {
			rec.Super = true
			rec.Bases = append(rec.Bases, RecordType(s.Super))
		}
		for _, i := range s.Implements {
			rec.Bases = append(rec.Bases, RecordType(i))
		}
		return rec
	case *InterfaceSymbol:
		rec := &SymbolRecord{Kind: SymInterface, Name: s.name, Members: exportMembers(s.Members.All())}
		for _, b := range s.Bases {
			rec.Bases = append(rec.Bases, RecordType(b))
		}
		return rec
	case *EnumSymbol:
		rec := &SymbolRecord{Kind: SymEnum, Name: s.name}
		for _, it := range s.Items.All() {
			item := it.(*EnumItem)
			rec.Members = append(rec.Members, &SymbolRecord{Kind: SymEnumItem, Name: item.name, Value: item.Value})
		}
		return rec
	}
	return nil
}

// Materializer rebuilds a module's symbols from a record in two steps:
// Declare creates every symbol, and Resolve fills in types once every
// module the record may refer to has been declared.
type Materializer struct {
	mod     *Module
	pending []func() error
}

// Declare creates the symbols of rec in m's namespace. Types stay
// unresolved until Resolve runs.
func Declare(m *Module, rec *NamespaceRecord) (*Materializer, error) {
	mt := &Materializer{mod: m}
	m.Globals = make([]*GlobalVar, rec.Globals)
	if err := mt.declareInto(m.NS, rec.Members); err != nil {
		return nil, err
	}
	return mt, nil
}

func (mt *Materializer) declareInto(ns *Namespace, recs []*SymbolRecord) error {
	for _, rec := range recs {
		sym, err := mt.declare(ns, rec)
		if err != nil {
			return err
		}
		if err := ns.Define(sym); err != nil {
			return err
		}
	}
	return nil
}

func (mt *Materializer) resolveType(rec *TypeRecord, set func(Type)) {
	mt.pending = append(mt.pending, func() error {
		t, err := rec.Resolve(mt.mod.NS)
		if err != nil {
			return err
		}
		set(t)
		return nil
	})
}

func (mt *Materializer) declare(ns *Namespace, rec *SymbolRecord) (Symbol, error) {
	module := mt.mod.Name
	switch rec.Kind {
	case SymNamespace:
		child := NewNamespace(rec.Name, QualifiedName(ns.Path, rec.Name), module)
		return child, mt.declareInto(child, rec.Members)

	case SymFunc:
		f := mt.declareFunc(rec)
		f.Path = ns.Path
		f.Module = module
		f.Local = rec.Local
		return f, nil

	case SymGlobal:
		g := NewGlobal(rec.Name, nil)
		g.Path = ns.Path
		g.Module = module
		g.Local = rec.Local
		g.Index = rec.Index
		if rec.Index < 0 || rec.Index >= len(mt.mod.Globals) {
			return nil, fmt.Errorf("global %s: index %d out of range", rec.Name, rec.Index)
		}
		mt.mod.Globals[rec.Index] = g
		mt.resolveType(rec.Type, func(t Type) { g.Type = t })
		return g, nil

	case SymClass:
		c := NewClass(rec.Name)
		c.Path = ns.Path
		c.Module = module
		c.Local = rec.Local
		for _, m := range rec.Members {
			switch m.Kind {
			case SymField:
				f := NewField(m.Name, nil)
				f.Index = m.Index
				mt.resolveType(m.Type, func(t Type) { f.Type = t })
				if err := c.Define(f); err != nil {
					return nil, err
				}
			case SymFunc:
				f := mt.declareFunc(m)
				f.Path = c.TypeName()
				f.Module = module
				if err := c.Define(f); err != nil {
					return nil, err
				}
			}
		}
		for i, b := range rec.Bases {
			isSuper := i == 0 && rec.Super
			mt.resolveType(b, func(t Type) {
				switch bt := t.(type) {
				case *ClassSymbol:
					if isSuper {
						c.Super = bt
					}
				case *InterfaceSymbol:
					c.Implements = append(c.Implements, bt)
				}
			})
		}
		return c, nil

	case SymInterface:
		iface := NewInterface(rec.Name)
		iface.Path = ns.Path
		iface.Module = module
		for _, m := range rec.Members {
			f := mt.declareFunc(m)
			f.Path = iface.TypeName()
			f.Module = module
			if err := iface.Define(f); err != nil {
				return nil, err
			}
		}
		for _, b := range rec.Bases {
			mt.resolveType(b, func(t Type) {
				if bi, ok := t.(*InterfaceSymbol); ok {
					iface.Bases = append(iface.Bases, bi)
				}
			})
		}
		return iface, nil

	case SymEnum:
		e := NewEnum(rec.Name)
		e.Path = ns.Path
		e.Module = module
		for _, it := range rec.Members {
			if _, err := e.AddItem(it.Name, it.Value); err != nil {
				return nil, err
			}
		}
		return e, nil
	}
	return nil, fmt.Errorf("symbol %s: unexpected record kind %d", rec.Name, rec.Kind)
}

func (mt *Materializer) declareFunc(rec *SymbolRecord) *FuncSymbol {
	f := NewFunc(rec.Name, nil, rec.Params...)
	f.Index = rec.Index
	f.Virtual = rec.Virtual
	f.Override = rec.Override
	mt.resolveType(rec.Type, func(t Type) {
		if sig, ok := t.(*FuncSignature); ok {
			f.Sig = sig
		}
	})
	return f
}

// Resolve resolves every deferred type reference. It reports every
// failure, not just the first.
func (mt *Materializer) Resolve() []error {
	var errs []error
	for _, fn := range mt.pending {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	mt.pending = nil
	return errs
}
