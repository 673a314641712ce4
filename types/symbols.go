package types

// ---------------------------------------------------------------------------
// Declared symbols
// ---------------------------------------------------------------------------

// Decl is a symbol declared by a module. It knows its owning module and
// whether it is file-local.
type Decl interface {
	Symbol
	ModuleName() string
	IsLocal() bool
}

// IsLocal reports whether sym is file-local.
func IsLocal(sym Symbol) bool {
	if d, ok := sym.(Decl); ok {
		return d.IsLocal()
	}
	return false
}

// QualifiedName joins a namespace path and a name.
func QualifiedName(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

// FuncSymbol is a function, method or interface method.
type FuncSymbol struct {
	name     string
	Path     string // enclosing namespace path
	Module   string
	Local    bool
	Sig      *FuncSignature
	Params   []string // parameter names, parallel to Sig.Params
	Owner    Symbol   // *ClassSymbol or *InterfaceSymbol for methods
	Virtual  bool
	Override bool
	Native   bool
	// Index is the native binding index for native functions, or the
	// method slot for methods.
	Index int
}

// NewFunc creates a function symbol.
func NewFunc(name string, sig *FuncSignature, params ...string) *FuncSymbol {
	return &FuncSymbol{name: name, Sig: sig, Params: params, Index: -1}
}

func (f *FuncSymbol) Name() string       { return f.name }
func (f *FuncSymbol) ModuleName() string { return f.Module }
func (f *FuncSymbol) IsLocal() bool      { return f.Local }
func (f *FuncSymbol) isSymbol()          {}

// FullName is the namespace-qualified name.
func (f *FuncSymbol) FullName() string { return QualifiedName(f.Path, f.name) }

// IsMethod reports whether f belongs to a class or interface.
func (f *FuncSymbol) IsMethod() bool { return f.Owner != nil }

// ParamIndex returns the position of the named parameter, or -1.
func (f *FuncSymbol) ParamIndex(name string) int {
	for i, p := range f.Params {
		if p == name {
			return i
		}
	}
	return -1
}

// GlobalVar is a module-level variable.
type GlobalVar struct {
	name   string
	Path   string
	Module string
	Local  bool
	Type   Type
	Index  int // position in the owning module's global table
}

// NewGlobal creates a global variable symbol.
func NewGlobal(name string, typ Type) *GlobalVar {
	return &GlobalVar{name: name, Type: typ, Index: -1}
}

func (g *GlobalVar) Name() string       { return g.name }
func (g *GlobalVar) ModuleName() string { return g.Module }
func (g *GlobalVar) IsLocal() bool      { return g.Local }
func (g *GlobalVar) isSymbol()          {}

// FullName is the namespace-qualified name.
func (g *GlobalVar) FullName() string { return QualifiedName(g.Path, g.name) }

// LocalVar is a function parameter or local variable.
type LocalVar struct {
	name string
	Type Type
	Slot int
	Ref  bool
}

// NewLocal creates a local variable symbol.
func NewLocal(name string, typ Type, slot int) *LocalVar {
	return &LocalVar{name: name, Type: typ, Slot: slot}
}

func (l *LocalVar) Name() string { return l.name }
func (l *LocalVar) isSymbol()    {}

// FieldSymbol is a class field.
type FieldSymbol struct {
	name  string
	Type  Type
	Owner *ClassSymbol
	// Index is the field slot, counting inherited fields first.
	Index int
	// Native fields are builtin properties such as an array's Count.
	Native bool
}

// NewField creates a field symbol.
func NewField(name string, typ Type) *FieldSymbol {
	return &FieldSymbol{name: name, Type: typ, Index: -1}
}

func (f *FieldSymbol) Name() string { return f.name }
func (f *FieldSymbol) isSymbol()    {}

// EnumSymbol is an enum type.
type EnumSymbol struct {
	name   string
	Path   string
	Module string
	Items  *SymbolTable
}

// NewEnum creates an empty enum.
func NewEnum(name string) *EnumSymbol {
	return &EnumSymbol{name: name, Items: NewSymbolTable()}
}

func (e *EnumSymbol) Name() string       { return e.name }
func (e *EnumSymbol) ModuleName() string { return e.Module }
func (e *EnumSymbol) IsLocal() bool      { return false }
func (e *EnumSymbol) TypeName() string   { return QualifiedName(e.Path, e.name) }
func (e *EnumSymbol) isSymbol()          {}
func (e *EnumSymbol) isType()            {}

// Resolve finds an enum item.
func (e *EnumSymbol) Resolve(name string) Symbol {
	return e.Items.Get(name)
}

// AddItem declares an enum item.
func (e *EnumSymbol) AddItem(name string, value int64) (*EnumItem, error) {
	item := &EnumItem{name: name, Value: value, Owner: e}
	if err := e.Items.Define(item); err != nil {
		return nil, err
	}
	return item, nil
}

// EnumItem is one enum value.
type EnumItem struct {
	name  string
	Value int64
	Owner *EnumSymbol
}

func (i *EnumItem) Name() string { return i.name }
func (i *EnumItem) isSymbol()    {}
