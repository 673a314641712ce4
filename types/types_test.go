package types

import (
	"errors"
	"testing"
)

func TestTypeNames(t *testing.T) {
	sig := NewFuncSignature(Int, Float, NewArray(String))
	sig.Refs[0] = true
	tests := []struct {
		typ  Type
		want string
	}{
		{Int, "int"},
		{NewArray(Int), "[]int"},
		{NewMap(String, NewArray(Float)), "[string][]float"},
		{NewTuple(Int, String), "int,string"},
		{sig, "func int(ref float,[]string)"},
	}
	for _, tc := range tests {
		if got := tc.typ.TypeName(); got != tc.want {
			t.Errorf("TypeName = %q, want %q", got, tc.want)
		}
	}
	if NewTuple() != Void || NewTuple(Int) != Int {
		t.Error("tuples of zero or one item should collapse")
	}
}

func TestIdentical(t *testing.T) {
	if !Identical(NewArray(Int), NewArray(Int)) {
		t.Error("equal array types should be identical")
	}
	if Identical(NewArray(Int), NewArray(Float)) {
		t.Error("[]int and []float should differ")
	}
	a, b := NewClass("A"), NewClass("A")
	if Identical(a, b) {
		t.Error("distinct classes should never be identical")
	}
}

func TestAssignableTo(t *testing.T) {
	base := NewClass("Base")
	derived := NewClass("Derived")
	derived.Super = base
	iface := NewInterface("IFoo")
	sub := NewInterface("ISub")
	sub.Bases = []*InterfaceSymbol{iface}
	base.Implements = []*InterfaceSymbol{sub}

	tests := []struct {
		src, dst Type
		want     bool
	}{
		{Int, Float, true},
		{Float, Int, false},
		{Int, Any, true},
		{Null, base, true},
		{Null, Int, false},
		{derived, base, true},
		{base, derived, false},
		{derived, iface, true},
		{sub, iface, true},
		{iface, sub, false},
		{NewArray(Int), NewArray(Int), true},
		{NewArray(Int), NewArray(Float), false},
		{String, Int, false},
	}
	for _, tc := range tests {
		if got := AssignableTo(tc.src, tc.dst); got != tc.want {
			t.Errorf("AssignableTo(%s, %s) = %v, want %v", tc.src.TypeName(), tc.dst.TypeName(), got, tc.want)
		}
	}
}

func TestCastableTo(t *testing.T) {
	base := NewClass("Base")
	derived := NewClass("Derived")
	derived.Super = base
	color := NewEnum("Color")

	tests := []struct {
		src, dst Type
		want     bool
	}{
		{Float, Int, true},
		{base, derived, true},
		{color, Int, true},
		{Int, color, true},
		{Int, String, true},
		{String, base, false},
		{NewArray(Int), base, false},
	}
	for _, tc := range tests {
		if got := CastableTo(tc.src, tc.dst); got != tc.want {
			t.Errorf("CastableTo(%s, %s) = %v, want %v", tc.src.TypeName(), tc.dst.TypeName(), got, tc.want)
		}
	}
}

func TestBinaryAndUnaryResult(t *testing.T) {
	tests := []struct {
		op   string
		l, r Type
		want Type
	}{
		{"+", Int, Int, Int},
		{"+", Int, Float, Float},
		{"+", String, String, String},
		{"%", Int, Int, Int},
		{"<", Int, Float, Bool},
		{"==", String, Null, Bool},
		{"&&", Bool, Bool, Bool},
	}
	for _, tc := range tests {
		got, err := BinaryResult(tc.op, tc.l, tc.r)
		if err != nil || got != tc.want {
			t.Errorf("%s %s %s = %v, %v; want %s", tc.l.TypeName(), tc.op, tc.r.TypeName(), got, err, tc.want.TypeName())
		}
	}

	for _, bad := range []struct {
		op   string
		l, r Type
	}{
		{"-", String, Int},
		{"%", Float, Int},
		{"&&", Int, Bool},
		{"==", String, Int},
	} {
		if _, err := BinaryResult(bad.op, bad.l, bad.r); err == nil {
			t.Errorf("%s %s %s should fail", bad.l.TypeName(), bad.op, bad.r.TypeName())
		}
	}

	if got, err := UnaryResult("-", Float); err != nil || got != Float {
		t.Errorf("-float = %v, %v", got, err)
	}
	if _, err := UnaryResult("!", Int); err == nil {
		t.Error("!int should fail")
	}
}

func TestClassLayout(t *testing.T) {
	base := NewClass("Base")
	base.Define(NewField("a", Int))
	base.Define(NewField("b", Int))
	speak := NewFunc("Speak", NewFuncSignature(Void))
	speak.Virtual = true
	base.Define(speak)
	base.Define(NewFunc("Walk", NewFuncSignature(Void)))

	derived := NewClass("Derived")
	derived.Super = base
	derived.Define(NewField("c", Float))
	override := NewFunc("Speak", NewFuncSignature(Void))
	override.Override = true
	derived.Define(override)
	derived.Define(NewFunc("Jump", NewFuncSignature(Void)))

	fields := derived.Fields()
	if len(fields) != 3 || fields[2].Name() != "c" || fields[2].Index != 2 {
		t.Errorf("fields = %v", fields)
	}
	methods := derived.Methods()
	if len(methods) != 3 {
		t.Fatalf("vtable size = %d, want 3", len(methods))
	}
	if methods[0] != override || override.Index != speak.Index {
		t.Error("override should reuse the base slot")
	}
	if methods[2].Name() != "Jump" {
		t.Errorf("slot 2 = %s", methods[2].Name())
	}
	if derived.Resolve("a") == nil {
		t.Error("inherited field should resolve")
	}
}

func TestClassCycle(t *testing.T) {
	a, b := NewClass("A"), NewClass("B")
	a.Super = b
	b.Super = a
	if !a.HasCycle() {
		t.Error("cycle not detected")
	}
	a.Layout() // must terminate
}

func TestConformance(t *testing.T) {
	iface := NewInterface("IMover")
	iface.Define(NewFunc("Move", NewFuncSignature(Void, Float), "dt"))

	good := NewClass("Good")
	good.Implements = []*InterfaceSymbol{iface}
	good.Define(NewFunc("Move", NewFuncSignature(Void, Float), "dt"))
	if errs := CheckConformance(good); len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}

	bad := NewClass("Bad")
	bad.Implements = []*InterfaceSymbol{iface}
	bad.Define(NewFunc("Move", NewFuncSignature(Void, Int), "dt"))
	if errs := CheckConformance(bad); len(errs) != 1 {
		t.Errorf("got %d errors, want 1", len(errs))
	}

	missing := NewClass("Missing")
	missing.Implements = []*InterfaceSymbol{iface}
	if errs := CheckConformance(missing); len(errs) != 1 {
		t.Errorf("got %d errors, want 1", len(errs))
	}
}

func TestNamespaceDefineDuplicate(t *testing.T) {
	ns := NewNamespace("", "", "m")
	if err := ns.Define(NewGlobal("x", Int)); err != nil {
		t.Fatal(err)
	}
	err := ns.Define(NewFunc("x", NewFuncSignature(Void)))
	var dup *AlreadyDefinedError
	if !errors.As(err, &dup) {
		t.Fatalf("err = %v, want *AlreadyDefinedError", err)
	}
	if dup.Name != "x" {
		t.Errorf("dup name = %q", dup.Name)
	}
}

func TestNamespaceLinks(t *testing.T) {
	reg := NewStdRegistry()
	lib := NewModule(reg, "lib", "lib.loom")
	game, _ := lib.NS.Child("game")
	unit := NewClass("Unit")
	unit.Path = "game"
	game.Define(unit)
	hidden := NewFunc("helper", NewFuncSignature(Void))
	hidden.Local = true
	lib.NS.Define(hidden)

	app := NewModule(reg, "app", "app.loom")
	appGame, _ := app.NS.Child("game")
	appGame.Define(NewClass("Player"))
	app.AddImport("lib", lib.NS)

	if app.NS.Resolve("helper") != nil {
		t.Error("file-local symbol leaked through import")
	}
	if app.NS.Resolve("int") != Int {
		t.Error("builtins should resolve through the registry link")
	}
	if app.NS.Resolve("trace") == nil {
		t.Error("native trace should resolve")
	}

	for _, path := range [][]string{{"game", "Unit"}, {"game", "Player"}} {
		if _, err := ResolveType(app.NS, path); err != nil {
			t.Errorf("ResolveType(%v): %v", path, err)
		}
	}
	if _, err := ResolveType(app.NS, []string{"game", "Nope"}); err == nil {
		t.Error("expected unresolved error")
	}
	if _, err := ResolveType(app.NS, []string{"trace"}); err == nil {
		t.Error("a function is not a type")
	}
	if app.AddImport("lib", lib.NS) {
		t.Error("second import of the same module should report false")
	}
}

func TestArrayAndMapMembers(t *testing.T) {
	arr := NewArray(String)
	if f, ok := ArrayMember(arr, "Count").(*FieldSymbol); !ok || f.Type != Int {
		t.Error("[]string.Count should be an int field")
	}
	add, ok := ArrayMember(arr, "Add").(*FuncSymbol)
	if !ok || add.Sig.Params[0] != String || !add.Native {
		t.Error("[]string.Add should take a string")
	}
	if ArrayMember(arr, "Nope") != nil {
		t.Error("unknown member should be nil")
	}
	if f, ok := MapMember(NewMap(String, Int), "Contains").(*FuncSymbol); !ok || f.Sig.Returns != Bool {
		t.Error("map Contains should return bool")
	}
}
