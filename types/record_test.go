package types

import (
	"testing"
)

func buildLib(reg *Registry) *Module {
	m := NewModule(reg, "lib", "lib.loom")
	game, _ := m.NS.Child("game")

	iface := NewInterface("IMover")
	iface.Path = "game"
	iface.Module = "lib"
	imove := NewFunc("Move", NewFuncSignature(Void, Float), "dt")
	imove.Path = iface.TypeName()
	iface.Define(imove)
	game.Define(iface)

	unit := NewClass("Unit")
	unit.Path = "game"
	unit.Module = "lib"
	unit.Implements = []*InterfaceSymbol{iface}
	unit.Define(NewField("hp", Int))
	move := NewFunc("Move", NewFuncSignature(Void, Float), "dt")
	move.Path = unit.TypeName()
	unit.Define(move)
	game.Define(unit)

	color := NewEnum("Color")
	color.AddItem("Red", 1)
	color.AddItem("Blue", 4)
	m.NS.Define(color)

	g := NewGlobal("units", NewArray(unit))
	g.Path = ""
	m.AddGlobal(g)
	m.NS.Define(g)

	sig := NewFuncSignature(NewTuple(Int, String), NewMap(String, unit), Int)
	sig.Defaults = 1
	sig.Refs[0] = true
	f := NewFunc("lookup", sig, "table", "n")
	f.Module = "lib"
	m.NS.Define(f)

	local := NewFunc("secret", NewFuncSignature(Void))
	local.Local = true
	m.NS.Define(local)
	return m
}

func TestRecordRoundTrip(t *testing.T) {
	reg := NewStdRegistry()
	orig := buildLib(reg)
	rec := ExportModule(orig)

	copyMod := NewModule(reg, "lib", "lib.loom")
	mt, err := Declare(copyMod, rec)
	if err != nil {
		t.Fatalf("Declare: %v", err)
	}
	if errs := mt.Resolve(); len(errs) != 0 {
		t.Fatalf("Resolve: %v", errs)
	}

	unit, err := ResolveType(copyMod.NS, []string{"game", "Unit"})
	if err != nil {
		t.Fatal(err)
	}
	c := unit.(*ClassSymbol)
	if len(c.Implements) != 1 || c.Implements[0].TypeName() != "game.IMover" {
		t.Fatalf("implements = %v", c.Implements)
	}
	if hp := c.Resolve("hp").(*FieldSymbol); hp.Type != Int {
		t.Errorf("hp type = %v", hp.Type)
	}
	if move := c.Resolve("Move").(*FuncSymbol); move.FullName() != "game.Unit.Move" {
		t.Errorf("class method full name = %q", move.FullName())
	}
	if move := c.Implements[0].Resolve("Move").(*FuncSymbol); move.FullName() != "game.IMover.Move" {
		t.Errorf("interface method full name = %q", move.FullName())
	}

	g := copyMod.NS.Resolve("units").(*GlobalVar)
	if g.Type.TypeName() != "[]game.Unit" || g.Index != 0 || copyMod.Globals[0] != g {
		t.Errorf("global = %+v", g)
	}

	f := copyMod.NS.Resolve("lookup").(*FuncSymbol)
	want := orig.NS.Resolve("lookup").(*FuncSymbol).Sig
	if !Identical(f.Sig, want) || f.Sig.Defaults != 1 || !f.Sig.Refs[0] {
		t.Errorf("signature = %s, want %s", f.Sig.TypeName(), want.TypeName())
	}
	if f.Module != "lib" || f.ParamIndex("n") != 1 {
		t.Errorf("func = %+v", f)
	}

	e := copyMod.NS.Resolve("Color").(*EnumSymbol)
	if item := e.Resolve("Blue").(*EnumItem); item.Value != 4 {
		t.Errorf("Blue = %d", item.Value)
	}

	if s := copyMod.NS.ResolveLocal("secret"); s == nil || !IsLocal(s) {
		t.Error("local symbols should be kept as local")
	}
}

func TestRecordResolveFailure(t *testing.T) {
	reg := NewRegistry()
	rec := &NamespaceRecord{
		Globals: 1,
		Members: []*SymbolRecord{
			{Kind: SymGlobal, Name: "x", Type: &TypeRecord{Kind: TypeNamed, Name: "missing.Type"}},
		},
	}
	mt, err := Declare(NewModule(reg, "m", "m.loom"), rec)
	if err != nil {
		t.Fatal(err)
	}
	if errs := mt.Resolve(); len(errs) != 1 {
		t.Errorf("got %d errors, want 1", len(errs))
	}
}

func TestMergeNamespaces(t *testing.T) {
	reg := NewRegistry()
	a := NewModule(reg, "a", "a.loom")
	b := NewModule(reg, "b", "b.loom")

	for _, m := range []*Module{a, b} {
		ns, _ := m.NS.Child("util")
		f := NewFunc("Clamp", NewFuncSignature(Int, Int))
		f.Module = m.Name
		ns.Define(f)

		local := NewFunc("helper", NewFuncSignature(Void))
		local.Local = true
		local.Module = m.Name
		m.NS.Define(local)
	}
	only := NewFunc("OnlyB", NewFuncSignature(Void))
	only.Module = "b"
	b.NS.Define(only)

	project := NewNamespace("", "", "")
	if got := MergeNamespaces(project, a.NS); len(got) != 0 {
		t.Fatalf("first merge collided: %v", got)
	}
	got := MergeNamespaces(project, b.NS)
	if len(got) != 1 {
		t.Fatalf("got %d collisions, want 1", len(got))
	}
	if got[0].Name != "util.Clamp" {
		t.Errorf("collision name = %q", got[0].Name)
	}
	if OwnerModule(got[0].First) != "a" || OwnerModule(got[0].Second) != "b" {
		t.Errorf("owners = %s, %s", OwnerModule(got[0].First), OwnerModule(got[0].Second))
	}
	if project.Resolve("OnlyB") == nil {
		t.Error("non-colliding symbol should be merged")
	}
	if project.Resolve("helper") != nil {
		t.Error("local symbols must not be merged")
	}
	if a.NS.ResolveLocal("OnlyB") != nil {
		t.Error("source namespaces must not be modified")
	}
}
