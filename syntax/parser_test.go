package syntax

import (
	"fmt"
	"strings"
	"testing"

	"github.com/chazu/loom/diag"
)

func mustParse(t *testing.T, src string) *File {
	t.Helper()
	f, errs := Parse("test.loom", src)
	if errs.Len() > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	return f
}

func parseExpr(t *testing.T, src string) Expr {
	t.Helper()
	p := NewParser("expr.loom", src)
	x := p.ParseExpression()
	if p.Errors().Len() > 0 {
		t.Fatalf("parse %q: %v", src, p.Errors())
	}
	return x
}

func TestParseImportsAndNamespaces(t *testing.T) {
	f := mustParse(t, `
import "std/io";
import "game/unit";

namespace game.ai {
	func think() {}
	namespace inner { int depth = 3; }
}
`)
	if len(f.Imports) != 2 || f.Imports[1].Path != "game/unit" {
		t.Fatalf("imports = %+v", f.Imports)
	}
	ns, ok := f.Decls[0].(*NamespaceDecl)
	if !ok {
		t.Fatalf("decl 0 is %T", f.Decls[0])
	}
	if strings.Join(ns.Name, ".") != "game.ai" {
		t.Errorf("namespace name = %v", ns.Name)
	}
	if len(ns.Decls) != 2 {
		t.Fatalf("namespace decls = %d", len(ns.Decls))
	}
	inner := ns.Decls[1].(*NamespaceDecl)
	vd := inner.Decls[0].(*VarDecl)
	if vd.Names[0] != "depth" || vd.Types[0].String() != "int" {
		t.Errorf("inner var = %+v", vd)
	}
}

func TestParseFuncHeaders(t *testing.T) {
	tests := []struct {
		src     string
		name    string
		returns string
		params  int
		coro    bool
		static  bool
	}{
		{"func foo() {}", "foo", "", 0, false, false},
		{"func int foo(int a) {}", "foo", "int", 1, false, false},
		{"func int, string pair() {}", "pair", "int,string", 0, false, false},
		{"func []int list(ref []int xs, int n = 3) {}", "list", "[]int", 2, false, false},
		{"coro func wait(float secs) {}", "wait", "", 1, true, false},
		{"static func helper() {}", "helper", "", 0, false, true},
		{"func [string]int table() {}", "table", "[string]int", 0, false, false},
		{"func a.B make() {}", "make", "a.B", 0, false, false},
	}

	for _, tc := range tests {
		f := mustParse(t, tc.src)
		fn, ok := f.Decls[0].(*FuncDecl)
		if !ok {
			t.Errorf("%q: got %T", tc.src, f.Decls[0])
			continue
		}
		var rets []string
		for _, r := range fn.Returns {
			rets = append(rets, r.String())
		}
		if fn.Name != tc.name {
			t.Errorf("%q: name = %q, want %q", tc.src, fn.Name, tc.name)
		}
		if got := strings.Join(rets, ","); got != tc.returns {
			t.Errorf("%q: returns = %q, want %q", tc.src, got, tc.returns)
		}
		if len(fn.Params) != tc.params {
			t.Errorf("%q: params = %d, want %d", tc.src, len(fn.Params), tc.params)
		}
		if fn.Coro != tc.coro || fn.Static != tc.static {
			t.Errorf("%q: coro=%v static=%v", tc.src, fn.Coro, fn.Static)
		}
	}
}

func TestParseParamsRefAndDefault(t *testing.T) {
	f := mustParse(t, "func f(ref int a, float b = 1.5) {}")
	fn := f.Decls[0].(*FuncDecl)
	if !fn.Params[0].Ref || fn.Params[0].Default != nil {
		t.Errorf("param a = %+v", fn.Params[0])
	}
	if fn.Params[1].Ref {
		t.Error("param b should not be ref")
	}
	if lit, ok := fn.Params[1].Default.(*FloatLit); !ok || lit.Value != 1.5 {
		t.Errorf("param b default = %#v", fn.Params[1].Default)
	}
}

func TestParseClassInterfaceEnum(t *testing.T) {
	f := mustParse(t, `
interface IMover {
	func move(float dt);
	coro func int travel();
}
class Unit : Base, IMover {
	int hp;
	[]string tags;
	virtual func move(float dt) { }
	override func int hit() { return 1; }
	coro func int travel() { yield; return 0; }
}
enum Color { Red = 1, Green = 2, Blue = -3, }
`)
	id := f.Decls[0].(*InterfaceDecl)
	if id.Name != "IMover" || len(id.Methods) != 2 || !id.Methods[1].Coro {
		t.Errorf("interface = %+v", id)
	}
	if id.Methods[0].Body != nil {
		t.Error("interface method should have no body")
	}

	cd := f.Decls[1].(*ClassDecl)
	if cd.Name != "Unit" || len(cd.Bases) != 2 {
		t.Fatalf("class = %+v", cd)
	}
	if len(cd.Fields) != 2 || cd.Fields[1].Type.String() != "[]string" {
		t.Errorf("fields = %+v", cd.Fields)
	}
	if len(cd.Methods) != 3 || !cd.Methods[0].Virtual || !cd.Methods[1].Override {
		t.Errorf("methods = %+v", cd.Methods)
	}

	ed := f.Decls[2].(*EnumDecl)
	if len(ed.Items) != 3 || ed.Items[2].Value != -3 {
		t.Errorf("enum = %+v", ed.Items)
	}
}

func TestParseStatements(t *testing.T) {
	f := mustParse(t, `
func main() {
	int a = 1;
	var b = "x";
	[]int xs = [1, 2, 3];
	a, c = pair();
	a += 2;
	if (a > 1) { a = 0; } else if (a < 0) { a = 1; } else { a = 2; }
	while (a < 10) { a += 1; continue; }
	do { break; } while (true);
	for (int i = 0; i < 3; i += 1) { xs[i] = i; }
	seq { }
	paral { wait(); wait(); }
	paral_all { }
	defer { trace("done"); }
	yield;
	yield wait();
	yield while (a > 0);
	return;
}
`)
	body := f.Decls[0].(*FuncDecl).Body.Stmts
	wantTypes := []string{
		"*syntax.VarDecl", "*syntax.VarDecl", "*syntax.VarDecl",
		"*syntax.AssignStmt", "*syntax.AssignStmt", "*syntax.IfStmt",
		"*syntax.WhileStmt", "*syntax.DoWhileStmt", "*syntax.ForStmt",
		"*syntax.KeywordBlockStmt", "*syntax.KeywordBlockStmt",
		"*syntax.KeywordBlockStmt", "*syntax.KeywordBlockStmt",
		"*syntax.YieldStmt", "*syntax.YieldStmt", "*syntax.YieldStmt",
		"*syntax.ReturnStmt",
	}
	if len(body) != len(wantTypes) {
		t.Fatalf("got %d statements, want %d", len(body), len(wantTypes))
	}
	for i, s := range body {
		if got := fmt.Sprintf("%T", s); got != wantTypes[i] {
			t.Errorf("stmt %d: got %s, want %s", i, got, wantTypes[i])
		}
	}

	if vd := body[1].(*VarDecl); vd.Types[0] != nil {
		t.Error("var declaration should have no explicit type")
	}
	if as := body[3].(*AssignStmt); len(as.Targets) != 2 || as.Op != TokenAssign {
		t.Errorf("multi-assign = %+v", as)
	}
	if as := body[4].(*AssignStmt); as.Op != TokenPlusAssign {
		t.Errorf("compound op = %s", as.Op)
	}
	ifs := body[5].(*IfStmt)
	if _, ok := ifs.Else.(*IfStmt); !ok {
		t.Errorf("else-if chain: else is %T", ifs.Else)
	}
	fs := body[8].(*ForStmt)
	if fs.Init == nil || fs.Cond == nil || fs.Post == nil {
		t.Errorf("for clauses = %+v", fs)
	}
	if kb := body[10].(*KeywordBlockStmt); kb.Kind != BlockParal {
		t.Errorf("paral kind = %d", kb.Kind)
	}
	if ys := body[13].(*YieldStmt); ys.Call != nil || ys.While != nil {
		t.Error("bare yield should carry nothing")
	}
	if ys := body[14].(*YieldStmt); ys.Call == nil {
		t.Error("yield call missing")
	}
	if ys := body[15].(*YieldStmt); ys.While == nil {
		t.Error("yield while missing condition")
	}
}

func TestParsePrecedence(t *testing.T) {
	x := parseExpr(t, "1 + 2 * 3 == 7 || a && b")
	or, ok := x.(*BinaryExpr)
	if !ok || or.Op != TokenOrOr {
		t.Fatalf("top = %#v", x)
	}
	eq := or.X.(*BinaryExpr)
	if eq.Op != TokenEq {
		t.Errorf("left of || = %s", eq.Op)
	}
	add := eq.X.(*BinaryExpr)
	if add.Op != TokenPlus {
		t.Errorf("left of == = %s", add.Op)
	}
	if mul := add.Y.(*BinaryExpr); mul.Op != TokenStar {
		t.Errorf("right of + = %s", mul.Op)
	}
	if and := or.Y.(*BinaryExpr); and.Op != TokenAndAnd {
		t.Errorf("right of || = %s", and.Op)
	}
}

func TestParseChains(t *testing.T) {
	x := parseExpr(t, "obj.Method(x)[0].Field")
	ch, ok := x.(*ChainExpr)
	if !ok {
		t.Fatalf("got %T", x)
	}
	if ch.Root.(*Ident).Name != "obj" {
		t.Errorf("root = %#v", ch.Root)
	}
	if len(ch.Items) != 4 {
		t.Fatalf("items = %d, want 4", len(ch.Items))
	}
	if _, ok := ch.Items[0].(*MemberItem); !ok {
		t.Errorf("item 0 = %T", ch.Items[0])
	}
	if call, ok := ch.Items[1].(*CallItem); !ok || len(call.Args) != 1 {
		t.Errorf("item 1 = %#v", ch.Items[1])
	}
	if _, ok := ch.Items[2].(*IndexItem); !ok {
		t.Errorf("item 2 = %T", ch.Items[2])
	}
	if m, ok := ch.Items[3].(*MemberItem); !ok || m.Name != "Field" {
		t.Errorf("item 3 = %#v", ch.Items[3])
	}

	x = parseExpr(t, "f(b: 1, ref c)")
	call := x.(*ChainExpr).Items[0].(*CallItem)
	if call.Args[0].Name != "b" || !call.Args[1].Ref {
		t.Errorf("args = %+v %+v", call.Args[0], call.Args[1])
	}
}

func TestParseCasts(t *testing.T) {
	tests := []struct {
		src  string
		cast bool
	}{
		{"(int)x", true},
		{"(float)3", true},
		{"(Foo.Bar)obj.child", true},
		{"(a) + b", false},
		{"(a)[0]", false},
		{"(a + b)", false},
		{"(f)(1)", false},
	}
	for _, tc := range tests {
		x := parseExpr(t, tc.src)
		_, isCast := x.(*CastExpr)
		if isCast != tc.cast {
			t.Errorf("%q: cast = %v, want %v (%T)", tc.src, isCast, tc.cast, x)
		}
	}

	if as, ok := parseExpr(t, "x as Unit").(*AsExpr); !ok || as.Type.String() != "Unit" {
		t.Error("as expression not parsed")
	}
	if _, ok := parseExpr(t, "x is Unit").(*IsExpr); !ok {
		t.Error("is expression not parsed")
	}
}

func TestParseNewAndCollections(t *testing.T) {
	ne, ok := parseExpr(t, "new Unit {hp: 10, name: \"u\"}").(*NewExpr)
	if !ok || len(ne.Inits) != 2 || ne.Inits[1].Name != "name" {
		t.Errorf("new = %#v", ne)
	}
	if _, ok := parseExpr(t, "new []int").(*NewExpr); !ok {
		t.Error("new array not parsed")
	}
	cl, ok := parseExpr(t, `[["a", 1], ["b", 2]]`).(*CollectionLit)
	if !ok || len(cl.Elems) != 2 {
		t.Fatalf("collection = %#v", cl)
	}
	if inner, ok := cl.Elems[0].(*CollectionLit); !ok || len(inner.Elems) != 2 {
		t.Errorf("inner = %#v", cl.Elems[0])
	}
}

func TestParseLambda(t *testing.T) {
	x := parseExpr(t, "func int(int a) { return a; }")
	fl, ok := x.(*FuncLit)
	if !ok {
		t.Fatalf("got %T", x)
	}
	if len(fl.Returns) != 1 || len(fl.Params) != 1 {
		t.Errorf("lambda = %+v", fl)
	}

	x = parseExpr(t, "func() { }()")
	if ch, ok := x.(*ChainExpr); !ok || len(ch.Items) != 1 {
		t.Errorf("immediate call = %#v", x)
	}

	f := mustParse(t, "func int(ref float, string) cb;")
	vd := f.Decls[0].(*VarDecl)
	ft := vd.Types[0].(*FuncTypeExpr)
	if len(ft.Params) != 2 || !ft.Refs[0] || ft.Refs[1] {
		t.Errorf("func type = %s", ft)
	}
}

func TestParseErrorsRecover(t *testing.T) {
	_, errs := Parse("bad.loom", `
func a() { int = ; }
func b() { return 1 }
func c() { }
`)
	if errs.Len() < 2 {
		t.Fatalf("got %d errors, want at least 2: %v", errs.Len(), errs)
	}
	for _, d := range errs {
		if d.Kind != diag.SyntaxError {
			t.Errorf("kind = %s", d.Kind)
		}
		if d.File != "bad.loom" {
			t.Errorf("file = %q", d.File)
		}
	}
	if errs[0].Range.Start.Line != 2 {
		t.Errorf("first error line = %d, want 2", errs[0].Range.Start.Line)
	}
}

func TestParseLexErrorsReported(t *testing.T) {
	_, errs := Parse("lex.loom", "func f() { int a = 1 @ 2; }")
	if errs.Len() == 0 {
		t.Fatal("expected errors")
	}
	if !strings.Contains(errs[0].Message, "unexpected character") {
		t.Errorf("message = %q", errs[0].Message)
	}
}

func TestParseType(t *testing.T) {
	for _, src := range []string{"int", "[]string", "[string][]int", "func int(ref float)", "a.b.C"} {
		typ, err := ParseType(src)
		if err != nil {
			t.Errorf("%q: %v", src, err)
			continue
		}
		if typ.String() != src {
			t.Errorf("%q: round trip = %q", src, typ.String())
		}
	}
	if _, err := ParseType("[]"); err == nil {
		t.Error("expected error for incomplete type")
	}
	if _, err := ParseType("int x"); err == nil {
		t.Error("expected error for trailing tokens")
	}
}
