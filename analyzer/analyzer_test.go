package analyzer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/chazu/loom/ast"
	"github.com/chazu/loom/syntax"
	"github.com/chazu/loom/types"
)

func parse(t *testing.T, file, src string) *syntax.File {
	t.Helper()
	tree, errs := syntax.Parse(file, src)
	if errs.HasErrors() {
		t.Fatalf("parse %s:\n%s", file, errs.Error())
	}
	return tree
}

func analyze(t *testing.T, src string) *Result {
	t.Helper()
	reg := types.NewStdRegistry()
	mod := types.NewModule(reg, "test", "test.loom")
	return Analyze(reg, New("test.loom", parse(t, "test.loom", src), mod, reg))
}

func analyzeOK(t *testing.T, src string) *Result {
	t.Helper()
	res := analyze(t, src)
	if res.Diagnostics.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", res.Diagnostics.Error())
	}
	return res
}

func findFunc(t *testing.T, n ast.Node, name string) *ast.FuncDecl {
	t.Helper()
	var found *ast.FuncDecl
	ast.Walk(n, func(n ast.Node) bool {
		if fn, ok := n.(*ast.FuncDecl); ok && fn.Name == name {
			found = fn
		}
		return found == nil
	})
	if found == nil {
		t.Fatalf("function %s not found in\n%s", name, ast.Dump(n))
	}
	return found
}

func kinds(ch *ast.Chain) []string {
	var out []string
	for _, k := range ch.Kids {
		switch k := k.(type) {
		case *ast.Call:
			out = append(out, k.Kind.String())
		default:
			out = append(out, fmt.Sprintf("%T", k))
		}
	}
	return out
}

func TestValidProgram(t *testing.T) {
	analyzeOK(t, `
import "std/math";

enum State { Idle = 0, Busy = 1 }

interface IShape { func float Area(); }

class Shape : IShape {
	float scale;
	virtual func float Area() { return 0.0; }
}

class Square : Shape {
	float side;
	override func float Area() { return this.side * this.side * scale; }
}

int counter = 10;
static float half = 0.5;

func float total([]IShape shapes, float bonus = 1.0) {
	float sum = 0.0;
	for (int i = 0; i < shapes.Count; i += 1) {
		sum += shapes[i].Area();
	}
	return sum + bonus;
}

func int, string pair() { return 1, "one"; }

coro func tick(float dt) {
	yield wait(dt);
	yield while(counter > 0);
	paral {
		yield;
		yield wait(0.1);
	}
}

func main() {
	[]IShape shapes = [new Square { side: 2.0 }];
	float t = total(shapes);
	int n;
	string s;
	n, s = pair();
	[string]int m = [["a", 1]];
	m["b"] = 2;
	State st = State.Busy;
	if (st == State.Busy && m.Contains("a")) {
		trace("busy");
	}
	int id = start(coro func() { yield wait(1.0); });
	float r = Sqrt(4.0);
	Shape sh = (Shape)shapes[0];
	if (shapes[0] is Square) {
		counter -= 1;
	}
}
`)
}

func TestChainResolution(t *testing.T) {
	res := analyzeOK(t, `
class Foo { int Field; }
class Obj {
	func []Foo Method(int x) { return [new Foo]; }
}
func test(Obj obj, int x) {
	int v = obj.Method(x)[0].Field;
}
`)
	fn := findFunc(t, res.AST, "test")
	decl := fn.Body().Kids[0].(*ast.VarDecl)
	ch := decl.Kids[0].(*ast.Chain)

	want := []string{"read_var", "method", "arr_idx", "read_field"}
	if got := kinds(ch); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("chain = %v, want %v", got, want)
	}
	if m := ch.Kids[1].(*ast.Call); m.Args.Count() != 1 {
		t.Errorf("method args = %d, want 1", m.Args.Count())
	}
	if ch.Type != types.Int {
		t.Errorf("chain type = %v, want int", ch.Type)
	}
	if fn.LocalsNum != 3 {
		t.Errorf("LocalsNum = %d, want 3", fn.LocalsNum)
	}
}

func TestSemanticErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing return", `func int f() { }`, "matching return statement not found"},
		{"if without else", `func int f(bool c) { if (c) { return 1; } }`, "matching return statement not found"},
		{"unresolved", `func f() { g(); }`, "symbol 'g' not resolved"},
		{"incompatible init", `func f() { int x = "s"; }`, "incompatible types: 'int' and 'string'"},
		{"break outside loop", `func f() { break; }`, "'break' is not within a loop"},
		{"break across defer", `func f() { while (true) { defer { break; } } }`, "can't leave a defer block"},
		{"return in defer", `func f() { defer { return; } }`, "return is not allowed in a defer block"},
		{"coro without yield", `coro func f() { }`, "has no yield"},
		{"yield in plain func", `func f() { yield; }`, "yield is only allowed in coro functions"},
		{"coro call without yield", `coro func g() { yield; } coro func f() { yield; g(); }`, "coro function 'g' must be called with yield"},
		{"yield plain call", `func g() { } coro func f() { yield g(); }`, "'g' is not a coro function"},
		{"too many args", `func g(int a) { } func f() { g(1, 2); }`, "too many arguments"},
		{"missing arg", `func g(int a, int b) { } func f() { g(1); }`, "missing argument 'b'"},
		{"unknown named arg", `func g(int a) { } func f() { g(b: 1); }`, "no parameter named 'b'"},
		{"missing ref", `func g(ref int a) { } func f() { int x = 1; g(x); }`, "must be passed with 'ref'"},
		{"ref of expression", `func g(ref int a) { } func f() { g(ref 1); }`, "only local variables can be passed by 'ref'"},
		{"duplicate func", `func f() { } func f() { }`, "symbol 'f' is already defined"},
		{"duplicate local", `func f() { int x; int x; }`, "variable 'x' is already defined"},
		{"method without instance", `class A { func M() { } } func f() { A.M(); }`, "without an instance"},
		{"self inheritance", `class A : A { }`, "self inheritance is not allowed"},
		{"inheritance cycle", `class A : B { } class B : A { }`, "inheritance cycle"},
		{"missing iface method", `interface I { func M(); } class A : I { }`, "doesn't implement interface 'I' method 'M'"},
		{"override non-virtual", `class A { func M() { } } class B : A { override func M() { } }`, "base method 'M' is not virtual"},
		{"hide without override", `class A { virtual func M() { } } class B : A { func M() { } }`, "mark it override"},
		{"override nothing", `class A { override func M() { } }`, "overrides nothing"},
		{"infer from null", `func f() { var x = null; }`, "can't infer a type from null"},
		{"multi-assign field", `func int, int g() { return 1, 2; } class A { int x; } func f(A a) { a.x, a.x = g(); }`, "targets must be variables"},
		{"read-only count", `func f([]int a) { a.Count = 1; }`, "'Count' is read-only"},
		{"call non-function", `func f() { int x = 1; x(); }`, "'int' is not callable"},
		{"new interface", `interface I { } func f() { var x = new I; }`, "can't create an instance of 'I'"},
		{"bad condition", `func f() { if (1) { } }`, "condition must be bool"},
		{"void value", `func g() { } func f() { int x = g(); }`, "can't be used as a value"},
		{"return count", `func int, int f() { return 1; }`, "incompatible types"},
		{"unknown member", `class A { } func f(A a) { a.b = 1; }`, "'A' has no member 'b'"},
		{"assign to call", `func int g() { return 1; } func f() { g() = 2; }`, "invalid assignment target"},
		{"non-trailing default", `func g(int a = 1, int b) { }`, "missing default value for parameter 'b'"},
		{"this outside method", `func f() { var x = this; }`, "'this' is only available in methods"},
		{"unknown type", `func f(Missing m) { }`, "symbol 'Missing' not resolved"},
		{"global var inference", `var g = 1;`, "needs an explicit type"},
		{"compound index call", `func int next() { return 0; } func f([]int a) { a[next()] += 1; }`, "compound assignment target can't contain a call"},
		{"compound call receiver", `class A { int x; } func A get() { return new A; } func f() { get().x += 1; }`, "compound assignment target can't contain a call"},
		{"compound nested call", `func int next() { return 0; } func f([][]int a) { a[0][1 + next()] -= 2; }`, "compound assignment target can't contain a call"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := analyze(t, tt.src)
			if !res.Diagnostics.HasErrors() {
				t.Fatalf("expected an error containing %q", tt.want)
			}
			if msg := res.Diagnostics.Error(); !strings.Contains(msg, tt.want) {
				t.Errorf("errors:\n%s\nwant one containing %q", msg, tt.want)
			}
		})
	}
}

func TestDefaultArgs(t *testing.T) {
	res := analyzeOK(t, `
func g(int a, int b = 1, int c = 2) { }
func f() {
	g(1, c: 3);
	g(1);
	g(c: 5, a: 4, b: 6);
}
`)
	body := findFunc(t, res.AST, "f").Body()
	call := func(i int) *ast.Call {
		ch := body.Kids[i].(*ast.Chain)
		return ch.Kids[len(ch.Kids)-1].(*ast.Call)
	}

	c := call(0)
	if c.Args.Count() != 3 || !c.Args.DefaultUsed(0) || c.Args.DefaultUsed(1) {
		t.Errorf("g(1, c: 3): count=%d mask=%v,%v", c.Args.Count(), c.Args.DefaultUsed(0), c.Args.DefaultUsed(1))
	}
	if lit, ok := c.Kids[1].(*ast.Literal); !ok || lit.Kind != ast.LitNull {
		t.Errorf("skipped default must be a null placeholder, got %s", ast.Describe(c.Kids[1]))
	}

	c = call(1)
	if c.Args.Count() != 1 || !c.Args.DefaultUsed(0) || !c.Args.DefaultUsed(1) || len(c.Kids) != 1 {
		t.Errorf("g(1): count=%d kids=%d", c.Args.Count(), len(c.Kids))
	}

	c = call(2)
	if c.Args.Count() != 3 || c.Args.DefaultUsed(0) || c.Args.DefaultUsed(1) {
		t.Errorf("g(all named): count=%d", c.Args.Count())
	}
	// Arguments are reordered by parameter position.
	if lit := c.Kids[0].(*ast.Literal); lit.Int != 4 {
		t.Errorf("first argument = %d, want 4", lit.Int)
	}
}

func TestMethodDispatch(t *testing.T) {
	res := analyzeOK(t, `
interface I { func int N(); }
class A : I {
	virtual func int M() { return 1; }
	func int N() { return 2; }
}
class B : A {
	override func int M() { return base.M() + 1; }
}
func f(A a, I i) {
	int x = a.M();
	int y = a.N();
	int z = i.N();
}
`)
	body := findFunc(t, res.AST, "f").Body()
	want := []ast.CallKind{ast.MethodVirtual, ast.Method, ast.MethodIface}
	for i, k := range want {
		ch := body.Kids[i].(*ast.VarDecl).Kids[0].(*ast.Chain)
		if got := ch.Kids[1].(*ast.Call).Kind; got != k {
			t.Errorf("call %d kind = %s, want %s", i, got, k)
		}
	}

	m := findFunc(t, res.AST, "B.M")
	ret := m.Body().Kids[0].(*ast.Return)
	ch := ret.Kids[0].(*ast.BinaryOp).Kids[0].(*ast.Chain)
	if _, ok := ch.Kids[0].(*ast.TypeCast); !ok {
		t.Fatalf("base call must start with an upcast, got %v", kinds(ch))
	}
	if got := ch.Kids[1].(*ast.Call).Kind; got != ast.Method {
		t.Errorf("base call kind = %s, want method", got)
	}
}

func TestEnumItemIsLiteral(t *testing.T) {
	res := analyzeOK(t, `
enum Color { Red = 1, Green = -2 }
func f() { Color c = Color.Green; }
`)
	decl := findFunc(t, res.AST, "f").Body().Kids[0].(*ast.VarDecl)
	lit, ok := decl.Kids[0].(*ast.Chain).Kids[0].(*ast.Literal)
	if !ok || lit.Int != -2 {
		t.Fatalf("enum item = %s", ast.Dump(decl))
	}
}

func TestLambdaCaptures(t *testing.T) {
	res := analyzeOK(t, `
func f() {
	int a = 1;
	int x = 2;
	var g = func int(int y) { return x + y; };
}
`)
	decl := findFunc(t, res.AST, "f").Body().Kids[2].(*ast.VarDecl)
	lambda := decl.Kids[0].(*ast.LambdaDecl)
	if len(lambda.Upvals) != 1 {
		t.Fatalf("upvals = %v", lambda.Upvals)
	}
	up := lambda.Upvals[0]
	if up.Name != "x" || up.Src != 1 || up.Dst != 1 || up.Mode != ast.UpvalRef {
		t.Errorf("upval = %+v", up)
	}
	if lambda.LocalsNum != 2 {
		t.Errorf("lambda LocalsNum = %d, want 2", lambda.LocalsNum)
	}
}

func TestLowering(t *testing.T) {
	res := analyzeOK(t, `
coro func f(bool c) {
	for (int i = 0; i < 3; i += 1) {
		continue;
	}
	yield while(c);
}
`)
	body := findFunc(t, res.AST, "f").Body()
	want := strings.Join([]string{
		"block func",
		"  block seq",
		"    var int i",
		"      lit 0",
		"    block while",
		"      binary <",
		"        chain int",
		"          call read_var i args=0",
		"        lit 3",
		"      block seq",
		"        continue",
		"      block seq",
		"        chain int",
		"          call write_var i args=0",
		"            binary +",
		"              chain int",
		"                call read_var i args=0",
		"              lit 1",
		"  block while",
		"    chain bool",
		"      call read_var c args=0",
		"    block seq",
		"      yield",
	}, "\n")
	if got := strings.TrimSpace(ast.Dump(body)); got != want {
		t.Errorf("lowered body:\n%s\nwant:\n%s", got, want)
	}
}

func TestCompoundAssignPlainTargets(t *testing.T) {
	analyzeOK(t, `
class A { int x; []int xs; }
func f([]int a, int i, A obj) {
	a[i + 1] += 2;
	obj.x *= 3;
	obj.xs[i] -= a[0];
}
`)
}

type mapResolver map[string]string

func (m mapResolver) ResolveImport(_, path string) (string, error) {
	if name, ok := m[path]; ok {
		return name, nil
	}
	return "", fmt.Errorf("no module for %q", path)
}

func TestMultiFile(t *testing.T) {
	reg := types.NewStdRegistry()
	srcA := `
namespace game {
	class Unit { int hp; }
	static func int secret() { return 1; }
}
`
	srcB := `
import "a";
namespace game {
	func int Hp(Unit u) { return u.hp; }
}
func int Leak() { return game.secret(); }
`
	a := New("a.loom", parse(t, "a.loom", srcA), types.NewModule(reg, "a", "a.loom"), reg)
	b := New("b.loom", parse(t, "b.loom", srcB), types.NewModule(reg, "b", "b.loom"), reg)
	RunPhases(reg, []Unit{a, b}, mapResolver{"a": "a"})

	if errs := a.Result().Diagnostics; errs.HasErrors() {
		t.Fatalf("a: %s", errs.Error())
	}
	errs := b.Result().Diagnostics
	if errs.Len() != 1 || !strings.Contains(errs.Error(), "'game.secret' not resolved") {
		t.Fatalf("b: want only the static symbol to be hidden, got:\n%s", errs.Error())
	}
	if imp, ok := b.Result().AST.Kids[0].(*ast.Import); !ok || imp.Module != "a" {
		t.Errorf("first node of b must be its import, got %s", ast.Describe(b.Result().AST.Kids[0]))
	}
}

func TestImportErrors(t *testing.T) {
	reg := types.NewStdRegistry()
	src := `
import "missing";
import "std/math";
import "std/math";
`
	a := New("a.loom", parse(t, "a.loom", src), types.NewModule(reg, "a", "a.loom"), reg)
	RunPhases(reg, []Unit{a}, mapResolver{})
	msg := a.Result().Diagnostics.Error()
	for _, want := range []string{"invalid import 'missing'", "already imported"} {
		if !strings.Contains(msg, want) {
			t.Errorf("errors:\n%s\nwant one containing %q", msg, want)
		}
	}
}

func TestCachedUnit(t *testing.T) {
	reg := types.NewStdRegistry()
	srcA := `
class Unit { int hp; virtual func int Hp() { return this.hp; } }
int count = 3;
`
	a := New("a.loom", parse(t, "a.loom", srcA), types.NewModule(reg, "a", "a.loom"), reg)
	RunPhases(reg, []Unit{a}, nil)
	if a.Result().Diagnostics.HasErrors() {
		t.Fatal(a.Result().Diagnostics.Error())
	}
	rec := types.ExportModule(a.Module())

	srcB := `
import "a";
class Hero : Unit { override func int Hp() { return base.Hp() + count; } }
`
	cached := NewCached("a.loom", types.NewModule(reg, "a", "a.loom"), rec, nil)
	b := New("b.loom", parse(t, "b.loom", srcB), types.NewModule(reg, "b", "b.loom"), reg)
	RunPhases(reg, []Unit{cached, b}, mapResolver{"a": "a"})

	if errs := cached.Result().Diagnostics; errs.HasErrors() {
		t.Fatalf("cached: %s", errs.Error())
	}
	if errs := b.Result().Diagnostics; errs.HasErrors() {
		t.Fatalf("b: %s", errs.Error())
	}
	if cached.Result().AST != nil {
		t.Error("cached units have no tree")
	}
}
