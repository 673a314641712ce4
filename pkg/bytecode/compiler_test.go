package bytecode

import (
	"bytes"
	"errors"
	"testing"

	"github.com/chazu/loom/analyzer"
	"github.com/chazu/loom/syntax"
	"github.com/chazu/loom/types"
)

func compile(t *testing.T, src string) *CompiledModule {
	t.Helper()
	tree, errs := syntax.Parse("test.loom", src)
	if errs.HasErrors() {
		t.Fatalf("parse:\n%s", errs.Error())
	}
	reg := types.NewStdRegistry()
	mod := types.NewModule(reg, "test", "test.loom")
	res := analyzer.Analyze(reg, analyzer.New("test.loom", tree, mod, reg))
	if res.Diagnostics.HasErrors() {
		t.Fatalf("analyze:\n%s", res.Diagnostics.Error())
	}
	return Compile(res.Module, res.AST)
}

func decode(t *testing.T, code []byte) []Decoded {
	t.Helper()
	ins, err := Decode(code)
	if err != nil {
		t.Fatal(err)
	}
	return ins
}

func ops(ins []Decoded) []Opcode {
	out := make([]Opcode, len(ins))
	for i, d := range ins {
		out[i] = d.Op
	}
	return out
}

func expectOps(t *testing.T, ins []Decoded, want ...Opcode) {
	t.Helper()
	got := ops(ins)
	if len(got) != len(want) {
		t.Fatalf("ops = %v\nwant %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("op %d = %s, want %s\nops = %v", i, got[i], want[i], got)
		}
	}
}

// expectTarget checks that instruction src lands on instruction dst; a dst
// equal to len(ins) means the end of the code.
func expectTarget(t *testing.T, ins []Decoded, code []byte, src, dst int) {
	t.Helper()
	target, ok := ins[src].Target()
	if !ok {
		t.Fatalf("%s at %d has no target", ins[src].Op, src)
	}
	want := len(code)
	if dst < len(ins) {
		want = ins[dst].Pos
	}
	if target != want {
		t.Errorf("%s #%d lands on %d, want %d (#%d)", ins[src].Op, src, target, want, dst)
	}
}

func count(ins []Decoded, op Opcode) int {
	n := 0
	for _, d := range ins {
		if d.Op == op {
			n++
		}
	}
	return n
}

func TestWhileBreakLayout(t *testing.T) {
	m := compile(t, `func f(bool c) { while (c) { break; } }`)
	ins := decode(t, m.Code)
	expectOps(t, ins, OpInitFrame, OpArgVar, OpGetVar, OpJumpZ, OpBreak, OpJump, OpReturn)
	expectTarget(t, ins, m.Code, 3, 6) // exit
	expectTarget(t, ins, m.Code, 4, 6) // break
	expectTarget(t, ins, m.Code, 5, 2) // back to the condition
}

func TestIfChainLayout(t *testing.T) {
	m := compile(t, `
func int f(int x) {
	if (x < 0) {
		return 0;
	} else if (x < 10) {
		return 1;
	} else {
		return 2;
	}
}`)
	ins := decode(t, m.Code)
	expectOps(t, ins,
		OpInitFrame, OpArgVar,
		OpGetVar, OpConstant, OpLt, OpJumpZ, OpConstant, OpReturnVal, OpJump,
		OpGetVar, OpConstant, OpLt, OpJumpZ, OpConstant, OpReturnVal, OpJump,
		OpConstant, OpReturnVal,
		OpReturn)
	expectTarget(t, ins, m.Code, 5, 9)
	expectTarget(t, ins, m.Code, 8, 18)
	expectTarget(t, ins, m.Code, 12, 16)
	expectTarget(t, ins, m.Code, 15, 18)
	if ins[3].Operands[0] != ins[6].Operands[0] {
		t.Error("the two 0 literals should share a constant")
	}
}

func TestShortCircuitLayout(t *testing.T) {
	m := compile(t, `func bool f(bool a, bool b) { return a && b || a; }`)
	ins := decode(t, m.Code)
	expectOps(t, ins,
		OpInitFrame, OpArgVar, OpArgVar,
		OpGetVar, OpJumpPeekZ, OpGetVar, OpJumpPeekNZ, OpGetVar,
		OpReturnVal)
	expectTarget(t, ins, m.Code, 4, 6)
	expectTarget(t, ins, m.Code, 6, 8)
	if ins[1].Operands[0] != 1 || ins[2].Operands[0] != 0 {
		t.Errorf("arguments popped into %d, %d; want 1, 0", ins[1].Operands[0], ins[2].Operands[0])
	}
}

func TestDoWhileContinueLayout(t *testing.T) {
	m := compile(t, `
func f(int n) {
	do {
		n -= 1;
		if (n == 5) { continue; }
	} while (n > 0);
}`)
	ins := decode(t, m.Code)
	expectOps(t, ins,
		OpInitFrame, OpArgVar,
		OpGetVar, OpConstant, OpSub, OpSetVar, // n -= 1
		OpGetVar, OpConstant, OpEq, OpJumpZ, OpContinue,
		OpGetVar, OpConstant, OpGt, OpJumpZ, OpJump,
		OpReturn)
	expectTarget(t, ins, m.Code, 9, 11)  // if skips the continue
	expectTarget(t, ins, m.Code, 10, 11) // continue lands on the condition
	expectTarget(t, ins, m.Code, 14, 16) // exit
	expectTarget(t, ins, m.Code, 15, 2)  // back to the body
}

// TestJumpTargetsAreInstructionBoundaries covers every control construct:
// each jump, skip and block size must land on an instruction start or the
// end of the code.
func TestJumpTargetsAreInstructionBoundaries(t *testing.T) {
	m := compile(t, `
coro func f(int n, bool a) {
	for (int i = 0; i < n; i += 1) {
		if (i == 2) { continue; } else if (a && i > 3 || !a) { break; }
		int j = 0;
		do { j += 1; } while (j < i);
		while (j > 0) { j -= 1; if (j == 1) { break; } }
	}
	paral {
		yield;
		seq { yield while (a); }
	}
	defer { trace("done"); }
	var g = func int(int x = 3) { return x + n; };
}`)
	ins := decode(t, m.Code)
	starts := map[int]bool{len(m.Code): true}
	for _, d := range ins {
		starts[d.Pos] = true
	}
	jumps := 0
	for _, d := range ins {
		if target, ok := d.Target(); ok {
			jumps++
			if !starts[target] {
				t.Errorf("%s at %d lands on %d, not an instruction start", d.Op, d.Pos, target)
			}
		}
	}
	if jumps < 15 {
		t.Errorf("only %d jumps decoded", jumps)
	}
}

func TestBlockHeaderElision(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		kinds []int64
	}{
		{"plain seq", `seq { trace("a"); }`, nil},
		{"nested seq", `seq { seq { trace("a"); } }`, nil},
		{"loop body", `while (false) { trace("a"); }`, nil},
		{"loop with jumps", `while (true) { seq { if (false) { continue; } break; } }`, nil},
		{"do-while body", `do { seq { trace("a"); } } while (false);`, nil},
		{"paral wraps children", `paral { trace("a"); trace("b"); }`, []int64{5, 0, 0}},
		{"paral keeps seq child", `paral { seq { trace("a"); } }`, []int64{5, 0}},
		{"paral_all", `paral_all { trace("a"); }`, []int64{6, 0}},
		{"seq with defer", `seq { defer { trace("x"); } trace("a"); }`, []int64{0, 7}},
		{"seq around paral", `seq { paral { trace("a"); } }`, []int64{0, 5, 0}},
		{"top level defer", `defer { trace("x"); }`, []int64{7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := compile(t, "func f() { "+tt.body+" }")
			ins := decode(t, m.Code)
			var kinds []int64
			for i, d := range ins {
				if d.Op != OpBlock {
					continue
				}
				kinds = append(kinds, d.Operands[0])
				end, _ := d.Target()
				if end <= d.Pos || end > len(m.Code) {
					t.Errorf("block #%d spans to %d", i, end)
				}
			}
			if len(kinds) != len(tt.kinds) {
				t.Fatalf("block kinds = %v, want %v", kinds, tt.kinds)
			}
			for i := range kinds {
				if kinds[i] != tt.kinds[i] {
					t.Errorf("block kinds = %v, want %v", kinds, tt.kinds)
				}
			}
		})
	}
}

func TestDirectCallOptimization(t *testing.T) {
	m := compile(t, `
func int one() { return 1; }
func int two() { return one() + one(); }
func log() { trace("x"); }`)
	ins := decode(t, m.Code)
	if n := count(ins, OpGetFunc) + count(ins, OpCallPtr); n != 0 {
		t.Errorf("%d indirect call instructions left", n)
	}
	entry, ok := m.FuncPos("one")
	if !ok {
		t.Fatal("no address for one")
	}
	calls := 0
	for _, d := range ins {
		if d.Op == OpCall {
			calls++
			if int(d.Operands[0]) != entry {
				t.Errorf("CALL %d, want entry %d", d.Operands[0], entry)
			}
			if d.Operands[1] != 0 {
				t.Errorf("CALL args = %d, want 0", d.Operands[1])
			}
		}
	}
	if calls != 2 {
		t.Errorf("%d direct calls, want 2", calls)
	}
	for _, c := range m.Constants {
		if c.Kind == ConstFunc {
			t.Errorf("function constant %s left in the pool", c)
		}
	}
	if count(ins, OpCallNative) != 1 {
		t.Error("trace should be a native call")
	}
}

func TestFuncValueKeepsConstant(t *testing.T) {
	m := compile(t, `
func int one() { return 1; }
func int call(func int() f) { return f(); }
func int run() { return call(one); }`)
	ins := decode(t, m.Code)
	if count(ins, OpGetFunc) != 1 || count(ins, OpCallPtr) != 1 {
		t.Errorf("want one GET_FUNC for the value and one CALL_PTR in call, got %v", ops(ins))
	}
	found := false
	for _, c := range m.Constants {
		if c == FuncConst("test", "one") {
			found = true
		}
	}
	if !found {
		t.Errorf("function value constant missing from %v", m.Constants)
	}
}

func TestDefaultArgsLowering(t *testing.T) {
	m := compile(t, `func g(int a, int b = 2, int c = 3) { }`)
	ins := decode(t, m.Code)
	expectOps(t, ins,
		OpInitFrame,
		OpDefArg, OpConstant, OpArgVar,
		OpDefArg, OpConstant, OpArgVar,
		OpArgVar,
		OpReturn)
	if ins[1].Operands[0] != 1 || ins[4].Operands[0] != 0 {
		t.Errorf("default indexes = %d, %d; want 1, 0", ins[1].Operands[0], ins[4].Operands[0])
	}
	expectTarget(t, ins, m.Code, 1, 3)
	expectTarget(t, ins, m.Code, 4, 6)
}

func TestLambdaLayout(t *testing.T) {
	m := compile(t, `func f() { int x = 1; var g = func int() { return x; }; }`)
	ins := decode(t, m.Code)
	expectOps(t, ins,
		OpInitFrame, OpConstant, OpSetVar,
		OpLambda, OpInitFrame, OpGetVar, OpReturnVal,
		OpUseUpval, OpSetVar,
		OpReturn)
	expectTarget(t, ins, m.Code, 3, 7)
	up := ins[7].Operands
	if up[0] != 0 || up[1] != 0 || up[2] != 1 {
		t.Errorf("USE_UPVAL %v, want [0 0 1]", up)
	}
}

func TestCallKindsSelectOpcodes(t *testing.T) {
	m := compile(t, `
interface IShape { func float Area(); }

class Shape : IShape {
	float scale;
	virtual func float Area() { return this.scale; }
}

class Square : Shape {
	float side;
	override func float Area() { return base.Area() * side; }
}

int counter = 1;

func bump(ref int x, int by = 1) { x += by; }

coro func tick() {
	yield;
	yield wait(0.5);
}

func float run(IShape s) {
	Shape sh = new Square { side: 2.0 };
	[]int xs = [1, 2];
	[string]int m = [["a", 1]];
	m["b"] = xs[0];
	int n = xs.Count;
	bump(ref n);
	counter = counter + n;
	var add = func int(int y) { return y + n; };
	if (sh is Square) { trace("sq"); }
	return sh.Area() + s.Area();
}`)
	ins := decode(t, m.Code)
	for _, op := range []Opcode{
		OpGetAttr, OpTypeCast, OpCallMethod, OpCallMethodVirt, OpCallMethodIface,
		OpCallMethodNative, OpNew, OpSetAttrInplace, OpArrAddInplace, OpMapAddInplace,
		OpMapIdxW, OpArrIdx, OpRefVar, OpArgRef, OpDefArg, OpCall, OpGetGVar, OpSetGVar,
		OpLambda, OpUseUpval, OpTypeIs, OpCallNative, OpYield,
	} {
		if count(ins, op) == 0 {
			t.Errorf("no %s emitted", op)
		}
	}

	init := decode(t, m.Init)
	expectOps(t, init, OpConstant, OpSetGVar, OpReturn)

	for _, name := range []string{"Shape.Area", "Square.Area", "bump", "tick", "run"} {
		if _, ok := m.FuncPos(name); !ok {
			t.Errorf("no address for %s", name)
		}
	}
}

func TestImportsGoToInit(t *testing.T) {
	m := compile(t, `
import "std/math";
float root = Sqrt(2.0);`)
	init := decode(t, m.Init)
	expectOps(t, init, OpImport, OpConstant, OpCallNative, OpSetGVar, OpReturn)
	if c := m.Constants[init[0].Operands[0]]; c != ModuleConst("std/math") {
		t.Errorf("import constant = %s", c)
	}
	if len(m.Code) != 0 {
		t.Errorf("code stream should be empty, got %d bytes", len(m.Code))
	}
}

func TestModuleRoundTrip(t *testing.T) {
	src := `
class Unit { int hp; virtual func int Hp() { return hp; } }
int count = 3;
func int total([]Unit units) {
	int sum = 0;
	for (int i = 0; i < units.Count; i += 1) { sum += units[i].Hp(); }
	return sum + count;
}`
	m := compile(t, src)
	data, err := m.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	back, err := UnmarshalModule(data)
	if err != nil {
		t.Fatal(err)
	}
	again, err := back.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, again) {
		t.Error("module changed across a round trip")
	}
	if back.Name != "test" || len(back.Funcs) != len(m.Funcs) || !bytes.Equal(back.Code, m.Code) {
		t.Errorf("decoded module differs: %+v", back)
	}

	// Compilation is deterministic.
	other, err := compile(t, src).Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, other) {
		t.Error("two compilations of the same source differ")
	}
}

func TestUnmarshalRejectsOtherVersions(t *testing.T) {
	m := &CompiledModule{Version: FormatVersion + 1, Name: "x"}
	data, err := m.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := UnmarshalModule(data); !errors.Is(err, ErrVersion) {
		t.Errorf("err = %v, want ErrVersion", err)
	}
	if _, err := UnmarshalModule([]byte{0xff, 0x00}); err == nil {
		t.Error("garbage should not decode")
	}
}
