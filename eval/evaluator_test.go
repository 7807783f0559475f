package eval

import (
	"testing"
	"time"

	"github.com/sparrowsheet/calcengine/ast"
	"github.com/sparrowsheet/calcengine/compile"
	"github.com/sparrowsheet/calcengine/functions"
	"github.com/sparrowsheet/calcengine/ref"
	"github.com/sparrowsheet/calcengine/value"
)

// memCtx is a bare-bones Context backed by a map, used only by these
// tests — the graph package supplies the production Context.
type memCtx struct {
	cells map[ref.CellAddr]value.Value
	sheet uint32
	cell  ref.CellAddr
	scope []map[string]value.Value
	depth int
}

func newMemCtx() *memCtx {
	return &memCtx{cells: map[ref.CellAddr]value.Value{}, scope: []map[string]value.Value{{}}}
}

func (c *memCtx) CellValue(sheetID uint32, addr ref.CellAddr) value.Value {
	if v, ok := c.cells[addr]; ok {
		return v
	}
	return value.Blank{}
}

func (c *memCtx) IterRange(rect ref.Rectangle, yield func(value.Value) bool) {
	for r := rect.StartRow; r <= rect.EndRow; r++ {
		for col := rect.StartCol; col <= rect.EndCol; col++ {
			if !yield(c.CellValue(rect.SheetID, ref.CellAddr{Row: r, Col: col})) {
				return
			}
		}
	}
}

func (c *memCtx) RangeDims(rect ref.Rectangle) (int, int) {
	return int(rect.EndRow-rect.StartRow) + 1, int(rect.EndCol-rect.StartCol) + 1
}

func (c *memCtx) ResolveSheet(name string) (uint32, bool) { return 0, name == "Sheet1" }
func (c *memCtx) ResolveName(name string, scopeSheet uint32) (*CompiledName, bool) {
	return nil, false
}
func (c *memCtx) CurrentSheet() uint32       { return c.sheet }
func (c *memCtx) CurrentCell() ref.CellAddr  { return c.cell }
func (c *memCtx) Now() time.Time             { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
func (c *memCtx) NextRandom() float64        { return 0.5 }
func (c *memCtx) PushScope()                 { c.scope = append(c.scope, map[string]value.Value{}) }
func (c *memCtx) PopScope()                  { c.scope = c.scope[:len(c.scope)-1] }
func (c *memCtx) SetLocal(n string, v value.Value) {
	c.scope[len(c.scope)-1][n] = v
}
func (c *memCtx) GetLocal(n string) (value.Value, bool) {
	for i := len(c.scope) - 1; i >= 0; i-- {
		if v, ok := c.scope[i][n]; ok {
			return v, true
		}
	}
	return nil, false
}
func (c *memCtx) RecordReference(ref.Rectangle) {}
func (c *memCtx) Depth() int                    { return c.depth }
func (c *memCtx) PushDepth() bool {
	if c.depth >= MaxLambdaDepth {
		return false
	}
	c.depth++
	return true
}
func (c *memCtx) PopDepth() { c.depth-- }

func compileFormula(t *testing.T, formula string, origin ref.CellAddr) *compile.Expr {
	t.Helper()
	e, err := ast.Parse(formula, ast.ParseContext{Origin: origin, ResolveSheet: func(string) (uint32, bool) { return 0, true }})
	if err != nil {
		t.Fatalf("parse %q: %v", formula, err)
	}
	return compile.Compile(e, &compile.Resolver{Functions: functions.DefaultRegistry()})
}

func TestEvalArithmetic(t *testing.T) {
	ctx := newMemCtx()
	e := compileFormula(t, "=1+2*3", ref.CellAddr{})
	got := New().Eval(ctx, e)
	if got.(float64) != 7 {
		t.Fatalf("got %v, want 7", got)
	}
}

func TestEvalCellRefAndSum(t *testing.T) {
	ctx := newMemCtx()
	ctx.cells[ref.CellAddr{Row: 0, Col: 0}] = 10.0
	ctx.cells[ref.CellAddr{Row: 1, Col: 0}] = 20.0
	ctx.cell = ref.CellAddr{Row: 2, Col: 0}
	e := compileFormula(t, "=SUM(A1:A2)", ctx.cell)
	got := New().Eval(ctx, e)
	if got.(float64) != 30 {
		t.Fatalf("got %v, want 30", got)
	}
}

func TestEvalArrayBroadcast(t *testing.T) {
	ctx := newMemCtx()
	e := compileFormula(t, "={1,2,3}*2", ref.CellAddr{})
	got := New().Eval(ctx, e)
	arr, ok := got.(*value.Array)
	if !ok {
		t.Fatalf("got %T, want *value.Array", got)
	}
	if arr.At(0, 1).(float64) != 4 {
		t.Fatalf("arr[0][1] = %v, want 4", arr.At(0, 1))
	}
}

func TestEvalDivByZero(t *testing.T) {
	ctx := newMemCtx()
	e := compileFormula(t, "=1/0", ref.CellAddr{})
	got := New().Eval(ctx, e)
	errv, ok := value.IsError(got)
	if !ok || errv.Kind != value.ErrDiv0 {
		t.Fatalf("got %v, want #DIV/0!", got)
	}
}

func TestEvalLambda(t *testing.T) {
	ctx := newMemCtx()
	e := compileFormula(t, "=LAMBDA(x,x+1)(5)", ref.CellAddr{})
	got := New().Eval(ctx, e)
	if got.(float64) != 6 {
		t.Fatalf("got %v, want 6", got)
	}
}
