package calcengine

import (
	"context"
	"testing"

	"github.com/sparrowsheet/calcengine/graph"
	"github.com/sparrowsheet/calcengine/internal/config"
	"github.com/sparrowsheet/calcengine/ref"
	"github.com/sparrowsheet/calcengine/rewrite"
	"github.com/sparrowsheet/calcengine/value"
)

func addr(row, col uint32) ref.CellAddr { return ref.CellAddr{Row: row, Col: col} }

func TestSetCellValueAndGet(t *testing.T) {
	e := New()
	e.AddSheet("Sheet1")
	e.SetCellValue("Sheet1", addr(0, 0), 42.0)

	got := e.GetCellValue("Sheet1", addr(0, 0))
	if n, ok := got.(float64); !ok || n != 42 {
		t.Fatalf("got %#v, want 42", got)
	}
}

func TestSetCellFormulaRecalculates(t *testing.T) {
	e := New()
	e.AddSheet("Sheet1")
	e.SetCellValue("Sheet1", addr(0, 0), 10.0)
	e.SetCellValue("Sheet1", addr(1, 0), 20.0)
	if err := e.SetCellFormula("Sheet1", addr(2, 0), "=A1+A2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := e.RecalculateSingleThreaded(context.Background()); err != nil {
		t.Fatalf("recalculate: %v", err)
	}

	got := e.GetCellValue("Sheet1", addr(2, 0))
	if n, ok := got.(float64); !ok || n != 30 {
		t.Fatalf("got %#v, want 30", got)
	}
}

func TestSetCellFormulaPropagatesToDependents(t *testing.T) {
	e := New()
	e.AddSheet("Sheet1")
	e.SetCellValue("Sheet1", addr(0, 0), 1.0)
	if err := e.SetCellFormula("Sheet1", addr(1, 0), "=A1*2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.SetCellFormula("Sheet1", addr(2, 0), "=A2+1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.RecalculateSingleThreaded(context.Background()); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if got := e.GetCellValue("Sheet1", addr(2, 0)); got != 3.0 {
		t.Fatalf("got %#v, want 3", got)
	}

	e.SetCellValue("Sheet1", addr(0, 0), 5.0)
	if err := e.RecalculateSingleThreaded(context.Background()); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if got := e.GetCellValue("Sheet1", addr(2, 0)); got != 11.0 {
		t.Fatalf("got %#v after edit, want 11", got)
	}
}

func TestSetCellFormulaUnknownFunctionIsNameError(t *testing.T) {
	e := New()
	e.AddSheet("Sheet1")
	if err := e.SetCellFormula("Sheet1", addr(0, 0), "=NOSUCHFUNC(1)"); err != nil {
		t.Fatalf("unexpected parse/compile error: %v", err)
	}
	if err := e.RecalculateSingleThreaded(context.Background()); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	got := e.GetCellValue("Sheet1", addr(0, 0))
	if _, ok := value.IsError(got); !ok {
		t.Fatalf("got %#v, want a #NAME? error", got)
	}
}

func TestCircularReferenceKeepsZeroAndFlagsInCycle(t *testing.T) {
	e := New()
	e.AddSheet("Sheet1")
	if err := e.SetCellFormula("Sheet1", addr(0, 0), "=A2"); err != nil {
		t.Fatal(err)
	}
	if err := e.SetCellFormula("Sheet1", addr(1, 0), "=A1"); err != nil {
		t.Fatal(err)
	}
	if err := e.RecalculateSingleThreaded(context.Background()); err != nil {
		t.Fatalf("recalculate: %v", err)
	}

	// Neither cell has ever held a real value: the cycle rule starts
	// them at 0, not a #REF! error.
	if got := e.GetCellValue("Sheet1", addr(0, 0)); got != 0.0 {
		t.Fatalf("got %#v at A1, want 0 on first evaluation", got)
	}
	if got := e.GetCellValue("Sheet1", addr(1, 0)); got != 0.0 {
		t.Fatalf("got %#v at A2, want 0 on first evaluation", got)
	}

	sheetID, _ := e.ResolveSheet("Sheet1")
	n1, ok := e.graph.Node(graph.AddrOf(sheetID, addr(0, 0)))
	if !ok || !n1.InCycle {
		t.Fatal("expected A1 flagged in_cycle")
	}
	n2, ok := e.graph.Node(graph.AddrOf(sheetID, addr(1, 0)))
	if !ok || !n2.InCycle {
		t.Fatal("expected A2 flagged in_cycle")
	}
}

func TestCircularReferenceKeepsLastValueOnSubsequentRecalc(t *testing.T) {
	e := New()
	e.AddSheet("Sheet1")
	e.SetCellValue("Sheet1", addr(0, 0), 5.0)
	if err := e.SetCellFormula("Sheet1", addr(1, 0), "=A1"); err != nil {
		t.Fatal(err)
	}
	if err := e.RecalculateSingleThreaded(context.Background()); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if got := e.GetCellValue("Sheet1", addr(1, 0)); got != 5.0 {
		t.Fatalf("got %#v at A2, want 5", got)
	}

	// Introduce a cycle: A1 now refers back to A2. A1 already held a
	// real value (5), so the cycle rule must keep it rather than reset
	// to 0 or a #REF! error.
	if err := e.SetCellFormula("Sheet1", addr(0, 0), "=A2"); err != nil {
		t.Fatal(err)
	}
	if err := e.RecalculateSingleThreaded(context.Background()); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if got := e.GetCellValue("Sheet1", addr(0, 0)); got != 5.0 {
		t.Fatalf("got %#v at A1, want last value 5 preserved", got)
	}
}

func TestIterativeCalcConvergesCycle(t *testing.T) {
	e := New()
	e.AddSheet("Sheet1")
	if err := e.SetCalcSettings(config.CalcSettings{
		CalculationMode: config.Automatic,
		Iterative:       config.IterativeSettings{Enabled: true, MaxIterations: 100, MaxChange: 0.0001},
	}); err != nil {
		t.Fatalf("set calc settings: %v", err)
	}
	// A1 = A2/2 + 1, A2 = A1. Fixed point: a1 = a1/2 + 1 -> a1 = 2.
	if err := e.SetCellFormula("Sheet1", addr(0, 0), "=A2/2+1"); err != nil {
		t.Fatal(err)
	}
	if err := e.SetCellFormula("Sheet1", addr(1, 0), "=A1"); err != nil {
		t.Fatal(err)
	}
	if err := e.RecalculateSingleThreaded(context.Background()); err != nil {
		t.Fatalf("recalculate: %v", err)
	}

	got, ok := e.GetCellValue("Sheet1", addr(0, 0)).(float64)
	if !ok {
		t.Fatalf("got %#v at A1, want a float64", e.GetCellValue("Sheet1", addr(0, 0)))
	}
	if diff := got - 2.0; diff < -0.01 || diff > 0.01 {
		t.Fatalf("got %v at A1, want close to 2 (fixed point of a1/2+1)", got)
	}
}

func TestCellWidthInOwnCellIsNotACycle(t *testing.T) {
	e := New()
	e.AddSheet("Sheet1")
	if err := e.SetCellFormula("Sheet1", addr(0, 0), `=CELL("width",A1)`); err != nil {
		t.Fatal(err)
	}
	if err := e.RecalculateSingleThreaded(context.Background()); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if got := e.GetCellValue("Sheet1", addr(0, 0)); got != 8.0 {
		t.Fatalf("got %#v at A1, want 8 (default column width)", got)
	}
	sheetID, _ := e.ResolveSheet("Sheet1")
	n, ok := e.graph.Node(graph.AddrOf(sheetID, addr(0, 0)))
	if !ok || n.InCycle {
		t.Fatal("CELL(\"width\",A1) referencing its own cell's address must not be flagged in_cycle")
	}
}

func TestOffsetTracksDynamicPrecedentAndInvalidatesOnTargetMove(t *testing.T) {
	e := New()
	e.AddSheet("Sheet1")
	e.SetCellValue("Sheet1", addr(0, 0), 1.0) // A1
	e.SetCellValue("Sheet1", addr(2, 0), 3.0) // A3
	e.SetCellValue("Sheet1", addr(2, 1), 0.0) // B3: offset amount
	if err := e.SetCellFormula("Sheet1", addr(0, 1), "=OFFSET(A1,B3,0)"); err != nil { // B1
		t.Fatal(err)
	}
	if err := e.RecalculateSingleThreaded(context.Background()); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if got := e.GetCellValue("Sheet1", addr(0, 1)); got != 1.0 {
		t.Fatalf("got %#v at B1, want 1 (OFFSET(A1,0,0) = A1)", got)
	}

	sheetID, _ := e.ResolveSheet("Sheet1")
	n, ok := e.graph.Node(graph.AddrOf(sheetID, addr(0, 1)))
	if !ok {
		t.Fatal("expected B1 node to exist")
	}
	wantTarget := graph.RangeKey{Sheet: sheetID, StartRow: 0, StartCol: 0, EndRow: 0, EndCol: 0}
	if _, ok := n.DynamicRangePrecedents[wantTarget]; !ok {
		t.Fatalf("expected B1's dynamic precedents to contain A1, got %+v", n.DynamicRangePrecedents)
	}

	// Retarget the offset to A3, two rows down.
	e.SetCellValue("Sheet1", addr(2, 1), 2.0) // B3 = 2
	if err := e.RecalculateSingleThreaded(context.Background()); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if got := e.GetCellValue("Sheet1", addr(0, 1)); got != 3.0 {
		t.Fatalf("got %#v at B1, want 3 (OFFSET(A1,2,0) = A3)", got)
	}
	n, _ = e.graph.Node(graph.AddrOf(sheetID, addr(0, 1)))
	if _, ok := n.DynamicRangePrecedents[wantTarget]; ok {
		t.Fatal("stale dynamic precedent on A1 should have been cleared once OFFSET retargeted")
	}
	wantTarget2 := graph.RangeKey{Sheet: sheetID, StartRow: 2, StartCol: 0, EndRow: 2, EndCol: 0}
	if _, ok := n.DynamicRangePrecedents[wantTarget2]; !ok {
		t.Fatalf("expected B1's dynamic precedents to contain A3, got %+v", n.DynamicRangePrecedents)
	}

	// Now edit A3 directly (no static precedent on B1 names it): the
	// dynamic precedent must still dirty B1 on the next recalculation.
	e.SetCellValue("Sheet1", addr(2, 0), 30.0)
	if err := e.RecalculateSingleThreaded(context.Background()); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if got := e.GetCellValue("Sheet1", addr(0, 1)); got != 30.0 {
		t.Fatalf("got %#v at B1, want 30 after editing the dynamically-resolved target A3", got)
	}
}

func TestApplyStructuralEditShiftsFormulaAndStorage(t *testing.T) {
	e := New()
	e.AddSheet("Sheet1")
	e.SetCellValue("Sheet1", addr(9, 0), 7.0)           // A10
	e.SetCellFormula("Sheet1", addr(10, 0), "=A10+1")   // A11, references A10

	err := e.ApplyStructuralEdit(rewrite.StructuralEdit{
		Kind: rewrite.InsertRows, Sheet: "Sheet1", At: 1, Count: 2,
	})
	if err != nil {
		t.Fatalf("apply structural edit: %v", err)
	}

	if err := e.RecalculateSingleThreaded(context.Background()); err != nil {
		t.Fatalf("recalculate: %v", err)
	}

	// Both cells moved down by 2 rows: A10 -> A12, A11 -> A13, and the
	// formula text now reads =A12+1.
	if got := e.GetCellValue("Sheet1", addr(11, 0)); got != 7.0 {
		t.Fatalf("got %#v at A12, want 7", got)
	}
	if got := e.GetCellValue("Sheet1", addr(12, 0)); got != 8.0 {
		t.Fatalf("got %#v at A13, want 8", got)
	}
}

func TestDefineNameResolvesInFormula(t *testing.T) {
	e := New()
	e.AddSheet("Sheet1")
	e.SetCellValue("Sheet1", addr(0, 0), 100.0)
	if err := e.DefineName("Rate", "", "=A1", addr(0, 0)); err != nil {
		t.Fatalf("define name: %v", err)
	}
	if err := e.SetCellFormula("Sheet1", addr(1, 0), "=Rate*2"); err != nil {
		t.Fatalf("set formula: %v", err)
	}
	if err := e.RecalculateSingleThreaded(context.Background()); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if got := e.GetCellValue("Sheet1", addr(1, 0)); got != 200.0 {
		t.Fatalf("got %#v, want 200", got)
	}
}

func TestSetCalcSettingsRejectsInvalidIterativeBounds(t *testing.T) {
	e := New()
	err := e.SetCalcSettings(config.CalcSettings{
		CalculationMode: config.Automatic,
		Iterative:       config.IterativeSettings{Enabled: true},
	})
	if err == nil {
		t.Fatal("expected a validation error")
	}
}

func TestManualCalcModeSkipsRecalculate(t *testing.T) {
	e := New()
	e.AddSheet("Sheet1")
	if err := e.SetCalcSettings(config.CalcSettings{CalculationMode: config.Manual}); err != nil {
		t.Fatalf("set calc settings: %v", err)
	}
	e.SetCellValue("Sheet1", addr(0, 0), 1.0)
	if err := e.SetCellFormula("Sheet1", addr(1, 0), "=A1+1"); err != nil {
		t.Fatal(err)
	}
	if err := e.Recalculate(context.Background()); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if got := e.GetCellValue("Sheet1", addr(1, 0)); got != value.Value(value.Blank{}) {
		t.Fatalf("got %#v, want still blank under manual calc mode", got)
	}
}

func TestInternStyleIsStableForEqualStyles(t *testing.T) {
	e := New()
	s := Style{NumberFormat: "0.00", Bold: true}
	id1 := e.InternStyle(s)
	id2 := e.InternStyle(s)
	if id1 != id2 {
		t.Fatalf("expected the same token for an identical style, got %d and %d", id1, id2)
	}
	other := e.InternStyle(Style{NumberFormat: "0%"})
	if other == id1 {
		t.Fatal("expected a distinct token for a different style")
	}
}
