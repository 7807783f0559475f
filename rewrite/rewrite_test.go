package rewrite

import (
	"strings"
	"testing"

	"github.com/sparrowsheet/calcengine/ref"
)

func TestRewriteForStructuralEditInsertRowsShiftsBelow(t *testing.T) {
	origin := ref.CellAddr{Row: 0, Col: 0}
	edit := StructuralEdit{Kind: InsertRows, Sheet: "Sheet1", At: 2, Count: 3}

	out, changed := RewriteForStructuralEdit("=A5+A1", "Sheet1", origin, edit, nil)
	if !changed {
		t.Fatal("expected a rewrite")
	}
	if out != "=A8+A1" {
		t.Fatalf("got %q, want =A8+A1", out)
	}
}

func TestRewriteForStructuralEditDeleteRowsSwallowsRef(t *testing.T) {
	origin := ref.CellAddr{Row: 0, Col: 0}
	edit := StructuralEdit{Kind: DeleteRows, Sheet: "Sheet1", At: 1, Count: 2}

	out, changed := RewriteForStructuralEdit("=A2", "Sheet1", origin, edit, nil)
	if !changed {
		t.Fatal("expected a rewrite")
	}
	if out != "="+refErrorLiteral {
		t.Fatalf("got %q, want =%s", out, refErrorLiteral)
	}
}

func TestRewriteForStructuralEditDeleteRowsShiftsAbove(t *testing.T) {
	origin := ref.CellAddr{Row: 0, Col: 0}
	edit := StructuralEdit{Kind: DeleteRows, Sheet: "Sheet1", At: 1, Count: 2}

	out, changed := RewriteForStructuralEdit("=A10", "Sheet1", origin, edit, nil)
	if !changed {
		t.Fatal("expected a rewrite")
	}
	if out != "=A8" {
		t.Fatalf("got %q, want =A8", out)
	}
}

func TestRewriteForStructuralEditUnaffectedSheetIsNoop(t *testing.T) {
	origin := ref.CellAddr{Row: 0, Col: 0}
	edit := StructuralEdit{Kind: InsertRows, Sheet: "Sheet2", At: 0, Count: 5}

	out, changed := RewriteForStructuralEdit("=A1+B2", "Sheet1", origin, edit, nil)
	if changed {
		t.Fatalf("expected no rewrite, got %q", out)
	}
}

func TestRewriteForStructuralEditAbsoluteRefShiftsOnRowInsert(t *testing.T) {
	origin := ref.CellAddr{Row: 0, Col: 0}
	edit := StructuralEdit{Kind: InsertRows, Sheet: "Sheet1", At: 0, Count: 1}

	// A row insert shifts an absolute ($) row reference too; the absolute
	// column stays where it is.
	out, changed := RewriteForStructuralEdit("=$A$1", "Sheet1", origin, edit, nil)
	if !changed {
		t.Fatal("expected the row to shift even though the column is absolute")
	}
	if out != "=$A$2" {
		t.Fatalf("got %q, want =$A$2", out)
	}
}

func TestRewriteForStructuralEditRangeShrinksOnPartialDelete(t *testing.T) {
	origin := ref.CellAddr{Row: 0, Col: 0}
	edit := StructuralEdit{Kind: DeleteRows, Sheet: "Sheet1", At: 5, Count: 3}

	out, changed := RewriteForStructuralEdit("=SUM(A1:A10)", "Sheet1", origin, edit, nil)
	if !changed {
		t.Fatal("expected a rewrite")
	}
	if out != "=SUM(A1:A7)" {
		t.Fatalf("got %q, want =SUM(A1:A7)", out)
	}
}

func TestRewriteForStructuralEditRangeFullyDeletedBecomesRef(t *testing.T) {
	origin := ref.CellAddr{Row: 0, Col: 0}
	edit := StructuralEdit{Kind: DeleteRows, Sheet: "Sheet1", At: 0, Count: 10}

	out, changed := RewriteForStructuralEdit("=SUM(A1:A5)", "Sheet1", origin, edit, nil)
	if !changed {
		t.Fatal("expected a rewrite")
	}
	if out != "=SUM(#REF!)" {
		t.Fatalf("got %q, want =SUM(#REF!)", out)
	}
}

func TestRewriteForCopyDeltaShiftsRelativeOnly(t *testing.T) {
	origin := ref.CellAddr{Row: 0, Col: 0}
	out, changed := RewriteForCopyDelta("=A1+$B$2", "Sheet1", origin, 2, 1, nil)
	if !changed {
		t.Fatal("expected a rewrite")
	}
	if out != "=B3+$B$2" {
		t.Fatalf("got %q, want =B3+$B$2", out)
	}
}

func TestRewriteForCopyDeltaNegativeBecomesRef(t *testing.T) {
	origin := ref.CellAddr{Row: 0, Col: 0}
	out, changed := RewriteForCopyDelta("=A1", "Sheet1", origin, -5, 0, nil)
	if !changed {
		t.Fatal("expected a rewrite")
	}
	if !strings.Contains(out, refErrorLiteral) {
		t.Fatalf("got %q, want it to contain %s", out, refErrorLiteral)
	}
}

func TestRewriteForRangeMapMovesContainedRef(t *testing.T) {
	origin := ref.CellAddr{Row: 0, Col: 0}
	edit := RangeMapEdit{
		Sheet:       "Sheet1",
		MovedRegion: NewGridRange(0, 0, 9, 9),
		DeltaRow:    10,
		DeltaCol:    0,
	}
	out, changed := RewriteForRangeMap("=A1", "Sheet1", origin, edit, nil)
	if !changed {
		t.Fatal("expected a rewrite")
	}
	if out != "=A11" {
		t.Fatalf("got %q, want =A11", out)
	}
}

func TestRewriteForRangeMapLeavesUncoveredRef(t *testing.T) {
	origin := ref.CellAddr{Row: 0, Col: 0}
	edit := RangeMapEdit{
		Sheet:       "Sheet1",
		MovedRegion: NewGridRange(0, 0, 9, 9),
		DeltaRow:    10,
		DeltaCol:    0,
	}
	out, changed := RewriteForRangeMap("=Z99", "Sheet1", origin, edit, nil)
	if changed {
		t.Fatalf("expected no rewrite, got %q", out)
	}
}

func TestRewriteForRangeMapSplitsRangeIntoUnion(t *testing.T) {
	origin := ref.CellAddr{Row: 0, Col: 0}
	deleted := NewGridRange(0, 1, 0, 1) // B1
	edit := RangeMapEdit{
		Sheet:         "Sheet1",
		MovedRegion:   NewGridRange(0, 2, 0, 16383), // C1 and everything right of it
		DeltaCol:      -1,
		DeletedRegion: &deleted,
	}
	out, changed := RewriteForRangeMap("=SUM(A1:C1)", "Sheet1", origin, edit, nil)
	if !changed {
		t.Fatal("expected a rewrite")
	}
	if out != "=SUM((A1,B1))" {
		t.Fatalf("got %q, want =SUM((A1,B1))", out)
	}
}

func TestRewriteForRangeMapUniformShiftStaysARange(t *testing.T) {
	origin := ref.CellAddr{Row: 0, Col: 0}
	edit := RangeMapEdit{
		Sheet:       "Sheet1",
		MovedRegion: NewGridRange(0, 0, 9, 9),
		DeltaRow:    10,
	}
	out, changed := RewriteForRangeMap("=SUM(A1:B2)", "Sheet1", origin, edit, nil)
	if !changed {
		t.Fatal("expected a rewrite")
	}
	if out != "=SUM(A11:B12)" {
		t.Fatalf("got %q, want =SUM(A11:B12)", out)
	}
}

func TestRewriteForSheetDeleteSingleRefBecomesRef(t *testing.T) {
	origin := ref.CellAddr{Row: 0, Col: 0}
	out, changed := RewriteForSheetDelete("=Sheet2!A1", origin, "Sheet2", []string{"Sheet1", "Sheet2", "Sheet3"})
	if !changed {
		t.Fatal("expected a rewrite")
	}
	if !strings.Contains(out, refErrorLiteral) {
		t.Fatalf("got %q, want it to contain %s", out, refErrorLiteral)
	}
}

func TestRewriteForSheetDeleteSpanShrinksBoundary(t *testing.T) {
	origin := ref.CellAddr{Row: 0, Col: 0}
	out, changed := RewriteForSheetDelete("=SUM(Sheet1:Sheet2!A1)", origin, "Sheet2", []string{"Sheet1", "Sheet2", "Sheet3"})
	if !changed {
		t.Fatal("expected a rewrite")
	}
	if out != "=SUM(Sheet1!A1)" {
		t.Fatalf("got %q, want =SUM(Sheet1!A1)", out)
	}
}

func TestRewriteForSheetDeleteUnrelatedSheetUnchanged(t *testing.T) {
	origin := ref.CellAddr{Row: 0, Col: 0}
	out, changed := RewriteForSheetDelete("=Sheet3!A1", origin, "Sheet2", []string{"Sheet1", "Sheet2", "Sheet3"})
	if changed {
		t.Fatalf("expected no rewrite, got %q", out)
	}
}

// TestRewriteRoundTripsUnaffectedFormulaByteIdentical checks the
// no-needless-reserialization property: any edit with no effect on a
// formula returns the original string unchanged, not merely an
// equivalent reparse of it.
func TestRewriteRoundTripsUnaffectedFormulaByteIdentical(t *testing.T) {
	origin := ref.CellAddr{Row: 0, Col: 0}
	formula := "=IF(A1>0,SUM(B1:B10),\"neg\")"
	edit := StructuralEdit{Kind: InsertRows, Sheet: "OtherSheet", At: 0, Count: 1}

	out, changed := RewriteForStructuralEdit(formula, "Sheet1", origin, edit, nil)
	if changed {
		t.Fatalf("expected no rewrite, got %q", out)
	}
	if out != formula {
		t.Fatalf("got %q, want byte-identical %q", out, formula)
	}
}

func TestAdjustRangeDeleteFullyInsideReportsDeleted(t *testing.T) {
	_, _, ok := adjustRangeDelete(2, 4, 0, 10, 11)
	if ok {
		t.Fatal("expected the range to be fully swallowed")
	}
}

func TestAdjustInsertAtBoundaryShiftsOnly(t *testing.T) {
	if got := adjustInsert(5, 5, 2); got != 7 {
		t.Fatalf("got %d, want 7", got)
	}
	if got := adjustInsert(4, 5, 2); got != 4 {
		t.Fatalf("got %d, want 4 (unaffected)", got)
	}
}
