// Package rewrite adjusts a parsed formula's references after a
// structural edit (row/column insert or delete), a copy-paste offset,
// an arbitrary range remap, or a sheet deletion — spec §4.7's four
// public operations.
//
// The shift algebra here is grounded on original_source/crates/
// formula-engine/src/editing/rewrite.rs, re-expressed over this
// engine's ast.Expr (not transliterated: no Rust naming, no Option/
// Result types, no per-node Clone — Go values and a changed-bool return
// do the same job idiomatically, matching the teacher's style of
// returning (value, ok) pairs rather than wrapping everything in a
// result type).
package rewrite

import (
	"github.com/sparrowsheet/calcengine/ast"
	"github.com/sparrowsheet/calcengine/ref"
)

// StructuralEditKind enumerates the four structural edits a sheet can
// undergo that shift every reference past the edit point.
type StructuralEditKind uint8

const (
	InsertRows StructuralEditKind = iota
	DeleteRows
	InsertCols
	DeleteCols
)

// StructuralEdit names an insert/delete of whole rows or columns on one
// sheet, starting at At (0-based) for Count rows/columns.
type StructuralEdit struct {
	Kind  StructuralEditKind
	Sheet string
	At    uint32
	Count uint32
}

// GridRange is a normalized (start <= end) rectangle of rows/columns,
// sheet-agnostic — the caller already knows which sheet it applies to.
type GridRange struct {
	StartRow, StartCol, EndRow, EndCol uint32
}

func NewGridRange(r1, c1, r2, c2 uint32) GridRange {
	if r1 > r2 {
		r1, r2 = r2, r1
	}
	if c1 > c2 {
		c1, c2 = c2, c1
	}
	return GridRange{r1, c1, r2, c2}
}

func (g GridRange) Contains(row, col uint32) bool {
	return row >= g.StartRow && row <= g.EndRow && col >= g.StartCol && col <= g.EndCol
}

// RangeMapEdit moves MovedRegion by (DeltaRow, DeltaCol), with an
// optional DeletedRegion (e.g. cells cut out by the edit) that
// invalidates any reference falling inside it.
type RangeMapEdit struct {
	Sheet        string
	MovedRegion  GridRange
	DeltaRow     int32
	DeltaCol     int32
	DeletedRegion *GridRange
}

// SheetOrderResolver maps a sheet name to its 0-based tab position, for
// resolving which sheets a 3D span ("Sheet1:Sheet3") actually spans.
type SheetOrderResolver func(name string) (int, bool)

const refErrorLiteral = "#REF!"

// RewriteForStructuralEdit adjusts formula's references for a
// row/column insert or delete on edit.Sheet, given the formula's own
// sheet (ctxSheet) and cell origin (needed to resolve relative
// coordinates before re-serializing). It returns the unchanged formula
// and changed=false if nothing needed adjusting or the formula fails to
// parse.
func RewriteForStructuralEdit(formula, ctxSheet string, origin ref.CellAddr, edit StructuralEdit, resolveSheet ast.ResolveSheet) (string, bool) {
	return rewriteVia(formula, ctxSheet, origin, resolveSheet, func(e ast.Expr, ctxSheet string) (ast.Expr, bool) {
		return rewriteExprForStructuralEdit(e, ctxSheet, origin, edit)
	})
}

// RewriteForCopyDelta shifts every relative reference in formula by
// (deltaRow, deltaCol) — the transform a cut/paste or fill-handle drag
// applies (absolute $-anchored coordinates are left untouched).
func RewriteForCopyDelta(formula, ctxSheet string, origin ref.CellAddr, deltaRow, deltaCol int32, resolveSheet ast.ResolveSheet) (string, bool) {
	return rewriteVia(formula, ctxSheet, origin, resolveSheet, func(e ast.Expr, _ string) (ast.Expr, bool) {
		return rewriteExprForCopyDelta(e, deltaRow, deltaCol)
	})
}

// RewriteForRangeMap applies an arbitrary moved/deleted region remap —
// used for edits (like a cell-range cut-and-insert) that don't reduce
// to a uniform row/column shift.
func RewriteForRangeMap(formula, ctxSheet string, origin ref.CellAddr, edit RangeMapEdit, resolveSheet ast.ResolveSheet) (string, bool) {
	return rewriteVia(formula, ctxSheet, origin, resolveSheet, func(e ast.Expr, ctxSheet string) (ast.Expr, bool) {
		return rewriteExprForRangeMap(e, ctxSheet, origin, edit)
	})
}

// RewriteForSheetDelete adjusts any reference naming deletedSheet —
// single-sheet refs become #REF!, and a 3D span's boundary shifts
// inward by one sheet if the deleted sheet was one of its endpoints.
func RewriteForSheetDelete(formula string, origin ref.CellAddr, deletedSheet string, sheetOrder []string) (string, bool) {
	return rewriteVia(formula, "", origin, nil, func(e ast.Expr, _ string) (ast.Expr, bool) {
		return rewriteExprForSheetDelete(e, deletedSheet, sheetOrder)
	})
}

func rewriteVia(formula, ctxSheet string, origin ref.CellAddr, resolveSheet ast.ResolveSheet, f func(ast.Expr, string) (ast.Expr, bool)) (string, bool) {
	pctx := ast.ParseContext{Origin: origin, ResolveSheet: resolveSheet}
	expr, err := ast.Parse(formula, pctx)
	if err != nil {
		return formula, false
	}
	newExpr, changed := f(expr, ctxSheet)
	if !changed {
		return formula, false
	}
	return ast.Serialize(newExpr, origin), true
}

// sheetApplies reports whether a reference's (possibly nil, meaning
// "current sheet") sheet qualifier is affected by an edit on editSheet.
func sheetApplies(sheet *ref.SheetRef, ctxSheet, editSheet string, resolveSheet SheetOrderResolver) bool {
	if sheet == nil {
		return sheetNameEq(ctxSheet, editSheet)
	}
	switch sheet.Kind {
	case ref.SheetSingle:
		return sheetNameEq(sheet.Sheet, editSheet)
	case ref.SheetSpan:
		if resolveSheet == nil {
			return sheetNameEq(sheet.Start, editSheet) || sheetNameEq(sheet.End, editSheet)
		}
		startIdx, ok1 := resolveSheet(sheet.Start)
		endIdx, ok2 := resolveSheet(sheet.End)
		editIdx, ok3 := resolveSheet(editSheet)
		if !ok1 || !ok2 || !ok3 {
			return sheetNameEq(sheet.Start, editSheet) || sheetNameEq(sheet.End, editSheet)
		}
		lo, hi := startIdx, endIdx
		if lo > hi {
			lo, hi = hi, lo
		}
		return editIdx >= lo && editIdx <= hi
	}
	return false
}

func sheetNameEq(a, b string) bool {
	return len(a) == len(b) && equalFold(a, b)
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// adjustInsert shifts idx by count if it's at-or-past the insert point.
func adjustInsert(idx, at, count uint32) uint32 {
	if idx >= at {
		return idx + count
	}
	return idx
}

// adjustDelete shifts idx for a deletion of [at, delEnd] (inclusive); ok
// is false if idx itself falls inside the deleted span.
func adjustDelete(idx, at, delEnd, count uint32) (uint32, bool) {
	switch {
	case idx < at:
		return idx, true
	case idx >= at && idx <= delEnd:
		return 0, false
	default:
		return idx - count, true
	}
}

// adjustRangeDelete shifts a [start, end] span for a deletion of
// [at, delEnd]; ok is false only if the entire span falls inside the
// deleted region.
func adjustRangeDelete(start, end, at, delEnd, count uint32) (uint32, uint32, bool) {
	if start >= at && end <= delEnd {
		return 0, 0, false
	}
	ns, nsOK := adjustDelete(start, at, delEnd, count)
	if !nsOK {
		ns = at
	}
	ne, neOK := adjustDelete(end, at, delEnd, count)
	if !neOK {
		ne = at
		if ne > 0 {
			ne--
		}
	}
	return ns, ne, true
}
