package calcengine

import (
	"fmt"

	"github.com/sparrowsheet/calcengine/compile"
	"github.com/sparrowsheet/calcengine/eval"
	"github.com/sparrowsheet/calcengine/graph"
	"github.com/sparrowsheet/calcengine/ref"
	"github.com/sparrowsheet/calcengine/value"
)

// The methods in this file satisfy graph.CellStore, letting
// graph.Recalculator drive recalculation straight against an Engine with
// no adapter type in between.

// Formula, SetValue, HasRealValue, IterRange, and CellValue each take
// e.mu themselves (rather than relying on the caller) because
// Recalculator fans a level's cells out across goroutines that call
// straight into these methods (graph/recalc.go's computeOne/applyResult
// bypass the cellEvalContext that guards the rest of eval.Context) —
// concurrent map writes from two such goroutines would otherwise race
// even when the cells they touch are different.

func (e *Engine) Formula(sheet uint32, addr ref.CellAddr) *compile.Expr {
	e.mu.RLock()
	defer e.mu.RUnlock()
	sd, ok := e.data[sheet]
	if !ok {
		return nil
	}
	c := sd.cell(addr)
	if c == nil {
		return nil
	}
	return c.formula
}

func (e *Engine) SetValue(sheet uint32, addr ref.CellAddr, v value.Value) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sd, ok := e.data[sheet]
	if !ok {
		return
	}
	c := sd.getOrCreate(addr)
	c.value = v
}

// HasRealValue reports whether addr holds content set directly (a
// literal or a formula) rather than a blank or a value this engine wrote
// as a spill result — the distinction graph.SetSpill needs to tell a
// genuine collision from an cell merely occupied by a previous spill.
func (e *Engine) HasRealValue(sheet uint32, addr ref.CellAddr) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	sd, ok := e.data[sheet]
	if !ok {
		return false
	}
	c := sd.cell(addr)
	return c != nil && c.explicit
}

func (e *Engine) ResolveSheet(name string) (uint32, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.resolveSheetLocked(name)
}

func (e *Engine) resolveSheetLocked(name string) (uint32, bool) {
	id, ok := e.sheetIDs[name]
	return id, ok
}

// ResolveName looks up a defined name, checking the requesting sheet's
// own scope before falling back to the workbook-wide table (spec §4.2's
// name-resolution precedence: sheet-scoped shadows global).
func (e *Engine) ResolveName(name string, scopeSheet uint32) (*eval.CompiledName, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if dn, ok := e.names[scopedKey(scopeSheet, name)]; ok {
		return &eval.CompiledName{Body: dn.expr}, true
	}
	if dn, ok := e.names[name]; ok {
		return &eval.CompiledName{Body: dn.expr}, true
	}
	return nil, false
}

func (e *Engine) RangeDims(rect ref.Rectangle) (rows, cols int) {
	rows = int(rect.EndRow-rect.StartRow) + 1
	cols = int(rect.EndCol-rect.StartCol) + 1
	return rows, cols
}

func (e *Engine) IterRange(rect ref.Rectangle, yield func(value.Value) bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	sd, ok := e.data[rect.SheetID]
	if !ok {
		return
	}
	for r := rect.StartRow; r <= rect.EndRow; r++ {
		for c := rect.StartCol; c <= rect.EndCol; c++ {
			v := value.Value(value.Blank{})
			if cell := sd.cell(ref.CellAddr{Row: r, Col: c}); cell != nil {
				v = cell.value
			}
			if !yield(v) {
				return
			}
			if c == ref.MaxCols-1 {
				break
			}
		}
		if r == ref.MaxRows-1 {
			break
		}
	}
}

func (e *Engine) CellValue(sheet uint32, addr ref.CellAddr) value.Value {
	e.mu.RLock()
	defer e.mu.RUnlock()
	sd, ok := e.data[sheet]
	if !ok {
		return value.Blank{}
	}
	c := sd.cell(addr)
	if c == nil {
		return value.Blank{}
	}
	return c.value
}

// precedentsOf walks a compiled formula and extracts the static
// dependency edges graph.SetPrecedents needs: one entry per concrete
// cell reference, one rectangle per range/row/col reference. Dynamic
// references (a defined name resolving to another formula, or an
// INDIRECT/OFFSET target) are not captured here — compile.Walk only sees
// the literal reference nodes parsed into the tree, matching spec §4.6's
// static-precedent model (a name's own precedents are tracked on the
// name's defining cell, not re-attached to every caller). A node marked
// AddressOnly (OFFSET's/CELL's reference argument) is skipped entirely:
// its address is consumed as data, not read as a value, so it must never
// become a precedent edge — this is what lets =CELL("width",A1) live in
// A1 without creating a self-cycle.
func (e *Engine) precedentsOf(expr *compile.Expr, currentSheet uint32) (cells []graph.Addr, ranges []ref.Rectangle, volatile bool) {
	compile.Walk(expr, func(n *compile.Expr) {
		if n.AddressOnly {
			return
		}
		switch n.Kind {
		case compile.KCellRef:
			sheetID, ok := e.sheetOfRefLocked(n.CellRef.Sheet, currentSheet)
			if !ok {
				return
			}
			col, _ := n.CellRef.Col.Resolve(0)
			row, _ := n.CellRef.Row.Resolve(0)
			if col < 0 || row < 0 {
				return
			}
			cells = append(cells, graph.Addr{Sheet: sheetID, Row: uint32(row), Col: uint32(col)})
		case compile.KRangeRef:
			sheetID, ok := e.sheetOfRefLocked(n.RangeRef.Sheet, currentSheet)
			if !ok {
				return
			}
			c1, _ := n.RangeRef.StartCol.Resolve(0)
			r1, _ := n.RangeRef.StartRow.Resolve(0)
			c2, _ := n.RangeRef.EndCol.Resolve(0)
			r2, _ := n.RangeRef.EndRow.Resolve(0)
			if c1 < 0 || r1 < 0 || c2 < 0 || r2 < 0 {
				return
			}
			ranges = append(ranges, ref.NewRectangle(sheetID, uint32(r1), uint32(c1), uint32(r2), uint32(c2)))
		case compile.KRowRef:
			sheetID, ok := e.sheetOfRefLocked(n.RowRef.Sheet, currentSheet)
			if !ok {
				return
			}
			row, _ := n.RowRef.Row.Resolve(0)
			if row < 0 {
				return
			}
			ranges = append(ranges, ref.NewRectangle(sheetID, uint32(row), 0, uint32(row), ref.MaxCols-1))
		case compile.KColRef:
			sheetID, ok := e.sheetOfRefLocked(n.ColRef.Sheet, currentSheet)
			if !ok {
				return
			}
			col, _ := n.ColRef.Col.Resolve(0)
			if col < 0 {
				return
			}
			ranges = append(ranges, ref.NewRectangle(sheetID, 0, uint32(col), ref.MaxRows-1, uint32(col)))
		}
		if n.Volatile {
			volatile = true
		}
	})
	return cells, ranges, volatile
}

// sheetOfRefLocked resolves a reference's sheet qualifier (nil meaning
// "the formula's own sheet") against the engine's current sheet table.
// Called only while e.mu is held (either by SetCellFormula or a caller
// that already took the lock).
func (e *Engine) sheetOfRefLocked(sheet *ref.SheetRef, currentSheet uint32) (uint32, bool) {
	if sheet == nil {
		return currentSheet, true
	}
	if sheet.Kind == ref.SheetSpan {
		// A 3D precedent depends on every sheet in the span; the graph
		// only models single-sheet rectangles, so a span precedent is
		// approximated by its first sheet. Full 3D aggregation happens
		// at evaluation time via eval.Context, not the static graph.
		return e.resolveSheetLocked(sheet.Start)
	}
	return e.resolveSheetLocked(sheet.Sheet)
}

func scopedKey(sheet uint32, name string) string {
	return fmt.Sprintf("%d\x00%s", sheet, name)
}
