package calcengine

import (
	"fmt"

	"github.com/sparrowsheet/calcengine/ast"
	"github.com/sparrowsheet/calcengine/compile"
	"github.com/sparrowsheet/calcengine/graph"
	"github.com/sparrowsheet/calcengine/internal/enginelog"
	"github.com/sparrowsheet/calcengine/ref"
	"github.com/sparrowsheet/calcengine/rewrite"
)

// ApplyStructuralEdit performs a row/column insert or delete on one
// sheet (spec §6.2): every formula in the workbook is rewritten for the
// new layout, cell storage on the edited sheet is relabeled to its new
// row/col numbering, and the dependency graph is rebuilt from the
// result — all under one write lock, so a concurrent reader never
// observes relabeled storage paired with stale formula text or vice
// versa.
//
// Rather than patch dependency edges incrementally (which would need to
// reason about every precedent whose address moved, directly or via a
// rewritten formula pointing at it), the graph is rebuilt from the
// post-edit cell set in one pass and every formula cell is marked dirty.
// A structural edit already touches a sheet's entire layout, so the cost
// of one extra full recalculation is small next to the bookkeeping an
// incremental edge patch would require.
func (e *Engine) ApplyStructuralEdit(edit rewrite.StructuralEdit) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	editSheetID, ok := e.sheetIDs[edit.Sheet]
	if !ok {
		return fmt.Errorf("apply structural edit: unknown sheet %q", edit.Sheet)
	}
	logger := enginelog.ForStructuralEdit(e.logger, edit.Sheet, structuralEditKindName(edit.Kind))

	newGraph := graph.New()

	for sid, sd := range e.data {
		relabel := sid == editSheetID
		newCells := make(map[ref.CellAddr]*cellState, len(sd.cells))

		for addr, c := range sd.cells {
			newAddr, keep := addr, true
			if relabel {
				newAddr, keep = shiftAddrForEdit(addr, edit)
			}
			if !keep {
				continue
			}
			if c.formula != nil {
				rewritten, changed := rewrite.RewriteForStructuralEdit(c.formulaText, sd.name, addr, edit, e.resolveSheetLocked)
				if changed {
					if newExpr, err := ast.Parse(rewritten, ast.ParseContext{
						Origin:       newAddr,
						ResolveSheet: e.resolveSheetLocked,
						CurrentSheet: sid,
					}); err == nil {
						c.formulaText = rewritten
						c.formula = compile.Compile(newExpr, &compile.Resolver{Functions: e.registry})
					}
				}
			}
			newCells[newAddr] = c
		}
		sd.cells = newCells
	}

	for sid, sd := range e.data {
		for addr, c := range sd.cells {
			if c.formula == nil {
				continue
			}
			ga := graph.Addr{Sheet: sid, Row: addr.Row, Col: addr.Col}
			cellPrec, rangePrec, volatile := e.precedentsOf(c.formula, sid)
			newGraph.SetPrecedents(ga, cellPrec, rangePrec, volatile)
			newGraph.MarkDirty(ga)
		}
	}
	e.graph = newGraph

	logger.Debug().Msg("structural edit applied")
	return nil
}

// shiftAddrForEdit relabels a single-sheet cell address for edit,
// reporting keep=false if the cell's row or column was itself deleted.
func shiftAddrForEdit(addr ref.CellAddr, edit rewrite.StructuralEdit) (ref.CellAddr, bool) {
	switch edit.Kind {
	case rewrite.InsertRows:
		return ref.CellAddr{Row: shiftInsert(addr.Row, edit.At, edit.Count), Col: addr.Col}, true
	case rewrite.InsertCols:
		return ref.CellAddr{Row: addr.Row, Col: shiftInsert(addr.Col, edit.At, edit.Count)}, true
	case rewrite.DeleteRows:
		row, ok := shiftDelete(addr.Row, edit.At, edit.At+edit.Count-1, edit.Count)
		return ref.CellAddr{Row: row, Col: addr.Col}, ok
	case rewrite.DeleteCols:
		col, ok := shiftDelete(addr.Col, edit.At, edit.At+edit.Count-1, edit.Count)
		return ref.CellAddr{Row: addr.Row, Col: col}, ok
	default:
		return addr, true
	}
}

func shiftInsert(idx, at, count uint32) uint32 {
	if idx >= at {
		return idx + count
	}
	return idx
}

func shiftDelete(idx, at, delEnd, count uint32) (uint32, bool) {
	switch {
	case idx < at:
		return idx, true
	case idx >= at && idx <= delEnd:
		return 0, false
	default:
		return idx - count, true
	}
}

func structuralEditKindName(k rewrite.StructuralEditKind) string {
	switch k {
	case rewrite.InsertRows:
		return "insert_rows"
	case rewrite.DeleteRows:
		return "delete_rows"
	case rewrite.InsertCols:
		return "insert_cols"
	case rewrite.DeleteCols:
		return "delete_cols"
	default:
		return "unknown"
	}
}

// DeleteSheet removes sheet entirely, rewriting every other sheet's
// formulas for the deletion (spec §4.7's sheet-delete rewrite, including
// 3D-span boundary adjustment) before dropping the sheet's own storage
// and graph nodes.
func (e *Engine) DeleteSheet(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, ok := e.sheetIDs[name]
	if !ok {
		return fmt.Errorf("delete sheet: unknown sheet %q", name)
	}

	order := e.sheetOrderLocked()

	newGraph := graph.New()
	for sid, sd := range e.data {
		if sid == id {
			continue
		}
		for addr, c := range sd.cells {
			if c.formula == nil {
				continue
			}
			rewritten, changed := rewrite.RewriteForSheetDelete(c.formulaText, addr, name, order)
			if changed {
				if newExpr, err := ast.Parse(rewritten, ast.ParseContext{
					Origin:       addr,
					ResolveSheet: e.resolveSheetLocked,
					CurrentSheet: sid,
				}); err == nil {
					c.formulaText = rewritten
					c.formula = compile.Compile(newExpr, &compile.Resolver{Functions: e.registry})
				}
			}
		}
	}

	delete(e.data, id)
	delete(e.sheetIDs, name)
	delete(e.sheetNames, id)

	for sid, sd := range e.data {
		for addr, c := range sd.cells {
			if c.formula == nil {
				continue
			}
			ga := graph.Addr{Sheet: sid, Row: addr.Row, Col: addr.Col}
			cellPrec, rangePrec, volatile := e.precedentsOf(c.formula, sid)
			newGraph.SetPrecedents(ga, cellPrec, rangePrec, volatile)
			newGraph.MarkDirty(ga)
		}
	}
	e.graph = newGraph
	return nil
}

func (e *Engine) sheetOrderLocked() []string {
	order := make([]string, e.nextSheet)
	for id, name := range e.sheetNames {
		if int(id) < len(order) {
			order[id] = name
		}
	}
	return order
}
