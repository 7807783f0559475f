package rewrite

import (
	"sort"

	"github.com/sparrowsheet/calcengine/ast"
	"github.com/sparrowsheet/calcengine/ref"
)

// withAbsolute rebuilds a Coord of the same kind (offset/absolute/
// relative) as c, but resolving to newAbs given origin.
func withAbsolute(c ref.Coord, origin uint32, newAbs int64) ref.Coord {
	switch {
	case c.IsOffset:
		return ref.Coord{Offset: int32(newAbs) - int32(origin), IsOffset: true}
	case c.Abs:
		return ref.Coord{Index: uint32(newAbs), Abs: true}
	default:
		return ref.Coord{Index: uint32(newAbs)}
	}
}

func refError() ast.Expr { return &ast.ErrorLit{Literal: refErrorLiteral} }

// --- structural edit (insert/delete whole rows or columns) ---

func rewriteExprForStructuralEdit(e ast.Expr, ctxSheet string, origin ref.CellAddr, edit StructuralEdit) (ast.Expr, bool) {
	isRowEdit := edit.Kind == InsertRows || edit.Kind == DeleteRows
	isInsert := edit.Kind == InsertRows || edit.Kind == InsertCols

	adjustOne := func(c ref.Coord, origin uint32) (ref.Coord, bool, bool) {
		abs, _ := c.Resolve(origin)
		idx := uint32(abs)
		if isInsert {
			ni := adjustInsert(idx, edit.At, edit.Count)
			if ni == idx {
				return c, false, true
			}
			return withAbsolute(c, origin, int64(ni)), true, true
		}
		delEnd := edit.At + edit.Count - 1
		ni, ok := adjustDelete(idx, edit.At, delEnd, edit.Count)
		if !ok {
			return c, true, false
		}
		if ni == idx {
			return c, false, true
		}
		return withAbsolute(c, origin, int64(ni)), true, true
	}

	adjustRange := func(start, end ref.Coord, origin uint32) (ref.Coord, ref.Coord, bool, bool) {
		sAbs, _ := start.Resolve(origin)
		eAbs, _ := end.Resolve(origin)
		s, e := uint32(sAbs), uint32(eAbs)
		if isInsert {
			ns, ne := adjustInsert(s, edit.At, edit.Count), adjustInsert(e, edit.At, edit.Count)
			changed := ns != s || ne != e
			return withAbsolute(start, origin, int64(ns)), withAbsolute(end, origin, int64(ne)), changed, true
		}
		delEnd := edit.At + edit.Count - 1
		ns, ne, ok := adjustRangeDelete(s, e, edit.At, delEnd, edit.Count)
		if !ok {
			return start, end, true, false
		}
		changed := ns != s || ne != e
		return withAbsolute(start, origin, int64(ns)), withAbsolute(end, origin, int64(ne)), changed, true
	}

	switch n := e.(type) {
	case *ast.CellRefExpr:
		if !sheetApplies(n.Ref.Sheet, ctxSheet, edit.Sheet, nil) {
			return e, false
		}
		r := n.Ref
		var changed bool
		if isRowEdit {
			nc, ch, ok := adjustOne(r.Row, origin.Row)
			if !ok {
				return refError(), true
			}
			r.Row, changed = nc, ch
		} else {
			nc, ch, ok := adjustOne(r.Col, origin.Col)
			if !ok {
				return refError(), true
			}
			r.Col, changed = nc, ch
		}
		if !changed {
			return e, false
		}
		return &ast.CellRefExpr{Ref: r}, true

	case *ast.RangeRefExpr:
		if !sheetApplies(n.Ref.Sheet, ctxSheet, edit.Sheet, nil) {
			return e, false
		}
		r := n.Ref
		var changed bool
		if isRowEdit {
			ns, ne, ch, ok := adjustRange(r.StartRow, r.EndRow, origin.Row)
			if !ok {
				return refError(), true
			}
			r.StartRow, r.EndRow, changed = ns, ne, ch
		} else {
			ns, ne, ch, ok := adjustRange(r.StartCol, r.EndCol, origin.Col)
			if !ok {
				return refError(), true
			}
			r.StartCol, r.EndCol, changed = ns, ne, ch
		}
		if !changed {
			return e, false
		}
		return &ast.RangeRefExpr{Ref: r}, true

	case *ast.RowRefExpr:
		if !isRowEdit || !sheetApplies(n.Ref.Sheet, ctxSheet, edit.Sheet, nil) {
			return e, false
		}
		r := n.Ref
		nc, ch, ok := adjustOne(r.Row, origin.Row)
		if !ok {
			return refError(), true
		}
		if !ch {
			return e, false
		}
		r.Row = nc
		return &ast.RowRefExpr{Ref: r}, true

	case *ast.ColRefExpr:
		if isRowEdit || !sheetApplies(n.Ref.Sheet, ctxSheet, edit.Sheet, nil) {
			return e, false
		}
		r := n.Ref
		nc, ch, ok := adjustOne(r.Col, origin.Col)
		if !ok {
			return refError(), true
		}
		if !ch {
			return e, false
		}
		r.Col = nc
		return &ast.ColRefExpr{Ref: r}, true

	default:
		return rewriteChildren(e, func(child ast.Expr) (ast.Expr, bool) {
			return rewriteExprForStructuralEdit(child, ctxSheet, origin, edit)
		})
	}
}

// --- copy/paste or fill-handle offset ---

func rewriteExprForCopyDelta(e ast.Expr, deltaRow, deltaCol int32) (ast.Expr, bool) {
	shiftCoord := func(c ref.Coord, delta int32) (ref.Coord, bool, bool) {
		if c.Abs {
			return c, false, true
		}
		if c.IsOffset {
			nv := c.Offset + delta
			if nv == c.Offset {
				return c, false, true
			}
			return ref.Coord{Offset: nv, IsOffset: true}, true, true
		}
		ni := int64(c.Index) + int64(delta)
		if ni < 0 {
			return c, true, false
		}
		if uint32(ni) == c.Index {
			return c, false, true
		}
		return ref.Coord{Index: uint32(ni)}, true, true
	}

	switch n := e.(type) {
	case *ast.CellRefExpr:
		r := n.Ref
		nr, chr, okr := shiftCoord(r.Row, deltaRow)
		nc, chc, okc := shiftCoord(r.Col, deltaCol)
		if !okr || !okc {
			return refError(), true
		}
		if !chr && !chc {
			return e, false
		}
		r.Row, r.Col = nr, nc
		return &ast.CellRefExpr{Ref: r}, true

	case *ast.RangeRefExpr:
		r := n.Ref
		nsr, ch1, ok1 := shiftCoord(r.StartRow, deltaRow)
		ner, ch2, ok2 := shiftCoord(r.EndRow, deltaRow)
		nsc, ch3, ok3 := shiftCoord(r.StartCol, deltaCol)
		nec, ch4, ok4 := shiftCoord(r.EndCol, deltaCol)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return refError(), true
		}
		if !ch1 && !ch2 && !ch3 && !ch4 {
			return e, false
		}
		r.StartRow, r.EndRow, r.StartCol, r.EndCol = nsr, ner, nsc, nec
		return &ast.RangeRefExpr{Ref: r}, true

	case *ast.RowRefExpr:
		r := n.Ref
		nr, ch, ok := shiftCoord(r.Row, deltaRow)
		if !ok {
			return refError(), true
		}
		if !ch {
			return e, false
		}
		r.Row = nr
		return &ast.RowRefExpr{Ref: r}, true

	case *ast.ColRefExpr:
		r := n.Ref
		nc, ch, ok := shiftCoord(r.Col, deltaCol)
		if !ok {
			return refError(), true
		}
		if !ch {
			return e, false
		}
		r.Col = nc
		return &ast.ColRefExpr{Ref: r}, true

	default:
		return rewriteChildren(e, func(child ast.Expr) (ast.Expr, bool) {
			return rewriteExprForCopyDelta(child, deltaRow, deltaCol)
		})
	}
}

// --- arbitrary range-map edit ---

func rewriteExprForRangeMap(e ast.Expr, ctxSheet string, origin ref.CellAddr, edit RangeMapEdit) (ast.Expr, bool) {
	applies := func(sheet *ref.SheetRef) bool {
		return sheetApplies(sheet, ctxSheet, edit.Sheet, nil)
	}

	remapAddr := func(row, col uint32) (uint32, uint32, bool) {
		if edit.DeletedRegion != nil && edit.DeletedRegion.Contains(row, col) {
			return 0, 0, false
		}
		if !edit.MovedRegion.Contains(row, col) {
			return row, col, true
		}
		nr := int64(row) + int64(edit.DeltaRow)
		nc := int64(col) + int64(edit.DeltaCol)
		if nr < 0 || nc < 0 {
			return 0, 0, false
		}
		return uint32(nr), uint32(nc), true
	}

	switch n := e.(type) {
	case *ast.CellRefExpr:
		if !applies(n.Ref.Sheet) {
			return e, false
		}
		r := n.Ref
		rowAbs, _ := r.Row.Resolve(origin.Row)
		colAbs, _ := r.Col.Resolve(origin.Col)
		nr, nc, ok := remapAddr(uint32(rowAbs), uint32(colAbs))
		if !ok {
			return refError(), true
		}
		if nr == uint32(rowAbs) && nc == uint32(colAbs) {
			return e, false
		}
		r.Row = withAbsolute(r.Row, origin.Row, int64(nr))
		r.Col = withAbsolute(r.Col, origin.Col, int64(nc))
		return &ast.CellRefExpr{Ref: r}, true

	case *ast.RangeRefExpr:
		if !applies(n.Ref.Sheet) {
			return e, false
		}
		return rewriteRangeForMap(n.Ref, origin, edit)

	default:
		return rewriteChildren(e, func(child ast.Expr) (ast.Expr, bool) {
			return rewriteExprForRangeMap(child, ctxSheet, origin, edit)
		})
	}
}

// rewriteRangeForMap remaps a range reference under an arbitrary
// moved/deleted region edit. A uniform corner-by-corner remap (the
// previous approach) is only correct when the whole rectangle moves, is
// deleted, or is left alone together; when the edit's boundary cuts
// through the middle of the range — some cells moved, some deleted, some
// untouched — remapping just the two corners silently drags survivors
// into the wrong shape or merges them with a deleted strip. Instead this
// decomposes the rectangle into axis-aligned sub-rectangles no edit
// boundary crosses, remaps each sub-rectangle as a whole (every cell
// inside one has identical treatment), drops the ones that land in
// DeletedRegion, and rebuilds the survivors as a reference union
// (spec §4.7/§8 scenario 4: `=SUM(A1:C1)` losing its middle cell to a
// shift becomes `=SUM((A1,B1))`, not a corrupted range).
func rewriteRangeForMap(r ref.RangeRef, origin ref.CellAddr, edit RangeMapEdit) (ast.Expr, bool) {
	srAbs, _ := r.StartRow.Resolve(origin.Row)
	scAbs, _ := r.StartCol.Resolve(origin.Col)
	erAbs, _ := r.EndRow.Resolve(origin.Row)
	ecAbs, _ := r.EndCol.Resolve(origin.Col)
	r1, r2 := uint32(srAbs), uint32(erAbs)
	c1, c2 := uint32(scAbs), uint32(ecAbs)
	if r1 > r2 {
		r1, r2 = r2, r1
	}
	if c1 > c2 {
		c1, c2 = c2, c1
	}

	rowBounds := []uint32{edit.MovedRegion.StartRow, edit.MovedRegion.EndRow + 1}
	colBounds := []uint32{edit.MovedRegion.StartCol, edit.MovedRegion.EndCol + 1}
	if edit.DeletedRegion != nil {
		rowBounds = append(rowBounds, edit.DeletedRegion.StartRow, edit.DeletedRegion.EndRow+1)
		colBounds = append(colBounds, edit.DeletedRegion.StartCol, edit.DeletedRegion.EndCol+1)
	}
	rowCuts := axisCuts(r1, r2+1, rowBounds)
	colCuts := axisCuts(c1, c2+1, colBounds)

	type rect struct{ sr, sc, er, ec uint32 }
	var survivors []rect
	for i := 0; i+1 < len(rowCuts); i++ {
		sr, er := rowCuts[i], rowCuts[i+1]-1
		for j := 0; j+1 < len(colCuts); j++ {
			sc, ec := colCuts[j], colCuts[j+1]-1
			if edit.DeletedRegion != nil && edit.DeletedRegion.Contains(sr, sc) {
				continue
			}
			if edit.MovedRegion.Contains(sr, sc) {
				dr, dc := int64(edit.DeltaRow), int64(edit.DeltaCol)
				nsr, nsc := int64(sr)+dr, int64(sc)+dc
				ner, nec := int64(er)+dr, int64(ec)+dc
				if nsr < 0 || nsc < 0 || ner < 0 || nec < 0 {
					continue
				}
				survivors = append(survivors, rect{uint32(nsr), uint32(nsc), uint32(ner), uint32(nec)})
			} else {
				survivors = append(survivors, rect{sr, sc, er, ec})
			}
		}
	}

	if len(survivors) == 0 {
		return refError(), true
	}
	if len(survivors) == 1 {
		s := survivors[0]
		if s.sr == r1 && s.sc == c1 && s.er == r2 && s.ec == c2 {
			return &ast.RangeRefExpr{Ref: r}, false
		}
	}

	exprs := make([]ast.Expr, len(survivors))
	for i, s := range survivors {
		nr := r
		nr.StartRow = withAbsolute(r.StartRow, origin.Row, int64(s.sr))
		nr.StartCol = withAbsolute(r.StartCol, origin.Col, int64(s.sc))
		nr.EndRow = withAbsolute(r.EndRow, origin.Row, int64(s.er))
		nr.EndCol = withAbsolute(r.EndCol, origin.Col, int64(s.ec))
		if s.sr == s.er && s.sc == s.ec {
			exprs[i] = &ast.CellRefExpr{Ref: ref.CellRef{Workbook: r.Workbook, Sheet: r.Sheet, Row: nr.StartRow, Col: nr.StartCol}}
		} else {
			exprs[i] = &ast.RangeRefExpr{Ref: nr}
		}
	}
	out := exprs[0]
	for _, next := range exprs[1:] {
		out = &ast.Binary{Op: ast.BinOpUnion, Left: out, Right: next}
	}
	return out, true
}

// axisCuts returns the sorted, deduplicated boundary points within
// [lo, hiExcl] where bounds strictly inside that span split the axis —
// always including lo and hiExcl themselves, so consecutive pairs form
// the sub-segments to classify.
func axisCuts(lo, hiExcl uint32, bounds []uint32) []uint32 {
	set := map[uint32]bool{lo: true, hiExcl: true}
	for _, b := range bounds {
		if b > lo && b < hiExcl {
			set[b] = true
		}
	}
	pts := make([]uint32, 0, len(set))
	for p := range set {
		pts = append(pts, p)
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i] < pts[j] })
	return pts
}

// --- sheet deletion ---

func sheetIndexOf(sheetOrder []string, name string) (int, bool) {
	for i, s := range sheetOrder {
		if sheetNameEq(s, name) {
			return i, true
		}
	}
	return 0, false
}

func rewriteExprForSheetDelete(e ast.Expr, deletedSheet string, sheetOrder []string) (ast.Expr, bool) {
	resolver := func(name string) (int, bool) { return sheetIndexOf(sheetOrder, name) }

	rewriteSheet := func(sheet *ref.SheetRef) (*ref.SheetRef, bool, bool) {
		if sheet == nil {
			return sheet, false, true
		}
		switch sheet.Kind {
		case ref.SheetSingle:
			if sheetNameEq(sheet.Sheet, deletedSheet) {
				return nil, true, false
			}
			return sheet, false, true
		case ref.SheetSpan:
			startDeleted := sheetNameEq(sheet.Start, deletedSheet)
			endDeleted := sheetNameEq(sheet.End, deletedSheet)
			if !startDeleted && !endDeleted {
				return sheet, false, true
			}
			delIdx, ok := resolver(deletedSheet)
			if !ok {
				return nil, true, false
			}
			newStart, newEnd := sheet.Start, sheet.End
			if startDeleted {
				ni := delIdx + 1
				name, ok := sheetAtIndex(sheetOrder, ni, delIdx)
				if !ok {
					return nil, true, false
				}
				newStart = name
			}
			if endDeleted {
				ni := delIdx - 1
				name, ok := sheetAtIndex(sheetOrder, ni, delIdx)
				if !ok {
					return nil, true, false
				}
				newEnd = name
			}
			startIdx, _ := resolver(newStart)
			endIdx, _ := resolver(newEnd)
			if startIdx == endIdx {
				return &ref.SheetRef{Kind: ref.SheetSingle, Sheet: newStart}, true, true
			}
			return &ref.SheetRef{Kind: ref.SheetSpan, Start: newStart, End: newEnd}, true, true
		}
		return sheet, false, true
	}

	switch n := e.(type) {
	case *ast.CellRefExpr:
		ns, ch, ok := rewriteSheet(n.Ref.Sheet)
		if !ok {
			return refError(), true
		}
		if !ch {
			return e, false
		}
		r := n.Ref
		r.Sheet = ns
		return &ast.CellRefExpr{Ref: r}, true
	case *ast.RangeRefExpr:
		ns, ch, ok := rewriteSheet(n.Ref.Sheet)
		if !ok {
			return refError(), true
		}
		if !ch {
			return e, false
		}
		r := n.Ref
		r.Sheet = ns
		return &ast.RangeRefExpr{Ref: r}, true
	case *ast.RowRefExpr:
		ns, ch, ok := rewriteSheet(n.Ref.Sheet)
		if !ok {
			return refError(), true
		}
		if !ch {
			return e, false
		}
		r := n.Ref
		r.Sheet = ns
		return &ast.RowRefExpr{Ref: r}, true
	case *ast.ColRefExpr:
		ns, ch, ok := rewriteSheet(n.Ref.Sheet)
		if !ok {
			return refError(), true
		}
		if !ch {
			return e, false
		}
		r := n.Ref
		r.Sheet = ns
		return &ast.ColRefExpr{Ref: r}, true
	case *ast.NameRefExpr:
		ns, ch, ok := rewriteSheet(n.Ref.Sheet)
		if !ok {
			return refError(), true
		}
		if !ch {
			return e, false
		}
		r := n.Ref
		r.Sheet = ns
		return &ast.NameRefExpr{Ref: r}, true
	default:
		return rewriteChildren(e, func(child ast.Expr) (ast.Expr, bool) {
			return rewriteExprForSheetDelete(child, deletedSheet, sheetOrder)
		})
	}
}

// sheetAtIndex returns sheetOrder[idx], reporting ok=false when idx runs
// off either end or is the deleted index itself (no adjacent sheet to
// collapse the 3D span boundary onto).
func sheetAtIndex(sheetOrder []string, idx, deletedIdx int) (string, bool) {
	if idx < 0 || idx >= len(sheetOrder) {
		return "", false
	}
	if idx == deletedIdx {
		return "", false
	}
	return sheetOrder[idx], true
}

// rewriteChildren recurses into e's child expressions via f, rebuilding
// e only if at least one child changed, and special-cases a spill (#)
// unary whose operand turned into an error: the spill marker is dropped
// so the error propagates directly rather than formatting as "#REF!#".
func rewriteChildren(e ast.Expr, f func(ast.Expr) (ast.Expr, bool)) (ast.Expr, bool) {
	switch n := e.(type) {
	case *ast.Number, *ast.Bool, *ast.Text, *ast.ErrorLit,
		*ast.NameRefExpr, *ast.StructuredRefExpr:
		return e, false

	case *ast.FieldAccess:
		target, ch := f(n.Target)
		if !ch {
			return e, false
		}
		return &ast.FieldAccess{Target: target, Field: n.Field}, true

	case *ast.Call:
		changed := false
		newArgs := make([]ast.Expr, len(n.Args))
		for i, a := range n.Args {
			na, ch := f(a)
			newArgs[i] = na
			changed = changed || ch
		}
		var newCallee ast.Expr
		if n.Callee != nil {
			nc, ch := f(n.Callee)
			newCallee = nc
			changed = changed || ch
		}
		if !changed {
			return e, false
		}
		return &ast.Call{Name: n.Name, Callee: newCallee, Args: newArgs}, true

	case *ast.Unary:
		operand, ch := f(n.Operand)
		if !ch {
			return e, false
		}
		if n.Op == ast.UnaryOpSpill {
			if _, isErr := operand.(*ast.ErrorLit); isErr {
				return operand, true
			}
		}
		return &ast.Unary{Op: n.Op, Operand: operand}, true

	case *ast.Binary:
		left, ch1 := f(n.Left)
		right, ch2 := f(n.Right)
		if !ch1 && !ch2 {
			return e, false
		}
		return &ast.Binary{Op: n.Op, Left: left, Right: right}, true

	case *ast.ArrayLit:
		changed := false
		newRows := make([][]ast.Expr, len(n.Rows))
		for ri, row := range n.Rows {
			newRow := make([]ast.Expr, len(row))
			for ci, cell := range row {
				nc, ch := f(cell)
				newRow[ci] = nc
				changed = changed || ch
			}
			newRows[ri] = newRow
		}
		if !changed {
			return e, false
		}
		return &ast.ArrayLit{Rows: newRows}, true

	case *ast.LambdaExpr:
		body, ch := f(n.Body)
		if !ch {
			return e, false
		}
		return &ast.LambdaExpr{Params: n.Params, Body: body}, true

	case *ast.ImplicitIntersection:
		operand, ch := f(n.Operand)
		if !ch {
			return e, false
		}
		return &ast.ImplicitIntersection{Operand: operand}, true

	case *ast.CellRefExpr, *ast.RangeRefExpr, *ast.RowRefExpr, *ast.ColRefExpr:
		return e, false

	default:
		return e, false
	}
}
