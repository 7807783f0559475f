package eval

import (
	"math"

	"github.com/sparrowsheet/calcengine/ast"
	"github.com/sparrowsheet/calcengine/compile"
	"github.com/sparrowsheet/calcengine/functions"
	"github.com/sparrowsheet/calcengine/ref"
	"github.com/sparrowsheet/calcengine/value"
)

// Evaluator walks a *compile.Expr tree against a Context and produces a
// value.Value. It holds no state of its own beyond the Context it's
// given per call, so a single Evaluator can be shared across goroutines
// as long as each carries its own Context.
type Evaluator struct{}

// New returns an Evaluator. There is nothing to configure: all the
// per-recalculation state (clock, rng, scope stack) lives on Context.
func New() *Evaluator {
	return &Evaluator{}
}

// Eval evaluates a compiled expression in the given context.
func (ev *Evaluator) Eval(ctx Context, e *compile.Expr) value.Value {
	return ev.eval(ctx, e)
}

func (ev *Evaluator) eval(ctx Context, e *compile.Expr) value.Value {
	switch e.Kind {
	case compile.KNumber:
		return e.Number
	case compile.KBool:
		return e.Bool
	case compile.KText:
		return e.Text
	case compile.KError:
		kind, _ := value.ErrorKindFromString(e.Error)
		return value.NewError(kind, "")
	case compile.KCellRef:
		return ev.evalCellRef(ctx, e)
	case compile.KRangeRef, compile.KRowRef, compile.KColRef, compile.KStructuredRef:
		return ev.evalRangeRef(ctx, e)
	case compile.KNameRef:
		return ev.evalNameRef(ctx, e)
	case compile.KFieldAccess:
		return ev.evalFieldAccess(ctx, e)
	case compile.KCall:
		return ev.evalCall(ctx, e)
	case compile.KUnary:
		return ev.evalUnary(ctx, e)
	case compile.KBinary:
		return ev.evalBinary(ctx, e)
	case compile.KArrayLit:
		return ev.evalArrayLit(ctx, e)
	case compile.KLambda:
		return &value.Lambda{Params: e.LambdaParams, Body: e.LambdaBody, CapturedEnv: ev.snapshotScope(ctx, e.LambdaBody)}
	case compile.KImplicitIntersection:
		return ev.evalImplicitIntersection(ctx, e)
	}
	return value.NewError(value.ErrValue, "unhandled expression kind")
}

// resolveSheetFor maps an optional sheet qualifier to a sheet ID,
// defaulting to the current sheet when unqualified. 3D sheet spans are
// not resolvable to a single ID; callers that hit SheetSpan report
// failure rather than guessing a sheet.
func (ev *Evaluator) resolveSheetFor(ctx Context, s *ref.SheetRef) (uint32, bool) {
	if s == nil {
		return ctx.CurrentSheet(), true
	}
	if s.Kind == ref.SheetSpan {
		return 0, false
	}
	return ctx.ResolveSheet(s.Sheet)
}

func (ev *Evaluator) resolveCellRef(ctx Context, cr ref.CellRef) (ref.CellAddr, uint32, bool) {
	sheet, ok := ev.resolveSheetFor(ctx, cr.Sheet)
	if !ok {
		return ref.CellAddr{}, 0, false
	}
	origin := ctx.CurrentCell()
	row, ok1 := cr.Row.Resolve(origin.Row)
	col, ok2 := cr.Col.Resolve(origin.Col)
	if !ok1 || !ok2 || row < 0 || col < 0 {
		return ref.CellAddr{}, 0, false
	}
	return ref.CellAddr{Row: uint32(row), Col: uint32(col)}, sheet, true
}

func (ev *Evaluator) evalCellRef(ctx Context, e *compile.Expr) value.Value {
	addr, sheet, ok := ev.resolveCellRef(ctx, e.CellRef)
	if !ok {
		return value.NewError(value.ErrRef, "")
	}
	return ctx.CellValue(sheet, addr)
}

func (ev *Evaluator) evalRangeRef(ctx Context, e *compile.Expr) value.Value {
	rect, ok := ev.rectOf(ctx, e)
	if !ok {
		return value.NewError(value.ErrRef, "")
	}
	ctx.RecordReference(rect)
	return &value.Reference{Rect: rect}
}

// rectOf resolves any reference-kind compile.Expr to a concrete
// Rectangle against the current origin.
func (ev *Evaluator) rectOf(ctx Context, e *compile.Expr) (ref.Rectangle, bool) {
	origin := ctx.CurrentCell()
	switch e.Kind {
	case compile.KCellRef:
		addr, sheet, ok := ev.resolveCellRef(ctx, e.CellRef)
		if !ok {
			return ref.Rectangle{}, false
		}
		return ref.NewRectangle(sheet, addr.Row, addr.Col, addr.Row, addr.Col), true

	case compile.KRangeRef:
		sheet, ok := ev.resolveSheetFor(ctx, e.RangeRef.Sheet)
		if !ok {
			return ref.Rectangle{}, false
		}
		r1, ok1 := e.RangeRef.StartRow.Resolve(origin.Row)
		c1, ok2 := e.RangeRef.StartCol.Resolve(origin.Col)
		r2, ok3 := e.RangeRef.EndRow.Resolve(origin.Row)
		c2, ok4 := e.RangeRef.EndCol.Resolve(origin.Col)
		if !ok1 || !ok2 || !ok3 || !ok4 || r1 < 0 || c1 < 0 || r2 < 0 || c2 < 0 {
			return ref.Rectangle{}, false
		}
		return ref.NewRectangle(sheet, uint32(r1), uint32(c1), uint32(r2), uint32(c2)), true

	case compile.KRowRef:
		sheet, ok := ev.resolveSheetFor(ctx, e.RowRef.Sheet)
		if !ok {
			return ref.Rectangle{}, false
		}
		r, ok2 := e.RowRef.Row.Resolve(origin.Row)
		if !ok2 || r < 0 {
			return ref.Rectangle{}, false
		}
		return ref.Rectangle{SheetID: sheet, StartRow: uint32(r), EndRow: uint32(r), StartCol: 0, EndCol: ref.MaxCols - 1}, true

	case compile.KColRef:
		sheet, ok := ev.resolveSheetFor(ctx, e.ColRef.Sheet)
		if !ok {
			return ref.Rectangle{}, false
		}
		c, ok2 := e.ColRef.Col.Resolve(origin.Col)
		if !ok2 || c < 0 {
			return ref.Rectangle{}, false
		}
		return ref.Rectangle{SheetID: sheet, StartRow: 0, EndRow: ref.MaxRows - 1, StartCol: uint32(c), EndCol: uint32(c)}, true

	case compile.KStructuredRef:
		col := ""
		if len(e.StructuredRef.Columns) > 0 {
			col = e.StructuredRef.Columns[0]
		}
		name, ok := ctx.ResolveName(e.StructuredRef.Table+"["+col+"]", ctx.CurrentSheet())
		if !ok {
			return ref.Rectangle{}, false
		}
		sub, ok2 := name.Body.(*compile.Expr)
		if !ok2 {
			return ref.Rectangle{}, false
		}
		return ev.rectOf(ctx, sub)
	}
	return ref.Rectangle{}, false
}

func (ev *Evaluator) evalNameRef(ctx Context, e *compile.Expr) value.Value {
	name, ok := ctx.ResolveName(e.NameRef.Name, ctx.CurrentSheet())
	if !ok {
		return value.NewError(value.ErrName, "")
	}
	body, ok := name.Body.(*compile.Expr)
	if !ok {
		return value.NewError(value.ErrName, "")
	}
	return ev.eval(ctx, body)
}

func (ev *Evaluator) evalFieldAccess(ctx Context, e *compile.Expr) value.Value {
	target := ev.eval(ctx, e.Operand)
	if rec, ok := target.(*value.Record); ok {
		if v, ok := rec.Values[e.Field]; ok {
			return v
		}
		return value.NewError(value.ErrValue, "")
	}
	if ent, ok := target.(*value.Entity); ok {
		if v, ok := ent.Fields[e.Field]; ok {
			return v
		}
	}
	return value.NewError(value.ErrValue, "")
}

func (ev *Evaluator) evalImplicitIntersection(ctx Context, e *compile.Expr) value.Value {
	v := ev.eval(ctx, e.Operand)
	return ev.collapse(ctx, v)
}

func (ev *Evaluator) evalArrayLit(ctx Context, e *compile.Expr) value.Value {
	rows := len(e.ArrayRows)
	if rows == 0 {
		return value.NewArray(0, 0)
	}
	cols := len(e.ArrayRows[0])
	arr := value.NewArray(rows, cols)
	for r, row := range e.ArrayRows {
		for c, el := range row {
			arr.Set(r, c, ev.collapse(ctx, ev.eval(ctx, el)))
		}
	}
	return arr
}

func (ev *Evaluator) evalUnary(ctx Context, e *compile.Expr) value.Value {
	v := ev.collapse(ctx, ev.eval(ctx, e.Operand))
	if errv, ok := value.IsError(v); ok {
		return errv
	}
	n, ok := value.ToNumber(v)
	if !ok {
		return value.NewError(value.ErrValue, "")
	}
	switch e.UnaryOp {
	case ast.UnaryOpPlus:
		return n
	case ast.UnaryOpMinus:
		return -n
	case ast.UnaryOpPercent:
		return n / 100
	default:
		return value.NewError(value.ErrValue, "")
	}
}

// collapse reduces a *value.Reference to its scalar content via implicit
// intersection against the current cell. Non-reference values pass
// through unchanged.
func (ev *Evaluator) collapse(ctx Context, v value.Value) value.Value {
	refv, ok := v.(*value.Reference)
	if !ok {
		return v
	}
	origin := ctx.CurrentCell()
	rect := refv.Rect
	if rect.Contains(origin) {
		return ctx.CellValue(rect.SheetID, origin)
	}
	if rect.StartRow == rect.EndRow && rect.StartCol == rect.EndCol {
		return ctx.CellValue(rect.SheetID, ref.CellAddr{Row: rect.StartRow, Col: rect.StartCol})
	}
	if rect.StartCol == rect.EndCol && origin.Row >= rect.StartRow && origin.Row <= rect.EndRow {
		return ctx.CellValue(rect.SheetID, ref.CellAddr{Row: origin.Row, Col: rect.StartCol})
	}
	if rect.StartRow == rect.EndRow && origin.Col >= rect.StartCol && origin.Col <= rect.EndCol {
		return ctx.CellValue(rect.SheetID, ref.CellAddr{Row: rect.StartRow, Col: origin.Col})
	}
	return value.NewError(value.ErrValue, "")
}

// evalBinary dispatches reference-algebra operators (union, intersect,
// range) to their own handlers, since those operate on Rectangles
// without collapsing to scalars; every other operator collapses or
// array-broadcasts its operands first.
func (ev *Evaluator) evalBinary(ctx Context, e *compile.Expr) value.Value {
	switch e.BinaryOp {
	case ast.BinOpUnion:
		return ev.evalUnion(ctx, e)
	case ast.BinOpIntersect:
		return ev.evalIntersectOp(ctx, e)
	case ast.BinOpRange:
		return ev.evalRangeOp(ctx, e)
	}
	left := ev.collapseOrArray(ctx, ev.eval(ctx, e.Left))
	right := ev.collapseOrArray(ctx, ev.eval(ctx, e.Right))
	return ev.broadcastBinary(e.BinaryOp, left, right)
}

func (ev *Evaluator) asRects(v value.Value) []ref.Rectangle {
	switch t := v.(type) {
	case *value.Reference:
		return []ref.Rectangle{t.Rect}
	case *value.ReferenceUnion:
		rects := make([]ref.Rectangle, len(t.Refs))
		for i, r := range t.Refs {
			rects[i] = r.Rect
		}
		return rects
	}
	return nil
}

func (ev *Evaluator) evalUnion(ctx Context, e *compile.Expr) value.Value {
	rects := append(ev.asRects(ev.eval(ctx, e.Left)), ev.asRects(ev.eval(ctx, e.Right))...)
	if len(rects) == 0 {
		return value.NewError(value.ErrValue, "")
	}
	if len(rects) == 1 {
		return &value.Reference{Rect: rects[0]}
	}
	refs := make([]value.Reference, len(rects))
	for i, r := range rects {
		refs[i] = value.Reference{Rect: r}
	}
	return &value.ReferenceUnion{Refs: refs}
}

func (ev *Evaluator) evalIntersectOp(ctx Context, e *compile.Expr) value.Value {
	lr, lok := ev.eval(ctx, e.Left).(*value.Reference)
	rr, rok := ev.eval(ctx, e.Right).(*value.Reference)
	if !lok || !rok {
		return value.NewError(value.ErrValue, "")
	}
	rect, ok := ref.Intersect(lr.Rect, rr.Rect)
	if !ok {
		return value.NewError(value.ErrNull, "")
	}
	return &value.Reference{Rect: rect}
}

func (ev *Evaluator) evalRangeOp(ctx Context, e *compile.Expr) value.Value {
	lr, lok := ev.eval(ctx, e.Left).(*value.Reference)
	rr, rok := ev.eval(ctx, e.Right).(*value.Reference)
	if !lok || !rok || lr.Rect.SheetID != rr.Rect.SheetID {
		return value.NewError(value.ErrValue, "")
	}
	sr, er := minUint(lr.Rect.StartRow, rr.Rect.StartRow), maxUint(lr.Rect.EndRow, rr.Rect.EndRow)
	sc, ec := minUint(lr.Rect.StartCol, rr.Rect.StartCol), maxUint(lr.Rect.EndCol, rr.Rect.EndCol)
	return &value.Reference{Rect: ref.Rectangle{SheetID: lr.Rect.SheetID, StartRow: sr, EndRow: er, StartCol: sc, EndCol: ec}}
}

// collapseOrArray turns a *value.Reference into a scalar (single cell)
// or a materialized *value.Array (multi-cell), so arithmetic/comparison
// operators can treat it uniformly with array literals.
func (ev *Evaluator) collapseOrArray(ctx Context, v value.Value) value.Value {
	rv, ok := v.(*value.Reference)
	if !ok {
		return v
	}
	rows, cols := ctx.RangeDims(rv.Rect)
	if rows == 1 && cols == 1 {
		return ctx.CellValue(rv.Rect.SheetID, ref.CellAddr{Row: rv.Rect.StartRow, Col: rv.Rect.StartCol})
	}
	arr := value.NewArray(rows, cols)
	i := 0
	ctx.IterRange(rv.Rect, func(cell value.Value) bool {
		if i < len(arr.Data) {
			arr.Data[i] = cell
		}
		i++
		return true
	})
	return arr
}

// broadcastBinary applies a scalar binary operator elementwise when
// either operand is an array, broadcasting a 1-row/1-col operand or a
// scalar against the other operand's shape (spec §4.5's array lifting).
func (ev *Evaluator) broadcastBinary(op ast.BinaryOp, left, right value.Value) value.Value {
	la, lok := left.(*value.Array)
	ra, rok := right.(*value.Array)
	if !lok && !rok {
		return ev.scalarBinary(op, left, right)
	}
	rows, cols := 1, 1
	if lok {
		rows, cols = la.Rows, la.Cols
	}
	if rok && (ra.Rows > rows || ra.Cols > cols) {
		rows, cols = ra.Rows, ra.Cols
	}
	out := value.NewArray(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			lv, rv := left, right
			if lok {
				lv = la.At(minInt(r, la.Rows-1), minInt(c, la.Cols-1))
			}
			if rok {
				rv = ra.At(minInt(r, ra.Rows-1), minInt(c, ra.Cols-1))
			}
			out.Set(r, c, ev.scalarBinary(op, lv, rv))
		}
	}
	return out
}

func (ev *Evaluator) scalarBinary(op ast.BinaryOp, left, right value.Value) value.Value {
	if errv, ok := value.IsError(left); ok {
		return errv
	}
	if errv, ok := value.IsError(right); ok {
		return errv
	}
	switch op {
	case ast.BinOpConcat:
		return value.ToText(left) + value.ToText(right)
	case ast.BinOpEqual:
		return value.Equal(left, right)
	case ast.BinOpNotEqual:
		return !value.Equal(left, right)
	case ast.BinOpLess:
		return value.Compare(left, right) < 0
	case ast.BinOpLessEqual:
		return value.Compare(left, right) <= 0
	case ast.BinOpGreater:
		return value.Compare(left, right) > 0
	case ast.BinOpGreaterEqual:
		return value.Compare(left, right) >= 0
	}
	a, aok := value.ToNumber(left)
	b, bok := value.ToNumber(right)
	if !aok || !bok {
		return value.NewError(value.ErrValue, "")
	}
	switch op {
	case ast.BinOpAdd:
		return a + b
	case ast.BinOpSubtract:
		return a - b
	case ast.BinOpMultiply:
		return a * b
	case ast.BinOpDivide:
		if b == 0 {
			return value.NewError(value.ErrDiv0, "")
		}
		return a / b
	case ast.BinOpPower:
		return math.Pow(a, b)
	}
	return value.NewError(value.ErrValue, "")
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func minUint(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func maxUint(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

func (ev *Evaluator) evalCall(ctx Context, e *compile.Expr) value.Value {
	if e.Callee != nil {
		return ev.evalLambdaCall(ctx, e)
	}
	if e.FuncSpec == nil {
		return value.NewError(value.ErrName, "")
	}
	args := ev.buildArgs(ctx, e)
	return e.FuncSpec.Impl(ctx, args)
}

// buildArgs lowers each argument expression into a functions.Args entry:
// range/array-kind arguments stay lazy (an *functions.ArgRef streaming
// cells, or the materialized *value.Array for literal arrays), scalar
// arguments collapse references via implicit intersection immediately.
func (ev *Evaluator) buildArgs(ctx Context, e *compile.Expr) functions.Args {
	spec := e.FuncSpec
	out := make(functions.Args, 0, len(e.Args))
	for i, a := range e.Args {
		kind := functions.ArgAny
		switch {
		case i < len(spec.ArgKinds):
			kind = spec.ArgKinds[i]
		case len(spec.ArgKinds) > 0:
			kind = spec.ArgKinds[len(spec.ArgKinds)-1]
		}
		if kind == functions.ArgAddressOnly {
			rect, ok := ev.rectOf(ctx, a)
			if !ok {
				out = append(out, value.NewError(value.ErrRef, ""))
				continue
			}
			out = append(out, &functions.RefArg{Rect: rect})
			continue
		}
		v := ev.eval(ctx, a)
		if kind == functions.ArgRange {
			out = append(out, ev.toArgRef(ctx, v))
		} else {
			out = append(out, ev.collapse(ctx, v))
		}
	}
	return out
}

func (ev *Evaluator) toArgRef(ctx Context, v value.Value) any {
	switch t := v.(type) {
	case *value.Reference:
		rows, cols := ctx.RangeDims(t.Rect)
		rect := t.Rect
		return &functions.ArgRef{
			Rows:  rows,
			Cols:  cols,
			Count: rows * cols,
			Cells: func(yield func(value.Value) bool) { ctx.IterRange(rect, yield) },
		}
	case *value.Array:
		return t
	default:
		return v
	}
}

func (ev *Evaluator) evalLambdaCall(ctx Context, e *compile.Expr) value.Value {
	if !ctx.PushDepth() {
		return value.NewError(value.ErrNum, "recursion depth exceeded")
	}
	defer ctx.PopDepth()

	callee := ev.eval(ctx, e.Callee)
	lam, ok := callee.(*value.Lambda)
	if !ok {
		return value.NewError(value.ErrValue, "")
	}
	body, ok := lam.Body.(*compile.Expr)
	if !ok {
		return value.NewError(value.ErrValue, "")
	}
	ctx.PushScope()
	defer ctx.PopScope()
	for name, v := range lam.CapturedEnv {
		ctx.SetLocal(name, v)
	}
	for i, p := range lam.Params {
		var argv value.Value = value.Blank{}
		if i < len(e.Args) {
			argv = ev.collapse(ctx, ev.eval(ctx, e.Args[i]))
		}
		ctx.SetLocal(p, argv)
	}
	return ev.eval(ctx, body)
}

// snapshotScope captures the local bindings currently visible for the
// names the body refers to, so a LAMBDA literal closes over its defining
// environment rather than the environment active at call time. Bindings
// the body does not name are not captured.
func (ev *Evaluator) snapshotScope(ctx Context, body *compile.Expr) map[string]value.Value {
	env := map[string]value.Value{}
	var names []string
	compile.Walk(body, func(n *compile.Expr) {
		if n.Kind == compile.KNameRef {
			names = append(names, n.NameRef.Name)
		}
	})
	for _, n := range names {
		if v, ok := ctx.GetLocal(n); ok {
			env[n] = v
		}
	}
	return env
}
