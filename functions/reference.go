package functions

import (
	"strconv"
	"strings"

	"github.com/sparrowsheet/calcengine/ast"
	"github.com/sparrowsheet/calcengine/ref"
	"github.com/sparrowsheet/calcengine/value"
)

// These four are grouped together because they share the same dynamic-
// reference shape: OFFSET/INDIRECT resolve a Rectangle at call time and
// hand it back as a *value.Reference (so the ordinary collapse/range
// machinery in package eval takes over from there), while CELL consumes
// an address without ever reading through it as a dependency. All four
// mark their host cell volatile (spec §4.3): their result can change
// without any precedent changing.
func init() {
	register(&FunctionSpec{
		Name: "OFFSET", MinArgs: 3, MaxArgs: 5,
		ArgKinds: []ArgKind{ArgAddressOnly, ArgScalar, ArgScalar, ArgScalar, ArgScalar},
		Volatile: true, Impl: fnOffset,
	})
	register(&FunctionSpec{
		Name: "INDIRECT", MinArgs: 1, MaxArgs: 2,
		ArgKinds: []ArgKind{ArgScalar, ArgScalar},
		Volatile: true, Impl: fnIndirect,
	})
	register(&FunctionSpec{
		Name: "CELL", MinArgs: 1, MaxArgs: 2,
		ArgKinds: []ArgKind{ArgScalar, ArgAddressOnly},
		Volatile: true, Impl: fnCell,
	})
	register(&FunctionSpec{
		Name: "INFO", MinArgs: 1, MaxArgs: 1,
		ArgKinds: []ArgKind{ArgScalar},
		Volatile: true, Impl: fnInfo,
	})
}

// defaultColumnWidth is the character-width CELL("width", ...) reports.
// This engine does not track per-column widths (no host API sets them),
// so it reports Excel's own factory-default width rather than
// fabricating a per-sheet figure.
const defaultColumnWidth = 8.0

func fnOffset(ctxAny any, args Args) value.Value {
	base, ok := args[0].(*RefArg)
	if !ok {
		return value.NewError(value.ErrValue, "")
	}
	rowOff, err := numArg(args[1])
	if err != nil {
		return err
	}
	colOff, err := numArg(args[2])
	if err != nil {
		return err
	}

	height := int(base.Rect.EndRow-base.Rect.StartRow) + 1
	width := int(base.Rect.EndCol-base.Rect.StartCol) + 1
	if len(args) > 3 {
		h, err := numArg(args[3])
		if err != nil {
			return err
		}
		height = int(h)
	}
	if len(args) > 4 {
		w, err := numArg(args[4])
		if err != nil {
			return err
		}
		width = int(w)
	}
	if height <= 0 || width <= 0 {
		return value.NewError(value.ErrRef, "")
	}

	startRow := int64(base.Rect.StartRow) + int64(rowOff)
	startCol := int64(base.Rect.StartCol) + int64(colOff)
	if startRow < 0 || startCol < 0 {
		return value.NewError(value.ErrRef, "")
	}
	endRow := startRow + int64(height) - 1
	endCol := startCol + int64(width) - 1
	if endRow >= ref.MaxRows || endCol >= ref.MaxCols {
		return value.NewError(value.ErrRef, "")
	}

	rect := ref.NewRectangle(base.Rect.SheetID, uint32(startRow), uint32(startCol), uint32(endRow), uint32(endCol))
	if rc, ok := ctxAny.(RefContext); ok {
		rc.RecordReference(rect)
	}
	return &value.Reference{Rect: rect}
}

func fnIndirect(ctxAny any, args Args) value.Value {
	text, ok := textArg(args[0])
	if !ok {
		if e, isErr := value.IsError(scalar(args[0])); isErr {
			return e
		}
		return value.NewError(value.ErrValue, "")
	}
	if len(args) > 1 {
		if a1, ok := boolArg(args[1]); ok && !a1 {
			// R1C1-style ref_text: this engine's parser only accepts
			// A1-style formula text, so there is nothing to parse.
			return value.NewError(value.ErrValue, "R1C1 ref_text is not supported")
		}
	}
	rc, ok := ctxAny.(RefContext)
	if !ok {
		return value.NewError(value.ErrValue, "")
	}
	rect, ok := resolveIndirectTarget(rc, text)
	if !ok {
		return value.NewError(value.ErrRef, "")
	}
	rc.RecordReference(rect)
	return &value.Reference{Rect: rect}
}

// resolveIndirectTarget parses text the same way a formula's own
// reference literal would parse (reusing package ast's lexer/parser
// rather than a bespoke address regex), then resolves it against the
// calling cell's origin. Grounded on eval.Evaluator's rectOf/
// resolveCellRef, duplicated narrowly here since functions cannot import
// eval (eval already imports functions).
func resolveIndirectTarget(rc RefContext, text string) (ref.Rectangle, bool) {
	origin := rc.CurrentCell()
	expr, err := ast.Parse("="+text, ast.ParseContext{
		Origin:       origin,
		ResolveSheet: rc.ResolveSheet,
		CurrentSheet: rc.CurrentSheet(),
	})
	if err != nil {
		return ref.Rectangle{}, false
	}
	switch n := expr.(type) {
	case *ast.CellRefExpr:
		sheet, ok := resolveSheetRef(rc, n.Ref.Sheet)
		if !ok {
			return ref.Rectangle{}, false
		}
		row, ok1 := n.Ref.Row.Resolve(origin.Row)
		col, ok2 := n.Ref.Col.Resolve(origin.Col)
		if !ok1 || !ok2 || row < 0 || col < 0 {
			return ref.Rectangle{}, false
		}
		return ref.NewRectangle(sheet, uint32(row), uint32(col), uint32(row), uint32(col)), true
	case *ast.RangeRefExpr:
		sheet, ok := resolveSheetRef(rc, n.Ref.Sheet)
		if !ok {
			return ref.Rectangle{}, false
		}
		r1, ok1 := n.Ref.StartRow.Resolve(origin.Row)
		c1, ok2 := n.Ref.StartCol.Resolve(origin.Col)
		r2, ok3 := n.Ref.EndRow.Resolve(origin.Row)
		c2, ok4 := n.Ref.EndCol.Resolve(origin.Col)
		if !ok1 || !ok2 || !ok3 || !ok4 || r1 < 0 || c1 < 0 || r2 < 0 || c2 < 0 {
			return ref.Rectangle{}, false
		}
		return ref.NewRectangle(sheet, uint32(r1), uint32(c1), uint32(r2), uint32(c2)), true
	default:
		return ref.Rectangle{}, false
	}
}

func resolveSheetRef(rc RefContext, s *ref.SheetRef) (uint32, bool) {
	if s == nil {
		return rc.CurrentSheet(), true
	}
	if s.Kind == ref.SheetSpan {
		return 0, false
	}
	return rc.ResolveSheet(s.Sheet)
}

func fnCell(ctxAny any, args Args) value.Value {
	infoType, ok := textArg(args[0])
	if !ok {
		return value.NewError(value.ErrValue, "")
	}
	rc, _ := ctxAny.(RefContext)

	var rect ref.Rectangle
	if len(args) > 1 {
		ra, ok := args[1].(*RefArg)
		if !ok {
			return value.NewError(value.ErrValue, "")
		}
		rect = ra.Rect
	} else {
		if rc == nil {
			return value.NewError(value.ErrValue, "")
		}
		cur := rc.CurrentCell()
		rect = ref.NewRectangle(rc.CurrentSheet(), cur.Row, cur.Col, cur.Row, cur.Col)
	}
	topLeft := ref.CellAddr{Row: rect.StartRow, Col: rect.StartCol}

	switch strings.ToLower(infoType) {
	case "address":
		return "$" + ref.ColumnLetters(topLeft.Col) + "$" + strconv.Itoa(int(topLeft.Row)+1)
	case "col":
		return float64(topLeft.Col + 1)
	case "row":
		return float64(topLeft.Row + 1)
	case "width":
		return defaultColumnWidth
	case "contents":
		if rc == nil {
			return value.NewError(value.ErrValue, "")
		}
		return rc.CellValue(rect.SheetID, topLeft)
	case "type":
		if rc == nil {
			return value.NewError(value.ErrValue, "")
		}
		switch rc.CellValue(rect.SheetID, topLeft).(type) {
		case value.Blank:
			return "b"
		case string:
			return "l"
		default:
			return "v"
		}
	default:
		return value.NewError(value.ErrNA, "")
	}
}

// fnInfo supports only "recalc" (spec.md's stated Open Question, resolved
// in DESIGN.md: it reads the owning engine's calc settings, not a
// snapshot frozen at some earlier tick). Every other INFO() category
// Excel defines (numfile, origin, system, ...) has no analogue in this
// engine (no workbook/window/OS state to report) and returns #N/A rather
// than a fabricated constant.
func fnInfo(ctxAny any, args Args) value.Value {
	infoType, ok := textArg(args[0])
	if !ok {
		return value.NewError(value.ErrValue, "")
	}
	if strings.ToLower(infoType) != "recalc" {
		return value.NewError(value.ErrNA, "")
	}
	rc, ok := ctxAny.(RefContext)
	if !ok {
		return value.NewError(value.ErrValue, "")
	}
	if rc.CalcMode() == "manual" {
		return "Manual"
	}
	return "Automatic"
}

func textArg(a any) (string, bool) {
	s, ok := scalar(a).(string)
	return s, ok
}

func boolArg(a any) (bool, bool) {
	switch t := scalar(a).(type) {
	case bool:
		return t, true
	case float64:
		return t != 0, true
	default:
		return false, false
	}
}

// numArg extracts a float64 from a scalar argument, propagating an
// existing error or reporting #VALUE! if it isn't coercible to a number.
func numArg(a any) (float64, *value.ErrorValue) {
	v := scalar(a)
	if e, ok := value.IsError(v); ok {
		return 0, e
	}
	n, ok := value.ToNumber(v)
	if !ok {
		return 0, value.NewError(value.ErrValue, "")
	}
	return n, nil
}
