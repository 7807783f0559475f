// Package ref holds the coordinate and reference types shared by ast,
// compile, eval, graph, and rewrite. Keeping them in their own package
// avoids those packages importing each other just to share a CellAddr.
package ref

import "fmt"

// MaxRows and MaxCols mirror Excel's worksheet limits (2^20 rows, 2^14 cols).
const (
	MaxRows = 1 << 20
	MaxCols = 1 << 14
)

// CellAddr is a 0-based (row, col) address.
type CellAddr struct {
	Row uint32
	Col uint32
}

// Coord is either an A1-style coordinate (with an absolute/relative flag)
// or an R1C1-style signed offset from the formula's origin.
type Coord struct {
	// A1 form.
	Index uint32
	Abs   bool

	// Offset form. IsOffset selects which form is in use.
	Offset   int32
	IsOffset bool
}

// Resolve turns a Coord into an absolute 0-based index given the origin
// coordinate it is relative to. For an absolute A1 coordinate, origin is
// ignored.
func (c Coord) Resolve(origin uint32) (int64, bool) {
	if c.IsOffset {
		v := int64(origin) + int64(c.Offset)
		return v, v >= 0
	}
	if c.Abs {
		return int64(c.Index), true
	}
	// Relative A1 coordinate: Index already stores the absolute value at
	// parse time, but the *offset* from origin is what survives structural
	// rewrites, so callers that need rewrite-stable relative refs should
	// use ToOffset first.
	return int64(c.Index), true
}

// ToOffset converts a relative (non-absolute) A1 coordinate into offset
// form given the formula's origin index. Absolute coordinates are returned
// unchanged (IsOffset stays false).
func (c Coord) ToOffset(origin uint32) Coord {
	if c.IsOffset || c.Abs {
		return c
	}
	return Coord{Offset: int32(c.Index) - int32(origin), IsOffset: true}
}

// SheetRefKind discriminates a single sheet name from a 3D sheet span.
type SheetRefKind uint8

const (
	SheetSingle SheetRefKind = iota
	SheetSpan
)

// SheetRef names either one sheet or a 3D span "Start:End".
type SheetRef struct {
	Kind  SheetRefKind
	Sheet string // SheetSingle
	Start string // SheetSpan
	End   string // SheetSpan
}

func (s SheetRef) String() string {
	if s.Kind == SheetSpan {
		return s.Start + ":" + s.End
	}
	return s.Sheet
}

// Workbook names an external workbook reference, e.g. "[Book.xlsx]".
type Workbook struct {
	Name string
}

// CellRef is a (possibly sheet- and workbook-qualified) single-cell
// reference, stored relative to the formula's origin unless the
// coordinate is absolute.
type CellRef struct {
	Workbook *Workbook
	Sheet    *SheetRef
	Col      Coord
	Row      Coord
}

// RangeRef is a pair of CellRefs forming an A1:B2-style range. Both ends
// share the Workbook/Sheet qualifier in the grammar this engine accepts
// (cross-sheet ranges via ":" are rejected at evaluation time, see eval).
type RangeRef struct {
	Workbook *Workbook
	Sheet    *SheetRef
	StartCol Coord
	StartRow Coord
	EndCol   Coord
	EndRow   Coord
}

// RowRef / ColRef are whole-row / whole-column references.
type RowRef struct {
	Workbook *Workbook
	Sheet    *SheetRef
	Row      Coord
}

type ColRef struct {
	Workbook *Workbook
	Sheet    *SheetRef
	Col      Coord
}

// NameRef is a reference to a defined name, optionally scoped to a
// workbook/sheet.
type NameRef struct {
	Workbook *Workbook
	Sheet    *SheetRef
	Name     string
}

// StructuredItem enumerates the special item specifiers a structured
// reference can carry, in addition to plain column names.
type StructuredItem uint8

const (
	ItemNone StructuredItem = iota
	ItemHeaders
	ItemData
	ItemTotals
	ItemAll
	ItemThisRow
)

// StructuredRef is a table reference like Table[Col] or
// Table[#Headers],[Col].
type StructuredRef struct {
	Table   string
	Columns []string
	Item    StructuredItem
}

// Rectangle is a normalized (start <= end) cell rectangle on one sheet,
// identified by a resolved sheet ID rather than a name.
type Rectangle struct {
	SheetID  uint32
	StartRow uint32
	StartCol uint32
	EndRow   uint32
	EndCol   uint32
}

// NewRectangle canonicalizes start/end so StartRow<=EndRow, StartCol<=EndCol.
func NewRectangle(sheetID, r1, c1, r2, c2 uint32) Rectangle {
	if r1 > r2 {
		r1, r2 = r2, r1
	}
	if c1 > c2 {
		c1, c2 = c2, c1
	}
	return Rectangle{SheetID: sheetID, StartRow: r1, StartCol: c1, EndRow: r2, EndCol: c2}
}

// Contains reports whether addr lies within the rectangle.
func (r Rectangle) Contains(addr CellAddr) bool {
	return addr.Row >= r.StartRow && addr.Row <= r.EndRow &&
		addr.Col >= r.StartCol && addr.Col <= r.EndCol
}

// Intersect returns the overlapping rectangle of a and b, or ok=false if
// they are disjoint or on different sheets.
func Intersect(a, b Rectangle) (Rectangle, bool) {
	if a.SheetID != b.SheetID {
		return Rectangle{}, false
	}
	sr, er := max(a.StartRow, b.StartRow), min(a.EndRow, b.EndRow)
	sc, ec := max(a.StartCol, b.StartCol), min(a.EndCol, b.EndCol)
	if sr > er || sc > ec {
		return Rectangle{}, false
	}
	return Rectangle{SheetID: a.SheetID, StartRow: sr, StartCol: sc, EndRow: er, EndCol: ec}, true
}

// String renders an address in A1 notation (no sheet prefix).
func (a CellAddr) String() string {
	return fmt.Sprintf("%s%d", ColumnLetters(a.Col), a.Row+1)
}

// ColumnLetters converts a 0-based column index to Excel column letters
// (0 -> "A", 25 -> "Z", 26 -> "AA").
func ColumnLetters(col uint32) string {
	col++
	var buf [8]byte
	pos := len(buf)
	for col > 0 {
		col--
		pos--
		buf[pos] = byte('A' + col%26)
		col /= 26
	}
	return string(buf[pos:])
}

// ColumnIndex converts Excel column letters to a 0-based column index.
func ColumnIndex(letters string) (uint32, bool) {
	if letters == "" {
		return 0, false
	}
	var col uint32
	for _, ch := range letters {
		var v uint32
		switch {
		case ch >= 'A' && ch <= 'Z':
			v = uint32(ch-'A') + 1
		case ch >= 'a' && ch <= 'z':
			v = uint32(ch-'a') + 1
		default:
			return 0, false
		}
		col = col*26 + v
	}
	return col - 1, true
}
