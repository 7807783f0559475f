package functions

import (
	"testing"

	"github.com/sparrowsheet/calcengine/ref"
	"github.com/sparrowsheet/calcengine/value"
)

// fakeRefContext is a minimal RefContext over an in-memory cell map, used
// to exercise OFFSET/INDIRECT/CELL/INFO without a real Engine.
type fakeRefContext struct {
	sheets   map[string]uint32
	cells    map[uint32]map[ref.CellAddr]value.Value
	sheet    uint32
	cell     ref.CellAddr
	recorded []ref.Rectangle
	calcMode string
}

func newFakeRefContext() *fakeRefContext {
	return &fakeRefContext{
		sheets: map[string]uint32{"Sheet1": 0},
		cells:  map[uint32]map[ref.CellAddr]value.Value{0: {}},
	}
}

func (f *fakeRefContext) set(addr ref.CellAddr, v value.Value) { f.cells[0][addr] = v }

func (f *fakeRefContext) CellValue(sheet uint32, addr ref.CellAddr) value.Value {
	if m, ok := f.cells[sheet]; ok {
		if v, ok := m[addr]; ok {
			return v
		}
	}
	return value.Blank{}
}

func (f *fakeRefContext) IterRange(rect ref.Rectangle, yield func(value.Value) bool) {
	for r := rect.StartRow; r <= rect.EndRow; r++ {
		for c := rect.StartCol; c <= rect.EndCol; c++ {
			if !yield(f.CellValue(rect.SheetID, ref.CellAddr{Row: r, Col: c})) {
				return
			}
		}
	}
}

func (f *fakeRefContext) RangeDims(rect ref.Rectangle) (int, int) {
	return int(rect.EndRow-rect.StartRow) + 1, int(rect.EndCol-rect.StartCol) + 1
}

func (f *fakeRefContext) ResolveSheet(name string) (uint32, bool) {
	id, ok := f.sheets[name]
	return id, ok
}

func (f *fakeRefContext) CurrentSheet() uint32      { return f.sheet }
func (f *fakeRefContext) CurrentCell() ref.CellAddr { return f.cell }
func (f *fakeRefContext) CalcMode() string          { return f.calcMode }
func (f *fakeRefContext) RecordReference(rect ref.Rectangle) {
	f.recorded = append(f.recorded, rect)
}

func TestOffsetShiftsRectangleAndRecordsDynamicPrecedent(t *testing.T) {
	spec, ok := DefaultRegistry().Lookup("OFFSET")
	if !ok {
		t.Fatal("OFFSET not registered")
	}
	ctx := newFakeRefContext()
	base := &RefArg{Rect: ref.NewRectangle(0, 0, 0, 0, 0)} // A1
	got := spec.Impl(ctx, Args{base, value.Value(1.0), value.Value(0.0)})
	r, ok := got.(*value.Reference)
	if !ok {
		t.Fatalf("OFFSET(A1,1,0) = %#v, want *value.Reference", got)
	}
	if r.Rect.StartRow != 1 || r.Rect.StartCol != 0 {
		t.Fatalf("OFFSET(A1,1,0) resolved to %+v, want row 1 col 0 (A2)", r.Rect)
	}
	if len(ctx.recorded) != 1 || ctx.recorded[0] != r.Rect {
		t.Fatalf("expected OFFSET to record its resolved rectangle as a dynamic precedent, got %+v", ctx.recorded)
	}
}

func TestOffsetRejectsNegativeOrigin(t *testing.T) {
	spec, _ := DefaultRegistry().Lookup("OFFSET")
	ctx := newFakeRefContext()
	base := &RefArg{Rect: ref.NewRectangle(0, 0, 0, 0, 0)} // A1
	got := spec.Impl(ctx, Args{base, value.Value(-1.0), value.Value(0.0)})
	e, ok := value.IsError(got)
	if !ok || e.Kind != value.ErrRef {
		t.Fatalf("OFFSET(A1,-1,0) = %#v, want #REF!", got)
	}
}

func TestIndirectResolvesA1StyleString(t *testing.T) {
	spec, _ := DefaultRegistry().Lookup("INDIRECT")
	ctx := newFakeRefContext()
	ctx.set(ref.CellAddr{Row: 1, Col: 1}, 42.0) // B2
	got := spec.Impl(ctx, Args{value.Value("B2")})
	r, ok := got.(*value.Reference)
	if !ok {
		t.Fatalf("INDIRECT(\"B2\") = %#v, want *value.Reference", got)
	}
	if r.Rect.StartRow != 1 || r.Rect.StartCol != 1 {
		t.Fatalf("INDIRECT(\"B2\") resolved to %+v, want row 1 col 1", r.Rect)
	}
	if len(ctx.recorded) != 1 {
		t.Fatalf("expected INDIRECT to record a dynamic precedent, got %d", len(ctx.recorded))
	}
}

func TestIndirectRejectsR1C1Style(t *testing.T) {
	spec, _ := DefaultRegistry().Lookup("INDIRECT")
	ctx := newFakeRefContext()
	got := spec.Impl(ctx, Args{value.Value("R2C2"), value.Value(false)})
	if _, ok := value.IsError(got); !ok {
		t.Fatalf("INDIRECT(\"R2C2\",FALSE) = %#v, want an error (R1C1 unsupported)", got)
	}
}

func TestCellWidthDefaultsWithoutTrackingColumnWidths(t *testing.T) {
	spec, _ := DefaultRegistry().Lookup("CELL")
	ctx := newFakeRefContext()
	ref := &RefArg{Rect: refRect(0, 0)}
	got := spec.Impl(ctx, Args{value.Value("width"), ref})
	if got != defaultColumnWidth {
		t.Fatalf("CELL(\"width\",A1) = %#v, want %v", got, defaultColumnWidth)
	}
}

func TestCellContentsReadsReferencedCell(t *testing.T) {
	spec, _ := DefaultRegistry().Lookup("CELL")
	ctx := newFakeRefContext()
	ctx.set(ref.CellAddr{Row: 0, Col: 0}, "hello")
	r := &RefArg{Rect: refRect(0, 0)}
	got := spec.Impl(ctx, Args{value.Value("contents"), r})
	if got != "hello" {
		t.Fatalf("CELL(\"contents\",A1) = %#v, want hello", got)
	}
}

func TestInfoRecalcReflectsCalcMode(t *testing.T) {
	spec, _ := DefaultRegistry().Lookup("INFO")
	ctx := newFakeRefContext()
	ctx.calcMode = "manual"
	got := spec.Impl(ctx, Args{value.Value("recalc")})
	if got != "Manual" {
		t.Fatalf("INFO(\"recalc\") = %#v, want Manual", got)
	}
}

func TestInfoUnsupportedCategoryIsNA(t *testing.T) {
	spec, _ := DefaultRegistry().Lookup("INFO")
	ctx := newFakeRefContext()
	got := spec.Impl(ctx, Args{value.Value("numfile")})
	e, ok := value.IsError(got)
	if !ok || e.Kind != value.ErrNA {
		t.Fatalf("INFO(\"numfile\") = %#v, want #N/A", got)
	}
}

func refRect(row, col uint32) ref.Rectangle {
	return ref.NewRectangle(0, row, col, row, col)
}
