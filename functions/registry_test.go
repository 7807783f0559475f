package functions

import (
	"testing"

	"github.com/sparrowsheet/calcengine/value"
)

func TestLookupCaseInsensitiveAndXlfnStrip(t *testing.T) {
	r := DefaultRegistry()
	if _, ok := r.Lookup("sum"); !ok {
		t.Fatal("expected lowercase lookup to find SUM")
	}
	if _, ok := r.Lookup("_xlfn.SUM"); !ok {
		t.Fatal("expected _xlfn. prefix to be stripped")
	}
	if _, ok := r.Lookup("NOTAREALFUNCTION"); ok {
		t.Fatal("expected unknown function to miss")
	}
}

func TestSumScalarArgs(t *testing.T) {
	spec, _ := DefaultRegistry().Lookup("SUM")
	got := spec.Impl(nil, Args{value.Value(1.0), value.Value(2.0), value.Value(3.0)})
	if got.(float64) != 6 {
		t.Fatalf("SUM(1,2,3) = %v, want 6", got)
	}
}

func TestIfTruthy(t *testing.T) {
	spec, _ := DefaultRegistry().Lookup("IF")
	got := spec.Impl(nil, Args{value.Value(true), value.Value("yes"), value.Value("no")})
	if got.(string) != "yes" {
		t.Fatalf("IF(TRUE,...) = %v, want yes", got)
	}
}

func TestVLookupExactMatch(t *testing.T) {
	spec, _ := DefaultRegistry().Lookup("VLOOKUP")
	table := &value.Array{Rows: 3, Cols: 2, Data: []value.Value{
		"a", 1.0,
		"b", 2.0,
		"c", 3.0,
	}}
	got := spec.Impl(nil, Args{value.Value("b"), table, value.Value(2.0), value.Value(false)})
	if got.(float64) != 2 {
		t.Fatalf("VLOOKUP = %v, want 2", got)
	}
}

func TestDivisionByZeroError(t *testing.T) {
	spec, _ := DefaultRegistry().Lookup("MOD")
	got := spec.Impl(nil, Args{value.Value(5.0), value.Value(0.0)})
	e, ok := value.IsError(got)
	if !ok || e.Kind != value.ErrDiv0 {
		t.Fatalf("MOD(5,0) = %v, want #DIV/0!", got)
	}
}
