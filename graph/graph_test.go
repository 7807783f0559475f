package graph

import "testing"

func TestLevelsOrdersByDependency(t *testing.T) {
	g := New()
	a1 := Addr{Sheet: 0, Row: 0, Col: 0}
	a2 := Addr{Sheet: 0, Row: 1, Col: 0}
	a3 := Addr{Sheet: 0, Row: 2, Col: 0}

	// a3 = a2 + 1; a2 = a1 + 1
	g.SetPrecedents(a2, []Addr{a1}, nil, false)
	g.SetPrecedents(a3, []Addr{a2}, nil, false)
	g.MarkDirty(a1)
	g.MarkDirty(a2)
	g.MarkDirty(a3)

	levels, cyc := g.Levels()
	if cyc != nil {
		t.Fatalf("unexpected cycle: %v", cyc)
	}
	if len(levels) != 3 {
		t.Fatalf("got %d levels, want 3", len(levels))
	}
	if levels[0][0] != a1 || levels[1][0] != a2 || levels[2][0] != a3 {
		t.Fatalf("unexpected level order: %+v", levels)
	}
}

func TestLevelsDetectsCycle(t *testing.T) {
	g := New()
	a1 := Addr{Sheet: 0, Row: 0, Col: 0}
	a2 := Addr{Sheet: 0, Row: 1, Col: 0}
	g.SetPrecedents(a1, []Addr{a2}, nil, false)
	g.SetPrecedents(a2, []Addr{a1}, nil, false)
	g.MarkDirty(a1)
	g.MarkDirty(a2)

	_, cyc := g.Levels()
	if cyc == nil {
		t.Fatal("expected a cycle to be detected")
	}
}

func TestSetInCycleCellsFlagsAndClearsNodes(t *testing.T) {
	g := New()
	a1 := Addr{Sheet: 0, Row: 0, Col: 0}
	a2 := Addr{Sheet: 0, Row: 1, Col: 0}
	g.getOrCreate(a1)
	g.getOrCreate(a2)

	g.SetInCycleCells([]Addr{a1, a2})
	n1, _ := g.Node(a1)
	n2, _ := g.Node(a2)
	if !n1.InCycle || !n2.InCycle {
		t.Fatal("expected both nodes flagged in_cycle")
	}
	if len(g.InCycleCells()) != 2 {
		t.Fatalf("got %d in-cycle cells, want 2", len(g.InCycleCells()))
	}

	g.SetInCycleCells([]Addr{a1})
	n1, _ = g.Node(a1)
	n2, _ = g.Node(a2)
	if !n1.InCycle {
		t.Fatal("expected a1 still flagged in_cycle")
	}
	if n2.InCycle {
		t.Fatal("expected a2 cleared once no longer cyclic")
	}
}

func TestMarkDirtyWithDependentsPropagates(t *testing.T) {
	g := New()
	a1 := Addr{Sheet: 0, Row: 0, Col: 0}
	a2 := Addr{Sheet: 0, Row: 1, Col: 0}
	a3 := Addr{Sheet: 0, Row: 2, Col: 0}
	g.SetPrecedents(a2, []Addr{a1}, nil, false)
	g.SetPrecedents(a3, []Addr{a2}, nil, false)

	g.MarkDirtyWithDependents(a1)
	if _, ok := g.Node(a2); !ok {
		t.Fatal("expected a2 node to exist")
	}
	for _, a := range []Addr{a1, a2, a3} {
		if _, dirty := g.dirty[a]; !dirty {
			t.Fatalf("expected %+v to be dirty", a)
		}
	}
}

func TestSpillConflictDetected(t *testing.T) {
	g := New()
	anchor := Addr{Sheet: 0, Row: 0, Col: 0}
	occupied := Addr{Sheet: 0, Row: 0, Col: 1}
	cells := []Addr{anchor, occupied}

	_, conflict := g.SetSpill(anchor, cells, func(a Addr) bool { return a == occupied })
	if !conflict {
		t.Fatal("expected a spill conflict against an occupied neighbor")
	}
}
