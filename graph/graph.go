// Package graph tracks cell-to-cell and cell-to-range dependencies and
// drives recalculation. It is grounded on the teacher's graph.go
// (DependencyGraph, three-state DFS calculation order) generalized two
// ways: precedents are now sheet-qualified addresses (spec supports
// multiple sheets), and recalculation batches cells into topological
// levels so independent cells within a level compute in parallel.
package graph

import (
	"fmt"

	"github.com/sparrowsheet/calcengine/ref"
)

// Addr is a sheet-qualified cell address, the node key for the graph.
type Addr struct {
	Sheet uint32
	Row   uint32
	Col   uint32
}

func AddrOf(sheet uint32, a ref.CellAddr) Addr {
	return Addr{Sheet: sheet, Row: a.Row, Col: a.Col}
}

func (a Addr) CellAddr() ref.CellAddr { return ref.CellAddr{Row: a.Row, Col: a.Col} }

// RangeKey identifies an observed rectangle for range-dependency tracking.
type RangeKey struct {
	Sheet                    uint32
	StartRow, StartCol       uint32
	EndRow, EndCol           uint32
}

func rangeKeyOf(rect ref.Rectangle) RangeKey {
	return RangeKey{rect.SheetID, rect.StartRow, rect.StartCol, rect.EndRow, rect.EndCol}
}

func (k RangeKey) contains(a Addr) bool {
	return a.Sheet == k.Sheet && a.Row >= k.StartRow && a.Row <= k.EndRow && a.Col >= k.StartCol && a.Col <= k.EndCol
}

// Node is one formula cell's position in the dependency graph.
type Node struct {
	Addr Addr

	CellPrecedents map[Addr]struct{}
	CellDependents map[Addr]struct{}

	RangePrecedents map[RangeKey]struct{}

	// DynamicRangePrecedents holds the ranges an OFFSET/INDIRECT call in
	// this cell's formula resolved to on its most recent evaluation.
	// Unlike RangePrecedents (fixed at compile time), this set is rebuilt
	// every recalculation: the resolved target can move between ticks, so
	// it is cleared and re-populated by each computeOne call rather than
	// by SetPrecedents.
	DynamicRangePrecedents map[RangeKey]struct{}

	IsVolatile bool
	IsDirty    bool

	// InCycle marks a cell caught in a dependency cycle on the most
	// recent recalculation. A cyclic cell keeps its last computed value
	// (or 0 if it has never been computed) rather than recomputing,
	// unless iterative calculation is enabled.
	InCycle bool

	// SpillAnchor is the top-left cell of the spill region this node's
	// formula would produce; SpillCells covers all occupied cells other
	// than the anchor, used to detect spill collisions when a neighbor
	// changes shape.
	SpillAnchor Addr
	SpillCells  map[Addr]struct{}
}

// Graph is the live dependency graph for a workbook.
type Graph struct {
	nodes          map[Addr]*Node
	rangeObservers map[RangeKey]map[Addr]struct{}
	dirty          map[Addr]struct{}
	volatile       map[Addr]struct{}
	inCycle        map[Addr]struct{}

	// spillOwner maps every cell occupied by a spill (anchor or
	// overflow) back to the anchor that owns it, so a plain value write
	// into a spilled-over cell can be detected as a #SPILL! conflict.
	spillOwner map[Addr]Addr
}

func New() *Graph {
	return &Graph{
		nodes:          make(map[Addr]*Node),
		rangeObservers: make(map[RangeKey]map[Addr]struct{}),
		dirty:          make(map[Addr]struct{}),
		volatile:       make(map[Addr]struct{}),
		inCycle:        make(map[Addr]struct{}),
		spillOwner:     make(map[Addr]Addr),
	}
}

func (g *Graph) getOrCreate(a Addr) *Node {
	if n, ok := g.nodes[a]; ok {
		return n
	}
	n := &Node{
		Addr:                   a,
		CellPrecedents:         make(map[Addr]struct{}),
		CellDependents:         make(map[Addr]struct{}),
		RangePrecedents:        make(map[RangeKey]struct{}),
		DynamicRangePrecedents: make(map[RangeKey]struct{}),
	}
	g.nodes[a] = n
	return n
}

func (g *Graph) Node(a Addr) (*Node, bool) {
	n, ok := g.nodes[a]
	return n, ok
}

// SetPrecedents replaces a cell's entire precedent set (cell refs and
// range refs) in one call — the usual way a recompiled formula updates
// its position in the graph.
func (g *Graph) SetPrecedents(a Addr, cellPrecedents []Addr, rangePrecedents []ref.Rectangle, volatile bool) {
	g.ClearPrecedents(a)

	n := g.getOrCreate(a)
	for _, p := range cellPrecedents {
		pn := g.getOrCreate(p)
		n.CellPrecedents[p] = struct{}{}
		pn.CellDependents[a] = struct{}{}
	}
	for _, rect := range rangePrecedents {
		key := rangeKeyOf(rect)
		n.RangePrecedents[key] = struct{}{}
		if g.rangeObservers[key] == nil {
			g.rangeObservers[key] = make(map[Addr]struct{})
		}
		g.rangeObservers[key][a] = struct{}{}
	}
	if volatile {
		g.volatile[a] = struct{}{}
		n.IsVolatile = true
	} else {
		delete(g.volatile, a)
		n.IsVolatile = false
	}
}

// ClearPrecedents removes every precedent edge (cell and range) from a.
func (g *Graph) ClearPrecedents(a Addr) {
	n, ok := g.nodes[a]
	if !ok {
		return
	}
	for p := range n.CellPrecedents {
		if pn, ok := g.nodes[p]; ok {
			delete(pn.CellDependents, a)
		}
	}
	n.CellPrecedents = make(map[Addr]struct{})

	for key := range n.RangePrecedents {
		if obs, ok := g.rangeObservers[key]; ok {
			delete(obs, a)
			if len(obs) == 0 {
				delete(g.rangeObservers, key)
			}
		}
	}
	n.RangePrecedents = make(map[RangeKey]struct{})
	g.clearDynamicPrecedentsLocked(n)
}

// ClearDynamicPrecedents drops every dynamic (OFFSET/INDIRECT-resolved)
// range precedent a currently holds, without touching its static
// precedents. Called at the start of each recalculation of a so the set
// rebuilds from scratch — a dynamic target observed on a previous tick
// that the formula no longer resolves to must stop triggering dirtying.
func (g *Graph) ClearDynamicPrecedents(a Addr) {
	n, ok := g.nodes[a]
	if !ok {
		return
	}
	g.clearDynamicPrecedentsLocked(n)
}

func (g *Graph) clearDynamicPrecedentsLocked(n *Node) {
	for key := range n.DynamicRangePrecedents {
		if obs, ok := g.rangeObservers[key]; ok {
			delete(obs, n.Addr)
			if len(obs) == 0 {
				delete(g.rangeObservers, key)
			}
		}
	}
	n.DynamicRangePrecedents = make(map[RangeKey]struct{})
}

// AddDynamicRangePrecedent records that a's formula resolved a reference
// to rect on this evaluation (an OFFSET/INDIRECT target), registering it
// as a range observer exactly like a static range precedent so a future
// write inside rect dirties a via the normal MarkDirtyWithDependents path.
func (g *Graph) AddDynamicRangePrecedent(a Addr, rect ref.Rectangle) {
	n := g.getOrCreate(a)
	key := rangeKeyOf(rect)
	n.DynamicRangePrecedents[key] = struct{}{}
	if g.rangeObservers[key] == nil {
		g.rangeObservers[key] = make(map[Addr]struct{})
	}
	g.rangeObservers[key][a] = struct{}{}
}

// RemoveNode deletes a cell from the graph entirely (used when a cell's
// formula is cleared back to a plain value or blank).
func (g *Graph) RemoveNode(a Addr) {
	g.ClearPrecedents(a)
	if n, ok := g.nodes[a]; ok {
		for dep := range n.CellDependents {
			if dn, ok := g.nodes[dep]; ok {
				delete(dn.CellPrecedents, a)
			}
		}
	}
	delete(g.nodes, a)
	delete(g.dirty, a)
	delete(g.volatile, a)
	delete(g.inCycle, a)
}

// MarkDirty flags a as needing recalculation.
func (g *Graph) MarkDirty(a Addr) {
	g.dirty[a] = struct{}{}
	if n, ok := g.nodes[a]; ok {
		n.IsDirty = true
	}
}

// MarkDirtyWithDependents flags a and every transitive dependent as dirty,
// plus any cell observing a range a falls within.
func (g *Graph) MarkDirtyWithDependents(a Addr) {
	g.MarkDirty(a)
	for _, dep := range g.AllDependents(a) {
		g.MarkDirty(dep)
	}
	for key, observers := range g.rangeObservers {
		if key.contains(a) {
			for obs := range observers {
				g.MarkDirty(obs)
				for _, dep := range g.AllDependents(obs) {
					g.MarkDirty(dep)
				}
			}
		}
	}
}

func (g *Graph) ClearDirty(a Addr) {
	delete(g.dirty, a)
	if n, ok := g.nodes[a]; ok {
		n.IsDirty = false
	}
}

func (g *Graph) DirtyCells() []Addr {
	out := make([]Addr, 0, len(g.dirty))
	for a := range g.dirty {
		out = append(out, a)
	}
	return out
}

// MarkAllVolatileDirty flags every volatile cell dirty — called at the
// start of every recalculation pass, since a volatile cell recomputes
// unconditionally.
func (g *Graph) MarkAllVolatileDirty() {
	for a := range g.volatile {
		g.MarkDirty(a)
	}
}

// SetInCycleCells replaces the entire in-cycle set with exactly cells,
// clearing InCycle on any node that was flagged by a previous
// recalculation but is no longer part of a cycle.
func (g *Graph) SetInCycleCells(cells []Addr) {
	for a := range g.inCycle {
		if n, ok := g.nodes[a]; ok {
			n.InCycle = false
		}
	}
	g.inCycle = make(map[Addr]struct{}, len(cells))
	for _, a := range cells {
		g.inCycle[a] = struct{}{}
		if n, ok := g.nodes[a]; ok {
			n.InCycle = true
		}
	}
}

// InCycleCells returns every cell currently flagged in_cycle.
func (g *Graph) InCycleCells() []Addr {
	out := make([]Addr, 0, len(g.inCycle))
	for a := range g.inCycle {
		out = append(out, a)
	}
	return out
}

func (g *Graph) AllDependents(a Addr) []Addr {
	visited := map[Addr]struct{}{}
	var out []Addr
	var walk func(Addr)
	walk = func(cur Addr) {
		n, ok := g.nodes[cur]
		if !ok {
			return
		}
		for dep := range n.CellDependents {
			if _, seen := visited[dep]; seen {
				continue
			}
			visited[dep] = struct{}{}
			out = append(out, dep)
			walk(dep)
		}
	}
	walk(a)
	return out
}

// CycleError names the addresses discovered to form a dependency cycle.
type CycleError struct {
	Cells []Addr
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular reference involving %d cell(s)", len(e.Cells))
}

// Levels returns the dirty set's topological levels: Levels()[0] has no
// dirty precedent, Levels()[1] depends only on cells in level 0, and so
// on. Cells within one level are mutually independent and may recompute
// concurrently. Returns a *CycleError naming every cell caught in a
// cycle (they are omitted from the returned levels).
func (g *Graph) Levels() ([][]Addr, *CycleError) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[Addr]int, len(g.dirty))
	level := make(map[Addr]int, len(g.dirty))
	var cyclic []Addr

	var visit func(a Addr) int
	visit = func(a Addr) int {
		switch state[a] {
		case visiting:
			cyclic = append(cyclic, a)
			return -1
		case done:
			return level[a]
		}
		if _, isDirty := g.dirty[a]; !isDirty {
			// Not dirty: treat as level -1 so a dirty dependent still
			// lands at level 0 if every other precedent is also clean.
			return -1
		}
		state[a] = visiting
		maxPrec := -1
		if n, ok := g.nodes[a]; ok {
			for p := range n.CellPrecedents {
				lv := visit(p)
				if state[p] == visiting {
					cyclic = append(cyclic, a)
				}
				if lv > maxPrec {
					maxPrec = lv
				}
			}
		}
		state[a] = done
		level[a] = maxPrec + 1
		return level[a]
	}

	for a := range g.dirty {
		visit(a)
	}

	if len(cyclic) > 0 {
		return nil, &CycleError{Cells: dedupeAddrs(cyclic)}
	}

	maxLevel := 0
	for a := range g.dirty {
		if level[a] > maxLevel {
			maxLevel = level[a]
		}
	}
	levels := make([][]Addr, maxLevel+1)
	for a := range g.dirty {
		lv := level[a]
		levels[lv] = append(levels[lv], a)
	}
	return levels, nil
}

func dedupeAddrs(in []Addr) []Addr {
	seen := map[Addr]struct{}{}
	var out []Addr
	for _, a := range in {
		if _, ok := seen[a]; !ok {
			seen[a] = struct{}{}
			out = append(out, a)
		}
	}
	return out
}

// SetSpill records that a's formula currently spills into cells, owned
// by anchor a. It returns the set of cells that were previously owned
// by a different anchor and are no longer covered — the caller clears
// their cached values. If any cell in cells is occupied by a real
// (non-spill) value, SetSpill reports a conflict and does not apply the
// new spill region.
func (g *Graph) SetSpill(anchor Addr, cells []Addr, hasRealValue func(Addr) bool) (released []Addr, conflict bool) {
	for _, c := range cells {
		if c == anchor {
			continue
		}
		if owner, ok := g.spillOwner[c]; ok && owner == anchor {
			continue
		}
		if hasRealValue(c) {
			return nil, true
		}
	}

	newSet := make(map[Addr]struct{}, len(cells))
	for _, c := range cells {
		newSet[c] = struct{}{}
	}
	n := g.getOrCreate(anchor)
	for old := range n.SpillCells {
		if _, stillOwned := newSet[old]; !stillOwned {
			delete(g.spillOwner, old)
			released = append(released, old)
		}
	}
	n.SpillCells = newSet
	n.SpillAnchor = anchor
	for c := range newSet {
		g.spillOwner[c] = anchor
	}
	return released, false
}

// ClearSpill releases every cell a spilling formula at anchor occupied.
func (g *Graph) ClearSpill(anchor Addr) []Addr {
	n, ok := g.nodes[anchor]
	if !ok {
		return nil
	}
	var released []Addr
	for c := range n.SpillCells {
		delete(g.spillOwner, c)
		released = append(released, c)
	}
	n.SpillCells = nil
	return released
}

// SpillOwner reports which anchor, if any, currently occupies a via spill.
func (g *Graph) SpillOwner(a Addr) (Addr, bool) {
	owner, ok := g.spillOwner[a]
	return owner, ok
}
