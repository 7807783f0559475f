package graph

import (
	"context"
	"math"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sparrowsheet/calcengine/compile"
	"github.com/sparrowsheet/calcengine/eval"
	"github.com/sparrowsheet/calcengine/internal/config"
	"github.com/sparrowsheet/calcengine/ref"
	"github.com/sparrowsheet/calcengine/value"
)

// CellStore is the minimum a host (the calcengine.Engine) must expose
// for the recalculator to read and write cell state. Compiled formulas
// and cached values live with the host, not the graph, since the graph
// only tracks dependency shape.
type CellStore interface {
	Formula(sheet uint32, addr ref.CellAddr) *compile.Expr
	SetValue(sheet uint32, addr ref.CellAddr, v value.Value)
	HasRealValue(sheet uint32, addr ref.CellAddr) bool
	ResolveSheet(name string) (uint32, bool)
	ResolveName(name string, scopeSheet uint32) (*eval.CompiledName, bool)
	RangeDims(rect ref.Rectangle) (rows, cols int)
	IterRange(rect ref.Rectangle, yield func(value.Value) bool)
	CellValue(sheet uint32, addr ref.CellAddr) value.Value
}

// Recalculator drives a Graph's dirty set through the evaluator, one
// topological level at a time, fanning each level's independent cells
// out across a worker pool (spec §4.6's parallel recalculation).
type Recalculator struct {
	Graph     *Graph
	Store     CellStore
	Evaluator *eval.Evaluator
	Now       time.Time
	RandSeed  func() float64
	Workers   int

	// Iterative governs cycle handling: when Enabled, cells caught in a
	// dependency cycle are recomputed up to MaxIterations times (or
	// until successive values change by less than MaxChange) instead of
	// being frozen at their last value.
	Iterative config.IterativeSettings

	// CalcMode is surfaced to formulas via INFO("recalc"); it reflects
	// whatever CalcSettings.CalculationMode was in effect when this
	// recalculation pass started.
	CalcMode config.CalculationMode
}

// NewRecalculator wires a Recalculator with a worker count matching
// GOMAXPROCS unless the caller overrides it.
func NewRecalculator(g *Graph, store CellStore) *Recalculator {
	return &Recalculator{
		Graph:     g,
		Store:     store,
		Evaluator: eval.New(),
		Workers:   runtime.GOMAXPROCS(0),
	}
}

// Recalculate computes every dirty cell, level by level, and handles
// any dependency cycle encountered. A cyclic cell keeps its last
// computed value (or 0 on first evaluation) and is flagged in_cycle; if
// Iterative.Enabled, the cyclic cells are instead recomputed to a fixed
// point before the rest of the graph continues.
func (rc *Recalculator) Recalculate(ctx context.Context) error {
	rc.Graph.MarkAllVolatileDirty()

	levels, cyc := rc.Graph.Levels()
	if cyc != nil {
		rc.Graph.SetInCycleCells(cyc.Cells)
		if rc.Iterative.Enabled {
			rc.iterateCycle(cyc.Cells)
		} else {
			for _, a := range cyc.Cells {
				rc.freezeCyclicCell(a)
			}
		}
		for _, a := range cyc.Cells {
			rc.Graph.ClearDirty(a)
		}
		levels, _ = rc.Graph.Levels()
	} else {
		rc.Graph.SetInCycleCells(nil)
	}

	for _, level := range levels {
		if err := rc.runLevel(ctx, level); err != nil {
			return err
		}
	}
	return nil
}

// freezeCyclicCell implements the non-iterative cycle rule: a cell
// caught in a cycle keeps whatever value it last held, or starts at 0
// if it has never held one.
func (rc *Recalculator) freezeCyclicCell(a Addr) {
	if _, isBlank := rc.Store.CellValue(a.Sheet, a.CellAddr()).(value.Blank); isBlank {
		rc.Store.SetValue(a.Sheet, a.CellAddr(), 0.0)
	}
}

// iterateCycle recomputes a cycle's cells in place, each using whatever
// value its precedents currently hold (the same "compute using the
// previous value" rule the normal evaluator already follows for an
// as-yet-uncomputed precedent), repeating until every cell's value
// settles within Iterative.MaxChange or MaxIterations passes are spent.
func (rc *Recalculator) iterateCycle(cells []Addr) {
	maxIter := rc.Iterative.MaxIterations
	if maxIter <= 0 {
		maxIter = 1
	}
	var mu sync.Mutex
	for iter := 0; iter < maxIter; iter++ {
		maxChange := 0.0
		for _, a := range cells {
			expr := rc.Store.Formula(a.Sheet, a.CellAddr())
			if expr == nil {
				continue
			}
			prev := rc.Store.CellValue(a.Sheet, a.CellAddr())
			mu.Lock()
			rc.Graph.ClearDynamicPrecedents(a)
			mu.Unlock()
			ec := &cellEvalContext{
				store:    rc.Store,
				graph:    rc.Graph,
				sheet:    a.Sheet,
				cell:     a.CellAddr(),
				now:      rc.Now,
				randSeed: rc.RandSeed,
				calcMode: string(rc.CalcMode),
				mu:       &mu,
			}
			result := rc.Evaluator.Eval(ec, expr)
			rc.applyResult(a, result)
			if change := valueChange(prev, result); change > maxChange {
				maxChange = change
			}
		}
		if maxChange <= rc.Iterative.MaxChange {
			break
		}
	}
}

// valueChange measures how much a cyclic cell's value moved between
// passes: a numeric delta for numbers, 0 for an unchanged non-numeric
// value, or +Inf for a changed non-numeric value (which never
// "converges" under a numeric tolerance).
func valueChange(prev, next value.Value) float64 {
	pf, pok := prev.(float64)
	nf, nok := next.(float64)
	if pok && nok {
		return math.Abs(nf - pf)
	}
	if prev == next {
		return 0
	}
	return math.Inf(1)
}

func (rc *Recalculator) runLevel(ctx context.Context, level []Addr) error {
	if len(level) == 0 {
		return nil
	}
	workers := rc.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(level) {
		workers = len(level)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	for _, a := range level {
		a := a
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			rc.computeOne(a, &mu)
			return nil
		})
	}
	return g.Wait()
}

func (rc *Recalculator) computeOne(a Addr, mu *sync.Mutex) {
	expr := rc.Store.Formula(a.Sheet, a.CellAddr())
	if expr == nil {
		rc.Graph.ClearDirty(a)
		return
	}

	mu.Lock()
	rc.Graph.ClearDynamicPrecedents(a)
	mu.Unlock()

	ec := &cellEvalContext{
		store:    rc.Store,
		graph:    rc.Graph,
		sheet:    a.Sheet,
		cell:     a.CellAddr(),
		now:      rc.Now,
		randSeed: rc.RandSeed,
		calcMode: string(rc.CalcMode),
		mu:       mu,
	}
	result := rc.Evaluator.Eval(ec, expr)

	rc.applyResult(a, result)
	rc.Graph.ClearDirty(a)
}

// applyResult writes a cell's computed value, expanding a *value.Array
// result into its spill region and detecting spill collisions (spec
// §4.5's dynamic-array spill semantics).
func (rc *Recalculator) applyResult(anchor Addr, result value.Value) {
	arr, isArray := result.(*value.Array)
	if !isArray {
		if owner, ok := rc.Graph.SpillOwner(anchor); ok && owner == anchor {
			rc.Graph.ClearSpill(anchor)
		}
		rc.Store.SetValue(anchor.Sheet, anchor.CellAddr(), result)
		return
	}

	cells := make([]Addr, 0, arr.Rows*arr.Cols)
	for r := 0; r < arr.Rows; r++ {
		for c := 0; c < arr.Cols; c++ {
			cells = append(cells, Addr{Sheet: anchor.Sheet, Row: anchor.Row + uint32(r), Col: anchor.Col + uint32(c)})
		}
	}
	released, conflict := rc.Graph.SetSpill(anchor, cells, func(a Addr) bool {
		if a == anchor {
			return false
		}
		return rc.Store.HasRealValue(a.Sheet, a.CellAddr())
	})
	if conflict {
		rc.Store.SetValue(anchor.Sheet, anchor.CellAddr(), value.NewError(value.ErrSpill, ""))
		return
	}
	for _, rel := range released {
		rc.Store.SetValue(rel.Sheet, rel.CellAddr(), value.Blank{})
	}
	for r := 0; r < arr.Rows; r++ {
		for c := 0; c < arr.Cols; c++ {
			addr := ref.CellAddr{Row: anchor.Row + uint32(r), Col: anchor.Col + uint32(c)}
			rc.Store.SetValue(anchor.Sheet, addr, arr.At(r, c))
		}
	}
}
