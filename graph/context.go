package graph

import (
	"sync"
	"time"

	"github.com/sparrowsheet/calcengine/eval"
	"github.com/sparrowsheet/calcengine/ref"
	"github.com/sparrowsheet/calcengine/value"
)

// cellEvalContext implements eval.Context for a single cell's
// evaluation. One instance is built per computeOne call; the scope
// stack and lambda-depth counter are private to that call, so only the
// CellStore/Graph accesses (guarded by mu) are shared across the
// recalculator's concurrent workers.
type cellEvalContext struct {
	store CellStore
	graph *Graph
	sheet uint32
	cell  ref.CellAddr

	now      time.Time
	randSeed func() float64
	calcMode string

	mu    *sync.Mutex
	scope []map[string]value.Value
	depth int
}

func (c *cellEvalContext) CellValue(sheet uint32, addr ref.CellAddr) value.Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.CellValue(sheet, addr)
}

func (c *cellEvalContext) IterRange(rect ref.Rectangle, yield func(value.Value) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.IterRange(rect, yield)
}

func (c *cellEvalContext) RangeDims(rect ref.Rectangle) (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.RangeDims(rect)
}

func (c *cellEvalContext) ResolveSheet(name string) (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.ResolveSheet(name)
}

func (c *cellEvalContext) ResolveName(name string, scopeSheet uint32) (*eval.CompiledName, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.ResolveName(name, scopeSheet)
}

func (c *cellEvalContext) CurrentSheet() uint32      { return c.sheet }
func (c *cellEvalContext) CurrentCell() ref.CellAddr { return c.cell }

// CalcMode reports the calculation mode in effect for this recalculation
// pass ("automatic", "automatic_no_table", or "manual"), read by
// INFO("recalc").
func (c *cellEvalContext) CalcMode() string { return c.calcMode }

func (c *cellEvalContext) Now() time.Time {
	if c.now.IsZero() {
		return time.Now().UTC()
	}
	return c.now
}

func (c *cellEvalContext) NextRandom() float64 {
	if c.randSeed == nil {
		return 0
	}
	return c.randSeed()
}

func (c *cellEvalContext) PushScope() {
	c.scope = append(c.scope, map[string]value.Value{})
}

func (c *cellEvalContext) PopScope() {
	if len(c.scope) > 0 {
		c.scope = c.scope[:len(c.scope)-1]
	}
}

func (c *cellEvalContext) SetLocal(name string, v value.Value) {
	if len(c.scope) == 0 {
		c.PushScope()
	}
	c.scope[len(c.scope)-1][name] = v
}

func (c *cellEvalContext) GetLocal(name string) (value.Value, bool) {
	for i := len(c.scope) - 1; i >= 0; i-- {
		if v, ok := c.scope[i][name]; ok {
			return v, true
		}
	}
	return nil, false
}

// RecordReference registers rect as a dynamic precedent of the cell
// currently being evaluated — called by OFFSET/INDIRECT once they've
// resolved their runtime target, so a later write inside rect dirties
// this cell on the next recalculation even though no static reference
// to it appears in the formula text.
func (c *cellEvalContext) RecordReference(rect ref.Rectangle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.graph.AddDynamicRangePrecedent(Addr{Sheet: c.sheet, Row: c.cell.Row, Col: c.cell.Col}, rect)
}

func (c *cellEvalContext) Depth() int { return c.depth }

func (c *cellEvalContext) PushDepth() bool {
	if c.depth >= eval.MaxLambdaDepth {
		return false
	}
	c.depth++
	return true
}

func (c *cellEvalContext) PopDepth() {
	if c.depth > 0 {
		c.depth--
	}
}
