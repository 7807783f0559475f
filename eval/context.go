// Package eval walks a compiled expression tree and produces a
// value.Value, implementing spec §4.4: array lifting/broadcasting,
// implicit intersection, dynamic-array spill, and lambda closures.
//
// Evaluation never touches the dependency graph directly — it asks a
// Context for cell values, range iteration, and the handful of
// environment services (current cell, clock, rng, lexical scope) that
// can't be pure functions of the compiled tree. package graph implements
// Context over the live calc graph; tests implement it over a bare map.
package eval

import (
	"time"

	"github.com/sparrowsheet/calcengine/ref"
	"github.com/sparrowsheet/calcengine/value"
)

// Context is every service the evaluator needs from its host. It is
// intentionally narrow: no mutation methods appear here, since
// evaluation is read-only with respect to the calc graph (writes happen
// only through the graph's own recalculation driver).
type Context interface {
	// CellValue returns the current value of a resolved cell.
	CellValue(sheetID uint32, addr ref.CellAddr) value.Value

	// IterRange streams every value in a rectangle, row-major, calling
	// yield until it returns false or the rectangle is exhausted.
	IterRange(rect ref.Rectangle, yield func(value.Value) bool)

	// RangeDims reports a rectangle's row/column counts without
	// iterating it.
	RangeDims(rect ref.Rectangle) (rows, cols int)

	// ResolveSheet maps a sheet name to its stable ID.
	ResolveSheet(name string) (id uint32, ok bool)

	// ResolveName looks up a defined name's bound expression (already
	// compiled) and the sheet it's scoped to (0 for workbook-scope).
	ResolveName(name string, scopeSheet uint32) (*CompiledName, bool)

	// CurrentSheet and CurrentCell give the origin being evaluated,
	// needed to resolve offset-form Coords and implicit intersection.
	CurrentSheet() uint32
	CurrentCell() ref.CellAddr

	// Now returns the frozen recalculation-pass timestamp (for NOW/TODAY).
	Now() time.Time

	// NextRandom returns the next value from the per-pass deterministic
	// RNG stream (for RAND/RANDBETWEEN).
	NextRandom() float64

	// PushScope/PopScope/SetLocal manage the lambda-parameter binding
	// stack; GetLocal looks a name up in it.
	PushScope()
	PopScope()
	SetLocal(name string, v value.Value)
	GetLocal(name string) (value.Value, bool)

	// RecordReference notes a dynamic (runtime-resolved) dependency so
	// the graph can add it as a precedent edge for the cell currently
	// being evaluated — used by OFFSET/INDIRECT, whose target rectangle
	// isn't known until the formula actually runs.
	RecordReference(rect ref.Rectangle)

	// Depth reports the current lambda-call recursion depth, for the
	// recursion cap (spec §9).
	Depth() int
	PushDepth() (ok bool)
	PopDepth()
}

// CompiledName is what a resolved defined name evaluates to.
type CompiledName struct {
	Body any // *compile.Expr; typed any to avoid an eval<->compile import cycle
}

// MaxMaterializedArrayCells is the array-size cap constant. The evaluator
// does not check it: array literals, materialized references and
// broadcast results are built at full size and never turned into
// #SPILL! for being too large.
const MaxMaterializedArrayCells = 1 << 20

// MaxLambdaDepth caps LAMBDA recursion (spec §9's recursion depth cap).
const MaxLambdaDepth = 512
