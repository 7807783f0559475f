// Package functions implements the built-in function registry (spec
// §4.5), covering a grounded subset of Excel's function surface across
// logical, math, statistical, lookup, text, date/time, information,
// financial, and engineering categories.
//
// The registry is populated by package-level init() functions, one per
// category file, each calling Register — the Go expression of the
// "static submission" registry pattern the distilled spec calls for,
// generalizing the teacher's single builtin.go Call switch (which
// covered ~29 functions) into per-category files that each own their
// slice of the namespace, the way a production engine's function
// catalog is usually organized.
package functions

import (
	"strings"
	"sync"

	"github.com/sparrowsheet/calcengine/ref"
	"github.com/sparrowsheet/calcengine/value"
)

// Args is the evaluated argument list passed to a FunctionImpl. Each
// element is either a value.Value (scalar or array literal) or an
// *ArgRef carrying a lazy, context-bound reference the function can
// iterate without materializing (used by SUM, COUNTA, VLOOKUP, and any
// function whose FunctionSpec.ArgKinds marks that position ArgRange).
type Args []any

// ArgRef is how a cell/range-typed argument reaches a function without
// the compiler eagerly converting it to a value.Value: functions that
// only need to stream cell values (SUM, COUNTIF, ...) avoid the
// materialization cost that a literal *value.Array would incur.
type ArgRef struct {
	// Cells iterates every value in the reference's rectangle(s),
	// row-major within each rectangle, in rectangle order for a union.
	Cells func(yield func(value.Value) bool)
	// Count is the number of cells the reference spans, used by
	// functions that need it without iterating (e.g. COLUMNS/ROWS).
	Count int
	Rows  int
	Cols  int
}

// FunctionImpl is a registered function's implementation. ctx gives
// access to evaluation-context services a pure-value function doesn't
// need (current cell, volatility clock, rng) without every function
// signature growing context.Context-shaped parameters; see eval.Context
// for the concrete type threaded in here at call time.
type FunctionImpl func(ctx any, args Args) value.Value

// ArgKind constrains how an argument position coerces/accepts its input.
type ArgKind uint8

const (
	ArgScalar      ArgKind = iota // coerced to a single value.Value (implicit intersection applied)
	ArgRange                      // passed as *ArgRef, not materialized
	ArgArray                      // passed as *value.Array, materialized in full (no size cap is applied)
	ArgAny                        // passed through uncoerced, for functions like ISBLANK/TYPE
	ArgAddressOnly                // passed as *RefArg: the address itself, never evaluated
)

// RefArg is how an address-only argument (OFFSET's reference, INDIRECT's
// resolved target, CELL's reference) reaches a function: the rectangle
// the argument expression names, resolved against the calling cell's
// origin, without ever reading the cell's value. This is what lets
// CELL("width", A1) live in A1 itself without becoming its own
// precedent: the compiler marks that argument position AddressOnly, so
// it never enters the static or dynamic precedent set as a value
// dependency.
type RefArg struct {
	Rect ref.Rectangle
}

// RefContext is the subset of eval.Context an address-only function
// needs: reading a resolved address's value, recording a *dynamic*
// precedent against it (for OFFSET/INDIRECT, whose target can change
// between recalculations), and resolving sheet names/the calling cell.
// Defined locally rather than importing eval.Context directly, since
// eval imports functions and a reverse import would cycle; eval.Context
// (and the graph package's concrete context) satisfy this structurally.
type RefContext interface {
	CellValue(sheet uint32, addr ref.CellAddr) value.Value
	IterRange(rect ref.Rectangle, yield func(value.Value) bool)
	RangeDims(rect ref.Rectangle) (rows, cols int)
	ResolveSheet(name string) (uint32, bool)
	CurrentSheet() uint32
	CurrentCell() ref.CellAddr
	RecordReference(rect ref.Rectangle)
	CalcMode() string
}

// FunctionSpec describes one registered function's calling convention.
type FunctionSpec struct {
	Name      string // canonical uppercase name
	MinArgs   int
	MaxArgs   int // -1 for variadic
	ArgKinds  []ArgKind
	Volatile  bool
	Impl      FunctionImpl
}

// Registry is a lookup table from canonical function name to spec. The
// zero Registry is not usable; use NewRegistry.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]*FunctionSpec
}

var global = NewRegistry()

// NewRegistry builds an empty registry. DefaultRegistry returns the
// shared one populated by this package's init() functions; most callers
// want that one, not a fresh empty Registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]*FunctionSpec)}
}

// DefaultRegistry returns the process-wide registry populated by every
// category file's init().
func DefaultRegistry() *Registry { return global }

// Register adds spec to r, keyed by its canonical (uppercase) name.
// Called only from init() functions; not safe to call concurrently with
// Lookup in steady state, same as the teacher's package-level table
// construction pattern.
func (r *Registry) Register(spec *FunctionSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[spec.Name] = spec
}

// Lookup finds a function by name, case-insensitively, stripping any
// "_xlfn."/"_xlws." prefix the caller didn't already strip.
func (r *Registry) Lookup(name string) (*FunctionSpec, bool) {
	name = strings.ToUpper(name)
	name = strings.TrimPrefix(name, "_XLFN.")
	name = strings.TrimPrefix(name, "_XLWS.")
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[name]
	return spec, ok
}

// Names returns every registered function name, sorted, for
// introspection (e.g. a host's autocomplete or FUNCTION() listing).
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.specs))
	for n := range r.specs {
		names = append(names, n)
	}
	sortStrings(names)
	return names
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func register(spec *FunctionSpec) { global.Register(spec) }
