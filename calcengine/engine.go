// Package calcengine wires packages ref/ast/compile/eval/functions/graph/
// rewrite together behind a single host-facing Engine type, implementing
// spec §6.2's operations. Engine owns all per-instance mutable state
// (cell storage, the dependency graph, defined names, interned styles,
// calc settings) — nothing here is a package-level var, so two Engine
// instances in one process never interfere (spec §9 "Global state").
package calcengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sparrowsheet/calcengine/ast"
	"github.com/sparrowsheet/calcengine/compile"
	"github.com/sparrowsheet/calcengine/functions"
	"github.com/sparrowsheet/calcengine/graph"
	"github.com/sparrowsheet/calcengine/internal/config"
	"github.com/sparrowsheet/calcengine/internal/enginelog"
	"github.com/sparrowsheet/calcengine/ref"
	"github.com/sparrowsheet/calcengine/value"
)

// EngineInfo identifies one Engine instance for logging/telemetry
// correlation, never read back into calc semantics.
type EngineInfo struct {
	InstanceID string
	CreatedAt  time.Time
}

// cellState is the per-cell storage record. Explicit is true exactly
// when the cell holds content the user (or a loader) set directly —
// a literal value or a formula — as opposed to a value this engine wrote
// on the cell's behalf (a computed formula result or a dynamic-array
// spill landing in a neighboring cell). HasRealValue (the graph's spill
// conflict check) reads Explicit, not "is this cell non-blank".
type cellState struct {
	formula     *compile.Expr
	formulaText string
	value       value.Value
	style       uint32
	explicit    bool
}

type sheetData struct {
	id    uint32
	name  string
	cells map[ref.CellAddr]*cellState
}

func newSheetData(id uint32, name string) *sheetData {
	return &sheetData{id: id, name: name, cells: make(map[ref.CellAddr]*cellState)}
}

func (s *sheetData) cell(addr ref.CellAddr) *cellState {
	return s.cells[addr]
}

func (s *sheetData) getOrCreate(addr ref.CellAddr) *cellState {
	c, ok := s.cells[addr]
	if !ok {
		c = &cellState{value: value.Blank{}}
		s.cells[addr] = c
	}
	return c
}

// definedName is a name's compiled definition plus the sheet it's scoped
// to (0 meaning workbook-wide).
type definedName struct {
	scopeSheet uint32
	scoped     bool
	expr       *compile.Expr
}

// Style is an opaque cell-formatting payload; the engine never
// interprets its contents, only threads an interned token back to cells
// (spec §6.2's intern_style, out-of-core-scope content).
type Style struct {
	NumberFormat string
	Bold         bool
	Italic       bool
}

// Engine is the concrete host implementing spec §6.2. It satisfies
// graph.CellStore so graph.Recalculator can drive recalculation directly
// against it.
type Engine struct {
	mu sync.RWMutex

	info         EngineInfo
	calcSettings config.CalcSettings
	logger       zerolog.Logger

	registry *functions.Registry

	sheetIDs   map[string]uint32
	sheetNames map[uint32]string
	nextSheet  uint32
	data       map[uint32]*sheetData

	names map[string]*definedName // key: scoped names as "sheetID\x00name", global as name

	styles    map[uint32]Style
	nextStyle uint32

	graph       *graph.Graph
	randCounter uint64
}

// New constructs an empty engine with Excel's default calc settings.
func New() *Engine {
	id := uuid.NewString()
	e := &Engine{
		info:         EngineInfo{InstanceID: id, CreatedAt: time.Now().UTC()},
		calcSettings: config.DefaultCalcSettings(),
		registry:     functions.DefaultRegistry(),
		sheetIDs:     make(map[string]uint32),
		sheetNames:   make(map[uint32]string),
		data:         make(map[uint32]*sheetData),
		names:        make(map[string]*definedName),
		styles:       make(map[uint32]Style),
		graph:        graph.New(),
	}
	e.logger = enginelog.New(id, nil)
	return e
}

// Info returns this engine's identity.
func (e *Engine) Info() EngineInfo { return e.info }

// AddSheet registers a new sheet by name, returning its stable ID. It is
// a no-op returning the existing ID if the name is already registered.
func (e *Engine) AddSheet(name string) uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id, ok := e.sheetIDs[name]; ok {
		return id
	}
	id := e.nextSheet
	e.nextSheet++
	e.sheetIDs[name] = id
	e.sheetNames[id] = name
	e.data[id] = newSheetData(id, name)
	return id
}

func (e *Engine) mustSheet(name string) *sheetData {
	id, ok := e.sheetIDs[name]
	if !ok {
		id = e.AddSheet(name)
	}
	return e.data[id]
}

// SetCellValue replaces a cell's content with a literal value, dropping
// any formula it held and dirtying its dependents (spec §6.2).
func (e *Engine) SetCellValue(sheet string, addr ref.CellAddr, v value.Value) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sd := e.mustSheet(sheet)
	c := sd.getOrCreate(addr)
	c.formula = nil
	c.formulaText = ""
	c.value = v
	c.explicit = true

	ga := graph.Addr{Sheet: sd.id, Row: addr.Row, Col: addr.Col}
	e.graph.ClearPrecedents(ga)
	e.graph.MarkDirtyWithDependents(ga)
}

// SetCellFormula parses and compiles text (which must start with "="),
// replacing the cell's precedents with the formula's actual reference
// set and dirtying it and its dependents. An unresolvable function or
// name is not a parse error — it compiles to a #NAME? lazily surfaced at
// evaluation time, per spec §6.2.
func (e *Engine) SetCellFormula(sheet string, addr ref.CellAddr, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sd := e.mustSheet(sheet)
	expr, err := ast.Parse(text, ast.ParseContext{
		Origin:       addr,
		ResolveSheet: e.resolveSheetLocked,
		CurrentSheet: sd.id,
	})
	if err != nil {
		return fmt.Errorf("parse formula %q: %w", text, err)
	}
	compiled := compile.Compile(expr, &compile.Resolver{Functions: e.registry})

	c := sd.getOrCreate(addr)
	c.formula = compiled
	c.formulaText = text
	c.explicit = true

	ga := graph.Addr{Sheet: sd.id, Row: addr.Row, Col: addr.Col}
	cellPrec, rangePrec, volatile := e.precedentsOf(compiled, sd.id)
	e.graph.SetPrecedents(ga, cellPrec, rangePrec, volatile)
	e.graph.MarkDirtyWithDependents(ga)
	return nil
}

// GetCellValue returns a cell's last computed value (Blank{} if never
// set or computed).
func (e *Engine) GetCellValue(sheet string, addr ref.CellAddr) value.Value {
	e.mu.RLock()
	defer e.mu.RUnlock()
	id, ok := e.sheetIDs[sheet]
	if !ok {
		return value.Blank{}
	}
	c := e.data[id].cell(addr)
	if c == nil {
		return value.Blank{}
	}
	return c.value
}

// SetCalcSettings validates and installs new calculation settings,
// visible starting the engine's next Recalculate tick (not retroactively
// applied mid-tick — see DESIGN.md's Open Question decision).
func (e *Engine) SetCalcSettings(s config.CalcSettings) error {
	if err := config.Validate(s); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calcSettings = s
	return nil
}

func (e *Engine) CalcSettings() config.CalcSettings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.calcSettings
}

// InternStyle returns a stable token for style, allocating one if this
// exact style hasn't been interned before. Style content is out of the
// engine's evaluation scope; the token is opaque to everything but the
// host that set it.
func (e *Engine) InternStyle(s Style) uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, existing := range e.styles {
		if existing == s {
			return id
		}
	}
	id := e.nextStyle
	e.nextStyle++
	e.styles[id] = s
	return id
}

// Recalculate drives the dependency graph's dirty set to a fixed point
// using the bounded worker pool (spec §5); RecalculateSingleThreaded pins
// Workers to 1 for deterministic, sequential evaluation.
func (e *Engine) Recalculate(ctx context.Context) error {
	return e.recalculate(ctx, 0)
}

func (e *Engine) RecalculateSingleThreaded(ctx context.Context) error {
	return e.recalculate(ctx, 1)
}

func (e *Engine) recalculate(ctx context.Context, workers int) error {
	e.mu.Lock()
	manual := e.calcSettings.CalculationMode == config.Manual
	logger := enginelog.ForRecalc(e.logger, string(e.calcSettings.CalculationMode), len(e.graph.DirtyCells()))
	if manual {
		e.mu.Unlock()
		logger.Debug().Msg("skipping recalculate: manual calc mode")
		return nil
	}
	rc := graph.NewRecalculator(e.graph, e)
	if workers > 0 {
		rc.Workers = workers
	}
	rc.Now = time.Now().UTC()
	rc.RandSeed = e.nextRandomLocked
	rc.Iterative = e.calcSettings.Iterative
	rc.CalcMode = e.calcSettings.CalculationMode
	e.mu.Unlock()

	err := rc.Recalculate(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("recalculate failed")
	} else {
		logger.Debug().Msg("recalculate completed")
	}
	return err
}

// nextRandomLocked produces the per-pass deterministic RAND() stream.
// Deterministic rather than crypto/math-rand-global, so recalculating
// twice with the same edits (and resetting randCounter) reproduces the
// same spill shape in tests.
func (e *Engine) nextRandomLocked() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.randCounter++
	// A small linear-congruential step keeps this dependency-free and
	// reproducible; it is not meant to be statistically strong.
	x := e.randCounter*6364136223846793005 + 1442695040888963407
	return float64(x%1_000_000) / 1_000_000
}
