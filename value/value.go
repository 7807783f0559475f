// Package value implements the spreadsheet value lattice (spec §3.3):
// Blank, Number, Bool, Text, Error, Array, Reference, ReferenceUnion,
// Lambda, Spill, Entity, and Record.
//
// Following the teacher's Primitive-as-any pattern (cell.go), Value is a
// named `any` with a closed set of concrete representations reached via
// type switch rather than an interface method set — this keeps evaluation
// a plain switch, not virtual dispatch, which is how the teacher's
// evaluator and every function in builtin.go is written.
package value

import "github.com/sparrowsheet/calcengine/ref"

// Value is any of: Blank{}, float64 (Number), bool (Bool), string (Text),
// *ErrorValue, *Array, *Reference, *ReferenceUnion, *Lambda, *Spill,
// *Entity, *Record.
type Value any

// Blank represents an empty cell. A nil Value is never produced by the
// evaluator; Blank{} is used instead so type switches don't need a nil case.
type Blank struct{}

// ErrorKind enumerates the bit-exact Excel error taxonomy (spec §6.4).
type ErrorKind uint8

const (
	ErrNull ErrorKind = iota
	ErrDiv0
	ErrValue
	ErrRef
	ErrName
	ErrNum
	ErrNA
	ErrSpill
	ErrCalc
	ErrGettingData
)

var errorStrings = map[ErrorKind]string{
	ErrNull:        "#NULL!",
	ErrDiv0:        "#DIV/0!",
	ErrValue:       "#VALUE!",
	ErrRef:         "#REF!",
	ErrName:        "#NAME?",
	ErrNum:         "#NUM!",
	ErrNA:          "#N/A",
	ErrSpill:       "#SPILL!",
	ErrCalc:        "#CALC!",
	ErrGettingData: "#GETTING_DATA",
}

// ErrorKindFromString parses one of the bit-exact error literals, e.g.
// "#DIV/0!". Returns ok=false for anything else.
func ErrorKindFromString(s string) (ErrorKind, bool) {
	for k, v := range errorStrings {
		if v == s {
			return k, true
		}
	}
	return 0, false
}

func (k ErrorKind) String() string {
	if s, ok := errorStrings[k]; ok {
		return s
	}
	return "#ERROR!"
}

// ErrorValue is the Error variant of the value lattice. It is absorbing
// under arithmetic and most function inputs (spec §3.3).
type ErrorValue struct {
	Kind    ErrorKind
	Message string
}

func (e *ErrorValue) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.String()
}

// NewError builds an ErrorValue, defaulting Message to the kind's string
// form when message is empty.
func NewError(kind ErrorKind, message string) *ErrorValue {
	if message == "" {
		message = kind.String()
	}
	return &ErrorValue{Kind: kind, Message: message}
}

// IsError reports whether v is an *ErrorValue and returns it.
func IsError(v Value) (*ErrorValue, bool) {
	e, ok := v.(*ErrorValue)
	return e, ok
}

// Array is a dense 2D value grid, row-major. Both dimensions are always >0;
// an empty array is not representable (spec §3.3).
type Array struct {
	Rows int
	Cols int
	Data []Value // len == Rows*Cols
}

// NewArray allocates a Rows x Cols array filled with Blank{}.
func NewArray(rows, cols int) *Array {
	data := make([]Value, rows*cols)
	for i := range data {
		data[i] = Blank{}
	}
	return &Array{Rows: rows, Cols: cols, Data: data}
}

func (a *Array) At(r, c int) Value {
	if r < 0 || r >= a.Rows || c < 0 || c >= a.Cols {
		return NewError(ErrNA, "")
	}
	return a.Data[r*a.Cols+c]
}

func (a *Array) Set(r, c int, v Value) {
	a.Data[r*a.Cols+c] = v
}

// Reference is a single normalized rectangle (spec §3.1 "Reference").
type Reference struct {
	Rect ref.Rectangle
}

// ReferenceUnion is a multiset of rectangles produced by the "," operator.
type ReferenceUnion struct {
	Refs []Reference
}

// Lambda is a closure: parameter names, a compiled body (typed as `any`
// here to avoid an import cycle with package compile/eval — evaluator code
// asserts it back to *compile.Expr), and an environment captured by value.
type Lambda struct {
	Params      []string
	Body        any // *compile.Expr
	CapturedEnv map[string]Value
}

// Spill is the result of a dynamic-array formula: the anchor cell, the
// spill region's dimensions, and the computed array.
type Spill struct {
	Anchor ref.CellAddr
	Rows   int
	Cols   int
	Array  *Array
}

// Entity is an opaque linked-data-type value (rich value); the core engine
// never interprets its contents, only threads it through formulas.
type Entity struct {
	TypeName string
	Fields   map[string]Value
}

// Record is an ordered fielded structure (field order matters for display
// and for structured-reference iteration).
type Record struct {
	Names  []string
	Values map[string]Value
}
