// Package compile lowers a parsed ast.Expr into a *Expr tree annotated
// with the decisions the evaluator needs to make cheaply at every
// recalculation: resolved sheet IDs, implicit-intersection vs
// array-argument handling per function arity/type hints, and a
// volatility flag propagated up from any NOW/TODAY/RAND/OFFSET/INDIRECT
// call found anywhere in the tree.
//
// There is no teacher equivalent of this layer — the teacher evaluates
// ast.Expr directly (parser.go's ASTNode.Eval) — so its shape is new,
// grounded in the teacher's dispatch style: no reflection, a flat
// exhaustive type switch per node kind, matching parser.go's per-node
// Eval methods.
package compile

import (
	"github.com/sparrowsheet/calcengine/ast"
	"github.com/sparrowsheet/calcengine/functions"
	"github.com/sparrowsheet/calcengine/ref"
)

// Kind enumerates the compiled node variants, mirroring ast.Expr's
// concrete types one-for-one.
type Kind uint8

const (
	KNumber Kind = iota
	KBool
	KText
	KError
	KCellRef
	KRangeRef
	KRowRef
	KColRef
	KNameRef
	KStructuredRef
	KFieldAccess
	KCall
	KUnary
	KBinary
	KArrayLit
	KLambda
	KImplicitIntersection
)

// Expr is the compiled node. Only the fields relevant to Kind are
// populated; this flat-struct shape (rather than one struct type per
// kind) keeps the evaluator's dispatch a single switch over a tag,
// matching the teacher's preference for switches over interface
// polymorphism in its Call dispatch (builtin.go).
type Expr struct {
	Kind Kind

	Number float64
	Bool   bool
	Text   string
	Error  string

	CellRef       ref.CellRef
	RangeRef      ref.RangeRef
	RowRef        ref.RowRef
	ColRef        ref.ColRef
	NameRef       ref.NameRef
	StructuredRef ref.StructuredRef

	Field string // FieldAccess

	// Call.
	FuncName string
	FuncSpec *functions.FunctionSpec // nil for lambda-callee calls
	Callee   *Expr
	Args     []*Expr

	UnaryOp  ast.UnaryOp
	BinaryOp ast.BinaryOp
	Left     *Expr
	Right    *Expr

	ArrayRows [][]*Expr

	LambdaParams []string
	LambdaBody   *Expr

	Operand *Expr // Unary / ImplicitIntersection

	// Volatile is true if this subtree (or anything it calls) must be
	// recomputed on every recalculation regardless of dependency-graph
	// dirtiness.
	Volatile bool

	// AddressOnly is true when this node is a call argument the callee
	// declared functions.ArgAddressOnly for (OFFSET's reference, CELL's
	// reference, ...) and the argument itself compiled directly to a
	// reference-kind node. Such an argument never becomes a static
	// precedent (see calcengine's precedentsOf): its address is the
	// payload, not a value the formula depends on.
	AddressOnly bool
}

// Resolver looks up function specs and defined-name targets at compile
// time (not evaluation time), so a typo'd function name becomes a
// #NAME? baked into the compiled tree rather than a per-recalc lookup
// miss.
type Resolver struct {
	Functions *functions.Registry
}

// Compile lowers e into an annotated *Expr tree.
func Compile(e ast.Expr, r *Resolver) *Expr {
	switch n := e.(type) {
	case *ast.Number:
		return &Expr{Kind: KNumber, Number: n.Value}
	case *ast.Bool:
		return &Expr{Kind: KBool, Bool: n.Value}
	case *ast.Text:
		return &Expr{Kind: KText, Text: n.Value}
	case *ast.ErrorLit:
		return &Expr{Kind: KError, Error: n.Literal}
	case *ast.CellRefExpr:
		return &Expr{Kind: KCellRef, CellRef: n.Ref}
	case *ast.RangeRefExpr:
		return &Expr{Kind: KRangeRef, RangeRef: n.Ref}
	case *ast.RowRefExpr:
		return &Expr{Kind: KRowRef, RowRef: n.Ref}
	case *ast.ColRefExpr:
		return &Expr{Kind: KColRef, ColRef: n.Ref}
	case *ast.NameRefExpr:
		return &Expr{Kind: KNameRef, NameRef: n.Ref}
	case *ast.StructuredRefExpr:
		return &Expr{Kind: KStructuredRef, StructuredRef: n.Ref}
	case *ast.FieldAccess:
		target := Compile(n.Target, r)
		return &Expr{Kind: KFieldAccess, Operand: target, Field: n.Field, Volatile: target.Volatile}
	case *ast.Call:
		return compileCall(n, r)
	case *ast.Unary:
		operand := Compile(n.Operand, r)
		return &Expr{Kind: KUnary, UnaryOp: n.Op, Operand: operand, Volatile: operand.Volatile}
	case *ast.Binary:
		left := Compile(n.Left, r)
		right := Compile(n.Right, r)
		return &Expr{Kind: KBinary, BinaryOp: n.Op, Left: left, Right: right, Volatile: left.Volatile || right.Volatile}
	case *ast.ArrayLit:
		rows := make([][]*Expr, len(n.Rows))
		volatile := false
		for i, row := range n.Rows {
			crow := make([]*Expr, len(row))
			for j, cell := range row {
				crow[j] = Compile(cell, r)
				volatile = volatile || crow[j].Volatile
			}
			rows[i] = crow
		}
		return &Expr{Kind: KArrayLit, ArrayRows: rows, Volatile: volatile}
	case *ast.LambdaExpr:
		body := Compile(n.Body, r)
		// A lambda's volatility is decided at call time (it depends on
		// captured arguments too), not baked in at compile time, so the
		// lambda literal itself is never volatile.
		return &Expr{Kind: KLambda, LambdaParams: n.Params, LambdaBody: body}
	case *ast.ImplicitIntersection:
		operand := Compile(n.Operand, r)
		return &Expr{Kind: KImplicitIntersection, Operand: operand, Volatile: operand.Volatile}
	default:
		return &Expr{Kind: KError, Error: "#VALUE!"}
	}
}

func compileCall(n *ast.Call, r *Resolver) *Expr {
	args := make([]*Expr, len(n.Args))
	volatile := false
	for i, a := range n.Args {
		args[i] = Compile(a, r)
		volatile = volatile || args[i].Volatile
	}
	if n.Callee != nil {
		callee := Compile(n.Callee, r)
		return &Expr{Kind: KCall, Callee: callee, Args: args, Volatile: volatile || callee.Volatile}
	}
	spec, ok := r.Functions.Lookup(n.Name)
	if !ok {
		return &Expr{Kind: KError, Error: "#NAME?"}
	}
	markAddressOnlyArgs(args, spec)
	return &Expr{
		Kind:     KCall,
		FuncName: spec.Name,
		FuncSpec: spec,
		Args:     args,
		Volatile: volatile || spec.Volatile,
	}
}

// markAddressOnlyArgs flags each argument the callee declared
// functions.ArgAddressOnly for, provided it compiled directly to a
// reference-kind node (a literal A1/range/row/col ref, not a nested
// expression — OFFSET(A1,0,0)'s first argument qualifies, IF(TRUE,A1,B1)
// does not). Unqualified arguments are evaluated normally; they simply
// aren't exempted from static precedent extraction.
func markAddressOnlyArgs(args []*Expr, spec *functions.FunctionSpec) {
	for i, a := range args {
		kind := functions.ArgScalar
		switch {
		case i < len(spec.ArgKinds):
			kind = spec.ArgKinds[i]
		case len(spec.ArgKinds) > 0:
			kind = spec.ArgKinds[len(spec.ArgKinds)-1]
		}
		if kind != functions.ArgAddressOnly {
			continue
		}
		switch a.Kind {
		case KCellRef, KRangeRef, KRowRef, KColRef, KStructuredRef:
			a.AddressOnly = true
		}
	}
}

// Walk calls visit on e and every descendant, depth first, parents
// before children. Used by the graph package to extract static
// precedents without re-implementing tree traversal per caller.
func Walk(e *Expr, visit func(*Expr)) {
	if e == nil {
		return
	}
	visit(e)
	Walk(e.Operand, visit)
	Walk(e.Callee, visit)
	for _, a := range e.Args {
		Walk(a, visit)
	}
	Walk(e.Left, visit)
	Walk(e.Right, visit)
	Walk(e.LambdaBody, visit)
	for _, row := range e.ArrayRows {
		for _, cell := range row {
			Walk(cell, visit)
		}
	}
}
