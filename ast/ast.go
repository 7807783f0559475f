package ast

import "github.com/sparrowsheet/calcengine/ref"

// Expr is the closed set of formula AST node variants (spec §3.2). Each
// concrete type implements Expr via the unexported marker method exprNode,
// the same "sealed interface" shape the teacher's ASTNode interface uses
// for its node set, minus the Eval method — evaluation lives in package
// eval, not on the node itself, since the compiler sits between parsing
// and evaluation.
type Expr interface {
	exprNode()
}

type Number struct{ Value float64 }
type Bool struct{ Value bool }
type Text struct{ Value string }
type ErrorLit struct{ Literal string }

// CellRefExpr is a single-cell reference.
type CellRefExpr struct{ Ref ref.CellRef }

// RangeRefExpr is an A1:B2-style range reference.
type RangeRefExpr struct{ Ref ref.RangeRef }

// RowRefExpr / ColRefExpr are whole-row / whole-column references.
type RowRefExpr struct{ Ref ref.RowRef }
type ColRefExpr struct{ Ref ref.ColRef }

// NameRefExpr is a reference to a defined name.
type NameRefExpr struct{ Ref ref.NameRef }

// StructuredRefExpr is a Table[Column]-style reference.
type StructuredRefExpr struct{ Ref ref.StructuredRef }

// FieldAccess is ".Field" access on a Record/Entity-valued expression,
// e.g. used for rich-value field projection.
type FieldAccess struct {
	Target Expr
	Field  string
}

// Call is a function call, covering both builtin functions (Name is the
// canonical uppercase name) and LAMBDA invocation (Name is "" and Callee
// holds the expression evaluating to the lambda).
type Call struct {
	Name   string
	Callee Expr // non-nil only for calling a lambda-valued expression
	Args   []Expr
}

// Unary is a prefix (+/-) or postfix (%, #) unary operation.
type Unary struct {
	Op      UnaryOp
	Operand Expr
}

// Binary is a binary operation, including the three reference-context
// operators (union ",", intersect " ", range ":").
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// ArrayLit is a literal array constant, e.g. {1,2;3,4}. Rows is row-major
// like value.Array.
type ArrayLit struct {
	Rows [][]Expr
}

// Lambda is a LAMBDA(param, ..., body) expression.
type LambdaExpr struct {
	Params []string
	Body   Expr
}

// ImplicitIntersection wraps an expression with a leading "@" marker,
// forcing single-cell collapse of what would otherwise be an array or
// multi-cell reference result.
type ImplicitIntersection struct {
	Operand Expr
}

func (*Number) exprNode()               {}
func (*Bool) exprNode()                 {}
func (*Text) exprNode()                 {}
func (*ErrorLit) exprNode()             {}
func (*CellRefExpr) exprNode()          {}
func (*RangeRefExpr) exprNode()         {}
func (*RowRefExpr) exprNode()           {}
func (*ColRefExpr) exprNode()           {}
func (*NameRefExpr) exprNode()          {}
func (*StructuredRefExpr) exprNode()    {}
func (*FieldAccess) exprNode()          {}
func (*Call) exprNode()                 {}
func (*Unary) exprNode()                {}
func (*Binary) exprNode()               {}
func (*ArrayLit) exprNode()             {}
func (*LambdaExpr) exprNode()           {}
func (*ImplicitIntersection) exprNode() {}

// Formula pairs a parsed expression with the origin cell it was parsed
// relative to (needed to resolve relative Coord offsets back to absolute
// addresses, and to re-derive offsets on structural rewrite).
type Formula struct {
	Origin ref.CellAddr
	Root   Expr
}
