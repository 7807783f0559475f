package ast

import (
	"testing"

	"github.com/sparrowsheet/calcengine/ref"
)

func testCtx() ParseContext {
	return ParseContext{Origin: ref.CellAddr{Row: 0, Col: 0}}
}

func parseOK(t *testing.T, formula string) Expr {
	t.Helper()
	e, err := Parse(formula, testCtx())
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", formula, err)
	}
	return e
}

func TestParserBasicFormulas(t *testing.T) {
	cases := []string{
		`=1+2`,
		`=A1+B2`,
		`=SUM(A1:A10)`,
		`=IF(A1>0,"pos","neg")`,
		`=A1&B1`,
		`="hello "&"world"`,
		`=Sheet2!A1`,
		`='My Sheet'!A1:B2`,
		`=-A1`,
		`=A1%`,
		`=2^10`,
		`={1,2;3,4}`,
		`=LAMBDA(x,x+1)(5)`,
		`=A1#`,
		`=#N/A`,
	}
	for _, f := range cases {
		f := f
		t.Run(f, func(t *testing.T) {
			parseOK(t, f)
		})
	}
}

func TestParserInvalidFormulas(t *testing.T) {
	cases := []string{
		`=`,
		`=SUM(`,
		`=A1:`,
		`="unterminated`,
		`=1+`,
	}
	for _, f := range cases {
		f := f
		t.Run(f, func(t *testing.T) {
			if _, err := Parse(f, testCtx()); err == nil {
				t.Fatalf("Parse(%q) expected error, got nil", f)
			}
		})
	}
}

func TestParserOperatorPrecedence(t *testing.T) {
	e := parseOK(t, "=1+2*3")
	bin, ok := e.(*Binary)
	if !ok || bin.Op != BinOpAdd {
		t.Fatalf("expected top-level Add, got %#v", e)
	}
	rhs, ok := bin.Right.(*Binary)
	if !ok || rhs.Op != BinOpMultiply {
		t.Fatalf("expected RHS Multiply, got %#v", bin.Right)
	}
}

func TestParserPowerRightAssociative(t *testing.T) {
	e := parseOK(t, "=2^3^2")
	bin, ok := e.(*Binary)
	if !ok || bin.Op != BinOpPower {
		t.Fatalf("expected top-level Power, got %#v", e)
	}
	if _, ok := bin.Right.(*Binary); !ok {
		t.Fatalf("expected right-associative nesting on the right side, got %#v", bin.Right)
	}
	if _, ok := bin.Left.(*Number); !ok {
		t.Fatalf("expected left operand to be a bare Number for right-associativity, got %#v", bin.Left)
	}
}

func TestParserCellRefRelativeOffset(t *testing.T) {
	e := parseOK(t, "=A1")
	cr, ok := e.(*CellRefExpr)
	if !ok {
		t.Fatalf("expected CellRefExpr, got %#v", e)
	}
	if !cr.Ref.Col.IsOffset || !cr.Ref.Row.IsOffset {
		t.Fatalf("expected relative coords stored as offsets, got %#v", cr.Ref)
	}
}

func TestParserAbsoluteCellRef(t *testing.T) {
	e := parseOK(t, "=$A$1")
	cr, ok := e.(*CellRefExpr)
	if !ok {
		t.Fatalf("expected CellRefExpr, got %#v", e)
	}
	if !cr.Ref.Col.Abs || !cr.Ref.Row.Abs {
		t.Fatalf("expected absolute coords, got %#v", cr.Ref)
	}
}
