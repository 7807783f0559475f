package ast

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sparrowsheet/calcengine/ref"
)

// Serialize renders expr back to Excel formula text (including the
// leading "="), relative coordinates resolved against origin. This is
// the bit-exact inverse side of Parse: re-parsing Serialize's output
// with the same origin must reproduce an equivalent tree (spec §4.2,
// exercised by ast/roundtrip_test.go).
func Serialize(expr Expr, origin ref.CellAddr) string {
	var b strings.Builder
	b.WriteByte('=')
	writeExpr(&b, expr, origin, precLowest)
	return b.String()
}

func writeExpr(b *strings.Builder, e Expr, origin ref.CellAddr, parentPrec precedence) {
	switch n := e.(type) {
	case *Number:
		b.WriteString(formatLiteralNumber(n.Value))
	case *Bool:
		if n.Value {
			b.WriteString("TRUE")
		} else {
			b.WriteString("FALSE")
		}
	case *Text:
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(n.Value, `"`, `""`))
		b.WriteByte('"')
	case *ErrorLit:
		b.WriteString(n.Literal)
	case *CellRefExpr:
		writeSheetPrefix(b, n.Ref.Sheet)
		b.WriteString(coordPairText(n.Ref.Col, n.Ref.Row, origin))
	case *RangeRefExpr:
		writeSheetPrefix(b, n.Ref.Sheet)
		b.WriteString(coordPairText(n.Ref.StartCol, n.Ref.StartRow, origin))
		b.WriteByte(':')
		b.WriteString(coordPairText(n.Ref.EndCol, n.Ref.EndRow, origin))
	case *RowRefExpr:
		writeSheetPrefix(b, n.Ref.Sheet)
		writeCoord(b, n.Ref.Row, origin.Row, false)
		b.WriteByte(':')
		writeCoord(b, n.Ref.Row, origin.Row, false)
	case *ColRefExpr:
		writeSheetPrefix(b, n.Ref.Sheet)
		writeCoord(b, n.Ref.Col, origin.Col, true)
		b.WriteByte(':')
		writeCoord(b, n.Ref.Col, origin.Col, true)
	case *NameRefExpr:
		writeSheetPrefix(b, n.Ref.Sheet)
		b.WriteString(n.Ref.Name)
	case *StructuredRefExpr:
		b.WriteString(structuredRefText(n.Ref))
	case *FieldAccess:
		writeExpr(b, n.Target, origin, precHighest)
		b.WriteByte('.')
		b.WriteString(n.Field)
	case *Call:
		writeCall(b, n, origin)
	case *Unary:
		writeUnary(b, n, origin, parentPrec)
	case *Binary:
		writeBinary(b, n, origin, parentPrec)
	case *ArrayLit:
		writeArrayLit(b, n, origin)
	case *LambdaExpr:
		b.WriteString("LAMBDA(")
		for _, p := range n.Params {
			b.WriteString(p)
			b.WriteString(", ")
		}
		writeExpr(b, n.Body, origin, precLowest)
		b.WriteByte(')')
	case *ImplicitIntersection:
		b.WriteByte('@')
		writeExpr(b, n.Operand, origin, precUnary)
	default:
		b.WriteString(fmt.Sprintf("<?%T?>", e))
	}
}

func formatLiteralNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func writeSheetPrefix(b *strings.Builder, sr *ref.SheetRef) {
	if sr == nil {
		return
	}
	s := sr.String()
	if needsQuoting(s) {
		b.WriteByte('\'')
		b.WriteString(strings.ReplaceAll(s, "'", "''"))
		b.WriteByte('\'')
	} else {
		b.WriteString(s)
	}
	b.WriteByte('!')
}

// needsQuoting reports whether a sheet name requires single-quoting in
// serialized formula text: anything other than letters, digits, and
// underscore, or a 3D span (which always quotes per Excel convention).
func needsQuoting(s string) bool {
	if strings.ContainsAny(s, ":") {
		return true
	}
	for _, ch := range s {
		if !isAlphaNumeric(ch) && ch != '_' {
			return true
		}
	}
	return false
}

func coordPairText(col, row ref.Coord, origin ref.CellAddr) string {
	var b strings.Builder
	writeCoord(&b, col, origin.Col, true)
	writeCoord(&b, row, origin.Row, false)
	return b.String()
}

func writeCoord(b *strings.Builder, c ref.Coord, origin uint32, isCol bool) {
	idx, _ := c.Resolve(origin)
	if c.Abs {
		b.WriteByte('$')
	}
	if isCol {
		b.WriteString(ref.ColumnLetters(uint32(idx)))
	} else {
		fmt.Fprintf(b, "%d", idx+1)
	}
}

func structuredRefText(sr ref.StructuredRef) string {
	var b strings.Builder
	b.WriteString(sr.Table)
	b.WriteByte('[')
	parts := make([]string, 0, len(sr.Columns)+1)
	switch sr.Item {
	case ref.ItemHeaders:
		parts = append(parts, "[#Headers]")
	case ref.ItemData:
		parts = append(parts, "[#Data]")
	case ref.ItemTotals:
		parts = append(parts, "[#Totals]")
	case ref.ItemAll:
		parts = append(parts, "[#All]")
	case ref.ItemThisRow:
		parts = append(parts, "[#This Row]")
	}
	for _, c := range sr.Columns {
		parts = append(parts, "["+c+"]")
	}
	if len(parts) == 1 && sr.Item == ref.ItemNone {
		b.WriteString(strings.Trim(parts[0], "[]"))
	} else {
		b.WriteString(strings.Join(parts, ","))
	}
	b.WriteByte(']')
	return b.String()
}

func writeCall(b *strings.Builder, c *Call, origin ref.CellAddr) {
	b.WriteString(c.Name)
	b.WriteByte('(')
	for i, a := range c.Args {
		if i > 0 {
			b.WriteByte(',')
		}
		writeExpr(b, a, origin, precLowest)
	}
	b.WriteByte(')')
}

func writeArrayLit(b *strings.Builder, a *ArrayLit, origin ref.CellAddr) {
	b.WriteByte('{')
	for r, row := range a.Rows {
		if r > 0 {
			b.WriteByte(';')
		}
		for c, cell := range row {
			if c > 0 {
				b.WriteByte(',')
			}
			writeExpr(b, cell, origin, precAdd)
		}
	}
	b.WriteByte('}')
}

func unaryOpPrec(op UnaryOp) precedence {
	switch op {
	case UnaryOpPlus, UnaryOpMinus:
		return precUnary
	case UnaryOpPercent:
		return precPercent
	case UnaryOpSpill:
		return precHighest
	default:
		return precHighest
	}
}

func writeUnary(b *strings.Builder, n *Unary, origin ref.CellAddr, parentPrec precedence) {
	myPrec := unaryOpPrec(n.Op)
	needParen := myPrec < parentPrec
	if needParen {
		b.WriteByte('(')
	}
	switch n.Op {
	case UnaryOpMinus:
		b.WriteByte('-')
		writeExpr(b, n.Operand, origin, precUnary)
	case UnaryOpPlus:
		b.WriteByte('+')
		writeExpr(b, n.Operand, origin, precUnary)
	case UnaryOpPercent:
		writeExpr(b, n.Operand, origin, precPercent)
		b.WriteByte('%')
	case UnaryOpSpill:
		writeExpr(b, n.Operand, origin, precHighest)
		b.WriteByte('#')
	}
	if needParen {
		b.WriteByte(')')
	}
}

func binOpText(op BinaryOp) (string, precedence) {
	switch op {
	case BinOpUnion:
		return ",", precLowest
	case BinOpIntersect:
		return " ", precLowest
	case BinOpRange:
		return ":", precHighest
	case BinOpConcat:
		return "&", precConcat
	case BinOpEqual:
		return "=", precComparison
	case BinOpNotEqual:
		return "<>", precComparison
	case BinOpLess:
		return "<", precComparison
	case BinOpLessEqual:
		return "<=", precComparison
	case BinOpGreater:
		return ">", precComparison
	case BinOpGreaterEqual:
		return ">=", precComparison
	case BinOpAdd:
		return "+", precAdd
	case BinOpSubtract:
		return "-", precAdd
	case BinOpMultiply:
		return "*", precMul
	case BinOpDivide:
		return "/", precMul
	case BinOpPower:
		return "^", precPower
	default:
		return "?", precLowest
	}
}

// writeBinary always parenthesizes a reference union, at the outermost
// level too, matching Excel's own round-trip behavior of always
// re-wrapping a union operand in parentheses (spec §4.2's
// union-parenthesization-on-serialize rule).
func writeBinary(b *strings.Builder, n *Binary, origin ref.CellAddr, parentPrec precedence) {
	opText, myPrec := binOpText(n.Op)
	needParen := myPrec < parentPrec || n.Op == BinOpUnion
	if needParen {
		b.WriteByte('(')
	}
	rightMin := myPrec + 1
	if n.Op == BinOpPower {
		rightMin = myPrec
	}
	if n.Op == BinOpUnion {
		rightMin = precLowest
	}
	writeExpr(b, n.Left, origin, myPrec)
	b.WriteString(opText)
	writeExpr(b, n.Right, origin, rightMin)
	if needParen {
		b.WriteByte(')')
	}
}
