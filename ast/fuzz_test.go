package ast

import (
	"testing"

	"github.com/sparrowsheet/calcengine/ref"
)

// FuzzParse checks that Parse never panics on arbitrary input, and that
// whenever it succeeds, Serialize followed by a second Parse also
// succeeds (a parse error should never be produced by our own
// serializer's output).
func FuzzParse(f *testing.F) {
	seeds := []string{
		`=1+2`,
		`=SUM(A1:A10)`,
		`=IF(A1>0,"y","n")`,
		`=A1:B2`,
		`={1,2;3,4}`,
		`=LAMBDA(x,x*x)(3)`,
		`='Sheet 1'!A1`,
		`=A1#`,
		`=#DIV/0!`,
	}
	for _, s := range seeds {
		f.Add(s)
	}
	origin := ref.CellAddr{Row: 0, Col: 0}
	f.Fuzz(func(t *testing.T, formula string) {
		if len(formula) == 0 || formula[0] != '=' {
			formula = "=" + formula
		}
		e, err := Parse(formula, ParseContext{Origin: origin})
		if err != nil {
			return
		}
		out := Serialize(e, origin)
		if _, err := Parse(out, ParseContext{Origin: origin}); err != nil {
			t.Fatalf("re-parse of serialized output failed: %q -> %q: %v", formula, out, err)
		}
	})
}
