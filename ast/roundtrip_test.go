package ast

import (
	"testing"

	"github.com/sparrowsheet/calcengine/ref"
)

// TestRoundTrip parses a formula, serializes it back, re-parses the
// serialized text, and checks the two trees serialize identically a
// second time — the practical round-trip guarantee (spec §4.2) without
// requiring deep structural equality across pointer-held Expr trees.
func TestRoundTrip(t *testing.T) {
	origin := ref.CellAddr{Row: 4, Col: 2} // C5
	cases := []string{
		`=1+2*3-4/2`,
		`=A1+B2`,
		`=$A$1+$B$2`,
		`=SUM(A1:A10)`,
		`=IF(A1>0,"pos",-1)`,
		`=A1&"x"&B1`,
		`=Sheet2!A1+Sheet2!B1`,
		`='My Sheet'!A1:B2`,
		`=-A1%`,
		`=2^3^2`,
		`=(A1,B1:C2)`,
		`={1,2;3,4}`,
		`=A1#`,
	}
	for _, f := range cases {
		f := f
		t.Run(f, func(t *testing.T) {
			e1, err := Parse(f, ParseContext{Origin: origin})
			if err != nil {
				t.Fatalf("first parse: %v", err)
			}
			out1 := Serialize(e1, origin)

			e2, err := Parse(out1, ParseContext{Origin: origin})
			if err != nil {
				t.Fatalf("re-parse of %q: %v", out1, err)
			}
			out2 := Serialize(e2, origin)

			if out1 != out2 {
				t.Fatalf("round trip unstable: %q -> %q -> %q", f, out1, out2)
			}
		})
	}
}
