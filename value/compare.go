package value

import (
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// typeRank orders the scalar variants for cross-type comparison: Number <
// Text < Bool, matching Excel's sort/compare order (digits sort below
// letters, and both sort below TRUE/FALSE). Blank compares as if it were
// the zero value of whatever it's compared against, handled separately in
// Compare.
func typeRank(v Value) int {
	switch v.(type) {
	case float64, int, int64:
		return 0
	case string:
		return 1
	case bool:
		return 2
	default:
		return 3
	}
}

// collator is process-wide: Excel's text comparison is case-insensitive
// and locale-independent for the purposes of this engine, so a single
// root-locale collator is reused rather than built per comparison.
var collator = collate.New(language.Und, collate.IgnoreCase)

// Compare orders two scalar values the way Excel's comparison operators
// and sort do: Blank coerces to the other operand's zero value, otherwise
// Number < Text < Bool across types, and same-type comparison is numeric,
// case-insensitive-text (via collate), or bool (false < true). Returns -2
// if the values are not comparable at all (only reachable for array/
// reference/lambda operands, which callers reject before calling Compare).
func Compare(a, b Value) int {
	if IsBlank(a) && IsBlank(b) {
		return 0
	}
	if IsBlank(a) {
		return compareAgainstZero(b, true)
	}
	if IsBlank(b) {
		return compareAgainstZero(a, false)
	}

	ra, rb := typeRank(a), typeRank(b)
	if ra == 3 || rb == 3 {
		return -2
	}
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch ra {
	case 0:
		na, _ := ToNumber(a)
		nb, _ := ToNumber(b)
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		default:
			return 0
		}
	case 1:
		return collator.CompareString(a.(string), b.(string))
	case 2:
		ba, bb := a.(bool), b.(bool)
		if ba == bb {
			return 0
		}
		if !ba && bb {
			return -1
		}
		return 1
	default:
		return -2
	}
}

// compareAgainstZero compares a non-blank value against the implicit
// "zero" a blank cell coerces to in its own type: 0 for numbers, "" for
// text, FALSE for bool. blankIsLeft controls operand order in the result.
func compareAgainstZero(v Value, blankIsLeft bool) int {
	var result int
	switch t := v.(type) {
	case float64, int, int64:
		n, _ := ToNumber(v)
		switch {
		case n > 0:
			result = -1
		case n < 0:
			result = 1
		default:
			result = 0
		}
	case string:
		result = collator.CompareString("", t)
	case bool:
		if t {
			result = -1
		} else {
			result = 0
		}
	default:
		return -2
	}
	if blankIsLeft {
		return result
	}
	return -result
}

// Equal reports Excel's loose "=" semantics for scalars: case-insensitive
// text equality, numeric equality, bool equality, cross-type always false
// except via the Blank coercion rules in Compare.
func Equal(a, b Value) bool {
	return Compare(a, b) == 0
}

// EqualFold reports whether two text values are equal ignoring case, the
// rule used for sheet names, defined names, and function names.
func EqualFold(a, b string) bool {
	return strings.EqualFold(a, b)
}
