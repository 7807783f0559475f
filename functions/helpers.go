package functions

import "github.com/sparrowsheet/calcengine/value"

// scalar extracts a plain value.Value from an Args element, collapsing
// an *ArgRef to its single cell (used only for ArgScalar-declared
// positions, where the compiler/evaluator has already range-checked
// that a multi-cell reference needs implicit intersection rather than
// reaching here) and a *value.Array to its [0][0] element.
func scalar(a any) value.Value {
	switch t := a.(type) {
	case *ArgRef:
		var first value.Value = value.Blank{}
		got := false
		t.Cells(func(v value.Value) bool {
			if !got {
				first = v
				got = true
			}
			return false
		})
		return first
	case *value.Array:
		return t.At(0, 0)
	default:
		return t.(value.Value)
	}
}

// forEachValue streams every scalar value an Args element denotes: a
// single value for a plain scalar/array-cell, or every cell of a range
// reference / array literal in row-major order.
func forEachValue(a any, yield func(value.Value) bool) {
	switch t := a.(type) {
	case *ArgRef:
		t.Cells(yield)
	case *value.Array:
		for r := 0; r < t.Rows; r++ {
			for c := 0; c < t.Cols; c++ {
				if !yield(t.At(r, c)) {
					return
				}
			}
		}
	default:
		yield(t.(value.Value))
	}
}

// numbersFrom collects every numeric value reachable from args starting at
// skip, coercing text/bool per ToNumber. Inside a reference or array it
// silently skips Blank and non-numeric values; a directly given scalar
// that cannot be coerced yields #VALUE! (the AVERAGE/SUM family's "ignore
// text in ranges, error on text given directly" rule).
func numbersFrom(args Args, skip int) (nums []float64, firstErr *value.ErrorValue) {
	for _, a := range args[skip:] {
		isRangeLike := false
		switch a.(type) {
		case *ArgRef, *value.Array:
			isRangeLike = true
		}
		if isRangeLike {
			forEachValue(a, func(v value.Value) bool {
				if e, ok := value.IsError(v); ok {
					firstErr = e
					return false
				}
				if n, ok := value.ToNumber(v); ok && !value.IsBlank(v) {
					nums = append(nums, n)
				}
				return true
			})
			if firstErr != nil {
				return nil, firstErr
			}
			continue
		}
		v := scalar(a)
		if e, ok := value.IsError(v); ok {
			return nil, e
		}
		n, ok := value.ToNumber(v)
		if !ok {
			return nil, value.NewError(value.ErrValue, "")
		}
		nums = append(nums, n)
	}
	return nums, nil
}

// checkErrors returns the first ErrorValue found among args' scalar
// positions (range/array elements are not checked here; aggregate
// functions check those themselves while streaming).
func checkErrors(args Args) *value.ErrorValue {
	for _, a := range args {
		switch a.(type) {
		case *ArgRef, *value.Array:
			continue
		}
		if e, ok := value.IsError(scalar(a)); ok {
			return e
		}
	}
	return nil
}
