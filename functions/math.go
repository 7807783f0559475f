package functions

import (
	"math"

	"github.com/sparrowsheet/calcengine/value"
)

func init() {
	register(&FunctionSpec{Name: "SUM", MinArgs: 1, MaxArgs: -1, ArgKinds: []ArgKind{ArgRange}, Impl: fnSum})
	register(&FunctionSpec{Name: "PRODUCT", MinArgs: 1, MaxArgs: -1, ArgKinds: []ArgKind{ArgRange}, Impl: fnProduct})
	register(&FunctionSpec{Name: "SUMSQ", MinArgs: 1, MaxArgs: -1, ArgKinds: []ArgKind{ArgRange}, Impl: fnSumSq})
	register(&FunctionSpec{Name: "ABS", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgScalar}, Impl: num1(math.Abs)})
	register(&FunctionSpec{Name: "SQRT", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgScalar}, Impl: fnSqrt})
	register(&FunctionSpec{Name: "EXP", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgScalar}, Impl: num1(math.Exp)})
	register(&FunctionSpec{Name: "LN", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgScalar}, Impl: fnLn})
	register(&FunctionSpec{Name: "LOG10", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgScalar}, Impl: num1(math.Log10)})
	register(&FunctionSpec{Name: "LOG", MinArgs: 1, MaxArgs: 2, ArgKinds: []ArgKind{ArgScalar, ArgScalar}, Impl: fnLog})
	register(&FunctionSpec{Name: "POWER", MinArgs: 2, MaxArgs: 2, ArgKinds: []ArgKind{ArgScalar, ArgScalar}, Impl: fnPower})
	register(&FunctionSpec{Name: "MOD", MinArgs: 2, MaxArgs: 2, ArgKinds: []ArgKind{ArgScalar, ArgScalar}, Impl: fnMod})
	register(&FunctionSpec{Name: "PI", MinArgs: 0, MaxArgs: 0, Impl: func(any, Args) value.Value { return math.Pi }})
	register(&FunctionSpec{Name: "INT", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgScalar}, Impl: num1(math.Floor)})
	register(&FunctionSpec{Name: "TRUNC", MinArgs: 1, MaxArgs: 2, ArgKinds: []ArgKind{ArgScalar, ArgScalar}, Impl: fnTrunc})
	register(&FunctionSpec{Name: "SIGN", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgScalar}, Impl: fnSign})
	register(&FunctionSpec{Name: "ROUND", MinArgs: 2, MaxArgs: 2, ArgKinds: []ArgKind{ArgScalar, ArgScalar}, Impl: fnRound})
	register(&FunctionSpec{Name: "ROUNDUP", MinArgs: 2, MaxArgs: 2, ArgKinds: []ArgKind{ArgScalar, ArgScalar}, Impl: fnRoundUp})
	register(&FunctionSpec{Name: "ROUNDDOWN", MinArgs: 2, MaxArgs: 2, ArgKinds: []ArgKind{ArgScalar, ArgScalar}, Impl: fnRoundDown})
	register(&FunctionSpec{Name: "FLOOR", MinArgs: 2, MaxArgs: 2, ArgKinds: []ArgKind{ArgScalar, ArgScalar}, Impl: fnFloor})
	register(&FunctionSpec{Name: "CEILING", MinArgs: 2, MaxArgs: 2, ArgKinds: []ArgKind{ArgScalar, ArgScalar}, Impl: fnCeiling})
	register(&FunctionSpec{Name: "RAND", MinArgs: 0, MaxArgs: 0, Volatile: true, Impl: fnRand})
	register(&FunctionSpec{Name: "RANDBETWEEN", MinArgs: 2, MaxArgs: 2, ArgKinds: []ArgKind{ArgScalar, ArgScalar}, Volatile: true, Impl: fnRandBetween})
	register(&FunctionSpec{Name: "SUMIF", MinArgs: 2, MaxArgs: 3, ArgKinds: []ArgKind{ArgRange, ArgScalar, ArgRange}, Impl: fnSumIf})
	register(&FunctionSpec{Name: "SUMPRODUCT", MinArgs: 1, MaxArgs: -1, ArgKinds: []ArgKind{ArgRange}, Impl: fnSumProduct})
}

// num1 adapts a pure float64->float64 math function to a FunctionImpl.
func num1(f func(float64) float64) FunctionImpl {
	return func(_ any, args Args) value.Value {
		n, ok := value.ToNumber(scalar(args[0]))
		if e, isErr := value.IsError(scalar(args[0])); isErr {
			return e
		}
		if !ok {
			return value.NewError(value.ErrValue, "")
		}
		return f(n)
	}
}

func fnSum(_ any, args Args) value.Value {
	nums, err := numbersFrom(args, 0)
	if err != nil {
		return err
	}
	return value.KahanSum(nums)
}

func fnSumSq(_ any, args Args) value.Value {
	nums, err := numbersFrom(args, 0)
	if err != nil {
		return err
	}
	sq := make([]float64, len(nums))
	for i, n := range nums {
		sq[i] = n * n
	}
	return value.KahanSum(sq)
}

func fnProduct(_ any, args Args) value.Value {
	nums, err := numbersFrom(args, 0)
	if err != nil {
		return err
	}
	if len(nums) == 0 {
		return 0.0
	}
	p := 1.0
	for _, n := range nums {
		p *= n
	}
	return p
}

func fnSqrt(_ any, args Args) value.Value {
	v := scalar(args[0])
	if e, ok := value.IsError(v); ok {
		return e
	}
	n, ok := value.ToNumber(v)
	if !ok {
		return value.NewError(value.ErrValue, "")
	}
	if n < 0 {
		return value.NewError(value.ErrNum, "")
	}
	return math.Sqrt(n)
}

func fnLn(_ any, args Args) value.Value {
	v := scalar(args[0])
	if e, ok := value.IsError(v); ok {
		return e
	}
	n, ok := value.ToNumber(v)
	if !ok || n <= 0 {
		return value.NewError(value.ErrNum, "")
	}
	return math.Log(n)
}

func fnLog(_ any, args Args) value.Value {
	n, ok := value.ToNumber(scalar(args[0]))
	if !ok || n <= 0 {
		return value.NewError(value.ErrNum, "")
	}
	base := 10.0
	if len(args) == 2 {
		b, ok := value.ToNumber(scalar(args[1]))
		if !ok || b <= 0 || b == 1 {
			return value.NewError(value.ErrNum, "")
		}
		base = b
	}
	return math.Log(n) / math.Log(base)
}

func fnPower(_ any, args Args) value.Value {
	base, ok1 := value.ToNumber(scalar(args[0]))
	exp, ok2 := value.ToNumber(scalar(args[1]))
	if !ok1 || !ok2 {
		return value.NewError(value.ErrValue, "")
	}
	r := math.Pow(base, exp)
	if math.IsNaN(r) {
		return value.NewError(value.ErrNum, "")
	}
	return r
}

func fnMod(_ any, args Args) value.Value {
	n, ok1 := value.ToNumber(scalar(args[0]))
	d, ok2 := value.ToNumber(scalar(args[1]))
	if !ok1 || !ok2 {
		return value.NewError(value.ErrValue, "")
	}
	if d == 0 {
		return value.NewError(value.ErrDiv0, "")
	}
	m := math.Mod(n, d)
	if m != 0 && (m < 0) != (d < 0) {
		m += d
	}
	return m
}

func fnTrunc(_ any, args Args) value.Value {
	n, ok := value.ToNumber(scalar(args[0]))
	if !ok {
		return value.NewError(value.ErrValue, "")
	}
	digits := 0.0
	if len(args) == 2 {
		digits, _ = value.ToNumber(scalar(args[1]))
	}
	scale := math.Pow(10, digits)
	return math.Trunc(n*scale) / scale
}

func fnSign(_ any, args Args) value.Value {
	n, ok := value.ToNumber(scalar(args[0]))
	if !ok {
		return value.NewError(value.ErrValue, "")
	}
	switch {
	case n > 0:
		return 1.0
	case n < 0:
		return -1.0
	default:
		return 0.0
	}
}

func roundAt(n, digits float64, mode int) float64 {
	scale := math.Pow(10, digits)
	scaled := n * scale
	var r float64
	switch mode {
	case 0: // nearest, half away from zero
		if scaled >= 0 {
			r = math.Floor(scaled + 0.5)
		} else {
			r = math.Ceil(scaled - 0.5)
		}
	case 1: // up (away from zero)
		if scaled >= 0 {
			r = math.Ceil(scaled)
		} else {
			r = math.Floor(scaled)
		}
	case -1: // down (toward zero)
		r = math.Trunc(scaled)
	}
	return r / scale
}

func fnRound(_ any, args Args) value.Value {
	n, ok1 := value.ToNumber(scalar(args[0]))
	d, ok2 := value.ToNumber(scalar(args[1]))
	if !ok1 || !ok2 {
		return value.NewError(value.ErrValue, "")
	}
	return roundAt(n, d, 0)
}

func fnRoundUp(_ any, args Args) value.Value {
	n, ok1 := value.ToNumber(scalar(args[0]))
	d, ok2 := value.ToNumber(scalar(args[1]))
	if !ok1 || !ok2 {
		return value.NewError(value.ErrValue, "")
	}
	return roundAt(n, d, 1)
}

func fnRoundDown(_ any, args Args) value.Value {
	n, ok1 := value.ToNumber(scalar(args[0]))
	d, ok2 := value.ToNumber(scalar(args[1]))
	if !ok1 || !ok2 {
		return value.NewError(value.ErrValue, "")
	}
	return roundAt(n, d, -1)
}

func fnFloor(_ any, args Args) value.Value {
	n, ok1 := value.ToNumber(scalar(args[0]))
	sig, ok2 := value.ToNumber(scalar(args[1]))
	if !ok1 || !ok2 {
		return value.NewError(value.ErrValue, "")
	}
	if sig == 0 {
		if n == 0 {
			return 0.0
		}
		return value.NewError(value.ErrDiv0, "")
	}
	return math.Floor(n/sig) * sig
}

func fnCeiling(_ any, args Args) value.Value {
	n, ok1 := value.ToNumber(scalar(args[0]))
	sig, ok2 := value.ToNumber(scalar(args[1]))
	if !ok1 || !ok2 {
		return value.NewError(value.ErrValue, "")
	}
	if sig == 0 {
		if n == 0 {
			return 0.0
		}
		return value.NewError(value.ErrDiv0, "")
	}
	return math.Ceil(n/sig) * sig
}

func fnSumIf(ctx any, args Args) value.Value {
	criterion := scalar(args[1])
	sumRange := args[0]
	if len(args) == 3 {
		sumRange = args[2]
	}
	var critVals []value.Value
	forEachValue(args[0], func(v value.Value) bool { critVals = append(critVals, v); return true })
	idx := 0
	acc := value.KahanAccumulator{}
	forEachValue(sumRange, func(v value.Value) bool {
		if idx < len(critVals) && matchesCriterion(critVals[idx], criterion) {
			if n, ok := value.ToNumber(v); ok {
				acc.Add(n)
			}
		}
		idx++
		return true
	})
	return acc.Total()
}

// matchesCriterion implements the common SUMIF/COUNTIF/AVERAGEIF
// criterion grammar: a bare value compares equal (Excel collation), a
// leading comparison operator (=,<>,<,<=,>,>=) compares numerically or
// lexically, and a string containing "*"/"?" wildcards matches as a
// glob. The wildcard case is not implemented here (grounded functions
// are limited to the equality/comparison forms); see DESIGN.md.
func matchesCriterion(v value.Value, criterion value.Value) bool {
	text := value.ToText(criterion)
	ops := []string{"<=", ">=", "<>", "<", ">", "="}
	for _, op := range ops {
		if len(text) > len(op) && text[:len(op)] == op {
			rhs := text[len(op):]
			cmp := value.Compare(v, parseCriterionOperand(rhs))
			switch op {
			case "=":
				return cmp == 0
			case "<>":
				return cmp != 0
			case "<":
				return cmp < 0
			case "<=":
				return cmp <= 0
			case ">":
				return cmp > 0
			case ">=":
				return cmp >= 0
			}
		}
	}
	return value.Equal(v, criterion)
}

func parseCriterionOperand(s string) value.Value {
	if n, ok := value.ToNumber(s); ok {
		return n
	}
	return s
}

func fnSumProduct(_ any, args Args) value.Value {
	var columns [][]float64
	length := -1
	for _, a := range args {
		var col []float64
		forEachValue(a, func(v value.Value) bool {
			n, _ := value.ToNumber(v)
			col = append(col, n)
			return true
		})
		if length == -1 {
			length = len(col)
		} else if len(col) != length {
			return value.NewError(value.ErrValue, "")
		}
		columns = append(columns, col)
	}
	if length <= 0 {
		return 0.0
	}
	products := make([]float64, length)
	for i := range products {
		p := 1.0
		for _, col := range columns {
			p *= col[i]
		}
		products[i] = p
	}
	return value.KahanSum(products)
}

func fnRand(ctx any, _ Args) value.Value {
	return nextRandom(ctx)
}

// nextRandom draws from ctx's random stream when ctx provides one (the
// recalculator's context hands out the engine's per-pass stream), and
// from randSource otherwise.
func nextRandom(ctx any) float64 {
	if c, ok := ctx.(interface{ NextRandom() float64 }); ok {
		return c.NextRandom()
	}
	return randSource()
}

func fnRandBetween(ctx any, args Args) value.Value {
	lo, ok1 := value.ToNumber(scalar(args[0]))
	hi, ok2 := value.ToNumber(scalar(args[1]))
	if !ok1 || !ok2 || hi < lo {
		return value.NewError(value.ErrNum, "")
	}
	span := math.Floor(hi) - math.Ceil(lo) + 1
	if span <= 0 {
		return math.Ceil(lo)
	}
	return math.Ceil(lo) + math.Floor(nextRandom(ctx)*span)
}

// randSource is the fallback RAND()/RANDBETWEEN() use when the ctx they
// are called with has no NextRandom method (e.g. a nil ctx in unit
// tests); it returns 0.5 until SetRandSource replaces it.
var randSource = func() float64 { return 0.5 }

// SetRandSource replaces the fallback random source.
func SetRandSource(f func() float64) { randSource = f }
