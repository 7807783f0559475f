package functions

import (
	"math"
	"sort"

	"github.com/sparrowsheet/calcengine/value"
)

func init() {
	register(&FunctionSpec{Name: "AVERAGE", MinArgs: 1, MaxArgs: -1, ArgKinds: []ArgKind{ArgRange}, Impl: fnAverage})
	register(&FunctionSpec{Name: "AVERAGEA", MinArgs: 1, MaxArgs: -1, ArgKinds: []ArgKind{ArgRange}, Impl: fnAverageA})
	register(&FunctionSpec{Name: "COUNT", MinArgs: 1, MaxArgs: -1, ArgKinds: []ArgKind{ArgRange}, Impl: fnCount})
	register(&FunctionSpec{Name: "COUNTA", MinArgs: 1, MaxArgs: -1, ArgKinds: []ArgKind{ArgRange}, Impl: fnCountA})
	register(&FunctionSpec{Name: "COUNTBLANK", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgRange}, Impl: fnCountBlank})
	register(&FunctionSpec{Name: "COUNTIF", MinArgs: 2, MaxArgs: 2, ArgKinds: []ArgKind{ArgRange, ArgScalar}, Impl: fnCountIf})
	register(&FunctionSpec{Name: "MAX", MinArgs: 1, MaxArgs: -1, ArgKinds: []ArgKind{ArgRange}, Impl: fnMax})
	register(&FunctionSpec{Name: "MIN", MinArgs: 1, MaxArgs: -1, ArgKinds: []ArgKind{ArgRange}, Impl: fnMin})
	register(&FunctionSpec{Name: "MEDIAN", MinArgs: 1, MaxArgs: -1, ArgKinds: []ArgKind{ArgRange}, Impl: fnMedian})
	register(&FunctionSpec{Name: "MODE", MinArgs: 1, MaxArgs: -1, ArgKinds: []ArgKind{ArgRange}, Impl: fnMode})
	register(&FunctionSpec{Name: "STDEV", MinArgs: 1, MaxArgs: -1, ArgKinds: []ArgKind{ArgRange}, Impl: fnStdevSample})
	register(&FunctionSpec{Name: "STDEVP", MinArgs: 1, MaxArgs: -1, ArgKinds: []ArgKind{ArgRange}, Impl: fnStdevPop})
	register(&FunctionSpec{Name: "VAR", MinArgs: 1, MaxArgs: -1, ArgKinds: []ArgKind{ArgRange}, Impl: fnVarSample})
	register(&FunctionSpec{Name: "VARP", MinArgs: 1, MaxArgs: -1, ArgKinds: []ArgKind{ArgRange}, Impl: fnVarPop})
	register(&FunctionSpec{Name: "LARGE", MinArgs: 2, MaxArgs: 2, ArgKinds: []ArgKind{ArgRange, ArgScalar}, Impl: fnLarge})
	register(&FunctionSpec{Name: "SMALL", MinArgs: 2, MaxArgs: 2, ArgKinds: []ArgKind{ArgRange, ArgScalar}, Impl: fnSmall})
}

func fnAverage(_ any, args Args) value.Value {
	nums, err := numbersFrom(args, 0)
	if err != nil {
		return err
	}
	if len(nums) == 0 {
		return value.NewError(value.ErrDiv0, "")
	}
	return value.KahanSum(nums) / float64(len(nums))
}

func fnAverageA(_ any, args Args) value.Value {
	var nums []float64
	for _, a := range args {
		forEachValue(a, func(v value.Value) bool {
			if value.IsBlank(v) {
				return true
			}
			switch v.(type) {
			case string:
				nums = append(nums, 0)
			default:
				if n, ok := value.ToNumber(v); ok {
					nums = append(nums, n)
				}
			}
			return true
		})
	}
	if len(nums) == 0 {
		return value.NewError(value.ErrDiv0, "")
	}
	return value.KahanSum(nums) / float64(len(nums))
}

func fnCount(_ any, args Args) value.Value {
	count := 0
	for _, a := range args {
		forEachValue(a, func(v value.Value) bool {
			switch v.(type) {
			case float64, int, int64:
				count++
			}
			return true
		})
	}
	return float64(count)
}

func fnCountA(_ any, args Args) value.Value {
	count := 0
	for _, a := range args {
		forEachValue(a, func(v value.Value) bool {
			if !value.IsBlank(v) {
				count++
			}
			return true
		})
	}
	return float64(count)
}

func fnCountBlank(_ any, args Args) value.Value {
	count := 0
	forEachValue(args[0], func(v value.Value) bool {
		if value.IsBlank(v) || (isText(v) && v.(string) == "") {
			count++
		}
		return true
	})
	return float64(count)
}

func isText(v value.Value) bool {
	_, ok := v.(string)
	return ok
}

func fnCountIf(_ any, args Args) value.Value {
	criterion := scalar(args[1])
	count := 0
	forEachValue(args[0], func(v value.Value) bool {
		if matchesCriterion(v, criterion) {
			count++
		}
		return true
	})
	return float64(count)
}

func fnMax(_ any, args Args) value.Value {
	nums, err := numbersFrom(args, 0)
	if err != nil {
		return err
	}
	if len(nums) == 0 {
		return 0.0
	}
	m := nums[0]
	for _, n := range nums[1:] {
		if n > m {
			m = n
		}
	}
	return m
}

func fnMin(_ any, args Args) value.Value {
	nums, err := numbersFrom(args, 0)
	if err != nil {
		return err
	}
	if len(nums) == 0 {
		return 0.0
	}
	m := nums[0]
	for _, n := range nums[1:] {
		if n < m {
			m = n
		}
	}
	return m
}

func fnMedian(_ any, args Args) value.Value {
	nums, err := numbersFrom(args, 0)
	if err != nil {
		return err
	}
	if len(nums) == 0 {
		return value.NewError(value.ErrNum, "")
	}
	sort.Float64s(nums)
	mid := len(nums) / 2
	if len(nums)%2 == 1 {
		return nums[mid]
	}
	return (nums[mid-1] + nums[mid]) / 2
}

func fnMode(_ any, args Args) value.Value {
	nums, err := numbersFrom(args, 0)
	if err != nil {
		return err
	}
	counts := map[float64]int{}
	order := []float64{}
	for _, n := range nums {
		if counts[n] == 0 {
			order = append(order, n)
		}
		counts[n]++
	}
	best := math.Inf(1)
	bestCount := 0
	for _, n := range order {
		if counts[n] > bestCount {
			bestCount = counts[n]
			best = n
		}
	}
	if bestCount < 2 {
		return value.NewError(value.ErrNA, "")
	}
	return best
}

func variance(nums []float64, population bool) (float64, bool) {
	n := len(nums)
	if population && n < 1 {
		return 0, false
	}
	if !population && n < 2 {
		return 0, false
	}
	mean := value.KahanSum(nums) / float64(n)
	sqDiffs := make([]float64, n)
	for i, x := range nums {
		d := x - mean
		sqDiffs[i] = d * d
	}
	sum := value.KahanSum(sqDiffs)
	if population {
		return sum / float64(n), true
	}
	return sum / float64(n-1), true
}

func fnVarSample(_ any, args Args) value.Value {
	nums, err := numbersFrom(args, 0)
	if err != nil {
		return err
	}
	v, ok := variance(nums, false)
	if !ok {
		return value.NewError(value.ErrDiv0, "")
	}
	return v
}

func fnVarPop(_ any, args Args) value.Value {
	nums, err := numbersFrom(args, 0)
	if err != nil {
		return err
	}
	v, ok := variance(nums, true)
	if !ok {
		return value.NewError(value.ErrDiv0, "")
	}
	return v
}

func fnStdevSample(_ any, args Args) value.Value {
	nums, err := numbersFrom(args, 0)
	if err != nil {
		return err
	}
	v, ok := variance(nums, false)
	if !ok {
		return value.NewError(value.ErrDiv0, "")
	}
	return math.Sqrt(v)
}

func fnStdevPop(_ any, args Args) value.Value {
	nums, err := numbersFrom(args, 0)
	if err != nil {
		return err
	}
	v, ok := variance(nums, true)
	if !ok {
		return value.NewError(value.ErrDiv0, "")
	}
	return math.Sqrt(v)
}

func fnLarge(_ any, args Args) value.Value {
	nums, err := numbersFrom(args[:1], 0)
	if err != nil {
		return err
	}
	k, ok := value.ToNumber(scalar(args[1]))
	if !ok || int(k) < 1 || int(k) > len(nums) {
		return value.NewError(value.ErrNum, "")
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(nums)))
	return nums[int(k)-1]
}

func fnSmall(_ any, args Args) value.Value {
	nums, err := numbersFrom(args[:1], 0)
	if err != nil {
		return err
	}
	k, ok := value.ToNumber(scalar(args[1]))
	if !ok || int(k) < 1 || int(k) > len(nums) {
		return value.NewError(value.ErrNum, "")
	}
	sort.Float64s(nums)
	return nums[int(k)-1]
}
