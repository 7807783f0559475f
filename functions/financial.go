package functions

import (
	"math"

	"github.com/sparrowsheet/calcengine/value"
)

func init() {
	register(&FunctionSpec{Name: "PMT", MinArgs: 3, MaxArgs: 5, ArgKinds: []ArgKind{ArgScalar, ArgScalar, ArgScalar, ArgScalar, ArgScalar}, Impl: fnPmt})
	register(&FunctionSpec{Name: "FV", MinArgs: 3, MaxArgs: 5, ArgKinds: []ArgKind{ArgScalar, ArgScalar, ArgScalar, ArgScalar, ArgScalar}, Impl: fnFv})
	register(&FunctionSpec{Name: "PV", MinArgs: 3, MaxArgs: 5, ArgKinds: []ArgKind{ArgScalar, ArgScalar, ArgScalar, ArgScalar, ArgScalar}, Impl: fnPv})
	register(&FunctionSpec{Name: "NPV", MinArgs: 2, MaxArgs: -1, ArgKinds: []ArgKind{ArgScalar, ArgRange}, Impl: fnNpv})
}

// finArgs reads the common (rate, nper, pmt, [arg4], [type]) shape
// shared by FV(rate,nper,pmt,[pv],[type]) and PV(rate,nper,pmt,[fv],[type]);
// callers name the fourth return to match which one their function takes.
func finArgs(args Args) (rate, nper, pmt, arg4, typ float64, ok bool) {
	var o1, o2, o3 bool
	rate, o1 = value.ToNumber(scalar(args[0]))
	nper, o2 = value.ToNumber(scalar(args[1]))
	pmt, o3 = value.ToNumber(scalar(args[2]))
	ok = o1 && o2 && o3
	if len(args) >= 4 {
		arg4, _ = value.ToNumber(scalar(args[3]))
	}
	if len(args) >= 5 {
		typ, _ = value.ToNumber(scalar(args[4]))
	}
	return
}

func fnPmt(_ any, args Args) value.Value {
	rate, nper, pv, fv, typ, ok := pmtArgs(args)
	if !ok {
		return value.NewError(value.ErrValue, "")
	}
	if rate == 0 {
		return -(pv + fv) / nper
	}
	factor := math.Pow(1+rate, nper)
	pmt := rate / (factor - 1) * -(pv*factor + fv)
	if typ != 0 {
		pmt /= 1 + rate
	}
	return pmt
}

// pmtArgs reads PMT(rate, nper, pv, [fv], [type]) — a different
// parameter order than the rate/nper/pmt-first FV/PV family, so it has
// its own reader rather than reusing finArgs.
func pmtArgs(args Args) (rate, nper, pv, fv, typ float64, ok bool) {
	var o1, o2, o3 bool
	rate, o1 = value.ToNumber(scalar(args[0]))
	nper, o2 = value.ToNumber(scalar(args[1]))
	pv, o3 = value.ToNumber(scalar(args[2]))
	ok = o1 && o2 && o3
	if len(args) >= 4 {
		fv, _ = value.ToNumber(scalar(args[3]))
	}
	if len(args) >= 5 {
		typ, _ = value.ToNumber(scalar(args[4]))
	}
	return
}

func fnFv(_ any, args Args) value.Value {
	rate, nper, pmt, pv, typ, ok := finArgs(args)
	if !ok {
		return value.NewError(value.ErrValue, "")
	}
	if rate == 0 {
		return -(pv + pmt*nper)
	}
	factor := math.Pow(1+rate, nper)
	annuity := pmt * (1 + rate*typ) * (factor - 1) / rate
	return -(pv*factor + annuity)
}

func fnPv(_ any, args Args) value.Value {
	rate, nper, pmt, fv, typ, ok := finArgs(args)
	if !ok {
		return value.NewError(value.ErrValue, "")
	}
	if rate == 0 {
		return -(fv + pmt*nper)
	}
	factor := math.Pow(1+rate, nper)
	annuity := pmt * (1 + rate*typ) * (factor - 1) / rate
	return -(fv + annuity) / factor
}

func fnNpv(_ any, args Args) value.Value {
	rate, ok := value.ToNumber(scalar(args[0]))
	if !ok {
		return value.NewError(value.ErrValue, "")
	}
	nums, err := numbersFrom(args[1:], 0)
	if err != nil {
		return err
	}
	sum := 0.0
	for i, cf := range nums {
		sum += cf / math.Pow(1+rate, float64(i+1))
	}
	return sum
}
