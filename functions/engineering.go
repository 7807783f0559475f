package functions

import (
	"strconv"

	"github.com/sparrowsheet/calcengine/value"
)

func init() {
	register(&FunctionSpec{Name: "DEC2BIN", MinArgs: 1, MaxArgs: 2, ArgKinds: []ArgKind{ArgScalar, ArgScalar}, Impl: fnDec2Bin})
	register(&FunctionSpec{Name: "BIN2DEC", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgScalar}, Impl: baseToDec(2)})
	register(&FunctionSpec{Name: "DEC2HEX", MinArgs: 1, MaxArgs: 2, ArgKinds: []ArgKind{ArgScalar, ArgScalar}, Impl: fnDec2Hex})
	register(&FunctionSpec{Name: "HEX2DEC", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgScalar}, Impl: baseToDec(16)})
	register(&FunctionSpec{Name: "DEC2OCT", MinArgs: 1, MaxArgs: 2, ArgKinds: []ArgKind{ArgScalar, ArgScalar}, Impl: fnDec2Oct})
	register(&FunctionSpec{Name: "OCT2DEC", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgScalar}, Impl: baseToDec(8)})
}

func decToBase(n int64, base int, pad int) string {
	s := strconv.FormatInt(n, base)
	for len(s) < pad {
		s = "0" + s
	}
	return s
}

func fnDec2Bin(_ any, args Args) value.Value {
	n, ok := value.ToNumber(scalar(args[0]))
	if !ok {
		return value.NewError(value.ErrNum, "")
	}
	pad := 0
	if len(args) == 2 {
		p, _ := value.ToNumber(scalar(args[1]))
		pad = int(p)
	}
	return decToBase(int64(n), 2, pad)
}

func fnDec2Hex(_ any, args Args) value.Value {
	n, ok := value.ToNumber(scalar(args[0]))
	if !ok {
		return value.NewError(value.ErrNum, "")
	}
	pad := 0
	if len(args) == 2 {
		p, _ := value.ToNumber(scalar(args[1]))
		pad = int(p)
	}
	s := decToBase(int64(n), 16, pad)
	return toUpperASCII(s)
}

func fnDec2Oct(_ any, args Args) value.Value {
	n, ok := value.ToNumber(scalar(args[0]))
	if !ok {
		return value.NewError(value.ErrNum, "")
	}
	pad := 0
	if len(args) == 2 {
		p, _ := value.ToNumber(scalar(args[1]))
		pad = int(p)
	}
	return decToBase(int64(n), 8, pad)
}

func baseToDec(base int) FunctionImpl {
	return func(_ any, args Args) value.Value {
		s := value.ToText(scalar(args[0]))
		n, err := strconv.ParseInt(s, base, 64)
		if err != nil {
			return value.NewError(value.ErrNum, "")
		}
		return float64(n)
	}
}

func toUpperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 32
		}
	}
	return string(b)
}
