package functions

import "github.com/sparrowsheet/calcengine/value"

func init() {
	register(&FunctionSpec{Name: "IF", MinArgs: 2, MaxArgs: 3, ArgKinds: []ArgKind{ArgScalar, ArgAny, ArgAny}, Impl: fnIf})
	register(&FunctionSpec{Name: "IFS", MinArgs: 2, MaxArgs: -1, Impl: fnIfs})
	register(&FunctionSpec{Name: "IFERROR", MinArgs: 2, MaxArgs: 2, ArgKinds: []ArgKind{ArgAny, ArgAny}, Impl: fnIfError})
	register(&FunctionSpec{Name: "IFNA", MinArgs: 2, MaxArgs: 2, ArgKinds: []ArgKind{ArgAny, ArgAny}, Impl: fnIfNA})
	register(&FunctionSpec{Name: "AND", MinArgs: 1, MaxArgs: -1, Impl: fnAnd})
	register(&FunctionSpec{Name: "OR", MinArgs: 1, MaxArgs: -1, Impl: fnOr})
	register(&FunctionSpec{Name: "XOR", MinArgs: 1, MaxArgs: -1, Impl: fnXor})
	register(&FunctionSpec{Name: "NOT", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgScalar}, Impl: fnNot})
	register(&FunctionSpec{Name: "SWITCH", MinArgs: 3, MaxArgs: -1, Impl: fnSwitch})
	register(&FunctionSpec{Name: "TRUE", MinArgs: 0, MaxArgs: 0, Impl: func(any, Args) value.Value { return true }})
	register(&FunctionSpec{Name: "FALSE", MinArgs: 0, MaxArgs: 0, Impl: func(any, Args) value.Value { return false }})
}

func fnIf(_ any, args Args) value.Value {
	cond := scalar(args[0])
	if e, ok := value.IsError(cond); ok {
		return e
	}
	if value.IsTruthy(cond) {
		return scalar(args[1])
	}
	if len(args) == 3 {
		return scalar(args[2])
	}
	return false
}

func fnIfs(_ any, args Args) value.Value {
	if len(args)%2 != 0 {
		return value.NewError(value.ErrNA, "")
	}
	for i := 0; i+1 < len(args); i += 2 {
		cond := scalar(args[i])
		if e, ok := value.IsError(cond); ok {
			return e
		}
		if value.IsTruthy(cond) {
			return scalar(args[i+1])
		}
	}
	return value.NewError(value.ErrNA, "")
}

func fnIfError(_ any, args Args) value.Value {
	v := scalar(args[0])
	if _, ok := value.IsError(v); ok {
		return scalar(args[1])
	}
	return v
}

func fnIfNA(_ any, args Args) value.Value {
	v := scalar(args[0])
	if e, ok := value.IsError(v); ok && e.Kind == value.ErrNA {
		return scalar(args[1])
	}
	return v
}

func fnAnd(_ any, args Args) value.Value {
	if e := checkErrors(args); e != nil {
		return e
	}
	result := true
	for _, a := range args {
		forEachValue(a, func(v value.Value) bool {
			if value.IsBlank(v) {
				return true
			}
			if !value.IsTruthy(v) {
				result = false
			}
			return true
		})
	}
	return result
}

func fnOr(_ any, args Args) value.Value {
	if e := checkErrors(args); e != nil {
		return e
	}
	result := false
	for _, a := range args {
		forEachValue(a, func(v value.Value) bool {
			if value.IsTruthy(v) {
				result = true
			}
			return true
		})
	}
	return result
}

func fnXor(_ any, args Args) value.Value {
	if e := checkErrors(args); e != nil {
		return e
	}
	count := 0
	for _, a := range args {
		forEachValue(a, func(v value.Value) bool {
			if value.IsTruthy(v) {
				count++
			}
			return true
		})
	}
	return count%2 == 1
}

func fnNot(_ any, args Args) value.Value {
	v := scalar(args[0])
	if e, ok := value.IsError(v); ok {
		return e
	}
	return !value.IsTruthy(v)
}

func fnSwitch(_ any, args Args) value.Value {
	target := scalar(args[0])
	rest := args[1:]
	for i := 0; i+1 < len(rest); i += 2 {
		if value.Equal(target, scalar(rest[i])) {
			return scalar(rest[i+1])
		}
	}
	if len(rest)%2 == 1 {
		return scalar(rest[len(rest)-1])
	}
	return value.NewError(value.ErrNA, "")
}
