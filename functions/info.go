package functions

import "github.com/sparrowsheet/calcengine/value"

func init() {
	register(&FunctionSpec{Name: "ISBLANK", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgAny}, Impl: isFn(func(v value.Value) bool { return value.IsBlank(v) })})
	register(&FunctionSpec{Name: "ISNUMBER", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgAny}, Impl: isFn(func(v value.Value) bool {
		switch v.(type) {
		case float64, int, int64:
			return true
		}
		return false
	})})
	register(&FunctionSpec{Name: "ISTEXT", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgAny}, Impl: isFn(func(v value.Value) bool {
		_, ok := v.(string)
		return ok
	})})
	register(&FunctionSpec{Name: "ISLOGICAL", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgAny}, Impl: isFn(func(v value.Value) bool {
		_, ok := v.(bool)
		return ok
	})})
	register(&FunctionSpec{Name: "ISERROR", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgAny}, Impl: isFn(func(v value.Value) bool {
		_, ok := value.IsError(v)
		return ok
	})})
	register(&FunctionSpec{Name: "ISERR", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgAny}, Impl: isFn(func(v value.Value) bool {
		e, ok := value.IsError(v)
		return ok && e.Kind != value.ErrNA
	})})
	register(&FunctionSpec{Name: "ISNA", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgAny}, Impl: isFn(func(v value.Value) bool {
		e, ok := value.IsError(v)
		return ok && e.Kind == value.ErrNA
	})})
	register(&FunctionSpec{Name: "NA", MinArgs: 0, MaxArgs: 0, Impl: func(any, Args) value.Value { return value.NewError(value.ErrNA, "") }})
	register(&FunctionSpec{Name: "TYPE", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgAny}, Impl: fnType})
	register(&FunctionSpec{Name: "N", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgAny}, Impl: fnN})
}

func isFn(pred func(value.Value) bool) FunctionImpl {
	return func(_ any, args Args) value.Value {
		v := scalar(args[0])
		return pred(v)
	}
}

func fnType(_ any, args Args) value.Value {
	v := scalar(args[0])
	switch v.(type) {
	case float64, int, int64:
		return 1.0
	case string:
		return 2.0
	case bool:
		return 4.0
	case *value.Array:
		return 64.0
	default:
		if _, ok := value.IsError(v); ok {
			return 16.0
		}
		return 1.0
	}
}

func fnN(_ any, args Args) value.Value {
	v := scalar(args[0])
	if e, ok := value.IsError(v); ok {
		return e
	}
	switch t := v.(type) {
	case float64:
		return t
	case bool:
		if t {
			return 1.0
		}
		return 0.0
	default:
		return 0.0
	}
}
