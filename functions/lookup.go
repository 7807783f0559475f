package functions

import "github.com/sparrowsheet/calcengine/value"

func init() {
	register(&FunctionSpec{Name: "VLOOKUP", MinArgs: 3, MaxArgs: 4, ArgKinds: []ArgKind{ArgScalar, ArgRange, ArgScalar, ArgScalar}, Impl: fnVLookup})
	register(&FunctionSpec{Name: "HLOOKUP", MinArgs: 3, MaxArgs: 4, ArgKinds: []ArgKind{ArgScalar, ArgRange, ArgScalar, ArgScalar}, Impl: fnHLookup})
	register(&FunctionSpec{Name: "INDEX", MinArgs: 2, MaxArgs: 3, ArgKinds: []ArgKind{ArgRange, ArgScalar, ArgScalar}, Impl: fnIndex})
	register(&FunctionSpec{Name: "MATCH", MinArgs: 2, MaxArgs: 3, ArgKinds: []ArgKind{ArgScalar, ArgRange, ArgScalar}, Impl: fnMatch})
	register(&FunctionSpec{Name: "CHOOSE", MinArgs: 2, MaxArgs: -1, ArgKinds: []ArgKind{ArgScalar}, Impl: fnChoose})
}

// gridFrom materializes an *ArgRef into a row-major grid for the lookup
// functions, which need random access rather than streaming.
func gridFrom(a any) ([]value.Value, int, int) {
	switch t := a.(type) {
	case *ArgRef:
		cells := make([]value.Value, 0, t.Count)
		t.Cells(func(v value.Value) bool { cells = append(cells, v); return true })
		return cells, t.Rows, t.Cols
	case *value.Array:
		return t.Data, t.Rows, t.Cols
	default:
		return []value.Value{t.(value.Value)}, 1, 1
	}
}

func fnVLookup(_ any, args Args) value.Value {
	key := scalar(args[0])
	cells, rows, cols := gridFrom(args[1])
	colIdx, ok := value.ToNumber(scalar(args[2]))
	if !ok || int(colIdx) < 1 || int(colIdx) > cols {
		return value.NewError(value.ErrRef, "")
	}
	exact := len(args) == 4 && !value.IsTruthy(scalar(args[3]))
	if exact {
		for r := 0; r < rows; r++ {
			if value.Equal(cells[r*cols], key) {
				return cells[r*cols+int(colIdx)-1]
			}
		}
		return value.NewError(value.ErrNA, "")
	}
	best := -1
	for r := 0; r < rows; r++ {
		if value.Compare(cells[r*cols], key) <= 0 {
			best = r
		} else {
			break
		}
	}
	if best < 0 {
		return value.NewError(value.ErrNA, "")
	}
	return cells[best*cols+int(colIdx)-1]
}

func fnHLookup(_ any, args Args) value.Value {
	key := scalar(args[0])
	cells, rows, cols := gridFrom(args[1])
	rowIdx, ok := value.ToNumber(scalar(args[2]))
	if !ok || int(rowIdx) < 1 || int(rowIdx) > rows {
		return value.NewError(value.ErrRef, "")
	}
	exact := len(args) == 4 && !value.IsTruthy(scalar(args[3]))
	if exact {
		for c := 0; c < cols; c++ {
			if value.Equal(cells[c], key) {
				return cells[(int(rowIdx)-1)*cols+c]
			}
		}
		return value.NewError(value.ErrNA, "")
	}
	best := -1
	for c := 0; c < cols; c++ {
		if value.Compare(cells[c], key) <= 0 {
			best = c
		} else {
			break
		}
	}
	if best < 0 {
		return value.NewError(value.ErrNA, "")
	}
	return cells[(int(rowIdx)-1)*cols+best]
}

func fnIndex(_ any, args Args) value.Value {
	cells, rows, cols := gridFrom(args[0])
	r := 1.0
	c := 1.0
	if len(args) >= 2 {
		v, ok := value.ToNumber(scalar(args[1]))
		if !ok {
			return value.NewError(value.ErrValue, "")
		}
		r = v
	}
	if len(args) == 3 {
		v, ok := value.ToNumber(scalar(args[2]))
		if !ok {
			return value.NewError(value.ErrValue, "")
		}
		c = v
	}
	if rows == 1 && len(args) == 2 {
		// single-row range: a single INDEX argument indexes columns.
		c = r
		r = 1
	}
	ri, ci := int(r), int(c)
	if ri < 0 || ci < 0 || ri > rows || ci > cols {
		return value.NewError(value.ErrRef, "")
	}
	if ri == 0 || ci == 0 {
		return value.NewError(value.ErrValue, "")
	}
	return cells[(ri-1)*cols+(ci-1)]
}

func fnMatch(_ any, args Args) value.Value {
	key := scalar(args[0])
	cells, rows, cols := gridFrom(args[1])
	n := rows
	if cols > rows {
		n = cols
	}
	matchType := 1.0
	if len(args) == 3 {
		matchType, _ = value.ToNumber(scalar(args[2]))
	}
	switch int(matchType) {
	case 0:
		for i := 0; i < n; i++ {
			if value.Equal(cells[i], key) {
				return float64(i + 1)
			}
		}
		return value.NewError(value.ErrNA, "")
	case 1:
		best := -1
		for i := 0; i < n; i++ {
			if value.Compare(cells[i], key) <= 0 {
				best = i
			} else {
				break
			}
		}
		if best < 0 {
			return value.NewError(value.ErrNA, "")
		}
		return float64(best + 1)
	case -1:
		best := -1
		for i := 0; i < n; i++ {
			if value.Compare(cells[i], key) >= 0 {
				best = i
			} else {
				break
			}
		}
		if best < 0 {
			return value.NewError(value.ErrNA, "")
		}
		return float64(best + 1)
	}
	return value.NewError(value.ErrNA, "")
}

func fnChoose(_ any, args Args) value.Value {
	idx, ok := value.ToNumber(scalar(args[0]))
	if !ok || int(idx) < 1 || int(idx) >= len(args) {
		return value.NewError(value.ErrValue, "")
	}
	return scalar(args[int(idx)])
}
