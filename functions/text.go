package functions

import (
	"strconv"
	"strings"

	"github.com/sparrowsheet/calcengine/value"
)

func init() {
	register(&FunctionSpec{Name: "CONCATENATE", MinArgs: 1, MaxArgs: -1, ArgKinds: []ArgKind{ArgRange}, Impl: fnConcatenate})
	register(&FunctionSpec{Name: "CONCAT", MinArgs: 1, MaxArgs: -1, ArgKinds: []ArgKind{ArgRange}, Impl: fnConcatenate})
	register(&FunctionSpec{Name: "LEN", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgScalar}, Impl: fnLen})
	register(&FunctionSpec{Name: "UPPER", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgScalar}, Impl: textFn(strings.ToUpper)})
	register(&FunctionSpec{Name: "LOWER", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgScalar}, Impl: textFn(strings.ToLower)})
	register(&FunctionSpec{Name: "PROPER", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgScalar}, Impl: textFn(properCase)})
	register(&FunctionSpec{Name: "TRIM", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgScalar}, Impl: textFn(trimCollapse)})
	register(&FunctionSpec{Name: "LEFT", MinArgs: 1, MaxArgs: 2, ArgKinds: []ArgKind{ArgScalar, ArgScalar}, Impl: fnLeft})
	register(&FunctionSpec{Name: "RIGHT", MinArgs: 1, MaxArgs: 2, ArgKinds: []ArgKind{ArgScalar, ArgScalar}, Impl: fnRight})
	register(&FunctionSpec{Name: "MID", MinArgs: 3, MaxArgs: 3, ArgKinds: []ArgKind{ArgScalar, ArgScalar, ArgScalar}, Impl: fnMid})
	register(&FunctionSpec{Name: "FIND", MinArgs: 2, MaxArgs: 3, ArgKinds: []ArgKind{ArgScalar, ArgScalar, ArgScalar}, Impl: fnFind})
	register(&FunctionSpec{Name: "SEARCH", MinArgs: 2, MaxArgs: 3, ArgKinds: []ArgKind{ArgScalar, ArgScalar, ArgScalar}, Impl: fnSearch})
	register(&FunctionSpec{Name: "SUBSTITUTE", MinArgs: 3, MaxArgs: 4, ArgKinds: []ArgKind{ArgScalar, ArgScalar, ArgScalar, ArgScalar}, Impl: fnSubstitute})
	register(&FunctionSpec{Name: "REPLACE", MinArgs: 4, MaxArgs: 4, ArgKinds: []ArgKind{ArgScalar, ArgScalar, ArgScalar, ArgScalar}, Impl: fnReplace})
	register(&FunctionSpec{Name: "REPT", MinArgs: 2, MaxArgs: 2, ArgKinds: []ArgKind{ArgScalar, ArgScalar}, Impl: fnRept})
	register(&FunctionSpec{Name: "TEXT", MinArgs: 2, MaxArgs: 2, ArgKinds: []ArgKind{ArgScalar, ArgScalar}, Impl: fnText})
	register(&FunctionSpec{Name: "VALUE", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgScalar}, Impl: fnValue})
	register(&FunctionSpec{Name: "EXACT", MinArgs: 2, MaxArgs: 2, ArgKinds: []ArgKind{ArgScalar, ArgScalar}, Impl: fnExact})
	register(&FunctionSpec{Name: "TEXTJOIN", MinArgs: 3, MaxArgs: -1, ArgKinds: []ArgKind{ArgScalar, ArgScalar, ArgRange}, Impl: fnTextJoin})
}

func textFn(f func(string) string) FunctionImpl {
	return func(_ any, args Args) value.Value {
		v := scalar(args[0])
		if e, ok := value.IsError(v); ok {
			return e
		}
		return f(value.ToText(v))
	}
}

func properCase(s string) string {
	var b strings.Builder
	prevIsLetter := false
	for _, r := range s {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if isLetter && !prevIsLetter {
			b.WriteString(strings.ToUpper(string(r)))
		} else if isLetter {
			b.WriteString(strings.ToLower(string(r)))
		} else {
			b.WriteRune(r)
		}
		prevIsLetter = isLetter
	}
	return b.String()
}

func trimCollapse(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func fnConcatenate(_ any, args Args) value.Value {
	var b strings.Builder
	for _, a := range args {
		forEachValue(a, func(v value.Value) bool {
			if e, ok := value.IsError(v); ok {
				b.Reset()
				b.WriteString(e.Error())
				return false
			}
			b.WriteString(value.ToText(v))
			return true
		})
	}
	return b.String()
}

func fnLen(_ any, args Args) value.Value {
	v := scalar(args[0])
	if e, ok := value.IsError(v); ok {
		return e
	}
	return float64(len([]rune(value.ToText(v))))
}

func runesOf(v value.Value) []rune { return []rune(value.ToText(v)) }

func fnLeft(_ any, args Args) value.Value {
	r := runesOf(scalar(args[0]))
	n := 1
	if len(args) == 2 {
		f, ok := value.ToNumber(scalar(args[1]))
		if !ok || f < 0 {
			return value.NewError(value.ErrValue, "")
		}
		n = int(f)
	}
	if n > len(r) {
		n = len(r)
	}
	return string(r[:n])
}

func fnRight(_ any, args Args) value.Value {
	r := runesOf(scalar(args[0]))
	n := 1
	if len(args) == 2 {
		f, ok := value.ToNumber(scalar(args[1]))
		if !ok || f < 0 {
			return value.NewError(value.ErrValue, "")
		}
		n = int(f)
	}
	if n > len(r) {
		n = len(r)
	}
	return string(r[len(r)-n:])
}

func fnMid(_ any, args Args) value.Value {
	r := runesOf(scalar(args[0]))
	start, ok1 := value.ToNumber(scalar(args[1]))
	length, ok2 := value.ToNumber(scalar(args[2]))
	if !ok1 || !ok2 || start < 1 || length < 0 {
		return value.NewError(value.ErrValue, "")
	}
	i := int(start) - 1
	if i >= len(r) {
		return ""
	}
	end := i + int(length)
	if end > len(r) {
		end = len(r)
	}
	return string(r[i:end])
}

// findFrom returns the 1-based rune position of the first occurrence of
// needle in haystack at or after the 1-based start position, or -1.
func findFrom(needle, haystack string, start int) int {
	hr := []rune(haystack)
	nr := []rune(needle)
	if start < 1 {
		start = 1
	}
	if start-1 > len(hr) {
		return -1
	}
	for i := start - 1; i+len(nr) <= len(hr); i++ {
		if string(hr[i:i+len(nr)]) == string(nr) {
			return i + 1
		}
	}
	if len(nr) == 0 {
		return start
	}
	return -1
}

func fnFind(_ any, args Args) value.Value {
	needle := value.ToText(scalar(args[0]))
	haystack := value.ToText(scalar(args[1]))
	start := 1
	if len(args) == 3 {
		n, ok := value.ToNumber(scalar(args[2]))
		if !ok || n < 1 {
			return value.NewError(value.ErrValue, "")
		}
		start = int(n)
	}
	idx := findFrom(needle, haystack, start)
	if idx < 0 {
		return value.NewError(value.ErrValue, "")
	}
	return float64(idx)
}

func fnSearch(_ any, args Args) value.Value {
	needle := strings.ToLower(value.ToText(scalar(args[0])))
	haystack := strings.ToLower(value.ToText(scalar(args[1])))
	start := 1
	if len(args) == 3 {
		n, ok := value.ToNumber(scalar(args[2]))
		if !ok || n < 1 {
			return value.NewError(value.ErrValue, "")
		}
		start = int(n)
	}
	idx := findFrom(needle, haystack, start)
	if idx < 0 {
		return value.NewError(value.ErrValue, "")
	}
	return float64(idx)
}

func fnSubstitute(_ any, args Args) value.Value {
	text := value.ToText(scalar(args[0]))
	old := value.ToText(scalar(args[1]))
	newS := value.ToText(scalar(args[2]))
	if len(args) == 3 {
		return strings.ReplaceAll(text, old, newS)
	}
	n, ok := value.ToNumber(scalar(args[3]))
	if !ok || n < 1 {
		return value.NewError(value.ErrValue, "")
	}
	count := int(n)
	occurrence := 0
	var b strings.Builder
	rest := text
	for {
		idx := strings.Index(rest, old)
		if idx < 0 || old == "" {
			b.WriteString(rest)
			break
		}
		occurrence++
		if occurrence == count {
			b.WriteString(rest[:idx])
			b.WriteString(newS)
			b.WriteString(rest[idx+len(old):])
			break
		}
		b.WriteString(rest[:idx+len(old)])
		rest = rest[idx+len(old):]
	}
	return b.String()
}

func fnReplace(_ any, args Args) value.Value {
	r := runesOf(scalar(args[0]))
	start, ok1 := value.ToNumber(scalar(args[1]))
	length, ok2 := value.ToNumber(scalar(args[2]))
	newText := value.ToText(scalar(args[3]))
	if !ok1 || !ok2 || start < 1 || length < 0 {
		return value.NewError(value.ErrValue, "")
	}
	i := int(start) - 1
	if i > len(r) {
		i = len(r)
	}
	end := i + int(length)
	if end > len(r) {
		end = len(r)
	}
	return string(r[:i]) + newText + string(r[end:])
}

func fnRept(_ any, args Args) value.Value {
	s := value.ToText(scalar(args[0]))
	n, ok := value.ToNumber(scalar(args[1]))
	if !ok || n < 0 {
		return value.NewError(value.ErrValue, "")
	}
	return strings.Repeat(s, int(n))
}

// fnText renders a number per a (small, grounded) subset of Excel number
// format codes: "0", "0.00", "0%", "#,##0", "#,##0.00". Unsupported
// format codes fall back to the plain decimal rendering rather than
// erroring, since TEXT() is meant to always succeed on a numeric input.
func fnText(_ any, args Args) value.Value {
	v := scalar(args[0])
	format := value.ToText(scalar(args[1]))
	n, ok := value.ToNumber(v)
	if !ok {
		return value.ToText(v)
	}
	percent := strings.Contains(format, "%")
	if percent {
		n *= 100
	}
	decimals := strings.Count(format, "0")
	if idx := strings.IndexByte(format, '.'); idx >= 0 {
		decimals = len(format) - idx - 1
		if percent {
			decimals--
		}
	} else {
		decimals = 0
	}
	out := strconv.FormatFloat(n, 'f', decimals, 64)
	if strings.Contains(format, ",") {
		out = groupThousands(out)
	}
	if percent {
		out += "%"
	}
	return out
}

func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart = s[:i]
		frac = s[i:]
	}
	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)
	out := strings.Join(groups, ",") + frac
	if neg {
		out = "-" + out
	}
	return out
}

func fnValue(_ any, args Args) value.Value {
	v := scalar(args[0])
	n, ok := value.ToNumber(v)
	if !ok {
		return value.NewError(value.ErrValue, "")
	}
	return n
}

func fnExact(_ any, args Args) value.Value {
	return value.ToText(scalar(args[0])) == value.ToText(scalar(args[1]))
}

func fnTextJoin(_ any, args Args) value.Value {
	delim := value.ToText(scalar(args[0]))
	skipEmpty := value.IsTruthy(scalar(args[1]))
	var parts []string
	for _, a := range args[2:] {
		forEachValue(a, func(v value.Value) bool {
			s := value.ToText(v)
			if skipEmpty && s == "" {
				return true
			}
			parts = append(parts, s)
			return true
		})
	}
	return strings.Join(parts, delim)
}
