package functions

import (
	"time"

	"github.com/sparrowsheet/calcengine/value"
)

// excelEpoch is the date serial 0 maps to. Counting plain days from
// Dec 30 1899 matches Excel's 1900 date system for every serial >= 61
// (Excel counts a fictitious Feb 29 1900 as serial 60); there is no
// special case for that day, so serials below 61 land one day earlier
// than in Excel (serial 1 is Dec 31 1899 here, Jan 1 1900 in Excel).
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

func serialToTime(serial float64) time.Time {
	days := int(serial)
	frac := serial - float64(days)
	t := excelEpoch.AddDate(0, 0, days)
	return t.Add(time.Duration(frac * float64(24*time.Hour)))
}

func timeToSerial(t time.Time) float64 {
	days := t.Sub(excelEpoch).Hours() / 24
	return days
}

func init() {
	register(&FunctionSpec{Name: "NOW", MinArgs: 0, MaxArgs: 0, Volatile: true, Impl: fnNow})
	register(&FunctionSpec{Name: "TODAY", MinArgs: 0, MaxArgs: 0, Volatile: true, Impl: fnToday})
	register(&FunctionSpec{Name: "DATE", MinArgs: 3, MaxArgs: 3, ArgKinds: []ArgKind{ArgScalar, ArgScalar, ArgScalar}, Impl: fnDate})
	register(&FunctionSpec{Name: "YEAR", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgScalar}, Impl: dateField(func(t time.Time) float64 { return float64(t.Year()) })})
	register(&FunctionSpec{Name: "MONTH", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgScalar}, Impl: dateField(func(t time.Time) float64 { return float64(t.Month()) })})
	register(&FunctionSpec{Name: "DAY", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgScalar}, Impl: dateField(func(t time.Time) float64 { return float64(t.Day()) })})
	register(&FunctionSpec{Name: "HOUR", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgScalar}, Impl: dateField(func(t time.Time) float64 { return float64(t.Hour()) })})
	register(&FunctionSpec{Name: "MINUTE", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgScalar}, Impl: dateField(func(t time.Time) float64 { return float64(t.Minute()) })})
	register(&FunctionSpec{Name: "SECOND", MinArgs: 1, MaxArgs: 1, ArgKinds: []ArgKind{ArgScalar}, Impl: dateField(func(t time.Time) float64 { return float64(t.Second()) })})
	register(&FunctionSpec{Name: "WEEKDAY", MinArgs: 1, MaxArgs: 2, ArgKinds: []ArgKind{ArgScalar, ArgScalar}, Impl: fnWeekday})
	register(&FunctionSpec{Name: "DAYS", MinArgs: 2, MaxArgs: 2, ArgKinds: []ArgKind{ArgScalar, ArgScalar}, Impl: fnDays})
	register(&FunctionSpec{Name: "EDATE", MinArgs: 2, MaxArgs: 2, ArgKinds: []ArgKind{ArgScalar, ArgScalar}, Impl: fnEDate})
	register(&FunctionSpec{Name: "EOMONTH", MinArgs: 2, MaxArgs: 2, ArgKinds: []ArgKind{ArgScalar, ArgScalar}, Impl: fnEOMonth})
}

// nowFunc is the clock NOW()/TODAY() fall back to when the ctx they are
// called with has no Now method; SetClock replaces it.
var nowFunc = func() time.Time { return time.Now().UTC() }

// SetClock replaces the fallback clock.
func SetClock(f func() time.Time) { nowFunc = f }

// currentTime reads ctx's clock when ctx provides one. The recalculator's
// context returns the timestamp frozen at the start of the pass, so
// NOW()/TODAY() are stable within a single recalc pass while still
// advancing between passes.
func currentTime(ctx any) time.Time {
	if c, ok := ctx.(interface{ Now() time.Time }); ok {
		return c.Now()
	}
	return nowFunc()
}

func fnNow(ctx any, _ Args) value.Value {
	return timeToSerial(currentTime(ctx))
}

func fnToday(ctx any, _ Args) value.Value {
	t := currentTime(ctx)
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return float64(int(timeToSerial(d)))
}

func fnDate(_ any, args Args) value.Value {
	y, ok1 := value.ToNumber(scalar(args[0]))
	m, ok2 := value.ToNumber(scalar(args[1]))
	d, ok3 := value.ToNumber(scalar(args[2]))
	if !ok1 || !ok2 || !ok3 {
		return value.NewError(value.ErrValue, "")
	}
	t := time.Date(int(y), time.Month(1), 1, 0, 0, 0, 0, time.UTC)
	t = t.AddDate(0, int(m)-1, int(d)-1)
	return float64(int(timeToSerial(t)))
}

func dateField(f func(time.Time) float64) FunctionImpl {
	return func(_ any, args Args) value.Value {
		n, ok := value.ToNumber(scalar(args[0]))
		if !ok {
			return value.NewError(value.ErrValue, "")
		}
		return f(serialToTime(n))
	}
}

func fnWeekday(_ any, args Args) value.Value {
	n, ok := value.ToNumber(scalar(args[0]))
	if !ok {
		return value.NewError(value.ErrValue, "")
	}
	mode := 1.0
	if len(args) == 2 {
		mode, _ = value.ToNumber(scalar(args[1]))
	}
	wd := int(serialToTime(n).Weekday()) // 0=Sunday
	switch int(mode) {
	case 1:
		return float64(wd + 1)
	case 2:
		return float64((wd+6)%7 + 1)
	case 3:
		return float64((wd + 6) % 7)
	default:
		return float64(wd + 1)
	}
}

func fnDays(_ any, args Args) value.Value {
	end, ok1 := value.ToNumber(scalar(args[0]))
	start, ok2 := value.ToNumber(scalar(args[1]))
	if !ok1 || !ok2 {
		return value.NewError(value.ErrValue, "")
	}
	return end - start
}

func fnEDate(_ any, args Args) value.Value {
	n, ok1 := value.ToNumber(scalar(args[0]))
	months, ok2 := value.ToNumber(scalar(args[1]))
	if !ok1 || !ok2 {
		return value.NewError(value.ErrValue, "")
	}
	t := serialToTime(n).AddDate(0, int(months), 0)
	return float64(int(timeToSerial(t)))
}

func fnEOMonth(_ any, args Args) value.Value {
	n, ok1 := value.ToNumber(scalar(args[0]))
	months, ok2 := value.ToNumber(scalar(args[1]))
	if !ok1 || !ok2 {
		return value.NewError(value.ErrValue, "")
	}
	t := serialToTime(n)
	firstOfTarget := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, int(months)+1, 0)
	lastDay := firstOfTarget.AddDate(0, 0, -1)
	return float64(int(timeToSerial(lastDay)))
}
