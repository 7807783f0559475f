package value

import (
	"math"
	"testing"
)

func TestToNumber(t *testing.T) {
	cases := []struct {
		in   Value
		want float64
		ok   bool
	}{
		{42.5, 42.5, true},
		{true, 1, true},
		{false, 0, true},
		{Blank{}, 0, true},
		{"3.5", 3.5, true},
		{"  -12  ", -12, true},
		{"50%", 0.5, true},
		{"1.5e2", 150, true},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := ToNumber(c.in)
		if ok != c.ok {
			t.Fatalf("ToNumber(%#v) ok=%v, want %v", c.in, ok, c.ok)
		}
		if ok && got != c.want {
			t.Fatalf("ToNumber(%#v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestToText(t *testing.T) {
	cases := []struct {
		in   Value
		want string
	}{
		{"hi", "hi"},
		{42.0, "42"},
		{3.14, "3.14"},
		{true, "TRUE"},
		{false, "FALSE"},
		{Blank{}, ""},
		{NewError(ErrDiv0, ""), "#DIV/0!"},
	}
	for _, c := range cases {
		if got := ToText(c.in); got != c.want {
			t.Fatalf("ToText(%#v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestIsTruthy(t *testing.T) {
	if !IsTruthy(true) || IsTruthy(false) {
		t.Fatal("bool truthiness wrong")
	}
	if IsTruthy(0.0) || !IsTruthy(1.0) {
		t.Fatal("number truthiness wrong")
	}
	if IsTruthy(Blank{}) {
		t.Fatal("blank should be falsy")
	}
	if !IsTruthy("TRUE") || IsTruthy("FALSE") {
		t.Fatal("text TRUE/FALSE truthiness wrong")
	}
}

func TestCompareCrossType(t *testing.T) {
	if Compare(1.0, "a") >= 0 {
		t.Fatal("numbers must sort below text")
	}
	if Compare("a", true) >= 0 {
		t.Fatal("text must sort below bool")
	}
	if Compare("ABC", "abc") != 0 {
		t.Fatal("text comparison must be case-insensitive")
	}
	if Compare(Blank{}, 0.0) != 0 {
		t.Fatal("blank must compare equal to numeric zero")
	}
	if Compare(Blank{}, -1.0) <= 0 {
		t.Fatal("blank (0) must be greater than a negative number")
	}
}

func TestKahanSum(t *testing.T) {
	xs := make([]float64, 0, 1000)
	for i := 0; i < 1000; i++ {
		xs = append(xs, 0.1)
	}
	got := KahanSum(xs)
	if math.Abs(got-100) > 1e-9 {
		t.Fatalf("KahanSum = %v, want ~100", got)
	}
}

func TestErrorKindRoundTrip(t *testing.T) {
	for k, want := range errorStrings {
		got, ok := ErrorKindFromString(want)
		if !ok || got != k {
			t.Fatalf("ErrorKindFromString(%q) = %v,%v want %v,true", want, got, ok, k)
		}
	}
}
