package bme280

import (
	"math/big"
	"testing"
)

func TestI22F10(t *testing.T) {
	data := []struct {
		integer int32
		frac    uint32
		bits    uint32
		s       string
	}{
		{0, 0, 0, "0.000"},
		{21, 512, 21<<10 | 512, "21.500"},
		{100, 0, 102400, "100.000"},
		{3, 0x7FF, 3<<10 | 0x3FF, "3.999"},
		{-1, 0, 0xFFFFFC00, "-1.000"},
	}
	for _, line := range data {
		f := NewI22F10(line.integer, line.frac)
		if f.Bits() != line.bits {
			t.Errorf("NewI22F10(%d, %d).Bits() = %#x, want %#x", line.integer, line.frac, f.Bits(), line.bits)
		}
		if f.Int() != line.integer {
			t.Errorf("NewI22F10(%d, %d).Int() = %d", line.integer, line.frac, f.Int())
		}
		if f.Frac() != line.frac&0x3FF {
			t.Errorf("NewI22F10(%d, %d).Frac() = %d", line.integer, line.frac, f.Frac())
		}
		if s := f.String(); s != line.s {
			t.Errorf("NewI22F10(%d, %d).String() = %q, want %q", line.integer, line.frac, s, line.s)
		}
	}
}

func TestI22F10Div(t *testing.T) {
	data := []struct {
		centi int32
		want  string
	}{
		{2150, "21.500"},
		{2151, "21.509"},
		{0, "0.000"},
		{-500, "-5.000"},
		{-1234, "-12.339"},
	}
	for _, line := range data {
		got := NewI22F10(line.centi, 0).Div(NewI22F10(100, 0))
		if s := got.String(); s != line.want {
			t.Errorf("%d/100 = %s, want %s", line.centi, s, line.want)
		}
	}
}

func TestI24F8(t *testing.T) {
	f := NewI24F8(101993, 0x1FF)
	if f.Int() != 101993 || f.Frac() != 0xFF {
		t.Fatalf("NewI24F8() = %d + %d/256", f.Int(), f.Frac())
	}
	if s := I24F8(26110518).String(); s != "101994.210" {
		t.Fatalf("String() = %q", s)
	}
}

// TestI24F8Div checks that a.Div(b) is within one unit in the last place of
// the exact quotient.
func TestI24F8Div(t *testing.T) {
	values := []I24F8{
		NewI24F8(1, 0), NewI24F8(2, 128), NewI24F8(3, 1), NewI24F8(100, 0),
		NewI24F8(101325, 77), NewI24F8(-7, 0), NewI24F8(-250, 200), NewI24F8(0, 1),
		NewI24F8(8388607, 255), NewI24F8(-8388608, 0),
	}
	ulp := big.NewRat(1, 256)
	for _, a := range values {
		for _, b := range values {
			exact := new(big.Rat).Quo(big.NewRat(int64(int32(a)), 256), big.NewRat(int64(int32(b)), 256))
			// Skip quotients that can't be represented.
			if exact.Cmp(big.NewRat(1<<23, 1)) >= 0 || exact.Cmp(big.NewRat(-1<<23, 1)) < 0 {
				continue
			}
			q := a.Div(b)
			got := big.NewRat(int64(int32(q)), 256)
			diff := new(big.Rat).Sub(exact, got)
			if diff.Abs(diff).Cmp(ulp) >= 0 {
				t.Errorf("%s / %s = %s, want %s", a, b, q, exact.FloatString(4))
			}
		}
	}
}
