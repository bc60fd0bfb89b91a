package core

import (
	"math"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out float64
		ok  bool
	}{
		{"1", 1, true},
		{"0", 0, true},
		{"3,000,000", 3_000_000, true},
		{"¥12,345", 12345, true},
		{"￥500", 500, true},
		{"1_000.5", 1000.5, true},
		{"12345.678", 12345.68, true}, // half-up rounding
		{" 2.50 ", 2.5, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"1e6", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestParseRate(t *testing.T) {
	cases := []struct {
		in  string
		out float64
		ok  bool
	}{
		{"2.5", 2.5, true},
		{"14.5%", 14.5, true},
		{" 0 ", 0, true},
		{"%", 0, false},
		{"ten", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseRate(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestRoundAmount(t *testing.T) {
	if got := RoundAmount(10.005).String(); got != "10.01" {
		t.Errorf("RoundAmount(10.005) = %s, want 10.01", got)
	}
	if got := RoundAmount(math.Inf(1)); !got.IsZero() {
		t.Errorf("RoundAmount(+Inf) = %s, want 0", got)
	}
}
