package normalize

import (
	"math"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input  string
		want   float64
		wantOK bool
	}{
		{"1.234,56", 1234.56, true},
		{"61.36", 61.36, true},
		{"-45,20€", -45.20, true},
		{"1,234.56", 1234.56, true},
		{"1,23", 1.23, true},
		{"1,234", 1234, true},
		{"€ 12,50", 12.50, true},
		{"$1,000,000.00", 1000000, true},
		{"(45.20)", -45.20, true},
		{"45,20-", -45.20, true},
		{"+300", 300, true},
		{"1.2.3.45", 123.45, true},
		{"", 0, false},
		{"abc", 0, false},
		{"-", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseAmount(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseAmount(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ParseAmount(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseAmount_NeverNaN(t *testing.T) {
	inputs := []string{"", "NaN", "..", ",,", "€€", "--5--"}
	for _, in := range inputs {
		got, _ := ParseAmount(in)
		if math.IsNaN(got) || math.IsInf(got, 0) {
			t.Errorf("ParseAmount(%q) = %v, want finite", in, got)
		}
	}
}

func TestLooksLikeAmount(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"61.36", true},
		{"-45,20€", true},
		{"description text", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := LooksLikeAmount(tt.input); got != tt.want {
			t.Errorf("LooksLikeAmount(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
