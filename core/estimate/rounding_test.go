package estimate

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCeilToStep(t *testing.T) {
	step := decimal.NewFromInt(10000)

	tests := []struct {
		in   string
		want string
	}{
		{in: "0", want: "0"},
		{in: "1", want: "10000"},
		{in: "10000", want: "10000"},
		{in: "10000.01", want: "20000"},
		{in: "4613600", want: "4620000"},
		{in: "7285641.12", want: "7290000"},
		{in: "-1", want: "-10000"},
		{in: "-15000", want: "-20000"},
		{in: "-20000", want: "-20000"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := CeilToStep(d(tt.in), step)
			if !got.Equal(d(tt.want)) {
				t.Errorf("CeilToStep(%s) = %s, want %s", tt.in, got, tt.want)
			}
			if again := CeilToStep(got, step); !again.Equal(got) {
				t.Errorf("rounding is not idempotent: %s -> %s", got, again)
			}
		})
	}
}

func TestCeilToStepWithoutStep(t *testing.T) {
	x := d("1234.5")
	if got := CeilToStep(x, decimal.Zero); !got.Equal(x) {
		t.Errorf("zero step must leave the value unchanged, got %s", got)
	}
}

func TestCeilToStepFractionalStep(t *testing.T) {
	if got := CeilToStep(d("10.01"), d("0.5")); !got.Equal(d("10.5")) {
		t.Errorf("CeilToStep(10.01, 0.5) = %s, want 10.5", got)
	}
}
