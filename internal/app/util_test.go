package app

import "testing"

func TestRoundCost(t *testing.T) {
	tests := []struct {
		val  float64
		prec int
		want float64
	}{
		{1.2399, 2, 1.23},
		{0.019, 2, 0.01},
		{0.123456789, 8, 0.12345678},
		{10, 2, 10},
	}
	for _, tt := range tests {
		if got := RoundCost(tt.val, tt.prec); got != tt.want {
			t.Errorf("RoundCost(%v, %d) = %v, want %v", tt.val, tt.prec, got, tt.want)
		}
	}
}
