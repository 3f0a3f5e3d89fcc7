package calculator

import (
	"math"
	"testing"
)

func TestFee(t *testing.T) {
	tests := []struct {
		name             string
		amount, percent  int64
		wantFee, wantNet int64
	}{
		{name: "ten percent", amount: 550, percent: 10, wantFee: 55, wantNet: 495},
		{name: "rounds fee down", amount: 99, percent: 10, wantFee: 9, wantNet: 90},
		{name: "no fee", amount: 500, percent: 0, wantFee: 0, wantNet: 500},
		{name: "full fee", amount: 500, percent: 100, wantFee: 500, wantNet: 0},
		{name: "largest amount", amount: math.MaxInt64, percent: 1, wantFee: 92233720368547758, wantNet: 9131138316486228049},
		{name: "largest amount full fee", amount: math.MaxInt64, percent: 100, wantFee: math.MaxInt64, wantNet: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, net := Fee(tt.amount, tt.percent)
			if fee != tt.wantFee || net != tt.wantNet {
				t.Errorf("Fee(%d, %d) = (%d, %d), want (%d, %d)",
					tt.amount, tt.percent, fee, net, tt.wantFee, tt.wantNet)
			}
		})
	}
}

func TestSettled(t *testing.T) {
	tests := []struct {
		name       string
		was        bool
		paid, owed int64
		threshold  int64
		want       bool
	}{
		{name: "below threshold", paid: 810, owed: 1000, threshold: 95, want: false},
		{name: "reaches threshold", paid: 990, owed: 1000, threshold: 95, want: true},
		{name: "ratio floors", paid: 949, owed: 1000, threshold: 95, want: false},
		{name: "stays settled after refund", was: true, paid: 100, owed: 1000, threshold: 95, want: true},
		{name: "zero threshold settles immediately", paid: 0, owed: 1000, threshold: 0, want: true},
		{name: "large owed fully paid", paid: math.MaxInt64, owed: math.MaxInt64, threshold: 100, want: true},
		{name: "large owed half paid", paid: math.MaxInt64 / 2, owed: math.MaxInt64, threshold: 50, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Settled(tt.was, tt.paid, tt.owed, tt.threshold); got != tt.want {
				t.Errorf("Settled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSettlementRatio(t *testing.T) {
	if got := SettlementRatio(990, 1000); got != 99 {
		t.Errorf("SettlementRatio(990, 1000) = %d, want 99", got)
	}
	if got := SettlementRatio(1_000_000_000_000_000_000, 1_000_000_000_000_000_001); got != 99 {
		t.Errorf("SettlementRatio near int64 max = %d, want 99", got)
	}
	if got := SettlementRatio(10, 0); got != 0 {
		t.Errorf("SettlementRatio(10, 0) = %d, want 0", got)
	}
}
