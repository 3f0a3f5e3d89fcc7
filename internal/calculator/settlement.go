package calculator

// Fee splits a stated payment amount into the fee charged and the net amount
// credited toward the obligation: fee = floor(amount * percent / 100).
func Fee(amount, percent int64) (fee, net int64) {
	fee = MulDiv(amount, percent, 100)
	return fee, amount - fee
}

// SettlementRatio returns floor(paid * 100 / owed).
func SettlementRatio(paid, owed int64) int64 {
	if owed <= 0 {
		return 0
	}
	return MulDiv(paid, 100, owed)
}

// Settled applies the monotone settlement rule: a bill that is settled stays
// settled, otherwise it settles once the paid ratio reaches the threshold.
func Settled(wasSettled bool, paid, owed, thresholdPercent int64) bool {
	if wasSettled {
		return true
	}
	return SettlementRatio(paid, owed) >= thresholdPercent
}
