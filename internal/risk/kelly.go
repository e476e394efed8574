package risk

// KellySize computes an advisory position size from the classic Kelly
// criterion f* = (p*b - q) / b, where b is the win/loss ratio and q = 1-p.
// The raw fraction is scaled by a conservatism factor (quarter-Kelly by
// convention) and clamped to zero when the edge is negative. Returns the
// suggested size in bankroll currency. This feeds the gate's requested
// size; it never bypasses the gate.
func KellySize(winProb, winAmount, lossAmount, bankroll, factor float64) float64 {
	if winAmount <= 0 || lossAmount <= 0 || bankroll <= 0 || factor <= 0 {
		return 0
	}
	if winProb <= 0 || winProb >= 1 {
		return 0
	}

	b := winAmount / lossAmount
	q := 1 - winProb
	f := (winProb*b - q) / b
	if f < 0 {
		f = 0
	}
	return f * factor * bankroll
}
