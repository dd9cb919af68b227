package engine

// Every block of five trades a user opens settles as three wins followed
// by two losses, regardless of pair, direction or stake.
const (
	sequencePeriod = 5
	winsPerPeriod  = 3
)

// WinsAt reports whether the trade opened after priorOpenCount earlier
// trades is destined to win. It is a pure function of the counter: the
// decision carries no randomness, only the payout magnitude does.
func WinsAt(priorOpenCount int64) bool {
	if priorOpenCount < 0 {
		return false
	}
	return priorOpenCount%sequencePeriod < winsPerPeriod
}
