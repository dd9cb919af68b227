package engine

import "errors"

var (
	// ErrInvalidAmount means the stake was zero or negative. No state is
	// mutated.
	ErrInvalidAmount = errors.New("trade amount must be positive")

	// ErrInvalidDirection means the direction was neither "up" nor "down".
	ErrInvalidDirection = errors.New("invalid trade direction")

	// ErrInsufficientBalance means the stake exceeds the user's balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInstrumentNotFound means the pair is not a known, enabled
	// instrument.
	ErrInstrumentNotFound = errors.New("instrument not found")

	// ErrTradeNotFound means no open trade matched the id for the user.
	// A close attempt that loses the race against another close observes
	// this; callers treat it as a benign no-op.
	ErrTradeNotFound = errors.New("trade not found")

	// ErrSettlementInconsistent means the trade row was resolved but the
	// matching ledger credit failed. Settlement runs in one transaction,
	// so observing this error implies the whole settlement rolled back;
	// it is still surfaced distinctly so operators can tell it apart
	// from ordinary storage failures.
	ErrSettlementInconsistent = errors.New("settlement inconsistent")
)
