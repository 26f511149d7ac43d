package engine

import (
	"errors"

	"github.com/hibrida/pricing-engine/internal/pool"
)

// Operation errors. All are recoverable by the caller: the engine never
// terminates the process on bad input or wrong lifecycle phase.
var (
	// ErrAccountNotConnected is returned when an operation names an
	// account that has never connected.
	ErrAccountNotConnected = errors.New("engine: account not connected")

	// ErrAccountIDRequired is returned when an operation is missing the
	// account identifier.
	ErrAccountIDRequired = errors.New("engine: account id is required")

	// ErrInvalidStake is returned for a non-positive trade stake.
	ErrInvalidStake = errors.New("engine: stake must be positive")

	// ErrInvalidAmount is returned for a non-positive deposit amount.
	ErrInvalidAmount = errors.New("engine: amount must be positive")

	// ErrInvalidSide is returned when a trade side is neither YES nor NO.
	ErrInvalidSide = errors.New("engine: side must be YES or NO")

	// ErrInvalidOutcome is returned when a resolution outcome is neither
	// YES nor NO.
	ErrInvalidOutcome = errors.New("engine: outcome must be YES or NO")

	// ErrQuestionRequired is returned when creating a market without a
	// question.
	ErrQuestionRequired = errors.New("engine: market question is required")

	// ErrMarketNotFound is returned when a market id is unknown.
	ErrMarketNotFound = errors.New("engine: market not found")

	// ErrMarketClosed is returned when trading on a resolved market.
	ErrMarketClosed = errors.New("engine: market is not open for trading")

	// ErrMarketResolved is returned when resolving an already-resolved
	// market a second time.
	ErrMarketResolved = errors.New("engine: market already resolved")

	// ErrInsufficientBalance is returned when a stake or deposit exceeds
	// the account's spendable balance.
	ErrInsufficientBalance = errors.New("engine: insufficient balance")

	// ErrNoShares is returned when withdrawing with no LP shares held.
	ErrNoShares = errors.New("engine: no LP shares to withdraw")
)

// Kind classifies an error for transport mapping (HTTP status, RPC code).
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindState
	KindInsufficientFunds
)

// KindOf maps an engine error to its taxonomy kind.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrInvalidStake),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidSide),
		errors.Is(err, ErrInvalidOutcome),
		errors.Is(err, ErrQuestionRequired),
		errors.Is(err, ErrAccountIDRequired):
		return KindValidation
	case errors.Is(err, ErrAccountNotConnected),
		errors.Is(err, ErrMarketNotFound):
		return KindNotFound
	case errors.Is(err, ErrMarketClosed),
		errors.Is(err, ErrMarketResolved),
		errors.Is(err, ErrNoShares),
		errors.Is(err, pool.ErrEmpty):
		return KindState
	case errors.Is(err, ErrInsufficientBalance):
		return KindInsufficientFunds
	default:
		return KindInternal
	}
}
