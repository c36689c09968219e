/*
errors.go - Centralized error types for the settlement engine

PURPOSE:
  All engine error kinds in one place. Each is a distinguishable result the
  caller must branch on; the engine never retries internally and never turns
  a collaborator failure into something else.

ERROR CATEGORIES:
  1. Arithmetic errors - currency mismatches (programming/config errors)
  2. State machine errors - invalid entry transitions, closed voting
  3. Policy errors - exit forbidden, insufficient funds
  4. Lookup errors - missing pools, participants, entries

USAGE:
  Callers branch with errors.Is:

    if errors.Is(err, ledger.ErrVotingClosed) {
        // vote discarded, surface to user
    }

SEE ALSO:
  - money.go: CurrencyMismatchError producers
  - approval.go: voting state machine errors
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrCurrencyMismatch is returned by arithmetic between incompatible
	// currencies. Always a programming or configuration error.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrInvalidEntryState is returned when an append or transition violates
	// the entry state machine (e.g. appending a pending entry to the log).
	ErrInvalidEntryState = errors.New("invalid entry state")

	// ErrExitNotAllowed is returned when pool rules forbid leaving.
	ErrExitNotAllowed = errors.New("pool rules do not allow exit")

	// ErrExitNoticeRequired is returned when a participant tries to exit
	// before the configured notice period has elapsed.
	ErrExitNoticeRequired = errors.New("exit notice period has not elapsed")

	// ErrVotingClosed is returned for votes or tallies on an entry that has
	// reached a terminal state. The vote is discarded.
	ErrVotingClosed = errors.New("voting closed")

	// ErrInsufficientFunds is returned when posting a withdrawal would drive
	// the pool reserve negative. The entry stays pending.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrOverfunding is returned when a contribution would push the reserve
	// past the goal and the pool does not allow overfunding.
	ErrOverfunding = errors.New("contribution exceeds goal")

	// ErrDuplicateEntry is returned when appending an entry whose ID already
	// exists in the log. Expected behavior for retries.
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrPoolNotFound is returned when a referenced pool doesn't exist.
	ErrPoolNotFound = errors.New("pool not found")

	// ErrParticipantNotFound is returned when a referenced participant
	// doesn't exist in the pool.
	ErrParticipantNotFound = errors.New("participant not found")

	// ErrEntryNotFound is returned when a referenced entry doesn't exist.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrNotAdmin is returned when a non-admin participant attempts an
	// admin-only operation (e.g. changing pool rules).
	ErrNotAdmin = errors.New("operation requires pool admin")

	// ErrInvalidRules is returned when pool rules fail validation.
	ErrInvalidRules = errors.New("invalid pool rules")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// CurrencyMismatchError reports the two currencies that were mixed.
type CurrencyMismatchError struct {
	Left  Currency
	Right Currency
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("currency mismatch: %s vs %s", e.Left, e.Right)
}

func (e *CurrencyMismatchError) Unwrap() error { return ErrCurrencyMismatch }

// InvalidEntryStateError reports the entry and the state that made the
// operation illegal.
type InvalidEntryStateError struct {
	EntryID EntryID
	Status  EntryStatus
	Op      string // "append", "approve", "post", ...
}

func (e *InvalidEntryStateError) Error() string {
	return fmt.Sprintf("cannot %s entry %s in state %q", e.Op, e.EntryID, e.Status)
}

func (e *InvalidEntryStateError) Unwrap() error { return ErrInvalidEntryState }

// InsufficientFundsError provides details about a reserve shortage.
type InsufficientFundsError struct {
	PoolID    PoolID
	Available Money
	Requested Money
	Shortfall Money
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in pool %s: available %v, requested %v, shortfall %v",
		e.PoolID, e.Available, e.Requested, e.Shortfall)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input or
// a policy refusal, as opposed to an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrCurrencyMismatch) ||
		errors.Is(err, ErrInvalidEntryState) ||
		errors.Is(err, ErrExitNotAllowed) ||
		errors.Is(err, ErrExitNoticeRequired) ||
		errors.Is(err, ErrVotingClosed) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrOverfunding) ||
		errors.Is(err, ErrDuplicateEntry) ||
		errors.Is(err, ErrNotAdmin) ||
		errors.Is(err, ErrInvalidRules)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPoolNotFound) ||
		errors.Is(err, ErrParticipantNotFound) ||
		errors.Is(err, ErrEntryNotFound)
}
