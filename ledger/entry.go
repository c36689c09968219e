/*
entry.go - Immutable ledger entries

PURPOSE:
  An Entry is one fund movement: a contribution, an expense, a withdrawal,
  a penalty, or a refund. Entries are facts. Once posted they are never
  mutated or deleted; corrections append a compensating entry.

SIGN CONVENTION (relative to the pool reserve):
  contribution  >= 0   money into the reserve
  penalty       >= 0   forfeited amount retained by the reserve
  refund        >= 0   compensating reversal of an expense
  expense       <= 0   money out of the reserve
  withdrawal    <= 0   money out of the reserve (incl. exit payouts)

  With this convention the reserve is simply the sum of posted amounts,
  which is the conservation property tests assert.

STATUS LIFECYCLE:
  pending -> approved -> posted     (withdrawals/expenses, via ApprovalGate)
  pending -> rejected               (veto or deadline expiry)
  posted                            (contributions post directly)

  Only posted entries participate in balances. pending/rejected entries
  remain visible for audit but are excluded from every total.

SEE ALSO:
  - pool.go: Append-only log of posted entries
  - approval.go: The state machine that moves pending entries
*/
package ledger

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PoolID string
type EntryID string

// =============================================================================
// ENTRY KIND AND STATUS
// =============================================================================

type EntryKind string

const (
	KindContribution EntryKind = "contribution"
	KindExpense      EntryKind = "expense"
	KindWithdrawal   EntryKind = "withdrawal"
	KindPenalty      EntryKind = "penalty"
	KindRefund       EntryKind = "refund"
)

type EntryStatus string

const (
	EntryPending  EntryStatus = "pending"
	EntryApproved EntryStatus = "approved"
	EntryRejected EntryStatus = "rejected"
	EntryPosted   EntryStatus = "posted"
)

// IsTerminal reports whether no further transition is permitted.
func (s EntryStatus) IsTerminal() bool {
	return s == EntryPosted || s == EntryRejected
}

// ValidTransition reports whether from -> to is a legal status change.
// pending -> {approved, rejected}; approved -> posted. Nothing leaves a
// terminal state.
func ValidTransition(from, to EntryStatus) bool {
	switch from {
	case EntryPending:
		return to == EntryApproved || to == EntryRejected
	case EntryApproved:
		return to == EntryPosted
	default:
		return false
	}
}

// =============================================================================
// ENTRY - One immutable fund movement
// =============================================================================

type Entry struct {
	ID            EntryID
	PoolID        PoolID
	ParticipantID ParticipantID
	Kind          EntryKind
	Amount        Money // signed, see package sign convention
	Description   string
	Category      string // for expenses ("food", "transport", ...)
	Status        EntryStatus
	CreatedAt     time.Time

	// Voting window for pending withdrawals/expenses. Zero for entries that
	// post directly (contributions).
	VoteDeadline time.Time

	// ReferenceID links compensating entries (refunds, exit payouts) to what
	// they correct or settle.
	ReferenceID string
}

// ValidateSign checks the amount sign against the entry kind.
func (e Entry) ValidateSign() error {
	switch e.Kind {
	case KindContribution, KindPenalty, KindRefund:
		if e.Amount.IsNegative() {
			return &InvalidEntryStateError{EntryID: e.ID, Status: e.Status, Op: "append negative " + string(e.Kind)}
		}
	case KindExpense, KindWithdrawal:
		if e.Amount.IsPositive() {
			return &InvalidEntryStateError{EntryID: e.ID, Status: e.Status, Op: "append positive " + string(e.Kind)}
		}
	default:
		return &InvalidEntryStateError{EntryID: e.ID, Status: e.Status, Op: "append unknown kind " + string(e.Kind)}
	}
	return nil
}
