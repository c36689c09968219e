/*
pool.go - The vaca aggregate: goal, participants, and the posted-entry log

PURPOSE:
  Pool owns the append-only log of posted entries and the participant set,
  and exposes the derived balances everything else is computed from.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: AppendEntry is the only mutation of the log. No update,
     no delete. Corrections append a compensating entry.
  2. POSTED-ONLY: The log holds posted entries exclusively. Appending a
     pending/approved/rejected entry fails with ErrInvalidEntryState.
  3. CONSERVATION: CurrentReserve always equals the sum of the posted
     entries' signed amounts. There is no cached balance to drift.

ORDERING:
  The log is totally ordered by insertion. Stores that rebuild a pool sort
  by CreatedAt, ties broken by ID, which reproduces insertion order for
  entries created through this engine.

CONCURRENCY:
  A Pool is a snapshot. The engine assumes single-writer-at-a-time per
  pool; serialization (a per-pool lock or a storage-level version check)
  belongs to the caller. Readers use Snapshot() for a deep copy.

SEE ALSO:
  - settlement.go: Pure computations over a pool snapshot
  - store.go: How collaborators load and persist pools
*/
package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// POOL - The vaca aggregate
// =============================================================================

type Pool struct {
	ID         PoolID
	Name       string
	GoalAmount Money
	Deadline   time.Time
	Color      string // UI hint carried through, never interpreted
	Rules      Rules
	CreatedAt  time.Time

	Participants []Participant

	// Append-only log of POSTED entries, in insertion order.
	Entries []Entry
}

// Currency returns the pool's currency, defined by its goal.
func (p *Pool) Currency() Currency { return p.GoalAmount.Currency }

// =============================================================================
// LOG MUTATION - AppendEntry is the only one
// =============================================================================

// AppendEntry appends a posted entry to the log. It rejects entries that
// are not posted, have the wrong currency, violate the sign convention, or
// reuse an existing ID (idempotent retry guard).
func (p *Pool) AppendEntry(e Entry) error {
	if e.Status != EntryPosted {
		return &InvalidEntryStateError{EntryID: e.ID, Status: e.Status, Op: "append"}
	}
	if e.Amount.Currency != p.Currency() {
		return &CurrencyMismatchError{Left: p.Currency(), Right: e.Amount.Currency}
	}
	if err := e.ValidateSign(); err != nil {
		return err
	}
	for i := range p.Entries {
		if p.Entries[i].ID == e.ID {
			return ErrDuplicateEntry
		}
	}
	p.Entries = append(p.Entries, e)
	return nil
}

// SortEntries restores insertion order for a log rebuilt from storage:
// CreatedAt ascending, ties broken by ID.
func (p *Pool) SortEntries() {
	sort.SliceStable(p.Entries, func(i, j int) bool {
		if !p.Entries[i].CreatedAt.Equal(p.Entries[j].CreatedAt) {
			return p.Entries[i].CreatedAt.Before(p.Entries[j].CreatedAt)
		}
		return p.Entries[i].ID < p.Entries[j].ID
	})
}

// =============================================================================
// DERIVED BALANCES
// =============================================================================

// CurrentReserve is the sum of all posted entries' signed amounts.
func (p *Pool) CurrentReserve() Money {
	reserve := NewMoney(0, p.Currency())
	for _, e := range p.Entries {
		reserve.Amount += e.Amount.Amount
	}
	return reserve
}

// ParticipantBalance is the net of a participant's own posted entries.
func (p *Pool) ParticipantBalance(id ParticipantID) Money {
	balance := NewMoney(0, p.Currency())
	for _, e := range p.Entries {
		if e.ParticipantID == id {
			balance.Amount += e.Amount.Amount
		}
	}
	return balance
}

// ContributionBalance is like ParticipantBalance but restricted to
// contribution entries. This is the basis for exit settlements and
// proportional shares.
func (p *Pool) ContributionBalance(id ParticipantID) Money {
	balance := NewMoney(0, p.Currency())
	for _, e := range p.Entries {
		if e.ParticipantID == id && e.Kind == KindContribution {
			balance.Amount += e.Amount.Amount
		}
	}
	return balance
}

// GoalProgress returns reserve/goal as a real ratio on [0, +inf). It is not
// capped at 1: overfunded pools report their true ratio and the caller
// decides how to display it. A negative reserve reports 0.
func (p *Pool) GoalProgress() decimal.Decimal {
	reserve := p.CurrentReserve()
	if reserve.IsNegative() {
		reserve = reserve.Zero()
	}
	return reserve.Ratio(p.GoalAmount)
}

// =============================================================================
// PARTICIPANT LOOKUPS
// =============================================================================

// Participant returns the participant with the given ID.
func (p *Pool) Participant(id ParticipantID) (Participant, error) {
	for _, m := range p.Participants {
		if m.ID == id {
			return m, nil
		}
	}
	return Participant{}, ErrParticipantNotFound
}

// Admin returns the pool owner.
func (p *Pool) Admin() (Participant, error) {
	for _, m := range p.Participants {
		if m.Admin {
			return m, nil
		}
	}
	return Participant{}, ErrParticipantNotFound
}

// ActiveParticipants returns active participants ordered by JoinedAt, ties
// broken by ID. This ordering is what makes remainder allocation and
// equal-split fallbacks deterministic.
func (p *Pool) ActiveParticipants() []Participant {
	var active []Participant
	for _, m := range p.Participants {
		if m.IsActive() {
			active = append(active, m)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if !active[i].JoinedAt.Equal(active[j].JoinedAt) {
			return active[i].JoinedAt.Before(active[j].JoinedAt)
		}
		return active[i].ID < active[j].ID
	})
	return active
}

// =============================================================================
// SNAPSHOT - Deep copy for read consistency
// =============================================================================

// Snapshot returns a deep copy. Computations over a snapshot are unaffected
// by later appends to the original.
func (p *Pool) Snapshot() *Pool {
	cp := *p
	cp.Participants = make([]Participant, len(p.Participants))
	copy(cp.Participants, p.Participants)
	cp.Entries = make([]Entry, len(p.Entries))
	copy(cp.Entries, p.Entries)
	return &cp
}
