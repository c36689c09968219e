/*
store.go - Persistence collaborator interfaces

PURPOSE:
  Defines the contract between the engine and whatever persists pools. The
  engine itself never does I/O; services load a snapshot, compute, and ask
  the store to record the result. Implementations exist for SQLite
  (production) and memory (tests/dev).

NORMALIZATION:
  Whatever shape a backend returns, the store adapts it into the one
  canonical Pool structure before it reaches the engine. Shape juggling is
  a store concern, never an engine concern.

APPEND-ONLY CONTRACT:
  Entries are written once. The only permitted in-place change is the
  status of a non-terminal entry, and UpdateEntryStatus is compare-and-set
  on the expected current status so a lost race surfaces as
  ErrInvalidEntryState instead of silently re-deciding a terminal entry.

ATOMICITY:
  AppendEntry must be atomic at the storage layer. Operations that touch
  several rows (exit payout + participant status) run inside WithTx; if the
  function returns an error nothing is committed and the engine never
  assumes a partial append succeeded.

SEE ALSO:
  - store/memory.go: In-memory implementation
  - ../store/sqlite/sqlite.go: SQLite implementation
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// POOL STORE
// =============================================================================

// PoolStore loads and persists pools, participants, and entries.
type PoolStore interface {
	// CreatePool persists a new pool with its rules and participants.
	CreatePool(ctx context.Context, pool *Pool) error

	// LoadPool returns the canonical pool snapshot: rules, participants,
	// and the posted-entry log in insertion order.
	LoadPool(ctx context.Context, id PoolID) (*Pool, error)

	// ListPools returns all pools (without entry logs; summaries only
	// need participants and rules, callers LoadPool for balances).
	ListPools(ctx context.Context) ([]*Pool, error)

	// UpdateRules replaces the pool's rules.
	UpdateRules(ctx context.Context, id PoolID, rules Rules) error

	// UpsertParticipant inserts or updates one participant row.
	UpsertParticipant(ctx context.Context, poolID PoolID, p Participant) error

	// AppendEntry persists one entry (any status). Atomic; fails with
	// ErrDuplicateEntry if the ID exists.
	AppendEntry(ctx context.Context, e Entry) error

	// GetEntry returns one entry by ID.
	GetEntry(ctx context.Context, id EntryID) (Entry, error)

	// ListEntries returns every entry of the pool regardless of status,
	// for the audit view.
	ListEntries(ctx context.Context, poolID PoolID) ([]Entry, error)

	// UpdateEntryStatus transitions an entry from -> to. Compare-and-set:
	// fails with ErrInvalidEntryState when the stored status isn't `from`.
	UpdateEntryStatus(ctx context.Context, id EntryID, from, to EntryStatus) error

	// ListDuePending returns pending entries whose vote deadline is at or
	// before `now`, across all pools. Used by the deadline sweeper.
	ListDuePending(ctx context.Context, now time.Time) ([]Entry, error)
}

// =============================================================================
// VOTE STORE
// =============================================================================

// VoteStore persists votes with last-write-wins per (entry, participant).
type VoteStore interface {
	// SaveVote records a vote, replacing any earlier vote by the same
	// participant on the same entry.
	SaveVote(ctx context.Context, v Vote) error

	// ListVotes returns the effective (latest-per-participant) votes.
	ListVotes(ctx context.Context, entryID EntryID) ([]Vote, error)
}

// =============================================================================
// COMBINED / TRANSACTIONAL STORE
// =============================================================================

// Store is the full persistence surface the service layer depends on.
type Store interface {
	PoolStore
	VoteStore
}

// TxStore adds transactional execution. If fn returns an error, nothing it
// wrote is committed.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
