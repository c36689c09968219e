/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements ledger.Store and ledger.TxStore using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  ledger.PoolStore: Pools, participants, entry log
  ledger.VoteStore: Votes (last write wins per entry+participant)
  ledger.TxStore:   Multi-row operations in one database transaction

APPEND-ONLY ENFORCEMENT:
  The entries table is append-only:
  - No DELETE statements on entries
  - The only UPDATE is the status column, compare-and-set on the expected
    current status, so a terminal entry is never re-decided
  - Corrections are compensating entries linked via reference_id

KEY TABLES:
  pools:        Pool header, goal, and rules columns
  participants: Membership rows (invited/active/exited/removed)
  entries:      Immutable ledger of all money movement
  votes:        One row per (entry, participant); upsert replaces the vote

INDEXES:
  - idx_entries_pool_status: Posted-log loads and audit views (hot path)
  - idx_entries_due: Deadline sweeper scan over pending entries
  - idx_votes_entry: Tally loads

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/lavaca.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := vaca.NewPoolService(store, ...)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lavaca/ledger-engine/ledger"
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Pools (header + rules columns)
	CREATE TABLE IF NOT EXISTS pools (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		goal_amount INTEGER NOT NULL,
		currency TEXT NOT NULL,
		deadline TEXT NOT NULL,
		color TEXT,
		exit_policy TEXT NOT NULL,
		exit_penalty_pct INTEGER NOT NULL,
		exit_notice_days INTEGER NOT NULL,
		withdrawal_approval_pct INTEGER NOT NULL,
		major_changes_approval_pct INTEGER NOT NULL,
		veto_contribution_pct INTEGER NOT NULL,
		allow_overfunding BOOLEAN NOT NULL,
		refund_on_failure BOOLEAN NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Participants
	CREATE TABLE IF NOT EXISTS participants (
		id TEXT NOT NULL,
		pool_id TEXT NOT NULL,
		user_id TEXT,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		status TEXT NOT NULL,
		admin BOOLEAN NOT NULL DEFAULT FALSE,
		joined_at TEXT NOT NULL,
		exit_requested_at TEXT,
		PRIMARY KEY (pool_id, id),
		FOREIGN KEY (pool_id) REFERENCES pools(id)
	);

	CREATE INDEX IF NOT EXISTS idx_participants_pool
		ON participants(pool_id);

	-- Entries (append-only ledger)
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		pool_id TEXT NOT NULL,
		participant_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount INTEGER NOT NULL,
		currency TEXT NOT NULL,
		description TEXT,
		category TEXT,
		status TEXT NOT NULL,
		vote_deadline TEXT,
		reference_id TEXT,
		created_at TEXT NOT NULL,
		FOREIGN KEY (pool_id) REFERENCES pools(id)
	);

	-- Posted-log loads and audit views (hot path)
	CREATE INDEX IF NOT EXISTS idx_entries_pool_status
		ON entries(pool_id, status, created_at);

	-- Deadline sweeper scan
	CREATE INDEX IF NOT EXISTS idx_entries_due
		ON entries(vote_deadline) WHERE status = 'pending';

	-- Compensating-entry lookups
	CREATE INDEX IF NOT EXISTS idx_entries_reference
		ON entries(reference_id) WHERE reference_id IS NOT NULL;

	-- Votes (last write wins per entry+participant)
	CREATE TABLE IF NOT EXISTS votes (
		id TEXT NOT NULL,
		entry_id TEXT NOT NULL,
		participant_id TEXT NOT NULL,
		choice TEXT NOT NULL,
		reason TEXT,
		cast_at TEXT NOT NULL,
		UNIQUE(entry_id, participant_id),
		FOREIGN KEY (entry_id) REFERENCES entries(id)
	);

	CREATE INDEX IF NOT EXISTS idx_votes_entry
		ON votes(entry_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const entryColumns = `id, pool_id, participant_id, kind, amount, currency,
       description, category, status, vote_deadline, reference_id, created_at`

const poolColumns = `id, name, goal_amount, currency, deadline, color,
       exit_policy, exit_penalty_pct, exit_notice_days,
       withdrawal_approval_pct, major_changes_approval_pct, veto_contribution_pct,
       allow_overfunding, refund_on_failure, created_at`

// =============================================================================
// POOL STORE (ledger.PoolStore interface)
// =============================================================================

// CreatePool persists a new pool with its rules and participants.
func (s *Store) CreatePool(ctx context.Context, pool *ledger.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := createPool(ctx, sqlTx, pool); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func createPool(ctx context.Context, db queryer, pool *ledger.Pool) error {
	query := `
		INSERT INTO pools (` + poolColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	r := pool.Rules
	_, err := db.ExecContext(ctx, query,
		pool.ID,
		pool.Name,
		pool.GoalAmount.Amount,
		pool.GoalAmount.Currency,
		pool.Deadline.UTC().Format(time.RFC3339),
		pool.Color,
		r.ExitPolicy,
		r.ExitPenaltyPercentage,
		r.ExitNoticeDays,
		r.WithdrawalApprovalPercentage,
		r.MajorChangesApprovalPercentage,
		r.VetoContributionPercentage,
		r.AllowOverfunding,
		r.RefundOnFailure,
		pool.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("pool %s: %w", pool.ID, ledger.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert pool: %w", err)
	}

	for _, p := range pool.Participants {
		if err := upsertParticipant(ctx, db, pool.ID, p); err != nil {
			return err
		}
	}
	return nil
}

// LoadPool returns the canonical pool snapshot with the posted-entry log.
func (s *Store) LoadPool(ctx context.Context, id ledger.PoolID) (*ledger.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return loadPool(ctx, s.db, id)
}

func loadPool(ctx context.Context, db queryer, id ledger.PoolID) (*ledger.Pool, error) {
	pool, err := scanPoolHeader(db.QueryRowContext(ctx,
		"SELECT "+poolColumns+" FROM pools WHERE id = ?", id))
	if err != nil {
		return nil, err
	}

	pool.Participants, err = queryParticipants(ctx, db, id)
	if err != nil {
		return nil, err
	}

	// Posted entries only; pending and rejected stay in the audit view.
	pool.Entries, err = queryEntries(ctx, db, `
		SELECT `+entryColumns+`
		FROM entries
		WHERE pool_id = ? AND status = 'posted'
		ORDER BY created_at ASC, id ASC
	`, id)
	if err != nil {
		return nil, err
	}

	return pool, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoolHeader(row rowScanner) (*ledger.Pool, error) {
	var (
		pool       ledger.Pool
		goalAmount int64
		currency   string
		deadline   string
		color      sql.NullString
		createdAt  string
	)

	err := row.Scan(
		&pool.ID, &pool.Name, &goalAmount, &currency, &deadline, &color,
		&pool.Rules.ExitPolicy,
		&pool.Rules.ExitPenaltyPercentage,
		&pool.Rules.ExitNoticeDays,
		&pool.Rules.WithdrawalApprovalPercentage,
		&pool.Rules.MajorChangesApprovalPercentage,
		&pool.Rules.VetoContributionPercentage,
		&pool.Rules.AllowOverfunding,
		&pool.Rules.RefundOnFailure,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrPoolNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan pool: %w", err)
	}

	pool.GoalAmount = ledger.Money{Amount: goalAmount, Currency: ledger.Currency(currency)}
	pool.Deadline, _ = time.Parse(time.RFC3339, deadline)
	pool.Color = color.String
	pool.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &pool, nil
}

// ListPools returns all pools without their entry logs.
func (s *Store) ListPools(ctx context.Context) ([]*ledger.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+poolColumns+" FROM pools ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query pools: %w", err)
	}
	defer rows.Close()

	var pools []*ledger.Pool
	for rows.Next() {
		pool, err := scanPoolHeader(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, pool)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, pool := range pools {
		pool.Participants, err = queryParticipants(ctx, s.db, pool.ID)
		if err != nil {
			return nil, err
		}
	}
	return pools, nil
}

// UpdateRules replaces the pool's rules.
func (s *Store) UpdateRules(ctx context.Context, id ledger.PoolID, rules ledger.Rules) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return updateRules(ctx, s.db, id, rules)
}

func updateRules(ctx context.Context, db queryer, id ledger.PoolID, rules ledger.Rules) error {
	res, err := db.ExecContext(ctx, `
		UPDATE pools SET
			exit_policy = ?,
			exit_penalty_pct = ?,
			exit_notice_days = ?,
			withdrawal_approval_pct = ?,
			major_changes_approval_pct = ?,
			veto_contribution_pct = ?,
			allow_overfunding = ?,
			refund_on_failure = ?
		WHERE id = ?
	`,
		rules.ExitPolicy,
		rules.ExitPenaltyPercentage,
		rules.ExitNoticeDays,
		rules.WithdrawalApprovalPercentage,
		rules.MajorChangesApprovalPercentage,
		rules.VetoContributionPercentage,
		rules.AllowOverfunding,
		rules.RefundOnFailure,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update rules: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrPoolNotFound
	}
	return nil
}

// UpsertParticipant inserts or updates one participant row.
func (s *Store) UpsertParticipant(ctx context.Context, poolID ledger.PoolID, p ledger.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return upsertParticipant(ctx, s.db, poolID, p)
}

func upsertParticipant(ctx context.Context, db queryer, poolID ledger.PoolID, p ledger.Participant) error {
	query := `
		INSERT INTO participants
		(id, pool_id, user_id, name, email, status, admin, joined_at, exit_requested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pool_id, id) DO UPDATE SET
			user_id = excluded.user_id,
			name = excluded.name,
			email = excluded.email,
			status = excluded.status,
			admin = excluded.admin,
			joined_at = excluded.joined_at,
			exit_requested_at = excluded.exit_requested_at
	`

	var exitRequestedAt *string
	if p.ExitRequestedAt != nil {
		t := p.ExitRequestedAt.UTC().Format(time.RFC3339)
		exitRequestedAt = &t
	}

	_, err := db.ExecContext(ctx, query,
		p.ID, poolID, p.UserID, p.Name, p.Email, p.Status, p.Admin,
		p.JoinedAt.UTC().Format(time.RFC3339),
		exitRequestedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert participant: %w", err)
	}
	return nil
}

func queryParticipants(ctx context.Context, db queryer, poolID ledger.PoolID) ([]ledger.Participant, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, name, email, status, admin, joined_at, exit_requested_at
		FROM participants
		WHERE pool_id = ?
		ORDER BY joined_at ASC, id ASC
	`, poolID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	var participants []ledger.Participant
	for rows.Next() {
		var (
			p               ledger.Participant
			userID          sql.NullString
			joinedAt        string
			exitRequestedAt sql.NullString
		)
		if err := rows.Scan(&p.ID, &userID, &p.Name, &p.Email, &p.Status, &p.Admin,
			&joinedAt, &exitRequestedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		if userID.Valid {
			v := userID.String
			p.UserID = &v
		}
		p.JoinedAt, _ = time.Parse(time.RFC3339, joinedAt)
		if exitRequestedAt.Valid {
			t, _ := time.Parse(time.RFC3339, exitRequestedAt.String)
			p.ExitRequestedAt = &t
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// =============================================================================
// ENTRY LOG (append-only)
// =============================================================================

// AppendEntry persists one entry. Fails with ErrDuplicateEntry on ID reuse.
func (s *Store) AppendEntry(ctx context.Context, e ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return appendEntry(ctx, s.db, e)
}

func appendEntry(ctx context.Context, db queryer, e ledger.Entry) error {
	query := `
		INSERT INTO entries (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var voteDeadline *string
	if !e.VoteDeadline.IsZero() {
		t := e.VoteDeadline.UTC().Format(time.RFC3339)
		voteDeadline = &t
	}

	_, err := db.ExecContext(ctx, query,
		e.ID, e.PoolID, e.ParticipantID, e.Kind,
		e.Amount.Amount, e.Amount.Currency,
		e.Description, e.Category, e.Status,
		voteDeadline,
		nullString(string(e.ReferenceID)),
		e.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("entry %s: %w", e.ID, ledger.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to append entry: %w", err)
	}
	return nil
}

// GetEntry returns one entry by ID.
func (s *Store) GetEntry(ctx context.Context, id ledger.EntryID) (ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getEntry(ctx, s.db, id)
}

func getEntry(ctx context.Context, db queryer, id ledger.EntryID) (ledger.Entry, error) {
	entries, err := queryEntries(ctx, db,
		"SELECT "+entryColumns+" FROM entries WHERE id = ?", id)
	if err != nil {
		return ledger.Entry{}, err
	}
	if len(entries) == 0 {
		return ledger.Entry{}, ledger.ErrEntryNotFound
	}
	return entries[0], nil
}

// ListEntries returns every entry of the pool regardless of status.
func (s *Store) ListEntries(ctx context.Context, poolID ledger.PoolID) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listEntries(ctx, s.db, poolID)
}

func listEntries(ctx context.Context, db queryer, poolID ledger.PoolID) ([]ledger.Entry, error) {
	return queryEntries(ctx, db, `
		SELECT `+entryColumns+`
		FROM entries
		WHERE pool_id = ?
		ORDER BY created_at ASC, id ASC
	`, poolID)
}

// UpdateEntryStatus transitions an entry from -> to. Compare-and-set on the
// stored status; a stale expectation surfaces as ErrInvalidEntryState.
func (s *Store) UpdateEntryStatus(ctx context.Context, id ledger.EntryID, from, to ledger.EntryStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return updateEntryStatus(ctx, s.db, id, from, to)
}

func updateEntryStatus(ctx context.Context, db queryer, id ledger.EntryID, from, to ledger.EntryStatus) error {
	if !ledger.ValidTransition(from, to) {
		return &ledger.InvalidEntryStateError{EntryID: id, Status: from, Op: "transition to " + string(to)}
	}

	res, err := db.ExecContext(ctx,
		"UPDATE entries SET status = ? WHERE id = ? AND status = ?",
		to, id, from,
	)
	if err != nil {
		return fmt.Errorf("failed to update entry status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either missing or not in the expected status; tell them apart.
		var current ledger.EntryStatus
		err := db.QueryRowContext(ctx, "SELECT status FROM entries WHERE id = ?", id).Scan(&current)
		if err == sql.ErrNoRows {
			return ledger.ErrEntryNotFound
		}
		if err != nil {
			return err
		}
		return &ledger.InvalidEntryStateError{EntryID: id, Status: current, Op: "transition to " + string(to)}
	}
	return nil
}

// ListDuePending returns pending entries whose vote deadline has passed.
func (s *Store) ListDuePending(ctx context.Context, now time.Time) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listDuePending(ctx, s.db, now)
}

func listDuePending(ctx context.Context, db queryer, now time.Time) ([]ledger.Entry, error) {
	return queryEntries(ctx, db, `
		SELECT `+entryColumns+`
		FROM entries
		WHERE status = 'pending' AND vote_deadline IS NOT NULL AND vote_deadline <= ?
		ORDER BY vote_deadline ASC, id ASC
	`, now.UTC().Format(time.RFC3339))
}

func queryEntries(ctx context.Context, db queryer, query string, args ...any) ([]ledger.Entry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (ledger.Entry, error) {
	var (
		e            ledger.Entry
		amount       int64
		currency     string
		description  sql.NullString
		category     sql.NullString
		voteDeadline sql.NullString
		referenceID  sql.NullString
		createdAt    string
	)

	err := rows.Scan(
		&e.ID, &e.PoolID, &e.ParticipantID, &e.Kind,
		&amount, &currency, &description, &category, &e.Status,
		&voteDeadline, &referenceID, &createdAt,
	)
	if err != nil {
		return e, fmt.Errorf("failed to scan entry: %w", err)
	}

	e.Amount = ledger.Money{Amount: amount, Currency: ledger.Currency(currency)}
	e.Description = description.String
	e.Category = category.String
	e.ReferenceID = referenceID.String
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if voteDeadline.Valid {
		e.VoteDeadline, _ = time.Parse(time.RFC3339, voteDeadline.String)
	}
	return e, nil
}

// =============================================================================
// VOTE STORE (ledger.VoteStore interface)
// =============================================================================

// SaveVote records a vote, replacing any earlier vote by the same
// participant on the same entry.
func (s *Store) SaveVote(ctx context.Context, v ledger.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return saveVote(ctx, s.db, v)
}

func saveVote(ctx context.Context, db queryer, v ledger.Vote) error {
	query := `
		INSERT INTO votes (id, entry_id, participant_id, choice, reason, cast_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(entry_id, participant_id) DO UPDATE SET
			id = excluded.id,
			choice = excluded.choice,
			reason = excluded.reason,
			cast_at = excluded.cast_at
	`

	_, err := db.ExecContext(ctx, query,
		v.ID, v.EntryID, v.ParticipantID, v.Choice, v.Reason,
		v.CastAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save vote: %w", err)
	}
	return nil
}

// ListVotes returns the effective votes for an entry.
func (s *Store) ListVotes(ctx context.Context, entryID ledger.EntryID) ([]ledger.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listVotes(ctx, s.db, entryID)
}

func listVotes(ctx context.Context, db queryer, entryID ledger.EntryID) ([]ledger.Vote, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, entry_id, participant_id, choice, reason, cast_at
		FROM votes
		WHERE entry_id = ?
		ORDER BY cast_at ASC, id ASC
	`, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query votes: %w", err)
	}
	defer rows.Close()

	var votes []ledger.Vote
	for rows.Next() {
		var (
			v      ledger.Vote
			reason sql.NullString
			castAt string
		)
		if err := rows.Scan(&v.ID, &v.EntryID, &v.ParticipantID, &v.Choice, &reason, &castAt); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		v.Reason = reason.String
		v.CastAt, _ = time.Parse(time.RFC3339, castAt)
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	view := &txStore{tx: sqlTx}
	if err := fn(view); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes every Store call through one *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) CreatePool(ctx context.Context, pool *ledger.Pool) error {
	return createPool(ctx, ts.tx, pool)
}

func (ts *txStore) LoadPool(ctx context.Context, id ledger.PoolID) (*ledger.Pool, error) {
	return loadPool(ctx, ts.tx, id)
}

func (ts *txStore) ListPools(ctx context.Context) ([]*ledger.Pool, error) {
	return nil, fmt.Errorf("ListPools is not supported inside a transaction")
}

func (ts *txStore) UpdateRules(ctx context.Context, id ledger.PoolID, rules ledger.Rules) error {
	return updateRules(ctx, ts.tx, id, rules)
}

func (ts *txStore) UpsertParticipant(ctx context.Context, poolID ledger.PoolID, p ledger.Participant) error {
	return upsertParticipant(ctx, ts.tx, poolID, p)
}

func (ts *txStore) AppendEntry(ctx context.Context, e ledger.Entry) error {
	return appendEntry(ctx, ts.tx, e)
}

func (ts *txStore) GetEntry(ctx context.Context, id ledger.EntryID) (ledger.Entry, error) {
	return getEntry(ctx, ts.tx, id)
}

func (ts *txStore) ListEntries(ctx context.Context, poolID ledger.PoolID) ([]ledger.Entry, error) {
	return listEntries(ctx, ts.tx, poolID)
}

func (ts *txStore) UpdateEntryStatus(ctx context.Context, id ledger.EntryID, from, to ledger.EntryStatus) error {
	return updateEntryStatus(ctx, ts.tx, id, from, to)
}

func (ts *txStore) ListDuePending(ctx context.Context, now time.Time) ([]ledger.Entry, error) {
	return listDuePending(ctx, ts.tx, now)
}

func (ts *txStore) SaveVote(ctx context.Context, v ledger.Vote) error {
	return saveVote(ctx, ts.tx, v)
}

func (ts *txStore) ListVotes(ctx context.Context, entryID ledger.EntryID) ([]ledger.Vote, error) {
	return listVotes(ctx, ts.tx, entryID)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"votes", "entries", "participants", "pools"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
