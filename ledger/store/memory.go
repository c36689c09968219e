// Package store provides ledger.Store implementations.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/lavaca/ledger-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	pools   map[ledger.PoolID]*poolRecord
	entries map[ledger.EntryID]ledger.Entry
	votes   map[ledger.EntryID]map[ledger.ParticipantID]ledger.Vote
}

type poolRecord struct {
	pool    ledger.Pool // participants + rules; posted log rebuilt on load
	entries []ledger.EntryID
}

func NewMemory() *Memory {
	return &Memory{
		pools:   make(map[ledger.PoolID]*poolRecord),
		entries: make(map[ledger.EntryID]ledger.Entry),
		votes:   make(map[ledger.EntryID]map[ledger.ParticipantID]ledger.Vote),
	}
}

// Reset clears all data (for demo scenario loads).
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools = make(map[ledger.PoolID]*poolRecord)
	m.entries = make(map[ledger.EntryID]ledger.Entry)
	m.votes = make(map[ledger.EntryID]map[ledger.ParticipantID]ledger.Vote)
	return nil
}

func (m *Memory) CreatePool(_ context.Context, pool *ledger.Pool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createPoolLocked(pool)
}

func (m *Memory) createPoolLocked(pool *ledger.Pool) error {
	if _, ok := m.pools[pool.ID]; ok {
		return ledger.ErrDuplicateEntry
	}
	cp := pool.Snapshot()
	rec := &poolRecord{pool: *cp}
	rec.pool.Entries = nil
	for _, e := range cp.Entries {
		m.entries[e.ID] = e
		rec.entries = append(rec.entries, e.ID)
	}
	m.pools[pool.ID] = rec
	return nil
}

func (m *Memory) LoadPool(_ context.Context, id ledger.PoolID) (*ledger.Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadPoolLocked(id)
}

func (m *Memory) loadPoolLocked(id ledger.PoolID) (*ledger.Pool, error) {
	rec, ok := m.pools[id]
	if !ok {
		return nil, ledger.ErrPoolNotFound
	}
	pool := rec.pool.Snapshot()
	for _, entryID := range rec.entries {
		if e := m.entries[entryID]; e.Status == ledger.EntryPosted {
			pool.Entries = append(pool.Entries, e)
		}
	}
	pool.SortEntries()
	return pool, nil
}

func (m *Memory) ListPools(_ context.Context) ([]*ledger.Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pools := make([]*ledger.Pool, 0, len(m.pools))
	for id := range m.pools {
		pool, err := m.loadPoolLocked(id)
		if err != nil {
			return nil, err
		}
		pools = append(pools, pool)
	}
	return pools, nil
}

func (m *Memory) UpdateRules(_ context.Context, id ledger.PoolID, rules ledger.Rules) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.pools[id]
	if !ok {
		return ledger.ErrPoolNotFound
	}
	rec.pool.Rules = rules
	return nil
}

func (m *Memory) UpsertParticipant(_ context.Context, poolID ledger.PoolID, p ledger.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertParticipantLocked(poolID, p)
}

func (m *Memory) upsertParticipantLocked(poolID ledger.PoolID, p ledger.Participant) error {
	rec, ok := m.pools[poolID]
	if !ok {
		return ledger.ErrPoolNotFound
	}
	for i := range rec.pool.Participants {
		if rec.pool.Participants[i].ID == p.ID {
			rec.pool.Participants[i] = p
			return nil
		}
	}
	rec.pool.Participants = append(rec.pool.Participants, p)
	return nil
}

func (m *Memory) AppendEntry(_ context.Context, e ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendEntryLocked(e)
}

func (m *Memory) appendEntryLocked(e ledger.Entry) error {
	rec, ok := m.pools[e.PoolID]
	if !ok {
		return ledger.ErrPoolNotFound
	}
	if _, exists := m.entries[e.ID]; exists {
		return ledger.ErrDuplicateEntry
	}
	m.entries[e.ID] = e
	rec.entries = append(rec.entries, e.ID)
	return nil
}

func (m *Memory) GetEntry(_ context.Context, id ledger.EntryID) (ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		return ledger.Entry{}, ledger.ErrEntryNotFound
	}
	return e, nil
}

func (m *Memory) ListEntries(_ context.Context, poolID ledger.PoolID) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.pools[poolID]
	if !ok {
		return nil, ledger.ErrPoolNotFound
	}
	entries := make([]ledger.Entry, 0, len(rec.entries))
	for _, id := range rec.entries {
		entries = append(entries, m.entries[id])
	}
	return entries, nil
}

func (m *Memory) UpdateEntryStatus(_ context.Context, id ledger.EntryID, from, to ledger.EntryStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateEntryStatusLocked(id, from, to)
}

func (m *Memory) updateEntryStatusLocked(id ledger.EntryID, from, to ledger.EntryStatus) error {
	e, ok := m.entries[id]
	if !ok {
		return ledger.ErrEntryNotFound
	}
	if e.Status != from || !ledger.ValidTransition(from, to) {
		return &ledger.InvalidEntryStateError{EntryID: id, Status: e.Status, Op: "transition to " + string(to)}
	}
	e.Status = to
	m.entries[id] = e
	return nil
}

func (m *Memory) ListDuePending(_ context.Context, now time.Time) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []ledger.Entry
	for _, e := range m.entries {
		if e.Status == ledger.EntryPending && !e.VoteDeadline.IsZero() && !now.Before(e.VoteDeadline) {
			due = append(due, e)
		}
	}
	return due, nil
}

// SaveVote records a vote, overwriting any earlier vote by the same
// participant on the same entry (last-write-wins).
func (m *Memory) SaveVote(_ context.Context, v ledger.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveVoteLocked(v)
}

func (m *Memory) saveVoteLocked(v ledger.Vote) error {
	byParticipant, ok := m.votes[v.EntryID]
	if !ok {
		byParticipant = make(map[ledger.ParticipantID]ledger.Vote)
		m.votes[v.EntryID] = byParticipant
	}
	byParticipant[v.ParticipantID] = v
	return nil
}

func (m *Memory) ListVotes(_ context.Context, entryID ledger.EntryID) ([]ledger.Vote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	votes := make([]ledger.Vote, 0, len(m.votes[entryID]))
	for _, v := range m.votes[entryID] {
		votes = append(votes, v)
	}
	return votes, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support, simulated with a
// snapshot + rollback on error.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

func (tm *TxMemory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	pools   map[ledger.PoolID]*poolRecord
	entries map[ledger.EntryID]ledger.Entry
	votes   map[ledger.EntryID]map[ledger.ParticipantID]ledger.Vote
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		pools:   make(map[ledger.PoolID]*poolRecord, len(tm.pools)),
		entries: make(map[ledger.EntryID]ledger.Entry, len(tm.entries)),
		votes:   make(map[ledger.EntryID]map[ledger.ParticipantID]ledger.Vote, len(tm.votes)),
	}
	for id, rec := range tm.pools {
		cp := &poolRecord{pool: *rec.pool.Snapshot()}
		cp.entries = append([]ledger.EntryID{}, rec.entries...)
		s.pools[id] = cp
	}
	for id, e := range tm.entries {
		s.entries[id] = e
	}
	for id, byParticipant := range tm.votes {
		cp := make(map[ledger.ParticipantID]ledger.Vote, len(byParticipant))
		for pid, v := range byParticipant {
			cp[pid] = v
		}
		s.votes[id] = cp
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.pools = s.pools
	tm.entries = s.entries
	tm.votes = s.votes
}

// txMemoryView routes writes to the already-locked parent.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) CreatePool(_ context.Context, pool *ledger.Pool) error {
	return tv.parent.createPoolLocked(pool)
}

func (tv *txMemoryView) LoadPool(_ context.Context, id ledger.PoolID) (*ledger.Pool, error) {
	return tv.parent.loadPoolLocked(id)
}

func (tv *txMemoryView) ListPools(ctx context.Context) ([]*ledger.Pool, error) {
	pools := make([]*ledger.Pool, 0, len(tv.parent.pools))
	for id := range tv.parent.pools {
		pool, err := tv.parent.loadPoolLocked(id)
		if err != nil {
			return nil, err
		}
		pools = append(pools, pool)
	}
	return pools, nil
}

func (tv *txMemoryView) UpdateRules(_ context.Context, id ledger.PoolID, rules ledger.Rules) error {
	rec, ok := tv.parent.pools[id]
	if !ok {
		return ledger.ErrPoolNotFound
	}
	rec.pool.Rules = rules
	return nil
}

func (tv *txMemoryView) UpsertParticipant(_ context.Context, poolID ledger.PoolID, p ledger.Participant) error {
	return tv.parent.upsertParticipantLocked(poolID, p)
}

func (tv *txMemoryView) AppendEntry(_ context.Context, e ledger.Entry) error {
	return tv.parent.appendEntryLocked(e)
}

func (tv *txMemoryView) GetEntry(_ context.Context, id ledger.EntryID) (ledger.Entry, error) {
	e, ok := tv.parent.entries[id]
	if !ok {
		return ledger.Entry{}, ledger.ErrEntryNotFound
	}
	return e, nil
}

func (tv *txMemoryView) ListEntries(_ context.Context, poolID ledger.PoolID) ([]ledger.Entry, error) {
	rec, ok := tv.parent.pools[poolID]
	if !ok {
		return nil, ledger.ErrPoolNotFound
	}
	entries := make([]ledger.Entry, 0, len(rec.entries))
	for _, id := range rec.entries {
		entries = append(entries, tv.parent.entries[id])
	}
	return entries, nil
}

func (tv *txMemoryView) UpdateEntryStatus(_ context.Context, id ledger.EntryID, from, to ledger.EntryStatus) error {
	return tv.parent.updateEntryStatusLocked(id, from, to)
}

func (tv *txMemoryView) ListDuePending(_ context.Context, now time.Time) ([]ledger.Entry, error) {
	var due []ledger.Entry
	for _, e := range tv.parent.entries {
		if e.Status == ledger.EntryPending && !e.VoteDeadline.IsZero() && !now.Before(e.VoteDeadline) {
			due = append(due, e)
		}
	}
	return due, nil
}

func (tv *txMemoryView) SaveVote(_ context.Context, v ledger.Vote) error {
	return tv.parent.saveVoteLocked(v)
}

func (tv *txMemoryView) ListVotes(_ context.Context, entryID ledger.EntryID) ([]ledger.Vote, error) {
	votes := make([]ledger.Vote, 0, len(tv.parent.votes[entryID]))
	for _, v := range tv.parent.votes[entryID] {
		votes = append(votes, v)
	}
	return votes, nil
}
