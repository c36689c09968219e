/*
Package vaca is the domain service layer over the settlement engine.

PURPOSE:
  Orchestrates pool lifecycle, membership, contributions, the withdrawal
  approval workflow, and exits. The ledger package computes; this package
  decides when to load, when to append, and who gets notified. All money
  semantics live in the engine - the service only sequences them.

WRITE DISCIPLINE:
  Every multi-row operation runs inside the store's WithTx so a failure
  rolls back completely; the service never assumes a partial append
  succeeded. Per-pool serialization of appends is the store's concern
  (single writer at a time); the service holds no locks of its own.

NOTIFICATIONS:
  The notifier is fired after a transition commits, never before, and its
  failures are invisible to the caller: delivery is best-effort.

SEE ALSO:
  - ledger: The pure engine underneath
  - api: The HTTP surface over this service
*/
package vaca

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lavaca/ledger-engine/ledger"
	"github.com/lavaca/ledger-engine/logger"
)

// DefaultVotingWindow is how long a pending withdrawal/expense stays open
// for votes before the deadline sweeper decides it.
const DefaultVotingWindow = 72 * time.Hour

// =============================================================================
// POOL SERVICE
// =============================================================================

type PoolService struct {
	Store      ledger.TxStore
	Settlement ledger.SettlementEngine
	Gate       ledger.ApprovalGate
	Identity   Identity
	Notifier   Notifier
	Log        logger.Logger

	// VotingWindow for new pending entries; DefaultVotingWindow if zero.
	VotingWindow time.Duration

	// Now is the service clock; overridable in tests. time.Now if nil.
	Now func() time.Time
}

func NewPoolService(store ledger.TxStore, identity Identity, notifier Notifier, log logger.Logger) *PoolService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &PoolService{
		Store:        store,
		Identity:     identity,
		Notifier:     notifier,
		Log:          log,
		VotingWindow: DefaultVotingWindow,
	}
}

func (s *PoolService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *PoolService) votingWindow() time.Duration {
	if s.VotingWindow > 0 {
		return s.VotingWindow
	}
	return DefaultVotingWindow
}

// =============================================================================
// POOL LIFECYCLE
// =============================================================================

// CreatePoolInput carries everything needed to open a vaca.
type CreatePoolInput struct {
	Name       string
	GoalAmount ledger.Money
	Deadline   time.Time
	Color      string
	Rules      ledger.Rules
	Creator    Profile
}

// CreatePool opens a pool with the creator as its active admin.
func (s *PoolService) CreatePool(ctx context.Context, in CreatePoolInput) (*ledger.Pool, error) {
	if err := in.Rules.Validate(); err != nil {
		return nil, err
	}
	if !in.GoalAmount.IsPositive() {
		return nil, fmt.Errorf("%w: goal amount must be positive", ledger.ErrInvalidRules)
	}

	now := s.now()
	creatorID := ledger.ParticipantID(uuid.NewString())
	var userID *string
	if in.Creator.UserID != "" {
		uid := in.Creator.UserID
		userID = &uid
	}

	pool := &ledger.Pool{
		ID:         ledger.PoolID(uuid.NewString()),
		Name:       in.Name,
		GoalAmount: in.GoalAmount,
		Deadline:   in.Deadline,
		Color:      in.Color,
		Rules:      in.Rules,
		CreatedAt:  now,
		Participants: []ledger.Participant{{
			ID:       creatorID,
			UserID:   userID,
			Name:     in.Creator.Name,
			Email:    in.Creator.Email,
			Status:   ledger.ParticipantActive,
			Admin:    true,
			JoinedAt: now,
		}},
	}

	if err := s.Store.CreatePool(ctx, pool); err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	s.Log.Info("pool created", "pool_id", pool.ID, "name", pool.Name, "goal", pool.GoalAmount.String())
	return pool, nil
}

// GetPool returns the canonical pool snapshot.
func (s *PoolService) GetPool(ctx context.Context, id ledger.PoolID) (*ledger.Pool, error) {
	return s.Store.LoadPool(ctx, id)
}

// ListPools returns all pool snapshots.
func (s *PoolService) ListPools(ctx context.Context) ([]*ledger.Pool, error) {
	return s.Store.ListPools(ctx)
}

// UpdateRules replaces the pool's rules. Admin only; already-posted entries
// are unaffected by the change.
func (s *PoolService) UpdateRules(ctx context.Context, poolID ledger.PoolID, actorID ledger.ParticipantID, rules ledger.Rules) error {
	if err := rules.Validate(); err != nil {
		return err
	}
	pool, err := s.Store.LoadPool(ctx, poolID)
	if err != nil {
		return err
	}
	actor, err := pool.Participant(actorID)
	if err != nil {
		return err
	}
	if !actor.Admin {
		return ledger.ErrNotAdmin
	}
	if err := s.Store.UpdateRules(ctx, poolID, rules); err != nil {
		return fmt.Errorf("update rules: %w", err)
	}
	s.Log.Info("pool rules updated", "pool_id", poolID, "actor", actorID)
	return nil
}

// Balances returns per-participant net balances for the pool.
func (s *PoolService) Balances(ctx context.Context, poolID ledger.PoolID) (map[ledger.ParticipantID]ledger.Money, error) {
	pool, err := s.Store.LoadPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	return s.Settlement.ComputeBalances(pool), nil
}

// =============================================================================
// CONTRIBUTIONS - post directly, no approval workflow
// =============================================================================

// Contribute posts a contribution entry. Contributions need no vote; they
// are appended as posted in one step.
func (s *PoolService) Contribute(ctx context.Context, poolID ledger.PoolID, participantID ledger.ParticipantID, amount ledger.Money, description string) (ledger.Entry, error) {
	if !amount.IsPositive() {
		return ledger.Entry{}, &ledger.InvalidEntryStateError{Op: "contribute non-positive amount"}
	}

	pool, err := s.Store.LoadPool(ctx, poolID)
	if err != nil {
		return ledger.Entry{}, err
	}
	contributor, err := pool.Participant(participantID)
	if err != nil {
		return ledger.Entry{}, err
	}
	if !contributor.IsActive() {
		return ledger.Entry{}, ledger.ErrParticipantNotFound
	}

	if !pool.Rules.AllowOverfunding {
		reserve := pool.CurrentReserve()
		after, err := reserve.Add(amount)
		if err != nil {
			return ledger.Entry{}, err
		}
		if cmp, err := after.Compare(pool.GoalAmount); err != nil {
			return ledger.Entry{}, err
		} else if cmp > 0 {
			return ledger.Entry{}, ledger.ErrOverfunding
		}
	}

	entry := ledger.Entry{
		ID:            ledger.EntryID(uuid.NewString()),
		PoolID:        poolID,
		ParticipantID: participantID,
		Kind:          ledger.KindContribution,
		Amount:        amount,
		Description:   description,
		Status:        ledger.EntryPosted,
		CreatedAt:     s.now(),
	}

	// Validate against the aggregate before persisting.
	if err := pool.AppendEntry(entry); err != nil {
		return ledger.Entry{}, err
	}
	if err := s.Store.AppendEntry(ctx, entry); err != nil {
		return ledger.Entry{}, fmt.Errorf("append contribution: %w", err)
	}

	s.Log.Info("contribution posted",
		"pool_id", poolID, "participant", participantID, "amount", amount.String())
	s.Notifier.EntryPosted(ctx, entry)
	return entry, nil
}
