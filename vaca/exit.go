/*
exit.go - Leaving a pool, and winding down a failed one

PURPOSE:
  An exit settles a participant's position: their contributions minus the
  penalty the rules impose come back to them, the penalty stays in the
  reserve. The payout is a withdrawal entry - money leaving the pool - and
  the participant flips to exited, all in one store transaction.

NOTICE PERIOD:
  With ExitNoticeDays > 0 the participant must RequestExit first and the
  payout only executes once the notice has elapsed. The request itself is
  refused outright when the pool's rules forbid exit.

FAILED POOLS:
  A pool past its deadline short of its goal with RefundOnFailure set is
  wound down by returning the reserve to active participants in proportion
  to what each contributed. Conservation holds: the payouts sum to the
  reserve exactly.
*/
package vaca

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lavaca/ledger-engine/ledger"
)

// =============================================================================
// EXIT
// =============================================================================

// RequestExit starts the notice clock for a voluntary exit.
func (s *PoolService) RequestExit(ctx context.Context, poolID ledger.PoolID, participantID ledger.ParticipantID) (ledger.Participant, error) {
	pool, err := s.Store.LoadPool(ctx, poolID)
	if err != nil {
		return ledger.Participant{}, err
	}
	if pool.Rules.ExitPolicy == ledger.ExitForbidden {
		return ledger.Participant{}, ledger.ErrExitNotAllowed
	}
	p, err := pool.Participant(participantID)
	if err != nil {
		return ledger.Participant{}, err
	}
	if !p.IsActive() {
		return ledger.Participant{}, ledger.ErrParticipantNotFound
	}

	now := s.now()
	p.ExitRequestedAt = &now
	if err := s.Store.UpsertParticipant(ctx, poolID, p); err != nil {
		return ledger.Participant{}, fmt.Errorf("request exit: %w", err)
	}

	s.Log.Info("exit requested", "pool_id", poolID, "participant", participantID)
	s.Notifier.ParticipantChanged(ctx, poolID, p)
	return p, nil
}

// PreviewExit computes what the participant would receive without changing
// anything. Safe to call repeatedly; same snapshot, same answer.
func (s *PoolService) PreviewExit(ctx context.Context, poolID ledger.PoolID, participantID ledger.ParticipantID) (ledger.ExitSettlement, error) {
	pool, err := s.Store.LoadPool(ctx, poolID)
	if err != nil {
		return ledger.ExitSettlement{}, err
	}
	return s.Settlement.ComputeExitSettlement(pool, participantID)
}

// ExecuteExit settles and pays out a voluntary exit: the refund leaves the
// reserve as a withdrawal entry and the participant becomes exited. Both
// happen in one transaction or not at all.
func (s *PoolService) ExecuteExit(ctx context.Context, poolID ledger.PoolID, participantID ledger.ParticipantID) (ledger.ExitSettlement, error) {
	pool, err := s.Store.LoadPool(ctx, poolID)
	if err != nil {
		return ledger.ExitSettlement{}, err
	}
	p, err := pool.Participant(participantID)
	if err != nil {
		return ledger.ExitSettlement{}, err
	}
	if !p.IsActive() {
		return ledger.ExitSettlement{}, ledger.ErrParticipantNotFound
	}

	now := s.now()
	if pool.Rules.ExitNoticeDays > 0 {
		if p.ExitRequestedAt == nil {
			return ledger.ExitSettlement{}, ledger.ErrExitNoticeRequired
		}
		noticeEnds := p.ExitRequestedAt.AddDate(0, 0, pool.Rules.ExitNoticeDays)
		if now.Before(noticeEnds) {
			return ledger.ExitSettlement{}, ledger.ErrExitNoticeRequired
		}
	}

	settlement, err := s.Settlement.ComputeExitSettlement(pool, participantID)
	if err != nil {
		return ledger.ExitSettlement{}, err
	}

	var payout *ledger.Entry
	if settlement.Refund.IsPositive() {
		payout = &ledger.Entry{
			ID:            ledger.EntryID(uuid.NewString()),
			PoolID:        poolID,
			ParticipantID: participantID,
			Kind:          ledger.KindWithdrawal,
			Amount:        settlement.Refund.Neg(),
			Description:   fmt.Sprintf("exit payout for %s", p.Name),
			Category:      "exit",
			Status:        ledger.EntryPosted,
			CreatedAt:     now,
			ReferenceID:   string(participantID),
		}
		// Validate against the aggregate before persisting.
		if err := pool.AppendEntry(*payout); err != nil {
			return ledger.ExitSettlement{}, err
		}
	}

	p.Status = ledger.ParticipantExited
	err = s.Store.WithTx(ctx, func(tx ledger.Store) error {
		if payout != nil {
			if err := tx.AppendEntry(ctx, *payout); err != nil {
				return err
			}
		}
		return tx.UpsertParticipant(ctx, poolID, p)
	})
	if err != nil {
		return ledger.ExitSettlement{}, fmt.Errorf("execute exit: %w", err)
	}

	s.Log.Info("participant exited",
		"pool_id", poolID, "participant", participantID,
		"refund", settlement.Refund.String(), "penalty", settlement.Penalty.String())
	if payout != nil {
		s.Notifier.EntryPosted(ctx, *payout)
	}
	s.Notifier.ParticipantChanged(ctx, poolID, p)
	return settlement, nil
}

// =============================================================================
// FAILED POOL WIND-DOWN
// =============================================================================

// CloseFailedPool refunds the reserve proportionally when a pool misses its
// goal. Only valid past the deadline, with RefundOnFailure set, and with
// the goal unmet. Returns the payout entries.
func (s *PoolService) CloseFailedPool(ctx context.Context, poolID ledger.PoolID, now time.Time) ([]ledger.Entry, error) {
	pool, err := s.Store.LoadPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if !pool.Rules.RefundOnFailure {
		return nil, ledger.ErrExitNotAllowed
	}
	if pool.Deadline.IsZero() || now.Before(pool.Deadline) {
		return nil, fmt.Errorf("%w: pool deadline has not passed", ledger.ErrInvalidEntryState)
	}
	reserve := pool.CurrentReserve()
	if cmp, err := reserve.Compare(pool.GoalAmount); err != nil {
		return nil, err
	} else if cmp >= 0 {
		return nil, fmt.Errorf("%w: pool reached its goal", ledger.ErrInvalidEntryState)
	}
	if !reserve.IsPositive() {
		return nil, nil // nothing to return
	}

	shares, err := s.Settlement.ComputeProportionalShare(pool, reserve)
	if err != nil {
		return nil, err
	}

	var payouts []ledger.Entry
	for _, m := range pool.ActiveParticipants() {
		share := shares[m.ID]
		if !share.IsPositive() {
			continue
		}
		payout := ledger.Entry{
			ID:            ledger.EntryID(uuid.NewString()),
			PoolID:        poolID,
			ParticipantID: m.ID,
			Kind:          ledger.KindWithdrawal,
			Amount:        share.Neg(),
			Description:   "goal not reached: contribution returned",
			Category:      "failure_refund",
			Status:        ledger.EntryPosted,
			CreatedAt:     now,
		}
		if err := pool.AppendEntry(payout); err != nil {
			return nil, err
		}
		payouts = append(payouts, payout)
	}

	err = s.Store.WithTx(ctx, func(tx ledger.Store) error {
		for _, payout := range payouts {
			if err := tx.AppendEntry(ctx, payout); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("close failed pool: %w", err)
	}

	s.Log.Info("failed pool wound down", "pool_id", poolID, "payouts", len(payouts))
	for _, payout := range payouts {
		s.Notifier.EntryPosted(ctx, payout)
	}
	return payouts, nil
}
