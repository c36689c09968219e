/*
withdrawal.go - The pending-entry approval workflow

PURPOSE:
  Withdrawals and expenses don't touch the reserve until the group approves
  them. This file sequences the workflow: create a pending entry with a
  voting deadline, record votes, and apply the gate's verdict.

POSTING:
  On approval the entry passes the funds guard (the reserve must not go
  negative) and transitions pending -> approved -> posted inside one store
  transaction. A shortfall leaves the entry pending and reports
  InsufficientFundsError; it can be tallied again after more contributions.

EXPIRY:
  The engine has no timers. ExpireDue is invoked by the api sweeper (or any
  caller) with the current time, and decides every pending entry whose
  deadline has passed: threshold met posts, otherwise the entry is
  rejected.
*/
package vaca

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lavaca/ledger-engine/ledger"
)

// =============================================================================
// PENDING ENTRY CREATION
// =============================================================================

// RequestWithdrawal creates a pending withdrawal entry open for votes.
// amount is how much leaves the pool (positive input, stored negative).
func (s *PoolService) RequestWithdrawal(ctx context.Context, poolID ledger.PoolID, participantID ledger.ParticipantID, amount ledger.Money, description string) (ledger.Entry, error) {
	return s.requestPending(ctx, poolID, participantID, ledger.KindWithdrawal, amount, description, "")
}

// RequestExpense creates a pending expense entry open for votes.
func (s *PoolService) RequestExpense(ctx context.Context, poolID ledger.PoolID, participantID ledger.ParticipantID, amount ledger.Money, description, category string) (ledger.Entry, error) {
	return s.requestPending(ctx, poolID, participantID, ledger.KindExpense, amount, description, category)
}

func (s *PoolService) requestPending(ctx context.Context, poolID ledger.PoolID, participantID ledger.ParticipantID, kind ledger.EntryKind, amount ledger.Money, description, category string) (ledger.Entry, error) {
	if !amount.IsPositive() {
		return ledger.Entry{}, &ledger.InvalidEntryStateError{Op: "request non-positive " + string(kind)}
	}

	pool, err := s.Store.LoadPool(ctx, poolID)
	if err != nil {
		return ledger.Entry{}, err
	}
	requester, err := pool.Participant(participantID)
	if err != nil {
		return ledger.Entry{}, err
	}
	if !requester.IsActive() {
		return ledger.Entry{}, ledger.ErrParticipantNotFound
	}
	if amount.Currency != pool.Currency() {
		return ledger.Entry{}, &ledger.CurrencyMismatchError{Left: pool.Currency(), Right: amount.Currency}
	}

	now := s.now()
	entry := ledger.Entry{
		ID:            ledger.EntryID(uuid.NewString()),
		PoolID:        poolID,
		ParticipantID: participantID,
		Kind:          kind,
		Amount:        amount.Neg(), // money out of the reserve
		Description:   description,
		Category:      category,
		Status:        ledger.EntryPending,
		CreatedAt:     now,
		VoteDeadline:  now.Add(s.votingWindow()),
	}

	if err := s.Store.AppendEntry(ctx, entry); err != nil {
		return ledger.Entry{}, fmt.Errorf("append pending %s: %w", kind, err)
	}

	s.Log.Info("entry pending vote",
		"pool_id", poolID, "entry", entry.ID, "kind", kind,
		"amount", amount.String(), "deadline", entry.VoteDeadline)
	return entry, nil
}

// =============================================================================
// VOTING
// =============================================================================

// CastVote records a vote on a pending entry and re-tallies. A later vote
// from the same participant replaces the earlier one.
func (s *PoolService) CastVote(ctx context.Context, entryID ledger.EntryID, voterID ledger.ParticipantID, choice ledger.VoteChoice, reason string) (ledger.TallyResult, error) {
	entry, err := s.Store.GetEntry(ctx, entryID)
	if err != nil {
		return ledger.TallyResult{}, err
	}
	pool, err := s.Store.LoadPool(ctx, entry.PoolID)
	if err != nil {
		return ledger.TallyResult{}, err
	}
	voter, err := pool.Participant(voterID)
	if err != nil {
		return ledger.TallyResult{}, err
	}
	if !voter.CanVote() {
		return ledger.TallyResult{}, ledger.ErrVotingClosed
	}

	vote := ledger.Vote{
		ID:            ledger.VoteID(uuid.NewString()),
		EntryID:       entryID,
		ParticipantID: voterID,
		Choice:        choice,
		Reason:        reason,
		CastAt:        s.now(),
	}
	if err := s.Gate.CastVote(entry, vote); err != nil {
		return ledger.TallyResult{}, err
	}
	if err := s.Store.SaveVote(ctx, vote); err != nil {
		return ledger.TallyResult{}, fmt.Errorf("save vote: %w", err)
	}

	s.Log.Info("vote cast", "entry", entryID, "voter", voterID, "choice", choice)
	return s.TallyEntry(ctx, entryID, s.now())
}

// TallyEntry counts votes on a pending entry and applies the outcome:
// approved entries post (subject to the funds guard), rejected entries are
// finalized, undecided entries stay pending. Returns the tally either way.
func (s *PoolService) TallyEntry(ctx context.Context, entryID ledger.EntryID, now time.Time) (ledger.TallyResult, error) {
	entry, err := s.Store.GetEntry(ctx, entryID)
	if err != nil {
		return ledger.TallyResult{}, err
	}
	pool, err := s.Store.LoadPool(ctx, entry.PoolID)
	if err != nil {
		return ledger.TallyResult{}, err
	}
	votes, err := s.Store.ListVotes(ctx, entryID)
	if err != nil {
		return ledger.TallyResult{}, err
	}

	tally, err := s.Gate.Tally(pool, entry, votes, now)
	if err != nil {
		return ledger.TallyResult{}, err
	}
	s.Notifier.VoteTallyChanged(ctx, entry, tally)

	switch tally.Outcome {
	case ledger.EntryApproved:
		if err := s.postApproved(ctx, pool, entry); err != nil {
			return tally, err
		}
	case ledger.EntryRejected:
		if err := s.Store.UpdateEntryStatus(ctx, entryID, ledger.EntryPending, ledger.EntryRejected); err != nil {
			return tally, fmt.Errorf("reject entry: %w", err)
		}
		entry.Status = ledger.EntryRejected
		s.Log.Info("entry rejected", "entry", entryID, "vetoed", tally.VetoedBy != nil)
		s.Notifier.EntryRejected(ctx, entry)
	}

	return tally, nil
}

// postApproved runs the funds guard and posts an approved entry atomically.
// On a shortfall the entry stays pending so it can be retried after more
// contributions.
func (s *PoolService) postApproved(ctx context.Context, pool *ledger.Pool, entry ledger.Entry) error {
	reserve := pool.CurrentReserve()
	after, err := reserve.Add(entry.Amount)
	if err != nil {
		return err
	}
	if after.IsNegative() {
		return &ledger.InsufficientFundsError{
			PoolID:    pool.ID,
			Available: reserve,
			Requested: entry.Amount.Neg(),
			Shortfall: after.Neg(),
		}
	}

	err = s.Store.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.UpdateEntryStatus(ctx, entry.ID, ledger.EntryPending, ledger.EntryApproved); err != nil {
			return err
		}
		return tx.UpdateEntryStatus(ctx, entry.ID, ledger.EntryApproved, ledger.EntryPosted)
	})
	if err != nil {
		return fmt.Errorf("post approved entry: %w", err)
	}

	entry.Status = ledger.EntryPosted
	s.Log.Info("entry posted", "pool_id", pool.ID, "entry", entry.ID, "amount", entry.Amount.String())
	s.Notifier.EntryPosted(ctx, entry)
	return nil
}

// =============================================================================
// DEADLINE EXPIRY
// =============================================================================

// ExpireDue decides every pending entry whose voting deadline has passed.
// Returns the number of entries decided. Individual failures are logged
// and skipped so one bad entry doesn't wedge the sweep.
func (s *PoolService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.Store.ListDuePending(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list due entries: %w", err)
	}

	decided := 0
	for _, entry := range due {
		tally, err := s.TallyEntry(ctx, entry.ID, now)
		if err != nil {
			// Insufficient funds keeps the entry pending past its deadline;
			// anything else is unexpected.
			if errors.Is(err, ledger.ErrInsufficientFunds) {
				s.Log.Warn("expired entry cannot post", "entry", entry.ID, "err", err)
			} else {
				s.Log.Error("expire tally failed", "entry", entry.ID, "err", err)
			}
			continue
		}
		if tally.Outcome != ledger.EntryPending {
			decided++
		}
	}
	return decided, nil
}
