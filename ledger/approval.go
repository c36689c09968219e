/*
approval.go - The voting state machine that gates withdrawals and expenses

PURPOSE:
  A pending withdrawal/expense entry does not touch the reserve until the
  group authorizes it. This file implements the authorization: vote
  recording rules and the tally that decides the entry's fate.

STATE MACHINE:
  pending -> approved    threshold of eligible voters reached
  pending -> rejected    veto, or deadline expiry with insufficient approval
  approved -> posted     caller appends the entry after the funds guard
  posted / rejected      terminal; any further vote or tally fails

TALLY SEMANTICS:
  approveRatio = approvals / eligible voters (ACTIVE participants), not
  approvals / votes cast. Abstaining counts against approval. Rejection is
  a finality event: votes against never reject an entry on their own, only
  a veto or the deadline does. An entry whose threshold is already met at
  expiry is approved at expiry even if not everyone voted.

VETO:
  A participant whose share of total posted contributions exceeds the
  configured veto percentage (default 70) force-rejects with a single
  reject vote. This is an explicit rule, not a percentage computation: the
  majority funder can always stop their money leaving.

VOTE RACES:
  One vote per (entry, participant); a later vote from the same participant
  overwrites the earlier one. Votes from different participants commute, so
  a tally is order-independent given the same vote set. The engine holds no
  timers: deadline expiry happens when a caller passes `now` past the
  entry's deadline.

SEE ALSO:
  - entry.go: ValidTransition
  - settlement.go: Contribution shares used for the veto
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// VOTE
// =============================================================================

type VoteID string

type VoteChoice string

const (
	VoteApprove VoteChoice = "approve"
	VoteReject  VoteChoice = "reject"
)

type Vote struct {
	ID            VoteID
	EntryID       EntryID
	ParticipantID ParticipantID
	Choice        VoteChoice
	Reason        string
	CastAt        time.Time
}

// =============================================================================
// APPROVAL GATE
// =============================================================================

// ApprovalGate decides whether pending entries become approved or rejected.
// Stateless; the zero value is ready to use.
type ApprovalGate struct{}

// CastVote validates that a vote may be recorded against the entry. It does
// not persist anything: last-write-wins per (entry, participant) is the
// vote store's contract.
func (ApprovalGate) CastVote(entry Entry, vote Vote) error {
	if entry.Status != EntryPending {
		return ErrVotingClosed
	}
	if vote.Choice != VoteApprove && vote.Choice != VoteReject {
		return &InvalidEntryStateError{EntryID: entry.ID, Status: entry.Status, Op: "cast vote with choice " + string(vote.Choice)}
	}
	if vote.EntryID != entry.ID {
		return ErrEntryNotFound
	}
	return nil
}

// TallyResult is the outcome of counting votes on a pending entry.
type TallyResult struct {
	EntryID        EntryID
	Approvals      int
	Rejections     int
	EligibleVoters int
	ApproveRatio   decimal.Decimal

	// Outcome is EntryApproved, EntryRejected, or EntryPending when the
	// threshold is unmet and the deadline has not passed.
	Outcome EntryStatus

	// VetoedBy is set when a majority funder's reject forced the outcome.
	VetoedBy *ParticipantID
}

// Tally counts the effective votes on a pending entry and decides its next
// state. Pure: the caller supplies `now` and applies the transition.
func (g ApprovalGate) Tally(pool *Pool, entry Entry, votes []Vote, now time.Time) (TallyResult, error) {
	if entry.Status != EntryPending {
		return TallyResult{}, ErrVotingClosed
	}

	active := pool.ActiveParticipants()
	eligible := make(map[ParticipantID]bool, len(active))
	for _, m := range active {
		eligible[m.ID] = true
	}

	effective := EffectiveVotes(votes)

	result := TallyResult{
		EntryID:        entry.ID,
		EligibleVoters: len(active),
		Outcome:        EntryPending,
	}

	for id, v := range effective {
		if !eligible[id] {
			continue // exited/removed participants lose their vote
		}
		switch v.Choice {
		case VoteApprove:
			result.Approvals++
		case VoteReject:
			result.Rejections++
			if g.hasVeto(pool, id) {
				vetoer := id
				result.VetoedBy = &vetoer
			}
		}
	}

	if result.EligibleVoters > 0 {
		result.ApproveRatio = decimal.NewFromInt(int64(result.Approvals)).
			Div(decimal.NewFromInt(int64(result.EligibleVoters)))
	}

	threshold := decimal.NewFromInt(pool.Rules.WithdrawalApprovalPercentage).
		Div(decimal.NewFromInt(100))

	switch {
	case result.VetoedBy != nil:
		result.Outcome = EntryRejected
	case result.EligibleVoters > 0 && result.ApproveRatio.GreaterThanOrEqual(threshold):
		result.Outcome = EntryApproved
	case !entry.VoteDeadline.IsZero() && !now.Before(entry.VoteDeadline):
		// Expiry with insufficient approval is the only non-veto rejection.
		result.Outcome = EntryRejected
	}

	return result, nil
}

// hasVeto reports whether the participant's contribution share of the total
// posted contributions strictly exceeds the veto percentage.
func (ApprovalGate) hasVeto(pool *Pool, id ParticipantID) bool {
	var total int64
	for _, e := range pool.Entries {
		if e.Kind == KindContribution {
			total += e.Amount.Amount
		}
	}
	if total <= 0 {
		return false
	}
	share := pool.ContributionBalance(id).Amount
	threshold := decimal.NewFromInt(pool.Rules.VetoContributionPercentage).
		Div(decimal.NewFromInt(100))
	return decimal.NewFromInt(share).
		Div(decimal.NewFromInt(total)).
		GreaterThan(threshold)
}

// EffectiveVotes reduces a vote list to the latest vote per participant.
// Later CastAt wins; equal timestamps fall back to vote ID so the result
// does not depend on input order.
func EffectiveVotes(votes []Vote) map[ParticipantID]Vote {
	effective := make(map[ParticipantID]Vote, len(votes))
	for _, v := range votes {
		prev, ok := effective[v.ParticipantID]
		if !ok || v.CastAt.After(prev.CastAt) ||
			(v.CastAt.Equal(prev.CastAt) && v.ID > prev.ID) {
			effective[v.ParticipantID] = v
		}
	}
	return effective
}
