package ledger_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lavaca/ledger-engine/ledger"
)

// pendingWithdrawal builds a pending withdrawal with a deadline one day out.
func pendingWithdrawal(amount int64) ledger.Entry {
	return ledger.Entry{
		ID:            "w-1",
		PoolID:        "pool-1",
		ParticipantID: "p-1",
		Kind:          ledger.KindWithdrawal,
		Amount:        ledger.NewMoney(-amount, ledger.MXN),
		Status:        ledger.EntryPending,
		CreatedAt:     testEpoch,
		VoteDeadline:  testEpoch.Add(24 * time.Hour),
	}
}

func vote(seq int, participant ledger.ParticipantID, choice ledger.VoteChoice, castAt time.Time) ledger.Vote {
	return ledger.Vote{
		ID:            ledger.VoteID(fmt.Sprintf("v-%d", seq)),
		EntryID:       "w-1",
		ParticipantID: participant,
		Choice:        choice,
		CastAt:        castAt,
	}
}

// =============================================================================
// CAST VOTE
// =============================================================================

func TestApprovalGate_CastVote_OnlyWhilePending(t *testing.T) {
	// GIVEN: An entry in each terminal state
	// WHEN: Casting a vote
	// THEN: ErrVotingClosed; terminal states accept nothing

	var gate ledger.ApprovalGate
	v := vote(1, "p-2", ledger.VoteApprove, testEpoch)

	for _, status := range []ledger.EntryStatus{ledger.EntryPosted, ledger.EntryRejected, ledger.EntryApproved} {
		e := pendingWithdrawal(5_000)
		e.Status = status
		if err := gate.CastVote(e, v); !errors.Is(err, ledger.ErrVotingClosed) {
			t.Errorf("status %s: expected ErrVotingClosed, got %v", status, err)
		}
	}
}

func TestApprovalGate_CastVote_RejectsBadChoice(t *testing.T) {
	var gate ledger.ApprovalGate
	v := vote(1, "p-2", "abstain", testEpoch)

	if err := gate.CastVote(pendingWithdrawal(5_000), v); err == nil {
		t.Error("expected error for unknown vote choice")
	}
}

func TestApprovalGate_CastVote_WrongEntry(t *testing.T) {
	var gate ledger.ApprovalGate
	v := vote(1, "p-2", ledger.VoteApprove, testEpoch)
	v.EntryID = "w-other"

	if err := gate.CastVote(pendingWithdrawal(5_000), v); !errors.Is(err, ledger.ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

// =============================================================================
// TALLY
// =============================================================================

func TestApprovalGate_Tally_ThresholdReached(t *testing.T) {
	// GIVEN: Three active members, a 51% threshold, two approvals
	// WHEN: Tallying before the deadline
	// THEN: Approved; 2/3 = 0.667 >= 0.51

	pool := newTestPool(3)
	pool.Rules.WithdrawalApprovalPercentage = 51
	entry := pendingWithdrawal(5_000)

	votes := []ledger.Vote{
		vote(1, "p-1", ledger.VoteApprove, testEpoch.Add(time.Minute)),
		vote(2, "p-2", ledger.VoteApprove, testEpoch.Add(2*time.Minute)),
	}

	var gate ledger.ApprovalGate
	result, err := gate.Tally(pool, entry, votes, testEpoch.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Outcome != ledger.EntryApproved {
		t.Errorf("expected approved, got %s", result.Outcome)
	}
	if result.Approvals != 2 || result.EligibleVoters != 3 {
		t.Errorf("expected 2 approvals of 3 eligible, got %d of %d", result.Approvals, result.EligibleVoters)
	}
}

func TestApprovalGate_Tally_AbstentionCountsAgainst(t *testing.T) {
	// GIVEN: Four active members, a 75% threshold, two approvals, two silent
	// WHEN: Tallying before the deadline
	// THEN: Still pending; 2/4 = 0.5 < 0.75

	pool := newTestPool(4)
	pool.Rules.WithdrawalApprovalPercentage = 75
	entry := pendingWithdrawal(5_000)

	votes := []ledger.Vote{
		vote(1, "p-1", ledger.VoteApprove, testEpoch.Add(time.Minute)),
		vote(2, "p-2", ledger.VoteApprove, testEpoch.Add(2*time.Minute)),
	}

	var gate ledger.ApprovalGate
	result, err := gate.Tally(pool, entry, votes, testEpoch.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != ledger.EntryPending {
		t.Errorf("expected pending, got %s", result.Outcome)
	}
}

func TestApprovalGate_Tally_RejectVotesAloneDoNotReject(t *testing.T) {
	// GIVEN: A majority of reject votes from minor contributors
	// WHEN: Tallying before the deadline
	// THEN: Still pending; only a veto or the deadline rejects

	pool := newTestPool(3)
	entry := pendingWithdrawal(5_000)

	votes := []ledger.Vote{
		vote(1, "p-1", ledger.VoteReject, testEpoch.Add(time.Minute)),
		vote(2, "p-2", ledger.VoteReject, testEpoch.Add(2*time.Minute)),
	}

	var gate ledger.ApprovalGate
	result, err := gate.Tally(pool, entry, votes, testEpoch.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != ledger.EntryPending {
		t.Errorf("expected pending, got %s", result.Outcome)
	}
	if result.Rejections != 2 {
		t.Errorf("expected 2 rejections, got %d", result.Rejections)
	}
}

func TestApprovalGate_Tally_MajorityFunderVeto(t *testing.T) {
	// GIVEN: p-1 holds 75% of contributions against a 70% veto threshold,
	//        and everyone else approves
	// WHEN: p-1 votes reject
	// THEN: Rejected by veto regardless of the approve count

	pool := newTestPool(4)
	pool.Rules.VetoContributionPercentage = 70
	mustAppend(t, pool, postedEntry(1, "p-1", ledger.KindContribution, 75_000))
	mustAppend(t, pool, postedEntry(2, "p-2", ledger.KindContribution, 25_000))

	entry := pendingWithdrawal(5_000)
	votes := []ledger.Vote{
		vote(1, "p-2", ledger.VoteApprove, testEpoch.Add(time.Minute)),
		vote(2, "p-3", ledger.VoteApprove, testEpoch.Add(time.Minute)),
		vote(3, "p-4", ledger.VoteApprove, testEpoch.Add(time.Minute)),
		vote(4, "p-1", ledger.VoteReject, testEpoch.Add(2*time.Minute)),
	}

	var gate ledger.ApprovalGate
	result, err := gate.Tally(pool, entry, votes, testEpoch.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Outcome != ledger.EntryRejected {
		t.Errorf("expected rejected, got %s", result.Outcome)
	}
	if result.VetoedBy == nil || *result.VetoedBy != "p-1" {
		t.Errorf("expected veto by p-1, got %v", result.VetoedBy)
	}
}

func TestApprovalGate_Tally_VetoRequiresStrictMajorityShare(t *testing.T) {
	// GIVEN: A rejector holding exactly the veto percentage
	// WHEN: Tallying
	// THEN: No veto; the share must strictly exceed the threshold

	pool := newTestPool(2)
	pool.Rules.VetoContributionPercentage = 70
	pool.Rules.WithdrawalApprovalPercentage = 100
	mustAppend(t, pool, postedEntry(1, "p-1", ledger.KindContribution, 70_000))
	mustAppend(t, pool, postedEntry(2, "p-2", ledger.KindContribution, 30_000))

	entry := pendingWithdrawal(5_000)
	votes := []ledger.Vote{
		vote(1, "p-1", ledger.VoteReject, testEpoch.Add(time.Minute)),
	}

	var gate ledger.ApprovalGate
	result, err := gate.Tally(pool, entry, votes, testEpoch.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.VetoedBy != nil {
		t.Errorf("expected no veto at exactly 70%%, got veto by %s", *result.VetoedBy)
	}
	if result.Outcome != ledger.EntryPending {
		t.Errorf("expected pending, got %s", result.Outcome)
	}
}

func TestApprovalGate_Tally_NoVetoWithoutContributions(t *testing.T) {
	// GIVEN: An empty log, so total contributions are zero
	// WHEN: Anyone votes reject
	// THEN: No veto; a share of nothing vetoes nothing

	pool := newTestPool(2)
	entry := pendingWithdrawal(5_000)
	votes := []ledger.Vote{vote(1, "p-1", ledger.VoteReject, testEpoch.Add(time.Minute))}

	var gate ledger.ApprovalGate
	result, err := gate.Tally(pool, entry, votes, testEpoch.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.VetoedBy != nil {
		t.Error("expected no veto with zero total contributions")
	}
}

func TestApprovalGate_Tally_DeadlineExpiryRejects(t *testing.T) {
	// GIVEN: Insufficient approvals and the deadline passed
	// WHEN: Tallying at the deadline
	// THEN: Rejected without a veto

	pool := newTestPool(3)
	entry := pendingWithdrawal(5_000)
	votes := []ledger.Vote{vote(1, "p-1", ledger.VoteApprove, testEpoch.Add(time.Minute))}

	var gate ledger.ApprovalGate
	result, err := gate.Tally(pool, entry, votes, entry.VoteDeadline)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != ledger.EntryRejected {
		t.Errorf("expected rejected, got %s", result.Outcome)
	}
	if result.VetoedBy != nil {
		t.Error("expiry rejection must not carry a vetoer")
	}
}

func TestApprovalGate_Tally_ThresholdMetAtExpiryApproves(t *testing.T) {
	// GIVEN: The threshold already met when the deadline passes
	// WHEN: Tallying after the deadline
	// THEN: Approved; expiry only rejects entries short of approval

	pool := newTestPool(3)
	pool.Rules.WithdrawalApprovalPercentage = 51
	entry := pendingWithdrawal(5_000)

	votes := []ledger.Vote{
		vote(1, "p-1", ledger.VoteApprove, testEpoch.Add(time.Minute)),
		vote(2, "p-2", ledger.VoteApprove, testEpoch.Add(2*time.Minute)),
	}

	var gate ledger.ApprovalGate
	result, err := gate.Tally(pool, entry, votes, entry.VoteDeadline.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != ledger.EntryApproved {
		t.Errorf("expected approved, got %s", result.Outcome)
	}
}

func TestApprovalGate_Tally_TerminalEntryFails(t *testing.T) {
	pool := newTestPool(2)
	entry := pendingWithdrawal(5_000)
	entry.Status = ledger.EntryRejected

	var gate ledger.ApprovalGate
	if _, err := gate.Tally(pool, entry, nil, testEpoch); !errors.Is(err, ledger.ErrVotingClosed) {
		t.Fatalf("expected ErrVotingClosed, got %v", err)
	}
}

func TestApprovalGate_Tally_ExitedVotersAreIgnored(t *testing.T) {
	// GIVEN: A vote cast by a participant who then exited
	// WHEN: Tallying
	// THEN: Their vote no longer counts, nor do they count as eligible

	pool := newTestPool(3)
	pool.Rules.WithdrawalApprovalPercentage = 51
	entry := pendingWithdrawal(5_000)

	votes := []ledger.Vote{
		vote(1, "p-3", ledger.VoteApprove, testEpoch.Add(time.Minute)),
		vote(2, "p-1", ledger.VoteApprove, testEpoch.Add(2*time.Minute)),
	}
	pool.Participants[2].Status = ledger.ParticipantExited

	var gate ledger.ApprovalGate
	result, err := gate.Tally(pool, entry, votes, testEpoch.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.EligibleVoters != 2 {
		t.Errorf("expected 2 eligible, got %d", result.EligibleVoters)
	}
	if result.Approvals != 1 {
		t.Errorf("expected 1 approval, got %d", result.Approvals)
	}
}

// =============================================================================
// EFFECTIVE VOTES
// =============================================================================

func TestEffectiveVotes_LastWriteWins(t *testing.T) {
	// GIVEN: A participant who approved, then changed to reject
	// WHEN: Reducing to effective votes
	// THEN: Only the later reject remains

	votes := []ledger.Vote{
		vote(1, "p-1", ledger.VoteApprove, testEpoch.Add(time.Minute)),
		vote(2, "p-1", ledger.VoteReject, testEpoch.Add(2*time.Minute)),
	}

	effective := ledger.EffectiveVotes(votes)
	if len(effective) != 1 {
		t.Fatalf("expected 1 effective vote, got %d", len(effective))
	}
	if effective["p-1"].Choice != ledger.VoteReject {
		t.Errorf("expected reject to win, got %s", effective["p-1"].Choice)
	}
}

func TestEffectiveVotes_EqualTimestampsBreakOnID(t *testing.T) {
	// GIVEN: Two votes with identical CastAt, presented in both orders
	// WHEN: Reducing to effective votes
	// THEN: The higher vote ID wins regardless of input order

	a := vote(1, "p-1", ledger.VoteApprove, testEpoch)
	b := vote(2, "p-1", ledger.VoteReject, testEpoch)

	for _, order := range [][]ledger.Vote{{a, b}, {b, a}} {
		effective := ledger.EffectiveVotes(order)
		if effective["p-1"].ID != "v-2" {
			t.Errorf("expected v-2 to win, got %s", effective["p-1"].ID)
		}
	}
}
