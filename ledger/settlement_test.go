package ledger_test

import (
	"errors"
	"testing"

	"github.com/lavaca/ledger-engine/ledger"
)

// =============================================================================
// BALANCES
// =============================================================================

func TestSettlement_ComputeBalances(t *testing.T) {
	// GIVEN: Two contributors and one shared expense
	// WHEN: Computing balances
	// THEN: Each participant's net is the signed sum of their own entries

	pool := newTestPool(3)
	mustAppend(t, pool, postedEntry(1, "p-1", ledger.KindContribution, 60_000))
	mustAppend(t, pool, postedEntry(2, "p-2", ledger.KindContribution, 20_000))
	mustAppend(t, pool, postedEntry(3, "p-1", ledger.KindExpense, -10_000))

	var engine ledger.SettlementEngine
	balances := engine.ComputeBalances(pool)

	if got := balances["p-1"].Amount; got != 50_000 {
		t.Errorf("p-1: expected 50000, got %d", got)
	}
	if got := balances["p-2"].Amount; got != 20_000 {
		t.Errorf("p-2: expected 20000, got %d", got)
	}
	if got := balances["p-3"].Amount; got != 0 {
		t.Errorf("p-3: expected 0, got %d", got)
	}
}

func TestSettlement_ComputeBalances_Idempotent(t *testing.T) {
	// GIVEN: A fixed snapshot
	// WHEN: Computing balances twice
	// THEN: Identical results, no snapshot mutation

	pool := newTestPool(2)
	mustAppend(t, pool, postedEntry(1, "p-1", ledger.KindContribution, 1_234))
	mustAppend(t, pool, postedEntry(2, "p-2", ledger.KindContribution, 5_678))

	var engine ledger.SettlementEngine
	first := engine.ComputeBalances(pool)
	second := engine.ComputeBalances(pool)

	for id, b := range first {
		if second[id].Amount != b.Amount {
			t.Errorf("%s: first run %d, second run %d", id, b.Amount, second[id].Amount)
		}
	}
	if len(pool.Entries) != 2 {
		t.Errorf("snapshot mutated: %d entries", len(pool.Entries))
	}
}

func TestSettlement_ComputeContributions_IgnoresOtherKinds(t *testing.T) {
	pool := newTestPool(1)
	mustAppend(t, pool, postedEntry(1, "p-1", ledger.KindContribution, 10_000))
	mustAppend(t, pool, postedEntry(2, "p-1", ledger.KindExpense, -4_000))
	mustAppend(t, pool, postedEntry(3, "p-1", ledger.KindRefund, 4_000))

	var engine ledger.SettlementEngine
	if got := engine.ComputeContributions(pool)["p-1"].Amount; got != 10_000 {
		t.Errorf("expected 10000, got %d", got)
	}
}

// =============================================================================
// EXIT SETTLEMENT
// =============================================================================

func TestSettlement_Exit_PenaltyApplied(t *testing.T) {
	// GIVEN: A $600.00 contribution and a 10% exit penalty
	// WHEN: Computing the exit settlement
	// THEN: Penalty $60.00, refund $540.00, and refund+penalty == contribution

	pool := newTestPool(2)
	pool.Rules.ExitPenaltyPercentage = 10
	mustAppend(t, pool, postedEntry(1, "p-2", ledger.KindContribution, 60_000))

	var engine ledger.SettlementEngine
	s, err := engine.ComputeExitSettlement(pool, "p-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.Penalty.Amount != 6_000 {
		t.Errorf("expected penalty 6000, got %d", s.Penalty.Amount)
	}
	if s.Refund.Amount != 54_000 {
		t.Errorf("expected refund 54000, got %d", s.Refund.Amount)
	}
	if s.Refund.Amount+s.Penalty.Amount != s.Contribution.Amount {
		t.Errorf("refund %d + penalty %d != contribution %d",
			s.Refund.Amount, s.Penalty.Amount, s.Contribution.Amount)
	}
}

func TestSettlement_Exit_RefundBound(t *testing.T) {
	// GIVEN: Every penalty percentage from 0 to 100
	// WHEN: Computing the exit settlement
	// THEN: 0 <= refund <= contribution, always

	pool := newTestPool(1)
	mustAppend(t, pool, postedEntry(1, "p-1", ledger.KindContribution, 33_333))

	var engine ledger.SettlementEngine
	for pct := int64(0); pct <= 100; pct++ {
		pool.Rules.ExitPenaltyPercentage = pct
		s, err := engine.ComputeExitSettlement(pool, "p-1")
		if err != nil {
			t.Fatalf("pct %d: unexpected error: %v", pct, err)
		}
		if s.Refund.Amount < 0 || s.Refund.Amount > s.Contribution.Amount {
			t.Errorf("pct %d: refund %d outside [0, %d]", pct, s.Refund.Amount, s.Contribution.Amount)
		}
	}
}

func TestSettlement_Exit_ZeroContribution(t *testing.T) {
	pool := newTestPool(2)
	pool.Rules.ExitPenaltyPercentage = 10

	var engine ledger.SettlementEngine
	s, err := engine.ComputeExitSettlement(pool, "p-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Refund.Amount != 0 || s.Penalty.Amount != 0 {
		t.Errorf("expected zero settlement, got refund %d penalty %d", s.Refund.Amount, s.Penalty.Amount)
	}
}

func TestSettlement_Exit_ForbiddenByPolicy(t *testing.T) {
	pool := newTestPool(2)
	pool.Rules.ExitPolicy = ledger.ExitForbidden

	var engine ledger.SettlementEngine
	if _, err := engine.ComputeExitSettlement(pool, "p-2"); !errors.Is(err, ledger.ErrExitNotAllowed) {
		t.Fatalf("expected ErrExitNotAllowed, got %v", err)
	}
}

func TestSettlement_Exit_UnknownParticipant(t *testing.T) {
	pool := newTestPool(1)

	var engine ledger.SettlementEngine
	if _, err := engine.ComputeExitSettlement(pool, "ghost"); !errors.Is(err, ledger.ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}
}

// =============================================================================
// PROPORTIONAL SHARE
// =============================================================================

func TestSettlement_ProportionalShare_ByContribution(t *testing.T) {
	// GIVEN: Contributions of $300.00 and $100.00
	// WHEN: Splitting $40.00
	// THEN: $30.00 / $10.00, conserving the total

	pool := newTestPool(2)
	mustAppend(t, pool, postedEntry(1, "p-1", ledger.KindContribution, 30_000))
	mustAppend(t, pool, postedEntry(2, "p-2", ledger.KindContribution, 10_000))

	var engine ledger.SettlementEngine
	shares, err := engine.ComputeProportionalShare(pool, ledger.NewMoney(4_000, ledger.MXN))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if shares["p-1"].Amount != 3_000 || shares["p-2"].Amount != 1_000 {
		t.Errorf("expected 3000/1000, got %d/%d", shares["p-1"].Amount, shares["p-2"].Amount)
	}
}

func TestSettlement_ProportionalShare_EqualFallback(t *testing.T) {
	// GIVEN: The only contributor has exited; three active members with no
	//        contributions remain
	// WHEN: Splitting $30.00
	// THEN: The split is equal, $10.00 each

	pool := newTestPool(4)
	mustAppend(t, pool, postedEntry(1, "p-4", ledger.KindContribution, 10_000))
	pool.Participants[3].Status = ledger.ParticipantExited

	var engine ledger.SettlementEngine
	shares, err := engine.ComputeProportionalShare(pool, ledger.NewMoney(3_000, ledger.MXN))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(shares) != 3 {
		t.Fatalf("expected 3 shares, got %d", len(shares))
	}
	for _, id := range []ledger.ParticipantID{"p-1", "p-2", "p-3"} {
		if shares[id].Amount != 1_000 {
			t.Errorf("%s: expected 1000, got %d", id, shares[id].Amount)
		}
	}
	if _, ok := shares["p-4"]; ok {
		t.Error("exited participant must not receive a share")
	}
}

func TestSettlement_ProportionalShare_ConservesTotal(t *testing.T) {
	// GIVEN: Weights that do not divide the total evenly
	// WHEN: Splitting across three participants
	// THEN: Shares sum to the total exactly

	pool := newTestPool(3)
	mustAppend(t, pool, postedEntry(1, "p-1", ledger.KindContribution, 7))
	mustAppend(t, pool, postedEntry(2, "p-2", ledger.KindContribution, 11))
	mustAppend(t, pool, postedEntry(3, "p-3", ledger.KindContribution, 13))

	var engine ledger.SettlementEngine
	total := ledger.NewMoney(10_001, ledger.MXN)
	shares, err := engine.ComputeProportionalShare(pool, total)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sum int64
	for _, s := range shares {
		sum += s.Amount
	}
	if sum != total.Amount {
		t.Errorf("shares sum to %d, expected %d", sum, total.Amount)
	}
}

func TestSettlement_ProportionalShare_NoActiveParticipants(t *testing.T) {
	pool := newTestPool(1)
	pool.Participants[0].Status = ledger.ParticipantExited

	var engine ledger.SettlementEngine
	if _, err := engine.ComputeProportionalShare(pool, ledger.NewMoney(100, ledger.MXN)); !errors.Is(err, ledger.ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}
}

func TestSettlement_ProportionalShare_CurrencyMismatch(t *testing.T) {
	pool := newTestPool(1)

	var engine ledger.SettlementEngine
	if _, err := engine.ComputeProportionalShare(pool, ledger.NewMoney(100, ledger.USD)); !errors.Is(err, ledger.ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
	}
}
