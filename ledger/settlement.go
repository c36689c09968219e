/*
settlement.go - Pure settlement computation over a pool snapshot

PURPOSE:
  Answers the money questions of the domain: what is each participant's
  balance, what does a leaver get back, how does an amount split across the
  group. Every function here is a pure function of the snapshot it is
  given: no mutation, no I/O, no clock, no hidden state. Calling twice on
  the same snapshot yields identical results.

WHY PURE?
  The application that grew this engine scattered settlement math across
  services and half-finished UI handlers, with the authoritative version
  living on a backend nobody could test. Pulling the computation into a
  side-effect-free core makes every invariant testable in-process.

EXIT SETTLEMENT:
  refund = contribution - penalty, where
  penalty = contribution * exitPenaltyPercentage / 100 (banker's rounding)
  and the refund is floored at zero. Computing a settlement does NOT post
  anything; the caller appends the payout entry after confirmation.

SEE ALSO:
  - pool.go: The per-participant balance primitives
  - money.go: Allocate, the conserving split
*/
package ledger

// =============================================================================
// SETTLEMENT ENGINE
// =============================================================================

// SettlementEngine computes balances, exit settlements, and proportional
// shares from pool snapshots. It is stateless; the zero value is ready to
// use and safe to share.
type SettlementEngine struct{}

// ComputeBalances returns every participant's net balance in a single pass
// over the log. Participants without entries map to zero.
func (SettlementEngine) ComputeBalances(pool *Pool) map[ParticipantID]Money {
	balances := make(map[ParticipantID]Money, len(pool.Participants))
	for _, m := range pool.Participants {
		balances[m.ID] = NewMoney(0, pool.Currency())
	}
	for _, e := range pool.Entries {
		b := balances[e.ParticipantID]
		b.Currency = pool.Currency()
		b.Amount += e.Amount.Amount
		balances[e.ParticipantID] = b
	}
	return balances
}

// ComputeContributions is ComputeBalances restricted to contribution
// entries. These are the weights for exits and proportional shares.
func (SettlementEngine) ComputeContributions(pool *Pool) map[ParticipantID]Money {
	contributions := make(map[ParticipantID]Money, len(pool.Participants))
	for _, m := range pool.Participants {
		contributions[m.ID] = NewMoney(0, pool.Currency())
	}
	for _, e := range pool.Entries {
		if e.Kind != KindContribution {
			continue
		}
		c := contributions[e.ParticipantID]
		c.Currency = pool.Currency()
		c.Amount += e.Amount.Amount
		contributions[e.ParticipantID] = c
	}
	return contributions
}

// =============================================================================
// EXIT SETTLEMENT
// =============================================================================

// ExitSettlement is what a leaving participant is owed and what the pool
// retains. Refund + Penalty equals the participant's contribution unless
// the refund was floored at zero.
type ExitSettlement struct {
	ParticipantID ParticipantID
	Contribution  Money
	Penalty       Money
	Refund        Money
}

// ComputeExitSettlement determines the refund and penalty for a participant
// leaving the pool. Deterministic and idempotent; posting the payout is the
// caller's separate, explicit step.
func (se SettlementEngine) ComputeExitSettlement(pool *Pool, id ParticipantID) (ExitSettlement, error) {
	if pool.Rules.ExitPolicy == ExitForbidden {
		return ExitSettlement{}, ErrExitNotAllowed
	}
	if _, err := pool.Participant(id); err != nil {
		return ExitSettlement{}, err
	}

	contribution := pool.ContributionBalance(id)
	penalty := contribution.MultiplyByRatio(pool.Rules.ExitPenaltyPercentage, 100)
	refund, err := contribution.Sub(penalty)
	if err != nil {
		return ExitSettlement{}, err
	}
	if refund.IsNegative() {
		refund = refund.Zero()
	}

	return ExitSettlement{
		ParticipantID: id,
		Contribution:  contribution,
		Penalty:       penalty,
		Refund:        refund,
	}, nil
}

// =============================================================================
// PROPORTIONAL SHARE
// =============================================================================

// ComputeProportionalShare splits totalAmount across the active
// participants in proportion to their contribution balances. When nobody
// has contributed (all weights zero) the split is equal. The shares always
// sum to totalAmount exactly; the rounding remainder goes to the first
// active participant by JoinedAt.
func (se SettlementEngine) ComputeProportionalShare(pool *Pool, totalAmount Money) (map[ParticipantID]Money, error) {
	if totalAmount.Currency != pool.Currency() {
		return nil, &CurrencyMismatchError{Left: pool.Currency(), Right: totalAmount.Currency}
	}
	active := pool.ActiveParticipants()
	if len(active) == 0 {
		return nil, ErrParticipantNotFound
	}

	contributions := se.ComputeContributions(pool)

	weights := make([]int64, len(active))
	var totalWeight int64
	for i, m := range active {
		w := contributions[m.ID].Amount
		if w < 0 {
			w = 0 // compensated contributions never produce negative weight
		}
		weights[i] = w
		totalWeight += w
	}
	if totalWeight == 0 {
		// Equal-weight fallback: nobody has contributed yet.
		for i := range weights {
			weights[i] = 1
		}
	}

	shares, err := totalAmount.Allocate(weights)
	if err != nil {
		return nil, err
	}

	result := make(map[ParticipantID]Money, len(active))
	for i, m := range active {
		result[m.ID] = shares[i]
	}
	return result, nil
}
