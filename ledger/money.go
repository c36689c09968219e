/*
Package ledger provides the core settlement engine for pooled savings funds.

PURPOSE:
  This package contains the types and algorithms that make a "vaca" (pooled
  fund) auditable: exact money arithmetic, an immutable entry log, balance
  and settlement computation, and the approval state machine that gates
  withdrawals.

KEY CONCEPTS IN THIS FILE (money.go):
  - Money: An integer minor-unit amount (cents) with a currency code
  - Ratio multiplication with banker's rounding
  - Conserving allocation for proportional splits

DESIGN PRINCIPLES:
  1. Exactness: All currency arithmetic is integer minor units. Floats and
     decimal division never touch an amount that represents money.
  2. Conservation: Splitting an amount always reproduces it exactly; the
     rounding remainder is assigned to a deterministic recipient.
  3. Currency safety: Mixing currencies is an error, never a coercion.

USAGE:
  goal := ledger.NewMoney(100_000, ledger.MXN) // $1000.00 MXN
  half := goal.MultiplyByRatio(1, 2)
  sum, err := half.Add(half) // == goal

SEE ALSO:
  - entry.go: Signed amounts on ledger entries
  - settlement.go: Proportional shares built on Allocate
*/
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CURRENCY
// =============================================================================

type Currency string

const (
	MXN Currency = "MXN"
	USD Currency = "USD"
	EUR Currency = "EUR"
	COP Currency = "COP"
)

// =============================================================================
// MONEY - Integer minor units + currency
// =============================================================================

// Money is an exact amount in minor units (cents).
// $10.50 MXN is Money{Amount: 1050, Currency: MXN}.
type Money struct {
	Amount   int64
	Currency Currency
}

func NewMoney(minorUnits int64, currency Currency) Money {
	return Money{Amount: minorUnits, Currency: currency}
}

// Zero returns the zero amount in this Money's currency.
func (m Money) Zero() Money { return Money{Amount: 0, Currency: m.Currency} }

func (m Money) IsZero() bool     { return m.Amount == 0 }
func (m Money) IsNegative() bool { return m.Amount < 0 }
func (m Money) IsPositive() bool { return m.Amount > 0 }

func (m Money) Neg() Money { return Money{Amount: -m.Amount, Currency: m.Currency} }

// Add returns m + other. Fails with CurrencyMismatchError on differing currencies.
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Sub returns m - other. Fails with CurrencyMismatchError on differing currencies.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// Compare returns -1, 0, or 1. Fails with CurrencyMismatchError on differing
// currencies: ordering across currencies is undefined.
func (m Money) Compare(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}
	switch {
	case m.Amount < other.Amount:
		return -1, nil
	case m.Amount > other.Amount:
		return 1, nil
	default:
		return 0, nil
	}
}

// MultiplyByRatio returns m * num/den rounded to a whole minor unit with
// banker's rounding (round half to even). The result is deterministic: the
// same inputs always produce the same amount. den must be non-zero.
//
// The intermediate product is computed in decimal to avoid int64 overflow;
// the final amount is always a whole number of minor units.
func (m Money) MultiplyByRatio(num, den int64) Money {
	if den == 0 {
		panic("ledger: MultiplyByRatio with zero denominator")
	}
	v := decimal.NewFromInt(m.Amount).
		Mul(decimal.NewFromInt(num)).
		Div(decimal.NewFromInt(den)).
		RoundBank(0)
	return Money{Amount: v.IntPart(), Currency: m.Currency}
}

// Allocate splits m across len(weights) slots in proportion to the weights.
// Each slot gets the floor of its exact share; the rounding remainder goes
// entirely to the first slot, so the returned amounts always sum to m
// exactly. Callers order recipients deterministically (first by JoinedAt)
// before allocating.
//
// All weights must be non-negative and at least one must be positive.
func (m Money) Allocate(weights []int64) ([]Money, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("ledger: allocate %v across zero slots", m)
	}
	var totalWeight int64
	for _, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("ledger: negative allocation weight %d", w)
		}
		totalWeight += w
	}
	if totalWeight == 0 {
		return nil, fmt.Errorf("ledger: all allocation weights are zero")
	}

	total := decimal.NewFromInt(m.Amount)
	weightSum := decimal.NewFromInt(totalWeight)

	shares := make([]Money, len(weights))
	var assigned int64
	for i, w := range weights {
		share := total.Mul(decimal.NewFromInt(w)).Div(weightSum).Floor().IntPart()
		shares[i] = Money{Amount: share, Currency: m.Currency}
		assigned += share
	}

	// Remainder to the first slot: conservation over fairness.
	shares[0].Amount += m.Amount - assigned
	return shares, nil
}

// Ratio returns m/denominator as an exact-enough decimal for display and
// progress reporting. This is NOT money: never feed the result back into
// an amount. denominator must be non-zero.
func (m Money) Ratio(denominator Money) decimal.Decimal {
	if denominator.Amount == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(m.Amount).Div(decimal.NewFromInt(denominator.Amount))
}

// Decimal returns the amount in major units (e.g. cents -> pesos) for
// display. Display only, same caveat as Ratio.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -2)
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Decimal().StringFixed(2), m.Currency)
}

func (m Money) sameCurrency(other Money) error {
	if m.Currency != other.Currency {
		return &CurrencyMismatchError{Left: m.Currency, Right: other.Currency}
	}
	return nil
}
