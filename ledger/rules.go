package ledger

import "fmt"

// =============================================================================
// RULES - Pool governance configuration
// =============================================================================

// ExitPolicy controls whether participants may leave a pool before its
// deadline.
type ExitPolicy string

const (
	// ExitAllowed lets participants exit, subject to the penalty percentage
	// and notice period.
	ExitAllowed ExitPolicy = "allowed"

	// ExitForbidden locks participants in until the pool completes.
	ExitForbidden ExitPolicy = "cannot_exit"
)

// Rules are attached to a pool at creation and mutated only by the admin.
// A rule change never retroactively affects already-posted entries.
type Rules struct {
	ExitPolicy            ExitPolicy
	ExitPenaltyPercentage int64 // 0-100, applied to contributions on exit
	ExitNoticeDays        int   // >= 0, days between exit request and payout

	WithdrawalApprovalPercentage   int64 // 0-100, share of eligible voters that must approve
	MajorChangesApprovalPercentage int64 // 0-100, reserved for vote-gated rule changes

	// A rejector whose contribution share exceeds this percentage forces
	// rejection regardless of the tally.
	VetoContributionPercentage int64

	AllowOverfunding bool // contributions may exceed the goal
	RefundOnFailure  bool // proportional refunds if the deadline passes short of goal
}

// DefaultRules matches the behavior most pools want: exits allowed with a
// 10% penalty and a week's notice, simple majority for withdrawals.
func DefaultRules() Rules {
	return Rules{
		ExitPolicy:                     ExitAllowed,
		ExitPenaltyPercentage:          10,
		ExitNoticeDays:                 7,
		WithdrawalApprovalPercentage:   51,
		MajorChangesApprovalPercentage: 66,
		VetoContributionPercentage:     70,
		AllowOverfunding:               true,
		RefundOnFailure:                true,
	}
}

// Validate checks all percentages and day counts are in range.
func (r Rules) Validate() error {
	if r.ExitPolicy != ExitAllowed && r.ExitPolicy != ExitForbidden {
		return fmt.Errorf("%w: unknown exit policy %q", ErrInvalidRules, r.ExitPolicy)
	}
	for name, pct := range map[string]int64{
		"exit_penalty_percentage":           r.ExitPenaltyPercentage,
		"withdrawal_approval_percentage":    r.WithdrawalApprovalPercentage,
		"major_changes_approval_percentage": r.MajorChangesApprovalPercentage,
		"veto_contribution_percentage":      r.VetoContributionPercentage,
	} {
		if pct < 0 || pct > 100 {
			return fmt.Errorf("%w: %s must be 0-100, got %d", ErrInvalidRules, name, pct)
		}
	}
	if r.ExitNoticeDays < 0 {
		return fmt.Errorf("%w: exit_notice_days must be >= 0, got %d", ErrInvalidRules, r.ExitNoticeDays)
	}
	return nil
}
