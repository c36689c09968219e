/*
Package factory provides JSON to Go rules conversion.

PURPOSE:
  Converts JSON rule definitions into ledger.Rules objects. This enables
  pool configuration without code changes - organizers can define rule
  sets in JSON, and the factory creates the proper Go structs.

WHY JSON?
  - Non-developers can modify rule sets
  - Easy integration with admin UI
  - Version control for rule definitions
  - Database storage of rule configs

JSON SCHEMA:
  {
    "exit_policy": "allowed",
    "exit_penalty_percentage": 10,
    "exit_notice_days": 7,
    "withdrawal_approval_percentage": 51,
    "major_changes_approval_percentage": 66,
    "veto_contribution_percentage": 70,
    "allow_overfunding": false,
    "refund_on_failure": true
  }

KEY FEATURES:
  - Validates parsed rules before returning them
  - Fills omitted fields with defaults
  - Ships named presets for common pool styles

USAGE:
  factory := NewRulesFactory()

  // From JSON string
  rules, err := factory.ParseRules(jsonString)

  // From a named preset
  rules, err := factory.Preset("strict")

SEE ALSO:
  - ledger/rules.go: Rules type definition and validation
*/
package factory

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/lavaca/ledger-engine/ledger"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RulesJSON is the JSON representation of a rule set. Pointer fields
// distinguish "omitted, use default" from an explicit zero.
type RulesJSON struct {
	ExitPolicy                     string `json:"exit_policy,omitempty"`
	ExitPenaltyPercentage          *int64 `json:"exit_penalty_percentage,omitempty"`
	ExitNoticeDays                 *int   `json:"exit_notice_days,omitempty"`
	WithdrawalApprovalPercentage   *int64 `json:"withdrawal_approval_percentage,omitempty"`
	MajorChangesApprovalPercentage *int64 `json:"major_changes_approval_percentage,omitempty"`
	VetoContributionPercentage     *int64 `json:"veto_contribution_percentage,omitempty"`
	AllowOverfunding               *bool  `json:"allow_overfunding,omitempty"`
	RefundOnFailure                *bool  `json:"refund_on_failure,omitempty"`
}

// =============================================================================
// RULES FACTORY
// =============================================================================

// RulesFactory converts JSON rule sets to Go structs.
type RulesFactory struct{}

// NewRulesFactory creates a new rules factory.
func NewRulesFactory() *RulesFactory {
	return &RulesFactory{}
}

// ParseRules parses a JSON string into validated Rules.
func (f *RulesFactory) ParseRules(jsonStr string) (ledger.Rules, error) {
	var rj RulesJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return ledger.Rules{}, fmt.Errorf("failed to parse rules JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// FromJSON converts RulesJSON to Rules, filling omitted fields with defaults.
func (f *RulesFactory) FromJSON(rj RulesJSON) (ledger.Rules, error) {
	rules := ledger.DefaultRules()

	switch rj.ExitPolicy {
	case "":
		// keep default
	case "allowed":
		rules.ExitPolicy = ledger.ExitAllowed
	case "cannot_exit":
		rules.ExitPolicy = ledger.ExitForbidden
	default:
		return ledger.Rules{}, fmt.Errorf("%w: unknown exit_policy %q", ledger.ErrInvalidRules, rj.ExitPolicy)
	}

	if rj.ExitPenaltyPercentage != nil {
		rules.ExitPenaltyPercentage = *rj.ExitPenaltyPercentage
	}
	if rj.ExitNoticeDays != nil {
		rules.ExitNoticeDays = *rj.ExitNoticeDays
	}
	if rj.WithdrawalApprovalPercentage != nil {
		rules.WithdrawalApprovalPercentage = *rj.WithdrawalApprovalPercentage
	}
	if rj.MajorChangesApprovalPercentage != nil {
		rules.MajorChangesApprovalPercentage = *rj.MajorChangesApprovalPercentage
	}
	if rj.VetoContributionPercentage != nil {
		rules.VetoContributionPercentage = *rj.VetoContributionPercentage
	}
	if rj.AllowOverfunding != nil {
		rules.AllowOverfunding = *rj.AllowOverfunding
	}
	if rj.RefundOnFailure != nil {
		rules.RefundOnFailure = *rj.RefundOnFailure
	}

	if err := rules.Validate(); err != nil {
		return ledger.Rules{}, err
	}
	return rules, nil
}

// ToJSON converts Rules back to their JSON representation.
func (f *RulesFactory) ToJSON(rules ledger.Rules) RulesJSON {
	policy := "allowed"
	if rules.ExitPolicy == ledger.ExitForbidden {
		policy = "cannot_exit"
	}
	return RulesJSON{
		ExitPolicy:                     policy,
		ExitPenaltyPercentage:          &rules.ExitPenaltyPercentage,
		ExitNoticeDays:                 &rules.ExitNoticeDays,
		WithdrawalApprovalPercentage:   &rules.WithdrawalApprovalPercentage,
		MajorChangesApprovalPercentage: &rules.MajorChangesApprovalPercentage,
		VetoContributionPercentage:     &rules.VetoContributionPercentage,
		AllowOverfunding:               &rules.AllowOverfunding,
		RefundOnFailure:                &rules.RefundOnFailure,
	}
}

// =============================================================================
// PRESET RULE SETS
// =============================================================================

var presets = map[string]string{
	// Balanced defaults for a friends-and-family pool.
	"default": `{}`,

	// Locked-in pool: no exits, unanimous-leaning approvals, strict goal.
	"strict": `{
		"exit_policy": "cannot_exit",
		"withdrawal_approval_percentage": 75,
		"major_changes_approval_percentage": 80,
		"veto_contribution_percentage": 50,
		"allow_overfunding": false,
		"refund_on_failure": true
	}`,

	// Casual pool: cheap exits, simple majority, overfunding welcome.
	"flexible": `{
		"exit_policy": "allowed",
		"exit_penalty_percentage": 5,
		"exit_notice_days": 3,
		"withdrawal_approval_percentage": 51,
		"veto_contribution_percentage": 90,
		"allow_overfunding": true,
		"refund_on_failure": true
	}`,
}

// Preset returns the named preset rule set.
func (f *RulesFactory) Preset(name string) (ledger.Rules, error) {
	jsonStr, ok := presets[name]
	if !ok {
		return ledger.Rules{}, fmt.Errorf("%w: unknown preset %q", ledger.ErrInvalidRules, name)
	}
	return f.ParseRules(jsonStr)
}

// Presets lists the available preset names in stable order.
func (f *RulesFactory) Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
