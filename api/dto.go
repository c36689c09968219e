/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY IN THE API:
  Amounts cross the wire as integer minor units plus a currency code.
  Formatted strings (e.g. "150.00") appear only in display fields.

VALIDATION:
  Request types carry validator struct tags; BindAndValidate in validate.go
  decodes and checks them before a handler sees the value.

SEE ALSO:
  - handlers.go: Uses these types
  - validate.go: Decode + validation helper
  - factory/rules.go: RulesJSON type
*/
package api

import (
	"time"

	"github.com/lavaca/ledger-engine/factory"
	"github.com/lavaca/ledger-engine/ledger"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreatePoolRequest creates a pool with its rules and first admin.
type CreatePoolRequest struct {
	Name         string              `json:"name" validate:"required,max=120"`
	GoalAmount   int64               `json:"goal_amount" validate:"required,gt=0"`
	Currency     string              `json:"currency" validate:"required,len=3"`
	Deadline     time.Time           `json:"deadline" validate:"required"`
	Color        string              `json:"color,omitempty"`
	CreatorName  string              `json:"creator_name" validate:"required,max=120"`
	CreatorEmail string              `json:"creator_email" validate:"required,email"`
	Rules        *factory.RulesJSON  `json:"rules,omitempty"`
	RulesPreset  string              `json:"rules_preset,omitempty"`
}

// UpdateRulesRequest replaces the pool rules. Admin only.
type UpdateRulesRequest struct {
	ActorID string            `json:"actor_id" validate:"required"`
	Rules   factory.RulesJSON `json:"rules"`
}

// InviteRequest invites a participant by email.
type InviteRequest struct {
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"required,email"`
}

// AcceptInvitationRequest links a registered user to an invitation.
type AcceptInvitationRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// RemoveParticipantRequest names the acting admin.
type RemoveParticipantRequest struct {
	ActorID string `json:"actor_id" validate:"required"`
}

// ContributeRequest posts a contribution. Amount is positive minor units.
type ContributeRequest struct {
	ParticipantID string `json:"participant_id" validate:"required"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	Description   string `json:"description,omitempty" validate:"max=500"`
}

// WithdrawalRequest opens a pending withdrawal for voting.
type WithdrawalRequest struct {
	ParticipantID string `json:"participant_id" validate:"required"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	Description   string `json:"description,omitempty" validate:"max=500"`
}

// ExpenseRequest opens a pending expense for voting.
type ExpenseRequest struct {
	ParticipantID string `json:"participant_id" validate:"required"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	Description   string `json:"description,omitempty" validate:"max=500"`
	Category      string `json:"category,omitempty" validate:"max=60"`
}

// CastVoteRequest records one participant's vote on a pending entry.
type CastVoteRequest struct {
	ParticipantID string `json:"participant_id" validate:"required"`
	Choice        string `json:"choice" validate:"required,oneof=approve reject"`
	Reason        string `json:"reason,omitempty" validate:"max=500"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// MoneyDTO is the wire form of an amount.
type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}

// PoolDTO represents a pool in API responses.
type PoolDTO struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	GoalAmount   MoneyDTO          `json:"goal_amount"`
	Reserve      MoneyDTO          `json:"reserve"`
	GoalProgress string            `json:"goal_progress"`
	Deadline     string            `json:"deadline"`
	Color        string            `json:"color,omitempty"`
	Rules        factory.RulesJSON `json:"rules"`
	Participants []ParticipantDTO  `json:"participants"`
	CreatedAt    string            `json:"created_at"`
}

// PoolSummaryDTO is the list view, without balances.
type PoolSummaryDTO struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	GoalAmount   MoneyDTO `json:"goal_amount"`
	Deadline     string   `json:"deadline"`
	Color        string   `json:"color,omitempty"`
	Participants int      `json:"participants"`
	CreatedAt    string   `json:"created_at"`
}

// ParticipantDTO represents a pool member.
type ParticipantDTO struct {
	ID              string  `json:"id"`
	UserID          *string `json:"user_id,omitempty"`
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	Status          string  `json:"status"`
	Admin           bool    `json:"admin"`
	JoinedAt        string  `json:"joined_at"`
	ExitRequestedAt *string `json:"exit_requested_at,omitempty"`
}

// EntryDTO represents a ledger entry.
type EntryDTO struct {
	ID            string   `json:"id"`
	PoolID        string   `json:"pool_id"`
	ParticipantID string   `json:"participant_id"`
	Kind          string   `json:"kind"`
	Amount        MoneyDTO `json:"amount"`
	Description   string   `json:"description,omitempty"`
	Category      string   `json:"category,omitempty"`
	Status        string   `json:"status"`
	VoteDeadline  *string  `json:"vote_deadline,omitempty"`
	ReferenceID   string   `json:"reference_id,omitempty"`
	CreatedAt     string   `json:"created_at"`
}

// BalanceDTO is one participant's net position.
type BalanceDTO struct {
	ParticipantID string   `json:"participant_id"`
	Balance       MoneyDTO `json:"balance"`
}

// TallyDTO reports the state of a vote.
type TallyDTO struct {
	EntryID        string  `json:"entry_id"`
	Approvals      int     `json:"approvals"`
	Rejections     int     `json:"rejections"`
	EligibleVoters int     `json:"eligible_voters"`
	ApproveRatio   string  `json:"approve_ratio"`
	Outcome        string  `json:"outcome"`
	VetoedBy       *string `json:"vetoed_by,omitempty"`
}

// ExitSettlementDTO is the computed exit breakdown.
type ExitSettlementDTO struct {
	ParticipantID string   `json:"participant_id"`
	Contribution  MoneyDTO `json:"contribution"`
	Penalty       MoneyDTO `json:"penalty"`
	Refund        MoneyDTO `json:"refund"`
}

// PresetDTO is one named rules preset.
type PresetDTO struct {
	Name  string            `json:"name"`
	Rules factory.RulesJSON `json:"rules"`
}

// ScenarioDTO describes an available demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse wraps API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toMoneyDTO(m ledger.Money) MoneyDTO {
	return MoneyDTO{
		Amount:   m.Amount,
		Currency: string(m.Currency),
		Display:  m.Decimal().StringFixed(2),
	}
}

func toParticipantDTO(p ledger.Participant) ParticipantDTO {
	dto := ParticipantDTO{
		ID:       string(p.ID),
		UserID:   p.UserID,
		Name:     p.Name,
		Email:    p.Email,
		Status:   string(p.Status),
		Admin:    p.Admin,
		JoinedAt: p.JoinedAt.Format(time.RFC3339),
	}
	if p.ExitRequestedAt != nil {
		s := p.ExitRequestedAt.Format(time.RFC3339)
		dto.ExitRequestedAt = &s
	}
	return dto
}

func toEntryDTO(e ledger.Entry) EntryDTO {
	dto := EntryDTO{
		ID:            string(e.ID),
		PoolID:        string(e.PoolID),
		ParticipantID: string(e.ParticipantID),
		Kind:          string(e.Kind),
		Amount:        toMoneyDTO(e.Amount),
		Description:   e.Description,
		Category:      e.Category,
		Status:        string(e.Status),
		ReferenceID:   string(e.ReferenceID),
		CreatedAt:     e.CreatedAt.Format(time.RFC3339),
	}
	if !e.VoteDeadline.IsZero() {
		s := e.VoteDeadline.Format(time.RFC3339)
		dto.VoteDeadline = &s
	}
	return dto
}

func toTallyDTO(t ledger.TallyResult) TallyDTO {
	dto := TallyDTO{
		EntryID:        string(t.EntryID),
		Approvals:      t.Approvals,
		Rejections:     t.Rejections,
		EligibleVoters: t.EligibleVoters,
		ApproveRatio:   t.ApproveRatio.StringFixed(4),
		Outcome:        string(t.Outcome),
	}
	if t.VetoedBy != nil {
		s := string(*t.VetoedBy)
		dto.VetoedBy = &s
	}
	return dto
}

func toExitSettlementDTO(s ledger.ExitSettlement) ExitSettlementDTO {
	return ExitSettlementDTO{
		ParticipantID: string(s.ParticipantID),
		Contribution:  toMoneyDTO(s.Contribution),
		Penalty:       toMoneyDTO(s.Penalty),
		Refund:        toMoneyDTO(s.Refund),
	}
}

func toPoolDTO(pool *ledger.Pool, rf *factory.RulesFactory) PoolDTO {
	participants := make([]ParticipantDTO, len(pool.Participants))
	for i, p := range pool.Participants {
		participants[i] = toParticipantDTO(p)
	}
	return PoolDTO{
		ID:           string(pool.ID),
		Name:         pool.Name,
		GoalAmount:   toMoneyDTO(pool.GoalAmount),
		Reserve:      toMoneyDTO(pool.CurrentReserve()),
		GoalProgress: pool.GoalProgress().StringFixed(4),
		Deadline:     pool.Deadline.Format(time.RFC3339),
		Color:        pool.Color,
		Rules:        rf.ToJSON(pool.Rules),
		Participants: participants,
		CreatedAt:    pool.CreatedAt.Format(time.RFC3339),
	}
}

func toPoolSummaryDTO(pool *ledger.Pool) PoolSummaryDTO {
	return PoolSummaryDTO{
		ID:           string(pool.ID),
		Name:         pool.Name,
		GoalAmount:   toMoneyDTO(pool.GoalAmount),
		Deadline:     pool.Deadline.Format(time.RFC3339),
		Color:        pool.Color,
		Participants: len(pool.Participants),
		CreatedAt:    pool.CreatedAt.Format(time.RFC3339),
	}
}
