package ledger

import "time"

// =============================================================================
// PARTICIPANT - Membership in a pool (soft state, never deleted)
// =============================================================================

type ParticipantID string

type ParticipantStatus string

const (
	ParticipantInvited ParticipantStatus = "invited" // invitation sent, not yet accepted
	ParticipantActive  ParticipantStatus = "active"  // contributing member
	ParticipantExited  ParticipantStatus = "exited"  // left voluntarily
	ParticipantRemoved ParticipantStatus = "removed" // removed by admin or vote
)

// Participant belongs to exactly one pool. Participants are never deleted:
// exits and removals are status changes so the entry log stays attributable.
type Participant struct {
	ID     ParticipantID
	UserID *string // nil until the invitee registers and accepts
	Name   string
	Email  string
	Status ParticipantStatus
	Admin  bool // pool owner; may change rules

	JoinedAt time.Time

	// Set when the participant requests an exit; the notice period in the
	// pool rules counts from this time.
	ExitRequestedAt *time.Time
}

// IsActive reports whether the participant counts toward voting eligibility
// and proportional shares.
func (p Participant) IsActive() bool { return p.Status == ParticipantActive }

// CanVote reports whether the participant's votes are counted in a tally.
func (p Participant) CanVote() bool { return p.IsActive() }
