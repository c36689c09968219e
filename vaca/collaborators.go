package vaca

import (
	"context"

	"github.com/lavaca/ledger-engine/ledger"
)

// =============================================================================
// EXTERNAL COLLABORATORS
// =============================================================================
// The engine stays pure; everything that talks to the outside world is a
// collaborator injected into the service. Implementations live elsewhere
// (notify package, the real identity provider); the no-op versions here
// keep tests and single-binary deployments simple.

// Identity resolves a registered user at invitation-accept time. It is
// never called mid-computation.
type Identity interface {
	Lookup(ctx context.Context, userID string) (Profile, error)
}

// Profile is what the identity provider knows about a user.
type Profile struct {
	UserID string
	Name   string
	Email  string
}

// Notifier is informed after state transitions. Fire-and-forget: methods
// return nothing and must never block the caller on delivery.
type Notifier interface {
	EntryPosted(ctx context.Context, entry ledger.Entry)
	EntryRejected(ctx context.Context, entry ledger.Entry)
	VoteTallyChanged(ctx context.Context, entry ledger.Entry, tally ledger.TallyResult)
	ParticipantChanged(ctx context.Context, poolID ledger.PoolID, p ledger.Participant)
}

// =============================================================================
// NO-OP AND STATIC IMPLEMENTATIONS
// =============================================================================

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) EntryPosted(context.Context, ledger.Entry)                           {}
func (NopNotifier) EntryRejected(context.Context, ledger.Entry)                         {}
func (NopNotifier) VoteTallyChanged(context.Context, ledger.Entry, ledger.TallyResult)  {}
func (NopNotifier) ParticipantChanged(context.Context, ledger.PoolID, ledger.Participant) {}

// StaticIdentity resolves users from a fixed map. Used in tests and demo
// scenarios where there is no real identity provider.
type StaticIdentity map[string]Profile

func (s StaticIdentity) Lookup(_ context.Context, userID string) (Profile, error) {
	p, ok := s[userID]
	if !ok {
		return Profile{}, ledger.ErrParticipantNotFound
	}
	return p, nil
}

// TrustingIdentity accepts any user ID at face value, keeping the invitee's
// own name and email. Deployments without an identity provider use this.
type TrustingIdentity struct{}

func (TrustingIdentity) Lookup(_ context.Context, userID string) (Profile, error) {
	return Profile{UserID: userID}, nil
}
