package vaca

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lavaca/ledger-engine/ledger"
)

// =============================================================================
// MEMBERSHIP - invite, accept, remove
// =============================================================================
// Participants are soft state: nobody is ever deleted, so posted entries
// always resolve to a person in the audit view.

// Invite adds a not-yet-registered participant in invited status. The
// invitee has no user ID until they accept.
func (s *PoolService) Invite(ctx context.Context, poolID ledger.PoolID, name, email string) (ledger.Participant, error) {
	pool, err := s.Store.LoadPool(ctx, poolID)
	if err != nil {
		return ledger.Participant{}, err
	}
	for _, m := range pool.Participants {
		if m.Email == email && m.Status != ledger.ParticipantRemoved {
			// Re-inviting an existing member is a no-op, not an error.
			return m, nil
		}
	}

	p := ledger.Participant{
		ID:     ledger.ParticipantID(uuid.NewString()),
		Name:   name,
		Email:  email,
		Status: ledger.ParticipantInvited,
	}
	if err := s.Store.UpsertParticipant(ctx, poolID, p); err != nil {
		return ledger.Participant{}, fmt.Errorf("invite participant: %w", err)
	}

	s.Log.Info("participant invited", "pool_id", poolID, "participant", p.ID, "email", email)
	s.Notifier.ParticipantChanged(ctx, poolID, p)
	return p, nil
}

// AcceptInvitation turns an invited participant active, resolving their
// registered identity through the identity collaborator. This is the only
// point the engine's callers consult identity.
func (s *PoolService) AcceptInvitation(ctx context.Context, poolID ledger.PoolID, participantID ledger.ParticipantID, userID string) (ledger.Participant, error) {
	pool, err := s.Store.LoadPool(ctx, poolID)
	if err != nil {
		return ledger.Participant{}, err
	}
	p, err := pool.Participant(participantID)
	if err != nil {
		return ledger.Participant{}, err
	}
	if p.Status != ledger.ParticipantInvited {
		return ledger.Participant{}, fmt.Errorf("%w: participant %s is %s", ledger.ErrInvalidEntryState, participantID, p.Status)
	}

	profile, err := s.Identity.Lookup(ctx, userID)
	if err != nil {
		return ledger.Participant{}, fmt.Errorf("resolve user %s: %w", userID, err)
	}

	uid := profile.UserID
	p.UserID = &uid
	if profile.Name != "" {
		p.Name = profile.Name
	}
	if profile.Email != "" {
		p.Email = profile.Email
	}
	p.Status = ledger.ParticipantActive
	p.JoinedAt = s.now()

	if err := s.Store.UpsertParticipant(ctx, poolID, p); err != nil {
		return ledger.Participant{}, fmt.Errorf("accept invitation: %w", err)
	}

	s.Log.Info("invitation accepted", "pool_id", poolID, "participant", p.ID, "user_id", userID)
	s.Notifier.ParticipantChanged(ctx, poolID, p)
	return p, nil
}

// RemoveParticipant marks a participant removed. Admin action; the admin
// cannot remove themselves.
func (s *PoolService) RemoveParticipant(ctx context.Context, poolID ledger.PoolID, actorID, targetID ledger.ParticipantID) error {
	pool, err := s.Store.LoadPool(ctx, poolID)
	if err != nil {
		return err
	}
	actor, err := pool.Participant(actorID)
	if err != nil {
		return err
	}
	if !actor.Admin {
		return ledger.ErrNotAdmin
	}
	target, err := pool.Participant(targetID)
	if err != nil {
		return err
	}
	if target.Admin {
		return ledger.ErrNotAdmin
	}

	target.Status = ledger.ParticipantRemoved
	if err := s.Store.UpsertParticipant(ctx, poolID, target); err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}

	s.Log.Info("participant removed", "pool_id", poolID, "participant", targetID, "by", actorID)
	s.Notifier.ParticipantChanged(ctx, poolID, target)
	return nil
}
