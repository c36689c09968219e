// Package notify delivers pool events to an external webhook. Delivery is
// fire-and-forget: failures are logged, never surfaced to the caller, and
// never retried here.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lavaca/ledger-engine/ledger"
	"github.com/lavaca/ledger-engine/logger"
)

// =============================================================================
// WEBHOOK NOTIFIER
// =============================================================================

// Webhook posts JSON events to a single URL. Implements vaca.Notifier.
type Webhook struct {
	URL    string
	Client *http.Client
	Log    logger.Logger
}

func NewWebhook(url string, log logger.Logger) *Webhook {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Webhook{
		URL: url,
		// Slow receivers must not block pool operations.
		Client: &http.Client{Timeout: 5 * time.Second},
		Log:    log,
	}
}

type event struct {
	Type    string `json:"type"`
	PoolID  string `json:"pool_id"`
	Payload any    `json:"payload"`
	SentAt  string `json:"sent_at"`
}

func (w *Webhook) EntryPosted(ctx context.Context, entry ledger.Entry) {
	w.send(ctx, "entry_posted", string(entry.PoolID), entryPayload(entry))
}

func (w *Webhook) EntryRejected(ctx context.Context, entry ledger.Entry) {
	w.send(ctx, "entry_rejected", string(entry.PoolID), entryPayload(entry))
}

func (w *Webhook) VoteTallyChanged(ctx context.Context, entry ledger.Entry, tally ledger.TallyResult) {
	w.send(ctx, "vote_tally_changed", string(entry.PoolID), map[string]any{
		"entry_id":      string(entry.ID),
		"approvals":     tally.Approvals,
		"rejections":    tally.Rejections,
		"eligible":      tally.EligibleVoters,
		"approve_ratio": tally.ApproveRatio.String(),
		"outcome":       string(tally.Outcome),
	})
}

func (w *Webhook) ParticipantChanged(ctx context.Context, poolID ledger.PoolID, p ledger.Participant) {
	w.send(ctx, "participant_changed", string(poolID), map[string]any{
		"participant_id": string(p.ID),
		"name":           p.Name,
		"status":         string(p.Status),
	})
}

func entryPayload(entry ledger.Entry) map[string]any {
	return map[string]any{
		"entry_id":       string(entry.ID),
		"participant_id": string(entry.ParticipantID),
		"kind":           string(entry.Kind),
		"amount":         entry.Amount.Decimal().StringFixed(2),
		"currency":       string(entry.Amount.Currency),
		"status":         string(entry.Status),
	}
}

func (w *Webhook) send(ctx context.Context, eventType, poolID string, payload any) {
	if w.URL == "" {
		return
	}
	body, err := json.Marshal(event{
		Type:    eventType,
		PoolID:  poolID,
		Payload: payload,
		SentAt:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		w.Log.Error("webhook marshal failed", "event", eventType, "err", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		w.Log.Error("webhook request failed", "event", eventType, "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		w.Log.Warn("webhook delivery failed", "event", eventType, "err", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		w.Log.Warn("webhook receiver error",
			"event", eventType, "err", fmt.Sprintf("status %d", resp.StatusCode))
	}
}
