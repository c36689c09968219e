/*
handlers.go - HTTP API handlers for the group savings engine

PURPOSE:
  Exposes pools, the entry log, voting, and exit settlement via REST.
  Handles HTTP request/response, JSON serialization, and delegates to the
  service layer. No money math happens here.

ENDPOINTS:
  Pools:
    POST   /api/pools                    Create pool
    GET    /api/pools                    List pools
    GET    /api/pools/{id}               Pool with reserve and progress
    PUT    /api/pools/{id}/rules         Update rules (admin)
    GET    /api/pools/{id}/balances      Per-participant balances
    GET    /api/pools/{id}/entries       Full audit log
    POST   /api/pools/{id}/close         Close a failed pool (refunds)

  Participants:
    POST   /api/pools/{id}/participants              Invite
    POST   /api/pools/{id}/participants/{pid}/accept Accept invitation
    DELETE /api/pools/{id}/participants/{pid}        Remove (admin)

  Money movement:
    POST   /api/pools/{id}/contributions Contribute (posts immediately)
    POST   /api/pools/{id}/withdrawals   Request withdrawal (pending)
    POST   /api/pools/{id}/expenses      Request expense (pending)

  Voting:
    POST   /api/entries/{id}/votes       Cast vote
    POST   /api/entries/{id}/tally       Explicit tally

  Exit:
    GET    /api/pools/{id}/exit/{pid}    Preview settlement
    POST   /api/pools/{id}/exit/{pid}    Execute exit

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, policy refusals (veto, overfunding, ...)
  - 404: Resource not found
  - 409: Duplicate entry ID (idempotent retry)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization beyond the admin flag on
  participants. actor_id in request bodies stands in for a session.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lavaca/ledger-engine/factory"
	"github.com/lavaca/ledger-engine/ledger"
	"github.com/lavaca/ledger-engine/logger"
	"github.com/lavaca/ledger-engine/vaca"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *vaca.PoolService
	Rules   *factory.RulesFactory
	Log     logger.Logger

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler around the service.
func NewHandler(service *vaca.PoolService, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Handler{
		Service: service,
		Rules:   factory.NewRulesFactory(),
		Log:     log,
	}
}

// =============================================================================
// POOL HANDLERS
// =============================================================================

// CreatePool creates a new pool with the creator as admin.
func (h *Handler) CreatePool(w http.ResponseWriter, r *http.Request) {
	var req CreatePoolRequest
	if !BindAndValidate(w, r, &req) {
		return
	}

	rules, err := h.resolveRules(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rules", err)
		return
	}

	pool, err := h.Service.CreatePool(r.Context(), vaca.CreatePoolInput{
		Name:       req.Name,
		GoalAmount: ledger.Money{Amount: req.GoalAmount, Currency: ledger.Currency(req.Currency)},
		Deadline:   req.Deadline,
		Color:      req.Color,
		Rules:      rules,
		Creator:    vaca.Profile{Name: req.CreatorName, Email: req.CreatorEmail},
	})
	if err != nil {
		writeDomainError(w, "Failed to create pool", err)
		return
	}

	writeJSON(w, http.StatusCreated, toPoolDTO(pool, h.Rules))
}

// resolveRules merges an optional preset with optional explicit rules.
// Explicit rules win; neither means defaults.
func (h *Handler) resolveRules(req CreatePoolRequest) (ledger.Rules, error) {
	if req.Rules != nil {
		return h.Rules.FromJSON(*req.Rules)
	}
	if req.RulesPreset != "" {
		return h.Rules.Preset(req.RulesPreset)
	}
	return ledger.DefaultRules(), nil
}

// ListPools returns summaries of all pools.
func (h *Handler) ListPools(w http.ResponseWriter, r *http.Request) {
	pools, err := h.Service.ListPools(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list pools", err)
		return
	}

	dtos := make([]PoolSummaryDTO, len(pools))
	for i, p := range pools {
		dtos[i] = toPoolSummaryDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPool returns one pool with reserve and goal progress.
func (h *Handler) GetPool(w http.ResponseWriter, r *http.Request) {
	id := ledger.PoolID(chi.URLParam(r, "id"))

	pool, err := h.Service.GetPool(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get pool", err)
		return
	}
	writeJSON(w, http.StatusOK, toPoolDTO(pool, h.Rules))
}

// UpdateRules replaces the pool rules. Admin only.
func (h *Handler) UpdateRules(w http.ResponseWriter, r *http.Request) {
	id := ledger.PoolID(chi.URLParam(r, "id"))

	var req UpdateRulesRequest
	if !BindAndValidate(w, r, &req) {
		return
	}

	rules, err := h.Rules.FromJSON(req.Rules)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rules", err)
		return
	}

	if err := h.Service.UpdateRules(r.Context(), id, ledger.ParticipantID(req.ActorID), rules); err != nil {
		writeDomainError(w, "Failed to update rules", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Rules.ToJSON(rules))
}

// GetBalances returns every participant's net position.
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	id := ledger.PoolID(chi.URLParam(r, "id"))

	balances, err := h.Service.Balances(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to compute balances", err)
		return
	}

	dtos := make([]BalanceDTO, 0, len(balances))
	for pid, m := range balances {
		dtos = append(dtos, BalanceDTO{ParticipantID: string(pid), Balance: toMoneyDTO(m)})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEntries returns the full audit log including pending and rejected.
func (h *Handler) GetEntries(w http.ResponseWriter, r *http.Request) {
	id := ledger.PoolID(chi.URLParam(r, "id"))

	entries, err := h.Service.Store.ListEntries(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to list entries", err)
		return
	}

	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ClosePool settles a pool that missed its goal, refunding proportionally.
func (h *Handler) ClosePool(w http.ResponseWriter, r *http.Request) {
	id := ledger.PoolID(chi.URLParam(r, "id"))

	refunds, err := h.Service.CloseFailedPool(r.Context(), id, time.Now().UTC())
	if err != nil {
		writeDomainError(w, "Failed to close pool", err)
		return
	}

	dtos := make([]EntryDTO, len(refunds))
	for i, e := range refunds {
		dtos[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PARTICIPANT HANDLERS
// =============================================================================

// Invite adds an invited participant by email.
func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	id := ledger.PoolID(chi.URLParam(r, "id"))

	var req InviteRequest
	if !BindAndValidate(w, r, &req) {
		return
	}

	p, err := h.Service.Invite(r.Context(), id, req.Name, req.Email)
	if err != nil {
		writeDomainError(w, "Failed to invite participant", err)
		return
	}
	writeJSON(w, http.StatusCreated, toParticipantDTO(p))
}

// AcceptInvitation activates an invited participant.
func (h *Handler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	poolID := ledger.PoolID(chi.URLParam(r, "id"))
	participantID := ledger.ParticipantID(chi.URLParam(r, "pid"))

	var req AcceptInvitationRequest
	if !BindAndValidate(w, r, &req) {
		return
	}

	p, err := h.Service.AcceptInvitation(r.Context(), poolID, participantID, req.UserID)
	if err != nil {
		writeDomainError(w, "Failed to accept invitation", err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantDTO(p))
}

// RemoveParticipant removes a non-admin member. Admin only.
func (h *Handler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	poolID := ledger.PoolID(chi.URLParam(r, "id"))
	targetID := ledger.ParticipantID(chi.URLParam(r, "pid"))

	var req RemoveParticipantRequest
	if !BindAndValidate(w, r, &req) {
		return
	}

	if err := h.Service.RemoveParticipant(r.Context(), poolID, ledger.ParticipantID(req.ActorID), targetID); err != nil {
		writeDomainError(w, "Failed to remove participant", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// MONEY MOVEMENT HANDLERS
// =============================================================================

// Contribute posts a contribution immediately.
func (h *Handler) Contribute(w http.ResponseWriter, r *http.Request) {
	id := ledger.PoolID(chi.URLParam(r, "id"))

	var req ContributeRequest
	if !BindAndValidate(w, r, &req) {
		return
	}

	pool, err := h.Service.GetPool(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to load pool", err)
		return
	}

	entry, err := h.Service.Contribute(r.Context(), id,
		ledger.ParticipantID(req.ParticipantID),
		ledger.Money{Amount: req.Amount, Currency: pool.Currency()},
		req.Description,
	)
	if err != nil {
		writeDomainError(w, "Failed to contribute", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

// RequestWithdrawal opens a pending withdrawal for voting.
func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	id := ledger.PoolID(chi.URLParam(r, "id"))

	var req WithdrawalRequest
	if !BindAndValidate(w, r, &req) {
		return
	}

	pool, err := h.Service.GetPool(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to load pool", err)
		return
	}

	entry, err := h.Service.RequestWithdrawal(r.Context(), id,
		ledger.ParticipantID(req.ParticipantID),
		ledger.Money{Amount: req.Amount, Currency: pool.Currency()},
		req.Description,
	)
	if err != nil {
		writeDomainError(w, "Failed to request withdrawal", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

// RequestExpense opens a pending expense for voting.
func (h *Handler) RequestExpense(w http.ResponseWriter, r *http.Request) {
	id := ledger.PoolID(chi.URLParam(r, "id"))

	var req ExpenseRequest
	if !BindAndValidate(w, r, &req) {
		return
	}

	pool, err := h.Service.GetPool(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to load pool", err)
		return
	}

	entry, err := h.Service.RequestExpense(r.Context(), id,
		ledger.ParticipantID(req.ParticipantID),
		ledger.Money{Amount: req.Amount, Currency: pool.Currency()},
		req.Description,
		req.Category,
	)
	if err != nil {
		writeDomainError(w, "Failed to request expense", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

// =============================================================================
// VOTING HANDLERS
// =============================================================================

// CastVote records a vote and returns the resulting tally.
func (h *Handler) CastVote(w http.ResponseWriter, r *http.Request) {
	entryID := ledger.EntryID(chi.URLParam(r, "id"))

	var req CastVoteRequest
	if !BindAndValidate(w, r, &req) {
		return
	}

	tally, err := h.Service.CastVote(r.Context(), entryID,
		ledger.ParticipantID(req.ParticipantID),
		ledger.VoteChoice(req.Choice),
		req.Reason,
	)
	if err != nil {
		writeDomainError(w, "Failed to cast vote", err)
		return
	}
	writeJSON(w, http.StatusOK, toTallyDTO(tally))
}

// TallyEntry re-evaluates a pending entry against the current votes and
// clock. The sweeper calls the same service path on a timer.
func (h *Handler) TallyEntry(w http.ResponseWriter, r *http.Request) {
	entryID := ledger.EntryID(chi.URLParam(r, "id"))

	tally, err := h.Service.TallyEntry(r.Context(), entryID, time.Now().UTC())
	if err != nil {
		writeDomainError(w, "Failed to tally entry", err)
		return
	}
	writeJSON(w, http.StatusOK, toTallyDTO(tally))
}

// =============================================================================
// EXIT HANDLERS
// =============================================================================

// PreviewExit returns the settlement without executing it.
func (h *Handler) PreviewExit(w http.ResponseWriter, r *http.Request) {
	poolID := ledger.PoolID(chi.URLParam(r, "id"))
	participantID := ledger.ParticipantID(chi.URLParam(r, "pid"))

	settlement, err := h.Service.PreviewExit(r.Context(), poolID, participantID)
	if err != nil {
		writeDomainError(w, "Failed to preview exit", err)
		return
	}
	writeJSON(w, http.StatusOK, toExitSettlementDTO(settlement))
}

// RequestExit starts the notice period for a participant.
func (h *Handler) RequestExit(w http.ResponseWriter, r *http.Request) {
	poolID := ledger.PoolID(chi.URLParam(r, "id"))
	participantID := ledger.ParticipantID(chi.URLParam(r, "pid"))

	p, err := h.Service.RequestExit(r.Context(), poolID, participantID)
	if err != nil {
		writeDomainError(w, "Failed to request exit", err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantDTO(p))
}

// ExecuteExit settles and pays out an exiting participant.
func (h *Handler) ExecuteExit(w http.ResponseWriter, r *http.Request) {
	poolID := ledger.PoolID(chi.URLParam(r, "id"))
	participantID := ledger.ParticipantID(chi.URLParam(r, "pid"))

	settlement, err := h.Service.ExecuteExit(r.Context(), poolID, participantID)
	if err != nil {
		writeDomainError(w, "Failed to execute exit", err)
		return
	}
	writeJSON(w, http.StatusOK, toExitSettlementDTO(settlement))
}

// =============================================================================
// RULES PRESETS
// =============================================================================

// ListPresets returns the available rules presets.
func (h *Handler) ListPresets(w http.ResponseWriter, r *http.Request) {
	names := h.Rules.Presets()
	dtos := make([]PresetDTO, 0, len(names))
	for _, name := range names {
		rules, err := h.Rules.Preset(name)
		if err != nil {
			continue
		}
		dtos = append(dtos, PresetDTO{Name: name, Rules: h.Rules.ToJSON(rules)})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps service errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, ledger.ErrDuplicateEntry):
		writeError(w, http.StatusConflict, message, err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
