package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavaca/ledger-engine/api"
	"github.com/lavaca/ledger-engine/ledger/store"
	"github.com/lavaca/ledger-engine/vaca"
)

// =============================================================================
// TEST SERVER
// =============================================================================

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	svc := vaca.NewPoolService(store.NewTxMemory(), vaca.TrustingIdentity{}, nil, nil)
	return api.NewRouter(api.NewHandler(svc, nil))
}

// doJSON performs a request with a JSON body and decodes the JSON response
// into out (when out is non-nil).
func doJSON(t *testing.T, router http.Handler, method, path string, body, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(out),
			"decoding %s %s response: %s", method, path, rec.Body.String())
	}
	return rec
}

func createPoolRequest() map[string]any {
	return map[string]any{
		"name":          "Cancun Trip",
		"goal_amount":   100_000,
		"currency":      "MXN",
		"deadline":      time.Now().UTC().AddDate(0, 3, 0).Format(time.RFC3339),
		"color":         "#2a9d8f",
		"creator_name":  "Ana",
		"creator_email": "ana@example.com",
	}
}

// seedPool creates a pool and returns its DTO (participants[0] is the admin).
func seedPool(t *testing.T, router http.Handler) api.PoolDTO {
	t.Helper()
	var pool api.PoolDTO
	rec := doJSON(t, router, http.MethodPost, "/api/pools", createPoolRequest(), &pool)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotEmpty(t, pool.ID)
	require.Len(t, pool.Participants, 1)
	return pool
}

// addMember invites and activates one participant, returning their ID.
func addMember(t *testing.T, router http.Handler, poolID, name, userID string) string {
	t.Helper()
	var p api.ParticipantDTO
	rec := doJSON(t, router, http.MethodPost, "/api/pools/"+poolID+"/participants",
		map[string]any{"name": name, "email": name + "@example.com"}, &p)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/pools/%s/participants/%s/accept", poolID, p.ID),
		map[string]any{"user_id": userID}, &p)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "active", p.Status)
	return p.ID
}

func contribute(t *testing.T, router http.Handler, poolID, participantID string, amount int64) api.EntryDTO {
	t.Helper()
	var entry api.EntryDTO
	rec := doJSON(t, router, http.MethodPost, "/api/pools/"+poolID+"/contributions",
		map[string]any{"participant_id": participantID, "amount": amount}, &entry)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return entry
}

// =============================================================================
// POOLS
// =============================================================================

func TestAPI_CreateAndGetPool(t *testing.T) {
	router := newTestRouter(t)
	pool := seedPool(t, router)

	assert.Equal(t, "Cancun Trip", pool.Name)
	assert.Equal(t, int64(100_000), pool.GoalAmount.Amount)
	assert.Equal(t, "1000.00", pool.GoalAmount.Display)
	assert.Equal(t, "0.0000", pool.GoalProgress)
	assert.True(t, pool.Participants[0].Admin)

	var loaded api.PoolDTO
	rec := doJSON(t, router, http.MethodGet, "/api/pools/"+pool.ID, nil, &loaded)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pool.ID, loaded.ID)

	var list []api.PoolSummaryDTO
	rec = doJSON(t, router, http.MethodGet, "/api/pools", nil, &list)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].Participants)

	var errResp api.ErrorResponse
	rec = doJSON(t, router, http.MethodGet, "/api/pools/missing", nil, &errResp)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, errResp.Error)
}

func TestAPI_CreatePool_ValidationError(t *testing.T) {
	router := newTestRouter(t)

	req := createPoolRequest()
	delete(req, "name")
	req["creator_email"] = "not-an-email"

	var errResp api.ErrorResponse
	rec := doJSON(t, router, http.MethodPost, "/api/pools", req, &errResp)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errResp.Details, "name")
	assert.Contains(t, errResp.Details, "creator_email")
}

func TestAPI_CreatePool_WithPreset(t *testing.T) {
	router := newTestRouter(t)

	req := createPoolRequest()
	req["rules_preset"] = "strict"

	var pool api.PoolDTO
	rec := doJSON(t, router, http.MethodPost, "/api/pools", req, &pool)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "cannot_exit", pool.Rules.ExitPolicy)

	req["rules_preset"] = "no-such-preset"
	rec = doJSON(t, router, http.MethodPost, "/api/pools", req, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_UpdateRules(t *testing.T) {
	router := newTestRouter(t)
	pool := seedPool(t, router)
	adminID := pool.Participants[0].ID

	veto := int64(55)
	rec := doJSON(t, router, http.MethodPut, "/api/pools/"+pool.ID+"/rules",
		map[string]any{
			"actor_id": adminID,
			"rules":    map[string]any{"veto_contribution_percentage": veto},
		}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var loaded api.PoolDTO
	doJSON(t, router, http.MethodGet, "/api/pools/"+pool.ID, nil, &loaded)
	require.NotNil(t, loaded.Rules.VetoContributionPercentage)
	assert.Equal(t, veto, *loaded.Rules.VetoContributionPercentage)
}

// =============================================================================
// MONEY MOVEMENT AND THE AUDIT LOG
// =============================================================================

func TestAPI_ContributeAndBalances(t *testing.T) {
	router := newTestRouter(t)
	pool := seedPool(t, router)
	adminID := pool.Participants[0].ID

	entry := contribute(t, router, pool.ID, adminID, 60_000)
	assert.Equal(t, "contribution", entry.Kind)
	assert.Equal(t, "posted", entry.Status)
	assert.Equal(t, "600.00", entry.Amount.Display)

	var loaded api.PoolDTO
	doJSON(t, router, http.MethodGet, "/api/pools/"+pool.ID, nil, &loaded)
	assert.Equal(t, int64(60_000), loaded.Reserve.Amount)
	assert.Equal(t, "0.6000", loaded.GoalProgress)

	var balances []api.BalanceDTO
	rec := doJSON(t, router, http.MethodGet, "/api/pools/"+pool.ID+"/balances", nil, &balances)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, balances, 1)
	assert.Equal(t, int64(60_000), balances[0].Balance.Amount)
}

func TestAPI_EntriesAuditLog(t *testing.T) {
	router := newTestRouter(t)
	pool := seedPool(t, router)
	adminID := pool.Participants[0].ID

	contribute(t, router, pool.ID, adminID, 50_000)

	var pending api.EntryDTO
	rec := doJSON(t, router, http.MethodPost, "/api/pools/"+pool.ID+"/expenses",
		map[string]any{
			"participant_id": adminID, "amount": 10_000,
			"description": "hotel deposit", "category": "lodging",
		}, &pending)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "pending", pending.Status)
	require.NotNil(t, pending.VoteDeadline)

	// The audit log shows both; the pool reserve sees only the posted one.
	var entries []api.EntryDTO
	rec = doJSON(t, router, http.MethodGet, "/api/pools/"+pool.ID+"/entries", nil, &entries)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, entries, 2)

	var loaded api.PoolDTO
	doJSON(t, router, http.MethodGet, "/api/pools/"+pool.ID, nil, &loaded)
	assert.Equal(t, int64(50_000), loaded.Reserve.Amount)
}

// =============================================================================
// VOTING
// =============================================================================

func TestAPI_WithdrawalVoteFlow(t *testing.T) {
	router := newTestRouter(t)
	pool := seedPool(t, router)
	adminID := pool.Participants[0].ID
	betoID := addMember(t, router, pool.ID, "beto", "u-beto")
	carlaID := addMember(t, router, pool.ID, "carla", "u-carla")

	contribute(t, router, pool.ID, adminID, 50_000)

	var entry api.EntryDTO
	rec := doJSON(t, router, http.MethodPost, "/api/pools/"+pool.ID+"/withdrawals",
		map[string]any{"participant_id": adminID, "amount": 10_000, "description": "bus tickets"}, &entry)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, int64(-10_000), entry.Amount.Amount)

	var tally api.TallyDTO
	rec = doJSON(t, router, http.MethodPost, "/api/entries/"+entry.ID+"/votes",
		map[string]any{"participant_id": betoID, "choice": "approve"}, &tally)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "pending", tally.Outcome)
	assert.Equal(t, 1, tally.Approvals)
	assert.Equal(t, 3, tally.EligibleVoters)

	rec = doJSON(t, router, http.MethodPost, "/api/entries/"+entry.ID+"/votes",
		map[string]any{"participant_id": carlaID, "choice": "approve"}, &tally)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "approved", tally.Outcome)

	var loaded api.PoolDTO
	doJSON(t, router, http.MethodGet, "/api/pools/"+pool.ID, nil, &loaded)
	assert.Equal(t, int64(40_000), loaded.Reserve.Amount)

	// Voting on the decided entry is a client error.
	rec = doJSON(t, router, http.MethodPost, "/api/entries/"+entry.ID+"/votes",
		map[string]any{"participant_id": adminID, "choice": "reject"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_CastVote_RejectsBadChoice(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/entries/e-1/votes",
		map[string]any{"participant_id": "p-1", "choice": "maybe"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// EXIT
// =============================================================================

func TestAPI_ExitPreviewAndExecute(t *testing.T) {
	router := newTestRouter(t)
	pool := seedPool(t, router)
	adminID := pool.Participants[0].ID
	betoID := addMember(t, router, pool.ID, "beto", "u-beto")

	contribute(t, router, pool.ID, betoID, 60_000)
	contribute(t, router, pool.ID, adminID, 20_000)

	var preview api.ExitSettlementDTO
	rec := doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/pools/%s/exit/%s", pool.ID, betoID), nil, &preview)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(6_000), preview.Penalty.Amount)
	assert.Equal(t, int64(54_000), preview.Refund.Amount)

	// Default rules require notice before the payout.
	rec = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/pools/%s/exit/%s", pool.ID, betoID), nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var p api.ParticipantDTO
	rec = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/pools/%s/exit/%s/request", pool.ID, betoID), nil, &p)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotNil(t, p.ExitRequestedAt)
}

// =============================================================================
// PRESETS AND SCENARIOS
// =============================================================================

func TestAPI_ListPresets(t *testing.T) {
	router := newTestRouter(t)

	var presets []api.PresetDTO
	rec := doJSON(t, router, http.MethodGet, "/api/rules/presets", nil, &presets)
	require.Equal(t, http.StatusOK, rec.Code)

	names := make([]string, len(presets))
	for i, p := range presets {
		names[i] = p.Name
	}
	assert.Contains(t, names, "default")
	assert.Contains(t, names, "strict")
	assert.Contains(t, names, "flexible")
}

func TestAPI_LoadScenario(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/load",
		map[string]any{"scenario_id": "trip-fund"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var current map[string]string
	doJSON(t, router, http.MethodGet, "/api/scenarios/current", nil, &current)
	assert.Equal(t, "trip-fund", current["scenario_id"])

	var list []api.PoolSummaryDTO
	doJSON(t, router, http.MethodGet, "/api/pools", nil, &list)
	require.Len(t, list, 1)
	assert.Equal(t, 4, list[0].Participants)

	// Loading another scenario wipes the previous one.
	rec = doJSON(t, router, http.MethodPost, "/api/scenarios/load",
		map[string]any{"scenario_id": "failed-goal"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	doJSON(t, router, http.MethodGet, "/api/pools", nil, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Office Coffee Machine", list[0].Name)

	rec = doJSON(t, router, http.MethodPost, "/api/scenarios/load",
		map[string]any{"scenario_id": "nope"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
