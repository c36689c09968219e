/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates a pool, participants,
	and entries that demonstrate specific features.

AVAILABLE SCENARIOS:

	trip-fund:    Contributions toward a shared trip, one expense mid-vote
	big-backer:   One participant holds most of the reserve (veto territory)
	failed-goal:  Pool past its deadline short of goal, ready for refunds

HOW SCENARIOS WORK:
 1. Reset the database (clear all data)
 2. Create the pool with its rules
 3. Invite and activate participants
 4. Post contributions
 5. Optionally open a pending expense or withdrawal

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "trip-fund"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Error helpers
  - server.go: Scenario routes
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lavaca/ledger-engine/ledger"
	"github.com/lavaca/ledger-engine/vaca"
)

// =============================================================================
// SCENARIO REGISTRY
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "trip-fund",
		Name:        "Trip Fund",
		Description: "Four friends saving for a trip; one expense is mid-vote.",
	},
	{
		ID:          "big-backer",
		Name:        "Big Backer",
		Description: "One participant holds most of the reserve and can veto.",
	},
	{
		ID:          "failed-goal",
		Name:        "Failed Goal",
		Description: "Pool past its deadline short of goal, ready for refunds.",
	},
}

// resetter is implemented by stores that can wipe themselves (sqlite, memory).
type resetter interface {
	Reset(ctx context.Context) error
}

// ListScenarios returns the available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the most recently loaded scenario ID.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"scenario_id": h.currentScenario})
}

// LoadScenario wipes the database and loads the named scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !BindAndValidate(w, r, &req) {
		return
	}

	ctx := r.Context()

	if rs, ok := h.Service.Store.(resetter); ok {
		if err := rs.Reset(ctx); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
			return
		}
	}

	var err error
	switch req.ScenarioID {
	case "trip-fund":
		err = h.loadTripFundScenario(ctx)
	case "big-backer":
		err = h.loadBigBackerScenario(ctx)
	case "failed-goal":
		err = h.loadFailedGoalScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario_id %q", req.ScenarioID))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"scenario_id": req.ScenarioID, "status": "loaded"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// seedPool creates a pool with the creator plus extra active members and
// returns the pool reloaded with its participant IDs.
func (h *Handler) seedPool(ctx context.Context, in vaca.CreatePoolInput, members []vaca.Profile) (*ledger.Pool, error) {
	pool, err := h.Service.CreatePool(ctx, in)
	if err != nil {
		return nil, err
	}

	for i, m := range members {
		p, err := h.Service.Invite(ctx, pool.ID, m.Name, m.Email)
		if err != nil {
			return nil, err
		}
		if _, err := h.Service.AcceptInvitation(ctx, pool.ID, p.ID, fmt.Sprintf("user-%d", i+1)); err != nil {
			return nil, err
		}
	}

	return h.Service.GetPool(ctx, pool.ID)
}

func (h *Handler) loadTripFundScenario(ctx context.Context) error {
	pool, err := h.seedPool(ctx, vaca.CreatePoolInput{
		Name:       "Cancun Trip",
		GoalAmount: ledger.Money{Amount: 2_000_000, Currency: ledger.MXN}, // $20,000.00
		Deadline:   time.Now().UTC().AddDate(0, 3, 0),
		Color:      "#2a9d8f",
		Rules:      ledger.DefaultRules(),
		Creator:    vaca.Profile{Name: "Ana", Email: "ana@example.com"},
	}, []vaca.Profile{
		{Name: "Beto", Email: "beto@example.com"},
		{Name: "Carla", Email: "carla@example.com"},
		{Name: "Dani", Email: "dani@example.com"},
	})
	if err != nil {
		return err
	}

	// Everyone puts in $2,500.00
	for _, p := range pool.ActiveParticipants() {
		if _, err := h.Service.Contribute(ctx, pool.ID, p.ID,
			ledger.Money{Amount: 250_000, Currency: ledger.MXN}, "initial deposit"); err != nil {
			return err
		}
	}

	// One expense opens for voting: hotel deposit
	active := pool.ActiveParticipants()
	_, err = h.Service.RequestExpense(ctx, pool.ID, active[0].ID,
		ledger.Money{Amount: 300_000, Currency: ledger.MXN}, "hotel deposit", "lodging")
	return err
}

func (h *Handler) loadBigBackerScenario(ctx context.Context) error {
	rules := ledger.DefaultRules()
	rules.VetoContributionPercentage = 60

	pool, err := h.seedPool(ctx, vaca.CreatePoolInput{
		Name:       "Band Equipment",
		GoalAmount: ledger.Money{Amount: 5_000_000, Currency: ledger.MXN},
		Deadline:   time.Now().UTC().AddDate(0, 6, 0),
		Color:      "#e76f51",
		Rules:      rules,
		Creator:    vaca.Profile{Name: "Elena", Email: "elena@example.com"},
	}, []vaca.Profile{
		{Name: "Fede", Email: "fede@example.com"},
		{Name: "Gus", Email: "gus@example.com"},
	})
	if err != nil {
		return err
	}

	active := pool.ActiveParticipants()

	// Elena funds 80% of the reserve; her rejection vetoes any spend.
	amounts := []int64{2_000_000, 250_000, 250_000}
	for i, p := range active {
		if _, err := h.Service.Contribute(ctx, pool.ID, p.ID,
			ledger.Money{Amount: amounts[i], Currency: ledger.MXN}, "deposit"); err != nil {
			return err
		}
	}

	// A withdrawal request she has not voted on yet
	_, err = h.Service.RequestWithdrawal(ctx, pool.ID, active[1].ID,
		ledger.Money{Amount: 500_000, Currency: ledger.MXN}, "amp down payment")
	return err
}

func (h *Handler) loadFailedGoalScenario(ctx context.Context) error {
	rules := ledger.DefaultRules()
	rules.RefundOnFailure = true

	pool, err := h.seedPool(ctx, vaca.CreatePoolInput{
		Name:       "Office Coffee Machine",
		GoalAmount: ledger.Money{Amount: 1_000_000, Currency: ledger.MXN},
		// Already past deadline; POST /api/pools/{id}/close triggers refunds.
		Deadline: time.Now().UTC().AddDate(0, 0, -1),
		Color:    "#264653",
		Rules:    rules,
		Creator:  vaca.Profile{Name: "Hugo", Email: "hugo@example.com"},
	}, []vaca.Profile{
		{Name: "Ines", Email: "ines@example.com"},
	})
	if err != nil {
		return err
	}

	active := pool.ActiveParticipants()
	amounts := []int64{300_000, 100_000}
	for i, p := range active {
		if _, err := h.Service.Contribute(ctx, pool.ID, p.ID,
			ledger.Money{Amount: amounts[i], Currency: ledger.MXN}, "deposit"); err != nil {
			return err
		}
	}
	return nil
}
