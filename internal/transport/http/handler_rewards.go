package httptransport

import (
	"net/http"
	"strconv"

	"trivia-rewards/internal/catalog"
	"trivia-rewards/internal/eligibility"
	"trivia-rewards/internal/leaderboard"
	"trivia-rewards/internal/rewards"
	"trivia-rewards/internal/workflow"

	"github.com/go-chi/chi/v5"
)

// RewardHandlers serve the player-facing routes. Claim and forge respond 200 with the terminal
// operation whether it confirmed or failed; precondition failures are errors.
type RewardHandlers struct {
	eligibility *eligibility.Manager
	catalog     *catalog.Allocator
	workflow    *workflow.Driver
	leaderboard *leaderboard.Engine
}

func NewRewardHandlers(elig *eligibility.Manager, alloc *catalog.Allocator, drv *workflow.Driver, board *leaderboard.Engine) *RewardHandlers {
	return &RewardHandlers{eligibility: elig, catalog: alloc, workflow: drv, leaderboard: board}
}

func (h *RewardHandlers) PlayerEligibilities() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID := chi.URLParam(r, "player_id")
		list := h.eligibility.List
		if claimable, _ := strconv.ParseBool(r.URL.Query().Get("claimable")); claimable {
			list = h.eligibility.Claimable
		}
		items, err := list(r.Context(), playerID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

func (h *RewardHandlers) Inventory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := h.workflow.Inventory(r.Context(), chi.URLParam(r, "player_id"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

// ValidateEligibility returns the eligibility if it can still be claimed.
func (h *RewardHandlers) ValidateEligibility() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := h.eligibility.Validate(r.Context(), chi.URLParam(r, "eligibility_id"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func (h *RewardHandlers) Availability() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		av, err := h.catalog.CheckAvailability(r.Context(), q.Get("category_id"), rewards.Tier(q.Get("tier")))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, av)
	}
}

func (h *RewardHandlers) Claim() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req workflow.ClaimRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		metricClaimRequests.Add(1)
		res, err := h.workflow.Claim(r.Context(), req)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (h *RewardHandlers) Forge() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req workflow.ForgeRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		metricForgeRequests.Add(1)
		res, err := h.workflow.Forge(r.Context(), req)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (h *RewardHandlers) Operation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := h.workflow.Status(r.Context(), chi.URLParam(r, "operation_id"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func (h *RewardHandlers) Retry() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			PlayerID string `json:"player_id"`
		}
		if err := decodeJSON(r, &body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		res, err := h.workflow.Retry(r.Context(), chi.URLParam(r, "operation_id"), body.PlayerID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (h *RewardHandlers) Leaderboard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset, err := ParsePagination(r)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		q := r.URL.Query()
		page, err := h.leaderboard.GetPage(r.Context(), q.Get("period_id"), scopeOf(q.Get("category_id")), limit, offset)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func (h *RewardHandlers) PlayerRank() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		entry, err := h.leaderboard.PlayerRank(r.Context(), q.Get("period_id"), scopeOf(q.Get("category_id")), chi.URLParam(r, "player_id"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}
