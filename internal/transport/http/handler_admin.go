package httptransport

import (
	"net/http"
	"time"

	"trivia-rewards/internal/cache"
	"trivia-rewards/internal/catalog"
	"trivia-rewards/internal/eligibility"
	"trivia-rewards/internal/leaderboard"
	"trivia-rewards/internal/rewards"
	"trivia-rewards/internal/store"

	"github.com/go-chi/chi/v5"
)

// AdminHandlers serve the producer-facing and operator routes.
type AdminHandlers struct {
	store       *store.Store
	cache       *cache.Cache
	eligibility *eligibility.Manager
	catalog     *catalog.Allocator
	leaderboard *leaderboard.Engine
}

func NewAdminHandlers(st *store.Store, c *cache.Cache, elig *eligibility.Manager, alloc *catalog.Allocator, board *leaderboard.Engine) *AdminHandlers {
	return &AdminHandlers{store: st, cache: c, eligibility: elig, catalog: alloc, leaderboard: board}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"ok": true, "db": "up", "cache": "up"}
		status := http.StatusOK
		if err := h.store.Ping(r.Context()); err != nil {
			resp["ok"], resp["db"] = false, "down"
			status = http.StatusServiceUnavailable
		}
		// the cache is rebuildable, so a cache outage degrades rather than fails the check
		if err := h.cache.Ping(r.Context()); err != nil {
			resp["cache"] = "down"
		}
		writeJSON(w, status, resp)
	}
}

// GrantEligibility records an eligibility for a qualifying session result.
func (h *AdminHandlers) GrantEligibility() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			eligibility.GrantRequest
			TTLSeconds int `json:"ttl_seconds,omitempty"`
		}
		if err := decodeJSON(r, &body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if body.TTLSeconds < 0 {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		req := body.GrantRequest
		req.TTL = time.Duration(body.TTLSeconds) * time.Second
		e, err := h.eligibility.Grant(r.Context(), req)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

// ConsumeEligibility voids an eligibility without a claim.
func (h *AdminHandlers) ConsumeEligibility() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := h.eligibility.Consume(r.Context(), chi.URLParam(r, "eligibility_id"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func (h *AdminHandlers) Allocate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			CategoryID string       `json:"category_id"`
			Tier       rewards.Tier `json:"tier"`
		}
		if err := decodeJSON(r, &body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		item, err := h.catalog.AllocateOne(r.Context(), body.CategoryID, body.Tier)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func (h *AdminHandlers) ScoreEvent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev leaderboard.ScoreEvent
		if err := decodeJSON(r, &ev); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		metricScoreEvents.Add(1)
		row, err := h.leaderboard.ApplyScoreDelta(r.Context(), ev)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, row)
	}
}

func (h *AdminHandlers) Rebuild() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			PeriodID   string `json:"period_id"`
			CategoryID string `json:"category_id,omitempty"`
		}
		if err := decodeJSON(r, &body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		scope := scopeOf(body.CategoryID)
		n, err := h.leaderboard.Rebuild(r.Context(), body.PeriodID, scope)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "period_id": body.PeriodID, "scope": scope, "players": n})
	}
}

func scopeOf(categoryID string) rewards.Scope {
	if categoryID == "" {
		return rewards.GlobalScope
	}
	return rewards.CategoryScope(categoryID)
}
