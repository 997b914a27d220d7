package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"trivia-rewards/internal/cache"
	"trivia-rewards/internal/catalog"
	"trivia-rewards/internal/config"
	"trivia-rewards/internal/eligibility"
	"trivia-rewards/internal/leaderboard"
	"trivia-rewards/internal/mcpserver"
	"trivia-rewards/internal/store"
	"trivia-rewards/internal/workflow"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Services are the engine components exposed over HTTP.
type Services struct {
	Store       *store.Store
	Cache       *cache.Cache
	Eligibility *eligibility.Manager
	Catalog     *catalog.Allocator
	Workflow    *workflow.Driver
	Leaderboard *leaderboard.Engine
}

func NewRouter(svc Services, cfg config.ServerConfig) *chi.Mux {
	mcpSrv := mcpserver.New(mcpserver.Deps{
		Eligibility: svc.Eligibility,
		Catalog:     svc.Catalog,
		Workflow:    svc.Workflow,
		Leaderboard: svc.Leaderboard,
	})
	rewardHandlers := NewRewardHandlers(svc.Eligibility, svc.Catalog, svc.Workflow, svc.Leaderboard)
	adminHandlers := NewAdminHandlers(svc.Store, svc.Cache, svc.Eligibility, svc.Catalog, svc.Leaderboard)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())
	r.With(APILogMiddleware()).MethodFunc(http.MethodOptions, "/mcp", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Allow", "POST, GET, DELETE, OPTIONS")
		w.WriteHeader(http.StatusNoContent)
	})
	r.With(APILogMiddleware()).Method(http.MethodPost, "/mcp", mcpSrv.Handler())
	r.With(APILogMiddleware()).Method(http.MethodGet, "/mcp", mcpSrv.Handler())
	r.With(APILogMiddleware()).Method(http.MethodDelete, "/mcp", mcpSrv.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Get("/players/{player_id}/eligibilities", rewardHandlers.PlayerEligibilities())
		r.Get("/players/{player_id}/inventory", rewardHandlers.Inventory())
		r.Get("/eligibilities/{eligibility_id}", rewardHandlers.ValidateEligibility())
		r.Get("/catalog/availability", rewardHandlers.Availability())
		r.Post("/claims", rewardHandlers.Claim())
		r.Post("/forges", rewardHandlers.Forge())
		r.Get("/operations/{operation_id}", rewardHandlers.Operation())
		r.Post("/operations/{operation_id}/retry", rewardHandlers.Retry())
		r.Get("/leaderboard", rewardHandlers.Leaderboard())
		r.Get("/leaderboard/players/{player_id}", rewardHandlers.PlayerRank())

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
			r.Use(BodyCaptureMiddleware(4096))
			r.Post("/eligibilities", adminHandlers.GrantEligibility())
			r.Post("/eligibilities/{eligibility_id}/consume", adminHandlers.ConsumeEligibility())
			r.Post("/catalog/allocate", adminHandlers.Allocate())
			r.Post("/scores", adminHandlers.ScoreEvent())
			r.Post("/leaderboard/rebuild", adminHandlers.Rebuild())
			r.Get("/debug/vars", expvar.Handler().ServeHTTP)
		})
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 32)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
