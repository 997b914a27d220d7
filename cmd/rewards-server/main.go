package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"trivia-rewards/internal/cache"
	"trivia-rewards/internal/catalog"
	"trivia-rewards/internal/config"
	"trivia-rewards/internal/contentstore"
	"trivia-rewards/internal/eligibility"
	"trivia-rewards/internal/leaderboard"
	"trivia-rewards/internal/ledger"
	"trivia-rewards/internal/logging"
	"trivia-rewards/internal/store"
	"trivia-rewards/internal/sweeper"
	httptransport "trivia-rewards/internal/transport/http"
	"trivia-rewards/internal/workflow"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.New(cfg.Server.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	defer st.Close()
	if err := st.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}

	c := cache.New(cfg.Cache)
	defer c.Close()
	if err := c.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("cache ping failed; leaderboard reads will fall back to rebuilds")
	}

	content, err := contentstore.NewS3(ctx, cfg.Content)
	if err != nil {
		log.Fatal().Err(err).Msg("content store init failed")
	}

	elig := eligibility.NewManager(st, c, cfg.Engine)
	alloc := catalog.NewAllocator(st)
	board := leaderboard.NewEngine(st, c)
	drv := workflow.NewDriver(st, elig, ledger.NewHTTPClient(cfg.Ledger), content, cfg.Engine)
	drv.OnConfirmed(board.RecordClaim)

	sw := sweeper.New(elig, st, cfg.Engine)
	if err := sw.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("sweeper start failed")
	}

	r := httptransport.NewRouter(httptransport.Services{
		Store:       st,
		Cache:       c,
		Eligibility: elig,
		Catalog:     alloc,
		Workflow:    drv,
		Leaderboard: board,
	}, cfg.Server)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// claims and forges hold the request open until the ledger finalizes
		WriteTimeout: cfg.Engine.ConfirmMaxWait + time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server stopped")
	}
	if err := sw.Stop(); err != nil {
		log.Error().Err(err).Msg("sweeper stop failed")
	}
	log.Info().Msg("shutdown complete")
}
