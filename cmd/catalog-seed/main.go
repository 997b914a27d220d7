package main

import (
	"context"
	"os"
	"time"

	"trivia-rewards/internal/config"
	"trivia-rewards/internal/logging"
	"trivia-rewards/internal/store"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	cfg, err := config.LoadSeed()
	if err != nil {
		log.Fatal().Err(err).Msg("load seed config failed")
	}

	fh, err := os.Open(cfg.File)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.File).Msg("open seed file failed")
	}
	seed, err := parseSeed(fh)
	_ = fh.Close()
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.File).Msg("parse seed file failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	st, err := store.New(cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	defer st.Close()

	for _, s := range seed.seasons() {
		if _, err := st.UpsertSeason(ctx, s); err != nil {
			log.Fatal().Err(err).Str("season_id", s.ID).Msg("upsert season failed")
		}
	}
	items := seed.catalogItems()
	inserted, err := st.InsertCatalogItems(ctx, items)
	if err != nil {
		log.Fatal().Err(err).Msg("insert catalog items failed")
	}
	log.Info().
		Int("seasons", len(seed.Seasons)).
		Int("items", len(items)).
		Int("inserted", inserted).
		Msg("catalog_seeded")
}
