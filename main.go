// main.go
//
// Entry point for the topo-guesser backend.
// Responsibilities:
//   - Load .env + configure zerolog level.
//   - Open the guess log database (SQLite, migrated on start).
//   - Build the location resolution pipeline (regions → sampler → tile
//     classifier → resolver).
//   - Wire the HTTP server and start listening.

package main

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/topoguesser/go-server/internal/guesslog"
	"github.com/topoguesser/go-server/internal/httpserver"
	"github.com/topoguesser/go-server/internal/identity"
	"github.com/topoguesser/go-server/internal/locate"
	"github.com/topoguesser/go-server/internal/region"
	"github.com/topoguesser/go-server/internal/store"
	"github.com/topoguesser/go-server/internal/tiles"
)

func main() {
	_ = godotenv.Load()
	if lvl, err := zerolog.ParseLevel(envStr("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	db, err := guesslog.Open(envStr("DB_PATH", "./data/app.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	table, err := region.Default()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load region table")
	}

	classifier := tiles.NewRasterClassifier(
		envStr("TILE_BASE_URL", ""),
		os.Getenv("TILE_API_KEY"),
		envStr("TILE_EXT", ""),
		time.Duration(envInt("TILE_TIMEOUT_SECONDS", 10))*time.Second,
	)
	resolver := locate.NewResolver(region.NewSampler(table), classifier)

	// Google sign-in is optional; without a client ID the endpoint is off.
	var verifier identity.Verifier
	if aud := os.Getenv("GOOGLE_CLIENT_ID"); aud != "" {
		verifier = identity.NewTokenInfoVerifier(os.Getenv("TOKENINFO_URL"), aud)
	}

	srv := httpserver.New(store.NewMemoryStore(), db, resolver, verifier)
	port := envStr("PORT", "3000")
	log.Info().Str("port", port).Int("regions", len(table)).Msg("starting topo-guesser server")
	if err := srv.Start(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func envStr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
