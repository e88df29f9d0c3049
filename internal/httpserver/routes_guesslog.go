// internal/httpserver/routes_guesslog.go
//
// HTTP routes for the asynchronous multiplayer guess log.
// Exposes the append-only log and the aggregates derived from it:
//   - POST /guess                     → record a guess, returns its score
//   - POST /answer                    → record a round's answer location
//   - GET  /guesses?seed=             → all guesses for a seed
//   - GET  /guesses/{seed}/{round}    → guesses for one round
//   - GET  /leaderboard?seed=         → ranked per-player totals
//   - GET  /seed-settings?seed=       → seed metadata (defaults when unsaved)
//   - POST /seed-settings             → save seed metadata (first write wins)
//   - GET  /api/seeds/recent          → seeds with activity, most players first
//   - GET  /seed-analysis/{seed}      → per-round guesses + answers + settings
//
// Guests may post guesses under a plain name; authenticated users always post
// under their account name regardless of what the body says.

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/topoguesser/go-server/internal/guesslog"
)

// mountGuessLog registers the guess log routes.
func (s *Server) mountGuessLog(r chi.Router) {
	r.Post("/guess", s.handleRecordGuess)
	r.Post("/answer", s.handleRecordAnswer)
	r.Get("/guesses", s.handleGuesses)
	r.Get("/guesses/{seed}/{round}", s.handleGuessesForRound)
	r.Get("/leaderboard", s.handleLeaderboard)
	r.Get("/seed-settings", s.handleGetSeedSettings)
	r.Post("/seed-settings", s.handleSaveSeedSettings)
	r.Get("/api/seeds/recent", s.handleRecentSeeds)
	r.Get("/seed-analysis/{seed}", s.handleSeedAnalysis)
}

// writeStoreErr maps store failures onto HTTP statuses: validation errors
// name the missing field in a 400, everything else is a 500.
func writeStoreErr(w http.ResponseWriter, err error) {
	var mf *guesslog.MissingFieldError
	if errors.As(err, &mf) {
		http.Error(w, `{"error":"`+mf.Error()+`"}`, http.StatusBadRequest)
		return
	}
	log.Error().Err(err).Msg("guess log operation failed")
	http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
}

// -----------------------------------------------------------------------------
// POST /guess

// recordGuessReq is the payload for POST /guess. Distance is computed
// client-side against the revealed answer; the score is derived from it here
// and never trusted from the client.
type recordGuessReq struct {
	User     string  `json:"user"`
	Seed     string  `json:"seed"`
	Round    int     `json:"round"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Distance float64 `json:"distance"`
}

type recordGuessRes struct {
	Message string `json:"message"`
	Score   int    `json:"score"`
}

func (s *Server) handleRecordGuess(w http.ResponseWriter, r *http.Request) {
	var p recordGuessReq
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	user := playerName(r, p.User)
	score, err := s.guesses.InsertGuess(r.Context(), user, p.Seed, p.Round, p.Lat, p.Lng, p.Distance)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(recordGuessRes{Message: "Guess saved", Score: score})
}

// -----------------------------------------------------------------------------
// POST /answer

type recordAnswerReq struct {
	Seed  string  `json:"seed"`
	Round int     `json:"round"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
}

func (s *Server) handleRecordAnswer(w http.ResponseWriter, r *http.Request) {
	var p recordAnswerReq
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	if err := s.guesses.InsertAnswer(r.Context(), p.Seed, p.Round, p.Lat, p.Lng); err != nil {
		writeStoreErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// -----------------------------------------------------------------------------
// GET /guesses, GET /guesses/{seed}/{round}

func (s *Server) handleGuesses(w http.ResponseWriter, r *http.Request) {
	seed := r.URL.Query().Get("seed")
	if seed == "" {
		http.Error(w, `{"error":"missing required field: seed"}`, http.StatusBadRequest)
		return
	}
	out, err := s.guesses.Guesses(r.Context(), seed)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) handleGuessesForRound(w http.ResponseWriter, r *http.Request) {
	seed := chi.URLParam(r, "seed")
	round, err := strconv.Atoi(chi.URLParam(r, "round"))
	if err != nil || round <= 0 {
		http.Error(w, `{"error":"invalid round"}`, http.StatusBadRequest)
		return
	}
	out, err := s.guesses.GuessesForRound(r.Context(), seed, round)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(out)
}

// -----------------------------------------------------------------------------
// GET /leaderboard

// handleLeaderboard returns the bare ranked array, the shape clients
// already consume.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	seed := r.URL.Query().Get("seed")
	if seed == "" {
		http.Error(w, `{"error":"missing required field: seed"}`, http.StatusBadRequest)
		return
	}
	rows, err := s.guesses.Leaderboard(r.Context(), seed)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(rows)
}

// -----------------------------------------------------------------------------
// Seed settings

func (s *Server) handleGetSeedSettings(w http.ResponseWriter, r *http.Request) {
	seed := r.URL.Query().Get("seed")
	if seed == "" {
		http.Error(w, `{"error":"missing required field: seed"}`, http.StatusBadRequest)
		return
	}
	st, err := s.guesses.SeedSettings(r.Context(), seed)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(st)
}

func (s *Server) handleSaveSeedSettings(w http.ResponseWriter, r *http.Request) {
	var st guesslog.Settings
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	if err := s.guesses.SaveSeedSettings(r.Context(), st); err != nil {
		writeStoreErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// -----------------------------------------------------------------------------
// GET /api/seeds/recent, GET /seed-analysis/{seed}

func (s *Server) handleRecentSeeds(w http.ResponseWriter, r *http.Request) {
	seeds, err := s.guesses.RecentSeeds(r.Context())
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(seeds)
}

func (s *Server) handleSeedAnalysis(w http.ResponseWriter, r *http.Request) {
	seed := chi.URLParam(r, "seed")
	a, err := s.guesses.SeedAnalysis(r.Context(), seed)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(a)
}
