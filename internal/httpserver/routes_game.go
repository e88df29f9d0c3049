// internal/httpserver/routes_game.go
//
// HTTP routes for server-hosted game sessions.
// Exposes five endpoints under /game:
//   - POST /game/new          → create a session (seed, modes, rounds, timer)
//   - POST /game/{id}/round   → resolve the next round's location
//   - POST /game/{id}/place   → place or move the pending marker
//   - POST /game/{id}/submit  → score the pending guess
//   - GET  /game/{id}         → session summary
//
// The answer's coordinates are never returned while a round is open; the
// client gets only the tile index to render. Scored rounds are returned in
// full and persisted to the guess log best-effort.
//
// Timers are lazy: expiry is checked on access rather than by a background
// goroutine, so an expired round with a pending marker scores on the next
// submit or summary request.

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/topoguesser/go-server/internal/game"
	"github.com/topoguesser/go-server/internal/geo"
	"github.com/topoguesser/go-server/internal/store"
)

// mountGame registers the /game routes.
func (s *Server) mountGame(r chi.Router) {
	r.Route("/game", func(r chi.Router) {
		r.Post("/new", s.handleNewGame)
		r.Post("/{id}/round", s.handleStartRound)
		r.Post("/{id}/place", s.handlePlaceGuess)
		r.Post("/{id}/submit", s.handleSubmitGuess)
		r.Get("/{id}", s.handleGameState)
	})
}

// loadSession fetches a session or writes a 404.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (*game.Session, bool) {
	sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		} else {
			http.Error(w, `{"error":"store_error"}`, http.StatusInternalServerError)
		}
		return nil, false
	}
	return sess, true
}

// writeGameErr maps state machine errors onto HTTP statuses.
func writeGameErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrBadState):
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusConflict)
	case errors.Is(err, game.ErrNoPendingGuess):
		http.Error(w, `{"error":"no pending guess"}`, http.StatusBadRequest)
	default:
		log.Error().Err(err).Msg("game operation failed")
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
	}
}

// -----------------------------------------------------------------------------
// POST /game/new

// newGameReq carries the session config. A guest may name themselves via
// User; authenticated callers play under their account name.
type newGameReq struct {
	User string `json:"user"`
	game.Config
}

type newGameRes struct {
	GameID string      `json:"gameId"`
	User   string      `json:"user"`
	Config game.Config `json:"config"`
	State  game.State  `json:"state"`
}

func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	_ = json.NewDecoder(r.Body).Decode(&req)

	user := playerName(r, req.User)
	if user == "" {
		user = "anonymous"
	}
	sess := game.New(user, req.Config, s.resolver)
	if err := s.sessions.Save(r.Context(), sess); err != nil {
		log.Error().Err(err).Msg("save session")
		http.Error(w, `{"error":"save_failed"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(newGameRes{
		GameID: sess.ID,
		User:   sess.User,
		Config: sess.Config(),
		State:  sess.State(),
	})
}

// -----------------------------------------------------------------------------
// POST /game/{id}/round

// roundRes describes an open round without revealing the answer.
type roundRes struct {
	Number   int        `json:"number"`
	Tile     geo.Tile   `json:"tile"`
	Deadline *time.Time `json:"deadline,omitempty"`
	State    game.State `json:"state"`
}

func openRoundView(sess *game.Session, rd game.Round) roundRes {
	res := roundRes{
		Number: rd.Number,
		Tile:   geo.Project(rd.Answer.Lat, rd.Answer.Lng, sess.Config().Zoom),
		State:  sess.State(),
	}
	if !rd.Deadline.IsZero() {
		d := rd.Deadline
		res.Deadline = &d
	}
	return res
}

func (s *Server) handleStartRound(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	rd, err := sess.StartRound(r.Context())
	if err != nil {
		writeGameErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(openRoundView(sess, rd))
}

// -----------------------------------------------------------------------------
// POST /game/{id}/place

type placeReq struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (s *Server) handlePlaceGuess(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	var p placeReq
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	if err := sess.PlaceGuess(p.Lat, p.Lng); err != nil {
		writeGameErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// -----------------------------------------------------------------------------
// POST /game/{id}/submit

type scoredRes struct {
	Round      game.Round `json:"round"`
	TotalScore int        `json:"totalScore"`
	State      game.State `json:"state"`
}

func (s *Server) handleSubmitGuess(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	// An expired timer with a pending marker scores first.
	rd, fired := sess.ExpireTimer()
	if !fired {
		var err error
		rd, err = sess.Submit()
		if err != nil {
			writeGameErr(w, err)
			return
		}
	}

	s.persistScoredRound(r, sess, rd)
	_ = json.NewEncoder(w).Encode(scoredRes{
		Round:      rd,
		TotalScore: sess.TotalScore(),
		State:      sess.State(),
	})
}

// persistScoredRound mirrors a scored round into the guess log so hosted
// sessions feed the same leaderboards as client-reported play. Best effort;
// failures are logged, never surfaced.
func (s *Server) persistScoredRound(r *http.Request, sess *game.Session, rd game.Round) {
	seed := seedKey(sess.Config().Seed)
	if _, err := s.guesses.InsertGuess(r.Context(), sess.User, seed, rd.Number,
		rd.Guess.Lat, rd.Guess.Lng, rd.DistanceKm); err != nil {
		log.Warn().Err(err).Str("gameId", sess.ID).Msg("persist guess")
	}
	if err := s.guesses.InsertAnswer(r.Context(), seed, rd.Number,
		rd.Answer.Lat, rd.Answer.Lng); err != nil {
		log.Warn().Err(err).Str("gameId", sess.ID).Msg("persist answer")
	}
}

// seedKey renders a numeric seed the way clients post it.
func seedKey(seed int64) string {
	return strconv.FormatInt(seed, 10)
}

// -----------------------------------------------------------------------------
// GET /game/{id}

type gameStateRes struct {
	GameID     string      `json:"gameId"`
	User       string      `json:"user"`
	Config     game.Config `json:"config"`
	State      game.State  `json:"state"`
	TotalScore int         `json:"totalScore"`
	Rounds     []any       `json:"rounds"`
}

func (s *Server) handleGameState(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	// Lazily fire an expired timer so summaries reflect the score.
	if rd, fired := sess.ExpireTimer(); fired {
		s.persistScoredRound(r, sess, rd)
	}

	res := gameStateRes{
		GameID:     sess.ID,
		User:       sess.User,
		Config:     sess.Config(),
		State:      sess.State(),
		TotalScore: sess.TotalScore(),
		Rounds:     []any{},
	}
	for _, rd := range sess.Rounds() {
		if rd.Guess == nil {
			// Open round: tile only, no answer coordinates.
			res.Rounds = append(res.Rounds, openRoundView(sess, rd))
		} else {
			res.Rounds = append(res.Rounds, rd)
		}
	}
	_ = json.NewEncoder(w).Encode(res)
}
