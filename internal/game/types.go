// internal/game/types.go
//
// Core type definitions for a guessing session.
// Defines:
//   - State: the round/game state machine states.
//   - Config: per-session settings (seed, zoom, rounds, mode, timer).
//   - Round: one played round, from resolved answer to score.

package game

import (
	"time"

	"github.com/topoguesser/go-server/internal/geo"
)

// State of the session state machine.
//
//	Idle → InProgress → AwaitingGuess → Scored → (InProgress | Finished)
type State string

const (
	StateIdle          State = "idle"
	StateInProgress    State = "in_progress"
	StateAwaitingGuess State = "awaiting_guess"
	StateScored        State = "scored"
	StateFinished      State = "finished"
)

// Config fixes the rules of one session. Beach and Urban may both be set;
// beach takes precedence during resolution.
type Config struct {
	Seed         int64 `json:"seed"`
	Zoom         int   `json:"zoom"`
	Rounds       int   `json:"rounds"`
	Beach        bool  `json:"beachMode"`
	Urban        bool  `json:"urbanMode"`
	TimerSeconds int   `json:"timerSeconds"` // 0 disables the timer
}

// Round records one round of play.
type Round struct {
	Number     int             `json:"number"`
	Answer     geo.Coordinate  `json:"answer"`
	Pending    *geo.Coordinate `json:"pending,omitempty"` // marker placed, not submitted
	Guess      *geo.Coordinate `json:"guess,omitempty"`
	DistanceKm float64         `json:"distanceKm"`
	Score      int             `json:"score"`
	Deadline   time.Time       `json:"deadline,omitempty"` // zero when the timer is disabled
}
