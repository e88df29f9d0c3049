// internal/game/session.go
//
// Session state machine for a run of rounds against one seed.
// Responsibilities:
//   - Sequence rounds: resolve a location, await the guess, score it.
//   - Own the session's PRNG state so a seed replays identically.
//   - Enforce legal transitions; reject out-of-order actions.
//   - Timer expiry auto-submits only when a pending guess exists; a round
//     with no marker placed simply stays open.
//
// Notes:
//   - One session never runs two resolutions concurrently: StartRound is
//     only legal from Idle/Scored, and resolution completes before the
//     session reaches AwaitingGuess.
//   - All methods are safe for concurrent use; HTTP handlers and a timer
//     may touch the same session.

package game

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/topoguesser/go-server/internal/geo"
	"github.com/topoguesser/go-server/internal/locate"
	"github.com/topoguesser/go-server/internal/rng"
)

// Defaults applied by New when Config fields are zero.
const (
	DefaultZoom   = 10
	DefaultRounds = 1
)

var (
	// ErrBadState is returned for transitions the state machine forbids.
	ErrBadState = errors.New("game: action not valid in current state")

	// ErrNoPendingGuess is returned by Submit when no marker was placed.
	ErrNoPendingGuess = errors.New("game: no pending guess to submit")
)

// Session is a single player's run against one seed. Create with New.
type Session struct {
	ID   string
	User string

	mu       sync.Mutex
	cfg      Config
	state    State
	rng      *rng.State
	resolver *locate.Resolver
	rounds   []Round
	total    int

	now func() time.Time // stubbed in tests
}

// New builds an Idle session, filling config defaults.
func New(user string, cfg Config, resolver *locate.Resolver) *Session {
	if cfg.Seed == 0 {
		cfg.Seed = rng.DefaultSeed
	}
	if cfg.Zoom <= 0 {
		cfg.Zoom = DefaultZoom
	}
	if cfg.Rounds <= 0 {
		cfg.Rounds = DefaultRounds
	}
	return &Session{
		ID:       randomID(),
		User:     user,
		cfg:      cfg,
		state:    StateIdle,
		rng:      rng.New(cfg.Seed),
		resolver: resolver,
		now:      time.Now,
	}
}

// StartRound resolves the next round's location. Legal from Idle or Scored
// while rounds remain. Blocks on tile I/O; the context bounds it.
func (s *Session) StartRound(ctx context.Context) (Round, error) {
	s.mu.Lock()
	if s.state != StateIdle && s.state != StateScored {
		s.mu.Unlock()
		return Round{}, fmt.Errorf("%w: start round in %s", ErrBadState, s.state)
	}
	s.state = StateInProgress
	number := len(s.rounds) + 1
	opts := locate.Options{Beach: s.cfg.Beach, Urban: s.cfg.Urban, Zoom: s.cfg.Zoom}
	st := s.rng
	s.mu.Unlock()

	// Resolution happens outside the lock; InProgress blocks any competing
	// transition, so st is not shared while this runs.
	answer, err := s.resolver.Resolve(ctx, st, opts)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateIdle
		return Round{}, err
	}

	r := Round{Number: number, Answer: answer}
	if s.cfg.TimerSeconds > 0 {
		r.Deadline = s.now().Add(time.Duration(s.cfg.TimerSeconds) * time.Second)
	}
	s.rounds = append(s.rounds, r)
	s.state = StateAwaitingGuess
	return r, nil
}

// PlaceGuess records (or moves) the pending marker for the open round.
func (s *Session) PlaceGuess(lat, lng float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAwaitingGuess {
		return fmt.Errorf("%w: place guess in %s", ErrBadState, s.state)
	}
	r := &s.rounds[len(s.rounds)-1]
	r.Pending = &geo.Coordinate{Lat: lat, Lng: lng}
	return nil
}

// Submit scores the pending guess and advances the machine. The round's
// distance and score are final once Submit returns.
func (s *Session) Submit() (Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitLocked()
}

func (s *Session) submitLocked() (Round, error) {
	if s.state != StateAwaitingGuess {
		return Round{}, fmt.Errorf("%w: submit in %s", ErrBadState, s.state)
	}
	r := &s.rounds[len(s.rounds)-1]
	if r.Pending == nil {
		return Round{}, ErrNoPendingGuess
	}

	r.Guess = r.Pending
	r.Pending = nil
	r.DistanceKm = geo.DistanceKm(r.Answer, *r.Guess)
	r.Score = geo.RoundScore(r.DistanceKm)
	s.total += r.Score

	if len(s.rounds) >= s.cfg.Rounds {
		s.state = StateFinished
	} else {
		s.state = StateScored
	}
	return *r, nil
}

// ExpireTimer is called when the round clock runs out. It force-submits a
// pending guess; with no marker placed it does nothing and the round stays
// open for a manual submission. In-flight tile fetches are never aborted
// by the timer.
func (s *Session) ExpireTimer() (Round, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAwaitingGuess {
		return Round{}, false
	}
	r := s.rounds[len(s.rounds)-1]
	if r.Deadline.IsZero() || s.now().Before(r.Deadline) {
		return Round{}, false
	}
	if r.Pending == nil {
		return Round{}, false
	}
	scored, err := s.submitLocked()
	return scored, err == nil
}

// State reports the machine's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Config returns the session settings.
func (s *Session) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// TotalScore is the sum of scored rounds so far.
func (s *Session) TotalScore() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Rounds returns a copy of the played rounds.
func (s *Session) Rounds() []Round {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Round, len(s.rounds))
	copy(out, s.rounds)
	return out
}

// CurrentRound returns the latest round and its number, or false before
// the first StartRound.
func (s *Session) CurrentRound() (Round, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rounds) == 0 {
		return Round{}, false
	}
	return s.rounds[len(s.rounds)-1], true
}

// randomID returns a compact 16-hex-char identifier.
// Collisions are extremely unlikely given crypto/rand entropy.
func randomID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
