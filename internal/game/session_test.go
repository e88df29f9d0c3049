package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/topoguesser/go-server/internal/geo"
	"github.com/topoguesser/go-server/internal/locate"
	"github.com/topoguesser/go-server/internal/region"
	"github.com/topoguesser/go-server/internal/tiles"
)

// acceptAll classifies every tile as plain land, so normal mode accepts
// the first candidate and no network is involved.
type acceptAll struct{}

func (acceptAll) Classify(ctx context.Context, c geo.Coordinate, zoom int) tiles.Classification {
	return tiles.Classification{Outcome: tiles.OutcomeOK, HasLand: true}
}

func testResolver(t *testing.T) *locate.Resolver {
	t.Helper()
	tab, err := region.Default()
	if err != nil {
		t.Fatalf("regions: %v", err)
	}
	return locate.NewResolver(region.NewSampler(tab), acceptAll{})
}

func TestFullSessionWalk(t *testing.T) {
	s := New("ana", Config{Seed: 12345, Rounds: 2}, testResolver(t))
	ctx := context.Background()

	if s.State() != StateIdle {
		t.Fatalf("fresh session state = %s", s.State())
	}

	r1, err := s.StartRound(ctx)
	if err != nil {
		t.Fatalf("StartRound: %v", err)
	}
	if r1.Number != 1 || s.State() != StateAwaitingGuess {
		t.Fatalf("after start: round %d, state %s", r1.Number, s.State())
	}

	if err := s.PlaceGuess(-41.0, 174.0); err != nil {
		t.Fatalf("PlaceGuess: %v", err)
	}
	scored, err := s.Submit()
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if scored.Guess == nil || scored.Score != geo.RoundScore(scored.DistanceKm) {
		t.Fatalf("scored round inconsistent: %+v", scored)
	}
	if s.State() != StateScored {
		t.Fatalf("after round 1 of 2: state %s", s.State())
	}
	if s.TotalScore() != scored.Score {
		t.Fatalf("total %d, want %d", s.TotalScore(), scored.Score)
	}

	r2, err := s.StartRound(ctx)
	if err != nil {
		t.Fatalf("StartRound 2: %v", err)
	}
	if r2.Number != 2 {
		t.Fatalf("round number = %d, want 2", r2.Number)
	}
	if err := s.PlaceGuess(r2.Answer.Lat, r2.Answer.Lng); err != nil {
		t.Fatalf("PlaceGuess: %v", err)
	}
	perfect, err := s.Submit()
	if err != nil {
		t.Fatalf("Submit 2: %v", err)
	}
	if perfect.Score != 300 {
		t.Fatalf("perfect guess score = %d, want 300", perfect.Score)
	}
	if s.State() != StateFinished {
		t.Fatalf("after final round: state %s", s.State())
	}
	if s.TotalScore() != scored.Score+300 {
		t.Fatalf("total %d, want %d", s.TotalScore(), scored.Score+300)
	}
}

func TestIllegalTransitions(t *testing.T) {
	s := New("bo", Config{Rounds: 1}, testResolver(t))

	if err := s.PlaceGuess(0, 0); !errors.Is(err, ErrBadState) {
		t.Fatalf("PlaceGuess before start: %v", err)
	}
	if _, err := s.Submit(); !errors.Is(err, ErrBadState) {
		t.Fatalf("Submit before start: %v", err)
	}

	if _, err := s.StartRound(context.Background()); err != nil {
		t.Fatalf("StartRound: %v", err)
	}
	if _, err := s.StartRound(context.Background()); !errors.Is(err, ErrBadState) {
		t.Fatalf("double StartRound: %v", err)
	}
	if _, err := s.Submit(); !errors.Is(err, ErrNoPendingGuess) {
		t.Fatalf("Submit with no marker: %v", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	s := New("cy", Config{}, testResolver(t))
	cfg := s.Config()
	if cfg.Seed != 12345 || cfg.Zoom != DefaultZoom || cfg.Rounds != DefaultRounds {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

// Two sessions sharing a seed must resolve identical answers round after
// round: this is the asynchronous-multiplayer contract.
func TestSameSeedSameAnswers(t *testing.T) {
	mk := func() *Session {
		return New("p", Config{Seed: 4242, Rounds: 3}, testResolver(t))
	}
	a, b := mk(), mk()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ra, err := a.StartRound(ctx)
		if err != nil {
			t.Fatalf("a round %d: %v", i+1, err)
		}
		rb, err := b.StartRound(ctx)
		if err != nil {
			t.Fatalf("b round %d: %v", i+1, err)
		}
		if ra.Answer != rb.Answer {
			t.Fatalf("round %d answers diverged: %+v vs %+v", i+1, ra.Answer, rb.Answer)
		}
		for _, s := range []*Session{a, b} {
			if err := s.PlaceGuess(-41, 174); err != nil {
				t.Fatal(err)
			}
			if _, err := s.Submit(); err != nil {
				t.Fatal(err)
			}
		}
	}
}

func TestTimerExpiry(t *testing.T) {
	s := New("dee", Config{Rounds: 1, TimerSeconds: 30}, testResolver(t))
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	if _, err := s.StartRound(context.Background()); err != nil {
		t.Fatalf("StartRound: %v", err)
	}

	// Before the deadline nothing happens.
	if _, ok := s.ExpireTimer(); ok {
		t.Fatal("timer fired before deadline")
	}

	// Past the deadline with no marker placed: the round stays open.
	s.now = func() time.Time { return base.Add(31 * time.Second) }
	if _, ok := s.ExpireTimer(); ok {
		t.Fatal("expiry submitted without a pending guess")
	}
	if s.State() != StateAwaitingGuess {
		t.Fatalf("state after no-guess expiry = %s", s.State())
	}

	// With a marker placed, expiry auto-submits.
	if err := s.PlaceGuess(-41.3, 174.8); err != nil {
		t.Fatal(err)
	}
	r, ok := s.ExpireTimer()
	if !ok {
		t.Fatal("expiry did not submit pending guess")
	}
	if r.Guess == nil || s.State() != StateFinished {
		t.Fatalf("after auto-submit: round %+v, state %s", r, s.State())
	}
}

func TestNoTimerNeverExpires(t *testing.T) {
	s := New("ed", Config{Rounds: 1}, testResolver(t))
	if _, err := s.StartRound(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.PlaceGuess(0, 0); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.ExpireTimer(); ok {
		t.Fatal("session without timer expired")
	}
}
