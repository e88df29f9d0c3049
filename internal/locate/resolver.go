// internal/locate/resolver.go
//
// Location resolution: orchestrates the region sampler and the tile
// classifier under a bounded retry budget to produce an accepted location
// for a round.
//
// Guarantees:
//   - Always returns a coordinate: when the budget runs out without an
//     acceptable candidate the fixed fallback (the capital-region
//     centroid) is returned instead of an error, so the game can proceed.
//   - PRNG draws are strictly sequential: candidates are generated and
//     evaluated one at a time, in seed order, so every client replaying
//     the seed walks the identical candidate sequence.
//   - A classifier failure (tile unavailable) counts as a rejection and
//     burns one attempt; it never aborts the loop.

package locate

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/topoguesser/go-server/internal/geo"
	"github.com/topoguesser/go-server/internal/region"
	"github.com/topoguesser/go-server/internal/rng"
	"github.com/topoguesser/go-server/internal/tiles"
)

// DefaultBudget is the maximum number of candidates tried per round.
const DefaultBudget = 500

// Fallback is returned when the budget is exhausted: central Wellington.
var Fallback = geo.Coordinate{Lat: -41.3, Lng: 174.8}

// Options select the acceptance predicate for a round. Beach and Urban are
// not mutually exclusive in configuration; beach is checked first and wins
// when both are set, preserving the historical precedence.
type Options struct {
	Beach bool
	Urban bool
	Zoom  int
}

// Mode renders the effective mode name, applying the beach-first precedence.
func (o Options) Mode() string {
	switch {
	case o.Beach:
		return "beach"
	case o.Urban:
		return "urban"
	default:
		return "normal"
	}
}

// Resolver runs the sampling/classification loop.
type Resolver struct {
	Sampler    *region.Sampler
	Classifier tiles.Classifier
	Budget     int
	Fallback   geo.Coordinate
}

// NewResolver wires a Resolver with the default budget and fallback.
func NewResolver(sm *region.Sampler, cl tiles.Classifier) *Resolver {
	return &Resolver{Sampler: sm, Classifier: cl, Budget: DefaultBudget, Fallback: Fallback}
}

// Resolve draws candidates from s until one satisfies the mode predicate
// or the budget is exhausted, in which case the fallback is returned with
// a nil error. The only error path is context cancellation.
func (r *Resolver) Resolve(ctx context.Context, s *rng.State, opts Options) (geo.Coordinate, error) {
	for attempt := 0; attempt < r.Budget; attempt++ {
		if err := ctx.Err(); err != nil {
			return geo.Coordinate{}, err
		}

		c := r.Sampler.Sample(s)
		verdict := r.Classifier.Classify(ctx, c, opts.Zoom)

		if accept(verdict, opts) {
			log.Debug().
				Int("attempts", attempt+1).
				Str("mode", opts.Mode()).
				Float64("lat", c.Lat).Float64("lng", c.Lng).
				Msg("location accepted")
			return c, nil
		}
	}

	log.Warn().
		Int("budget", r.Budget).
		Str("mode", opts.Mode()).
		Msg("resolution budget exhausted, using fallback location")
	return r.Fallback, nil
}

// accept applies the per-mode predicate. Beach before urban.
func accept(v tiles.Classification, opts Options) bool {
	if v.Outcome != tiles.OutcomeOK {
		return false
	}
	switch {
	case opts.Beach:
		return v.HasLand && v.WaterFraction >= tiles.WaterMinFraction
	case opts.Urban:
		return v.UrbanFraction >= tiles.UrbanMinFraction
	default:
		return v.HasLand
	}
}
