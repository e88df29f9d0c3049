// internal/rng/rng.go
//
// Seeded pseudo-random stream shared by every client of a game seed.
// The exact constants matter: two independent clients given the same seed
// must observe the same sequence of locations, so the generator below has
// to match the historical one bit for bit. Do not change A, C or M.

package rng

// Linear congruential generator parameters. Published so that other
// implementations can reproduce sequences against historical seeds.
const (
	A = 9301
	C = 49297
	M = 233280
)

// DefaultSeed is used when a session does not supply one.
const DefaultSeed = 12345

// State is the single mutable register of the generator. It is an explicit
// value threaded through sampling calls, never ambient global state, so
// concurrent sessions stay isolated and tests stay deterministic.
type State struct {
	value int64
}

// New returns a State seeded with the given integer.
func New(seed int64) *State {
	s := &State{}
	s.Seed(seed)
	return s
}

// Seed resets the register, starting a fresh sequence. The register is
// reduced to its non-negative residue mod M; this leaves every sequence for
// a non-negative seed untouched (the recurrence only sees the seed mod M)
// and keeps Next in [0, 1) for negative seeds, where Go's % would otherwise
// carry the sign into the register.
func (s *State) Seed(seed int64) {
	s.value = ((seed % M) + M) % M
}

// Next advances the register once and returns a value in [0, 1).
func (s *State) Next() float64 {
	s.value = (s.value*A + C) % M
	return float64(s.value) / M
}

// InRange linearly remaps Next onto [min, max). Consumes exactly one draw.
func (s *State) InRange(min, max float64) float64 {
	return min + s.Next()*(max-min)
}
