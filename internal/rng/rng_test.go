package rng

import "testing"

// The generator must reproduce the same sequence for a fixed seed, run
// after run. The expected values are recomputed from the published
// constants with plain integer arithmetic so any drift in the
// implementation shows up immediately.
func TestFixedSeedSequence(t *testing.T) {
	const seed = 12345
	const n = 64

	want := make([]float64, n)
	reg := int64(seed)
	for i := 0; i < n; i++ {
		reg = (reg*A + C) % M
		want[i] = float64(reg) / M
	}

	for run := 0; run < 3; run++ {
		s := New(seed)
		for i := 0; i < n; i++ {
			if got := s.Next(); got != want[i] {
				t.Fatalf("run %d draw %d: got %.17g, want %.17g", run, i, got, want[i])
			}
		}
	}
}

func TestKnownFirstDraws(t *testing.T) {
	// Hand-computed registers for seed 12345:
	// 12345 -> 96382 -> 3239 -> 82116
	s := New(12345)
	for i, reg := range []int64{96382, 3239, 82116} {
		want := float64(reg) / M
		if got := s.Next(); got != want {
			t.Fatalf("draw %d: got %.17g, want %.17g", i, got, want)
		}
	}
}

func TestNextRange(t *testing.T) {
	s := New(987654321)
	for i := 0; i < 10000; i++ {
		v := s.Next()
		if v < 0 || v >= 1 {
			t.Fatalf("draw %d out of [0,1): %v", i, v)
		}
	}
}

func TestInRange(t *testing.T) {
	tests := []struct {
		name     string
		min, max float64
	}{
		{"unit", 0, 1},
		{"latitude band", -47.3, -34.1},
		{"wide longitude", 166.3, 184.1},
		{"degenerate", 5, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(42)
			for i := 0; i < 1000; i++ {
				v := s.InRange(tt.min, tt.max)
				if v < tt.min || (tt.min != tt.max && v >= tt.max) {
					t.Fatalf("draw %d out of [%v,%v): %v", i, tt.min, tt.max, v)
				}
				if tt.min == tt.max && v != tt.min {
					t.Fatalf("degenerate range returned %v", v)
				}
			}
		})
	}
}

// InRange must consume exactly one draw so callers can reason about
// sequence positions across clients.
func TestInRangeDrawCount(t *testing.T) {
	a := New(777)
	b := New(777)
	a.InRange(-90, 90)
	b.Next()
	if a.Next() != b.Next() {
		t.Fatal("InRange consumed a different number of draws than Next")
	}
}

// A negative seed must not drive the register negative: Go's % keeps the
// sign, and a negative draw would index off the front of the region table.
func TestNegativeSeedStaysInRange(t *testing.T) {
	for _, seed := range []int64{-1, -100, -12345, -233280, -1 << 40} {
		s := New(seed)
		for i := 0; i < 1000; i++ {
			v := s.Next()
			if v < 0 || v >= 1 {
				t.Fatalf("seed %d draw %d out of [0,1): %v", seed, i, v)
			}
		}
	}
}

// Seeding reduces mod M, so a negative seed follows the sequence of its
// non-negative residue and stays reproducible across clients.
func TestNegativeSeedMatchesResidue(t *testing.T) {
	const seed = int64(-100)
	a := New(seed)
	b := New(seed%M + M) // 233180
	for i := 0; i < 64; i++ {
		if a.Next() != b.Next() {
			t.Fatalf("draw %d diverged from residue sequence", i)
		}
	}
}

func TestSeedResets(t *testing.T) {
	s := New(2024)
	first := s.Next()
	s.Next()
	s.Next()
	s.Seed(2024)
	if got := s.Next(); got != first {
		t.Fatalf("after reseed got %v, want %v", got, first)
	}
}
