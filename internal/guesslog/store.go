// internal/guesslog/store.go
//
// Persistence for guesses, answers, seed settings and the aggregates
// derived from them (leaderboards, recent seeds, per-seed analysis).
//
// The guess log is append-only; leaderboards are computed from it by SQL
// aggregation rather than kept as a stored read-modify-write aggregate.
// Aggregation policy: a player's "rounds" is the COUNT of their recorded
// guesses for the seed (not the max round number).

package guesslog

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/topoguesser/go-server/internal/geo"
)

// MissingFieldError rejects a persistence request that lacks a required
// field. Nothing is written when it is returned.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// Guess is one recorded guess. Rows are never mutated after creation.
type Guess struct {
	User       string    `json:"user"`
	Seed       string    `json:"seed"`
	Round      int       `json:"round"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	DistanceKm float64   `json:"distance"`
	Score      int       `json:"score"`
	Timestamp  time.Time `json:"timestamp"`
}

// Answer is the authoritative location for a seed/round.
type Answer struct {
	Seed      string    `json:"seed"`
	Round     int       `json:"round"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// Settings is the per-seed metadata shown in seed listings.
type Settings struct {
	Seed        string `json:"seed"`
	Name        string `json:"name"`
	Description string `json:"description"`
	BeachMode   bool   `json:"beachMode"`
	UrbanMode   bool   `json:"urbanMode"`
}

// LeaderboardRow is one ranked player for a seed.
type LeaderboardRow struct {
	User         string    `json:"user"`
	TotalScore   int       `json:"totalScore"`
	Rounds       int       `json:"rounds"`
	AverageScore int       `json:"averageScore"`
	BestDistance *float64  `json:"bestDistance"` // nil when the player has no guesses
	Timestamp    time.Time `json:"timestamp"`
}

// SeedSummary is one entry of the recent-seeds listing.
type SeedSummary struct {
	Seed        string    `json:"seed"`
	PlayerCount int       `json:"playerCount"`
	TotalRounds int       `json:"totalRounds"`
	TopScore    int       `json:"topScore"`
	Timestamp   time.Time `json:"timestamp"`
}

// Analysis is the full per-round breakdown of a seed.
type Analysis struct {
	RoundData map[int][]Guess `json:"roundData"`
	Answers   map[int]Answer  `json:"answers"`
	Settings  Settings        `json:"settings"`
}

// Store wraps the guess-log database.
type Store struct {
	db *sql.DB
}

// NewStore returns a Store over db.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// InsertGuess appends a guess, computing and storing its round score.
// Returns the score. Missing user/seed or a non-positive round is rejected
// with a MissingFieldError and nothing is persisted.
func (s *Store) InsertGuess(ctx context.Context, user, seed string, round int, lat, lng, distanceKm float64) (int, error) {
	switch {
	case user == "":
		return 0, &MissingFieldError{Field: "user"}
	case seed == "":
		return 0, &MissingFieldError{Field: "seed"}
	case round <= 0:
		return 0, &MissingFieldError{Field: "round"}
	}

	score := geo.RoundScore(distanceKm)
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO guesses (user, seed, round, lat, lng, distance_km, score, created_at)
        VALUES (?,?,?,?,?,?,?,?)`,
		user, seed, round, lat, lng, distanceKm, score, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert guess: %w", err)
	}
	return score, nil
}

// InsertAnswer records the authoritative location for a seed/round. The
// first write for a round wins.
func (s *Store) InsertAnswer(ctx context.Context, seed string, round int, lat, lng float64) error {
	switch {
	case seed == "":
		return &MissingFieldError{Field: "seed"}
	case round <= 0:
		return &MissingFieldError{Field: "round"}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
        INSERT OR IGNORE INTO answers (seed, round, lat, lng, created_at)
        VALUES (?,?,?,?,?)`,
		seed, round, lat, lng, now,
	)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

// Guesses returns every guess for a seed, oldest first.
func (s *Store) Guesses(ctx context.Context, seed string) ([]Guess, error) {
	return s.queryGuesses(ctx, `
        SELECT user, seed, round, lat, lng, distance_km, score, created_at
        FROM guesses WHERE seed=? ORDER BY id ASC`, seed)
}

// GuessesForRound returns the guesses for one round of a seed.
func (s *Store) GuessesForRound(ctx context.Context, seed string, round int) ([]Guess, error) {
	return s.queryGuesses(ctx, `
        SELECT user, seed, round, lat, lng, distance_km, score, created_at
        FROM guesses WHERE seed=? AND round=? ORDER BY id ASC`, seed, round)
}

func (s *Store) queryGuesses(ctx context.Context, q string, args ...any) ([]Guess, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Guess{}
	for rows.Next() {
		var g Guess
		var created string
		if err := rows.Scan(&g.User, &g.Seed, &g.Round, &g.Lat, &g.Lng, &g.DistanceKm, &g.Score, &created); err != nil {
			return nil, err
		}
		g.Timestamp, _ = time.Parse(time.RFC3339, created)
		out = append(out, g)
	}
	return out, rows.Err()
}

// Leaderboard aggregates the guess log for a seed into ranked rows,
// highest total score first.
func (s *Store) Leaderboard(ctx context.Context, seed string) ([]LeaderboardRow, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT user, SUM(score), COUNT(*), MIN(distance_km), MAX(created_at)
        FROM guesses
        WHERE seed=?
        GROUP BY user
        ORDER BY SUM(score) DESC, user ASC`, seed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []LeaderboardRow{}
	for rows.Next() {
		var r LeaderboardRow
		var best float64
		var created string
		if err := rows.Scan(&r.User, &r.TotalScore, &r.Rounds, &best, &created); err != nil {
			return nil, err
		}
		r.BestDistance = &best
		if r.Rounds > 0 {
			r.AverageScore = int(math.Round(float64(r.TotalScore) / float64(r.Rounds)))
		}
		r.Timestamp, _ = time.Parse(time.RFC3339, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentSeeds lists every seed with recorded guesses, most players first.
func (s *Store) RecentSeeds(ctx context.Context) ([]SeedSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT seed, COUNT(DISTINCT user), MAX(created_at)
        FROM guesses GROUP BY seed`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bySeed := map[string]*SeedSummary{}
	var order []string
	for rows.Next() {
		var sum SeedSummary
		var created string
		if err := rows.Scan(&sum.Seed, &sum.PlayerCount, &created); err != nil {
			return nil, err
		}
		sum.Timestamp, _ = time.Parse(time.RFC3339, created)
		bySeed[sum.Seed] = &sum
		order = append(order, sum.Seed)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Answer counts give each seed's round total.
	ansRows, err := s.db.QueryContext(ctx, `SELECT seed, COUNT(*) FROM answers GROUP BY seed`)
	if err != nil {
		return nil, err
	}
	defer ansRows.Close()
	for ansRows.Next() {
		var seed string
		var n int
		if err := ansRows.Scan(&seed, &n); err != nil {
			return nil, err
		}
		if sum, ok := bySeed[seed]; ok {
			sum.TotalRounds = n
		}
	}
	if err := ansRows.Err(); err != nil {
		return nil, err
	}

	// Top score is the best per-player total on each seed.
	topRows, err := s.db.QueryContext(ctx, `
        SELECT seed, MAX(total) FROM (
            SELECT seed, user, SUM(score) AS total FROM guesses GROUP BY seed, user
        ) GROUP BY seed`)
	if err != nil {
		return nil, err
	}
	defer topRows.Close()
	for topRows.Next() {
		var seed string
		var top int
		if err := topRows.Scan(&seed, &top); err != nil {
			return nil, err
		}
		if sum, ok := bySeed[seed]; ok {
			sum.TopScore = top
		}
	}
	if err := topRows.Err(); err != nil {
		return nil, err
	}

	out := make([]SeedSummary, 0, len(order))
	for _, seed := range order {
		out = append(out, *bySeed[seed])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PlayerCount > out[j].PlayerCount })
	return out, nil
}

// SeedAnalysis returns every round's guesses and answer for a seed,
// plus its settings.
func (s *Store) SeedAnalysis(ctx context.Context, seed string) (Analysis, error) {
	a := Analysis{
		RoundData: map[int][]Guess{},
		Answers:   map[int]Answer{},
	}

	guesses, err := s.Guesses(ctx, seed)
	if err != nil {
		return a, err
	}
	for _, g := range guesses {
		a.RoundData[g.Round] = append(a.RoundData[g.Round], g)
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT round, lat, lng, created_at FROM answers WHERE seed=? ORDER BY round ASC`, seed)
	if err != nil {
		return a, err
	}
	defer rows.Close()
	for rows.Next() {
		ans := Answer{Seed: seed}
		var created string
		if err := rows.Scan(&ans.Round, &ans.Lat, &ans.Lng, &created); err != nil {
			return a, err
		}
		ans.Timestamp, _ = time.Parse(time.RFC3339, created)
		a.Answers[ans.Round] = ans
	}
	if err := rows.Err(); err != nil {
		return a, err
	}

	a.Settings, err = s.SeedSettings(ctx, seed)
	return a, err
}

// SeedSettings returns the stored settings for a seed, or defaults
// ("Seed <n>", both modes off) when none were saved.
func (s *Store) SeedSettings(ctx context.Context, seed string) (Settings, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT name, description, beach_mode, urban_mode
        FROM seed_settings WHERE seed=?`, seed)

	st := Settings{Seed: seed}
	var beach, urban int
	err := row.Scan(&st.Name, &st.Description, &beach, &urban)
	if err == sql.ErrNoRows {
		st.Name = "Seed " + seed
		return st, nil
	}
	if err != nil {
		return st, err
	}
	st.BeachMode = beach != 0
	st.UrbanMode = urban != 0
	return st, nil
}

// SaveSeedSettings stores settings for a seed. The first save wins; later
// saves are silently ignored, matching the append-only discipline of the
// rest of the log.
func (s *Store) SaveSeedSettings(ctx context.Context, st Settings) error {
	if st.Seed == "" {
		return &MissingFieldError{Field: "seed"}
	}
	if st.Name == "" {
		st.Name = "Seed " + st.Seed
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
        INSERT OR IGNORE INTO seed_settings (seed, name, description, beach_mode, urban_mode, created_at)
        VALUES (?,?,?,?,?,?)`,
		st.Seed, st.Name, st.Description, boolInt(st.BeachMode), boolInt(st.UrbanMode), now,
	)
	if err != nil {
		return fmt.Errorf("save seed settings: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
