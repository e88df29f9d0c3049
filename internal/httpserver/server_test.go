package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/topoguesser/go-server/internal/geo"
	"github.com/topoguesser/go-server/internal/guesslog"
	"github.com/topoguesser/go-server/internal/identity"
	"github.com/topoguesser/go-server/internal/locate"
	"github.com/topoguesser/go-server/internal/region"
	"github.com/topoguesser/go-server/internal/store"
	"github.com/topoguesser/go-server/internal/tiles"
)

// landEverywhere accepts every candidate, so resolution succeeds on the
// first attempt without network access.
type landEverywhere struct{}

func (landEverywhere) Classify(ctx context.Context, c geo.Coordinate, zoom int) tiles.Classification {
	return tiles.Classification{
		Outcome:       tiles.OutcomeOK,
		HasLand:       true,
		WaterFraction: 0.5,
		UrbanFraction: 0.5,
	}
}

type staticVerifier struct {
	id  identity.Identity
	err error
}

func (v staticVerifier) Verify(ctx context.Context, token string) (identity.Identity, error) {
	return v.id, v.err
}

func testServer(t *testing.T, verifier identity.Verifier) *Server {
	t.Helper()
	db, err := guesslog.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	table, err := region.Default()
	if err != nil {
		t.Fatalf("region.Default: %v", err)
	}
	resolver := locate.NewResolver(region.NewSampler(table), landEverywhere{})
	return New(store.NewMemoryStore(), db, resolver, verifier)
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func TestHealth(t *testing.T) {
	srv := testServer(t, nil)
	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestNotFoundIsJSON(t *testing.T) {
	srv := testServer(t, nil)
	rec := doJSON(t, srv, http.MethodGet, "/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[map[string]string](t, rec)
	if body["error"] != "not_found" {
		t.Fatalf("body = %v", body)
	}
}

func TestRecordGuessAndLeaderboard(t *testing.T) {
	srv := testServer(t, nil)

	rec := doJSON(t, srv, http.MethodPost, "/guess", map[string]any{
		"user": "alice", "seed": "12345", "round": 1,
		"lat": -41.3, "lng": 174.8, "distance": 0.0,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /guess status = %d body=%s", rec.Code, rec.Body.String())
	}
	res := decode[recordGuessRes](t, rec)
	if res.Score != geo.RoundScore(0) {
		t.Fatalf("score = %d, want %d", res.Score, geo.RoundScore(0))
	}
	if res.Message != "Guess saved" {
		t.Fatalf("message = %q", res.Message)
	}

	rec = doJSON(t, srv, http.MethodGet, "/leaderboard?seed=12345", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /leaderboard status = %d", rec.Code)
	}
	// The leaderboard is a bare ranked array.
	lb := decode[[]guesslog.LeaderboardRow](t, rec)
	if len(lb) != 1 || lb[0].User != "alice" {
		t.Fatalf("leaderboard = %+v", lb)
	}
}

func TestRecordGuessMissingFields(t *testing.T) {
	srv := testServer(t, nil)
	rec := doJSON(t, srv, http.MethodPost, "/guess", map[string]any{
		"seed": "1", "round": 1,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := decode[map[string]string](t, rec)
	if body["error"] != "missing required field: user" {
		t.Fatalf("error = %q", body["error"])
	}
}

func TestLeaderboardRequiresSeed(t *testing.T) {
	srv := testServer(t, nil)
	rec := doJSON(t, srv, http.MethodGet, "/leaderboard", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGuessesRoutes(t *testing.T) {
	srv := testServer(t, nil)
	doJSON(t, srv, http.MethodPost, "/guess", map[string]any{
		"user": "a", "seed": "s", "round": 1, "lat": 0, "lng": 0, "distance": 10,
	})
	doJSON(t, srv, http.MethodPost, "/guess", map[string]any{
		"user": "a", "seed": "s", "round": 2, "lat": 0, "lng": 0, "distance": 20,
	})

	rec := doJSON(t, srv, http.MethodGet, "/guesses?seed=s", nil)
	all := decode[[]guesslog.Guess](t, rec)
	if len(all) != 2 {
		t.Fatalf("got %d guesses, want 2", len(all))
	}

	rec = doJSON(t, srv, http.MethodGet, "/guesses/s/2", nil)
	one := decode[[]guesslog.Guess](t, rec)
	if len(one) != 1 || one[0].Round != 2 {
		t.Fatalf("round 2 guesses = %+v", one)
	}

	rec = doJSON(t, srv, http.MethodGet, "/guesses/s/zero", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad round status = %d", rec.Code)
	}
}

func TestSeedSettingsRoutes(t *testing.T) {
	srv := testServer(t, nil)

	rec := doJSON(t, srv, http.MethodGet, "/seed-settings?seed=77", nil)
	st := decode[guesslog.Settings](t, rec)
	if st.Name != "Seed 77" {
		t.Fatalf("default name = %q", st.Name)
	}

	doJSON(t, srv, http.MethodPost, "/seed-settings", guesslog.Settings{
		Seed: "77", Name: "Coastal Run", BeachMode: true,
	})
	rec = doJSON(t, srv, http.MethodGet, "/seed-settings?seed=77", nil)
	st = decode[guesslog.Settings](t, rec)
	if st.Name != "Coastal Run" || !st.BeachMode {
		t.Fatalf("settings = %+v", st)
	}
}

func TestSeedAnalysisAndRecent(t *testing.T) {
	srv := testServer(t, nil)
	doJSON(t, srv, http.MethodPost, "/guess", map[string]any{
		"user": "a", "seed": "x", "round": 1, "lat": 0, "lng": 0, "distance": 5,
	})
	doJSON(t, srv, http.MethodPost, "/answer", map[string]any{
		"seed": "x", "round": 1, "lat": -41.0, "lng": 174.0,
	})

	rec := doJSON(t, srv, http.MethodGet, "/seed-analysis/x", nil)
	a := decode[guesslog.Analysis](t, rec)
	if len(a.RoundData[1]) != 1 || a.Answers[1].Lat != -41.0 {
		t.Fatalf("analysis = %+v", a)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/seeds/recent", nil)
	seeds := decode[[]guesslog.SeedSummary](t, rec)
	if len(seeds) != 1 || seeds[0].Seed != "x" {
		t.Fatalf("recent = %+v", seeds)
	}
}

func TestSignupLoginMe(t *testing.T) {
	t.Setenv("JWT_SECRET", "test_secret")
	srv := testServer(t, nil)

	rec := doJSON(t, srv, http.MethodPost, "/auth/signup", map[string]string{
		"username": "kererupatrol", "password": "hunter2hunter2",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("signup status = %d body=%s", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("no auth cookie set")
	}

	// /auth/me with the cookie.
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	me := httptest.NewRecorder()
	srv.Router().ServeHTTP(me, req)
	if me.Code != http.StatusOK {
		t.Fatalf("/auth/me status = %d", me.Code)
	}
	u := decode[authUser](t, me)
	if u.Username != "kererupatrol" {
		t.Fatalf("me = %+v", u)
	}

	// Duplicate signup conflicts.
	rec = doJSON(t, srv, http.MethodPost, "/auth/signup", map[string]string{
		"username": "kererupatrol", "password": "hunter2hunter2",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate signup status = %d", rec.Code)
	}

	// Login with wrong password fails.
	rec = doJSON(t, srv, http.MethodPost, "/auth/login", map[string]string{
		"username": "kererupatrol", "password": "wrongwrongwrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d", rec.Code)
	}
}

func TestAuthMeRequiresToken(t *testing.T) {
	srv := testServer(t, nil)
	rec := doJSON(t, srv, http.MethodGet, "/auth/me", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestGoogleAuth(t *testing.T) {
	t.Setenv("JWT_SECRET", "test_secret")
	srv := testServer(t, staticVerifier{id: identity.Identity{Subject: "108", Name: "Kiwi"}})

	rec := doJSON(t, srv, http.MethodPost, "/auth/google", map[string]string{"credential": "tok"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	res := decode[map[string]string](t, rec)
	if res["username"] != "Kiwi" {
		t.Fatalf("res = %v", res)
	}

	// Second sign-in maps to the same user row.
	rec = doJSON(t, srv, http.MethodPost, "/auth/google", map[string]string{"credential": "tok"})
	again := decode[map[string]string](t, rec)
	if again["id"] != res["id"] {
		t.Fatalf("external user id changed: %v vs %v", again["id"], res["id"])
	}
}

func TestGoogleAuthRejected(t *testing.T) {
	srv := testServer(t, staticVerifier{err: identity.ErrUnauthorized})
	rec := doJSON(t, srv, http.MethodPost, "/auth/google", map[string]string{"credential": "bad"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestGoogleAuthDisabled(t *testing.T) {
	srv := testServer(t, nil)
	rec := doJSON(t, srv, http.MethodPost, "/auth/google", map[string]string{"credential": "tok"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
