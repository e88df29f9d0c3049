package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func tokeninfoServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id_token") == "" {
			t.Errorf("id_token query param missing")
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVerifyValidToken(t *testing.T) {
	srv := tokeninfoServer(t, http.StatusOK,
		`{"sub":"108","aud":"client-1","email":"kiwi@example.com","name":"Kiwi"}`)
	v := NewTokenInfoVerifier(srv.URL, "client-1")

	id, err := v.Verify(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.Subject != "108" || id.Name != "Kiwi" {
		t.Fatalf("identity = %+v", id)
	}
}

func TestVerifyNameFallsBackToEmail(t *testing.T) {
	srv := tokeninfoServer(t, http.StatusOK,
		`{"sub":"108","aud":"client-1","email":"kiwi@example.com"}`)
	v := NewTokenInfoVerifier(srv.URL, "client-1")

	id, err := v.Verify(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.Name != "kiwi@example.com" {
		t.Fatalf("name = %q, want email fallback", id.Name)
	}
}

func TestVerifyRejections(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		aud    string
	}{
		{"endpoint 400", http.StatusBadRequest, `{"error":"invalid_token"}`, ""},
		{"audience mismatch", http.StatusOK, `{"sub":"1","aud":"someone-else"}`, "client-1"},
		{"missing sub", http.StatusOK, `{"aud":"client-1"}`, "client-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := tokeninfoServer(t, tc.status, tc.body)
			v := NewTokenInfoVerifier(srv.URL, tc.aud)
			_, err := v.Verify(context.Background(), "tok")
			if !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("err = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestVerifyEmptyToken(t *testing.T) {
	v := NewTokenInfoVerifier("http://unused.invalid", "")
	if _, err := v.Verify(context.Background(), ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestVerifyTransportErrorIsNotUnauthorized(t *testing.T) {
	srv := tokeninfoServer(t, http.StatusOK, `{}`)
	srv.Close()
	v := NewTokenInfoVerifier(srv.URL, "")
	_, err := v.Verify(context.Background(), "tok")
	if err == nil || errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want transport error distinct from ErrUnauthorized", err)
	}
}
