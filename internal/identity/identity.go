// internal/identity/identity.go
//
// External identity verification for /auth/google style sign-in.
// A Verifier turns an opaque ID token into a display name; the HTTP
// implementation checks the token against a Google tokeninfo-style endpoint
// and validates the audience.

package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultEndpoint is Google's tokeninfo endpoint for ID tokens.
const DefaultEndpoint = "https://oauth2.googleapis.com/tokeninfo"

// DefaultTimeout bounds a single verification call.
const DefaultTimeout = 5 * time.Second

// ErrUnauthorized is returned for tokens the endpoint rejects or whose
// audience does not match.
var ErrUnauthorized = errors.New("identity: token rejected")

// Identity is the verified subject of a token.
type Identity struct {
	Subject string // stable provider-side ID
	Email   string
	Name    string // display name, falls back to email
}

// Verifier resolves an opaque ID token into an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// TokenInfoVerifier verifies tokens against a tokeninfo-style HTTP endpoint.
type TokenInfoVerifier struct {
	Endpoint string
	Audience string // expected aud claim; empty skips the check
	client   *http.Client
}

// NewTokenInfoVerifier builds a verifier. Empty endpoint falls back to
// DefaultEndpoint.
func NewTokenInfoVerifier(endpoint, audience string) *TokenInfoVerifier {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &TokenInfoVerifier{
		Endpoint: endpoint,
		Audience: audience,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
}

// tokenInfo mirrors the fields of the tokeninfo response we care about.
type tokenInfo struct {
	Sub   string `json:"sub"`
	Aud   string `json:"aud"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Verify calls the tokeninfo endpoint. A non-200 response or an audience
// mismatch yields ErrUnauthorized; transport failures are returned as-is so
// callers can distinguish a bad token from a flaky network.
func (v *TokenInfoVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthorized
	}

	u := v.Endpoint + "?id_token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Identity{}, err
	}
	res, err := v.client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("identity: verify request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		log.Debug().Int("status", res.StatusCode).Msg("tokeninfo rejected token")
		return Identity{}, ErrUnauthorized
	}

	var info tokenInfo
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		return Identity{}, fmt.Errorf("identity: decode tokeninfo: %w", err)
	}
	if info.Sub == "" {
		return Identity{}, ErrUnauthorized
	}
	if v.Audience != "" && info.Aud != v.Audience {
		log.Debug().Str("aud", info.Aud).Msg("tokeninfo audience mismatch")
		return Identity{}, ErrUnauthorized
	}

	name := info.Name
	if name == "" {
		name = info.Email
	}
	return Identity{Subject: info.Sub, Email: info.Email, Name: name}, nil
}
