package auth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testIssuer   = "https://id.example.test"
	testClientID = "skyhub-client"
)

// fakeIssuer serves a token endpoint that answers every code with the
// configured id_token.
type fakeIssuer struct {
	key     *rsa.PrivateKey
	idToken string
	server  *httptest.Server
}

func newFakeIssuer(t *testing.T) *fakeIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fakeIssuer{key: key}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{"access_token": "at", "token_type": "Bearer", "expires_in": 3600}
		if f.idToken != "" {
			resp["id_token"] = f.idToken
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeIssuer) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(f.key)
	require.NoError(t, err)
	return signed
}

func (f *fakeIssuer) provider() *OIDCProvider {
	cfg := &oauth2.Config{
		ClientID:     testClientID,
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/auth/oidc/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:  testIssuer + "/authorize",
			TokenURL: f.server.URL + "/token",
		},
		Scopes: []string{oidc.ScopeOpenID, "email", "profile"},
	}
	keys := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{f.key.Public()}}
	return newOIDCProvider(cfg, oidc.NewVerifier(testIssuer, keys, &oidc.Config{ClientID: testClientID}))
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":            testIssuer,
		"aud":            testClientID,
		"sub":            "g-123",
		"exp":            time.Now().Add(time.Hour).Unix(),
		"iat":            time.Now().Unix(),
		"nonce":          "n-1",
		"email":          "ada@uni.edu",
		"email_verified": true,
		"name":           "Ada Lovelace",
		"picture":        "https://img.example.test/ada.png",
	}
}

func TestOIDC_AuthURLCarriesStateAndNonce(t *testing.T) {
	p := newFakeIssuer(t).provider()

	u, err := url.Parse(p.AuthURL("state-1", "nonce-1"))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "nonce-1", q.Get("nonce"))
	assert.Equal(t, testClientID, q.Get("client_id"))
	assert.Contains(t, q.Get("scope"), "openid")
}

func TestOIDC_Exchange(t *testing.T) {
	f := newFakeIssuer(t)
	f.idToken = f.sign(t, validClaims())

	a, err := f.provider().Exchange(context.Background(), "code")
	require.NoError(t, err)

	assert.Equal(t, &Assertion{
		Subject:       "g-123",
		Email:         "ada@uni.edu",
		EmailVerified: true,
		Name:          "Ada Lovelace",
		Picture:       "https://img.example.test/ada.png",
		Nonce:         "n-1",
	}, a)
}

func TestOIDC_ExchangeRejectsBadTokens(t *testing.T) {
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c jwt.MapClaims)
		key    *rsa.PrivateKey
	}{
		{name: "expired", mutate: func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() }},
		{name: "wrong audience", mutate: func(c jwt.MapClaims) { c["aud"] = "someone-else" }},
		{name: "wrong issuer", mutate: func(c jwt.MapClaims) { c["iss"] = "https://evil.test" }},
		{name: "foreign signature", mutate: func(jwt.MapClaims) {}, key: other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeIssuer(t)
			c := validClaims()
			tt.mutate(c)
			if tt.key != nil {
				signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, c).SignedString(tt.key)
				require.NoError(t, err)
				f.idToken = signed
			} else {
				f.idToken = f.sign(t, c)
			}

			_, err := f.provider().Exchange(context.Background(), "code")
			assert.Error(t, err)
		})
	}
}

func TestOIDC_ExchangeWithoutIDToken(t *testing.T) {
	f := newFakeIssuer(t)

	_, err := f.provider().Exchange(context.Background(), "code")
	assert.True(t, errors.Is(err, ErrNoIDToken))
}

func TestRandomToken(t *testing.T) {
	a, err := RandomToken()
	require.NoError(t, err)
	b, err := RandomToken()
	require.NoError(t, err)

	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}
