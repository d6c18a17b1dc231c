package handler

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/skyhub/internal/apperror"
	"github.com/sakif/skyhub/internal/auth"
	"github.com/sakif/skyhub/internal/service"
)

const (
	stateCookie = "oidc_state"
	nonceCookie = "oidc_nonce"

	// signInWindow bounds how long a redirect to the identity provider stays
	// valid.
	signInWindow = 10 * time.Minute

	jsonBodyLimit = 64 << 10
)

// ExternalSignIn is the identity-provider side of SSO. auth.OIDCProvider
// implements it; tests substitute a fake.
type ExternalSignIn interface {
	AuthURL(state, nonce string) string
	Exchange(ctx context.Context, code string) (*auth.Assertion, error)
}

// AuthHandler runs registration, password login, SSO and logout.
//
//   - HandleRegister      → POST /auth/register (multipart: profile fields, avatar, cv)
//   - HandleLogin         → POST /auth/login (JSON: email, password)
//   - HandleLogout        → POST /auth/logout
//   - HandleOIDCLogin     → GET  /auth/oidc/login
//   - HandleOIDCCallback  → GET  /auth/oidc/callback?code=&state=
//
// Successful sign-ins set the session JWT as an HttpOnly cookie.
type AuthHandler struct {
	identity      *service.IdentityService
	sso           ExternalSignIn
	sessionTTL    time.Duration
	maxBody       int64
	secureCookies bool
	logger        *slog.Logger
}

// NewAuthHandler builds the handler. sso may be nil when external sign-in is
// not configured; its routes then answer 404.
func NewAuthHandler(
	identity *service.IdentityService,
	sso ExternalSignIn,
	sessionTTL time.Duration,
	maxUpload int64,
	secureCookies bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		identity:      identity,
		sso:           sso,
		sessionTTL:    sessionTTL,
		maxBody:       2*maxUpload + formOverhead,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge < 0 {
		c.MaxAge = -1
	} else {
		c.MaxAge = int(maxAge.Seconds())
	}
	http.SetCookie(w, c)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, token string) {
	h.setCookie(w, auth.SessionCookie, token, h.sessionTTL)
}

// HandleRegister creates a local account and signs it in.
//
// HTTP: POST /auth/register (multipart: username, email, password, profile fields, avatar, cv)
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r, h.maxBody); err != nil {
		badRequest(w, err.Error())
		return
	}

	profile, err := readProfile(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	in := service.RegisterInput{
		Username:     r.FormValue("username"),
		Email:        r.FormValue("email"),
		Password:     r.FormValue("password"),
		ProfileInput: profile,
	}

	res, err := h.identity.Register(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	h.startSession(w, res.Token)
	writeJSON(w, http.StatusCreated, map[string]string{"id": res.Member.ID, "username": res.Member.Username})
}

// HandleLogin checks email and password and sets the session cookie.
//
// HTTP: POST /auth/login (JSON: email, password)
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := decodeJSON(w, r, jsonBodyLimit, &in); err != nil {
		badRequest(w, err.Error())
		return
	}

	res, err := h.identity.Login(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	h.startSession(w, res.Token)
	writeJSON(w, http.StatusOK, map[string]string{"id": res.Member.ID, "username": res.Member.Username})
}

// HandleLogout deletes the session cookie. The JWT itself stays valid until
// it expires.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.setCookie(w, auth.SessionCookie, "", -1)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleOIDCLogin redirects to the identity provider. The state guards the
// callback against CSRF; the nonce binds the returned ID token to this
// browser and is checked by the identity service.
func (h *AuthHandler) HandleOIDCLogin(w http.ResponseWriter, r *http.Request) {
	if h.sso == nil {
		http.NotFound(w, r)
		return
	}

	state, err := auth.RandomToken()
	if err != nil {
		writeError(w, err)
		return
	}
	nonce, err := auth.RandomToken()
	if err != nil {
		writeError(w, err)
		return
	}

	h.setCookie(w, stateCookie, state, signInWindow)
	h.setCookie(w, nonceCookie, nonce, signInWindow)
	http.Redirect(w, r, h.sso.AuthURL(state, nonce), http.StatusTemporaryRedirect)
}

// HandleOIDCCallback completes SSO:
//  1. check the state against its cookie
//  2. exchange the code for a verified assertion
//  3. resolve the assertion to a member, checking the nonce
//  4. set the session cookie and redirect home
func (h *AuthHandler) HandleOIDCCallback(w http.ResponseWriter, r *http.Request) {
	if h.sso == nil {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	stateC, err := r.Cookie(stateCookie)
	if err != nil || stateC.Value == "" ||
		subtle.ConstantTimeCompare([]byte(stateC.Value), []byte(q.Get("state"))) != 1 {
		h.logger.Warn("sso callback: state mismatch")
		writeError(w, apperror.InvalidAssertion("sign-in request expired or was tampered with"))
		return
	}
	var nonce string
	if c, err := r.Cookie(nonceCookie); err == nil {
		nonce = c.Value
	}

	// Both values are single-use.
	h.setCookie(w, stateCookie, "", -1)
	h.setCookie(w, nonceCookie, "", -1)

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("sso callback: provider returned an error", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}
	code := q.Get("code")
	if code == "" {
		badRequest(w, "missing authorization code")
		return
	}

	assertion, err := h.sso.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Warn("sso callback: exchange failed", slog.String("error", err.Error()))
		writeError(w, apperror.InvalidAssertion("identity provider response could not be verified"))
		return
	}

	res, err := h.identity.LoginExternal(r.Context(), assertion, nonce)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("member signed in with identity provider", slog.String("memberID", res.Member.ID))
	h.startSession(w, res.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
