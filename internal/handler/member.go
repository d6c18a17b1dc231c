package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/skyhub/internal/auth"
	"github.com/sakif/skyhub/internal/service"
)

// MemberHandler serves the member's own account, public profiles and the
// network (discovery) listing.
type MemberHandler struct {
	identity  *service.IdentityService
	discovery *service.DiscoveryService
	views     views
	maxBody   int64
	logger    *slog.Logger
}

// NewMemberHandler builds the handler for profiles and the network page.
func NewMemberHandler(
	identity *service.IdentityService,
	discovery *service.DiscoveryService,
	urls URLResolver,
	maxUpload int64,
	logger *slog.Logger,
) *MemberHandler {
	return &MemberHandler{
		identity:  identity,
		discovery: discovery,
		views:     views{urls: urls, logger: logger},
		maxBody:   2*maxUpload + formOverhead,
		logger:    logger,
	}
}

// HandleMe returns the signed-in member's full profile page.
//
// HTTP: GET /api/me (RequireAuth)
func (h *MemberHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	memberID, _ := auth.MemberIDFromContext(r.Context())

	page, err := h.discovery.Profile(r.Context(), memberID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.views.profile(r.Context(), page, true))
}

// HandleUpdateMe edits the signed-in member's profile. Fields left out of
// the form are kept; fields sent empty are cleared.
//
// HTTP: PUT /api/me (RequireAuth, multipart)
func (h *MemberHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	memberID, _ := auth.MemberIDFromContext(r.Context())

	if err := parseForm(w, r, h.maxBody); err != nil {
		badRequest(w, err.Error())
		return
	}
	profile, err := readProfile(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	// Username and email are required on edit; default to the stored ones
	// so a partial form does not fail validation.
	current, err := h.identity.GetMember(r.Context(), memberID)
	if err != nil {
		writeError(w, err)
		return
	}
	in := service.UpdateProfileInput{
		Username:     current.Username,
		Email:        current.Email,
		ProfileInput: profile,
	}
	if v := optionalValue(r, "username"); v != nil {
		in.Username = *v
	}
	if v := optionalValue(r, "email"); v != nil {
		in.Email = *v
	}

	m, err := h.identity.UpdateProfile(r.Context(), memberID, memberID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.views.member(r.Context(), m, true))
}

// HandleDeleteMe deletes the signed-in member's account and ends the session.
//
// HTTP: DELETE /api/me (RequireAuth)
func (h *MemberHandler) HandleDeleteMe(w http.ResponseWriter, r *http.Request) {
	memberID, _ := auth.MemberIDFromContext(r.Context())

	if err := h.identity.DeleteAccount(r.Context(), memberID, memberID); err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// HandleProfile shows another member's public profile page.
//
// HTTP: GET /api/members/{id}
func (h *MemberHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	viewerID, _ := auth.MemberIDFromContext(r.Context())

	page, err := h.discovery.Profile(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.views.profile(r.Context(), page, viewerID == id))
}

// HandleNetwork searches other members.
//
// HTTP: GET /api/network?search=&track=&available=yes
func (h *MemberHandler) HandleNetwork(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.MemberIDFromContext(r.Context())

	members, err := h.discovery.Discover(r.Context(), viewerID, memberFilter(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.views.members(r.Context(), members))
}
