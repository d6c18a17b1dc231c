package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/skyhub/internal/auth"
	"github.com/sakif/skyhub/internal/service"
)

// PostHandler serves the feed, posts, likes and comments.
type PostHandler struct {
	content     *service.ContentService
	interaction *service.InteractionService
	discovery   *service.DiscoveryService
	views       views
	maxBody     int64
	logger      *slog.Logger
}

// NewPostHandler builds the handler for posts, comments and likes.
func NewPostHandler(
	content *service.ContentService,
	interaction *service.InteractionService,
	discovery *service.DiscoveryService,
	urls URLResolver,
	maxUpload int64,
	logger *slog.Logger,
) *PostHandler {
	return &PostHandler{
		content:     content,
		interaction: interaction,
		discovery:   discovery,
		views:       views{urls: urls, logger: logger},
		maxBody:     2*maxUpload + formOverhead,
		logger:      logger,
	}
}

// HandleFeed lists posts newest first.
//
// HTTP: GET /api/feed?track=&available=yes
func (h *PostHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	items, err := h.discovery.Feed(r.Context(), feedFilter(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.views.feed(r.Context(), items))
}

// HandleCreate publishes a post.
//
// HTTP: POST /api/posts (RequireAuth, multipart: title, content, image, video)
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	memberID, _ := auth.MemberIDFromContext(r.Context())

	if err := parseForm(w, r, h.maxBody); err != nil {
		badRequest(w, err.Error())
		return
	}
	in, err := readPost(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	p, err := h.content.CreatePost(r.Context(), memberID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.views.post(r.Context(), p))
}

// HandleGet returns a post with its author, comments and the viewer's like.
//
// HTTP: GET /api/posts/{id}
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.MemberIDFromContext(r.Context())

	d, err := h.discovery.PostDetail(r.Context(), viewerID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.views.postDetail(r.Context(), d))
}

// HandleUpdate edits a post. Media not re-uploaded is kept.
//
// HTTP: PUT /api/posts/{id} (RequireAuth, multipart)
func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	memberID, _ := auth.MemberIDFromContext(r.Context())

	if err := parseForm(w, r, h.maxBody); err != nil {
		badRequest(w, err.Error())
		return
	}
	in, err := readPostEdit(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	p, err := h.content.EditPost(r.Context(), memberID, chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.views.post(r.Context(), p))
}

// HTTP: DELETE /api/posts/{id} (RequireAuth)
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	memberID, _ := auth.MemberIDFromContext(r.Context())

	if err := h.content.DeletePost(r.Context(), memberID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleLike toggles the signed-in member's like and returns the new state.
//
// HTTP: POST /api/posts/{id}/like (RequireAuth)
func (h *PostHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	memberID, _ := auth.MemberIDFromContext(r.Context())

	res, err := h.interaction.ToggleLike(r.Context(), memberID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type commentRequest struct {
	Content string `json:"content"`
}

// HTTP: POST /api/posts/{id}/comments (RequireAuth, JSON: content)
func (h *PostHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	memberID, _ := auth.MemberIDFromContext(r.Context())

	var req commentRequest
	if err := decodeJSON(w, r, jsonBodyLimit, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	c, err := h.content.AddComment(r.Context(), memberID, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HTTP: PUT /api/comments/{id} (RequireAuth, JSON: content)
func (h *PostHandler) HandleEditComment(w http.ResponseWriter, r *http.Request) {
	memberID, _ := auth.MemberIDFromContext(r.Context())

	var req commentRequest
	if err := decodeJSON(w, r, jsonBodyLimit, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	c, err := h.content.EditComment(r.Context(), memberID, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HTTP: DELETE /api/comments/{id} (RequireAuth)
func (h *PostHandler) HandleDeleteComment(w http.ResponseWriter, r *http.Request) {
	memberID, _ := auth.MemberIDFromContext(r.Context())

	if err := h.content.DeleteComment(r.Context(), memberID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
