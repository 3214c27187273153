package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/opensocial/backend/internal/auth"
	"github.com/opensocial/backend/internal/cache"
	"github.com/opensocial/backend/internal/db"
	apperrors "github.com/opensocial/backend/internal/errors"
	"github.com/opensocial/backend/internal/logger"
	"github.com/opensocial/backend/internal/storage"
)

// maxImageUploadBytes bounds the multipart body on post creation.
const maxImageUploadBytes = 10 << 20 // 10 MiB

type PostHandlers struct {
	postRepo *db.PostRepository
	images   *storage.ImageStore
	cache    *cache.Cache
}

func NewPostHandlers(postRepo *db.PostRepository, images *storage.ImageStore, c *cache.Cache) *PostHandlers {
	return &PostHandlers{
		postRepo: postRepo,
		images:   images,
		cache:    c,
	}
}

type PostResponse struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"authorId"`
	AuthorName   string    `json:"authorName,omitempty"`
	Title        string    `json:"title"`
	ImageKey     string    `json:"imageKey,omitempty"`
	CommentCount int       `json:"commentCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type FeedResponse struct {
	Posts      []PostResponse `json:"posts"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	HasMore    bool           `json:"hasMore"`
	TotalPosts int            `json:"totalPosts"`
}

type UpdatePostRequest struct {
	Title string `json:"title"`
}

func postView(p *db.Post) PostResponse {
	resp := PostResponse{
		ID:           p.ID.String(),
		AuthorID:     p.AuthorID.String(),
		Title:        p.Title,
		CommentCount: p.CommentCount,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	if p.ImageKey.Valid {
		resp.ImageKey = p.ImageKey.String
	}
	return resp
}

func postWithAuthorView(p *db.PostWithAuthor) PostResponse {
	resp := postView(&p.Post)
	resp.AuthorName = p.AuthorFirstName
	return resp
}

// CreatePost handles POST /api/create-post. The body is multipart form data:
// a required title field plus an optional image part.
func (h *PostHandlers) CreatePost(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	user := auth.UserFromContext(r.Context())
	if user == nil {
		apperrors.WriteError(w, requestID, apperrors.Unauthorized("not authenticated"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageUploadBytes)
	if err := r.ParseMultipartForm(maxImageUploadBytes); err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid multipart body"))
		return
	}

	title := r.FormValue("title")
	if title == "" {
		apperrors.WriteError(w, requestID, apperrors.ValidationError("title is required"))
		return
	}

	post := &db.Post{
		ID:       uuid.New(),
		AuthorID: user.ID,
		Title:    title,
	}

	if file, header, err := r.FormFile("image"); err == nil {
		defer file.Close()

		contentType := header.Header.Get("Content-Type")
		if !storage.SupportedImageType(contentType) {
			apperrors.WriteError(w, requestID,
				apperrors.ValidationError("unsupported image type: "+contentType))
			return
		}

		result, err := h.images.Upload(r.Context(), file, contentType)
		if err != nil {
			apperrors.WriteError(w, requestID,
				apperrors.StorageError("failed to store image").WithCause(err))
			return
		}
		post.ImageKey = sql.NullString{String: result.StorageKey, Valid: true}
	}

	if err := h.postRepo.Create(r.Context(), post); err != nil {
		apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to create post").WithCause(err))
		return
	}

	h.invalidateFeed(r.Context())
	apperrors.WriteJSON(w, requestID, http.StatusCreated, postView(post))
}

// Feed handles GET /api/posts with page/limit query parameters, newest
// first. Pages are cached briefly; every post write invalidates them.
func (h *PostHandlers) Feed(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	page, limit := parseFeedPagination(r)
	cacheKey := cache.FeedKeyPrefix + strconv.Itoa(page) + ":" + strconv.Itoa(limit)

	if h.cache != nil {
		var cached FeedResponse
		if h.cache.GetJSON(r.Context(), cacheKey, &cached) {
			apperrors.WriteJSON(w, requestID, http.StatusOK, cached)
			return
		}
	}

	posts, total, err := h.postRepo.ListPage(r.Context(), limit, (page-1)*limit)
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to load feed").WithCause(err))
		return
	}

	views := make([]PostResponse, 0, len(posts))
	for i := range posts {
		views = append(views, postWithAuthorView(&posts[i]))
	}

	resp := FeedResponse{
		Posts:      views,
		Page:       page,
		Limit:      limit,
		HasMore:    page*limit < total,
		TotalPosts: total,
	}

	if h.cache != nil {
		h.cache.SetJSON(r.Context(), cacheKey, resp, cache.FeedTTL)
	}

	apperrors.WriteJSON(w, requestID, http.StatusOK, resp)
}

// UserPosts handles GET /api/user-posts, the caller's own posts.
func (h *PostHandlers) UserPosts(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	user := auth.UserFromContext(r.Context())
	if user == nil {
		apperrors.WriteError(w, requestID, apperrors.Unauthorized("not authenticated"))
		return
	}

	posts, err := h.postRepo.ListByAuthor(r.Context(), user.ID)
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to load posts").WithCause(err))
		return
	}

	views := make([]PostResponse, 0, len(posts))
	for i := range posts {
		views = append(views, postView(&posts[i]))
	}

	apperrors.WriteJSON(w, requestID, http.StatusOK, views)
}

// GetPost handles GET /api/post/{postId}
func (h *PostHandlers) GetPost(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	postID, err := uuid.Parse(r.PathValue("postId"))
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid post ID"))
		return
	}

	post, err := h.postRepo.GetByID(r.Context(), postID)
	if err != nil {
		if errors.Is(err, db.ErrPostNotFound) {
			apperrors.WriteError(w, requestID, apperrors.PostNotFound())
			return
		}
		apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to load post").WithCause(err))
		return
	}

	apperrors.WriteJSON(w, requestID, http.StatusOK, postWithAuthorView(post))
}

// UpdatePost handles PATCH /api/post/{postId}; only the author may edit.
func (h *PostHandlers) UpdatePost(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	user := auth.UserFromContext(r.Context())
	if user == nil {
		apperrors.WriteError(w, requestID, apperrors.Unauthorized("not authenticated"))
		return
	}

	postID, err := uuid.Parse(r.PathValue("postId"))
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid post ID"))
		return
	}

	post, err := h.postRepo.GetByID(r.Context(), postID)
	if err != nil {
		if errors.Is(err, db.ErrPostNotFound) {
			apperrors.WriteError(w, requestID, apperrors.PostNotFound())
			return
		}
		apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to load post").WithCause(err))
		return
	}

	if post.AuthorID != user.ID {
		apperrors.WriteError(w, requestID, apperrors.Forbidden("not the author of this post"))
		return
	}

	var req UpdatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid request body"))
		return
	}
	if req.Title == "" {
		apperrors.WriteError(w, requestID, apperrors.ValidationError("title is required"))
		return
	}

	updated, err := h.postRepo.UpdateTitle(r.Context(), postID, req.Title)
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to update post").WithCause(err))
		return
	}

	h.invalidateFeed(r.Context())
	apperrors.WriteJSON(w, requestID, http.StatusOK, postView(updated))
}

// DeletePost handles DELETE /api/post/{postId}; only the author may delete.
func (h *PostHandlers) DeletePost(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	user := auth.UserFromContext(r.Context())
	if user == nil {
		apperrors.WriteError(w, requestID, apperrors.Unauthorized("not authenticated"))
		return
	}

	postID, err := uuid.Parse(r.PathValue("postId"))
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid post ID"))
		return
	}

	post, err := h.postRepo.GetByID(r.Context(), postID)
	if err != nil {
		if errors.Is(err, db.ErrPostNotFound) {
			apperrors.WriteError(w, requestID, apperrors.PostNotFound())
			return
		}
		apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to load post").WithCause(err))
		return
	}

	if post.AuthorID != user.ID {
		apperrors.WriteError(w, requestID, apperrors.Forbidden("not the author of this post"))
		return
	}

	h.deletePost(w, r, post)
}

// AdminDeletePost handles DELETE /api/admin/post/{postId}, skipping the
// ownership check.
func (h *PostHandlers) AdminDeletePost(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	postID, err := uuid.Parse(r.PathValue("postId"))
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid post ID"))
		return
	}

	post, err := h.postRepo.GetByID(r.Context(), postID)
	if err != nil {
		if errors.Is(err, db.ErrPostNotFound) {
			apperrors.WriteError(w, requestID, apperrors.PostNotFound())
			return
		}
		apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to load post").WithCause(err))
		return
	}

	h.deletePost(w, r, post)
}

func (h *PostHandlers) deletePost(w http.ResponseWriter, r *http.Request, post *db.PostWithAuthor) {
	requestID := apperrors.GetRequestID(r.Context())

	if err := h.postRepo.DeleteCascade(r.Context(), post.ID); err != nil {
		if errors.Is(err, db.ErrPostNotFound) {
			apperrors.WriteError(w, requestID, apperrors.PostNotFound())
			return
		}
		apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to delete post").WithCause(err))
		return
	}

	if post.ImageKey.Valid {
		h.removeImageIfUnreferenced(r.Context(), post.ImageKey.String)
	}

	h.invalidateFeed(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// removeImageIfUnreferenced deletes the stored object once no remaining post
// uses its content-hash key. Best effort: the post row is already gone, and
// a stale object is wasted space rather than an error the caller can act on.
func (h *PostHandlers) removeImageIfUnreferenced(ctx context.Context, key string) {
	if h.images == nil {
		return
	}

	n, err := h.postRepo.CountByImageKey(ctx, key)
	if err != nil || n > 0 {
		return
	}

	if err := h.images.Delete(ctx, key); err != nil {
		logger.Warn(ctx, "failed to delete orphaned image", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

func (h *PostHandlers) invalidateFeed(ctx context.Context) {
	if h.cache != nil {
		h.cache.InvalidatePrefix(ctx, cache.FeedKeyPrefix)
	}
}

func parseFeedPagination(r *http.Request) (page, limit int) {
	page = 1
	limit = 10

	if p := r.URL.Query().Get("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	return page, limit
}
