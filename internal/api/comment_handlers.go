package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/opensocial/backend/internal/auth"
	"github.com/opensocial/backend/internal/db"
	apperrors "github.com/opensocial/backend/internal/errors"
)

type CommentHandlers struct {
	commentRepo *db.CommentRepository
	postRepo    *db.PostRepository
}

func NewCommentHandlers(commentRepo *db.CommentRepository, postRepo *db.PostRepository) *CommentHandlers {
	return &CommentHandlers{
		commentRepo: commentRepo,
		postRepo:    postRepo,
	}
}

type CommentRequest struct {
	Body string `json:"body"`
}

type CommentResponse struct {
	ID         string    `json:"id"`
	PostID     string    `json:"postId"`
	UserID     string    `json:"userId"`
	AuthorName string    `json:"authorName,omitempty"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func commentView(c *db.Comment) CommentResponse {
	return CommentResponse{
		ID:        c.ID.String(),
		PostID:    c.PostID.String(),
		UserID:    c.UserID.String(),
		Body:      c.Body,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// ListComments handles GET /api/comment/{postId}, oldest first.
func (h *CommentHandlers) ListComments(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	postID, err := uuid.Parse(r.PathValue("postId"))
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid post ID"))
		return
	}

	comments, err := h.commentRepo.ListByPost(r.Context(), postID)
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to list comments").WithCause(err))
		return
	}

	views := make([]CommentResponse, 0, len(comments))
	for i := range comments {
		view := commentView(&comments[i].Comment)
		view.AuthorName = comments[i].AuthorFirstName
		views = append(views, view)
	}

	apperrors.WriteJSON(w, requestID, http.StatusOK, views)
}

// CreateComment handles POST /api/comment/{postId}. The repository inserts
// the comment and bumps the post counter in one transaction.
func (h *CommentHandlers) CreateComment(w http.ResponseWriter, r *http.Request) {
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

	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid request body"))
		return
	}
	if req.Body == "" {
		apperrors.WriteError(w, requestID, apperrors.ValidationError("comment body is required"))
		return
	}

	comment := &db.Comment{
		ID:     uuid.New(),
		PostID: postID,
		UserID: user.ID,
		Body:   req.Body,
	}

	if err := h.commentRepo.Create(r.Context(), comment); err != nil {
		if errors.Is(err, db.ErrPostNotFound) {
			apperrors.WriteError(w, requestID, apperrors.PostNotFound())
			return
		}
		apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to create comment").WithCause(err))
		return
	}

	apperrors.WriteJSON(w, requestID, http.StatusCreated, commentView(comment))
}

// UpdateComment handles PATCH /api/comment/{commentId}; comment author only.
func (h *CommentHandlers) UpdateComment(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	user := auth.UserFromContext(r.Context())
	if user == nil {
		apperrors.WriteError(w, requestID, apperrors.Unauthorized("not authenticated"))
		return
	}

	commentID, err := uuid.Parse(r.PathValue("commentId"))
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid comment ID"))
		return
	}

	comment, err := h.commentRepo.GetByID(r.Context(), commentID)
	if err != nil {
		if errors.Is(err, db.ErrCommentNotFound) {
			apperrors.WriteError(w, requestID, apperrors.CommentNotFound())
			return
		}
		apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to load comment").WithCause(err))
		return
	}

	if comment.UserID != user.ID {
		apperrors.WriteError(w, requestID, apperrors.Forbidden("not the author of this comment"))
		return
	}

	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid request body"))
		return
	}
	if req.Body == "" {
		apperrors.WriteError(w, requestID, apperrors.ValidationError("comment body is required"))
		return
	}

	updated, err := h.commentRepo.Update(r.Context(), commentID, req.Body)
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to update comment").WithCause(err))
		return
	}

	apperrors.WriteJSON(w, requestID, http.StatusOK, commentView(updated))
}

// DeleteComment handles DELETE /api/comment/{commentId}. The comment's
// author may delete it, and so may the owner of the post it sits on.
func (h *CommentHandlers) DeleteComment(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	user := auth.UserFromContext(r.Context())
	if user == nil {
		apperrors.WriteError(w, requestID, apperrors.Unauthorized("not authenticated"))
		return
	}

	commentID, err := uuid.Parse(r.PathValue("commentId"))
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid comment ID"))
		return
	}

	comment, err := h.commentRepo.GetByID(r.Context(), commentID)
	if err != nil {
		if errors.Is(err, db.ErrCommentNotFound) {
			apperrors.WriteError(w, requestID, apperrors.CommentNotFound())
			return
		}
		apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to load comment").WithCause(err))
		return
	}

	if comment.UserID != user.ID {
		post, err := h.postRepo.GetByID(r.Context(), comment.PostID)
		if err != nil {
			apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to load post").WithCause(err))
			return
		}
		if post.AuthorID != user.ID {
			apperrors.WriteError(w, requestID,
				apperrors.Forbidden("only the comment author or the post owner may delete"))
			return
		}
	}

	h.deleteComment(w, r, commentID)
}

// AdminDeleteComment handles DELETE /api/admin/comment/{commentId}.
func (h *CommentHandlers) AdminDeleteComment(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	commentID, err := uuid.Parse(r.PathValue("commentId"))
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid comment ID"))
		return
	}

	h.deleteComment(w, r, commentID)
}

func (h *CommentHandlers) deleteComment(w http.ResponseWriter, r *http.Request, commentID uuid.UUID) {
	requestID := apperrors.GetRequestID(r.Context())

	if err := h.commentRepo.Delete(r.Context(), commentID); err != nil {
		if errors.Is(err, db.ErrCommentNotFound) {
			apperrors.WriteError(w, requestID, apperrors.CommentNotFound())
			return
		}
		apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to delete comment").WithCause(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
