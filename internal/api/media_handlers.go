package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/opensocial/backend/internal/errors"
	"github.com/opensocial/backend/internal/logger"
	"github.com/opensocial/backend/internal/storage"
)

type MediaHandlers struct {
	store *storage.Client
	log   *logger.Logger
}

func NewMediaHandlers(store *storage.Client) *MediaHandlers {
	return &MediaHandlers{
		store: store,
		log:   logger.Default().WithComponent("media"),
	}
}

// ServeMedia handles GET /api/media/{key...}, streaming a stored image back
// to the browser. Content-hash keys never change, so responses are cached
// aggressively.
func (h *MediaHandlers) ServeMedia(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	key := r.PathValue("key")
	if key == "" || strings.Contains(key, "..") {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid media key"))
		return
	}

	exists, err := h.store.ObjectExists(r.Context(), key)
	if err != nil {
		apperrors.WriteError(w, requestID,
			apperrors.StorageError("failed to check media").WithCause(err))
		return
	}
	if !exists {
		apperrors.WriteError(w, requestID, apperrors.NotFound("media"))
		return
	}

	obj, info, err := h.store.GetObject(r.Context(), key)
	if err != nil {
		apperrors.WriteError(w, requestID,
			apperrors.StorageError("failed to load media").WithCause(err))
		return
	}
	defer obj.Close()

	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if info.ETag != "" {
		w.Header().Set("ETag", info.ETag)
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")

	if _, err := io.Copy(w, obj); err != nil {
		h.log.Warn(r.Context(), "media stream aborted", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}
