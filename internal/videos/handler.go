package videos

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vidshare/backend/internal/models"
	"github.com/vidshare/backend/pkg/response"
)

// DefaultUploadURLTTL is the lifetime of the pre-signed upload URL returned on creation.
const DefaultUploadURLTTL = 10 * time.Minute

const errQueryParams = "query can only be userId, id or search"

// Store is the record store used by the API.
type Store interface {
	Save(ctx context.Context, v *models.Video) error
	Get(ctx context.Context, id string) (*models.Video, error)
	ListByOwner(ctx context.Context, userID string) ([]models.Video, error)
}

// UploadSigner issues pre-signed upload URLs into the ingest bucket.
type UploadSigner interface {
	PresignPut(ctx context.Context, key string, expires time.Duration) (string, error)
}

// Searcher runs keyword queries against the search index.
type Searcher interface {
	Search(ctx context.Context, keyword string) ([]models.SearchDocument, error)
}

// Handler handles video HTTP endpoints.
type Handler struct {
	store   Store
	uploads UploadSigner
	search  Searcher // optional: nil disables ?search=
	urlTTL  time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewHandler creates a videos handler. search may be nil.
func NewHandler(store Store, uploads UploadSigner, search Searcher, urlTTL time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if urlTTL <= 0 {
		urlTTL = DefaultUploadURLTTL
	}
	return &Handler{store: store, uploads: uploads, search: search, urlTTL: urlTTL, now: time.Now, logger: logger}
}

// Register mounts the video routes on rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.PUT("/video", h.Create)
	rg.GET("/video", h.Query)
}

// CreateRequest is the body of PUT /video.
type CreateRequest struct {
	UserID      string   `json:"userId" binding:"required"`
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// CreateResponse carries the id of the new record and where to upload its source file.
type CreateResponse struct {
	ID        string `json:"id"`
	UploadURL string `json:"uploadUrl"`
}

// Create handles PUT /video. The record starts NOT_UPLOADED; the client PUTs the file to the returned URL.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.UserID) == "" {
		response.BadRequest(c, "userId and title required")
		return
	}

	v := &models.Video{
		ID:           uuid.NewString(),
		UserID:       req.UserID,
		Title:        req.Title,
		Description:  req.Description,
		Tags:         req.Tags,
		UploadedTime: h.now().UnixMilli(),
		Status:       models.StatusNotUploaded,
		Files:        models.Files{},
	}
	ctx := c.Request.Context()
	if err := h.store.Save(ctx, v); err != nil {
		h.logger.Error("create video failed", zap.Error(err), zap.String("user_id", v.UserID))
		response.Internal(c, "failed to create video")
		return
	}
	url, err := h.uploads.PresignPut(ctx, v.ID, h.urlTTL)
	if err != nil {
		h.logger.Error("presign upload failed", zap.Error(err), zap.String("video_id", v.ID))
		response.Internal(c, "failed to create upload url")
		return
	}
	h.logger.Info("video created", zap.String("video_id", v.ID), zap.String("user_id", v.UserID))
	response.OK(c, CreateResponse{ID: v.ID, UploadURL: url})
}

// Query handles GET /video with exactly one of ?id=, ?userId= or ?search=.
func (h *Handler) Query(c *gin.Context) {
	id, hasID := c.GetQuery("id")
	userID, hasUser := c.GetQuery("userId")
	keyword, hasSearch := c.GetQuery("search")
	n := 0
	for _, ok := range []bool{hasID, hasUser, hasSearch} {
		if ok {
			n++
		}
	}
	if n != 1 {
		response.BadRequest(c, errQueryParams)
		return
	}

	ctx := c.Request.Context()
	switch {
	case hasID:
		v, err := h.store.Get(ctx, id)
		if errors.Is(err, models.ErrNotFound) {
			response.NotFound(c, "Video not found")
			return
		}
		if err != nil {
			h.logger.Error("get video failed", zap.Error(err), zap.String("video_id", id))
			response.Internal(c, "failed to get video")
			return
		}
		response.OK(c, v)
	case hasUser:
		list, err := h.store.ListByOwner(ctx, userID)
		if err != nil {
			h.logger.Error("list videos failed", zap.Error(err), zap.String("user_id", userID))
			response.Internal(c, "failed to list videos")
			return
		}
		response.OK(c, list)
	default:
		if h.search == nil {
			response.ServiceUnavailable(c, "search is not configured")
			return
		}
		hits, err := h.search.Search(ctx, keyword)
		if err != nil {
			h.logger.Error("search failed", zap.Error(err), zap.String("query", keyword))
			response.Internal(c, "search failed")
			return
		}
		response.OK(c, hits)
	}
}
