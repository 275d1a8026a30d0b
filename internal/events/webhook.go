package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vidshare/backend/internal/pipeline"
	"github.com/vidshare/backend/pkg/response"
)

// WebhookHandler accepts pushed events (SNS HTTP subscriptions, EventBridge API destinations)
// and runs them through the same handlers as the queue consumers. SNS subscription confirmations
// are answered by fetching their SubscribeURL.
type WebhookHandler struct {
	upload  MessageHandler
	status  MessageHandler
	client  *http.Client
	// trusted reports whether a SubscribeURL may be fetched.
	trusted func(*url.URL) bool
	logger  *zap.Logger
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(upload UploadHandler, status StatusHandler, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{
		upload:  UploadMessages(upload),
		status:  StatusMessages(status),
		client:  &http.Client{Timeout: 10 * time.Second},
		trusted: isSNSEndpoint,
		logger:  logger,
	}
}

// isSNSEndpoint accepts https://sns.<region>.amazonaws.com only.
func isSNSEndpoint(u *url.URL) bool {
	host := u.Hostname()
	return u.Scheme == "https" && strings.HasPrefix(host, "sns.") &&
		(strings.HasSuffix(host, ".amazonaws.com") || strings.HasSuffix(host, ".amazonaws.com.cn"))
}

// Register mounts the webhook routes on rg.
func (h *WebhookHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/upload", h.Upload)
	rg.POST("/job-status", h.JobStatus)
}

// Upload handles POST /events/upload.
func (h *WebhookHandler) Upload(c *gin.Context) {
	h.serve(c, "upload", h.upload)
}

// JobStatus handles POST /events/job-status.
func (h *WebhookHandler) JobStatus(c *gin.Context) {
	h.serve(c, "job_status", h.status)
}

// serve answers 202 on success, 400 for malformed events and 500 otherwise so the sender retries.
func (h *WebhookHandler) serve(c *gin.Context, kind string, handle MessageHandler) {
	body, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if subscribeURL, ok := SubscriptionConfirmURL(body); ok {
		h.confirm(c, kind, subscribeURL)
		return
	}
	err = handle(c.Request.Context(), body)
	switch {
	case err == nil:
		response.Accepted(c)
	case errors.Is(err, pipeline.ErrMalformedEvent):
		h.logger.Warn("malformed webhook event", zap.String("kind", kind), zap.Error(err))
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error("webhook event failed", zap.String("kind", kind), zap.Error(err))
		response.Internal(c, "event processing failed")
	}
}

func (h *WebhookHandler) confirm(c *gin.Context, kind, subscribeURL string) {
	log := h.logger.With(zap.String("kind", kind))
	u, err := url.Parse(subscribeURL)
	if err != nil || !h.trusted(u) {
		log.Warn("untrusted subscribe url", zap.String("subscribe_url", subscribeURL))
		response.BadRequest(c, "untrusted SubscribeURL")
		return
	}
	if err := h.fetch(c.Request.Context(), u.String()); err != nil {
		log.Error("sns subscription confirmation failed", zap.Error(err))
		response.Internal(c, "subscription confirmation failed")
		return
	}
	log.Info("sns subscription confirmed", zap.String("host", u.Host))
	response.Accepted(c)
}

func (h *WebhookHandler) fetch(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("get subscribe url: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("get subscribe url: status %d", resp.StatusCode)
	}
	return nil
}
