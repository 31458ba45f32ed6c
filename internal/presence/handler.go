package presence

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tutorlive/backend/internal/events"
	"github.com/tutorlive/backend/internal/middleware"
	"github.com/tutorlive/backend/pkg/response"
)

// Publisher delivers effects produced outside a WebSocket handler.
type Publisher interface {
	Apply(ctx context.Context, effects []events.Effect)
}

// Handler serves the live tutor HTTP endpoints.
type Handler struct {
	svc    *Service
	pub    Publisher
	logger *zap.Logger
}

// NewHandler creates a presence handler.
func NewHandler(svc *Service, pub Publisher, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, pub: pub, logger: logger}
}

// ListLive handles GET /live-tutors.
func (h *Handler) ListLive(c *gin.Context) {
	list, err := h.svc.ListLive(c.Request.Context())
	if err != nil {
		h.logger.Error("list live tutors", zap.Error(err))
		response.Internal(c, "failed to list live tutors")
		return
	}
	response.OK(c, list)
}

// StartLive handles POST /start-live for the calling tutor.
func (h *Handler) StartLive(c *gin.Context) {
	tutorID := c.GetString(middleware.ContextUserID)
	ctx := c.Request.Context()
	effects, err := h.svc.GoLive(ctx, tutorID)
	if err != nil {
		h.logger.Error("start live", zap.String("tutor_id", tutorID), zap.Error(err))
		response.Internal(c, "failed to start live session")
		return
	}
	h.pub.Apply(ctx, effects)
	response.OK(c, gin.H{"tutor_id": tutorID, "live": true, "live_url": "/tutor-live/" + tutorID})
}

// StopLive handles POST /stop-live for the calling tutor.
func (h *Handler) StopLive(c *gin.Context) {
	tutorID := c.GetString(middleware.ContextUserID)
	ctx := c.Request.Context()
	effects, err := h.svc.GoOffline(ctx, tutorID)
	if err != nil {
		h.logger.Error("stop live", zap.String("tutor_id", tutorID), zap.Error(err))
		response.Internal(c, "failed to stop live session")
		return
	}
	h.pub.Apply(ctx, effects)
	response.OK(c, gin.H{"tutor_id": tutorID, "live": false})
}

// Viewers handles GET /tutors/:id/viewers. Only the tutor may list their
// own audience.
func (h *Handler) Viewers(c *gin.Context) {
	tutorID := c.Param("id")
	if c.GetString(middleware.ContextUserID) != tutorID {
		response.Forbidden(c, "not your session")
		return
	}
	if !h.svc.Table().IsLive(tutorID) {
		response.NotFound(c, "tutor is not live")
		return
	}
	viewers := h.svc.Table().Viewers(tutorID)
	response.OK(c, gin.H{"count": len(viewers), "viewers": viewers})
}
