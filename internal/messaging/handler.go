package messaging

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tutorlive/backend/internal/events"
	"github.com/tutorlive/backend/internal/middleware"
	"github.com/tutorlive/backend/pkg/response"
)

// Publisher delivers effects produced by HTTP requests.
type Publisher interface {
	Apply(ctx context.Context, effects []events.Effect)
}

// Handler serves the message HTTP endpoints for the calling user.
type Handler struct {
	svc    *Service
	pub    Publisher
	logger *zap.Logger
}

// NewHandler creates a messaging handler.
func NewHandler(svc *Service, pub Publisher, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, pub: pub, logger: logger}
}

// Unseen handles GET /messages/unseen[?contactId=].
func (h *Handler) Unseen(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	contactID := c.Query("contactId")
	n, err := h.svc.UnseenCount(c.Request.Context(), userID, contactID)
	if err != nil {
		h.fail(c, "count unseen messages", err)
		return
	}
	if contactID != "" {
		response.OK(c, ConversationUnseen{ContactID: contactID, Count: n})
		return
	}
	response.OK(c, UnseenCount{Count: n})
}

// Inbox handles GET /messages/inbox.
func (h *Handler) Inbox(c *gin.Context) {
	inbox, err := h.svc.Inbox(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		h.fail(c, "load inbox", err)
		return
	}
	response.OK(c, inbox)
}

// Conversation handles GET /messages/:contactId. Opening a conversation marks
// the contact's messages as seen.
func (h *Handler) Conversation(c *gin.Context) {
	ctx := c.Request.Context()
	view, effects, err := h.svc.Conversation(ctx, c.GetString(middleware.ContextUserID), c.Param("contactId"))
	h.pub.Apply(ctx, effects)
	if err != nil {
		h.fail(c, "load conversation", err)
		return
	}
	response.OK(c, view)
}

func (h *Handler) fail(c *gin.Context, msg string, err error) {
	if errors.Is(err, ErrBadRequest) {
		response.BadRequest(c, err.Error())
		return
	}
	h.logger.Error(msg, zap.Error(err))
	response.Internal(c, "failed to "+msg)
}
