package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// UpdateProcessor answers Telegram updates.
type UpdateProcessor interface {
	ProcessUpdate(ctx context.Context, update tgbotapi.Update)
}

// TelegramWebhookHandler receives updates Telegram posts to /bot<token>.
type TelegramWebhookHandler struct {
	ctx       context.Context
	processor UpdateProcessor
	hook      []byte
	logger    zerolog.Logger
}

// NewTelegramWebhookHandler creates a webhook handler. Updates are processed
// in the background under ctx so Telegram gets its 200 right away.
func NewTelegramWebhookHandler(ctx context.Context, processor UpdateProcessor, token string, logger zerolog.Logger) *TelegramWebhookHandler {
	return &TelegramWebhookHandler{
		ctx:       ctx,
		processor: processor,
		hook:      []byte("bot" + token),
		logger:    logger.With().Str("component", "telegram_webhook").Logger(),
	}
}

// RegisterPublicRoutes registers the webhook route. The token contains a
// colon, so the path is matched as a parameter rather than a literal route.
func (h *TelegramWebhookHandler) RegisterPublicRoutes(r gin.IRouter) {
	r.POST("/:hook", h.Receive)
}

// Receive accepts one update.
// POST /bot<token>
func (h *TelegramWebhookHandler) Receive(c *gin.Context) {
	if subtle.ConstantTimeCompare([]byte(c.Param("hook")), h.hook) != 1 {
		c.Status(http.StatusNotFound)
		return
	}

	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		h.logger.Warn().Err(err).Msg("invalid update payload")
		c.Status(http.StatusBadRequest)
		return
	}

	go h.processor.ProcessUpdate(h.ctx, update)

	c.Status(http.StatusOK)
}
