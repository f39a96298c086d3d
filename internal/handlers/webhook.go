// Package handlers holds the HTTP handlers registered on the server.
package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chatwire/chatwire/internal/pipeline"
	"github.com/chatwire/chatwire/internal/webhook"
)

// Processor runs the ingestion pipeline for one decoded delivery.
type Processor interface {
	Process(ctx context.Context, payload *webhook.Payload) pipeline.Outcome
}

// WebhookHandler receives gateway webhook deliveries. It always answers
// 200 once the body is read: the gateway retries on non-2xx, and a payload
// this service cannot use will not become usable by redelivery.
type WebhookHandler struct {
	logger    *slog.Logger
	processor Processor
}

func NewWebhookHandler(log *slog.Logger, processor Processor) *WebhookHandler {
	return &WebhookHandler{
		logger:    log.With(slog.String("handler", "webhook")),
		processor: processor,
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhook", h.Receive)
}

func (h *WebhookHandler) Receive(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"status": "unreadable body"})
	}

	payload, err := webhook.Decode(body)
	if err != nil {
		h.logger.Debug("malformed webhook body skipped", slog.Any("error", err))
		return c.JSON(http.StatusOK, map[string]string{"status": "skipped"})
	}

	outcome := h.processor.Process(c.Request().Context(), payload)
	h.logger.Info("webhook processed",
		slog.String("event", string(outcome.Event)),
		slog.Bool("skipped", outcome.Skipped),
		slog.Int("messages", len(outcome.Messages)),
		slog.Int("statuses", outcome.StatusesApplied),
	)
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
