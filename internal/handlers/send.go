package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Sender pushes outbound messages through the gateway.
type Sender interface {
	SendMessage(ctx context.Context, phone, text, replyMessageID string) (string, error)
	SendImage(ctx context.Context, phone, imageURL, caption string) (string, error)
	SendAudio(ctx context.Context, phone, audioURL string) (string, error)
	SendVideo(ctx context.Context, phone, videoURL, caption string) (string, error)
	SendFile(ctx context.Context, phone, fileURL, caption string) (string, error)
}

type sendRequest struct {
	Phone          string `json:"phone"`
	Message        string `json:"message"`
	ReplyMessageID string `json:"reply_message_id"`
	URL            string `json:"url"`
	Caption        string `json:"caption"`
}

// SendHandler exposes the outbound send operations. The returned message id
// is the gateway's external id; delivery receipts for it arrive later
// through the webhook.
type SendHandler struct {
	logger *slog.Logger
	sender Sender
}

func NewSendHandler(log *slog.Logger, sender Sender) *SendHandler {
	return &SendHandler{
		logger: log.With(slog.String("handler", "send")),
		sender: sender,
	}
}

func (h *SendHandler) Register(e *echo.Echo) {
	e.POST("/send/message", h.Message)
	e.POST("/send/image", h.Image)
	e.POST("/send/audio", h.Audio)
	e.POST("/send/video", h.Video)
	e.POST("/send/file", h.File)
}

func (h *SendHandler) Message(c echo.Context) error {
	req, err := h.bind(c, false)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if req.Message == "" {
		return badRequest(c, "message is required")
	}
	return h.respond(c, func(ctx context.Context) (string, error) {
		return h.sender.SendMessage(ctx, req.Phone, req.Message, req.ReplyMessageID)
	})
}

func (h *SendHandler) Image(c echo.Context) error {
	req, err := h.bind(c, true)
	if err != nil {
		return badRequest(c, err.Error())
	}
	return h.respond(c, func(ctx context.Context) (string, error) {
		return h.sender.SendImage(ctx, req.Phone, req.URL, req.Caption)
	})
}

func (h *SendHandler) Audio(c echo.Context) error {
	req, err := h.bind(c, true)
	if err != nil {
		return badRequest(c, err.Error())
	}
	return h.respond(c, func(ctx context.Context) (string, error) {
		return h.sender.SendAudio(ctx, req.Phone, req.URL)
	})
}

func (h *SendHandler) Video(c echo.Context) error {
	req, err := h.bind(c, true)
	if err != nil {
		return badRequest(c, err.Error())
	}
	return h.respond(c, func(ctx context.Context) (string, error) {
		return h.sender.SendVideo(ctx, req.Phone, req.URL, req.Caption)
	})
}

func (h *SendHandler) File(c echo.Context) error {
	req, err := h.bind(c, true)
	if err != nil {
		return badRequest(c, err.Error())
	}
	return h.respond(c, func(ctx context.Context) (string, error) {
		return h.sender.SendFile(ctx, req.Phone, req.URL, req.Caption)
	})
}

func (h *SendHandler) bind(c echo.Context, needURL bool) (sendRequest, error) {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return req, errors.New("invalid request body")
	}
	if req.Phone == "" {
		return req, errors.New("phone is required")
	}
	if needURL && req.URL == "" {
		return req, errors.New("url is required")
	}
	return req, nil
}

func (h *SendHandler) respond(c echo.Context, call func(ctx context.Context) (string, error)) error {
	messageID, err := call(c.Request().Context())
	if err != nil {
		h.logger.Warn("send failed", slog.Any("error", err))
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]string{"message_id": messageID},
	})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]any{
		"success": false,
		"error":   msg,
	})
}
