package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// SessionClient drives the gateway's WhatsApp session lifecycle.
type SessionClient interface {
	Login(ctx context.Context) (json.RawMessage, error)
	LoginWithCode(ctx context.Context, phone string) (json.RawMessage, error)
	Devices(ctx context.Context) (json.RawMessage, error)
	Logout(ctx context.Context) (json.RawMessage, error)
	Reconnect(ctx context.Context) (json.RawMessage, error)
}

// GatewayHandler exposes session control over the gateway: pairing,
// device listing, logout, reconnect.
type GatewayHandler struct {
	logger *slog.Logger
	client SessionClient
}

func NewGatewayHandler(log *slog.Logger, client SessionClient) *GatewayHandler {
	return &GatewayHandler{
		logger: log.With(slog.String("handler", "gateway")),
		client: client,
	}
}

func (h *GatewayHandler) Register(e *echo.Echo) {
	e.GET("/gateway/login", h.Login)
	e.GET("/gateway/login_with_code", h.LoginWithCode)
	e.GET("/gateway/devices", h.Devices)
	e.GET("/gateway/logout", h.Logout)
	e.GET("/gateway/reconnect", h.Reconnect)
}

func (h *GatewayHandler) Login(c echo.Context) error {
	return h.respond(c, "login", func(ctx context.Context) (json.RawMessage, error) {
		return h.client.Login(ctx)
	})
}

func (h *GatewayHandler) LoginWithCode(c echo.Context) error {
	phone := c.QueryParam("phone")
	if phone == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "phone is required",
		})
	}
	return h.respond(c, "login_with_code", func(ctx context.Context) (json.RawMessage, error) {
		return h.client.LoginWithCode(ctx, phone)
	})
}

func (h *GatewayHandler) Devices(c echo.Context) error {
	return h.respond(c, "devices", func(ctx context.Context) (json.RawMessage, error) {
		return h.client.Devices(ctx)
	})
}

func (h *GatewayHandler) Logout(c echo.Context) error {
	return h.respond(c, "logout", func(ctx context.Context) (json.RawMessage, error) {
		return h.client.Logout(ctx)
	})
}

func (h *GatewayHandler) Reconnect(c echo.Context) error {
	return h.respond(c, "reconnect", func(ctx context.Context) (json.RawMessage, error) {
		return h.client.Reconnect(ctx)
	})
}

func (h *GatewayHandler) respond(c echo.Context, op string, call func(ctx context.Context) (json.RawMessage, error)) error {
	data, err := call(c.Request().Context())
	if err != nil {
		h.logger.Warn("gateway call failed", slog.String("op", op), slog.Any("error", err))
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
	}
	resp := map[string]any{"success": true}
	if len(data) > 0 {
		resp["data"] = data
	}
	return c.JSON(http.StatusOK, resp)
}
