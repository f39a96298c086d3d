package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type routeHandler struct {
	registered bool
}

func (h *routeHandler) Register(e *echo.Echo) {
	h.registered = true
	e.GET("/registered", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})
}

func TestNewRegistersHandlers(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &routeHandler{}
	srv := New(log, "", []Handler{h, nil})

	if !h.registered {
		t.Fatal("handler was not registered")
	}
	if srv.addr != ":8080" {
		t.Fatalf("unexpected default addr: %q", srv.addr)
	}

	req := httptest.NewRequest(http.MethodGet, "/registered", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}
