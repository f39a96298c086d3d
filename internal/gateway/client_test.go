package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(srv *httptest.Server) *Client {
	return &Client{
		baseURL:       srv.URL,
		channelNumber: "5559999",
		httpClient:    srv.Client(),
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSendMessageReturnsMessageID(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":    "SUCCESS",
			"message": "Success",
			"results": map[string]string{"message_id": "3EB0B430", "status": "sent"},
		})
	}))
	t.Cleanup(srv.Close)

	id, err := newTestClient(srv).SendMessage(context.Background(), "+5551234", "hello", "prev-1")
	require.NoError(t, err)
	assert.Equal(t, "3EB0B430", id)
	assert.Equal(t, "/5559999/send/message", gotPath)
	assert.Equal(t, "5551234", gotBody["phone"])
	assert.Equal(t, "hello", gotBody["message"])
	assert.Equal(t, "prev-1", gotBody["reply_message_id"])
}

func TestSendMessageOmitsEmptyReplyID(t *testing.T) {
	t.Parallel()

	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":    "SUCCESS",
			"results": map[string]string{"message_id": "id-1"},
		})
	}))
	t.Cleanup(srv.Close)

	_, err := newTestClient(srv).SendMessage(context.Background(), "5551234", "hi", "")
	require.NoError(t, err)
	_, present := gotBody["reply_message_id"]
	assert.False(t, present)
}

func TestSendMessageGatewayFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":    "ERROR",
			"message": "device not connected",
		})
	}))
	t.Cleanup(srv.Close)

	_, err := newTestClient(srv).SendMessage(context.Background(), "5551234", "hi", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device not connected")
}

func TestSendImageHitsImageEndpoint(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":    "SUCCESS",
			"results": map[string]string{"message_id": "img-1"},
		})
	}))
	t.Cleanup(srv.Close)

	id, err := newTestClient(srv).SendImage(context.Background(), "5551234", "http://cdn/pic.jpg", "look")
	require.NoError(t, err)
	assert.Equal(t, "img-1", id)
	assert.Equal(t, "/5559999/send/image", gotPath)
	assert.Equal(t, "http://cdn/pic.jpg", gotBody["image_url"])
	assert.Equal(t, "look", gotBody["caption"])
}

func TestAvatarURL(t *testing.T) {
	t.Parallel()

	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"phone":      r.URL.Query().Get("phone"),
			"is_preview": r.URL.Query().Get("is_preview"),
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":    "SUCCESS",
			"results": map[string]string{"url": "http://cdn/avatar.jpg"},
		})
	}))
	t.Cleanup(srv.Close)

	avatarURL, err := newTestClient(srv).AvatarURL(context.Background(), "5551234@s.whatsapp.net")
	require.NoError(t, err)
	assert.Equal(t, "http://cdn/avatar.jpg", avatarURL)
	assert.Equal(t, "5551234@s.whatsapp.net", gotQuery["phone"])
	assert.Equal(t, "true", gotQuery["is_preview"])
}

func TestAvatarURLNoAvatar(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":    "SUCCESS",
			"results": map[string]string{},
		})
	}))
	t.Cleanup(srv.Close)

	avatarURL, err := newTestClient(srv).AvatarURL(context.Background(), "5551234@s.whatsapp.net")
	require.NoError(t, err)
	assert.Empty(t, avatarURL)
}

func TestSessionEndpoints(t *testing.T) {
	t.Parallel()

	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":    "SUCCESS",
			"results": map[string]string{"qr_link": "http://gw/qr.png"},
		})
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(srv)
	ctx := context.Background()

	results, err := c.Login(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(results), "qr_link")

	_, err = c.LoginWithCode(ctx, "+5559999")
	require.NoError(t, err)
	_, err = c.Devices(ctx)
	require.NoError(t, err)
	_, err = c.Logout(ctx)
	require.NoError(t, err)
	_, err = c.Reconnect(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/5559999/app/login",
		"/5559999/app/login-with-code",
		"/5559999/app/devices",
		"/5559999/app/logout",
		"/5559999/app/reconnect",
	}, paths)
}

func TestBasicAuthHeader(t *testing.T) {
	t.Parallel()

	var gotUser, gotPass string
	var gotOK bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, gotOK = r.BasicAuth()
		_ = json.NewEncoder(w).Encode(map[string]any{"code": "SUCCESS"})
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(srv)
	c.user = "admin"
	c.pass = "secret"
	_, err := c.Devices(context.Background())
	require.NoError(t, err)
	require.True(t, gotOK)
	assert.Equal(t, "admin", gotUser)
	assert.Equal(t, "secret", gotPass)
}

func TestMediaURL(t *testing.T) {
	t.Parallel()

	c := &Client{baseURL: "http://gw:3001", channelNumber: "5559999"}
	assert.Equal(t, "http://gw:3001/5559999/media/abc.jpg", c.MediaURL("/media/abc.jpg"))
	assert.Equal(t, "http://gw:3001/5559999/media/abc.jpg", c.MediaURL("media/abc.jpg"))
}
