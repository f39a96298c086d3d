// Package gateway is the HTTP client for the WhatsApp Web gateway
// (go-whatsapp-web-multidevice). All calls go through the channel-scoped
// API path and carry Basic auth when the gateway is configured with it.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chatwire/chatwire/internal/config"
)

const successCode = "SUCCESS"

// Client talks to one gateway instance on behalf of one channel.
type Client struct {
	baseURL       string
	channelNumber string
	user          string
	pass          string
	httpClient    *http.Client
	logger        *slog.Logger
}

func NewClient(log *slog.Logger, cfg config.ChannelConfig) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.GatewayBaseURL, "/"),
		channelNumber: sanitizeNumber(cfg.PhoneNumber),
		user:          cfg.GatewayUser,
		pass:          cfg.GatewayPass,
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		logger:        log.With(slog.String("component", "gateway")),
	}
}

// envelope is the gateway's uniform response shape.
type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Results json.RawMessage `json:"results"`
}

type sendResult struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

type avatarResult struct {
	URL string `json:"url"`
}

// SendMessage posts a text message and returns the gateway-assigned message
// id, used later to match delivery receipts. replyMessageID may be empty.
func (c *Client) SendMessage(ctx context.Context, phone, text, replyMessageID string) (string, error) {
	body := map[string]string{
		"phone":   sanitizeNumber(phone),
		"message": text,
	}
	if replyMessageID != "" {
		body["reply_message_id"] = replyMessageID
	}
	return c.postSend(ctx, "send/message", body)
}

// SendImage sends an image by URL with an optional caption.
func (c *Client) SendImage(ctx context.Context, phone, imageURL, caption string) (string, error) {
	return c.postSend(ctx, "send/image", map[string]string{
		"phone":     sanitizeNumber(phone),
		"image_url": imageURL,
		"caption":   caption,
	})
}

// SendAudio sends an audio file by URL.
func (c *Client) SendAudio(ctx context.Context, phone, audioURL string) (string, error) {
	return c.postSend(ctx, "send/audio", map[string]string{
		"phone":     sanitizeNumber(phone),
		"audio_url": audioURL,
	})
}

// SendVideo sends a video by URL with an optional caption.
func (c *Client) SendVideo(ctx context.Context, phone, videoURL, caption string) (string, error) {
	return c.postSend(ctx, "send/video", map[string]string{
		"phone":     sanitizeNumber(phone),
		"video_url": videoURL,
		"caption":   caption,
	})
}

// SendFile sends a document by URL with an optional caption.
func (c *Client) SendFile(ctx context.Context, phone, fileURL, caption string) (string, error) {
	return c.postSend(ctx, "send/file", map[string]string{
		"phone":    sanitizeNumber(phone),
		"file_url": fileURL,
		"caption":  caption,
	})
}

func (c *Client) postSend(ctx context.Context, endpoint string, body map[string]string) (string, error) {
	env, err := c.do(ctx, http.MethodPost, endpoint, nil, body)
	if err != nil {
		return "", err
	}
	var result sendResult
	if len(env.Results) > 0 {
		if err := json.Unmarshal(env.Results, &result); err != nil {
			return "", fmt.Errorf("decode %s results: %w", endpoint, err)
		}
	}
	if result.MessageID == "" {
		return "", fmt.Errorf("%s: gateway returned no message id", endpoint)
	}
	return result.MessageID, nil
}

// Login requests a QR pairing payload for linking the channel's device.
func (c *Client) Login(ctx context.Context) (json.RawMessage, error) {
	return c.appCall(ctx, "app/login", nil)
}

// LoginWithCode requests a pairing code for the given phone number.
func (c *Client) LoginWithCode(ctx context.Context, phone string) (json.RawMessage, error) {
	return c.appCall(ctx, "app/login-with-code", url.Values{"phone": {sanitizeNumber(phone)}})
}

// Devices lists the devices linked to the channel session.
func (c *Client) Devices(ctx context.Context) (json.RawMessage, error) {
	return c.appCall(ctx, "app/devices", nil)
}

// Logout tears down the channel session.
func (c *Client) Logout(ctx context.Context) (json.RawMessage, error) {
	return c.appCall(ctx, "app/logout", nil)
}

// Reconnect re-establishes the channel session without re-pairing.
func (c *Client) Reconnect(ctx context.Context) (json.RawMessage, error) {
	return c.appCall(ctx, "app/reconnect", nil)
}

func (c *Client) appCall(ctx context.Context, endpoint string, query url.Values) (json.RawMessage, error) {
	env, err := c.do(ctx, http.MethodGet, endpoint, query, nil)
	if err != nil {
		return nil, err
	}
	return env.Results, nil
}

// AvatarURL resolves the preview avatar URL for a contact identifier.
// Returns an empty string when the contact has no avatar.
func (c *Client) AvatarURL(ctx context.Context, identifier string) (string, error) {
	query := url.Values{"phone": {identifier}, "is_preview": {"true"}}
	env, err := c.do(ctx, http.MethodGet, "user/avatar", query, nil)
	if err != nil {
		return "", err
	}
	var result avatarResult
	if len(env.Results) > 0 {
		if err := json.Unmarshal(env.Results, &result); err != nil {
			return "", fmt.Errorf("decode avatar results: %w", err)
		}
	}
	return result.URL, nil
}

// MediaURL turns a relative media reference from a webhook payload into an
// absolute URL on the gateway.
func (c *Client) MediaURL(reference string) string {
	return c.apiPath() + "/" + strings.TrimPrefix(reference, "/")
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body map[string]string) (envelope, error) {
	target := c.apiPath() + "/" + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return envelope{}, fmt.Errorf("encode %s body: %w", endpoint, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return envelope{}, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" && c.pass != "" {
		req.SetBasicAuth(c.user, c.pass)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return envelope{}, fmt.Errorf("call %s: %w", endpoint, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, fmt.Errorf("read %s response: %w", endpoint, err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return envelope{}, fmt.Errorf("decode %s response (status %d): %w", endpoint, resp.StatusCode, err)
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := env.Message
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return envelope{}, fmt.Errorf("%s failed: status %d: %s", endpoint, resp.StatusCode, msg)
	}
	if env.Code != "" && env.Code != successCode {
		return envelope{}, fmt.Errorf("%s failed: %s", endpoint, env.Message)
	}
	return env, nil
}

// apiPath scopes requests to this channel's number, matching how the
// gateway multiplexes sessions.
func (c *Client) apiPath() string {
	if c.channelNumber == "" {
		return c.baseURL
	}
	return c.baseURL + "/" + c.channelNumber
}

func sanitizeNumber(number string) string {
	return strings.TrimPrefix(strings.TrimSpace(number), "+")
}
