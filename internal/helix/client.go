// Package helix is a minimal client for the Twitch Helix REST API,
// covering exactly the endpoints the gateway exposes.
package helix

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// TransientError wraps an error that is likely temporary and safe to retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err (or any error in its chain) is a
// TransientError, meaning the caller may retry after a backoff.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// APIError is a non-2xx Helix response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("helix returned %d: %s", e.Status, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the API, meaning
// the access token was rejected.
func IsUnauthorized(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusUnauthorized
}

const baseURL = "https://api.twitch.tv/helix"

const (
	// httpClientTimeout is the timeout for the default HTTP client
	// when no custom client is provided.
	httpClientTimeout = 10 * time.Second

	// maxAPIResponseBytes caps response body reads. Helix responses
	// relevant here are small JSON payloads.
	maxAPIResponseBytes = 1024 * 1024
)

// TokenProvider supplies the bearer token and client id attached to
// every request. The session implements this.
type TokenProvider interface {
	AccessToken() string
	ClientID() string
}

// Client talks to the Helix API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	auth       TokenProvider
}

// NewClient creates an API client. If httpClient is nil, a client
// with a 10-second timeout is created.
func NewClient(auth TokenProvider, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: httpClientTimeout}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		auth:       auth,
	}
}

// sanitizeResponseBody truncates and sanitizes a response body for
// inclusion in error messages. Limits to 256 bytes and replaces
// non-printable characters to prevent log injection.
func sanitizeResponseBody(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		body = body[:maxLen]
	}

	var clean []byte

	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		if r == utf8.RuneError && size <= 1 {
			clean = append(clean, '?')
			body = body[1:]

			continue
		}

		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			clean = append(clean, '?')
		} else {
			clean = append(clean, body[:size]...)
		}

		body = body[size:]
	}

	return string(clean)
}

func isTransientStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

// do sends one authenticated request and returns the response body.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body interface{}) ([]byte, error) {
	reqURL := c.baseURL + endpoint
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var payload io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request body: %w", err)
		}

		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, payload)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.auth.AccessToken())
	req.Header.Set("Client-Id", c.auth.ClientID())

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors (timeouts, connection refused, DNS failures)
		// are transient by nature.
		return nil, &TransientError{Err: fmt.Errorf("sending request to %s: %w", endpoint, err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", endpoint, err)
	}

	if resp.StatusCode >= 300 {
		msg := gjson.GetBytes(respBody, "message").Str
		if msg == "" {
			msg = sanitizeResponseBody(respBody)
		}

		apiErr := &APIError{Status: resp.StatusCode, Message: msg}
		if isTransientStatus(resp.StatusCode) {
			return nil, &TransientError{Err: apiErr}
		}

		return nil, apiErr
	}

	return respBody, nil
}

// CreateClip starts clip creation for the broadcaster and returns the
// new clip's id.
func (c *Client) CreateClip(ctx context.Context, broadcasterID string) (string, error) {
	q := url.Values{"broadcaster_id": {broadcasterID}}

	body, err := c.do(ctx, http.MethodPost, "/clips", q, nil)
	if err != nil {
		return "", err
	}

	clipID := gjson.GetBytes(body, "data.0.id").Str
	if clipID == "" {
		return "", errors.New("clip response carried no id")
	}

	return clipID, nil
}

// CreateMarker places a stream marker on the user's live stream.
func (c *Client) CreateMarker(ctx context.Context, userID string) error {
	_, err := c.do(ctx, http.MethodPost, "/streams/markers", nil, map[string]string{
		"user_id": userID,
	})

	return err
}

// GetStream returns the user's live stream, or nil when offline.
func (c *Client) GetStream(ctx context.Context, userID string) (*Stream, error) {
	q := url.Values{
		"user_id": {userID},
		"type":    {"live"},
		"first":   {"1"},
	}

	body, err := c.do(ctx, http.MethodGet, "/streams", q, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []Stream `json:"data"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshalling streams response: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, nil
	}

	return &resp.Data[0], nil
}

// GetChatSettings fetches the broadcaster's chat settings.
func (c *Client) GetChatSettings(ctx context.Context, broadcasterID, moderatorID string) (*ChatSettings, error) {
	q := url.Values{
		"broadcaster_id": {broadcasterID},
		"moderator_id":   {moderatorID},
	}

	body, err := c.do(ctx, http.MethodGet, "/chat/settings", q, nil)
	if err != nil {
		return nil, err
	}

	return decodeChatSettings(body)
}

// UpdateChatSetting flips a single chat mode and returns the settings
// the server now reports.
func (c *Client) UpdateChatSetting(ctx context.Context, broadcasterID, moderatorID, setting string, enabled bool) (*ChatSettings, error) {
	q := url.Values{
		"broadcaster_id": {broadcasterID},
		"moderator_id":   {moderatorID},
	}

	body, err := c.do(ctx, http.MethodPatch, "/chat/settings", q, map[string]bool{
		setting: enabled,
	})
	if err != nil {
		return nil, err
	}

	return decodeChatSettings(body)
}

func decodeChatSettings(body []byte) (*ChatSettings, error) {
	var resp struct {
		Data []ChatSettings `json:"data"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshalling chat settings: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("chat settings response was empty")
	}

	return &resp.Data[0], nil
}

// SendChatMessage posts a message to the broadcaster's chat as the
// sender. The API can accept the request yet drop the message; that
// surfaces as an error here.
func (c *Client) SendChatMessage(ctx context.Context, broadcasterID, senderID, message string) error {
	body, err := c.do(ctx, http.MethodPost, "/chat/messages", nil, map[string]string{
		"broadcaster_id": broadcasterID,
		"sender_id":      senderID,
		"message":        message,
	})
	if err != nil {
		return err
	}

	sent := gjson.GetBytes(body, "data.0.is_sent")
	if sent.Exists() && !sent.Bool() {
		reason := gjson.GetBytes(body, "data.0.drop_reason.message").Str
		if reason == "" {
			reason = "message dropped"
		}

		return fmt.Errorf("chat message not delivered: %s", reason)
	}

	return nil
}

// adTime tolerates the API's inconsistent ad timestamps: RFC 3339
// strings, epoch seconds, or empty/zero for "none scheduled".
func adTime(v gjson.Result) time.Time {
	switch v.Type {
	case gjson.String:
		if v.Str == "" {
			return time.Time{}
		}

		ts, err := time.Parse(time.RFC3339, v.Str)
		if err != nil {
			return time.Time{}
		}

		return ts
	case gjson.Number:
		if v.Int() == 0 {
			return time.Time{}
		}

		return time.Unix(v.Int(), 0)
	default:
		return time.Time{}
	}
}

func decodeAdSchedule(body []byte) *AdSchedule {
	entry := gjson.GetBytes(body, "data.0")

	return &AdSchedule{
		NextAdAt:        adTime(entry.Get("next_ad_at")),
		LastAdAt:        adTime(entry.Get("last_ad_at")),
		DurationSeconds: int(entry.Get("duration").Int()),
		PrerollFree:     int(entry.Get("preroll_free_time").Int()),
		SnoozeCount:     int(entry.Get("snooze_count").Int()),
		SnoozeRefreshAt: adTime(entry.Get("snooze_refresh_at")),
	}
}

// GetAdSchedule returns the channel's upcoming ad break information.
func (c *Client) GetAdSchedule(ctx context.Context, broadcasterID string) (*AdSchedule, error) {
	q := url.Values{"broadcaster_id": {broadcasterID}}

	body, err := c.do(ctx, http.MethodGet, "/channels/ads", q, nil)
	if err != nil {
		return nil, err
	}

	return decodeAdSchedule(body), nil
}

// SnoozeNextAd pushes the next scheduled ad back and returns the
// updated schedule.
func (c *Client) SnoozeNextAd(ctx context.Context, broadcasterID string) (*AdSchedule, error) {
	q := url.Values{"broadcaster_id": {broadcasterID}}

	body, err := c.do(ctx, http.MethodPost, "/channels/ads/schedule/snooze", q, nil)
	if err != nil {
		return nil, err
	}

	return decodeAdSchedule(body), nil
}

// StartCommercial runs an ad of the given length (seconds) on the
// broadcaster's channel.
func (c *Client) StartCommercial(ctx context.Context, broadcasterID string, lengthSeconds int) error {
	_, err := c.do(ctx, http.MethodPost, "/channels/commercial", nil, map[string]interface{}{
		"broadcaster_id": broadcasterID,
		"length":         lengthSeconds,
	})

	return err
}

// GetUserByLogin resolves a login name to a user, or nil when no such
// user exists.
func (c *Client) GetUserByLogin(ctx context.Context, login string) (*User, error) {
	q := url.Values{"login": {login}}

	body, err := c.do(ctx, http.MethodGet, "/users", q, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []User `json:"data"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshalling users response: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, nil
	}

	return &resp.Data[0], nil
}

// SearchCategories returns categories matching the query.
func (c *Client) SearchCategories(ctx context.Context, query string) ([]Category, error) {
	q := url.Values{"query": {query}}

	body, err := c.do(ctx, http.MethodGet, "/search/categories", q, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []Category `json:"data"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshalling categories response: %w", err)
	}

	return resp.Data, nil
}

// UpdateChannelCategory points the broadcaster's channel at a new
// category (game).
func (c *Client) UpdateChannelCategory(ctx context.Context, broadcasterID, gameID string) error {
	q := url.Values{"broadcaster_id": {broadcasterID}}

	_, err := c.do(ctx, http.MethodPatch, "/channels", q, map[string]string{
		"game_id": gameID,
	})

	return err
}

// CreateEventSubSubscription registers a websocket-transport EventSub
// subscription on the given session.
func (c *Client) CreateEventSubSubscription(ctx context.Context, subType, version string, condition map[string]string, sessionID string) error {
	_, err := c.do(ctx, http.MethodPost, "/eventsub/subscriptions", nil, map[string]interface{}{
		"type":      subType,
		"version":   version,
		"condition": condition,
		"transport": map[string]string{
			"method":     "websocket",
			"session_id": sessionID,
		},
	})

	return err
}
