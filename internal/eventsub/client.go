// Package eventsub maintains a websocket subscription feed from
// Twitch EventSub, delivering notifications (stream online/offline,
// ad breaks) without polling.
package eventsub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/tidwall/gjson"
)

const defaultURL = "wss://eventsub.wss.twitch.tv/ws"

const (
	reconnectMin = 1 * time.Second
	reconnectMax = 60 * time.Second

	// keepaliveGrace pads the server-announced keepalive interval
	// before a silent connection is declared dead.
	keepaliveGrace = 5 * time.Second
)

// WelcomeFunc runs once per established session, after the server has
// assigned a session id. Subscriptions are registered here; they do
// not survive reconnects.
type WelcomeFunc func(ctx context.Context, sessionID string) error

// NotificationFunc receives one EventSub notification. event is the
// raw payload.event object.
type NotificationFunc func(subType string, event gjson.Result)

// Config holds the parameters for an EventSub connection.
type Config struct {
	// URL overrides the production EventSub endpoint. Empty means the
	// default.
	URL            string
	OnWelcome      WelcomeFunc
	OnNotification NotificationFunc
	Logger         *slog.Logger
}

// Client owns one EventSub websocket at a time and redials when the
// server drops it or asks for a reconnect.
type Client struct {
	url            string
	onWelcome      WelcomeFunc
	onNotification NotificationFunc
	logger         *slog.Logger
}

func New(cfg Config) *Client {
	url := cfg.URL
	if url == "" {
		url = defaultURL
	}

	return &Client{
		url:            url,
		onWelcome:      cfg.OnWelcome,
		onNotification: cfg.OnNotification,
		logger:         cfg.Logger,
	}
}

// Run connects and processes messages until ctx is cancelled,
// redialling with exponential backoff on connection loss. Server
// initiated reconnects reset the backoff and move to the URL the
// server named.
func (c *Client) Run(ctx context.Context) error {
	url := c.url
	backoff := reconnectMin

	for {
		nextURL, err := c.runConn(ctx, url)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if nextURL != "" {
			url = nextURL
			backoff = reconnectMin

			continue
		}

		c.logger.Warn("EventSub connection lost, reconnecting",
			slog.Duration("backoff", backoff),
			slog.String("error", fmt.Sprint(err)),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}

		// A fresh dial after a failure goes back to the configured
		// endpoint, not a stale reconnect URL.
		url = c.url
	}
}

// runConn handles one websocket connection. It returns a non-empty
// URL when the server requested a reconnect, otherwise the error that
// ended the connection.
func (c *Client) runConn(ctx context.Context, url string) (string, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return "", fmt.Errorf("dialing eventsub: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// Until the welcome arrives the server promises nothing; give it a
	// fixed window.
	readTimeout := 30 * time.Second

	for {
		readCtx, cancel := context.WithTimeout(ctx, readTimeout)
		_, data, err := conn.Read(readCtx)
		cancel()

		if err != nil {
			return "", fmt.Errorf("reading eventsub message: %w", err)
		}

		msgType := gjson.GetBytes(data, "metadata.message_type").Str

		switch msgType {
		case "session_welcome":
			session := gjson.GetBytes(data, "payload.session")
			sessionID := session.Get("id").Str

			if keepalive := session.Get("keepalive_timeout_seconds").Int(); keepalive > 0 {
				readTimeout = time.Duration(keepalive)*time.Second + keepaliveGrace
			}

			c.logger.Info("EventSub session established",
				slog.String("session_id", sessionID),
			)

			if c.onWelcome != nil {
				if err := c.onWelcome(ctx, sessionID); err != nil {
					return "", fmt.Errorf("registering subscriptions: %w", err)
				}
			}

		case "session_keepalive":
			// Nothing to do; the read deadline was already refreshed.

		case "notification":
			subType := gjson.GetBytes(data, "payload.subscription.type").Str
			event := gjson.GetBytes(data, "payload.event")

			c.logger.Debug("EventSub notification", slog.String("type", subType))

			if c.onNotification != nil {
				c.onNotification(subType, event)
			}

		case "session_reconnect":
			reconnectURL := gjson.GetBytes(data, "payload.session.reconnect_url").Str
			if reconnectURL == "" {
				return "", errors.New("reconnect request without a url")
			}

			c.logger.Info("EventSub server requested reconnect")

			return reconnectURL, nil

		case "revocation":
			c.logger.Warn("EventSub subscription revoked",
				slog.String("type", gjson.GetBytes(data, "payload.subscription.type").Str),
				slog.String("status", gjson.GetBytes(data, "payload.subscription.status").Str),
			)

		default:
			c.logger.Debug("Ignoring unknown EventSub message",
				slog.String("type", msgType),
			)
		}
	}
}
