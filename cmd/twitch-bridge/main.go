// twitch-bridge authenticates against Twitch with the OAuth2
// authorization-code grant and exposes the channel's controls (clips,
// markers, chat, ads, category) through a rate-limited gateway. It
// runs as a daemon: credentials come from a watched YAML file, tokens
// persist across restarts, and pollers keep viewer count, chat modes,
// and the ad schedule fresh.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/imdevinc/twitch-bridge/internal/authflow"
	"github.com/imdevinc/twitch-bridge/internal/config"
	"github.com/imdevinc/twitch-bridge/internal/eventsub"
	"github.com/imdevinc/twitch-bridge/internal/gateway"
	"github.com/imdevinc/twitch-bridge/internal/helix"
	"github.com/imdevinc/twitch-bridge/internal/logging"
	"github.com/imdevinc/twitch-bridge/internal/ratelimit"
)

var Version = "dev"

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment, cfg.LogLevel)
	logger.Info("twitch-bridge starting",
		slog.String("version", Version),
		slog.Int("callback_port", cfg.CallbackPort),
		slog.Bool("eventsub", cfg.EnableEventSub),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	filter := &selfWriteFilter{}

	session := authflow.NewSession(authflow.SessionConfig{
		Port:   cfg.CallbackPort,
		Logger: logger,
		OnAuthResult: func(success bool, message string) {
			if success {
				logger.Info("Authentication succeeded")
				return
			}
			logger.Error("Authentication failed", slog.String("reason", message))
		},
		OnCredentialsValidated: func(clientID, clientSecret, authCode string) {
			validated := credentials{
				ClientID:          clientID,
				ClientSecret:      clientSecret,
				AuthorizationCode: authCode,
			}
			filter.markSaved(validated)

			if err := saveCredentials(cfg.CredentialsFile, validated); err != nil {
				logger.Warn("Failed to persist validated credentials",
					slog.String("error", err.Error()),
				)
			}
		},
	})
	defer session.Close()

	api := helix.NewClient(session, nil)
	limiter := ratelimit.New(cfg.RateLimitCalls, cfg.RateLimitWindow)
	gw := gateway.New(session, api, limiter, logger)
	defer gw.Close()

	if err := gw.SetTokenPath(cfg.TokenPath); err != nil {
		return fmt.Errorf("attaching token store: %w", err)
	}

	creds, err := loadCredentials(cfg.CredentialsFile)
	switch {
	case err == nil:
		// A cached token avoids the browser entirely; fall back to the
		// full consent flow only when nothing restorable is on disk.
		session.Restore(ctx, creds.ClientID, creds.ClientSecret)
		if !session.IsAuthed() {
			gw.UpdateClientCredentials(ctx, creds.ClientID, creds.ClientSecret)
		}
	case os.IsNotExist(err):
		logger.Info("No credentials file yet, waiting for one",
			slog.String("path", cfg.CredentialsFile),
		)
	default:
		return fmt.Errorf("loading credentials: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return watchCredentials(gctx, cfg.CredentialsFile, logger, func(creds credentials) {
			if filter.isSelfWrite(creds) {
				logger.Debug("Skipping credentials rewrite from the persistence hook")
				return
			}

			gw.UpdateClientCredentials(gctx, creds.ClientID, creds.ClientSecret)
		})
	})

	g.Go(func() error { return pollViewers(gctx, gw, cfg.ViewerInterval, logger) })
	g.Go(func() error { return pollChatModes(gctx, gw, cfg.ChatModeInterval, logger) })
	g.Go(func() error { return pollAdSchedule(gctx, gw, cfg.AdScheduleInterval, logger) })

	if cfg.EnableEventSub {
		g.Go(func() error { return runEventSub(gctx, session, api, logger) })
	}

	return g.Wait()
}

// pollViewers logs the live viewer count on a fixed interval, the same
// cadence a display tile would refresh at.
func pollViewers(ctx context.Context, gw *gateway.Gateway, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if !gw.IsAuthed() {
			continue
		}

		count, live, err := gw.ViewerCount(ctx)
		if err != nil {
			logger.Warn("Viewer count refresh failed", slog.String("error", err.Error()))
			continue
		}

		if live {
			logger.Info("Stream live", slog.Int("viewers", count))
		} else {
			logger.Debug("Stream offline")
		}
	}
}

func pollChatModes(ctx context.Context, gw *gateway.Gateway, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if !gw.IsAuthed() {
			continue
		}

		settings, err := gw.ChatSettings(ctx)
		if err != nil {
			logger.Warn("Chat settings refresh failed", slog.String("error", err.Error()))
			continue
		}

		logger.Debug("Chat modes",
			slog.Bool("follower", settings.FollowerMode),
			slog.Bool("subscriber", settings.SubscriberMode),
			slog.Bool("emote", settings.EmoteMode),
			slog.Bool("slow", settings.SlowMode),
		)
	}
}

func pollAdSchedule(ctx context.Context, gw *gateway.Gateway, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if !gw.IsAuthed() {
			continue
		}

		next, snoozes, err := gw.NextAdSchedule(ctx)
		if err != nil {
			logger.Warn("Ad schedule refresh failed", slog.String("error", err.Error()))
			continue
		}

		if next.After(time.Now()) {
			logger.Info("Next ad break",
				slog.Time("at", next),
				slog.Int("snoozes_remaining", snoozes),
			)
		}
	}
}

// runEventSub keeps a websocket notification feed open so stream
// online/offline and ad-break events arrive without burning rate
// limiter slots on polling.
func runEventSub(ctx context.Context, session *authflow.Session, api *helix.Client, logger *slog.Logger) error {
	client := eventsub.New(eventsub.Config{
		Logger: logger,
		OnWelcome: func(ctx context.Context, sessionID string) error {
			userID := session.UserID()
			if userID == "" {
				return errors.New("eventsub requires an authenticated session")
			}

			condition := map[string]string{"broadcaster_user_id": userID}

			for _, subType := range []string{"stream.online", "stream.offline", "channel.ad_break.begin"} {
				if err := api.CreateEventSubSubscription(ctx, subType, "1", condition, sessionID); err != nil {
					return fmt.Errorf("subscribing to %s: %w", subType, err)
				}
			}

			return nil
		},
		OnNotification: func(subType string, event gjson.Result) {
			switch subType {
			case "stream.online":
				logger.Info("Stream went live",
					slog.String("broadcaster", event.Get("broadcaster_user_login").Str),
				)
			case "stream.offline":
				logger.Info("Stream ended",
					slog.String("broadcaster", event.Get("broadcaster_user_login").Str),
				)
			case "channel.ad_break.begin":
				logger.Info("Ad break started",
					slog.Int64("duration_seconds", event.Get("duration_seconds").Int()),
				)
			default:
				logger.Debug("EventSub notification", slog.String("type", subType))
			}
		},
	})

	return client.Run(ctx)
}
