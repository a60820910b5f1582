// Package gateway is the facade every collaborator calls through. It
// composes the auth session, the Helix client, and the shared rate
// limiter, and exposes one operation per user-facing action. Privileged
// operations follow a single template: neutral result when no session
// exists, then an auth probe with silent renewal, then the rate-limited
// remote call.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/imdevinc/twitch-bridge/internal/authflow"
	"github.com/imdevinc/twitch-bridge/internal/helix"
	"github.com/imdevinc/twitch-bridge/internal/ratelimit"
	"github.com/imdevinc/twitch-bridge/internal/tokenstore"
)

// ChatMode names a toggleable chat restriction.
type ChatMode string

const (
	ChatModeFollower   ChatMode = "follower_mode"
	ChatModeSubscriber ChatMode = "subscriber_mode"
	ChatModeEmote      ChatMode = "emote_mode"
	ChatModeSlow       ChatMode = "slow_mode"
)

// Valid reports whether m names a known chat mode.
func (m ChatMode) Valid() bool {
	switch m {
	case ChatModeFollower, ChatModeSubscriber, ChatModeEmote, ChatModeSlow:
		return true
	}

	return false
}

// NoAdScheduled is returned by NextAdSchedule when no session exists or
// the schedule cannot be read. It is clearly in the past so pollers can
// render an "unknown" state uniformly.
var NoAdScheduled = time.Unix(0, 0)

// API is the slice of the Helix client the gateway depends on.
type API interface {
	CreateClip(ctx context.Context, broadcasterID string) (string, error)
	CreateMarker(ctx context.Context, userID string) error
	GetStream(ctx context.Context, userID string) (*helix.Stream, error)
	GetChatSettings(ctx context.Context, broadcasterID, moderatorID string) (*helix.ChatSettings, error)
	UpdateChatSetting(ctx context.Context, broadcasterID, moderatorID, setting string, enabled bool) (*helix.ChatSettings, error)
	SendChatMessage(ctx context.Context, broadcasterID, senderID, message string) error
	GetAdSchedule(ctx context.Context, broadcasterID string) (*helix.AdSchedule, error)
	SnoozeNextAd(ctx context.Context, broadcasterID string) (*helix.AdSchedule, error)
	StartCommercial(ctx context.Context, broadcasterID string, lengthSeconds int) error
	GetUserByLogin(ctx context.Context, login string) (*helix.User, error)
	SearchCategories(ctx context.Context, query string) ([]helix.Category, error)
	UpdateChannelCategory(ctx context.Context, broadcasterID, gameID string) error
}

// Session is the slice of the auth session the gateway depends on.
type Session interface {
	UpdateClientCredentials(ctx context.Context, clientID, clientSecret string)
	ValidateAuth(ctx context.Context) error
	IsAuthed() bool
	UserID() string
	UserLogin() string
	SetTokenStore(store authflow.TokenCache)
}

// Gateway is safe for concurrent use by independent pollers.
type Gateway struct {
	session Session
	api     API
	limiter *ratelimit.Limiter
	logger  *slog.Logger

	mu        sync.Mutex
	channelID map[string]string
	tokens    *tokenstore.Store
}

// New creates a gateway over the given session and API client.
func New(session Session, api API, limiter *ratelimit.Limiter, logger *slog.Logger) *Gateway {
	return &Gateway{
		session:   session,
		api:       api,
		limiter:   limiter,
		logger:    logger,
		channelID: make(map[string]string),
	}
}

// Close releases the token store, if one was opened via SetTokenPath.
func (g *Gateway) Close() error {
	g.mu.Lock()
	store := g.tokens
	g.tokens = nil
	g.mu.Unlock()

	if store == nil {
		return nil
	}

	return store.Close()
}

// IsAuthed reports whether the session is currently authenticated.
func (g *Gateway) IsAuthed() bool {
	return g.session.IsAuthed()
}

// UpdateClientCredentials starts (or restarts) the authorization flow.
func (g *Gateway) UpdateClientCredentials(ctx context.Context, clientID, clientSecret string) {
	g.session.UpdateClientCredentials(ctx, clientID, clientSecret)
}

// SetTokenPath opens (creating if needed) the token database at path
// and attaches it to the session. A previously attached store is
// closed.
func (g *Gateway) SetTokenPath(path string) error {
	store, err := tokenstore.Open(path)
	if err != nil {
		return fmt.Errorf("opening token store: %w", err)
	}

	g.mu.Lock()
	old := g.tokens
	g.tokens = store
	g.mu.Unlock()

	g.session.SetTokenStore(store)

	if old != nil {
		if err := old.Close(); err != nil {
			g.logger.Warn("Failed to close previous token store", "error", err)
		}
	}

	return nil
}

// acquire is the shared preamble of every privileged operation. It
// returns false (with a nil error) when no session exists so the
// operation yields its neutral result, probes and silently renews the
// session otherwise, then waits for a rate limiter slot.
func (g *Gateway) acquire(ctx context.Context) (bool, error) {
	if g.session.UserID() == "" {
		return false, nil
	}

	if err := g.session.ValidateAuth(ctx); err != nil {
		return false, fmt.Errorf("validating session: %w", err)
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return false, err
	}

	return true, nil
}

// CreateClip clips the last moments of the user's live stream and
// returns the clip id, or "" when no session exists.
func (g *Gateway) CreateClip(ctx context.Context) (string, error) {
	ok, err := g.acquire(ctx)
	if !ok {
		return "", err
	}

	return g.api.CreateClip(ctx, g.session.UserID())
}

// CreateMarker places a stream marker at the current position of the
// user's live stream.
func (g *Gateway) CreateMarker(ctx context.Context) error {
	ok, err := g.acquire(ctx)
	if !ok {
		return err
	}

	return g.api.CreateMarker(ctx, g.session.UserID())
}

// ViewerCount returns the current viewer count and whether the stream
// is live. Offline (or no session) reports 0 and false without error.
func (g *Gateway) ViewerCount(ctx context.Context) (int, bool, error) {
	ok, err := g.acquire(ctx)
	if !ok {
		return 0, false, err
	}

	stream, err := g.api.GetStream(ctx, g.session.UserID())
	if err != nil {
		return 0, false, err
	}

	if stream == nil {
		return 0, false, nil
	}

	return stream.ViewerCount, true, nil
}

// ChatSettings returns the user's current chat settings, or nil when
// no session exists.
func (g *Gateway) ChatSettings(ctx context.Context) (*helix.ChatSettings, error) {
	ok, err := g.acquire(ctx)
	if !ok {
		return nil, err
	}

	userID := g.session.UserID()

	return g.api.GetChatSettings(ctx, userID, userID)
}

// ToggleChatMode flips the given chat mode and returns its new state.
// With no session it reports false without error.
func (g *Gateway) ToggleChatMode(ctx context.Context, mode ChatMode) (bool, error) {
	if !mode.Valid() {
		return false, fmt.Errorf("unknown chat mode %q", mode)
	}

	ok, err := g.acquire(ctx)
	if !ok {
		return false, err
	}

	userID := g.session.UserID()

	settings, err := g.api.GetChatSettings(ctx, userID, userID)
	if err != nil {
		return false, err
	}

	target := !modeEnabled(settings, mode)

	// The update is a second remote call and takes its own slot.
	if err := g.limiter.Wait(ctx); err != nil {
		return false, err
	}

	updated, err := g.api.UpdateChatSetting(ctx, userID, userID, string(mode), target)
	if err != nil {
		return false, err
	}

	return modeEnabled(updated, mode), nil
}

func modeEnabled(settings *helix.ChatSettings, mode ChatMode) bool {
	switch mode {
	case ChatModeFollower:
		return settings.FollowerMode
	case ChatModeSubscriber:
		return settings.SubscriberMode
	case ChatModeEmote:
		return settings.EmoteMode
	case ChatModeSlow:
		return settings.SlowMode
	}

	return false
}

// SendMessage posts text to the named channel's chat as the
// authenticated user. An empty or unresolvable channel name falls back
// to the user's own channel.
func (g *Gateway) SendMessage(ctx context.Context, text, channelName string) error {
	ok, err := g.acquire(ctx)
	if !ok {
		return err
	}

	broadcasterID := g.session.UserID()

	if channelName != "" && channelName != g.session.UserLogin() {
		id, err := g.ResolveChannelID(ctx, channelName)

		switch {
		case err != nil:
			// Resolution trouble degrades to the user's own chat
			// rather than dropping the message.
			g.logger.Warn("Channel lookup failed, sending to own chat",
				"channel", channelName,
				"error", err.Error(),
			)
		case id != "":
			broadcasterID = id
		default:
			g.logger.Warn("Unknown channel, sending to own chat", "channel", channelName)
		}
	}

	return g.api.SendChatMessage(ctx, broadcasterID, g.session.UserID(), text)
}

// ResolveChannelID maps a channel (login) name to its user id, or ""
// when the name does not exist. Results are cached for the lifetime of
// the gateway; channel ids are stable so entries never expire.
func (g *Gateway) ResolveChannelID(ctx context.Context, name string) (string, error) {
	g.mu.Lock()
	id, cached := g.channelID[name]
	g.mu.Unlock()

	if cached {
		return id, nil
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	user, err := g.api.GetUserByLogin(ctx, name)
	if err != nil {
		return "", err
	}

	if user == nil {
		return "", nil
	}

	g.mu.Lock()
	g.channelID[name] = user.ID
	g.mu.Unlock()

	return user.ID, nil
}

// SnoozeNextAd pushes the next scheduled ad break back.
func (g *Gateway) SnoozeNextAd(ctx context.Context) error {
	ok, err := g.acquire(ctx)
	if !ok {
		return err
	}

	_, err = g.api.SnoozeNextAd(ctx, g.session.UserID())

	return err
}

// PlayAd starts a commercial of the given length in seconds.
func (g *Gateway) PlayAd(ctx context.Context, durationSeconds int) error {
	ok, err := g.acquire(ctx)
	if !ok {
		return err
	}

	return g.api.StartCommercial(ctx, g.session.UserID(), durationSeconds)
}

// NextAdSchedule returns the next scheduled ad time and the snoozes
// remaining. With no session, or when the schedule cannot be read, it
// returns the NoAdScheduled sentinel and -1 so pollers can render an
// unknown state instead of failing.
func (g *Gateway) NextAdSchedule(ctx context.Context) (time.Time, int, error) {
	ok, err := g.acquire(ctx)
	if !ok {
		return NoAdScheduled, -1, err
	}

	sched, err := g.api.GetAdSchedule(ctx, g.session.UserID())
	if err != nil {
		return NoAdScheduled, -1, err
	}

	next := sched.NextAdAt
	if next.IsZero() {
		next = NoAdScheduled
	}

	return next, sched.SnoozeCount, nil
}

// SearchCategories returns stream categories matching the query, for
// pickers. With no session it returns nil without error.
func (g *Gateway) SearchCategories(ctx context.Context, query string) ([]helix.Category, error) {
	ok, err := g.acquire(ctx)
	if !ok {
		return nil, err
	}

	return g.api.SearchCategories(ctx, query)
}

// ChangeCategory switches the user's channel to the given category.
func (g *Gateway) ChangeCategory(ctx context.Context, categoryID string) error {
	ok, err := g.acquire(ctx)
	if !ok {
		return err
	}

	return g.api.UpdateChannelCategory(ctx, g.session.UserID(), categoryID)
}
