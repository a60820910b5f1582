package authflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/twitch"
)

// State enumerates the authentication state machine.
type State int

const (
	StateUnauthenticated State = iota
	StateAwaitingCode
	StateExchanging
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAwaitingCode:
		return "awaiting_code"
	case StateExchanging:
		return "exchanging"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Scopes requested during authorization.
var Scopes = []string{
	"user:write:chat",
	"channel:manage:broadcast",
	"moderator:manage:chat_settings",
	"clips:edit",
}

// ErrNotAuthenticated is returned by ValidateAuth when no session is
// established and silent renewal is not possible.
var ErrNotAuthenticated = errors.New("not authenticated")

const (
	validateURL = "https://id.twitch.tv/oauth2/validate"

	// exchangeTimeout bounds the code exchange and identity probe that
	// run off the listener's handler goroutine.
	exchangeTimeout = 30 * time.Second

	probeTimeout = 10 * time.Second
)

// Credentials is the persisted triple plus the secret it was issued
// against.
type Credentials struct {
	ClientID     string
	ClientSecret string
	AuthCode     string
}

// TokenCache persists tokens across restarts, keyed by client id and
// sealed with the client secret.
type TokenCache interface {
	Save(clientID, clientSecret string, tok *oauth2.Token) error
	Load(clientID, clientSecret string) (*oauth2.Token, error)
}

// AuthResultFunc receives the outcome of an authorization attempt.
type AuthResultFunc func(success bool, message string)

// CredentialsValidatedFunc is the persistence hook, fired once per
// successful exchange with the validated credential triple.
type CredentialsValidatedFunc func(clientID, clientSecret, authCode string)

// SessionConfig carries the dependencies for NewSession. Port is the
// local callback port; Store may be nil to disable token caching.
type SessionConfig struct {
	Port                   int
	Store                  TokenCache
	HTTPClient             *http.Client
	Logger                 *slog.Logger
	OnAuthResult           AuthResultFunc
	OnCredentialsValidated CredentialsValidatedFunc
}

// Session owns the authenticated client state and drives the
// authorization flow. All fields are guarded by mu; callbacks are
// invoked outside the lock.
type Session struct {
	mu       sync.Mutex
	state    State
	creds    Credentials
	token    *oauth2.Token
	userID   string
	login    string
	listener *Listener

	// attempt is bumped by every UpdateClientCredentials call so
	// results from a superseded listener are dropped.
	attempt int

	port   int
	store  TokenCache
	client *http.Client
	logger *slog.Logger

	onAuthResult           AuthResultFunc
	onCredentialsValidated CredentialsValidatedFunc

	// Overridable in tests.
	endpoint    oauth2.Endpoint
	validateURL string
	openURL     func(string) error
}

// NewSession creates an unauthenticated session.
func NewSession(cfg SessionConfig) *Session {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: probeTimeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		state:                  StateUnauthenticated,
		port:                   cfg.Port,
		store:                  cfg.Store,
		client:                 client,
		logger:                 logger,
		onAuthResult:           cfg.OnAuthResult,
		onCredentialsValidated: cfg.OnCredentialsValidated,
		endpoint:               twitch.Endpoint,
		validateURL:            validateURL,
		openURL:                openBrowser,
	}
}

// oauthConfig builds the oauth2 config for the current credentials.
// Caller holds mu.
func (s *Session) oauthConfig(port int) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.creds.ClientID,
		ClientSecret: s.creds.ClientSecret,
		Endpoint:     s.endpoint,
		RedirectURL:  fmt.Sprintf("http://localhost:%d%s", port, CallbackPath),
		Scopes:       Scopes,
	}
}

// httpCtx injects the session's HTTP client into ctx so the oauth2
// package routes exchanges through it.
func (s *Session) httpCtx(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.client)
}

// UpdateClientCredentials stores the client id/secret and starts a
// fresh authorization attempt: any previous listener is stopped, the
// callback listener is bound, and the provider consent page is opened
// in the default browser. Empty credentials are a no-op rather than a
// hard failure. The outcome is reported through OnAuthResult.
func (s *Session) UpdateClientCredentials(ctx context.Context, clientID, clientSecret string) {
	if clientID == "" || clientSecret == "" {
		s.logger.Warn("ignoring auth attempt with empty client credentials")
		return
	}

	s.mu.Lock()

	if s.listener != nil {
		s.listener.Stop()
		s.listener = nil
	}

	s.attempt++
	attempt := s.attempt
	s.creds = Credentials{ClientID: clientID, ClientSecret: clientSecret}
	s.token = nil
	s.userID = ""
	s.login = ""
	s.state = StateUnauthenticated
	s.mu.Unlock()

	listener, err := StartListener(s.port, func(res CallbackResult) {
		s.completeAuthorization(attempt, res)
	}, s.logger)
	if err != nil {
		s.fail(attempt, fmt.Sprintf("starting callback listener: %v", err))
		return
	}

	s.mu.Lock()
	if attempt != s.attempt {
		s.mu.Unlock()
		listener.Stop()

		return
	}

	s.listener = listener
	consentURL := s.oauthConfig(listener.Port()).AuthCodeURL("")
	s.state = StateAwaitingCode
	s.mu.Unlock()

	// Probe the consent URL before involving the browser so a rejected
	// client id fails fast instead of stranding the user on a provider
	// error page.
	if err := s.preflightConsent(ctx, consentURL); err != nil {
		listener.Stop()
		s.fail(attempt, err.Error())

		return
	}

	if err := s.openURL(consentURL); err != nil {
		s.logger.Warn("could not open browser, visit the consent URL manually",
			slog.String("url", consentURL),
			slog.String("error", err.Error()),
		)
	}
}

// preflightConsent issues a GET against the authorize endpoint. The
// provider answers 4xx when the client id itself is rejected; any
// other response means the consent page would render.
func (s *Session) preflightConsent(ctx context.Context, consentURL string) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, consentURL, nil)
	if err != nil {
		return fmt.Errorf("building consent probe: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("probing consent URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		msg := gjson.GetBytes(body, "message").Str
		if msg == "" {
			msg = resp.Status
		}

		return fmt.Errorf("provider rejected client id: %s", msg)
	}

	return nil
}

// completeAuthorization runs on the listener's handler goroutine once
// the redirect arrives: it exchanges the code, resolves the user
// identity, persists the token, and fires both collaborator hooks.
func (s *Session) completeAuthorization(attempt int, res CallbackResult) {
	if !res.OK() {
		s.fail(attempt, res.ErrMsg)
		return
	}

	s.mu.Lock()
	if attempt != s.attempt {
		s.mu.Unlock()
		return
	}

	// The redirect can arrive before UpdateClientCredentials has
	// recorded the listener, so the port comes from the result rather
	// than s.listener.
	s.state = StateExchanging
	cfg := s.oauthConfig(res.Port)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), exchangeTimeout)
	defer cancel()

	token, err := cfg.Exchange(s.httpCtx(ctx), res.Code)
	if err != nil {
		s.fail(attempt, fmt.Sprintf("exchanging authorization code: %v", err))
		return
	}

	userID, login, err := s.probeIdentity(ctx, token.AccessToken)
	if err != nil {
		s.fail(attempt, fmt.Sprintf("resolving identity: %v", err))
		return
	}

	s.mu.Lock()
	if attempt != s.attempt {
		s.mu.Unlock()
		return
	}

	s.creds.AuthCode = res.Code
	s.token = token
	s.userID = userID
	s.login = login
	s.state = StateAuthenticated
	s.listener = nil
	creds := s.creds
	s.mu.Unlock()

	s.persistToken(creds, token)

	if s.onCredentialsValidated != nil {
		s.onCredentialsValidated(creds.ClientID, creds.ClientSecret, creds.AuthCode)
	}

	s.notifyResult(true, "authentication succeeded")
	s.logger.Info("authenticated", slog.String("user_id", userID), slog.String("login", login))
}

// fail moves the attempt to Failed and reports the message, unless the
// attempt was superseded in the meantime.
func (s *Session) fail(attempt int, message string) {
	s.mu.Lock()
	if attempt != s.attempt {
		s.mu.Unlock()
		return
	}

	s.state = StateFailed
	s.token = nil
	s.userID = ""
	s.login = ""
	s.listener = nil
	s.mu.Unlock()

	s.logger.Warn("authentication failed", slog.String("reason", message))
	s.notifyResult(false, message)
}

func (s *Session) notifyResult(success bool, message string) {
	if s.onAuthResult != nil {
		s.onAuthResult(success, message)
	}
}

func (s *Session) persistToken(creds Credentials, token *oauth2.Token) {
	s.mu.Lock()
	store := s.store
	s.mu.Unlock()

	if store == nil {
		return
	}

	if err := store.Save(creds.ClientID, creds.ClientSecret, token); err != nil {
		s.logger.Warn("persisting token failed", slog.String("error", err.Error()))
	}
}

// probeIdentity validates the access token against the provider and
// returns the token owner's user id and login. This is the cheap
// side-effect-free probe ValidateAuth runs before privileged calls.
func (s *Session) probeIdentity(ctx context.Context, accessToken string) (userID, login string, err error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.validateURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("building validate request: %w", err)
	}

	// The validate endpoint wants the legacy OAuth scheme.
	req.Header.Set("Authorization", "OAuth "+accessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("validating token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", "", fmt.Errorf("reading validate response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "message").Str
		if msg == "" {
			msg = resp.Status
		}

		return "", "", fmt.Errorf("token validation failed: %s", msg)
	}

	userID = gjson.GetBytes(body, "user_id").Str
	if userID == "" {
		return "", "", errors.New("validate response carried no user_id")
	}

	return userID, gjson.GetBytes(body, "login").Str, nil
}

// Restore primes the session from the token cache without a browser
// round trip. Used at startup when credentials are already known. The
// restored token is probed; an expired access token is refreshed once.
// Does nothing when no cached token exists.
func (s *Session) Restore(ctx context.Context, clientID, clientSecret string) {
	s.mu.Lock()
	store := s.store
	s.mu.Unlock()

	if store == nil || clientID == "" || clientSecret == "" {
		return
	}

	token, err := store.Load(clientID, clientSecret)
	if err != nil {
		s.logger.Debug("no cached token to restore", slog.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	s.attempt++
	attempt := s.attempt
	s.creds = Credentials{ClientID: clientID, ClientSecret: clientSecret}
	s.token = token
	s.state = StateExchanging
	s.mu.Unlock()

	userID, login, err := s.probeIdentity(ctx, token.AccessToken)
	if err == nil {
		s.mu.Lock()
		current := attempt == s.attempt
		if current {
			s.userID = userID
			s.login = login
			s.state = StateAuthenticated
		}
		s.mu.Unlock()

		// A concurrent authorization attempt owns the session now; its
		// observer gets that attempt's result, not this one's.
		if current {
			s.notifyResult(true, "session restored")
		}

		return
	}

	if err := s.refresh(ctx); err != nil {
		s.fail(attempt, fmt.Sprintf("restoring session: %v", err))
	} else {
		s.notifyResult(true, "session restored")
	}
}

// ValidateAuth probes the provider before a privileged call. On probe
// failure it attempts one silent renewal with the refresh token; if
// that also fails the session settles in Failed and the caller must
// surface an error rather than proceed.
func (s *Session) ValidateAuth(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateAuthenticated || s.token == nil {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}

	accessToken := s.token.AccessToken
	s.mu.Unlock()

	userID, login, err := s.probeIdentity(ctx, accessToken)
	if err == nil {
		s.mu.Lock()
		s.userID = userID
		s.login = login
		s.mu.Unlock()

		return nil
	}

	s.logger.Debug("session stale, attempting silent renewal", slog.String("error", err.Error()))

	return s.refresh(ctx)
}

// refresh redeems the refresh token for a fresh access token. The
// legacy flow resubmitted the consumed authorization code here, which
// providers reject; the refresh grant is the renewal that works.
func (s *Session) refresh(ctx context.Context) error {
	s.mu.Lock()
	attempt := s.attempt

	if s.token == nil || s.token.RefreshToken == "" {
		s.state = StateFailed
		s.userID = ""
		s.login = ""
		s.mu.Unlock()

		return fmt.Errorf("%w: no refresh token", ErrNotAuthenticated)
	}

	s.state = StateExchanging
	s.userID = ""
	s.login = ""
	cfg := s.oauthConfig(s.port)
	stale := &oauth2.Token{RefreshToken: s.token.RefreshToken}
	creds := s.creds
	s.mu.Unlock()

	token, err := cfg.TokenSource(s.httpCtx(ctx), stale).Token()
	if err == nil {
		var userID, login string

		userID, login, err = s.probeIdentity(ctx, token.AccessToken)
		if err == nil {
			s.mu.Lock()
			if attempt != s.attempt {
				s.mu.Unlock()
				return ErrNotAuthenticated
			}

			s.token = token
			s.userID = userID
			s.login = login
			s.state = StateAuthenticated
			s.mu.Unlock()

			s.persistToken(creds, token)

			return nil
		}
	}

	s.mu.Lock()
	if attempt == s.attempt {
		s.state = StateFailed
		s.token = nil
	}
	s.mu.Unlock()

	return fmt.Errorf("renewing session: %w", err)
}

// IsAuthed reports whether the session is currently authenticated.
func (s *Session) IsAuthed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state == StateAuthenticated
}

// State returns the current machine state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// UserID returns the authenticated user's id, or "" when not
// authenticated.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.userID
}

// UserLogin returns the authenticated user's login name, or "".
func (s *Session) UserLogin() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.login
}

// AccessToken returns the current bearer token, or "".
func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == nil {
		return ""
	}

	return s.token.AccessToken
}

// ClientID returns the configured client id.
func (s *Session) ClientID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.creds.ClientID
}

// SetTokenStore swaps the token cache. Subsequent exchanges persist
// through the new store.
func (s *Session) SetTokenStore(store TokenCache) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store = store
}

// Close stops any live listener and releases its port. The session
// itself remains usable; a later UpdateClientCredentials starts over.
func (s *Session) Close() {
	s.mu.Lock()
	listener := s.listener
	s.listener = nil
	s.attempt++
	s.mu.Unlock()

	if listener != nil {
		listener.Stop()
	}
}
