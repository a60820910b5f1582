package gateway

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/imdevinc/twitch-bridge/internal/authflow"
	"github.com/imdevinc/twitch-bridge/internal/helix"
	"github.com/imdevinc/twitch-bridge/internal/ratelimit"
)

type fakeSession struct {
	userID        string
	login         string
	authed        bool
	validateErr   error
	validateCalls int
	credentials   []string
	store         authflow.TokenCache
}

func (s *fakeSession) UpdateClientCredentials(_ context.Context, clientID, clientSecret string) {
	s.credentials = append(s.credentials, clientID+"/"+clientSecret)
}

func (s *fakeSession) ValidateAuth(context.Context) error {
	s.validateCalls++
	return s.validateErr
}

func (s *fakeSession) IsAuthed() bool                          { return s.authed }
func (s *fakeSession) UserID() string                          { return s.userID }
func (s *fakeSession) UserLogin() string                       { return s.login }
func (s *fakeSession) SetTokenStore(store authflow.TokenCache) { s.store = store }

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// newTestGateway returns a gateway with an authenticated session and a
// limiter generous enough that tests never block on it.
func newTestGateway(t *testing.T) (*Gateway, *fakeSession, *MockAPI) {
	t.Helper()

	ctrl := gomock.NewController(t)
	api := NewMockAPI(ctrl)
	session := &fakeSession{userID: "42", login: "streamer", authed: true}
	gw := New(session, api, ratelimit.New(1000, time.Minute), testLogger())

	return gw, session, api
}

func TestPrivilegedOps_NeutralWithoutSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := NewMockAPI(ctrl) // no expectations: nothing may reach the API
	gw := New(&fakeSession{}, api, ratelimit.New(1000, time.Minute), testLogger())

	ctx := context.Background()

	clipID, err := gw.CreateClip(ctx)
	require.NoError(t, err)
	assert.Empty(t, clipID)

	require.NoError(t, gw.CreateMarker(ctx))

	count, live, err := gw.ViewerCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.False(t, live)

	settings, err := gw.ChatSettings(ctx)
	require.NoError(t, err)
	assert.Nil(t, settings)

	enabled, err := gw.ToggleChatMode(ctx, ChatModeSlow)
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, gw.SendMessage(ctx, "hello", ""))
	require.NoError(t, gw.SnoozeNextAd(ctx))
	require.NoError(t, gw.PlayAd(ctx, 30))

	next, snoozes, err := gw.NextAdSchedule(ctx)
	require.NoError(t, err)
	assert.True(t, next.Equal(NoAdScheduled))
	assert.Equal(t, -1, snoozes)
}

func TestPrivilegedOps_SurfaceValidationFailure(t *testing.T) {
	gw, session, _ := newTestGateway(t)
	session.validateErr = errors.New("token rejected")

	_, err := gw.CreateClip(context.Background())
	assert.ErrorContains(t, err, "token rejected")
}

func TestCreateClip(t *testing.T) {
	gw, session, api := newTestGateway(t)

	api.EXPECT().CreateClip(gomock.Any(), "42").Return("clip-1", nil)

	clipID, err := gw.CreateClip(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "clip-1", clipID)
	assert.Equal(t, 1, session.validateCalls)
}

func TestCreateMarker(t *testing.T) {
	gw, _, api := newTestGateway(t)

	api.EXPECT().CreateMarker(gomock.Any(), "42").Return(nil)

	require.NoError(t, gw.CreateMarker(context.Background()))
}

func TestViewerCount_Live(t *testing.T) {
	gw, _, api := newTestGateway(t)

	api.EXPECT().GetStream(gomock.Any(), "42").Return(&helix.Stream{ViewerCount: 250}, nil)

	count, live, err := gw.ViewerCount(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 250, count)
	assert.True(t, live)
}

func TestViewerCount_Offline(t *testing.T) {
	gw, _, api := newTestGateway(t)

	api.EXPECT().GetStream(gomock.Any(), "42").Return(nil, nil)

	count, live, err := gw.ViewerCount(context.Background())
	require.NoError(t, err)

	assert.Zero(t, count)
	assert.False(t, live)
}

func TestToggleChatMode_FlipsCurrentState(t *testing.T) {
	gw, _, api := newTestGateway(t)

	api.EXPECT().GetChatSettings(gomock.Any(), "42", "42").
		Return(&helix.ChatSettings{SlowMode: false}, nil)
	api.EXPECT().UpdateChatSetting(gomock.Any(), "42", "42", "slow_mode", true).
		Return(&helix.ChatSettings{SlowMode: true}, nil)

	enabled, err := gw.ToggleChatMode(context.Background(), ChatModeSlow)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestToggleChatMode_DisablesEnabledMode(t *testing.T) {
	gw, _, api := newTestGateway(t)

	api.EXPECT().GetChatSettings(gomock.Any(), "42", "42").
		Return(&helix.ChatSettings{EmoteMode: true}, nil)
	api.EXPECT().UpdateChatSetting(gomock.Any(), "42", "42", "emote_mode", false).
		Return(&helix.ChatSettings{EmoteMode: false}, nil)

	enabled, err := gw.ToggleChatMode(context.Background(), ChatModeEmote)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestToggleChatMode_RejectsUnknownMode(t *testing.T) {
	gw, _, _ := newTestGateway(t)

	_, err := gw.ToggleChatMode(context.Background(), ChatMode("uppercase_mode"))
	assert.ErrorContains(t, err, "unknown chat mode")
}

func TestSendMessage_OwnChannelByDefault(t *testing.T) {
	gw, _, api := newTestGateway(t)

	api.EXPECT().SendChatMessage(gomock.Any(), "42", "42", "hello").Return(nil)

	require.NoError(t, gw.SendMessage(context.Background(), "hello", ""))
}

func TestSendMessage_ResolvesNamedChannel(t *testing.T) {
	gw, _, api := newTestGateway(t)

	api.EXPECT().GetUserByLogin(gomock.Any(), "friend").Return(&helix.User{ID: "99", Login: "friend"}, nil)
	api.EXPECT().SendChatMessage(gomock.Any(), "99", "42", "hi there").Return(nil)

	require.NoError(t, gw.SendMessage(context.Background(), "hi there", "friend"))
}

func TestSendMessage_UnknownChannelFallsBackToOwn(t *testing.T) {
	gw, _, api := newTestGateway(t)

	api.EXPECT().GetUserByLogin(gomock.Any(), "ghost").Return(nil, nil)
	api.EXPECT().SendChatMessage(gomock.Any(), "42", "42", "hi").Return(nil)

	require.NoError(t, gw.SendMessage(context.Background(), "hi", "ghost"))
}

func TestSendMessage_LookupErrorFallsBackToOwn(t *testing.T) {
	gw, _, api := newTestGateway(t)

	api.EXPECT().GetUserByLogin(gomock.Any(), "friend").Return(nil, errors.New("service unavailable"))
	api.EXPECT().SendChatMessage(gomock.Any(), "42", "42", "hi").Return(nil)

	require.NoError(t, gw.SendMessage(context.Background(), "hi", "friend"))
}

func TestSendMessage_OwnLoginSkipsResolution(t *testing.T) {
	gw, _, api := newTestGateway(t)

	api.EXPECT().SendChatMessage(gomock.Any(), "42", "42", "hi").Return(nil)

	require.NoError(t, gw.SendMessage(context.Background(), "hi", "streamer"))
}

func TestResolveChannelID_CachesLookups(t *testing.T) {
	gw, _, api := newTestGateway(t)

	api.EXPECT().GetUserByLogin(gomock.Any(), "friend").
		Return(&helix.User{ID: "99", Login: "friend"}, nil).
		Times(1)

	for range 3 {
		id, err := gw.ResolveChannelID(context.Background(), "friend")
		require.NoError(t, err)
		assert.Equal(t, "99", id)
	}
}

func TestResolveChannelID_UnknownIsNotCached(t *testing.T) {
	gw, _, api := newTestGateway(t)

	api.EXPECT().GetUserByLogin(gomock.Any(), "ghost").Return(nil, nil).Times(2)

	for range 2 {
		id, err := gw.ResolveChannelID(context.Background(), "ghost")
		require.NoError(t, err)
		assert.Empty(t, id)
	}
}

func TestNextAdSchedule(t *testing.T) {
	gw, _, api := newTestGateway(t)

	next := time.Now().Add(5 * time.Minute).Truncate(time.Second)
	api.EXPECT().GetAdSchedule(gomock.Any(), "42").
		Return(&helix.AdSchedule{NextAdAt: next, SnoozeCount: 2}, nil)

	got, snoozes, err := gw.NextAdSchedule(context.Background())
	require.NoError(t, err)

	assert.True(t, got.Equal(next))
	assert.Equal(t, 2, snoozes)
}

func TestNextAdSchedule_NoAdScheduled(t *testing.T) {
	gw, _, api := newTestGateway(t)

	api.EXPECT().GetAdSchedule(gomock.Any(), "42").
		Return(&helix.AdSchedule{SnoozeCount: 3}, nil)

	got, snoozes, err := gw.NextAdSchedule(context.Background())
	require.NoError(t, err)

	assert.True(t, got.Equal(NoAdScheduled))
	assert.Equal(t, 3, snoozes)
}

func TestNextAdSchedule_ErrorStillYieldsSentinel(t *testing.T) {
	gw, _, api := newTestGateway(t)

	api.EXPECT().GetAdSchedule(gomock.Any(), "42").Return(nil, errors.New("boom"))

	got, snoozes, err := gw.NextAdSchedule(context.Background())
	require.Error(t, err)

	assert.True(t, got.Equal(NoAdScheduled))
	assert.Equal(t, -1, snoozes)
}

func TestSnoozeNextAd(t *testing.T) {
	gw, _, api := newTestGateway(t)

	api.EXPECT().SnoozeNextAd(gomock.Any(), "42").
		Return(&helix.AdSchedule{SnoozeCount: 1}, nil)

	require.NoError(t, gw.SnoozeNextAd(context.Background()))
}

func TestPlayAd(t *testing.T) {
	gw, _, api := newTestGateway(t)

	api.EXPECT().StartCommercial(gomock.Any(), "42", 60).Return(nil)

	require.NoError(t, gw.PlayAd(context.Background(), 60))
}

func TestChangeCategory(t *testing.T) {
	gw, _, api := newTestGateway(t)

	api.EXPECT().UpdateChannelCategory(gomock.Any(), "42", "33214").Return(nil)

	require.NoError(t, gw.ChangeCategory(context.Background(), "33214"))
}

func TestSearchCategories(t *testing.T) {
	gw, _, api := newTestGateway(t)

	api.EXPECT().SearchCategories(gomock.Any(), "fort").
		Return([]helix.Category{{ID: "33214", Name: "Fortnite"}}, nil)

	cats, err := gw.SearchCategories(context.Background(), "fort")
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "Fortnite", cats[0].Name)
}

func TestUpdateClientCredentials_Passthrough(t *testing.T) {
	gw, session, _ := newTestGateway(t)

	gw.UpdateClientCredentials(context.Background(), "id-1", "secret-1")

	assert.Equal(t, []string{"id-1/secret-1"}, session.credentials)
}

func TestSetTokenPath_AttachesStore(t *testing.T) {
	gw, session, _ := newTestGateway(t)

	path := filepath.Join(t.TempDir(), "tokens.db")
	require.NoError(t, gw.SetTokenPath(path))
	t.Cleanup(func() { gw.Close() })

	assert.NotNil(t, session.store)
}

func TestSetTokenPath_ReplacesStore(t *testing.T) {
	gw, session, _ := newTestGateway(t)

	dir := t.TempDir()
	require.NoError(t, gw.SetTokenPath(filepath.Join(dir, "a.db")))

	first := session.store
	require.NoError(t, gw.SetTokenPath(filepath.Join(dir, "b.db")))
	t.Cleanup(func() { gw.Close() })

	assert.NotSame(t, first, session.store)
}

func TestRateLimit_DelaysBurstAcrossOps(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := NewMockAPI(ctrl)
	session := &fakeSession{userID: "42", login: "streamer", authed: true}
	gw := New(session, api, ratelimit.New(2, 100*time.Millisecond), testLogger())

	api.EXPECT().CreateMarker(gomock.Any(), "42").Return(nil).Times(3)

	start := time.Now()
	for range 3 {
		require.NoError(t, gw.CreateMarker(context.Background()))
	}

	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}
