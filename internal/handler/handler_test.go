package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/higgyo/app-dam/internal/app/backend"
	"github.com/higgyo/app-dam/internal/app/chat"
	"github.com/higgyo/app-dam/internal/app/feed"
	"github.com/higgyo/app-dam/internal/app/gateway"
	"github.com/higgyo/app-dam/internal/configs"
	"github.com/higgyo/app-dam/internal/pkg/auth/jwt"
	"github.com/higgyo/app-dam/internal/pkg/errs"
	"github.com/higgyo/app-dam/internal/pkg/logx"
	"github.com/higgyo/app-dam/internal/pkg/randx"
)

const testSecret = "handler-test-secret"

type testEnv struct {
	server *httptest.Server
	store  *fakeStore
	source *feed.Memory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logx.Configure(io.Discard, zerolog.Disabled)

	store := newFakeStore()
	source := feed.NewMemory()
	deps := &AppDeps{
		Config: &configs.ServerConfig{
			Environment: configs.EnvDevelopment,
			JWTSecret:   testSecret,
			RoomRate:    1000,
			RoomBurst:   1000,
		},
		Store: store,
	}
	deps.Gateway = gateway.New(source, RoomAuthorizer(store, testSecret))

	router, stop := Router(deps)
	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		stop()
	})

	return &testEnv{server: server, store: store, source: source}
}

func (e *testEnv) client(t *testing.T) *backend.Client {
	t.Helper()
	return backend.NewClient(e.server.URL, backend.NewMemoryTokenStore(), backend.WithTimeout(5*time.Second))
}

// signedIn registers name and returns a client holding its session.
func (e *testEnv) signedIn(t *testing.T, name string) (*backend.Client, backend.Session) {
	t.Helper()
	ctx := context.Background()
	c := e.client(t)
	email := strings.ToLower(name) + "@example.com"

	_, err := c.SignUp(ctx, backend.SignUpRequest{Name: name, Email: email, Password: "longenough1"})
	require.NoError(t, err)
	session, err := c.SignIn(ctx, email, "longenough1")
	require.NoError(t, err)
	return c, session
}

func TestAuthEndpoints(t *testing.T) {
	ctx := context.Background()

	t.Run("should sign up, sign in and report the current user", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		c := env.client(t)
		lat, lng := -23.55, -46.63

		created, err := c.SignUp(ctx, backend.SignUpRequest{
			Name: "Ana", Email: "ana@example.com", Password: "longenough1", Latitude: &lat, Longitude: &lng,
		})
		req.NoError(err)
		req.NotEmpty(created.ID)
		req.Equal(-23.55, *created.Latitude)

		session, err := c.SignIn(ctx, "ana@example.com", "longenough1")
		req.NoError(err)
		req.Equal(created.ID, session.User.ID)
		req.Equal(tokenType, session.TokenType)
		req.Greater(session.ExpiresAt, time.Now().Unix())

		me, err := c.User(ctx)
		req.NoError(err)
		req.NotNil(me)
		req.Equal("Ana", me.Name)

		req.NoError(c.SignOut(ctx))
		me, err = c.User(ctx)
		req.NoError(err)
		req.Nil(me)
	})

	t.Run("should reject a second account with the same email", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		c := env.client(t)

		_, err := c.SignUp(ctx, backend.SignUpRequest{Name: "Ana", Email: "ana@example.com", Password: "longenough1"})
		req.NoError(err)
		_, err = c.SignUp(ctx, backend.SignUpRequest{Name: "Ana", Email: "ANA@example.com", Password: "longenough2"})

		req.True(errs.IsKind(err, errs.KindConflict))
		req.Equal("Usuário já existe!", err.Error())
	})

	t.Run("should validate the sign-up body", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		c := env.client(t)

		_, err := c.SignUp(ctx, backend.SignUpRequest{Name: "Ana", Email: "not-an-email", Password: "longenough1"})
		req.Equal(errs.ErrInvalidEmail, errs.CodeOf(err))

		_, err = c.SignUp(ctx, backend.SignUpRequest{Name: "Ana", Email: "ana@example.com", Password: "short"})
		req.Equal(errs.ErrInvalidPassword, errs.CodeOf(err))

		_, err = c.SignUp(ctx, backend.SignUpRequest{Name: "  ", Email: "ana@example.com", Password: "longenough1"})
		req.Equal(errs.ErrNameRequired, errs.CodeOf(err))
	})

	t.Run("should fail unknown emails and wrong passwords alike", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		env.signedIn(t, "Ana")
		c := env.client(t)

		_, err := c.SignIn(ctx, "ana@example.com", "wrongpassword")
		req.True(errs.IsKind(err, errs.KindAuth))
		req.Equal("Credenciais inválidas", err.Error())

		_, err = c.SignIn(ctx, "nobody@example.com", "longenough1")
		req.Equal(errs.ErrInvalidCredentials, errs.CodeOf(err))
	})

	t.Run("should refuse the user endpoint without a token", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)

		res, err := http.Get(env.server.URL + backend.PathUser)
		req.NoError(err)
		defer res.Body.Close()

		req.Equal(http.StatusUnauthorized, res.StatusCode)
	})

	t.Run("should reject bodies that are not json", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)

		res, err := http.Post(env.server.URL+backend.PathSignUp, "text/plain", strings.NewReader("hi"))
		req.NoError(err)
		defer res.Body.Close()

		req.Equal(http.StatusBadRequest, res.StatusCode)
	})
}

func TestRoomFunctions(t *testing.T) {
	ctx := context.Background()

	t.Run("should create a room and let others enter with the password", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		owner, ownerSession := env.signedIn(t, "Ana")
		guest, guestSession := env.signedIn(t, "Bia")

		var room backend.RoomInfo
		req.NoError(owner.Invoke(ctx, backend.FunctionCreateRoom, backend.CreateRoomRequest{Name: "Trip", Password: "roompass1"}, &room))
		req.True(randx.IsValidRoomCode(room.Code))
		req.Equal(ownerSession.User.ID, room.CreatorID)

		var entered backend.RoomInfo
		req.NoError(guest.Invoke(ctx, backend.FunctionEnterRoom, backend.EnterRoomRequest{Code: room.Code, Password: "roompass1"}, &entered))
		req.Equal(room.ID, entered.ID)

		member, err := env.store.IsRoomMember(ctx, room.ID, guestSession.User.ID)
		req.NoError(err)
		req.True(member)

		req.NoError(guest.Invoke(ctx, backend.FunctionEnterRoom, backend.EnterRoomRequest{Code: room.Code, Password: "roompass1"}, &entered))
		req.Equal(2, env.store.memberCount())
	})

	t.Run("should deny wrong passwords and unknown or malformed codes alike", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		owner, _ := env.signedIn(t, "Ana")
		guest, _ := env.signedIn(t, "Bia")

		var room backend.RoomInfo
		req.NoError(owner.Invoke(ctx, backend.FunctionCreateRoom, backend.CreateRoomRequest{Name: "Trip", Password: "roompass1"}, &room))

		for _, in := range []backend.EnterRoomRequest{
			{Code: room.Code, Password: "wrongpass1"},
			{Code: "zzzzzz", Password: "roompass1"},
			{Code: "bad!", Password: "roompass1"},
		} {
			err := guest.Invoke(ctx, backend.FunctionEnterRoom, in, nil)
			req.Equal(errs.ErrRoomAccessDenied, errs.CodeOf(err), in.Code)
			req.True(errs.IsKind(err, errs.KindAuth))
		}
	})

	t.Run("should retry join code collisions", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		owner, _ := env.signedIn(t, "Ana")

		env.store.failRoomCreates(maxCodeAttempts - 1)
		var room backend.RoomInfo
		req.NoError(owner.Invoke(ctx, backend.FunctionCreateRoom, backend.CreateRoomRequest{Name: "Trip", Password: "roompass1"}, &room))

		env.store.failRoomCreates(maxCodeAttempts)
		err := owner.Invoke(ctx, backend.FunctionCreateRoom, backend.CreateRoomRequest{Name: "Trip", Password: "roompass1"}, &room)
		req.True(errs.IsKind(err, errs.KindConflict))
	})

	t.Run("should require a session", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)

		res, err := http.Post(env.server.URL+backend.PathFunctions+backend.FunctionCreateRoom, "application/json",
			strings.NewReader(`{"name":"Trip","password":"roompass1"}`))
		req.NoError(err)
		defer res.Body.Close()

		req.Equal(http.StatusUnauthorized, res.StatusCode)
	})
}

func TestRealtime(t *testing.T) {
	ctx := context.Background()

	t.Run("should stream room inserts to members only", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		owner, _ := env.signedIn(t, "Ana")
		outsider, _ := env.signedIn(t, "Caio")

		var room backend.RoomInfo
		req.NoError(owner.Invoke(ctx, backend.FunctionCreateRoom, backend.CreateRoomRequest{Name: "Trip", Password: "roompass1"}, &room))

		endpoint := "ws" + strings.TrimPrefix(env.server.URL, "http") + PathRealtime

		_, err := feed.NewRealtime(endpoint, "", outsider.AccessToken).
			Subscribe(ctx, chat.RoomTopic(room.ID), func(feed.Event) {})
		req.Error(err)
		req.Contains(err.Error(), "Código ou senha da sala inválidos")

		events := make(chan feed.Event, 1)
		ch, err := feed.NewRealtime(endpoint, "", owner.AccessToken).
			Subscribe(ctx, chat.RoomTopic(room.ID), func(ev feed.Event) { events <- ev })
		req.NoError(err)
		defer ch.Close()

		req.NoError(env.source.Publish(chat.MessagesTable, map[string]any{"id": "m1", "room_id": room.ID, "content": "oi"}))

		select {
		case ev := <-events:
			req.Contains(string(ev.Record), `"oi"`)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for the insert")
		}
	})
}

func TestRoomAuthorizer(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	authorize := RoomAuthorizer(store, testSecret)

	token := func(t *testing.T, userID string) string {
		t.Helper()
		signed, err := jwt.GenerateToken(&jwt.Payload{UserID: userID}, testSecret, time.Minute)
		require.NoError(t, err)
		return signed
	}
	require.NoError(t, store.AddRoomMember(ctx, "r1", "u1"))

	t.Run("should allow members of the room", func(t *testing.T) {
		require.NoError(t, authorize(ctx, token(t, "u1"), chat.RoomTopic("r1")))
	})

	t.Run("should deny users outside the room", func(t *testing.T) {
		err := authorize(ctx, token(t, "u2"), chat.RoomTopic("r1"))
		require.Equal(t, errs.ErrRoomAccessDenied, errs.CodeOf(err))
	})

	t.Run("should reject invalid tokens", func(t *testing.T) {
		err := authorize(ctx, "garbage", chat.RoomTopic("r1"))
		require.True(t, errs.IsKind(err, errs.KindAuth))
		require.Equal(t, errs.ErrUnauthorized, errs.CodeOf(err))
	})

	t.Run("should reject topics other than room messages", func(t *testing.T) {
		err := authorize(ctx, token(t, "u1"), feed.Topic{Table: "users", Column: "id", Value: "r1"})
		require.Equal(t, errs.ErrInvalidParams, errs.CodeOf(err))
	})
}

func TestOperationalEndpoints(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	for _, path := range []string{"/health", "/metrics"} {
		res, err := http.Get(env.server.URL + path)
		req.NoError(err)
		res.Body.Close()
		req.Equal(http.StatusOK, res.StatusCode, path)
	}
}
