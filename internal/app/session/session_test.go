package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/higgyo/app-dam/internal/app/repository/memory"
	"github.com/higgyo/app-dam/internal/app/usecase"
	"github.com/higgyo/app-dam/internal/domain"
	"github.com/higgyo/app-dam/internal/domain/mocks"
	"github.com/higgyo/app-dam/internal/pkg/errs"
)

func newMemorySession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	store := memory.NewStore()
	return New(usecase.NewUsers(memory.NewUserRepository(store)), opts...)
}

func drain(ch <-chan Snapshot) []State {
	var states []State
	for {
		select {
		case snap := <-ch:
			states = append(states, snap.State)
		default:
			return states
		}
	}
}

var alice = usecase.RegisterParams{Name: "Alice", Email: "a@b.com", Password: "longenough1"}

func TestSession_Restore(t *testing.T) {
	ctx := context.Background()

	t.Run("should start verifying and settle on unauthenticated", func(t *testing.T) {
		req := require.New(t)
		s := newMemorySession(t)
		req.Equal(Verifying, s.State())

		snap := s.Restore(ctx)

		req.Equal(Unauthenticated, snap.State)
		req.Nil(snap.User)
		req.Equal([]State{Unauthenticated}, drain(s.Changes()))
	})

	t.Run("should treat a failing session check as signed out", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockUserRepository(ctrl)
		repo.EXPECT().CurrentUser(gomock.Any()).Return(nil, errs.NewError(errs.ErrBackendUnavailable))

		snap := New(usecase.NewUsers(repo)).Restore(ctx)
		req.Equal(Unauthenticated, snap.State)
	})

	t.Run("should restore a persisted user", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockUserRepository(ctrl)
		email, err := domain.NewEmail("a@b.com")
		req.NoError(err)
		user, err := domain.NewUser(domain.UserParams{ID: "u1", Name: "Alice", Email: email})
		req.NoError(err)
		repo.EXPECT().CurrentUser(gomock.Any()).Return(&user, nil)

		snap := New(usecase.NewUsers(repo)).Restore(ctx)
		req.Equal(Authenticated, snap.State)
		req.Equal("u1", snap.User.ID())
	})
}

func TestSession_LoginLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("should keep the state when login fails", func(t *testing.T) {
		req := require.New(t)
		s := newMemorySession(t)
		s.Restore(ctx)
		_, err := s.Register(ctx, alice)
		req.NoError(err)

		_, err = s.Login(ctx, usecase.LoginParams{Email: "a@b.com", Password: "wrongpassword"})

		req.True(errs.IsKind(err, errs.KindAuth))
		req.Equal(Unauthenticated, s.State())
	})

	t.Run("should authenticate and then sign out", func(t *testing.T) {
		req := require.New(t)
		s := newMemorySession(t)
		s.Restore(ctx)
		_, err := s.Register(ctx, alice)
		req.NoError(err)
		req.Equal(Unauthenticated, s.State())

		user, err := s.Login(ctx, usecase.LoginParams{Email: "a@b.com", Password: "longenough1"})
		req.NoError(err)
		req.Equal(Authenticated, s.State())
		req.Equal(user.ID(), s.User().ID())
		_, hasPassword := s.User().Password()
		req.False(hasPassword)

		req.NoError(s.Logout(ctx))
		req.Equal(Unauthenticated, s.State())
		req.Nil(s.User())
		req.Equal([]State{Unauthenticated, Authenticated, Unauthenticated}, drain(s.Changes()))
	})

	t.Run("should clear the local session even when the remote logout fails", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockUserRepository(ctrl)
		email, err := domain.NewEmail("a@b.com")
		req.NoError(err)
		user, err := domain.NewUser(domain.UserParams{ID: "u1", Name: "Alice", Email: email})
		req.NoError(err)

		repo.EXPECT().CurrentUser(gomock.Any()).Return(&user, nil)
		repo.EXPECT().Logout(gomock.Any()).Return(errors.New("network down"))

		s := New(usecase.NewUsers(repo))
		s.Restore(ctx)

		err = s.Logout(ctx)
		req.Error(err)
		req.Equal(Unauthenticated, s.State())
		req.Nil(s.User())
	})
}

func TestSession_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("should sign in after registering when auto login is on", func(t *testing.T) {
		req := require.New(t)
		s := newMemorySession(t, WithAutoLogin(true))
		s.Restore(ctx)

		user, err := s.Register(ctx, alice)

		req.NoError(err)
		req.Equal(Authenticated, s.State())
		req.Equal(user.ID(), s.User().ID())
	})

	t.Run("should stay signed out on a duplicate registration", func(t *testing.T) {
		req := require.New(t)
		s := newMemorySession(t, WithAutoLogin(true))
		s.Restore(ctx)
		_, err := s.Register(ctx, alice)
		req.NoError(err)
		req.NoError(s.Logout(ctx))

		_, err = s.Register(ctx, alice)
		req.True(errs.IsKind(err, errs.KindConflict))
		req.Equal(Unauthenticated, s.State())
	})
}

func TestSession_UpdateDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("should refresh the signed in user after an update", func(t *testing.T) {
		req := require.New(t)
		s := newMemorySession(t, WithAutoLogin(true))
		s.Restore(ctx)
		user, err := s.Register(ctx, alice)
		req.NoError(err)

		name := "Alicia"
		_, err = s.UpdateUser(ctx, usecase.UpdateUserParams{ID: user.ID(), Name: &name})
		req.NoError(err)
		req.Equal("Alicia", s.User().Name())
	})

	t.Run("should sign out when the current account is deleted", func(t *testing.T) {
		req := require.New(t)
		s := newMemorySession(t, WithAutoLogin(true))
		s.Restore(ctx)
		user, err := s.Register(ctx, alice)
		req.NoError(err)

		req.NoError(s.DeleteUser(ctx, user.ID()))
		req.Equal(Unauthenticated, s.State())
	})
}

func TestSession_Changes(t *testing.T) {
	t.Run("should keep the latest snapshot when the reader falls behind", func(t *testing.T) {
		req := require.New(t)
		s := newMemorySession(t)
		ctx := context.Background()

		for i := 0; i < changesBuffer+5; i++ {
			req.NoError(s.Logout(ctx))
		}
		s.Restore(ctx)

		states := drain(s.Changes())
		req.Len(states, changesBuffer)
		req.Equal(Unauthenticated, states[len(states)-1])
	})
}
