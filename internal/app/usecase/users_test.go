package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/higgyo/app-dam/internal/domain"
	"github.com/higgyo/app-dam/internal/domain/mocks"
	"github.com/higgyo/app-dam/internal/pkg/errs"
)

func mustUser(t *testing.T, id, name, rawEmail string) domain.User {
	t.Helper()
	email, err := domain.NewEmail(rawEmail)
	require.NoError(t, err)
	user, err := domain.NewUser(domain.UserParams{ID: id, Name: name, Email: email})
	require.NoError(t, err)
	return user
}

func ptr[T any](v T) *T { return &v }

func TestUsers_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("should reject invalid input before calling the repository", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		users := NewUsers(mocks.NewMockUserRepository(ctrl))

		_, err := users.Register(ctx, RegisterParams{Name: "   ", Email: "a@b.com", Password: "longenough1"})
		req.Equal(errs.ErrNameRequired, errs.CodeOf(err))

		_, err = users.Register(ctx, RegisterParams{Name: "Alice", Email: "not-an-email", Password: "longenough1"})
		req.Equal(errs.ErrInvalidEmail, errs.CodeOf(err))

		_, err = users.Register(ctx, RegisterParams{Name: "Alice", Email: "a@b.com", Password: "short"})
		req.Equal(errs.ErrInvalidPassword, errs.CodeOf(err))
		req.True(errs.IsKind(err, errs.KindValidation))
	})

	t.Run("should report a conflict when the email is taken", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockUserRepository(ctrl)
		existing := mustUser(t, "u1", "Alice", "a@b.com")

		repo.EXPECT().FindByEmail(gomock.Any(), "a@b.com").Return(&existing, nil)

		_, err := NewUsers(repo).Register(ctx, RegisterParams{Name: "Alice", Email: "a@b.com", Password: "longenough1"})

		req.True(errs.IsKind(err, errs.KindConflict))
		req.Equal("Usuário já existe!", err.Error())
	})

	t.Run("should store the initial location after registering", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockUserRepository(ctrl)
		registered := mustUser(t, "u1", "Alice", "a@b.com")

		var stored domain.User
		gomock.InOrder(
			repo.EXPECT().FindByEmail(gomock.Any(), "a@b.com").Return(nil, nil),
			repo.EXPECT().Register(gomock.Any(), "Alice", gomock.Any(), gomock.Any()).Return(registered, nil),
			repo.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, u domain.User) error {
				stored = u
				return nil
			}),
		)

		user, err := NewUsers(repo).Register(ctx, RegisterParams{
			Name: "Alice", Email: "a@b.com", Password: "longenough1",
			Latitude: ptr(-23.5), Longitude: ptr(-46.6),
		})

		req.NoError(err)
		req.Equal("u1", user.ID())
		loc, ok := stored.Location()
		req.True(ok)
		req.Equal(-23.5, loc.Latitude())
		req.Equal(-46.6, loc.Longitude())
		_, hasPassword := stored.Password()
		req.False(hasPassword)
	})

	t.Run("should skip the location update when none is given", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockUserRepository(ctrl)

		repo.EXPECT().FindByEmail(gomock.Any(), "a@b.com").Return(nil, nil)
		repo.EXPECT().Register(gomock.Any(), "Alice", gomock.Any(), gomock.Any()).
			Return(mustUser(t, "u1", "Alice", "a@b.com"), nil)

		_, err := NewUsers(repo).Register(ctx, RegisterParams{Name: "Alice", Email: "a@b.com", Password: "longenough1"})
		req.NoError(err)
	})
}

func TestUsers_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("should pass the credentials through", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockUserRepository(ctrl)

		repo.EXPECT().Login(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e domain.Email, p domain.Password) (domain.User, error) {
				req.Equal("a@b.com", e.Value())
				req.Equal("longenough1", p.Value())
				return mustUser(t, "u1", "Alice", "a@b.com"), nil
			})

		user, err := NewUsers(repo).Login(ctx, LoginParams{Email: "a@b.com", Password: "longenough1"})
		req.NoError(err)
		req.Equal("Alice", user.Name())
	})

	t.Run("should fail fast on an empty password", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		_, err := NewUsers(mocks.NewMockUserRepository(ctrl)).Login(ctx, LoginParams{Email: "a@b.com"})
		require.Equal(t, errs.ErrInvalidPassword, errs.CodeOf(err))
	})
}

func TestUsers_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("should replace only the given fields", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockUserRepository(ctrl)
		current := mustUser(t, "u1", "Alice", "a@b.com")

		var stored domain.User
		repo.EXPECT().FindByID(gomock.Any(), "u1").Return(&current, nil)
		repo.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, u domain.User) error {
			stored = u
			return nil
		})

		updated, err := NewUsers(repo).Update(ctx, UpdateUserParams{ID: "u1", Name: ptr("Alicia"), Password: ptr("brandnew99")})

		req.NoError(err)
		req.Equal("Alicia", updated.Name())
		req.Equal("a@b.com", updated.Email().Value())
		_, hasPassword := updated.Password()
		req.False(hasPassword)

		pw, ok := stored.Password()
		req.True(ok)
		req.Equal("brandnew99", pw.Value())
	})

	t.Run("should report unknown users", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockUserRepository(ctrl)

		repo.EXPECT().FindByID(gomock.Any(), "ghost").Return(nil, nil)

		_, err := NewUsers(repo).Update(ctx, UpdateUserParams{ID: "ghost", Name: ptr("X")})
		req.True(errs.IsKind(err, errs.KindNotFound))
	})

	t.Run("should reject an invalid replacement email", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockUserRepository(ctrl)
		current := mustUser(t, "u1", "Alice", "a@b.com")

		repo.EXPECT().FindByID(gomock.Any(), "u1").Return(&current, nil)

		_, err := NewUsers(repo).Update(ctx, UpdateUserParams{ID: "u1", Email: ptr("broken")})
		req.Equal(errs.ErrInvalidEmail, errs.CodeOf(err))
	})
}

func TestUsers_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("should report unknown users without deleting", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockUserRepository(ctrl)

		repo.EXPECT().FindByID(gomock.Any(), "ghost").Return(nil, nil)

		err := NewUsers(repo).Delete(ctx, "ghost")
		req.True(errs.IsKind(err, errs.KindNotFound))
		req.Equal("Usuário não encontrado.", err.Error())
	})

	t.Run("should delete known users", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockUserRepository(ctrl)
		current := mustUser(t, "u1", "Alice", "a@b.com")

		repo.EXPECT().FindByID(gomock.Any(), "u1").Return(&current, nil)
		repo.EXPECT().Delete(gomock.Any(), "u1").Return(nil)

		require.NoError(t, NewUsers(repo).Delete(ctx, "u1"))
	})
}

func TestUsers_VerifyAuthentication(t *testing.T) {
	ctx := context.Background()

	t.Run("should treat failures as signed out", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockUserRepository(ctrl)
		repo.EXPECT().CurrentUser(gomock.Any()).Return(nil, errors.New("network down"))

		require.Nil(t, NewUsers(repo).VerifyAuthentication(ctx))
	})

	t.Run("should return the session user", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockUserRepository(ctrl)
		current := mustUser(t, "u1", "Alice", "a@b.com")
		repo.EXPECT().CurrentUser(gomock.Any()).Return(&current, nil)

		user := NewUsers(repo).VerifyAuthentication(ctx)
		require.NotNil(t, user)
		require.Equal(t, "u1", user.ID())
	})
}
