/*
Package usecase holds the application operations behind every screen of the client.

Each operation validates its input first, builds the domain values and then makes the
repository call, so malformed input never reaches the backend.
*/
package usecase

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/higgyo/app-dam/internal/domain"
	"github.com/higgyo/app-dam/internal/pkg/errs"
	"github.com/higgyo/app-dam/internal/pkg/logx"
	"github.com/higgyo/app-dam/internal/pkg/validate"
)

type RegisterParams struct {
	Name      string `validate:"required,max=100"`
	Email     string `validate:"required"`
	Password  string `validate:"required"`
	Latitude  *float64
	Longitude *float64
}

type LoginParams struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

// UpdateUserParams replaces the fields that are set and keeps the others.
type UpdateUserParams struct {
	ID        string `validate:"required"`
	Name      *string
	Email     *string
	Password  *string
	Latitude  *float64
	Longitude *float64
}

// Users covers registration, authentication and account maintenance.
type Users struct {
	repo   domain.UserRepository
	logger zerolog.Logger
}

func NewUsers(repo domain.UserRepository) *Users {
	return &Users{repo: repo, logger: logx.Component("usecase.users")}
}

// Register creates an account. It does not sign the new user in.
func (u *Users) Register(ctx context.Context, p RegisterParams) (domain.User, error) {
	if customErr := validate.Struct(p); customErr != nil {
		return domain.User{}, customErr
	}
	if strings.TrimSpace(p.Name) == "" {
		return domain.User{}, errs.NewError(errs.ErrNameRequired)
	}

	email, err := domain.NewEmail(p.Email)
	if err != nil {
		return domain.User{}, err
	}
	pw, err := domain.NewPassword(p.Password)
	if err != nil {
		return domain.User{}, err
	}

	existing, err := u.repo.FindByEmail(ctx, email.Value())
	if err != nil {
		return domain.User{}, err
	}
	if existing != nil {
		return domain.User{}, errs.NewError(errs.ErrUserAlreadyExists)
	}

	user, err := u.repo.Register(ctx, p.Name, email, pw)
	if err != nil {
		return domain.User{}, err
	}

	if p.Latitude != nil && p.Longitude != nil {
		params := user.WithoutPassword().Params()
		loc := domain.NewGeoLocation(*p.Latitude, *p.Longitude)
		params.Location = &loc

		located, err := domain.NewUser(params)
		if err != nil {
			return domain.User{}, err
		}
		if err := u.repo.Update(ctx, located); err != nil {
			return domain.User{}, err
		}
		user = located
	}

	u.logger.Info().Str("user_id", user.ID()).Msg("User registered")
	return user, nil
}

func (u *Users) Login(ctx context.Context, p LoginParams) (domain.User, error) {
	if customErr := validate.Struct(p); customErr != nil {
		return domain.User{}, customErr
	}

	email, err := domain.NewEmail(p.Email)
	if err != nil {
		return domain.User{}, err
	}
	pw, err := domain.NewPassword(p.Password)
	if err != nil {
		return domain.User{}, err
	}

	return u.repo.Login(ctx, email, pw)
}

func (u *Users) Logout(ctx context.Context) error {
	return u.repo.Logout(ctx)
}

// Find returns the user with id, or nil.
func (u *Users) Find(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, errs.NewError(errs.ErrInvalidParams)
	}
	return u.repo.FindByID(ctx, id)
}

func (u *Users) Update(ctx context.Context, p UpdateUserParams) (domain.User, error) {
	if customErr := validate.Struct(p); customErr != nil {
		return domain.User{}, customErr
	}

	current, err := u.repo.FindByID(ctx, p.ID)
	if err != nil {
		return domain.User{}, err
	}
	if current == nil {
		return domain.User{}, errs.NewError(errs.ErrUserNotFound)
	}

	params := current.WithoutPassword().Params()
	if p.Name != nil {
		params.Name = *p.Name
	}
	if p.Email != nil {
		email, err := domain.NewEmail(*p.Email)
		if err != nil {
			return domain.User{}, err
		}
		params.Email = email
	}
	if p.Password != nil {
		pw, err := domain.NewPassword(*p.Password)
		if err != nil {
			return domain.User{}, err
		}
		params.Password = &pw
	}
	if p.Latitude != nil && p.Longitude != nil {
		loc := domain.NewGeoLocation(*p.Latitude, *p.Longitude)
		params.Location = &loc
	}

	updated, err := domain.NewUser(params)
	if err != nil {
		return domain.User{}, err
	}
	if err := u.repo.Update(ctx, updated); err != nil {
		return domain.User{}, err
	}
	return updated.WithoutPassword(), nil
}

func (u *Users) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errs.NewError(errs.ErrInvalidParams)
	}

	current, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return errs.NewError(errs.ErrUserNotFound)
	}
	return u.repo.Delete(ctx, id)
}

// VerifyAuthentication returns the user of the persisted session. Any failure counts as
// no session.
func (u *Users) VerifyAuthentication(ctx context.Context) *domain.User {
	user, err := u.repo.CurrentUser(ctx)
	if err != nil {
		u.logger.Warn().Err(err).Msg("Session check failed, treating as signed out")
		return nil
	}
	return user
}
