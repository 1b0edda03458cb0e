package postgres

import (
	"context"

	"github.com/higgyo/app-dam/internal/app/backend"
	"github.com/higgyo/app-dam/internal/app/db"
	"github.com/higgyo/app-dam/internal/domain"
	"github.com/higgyo/app-dam/internal/pkg/auth/password"
	"github.com/higgyo/app-dam/internal/pkg/errs"
)

type UserRepository struct {
	auth  AuthClient
	users UserStore
}

var _ domain.UserRepository = (*UserRepository)(nil)

func NewUserRepository(auth AuthClient, users UserStore) *UserRepository {
	return &UserRepository{auth: auth, users: users}
}

func (r *UserRepository) Login(ctx context.Context, email domain.Email, pw domain.Password) (domain.User, error) {
	session, err := r.auth.SignIn(ctx, email.Value(), pw.Value())
	if err != nil {
		return domain.User{}, err
	}
	return userFromInfo(session.User)
}

func (r *UserRepository) Register(ctx context.Context, name string, email domain.Email, pw domain.Password) (domain.User, error) {
	info, err := r.auth.SignUp(ctx, backend.SignUpRequest{
		Name:     name,
		Email:    email.Value(),
		Password: pw.Value(),
	})
	if err != nil {
		return domain.User{}, err
	}
	return userFromInfo(info)
}

func (r *UserRepository) Logout(ctx context.Context) error {
	return r.auth.SignOut(ctx)
}

func (r *UserRepository) CurrentUser(ctx context.Context) (*domain.User, error) {
	info, err := r.auth.User(ctx)
	if err != nil || info == nil {
		return nil, err
	}

	user, err := userFromInfo(*info)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	row, err := r.users.GetUserByID(ctx, id)
	return r.found(row, err)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row, err := r.users.GetUserByEmail(ctx, email)
	return r.found(row, err)
}

func (r *UserRepository) found(row db.UserRow, err error) (*domain.User, error) {
	if db.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrPersistence, err)
	}

	user, err := userFromRow(row)
	if err != nil {
		return nil, errs.Wrap(errs.ErrPersistence, err)
	}
	return &user, nil
}

func (r *UserRepository) Save(ctx context.Context, user domain.User) error {
	hash, err := hashOf(user)
	if err != nil {
		return err
	}

	lat, lng := coordinates(user)
	err = r.users.UpsertUser(ctx, db.CreateUserParams{
		ID:           user.ID(),
		Name:         user.Name(),
		Email:        user.Email().Value(),
		PasswordHash: hash,
		Latitude:     lat,
		Longitude:    lng,
	})
	return mapWriteError(err)
}

func (r *UserRepository) Update(ctx context.Context, user domain.User) error {
	hash, err := hashOf(user)
	if err != nil {
		return err
	}

	params := db.UpdateUserParams{
		ID:    user.ID(),
		Name:  user.Name(),
		Email: user.Email().Value(),
	}
	params.Latitude, params.Longitude = coordinates(user)
	if hash != "" {
		params.PasswordHash = &hash
	}

	n, err := r.users.UpdateUser(ctx, params)
	if err != nil {
		return mapWriteError(err)
	}
	if n == 0 {
		return errs.NewError(errs.ErrUserNotFound)
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	n, err := r.users.DeleteUser(ctx, id)
	if err != nil {
		return errs.Wrap(errs.ErrPersistence, err)
	}
	if n == 0 {
		return errs.NewError(errs.ErrUserNotFound)
	}
	return nil
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if db.IsUniqueViolation(err) {
		return errs.Wrap(errs.ErrUserAlreadyExists, err)
	}
	return errs.Wrap(errs.ErrPersistence, err)
}

// hashOf hashes the transient password of user, or returns "" when it carries none.
func hashOf(user domain.User) (string, error) {
	pw, ok := user.Password()
	if !ok {
		return "", nil
	}
	hash, err := password.Hash(pw.Value())
	if err != nil {
		return "", errs.Wrap(errs.ErrPersistence, err)
	}
	return hash, nil
}

func coordinates(user domain.User) (*float64, *float64) {
	loc, ok := user.Location()
	if !ok {
		return nil, nil
	}
	lat, lng := loc.Latitude(), loc.Longitude()
	return &lat, &lng
}

func userFromInfo(info backend.UserInfo) (domain.User, error) {
	return buildUser(info.ID, info.Name, info.Email, info.Latitude, info.Longitude)
}

func userFromRow(row db.UserRow) (domain.User, error) {
	return buildUser(row.ID, row.Name, row.Email, row.Latitude, row.Longitude)
}

func buildUser(id, name, rawEmail string, lat, lng *float64) (domain.User, error) {
	email, err := domain.NewEmail(rawEmail)
	if err != nil {
		return domain.User{}, err
	}

	params := domain.UserParams{ID: id, Name: name, Email: email}
	if lat != nil && lng != nil {
		loc := domain.NewGeoLocation(*lat, *lng)
		params.Location = &loc
	}
	return domain.NewUser(params)
}
