package memory

import (
	"context"

	"github.com/samber/lo"

	"github.com/higgyo/app-dam/internal/domain"
	"github.com/higgyo/app-dam/internal/pkg/auth/password"
	"github.com/higgyo/app-dam/internal/pkg/errs"
)

// UserRepository is the in-memory domain.UserRepository.
type UserRepository struct {
	store *Store
}

var _ domain.UserRepository = (*UserRepository)(nil)

func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{store: store}
}

func (r *UserRepository) Login(_ context.Context, email domain.Email, pw domain.Password) (domain.User, error) {
	r.store.mu.RLock()
	i := r.store.userIndexByEmailLocked(email.Value())
	var rec userRecord
	if i >= 0 {
		rec = r.store.users[i]
	}
	r.store.mu.RUnlock()
	if i < 0 {
		return domain.User{}, errs.NewError(errs.ErrInvalidCredentials)
	}

	// Verified outside the store lock.
	ok, err := password.Verify(pw.Value(), rec.passwordHash)
	if err != nil || !ok {
		return domain.User{}, errs.NewError(errs.ErrInvalidCredentials)
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.userIndexLocked(rec.id) < 0 {
		return domain.User{}, errs.NewError(errs.ErrInvalidCredentials)
	}
	r.store.currentUserID = rec.id
	return rec.toDomain()
}

func (r *UserRepository) Register(_ context.Context, name string, email domain.Email, pw domain.Password) (domain.User, error) {
	user, err := domain.NewUser(domain.UserParams{Name: name, Email: email, Password: &pw})
	if err != nil {
		return domain.User{}, err
	}

	hash, err := password.Hash(pw.Value())
	if err != nil {
		return domain.User{}, errs.Wrap(errs.ErrPersistence, err)
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.store.userIndexByEmailLocked(email.Value()) >= 0 {
		return domain.User{}, errs.NewError(errs.ErrUserAlreadyExists)
	}

	rec := recordFromUser(user)
	rec.passwordHash = hash
	r.store.users = append(r.store.users, rec)

	return user.WithoutPassword(), nil
}

func (r *UserRepository) Logout(context.Context) error {
	r.store.mu.Lock()
	r.store.currentUserID = ""
	r.store.mu.Unlock()
	return nil
}

func (r *UserRepository) CurrentUser(ctx context.Context) (*domain.User, error) {
	id := r.store.CurrentUserID()
	if id == "" {
		return nil, nil
	}
	return r.FindByID(ctx, id)
}

func (r *UserRepository) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	i := r.store.userIndexLocked(id)
	if i < 0 {
		return nil, nil
	}
	return r.store.users[i].toDomainPtr()
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	i := r.store.userIndexByEmailLocked(email)
	if i < 0 {
		return nil, nil
	}
	return r.store.users[i].toDomainPtr()
}

// Save inserts user or replaces the row with the same id. The stored hash is kept unless
// user carries a password.
func (r *UserRepository) Save(_ context.Context, user domain.User) error {
	rec := recordFromUser(user)
	if pw, ok := user.Password(); ok {
		hash, err := password.Hash(pw.Value())
		if err != nil {
			return errs.Wrap(errs.ErrPersistence, err)
		}
		rec.passwordHash = hash
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if j := r.store.userIndexByEmailLocked(rec.email); j >= 0 && r.store.users[j].id != rec.id {
		return errs.NewError(errs.ErrUserAlreadyExists)
	}

	if i := r.store.userIndexLocked(rec.id); i >= 0 {
		if rec.passwordHash == "" {
			rec.passwordHash = r.store.users[i].passwordHash
		}
		r.store.users[i] = rec
		return nil
	}

	r.store.users = append(r.store.users, rec)
	return nil
}

func (r *UserRepository) Update(_ context.Context, user domain.User) error {
	rec := recordFromUser(user)
	if pw, ok := user.Password(); ok {
		hash, err := password.Hash(pw.Value())
		if err != nil {
			return errs.Wrap(errs.ErrPersistence, err)
		}
		rec.passwordHash = hash
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	i := r.store.userIndexLocked(rec.id)
	if i < 0 {
		return errs.NewError(errs.ErrUserNotFound)
	}
	if j := r.store.userIndexByEmailLocked(rec.email); j >= 0 && j != i {
		return errs.NewError(errs.ErrUserAlreadyExists)
	}

	if rec.passwordHash == "" {
		rec.passwordHash = r.store.users[i].passwordHash
	}
	r.store.users[i] = rec
	return nil
}

// Delete removes the user and its memberships, signing it out if it is the current user.
func (r *UserRepository) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	i := r.store.userIndexLocked(id)
	if i < 0 {
		return errs.NewError(errs.ErrUserNotFound)
	}

	r.store.users = append(r.store.users[:i], r.store.users[i+1:]...)
	for roomID, members := range r.store.members {
		r.store.members[roomID] = lo.Without(members, id)
	}
	if r.store.currentUserID == id {
		r.store.currentUserID = ""
	}
	return nil
}

func recordFromUser(u domain.User) userRecord {
	rec := userRecord{
		id:    u.ID(),
		name:  u.Name(),
		email: u.Email().Value(),
	}
	if loc, ok := u.Location(); ok {
		lat, lng := loc.Latitude(), loc.Longitude()
		rec.latitude, rec.longitude = &lat, &lng
	}
	return rec
}

func (rec userRecord) toDomain() (domain.User, error) {
	email, err := domain.NewEmail(rec.email)
	if err != nil {
		return domain.User{}, err
	}

	params := domain.UserParams{ID: rec.id, Name: rec.name, Email: email}
	if rec.latitude != nil && rec.longitude != nil {
		loc := domain.NewGeoLocation(*rec.latitude, *rec.longitude)
		params.Location = &loc
	}
	return domain.NewUser(params)
}

func (rec userRecord) toDomainPtr() (*domain.User, error) {
	user, err := rec.toDomain()
	if err != nil {
		return nil, err
	}
	return &user, nil
}
