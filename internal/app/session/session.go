/*
Package session tracks who is signed in on this device.

A Session starts in Verifying until Restore has checked the persisted credentials, then
moves between Unauthenticated and Authenticated as the user logs in and out. Every
transition is published on the Changes channel so a UI loop can re-render.
*/
package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/higgyo/app-dam/internal/app/usecase"
	"github.com/higgyo/app-dam/internal/domain"
	"github.com/higgyo/app-dam/internal/pkg/logx"
)

const changesBuffer = 16

type State int

const (
	Verifying State = iota
	Unauthenticated
	Authenticated
)

func (s State) String() string {
	switch s {
	case Verifying:
		return "verifying"
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Snapshot is the session state at one point in time. User is nil unless Authenticated.
type Snapshot struct {
	State State
	User  *domain.User
}

// Authenticator is the part of the user use cases a session drives.
type Authenticator interface {
	Login(ctx context.Context, p usecase.LoginParams) (domain.User, error)
	Logout(ctx context.Context) error
	Register(ctx context.Context, p usecase.RegisterParams) (domain.User, error)
	Update(ctx context.Context, p usecase.UpdateUserParams) (domain.User, error)
	Delete(ctx context.Context, id string) error
	VerifyAuthentication(ctx context.Context) *domain.User
}

var _ Authenticator = (*usecase.Users)(nil)

type Option func(*Session)

// WithAutoLogin signs the user in right after a successful registration.
func WithAutoLogin(enabled bool) Option {
	return func(s *Session) {
		s.autoLogin = enabled
	}
}

type Session struct {
	auth      Authenticator
	autoLogin bool

	mu    sync.RWMutex
	state State
	user  *domain.User

	changes chan Snapshot
	logger  zerolog.Logger
}

func New(auth Authenticator, opts ...Option) *Session {
	s := &Session{
		auth:    auth,
		state:   Verifying,
		changes: make(chan Snapshot, changesBuffer),
		logger:  logx.Component("session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// User returns a copy of the signed in user, or nil.
func (s *Session) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked().User
}

// Changes delivers a snapshot after every transition. When the reader falls behind the
// oldest pending snapshot is dropped, so the last one received is always current.
func (s *Session) Changes() <-chan Snapshot {
	return s.changes
}

// Restore resolves the Verifying state from the persisted session.
func (s *Session) Restore(ctx context.Context) Snapshot {
	user := s.auth.VerifyAuthentication(ctx)
	if user == nil {
		s.transition(Unauthenticated, nil)
	} else {
		s.transition(Authenticated, user)
	}
	return s.Snapshot()
}

// Login leaves the state untouched when the credentials are rejected.
func (s *Session) Login(ctx context.Context, p usecase.LoginParams) (domain.User, error) {
	user, err := s.auth.Login(ctx, p)
	if err != nil {
		s.logger.Info().Err(err).Msg("Login rejected")
		return domain.User{}, err
	}

	s.transition(Authenticated, &user)
	return user, nil
}

// Logout always clears the local session. A remote failure is still returned.
func (s *Session) Logout(ctx context.Context) error {
	err := s.auth.Logout(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Remote logout failed, clearing local session anyway")
	}

	s.transition(Unauthenticated, nil)
	return err
}

func (s *Session) Register(ctx context.Context, p usecase.RegisterParams) (domain.User, error) {
	user, err := s.auth.Register(ctx, p)
	if err != nil {
		return domain.User{}, err
	}
	if !s.autoLogin {
		return user, nil
	}

	return s.Login(ctx, usecase.LoginParams{Email: p.Email, Password: p.Password})
}

// UpdateUser refreshes the signed in user when it is the one being updated.
func (s *Session) UpdateUser(ctx context.Context, p usecase.UpdateUserParams) (domain.User, error) {
	user, err := s.auth.Update(ctx, p)
	if err != nil {
		return domain.User{}, err
	}

	if s.isCurrent(user.ID()) {
		s.transition(Authenticated, &user)
	}
	return user, nil
}

// DeleteUser signs out when the deleted account is the signed in one.
func (s *Session) DeleteUser(ctx context.Context, id string) error {
	if err := s.auth.Delete(ctx, id); err != nil {
		return err
	}

	if s.isCurrent(id) {
		return s.Logout(ctx)
	}
	return nil
}

func (s *Session) isCurrent(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.user.ID() == id
}

func (s *Session) transition(state State, user *domain.User) {
	s.mu.Lock()
	from := s.state
	s.state = state
	s.user = nil
	if user != nil {
		u := user.WithoutPassword()
		s.user = &u
	}
	snap := s.snapshotLocked()
	s.publishLocked(snap)
	s.mu.Unlock()

	event := s.logger.Info().Str("from", from.String()).Str("to", state.String())
	if snap.User != nil {
		event = event.Str("user_id", snap.User.ID())
	}
	event.Msg("Session state changed")
}

// publishLocked never blocks. Holding mu keeps snapshots in transition order.
func (s *Session) publishLocked(snap Snapshot) {
	for {
		select {
		case s.changes <- snap:
			return
		default:
		}

		select {
		case <-s.changes:
		default:
		}
	}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{State: s.state}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}
