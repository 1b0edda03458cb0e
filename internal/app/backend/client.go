package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/higgyo/app-dam/internal/pkg/errs"
	"github.com/higgyo/app-dam/internal/pkg/logx"
	"github.com/higgyo/app-dam/internal/pkg/resp"
)

const (
	// DefaultTimeout bounds every backend call.
	DefaultTimeout = 10 * time.Second

	maxResponseBytes = 1 << 20
)

// Client talks to the functions service and owns the signed-in session.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenStore
	logger  zerolog.Logger
	now     func() time.Time
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func NewClient(baseURL string, tokens TokenStore, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		tokens:  tokens,
		logger:  logx.Component("backend"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SignUp creates an account. It does not sign in.
func (c *Client) SignUp(ctx context.Context, in SignUpRequest) (UserInfo, error) {
	var user UserInfo
	if err := c.do(ctx, http.MethodPost, PathSignUp, "", in, &user); err != nil {
		return UserInfo{}, err
	}
	return user, nil
}

// SignIn exchanges credentials for a session and persists it.
func (c *Client) SignIn(ctx context.Context, email, password string) (Session, error) {
	var session Session
	if err := c.do(ctx, http.MethodPost, PathToken, "", SignInRequest{Email: email, Password: password}, &session); err != nil {
		return Session{}, err
	}

	if err := c.tokens.Save(ctx, session); err != nil {
		return Session{}, errs.Wrap(errs.ErrPersistence, err)
	}

	c.logger.Debug().Str("user_id", session.User.ID).Msg("Session stored")
	return session, nil
}

// Session returns the stored session, or nil when nobody is signed in or the token expired.
func (c *Client) Session(ctx context.Context) (*Session, error) {
	session, err := c.tokens.Load(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ErrPersistence, err)
	}
	if session == nil {
		return nil, nil
	}

	if session.Expired(c.now()) {
		c.logger.Info().Str("user_id", session.User.ID).Msg("Stored session expired, clearing")
		if err := c.tokens.Clear(ctx); err != nil {
			return nil, errs.Wrap(errs.ErrPersistence, err)
		}
		return nil, nil
	}

	return session, nil
}

// AccessToken returns the bearer token of the current session.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	session, err := c.Session(ctx)
	if err != nil {
		return "", err
	}
	if session == nil {
		return "", errs.NewError(errs.ErrUnauthorized)
	}
	return session.AccessToken, nil
}

// CurrentUserID returns the id of the signed-in user without a round trip.
func (c *Client) CurrentUserID(ctx context.Context) (string, error) {
	session, err := c.Session(ctx)
	if err != nil {
		return "", err
	}
	if session == nil {
		return "", errs.NewError(errs.ErrUnauthorized)
	}
	return session.User.ID, nil
}

// User asks the service who the stored token belongs to. A missing or rejected token
// yields nil; a rejected token is also cleared.
func (c *Client) User(ctx context.Context) (*UserInfo, error) {
	session, err := c.Session(ctx)
	if err != nil || session == nil {
		return nil, err
	}

	var user UserInfo
	err = c.do(ctx, http.MethodGet, PathUser, session.AccessToken, nil, &user)
	if errs.IsKind(err, errs.KindAuth) {
		c.logger.Info().Msg("Stored token rejected by backend, clearing")
		if clearErr := c.tokens.Clear(ctx); clearErr != nil {
			return nil, errs.Wrap(errs.ErrPersistence, clearErr)
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	session.User = user
	if err := c.tokens.Save(ctx, *session); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to refresh stored user")
	}
	return &user, nil
}

// SignOut clears the stored session and revokes it remotely. The local session is cleared
// even when the remote call fails; that failure is still returned.
func (c *Client) SignOut(ctx context.Context) error {
	session, loadErr := c.Session(ctx)

	if err := c.tokens.Clear(ctx); err != nil {
		return errs.Wrap(errs.ErrPersistence, err)
	}
	if loadErr != nil {
		return loadErr
	}
	if session == nil {
		return nil
	}

	if err := c.do(ctx, http.MethodPost, PathLogout, session.AccessToken, nil, nil); err != nil {
		c.logger.Warn().Err(err).Msg("Remote logout failed, local session cleared")
		return err
	}
	return nil
}

// Invoke calls the remote function name with the current session's token.
func (c *Client) Invoke(ctx context.Context, name string, in, out any) error {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, PathFunctions+name, token, in, out)
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errs.Wrap(errs.ErrInvalidParams, fmt.Errorf("marshaling request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errs.Wrap(errs.ErrBackendUnavailable, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := c.now()
	res, err := c.http.Do(req)
	if err != nil {
		return errs.Wrap(errs.ErrBackendUnavailable, fmt.Errorf("sending request: %w", err))
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return errs.Wrap(errs.ErrBackendUnavailable, fmt.Errorf("reading response: %w", err))
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", res.StatusCode).
		Dur("latency", c.now().Sub(start)).
		Msg("Backend call")

	var envelope resp.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return errs.Wrap(errs.ErrBackendUnavailable,
			fmt.Errorf("backend returned status %d: %s", res.StatusCode, strings.TrimSpace(string(raw))))
	}

	if envelope.Code != 0 || res.StatusCode >= http.StatusBadRequest {
		return remoteError(res.StatusCode, envelope)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return errs.Wrap(errs.ErrBackendUnavailable, fmt.Errorf("decoding response data: %w", err))
		}
	}
	return nil
}

// remoteError rebuilds the taxonomy error from an error envelope. Codes unknown to this
// build are classified by HTTP status.
func remoteError(status int, envelope resp.Envelope) *errs.CustomError {
	var customErr *errs.CustomError
	if errs.Known(envelope.Code) {
		customErr = errs.NewError(envelope.Code)
	} else {
		customErr = errs.NewError(codeForStatus(status))
	}

	if envelope.Message != "" {
		customErr.Message = envelope.Message
	}
	return customErr
}

func codeForStatus(status int) int {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return errs.ErrInvalidParams
	case http.StatusUnauthorized, http.StatusForbidden:
		return errs.ErrUnauthorized
	case http.StatusTooManyRequests:
		return errs.ErrRateLimitExceeded
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return errs.ErrBackendUnavailable
	default:
		return errs.ErrUnknown
	}
}
