/*
Package handler provides the HTTP handlers and routing of the functions service.

This file holds the authentication endpoints: sign-up, token issuance, the current user
and logout.
*/
package handler

import (
	"net/http"
	"strings"

	"github.com/higgyo/app-dam/internal/app/backend"
	"github.com/higgyo/app-dam/internal/app/db"
	"github.com/higgyo/app-dam/internal/domain"
	"github.com/higgyo/app-dam/internal/pkg/auth/jwt"
	"github.com/higgyo/app-dam/internal/pkg/auth/password"
	"github.com/higgyo/app-dam/internal/pkg/errs"
	"github.com/higgyo/app-dam/internal/pkg/logx"
	"github.com/higgyo/app-dam/internal/pkg/req"
	"github.com/higgyo/app-dam/internal/pkg/resp"
	"github.com/higgyo/app-dam/internal/pkg/validate"
)

const tokenType = "bearer"

func userInfo(row db.UserRow) backend.UserInfo {
	return backend.UserInfo{
		ID:        row.ID,
		Name:      row.Name,
		Email:     row.Email,
		Latitude:  row.Latitude,
		Longitude: row.Longitude,
	}
}

// bindValid decodes and validates the body into dst, answering the error itself.
func bindValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if customErr := req.BindJSON(w, r, dst); customErr != nil {
		resp.RespondError(w, r, customErr)
		return false
	}
	if customErr := validate.Struct(dst); customErr != nil {
		resp.RespondError(w, r, customErr)
		return false
	}
	return true
}

// HandleSignUp creates an account. It does not issue a token.
func HandleSignUp(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input backend.SignUpRequest
		if !bindValid(w, r, &input) {
			return
		}

		name := strings.TrimSpace(input.Name)
		if name == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrNameRequired))
			return
		}
		email, err := domain.NewEmail(input.Email)
		if err != nil {
			resp.RespondError(w, r, errs.Normalize(err, errs.ErrInvalidEmail))
			return
		}
		if _, err := domain.NewPassword(input.Password); err != nil {
			resp.RespondError(w, r, errs.Normalize(err, errs.ErrInvalidPassword))
			return
		}

		hash, err := password.Hash(input.Password)
		if err != nil {
			resp.RespondError(w, r, errs.Wrap(errs.ErrUnknown, err))
			return
		}

		row, err := deps.Store.CreateUser(r.Context(), db.CreateUserParams{
			Name:         name,
			Email:        email.Value(),
			PasswordHash: hash,
			Latitude:     input.Latitude,
			Longitude:    input.Longitude,
		})
		if err != nil {
			if db.IsUniqueViolation(err) {
				logx.Warn("Sign-up conflict: email already registered")
				resp.RespondError(w, r, errs.NewError(errs.ErrUserAlreadyExists))
				return
			}
			resp.RespondError(w, r, errs.Wrap(errs.ErrPersistence, err))
			return
		}

		logx.Info("User signed up", "user_id", row.ID)
		resp.RespondSuccess(w, r, userInfo(row))
	}
}

// HandleToken verifies the credentials and issues a session token. Unknown e-mails and
// wrong passwords fail the same way.
func HandleToken(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input backend.SignInRequest
		if !bindValid(w, r, &input) {
			return
		}

		row, err := deps.Store.GetUserByEmail(r.Context(), input.Email)
		if err != nil {
			if db.IsNotFound(err) {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
				return
			}
			resp.RespondError(w, r, errs.Wrap(errs.ErrPersistence, err))
			return
		}

		ok, err := password.Verify(input.Password, row.PasswordHash)
		if err != nil || !ok {
			logx.Warn("Sign-in rejected: password mismatch", "user_id", row.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		payload := &jwt.Payload{UserID: row.ID, Email: row.Email}
		token, err := jwt.GenerateToken(payload, deps.Config.JWTSecret, jwt.SessionExpiration)
		if err != nil {
			logx.Error(err, "Token generation failed", "user_id", row.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, backend.Session{
			AccessToken: token,
			TokenType:   tokenType,
			ExpiresAt:   payload.ExpiresAt,
			User:        userInfo(row),
		})
	}
}

// HandleUser returns the account behind the bearer token.
func HandleUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		row, err := deps.Store.GetUserByID(r.Context(), identity.UserID)
		if err != nil {
			if db.IsNotFound(err) {
				logx.Info("Token refers to a deleted account", "user_id", identity.UserID)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}
			resp.RespondError(w, r, errs.Wrap(errs.ErrPersistence, err))
			return
		}

		resp.RespondSuccess(w, r, userInfo(row))
	}
}

// HandleLogout acknowledges the logout. Tokens are stateless, so the client discarding
// its copy is what ends the session.
func HandleLogout(_ *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if identity := jwt.GetPayloadFromContext(r); identity != nil {
			logx.Info("User logged out", "user_id", identity.UserID)
		}
		resp.RespondSuccess(w, r, nil)
	}
}
