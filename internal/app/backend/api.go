/*
Package backend is the client side of the functions service: the authentication endpoints,
the remote functions and the persisted session token.

This file defines the request and response bodies shared by the client and the service
handlers.
*/
package backend

import "time"

// Route paths served by the functions service.
const (
	PathSignUp    = "/auth/v1/signup"
	PathToken     = "/auth/v1/token"
	PathUser      = "/auth/v1/user"
	PathLogout    = "/auth/v1/logout"
	PathFunctions = "/functions/v1/"

	FunctionCreateRoom = "create-room"
	FunctionEnterRoom  = "enter-room"
)

type SignUpRequest struct {
	Name      string   `json:"name" validate:"required,max=100"`
	Email     string   `json:"email" validate:"required,max=254"`
	Password  string   `json:"password" validate:"required,max=128"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UserInfo is the public view of an account. It never carries the password.
type UserInfo struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Session is what a successful sign-in returns and what the TokenStore persists.
type Session struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresAt   int64    `json:"expires_at"`
	User        UserInfo `json:"user"`
}

// Expired reports whether the token is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return s.ExpiresAt > 0 && now.Unix() >= s.ExpiresAt
}

type CreateRoomRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=128"`
}

type EnterRoomRequest struct {
	Code     string `json:"code" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RoomInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	CreatorID string `json:"creator_id"`
}
