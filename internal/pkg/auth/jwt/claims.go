/*
Package jwt issues and verifies the session tokens of the functions service and extracts
the caller identity from incoming requests.
*/
package jwt

import "github.com/golang-jwt/jwt"

// Payload is the claim set of a session token.
type Payload struct {
	jwt.StandardClaims

	// UserID is the id of the signed-in user; it is also copied into Subject.
	UserID string `json:"uid"`

	// Email is the address the user signed in with.
	Email string `json:"email"`
}
