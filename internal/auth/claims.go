// Package auth provides JWT verification for both the REST and
// WebSocket surfaces. This service only ever validates a token minted
// upstream; it never issues one itself.
package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the shape a valid token must carry: an authenticated
// user's opaque string identity.
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}
