// Package auth provides authentication and authorization types for the REST API.
package auth

import "time"

// Session keys
const (
	sessionAuthenticated = "authenticated"
	sessionUsername      = "username"
	sessionTOTPVerified  = "totp_verified"
)

// LoginRequest defines the login form
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// MFARequest defines the TOTP code form
type MFARequest struct {
	Code string `json:"totp_code" form:"totp_code"`
}

// TokenResponse is returned when a SCIM bearer token is minted
type TokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}
