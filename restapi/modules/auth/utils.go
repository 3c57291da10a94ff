// Package auth provides authentication and authorization utilities.
//
//revive:disable-next-line:var-naming
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Token claims fixed by this service
const (
	TokenIssuer   = "pdvd-idp"
	TokenAudience = "scim"
)

// ============================================================================
// PASSWORD HASHING
// ============================================================================

// HashPassword generates a bcrypt hash of the password
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with a hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// ============================================================================
// JWT TOKEN MANAGEMENT
// ============================================================================

// Claims represents the claims of a SCIM bearer token
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Tokens mints and validates SCIM bearer tokens signed with HS256
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates a token manager. secret must not be empty.
func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret cannot be empty")
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// GenerateJWT generates a SCIM bearer token for username
func (t *Tokens) GenerateJWT(username string) (string, time.Time, error) {
	now := t.now()
	expirationTime := now.Add(t.ttl)

	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    TokenIssuer,
			Subject:   username,
			Audience:  jwt.ClaimStrings{TokenAudience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expirationTime, nil
}

// ValidateJWT validates a SCIM bearer token and returns the claims
func (t *Tokens) ValidateJWT(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(TokenAudience),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// ============================================================================
// TOKEN GENERATION
// ============================================================================

// GenerateSecureToken generates a cryptographically secure random token.
// Used for the ephemeral JWT secret when none is configured.
func GenerateSecureToken(length int) (string, error) {
	if length <= 0 {
		length = 32 // Default to 32 bytes
	}

	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}

	return base64.URLEncoding.EncodeToString(bytes), nil
}

// GenerateBackupCodes returns n random six-digit one-time codes
func GenerateBackupCodes(n int) ([]string, error) {
	limit := big.NewInt(1000000)
	codes := make([]string, 0, n)
	for len(codes) < n {
		v, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return nil, err
		}
		codes = append(codes, fmt.Sprintf("%06d", v.Int64()))
	}
	return codes, nil
}
