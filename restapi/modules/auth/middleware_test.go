package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/ortelius/pdvd-idp/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func gatedApp(t *testing.T, mode string, tokens *Tokens, static ...string) *fiber.App {
	t.Helper()
	app := fiber.New()
	cfg := config.SCIMSection{AuthMode: mode, StaticTokens: static}
	app.Get("/scim/v2/Users", SCIMGate(cfg, tokens, zap.NewNop()), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("username").(string))
	})
	return app
}

func gateStatus(t *testing.T, app *fiber.App, headers map[string]string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/scim/v2/Users", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestSCIMGateNone(t *testing.T) {
	app := fiber.New()
	app.Get("/", SCIMGate(config.SCIMSection{AuthMode: config.AuthModeNone}, nil, zap.NewNop()), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSCIMGateBearer(t *testing.T) {
	tokens, err := NewTokens("gate-secret", time.Hour)
	require.NoError(t, err)
	app := gatedApp(t, config.AuthModeBearer, tokens, "static-123")

	token, _, err := tokens.GenerateJWT("demo")
	require.NoError(t, err)

	other, err := NewTokens("another-secret", time.Hour)
	require.NoError(t, err)
	forged, _, err := other.GenerateJWT("demo")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"basic scheme", "Basic ZGVtbzpjaGFuZ2VtZQ==", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"wrong signing key", "Bearer " + forged, http.StatusUnauthorized},
		{"minted token", "Bearer " + token, http.StatusOK},
		{"lowercase scheme", "bearer " + token, http.StatusOK},
		{"static token", "Bearer static-123", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			assert.Equal(t, tt.want, gateStatus(t, app, headers))
		})
	}
}

func TestSCIMGateRejectionIsSCIMError(t *testing.T) {
	app := gatedApp(t, config.AuthModeBearer, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/scim/v2/Users", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "application/scim+json", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")
}

func TestSCIMGateCAC(t *testing.T) {
	app := gatedApp(t, config.AuthModeCAC, nil)

	assert.Equal(t, http.StatusUnauthorized, gateStatus(t, app, nil))
	assert.Equal(t, http.StatusUnauthorized, gateStatus(t, app, map[string]string{"X-Client-Verified": "FAILED:unknown ca"}))
	assert.Equal(t, http.StatusOK, gateStatus(t, app, map[string]string{
		"X-Client-Verified": "SUCCESS",
		"X-Subject-DN":      "CN=DOE.JOHN.1234567890",
	}))
}

func TestTokenClaims(t *testing.T) {
	tokens, err := NewTokens("claims-secret", time.Minute)
	require.NoError(t, err)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return now }

	token, expiresAt, err := tokens.GenerateJWT("demo")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute), expiresAt)

	claims, err := tokens.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "demo", claims.Username)
	assert.Equal(t, jwt.ClaimStrings{TokenAudience}, claims.Audience)

	tokens.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = tokens.ValidateJWT(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	_, err = NewTokens("", time.Minute)
	assert.Error(t, err)
}

func TestTokenWrongAudienceRejected(t *testing.T) {
	tokens, err := NewTokens("aud-secret", time.Hour)
	require.NoError(t, err)

	claims := jwt.RegisteredClaims{
		Subject:   "demo",
		Issuer:    TokenIssuer,
		Audience:  jwt.ClaimStrings{"web"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("aud-secret"))
	require.NoError(t, err)

	_, err = tokens.ValidateJWT(signed)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidAudience)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("changeme")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("changeme", hash))
	assert.False(t, CheckPasswordHash("changeMe", hash))
}

func TestGenerateBackupCodes(t *testing.T) {
	codes, err := GenerateBackupCodes(5)
	require.NoError(t, err)
	require.Len(t, codes, 5)
	for _, c := range codes {
		assert.Regexp(t, `^\d{6}$`, c)
	}

	none, err := GenerateBackupCodes(0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMFAValidate(t *testing.T) {
	m := NewMFA(config.Default().MFA)
	enrollment, err := m.Enroll("demo")
	require.NoError(t, err)
	assert.Contains(t, enrollment.URL, "otpauth://totp/")
	assert.Contains(t, enrollment.URL, "issuer=Demo")
	assert.NotEmpty(t, enrollment.QRCode)
	assert.Len(t, enrollment.BackupCodes, 3)

	now := time.Now()
	m.now = func() time.Time { return now }

	code := currentCode(t, enrollment.Secret)
	assert.True(t, m.Validate(code, enrollment.Secret))
	assert.False(t, m.Validate("", enrollment.Secret))
	assert.False(t, m.Validate(code, ""))

	// codes older than the allowed skew are rejected
	m.now = func() time.Time { return now.Add(5 * time.Minute) }
	assert.False(t, m.Validate(code, enrollment.Secret))
}
