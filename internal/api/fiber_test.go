package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/ortelius/pdvd-idp/database"
	"github.com/ortelius/pdvd-idp/events/modules/users"
	"github.com/ortelius/pdvd-idp/internal/config"
	"github.com/ortelius/pdvd-idp/restapi"
	"github.com/ortelius/pdvd-idp/restapi/modules/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newApp(t *testing.T, mutate func(*config.Config)) (*fiber.App, *auth.Tokens) {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.JWTSecret = "integration-secret"
	cfg.SCIM.StaticTokens = []string{"provisioner-token"}
	if mutate != nil {
		mutate(cfg)
	}

	conn, err := database.InitializeDatabase()
	require.NoError(t, err)
	accounts := database.NewAccountRepository(conn)
	require.NoError(t, auth.SeedAccounts(context.Background(), accounts, cfg.Accounts, zap.NewNop()))

	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	require.NoError(t, err)

	app, err := NewFiberApp(restapi.Services{
		Config:    cfg,
		Users:     database.NewUserStore(conn, zap.NewNop()),
		Accounts:  accounts,
		Sessions:  NewSessionStore(cfg.Auth),
		Tokens:    tokens,
		MFA:       auth.NewMFA(cfg.MFA),
		Publisher: users.NoopPublisher{},
		Logger:    zap.NewNop(),
	})
	require.NoError(t, err)
	return app, tokens
}

func send(t *testing.T, app *fiber.App, method, path, body string, headers map[string]string) (*http.Response, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func TestHealth(t *testing.T) {
	app, _ := newApp(t, nil)

	resp, body := send(t, app, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"healthy"}`, body)
}

func TestSCIMRequiresBearerToken(t *testing.T) {
	app, tokens := newApp(t, nil)

	resp, _ := send(t, app, http.MethodGet, "/scim/v2/Users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, _, err := tokens.GenerateJWT("demo")
	require.NoError(t, err)

	for _, bearer := range []string{token, "provisioner-token"} {
		headers := map[string]string{
			"Authorization": "Bearer " + bearer,
			"Content-Type":  "application/scim+json",
		}
		resp, body := send(t, app, http.MethodPost, "/scim/v2/Users", `{"userName":"jdoe"}`, headers)
		require.Equal(t, http.StatusCreated, resp.StatusCode, body)

		resp, body = send(t, app, http.MethodGet, "/scim/v2/Users", "", headers)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var list map[string]any
		require.NoError(t, json.Unmarshal([]byte(body), &list))
		assert.NotZero(t, list["totalResults"])
	}
}

func TestOpenModeServesEverything(t *testing.T) {
	app, _ := newApp(t, func(c *config.Config) { c.SCIM.AuthMode = config.AuthModeNone })

	resp, _ := send(t, app, http.MethodPost, "/scim/v2/Users", `{"userName":"jdoe"}`, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := send(t, app, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "jdoe")

	resp, body = send(t, app, http.MethodPost, "/api/v1/graphql", `{"query":"{ users { totalResults } }"}`,
		map[string]string{"Content-Type": "application/json"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"data":{"users":{"totalResults":1}}}`, body)
}

func TestLandingPageRequiresLoginWhenSCIMIsProtected(t *testing.T) {
	app, _ := newApp(t, nil)

	resp, _ := send(t, app, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestGraphQLBehindGate(t *testing.T) {
	app, _ := newApp(t, nil)

	resp, _ := send(t, app, http.MethodPost, "/api/v1/graphql", `{"query":"{ users { totalResults } }"}`,
		map[string]string{"Content-Type": "application/json"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := send(t, app, http.MethodPost, "/api/v1/graphql", `{"query":"{ users { totalResults } }"}`,
		map[string]string{"Content-Type": "application/json", "Authorization": "Bearer provisioner-token"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"data":{"users":{"totalResults":0}}}`, body)
}

func TestCACGate(t *testing.T) {
	app, _ := newApp(t, func(c *config.Config) { c.SCIM.AuthMode = config.AuthModeCAC })

	resp, _ := send(t, app, http.MethodGet, "/scim/v2/ServiceProviderConfig", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := send(t, app, http.MethodGet, "/scim/v2/ServiceProviderConfig", "", map[string]string{
		"X-Client-Verified": "SUCCESS",
		"X-Subject-DN":      "CN=DOE.JANE.1234567890",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "tlsclientcert")
}

func TestSessionStoreCookie(t *testing.T) {
	store := NewSessionStore(config.AuthSection{SessionTTL: time.Minute})

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		sess, err := store.Get(c)
		if err != nil {
			return err
		}
		sess.Set("k", "v")
		return sess.Save()
	})

	resp, _ := send(t, app, http.MethodGet, "/", "", nil)
	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			found = true
			assert.True(t, c.HttpOnly)
		}
	}
	assert.True(t, found)
}
