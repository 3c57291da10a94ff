package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/ortelius/pdvd-idp/internal/config"
	"github.com/ortelius/pdvd-idp/restapi/modules/cac"
	"github.com/ortelius/pdvd-idp/restapi/modules/scim"
	"go.uber.org/zap"
)

// sessionState is what a request's session says about its user
type sessionState struct {
	username      string
	authenticated bool
	totpVerified  bool
}

func (s sessionState) fullyAuthenticated() bool {
	return s.authenticated && s.totpVerified
}

func readSession(sess *session.Session) sessionState {
	var st sessionState
	st.authenticated, _ = sess.Get(sessionAuthenticated).(bool)
	st.username, _ = sess.Get(sessionUsername).(string)
	st.totpVerified, _ = sess.Get(sessionTOTPVerified).(bool)
	if st.username == "" {
		st.authenticated = false
	}
	return st
}

// RequireLogin redirects to the login page unless the session passed the password check
func RequireLogin(store *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := store.Get(c)
		if err != nil {
			return err
		}
		st := readSession(sess)
		if !st.authenticated {
			return c.Redirect("/login", fiber.StatusFound)
		}
		c.Locals("username", st.username)
		return c.Next()
	}
}

// RequireFullAuth requires both the password check and TOTP verification.
// Sessions without a password check go to the login page, those without
// TOTP verification to the MFA page.
func RequireFullAuth(store *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := store.Get(c)
		if err != nil {
			return err
		}
		st := readSession(sess)
		if !st.authenticated {
			return c.Redirect("/login", fiber.StatusFound)
		}
		if !st.totpVerified {
			return c.Redirect("/verify-mfa", fiber.StatusFound)
		}
		c.Locals("username", st.username)
		return c.Next()
	}
}

// SCIMGate protects the SCIM and GraphQL endpoints according to scim.auth_mode.
// Rejected requests get a SCIM 401 error document.
func SCIMGate(cfg config.SCIMSection, tokens *Tokens, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch cfg.AuthMode {
		case config.AuthModeNone:
			return c.Next()

		case config.AuthModeCAC:
			if !cac.Verified(c) {
				logger.Info("SCIM request without verified client certificate", zap.String("path", c.Path()))
				return scim.WriteError(c, scim.NewError(fiber.StatusUnauthorized, "Client certificate required"))
			}
			c.Locals("username", cac.Certificate(c).SubjectDN)
			return c.Next()

		default:
			token, ok := bearerToken(c)
			if !ok {
				c.Set(fiber.HeaderWWWAuthenticate, `Bearer realm="scim"`)
				return scim.WriteError(c, scim.NewError(fiber.StatusUnauthorized, "Authentication required"))
			}
			if staticTokenMatch(token, cfg.StaticTokens) {
				c.Locals("username", "static-token")
				return c.Next()
			}
			if tokens != nil {
				if claims, err := tokens.ValidateJWT(token); err == nil {
					c.Locals("username", claims.Subject)
					return c.Next()
				}
			}
			logger.Info("SCIM request with invalid bearer token", zap.String("path", c.Path()))
			c.Set(fiber.HeaderWWWAuthenticate, `Bearer realm="scim", error="invalid_token"`)
			return scim.WriteError(c, scim.NewError(fiber.StatusUnauthorized, "Invalid or expired token"))
		}
	}
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	scheme, token, found := strings.Cut(c.Get(fiber.HeaderAuthorization), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func staticTokenMatch(token string, allowed []string) bool {
	for _, t := range allowed {
		if t != "" && subtle.ConstantTimeCompare([]byte(token), []byte(t)) == 1 {
			return true
		}
	}
	return false
}
