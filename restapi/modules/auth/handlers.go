// Package auth provides authentication handlers for Fiber.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/ortelius/pdvd-idp/database"
	"github.com/ortelius/pdvd-idp/internal/config"
	"github.com/ortelius/pdvd-idp/model"
	"github.com/ortelius/pdvd-idp/restapi/views"
	"go.uber.org/zap"
)

// Handler serves the password login, TOTP MFA pages and token minting
type Handler struct {
	accounts *database.AccountRepository
	sessions *session.Store
	tokens   *Tokens
	mfa      *MFA
	logger   *zap.Logger
}

// NewHandler creates the auth handler
func NewHandler(accounts *database.AccountRepository, sessions *session.Store, tokens *Tokens, mfa *MFA, logger *zap.Logger) *Handler {
	return &Handler{
		accounts: accounts,
		sessions: sessions,
		tokens:   tokens,
		mfa:      mfa,
		logger:   logger,
	}
}

// RegisterRoutes mounts the login and MFA pages on app and the token endpoint on api
func (h *Handler) RegisterRoutes(app fiber.Router, api fiber.Router) {
	app.Get("/login", h.LoginPage)
	app.Post("/login", h.Login)
	app.Post("/logout", h.Logout)

	app.Get("/setup-mfa", RequireLogin(h.sessions), h.SetupMFAPage)
	app.Post("/setup-mfa", RequireLogin(h.sessions), h.SetupMFA)
	app.Get("/verify-mfa", RequireLogin(h.sessions), h.VerifyMFAPage)
	app.Post("/verify-mfa", RequireLogin(h.sessions), h.VerifyMFA)
	app.Get("/invalid-token", h.InvalidToken)

	app.Get("/protected", RequireFullAuth(h.sessions), h.Protected)
	app.Get("/backup-codes", RequireFullAuth(h.sessions), h.BackupCodes)

	api.Post("/auth/token", h.IssueToken)
}

// ============================================================================
// LOGIN
// ============================================================================

// LoginPage renders the login form
func (h *Handler) LoginPage(c *fiber.Ctx) error {
	return views.Render(c, fiber.StatusOK, views.Login, nil)
}

// Login checks the password and starts a session. The next step is MFA
// verification for enrolled accounts and MFA setup for the others.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return views.Render(c, fiber.StatusBadRequest, views.Login, fiber.Map{"Error": "Invalid request body"})
	}

	if req.Username == "" || req.Password == "" {
		return views.Render(c, fiber.StatusBadRequest, views.Login, fiber.Map{"Error": "Username and password are required"})
	}

	account, err := h.accounts.Get(c.UserContext(), req.Username)
	if err != nil || !CheckPasswordHash(req.Password, account.PasswordHash) {
		h.logger.Info("Login failed", zap.String("username", req.Username))
		return views.Render(c, fiber.StatusUnauthorized, views.Login, fiber.Map{"Error": "Invalid username or password"})
	}

	sess, err := h.sessions.Get(c)
	if err != nil {
		return err
	}
	// new id and no state carried over from an earlier login
	if err := sess.Reset(); err != nil {
		return err
	}
	sess.Set(sessionAuthenticated, true)
	sess.Set(sessionUsername, account.Username)
	if err := sess.Save(); err != nil {
		return err
	}

	h.logger.Info("Login successful", zap.String("username", account.Username), zap.Bool("mfa_enrolled", account.HasMFA()))
	if account.HasMFA() {
		return c.Redirect("/verify-mfa", fiber.StatusFound)
	}
	return c.Redirect("/setup-mfa", fiber.StatusFound)
}

// Logout destroys the session
func (h *Handler) Logout(c *fiber.Ctx) error {
	sess, err := h.sessions.Get(c)
	if err != nil {
		return err
	}
	if err := sess.Destroy(); err != nil {
		return err
	}
	return c.Redirect("/login", fiber.StatusFound)
}

// ============================================================================
// MFA ENROLLMENT
// ============================================================================

// SetupMFAPage generates a TOTP secret and backup codes and shows the QR code.
// Reloading the page before confirming replaces the pending secret.
func (h *Handler) SetupMFAPage(c *fiber.Ctx) error {
	username := c.Locals("username").(string)

	var enrollment *Enrollment
	account, err := h.accounts.Update(c.UserContext(), username, func(a *model.Account) error {
		if a.HasMFA() {
			return nil
		}
		e, err := h.mfa.Enroll(a.Username)
		if err != nil {
			return err
		}
		a.MFASecret = e.Secret
		a.MFAVerified = false
		a.BackupCodes = e.BackupCodes
		enrollment = e
		return nil
	})
	if err != nil {
		return h.accountError(c, username, err)
	}
	if account.HasMFA() {
		return c.SendString("MFA has been already setup")
	}

	h.logger.Info("TOTP secret generated", zap.String("username", username))
	return views.Render(c, fiber.StatusOK, views.SetupMFA, fiber.Map{
		"QRCode": enrollment.QRCode,
		"Secret": enrollment.Secret,
	})
}

// SetupMFA confirms enrollment with the first code. A wrong code discards the
// pending secret so enrollment starts over.
func (h *Handler) SetupMFA(c *fiber.Ctx) error {
	username := c.Locals("username").(string)

	var req MFARequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid request body")
	}

	account, err := h.accounts.Get(c.UserContext(), username)
	if err != nil {
		return h.accountError(c, username, err)
	}
	if account.HasMFA() {
		return c.SendString("MFA has been already setup")
	}
	if !account.PendingMFA() {
		return c.Redirect("/setup-mfa", fiber.StatusFound)
	}

	if !h.mfa.Validate(req.Code, account.MFASecret) {
		if _, err := h.accounts.Update(c.UserContext(), username, func(a *model.Account) error {
			a.ResetMFA()
			return nil
		}); err != nil {
			return h.accountError(c, username, err)
		}
		h.logger.Info("MFA enrollment failed, secret cleared", zap.String("username", username))
		return c.Status(fiber.StatusUnauthorized).SendString("Invalid MFA code")
	}

	if _, err := h.accounts.Update(c.UserContext(), username, func(a *model.Account) error {
		if a.MFASecret != account.MFASecret {
			return errors.New("TOTP secret changed during enrollment")
		}
		a.MFAVerified = true
		return nil
	}); err != nil {
		return h.accountError(c, username, err)
	}

	if err := h.markVerified(c); err != nil {
		return err
	}
	h.logger.Info("MFA enrollment completed", zap.String("username", username))
	return c.Redirect("/protected", fiber.StatusFound)
}

// ============================================================================
// MFA VERIFICATION
// ============================================================================

// VerifyMFAPage renders the code form
func (h *Handler) VerifyMFAPage(c *fiber.Ctx) error {
	return views.Render(c, fiber.StatusOK, views.VerifyMFA, nil)
}

// VerifyMFA accepts a TOTP code or an unused backup code
func (h *Handler) VerifyMFA(c *fiber.Ctx) error {
	username := c.Locals("username").(string)

	var req MFARequest
	if err := c.BodyParser(&req); err != nil {
		return c.Redirect("/invalid-token", fiber.StatusFound)
	}

	account, err := h.accounts.Get(c.UserContext(), username)
	if err != nil {
		return h.accountError(c, username, err)
	}
	if !account.HasMFA() {
		return c.Redirect("/setup-mfa", fiber.StatusFound)
	}

	verified := h.mfa.Validate(req.Code, account.MFASecret)
	if !verified && req.Code != "" {
		verified, err = h.consumeBackupCode(c.UserContext(), username, req.Code)
		if err != nil {
			return h.accountError(c, username, err)
		}
	}
	if !verified {
		h.logger.Info("MFA verification failed", zap.String("username", username))
		return c.Redirect("/invalid-token", fiber.StatusFound)
	}

	if err := h.markVerified(c); err != nil {
		return err
	}
	h.logger.Info("MFA verification successful", zap.String("username", username))
	return c.Redirect("/protected", fiber.StatusFound)
}

// InvalidToken renders the MFA failure page
func (h *Handler) InvalidToken(c *fiber.Ctx) error {
	return views.Render(c, fiber.StatusOK, views.InvalidToken, nil)
}

// ============================================================================
// FULLY AUTHENTICATED PAGES
// ============================================================================

// Protected renders the page reachable only after password and MFA checks
func (h *Handler) Protected(c *fiber.Ctx) error {
	return views.Render(c, fiber.StatusOK, views.Protected, fiber.Map{
		"Username": c.Locals("username"),
	})
}

// BackupCodes lists the remaining backup codes
func (h *Handler) BackupCodes(c *fiber.Ctx) error {
	username := c.Locals("username").(string)
	account, err := h.accounts.Get(c.UserContext(), username)
	if err != nil {
		return h.accountError(c, username, err)
	}
	return views.Render(c, fiber.StatusOK, views.BackupCodes, fiber.Map{
		"BackupCodes": account.BackupCodes,
	})
}

// IssueToken mints a SCIM bearer token for a fully authenticated session
func (h *Handler) IssueToken(c *fiber.Ctx) error {
	sess, err := h.sessions.Get(c)
	if err != nil {
		return err
	}
	st := readSession(sess)
	if !st.fullyAuthenticated() {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Authentication required"})
	}

	token, expiresAt, err := h.tokens.GenerateJWT(st.username)
	if err != nil {
		h.logger.Error("Failed to generate token", zap.String("username", st.username), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate token"})
	}

	h.logger.Info("SCIM token issued", zap.String("username", st.username), zap.Time("expires_at", expiresAt))
	return c.JSON(TokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
	})
}

// ============================================================================
// HELPERS
// ============================================================================

func (h *Handler) markVerified(c *fiber.Ctx) error {
	sess, err := h.sessions.Get(c)
	if err != nil {
		return err
	}
	sess.Set(sessionTOTPVerified, true)
	return sess.Save()
}

func (h *Handler) consumeBackupCode(ctx context.Context, username, code string) (bool, error) {
	used := false
	_, err := h.accounts.Update(ctx, username, func(a *model.Account) error {
		used = a.ConsumeBackupCode(code)
		return nil
	})
	if err != nil {
		return false, err
	}
	if used {
		h.logger.Info("Backup code used", zap.String("username", username))
	}
	return used, nil
}

func (h *Handler) accountError(c *fiber.Ctx, username string, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		// The account was removed while the session was alive
		return c.Redirect("/login", fiber.StatusFound)
	}
	h.logger.Error("Account update failed", zap.String("username", username), zap.Error(err))
	return fmt.Errorf("account %s: %w", username, err)
}

// SeedAccounts stores the configured accounts, hashing plain passwords
func SeedAccounts(ctx context.Context, repo *database.AccountRepository, accounts []config.AccountSection, logger *zap.Logger) error {
	for _, a := range accounts {
		hash := a.PasswordHash
		if hash == "" {
			var err error
			hash, err = HashPassword(a.Password)
			if err != nil {
				return fmt.Errorf("failed to hash password for %s: %w", a.Username, err)
			}
		}
		if err := repo.Save(ctx, model.NewAccount(a.Username, hash)); err != nil {
			return err
		}
		logger.Info("Account seeded", zap.String("username", a.Username))
	}
	return nil
}
