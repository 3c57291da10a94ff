// Package views renders the HTML pages of the login, MFA and CAC flows.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/gofiber/fiber/v2"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("pages").Funcs(template.FuncMap{
	"join": strings.Join,
}).ParseFS(templateFS, "templates/*.html"))

// Page template names
const (
	Login        = "login.html"
	SetupMFA     = "setup_mfa.html"
	VerifyMFA    = "verify_mfa.html"
	InvalidToken = "invalid_token.html"
	Protected    = "protected.html"
	BackupCodes  = "backup_codes.html"
	CACSuccess   = "cac_success.html"
	CACFailure   = "cac_failure.html"
	Users        = "users.html"
)

var titles = map[string]string{
	Login:        "Login",
	SetupMFA:     "Set up MFA",
	VerifyMFA:    "Verify MFA",
	InvalidToken: "Invalid MFA code",
	Protected:    "Protected",
	BackupCodes:  "Backup codes",
	CACSuccess:   "SSL Client Authentication Demo",
	CACFailure:   "SSL Client Authentication Demo",
	Users:        "SCIM Demo",
}

// Render writes the named page with status. data may be nil.
func Render(c *fiber.Ctx, status int, name string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	if _, ok := data["Title"]; !ok {
		data["Title"] = titles[name]
	}

	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(status).Send(buf.Bytes())
}
