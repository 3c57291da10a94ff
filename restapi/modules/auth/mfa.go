package auth

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/ortelius/pdvd-idp/internal/config"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Enrollment is a freshly generated TOTP secret ready to be shown to the user
type Enrollment struct {
	Secret string
	URL    string
	// QRCode is the provisioning URL as a base64-encoded PNG
	QRCode      string
	BackupCodes []string
}

// MFA generates and verifies time-based one-time passwords (RFC 6238)
type MFA struct {
	cfg config.MFASection
	now func() time.Time
}

// NewMFA creates the TOTP helper
func NewMFA(cfg config.MFASection) *MFA {
	return &MFA{cfg: cfg, now: time.Now}
}

// Enroll generates a new secret for username, its QR code and a fresh set of backup codes
func (m *MFA) Enroll(username string) (*Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.cfg.Issuer,
		AccountName: username,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	img, err := key.Image(m.cfg.QRSize, m.cfg.QRSize)
	if err != nil {
		return nil, fmt.Errorf("failed to render QR code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	codes, err := GenerateBackupCodes(m.cfg.BackupCodeCount)
	if err != nil {
		return nil, fmt.Errorf("failed to generate backup codes: %w", err)
	}

	return &Enrollment{
		Secret:      key.Secret(),
		URL:         key.URL(),
		QRCode:      base64.StdEncoding.EncodeToString(buf.Bytes()),
		BackupCodes: codes,
	}, nil
}

// Validate checks code against secret, allowing the configured clock skew in 30s steps
func (m *MFA) Validate(code, secret string) bool {
	code = strings.TrimSpace(code)
	if code == "" || secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, m.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      m.cfg.Skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
