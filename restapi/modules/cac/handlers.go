// Package cac serves pages protected by TLS client certificates (CAC/PIV).
//
// Certificates are validated by the fronting reverse proxy, which reports the
// result and certificate details in request headers. This service only reads
// those headers and must therefore never be reachable without the proxy.
package cac

import (
	"github.com/gofiber/fiber/v2"
	"github.com/ortelius/pdvd-idp/restapi/views"
	"go.uber.org/zap"
)

// Headers set by the reverse proxy
const (
	HeaderClientVerified = "X-Client-Verified"
	HeaderSubjectDN      = "X-Subject-DN"
	HeaderCertStart      = "X-SSL-Cert-Start"
	HeaderCertEnd        = "X-SSL-Cert-End"
)

// VerifiedValue is the proxy's verification result for a trusted certificate
const VerifiedValue = "SUCCESS"

const notProvided = "Not provided"

// ClientCertificate holds what the proxy reported about the client certificate
type ClientCertificate struct {
	Verify     string
	SubjectDN  string
	ValidFrom  string
	ValidUntil string
}

// Certificate reads the proxy headers of the request
func Certificate(c *fiber.Ctx) ClientCertificate {
	return ClientCertificate{
		Verify:     c.Get(HeaderClientVerified, "None"),
		SubjectDN:  c.Get(HeaderSubjectDN, notProvided),
		ValidFrom:  c.Get(HeaderCertStart),
		ValidUntil: c.Get(HeaderCertEnd),
	}
}

// Verified returns true when the proxy accepted the client certificate
func Verified(c *fiber.Ctx) bool {
	return c.Get(HeaderClientVerified) == VerifiedValue
}

// ClientAuth renders the certificate details, or a 401 page when the proxy
// did not verify a certificate.
func ClientAuth(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cert := Certificate(c)
		if !Verified(c) {
			logger.Info("Client certificate authentication failed", zap.String("verify", cert.Verify))
			return views.Render(c, fiber.StatusUnauthorized, views.CACFailure, fiber.Map{
				"Message": "Client SSL authentication failed.",
			})
		}

		logger.Info("Client certificate authentication succeeded", zap.String("subject", cert.SubjectDN))
		return renderCertificate(c, cert, false)
	}
}

// SecurePage requires both a login session, checked by the middleware in
// front of it, and a verified client certificate.
func SecurePage(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cert := Certificate(c)
		if !Verified(c) {
			logger.Info("Client certificate missing on secure page",
				zap.Any("username", c.Locals("username")),
				zap.String("verify", cert.Verify))
			return views.Render(c, fiber.StatusUnauthorized, views.CACFailure, fiber.Map{
				"Message": "Secure Page - Client SSL authentication failed.",
			})
		}
		return renderCertificate(c, cert, true)
	}
}

func renderCertificate(c *fiber.Ctx, cert ClientCertificate, loggedIn bool) error {
	return views.Render(c, fiber.StatusOK, views.CACSuccess, fiber.Map{
		"SubjectDN":    cert.SubjectDN,
		"ClientVerify": cert.Verify,
		"ValidFrom":    cert.ValidFrom,
		"ValidUntil":   cert.ValidUntil,
		"LoggedIn":     loggedIn,
	})
}
