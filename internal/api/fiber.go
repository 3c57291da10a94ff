// Package api builds the Fiber application with its global middleware.
package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/ortelius/pdvd-idp/internal/config"
	"github.com/ortelius/pdvd-idp/restapi"
	"go.uber.org/zap"
)

// SessionCookie is the name of the login session cookie
const SessionCookie = "pdvd_idp_session"

// NewSessionStore creates the in-memory login session store
func NewSessionStore(cfg config.AuthSection) *session.Store {
	return session.New(session.Config{
		Expiration:     cfg.SessionTTL,
		KeyLookup:      "cookie:" + SessionCookie,
		CookieHTTPOnly: true,
		CookieSecure:   cfg.CookieSecure,
		CookieSameSite: "Lax",
		CookiePath:     "/",
	})
}

// NewFiberApp creates and configures a Fiber app with SCIM, page and GraphQL routes
func NewFiberApp(svc restapi.Services) (*fiber.App, error) {
	cfg := svc.Config.Server
	log := svc.Logger

	app := fiber.New(fiber.Config{
		AppName:     cfg.AppName,
		BodyLimit:   cfg.BodyLimit,
		ReadTimeout: cfg.ReadTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			if code >= fiber.StatusInternalServerError {
				log.Error("Request failed", zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Error(err))
				return c.Status(code).JSON(fiber.Map{"error": "Internal server error"})
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	// Middleware
	app.Use(fiberrecover.New())
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))

	// Credentials cannot be combined with a wildcard origin
	origins := cfg.CORSOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With",
		AllowCredentials: origins != "*",
		AllowMethods:     "GET, POST, HEAD, PUT, DELETE, PATCH, OPTIONS",
	}))

	app.Use(func(c *fiber.Ctx) error {
		c.Locals("graphql_op", "-")
		return c.Next()
	})
	app.Use(logger.New(logger.Config{
		Format: "${time} | ${status} | ${latency} | ${method} ${path} | op=${locals:graphql_op}\n",
	}))

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	if err := restapi.SetupRoutes(app, svc); err != nil {
		return nil, err
	}

	return app, nil
}
