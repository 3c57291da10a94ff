// Package restapi provides the main router and initialization for REST API endpoints.
package restapi

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/ortelius/pdvd-idp/database"
	"github.com/ortelius/pdvd-idp/events/modules/users"
	gqlschema "github.com/ortelius/pdvd-idp/graphql"
	"github.com/ortelius/pdvd-idp/internal/config"
	"github.com/ortelius/pdvd-idp/restapi/modules/auth"
	"github.com/ortelius/pdvd-idp/restapi/modules/cac"
	"github.com/ortelius/pdvd-idp/restapi/modules/scim"
	"go.uber.org/zap"
)

// Services are the shared dependencies of the route handlers
type Services struct {
	Config    *config.Config
	Users     *database.UserStore
	Accounts  *database.AccountRepository
	Sessions  *session.Store
	Tokens    *auth.Tokens
	MFA       *auth.MFA
	Publisher users.Publisher
	Logger    *zap.Logger
}

// SetupRoutes configures the SCIM API, the login/MFA/CAC pages, the token
// endpoint and the GraphQL endpoint.
func SetupRoutes(app *fiber.App, svc Services) error {
	cfg := svc.Config
	gate := auth.SCIMGate(cfg.SCIM, svc.Tokens, svc.Logger)

	schema, err := gqlschema.CreateSchema(svc.Users, cfg.SCIM.MaxResults)
	if err != nil {
		return fmt.Errorf("failed to create GraphQL schema: %w", err)
	}

	scimHandler := scim.NewHandler(svc.Users, svc.Publisher, svc.Logger, cfg.SCIM, cfg.Server.BaseURL)
	authHandler := auth.NewHandler(svc.Accounts, svc.Sessions, svc.Tokens, svc.MFA, svc.Logger)

	// Landing page listing provisioned users; open only when SCIM is open
	if cfg.SCIM.AuthMode == config.AuthModeNone {
		app.Get("/", scimHandler.UsersPage)
	} else {
		app.Get("/", auth.RequireLogin(svc.Sessions), scimHandler.UsersPage)
	}

	// SCIM 2.0
	scimHandler.RegisterRoutes(app.Group(scim.BasePath, gate))

	// API Group /api/v1
	api := app.Group("/api/v1")
	api.Post("/graphql", gate, GraphQLHandler(schema))

	// Login and MFA pages, token minting
	authHandler.RegisterRoutes(app, api)

	// Client certificate pages
	app.Get("/cac", cac.ClientAuth(svc.Logger))
	app.Get("/secure", auth.RequireLogin(svc.Sessions), cac.SecurePage(svc.Logger))

	svc.Logger.Info("API routes initialized successfully", zap.String("scim_auth_mode", cfg.SCIM.AuthMode))
	return nil
}
