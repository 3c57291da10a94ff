// Package scim serves the SCIM 2.0 provisioning API: discovery documents and
// the Users resource backed by the provisioning store.
package scim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/ortelius/pdvd-idp/database"
	"github.com/ortelius/pdvd-idp/events/modules/users"
	"github.com/ortelius/pdvd-idp/internal/config"
	"github.com/ortelius/pdvd-idp/model"
	"go.uber.org/zap"
)

// BasePath is where the SCIM API is mounted
const BasePath = "/scim/v2"

// Store is the part of the provisioning store used by the handlers
type Store interface {
	Create(ctx context.Context, req *model.CreateUserRequest) (*model.User, error)
	Get(ctx context.Context, id uint64) (*model.User, error)
	List(ctx context.Context, q database.ListQuery) (*database.Page, error)
	Patch(ctx context.Context, id uint64, ops []model.PatchOperation) (*model.User, error)
	Delete(ctx context.Context, id uint64) error
}

// Handler serves the SCIM endpoints
type Handler struct {
	store     Store
	publisher users.Publisher
	logger    *zap.Logger
	cfg       config.SCIMSection
	baseURL   string
	spConfig  ServiceProviderConfig
}

// NewHandler creates the SCIM handler. baseURL is the public server URL; when
// empty, locations are derived from each request.
func NewHandler(store Store, publisher users.Publisher, logger *zap.Logger, cfg config.SCIMSection, baseURL string) *Handler {
	if publisher == nil {
		publisher = users.NoopPublisher{}
	}
	return &Handler{
		store:     store,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
		baseURL:   baseURL,
		spConfig:  NewServiceProviderConfig(cfg.AuthMode, cfg.MaxResults),
	}
}

// RegisterRoutes mounts the SCIM API on router
func (h *Handler) RegisterRoutes(router fiber.Router) {
	router.Get("/ServiceProviderConfig", h.GetServiceProviderConfig)
	router.Get("/ResourceTypes", h.ListResourceTypes)
	router.Get("/ResourceTypes/:id", h.GetResourceType)
	router.Get("/Schemas", h.ListSchemas)
	router.Get("/Schemas/:id", h.GetSchema)

	router.Post("/Users", h.CreateUser)
	router.Get("/Users", h.ListUsers)
	router.Get("/Users/:id", h.GetUser)
	router.Patch("/Users/:id", h.PatchUser)
	router.Delete("/Users/:id", h.DeleteUser)
}

// GetServiceProviderConfig handles GET /ServiceProviderConfig
func (h *Handler) GetServiceProviderConfig(c *fiber.Ctx) error {
	return writeResponse(c, http.StatusOK, h.spConfig)
}

// ListResourceTypes handles GET /ResourceTypes
func (h *Handler) ListResourceTypes(c *fiber.Ctx) error {
	return writeResponse(c, http.StatusOK, ListResponse{
		Schemas:      []string{ListSchemaID},
		TotalResults: 1,
		ItemsPerPage: 1,
		StartIndex:   1,
		Resources:    []any{UserResourceType},
	})
}

// GetResourceType handles GET /ResourceTypes/:id
func (h *Handler) GetResourceType(c *fiber.Ctx) error {
	if c.Params("id") != UserResourceType.ID {
		return WriteError(c, NewError(http.StatusNotFound, "Resource type not found"))
	}
	return writeResponse(c, http.StatusOK, UserResourceType)
}

// ListSchemas handles GET /Schemas
func (h *Handler) ListSchemas(c *fiber.Ctx) error {
	return writeResponse(c, http.StatusOK, ListResponse{
		Schemas:      []string{ListSchemaID},
		TotalResults: 1,
		ItemsPerPage: 1,
		StartIndex:   1,
		Resources:    []any{UserSchema},
	})
}

// GetSchema handles GET /Schemas/:id
func (h *Handler) GetSchema(c *fiber.Ctx) error {
	if c.Params("id") != UserSchema.ID {
		return WriteError(c, NewError(http.StatusNotFound, "Schema not found"))
	}
	return writeResponse(c, http.StatusOK, UserSchema)
}

// CreateUser handles POST /Users
func (h *Handler) CreateUser(c *fiber.Ctx) error {
	var req model.CreateUserRequest
	if err := json.Unmarshal(body(c), &req); err != nil {
		var validationErr *model.ValidationError
		if errors.As(err, &validationErr) {
			return h.writeStoreError(c, err)
		}
		return WriteError(c, NewError(http.StatusBadRequest, "Invalid JSON in request body", ScimTypeInvalidSyntax))
	}

	user, err := h.store.Create(c.UserContext(), &req)
	if err != nil {
		return h.writeStoreError(c, err)
	}

	h.logger.Info("SCIM user created", zap.Uint64("id", user.ID), zap.String("userName", user.UserName))
	h.publish(c.UserContext(), users.NewEvent(users.UserCreated, user))

	resource := UserResource(user, h.scimURL(c))
	c.Location(resource["meta"].(Meta).Location)
	return writeResponse(c, http.StatusCreated, resource)
}

// ListUsers handles GET /Users
func (h *Handler) ListUsers(c *fiber.Ctx) error {
	q, scimErr := parseListQuery(c, h.cfg.DefaultCount, h.cfg.MaxResults)
	if scimErr != nil {
		return WriteError(c, scimErr)
	}

	page, err := h.store.List(c.UserContext(), q)
	if err != nil {
		return h.writeStoreError(c, err)
	}

	baseURL := h.scimURL(c)
	resources := make([]any, 0, len(page.Users))
	for _, u := range page.Users {
		resources = append(resources, UserResource(u, baseURL))
	}

	return writeResponse(c, http.StatusOK, ListResponse{
		Schemas:      []string{ListSchemaID},
		TotalResults: page.TotalResults,
		ItemsPerPage: len(resources),
		StartIndex:   page.StartIndex,
		Resources:    resources,
	})
}

// GetUser handles GET /Users/:id
func (h *Handler) GetUser(c *fiber.Ctx) error {
	id, ok := model.ParseID(c.Params("id"))
	if !ok {
		return WriteError(c, userNotFound())
	}

	user, err := h.store.Get(c.UserContext(), id)
	if err != nil {
		return h.writeStoreError(c, err)
	}
	return writeResponse(c, http.StatusOK, UserResource(user, h.scimURL(c)))
}

// PatchUser handles PATCH /Users/:id
func (h *Handler) PatchUser(c *fiber.Ctx) error {
	id, ok := model.ParseID(c.Params("id"))
	if !ok {
		return WriteError(c, userNotFound())
	}

	var req model.PatchRequest
	if err := json.Unmarshal(body(c), &req); err != nil {
		return WriteError(c, NewError(http.StatusBadRequest, "Invalid PATCH request body", ScimTypeInvalidSyntax))
	}

	user, err := h.store.Patch(c.UserContext(), id, req.Operations)
	if err != nil {
		return h.writeStoreError(c, err)
	}

	h.logger.Info("SCIM user patched", zap.Uint64("id", id), zap.Int("operations", len(req.Operations)))
	h.publish(c.UserContext(), users.NewEvent(users.UserPatched, user))

	return writeResponse(c, http.StatusOK, UserResource(user, h.scimURL(c)))
}

// DeleteUser handles DELETE /Users/:id
func (h *Handler) DeleteUser(c *fiber.Ctx) error {
	id, ok := model.ParseID(c.Params("id"))
	if !ok {
		return WriteError(c, userNotFound())
	}

	if err := h.store.Delete(c.UserContext(), id); err != nil {
		return h.writeStoreError(c, err)
	}

	h.logger.Info("SCIM user deleted", zap.Uint64("id", id))
	h.publish(c.UserContext(), users.NewEvent(users.UserDeleted, &model.User{ID: id}))

	return c.SendStatus(http.StatusNoContent)
}

// writeStoreError maps store and validation errors to SCIM error documents
func (h *Handler) writeStoreError(c *fiber.Ctx, err error) error {
	var validationErr *model.ValidationError
	switch {
	case errors.Is(err, database.ErrNotFound):
		return WriteError(c, userNotFound())
	case errors.As(err, &validationErr):
		return WriteError(c, NewError(http.StatusBadRequest, validationErr.Error(), ScimTypeInvalidValue))
	default:
		h.logger.Error("SCIM request failed", zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Error(err))
		return WriteError(c, NewInternalError())
	}
}

// publish sends a provisioning event. Failures are logged; the store change stands.
func (h *Handler) publish(ctx context.Context, event users.ProvisioningEvent) {
	if err := h.publisher.Publish(ctx, event); err != nil {
		h.logger.Warn("failed to publish provisioning event",
			zap.String("event_type", string(event.EventType)),
			zap.String("user_id", event.UserID),
			zap.Error(err))
	}
}

// scimURL is the absolute base of the SCIM API used in resource locations
func (h *Handler) scimURL(c *fiber.Ctx) string {
	if h.baseURL != "" {
		return h.baseURL + BasePath
	}
	return c.BaseURL() + BasePath
}

func userNotFound() *Error {
	return NewError(http.StatusNotFound, UserNotFoundDetail)
}

// body returns the request body, treating an empty body as an empty object
func body(c *fiber.Ctx) []byte {
	b := bytes.TrimSpace(c.Body())
	if len(b) == 0 {
		return []byte("{}")
	}
	return b
}
