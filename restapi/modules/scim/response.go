package scim

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// ContentType is the media type of every SCIM response body
const ContentType = "application/scim+json"

// SCIM schema URIs.
const (
	UserSchemaID                  = "urn:ietf:params:scim:schemas:core:2.0:User"
	ListSchemaID                  = "urn:ietf:params:scim:api:messages:2.0:ListResponse"
	ErrorSchemaID                 = "urn:ietf:params:scim:api:messages:2.0:Error"
	PatchOpSchemaID               = "urn:ietf:params:scim:api:messages:2.0:PatchOp"
	ServiceProviderConfigSchemaID = "urn:ietf:params:scim:schemas:core:2.0:ServiceProviderConfig"
	ResourceTypeSchemaID          = "urn:ietf:params:scim:schemas:core:2.0:ResourceType"
	SchemaSchemaID                = "urn:ietf:params:scim:schemas:core:2.0:Schema"
)

// SCIM error types used in the scimType member.
const (
	ScimTypeInvalidValue  = "invalidValue"
	ScimTypeInvalidSyntax = "invalidSyntax"
	ScimTypeInvalidFilter = "invalidFilter"
)

// UserNotFoundDetail is the detail of every missing-user response
const UserNotFoundDetail = "User not found"

// ListResponse defines a SCIM list response.
type ListResponse struct {
	Schemas      []string `json:"schemas"`
	TotalResults int      `json:"totalResults"`
	ItemsPerPage int      `json:"itemsPerPage"`
	StartIndex   int      `json:"startIndex"`
	Resources    []any    `json:"Resources"`
}

// Error defines a SCIM error response.
type Error struct {
	Schemas  []string `json:"schemas"`
	Status   int      `json:"status"`
	Detail   string   `json:"detail"`
	ScimType string   `json:"scimType,omitempty"`
}

// Error implements the [error] interface.
func (e Error) Error() string {
	s := fmt.Sprintf("status: %d", e.Status)
	if e.Detail != "" {
		s += fmt.Sprintf(", detail: %s", e.Detail)
	}
	return s
}

// MarshalJSON renders the status as a string, as RFC 7644 requires.
func (e Error) MarshalJSON() ([]byte, error) {
	t := map[string]any{
		"schemas": e.Schemas,
		"status":  strconv.Itoa(e.Status),
		"detail":  e.Detail,
	}
	if e.ScimType != "" {
		t["scimType"] = e.ScimType
	}

	return json.Marshal(t)
}

// UnmarshalJSON accepts the string status written by MarshalJSON.
func (e *Error) UnmarshalJSON(data []byte) error {
	t := struct {
		Schemas  []string `json:"schemas"`
		Status   string   `json:"status"`
		Detail   string   `json:"detail"`
		ScimType string   `json:"scimType,omitempty"`
	}{}
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}

	e.Schemas = t.Schemas
	e.Detail = t.Detail
	e.ScimType = t.ScimType

	if t.Status != "" {
		status, err := strconv.Atoi(t.Status)
		if err != nil {
			return fmt.Errorf("invalid status value: %s", t.Status)
		}
		e.Status = status
	}

	return nil
}

// NewError creates a new SCIM error.
func NewError(status int, detail string, scimType ...string) *Error {
	err := &Error{
		Schemas: []string{ErrorSchemaID},
		Status:  status,
		Detail:  detail,
	}
	if len(scimType) > 0 {
		err.ScimType = scimType[0]
	}
	return err
}

// NewInternalError creates a new SCIM internal server error.
func NewInternalError() *Error {
	return NewError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

// WriteError writes a SCIM error response.
func WriteError(c *fiber.Ctx, err *Error) error {
	return c.Status(err.Status).JSON(err, ContentType)
}

// writeResponse writes a SCIM response with the given status.
func writeResponse(c *fiber.Ctx, status int, payload any) error {
	return c.Status(status).JSON(payload, ContentType)
}
