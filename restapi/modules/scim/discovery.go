package scim

import (
	"github.com/ortelius/pdvd-idp/internal/config"
	"github.com/ortelius/pdvd-idp/model"
)

// Supported is a SCIM feature flag
type Supported struct {
	Supported bool `json:"supported"`
}

// BulkSupport describes the bulk capability
type BulkSupport struct {
	Supported      bool `json:"supported"`
	MaxOperations  int  `json:"maxOperations"`
	MaxPayloadSize int  `json:"maxPayloadSize"`
}

// FilterSupport describes the filter capability
type FilterSupport struct {
	Supported  bool `json:"supported"`
	MaxResults int  `json:"maxResults"`
}

// AuthenticationScheme is one way clients can authenticate to the SCIM API
type AuthenticationScheme struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	SpecURI          string `json:"specUri,omitempty"`
	DocumentationURI string `json:"documentationUri,omitempty"`
	Type             string `json:"type"`
	Primary          bool   `json:"primary"`
}

// ServiceProviderConfig advertises the capabilities of this service provider
type ServiceProviderConfig struct {
	Schemas               []string               `json:"schemas"`
	DocumentationURI      string                 `json:"documentationUri"`
	Patch                 Supported              `json:"patch"`
	Bulk                  BulkSupport            `json:"bulk"`
	Filter                FilterSupport          `json:"filter"`
	ChangePassword        Supported              `json:"changePassword"`
	Sort                  Supported              `json:"sort"`
	Etag                  Supported              `json:"etag"`
	AuthenticationSchemes []AuthenticationScheme `json:"authenticationSchemes"`
}

// ResourceType describes an exposed resource endpoint
type ResourceType struct {
	Schemas          []string `json:"schemas"`
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Endpoint         string   `json:"endpoint"`
	Description      string   `json:"description"`
	Schema           string   `json:"schema"`
	SchemaExtensions []string `json:"schemaExtensions"`
}

// Attribute is a schema attribute definition
type Attribute struct {
	Name            string      `json:"name"`
	Type            string      `json:"type"`
	MultiValued     bool        `json:"multiValued"`
	Description     string      `json:"description,omitempty"`
	Required        bool        `json:"required"`
	CaseExact       bool        `json:"caseExact"`
	Mutability      string      `json:"mutability"`
	Returned        string      `json:"returned"`
	Uniqueness      string      `json:"uniqueness"`
	CanonicalValues []string    `json:"canonicalValues,omitempty"`
	SubAttributes   []Attribute `json:"subAttributes,omitempty"`
}

// Schema is a resource schema definition
type Schema struct {
	Schemas     []string    `json:"schemas"`
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Attributes  []Attribute `json:"attributes"`
}

// NewServiceProviderConfig builds the capability document. The advertised
// authentication scheme follows the configured SCIM auth mode.
func NewServiceProviderConfig(authMode string, maxResults int) ServiceProviderConfig {
	return ServiceProviderConfig{
		Schemas:               []string{ServiceProviderConfigSchemaID},
		DocumentationURI:      "http://example.com/help/scim.html",
		Patch:                 Supported{Supported: true},
		Bulk:                  BulkSupport{},
		Filter:                FilterSupport{Supported: true, MaxResults: maxResults},
		ChangePassword:        Supported{},
		Sort:                  Supported{Supported: true},
		Etag:                  Supported{},
		AuthenticationSchemes: authenticationSchemes(authMode),
	}
}

func authenticationSchemes(authMode string) []AuthenticationScheme {
	switch authMode {
	case config.AuthModeBearer:
		return []AuthenticationScheme{{
			Name:             "OAuth Bearer Token",
			Description:      "Authentication scheme using the OAuth Bearer Token Standard",
			SpecURI:          "http://www.rfc-editor.org/info/rfc6750",
			DocumentationURI: "http://example.com/help/oauth.html",
			Type:             "oauthbearertoken",
			Primary:          true,
		}}
	case config.AuthModeCAC:
		return []AuthenticationScheme{{
			Name:        "TLS Client Certificate",
			Description: "Client certificate verified by the fronting reverse proxy",
			Type:        "tlsclientcert",
			Primary:     true,
		}}
	default:
		return []AuthenticationScheme{}
	}
}

// UserResourceType is the only resource type served
var UserResourceType = ResourceType{
	Schemas:          []string{ResourceTypeSchemaID},
	ID:               "User",
	Name:             "User",
	Endpoint:         "/Users",
	Description:      "User Account",
	Schema:           UserSchemaID,
	SchemaExtensions: []string{},
}

func accessLevelValues() []string {
	values := make([]string, len(model.AllAccessLevels))
	for i, l := range model.AllAccessLevels {
		values[i] = string(l)
	}
	return values
}

func roleValues() []string {
	values := make([]string, len(model.Roles))
	for i, r := range model.Roles {
		values[i] = string(r)
	}
	return values
}

func stringAttribute(name, description string) Attribute {
	return Attribute{
		Name:        name,
		Type:        "string",
		Description: description,
		Mutability:  "readWrite",
		Returned:    "default",
		Uniqueness:  "none",
	}
}

// UserSchema describes the User resource including the urn:custom: attributes
var UserSchema = Schema{
	Schemas:     []string{SchemaSchemaID},
	ID:          UserSchemaID,
	Name:        "User",
	Description: "User Account",
	Attributes: []Attribute{
		{
			Name:        "userName",
			Type:        "string",
			Description: "Unique identifier for the User",
			Required:    true,
			Mutability:  "readWrite",
			Returned:    "default",
			Uniqueness:  "server",
		},
		{
			Name:        "email",
			Type:        "string",
			Description: "Email address of the User",
			Required:    true,
			Mutability:  "readWrite",
			Returned:    "default",
			Uniqueness:  "server",
		},
		{
			Name:        "name",
			Type:        "complex",
			Description: "The components of the user's real name",
			Mutability:  "readWrite",
			Returned:    "default",
			Uniqueness:  "none",
			SubAttributes: []Attribute{
				stringAttribute("givenName", "The given name of the User"),
				stringAttribute("familyName", "The family name of the User"),
			},
		},
		stringAttribute("externalId", "Identifier of the User in the provisioning client"),
		func() Attribute {
			a := stringAttribute(model.CustomPrefix+"role", "Role of the User")
			a.CanonicalValues = roleValues()
			return a
		}(),
		{
			Name:        model.CustomPrefix + "accessLevels",
			Type:        "complex",
			MultiValued: true,
			Description: "Access levels granted to the User",
			Mutability:  "readWrite",
			Returned:    "default",
			Uniqueness:  "none",
			SubAttributes: []Attribute{
				func() Attribute {
					a := stringAttribute("value", "Access level")
					a.CanonicalValues = accessLevelValues()
					return a
				}(),
			},
		},
		stringAttribute(model.CustomPrefix+"remoteId", "Identifier of the User in the remote system"),
		stringAttribute(model.CustomPrefix+"idpId", "Identifier of the User at the identity provider"),
	},
}
