package scim

import (
	"strings"
	"time"

	"github.com/ortelius/pdvd-idp/model"
)

// Meta is the SCIM meta attribute of a resource
type Meta struct {
	ResourceType string `json:"resourceType"`
	Created      string `json:"created,omitempty"`
	LastModified string `json:"lastModified,omitempty"`
	Location     string `json:"location,omitempty"`
}

// UserResource renders u as a SCIM User envelope. baseURL is the absolute
// prefix of the SCIM API, e.g. https://idp.example.com/scim/v2.
// Extensions are written under their urn:custom: name and never override the
// typed attributes.
func UserResource(u *model.User, baseURL string) map[string]any {
	id := model.FormatID(u.ID)

	resource := make(map[string]any, 12+len(u.Extensions))
	for key, value := range u.Extensions {
		resource[model.CustomPrefix+key] = value
	}

	resource["schemas"] = []string{UserSchemaID}
	resource["id"] = id
	resource["externalId"] = u.ExternalID
	resource["userName"] = u.UserName
	resource["name"] = map[string]string{
		"givenName":  u.Name.GivenName,
		"familyName": u.Name.FamilyName,
	}
	resource["email"] = u.Email
	resource[model.CustomPrefix+"role"] = string(u.Role)
	resource[model.CustomPrefix+"remoteId"] = u.RemoteID
	resource[model.CustomPrefix+"accessLevels"] = u.AccessLevelStrings()
	resource[model.CustomPrefix+"idpId"] = u.IdpID
	resource["meta"] = Meta{
		ResourceType: "User",
		Created:      formatTime(u.Created),
		LastModified: formatTime(u.LastModified),
		Location:     userLocation(baseURL, id),
	}
	return resource
}

func userLocation(baseURL, id string) string {
	return strings.TrimRight(baseURL, "/") + "/Users/" + id
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
