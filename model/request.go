package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// EmailValue is one element of the SCIM emails attribute
type EmailValue struct {
	Value string `json:"value"`
}

// NameRequest carries the optional name components of a create payload
type NameRequest struct {
	GivenName  *string `json:"givenName"`
	FamilyName *string `json:"familyName"`
}

// AccessLevels decodes either a list of strings or a list of {"value": ...} objects
type AccessLevels []AccessLevel

// UnmarshalJSON implements json.Unmarshaler
func (l *AccessLevels) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*l = AccessLevels{AccessLevel(single)}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("expected a list of access levels")
	}

	out := make(AccessLevels, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, AccessLevel(s))
			continue
		}
		var obj struct {
			Value string `json:"value"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return fmt.Errorf("invalid access level %s", item)
		}
		out = append(out, AccessLevel(obj.Value))
	}
	*l = out
	return nil
}

// CreateUserRequest is the schema of a user creation payload.
//
// Every attribute is optional. Defaults applied by NewUser:
//   - externalId: the decimal store id
//   - userName: top-level email, else the first emails value, else ""
//   - name.givenName, name.familyName: ""
//   - email: the first emails value, else ""
//   - role: member
//   - remoteId: ""
//   - accessLevels: [readonly_secret] (an explicit empty list stays empty)
//   - idpId: the top-level id, else ""
//
// The custom attributes role, remoteId and accessLevels are read from either
// their plain name or their urn:custom: name.
type CreateUserRequest struct {
	IdpID        *string
	ExternalID   *string
	UserName     *string
	Email        *string
	Emails       []EmailValue
	Name         *NameRequest
	Role         *Role
	RemoteID     *string
	AccessLevels AccessLevels
	hasLevels    bool
}

// UnmarshalJSON implements json.Unmarshaler
func (r *CreateUserRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return &ValidationError{Message: "request body must be a JSON object"}
	}

	if v, ok := lookup(raw, "id"); ok {
		id := idpIDText(v)
		r.IdpID = &id
	}
	if err := decodeField(raw, "externalId", &r.ExternalID); err != nil {
		return err
	}
	if err := decodeField(raw, "userName", &r.UserName); err != nil {
		return err
	}
	if err := decodeField(raw, "email", &r.Email); err != nil {
		return err
	}
	if err := decodeField(raw, "emails", &r.Emails); err != nil {
		return err
	}
	if err := decodeField(raw, "name", &r.Name); err != nil {
		return err
	}
	if err := decodeField(raw, "role", &r.Role); err != nil {
		return err
	}
	if err := decodeField(raw, "remoteId", &r.RemoteID); err != nil {
		return err
	}
	if _, ok := lookup(raw, "accessLevels"); ok {
		r.hasLevels = true
		if err := decodeField(raw, "accessLevels", &r.AccessLevels); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the enumerated attributes
func (r *CreateUserRequest) Validate() error {
	if r.Role != nil && !r.Role.Valid() {
		return invalid("role", "unknown role %q", *r.Role)
	}
	for _, l := range r.AccessLevels {
		if !l.Valid() {
			return invalid("accessLevels", "unknown access level %q", l)
		}
	}
	return nil
}

// NewUser builds the stored user for id, filling every absent attribute with its default
func (r *CreateUserRequest) NewUser(id uint64, now time.Time) *User {
	u := NewUser(id, now)

	if r.ExternalID != nil {
		u.ExternalID = *r.ExternalID
	}
	if len(r.Emails) > 0 {
		u.Email = r.Emails[0].Value
	}
	switch {
	case r.UserName != nil:
		u.UserName = *r.UserName
	case r.Email != nil:
		u.UserName = *r.Email
	default:
		u.UserName = u.Email
	}
	if r.Name != nil {
		if r.Name.GivenName != nil {
			u.Name.GivenName = *r.Name.GivenName
		}
		if r.Name.FamilyName != nil {
			u.Name.FamilyName = *r.Name.FamilyName
		}
	}
	if r.Role != nil {
		u.Role = *r.Role
	}
	if r.RemoteID != nil {
		u.RemoteID = *r.RemoteID
	}
	if r.hasLevels {
		u.AccessLevels = dedupeAccessLevels(r.AccessLevels)
	}
	if r.IdpID != nil {
		u.IdpID = *r.IdpID
	}
	return u
}

// lookup finds key in raw, falling back to its urn:custom: form. JSON nulls count as absent.
func lookup(raw map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	for _, k := range []string{key, CustomPrefix + key} {
		if v, ok := raw[k]; ok && !isNull(v) {
			return v, true
		}
	}
	return nil, false
}

func decodeField(raw map[string]json.RawMessage, key string, dst any) error {
	v, ok := lookup(raw, key)
	if !ok {
		return nil
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return invalid(key, "%v", err)
	}
	return nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// idpIDText returns string ids unquoted and any other JSON value as its literal text
func idpIDText(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(v))
}
