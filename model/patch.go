package model

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// PatchOpReplace is the only patch operation applied to users
const PatchOpReplace = "replace"

// PatchOperation is a single SCIM PATCH instruction
type PatchOperation struct {
	Op    string          `json:"op"`
	Path  string          `json:"path,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// PatchRequest is the body of a SCIM PATCH request
type PatchRequest struct {
	Schemas    []string         `json:"schemas"`
	Operations []PatchOperation `json:"Operations"`
}

// IsReplace reports whether the operation is a replace, compared case-insensitively
func (op PatchOperation) IsReplace() bool {
	return strings.EqualFold(op.Op, PatchOpReplace)
}

// attributes returns the attribute-to-value mapping carried by a replace operation.
// Without a path the value must be an object, possibly pre-serialized as a JSON string.
// With a path the value is assigned to that attribute; name.givenName and
// name.familyName paths become a partial name object.
func (op PatchOperation) attributes() (map[string]json.RawMessage, error) {
	if op.Path != "" {
		given, sub, found := strings.Cut(op.Path, ".")
		if found && strings.EqualFold(given, "name") {
			nested, err := json.Marshal(map[string]json.RawMessage{sub: op.Value})
			if err != nil {
				return nil, invalid(op.Path, "%v", err)
			}
			return map[string]json.RawMessage{"name": nested}, nil
		}
		return map[string]json.RawMessage{op.Path: op.Value}, nil
	}

	value := bytes.TrimSpace(op.Value)
	if len(value) == 0 || isNull(value) {
		return nil, invalid("value", "replace without a path needs a value")
	}
	if value[0] == '"' {
		var serialized string
		if err := json.Unmarshal(value, &serialized); err != nil {
			return nil, invalid("value", "%v", err)
		}
		value = []byte(serialized)
	}

	var attrs map[string]json.RawMessage
	if err := json.Unmarshal(value, &attrs); err != nil {
		return nil, invalid("value", "replace value must be an object")
	}
	return attrs, nil
}

// ApplyPatch applies ops in order to u and returns how many replace operations ran.
// Operations other than replace are skipped. u is modified in place, so callers
// pass a clone and discard it when an error is returned.
func ApplyPatch(u *User, ops []PatchOperation) (int, error) {
	applied := 0
	for _, op := range ops {
		if !op.IsReplace() {
			continue
		}
		attrs, err := op.attributes()
		if err != nil {
			return applied, err
		}
		keys, err := attributeKeys(attrs)
		if err != nil {
			return applied, err
		}
		for _, key := range keys {
			if err := replaceAttribute(u, key, attrs[key]); err != nil {
				return applied, err
			}
		}
		applied++
	}
	return applied, nil
}

// attributeKeys returns the keys of attrs in sorted order. Two keys naming the
// same attribute, such as role and urn:custom:role, are a validation error.
func attributeKeys(attrs map[string]json.RawMessage) ([]string, error) {
	keys := make([]string, 0, len(attrs))
	seen := make(map[string]string, len(attrs))
	for key := range attrs {
		id := attributeID(key)
		if other, ok := seen[id]; ok {
			a, b := other, key
			if b < a {
				a, b = b, a
			}
			return nil, invalid(b, "duplicates attribute %s", a)
		}
		seen[id] = key
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// attributeID identifies the attribute a key writes to. Typed attributes
// match case-insensitively, extensions by their exact name.
func attributeID(key string) string {
	attr := stripCustomPrefix(key)
	lower := strings.ToLower(attr)
	switch lower {
	case "name", "email", "username", "role", "remoteid", "idpid", "accesslevels":
		return lower
	}
	return "ext:" + attr
}

func stripCustomPrefix(key string) string {
	if len(key) > len(CustomPrefix) && strings.EqualFold(key[:len(CustomPrefix)], CustomPrefix) {
		return key[len(CustomPrefix):]
	}
	return key
}

func replaceAttribute(u *User, key string, value json.RawMessage) error {
	attr := stripCustomPrefix(key)

	switch strings.ToLower(attr) {
	case "name":
		return mergeName(u, value)
	case "email":
		return decodeString(key, value, &u.Email)
	case "username":
		return decodeString(key, value, &u.UserName)
	case "role":
		if isNull(value) {
			u.Role = RoleMember
			return nil
		}
		var role Role
		if err := json.Unmarshal(value, &role); err != nil {
			return invalid(key, "%v", err)
		}
		if !role.Valid() {
			return invalid(key, "unknown role %q", role)
		}
		u.Role = role
	case "remoteid":
		return decodeString(key, value, &u.RemoteID)
	case "idpid":
		return decodeString(key, value, &u.IdpID)
	case "accesslevels":
		if isNull(value) {
			u.AccessLevels = DefaultAccessLevels()
			return nil
		}
		var levels AccessLevels
		if err := json.Unmarshal(value, &levels); err != nil {
			return invalid(key, "%v", err)
		}
		for _, l := range levels {
			if !l.Valid() {
				return invalid(key, "unknown access level %q", l)
			}
		}
		u.AccessLevels = dedupeAccessLevels(levels)
	default:
		if isNull(value) {
			delete(u.Extensions, attr)
			return nil
		}
		var v any
		if err := json.Unmarshal(value, &v); err != nil {
			return invalid(key, "%v", err)
		}
		if u.Extensions == nil {
			u.Extensions = map[string]any{}
		}
		u.Extensions[attr] = v
	}
	return nil
}

// mergeName replaces only the name components present in value
func mergeName(u *User, value json.RawMessage) error {
	if isNull(value) {
		return nil
	}
	var name NameRequest
	if err := json.Unmarshal(value, &name); err != nil {
		return invalid("name", "%v", err)
	}
	if name.GivenName != nil {
		u.Name.GivenName = *name.GivenName
	}
	if name.FamilyName != nil {
		u.Name.FamilyName = *name.FamilyName
	}
	return nil
}

// decodeString assigns a JSON string to dst; null resets it to the empty default
func decodeString(field string, value json.RawMessage, dst *string) error {
	if isNull(value) {
		*dst = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return invalid(field, "%v", err)
	}
	*dst = s
	return nil
}
