// Package model provides data models for the PDVD identity service.
package model

import (
	"strconv"
	"time"
)

// CustomPrefix namespaces the non-core user attributes on the wire.
const CustomPrefix = "urn:custom:"

// Role is the coarse permission level of a provisioned user
type Role string

// Known roles
const (
	RoleMember  Role = "member"
	RoleManager Role = "manager"
	RoleOwner   Role = "owner"
)

// Roles lists the canonical role values in schema order
var Roles = []Role{RoleMember, RoleManager, RoleOwner}

// Valid reports whether r is one of the canonical roles
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// AccessLevel grants read or write access to one product area
type AccessLevel string

// Known access levels
const (
	AccessReadonlySecret     AccessLevel = "readonly_secret"
	AccessWriteSecret        AccessLevel = "write_secret"
	AccessReadonlySCA        AccessLevel = "readonly_sca"
	AccessWriteSCA           AccessLevel = "write_sca"
	AccessReadonlyIAC        AccessLevel = "readonly_iac"
	AccessWriteIAC           AccessLevel = "write_iac"
	AccessReadonlyHoneytoken AccessLevel = "readonly_honeytoken"
	AccessWriteHoneytoken    AccessLevel = "write_honeytoken"
)

// AllAccessLevels lists the canonical access levels in schema order
var AllAccessLevels = []AccessLevel{
	AccessReadonlySecret,
	AccessWriteSecret,
	AccessReadonlySCA,
	AccessWriteSCA,
	AccessReadonlyIAC,
	AccessWriteIAC,
	AccessReadonlyHoneytoken,
	AccessWriteHoneytoken,
}

// Valid reports whether l is one of the canonical access levels
func (l AccessLevel) Valid() bool {
	for _, known := range AllAccessLevels {
		if l == known {
			return true
		}
	}
	return false
}

// DefaultAccessLevels returns the access levels given to users created without any
func DefaultAccessLevels() []AccessLevel {
	return []AccessLevel{AccessReadonlySecret}
}

// Name holds the components of a user's real name
type Name struct {
	GivenName  string `json:"givenName"`
	FamilyName string `json:"familyName"`
}

// User represents a provisioned user resource.
// Every field has a defined default so a stored user never has missing attributes.
type User struct {
	ID           uint64
	ExternalID   string
	UserName     string
	Name         Name
	Email        string
	Role         Role
	RemoteID     string
	AccessLevels []AccessLevel
	IdpID        string

	// Extensions holds attributes written by PATCH that have no typed field,
	// keyed by attribute name without CustomPrefix.
	Extensions map[string]any

	Created      time.Time
	LastModified time.Time
}

// NewUser creates a user with every attribute set to its default
func NewUser(id uint64, now time.Time) *User {
	return &User{
		ID:           id,
		ExternalID:   FormatID(id),
		Role:         RoleMember,
		AccessLevels: DefaultAccessLevels(),
		Extensions:   map[string]any{},
		Created:      now,
		LastModified: now,
	}
}

// Clone returns a deep copy that can be modified without touching the original.
// Stored users are shared between readers and must never be mutated in place.
func (u *User) Clone() *User {
	c := *u
	c.AccessLevels = append([]AccessLevel(nil), u.AccessLevels...)
	c.Extensions = make(map[string]any, len(u.Extensions))
	for k, v := range u.Extensions {
		c.Extensions[k] = v
	}
	return &c
}

// AccessLevelStrings returns the access levels as plain strings
func (u *User) AccessLevelStrings() []string {
	out := make([]string, len(u.AccessLevels))
	for i, l := range u.AccessLevels {
		out[i] = string(l)
	}
	return out
}

// FormatID renders a store id the way it appears on the wire
func FormatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// ParseID parses a wire id. ok is false for anything that is not a positive integer.
func ParseID(s string) (uint64, bool) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// dedupeAccessLevels drops repeated levels, keeping the first occurrence
func dedupeAccessLevels(levels []AccessLevel) []AccessLevel {
	seen := make(map[AccessLevel]bool, len(levels))
	out := make([]AccessLevel, 0, len(levels))
	for _, l := range levels {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}
