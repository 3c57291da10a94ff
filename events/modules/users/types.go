// Package users defines the provisioning events emitted when users change.
package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ortelius/pdvd-idp/model"
)

// EventType names a provisioning change
type EventType string

// Provisioning event types
const (
	UserCreated EventType = "user.created"
	UserPatched EventType = "user.patched"
	UserDeleted EventType = "user.deleted"
)

// SchemaVersion is the version of the event contract
const SchemaVersion = "v1"

// ProvisioningEvent represents a user change published to Kafka.
type ProvisioningEvent struct {
	EventType     EventType `json:"event_type"`
	EventID       string    `json:"event_id"`
	EventTime     time.Time `json:"event_time"`
	SchemaVersion string    `json:"schema_version"`

	UserID string `json:"user_id"`

	// User is the state after the change; nil for deletions
	User *UserSnapshot `json:"user,omitempty"`
}

// UserSnapshot is the part of a user carried in events
type UserSnapshot struct {
	ExternalID   string         `json:"external_id"`
	UserName     string         `json:"user_name"`
	GivenName    string         `json:"given_name"`
	FamilyName   string         `json:"family_name"`
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	RemoteID     string         `json:"remote_id"`
	AccessLevels []string       `json:"access_levels"`
	IdpID        string         `json:"idp_id"`
	Extensions   map[string]any `json:"extensions,omitempty"`
}

// NewEvent builds an event for a change to user
func NewEvent(eventType EventType, user *model.User) ProvisioningEvent {
	event := ProvisioningEvent{
		EventType:     eventType,
		EventID:       uuid.New().String(),
		EventTime:     time.Now().UTC(),
		SchemaVersion: SchemaVersion,
		UserID:        model.FormatID(user.ID),
	}
	if eventType != UserDeleted {
		event.User = &UserSnapshot{
			ExternalID:   user.ExternalID,
			UserName:     user.UserName,
			GivenName:    user.Name.GivenName,
			FamilyName:   user.Name.FamilyName,
			Email:        user.Email,
			Role:         string(user.Role),
			RemoteID:     user.RemoteID,
			AccessLevels: user.AccessLevelStrings(),
			IdpID:        user.IdpID,
			Extensions:   user.Extensions,
		}
	}
	return event
}

// Publisher sends provisioning events
type Publisher interface {
	Publish(ctx context.Context, event ProvisioningEvent) error
	Close() error
}

// NoopPublisher drops every event. It is used when no brokers are configured.
type NoopPublisher struct{}

// Publish implements Publisher
func (NoopPublisher) Publish(context.Context, ProvisioningEvent) error { return nil }

// Close implements Publisher
func (NoopPublisher) Close() error { return nil }

var _ Publisher = NoopPublisher{}
