package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ortelius/pdvd-idp/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventCarriesSnapshot(t *testing.T) {
	u := model.NewUser(12, time.Now())
	u.UserName = "alice"
	u.Name = model.Name{GivenName: "Alice", FamilyName: "Smith"}
	u.Role = model.RoleOwner
	u.Extensions["team"] = "core"

	event := NewEvent(UserCreated, u)

	assert.Equal(t, UserCreated, event.EventType)
	assert.Equal(t, "12", event.UserID)
	assert.Equal(t, SchemaVersion, event.SchemaVersion)
	_, err := uuid.Parse(event.EventID)
	assert.NoError(t, err)

	require.NotNil(t, event.User)
	assert.Equal(t, "alice", event.User.UserName)
	assert.Equal(t, "Alice", event.User.GivenName)
	assert.Equal(t, "owner", event.User.Role)
	assert.Equal(t, []string{"readonly_secret"}, event.User.AccessLevels)
	assert.Equal(t, "core", event.User.Extensions["team"])
}

func TestNewEventDeletionHasNoSnapshot(t *testing.T) {
	event := NewEvent(UserDeleted, &model.User{ID: 3})
	assert.Equal(t, "3", event.UserID)
	assert.Nil(t, event.User)
}

func TestEventIDsAreUnique(t *testing.T) {
	u := model.NewUser(1, time.Now())
	assert.NotEqual(t, NewEvent(UserPatched, u).EventID, NewEvent(UserPatched, u).EventID)
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), NewEvent(UserCreated, model.NewUser(1, time.Now()))))
	assert.NoError(t, p.Close())
}
