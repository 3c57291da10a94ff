// Package users defines the GraphQL types for provisioned users.
package users

import (
	"time"

	"github.com/graphql-go/graphql"
	"github.com/ortelius/pdvd-idp/model"
)

func userField(typ graphql.Output, get func(u *model.User) interface{}) *graphql.Field {
	return &graphql.Field{
		Type: typ,
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			if u, ok := p.Source.(*model.User); ok {
				return get(u), nil
			}
			return nil, nil
		},
	}
}

func formatTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// UserType represents a provisioned user
var UserType = graphql.NewObject(graphql.ObjectConfig{
	Name: "User",
	Fields: graphql.Fields{
		"id":           userField(graphql.NewNonNull(graphql.String), func(u *model.User) interface{} { return model.FormatID(u.ID) }),
		"externalId":   userField(graphql.String, func(u *model.User) interface{} { return u.ExternalID }),
		"userName":     userField(graphql.String, func(u *model.User) interface{} { return u.UserName }),
		"givenName":    userField(graphql.String, func(u *model.User) interface{} { return u.Name.GivenName }),
		"familyName":   userField(graphql.String, func(u *model.User) interface{} { return u.Name.FamilyName }),
		"email":        userField(graphql.String, func(u *model.User) interface{} { return u.Email }),
		"role":         userField(graphql.String, func(u *model.User) interface{} { return string(u.Role) }),
		"remoteId":     userField(graphql.String, func(u *model.User) interface{} { return u.RemoteID }),
		"accessLevels": userField(graphql.NewList(graphql.String), func(u *model.User) interface{} { return u.AccessLevelStrings() }),
		"idpId":        userField(graphql.String, func(u *model.User) interface{} { return u.IdpID }),
		"created":      userField(graphql.String, func(u *model.User) interface{} { return formatTime(u.Created) }),
		"lastModified": userField(graphql.String, func(u *model.User) interface{} { return formatTime(u.LastModified) }),
	},
})

// UserPageType represents one page of the creation-ordered user list
var UserPageType = graphql.NewObject(graphql.ObjectConfig{
	Name: "UserPage",
	Fields: graphql.Fields{
		"totalResults": &graphql.Field{Type: graphql.Int},
		"startIndex":   &graphql.Field{Type: graphql.Int},
		"itemsPerPage": &graphql.Field{Type: graphql.Int},
		"users":        &graphql.Field{Type: graphql.NewList(UserType)},
	},
})
