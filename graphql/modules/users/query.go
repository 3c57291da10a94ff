package users

import (
	"github.com/graphql-go/graphql"
)

// GetQueryFields returns the user queries to be mounted in the root schema
func GetQueryFields(store Reader, maxResults int) graphql.Fields {
	return graphql.Fields{
		"user": &graphql.Field{
			Type: UserType,
			Args: graphql.FieldConfigArgument{
				"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				id := p.Args["id"].(string)
				return ResolveUser(p.Context, store, id)
			},
		},
		"users": &graphql.Field{
			Type: UserPageType,
			Args: graphql.FieldConfigArgument{
				"count":      &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 10},
				"startIndex": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 1},
				"userName":   &graphql.ArgumentConfig{Type: graphql.String},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				count := p.Args["count"].(int)
				startIndex := p.Args["startIndex"].(int)
				userName, _ := p.Args["userName"].(string)
				if count > maxResults {
					count = maxResults
				}
				return ResolveUsers(p.Context, store, count, startIndex, userName)
			},
		},
	}
}
