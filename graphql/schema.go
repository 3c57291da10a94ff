// Package graphql assembles the read-only GraphQL schema of the service.
package graphql

import (
	"github.com/graphql-go/graphql"
	"github.com/ortelius/pdvd-idp/graphql/modules/users"
)

// CreateSchema builds the root schema over the provisioning store
func CreateSchema(store users.Reader, maxResults int) (graphql.Schema, error) {
	fields := graphql.Fields{}
	for name, field := range users.GetQueryFields(store, maxResults) {
		fields[name] = field
	}

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Query",
			Fields: fields,
		}),
	})
}
