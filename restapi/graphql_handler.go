package restapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
)

// graphqlRequest is the POST body of the users GraphQL endpoint
type graphqlRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

// opName is what the access log shows for the request
func (r graphqlRequest) opName() string {
	if r.OperationName == "" {
		return "-"
	}
	return r.OperationName
}

// GraphQLHandler serves read-only user queries against schema.
// The operation name is stored in the graphql_op local for the access log.
func GraphQLHandler(schema graphql.Schema) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req graphqlRequest
		if err := c.BodyParser(&req); err != nil || req.Query == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"errors": []fiber.Map{{"message": "request body must carry a query"}},
			})
		}
		c.Locals("graphql_op", req.opName())

		return c.JSON(graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		}))
	}
}
