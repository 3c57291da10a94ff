package restapi

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/ortelius/pdvd-idp/database"
	gqlschema "github.com/ortelius/pdvd-idp/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func graphqlApp(t *testing.T) *fiber.App {
	t.Helper()
	conn, err := database.InitializeDatabase()
	require.NoError(t, err)
	schema, err := gqlschema.CreateSchema(database.NewUserStore(conn, zap.NewNop()), 10)
	require.NoError(t, err)

	app := fiber.New()
	app.Post("/graphql", GraphQLHandler(schema))
	return app
}

func postGraphQL(t *testing.T, app *fiber.App, body string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func TestGraphQLHandler(t *testing.T) {
	app := graphqlApp(t)

	status, body := postGraphQL(t, app, `{"query":"query Count { users { totalResults } }","operationName":"Count"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"data":{"users":{"totalResults":0}}}`, body)
}

func TestGraphQLHandlerRejectsBadBodies(t *testing.T) {
	app := graphqlApp(t)

	for _, body := range []string{`{`, `{}`, `{"query":""}`} {
		status, _ := postGraphQL(t, app, body)
		assert.Equal(t, http.StatusBadRequest, status, body)
	}
}

func TestGraphQLOpName(t *testing.T) {
	assert.Equal(t, "-", graphqlRequest{}.opName())
	assert.Equal(t, "Count", graphqlRequest{OperationName: "Count"}.opName())
}
