package scim

import (
	"net/http"
	"regexp"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/ortelius/pdvd-idp/database"
)

// userNameFilter matches the only supported filter expression: userName eq "value"
var userNameFilter = regexp.MustCompile(`(?i)^\s*userName\s+eq\s+"((?:[^"\\]|\\.)*)"\s*$`)

// parseListQuery reads count, startIndex and filter from the query string.
// Missing values take their defaults; count is capped at maxResults.
func parseListQuery(c *fiber.Ctx, defaultCount, maxResults int) (database.ListQuery, *Error) {
	q := database.ListQuery{StartIndex: 1, Count: defaultCount}

	if v := c.Query("count"); v != "" {
		count, err := strconv.Atoi(v)
		if err != nil {
			return q, NewError(http.StatusBadRequest, "count must be an integer", ScimTypeInvalidValue)
		}
		q.Count = count
	}
	if v := c.Query("startIndex"); v != "" {
		start, err := strconv.Atoi(v)
		if err != nil {
			return q, NewError(http.StatusBadRequest, "startIndex must be an integer", ScimTypeInvalidValue)
		}
		q.StartIndex = start
	}

	if q.Count < 0 {
		q.Count = 0
	}
	if q.Count > maxResults {
		q.Count = maxResults
	}
	if q.StartIndex < 1 {
		q.StartIndex = 1
	}

	if v := c.Query("filter"); v != "" {
		m := userNameFilter.FindStringSubmatch(v)
		if m == nil {
			return q, NewError(http.StatusBadRequest, "only 'userName eq \"value\"' filters are supported", ScimTypeInvalidFilter)
		}
		userName, err := strconv.Unquote(`"` + m[1] + `"`)
		if err != nil {
			return q, NewError(http.StatusBadRequest, "invalid filter value", ScimTypeInvalidFilter)
		}
		q.UserName = userName
	}
	return q, nil
}
