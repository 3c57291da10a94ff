package scim

import (
	"math"

	"github.com/gofiber/fiber/v2"
	"github.com/ortelius/pdvd-idp/database"
	"github.com/ortelius/pdvd-idp/restapi/views"
)

// UsersPage renders every provisioned user as an HTML table
func (h *Handler) UsersPage(c *fiber.Ctx) error {
	page, err := h.store.List(c.UserContext(), database.ListQuery{StartIndex: 1, Count: math.MaxInt32})
	if err != nil {
		return err
	}
	return views.Render(c, fiber.StatusOK, views.Users, fiber.Map{
		"Users": page.Users,
		"Total": page.TotalResults,
	})
}
