package stockcount

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

const accessKey = "stock_count_access"

// TokenGuard resolves :token once per request and stores the Access for the
// handlers behind it. Unknown tokens stop here with 404.
func TokenGuard(g *Gateway) fiber.Handler {
	return func(c *fiber.Ctx) error {
		acc, err := g.Resolve(c.UserContext(), c.Params("token"))
		if err != nil {
			return httpError(err)
		}
		c.Locals(accessKey, acc)
		return c.Next()
	}
}

func accessFrom(c *fiber.Ctx) *Access {
	acc, _ := c.Locals(accessKey).(*Access)
	return acc
}

// GET /api/public/stock-counts/:token?override=<json>&after=<productId>
func PublicViewHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var ov *Override
		if raw := c.Query("override"); raw != "" {
			ov = &Override{}
			if err := json.Unmarshal([]byte(raw), ov); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "override must be JSON")
			}
		}
		var after uint
		if raw := c.Query("after"); raw != "" {
			v, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid after")
			}
			after = uint(v)
		}

		v, err := svc.PublicDetail(c.UserContext(), accessFrom(c), ov, after)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(v)
	}
}

// POST /api/public/stock-counts/:token/begin
func PublicBeginHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sc, err := svc.Begin(c.UserContext(), accessFrom(c))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{
			"status":       sc.Status,
			"status_label": StatusLabel(sc.Status),
			"permissions":  PermissionsFor(sc.Status),
		})
	}
}

// PUT|POST /api/public/stock-counts/:token/items
func PublicItemsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ItemsRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		res, err := svc.SubmitPublicItems(c.UserContext(), accessFrom(c), body.Items)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(res)
	}
}

// POST /api/public/stock-counts/:token/finish
func PublicFinishHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sc, err := svc.Finish(c.UserContext(), accessFrom(c))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{
			"status":       sc.Status,
			"status_label": StatusLabel(sc.Status),
			"permissions":  PermissionsFor(sc.Status),
		})
	}
}
