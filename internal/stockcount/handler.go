package stockcount

import (
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"stockcount-backend/internal/auth"

	"github.com/gofiber/fiber/v2"
)

type CreateRequest struct {
	Date          string `json:"date"` // "2026-03-01"
	ResponsibleID uint   `json:"responsible_id"`
	UnitID        uint   `json:"unit_id"`
	Notes         string `json:"notes"`
}

type UpdateRequest struct {
	Date          *string `json:"date"`
	ResponsibleID *uint   `json:"responsible_id"`
	UnitID        *uint   `json:"unit_id"`
	Notes         *string `json:"notes"`
}

type ItemsRequest struct {
	Items []QuantityInput `json:"items"`
}

type OrderRequest struct {
	CategoryOrder []string            `json:"category_order"`
	ProductOrder  map[string][]string `json:"product_order"`
}

type CloseResponse struct {
	Count     CountSummary `json:"count"`
	PublicURL string       `json:"public_url"`
	Token     string       `json:"token"`
	Notified  bool         `json:"notified"`
	Warning   string       `json:"warning,omitempty"`
}

// httpError maps domain errors to HTTP statuses once, at the edge.
func httpError(err error) error {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	log.Printf("[ERROR] stock count: %v", err)
	return fiber.NewError(fiber.StatusInternalServerError, "unexpected server error")
}

func actorFrom(c *fiber.Ctx) Actor {
	id, name := auth.CurrentUser(c)
	return Actor{UserID: id, Name: name}
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return uint(id), nil
}

func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	return t, nil
}

// POST /api/stock-counts
func CreateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		date, err := parseDate(body.Date)
		if err != nil {
			return err
		}

		sc, err := svc.Create(c.UserContext(), actorFrom(c), CreateInput{
			Date:          date,
			ResponsibleID: body.ResponsibleID,
			UnitID:        body.UnitID,
			Notes:         body.Notes,
		})
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(Summary(*sc))
	}
}

// GET /api/stock-counts?status=&unit_id=
func ListHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var f ListFilter
		if raw := c.Query("status"); raw != "" {
			st, ok := ParseStatus(raw)
			if !ok {
				return fiber.NewError(fiber.StatusBadRequest, "unknown status "+raw)
			}
			f.Status = st
		}
		if raw := c.Query("unit_id"); raw != "" {
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid unit_id")
			}
			f.UnitID = uint(id)
		}

		counts, err := svc.List(c.UserContext(), f)
		if err != nil {
			return httpError(err)
		}
		res := make([]CountSummary, 0, len(counts))
		for _, sc := range counts {
			res = append(res, Summary(sc))
		}
		return c.JSON(res)
	}
}

// GET /api/stock-counts/:id
func DetailHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		v, err := svc.Detail(c.UserContext(), id)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(v)
	}
}

// PUT /api/stock-counts/:id
func UpdateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		var body UpdateRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		in := HeaderInput{ResponsibleID: body.ResponsibleID, UnitID: body.UnitID, Notes: body.Notes}
		if body.Date != nil {
			d, err := parseDate(*body.Date)
			if err != nil {
				return err
			}
			in.Date = &d
		}

		sc, err := svc.UpdateHeader(c.UserContext(), actorFrom(c), id, in)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(Summary(*sc))
	}
}

// DELETE /api/stock-counts/:id
func DeleteHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		if err := svc.Delete(c.UserContext(), actorFrom(c), id); err != nil {
			return httpError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// POST /api/stock-counts/:id/initialize
func InitializeHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		created, err := svc.Initialize(c.UserContext(), actorFrom(c), id)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"created": created})
	}
}

// POST /api/stock-counts/:id/close
func CloseHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		res, err := svc.Close(c.UserContext(), actorFrom(c), id)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(CloseResponse{
			Count:     Summary(*res.Count),
			PublicURL: res.PublicURL,
			Token:     res.Token,
			Notified:  res.Notified,
			Warning:   res.Warning,
		})
	}
}

// POST /api/stock-counts/:id/finalize
func FinalizeHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		sc, err := svc.Finalize(c.UserContext(), actorFrom(c), id)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(Summary(*sc))
	}
}

// PUT /api/stock-counts/:id/items
func SaveItemsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		var body ItemsRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		res, err := svc.SaveItems(c.UserContext(), actorFrom(c), id, body.Items)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(res)
	}
}

// PUT /api/stock-counts/:id/corrections
func CorrectionsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		var body ItemsRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		res, err := svc.SaveCorrections(c.UserContext(), actorFrom(c), id, body.Items)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(res)
	}
}

// DELETE /api/stock-counts/:id/items/:productId
func DeleteItemHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		productID, err := paramID(c, "productId")
		if err != nil {
			return err
		}
		if err := svc.DeleteItem(c.UserContext(), actorFrom(c), id, productID); err != nil {
			return httpError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/stock-counts/:id/order
func GetOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		v, err := svc.Ordering(c.UserContext(), id)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(v)
	}
}

// PUT /api/stock-counts/:id/order
func SaveOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		var body OrderRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		v, err := svc.SaveOrder(c.UserContext(), actorFrom(c), id, body.CategoryOrder, body.ProductOrder)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(v)
	}
}

// GET /api/stock-counts/:id/previous-order
func PreviousOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		hint, err := svc.PreviousOrderHint(c.UserContext(), id)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(hint)
	}
}

// GET /api/stock-counts/:id/export
func ExportHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		f, name, err := svc.Export(c.UserContext(), id)
		if err != nil {
			return httpError(err)
		}
		defer f.Close()

		buf, err := f.WriteToBuffer()
		if err != nil {
			return httpError(err)
		}
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+name+`"`)
		return c.Send(buf.Bytes())
	}
}
