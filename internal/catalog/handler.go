package catalog

import (
	"strconv"

	"stockcount-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type UnitResponse struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

type ProductResponse struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Measure  string `json:"measure"`
}

type CategoryResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type EmployeeResponse struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Active bool   `json:"active"`
}

// GET /api/units
func ListUnitsHandler(s *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		units, err := s.Units(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "units could not be listed")
		}
		res := make([]UnitResponse, 0, len(units))
		for _, u := range units {
			res = append(res, UnitResponse{ID: u.ID, Name: u.Name, Address: u.Address})
		}
		return c.JSON(res)
	}
}

// GET /api/units/:id/products
func ListUnitProductsHandler(s *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseUint(c.Params("id"), 10, 64)
		if err != nil || id == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid unit id")
		}
		products, err := s.ProductsForUnit(c.UserContext(), uint(id))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "products could not be listed")
		}
		res := make([]ProductResponse, 0, len(products))
		for _, p := range products {
			res = append(res, productResponse(p))
		}
		return c.JSON(res)
	}
}

// GET /api/categories
func ListCategoriesHandler(s *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cats, err := s.Categories(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "categories could not be listed")
		}
		res := make([]CategoryResponse, 0, len(cats))
		for _, cat := range cats {
			res = append(res, CategoryResponse{ID: cat.ID, Name: cat.Name})
		}
		return c.JSON(res)
	}
}

// GET /api/employees?all=true
func ListEmployeesHandler(s *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		emps, err := s.Employees(c.UserContext(), c.Query("all") != "true")
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "employees could not be listed")
		}
		res := make([]EmployeeResponse, 0, len(emps))
		for _, e := range emps {
			res = append(res, EmployeeResponse{ID: e.ID, Name: e.Name, Phone: e.Phone, Active: e.Active})
		}
		return c.JSON(res)
	}
}

func productResponse(p models.Product) ProductResponse {
	return ProductResponse{ID: p.ID, Name: p.Name, Category: p.Category, Measure: p.Measure}
}
