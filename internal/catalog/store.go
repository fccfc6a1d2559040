package catalog

import (
	"context"
	"fmt"

	"stockcount-backend/internal/models"

	"gorm.io/gorm"
)

// Store reads the reference data other modules own: units, products,
// categories, employees and which products each unit carries.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// ProductsForUnit lists the active products linked to a unit, by id.
func (s *Store) ProductsForUnit(ctx context.Context, unitID uint) ([]models.Product, error) {
	var products []models.Product
	err := s.db.WithContext(ctx).
		Joins("JOIN product_units pu ON pu.product_id = products.id").
		Where("pu.unit_id = ? AND products.active = ?", unitID, true).
		Order("products.id ASC").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("products for unit %d: %w", unitID, err)
	}
	return products, nil
}

func (s *Store) Units(ctx context.Context) ([]models.Unit, error) {
	var units []models.Unit
	if err := s.db.WithContext(ctx).Order("name asc").Find(&units).Error; err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	return units, nil
}

func (s *Store) Categories(ctx context.Context) ([]models.Category, error) {
	var cats []models.Category
	if err := s.db.WithContext(ctx).Order("name asc").Find(&cats).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

func (s *Store) Employees(ctx context.Context, activeOnly bool) ([]models.Employee, error) {
	q := s.db.WithContext(ctx)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var emps []models.Employee
	if err := q.Order("name asc").Find(&emps).Error; err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	return emps, nil
}
