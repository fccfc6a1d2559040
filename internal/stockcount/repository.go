package stockcount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockcount-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the persistence side of counts and their items.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type ListFilter struct {
	Status models.StockCountStatus
	UnitID uint
}

func (r *Repository) Create(ctx context.Context, c *models.StockCount) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("create stock count: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id uint) (*models.StockCount, error) {
	var c models.StockCount
	err := r.db.WithContext(ctx).Preload("Unit").Preload("Responsible").First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("stock count %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load stock count %d: %w", id, err)
	}
	return &c, nil
}

// GetByToken is a point lookup on the unique public_token index.
func (r *Repository) GetByToken(ctx context.Context, token string) (*models.StockCount, error) {
	var c models.StockCount
	err := r.db.WithContext(ctx).Preload("Unit").Preload("Responsible").
		Where("public_token = ?", token).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("unknown count link")
	}
	if err != nil {
		return nil, fmt.Errorf("load stock count by token: %w", err)
	}
	return &c, nil
}

func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.StockCount, error) {
	q := r.db.WithContext(ctx).Preload("Unit").Preload("Responsible").Model(&models.StockCount{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.UnitID != 0 {
		q = q.Where("unit_id = ?", f.UnitID)
	}
	var out []models.StockCount
	if err := q.Order("date DESC, id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list stock counts: %w", err)
	}
	return out, nil
}

// Transition moves a count from one status to another in a single conditional
// UPDATE. It returns false when the count was not in the expected status
// (or does not exist); the caller decides which.
func (r *Repository) Transition(ctx context.Context, id uint, from, to models.StockCountStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{"status": to, "updated_at": time.Now()}
	for k, v := range extra {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).Model(&models.StockCount{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("transition %s -> %s: %w", from, to, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// UpdateWhereStatus applies header changes only while the count is still in status.
func (r *Repository) UpdateWhereStatus(ctx context.Context, id uint, status models.StockCountStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.StockCount{}).
		Where("id = ? AND status = ?", id, status).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("update stock count %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// SaveOrder overwrites both order columns in one statement. A finalized count
// keeps the order it was finalized with.
func (r *Repository) SaveOrder(ctx context.Context, id uint, seq Sequence) (bool, error) {
	cats := seq.Categories
	if cats == nil {
		cats = []string{}
	}
	prods := seq.Products
	if prods == nil {
		prods = map[string][]uint{}
	}
	res := r.db.WithContext(ctx).Model(&models.StockCount{ID: id}).
		Where("status <> ?", models.StockCountFinalized).
		Select("CategoryOrder", "ProductOrder", "UpdatedAt").
		Updates(&models.StockCount{CategoryOrder: cats, ProductOrder: prods, UpdatedAt: time.Now()})
	if res.Error != nil {
		return false, fmt.Errorf("save order for %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// MoveDraft applies header updates that change a draft's unit. When the draft
// was already initialized, the placeholders nobody has filled in are replaced
// by placeholders for products. Entered quantities stay.
func (r *Repository) MoveDraft(ctx context.Context, id uint, updates map[string]any, products []models.Product) (bool, error) {
	moved := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.StockCount{}).
			Where("id = ? AND status = ?", id, models.StockCountDraft).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		moved = true

		var rows int64
		if err := tx.Model(&models.StockCountItem{}).Where("stock_count_id = ?", id).Count(&rows).Error; err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}
		if err := tx.Where("stock_count_id = ? AND touched = ? AND (counted_quantity IS NULL OR counted_quantity = 0)", id, false).
			Delete(&models.StockCountItem{}).Error; err != nil {
			return err
		}
		_, err := createPlaceholders(tx, id, products)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("move stock count %d: %w", id, err)
	}
	return moved, nil
}

// DeleteDraft removes a count and its items, only while it is a draft.
func (r *Repository) DeleteDraft(ctx context.Context, id uint) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND status = ?", id, models.StockCountDraft).Delete(&models.StockCount{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true
		return tx.Where("stock_count_id = ?", id).Delete(&models.StockCountItem{}).Error
	})
	if err != nil {
		return false, fmt.Errorf("delete stock count %d: %w", id, err)
	}
	return deleted, nil
}

// Items returns the count's rows in creation order with their products.
func (r *Repository) Items(ctx context.Context, countID uint) ([]models.StockCountItem, error) {
	var items []models.StockCountItem
	err := r.db.WithContext(ctx).Preload("Product").
		Where("stock_count_id = ?", countID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("load items of %d: %w", countID, err)
	}
	return items, nil
}

// CreatePlaceholders inserts a zero row per product. Rows that already exist
// are left alone, so repeating the call is harmless.
func (r *Repository) CreatePlaceholders(ctx context.Context, countID uint, products []models.Product) (int64, error) {
	return createPlaceholders(r.db.WithContext(ctx), countID, products)
}

func createPlaceholders(tx *gorm.DB, countID uint, products []models.Product) (int64, error) {
	if len(products) == 0 {
		return 0, nil
	}
	now := time.Now()
	rows := make([]models.StockCountItem, 0, len(products))
	for _, p := range products {
		rows = append(rows, models.StockCountItem{
			StockCountID:    countID,
			ProductID:       p.ID,
			CountedQuantity: decimal.NewNullDecimal(decimal.Zero),
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stock_count_id"}, {Name: "product_id"}},
		DoNothing: true,
	}).CreateInBatches(&rows, 200)
	if res.Error != nil {
		return 0, fmt.Errorf("create placeholders for %d: %w", countID, res.Error)
	}
	return res.RowsAffected, nil
}

// lockCount re-reads the count inside tx with a row lock so a concurrent
// transition waits for the item writes (and vice versa).
func lockCount(tx *gorm.DB, id uint) (*models.StockCount, error) {
	var c models.StockCount
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("stock count %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("lock stock count %d: %w", id, err)
	}
	return &c, nil
}

// countableProducts reports which of ids may be written to the count: those
// that already have a row in it, plus, when withUnit is set, the active
// products linked to the count's unit.
func countableProducts(tx *gorm.DB, c *models.StockCount, ids []uint, withUnit bool) (map[uint]bool, error) {
	out := make(map[uint]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var found []uint
	if err := tx.Model(&models.StockCountItem{}).
		Where("stock_count_id = ? AND product_id IN ?", c.ID, ids).
		Pluck("product_id", &found).Error; err != nil {
		return nil, fmt.Errorf("check items of %d: %w", c.ID, err)
	}
	if withUnit {
		var linked []uint
		if err := tx.Model(&models.ProductUnit{}).
			Joins("JOIN products ON products.id = product_units.product_id").
			Where("product_units.unit_id = ? AND product_units.product_id IN ? AND products.active = ?", c.UnitID, ids, true).
			Pluck("product_units.product_id", &linked).Error; err != nil {
			return nil, fmt.Errorf("check products of unit %d: %w", c.UnitID, err)
		}
		found = append(found, linked...)
	}
	for _, id := range found {
		out[id] = true
	}
	return out, nil
}

func upsertItem(tx *gorm.DB, countID uint, in parsedInput, now time.Time) error {
	row := models.StockCountItem{
		StockCountID:    countID,
		ProductID:       in.ProductID,
		CountedQuantity: decimal.NewNullDecimal(in.Quantity),
		Touched:         true,
		CountedAt:       &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stock_count_id"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"counted_quantity", "touched", "counted_at", "updated_at"}),
	}).Create(&row).Error
}

func (r *Repository) Categories(ctx context.Context) ([]models.Category, error) {
	var cats []models.Category
	if err := r.db.WithContext(ctx).Find(&cats).Error; err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	return cats, nil
}

// PreviousFinalized finds the most recent finalized count of the same
// responsible employee with a smaller id. Having none is the usual case.
func (r *Repository) PreviousFinalized(ctx context.Context, responsibleID, beforeID uint) (*models.StockCount, error) {
	var found []models.StockCount
	err := r.db.WithContext(ctx).
		Where("responsible_id = ? AND status = ? AND id < ?", responsibleID, models.StockCountFinalized, beforeID).
		Order("id DESC").
		Limit(1).
		Find(&found).Error
	if err != nil {
		return nil, fmt.Errorf("previous finalized count: %w", err)
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

func (r *Repository) employeeExists(ctx context.Context, id uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Employee{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func (r *Repository) unitExists(ctx context.Context, id uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Unit{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}
