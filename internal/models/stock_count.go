package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type StockCountStatus string

const (
	StockCountDraft     StockCountStatus = "draft"
	StockCountReady     StockCountStatus = "ready"
	StockCountCounting  StockCountStatus = "counting"
	StockCountFinalized StockCountStatus = "finalized"
)

// StockCount: one physical counting exercise for a unit on a date.
// PublicToken is set on the draft -> ready transition and never changes afterwards.
type StockCount struct {
	ID            uint      `gorm:"primaryKey"`
	Date          time.Time `gorm:"index;not null"`
	ResponsibleID uint      `gorm:"index;not null"`
	Responsible   Employee
	UnitID        uint `gorm:"index;not null"`
	Unit          Unit
	Status        StockCountStatus `gorm:"size:20;index;not null;default:'draft'"`
	PublicToken   *string          `gorm:"size:64;uniqueIndex"`

	// Category labels in walk order, and per category the product ids in walk order.
	// Empty means no explicit order was saved.
	CategoryOrder []string          `gorm:"type:text;serializer:json"`
	ProductOrder  map[string][]uint `gorm:"type:text;serializer:json"`

	Notes       string `gorm:"size:500"`
	ReadyAt     *time.Time
	CountingAt  *time.Time
	FinalizedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Items []StockCountItem `gorm:"foreignKey:StockCountID;constraint:OnDelete:CASCADE"`
}

type StockCountItem struct {
	ID              uint `gorm:"primaryKey"`
	StockCountID    uint `gorm:"not null;uniqueIndex:idx_stock_count_product"`
	ProductID       uint `gorm:"not null;uniqueIndex:idx_stock_count_product;index"`
	Product         Product
	CountedQuantity decimal.NullDecimal `gorm:"type:decimal(14,3)"`
	SystemQuantity  decimal.NullDecimal `gorm:"type:decimal(14,3)"`
	Notes           string              `gorm:"size:255"`

	// Touched is set on the first real write through the upsert path.
	Touched   bool `gorm:"not null;default:false"`
	CountedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
