package models

// ProductUnit: a product is visible to (and counted in) the units it is linked to.
type ProductUnit struct {
	ID        uint `gorm:"primaryKey"`
	UnitID    uint `gorm:"not null;uniqueIndex:idx_unit_product"`
	Unit      Unit
	ProductID uint `gorm:"not null;uniqueIndex:idx_unit_product;index"`
	Product   Product
}
