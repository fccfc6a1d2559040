package models

import "time"

type Product struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:100;not null"`
	// Category holds either a numeric Category id or a literal category name.
	Category  string `gorm:"size:100"`
	Measure   string `gorm:"size:20"` // kg, un, lt ...
	Active    bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
