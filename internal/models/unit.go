package models

import "time"

// Unit: a site (bar, kitchen, store) whose stock is counted.
type Unit struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:100;not null;unique"`
	Address   string `gorm:"size:255"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
