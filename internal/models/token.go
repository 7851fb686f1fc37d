package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Category partitions tokens by discovery lifecycle stage.
type Category string

const (
	CategoryNew      Category = "new"
	CategoryFinal    Category = "final"
	CategoryMigrated Category = "migrated"
)

// Categories lists every valid category in display order.
var Categories = []Category{CategoryNew, CategoryFinal, CategoryMigrated}

// ErrUnknownCategory is returned when a category string is not one of Categories.
var ErrUnknownCategory = errors.New("unknown category")

// ParseCategory converts user input into a Category. Matching ignores case and surrounding space.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryNew, CategoryFinal, CategoryMigrated:
		return true
	}
	return false
}

// Token is a tradable asset with its market metrics.
// ID, Name, Symbol and Category never change once the token exists.
type Token struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Symbol    string    `gorm:"index;not null" json:"symbol"`
	Category  Category  `gorm:"index;not null" json:"category"`
	Price     float64   `gorm:"not null" json:"price"`
	Change24h float64   `gorm:"column:change_24h" json:"change24h"`
	Volume    float64   `json:"volume"`
	MarketCap float64   `json:"marketCap"`
	CreatedAt time.Time `json:"-"`
}
