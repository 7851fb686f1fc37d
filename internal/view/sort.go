package view

import (
	"errors"
	"fmt"
	"strings"

	"token-pulse/internal/models"
)

// SortKey names the numeric token field used for ordering.
type SortKey string

const (
	SortByPrice     SortKey = "price"
	SortByChange24h SortKey = "change24h"
	SortByVolume    SortKey = "volume"
	SortByMarketCap SortKey = "marketCap"
)

// Direction is the sort order.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// ErrUnknownSortKey is returned for a sort key outside the supported set.
var ErrUnknownSortKey = errors.New("unknown sort key")

// ParseSortKey accepts the key names case-insensitively.
func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "price":
		return SortByPrice, nil
	case "change24h":
		return SortByChange24h, nil
	case "volume":
		return SortByVolume, nil
	case "marketcap":
		return SortByMarketCap, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSortKey, s)
}

func (k SortKey) value(t models.Token) float64 {
	switch k {
	case SortByChange24h:
		return t.Change24h
	case SortByVolume:
		return t.Volume
	case SortByMarketCap:
		return t.MarketCap
	default:
		return t.Price
	}
}

// SortSpec is the active sort column and direction.
type SortSpec struct {
	Key       SortKey   `json:"key"`
	Direction Direction `json:"direction"`
}

// DefaultSort orders by price, highest first.
var DefaultSort = SortSpec{Key: SortByPrice, Direction: Descending}

// Select is a click on a column header: the active key flips direction,
// any other key becomes active in descending order.
func (s SortSpec) Select(key SortKey) SortSpec {
	if s.Key == key {
		return s.Toggle()
	}
	return SortSpec{Key: key, Direction: Descending}
}

// Toggle flips the direction and keeps the key.
func (s SortSpec) Toggle() SortSpec {
	if s.Direction == Ascending {
		s.Direction = Descending
	} else {
		s.Direction = Ascending
	}
	return s
}
