package view

import (
	"cmp"
	"slices"
	"strings"

	"token-pulse/internal/models"
)

// Query is everything the projection depends on besides the items.
type Query struct {
	Category models.Category `json:"category"`
	Search   string          `json:"search"`
	Sort     SortSpec        `json:"sort"`
}

// Project filters items by category and search term and orders them by q.Sort.
// Ties on the sort key are ordered by ascending id. items is not modified.
func Project(items []models.Token, q Query) []models.Token {
	term := strings.ToLower(strings.TrimSpace(q.Search))

	out := make([]models.Token, 0, len(items))
	for _, t := range items {
		if t.Category != q.Category {
			continue
		}
		if term != "" && !matches(t, term) {
			continue
		}
		out = append(out, t)
	}

	key := q.Sort.Key
	desc := q.Sort.Direction == Descending
	slices.SortFunc(out, func(a, b models.Token) int {
		c := cmp.Compare(key.value(a), key.value(b))
		if desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// FilterCategory returns the tokens of one category in their original order.
func FilterCategory(items []models.Token, category models.Category) []models.Token {
	out := make([]models.Token, 0, len(items))
	for _, t := range items {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

func matches(t models.Token, lowerTerm string) bool {
	return strings.Contains(strings.ToLower(t.Name), lowerTerm) ||
		strings.Contains(strings.ToLower(t.Symbol), lowerTerm)
}
