package view

import (
	"testing"

	"token-pulse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(tokens []models.Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.ID
	}
	return out
}

func prices(tokens []models.Token) []float64 {
	out := make([]float64, len(tokens))
	for i, t := range tokens {
		out[i] = t.Price
	}
	return out
}

func TestProject_CategoryFilter(t *testing.T) {
	items := []models.Token{
		{ID: "1", Name: "Alpha", Symbol: "ALP", Category: models.CategoryNew, Price: 1},
		{ID: "2", Name: "Beta", Symbol: "BET", Category: models.CategoryFinal, Price: 2},
	}

	got := Project(items, Query{Category: models.CategoryNew, Sort: DefaultSort})

	assert.Equal(t, []string{"1"}, ids(got))
}

func TestProject_Search(t *testing.T) {
	items := []models.Token{
		{ID: "1", Name: "Alpha", Symbol: "ALP", Category: models.CategoryNew, Price: 1},
		{ID: "2", Name: "Beta", Symbol: "BET", Category: models.CategoryNew, Price: 2},
		{ID: "3", Name: "Pepe", Symbol: "PAL", Category: models.CategoryNew, Price: 3},
		{ID: "4", Name: "Wallet", Symbol: "WAL", Category: models.CategoryFinal, Price: 4},
	}

	testCases := []struct {
		name     string
		search   string
		expected []string
	}{
		{name: "lower case term", search: "al", expected: []string{"3", "1"}},
		{name: "upper case term", search: "AL", expected: []string{"3", "1"}},
		{name: "symbol only match", search: "pal", expected: []string{"3"}},
		{name: "empty term passes through", search: "", expected: []string{"3", "2", "1"}},
		{name: "blank term passes through", search: "   ", expected: []string{"3", "2", "1"}},
		{name: "no match is empty, not everything", search: "zzz", expected: []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Project(items, Query{Category: models.CategoryNew, Search: tc.search, Sort: DefaultSort})
			assert.Equal(t, tc.expected, ids(got))
		})
	}
}

func TestProject_SortAndToggle(t *testing.T) {
	var items []models.Token
	for i, p := range []float64{1, 3, 2, 4} {
		items = append(items, models.Token{
			ID:        string(rune('a' + i)),
			Category:  models.CategoryNew,
			Price:     p,
			Change24h: -p,
			Volume:    p * 10,
			MarketCap: 100 - p,
		})
	}

	spec := DefaultSort
	q := Query{Category: models.CategoryNew, Sort: spec}
	assert.Equal(t, []float64{4, 3, 2, 1}, prices(Project(items, q)))

	q.Sort = q.Sort.Select(SortByPrice)
	assert.Equal(t, Ascending, q.Sort.Direction)
	assert.Equal(t, []float64{1, 2, 3, 4}, prices(Project(items, q)))

	q.Sort = q.Sort.Select(SortByVolume)
	assert.Equal(t, SortSpec{Key: SortByVolume, Direction: Descending}, q.Sort, "new key resets to descending")
	assert.Equal(t, []float64{4, 3, 2, 1}, prices(Project(items, q)))

	q.Sort = SortSpec{Key: SortByChange24h, Direction: Descending}
	assert.Equal(t, []float64{1, 2, 3, 4}, prices(Project(items, q)))

	q.Sort = SortSpec{Key: SortByMarketCap, Direction: Ascending}
	assert.Equal(t, []float64{4, 3, 2, 1}, prices(Project(items, q)))
}

func TestProject_TiesOrderedByID(t *testing.T) {
	items := []models.Token{
		{ID: "c", Category: models.CategoryNew, Price: 5},
		{ID: "a", Category: models.CategoryNew, Price: 5},
		{ID: "b", Category: models.CategoryNew, Price: 7},
	}

	desc := Project(items, Query{Category: models.CategoryNew, Sort: SortSpec{Key: SortByPrice, Direction: Descending}})
	asc := Project(items, Query{Category: models.CategoryNew, Sort: SortSpec{Key: SortByPrice, Direction: Ascending}})

	assert.Equal(t, []string{"b", "a", "c"}, ids(desc))
	assert.Equal(t, []string{"a", "c", "b"}, ids(asc))
}

func TestProject_DoesNotMutateInput(t *testing.T) {
	items := []models.Token{
		{ID: "1", Category: models.CategoryNew, Price: 1},
		{ID: "2", Category: models.CategoryNew, Price: 2},
	}
	q := Query{Category: models.CategoryNew, Sort: DefaultSort}

	first := Project(items, q)
	second := Project(items, q)

	assert.Equal(t, []string{"1", "2"}, ids(items))
	assert.Equal(t, first, second)
}

func TestFilterCategory(t *testing.T) {
	items := []models.Token{
		{ID: "1", Category: models.CategoryMigrated},
		{ID: "2", Category: models.CategoryNew},
		{ID: "3", Category: models.CategoryMigrated},
	}

	assert.Equal(t, []string{"1", "3"}, ids(FilterCategory(items, models.CategoryMigrated)))
	assert.Empty(t, FilterCategory(items, models.CategoryFinal))
}

func TestParseSortKey(t *testing.T) {
	for input, expected := range map[string]SortKey{
		"price":     SortByPrice,
		"Change24h": SortByChange24h,
		"volume":    SortByVolume,
		"marketCap": SortByMarketCap,
		"MARKETCAP": SortByMarketCap,
	} {
		got, err := ParseSortKey(input)
		require.NoError(t, err, input)
		assert.Equal(t, expected, got)
	}

	_, err := ParseSortKey("name")
	assert.ErrorIs(t, err, ErrUnknownSortKey)
}
