package store

import (
	"sync"
	"testing"

	"token-pulse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTokens() []models.Token {
	return []models.Token{
		{ID: "a", Name: "Alpha", Symbol: "ALP", Category: models.CategoryNew, Price: 1.5, Change24h: 2},
		{ID: "b", Name: "Beta", Symbol: "BET", Category: models.CategoryFinal, Price: 20, Change24h: -1},
		{ID: "c", Name: "Gamma", Symbol: "GAM", Category: models.CategoryMigrated, Price: 0.25, Change24h: 0},
	}
}

func TestStore_SetTokens(t *testing.T) {
	s := New()
	s.SetLoading(true)

	st := s.SetTokens(sampleTokens())

	assert.Len(t, st.Items, 3)
	assert.False(t, st.Loading, "setTokens clears loading")

	tok, ok := st.Token("b")
	require.True(t, ok)
	assert.Equal(t, "Beta", tok.Name)
}

func TestStore_SetTokensDropsDuplicateIDs(t *testing.T) {
	s := New()
	tokens := append(sampleTokens(), models.Token{ID: "a", Name: "Alpha clone", Price: 9})

	st := s.SetTokens(tokens)

	require.Len(t, st.Items, 3)
	seen := make(map[string]bool)
	for _, tok := range st.Items {
		assert.False(t, seen[tok.ID], "duplicate id %s", tok.ID)
		seen[tok.ID] = true
	}
	tok, _ := st.Token("a")
	assert.Equal(t, "Alpha", tok.Name, "first occurrence wins")
}

func TestStore_SetTokensCopiesInput(t *testing.T) {
	s := New()
	tokens := sampleTokens()
	s.SetTokens(tokens)

	tokens[0].Price = 999

	tok, _ := s.Snapshot().Token("a")
	assert.Equal(t, 1.5, tok.Price)
}

func TestStore_UpdateTokenPrice(t *testing.T) {
	s := New()
	s.SetTokens(sampleTokens())

	st := s.UpdateTokenPrice("b", 21.1234, 4.56)

	tok, ok := st.Token("b")
	require.True(t, ok)
	assert.Equal(t, 21.1234, tok.Price)
	assert.Equal(t, 4.56, tok.Change24h)
	assert.Equal(t, models.CategoryFinal, tok.Category)
	assert.Equal(t, "BET", tok.Symbol)
}

func TestStore_UpdateMissingIDIsNoOp(t *testing.T) {
	s := New()
	before := s.SetTokens(sampleTokens())

	after := s.UpdateTokenPrice("nonexistent", 1, 1)

	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.Items, after.Items)
	assert.Same(t, &before.Items[0], &after.Items[0], "items slice must not be reallocated")
}

func TestStore_PublishedSnapshotsAreImmutable(t *testing.T) {
	s := New()
	before := s.SetTokens(sampleTokens())

	s.UpdateTokenPrice("a", 3, 3)

	assert.Equal(t, 1.5, before.Items[0].Price, "earlier snapshot keeps old price")
	assert.Equal(t, 2.0, before.Items[0].Change24h, "earlier snapshot keeps old change")
}

func TestStore_LoadingAndError(t *testing.T) {
	s := New()
	s.SetTokens(sampleTokens())

	st := s.SetLoading(true)
	assert.True(t, st.Loading)
	assert.Len(t, st.Items, 3)

	st = s.SetError("backend down")
	assert.Equal(t, "backend down", st.Error)
	assert.Len(t, st.Items, 3, "errors never clear items")

	st = s.SetError("")
	assert.Empty(t, st.Error)
}

func TestStore_VersionOnlyAdvancesOnChange(t *testing.T) {
	s := New()
	v1 := s.SetLoading(true).Version
	v2 := s.SetLoading(true).Version
	v3 := s.SetLoading(false).Version

	assert.Equal(t, v1, v2)
	assert.Equal(t, v1+1, v3)
}

func TestStore_DispatchBatchIsOneStep(t *testing.T) {
	s := New()
	s.SetTokens(sampleTokens())
	updates, unsubscribe := s.Subscribe()
	defer unsubscribe()

	st := s.Dispatch(
		UpdateTokenPrice{ID: "a", Price: 2, Change24h: 1},
		UpdateTokenPrice{ID: "b", Price: 30, Change24h: 5},
		UpdateTokenPrice{ID: "missing", Price: 1, Change24h: 1},
	)

	got := <-updates
	assert.Equal(t, st.Version, got.Version)
	a, _ := got.Token("a")
	b, _ := got.Token("b")
	assert.Equal(t, 2.0, a.Price)
	assert.Equal(t, 30.0, b.Price)
	assert.Len(t, updates, 0, "one notification per dispatch")
}

func TestStore_SubscribeLatestWins(t *testing.T) {
	s := New()
	updates, unsubscribe := s.Subscribe()

	s.SetTokens(sampleTokens())
	s.UpdateTokenPrice("a", 2, 2)
	last := s.UpdateTokenPrice("a", 3, 3)

	got := <-updates
	assert.Equal(t, last.Version, got.Version)

	unsubscribe()
	unsubscribe()
	s.SetLoading(true)
	assert.Len(t, updates, 0, "no delivery after unsubscribe")
}

func TestStore_ConcurrentWritersKeepPairsConsistent(t *testing.T) {
	s := New()
	s.SetTokens(sampleTokens())

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				v := float64(w*1000 + i)
				s.UpdateTokenPrice("a", v, v)
			}
		}(w)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		tok, _ := s.Snapshot().Token("a")
		if tok.Price != 1.5 {
			require.Equal(t, tok.Price, tok.Change24h, "price and change must come from the same update")
		}
		select {
		case <-done:
			return
		default:
		}
	}
}

func TestReduce_IsPure(t *testing.T) {
	initial := Reduce(State{}, SetTokens{Tokens: sampleTokens()})

	next := Reduce(initial, UpdateTokenPrice{ID: "c", Price: 0.3, Change24h: 1})

	c0, _ := initial.Token("c")
	c1, _ := next.Token("c")
	assert.Equal(t, 0.25, c0.Price)
	assert.Equal(t, 0.3, c1.Price)
}

func TestReduce_WorksWithoutIndex(t *testing.T) {
	st := State{Items: sampleTokens()}

	next := Reduce(st, UpdateTokenPrice{ID: "b", Price: 5, Change24h: 5})

	b, ok := next.Token("b")
	require.True(t, ok)
	assert.Equal(t, 5.0, b.Price)
	assert.Equal(t, 20.0, st.Items[1].Price)
}

func TestStore_DispatchAt(t *testing.T) {
	s := New()
	s.SetTokens(sampleTokens())
	seen := s.Snapshot().Version

	s.UpdateTokenPrice("a", 7, 0)
	st, ok := s.DispatchAt(seen, UpdateTokenPrice{ID: "a", Price: 99, Change24h: 1})

	assert.False(t, ok, "stale version is rejected")
	a, _ := st.Token("a")
	assert.Equal(t, 7.0, a.Price)

	st, ok = s.DispatchAt(st.Version, UpdateTokenPrice{ID: "a", Price: 99, Change24h: 1})
	assert.True(t, ok)
	a, _ = st.Token("a")
	assert.Equal(t, 99.0, a.Price)
	assert.Equal(t, seen+2, st.Version)
}
