package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertGetDelete(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	at := time.UnixMilli(time.Now().UnixMilli())
	p := &Product{
		URL:         "https://www.flipkart.com/phone/p/itm1",
		Title:       "Phone",
		Price:       13490,
		Rating:      4.2,
		Reviews:     6209,
		Image:       "https://rukminim2.flixcart.com/a.jpeg",
		Fingerprint: 1<<63 | 5,
		LastChecked: at,
		CreatedAt:   at,
	}
	require.NoError(t, s.Insert(ctx, p))
	require.NotZero(t, p.ID)

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, *p, *got)

	byURL, err := s.GetByURL(ctx, p.URL)
	require.NoError(t, err)
	assert.Equal(t, p.ID, byURL.ID)

	hist, err := s.History(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, 13490.0, hist[0].Price)

	require.ErrorIs(t, s.Insert(ctx, &Product{URL: p.URL, Title: "dup"}), ErrDuplicate)

	require.NoError(t, s.Delete(ctx, p.ID))
	_, err = s.Get(ctx, p.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, p.ID), ErrNotFound)

	hist, err = s.History(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, hist, "history should cascade on delete")
}

func TestUpdateAppendsHistory(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	t0 := time.UnixMilli(1_700_000_000_000)
	p := &Product{URL: "https://www.flipkart.com/a/p/1", Title: "A", Price: 999, LastChecked: t0, CreatedAt: t0}
	require.NoError(t, s.Insert(ctx, p))

	p.Price = 899
	p.LastChecked = t0.Add(time.Hour)
	require.NoError(t, s.Update(ctx, p))

	p.Price = 0
	p.LastChecked = t0.Add(2 * time.Hour)
	require.NoError(t, s.Update(ctx, p))

	hist, err := s.History(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, hist, 2, "missing price must not be recorded")
	assert.Equal(t, []float64{999, 899}, []float64{hist[0].Price, hist[1].Price})

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Price)
	assert.True(t, got.LastChecked.Equal(t0.Add(2*time.Hour)))

	require.ErrorIs(t, s.Update(ctx, &Product{ID: 404}), ErrNotFound)
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	base := time.UnixMilli(1_700_000_000_000)
	for i, p := range []Product{
		{URL: "https://www.flipkart.com/1/p/1", Title: "Samsung Galaxy M14", Price: 13490},
		{URL: "https://www.flipkart.com/2/p/2", Title: "boAt Rockerz 450", Price: 1499},
		{URL: "https://www.flipkart.com/3/p/3", Title: "Apple iPhone 15", Price: 69999},
		{URL: "https://www.flipkart.com/4/p/4", Title: "100% Cotton Shirt", Price: 0},
	} {
		p.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Insert(ctx, &p))
	}

	titles := func(ps []Product) []string {
		out := make([]string, len(ps))
		for i, p := range ps {
			out[i] = p.Title
		}
		return out
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"newest first", Filter{}, []string{"100% Cotton Shirt", "Apple iPhone 15", "boAt Rockerz 450", "Samsung Galaxy M14"}},
		{"price range", Filter{MinPrice: 1000, MaxPrice: 20000}, []string{"boAt Rockerz 450", "Samsung Galaxy M14"}},
		{"title search is case-insensitive", Filter{Query: "galaxy"}, []string{"Samsung Galaxy M14"}},
		{"percent is literal", Filter{Query: "100%"}, []string{"100% Cotton Shirt"}},
		{"limit", Filter{Limit: 1}, []string{"100% Cotton Shirt"}},
		{"no match", Filter{Query: "pixel"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(got))
		})
	}

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestStale(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	now := time.UnixMilli(1_700_000_000_000)
	old := &Product{URL: "https://www.flipkart.com/old/p/1", Title: "old", LastChecked: now.Add(-10 * time.Hour), CreatedAt: now}
	older := &Product{URL: "https://www.flipkart.com/older/p/2", Title: "older", LastChecked: now.Add(-20 * time.Hour), CreatedAt: now}
	fresh := &Product{URL: "https://www.flipkart.com/fresh/p/3", Title: "fresh", LastChecked: now, CreatedAt: now}
	for _, p := range []*Product{old, older, fresh} {
		require.NoError(t, s.Insert(ctx, p))
	}

	got, err := s.Stale(ctx, now.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "older", got[0].Title)
	assert.Equal(t, "old", got[1].Title)

	got, err = s.Stale(ctx, now.Add(-time.Hour), 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMarkFailed_MovesProductBackInStaleQueue(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	now := time.UnixMilli(1_700_000_000_000)
	bad := &Product{URL: "https://www.flipkart.com/bad/p/1", Title: "bad", Price: 500, LastChecked: now.Add(-20 * time.Hour), CreatedAt: now}
	good := &Product{URL: "https://www.flipkart.com/good/p/2", Title: "good", LastChecked: now.Add(-10 * time.Hour), CreatedAt: now}
	for _, p := range []*Product{bad, good} {
		require.NoError(t, s.Insert(ctx, p))
	}

	require.NoError(t, s.MarkFailed(ctx, bad.ID, now.Add(-2*time.Hour)))
	require.NoError(t, s.MarkFailed(ctx, bad.ID, now.Add(-90*time.Minute)))
	require.ErrorIs(t, s.MarkFailed(ctx, 999, now), ErrNotFound)

	got, err := s.Stale(ctx, now.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "good", got[0].Title)
	assert.Equal(t, "bad", got[1].Title)

	got, err = s.Stale(ctx, now.Add(-3*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "good", got[0].Title)

	b, err := s.Get(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Failures)
	assert.Equal(t, 500.0, b.Price)
	assert.True(t, b.LastChecked.Equal(now.Add(-20*time.Hour)))

	b.LastChecked = now
	require.NoError(t, s.Update(ctx, b))
	b, err = s.Get(ctx, bad.ID)
	require.NoError(t, err)
	assert.Zero(t, b.Failures)
	assert.True(t, b.LastAttempted.Equal(now))
}
