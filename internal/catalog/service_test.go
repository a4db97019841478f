package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library/internal/storage/books"
	"library/internal/types"
)

func ptr(s string) *string { return &s }

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// countingRepo records calls and can be told to fail.
type countingRepo struct {
	books.Repository
	calls   int
	windows []books.Window
	err     error
}

func (c *countingRepo) Find(ctx context.Context, f books.Filter, w books.Window) ([]*types.Book, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.Repository.Find(ctx, f, w)
}

func (c *countingRepo) Count(ctx context.Context, f books.Filter) (int64, error) {
	c.calls++
	if c.err != nil {
		return 0, c.err
	}
	return c.Repository.Count(ctx, f)
}

func (c *countingRepo) FindCounted(ctx context.Context, f books.Filter, w books.Window) ([]*types.Book, int64, error) {
	c.calls++
	c.windows = append(c.windows, w)
	if c.err != nil {
		return nil, 0, c.err
	}
	return c.Repository.FindCounted(ctx, f, w)
}

func newRepo() *countingRepo {
	return &countingRepo{Repository: books.NewMemoryRepository(
		&types.Book{Id: 1, Title: ptr("The Hobbit"), Authors: ptr("J.R.R. Tolkien")},
		&types.Book{Id: 2, Title: ptr("Dune"), Authors: ptr("Frank Herbert")},
	)}
}

func TestListBooksExample(t *testing.T) {
	svc := NewService(newRepo(), discard)
	ctx := context.Background()

	page, err := svc.ListBooks(ctx, ListParams{Search: "tolkien hobbit", Page: 1, Size: 20})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.EqualValues(t, 1, page.Items[0].Id)
	assert.EqualValues(t, 1, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.Size)
	assert.EqualValues(t, 1, page.Pages)

	page, err = svc.ListBooks(ctx, ListParams{Search: "e", Page: 1, Size: 1})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.EqualValues(t, 2, page.Total)
	assert.EqualValues(t, 2, page.Pages)
}

func TestListBooksPartition(t *testing.T) {
	repo := newRepo()
	for i := 0; i < 23; i++ {
		require.NoError(t, repo.Save(context.Background(), &types.Book{Title: ptr("Filler"), Authors: ptr("Same Author")}))
	}
	svc := NewService(repo, discard)
	ctx := context.Background()

	all, err := repo.Find(ctx, books.Filter{}, books.Window{})
	require.NoError(t, err)

	for _, size := range []int{1, 4, 7, 20, 100} {
		var got []int64
		first, err := svc.ListBooks(ctx, ListParams{Page: 1, Size: size})
		require.NoError(t, err)

		for p := 1; int64(p) <= first.Pages; p++ {
			page, err := svc.ListBooks(ctx, ListParams{Page: p, Size: size})
			require.NoError(t, err)
			assert.EqualValues(t, len(all), page.Total)
			for _, b := range page.Items {
				got = append(got, b.Id)
			}
		}

		want := make([]int64, 0, len(all))
		for _, b := range all {
			want = append(want, b.Id)
		}
		assert.Equal(t, want, got, "size %d", size)
	}
}

func TestListBooksBeyondLastPage(t *testing.T) {
	svc := NewService(newRepo(), discard)

	page, err := svc.ListBooks(context.Background(), ListParams{Page: 5, Size: 20})
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.EqualValues(t, 2, page.Total)
}

func TestListBooksIdempotent(t *testing.T) {
	svc := NewService(newRepo(), discard)
	ctx := context.Background()

	a, err := svc.ListBooks(ctx, ListParams{Search: "e", Page: 1, Size: 1})
	require.NoError(t, err)
	b, err := svc.ListBooks(ctx, ListParams{Search: "e", Page: 1, Size: 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestListBooksValidation(t *testing.T) {
	tests := []struct {
		name   string
		params ListParams
		fields []string
	}{
		{"zero page", ListParams{Page: 0, Size: 20}, []string{"page"}},
		{"negative size", ListParams{Page: 1, Size: -3}, []string{"size"}},
		{"both", ListParams{Page: 0, Size: 0}, []string{"page", "size"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newRepo()
			svc := NewService(repo, discard)

			_, err := svc.ListBooks(context.Background(), tt.params)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			var got []string
			for _, f := range verr.Fields {
				assert.Equal(t, "query", f.Loc[0])
				assert.Equal(t, "greater_than_equal", f.Type)
				got = append(got, f.Loc[1])
			}
			assert.ElementsMatch(t, tt.fields, got)
			assert.Zero(t, repo.calls, "store must not be queried")
		})
	}
}

func TestListBooksStoreUnavailable(t *testing.T) {
	repo := newRepo()
	repo.err = errors.Join(books.ErrUnavailable, errors.New("connection refused"))
	svc := NewService(repo, discard)

	page, err := svc.ListBooks(context.Background(), ListParams{Page: 1, Size: 20})
	assert.Nil(t, page)
	assert.ErrorIs(t, err, books.ErrUnavailable)
}

func TestListBooksHugeSize(t *testing.T) {
	repo := newRepo()
	svc := NewService(repo, discard)
	ctx := context.Background()

	page, err := svc.ListBooks(ctx, ListParams{Page: 1, Size: math.MaxInt64})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.EqualValues(t, 2, page.Total)
	assert.EqualValues(t, 1, page.Pages)

	page, err = svc.ListBooks(ctx, ListParams{Page: 3, Size: math.MaxInt64})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.EqualValues(t, 2, page.Total)
	assert.EqualValues(t, uint(math.MaxInt64), repo.windows[len(repo.windows)-1].Offset)
}

func TestPageCount(t *testing.T) {
	assert.EqualValues(t, 0, pageCount(0, 20))
	assert.EqualValues(t, 1, pageCount(20, 20))
	assert.EqualValues(t, 2, pageCount(21, 20))
	assert.EqualValues(t, 1, pageCount(2, math.MaxInt64))
	assert.EqualValues(t, 1, pageCount(math.MaxInt64, math.MaxInt64))
}

func TestWindowOffset(t *testing.T) {
	assert.EqualValues(t, 0, windowOffset(1, 20))
	assert.EqualValues(t, 40, windowOffset(3, 20))
	assert.EqualValues(t, 0, windowOffset(1, math.MaxInt64))
	assert.EqualValues(t, uint(math.MaxInt64), windowOffset(math.MaxInt64, 2))
}
