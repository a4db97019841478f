package books

import (
	"context"
	"errors"

	"library/internal/types"
)

// ErrUnavailable wraps every failure of the underlying storage, so callers can tell
// "store is down" apart from "nothing matched".
var ErrUnavailable = errors.New("book store unavailable")

// Window limits the slice of the ordered result that is returned. Zero Limit means no limit.
type Window struct {
	Limit  uint
	Offset uint
}

type Repository interface {
	// Find returns books matching f ordered by authors (then id), restricted to w.
	Find(ctx context.Context, f Filter, w Window) ([]*types.Book, error)
	// Count returns the number of books matching f regardless of any window.
	Count(ctx context.Context, f Filter) (int64, error)
	// FindCounted is Find and Count over one consistent view of the store.
	FindCounted(ctx context.Context, f Filter, w Window) ([]*types.Book, int64, error)

	// Save inserts books and assigns their ids. Only used for out of band seeding.
	Save(ctx context.Context, books ...*types.Book) error

	EnsureSchema(ctx context.Context) error
}
