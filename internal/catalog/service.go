package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/go-playground/validator/v10"

	"library/internal/storage/books"
	"library/internal/types"
)

const (
	DefaultPage = 1
	DefaultSize = 20
)

type ListParams struct {
	Search string
	Page   int `validate:"gte=1"`
	Size   int `validate:"gte=1"`
}

// Page is a window of the search result together with the total match count.
type Page struct {
	Items []*types.Book `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Size  int           `json:"size"`
	Pages int64         `json:"pages"`
}

type Service struct {
	books    books.Repository
	validate *validator.Validate
	l        *slog.Logger
}

func NewService(br books.Repository, l *slog.Logger) *Service {
	return &Service{books: br, validate: newValidator(), l: l}
}

// ListBooks validates p, then counts and fetches the requested page of books matching p.Search.
// Invalid pagination is reported as *ValidationError before the store is touched.
func (s *Service) ListBooks(ctx context.Context, p ListParams) (*Page, error) {
	if err := s.validate.StructCtx(ctx, p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, fromValidator(verrs)
		}
		return nil, err
	}

	f := books.ParseFilter(p.Search)

	w := books.Window{Limit: uint(p.Size), Offset: windowOffset(p.Page, p.Size)}

	items, total, err := s.books.FindCounted(ctx, f, w)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}

	if items == nil {
		items = make([]*types.Book, 0)
	}

	s.l.DebugContext(ctx, "Listed books",
		slog.Int("terms", len(f.Terms)), slog.Int64("total", total), slog.Int("returned", len(items)))

	return &Page{
		Items: items,
		Total: total,
		Page:  p.Page,
		Size:  p.Size,
		Pages: pageCount(total, p.Size),
	}, nil
}

// pageCount is ceil(total/size) without the overflow of total+size-1 for huge sizes.
func pageCount(total int64, size int) int64 {
	pages := total / int64(size)
	if total%int64(size) != 0 {
		pages++
	}

	return pages
}

// windowOffset is (page-1)*size, saturated at math.MaxInt64: any offset past the
// data yields an empty page, and Postgres offsets are bigint.
func windowOffset(page, size int) uint {
	if page-1 > math.MaxInt64/size {
		return math.MaxInt64
	}

	return uint(page-1) * uint(size)
}
