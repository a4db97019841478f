package books

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"library/internal/types"
)

// NewMemoryRepository keeps books in process memory, with the same ordering and
// matching rules as the Postgres repository. Handy for local runs and tests.
func NewMemoryRepository(books ...*types.Book) Repository {
	m := &memoryRepo{}
	m.insert(books)
	return m
}

type memoryRepo struct {
	mu     sync.RWMutex
	books  []types.Book
	lastId int64
}

// compareBooks orders by authors ascending with NULLs last, then by id.
func compareBooks(a, b *types.Book) int {
	switch {
	case a.Authors == nil && b.Authors != nil:
		return 1
	case a.Authors != nil && b.Authors == nil:
		return -1
	case a.Authors != nil && b.Authors != nil:
		if c := cmp.Compare(*a.Authors, *b.Authors); c != 0 {
			return c
		}
	}

	return cmp.Compare(a.Id, b.Id)
}

func (m *memoryRepo) matching(f Filter) []*types.Book {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ret []*types.Book
	for ix := range m.books {
		if f.Matches(&m.books[ix]) {
			b := m.books[ix]
			ret = append(ret, &b)
		}
	}

	slices.SortFunc(ret, compareBooks)

	return ret
}

func applyWindow(rows []*types.Book, w Window) []*types.Book {
	if w.Offset >= uint(len(rows)) {
		return []*types.Book{}
	}
	rows = rows[w.Offset:]

	if w.Limit != 0 && w.Limit < uint(len(rows)) {
		rows = rows[:w.Limit]
	}

	return rows
}

func (m *memoryRepo) Find(ctx context.Context, f Filter, w Window) ([]*types.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}

	return applyWindow(m.matching(f), w), nil
}

func (m *memoryRepo) FindCounted(ctx context.Context, f Filter, w Window) ([]*types.Book, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, unavailable(err)
	}

	rows := m.matching(f)

	return applyWindow(rows, w), int64(len(rows)), nil
}

func (m *memoryRepo) Count(ctx context.Context, f Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, unavailable(err)
	}

	return int64(len(m.matching(f))), nil
}

func (m *memoryRepo) Save(ctx context.Context, books ...*types.Book) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}

	m.insert(books)

	return nil
}

func (m *memoryRepo) insert(books []*types.Book) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, book := range books {
		if book.Id == 0 {
			m.lastId++
			book.Id = m.lastId
		} else if book.Id > m.lastId {
			m.lastId = book.Id
		}

		m.books = append(m.books, *book)
	}
}

func (m *memoryRepo) EnsureSchema(context.Context) error {
	return nil
}
