package books

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/doug-martin/goqu/v9"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"library/internal/types"
)

const table = "books"

const createTable = `CREATE TABLE IF NOT EXISTS books (
	id       SERIAL PRIMARY KEY,
	title    VARCHAR(255),
	authors  VARCHAR(255),
	subjects VARCHAR(1000)
)`

func NewPGXRepository(pg *pgxpool.Pool, l *slog.Logger) Repository {
	return &pgxRepo{pg: pg, g: goqu.Dialect("postgres"), l: l}
}

type pgxRepo struct {
	pg *pgxpool.Pool
	g  goqu.DialectWrapper
	l  *slog.Logger
}

type pgxBook struct {
	Id       int64   `db:"id" goqu:"skipinsert"`
	Title    *string `db:"title"`
	Authors  *string `db:"authors"`
	Subjects *string `db:"subjects"`
}

func (b *pgxBook) intoCommon() *types.Book {
	return &types.Book{
		Id:       b.Id,
		Title:    b.Title,
		Authors:  b.Authors,
		Subjects: b.Subjects,
	}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// selectBooks builds the ordered listing query. Ties on authors are broken by id,
// otherwise LIMIT/OFFSET windows over equal authors would not partition the result.
func selectBooks(g goqu.DialectWrapper, f Filter, w Window) *goqu.SelectDataset {
	qb := g.From(table).
		Select("id", "title", "authors", "subjects").
		Order(goqu.C("authors").Asc().NullsLast(), goqu.C("id").Asc())

	if e := f.expression(); e != nil {
		qb = qb.Where(e)
	}

	if w.Limit != 0 {
		qb = qb.Limit(w.Limit)
	}

	if w.Offset != 0 {
		qb = qb.Offset(w.Offset)
	}

	return qb
}

func countBooks(g goqu.DialectWrapper, f Filter) *goqu.SelectDataset {
	qb := g.From(table).Select(goqu.COUNT(goqu.Star()))

	if e := f.expression(); e != nil {
		qb = qb.Where(e)
	}

	return qb
}

func (p *pgxRepo) Find(ctx context.Context, f Filter, w Window) ([]*types.Book, error) {
	return p.find(ctx, p.pg, f, w)
}

func (p *pgxRepo) Count(ctx context.Context, f Filter) (int64, error) {
	return p.count(ctx, p.pg, f)
}

// FindCounted runs the count and the window query in one read-only REPEATABLE READ
// transaction, so total and items come from the same snapshot.
func (p *pgxRepo) FindCounted(ctx context.Context, f Filter, w Window) ([]*types.Book, int64, error) {
	tx, err := p.pg.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, 0, unavailable(err)
	}
	// read-only, nothing to commit
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	total, err := p.count(ctx, tx, f)
	if err != nil {
		return nil, 0, err
	}

	rows, err := p.find(ctx, tx, f, w)
	if err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

func (p *pgxRepo) find(ctx context.Context, q pgxscan.Querier, f Filter, w Window) ([]*types.Book, error) {
	sql, params, err := selectBooks(p.g, f, w).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building books query: %w", err)
	}

	var rows []pgxBook

	err = pgxscan.Select(ctx, q, &rows, sql, params...)
	if err != nil {
		return nil, unavailable(err)
	}

	ret := make([]*types.Book, 0, len(rows))
	for _, row := range rows {
		ret = append(ret, row.intoCommon())
	}

	return ret, nil
}

func (p *pgxRepo) count(ctx context.Context, q pgxscan.Querier, f Filter) (int64, error) {
	sql, params, err := countBooks(p.g, f).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("building books count query: %w", err)
	}

	var n int64

	err = pgxscan.Get(ctx, q, &n, sql, params...)
	if err != nil {
		return 0, unavailable(err)
	}

	return n, nil
}

func (p *pgxRepo) Save(ctx context.Context, books ...*types.Book) error {
	if len(books) == 0 {
		return nil
	}

	rows := make([]any, 0, len(books))
	for _, book := range books {
		rows = append(rows, pgxBook{
			Title:    book.Title,
			Authors:  book.Authors,
			Subjects: book.Subjects,
		})
	}

	sql, params, err := p.g.Insert(table).
		Rows(rows...).
		Returning("id").
		ToSQL()
	if err != nil {
		return fmt.Errorf("building books insert: %w", err)
	}

	var ids []int64

	err = pgxscan.Select(ctx, p.pg, &ids, sql, params...)
	if err != nil {
		return unavailable(err)
	}

	if len(ids) != len(books) {
		return fmt.Errorf("inserted %d books, got %d ids back", len(books), len(ids))
	}

	for ix, id := range ids {
		books[ix].Id = id
	}

	return nil
}

func (p *pgxRepo) EnsureSchema(ctx context.Context) error {
	_, err := p.pg.Exec(ctx, createTable)
	if err != nil {
		return unavailable(err)
	}

	p.l.DebugContext(ctx, "Ensured table "+table+" exists")

	return nil
}
