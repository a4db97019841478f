package books

import (
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"golang.org/x/text/cases"

	"library/internal/types"
)

// Filter is a search over book title and authors. Every term has to be found
// (case-insensitively, anywhere) in the title or in the authors of a book.
// Zero Filter matches everything.
type Filter struct {
	Terms []string
}

// ParseFilter splits search on whitespace, dropping empty tokens.
func ParseFilter(search string) Filter {
	return Filter{Terms: strings.Fields(search)}
}

func (f Filter) IsEmpty() bool {
	return len(f.Terms) == 0
}

// Matches evaluates the filter against a single book in memory.
func (f Filter) Matches(b *types.Book) bool {
	// Caser keeps state, one per call
	folder := cases.Fold()
	title := foldNullable(folder, b.Title)
	authors := foldNullable(folder, b.Authors)

	for _, term := range f.Terms {
		term = folder.String(term)
		if !strings.Contains(title, term) && !strings.Contains(authors, term) {
			return false
		}
	}

	return true
}

func foldNullable(folder cases.Caser, s *string) string {
	if s == nil {
		// never contains a non-empty term
		return ""
	}

	return folder.String(*s)
}

// expression translates the filter into a goqu WHERE expression, nil for an empty filter.
func (f Filter) expression() exp.Expression {
	if f.IsEmpty() {
		return nil
	}

	conds := make([]exp.Expression, 0, len(f.Terms))
	for _, term := range f.Terms {
		pattern := "%" + escapeLike(term) + "%"
		conds = append(conds, goqu.Or(
			goqu.C("title").ILike(pattern),
			goqu.C("authors").ILike(pattern),
		))
	}

	return goqu.And(conds...)
}

func escapeLike(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(strings.ReplaceAll(s,
		"\\", "\\\\"),
		"_", "\\_"),
		"%", "\\%")
}
