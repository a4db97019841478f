package books

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"library/internal/types"
)

func ptr(s string) *string { return &s }

func TestParseFilter(t *testing.T) {
	assert.True(t, ParseFilter("").IsEmpty())
	assert.True(t, ParseFilter("   \t\n ").IsEmpty())
	assert.Equal(t, []string{"tolkien", "hobbit"}, ParseFilter("  tolkien   hobbit ").Terms)
}

func TestFilterMatches(t *testing.T) {
	hobbit := &types.Book{Id: 1, Title: ptr("The Hobbit"), Authors: ptr("J.R.R. Tolkien"), Subjects: ptr("Fantasy")}
	dune := &types.Book{Id: 2, Title: ptr("Dune"), Authors: ptr("Frank Herbert")}
	untitled := &types.Book{Id: 3}

	tests := []struct {
		name   string
		search string
		book   *types.Book
		want   bool
	}{
		{"empty matches all", "", hobbit, true},
		{"empty matches nulls", "", untitled, true},
		{"tokens across fields", "tolkien hobbit", hobbit, true},
		{"case insensitive", "TOLKIEN", hobbit, true},
		{"substring anywhere", "obbi", hobbit, true},
		{"all tokens required", "tolkien dune", hobbit, false},
		{"subjects ignored", "fantasy", hobbit, false},
		{"null fields never match a term", "a", untitled, false},
		{"other book", "herbert dune", dune, true},
		{"unicode folding", "ΣΟΦΊΑ", &types.Book{Title: ptr("σοφία")}, true},
		{"like wildcards are literal", "h%t", hobbit, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseFilter(tt.search).Matches(tt.book))
		})
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%`, escapeLike("50%"))
	assert.Equal(t, `snake\_case`, escapeLike("snake_case"))
	assert.Equal(t, `back\\slash`, escapeLike(`back\slash`))
	assert.Equal(t, "plain", escapeLike("plain"))
}
