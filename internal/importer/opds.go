package importer

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/opds-community/libopds2-go/opds1"

	"library/internal/storage/books"
	"library/internal/types"
)

const (
	linkRelAcquisition = "http://opds-spec.org/acquisition"
	linkRelNext        = "next"
)

// OPDS walks an OPDS 1 acquisition feed, following "next" links, and stores every
// book entry found.
type OPDS struct {
	Client *http.Client
	Logger *slog.Logger
	Books  books.Repository
	// MaxPages stops the walk early; 0 means follow the feed to its end.
	MaxPages int
}

// Import returns the number of books stored. Books whose (title, authors) pair is
// already in the store are skipped, so rerunning an import does not duplicate rows.
func (o *OPDS) Import(ctx context.Context, feed *url.URL) (int, error) {
	known, err := o.knownBooks(ctx)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{})
	imported := 0

	for page := 1; feed != nil; page++ {
		if o.MaxPages > 0 && page > o.MaxPages {
			o.Logger.Info("Reached page limit, stopping", slog.Int("pages", o.MaxPages))
			break
		}

		if _, ok := seen[feed.String()]; ok {
			o.Logger.Warn("Feed links back to an already imported page " + feed.String())
			break
		}
		seen[feed.String()] = struct{}{}

		l := o.Logger.With(slog.String("feed", feed.String()))

		f, err := o.fetch(ctx, feed, l)
		if err != nil {
			return imported, err
		}

		bks := make([]*types.Book, 0, len(f.Entries))
		for _, entry := range f.Entries {
			book, ok := entryToBook(&entry)
			if !ok {
				l.Debug("Skip non-book entry " + strings.TrimSpace(entry.ID))
				continue
			}

			key := bookKey(book)
			if _, ok := known[key]; ok {
				l.Debug("Skip already stored book " + strings.TrimSpace(entry.ID))
				continue
			}
			known[key] = struct{}{}

			bks = append(bks, book)
		}

		if len(bks) == 0 {
			l.Warn("No books parsed from feed")
		} else {
			if err = o.Books.Save(ctx, bks...); err != nil {
				return imported, fmt.Errorf("saving books from %s: %w", feed, err)
			}

			imported += len(bks)
			l.Info("Imported books", slog.Int("count", len(bks)))
		}

		feed, err = nextPage(feed, f)
		if err != nil {
			l.Error("Failed to parse next page link: " + err.Error())
			return imported, err
		}
	}

	return imported, nil
}

func (o *OPDS) knownBooks(ctx context.Context) (map[string]struct{}, error) {
	stored, err := o.Books.Find(ctx, books.Filter{}, books.Window{})
	if err != nil {
		return nil, fmt.Errorf("loading stored books: %w", err)
	}

	ret := make(map[string]struct{}, len(stored))
	for _, b := range stored {
		ret[bookKey(b)] = struct{}{}
	}

	return ret, nil
}

// bookKey identifies a book by title and authors, case-insensitively; NULL and empty are the same.
func bookKey(b *types.Book) string {
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return strings.ToLower(*s)
	}

	return deref(b.Title) + "\x00" + deref(b.Authors)
}

func (o *OPDS) fetch(ctx context.Context, feed *url.URL, l *slog.Logger) (*opds1.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building feed request: %w", err)
	}

	res, err := o.Client.Do(req)
	if err != nil {
		l.Error("Failed to fetch feed: " + err.Error())
		return nil, fmt.Errorf("fetching feed: %w", err)
	}

	var bs []byte
	func() {
		defer res.Body.Close()
		bs, err = io.ReadAll(res.Body)
	}()

	if err != nil {
		l.Error("Failed to read body of feed: " + err.Error())
		return nil, fmt.Errorf("fetching feed (reading response): %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching feed: unexpected status %s", res.Status)
	}

	var f opds1.Feed
	err = xml.Unmarshal(removeDisallowedCodepoints(bs, l), &f)
	if err != nil {
		l.Error("Failed to unmarshal feed: " + err.Error())
		return nil, fmt.Errorf("unmarshalling feed: %w", err)
	}

	return &f, nil
}

// entryToBook maps an acquisition entry onto a book: authors and categories are
// joined with ", " and every field is cut to its column size.
func entryToBook(entry *opds1.Entry) (*types.Book, bool) {
	if !hasLink(entry.Links, func(link *opds1.Link) bool {
		return strings.HasPrefix(strings.TrimSpace(link.Rel), linkRelAcquisition)
	}) {
		return nil, false
	}

	authors := make([]string, 0, len(entry.Author))
	for _, a := range entry.Author {
		authors = append(authors, a.Name)
	}

	subjects := make([]string, 0, len(entry.Category))
	for _, c := range entry.Category {
		subjects = append(subjects, c.Term)
	}

	return &types.Book{
		Title:    nullable(entry.Title, types.TitleMaxLen),
		Authors:  nullable(joinUnique(authors), types.AuthorsMaxLen),
		Subjects: nullable(joinUnique(subjects), types.SubjectsMaxLen),
	}, true
}

func nextPage(current *url.URL, f *opds1.Feed) (*url.URL, error) {
	for _, link := range f.Links {
		if strings.TrimSpace(link.Rel) != linkRelNext {
			continue
		}

		if t := strings.TrimSpace(link.TypeLink); t != "" && !strings.HasPrefix(t, "application/atom+xml") {
			continue
		}

		u, err := url.Parse(strings.TrimSpace(link.Href))
		if err != nil {
			return nil, err
		}

		return current.ResolveReference(u), nil
	}

	return nil, nil
}

func hasLink(links []opds1.Link, matcher func(link *opds1.Link) bool) bool {
	for ix := range links {
		if matcher(&links[ix]) {
			return true
		}
	}

	return false
}

// joinUnique joins trimmed non-empty values, dropping case-insensitive duplicates.
func joinUnique(vals []string) string {
	seen := make(map[string]struct{}, len(vals))
	ret := make([]string, 0, len(vals))

	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}

		if _, ok := seen[strings.ToLower(v)]; ok {
			continue
		}
		seen[strings.ToLower(v)] = struct{}{}

		ret = append(ret, v)
	}

	return strings.Join(ret, ", ")
}

// nullable trims s and cuts it to maxLen runes; empty becomes nil (NULL).
func nullable(s string, maxLen int) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if utf8.RuneCountInString(s) > maxLen {
		s = strings.TrimSpace(string([]rune(s)[:maxLen]))
	}

	return &s
}

// Inspect each rune for being a disallowed character, some feeds include those.
func removeDisallowedCodepoints(bs []byte, l *slog.Logger) []byte {
	ret := make([]byte, 0, len(bs))
	buf := bs

	for len(buf) > 0 {
		r, size := utf8.DecodeRune(buf)
		if r == utf8.RuneError && size == 1 {
			l.Warn("Going to fail XML parsing because the bytes do not represent valid UTF8")
			return bs
		}

		if isInCharacterRange(r) {
			ret = append(ret, buf[:size]...)
		} else {
			l.Warn("Removed invalid rune from XML")
		}

		buf = buf[size:]
	}

	return ret
}

// Decide whether the given rune is in the XML Character Range, per
// the Char production of https://www.xml.com/axml/testaxml.htm,
// Section 2.2 Characters.
func isInCharacterRange(r rune) (inrange bool) {
	return r == 0x09 ||
		r == 0x0A ||
		r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}
