package server

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"library/internal/catalog"
	"library/internal/response"
	"library/internal/storage/books"
)

func Handler(svc *catalog.Service, rr *response.Responder) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		rr.SendJson(w, r.Context(), struct {
			Status string `json:"status"`
		}{Status: "up"})
	})

	r.Get("/books", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		page, verr := getIntOrDefault("page", q, catalog.DefaultPage)
		if verr != nil {
			rr.RespondValidation(w, r.Context(), verr)
			return
		}

		size, verr := getIntOrDefault("size", q, catalog.DefaultSize)
		if verr != nil {
			rr.RespondValidation(w, r.Context(), verr)
			return
		}

		res, err := svc.ListBooks(r.Context(), catalog.ListParams{
			Search: q.Get("search"),
			Page:   page,
			Size:   size,
		})

		var ve *catalog.ValidationError
		switch {
		case err == nil:
		case errors.As(err, &ve):
			rr.RespondValidation(w, r.Context(), ve)
			return
		case errors.Is(err, books.ErrUnavailable):
			rr.RespondAndLogCustom(w, r.Context(), err, slog.LevelError, http.StatusServiceUnavailable)
			return
		default:
			rr.RespondAndLogError(w, r.Context(), err)
			return
		}

		rr.SendJson(w, r.Context(), res)
	})

	return r
}

// getIntOrDefault only parses the value; range checks are left to the catalog service.
func getIntOrDefault(key string, q url.Values, default_ int) (int, *catalog.ValidationError) {
	raw, ok := q[key]
	if !ok || len(raw) == 0 {
		return default_, nil
	}

	v, err := strconv.Atoi(strings.TrimSpace(raw[0]))
	if err != nil {
		return 0, catalog.NewFieldError(key, "Input should be a valid integer, unable to parse string as an integer", "int_parsing")
	}

	return v, nil
}
