package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/area-core/internal/entity"
)

// urlID parses a positive int64 path parameter, writing a 400 on failure.
func urlID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "invalid "+name)
		return 0, false
	}
	return id, true
}

// pageRequest reads ?delta=&page=. Missing or malformed values fall back to
// the pagination defaults.
func pageRequest(r *http.Request) entity.PageRequest {
	q := r.URL.Query()
	delta, _ := strconv.Atoi(q.Get("delta")) //nolint:errcheck // zero means default
	page, _ := strconv.Atoi(q.Get("page"))   //nolint:errcheck // zero means default
	return entity.PageRequest{Delta: delta, Page: page}
}

// decodeJSON reads the body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}
