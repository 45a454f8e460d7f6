package entity

import "math"

const (
	// DefaultDelta is the page size used when the caller gives none.
	DefaultDelta = 10
	// MaxDelta caps the page size.
	MaxDelta = 1000
	// MaxPage keeps (page-1)*delta inside int for every accepted delta.
	MaxPage = math.MaxInt32
)

// Page is one slice of an ordered result set.
type Page[T any] struct {
	Results     []T `json:"results"`
	Delta       int `json:"delta"`
	CurrentPage int `json:"currentPage"`
	NextPage    int `json:"nextPage"`
	NumPages    int `json:"numPages"`
}

// PageRequest is a requested page. Zero or negative values fall back to
// DefaultDelta and page 1; larger values are clamped to MaxDelta and MaxPage.
type PageRequest struct {
	Delta int
	Page  int
}

// Normalize applies the defaults.
func (r PageRequest) Normalize() PageRequest {
	switch {
	case r.Delta <= 0:
		r.Delta = DefaultDelta
	case r.Delta > MaxDelta:
		r.Delta = MaxDelta
	}
	r.Page = min(max(r.Page, 1), MaxPage)
	return r
}

// Offset is the index of the first item on the normalised page.
func (r PageRequest) Offset() int {
	n := r.Normalize()
	return (n.Page - 1) * n.Delta
}

// NewPage assembles the page metadata for results taken from a set of total
// items. nextPage wraps to 1 after the last page.
func NewPage[T any](results []T, total int, req PageRequest) Page[T] {
	req = req.Normalize()

	numPages := 0
	if total > 0 {
		numPages = (total + req.Delta - 1) / req.Delta
	}
	next := 1
	if req.Page < numPages {
		next = req.Page + 1
	}
	if results == nil {
		results = []T{}
	}
	return Page[T]{
		Results:     results,
		Delta:       req.Delta,
		CurrentPage: req.Page,
		NextPage:    next,
		NumPages:    numPages,
	}
}

// Paginate cuts an in-memory, already ordered slice. A page past the end is
// empty.
func Paginate[T any](items []T, req PageRequest) Page[T] {
	req = req.Normalize()
	start := min(req.Offset(), len(items))
	end := min(start+req.Delta, len(items))
	return NewPage(append([]T(nil), items[start:end]...), len(items), req)
}
