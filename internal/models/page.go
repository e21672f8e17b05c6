package models

import "math"

const (
	DefaultUserPageLimit  = 10
	DefaultAdminPageLimit = 20
	MaxPageLimit          = 100
)

// Page is one slice of a list query plus the totals needed to page through it.
type Page[T any] struct {
	Items       []T `json:"items"`
	Total       int `json:"total"`
	TotalPages  int `json:"totalPages"`
	CurrentPage int `json:"currentPage"`
}

// NormalizePaging clamps page and limit, falling back to defaultLimit.
// page is capped so that Offset(page, limit) fits in an int.
func NormalizePaging(page, limit, defaultLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if maxPage := math.MaxInt / limit; page > maxPage {
		page = maxPage
	}
	return page, limit
}

// Offset returns the number of records to skip for page. It saturates at
// math.MaxInt instead of wrapping.
func Offset(page, limit int) int {
	if page <= 1 || limit <= 0 {
		return 0
	}
	if page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (page - 1) * limit
}

// NewPage builds a Page from a result slice and the unpaged total.
func NewPage[T any](items []T, total, page, limit int) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Page[T]{Items: items, Total: total, TotalPages: pages, CurrentPage: page}
}
