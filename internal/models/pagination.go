package models

// Pagination describes one page of a listing.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// MaxPageLimit caps the page size of every listing.
const MaxPageLimit = 100

// NewPagination builds a Pagination block; pages is ceil(total/limit).
func NewPagination(page, limit int, total int64) Pagination {
	page, limit = NormalizePage(page, limit, limit)
	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// NormalizePage clamps page to >= 1 and limit to [1, MaxPageLimit], using
// defaultLimit when limit is not positive.
func NormalizePage(page, limit, defaultLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

// Offset returns the row offset for a normalized page.
func Offset(page, limit int) int {
	return (page - 1) * limit
}
