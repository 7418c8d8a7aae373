// Package pagination parses list parameters and shapes paged responses.
package pagination

import (
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Sort orders accepted by list endpoints.
const (
	SortLatest = "latest"
	SortOldest = "oldest"
	SortTitle  = "title"
)

// PageRequest holds pagination parameters parsed from query strings.
type PageRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// Defaults fills in default values when page or page_size are not provided.
func (p *PageRequest) Defaults() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
}

// Offset returns the SQL OFFSET for the current page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// IsValidSort reports whether sort is one of the known orders.
func IsValidSort(sort string) bool {
	switch sort {
	case SortLatest, SortOldest, SortTitle:
		return true
	}
	return false
}

// OrderClause returns the ORDER BY clause for sort. The empty or an unknown
// sort lists newest first. Ties break on id, which is time ordered.
func OrderClause(sort string) string {
	switch sort {
	case SortOldest:
		return "created_at ASC, id ASC"
	case SortTitle:
		return "title ASC, created_at DESC"
	default:
		return "created_at DESC, id DESC"
	}
}

// PageResponse wraps a paginated list of items with metadata.
type PageResponse[T any] struct {
	Data       []T   `json:"data"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPageResponse builds the response for one page of a listing with
// totalItems rows overall.
func NewPageResponse[T any](data []T, req PageRequest, totalItems int64) PageResponse[T] {
	if data == nil {
		data = []T{}
	}
	resp := PageResponse[T]{
		Data:       data,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalItems: totalItems,
	}
	if size := int64(req.PageSize); size > 0 {
		resp.TotalPages = int((totalItems + size - 1) / size)
	}
	return resp
}

// Paginate returns a GORM scope that orders by sort and applies OFFSET and
// LIMIT for req.
func Paginate(req PageRequest, sort string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(OrderClause(sort)).Offset(req.Offset()).Limit(req.PageSize)
	}
}
