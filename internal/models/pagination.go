package models

import "math"

const (
	DefaultPage     = 1
	DefaultPageSize = 8
	MaxPageSize     = 100
)

// Paging is a validated 1-based page window.
type Paging struct {
	Page     int
	PageSize int
}

// NewPaging clamps invalid values to the defaults: page < 1 becomes 1 and
// pageSize < 1 becomes defaultSize. pageSize is capped at maxSize when maxSize > 0,
// and page is capped so that the offset fits in an int.
func NewPaging(page, pageSize, defaultSize, maxSize int) Paging {
	if defaultSize < 1 {
		defaultSize = DefaultPageSize
	}
	if page < 1 {
		page = DefaultPage
	}
	if pageSize < 1 {
		pageSize = defaultSize
	}
	if maxSize > 0 && pageSize > maxSize {
		pageSize = maxSize
	}
	if maxPage := math.MaxInt / pageSize; page > maxPage {
		page = maxPage
	}
	return Paging{Page: page, PageSize: pageSize}
}

// Offset saturates at math.MaxInt instead of overflowing.
func (p Paging) Offset() int {
	if p.Page <= 1 || p.PageSize <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.PageSize {
		return math.MaxInt
	}
	return (p.Page - 1) * p.PageSize
}

type PaginatedResult[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
}

// EmptyPage returns a result with no items for the given window.
func EmptyPage[T any](p Paging) PaginatedResult[T] {
	return PaginatedResult[T]{
		Items:    []T{},
		Page:     p.Page,
		PageSize: p.PageSize,
	}
}

// Paginate cuts the p-th window out of an already ordered slice.
func Paginate[T any](all []T, p Paging) PaginatedResult[T] {
	res := EmptyPage[T](p)
	res.TotalCount = len(all)

	start := p.Offset()
	if start < 0 || start >= len(all) {
		return res
	}
	end := min(start+p.PageSize, len(all))
	res.Items = append(res.Items, all[start:end]...)
	return res
}
