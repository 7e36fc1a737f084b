package store

import (
	"context"
)

type OffsetPage[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// Page returns one page of q. Page numbers start at 1. A Match predicate
// is not allowed because Total is counted in SQL.
func (s *EntityStore[T]) Page(ctx context.Context, q Query[T], page, pageSize int) (*OffsetPage[T], error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	q.Match = nil

	total, err := s.Count(ctx, q)
	if err != nil {
		return nil, err
	}

	q.Limit = pageSize
	q.Offset = (page - 1) * pageSize
	items, err := s.List(ctx, q)
	if err != nil {
		return nil, err
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return &OffsetPage[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}
