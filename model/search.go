package model

import (
	"context"

	"github.com/satishbabariya/porm-go/database/api"
	"github.com/satishbabariya/porm-go/query/filter"
)

// DefaultPageSize is the page size of searches that ask for none.
const DefaultPageSize = 10

// SearchResult is one page of a search. Page is 1-indexed and Index is
// Page-1.
type SearchResult[T any] struct {
	Total  int64 `json:"total"`
	Index  int   `json:"index"`
	Page   int   `json:"page"`
	Size   int   `json:"size"`
	Result []T   `json:"result"`
}

func newSearchResult[T any](total int64, page, size int, result []T) SearchResult[T] {
	return SearchResult[T]{Total: total, Index: page - 1, Page: page, Size: size, Result: result}
}

// Pagination renders the result in the shape front ends page through.
func (r SearchResult[T]) Pagination() map[string]any {
	return map[string]any{
		"data": r.Result,
		"pagination": map[string]any{
			"page":  r.Page,
			"index": r.Index,
			"total": r.Total,
			"size":  r.Size,
		},
	}
}

func normalizePage(page, size int) (int, int) {
	if size < 1 {
		size = DefaultPageSize
	}
	return max(1, page), size
}

// Search returns one page of the records matching terms along with the
// total number of matches.
func (m *Model) Search(ctx context.Context, terms filter.Terms, page, size int, opts ...QueryOption) (SearchResult[*Record], error) {
	page, size = normalizePage(page, size)
	total, err := m.Count(ctx, terms, opts...)
	if err != nil {
		return SearchResult[*Record]{}, err
	}
	recs, err := m.GetMany(ctx, terms, append(opts, Page(page, size))...)
	if err != nil {
		return SearchResult[*Record]{}, err
	}
	return newSearchResult(total, page, size, recs), nil
}

// SearchAndJoin is Search over the join of j. A nil join searches the base
// table alone.
func (m *Model) SearchAndJoin(ctx context.Context, terms filter.Terms, j *Join, page, size int, opts ...QueryOption) (SearchResult[api.Record], error) {
	page, size = normalizePage(page, size)
	opts = append(opts, Joined(j))
	total, err := m.Count(ctx, terms, opts...)
	if err != nil {
		return SearchResult[api.Record]{}, err
	}
	rows, err := m.GetManyAndJoin(ctx, terms, j, append(opts, Page(page, size))...)
	if err != nil {
		return SearchResult[api.Record]{}, err
	}
	return newSearchResult(total, page, size, rows), nil
}
