package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
)

// =============================================================================
// PAGINATION STRATEGIES
// =============================================================================

// Paginator handles API pagination.
type Paginator interface {
	// NextPage returns the request for the next page, or nil if done.
	NextPage(ctx context.Context, resp *Response) (*Request, error)
}

// =============================================================================
// CURSOR-MARK PAGINATION
// =============================================================================

// CursorMarkPaginator walks a Solr-style deep paging cursor. The search is
// exhausted when the server returns the cursor it was given.
type CursorMarkPaginator struct {
	Path           string
	Rows           int
	Params         url.Values
	CursorKey      string // Query param name (default: "cursorMark")
	NextCursorPath string // Response field holding the next cursor (default: "nextCursorMark")

	cursor string
}

// NewCursorMarkPaginator creates a paginator starting at cursor "*".
func NewCursorMarkPaginator(path string, rows int, params url.Values) *CursorMarkPaginator {
	return &CursorMarkPaginator{
		Path:           path,
		Rows:           rows,
		Params:         params,
		CursorKey:      "cursorMark",
		NextCursorPath: "nextCursorMark",
		cursor:         "*",
	}
}

// FirstPage returns the request for the current cursor position.
func (p *CursorMarkPaginator) FirstPage() *Request {
	query := url.Values{}
	for k, v := range p.Params {
		query[k] = append([]string(nil), v...)
	}
	query.Set("rows", strconv.Itoa(p.Rows))
	query.Set(p.CursorKey, p.cursor)
	return &Request{
		Method: http.MethodGet,
		Path:   p.Path,
		Query:  query,
	}
}

// NextPage returns the next page request based on response.
func (p *CursorMarkPaginator) NextPage(ctx context.Context, resp *Response) (*Request, error) {
	var data map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return nil, err
	}
	raw, ok := data[p.NextCursorPath]
	if !ok {
		return nil, nil
	}
	var next string
	if err := json.Unmarshal(raw, &next); err != nil {
		return nil, err
	}
	if next == "" || next == p.cursor {
		return nil, nil
	}
	p.cursor = next
	return p.FirstPage(), nil
}

// =============================================================================
// PAGINATED ITERATOR
// =============================================================================

// PaginatedIterator fetches all pages from an API.
type PaginatedIterator[T any] struct {
	ctx          context.Context
	client       *Client
	paginator    Paginator
	parseResults func(resp *Response) ([]T, error)

	current     []T
	currentIdx  int
	nextRequest *Request
	done        bool
	err         error
}

// NewPaginatedIterator creates a paginated iterator.
func NewPaginatedIterator[T any](
	ctx context.Context,
	client *Client,
	firstRequest *Request,
	paginator Paginator,
	parseResults func(resp *Response) ([]T, error),
) *PaginatedIterator[T] {
	return &PaginatedIterator[T]{
		ctx:          ctx,
		client:       client,
		paginator:    paginator,
		parseResults: parseResults,
		nextRequest:  firstRequest,
	}
}

// Next advances to the next item.
func (it *PaginatedIterator[T]) Next() bool {
	for it.currentIdx >= len(it.current) {
		if it.done || it.nextRequest == nil || it.err != nil {
			return false
		}
		resp, err := it.client.Do(it.ctx, it.nextRequest)
		if err != nil {
			it.err = err
			return false
		}
		results, err := it.parseResults(resp)
		if err != nil {
			it.err = err
			return false
		}
		nextReq, err := it.paginator.NextPage(it.ctx, resp)
		if err != nil {
			it.err = err
			return false
		}
		it.current = results
		it.currentIdx = 0
		it.nextRequest = nextReq
		it.done = nextReq == nil
	}
	return true
}

// Value returns the current item and advances the cursor within the page.
func (it *PaginatedIterator[T]) Value() T {
	if it.currentIdx < len(it.current) {
		val := it.current[it.currentIdx]
		it.currentIdx++
		return val
	}
	var zero T
	return zero
}

// Err returns any error encountered.
func (it *PaginatedIterator[T]) Err() error {
	return it.err
}

// Close releases resources.
func (it *PaginatedIterator[T]) Close() error {
	it.done = true
	return nil
}
