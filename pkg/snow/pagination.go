package snow

import (
	"context"
	"errors"
)

// DefaultPageSize is the number of rows requested per page when none is configured.
const DefaultPageSize = 1000

// Page is one bounded slice of a query's rows, in server order.
// TotalCount is nil when the response did not report one.
type Page[T any] struct {
	Items      []T  `json:"items"                 yaml:"items"`
	TotalCount *int `json:"total_count,omitempty" yaml:"total_count,omitempty"`
}

// AggregatedResult is the concatenation of every page of a query.
// TotalCount is taken from the final page fetched.
type AggregatedResult[T any] struct {
	Items      []T  `json:"items"                 yaml:"items"`
	TotalCount *int `json:"total_count,omitempty" yaml:"total_count,omitempty"`
	Pages      int  `json:"pages"                 yaml:"pages"`
}

// PageFetcher performs a single page request.
type PageFetcher[T any] interface {
	GetPage(ctx context.Context, request PageRequest) (*Page[T], error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc[T any] func(ctx context.Context, request PageRequest) (*Page[T], error)

// GetPage calls f.
func (f PageFetcherFunc[T]) GetPage(ctx context.Context, request PageRequest) (*Page[T], error) {
	return f(ctx, request)
}

// PagingStrategy decides which page to request next.
type PagingStrategy interface {
	// First builds the initial page request for a query.
	First(query QueryRequest, pageSize int) PageRequest
	// Next returns the request following prev, given how many items prev
	// returned, and false when prev was the last page.
	Next(prev PageRequest, returned int) (PageRequest, bool)
}

// OffsetStrategy pages by offset and limit over a filter that always carries
// an ordering clause. A page shorter than the limit is the last one.
//
// Rows inserted, or whose ordering key changes, between two page fetches can
// be skipped or returned twice.
type OffsetStrategy struct{}

// First implements PagingStrategy.
func (OffsetStrategy) First(query QueryRequest, pageSize int) PageRequest {
	return PageRequest{
		Offset: 0,
		Limit:  pageSize,
		Query:  EnsureOrdering(query.Query),
		Fields: query.Fields,
		Extra:  query.Extra,
	}
}

// Next implements PagingStrategy.
func (OffsetStrategy) Next(prev PageRequest, returned int) (PageRequest, bool) {
	if returned < prev.Limit {
		return PageRequest{}, false
	}

	next := prev
	next.Offset += prev.Limit

	return next, true
}

// PaginationOptions configures an aggregation.
type PaginationOptions struct {
	// PageSize is the number of rows per page request.
	PageSize int
	// StrictCount fails the aggregation when the number of rows retrieved
	// differs from the total reported by the final page.
	StrictCount bool
	// Logger receives per-page diagnostics. Nil disables logging.
	Logger Logger
	// Strategy selects the paging scheme. Nil means OffsetStrategy.
	Strategy PagingStrategy
}

// DefaultPaginationOptions returns default pagination options.
func DefaultPaginationOptions() *PaginationOptions {
	return &PaginationOptions{
		PageSize: DefaultPageSize,
		Logger:   NopLogger{},
		Strategy: OffsetStrategy{},
	}
}

func resolvePaginationOptions(opts *PaginationOptions) (PaginationOptions, error) {
	resolved := *DefaultPaginationOptions()
	if opts != nil {
		resolved = *opts
	}

	if resolved.PageSize <= 0 {
		return resolved, ErrInvalidPageSize
	}

	if resolved.Logger == nil {
		resolved.Logger = NopLogger{}
	}

	if resolved.Strategy == nil {
		resolved.Strategy = OffsetStrategy{}
	}

	return resolved, nil
}

// fetchPage checks the context, fetches one page, and turns failures
// caused by cancellation into a cancellation outcome.
func fetchPage[T any](ctx context.Context, fetcher PageFetcher[T], request PageRequest) (*Page[T], error) {
	ctxErr := ctx.Err()
	if ctxErr != nil {
		return nil, Canceled(ctxErr)
	}

	page, err := fetcher.GetPage(ctx, request)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, ErrCanceled) {
			return nil, Canceled(ctx.Err())
		}

		return nil, err
	}

	if page == nil {
		page = &Page[T]{}
	}

	return page, nil
}

// FetchAll retrieves every row matching query, one page at a time.
//
// Pages are fetched sequentially. The first failure aborts the aggregation
// and is returned unchanged; rows retrieved before it are discarded.
// Cancellation is checked before every page and yields an error matching
// ErrCanceled.
func FetchAll[T any](ctx context.Context, fetcher PageFetcher[T], query QueryRequest, opts *PaginationOptions) (*AggregatedResult[T], error) {
	options, err := resolvePaginationOptions(opts)
	if err != nil {
		return nil, err
	}

	request := options.Strategy.First(query, options.PageSize)
	result := &AggregatedResult[T]{Items: make([]T, 0)}

	for {
		page, err := fetchPage(ctx, fetcher, request)
		if err != nil {
			return nil, err
		}

		result.Pages++
		result.Items = append(result.Items, page.Items...)
		result.TotalCount = page.TotalCount

		options.Logger.Debug("Fetched page", map[string]interface{}{
			"offset":   request.Offset,
			"limit":    request.Limit,
			"returned": len(page.Items),
			"total":    len(result.Items),
		})

		next, more := options.Strategy.Next(request, len(page.Items))
		if !more {
			break
		}

		request = next
	}

	if options.StrictCount && result.TotalCount != nil && len(result.Items) != *result.TotalCount {
		options.Logger.Warn("Item count mismatch", map[string]interface{}{
			"expected": *result.TotalCount,
			"actual":   len(result.Items),
		})

		return nil, &CountMismatchError{Expected: *result.TotalCount, Actual: len(result.Items)}
	}

	return result, nil
}

// PageResult is one element of a page stream.
type PageResult[T any] struct {
	Page *Page[T]
	Err  error
}

// StreamPages fetches pages sequentially and sends each on the returned
// channel. The channel is closed after the last page or the first error.
// Cancellation is reported as a final result whose Err satisfies
// errors.Is(err, ErrCanceled), so callers must drain the channel until it
// is closed.
func StreamPages[T any](ctx context.Context, fetcher PageFetcher[T], query QueryRequest, opts *PaginationOptions) <-chan PageResult[T] {
	results := make(chan PageResult[T])

	go func() {
		defer close(results)

		options, err := resolvePaginationOptions(opts)
		if err != nil {
			results <- PageResult[T]{Err: err}

			return
		}

		request := options.Strategy.First(query, options.PageSize)

		for {
			page, err := fetchPage(ctx, fetcher, request)
			if err != nil {
				results <- PageResult[T]{Err: err}

				return
			}

			if !sendPage(ctx, results, page) {
				return
			}

			next, more := options.Strategy.Next(request, len(page.Items))
			if !more {
				return
			}

			request = next
		}
	}()

	return results
}

// sendPage delivers page unless ctx ends first, in which case the
// cancellation is delivered instead and false is returned.
func sendPage[T any](ctx context.Context, results chan<- PageResult[T], page *Page[T]) bool {
	if ctx.Err() == nil {
		select {
		case results <- PageResult[T]{Page: page}:
			return true
		case <-ctx.Done():
		}
	}

	results <- PageResult[T]{Err: Canceled(ctx.Err())}

	return false
}

// PaginationIterator walks the rows of a query one at a time, fetching
// pages on demand.
type PaginationIterator[T any] struct {
	ctx      context.Context
	fetcher  PageFetcher[T]
	strategy PagingStrategy
	request  PageRequest
	items    []T
	index    int
	done     bool
	total    *int
	err      error
}

// NewPaginationIterator creates an iterator over the rows matching query.
func NewPaginationIterator[T any](ctx context.Context, fetcher PageFetcher[T], query QueryRequest, opts *PaginationOptions) *PaginationIterator[T] {
	iterator := &PaginationIterator[T]{
		ctx:     ctx,
		fetcher: fetcher,
	}

	options, err := resolvePaginationOptions(opts)
	if err != nil {
		iterator.err = err

		return iterator
	}

	iterator.strategy = options.Strategy
	iterator.request = options.Strategy.First(query, options.PageSize)

	return iterator
}

// HasNext reports whether another row is available, fetching the next page
// if needed. It returns false after an error; see Err.
func (it *PaginationIterator[T]) HasNext() bool {
	for it.index >= len(it.items) {
		if it.done || it.err != nil {
			return false
		}

		it.fetch()
	}

	return true
}

// Next returns the next row.
func (it *PaginationIterator[T]) Next() (T, error) {
	var zero T

	if !it.HasNext() {
		if it.err != nil {
			return zero, it.err
		}

		return zero, ErrNoMoreItems
	}

	item := it.items[it.index]
	it.index++

	return item, nil
}

// All drains the iterator.
func (it *PaginationIterator[T]) All() ([]T, error) {
	items := make([]T, 0)

	for it.HasNext() {
		item, err := it.Next()
		if err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	if it.err != nil {
		return nil, it.err
	}

	return items, nil
}

// Err returns the error that stopped the iteration, if any.
func (it *PaginationIterator[T]) Err() error {
	return it.err
}

// TotalCount returns the total reported by the most recent page.
func (it *PaginationIterator[T]) TotalCount() *int {
	return it.total
}

func (it *PaginationIterator[T]) fetch() {
	page, err := fetchPage(it.ctx, it.fetcher, it.request)
	if err != nil {
		it.err = err

		return
	}

	it.items = page.Items
	it.index = 0
	it.total = page.TotalCount

	next, more := it.strategy.Next(it.request, len(page.Items))
	if !more {
		it.done = true

		return
	}

	it.request = next
}
