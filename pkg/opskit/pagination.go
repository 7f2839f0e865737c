package opskit

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/fivetwenty-io/opskit/internal/constants"
)

// pageTokenPrefix versions continuation tokens handed to callers.
const pageTokenPrefix = "v1."

// Page is one fetched page of a remote collection. Items keep the server
// ordering. ContinuationToken is empty exactly on the final page.
// PageIndex is a diagnostic counter, not a fetch parameter.
type Page[T any] struct {
	Items             []T
	ContinuationToken string
	PageIndex         int
}

// PageSource is the remote listing collaborator a PageIterator walks: one
// page fetch per call, starting at token ("" for the first page), with
// the server's next token returned ("" when exhausted). Collection
// identifies the logical query and is fingerprinted into continuation
// tokens so tokens cannot cross collections.
type PageSource[T any] interface {
	FetchPage(ctx context.Context, token string) (items []T, next string, err error)
	Collection() string
}

// Iteration granularity. An iterator commits at first use.
type granularity int

const (
	granularityNone granularity = iota
	granularityItems
	granularityPages
)

// PageIterator presents a paginated remote collection as a single lazy
// sequence. It retains only the current page; consuming N items holds at
// most one page in memory. A consumed iterator is finished; construct a
// fresh one to walk the collection again.
type PageIterator[T any] struct {
	ctx    context.Context
	source PageSource[T]
	fp     string

	mode    granularity
	started bool

	current   []T
	pos       int
	nextRaw   string
	pageIndex int
}

// NewPageIterator creates an iterator over the source.
func NewPageIterator[T any](ctx context.Context, source PageSource[T]) *PageIterator[T] {
	return &PageIterator[T]{
		ctx:    ctx,
		source: source,
		fp:     collectionFingerprint(source.Collection()),
	}
}

// HasNext reports whether another item may be available. It never
// performs a fetch, so it reports true before the first page is loaded
// even if the collection turns out to be empty.
func (it *PageIterator[T]) HasNext() bool {
	if !it.started {
		return true
	}

	if it.pos < len(it.current) {
		return true
	}

	return it.nextRaw != ""
}

// Next produces the next item, transparently fetching the following page
// when the current one is exhausted. At the end of the collection it
// fails with ErrNoMoreItems. A FetchError does not advance the cursor;
// calling Next again re-attempts the same page.
func (it *PageIterator[T]) Next() (T, error) {
	var zero T

	err := it.commit(granularityItems)
	if err != nil {
		return zero, err
	}

	for it.pos >= len(it.current) {
		if it.started && it.nextRaw == "" {
			return zero, ErrNoMoreItems
		}

		err := it.fetch()
		if err != nil {
			return zero, err
		}
	}

	item := it.current[it.pos]
	it.pos++

	return item, nil
}

// All consumes the remaining items into a slice.
func (it *PageIterator[T]) All() ([]T, error) {
	var items []T

	for {
		item, err := it.Next()
		if err != nil {
			if errors.Is(err, ErrNoMoreItems) {
				return items, nil
			}

			return items, err
		}

		items = append(items, item)
	}
}

// ForEach applies fn to each remaining item, stopping on the first error.
func (it *PageIterator[T]) ForEach(fn func(T) error) error {
	for {
		item, err := it.Next()
		if err != nil {
			if errors.Is(err, ErrNoMoreItems) {
				return nil
			}

			return err
		}

		err = fn(item)
		if err != nil {
			return err
		}
	}
}

// NextPage fetches exactly one page. An empty token requests the first
// page; otherwise the token must come from a Page of this same
// collection, enforced through the fingerprint embedded in it
// (ErrInvalidToken otherwise). A FetchError leaves no trace; the same
// call can simply be retried.
func (it *PageIterator[T]) NextPage(token string) (*Page[T], error) {
	err := it.commit(granularityPages)
	if err != nil {
		return nil, err
	}

	raw := ""
	index := 0

	if token != "" {
		raw, index, err = it.unwrapToken(token)
		if err != nil {
			return nil, err
		}
	}

	items, next, err := it.source.FetchPage(it.ctx, raw)
	if err != nil {
		return nil, &FetchError{Collection: it.source.Collection(), Err: err}
	}

	return &Page[T]{
		Items:             items,
		ContinuationToken: it.wrapToken(next, index+1),
		PageIndex:         index,
	}, nil
}

// Pages returns the page-granularity view over the same fetch logic.
func (it *PageIterator[T]) Pages() *PageStream[T] {
	return &PageStream[T]{it: it}
}

// PageStream walks a collection one page at a time.
type PageStream[T any] struct {
	it *PageIterator[T]
}

// Next fetches the next page, or fails with ErrNoMorePages once the
// final page has been returned. Fetch failures do not advance the
// stream.
func (s *PageStream[T]) Next() (*Page[T], error) {
	it := s.it

	err := it.commit(granularityPages)
	if err != nil {
		return nil, err
	}

	if it.started && it.nextRaw == "" {
		return nil, ErrNoMorePages
	}

	index := it.pageIndex

	err = it.fetch()
	if err != nil {
		return nil, err
	}

	return &Page[T]{
		Items:             it.current,
		ContinuationToken: it.wrapToken(it.nextRaw, index+1),
		PageIndex:         index,
	}, nil
}

// commit pins the iterator to one granularity; the two views must not be
// interleaved on the same instance.
func (it *PageIterator[T]) commit(mode granularity) error {
	if it.mode == granularityNone {
		it.mode = mode

		return nil
	}

	if it.mode != mode {
		return ErrMixedIteration
	}

	return nil
}

// fetch loads the page at the internal cursor. On failure the cursor is
// untouched so the same page is re-attempted next time.
func (it *PageIterator[T]) fetch() error {
	items, next, err := it.source.FetchPage(it.ctx, it.nextRaw)
	if err != nil {
		return &FetchError{Collection: it.source.Collection(), Err: err}
	}

	it.started = true
	it.current = items
	it.pos = 0
	it.nextRaw = next
	it.pageIndex++

	return nil
}

// continuationToken is the serialized form of a caller-visible token.
type continuationToken struct {
	Fingerprint string `json:"fp"`
	Token       string `json:"token"`
	PageIndex   int    `json:"page"`
}

func (it *PageIterator[T]) wrapToken(raw string, index int) string {
	if raw == "" {
		return ""
	}

	data, _ := json.Marshal(continuationToken{
		Fingerprint: it.fp,
		Token:       raw,
		PageIndex:   index,
	})

	return pageTokenPrefix + base64.RawURLEncoding.EncodeToString(data)
}

func (it *PageIterator[T]) unwrapToken(token string) (string, int, error) {
	raw, ok := strings.CutPrefix(token, pageTokenPrefix)
	if !ok {
		return "", 0, fmt.Errorf("%w: unknown token version", ErrInvalidToken)
	}

	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var parsed continuationToken

	err = json.Unmarshal(data, &parsed)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if parsed.Fingerprint != it.fp {
		return "", 0, fmt.Errorf("%w: token belongs to a different collection", ErrInvalidToken)
	}

	return parsed.Token, parsed.PageIndex, nil
}

func collectionFingerprint(collection string) string {
	hash := fnv.New64a()
	_, _ = hash.Write([]byte(collection))

	return fmt.Sprintf("%016x", hash.Sum64())
}

// PaginationOptions tune the bulk helpers.
type PaginationOptions struct {
	// MaxPages bounds how many pages are fetched. Zero means
	// constants.MaxPages.
	MaxPages int
}

// DefaultPaginationOptions returns default pagination options.
func DefaultPaginationOptions() *PaginationOptions {
	return &PaginationOptions{
		MaxPages: constants.MaxPages,
	}
}

// FetchAllPages eagerly collects up to MaxPages worth of items.
func FetchAllPages[T any](ctx context.Context, source PageSource[T], opts *PaginationOptions) ([]T, error) {
	if opts == nil {
		opts = DefaultPaginationOptions()
	}

	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = constants.MaxPages
	}

	var all []T

	stream := NewPageIterator(ctx, source).Pages()

	for pageCount := 0; pageCount < maxPages; pageCount++ {
		page, err := stream.Next()
		if err != nil {
			if errors.Is(err, ErrNoMorePages) {
				return all, nil
			}

			return all, err
		}

		all = append(all, page.Items...)

		if page.ContinuationToken == "" {
			return all, nil
		}
	}

	return all, nil
}

// PageResult is one streamed page or the error that ended the stream.
type PageResult[T any] struct {
	Items     []T
	PageIndex int
	Err       error
}

// StreamPages fetches pages in a background goroutine and delivers them
// on the returned channel. The channel is closed after the final page or
// the first error; canceling ctx also ends the stream.
func StreamPages[T any](ctx context.Context, source PageSource[T], opts *PaginationOptions) <-chan PageResult[T] {
	if opts == nil {
		opts = DefaultPaginationOptions()
	}

	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = constants.MaxPages
	}

	results := make(chan PageResult[T])

	go func() {
		defer close(results)

		stream := NewPageIterator(ctx, source).Pages()

		for pageCount := 0; pageCount < maxPages; pageCount++ {
			page, err := stream.Next()
			if err != nil {
				if !errors.Is(err, ErrNoMorePages) {
					select {
					case results <- PageResult[T]{Err: err}:
					case <-ctx.Done():
					}
				}

				return
			}

			select {
			case results <- PageResult[T]{Items: page.Items, PageIndex: page.PageIndex}:
			case <-ctx.Done():
				return
			}

			if page.ContinuationToken == "" {
				return
			}
		}
	}()

	return results
}

// jsonPageSource adapts a ListClient endpoint to a typed PageSource.
type jsonPageSource[T any] struct {
	client   ListClient
	path     string
	pageSize int
}

// NewJSONPageSource builds a PageSource over a remote listing endpoint,
// decoding each raw item into T. A pageSize of zero uses the service
// default.
func NewJSONPageSource[T any](client ListClient, path string, pageSize int) PageSource[T] {
	if pageSize <= 0 {
		pageSize = constants.DefaultPageSize
	}

	return &jsonPageSource[T]{
		client:   client,
		path:     path,
		pageSize: pageSize,
	}
}

func (s *jsonPageSource[T]) Collection() string {
	return fmt.Sprintf("%s?page_size=%d", s.path, s.pageSize)
}

func (s *jsonPageSource[T]) FetchPage(ctx context.Context, token string) ([]T, string, error) {
	result, err := s.client.ListPage(ctx, s.path, token, s.pageSize)
	if err != nil {
		return nil, "", err
	}

	items := make([]T, 0, len(result.Items))

	for _, raw := range result.Items {
		var item T

		err := json.Unmarshal(raw, &item)
		if err != nil {
			return nil, "", fmt.Errorf("decoding list item: %w", err)
		}

		items = append(items, item)
	}

	return items, result.NextPageToken, nil
}
