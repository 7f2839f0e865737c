package opskit_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/opskit/pkg/opskit"
)

type TestResource struct {
	ID   string
	Name string
}

// MockPageSource implements PageSource over a fixed sequence of pages.
// Page tokens are "p2", "p3", ... and the final page returns "".
type MockPageSource struct {
	collection string
	pages      [][]TestResource
	failNext   error
	fetches    int
}

func (m *MockPageSource) Collection() string {
	return m.collection
}

func (m *MockPageSource) FetchPage(ctx context.Context, token string) ([]TestResource, string, error) {
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil

		return nil, "", err
	}

	m.fetches++

	index := 0
	if token != "" {
		_, err := fmt.Sscanf(token, "p%d", &index)
		if err != nil {
			return nil, "", fmt.Errorf("bad token %q: %w", token, err)
		}

		index--
	}

	if index >= len(m.pages) {
		return []TestResource{}, "", nil
	}

	next := ""
	if index+1 < len(m.pages) {
		next = fmt.Sprintf("p%d", index+2)
	}

	return m.pages[index], next, nil
}

func threePageSource() *MockPageSource {
	return &MockPageSource{
		collection: "/test?page_size=2",
		pages: [][]TestResource{
			{{ID: "1", Name: "Resource 1"}, {ID: "2", Name: "Resource 2"}},
			{{ID: "3", Name: "Resource 3"}, {ID: "4", Name: "Resource 4"}},
			{{ID: "5", Name: "Resource 5"}},
		},
	}
}

func TestPageIterator_HasNext(t *testing.T) {
	ctx := context.Background()
	iterator := opskit.NewPageIterator(ctx, threePageSource())

	// Should have next before any fetch
	assert.True(t, iterator.HasNext())

	for i := 1; i <= 5; i++ {
		assert.True(t, iterator.HasNext())

		item, err := iterator.Next()
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("%d", i), item.ID)
	}

	// Should not have next after the last item
	assert.False(t, iterator.HasNext())

	_, err := iterator.Next()
	require.ErrorIs(t, err, opskit.ErrNoMoreItems)
}

func TestPageIterator_HasNext_EmptyCollection(t *testing.T) {
	source := &MockPageSource{collection: "/empty", pages: nil}

	ctx := context.Background()
	iterator := opskit.NewPageIterator(ctx, source)

	// HasNext is optimistic before the first fetch
	assert.True(t, iterator.HasNext())

	_, err := iterator.Next()
	require.ErrorIs(t, err, opskit.ErrNoMoreItems)
	assert.False(t, iterator.HasNext())
}

func TestPageIterator_All(t *testing.T) {
	ctx := context.Background()
	iterator := opskit.NewPageIterator(ctx, threePageSource())

	allResources, err := iterator.All()
	require.NoError(t, err)
	assert.Len(t, allResources, 5)
	assert.Equal(t, "1", allResources[0].ID)
	assert.Equal(t, "5", allResources[4].ID)
}

func TestPageIterator_ForEach(t *testing.T) {
	ctx := context.Background()
	iterator := opskit.NewPageIterator(ctx, threePageSource())

	var collected []string

	err := iterator.ForEach(func(resource TestResource) error {
		collected = append(collected, resource.ID)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, collected)
}

func TestPageIterator_ForEach_StopsOnError(t *testing.T) {
	ctx := context.Background()
	iterator := opskit.NewPageIterator(ctx, threePageSource())

	errStop := errors.New("stop")

	var collected []string

	err := iterator.ForEach(func(resource TestResource) error {
		collected = append(collected, resource.ID)
		if resource.ID == "3" {
			return errStop
		}
		return nil
	})

	require.ErrorIs(t, err, errStop)
	assert.Equal(t, []string{"1", "2", "3"}, collected)
}

func TestPageIterator_FetchErrorDoesNotAdvance(t *testing.T) {
	source := threePageSource()
	ctx := context.Background()
	iterator := opskit.NewPageIterator(ctx, source)

	item, err := iterator.Next()
	require.NoError(t, err)
	assert.Equal(t, "1", item.ID)

	item, err = iterator.Next()
	require.NoError(t, err)
	assert.Equal(t, "2", item.ID)

	// Next call needs page 2; make that fetch fail once
	source.failNext = errors.New("connection reset")

	_, err = iterator.Next()
	require.Error(t, err)

	var fetchErr *opskit.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "/test?page_size=2", fetchErr.Collection)

	// Retrying resumes at the same position with no loss or duplication
	item, err = iterator.Next()
	require.NoError(t, err)
	assert.Equal(t, "3", item.ID)
}

func TestPageIterator_NextPage(t *testing.T) {
	ctx := context.Background()
	iterator := opskit.NewPageIterator(ctx, threePageSource())

	page1, err := iterator.NextPage("")
	require.NoError(t, err)
	assert.Len(t, page1.Items, 2)
	assert.Equal(t, 0, page1.PageIndex)
	assert.NotEmpty(t, page1.ContinuationToken)

	page2, err := iterator.NextPage(page1.ContinuationToken)
	require.NoError(t, err)
	assert.Len(t, page2.Items, 2)
	assert.Equal(t, 1, page2.PageIndex)
	assert.NotEmpty(t, page2.ContinuationToken)

	page3, err := iterator.NextPage(page2.ContinuationToken)
	require.NoError(t, err)
	assert.Len(t, page3.Items, 1)
	assert.Equal(t, 2, page3.PageIndex)

	// Token is empty exactly on the final page
	assert.Empty(t, page3.ContinuationToken)
}

func TestPageIterator_NextPage_WalksUnevenPages(t *testing.T) {
	source := &MockPageSource{collection: "/big?page_size=10"}

	id := 0
	for _, size := range []int{10, 10, 4} {
		page := make([]TestResource, size)
		for i := range page {
			id++
			page[i] = TestResource{ID: fmt.Sprintf("%d", id)}
		}

		source.pages = append(source.pages, page)
	}

	ctx := context.Background()
	iterator := opskit.NewPageIterator(ctx, source)

	var sizes []int

	token := ""
	for {
		page, err := iterator.NextPage(token)
		require.NoError(t, err)

		sizes = append(sizes, len(page.Items))

		if page.ContinuationToken == "" {
			break
		}

		token = page.ContinuationToken
	}

	assert.Equal(t, []int{10, 10, 4}, sizes)
}

func TestPageIterator_NextPage_RetryAfterFetchError(t *testing.T) {
	source := threePageSource()
	ctx := context.Background()
	iterator := opskit.NewPageIterator(ctx, source)

	page1, err := iterator.NextPage("")
	require.NoError(t, err)
	require.NotEmpty(t, page1.ContinuationToken)

	source.failNext = errors.New("connection reset")

	_, err = iterator.NextPage(page1.ContinuationToken)
	require.Error(t, err)

	var fetchErr *opskit.FetchError
	require.ErrorAs(t, err, &fetchErr)

	// Retrying with the same token returns page 2, nothing skipped or
	// duplicated
	page2, err := iterator.NextPage(page1.ContinuationToken)
	require.NoError(t, err)
	assert.Equal(t, 1, page2.PageIndex)
	assert.Equal(t, "3", page2.Items[0].ID)
}

func TestPageIterator_NextPage_TokenFromOtherCollection(t *testing.T) {
	ctx := context.Background()

	tasks := opskit.NewPageIterator(ctx, threePageSource())

	page, err := tasks.NextPage("")
	require.NoError(t, err)
	require.NotEmpty(t, page.ContinuationToken)

	other := &MockPageSource{
		collection: "/other?page_size=2",
		pages:      [][]TestResource{{{ID: "x"}}},
	}
	iterator := opskit.NewPageIterator(ctx, other)

	_, err = iterator.NextPage(page.ContinuationToken)
	require.ErrorIs(t, err, opskit.ErrInvalidToken)
}

func TestPageIterator_NextPage_MalformedToken(t *testing.T) {
	ctx := context.Background()
	iterator := opskit.NewPageIterator(ctx, threePageSource())

	_, err := iterator.NextPage("not-a-token")
	require.ErrorIs(t, err, opskit.ErrInvalidToken)

	_, err = iterator.NextPage("v1.!!!not-base64!!!")
	require.ErrorIs(t, err, opskit.ErrInvalidToken)
}

func TestPageIterator_MixedIteration(t *testing.T) {
	ctx := context.Background()

	iterator := opskit.NewPageIterator(ctx, threePageSource())

	_, err := iterator.Next()
	require.NoError(t, err)

	_, err = iterator.NextPage("")
	require.ErrorIs(t, err, opskit.ErrMixedIteration)

	iterator = opskit.NewPageIterator(ctx, threePageSource())

	_, err = iterator.NextPage("")
	require.NoError(t, err)

	_, err = iterator.Next()
	require.ErrorIs(t, err, opskit.ErrMixedIteration)
}

func TestPageStream(t *testing.T) {
	ctx := context.Background()
	stream := opskit.NewPageIterator(ctx, threePageSource()).Pages()

	var sizes []int

	for {
		page, err := stream.Next()
		if errors.Is(err, opskit.ErrNoMorePages) {
			break
		}

		require.NoError(t, err)

		sizes = append(sizes, len(page.Items))
	}

	assert.Equal(t, []int{2, 2, 1}, sizes)
}

func TestFetchAllPages(t *testing.T) {
	ctx := context.Background()

	resources, err := opskit.FetchAllPages(ctx, threePageSource(), nil)
	require.NoError(t, err)
	assert.Len(t, resources, 5)
}

func TestFetchAllPages_WithMaxPages(t *testing.T) {
	options := &opskit.PaginationOptions{
		MaxPages: 2,
	}
	ctx := context.Background()

	resources, err := opskit.FetchAllPages(ctx, threePageSource(), options)
	require.NoError(t, err)
	assert.Len(t, resources, 4) // Only first 2 pages
}

func TestStreamPages(t *testing.T) {
	ctx := context.Background()

	resultChan := opskit.StreamPages(ctx, threePageSource(), nil)

	var allResources []TestResource
	pageCount := 0

	for result := range resultChan {
		require.NoError(t, result.Err)
		allResources = append(allResources, result.Items...)
		pageCount++
	}

	assert.Equal(t, 3, pageCount)
	assert.Len(t, allResources, 5)
}

func TestStreamPages_PropagatesError(t *testing.T) {
	source := threePageSource()
	source.failNext = errors.New("boom")

	ctx := context.Background()

	resultChan := opskit.StreamPages(ctx, source, nil)

	var lastErr error
	for result := range resultChan {
		lastErr = result.Err
	}

	require.Error(t, lastErr)

	var fetchErr *opskit.FetchError
	assert.ErrorAs(t, lastErr, &fetchErr)
}

type listClientFunc func(ctx context.Context, path, pageToken string, pageSize int) (*opskit.ListResult, error)

func (f listClientFunc) ListPage(ctx context.Context, path, pageToken string, pageSize int) (*opskit.ListResult, error) {
	return f(ctx, path, pageToken, pageSize)
}

func TestNewJSONPageSource(t *testing.T) {
	client := listClientFunc(func(ctx context.Context, path, pageToken string, pageSize int) (*opskit.ListResult, error) {
		assert.Equal(t, "/v1/tasks", path)
		assert.Equal(t, 10, pageSize)

		if pageToken == "" {
			return &opskit.ListResult{
				Items:         []json.RawMessage{json.RawMessage(`{"id":"1","name":"a"}`)},
				NextPageToken: "t2",
			}, nil
		}

		assert.Equal(t, "t2", pageToken)

		return &opskit.ListResult{
			Items: []json.RawMessage{json.RawMessage(`{"id":"2","name":"b"}`)},
		}, nil
	})

	type task struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	source := opskit.NewJSONPageSource[task](client, "/v1/tasks", 10)
	assert.Equal(t, "/v1/tasks?page_size=10", source.Collection())

	ctx := context.Background()

	items, err := opskit.FetchAllPages(ctx, source, nil)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].Name)
	assert.Equal(t, "b", items[1].Name)
}

func TestNewJSONPageSource_DecodeError(t *testing.T) {
	client := listClientFunc(func(ctx context.Context, path, pageToken string, pageSize int) (*opskit.ListResult, error) {
		return &opskit.ListResult{
			Items: []json.RawMessage{json.RawMessage(`{"id":`)},
		}, nil
	})

	type task struct {
		ID string `json:"id"`
	}

	source := opskit.NewJSONPageSource[task](client, "/v1/tasks", 10)

	ctx := context.Background()
	iterator := opskit.NewPageIterator(ctx, source)

	_, err := iterator.Next()
	require.Error(t, err)

	var fetchErr *opskit.FetchError
	assert.ErrorAs(t, err, &fetchErr)
}
