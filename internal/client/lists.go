package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/fivetwenty-io/opskit/pkg/opskit"
)

// ListPage implements opskit.ListClient: fetch one page of any listing
// endpoint. The token passed here is the server's raw page token; the
// public iterator wraps and fingerprints it before callers see it.
func (c *Client) ListPage(ctx context.Context, path, token string, pageSize int) (*opskit.ListResult, error) {
	query := url.Values{}

	if token != "" {
		query.Set("page_token", token)
	}

	if pageSize > 0 {
		query.Set("page_size", strconv.Itoa(pageSize))
	}

	resp, err := c.httpClient.Get(ctx, path, query)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", path, err)
	}

	var result opskit.ListResult

	err = json.Unmarshal(resp.Body, &result)
	if err != nil {
		return nil, fmt.Errorf("parsing list response: %w", err)
	}

	return &result, nil
}

var _ opskit.ListClient = (*Client)(nil)
