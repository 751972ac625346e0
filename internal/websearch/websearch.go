// Package websearch wraps the Google Custom Search JSON API for the
// web-search collector and the planner's web-search action.
package websearch

import (
	"context"
	"fmt"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// pageSize is the API maximum for one request.
const pageSize = 10

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
}

// Client performs web searches against a configured programmable search
// engine.
type Client struct {
	svc      *customsearch.Service
	engineID string
}

// NewClient builds a client from an API key and a programmable search engine
// ID. Extra options are passed through to the service, so tests can point it
// at a local endpoint.
func NewClient(ctx context.Context, apiKey, engineID string, opts ...option.ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("websearch: API key is required")
	}
	if engineID == "" {
		return nil, fmt.Errorf("websearch: search engine ID is required")
	}
	svc, err := customsearch.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("websearch: create service: %w", err)
	}
	return &Client{svc: svc, engineID: engineID}, nil
}

// Search runs a query and returns up to limit results, paging through the API
// as needed.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = pageSize
	}

	var results []Result
	start := int64(1)
	for len(results) < limit {
		num := int64(limit - len(results))
		if num > pageSize {
			num = pageSize
		}

		call := c.svc.Cse.List().Context(ctx).Cx(c.engineID).Q(query).Num(num).Start(start)
		resp, err := call.Do()
		if err != nil {
			return results, fmt.Errorf("websearch: query %q: %w", query, err)
		}
		if len(resp.Items) == 0 {
			break
		}
		for _, item := range resp.Items {
			results = append(results, Result{
				Title:   item.Title,
				URL:     item.Link,
				Snippet: item.Snippet,
				Source:  item.DisplayLink,
			})
		}
		start += int64(len(resp.Items))
	}

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// WithSite restricts a query to one site using the site: operator.
func WithSite(query, site string) string {
	return fmt.Sprintf("%s site:%s", query, site)
}
