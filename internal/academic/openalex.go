// Package academic queries the OpenAlex works API for published research
// metadata.
package academic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the public OpenAlex API endpoint.
const DefaultBaseURL = "https://api.openalex.org"

// Work is one OpenAlex work with the fields the archive keeps.
type Work struct {
	ID              string   `json:"id"`
	DOI             string   `json:"doi,omitempty"`
	Title           string   `json:"display_name"`
	PublicationDate string   `json:"publication_date,omitempty"`
	CitedByCount    int      `json:"cited_by_count"`
	Abstract        string   `json:"abstract,omitempty"`
	Authors         []string `json:"authors,omitempty"`
	Venue           string   `json:"venue,omitempty"`
	OpenAccessURL   string   `json:"open_access_url,omitempty"`
}

// Client talks to the OpenAlex REST API. OpenAlex requires no key; a mailto
// address puts requests in the polite pool.
type Client struct {
	BaseURL    string
	Mailto     string
	HTTPClient *http.Client
}

// NewClient returns a client against the public API.
func NewClient(mailto string) *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		Mailto:     mailto,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type worksResponse struct {
	Results []apiWork `json:"results"`
}

type apiWork struct {
	ID                  string           `json:"id"`
	DOI                 string           `json:"doi"`
	DisplayName         string           `json:"display_name"`
	PublicationDate     string           `json:"publication_date"`
	CitedByCount        int              `json:"cited_by_count"`
	AbstractInvertedIdx map[string][]int `json:"abstract_inverted_index"`
	Authorships         []struct {
		Author struct {
			DisplayName string `json:"display_name"`
		} `json:"author"`
	} `json:"authorships"`
	PrimaryLocation struct {
		Source struct {
			DisplayName string `json:"display_name"`
		} `json:"source"`
	} `json:"primary_location"`
	OpenAccess struct {
		OAURL string `json:"oa_url"`
	} `json:"open_access"`
}

func (w apiWork) toWork() Work {
	work := Work{
		ID:              w.ID,
		DOI:             w.DOI,
		Title:           w.DisplayName,
		PublicationDate: w.PublicationDate,
		CitedByCount:    w.CitedByCount,
		Abstract:        reconstructAbstract(w.AbstractInvertedIdx),
		Venue:           w.PrimaryLocation.Source.DisplayName,
		OpenAccessURL:   w.OpenAccess.OAURL,
	}
	for _, a := range w.Authorships {
		work.Authors = append(work.Authors, a.Author.DisplayName)
	}
	return work
}

// Search finds works matching a query, newest first, optionally restricted to
// publications on or after fromDate (zero time means no restriction).
func (c *Client) Search(ctx context.Context, query string, fromDate time.Time, limit int) ([]Work, error) {
	if limit <= 0 {
		limit = 25
	}

	params := url.Values{}
	params.Set("search", query)
	params.Set("per-page", strconv.Itoa(limit))
	params.Set("sort", "publication_date:desc")
	if !fromDate.IsZero() {
		params.Set("filter", "from_publication_date:"+fromDate.Format("2006-01-02"))
	}

	var resp worksResponse
	if err := c.get(ctx, "/works", params, &resp); err != nil {
		return nil, fmt.Errorf("academic: search %q: %w", query, err)
	}

	works := make([]Work, 0, len(resp.Results))
	for _, r := range resp.Results {
		works = append(works, r.toWork())
	}
	return works, nil
}

// WorkByID resolves one work by OpenAlex ID (short form like "W2741809807" or
// the full URL form) or by DOI.
func (c *Client) WorkByID(ctx context.Context, id string) (*Work, error) {
	path := "/works/" + url.PathEscape(externalID(id))

	var r apiWork
	if err := c.get(ctx, path, nil, &r); err != nil {
		return nil, fmt.Errorf("academic: work %q: %w", id, err)
	}
	work := r.toWork()
	return &work, nil
}

// Citations returns works that cite the given work, most cited first.
func (c *Client) Citations(ctx context.Context, workID string, limit int) ([]Work, error) {
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{}
	params.Set("filter", "cites:"+shortID(workID))
	params.Set("per-page", strconv.Itoa(limit))
	params.Set("sort", "cited_by_count:desc")

	var resp worksResponse
	if err := c.get(ctx, "/works", params, &resp); err != nil {
		return nil, fmt.Errorf("academic: citations of %q: %w", workID, err)
	}

	works := make([]Work, 0, len(resp.Results))
	for _, r := range resp.Results {
		works = append(works, r.toWork())
	}
	return works, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	if c.Mailto != "" {
		params.Set("mailto", c.Mailto)
	}

	endpoint := strings.TrimSuffix(c.BaseURL, "/") + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// externalID maps a DOI to the "doi:" selector the API expects; OpenAlex IDs
// pass through in short form.
func externalID(id string) string {
	if strings.HasPrefix(id, "10.") {
		return "doi:" + id
	}
	return shortID(id)
}

func shortID(id string) string {
	if idx := strings.LastIndex(id, "/"); idx >= 0 && strings.Contains(id, "openalex.org") {
		return id[idx+1:]
	}
	return id
}

// reconstructAbstract rebuilds plain text from OpenAlex's inverted index
// representation.
func reconstructAbstract(index map[string][]int) string {
	if len(index) == 0 {
		return ""
	}

	type positioned struct {
		pos  int
		word string
	}
	var words []positioned
	for word, positions := range index {
		for _, pos := range positions {
			words = append(words, positioned{pos: pos, word: word})
		}
	}
	sort.Slice(words, func(i, k int) bool { return words[i].pos < words[k].pos })

	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.word
	}
	return strings.Join(parts, " ")
}
