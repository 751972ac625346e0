// Package preprint queries the arXiv Atom API for preprint metadata and PDF
// locations.
package preprint

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the public arXiv query endpoint.
const DefaultBaseURL = "http://export.arxiv.org/api/query"

// Entry is one arXiv preprint.
type Entry struct {
	ArxivID    string    `json:"arxiv_id"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary"`
	Authors    []string  `json:"authors"`
	Published  time.Time `json:"published"`
	Updated    time.Time `json:"updated"`
	Categories []string  `json:"categories"`
	PDFURL     string    `json:"pdf_url"`
	PageURL    string    `json:"page_url"`
}

// Client talks to the arXiv API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a client against the public endpoint.
func NewClient() *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Links []struct {
		Href  string `xml:"href,attr"`
		Title string `xml:"title,attr"`
		Rel   string `xml:"rel,attr"`
	} `xml:"link"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
}

// ByIDs fetches entries for explicit arXiv IDs via the id_list parameter.
// Unknown IDs are silently absent from the result.
func (c *Client) ByIDs(ctx context.Context, ids []string) ([]Entry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("id_list", strings.Join(ids, ","))
	params.Set("max_results", strconv.Itoa(len(ids)))

	entries, err := c.query(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("preprint: fetch ids: %w", err)
	}
	return entries, nil
}

// SearchRecent finds preprints matching the query, newest submissions first,
// dropping entries published before fromDate (zero time keeps everything).
func (c *Client) SearchRecent(ctx context.Context, query string, fromDate time.Time, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 25
	}

	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")
	params.Set("max_results", strconv.Itoa(limit))

	entries, err := c.query(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("preprint: search %q: %w", query, err)
	}

	if fromDate.IsZero() {
		return entries, nil
	}
	var recent []Entry
	for _, e := range entries {
		if !e.Published.Before(fromDate) {
			recent = append(recent, e)
		}
	}
	return recent, nil
}

func (c *Client) query(ctx context.Context, params url.Values) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	entries := make([]Entry, 0, len(feed.Entries))
	for _, raw := range feed.Entries {
		entries = append(entries, raw.toEntry())
	}
	return entries, nil
}

func (e atomEntry) toEntry() Entry {
	entry := Entry{
		ArxivID: ExtractID(e.ID),
		Title:   collapseSpace(e.Title),
		Summary: collapseSpace(e.Summary),
		PageURL: e.ID,
	}
	entry.Published, _ = time.Parse(time.RFC3339, e.Published)
	entry.Updated, _ = time.Parse(time.RFC3339, e.Updated)
	for _, a := range e.Authors {
		entry.Authors = append(entry.Authors, a.Name)
	}
	for _, cat := range e.Categories {
		entry.Categories = append(entry.Categories, cat.Term)
	}
	for _, link := range e.Links {
		if link.Title == "pdf" || strings.Contains(link.Href, "/pdf/") {
			entry.PDFURL = link.Href
		}
	}
	if entry.PDFURL == "" && entry.ArxivID != "" {
		entry.PDFURL = "https://arxiv.org/pdf/" + entry.ArxivID
	}
	return entry
}

var idPattern = regexp.MustCompile(`(\d{4}\.\d{4,5})(v\d+)?`)

// ExtractID pulls the bare arXiv ID (without version suffix) out of an
// abs/pdf URL or a prefixed identifier. Returns "" when none is found.
func ExtractID(s string) string {
	m := idPattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

// collapseSpace flattens the newline-wrapped text arXiv returns in titles and
// abstracts.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
