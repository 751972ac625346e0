package preprint

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2401.01234v2</id>
    <title>Long   Context
      Retrieval</title>
    <summary>We study
      retrieval.</summary>
    <published>2026-02-01T00:00:00Z</published>
    <updated>2026-02-05T00:00:00Z</updated>
    <author><name>First Author</name></author>
    <author><name>Second Author</name></author>
    <link href="http://arxiv.org/abs/2401.01234v2" rel="alternate"/>
    <link href="http://arxiv.org/pdf/2401.01234v2" rel="related" title="pdf"/>
    <category term="cs.CL"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2312.99999v1</id>
    <title>Older Work</title>
    <summary>Old.</summary>
    <published>2023-12-20T00:00:00Z</published>
    <updated>2023-12-20T00:00:00Z</updated>
    <author><name>Third Author</name></author>
    <category term="cs.LG"/>
  </entry>
</feed>`

func newTestClient(handler http.HandlerFunc) (*Client, func()) {
	server := httptest.NewServer(handler)
	c := NewClient()
	c.BaseURL = server.URL
	return c, server.Close
}

func TestByIDs(t *testing.T) {
	var gotIDList string
	c, done := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotIDList = r.URL.Query().Get("id_list")
		_, _ = w.Write([]byte(sampleFeed))
	})
	defer done()

	entries, err := c.ByIDs(context.Background(), []string{"2401.01234", "2312.99999"})
	require.NoError(t, err)
	assert.Equal(t, "2401.01234,2312.99999", gotIDList)
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, "2401.01234", first.ArxivID, "version suffix stripped")
	assert.Equal(t, "Long Context Retrieval", first.Title, "whitespace collapsed")
	assert.Equal(t, "We study retrieval.", first.Summary)
	assert.Equal(t, []string{"First Author", "Second Author"}, first.Authors)
	assert.Equal(t, []string{"cs.CL"}, first.Categories)
	assert.Equal(t, "http://arxiv.org/pdf/2401.01234v2", first.PDFURL)

	// No pdf link in the feed entry: derived from the ID.
	assert.Equal(t, "https://arxiv.org/pdf/2312.99999", entries[1].PDFURL)
}

func TestByIDs_EmptyInputSkipsRequest(t *testing.T) {
	c := NewClient()
	c.BaseURL = "http://127.0.0.1:1" // would fail if contacted
	entries, err := c.ByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSearchRecent_FiltersByDate(t *testing.T) {
	var gotQuery string
	c, done := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search_query")
		assert.Equal(t, "submittedDate", r.URL.Query().Get("sortBy"))
		_, _ = w.Write([]byte(sampleFeed))
	})
	defer done()

	entries, err := c.SearchRecent(context.Background(), "long context",
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 10)
	require.NoError(t, err)
	assert.Equal(t, "all:long context", gotQuery)
	require.Len(t, entries, 1, "entry published before the window is dropped")
	assert.Equal(t, "2401.01234", entries[0].ArxivID)
}

func TestSearchRecent_HTTPError(t *testing.T) {
	c, done := newTestClient(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "slow down", http.StatusServiceUnavailable)
	})
	defer done()

	_, err := c.SearchRecent(context.Background(), "q", time.Time{}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestExtractID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://arxiv.org/abs/2401.01234v2", "2401.01234"},
		{"https://arxiv.org/pdf/2312.99999", "2312.99999"},
		{"arXiv:2405.12345", "2405.12345"},
		{"no id here", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractID(tt.in), tt.in)
	}
}
