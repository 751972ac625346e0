// Package video wraps the YouTube Data API for the video collector, plus
// transcript retrieval over the public timedtext endpoint.
package video

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// Video is one video with the fields the archive keeps.
type Video struct {
	VideoID     string `json:"video_id"`
	Title       string `json:"title"`
	Channel     string `json:"channel"`
	PublishedAt string `json:"published_at,omitempty"`
	Description string `json:"description,omitempty"`
	Duration    string `json:"duration,omitempty"`
	ViewCount   uint64 `json:"view_count,omitempty"`
	URL         string `json:"url"`
}

// Client performs video searches and detail lookups.
type Client struct {
	svc        *youtube.Service
	httpClient *http.Client

	// TimedTextBaseURL is overridable in tests.
	TimedTextBaseURL string
}

// NewClient builds a client from an API key.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("video: API key is required")
	}
	svc, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("video: create service: %w", err)
	}
	return &Client{
		svc:              svc,
		httpClient:       &http.Client{Timeout: 30 * time.Second},
		TimedTextBaseURL: "https://www.youtube.com/api/timedtext",
	}, nil
}

// Search returns up to limit videos matching the query, newest first.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Video, error) {
	if limit <= 0 {
		limit = 10
	}

	call := c.svc.Search.List([]string{"snippet"}).
		Context(ctx).
		Q(query).
		Type("video").
		Order("date").
		MaxResults(int64(limit))

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("video: search %q: %w", query, err)
	}

	videos := make([]Video, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" {
			continue
		}
		videos = append(videos, Video{
			VideoID:     item.Id.VideoId,
			Title:       item.Snippet.Title,
			Channel:     item.Snippet.ChannelTitle,
			PublishedAt: item.Snippet.PublishedAt,
			Description: item.Snippet.Description,
			URL:         WatchURL(item.Id.VideoId),
		})
	}
	return videos, nil
}

// Details fills in duration and view counts for the given video IDs.
func (c *Client) Details(ctx context.Context, ids []string) (map[string]Video, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	call := c.svc.Videos.List([]string{"snippet", "contentDetails", "statistics"}).
		Context(ctx).
		Id(ids...)

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("video: details: %w", err)
	}

	details := make(map[string]Video, len(resp.Items))
	for _, item := range resp.Items {
		v := Video{
			VideoID: item.Id,
			URL:     WatchURL(item.Id),
		}
		if item.Snippet != nil {
			v.Title = item.Snippet.Title
			v.Channel = item.Snippet.ChannelTitle
			v.PublishedAt = item.Snippet.PublishedAt
			v.Description = item.Snippet.Description
		}
		if item.ContentDetails != nil {
			v.Duration = item.ContentDetails.Duration
		}
		if item.Statistics != nil {
			v.ViewCount = item.Statistics.ViewCount
		}
		details[item.Id] = v
	}
	return details, nil
}

// IsQuotaExceeded reports whether an API error is the daily quota limit, the
// one failure the collector recovers from instead of retrying.
func IsQuotaExceeded(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code != http.StatusForbidden {
		return false
	}
	for _, item := range apiErr.Errors {
		if item.Reason == "quotaExceeded" || item.Reason == "dailyLimitExceeded" {
			return true
		}
	}
	return false
}

type timedTextBody struct {
	Texts []struct {
		Content string `xml:",chardata"`
	} `xml:"text"`
}

// Transcript fetches a video's caption track from the public timedtext
// endpoint. Many videos have no track; that returns "" with a nil error.
func (c *Client) Transcript(ctx context.Context, videoID, lang string) (string, error) {
	if lang == "" {
		lang = "en"
	}

	params := url.Values{}
	params.Set("v", videoID)
	params.Set("lang", lang)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.TimedTextBaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("video: transcript %s: %w", videoID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("video: transcript %s: HTTP %d", videoID, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("video: transcript %s: %w", videoID, err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", nil
	}

	var parsed timedTextBody
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("video: transcript %s: decode: %w", videoID, err)
	}

	parts := make([]string, 0, len(parsed.Texts))
	for _, text := range parsed.Texts {
		if t := strings.TrimSpace(html.UnescapeString(text.Content)); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}

// WatchURL returns the canonical watch URL for a video ID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

var watchIDPattern = regexp.MustCompile(`(?:youtube\.com/watch\?(?:.*&)?v=|youtu\.be/)([A-Za-z0-9_-]{11})`)

// ExtractVideoID pulls a video ID out of a watch or short URL, or returns "".
func ExtractVideoID(rawURL string) string {
	m := watchIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	return m[1]
}
