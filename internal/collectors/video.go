package collectors

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"evidencer/internal/archive"
	"evidencer/internal/job"
	"evidencer/internal/video"
)

// VideoSource is the slice of the video client this collector needs.
type VideoSource interface {
	Search(ctx context.Context, query string, limit int) ([]video.Video, error)
	Details(ctx context.Context, ids []string) (map[string]video.Video, error)
	Transcript(ctx context.Context, videoID, lang string) (string, error)
}

// transcriptLimit caps how much transcript text one record carries.
const transcriptLimit = 20000

// Video archives talk and lecture metadata with transcripts where available.
// When the provider's daily quota is exhausted mid-run, the collector falls
// back to mining already-archived web search records for watch URLs so the
// run still makes progress.
type Video struct {
	Client VideoSource
	Delay  time.Duration

	detailsCache detailsCache
}

// Name returns the archive namespace.
func (c *Video) Name() string { return job.NamespaceVideo }

// Run searches each permitted query, enriches hits with details and
// transcripts, and archives them.
func (c *Video) Run(ctx context.Context, j *job.Job, w *archive.Writer, log *slog.Logger) error {
	if c.Client == nil {
		log.Warn("video client not configured, skipping", "namespace", c.Name())
		return nil
	}

	seen, err := w.Keys(c.Name())
	if err != nil {
		return err
	}

	var cacheEntries []archive.QueryCacheEntry
	for i, query := range j.Queries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !job.QueryAllowedFor(j.QuerySpecs[i], c.Name()) {
			continue
		}

		videos, err := c.Client.Search(ctx, query, j.Providers.Video.Limit)
		if err != nil {
			if video.IsQuotaExceeded(err) {
				log.Warn("video quota exhausted, recovering from web search archive", "query", query)
				c.recoverFromWebSearch(seen, w, log)
				break
			}
			log.Error("video search failed", "query", query, "error", err)
			continue
		}
		log.Info("video search done", "query", query, "hits", len(videos))

		entry := archive.QueryCacheEntry{Query: query}
		for _, v := range videos {
			entry.Results = append(entry.Results, map[string]any{
				"video_id": v.VideoID,
				"title":    v.Title,
				"channel":  v.Channel,
				"url":      v.URL,
			})
		}
		cacheEntries = append(cacheEntries, entry)

		c.enrich(ctx, videos, log)

		for _, v := range videos {
			if seen[v.VideoID] {
				log.Debug("skipping archived video", "video_id", v.VideoID)
				continue
			}
			record := c.videoRecord(ctx, j, v, query, log)
			key, err := w.Append(c.Name(), record)
			if err != nil {
				log.Error("failed to archive video", "video_id", v.VideoID, "error", err)
				continue
			}
			if key != "" {
				seen[key] = true
			}
		}
		pause(ctx, c.Delay)
	}

	if len(cacheEntries) > 0 {
		if err := w.MergeQueryCache(c.Name(), cacheEntries); err != nil {
			log.Error("failed to merge query cache", "error", err)
		}
	}
	return nil
}

// enrich fills duration and view counts, caching so repeated IDs across
// queries cost one API call.
func (c *Video) enrich(ctx context.Context, videos []video.Video, log *slog.Logger) {
	var missing []string
	for _, v := range videos {
		if _, ok := c.detailsCache.get(v.VideoID); !ok {
			missing = append(missing, v.VideoID)
		}
	}

	if len(missing) > 0 {
		details, err := c.Client.Details(ctx, missing)
		if err != nil {
			log.Warn("video details lookup failed", "error", err)
		} else {
			for id, d := range details {
				c.detailsCache.put(id, d)
			}
		}
	}

	for i := range videos {
		if d, ok := c.detailsCache.get(videos[i].VideoID); ok {
			videos[i].Duration = d.Duration
			videos[i].ViewCount = d.ViewCount
		}
	}
}

func (c *Video) videoRecord(ctx context.Context, j *job.Job, v video.Video, query string, log *slog.Logger) map[string]any {
	record := map[string]any{
		"video_id": v.VideoID,
		"title":    v.Title,
		"channel":  v.Channel,
		"url":      v.URL,
		"query":    query,
	}
	if v.PublishedAt != "" {
		record["published_at"] = v.PublishedAt
	}
	if v.Description != "" {
		record["description"] = v.Description
	}
	if v.Duration != "" {
		record["duration"] = v.Duration
	}
	if v.ViewCount > 0 {
		record["view_count"] = v.ViewCount
	}

	transcript, err := c.Client.Transcript(ctx, v.VideoID, j.Language)
	if err != nil {
		log.Debug("transcript unavailable", "video_id", v.VideoID, "error", err)
	} else if transcript != "" {
		if len(transcript) > transcriptLimit {
			transcript = transcript[:transcriptLimit]
		}
		record["transcript"] = transcript
	}
	return record
}

// recoverFromWebSearch derives minimal video records from watch URLs that the
// web search collector already archived. No API quota is spent; the records
// carry only what the search hit knew.
func (c *Video) recoverFromWebSearch(seen map[string]bool, w *archive.Writer, log *slog.Logger) {
	records, err := w.Records(job.NamespaceWebSearch)
	if err != nil {
		log.Error("failed to read web search archive for recovery", "error", err)
		return
	}

	recovered := 0
	for _, hit := range records {
		rawURL, _ := hit["url"].(string)
		videoID := video.ExtractVideoID(rawURL)
		if videoID == "" || seen[videoID] {
			continue
		}

		title, _ := hit["title"].(string)
		record := map[string]any{
			"video_id":  videoID,
			"title":     title,
			"url":       video.WatchURL(videoID),
			"recovered": true,
		}
		key, err := w.Append(c.Name(), record)
		if err != nil {
			log.Error("failed to archive recovered video", "video_id", videoID, "error", err)
			continue
		}
		if key != "" {
			seen[key] = true
		}
		recovered++
	}
	log.Info("video recovery finished", "recovered", recovered)
}

// detailsCache memoizes per-video detail lookups for one collector lifetime.
type detailsCache struct {
	mu      sync.Mutex
	entries map[string]video.Video
}

func (dc *detailsCache) get(id string) (video.Video, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	v, ok := dc.entries[id]
	return v, ok
}

func (dc *detailsCache) put(id string, v video.Video) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if dc.entries == nil {
		dc.entries = make(map[string]video.Video)
	}
	dc.entries[id] = v
}
