package collectors

import (
	"context"
	"log/slog"
	"time"

	"evidencer/internal/archive"
	"evidencer/internal/job"
	"evidencer/internal/websearch"
)

// Searcher is the slice of the web search client this collector needs.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]websearch.Result, error)
}

// WebSearch runs the job's queries against a web search engine and archives
// the hit metadata. Raw per-query result sets also land in the namespace's
// query cache so later runs and the agentic loop can mine them without
// re-searching.
type WebSearch struct {
	Client Searcher
	Delay  time.Duration
}

// Name returns the archive namespace.
func (c *WebSearch) Name() string { return job.NamespaceWebSearch }

// Run executes each query permitted for this provider, skipping hits whose
// identity keys are already archived.
func (c *WebSearch) Run(ctx context.Context, j *job.Job, w *archive.Writer, log *slog.Logger) error {
	if c.Client == nil {
		log.Warn("web search client not configured, skipping", "namespace", c.Name())
		return nil
	}

	seen, err := w.Keys(c.Name())
	if err != nil {
		return err
	}

	var cacheEntries []archive.QueryCacheEntry
	for i, query := range j.Queries {
		spec := j.QuerySpecs[i]
		if !job.QueryAllowedFor(spec, c.Name()) {
			continue
		}

		// A site: hint fans the query out into one search per site.
		searches := []string{query}
		if sites := job.SiteHints(spec); len(sites) > 0 {
			searches = searches[:0]
			for _, site := range sites {
				searches = append(searches, websearch.WithSite(query, site))
			}
		}

		for _, search := range searches {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			results, err := c.Client.Search(ctx, search, j.Providers.WebSearch.Limit)
			if err != nil {
				log.Error("web search failed", "query", search, "error", err)
				continue
			}
			log.Info("web search done", "query", search, "hits", len(results))

			entry := archive.QueryCacheEntry{Query: search}
			for _, result := range results {
				record := searchRecord(result, search)
				entry.Results = append(entry.Results, record)

				if seen[result.URL] {
					log.Debug("skipping archived result", "url", result.URL)
					continue
				}
				key, err := w.Append(c.Name(), record)
				if err != nil {
					log.Error("failed to archive result", "url", result.URL, "error", err)
					continue
				}
				if key != "" {
					seen[key] = true
				}
			}
			cacheEntries = append(cacheEntries, entry)
			pause(ctx, c.Delay)
		}
	}

	if len(cacheEntries) > 0 {
		if err := w.MergeQueryCache(c.Name(), cacheEntries); err != nil {
			log.Error("failed to merge query cache", "error", err)
		}
	}
	return nil
}

func searchRecord(r websearch.Result, query string) map[string]any {
	return map[string]any{
		"url":     r.URL,
		"title":   r.Title,
		"snippet": r.Snippet,
		"source":  r.Source,
		"query":   query,
	}
}
