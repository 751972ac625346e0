package collectors

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"evidencer/internal/archive"
	"evidencer/internal/fetch"
	"evidencer/internal/instruction"
	"evidencer/internal/job"
	"evidencer/internal/preprint"
)

// PreprintSource is the slice of the arXiv client this collector needs.
type PreprintSource interface {
	ByIDs(ctx context.Context, ids []string) ([]preprint.Entry, error)
	SearchRecent(ctx context.Context, query string, fromDate time.Time, limit int) ([]preprint.Entry, error)
}

// Preprint archives preprint metadata for explicit arXiv IDs and recent-work
// queries. PDF downloads are a side effect independent of record dedup: a
// deduplicated entry still gets its PDF fetched when the local copy is
// missing.
type Preprint struct {
	Client   PreprintSource
	Download func(ctx context.Context, url, dest string) error
	Delay    time.Duration

	// RecencyWindow bounds query searches, as in the academic collector.
	RecencyWindow time.Duration
}

// NewPreprint wires the collector to real PDF downloading.
func NewPreprint(client PreprintSource) *Preprint {
	return &Preprint{
		Client: client,
		Download: func(ctx context.Context, u, dest string) error {
			_, err := fetch.Download(ctx, u, dest, nil)
			return err
		},
	}
}

// Name returns the archive namespace.
func (c *Preprint) Name() string { return job.NamespacePreprint }

// Run resolves explicit arXiv IDs in one batch, then runs query searches.
func (c *Preprint) Run(ctx context.Context, j *job.Job, w *archive.Writer, log *slog.Logger) error {
	if c.Client == nil {
		log.Warn("preprint client not configured, skipping", "namespace", c.Name())
		return nil
	}

	seen, err := w.Keys(c.Name())
	if err != nil {
		return err
	}

	var arxivIDs []string
	for _, id := range j.AcademicIDs {
		if instruction.IsArxivID(id) {
			arxivIDs = append(arxivIDs, id)
		}
	}
	if len(arxivIDs) > 0 {
		entries, err := c.Client.ByIDs(ctx, arxivIDs)
		if err != nil {
			log.Error("preprint id lookup failed", "ids", arxivIDs, "error", err)
		} else {
			for _, entry := range entries {
				c.archiveEntry(ctx, j, entry, "id:"+entry.ArxivID, seen, w, log)
			}
		}
	}

	var fromDate time.Time
	if c.RecencyWindow > 0 {
		fromDate = j.Date.Add(-c.RecencyWindow)
	}

	for i, query := range j.Queries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !job.QueryAllowedFor(j.QuerySpecs[i], c.Name()) {
			continue
		}

		entries, err := c.Client.SearchRecent(ctx, query, fromDate, j.Providers.Preprint.Limit)
		if err != nil {
			log.Error("preprint search failed", "query", query, "error", err)
			continue
		}
		log.Info("preprint search done", "query", query, "hits", len(entries))

		for _, entry := range entries {
			c.archiveEntry(ctx, j, entry, query, seen, w, log)
		}
		pause(ctx, c.Delay)
	}
	return nil
}

func (c *Preprint) archiveEntry(ctx context.Context, j *job.Job, entry preprint.Entry, query string, seen map[string]bool, w *archive.Writer, log *slog.Logger) {
	record := entryRecord(entry, query)

	// PDF side effect runs regardless of dedup so update runs can backfill
	// downloads that were disabled or failed before.
	if j.DownloadPDF && entry.PDFURL != "" && c.Download != nil {
		c.downloadPDF(ctx, j, entry, record, log)
	}

	if key := archive.PeekKey(c.Name(), record); key != "" && seen[key] {
		log.Debug("skipping archived preprint", "arxiv_id", entry.ArxivID)
		return
	}

	key, err := w.Append(c.Name(), record)
	if err != nil {
		log.Error("failed to archive preprint", "arxiv_id", entry.ArxivID, "error", err)
		return
	}
	if key != "" {
		seen[key] = true
	}
}

func (c *Preprint) downloadPDF(ctx context.Context, j *job.Job, entry preprint.Entry, record map[string]any, log *slog.Logger) {
	dest := filepath.Join(j.DownloadDir(), c.Name(), entry.ArxivID+".pdf")
	if _, err := os.Stat(dest); err == nil {
		record["local_path"] = dest
		return // already on disk
	}

	if err := c.Download(ctx, entry.PDFURL, dest); err != nil {
		log.Warn("pdf download failed", "arxiv_id", entry.ArxivID, "error", err)
		return
	}
	log.Info("downloaded preprint pdf", "arxiv_id", entry.ArxivID, "dest", dest)
	record["local_path"] = dest
}

func entryRecord(entry preprint.Entry, query string) map[string]any {
	record := map[string]any{
		"arxiv_id": entry.ArxivID,
		"title":    entry.Title,
		"query":    query,
	}
	if entry.Summary != "" {
		record["summary"] = entry.Summary
	}
	if len(entry.Authors) > 0 {
		record["authors"] = entry.Authors
	}
	if len(entry.Categories) > 0 {
		record["categories"] = entry.Categories
	}
	if !entry.Published.IsZero() {
		record["published"] = entry.Published.Format("2006-01-02")
	}
	if entry.PDFURL != "" {
		record["pdf_url"] = entry.PDFURL
	}
	if entry.PageURL != "" {
		record["page_url"] = entry.PageURL
	}
	return record
}
