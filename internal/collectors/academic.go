package collectors

import (
	"context"
	"log/slog"
	"time"

	"evidencer/internal/academic"
	"evidencer/internal/archive"
	"evidencer/internal/instruction"
	"evidencer/internal/job"
)

// AcademicSource is the slice of the OpenAlex client this collector needs.
type AcademicSource interface {
	Search(ctx context.Context, query string, fromDate time.Time, limit int) ([]academic.Work, error)
	WorkByID(ctx context.Context, id string) (*academic.Work, error)
}

// Academic archives published-literature metadata: explicit DOIs and OpenAlex
// IDs are resolved directly, queries go through works search.
type Academic struct {
	Client AcademicSource
	Delay  time.Duration

	// RecencyWindow restricts query searches to works published within the
	// window before the job date. Zero means unrestricted.
	RecencyWindow time.Duration
}

// Name returns the archive namespace.
func (c *Academic) Name() string { return job.NamespaceAcademic }

// Run resolves explicit identifiers first, then query searches, skipping
// anything whose identity key is already archived.
func (c *Academic) Run(ctx context.Context, j *job.Job, w *archive.Writer, log *slog.Logger) error {
	if c.Client == nil {
		log.Warn("academic client not configured, skipping", "namespace", c.Name())
		return nil
	}

	seen, err := w.Keys(c.Name())
	if err != nil {
		return err
	}

	for _, id := range j.AcademicIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if instruction.IsArxivID(id) {
			continue // preprint collector's input
		}

		work, err := c.Client.WorkByID(ctx, id)
		if err != nil {
			log.Error("academic lookup failed", "id", id, "error", err)
			continue
		}
		c.archiveWork(*work, "id:"+id, seen, w, log)
		pause(ctx, c.Delay)
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

		works, err := c.Client.Search(ctx, query, fromDate, j.Providers.Academic.Limit)
		if err != nil {
			log.Error("academic search failed", "query", query, "error", err)
			continue
		}
		log.Info("academic search done", "query", query, "hits", len(works))

		for _, work := range works {
			c.archiveWork(work, query, seen, w, log)
		}
		pause(ctx, c.Delay)
	}
	return nil
}

func (c *Academic) archiveWork(work academic.Work, query string, seen map[string]bool, w *archive.Writer, log *slog.Logger) {
	record := workRecord(work, query)
	if key := archive.PeekKey(c.Name(), record); key != "" && seen[key] {
		log.Debug("skipping archived work", "work", work.ID)
		return
	}

	key, err := w.Append(c.Name(), record)
	if err != nil {
		log.Error("failed to archive work", "work", work.ID, "error", err)
		return
	}
	if key != "" {
		seen[key] = true
	}
}

func workRecord(work academic.Work, query string) map[string]any {
	record := map[string]any{
		"work_id":        work.ID,
		"title":          work.Title,
		"cited_by_count": work.CitedByCount,
		"query":          query,
	}
	if work.DOI != "" {
		record["doi"] = work.DOI
	}
	if work.Abstract != "" {
		record["abstract"] = work.Abstract
	}
	if work.PublicationDate != "" {
		record["publication_date"] = work.PublicationDate
	}
	if len(work.Authors) > 0 {
		record["authors"] = work.Authors
	}
	if work.Venue != "" {
		record["venue"] = work.Venue
	}
	if work.OpenAccessURL != "" {
		record["open_access_url"] = work.OpenAccessURL
	}
	return record
}
