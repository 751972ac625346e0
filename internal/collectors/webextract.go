package collectors

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"evidencer/internal/archive"
	"evidencer/internal/fetch"
	"evidencer/internal/job"
)

// WebExtract fetches the job's explicit URLs and archives their extracted
// text. Pages that come back nearly empty are retried through a headless
// browser when one is available. The function hooks default to the fetch
// package and exist so tests can run without network or Chrome.
type WebExtract struct {
	Fetch    func(ctx context.Context, url string, opts *fetch.Options) (*fetch.Result, error)
	Render   func(ctx context.Context, url string, timeout time.Duration, log *slog.Logger) (string, error)
	Download func(ctx context.Context, url, dest string) error

	// Evidence distills structured claims from the extracted text. Optional;
	// when unset or failing the record archives without the evidence field.
	Evidence func(ctx context.Context, text string) (map[string]any, error)

	Delay          time.Duration
	BrowserTimeout time.Duration
}

// NewWebExtract returns a collector wired to real HTTP fetching and browser
// rendering.
func NewWebExtract() *WebExtract {
	return &WebExtract{
		Fetch:  fetch.URL,
		Render: fetch.WithBrowser,
		Download: func(ctx context.Context, u, dest string) error {
			_, err := fetch.Download(ctx, u, dest, nil)
			return err
		},
		BrowserTimeout: 45 * time.Second,
	}
}

// Name returns the archive namespace.
func (c *WebExtract) Name() string { return job.NamespaceWebExtract }

// Run processes each URL independently; a failed fetch is logged and the
// remaining URLs still run.
func (c *WebExtract) Run(ctx context.Context, j *job.Job, w *archive.Writer, log *slog.Logger) error {
	if c.Fetch == nil {
		log.Warn("fetcher not configured, skipping", "namespace", c.Name())
		return nil
	}

	seen, err := w.Keys(c.Name())
	if err != nil {
		return err
	}

	for _, target := range j.URLs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if seen[target] {
			// The download side effect is independent of record dedup, so an
			// update run can still backfill a PDF that was never fetched.
			if isPDF(target) {
				c.backfillPDF(ctx, j, target, log)
			}
			log.Debug("skipping archived url", "url", target)
			continue
		}

		record, err := c.extractOne(ctx, j, target, log)
		if err != nil {
			log.Error("url extraction failed", "url", target, "error", err)
			continue
		}

		key, err := w.Append(c.Name(), record)
		if err != nil {
			log.Error("failed to archive page", "url", target, "error", err)
			continue
		}
		if key != "" {
			seen[key] = true
		}
		pause(ctx, c.Delay)
	}
	return nil
}

func (c *WebExtract) extractOne(ctx context.Context, j *job.Job, target string, log *slog.Logger) (map[string]any, error) {
	if isPDF(target) {
		return c.pdfRecord(ctx, j, target, log)
	}

	result, err := c.Fetch(ctx, target, nil)
	if err != nil {
		return nil, err
	}

	text, err := fetch.ExtractMainText(result.HTML, fetch.ArticleSelectors())
	if err != nil {
		return nil, err
	}

	if fetch.ShouldUseBrowser(text) && c.Render != nil {
		log.Info("content too short, rendering in browser", "url", target)
		html, renderErr := c.Render(ctx, target, c.BrowserTimeout, log)
		if renderErr != nil {
			log.Warn("browser rendering failed, keeping plain fetch", "url", target, "error", renderErr)
		} else if rendered, extractErr := fetch.ExtractMainText(html, fetch.ArticleSelectors()); extractErr == nil && len(rendered) > len(text) {
			result.HTML = html
			text = rendered
		}
	}

	record := map[string]any{
		"url":        target,
		"title":      fetch.ExtractTitle(result.HTML),
		"text":       text,
		"fetched_at": time.Now().UTC().Format(time.RFC3339),
	}
	if c.Evidence != nil && text != "" {
		if evidence, err := c.Evidence(ctx, text); err != nil {
			log.Warn("evidence extraction failed", "url", target, "error", err)
		} else {
			record["evidence"] = evidence
		}
	}
	return record, nil
}

// pdfRecord downloads a direct PDF link instead of extracting HTML. The
// record points at the local copy; skipped when downloads are off.
func (c *WebExtract) pdfRecord(ctx context.Context, j *job.Job, target string, log *slog.Logger) (map[string]any, error) {
	record := map[string]any{
		"url":        target,
		"format":     "pdf",
		"fetched_at": time.Now().UTC().Format(time.RFC3339),
	}
	if !j.DownloadPDF || c.Download == nil {
		return record, nil
	}

	dest := filepath.Join(j.DownloadDir(), c.Name(), pdfFileName(target))
	if err := c.Download(ctx, target, dest); err != nil {
		return nil, fmt.Errorf("download pdf: %w", err)
	}
	log.Info("downloaded pdf", "url", target, "dest", dest)
	record["local_path"] = dest
	return record, nil
}

// backfillPDF downloads an already-archived PDF URL whose local copy is
// missing. Nothing to do when downloads are off or the file exists.
func (c *WebExtract) backfillPDF(ctx context.Context, j *job.Job, target string, log *slog.Logger) {
	if !j.DownloadPDF || c.Download == nil {
		return
	}
	dest := filepath.Join(j.DownloadDir(), c.Name(), pdfFileName(target))
	if _, err := os.Stat(dest); err == nil {
		return
	}
	if err := c.Download(ctx, target, dest); err != nil {
		log.Warn("pdf backfill failed", "url", target, "error", err)
		return
	}
	log.Info("downloaded pdf", "url", target, "dest", dest)
}

func isPDF(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}

func pdfFileName(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return "document.pdf"
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return "document.pdf"
	}
	return name
}
