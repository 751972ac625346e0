// Package collectors implements the per-provider evidence collectors. Each
// collector owns one archive namespace, consumes the slice of the job it
// understands, and is idempotent across update-mode re-runs.
package collectors

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"evidencer/internal/archive"
	"evidencer/internal/job"
)

// Collector is one provider-backed evidence source. Name returns the archive
// namespace the collector owns. Run must tolerate partial failure: an error
// on one item is logged and skipped, never aborting the remaining items.
type Collector interface {
	Name() string
	Run(ctx context.Context, j *job.Job, w *archive.Writer, log *slog.Logger) error
}

// RunAll executes the collectors for a job. Disabled providers are skipped.
// On fresh (non-update) runs, each enabled namespace is reset first. A failed
// collector is logged and the rest still run; only context cancellation stops
// the sweep.
func RunAll(ctx context.Context, j *job.Job, w *archive.Writer, log *slog.Logger, parallel bool, collectors ...Collector) error {
	var runnable []Collector
	for _, c := range collectors {
		if !j.Providers.Enabled(c.Name()) {
			log.Debug("provider disabled, skipping", "namespace", c.Name())
			continue
		}
		if !j.UpdateMode {
			if err := w.Reset(c.Name()); err != nil {
				log.Error("failed to reset namespace", "namespace", c.Name(), "error", err)
				continue
			}
		}
		runnable = append(runnable, c)
	}

	if parallel {
		// Namespaces are disjoint so collectors may run concurrently; the
		// writer serializes the actual appends.
		g, gctx := errgroup.WithContext(ctx)
		for _, c := range runnable {
			g.Go(func() error {
				runOne(gctx, c, j, w, log)
				return gctx.Err()
			})
		}
		return g.Wait()
	}

	for _, c := range runnable {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		runOne(ctx, c, j, w, log)
	}
	return nil
}

func runOne(ctx context.Context, c Collector, j *job.Job, w *archive.Writer, log *slog.Logger) {
	log.Info("collector starting", "namespace", c.Name())
	start := time.Now()
	if err := c.Run(ctx, j, w, log); err != nil {
		log.Error("collector failed", "namespace", c.Name(), "error", err)
		return
	}
	log.Info("collector finished",
		"namespace", c.Name(),
		"records", w.Count(c.Name()),
		"elapsed", time.Since(start).Round(time.Millisecond))
}

// pause sleeps for the politeness delay between provider requests, waking
// early on cancellation.
func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
