package collectors

import (
	"context"
	"log/slog"

	"evidencer/internal/archive"
	"evidencer/internal/instruction"
	"evidencer/internal/job"
	"evidencer/internal/localdoc"
)

// LocalDocs archives text extracted from documents already on disk. It needs
// no network and no credentials; identity is the content hash, so renamed or
// copied files dedup cleanly.
type LocalDocs struct{}

// Name returns the archive namespace.
func (c *LocalDocs) Name() string { return job.NamespaceLocalDocs }

// Run expands each local spec and extracts every resolved file, logging and
// skipping the ones that fail.
func (c *LocalDocs) Run(ctx context.Context, j *job.Job, w *archive.Writer, log *slog.Logger) error {
	seen, err := w.Keys(c.Name())
	if err != nil {
		return err
	}

	for _, spec := range j.LocalSpecs {
		paths, err := localdoc.Resolve(spec)
		if err != nil {
			log.Error("failed to resolve local spec", "path", spec.Path, "error", err)
			continue
		}
		if len(paths) == 0 {
			log.Warn("local spec matched no files", "path", spec.Path, "kind", spec.Kind)
			continue
		}

		for _, path := range paths {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			doc, err := localdoc.Extract(path, spec)
			if err != nil {
				log.Error("local extraction failed", "path", path, "error", err)
				continue
			}
			if seen[doc.ContentHash] {
				log.Debug("skipping archived document", "path", path)
				continue
			}

			key, err := w.Append(c.Name(), docRecord(doc, spec))
			if err != nil {
				log.Error("failed to archive document", "path", path, "error", err)
				continue
			}
			if key != "" {
				seen[key] = true
			}
		}
	}
	return nil
}

func docRecord(doc *localdoc.Document, spec instruction.LocalSpec) map[string]any {
	record := map[string]any{
		"content_hash": doc.ContentHash,
		"path":         doc.Path,
		"title":        doc.Title,
		"text":         doc.Text,
		"format":       doc.Format,
	}
	if doc.Lang != "" {
		record["lang"] = doc.Lang
	}
	if len(spec.Tags) > 0 {
		record["tags"] = spec.Tags
	}
	return record
}
