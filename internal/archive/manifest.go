package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"evidencer/internal/job"
)

// manifestNamespaces is the render order for provider sections.
var manifestNamespaces = []string{
	job.NamespaceWebSearch,
	job.NamespaceWebExtract,
	job.NamespaceAcademic,
	job.NamespacePreprint,
	job.NamespaceVideo,
	job.NamespaceLocalDocs,
}

// WriteManifest rebuilds the run manifest from the current job and archive
// state. It is always a full rewrite, never a patch, so it cannot go stale.
func WriteManifest(j *job.Job, w *Writer) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Run %s\n\n", j.RunID)
	fmt.Fprintf(&sb, "- Date: %s\n", j.Date.Format("2006-01-02"))
	fmt.Fprintf(&sb, "- Generated: %s\n", time.Now().UTC().Format(time.RFC3339))
	if j.InstructionPath != "" {
		fmt.Fprintf(&sb, "- Instruction: %s\n", j.InstructionPath)
	}
	fmt.Fprintf(&sb, "- Update mode: %t\n", j.UpdateMode)
	fmt.Fprintf(&sb, "- Queries: %d, URLs: %d, academic IDs: %d, local specs: %d\n\n",
		len(j.Queries), len(j.URLs), len(j.AcademicIDs), len(j.LocalSpecs))

	total := 0
	for _, namespace := range manifestNamespaces {
		records, err := w.Records(namespace)
		if err != nil {
			return fmt.Errorf("manifest: read %s: %w", namespace, err)
		}
		if !j.Providers.Enabled(namespace) && len(records) == 0 {
			continue
		}
		total += len(records)

		fmt.Fprintf(&sb, "## %s (%d records)\n\n", namespace, len(records))
		for _, record := range records {
			title := stringField(record, "title")
			if title == "" {
				title = stringField(record, "url")
			}
			if title == "" {
				title = "(untitled)"
			}
			if key := identityKey(namespace, record); key != "" {
				fmt.Fprintf(&sb, "- %s — `%s`\n", title, key)
			} else {
				fmt.Fprintf(&sb, "- %s\n", title)
			}
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Total records: %d\n", total)

	path := filepath.Join(w.Dir(), j.RunID+"-index.md")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("manifest: write %s: %w", path, err)
	}
	return nil
}

// Snapshot returns per-namespace record counts for the enabled providers,
// plus zero entries for enabled-but-empty namespaces so coverage gaps are
// visible to the planner.
func Snapshot(j *job.Job, w *Writer) map[string]int {
	counts := make(map[string]int, len(manifestNamespaces))
	for _, namespace := range manifestNamespaces {
		if j.Providers.Enabled(namespace) {
			counts[namespace] = w.Count(namespace)
		}
	}
	return counts
}

// SortedNamespaces returns the snapshot's namespaces ordered by ascending
// count, ties broken alphabetically, for deterministic heuristic proposals.
func SortedNamespaces(counts map[string]int) []string {
	namespaces := make([]string, 0, len(counts))
	for namespace := range counts {
		namespaces = append(namespaces, namespace)
	}
	sort.Slice(namespaces, func(i, k int) bool {
		if counts[namespaces[i]] != counts[namespaces[k]] {
			return counts[namespaces[i]] < counts[namespaces[k]]
		}
		return namespaces[i] < namespaces[k]
	})
	return namespaces
}
