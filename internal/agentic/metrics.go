package agentic

import (
	"fmt"
	"sort"
	"strings"

	"evidencer/internal/archive"
	"evidencer/internal/job"
)

// maxCandidates bounds how many unextracted URLs one planning round sees.
const maxCandidates = 10

// Metrics is the coverage snapshot the planner and heuristic reason over.
type Metrics struct {
	// Counts maps enabled namespaces to archived record counts.
	Counts map[string]int
	// CandidateURLs are web search hits not yet extracted, oldest first.
	CandidateURLs []string
}

// CollectMetrics builds a snapshot from the current archive state.
func CollectMetrics(j *job.Job, w *archive.Writer) (Metrics, error) {
	m := Metrics{Counts: archive.Snapshot(j, w)}

	if !j.Providers.Enabled(job.NamespaceWebExtract) {
		return m, nil
	}

	extracted, err := w.Keys(job.NamespaceWebExtract)
	if err != nil {
		return m, fmt.Errorf("agentic: load extracted keys: %w", err)
	}
	hits, err := w.Records(job.NamespaceWebSearch)
	if err != nil {
		return m, fmt.Errorf("agentic: load search hits: %w", err)
	}

	seen := make(map[string]bool)
	for _, hit := range hits {
		url, _ := hit["url"].(string)
		if url == "" || extracted[url] || seen[url] {
			continue
		}
		seen[url] = true
		m.CandidateURLs = append(m.CandidateURLs, url)
		if len(m.CandidateURLs) >= maxCandidates {
			break
		}
	}
	return m, nil
}

// Deltas returns per-namespace record gains relative to an earlier snapshot,
// omitting namespaces that did not grow.
func (m Metrics) Deltas(before Metrics) map[string]int {
	var out map[string]int
	for namespace, count := range m.Counts {
		if gained := count - before.Counts[namespace]; gained > 0 {
			if out == nil {
				out = make(map[string]int)
			}
			out[namespace] = gained
		}
	}
	return out
}

// Total returns the sum of all namespace counts.
func (m Metrics) Total() int {
	total := 0
	for _, count := range m.Counts {
		total += count
	}
	return total
}

// Format renders the counts as a stable "namespace=count" line for prompts
// and logs.
func (m Metrics) Format() string {
	namespaces := make([]string, 0, len(m.Counts))
	for namespace := range m.Counts {
		namespaces = append(namespaces, namespace)
	}
	sort.Strings(namespaces)

	parts := make([]string, len(namespaces))
	for i, namespace := range namespaces {
		parts[i] = fmt.Sprintf("%s=%d", namespace, m.Counts[namespace])
	}
	return strings.Join(parts, " ")
}
