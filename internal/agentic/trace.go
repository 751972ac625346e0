package agentic

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	traceFile    = "agentic_trace.jsonl"
	traceSummary = "agentic_trace.md"
)

// Trace stages.
const (
	StageBootstrap = "bootstrap"
	StagePlan      = "plan"
	StageExecute   = "execute"
	StageReview    = "review"
)

// ActionResult is one executed action's outcome.
type ActionResult struct {
	Action     Action `json:"action"`
	NewRecords int    `json:"new_records"`
	Error      string `json:"error,omitempty"`
}

// TraceEntry is one loop event. Entries append to agentic_trace.jsonl as they
// happen so a crashed run still leaves its history behind.
type TraceEntry struct {
	Iteration int            `json:"iteration"`
	Stage     string         `json:"stage"`
	Time      time.Time      `json:"time"`
	Source    string         `json:"source,omitempty"` // "llm" or "heuristic"
	Done      bool           `json:"done,omitempty"`   // planner's stop decision
	Reason    string         `json:"reason,omitempty"`
	Metrics   string         `json:"metrics,omitempty"`
	Actions   []Action       `json:"actions,omitempty"`
	Results   []ActionResult `json:"results,omitempty"`
	Executed  int            `json:"executed,omitempty"`
	Deltas    map[string]int `json:"deltas,omitempty"` // records added per namespace
}

// Trace records the loop's decisions into the archive directory.
type Trace struct {
	dir     string
	entries []TraceEntry
}

// NewTrace returns a trace writing under archiveDir.
func NewTrace(archiveDir string) *Trace {
	return &Trace{dir: archiveDir}
}

// Add stamps and appends one entry.
func (t *Trace) Add(entry TraceEntry) error {
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	t.entries = append(t.entries, entry)

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("agentic: marshal trace entry: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(t.dir, traceFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("agentic: open trace: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("agentic: append trace: %w", err)
	}
	return nil
}

// Entries returns the entries recorded so far.
func (t *Trace) Entries() []TraceEntry {
	return t.entries
}

// Tail formats the last n entries as one-line summaries for the planner
// prompt.
func (t *Trace) Tail(n int) []string {
	start := len(t.entries) - n
	if start < 0 {
		start = 0
	}
	out := make([]string, 0, len(t.entries)-start)
	for _, entry := range t.entries[start:] {
		out = append(out, formatEntry(entry))
	}
	return out
}

func formatEntry(e TraceEntry) string {
	switch e.Stage {
	case StageBootstrap:
		return fmt.Sprintf("bootstrap: %s", e.Metrics)
	case StagePlan:
		parts := make([]string, 0, len(e.Actions))
		for _, action := range e.Actions {
			parts = append(parts, describeAction(action))
		}
		return fmt.Sprintf("iteration %d plan (%s, done=%t): %s", e.Iteration, e.Source, e.Done, strings.Join(parts, "; "))
	case StageExecute:
		parts := make([]string, 0, len(e.Results))
		for _, result := range e.Results {
			if result.Error != "" {
				parts = append(parts, describeAction(result.Action)+" failed")
			} else {
				parts = append(parts, fmt.Sprintf("%s -> %d new", describeAction(result.Action), result.NewRecords))
			}
		}
		return fmt.Sprintf("iteration %d executed %d: %s", e.Iteration, e.Executed, strings.Join(parts, "; "))
	case StageReview:
		return fmt.Sprintf("iteration %d review: %s (%s)", e.Iteration, e.Reason, e.Metrics)
	}
	return e.Stage
}

// WriteSummary renders the human-readable companion markdown. Like the run
// manifest it is a full rewrite each time.
func (t *Trace) WriteSummary() error {
	var sb strings.Builder
	sb.WriteString("# Agentic trace\n\n")

	for _, entry := range t.entries {
		switch entry.Stage {
		case StageBootstrap:
			fmt.Fprintf(&sb, "## Bootstrap\n\n- Coverage: %s\n\n", entry.Metrics)
		case StagePlan:
			fmt.Fprintf(&sb, "## Iteration %d\n\n", entry.Iteration)
			fmt.Fprintf(&sb, "**Plan** (%s): %s\n\n", entry.Source, entry.Reason)
			for _, action := range entry.Actions {
				sb.WriteString("- " + describeAction(action) + "\n")
			}
			sb.WriteString("\n")
		case StageExecute:
			for _, result := range entry.Results {
				if result.Error != "" {
					fmt.Fprintf(&sb, "- %s failed: %s\n", describeAction(result.Action), result.Error)
				} else {
					fmt.Fprintf(&sb, "- %s added %d records\n", describeAction(result.Action), result.NewRecords)
				}
			}
			sb.WriteString("\n")
		case StageReview:
			fmt.Fprintf(&sb, "**Review** (%d actions executed%s): %s (coverage: %s)\n\n",
				entry.Executed, formatDeltas(entry.Deltas), entry.Reason, entry.Metrics)
		}
	}

	path := filepath.Join(t.dir, traceSummary)
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("agentic: write trace summary: %w", err)
	}
	return nil
}

// formatDeltas renders per-namespace record gains as ", +ns:n" pairs in
// sorted order, empty when nothing changed.
func formatDeltas(deltas map[string]int) string {
	if len(deltas) == 0 {
		return ""
	}
	namespaces := make([]string, 0, len(deltas))
	for namespace := range deltas {
		namespaces = append(namespaces, namespace)
	}
	sort.Strings(namespaces)

	var sb strings.Builder
	for _, namespace := range namespaces {
		fmt.Fprintf(&sb, ", +%s:%d", namespace, deltas[namespace])
	}
	return sb.String()
}

func describeAction(a Action) string {
	switch a.Type {
	case ActionWebExtract:
		return fmt.Sprintf("%s %s", a.Type, a.URL)
	case ActionStop:
		return a.Type
	default:
		return fmt.Sprintf("%s %q", a.Type, a.Query)
	}
}
