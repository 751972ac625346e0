// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"evidencer/internal/job"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintJob outputs a human-readable summary of the prepared job.
func (p *Printer) PrintJob(j *job.Job) {
	if j == nil {
		return
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Run ID:   %s\n", j.RunID))
	sb.WriteString(fmt.Sprintf("Date:     %s\n", j.Date.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("Update:   %t\n", j.UpdateMode))
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("Queries (%d):\n", len(j.Queries)))
	for i, query := range j.Queries {
		if i >= maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(j.Queries)-maxItemsToShow))
			break
		}
		sb.WriteString(fmt.Sprintf("  - %s\n", query))
	}

	if len(j.URLs) > 0 {
		sb.WriteString(fmt.Sprintf("URLs (%d):\n", len(j.URLs)))
		for i, u := range j.URLs {
			if i >= maxItemsToShow {
				sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(j.URLs)-maxItemsToShow))
				break
			}
			sb.WriteString(fmt.Sprintf("  - %s\n", u))
		}
	}
	if len(j.AcademicIDs) > 0 {
		sb.WriteString(fmt.Sprintf("Academic IDs: %s\n", strings.Join(j.AcademicIDs, ", ")))
	}
	if len(j.LocalSpecs) > 0 {
		sb.WriteString(fmt.Sprintf("Local specs:  %d\n", len(j.LocalSpecs)))
	}
	if len(j.Hints) > 0 {
		sb.WriteString(fmt.Sprintf("Hints:        %s\n", strings.Join(j.Hints, ", ")))
	}

	p.printBox("JOB", strings.TrimRight(sb.String(), "\n"))
}

// PrintSnapshot outputs per-namespace record counts after a run.
func (p *Printer) PrintSnapshot(counts map[string]int) {
	if len(counts) == 0 {
		return
	}

	namespaces := make([]string, 0, len(counts))
	for namespace := range counts {
		namespaces = append(namespaces, namespace)
	}
	sort.Strings(namespaces)

	var sb strings.Builder
	total := 0
	for _, namespace := range namespaces {
		sb.WriteString(fmt.Sprintf("%-12s %d\n", namespace, counts[namespace]))
		total += counts[namespace]
	}
	sb.WriteString(fmt.Sprintf("%-12s %d", "total", total))

	p.printBox("ARCHIVE", sb.String())
}
