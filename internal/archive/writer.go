// Package archive persists provider records as append-only line-delimited
// JSON under per-provider subtrees of a run's archive directory, and derives
// the update-mode dedup sets from that history.
package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// recordsFile is the per-namespace line-delimited record log.
const recordsFile = "records.jsonl"

// queriesFile is the per-namespace search-query cache, the one file the
// writer is allowed to rewrite (merge-by-query-key, then atomic replace).
const queriesFile = "queries.jsonl"

// Writer is the single writer for one job's archive directory. Line appends
// are serialized with a mutex so collectors for disjoint namespaces may run
// in parallel.
type Writer struct {
	dir string
	log *slog.Logger
	mu  sync.Mutex
}

// NewWriter creates the archive directory if needed and returns a writer
// rooted there.
func NewWriter(archiveDir string, log *slog.Logger) (*Writer, error) {
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Writer{dir: archiveDir, log: log}, nil
}

// Dir returns the archive root directory.
func (w *Writer) Dir() string { return w.dir }

// Reset removes a namespace subtree. A fresh (non-update) run starts every
// enabled namespace empty.
func (w *Writer) Reset(namespace string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return os.RemoveAll(filepath.Join(w.dir, namespace))
}

// Append writes one record as a single JSON line under the namespace and
// returns the record's identity key ("" when no candidate field yields one).
func (w *Writer) Append(namespace string, record map[string]any) (string, error) {
	line, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal %s record: %w", namespace, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	nsDir := filepath.Join(w.dir, namespace)
	if err := os.MkdirAll(nsDir, 0o755); err != nil {
		return "", fmt.Errorf("create namespace dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(nsDir, recordsFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("open %s records: %w", namespace, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return "", fmt.Errorf("append %s record: %w", namespace, err)
	}

	key := identityKey(namespace, record)
	if key == "" && w.log != nil {
		// Visible gap: the record is archived but cannot dedup on re-runs.
		w.log.Warn("record has no usable identity key, excluded from dedup set",
			"namespace", namespace)
	}
	return key, nil
}

// Records reads every record in a namespace, oldest first. A missing file is
// an empty namespace, not an error.
func (w *Writer) Records(namespace string) ([]map[string]any, error) {
	return readLines(filepath.Join(w.dir, namespace, recordsFile))
}

// Count returns the number of records in a namespace.
func (w *Writer) Count(namespace string) int {
	records, err := w.Records(namespace)
	if err != nil {
		return 0
	}
	return len(records)
}

// Keys loads the identity keys already present in a namespace. Records with
// no usable key are skipped (they were logged as gaps when written).
func (w *Writer) Keys(namespace string) (map[string]bool, error) {
	records, err := w.Records(namespace)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]bool, len(records))
	for _, record := range records {
		if key := identityKey(namespace, record); key != "" {
			keys[key] = true
		}
	}
	return keys, nil
}

// QueryCacheEntry is one cached search-query result set.
type QueryCacheEntry struct {
	Query   string           `json:"query"`
	Results []map[string]any `json:"results"`
}

// MergeQueryCache merges new entries into a namespace's query cache, keyed by
// query text: existing entries keep their position, new queries append in
// order, duplicate keys keep the existing entry. The file is rewritten
// atomically via a temp file.
func (w *Writer) MergeQueryCache(namespace string, entries []QueryCacheEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	nsDir := filepath.Join(w.dir, namespace)
	if err := os.MkdirAll(nsDir, 0o755); err != nil {
		return fmt.Errorf("create namespace dir: %w", err)
	}
	path := filepath.Join(nsDir, queriesFile)

	existing, err := readQueryCache(path)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(existing))
	merged := make([]QueryCacheEntry, 0, len(existing)+len(entries))
	for _, entry := range existing {
		if !seen[entry.Query] {
			seen[entry.Query] = true
			merged = append(merged, entry)
		}
	}
	for _, entry := range entries {
		if !seen[entry.Query] {
			seen[entry.Query] = true
			merged = append(merged, entry)
		}
	}

	tmp, err := os.CreateTemp(nsDir, queriesFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp query cache: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	enc := json.NewEncoder(tmp)
	for _, entry := range merged {
		if err := enc.Encode(entry); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("write query cache: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp query cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace query cache: %w", err)
	}
	return nil
}

// QueryCache reads a namespace's cached query entries.
func (w *Writer) QueryCache(namespace string) ([]QueryCacheEntry, error) {
	return readQueryCache(filepath.Join(w.dir, namespace, queriesFile))
}

func readQueryCache(path string) ([]QueryCacheEntry, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open query cache: %w", err)
	}
	defer func() { _ = f.Close() }()

	var entries []QueryCacheEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var entry QueryCacheEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // damaged line, skip rather than abort
		}
		entries = append(entries, entry)
	}
	return entries, scanner.Err()
}

func readLines(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open records: %w", err)
	}
	defer func() { _ = f.Close() }()

	var records []map[string]any
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var record map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	return records, scanner.Err()
}
