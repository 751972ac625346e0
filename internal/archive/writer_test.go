package archive

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evidencer/internal/instruction"
	"evidencer/internal/job"
)

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	w, err := NewWriter(t.TempDir(), NewTestLog(io.Discard))
	require.NoError(t, err)
	return w
}

func TestAppendAndRecords(t *testing.T) {
	w := newTestWriter(t)

	key, err := w.Append(job.NamespaceVideo, map[string]any{"video_id": "abc123", "title": "A talk"})
	require.NoError(t, err)
	assert.Equal(t, "abc123", key)

	_, err = w.Append(job.NamespaceVideo, map[string]any{"video_id": "def456", "title": "Another"})
	require.NoError(t, err)

	records, err := w.Records(job.NamespaceVideo)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "abc123", records[0]["video_id"])
	assert.Equal(t, 2, w.Count(job.NamespaceVideo))
}

func TestRecords_MissingNamespaceIsEmpty(t *testing.T) {
	w := newTestWriter(t)
	records, err := w.Records(job.NamespaceAcademic)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 0, w.Count(job.NamespaceAcademic))
}

func TestKeys_LoadsCumulativeHistory(t *testing.T) {
	w := newTestWriter(t)

	_, err := w.Append(job.NamespacePreprint, map[string]any{"arxiv_id": "2401.01234v2"})
	require.NoError(t, err)
	_, err = w.Append(job.NamespacePreprint, map[string]any{"arxiv_id": "2402.55555"})
	require.NoError(t, err)

	keys, err := w.Keys(job.NamespacePreprint)
	require.NoError(t, err)
	assert.True(t, keys["2401.01234"], "version suffix must be stripped")
	assert.True(t, keys["2402.55555"])
	assert.Len(t, keys, 2)
}

func TestIdentityKey_FallbackChain(t *testing.T) {
	tests := []struct {
		name      string
		namespace string
		record    map[string]any
		want      string
	}{
		{"video primary", job.NamespaceVideo, map[string]any{"video_id": "v1"}, "v1"},
		{"academic short id", job.NamespaceAcademic, map[string]any{"work_id": "https://openalex.org/W99"}, "W99"},
		{"doi fallback", job.NamespaceAcademic, map[string]any{"doi": "https://doi.org/10.1000/XYZ"}, "10.1000/xyz"},
		{"title fallback", job.NamespaceVideo, map[string]any{"title": "Some  Great: Talk!"}, "some-great-talk"},
		{"url namespaces", job.NamespaceWebExtract, map[string]any{"url": "https://a.example/p"}, "https://a.example/p"},
		{"local content hash", job.NamespaceLocalDocs, map[string]any{"content_hash": "deadbeef"}, "deadbeef"},
		{"no candidates", job.NamespaceVideo, map[string]any{"duration": "PT5M"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, identityKey(tt.namespace, tt.record))
		})
	}
}

func TestAppend_KeylessRecordIsArchivedButExcludedFromKeys(t *testing.T) {
	w := newTestWriter(t)

	key, err := w.Append(job.NamespaceVideo, map[string]any{"duration": "PT5M"})
	require.NoError(t, err)
	assert.Empty(t, key)

	assert.Equal(t, 1, w.Count(job.NamespaceVideo))
	keys, err := w.Keys(job.NamespaceVideo)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMergeQueryCache_ExistingFirstNewAppendedDupesDropped(t *testing.T) {
	w := newTestWriter(t)

	require.NoError(t, w.MergeQueryCache(job.NamespaceWebSearch, []QueryCacheEntry{
		{Query: "alpha", Results: []map[string]any{{"url": "https://a"}}},
		{Query: "beta"},
	}))
	require.NoError(t, w.MergeQueryCache(job.NamespaceWebSearch, []QueryCacheEntry{
		{Query: "beta", Results: []map[string]any{{"url": "https://ignored"}}},
		{Query: "gamma"},
	}))

	entries, err := w.QueryCache(job.NamespaceWebSearch)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "alpha", entries[0].Query)
	assert.Equal(t, "beta", entries[1].Query)
	assert.Empty(t, entries[1].Results, "existing entry wins on duplicate key")
	assert.Equal(t, "gamma", entries[2].Query)
}

func TestReset_ClearsNamespaceOnly(t *testing.T) {
	w := newTestWriter(t)
	_, err := w.Append(job.NamespaceVideo, map[string]any{"video_id": "v1"})
	require.NoError(t, err)
	_, err = w.Append(job.NamespaceAcademic, map[string]any{"work_id": "W1"})
	require.NoError(t, err)

	require.NoError(t, w.Reset(job.NamespaceVideo))
	assert.Equal(t, 0, w.Count(job.NamespaceVideo))
	assert.Equal(t, 1, w.Count(job.NamespaceAcademic))
}

func testJob(t *testing.T, root string) *job.Job {
	t.Helper()
	j, err := job.New(job.Options{
		Date:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		RootDir: root,
		RunID:   "run-1",
		Providers: job.Providers{
			WebSearch: job.ProviderConfig{Enabled: true, Limit: 5},
			Academic:  job.ProviderConfig{Enabled: true, Limit: 5},
		},
	}, instruction.Parse("quantum computing"))
	require.NoError(t, err)
	return j
}

func TestWriteManifest_FullRewrite(t *testing.T) {
	root := t.TempDir()
	j := testJob(t, root)
	w, err := NewWriter(j.ArchiveDir, NewTestLog(io.Discard))
	require.NoError(t, err)

	_, err = w.Append(job.NamespaceAcademic, map[string]any{"work_id": "W1", "title": "First paper"})
	require.NoError(t, err)

	require.NoError(t, WriteManifest(j, w))
	path := filepath.Join(j.ArchiveDir, "run-1-index.md")
	first, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(first), "First paper")
	assert.Contains(t, string(first), "academic (1 records)")

	// Rewrite reflects new state completely.
	_, err = w.Append(job.NamespaceAcademic, map[string]any{"work_id": "W2", "title": "Second paper"})
	require.NoError(t, err)
	require.NoError(t, WriteManifest(j, w))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(second), "academic (2 records)")
	assert.Contains(t, string(second), "Second paper")
}

func TestSnapshotAndSortedNamespaces(t *testing.T) {
	root := t.TempDir()
	j := testJob(t, root)
	w, err := NewWriter(j.ArchiveDir, NewTestLog(io.Discard))
	require.NoError(t, err)

	_, err = w.Append(job.NamespaceAcademic, map[string]any{"work_id": "W1"})
	require.NoError(t, err)

	counts := Snapshot(j, w)
	assert.Equal(t, 1, counts[job.NamespaceAcademic])
	assert.Equal(t, 0, counts[job.NamespaceWebSearch])
	assert.NotContains(t, counts, job.NamespaceVideo, "disabled providers are not snapshotted")

	ordered := SortedNamespaces(counts)
	require.NotEmpty(t, ordered)
	assert.Equal(t, job.NamespaceAcademic, ordered[len(ordered)-1], "highest count sorts last")
}
