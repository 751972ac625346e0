package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evidencer/internal/config"
	"evidencer/internal/job"
)

func TestParseRunDate(t *testing.T) {
	date, err := parseRunDate("2026-08-23")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC), date)

	date, err = parseRunDate("")
	require.NoError(t, err)
	assert.True(t, date.IsZero())

	_, err = parseRunDate("23/08/2026")
	assert.Error(t, err)
}

func TestBuildProviders_Toggles(t *testing.T) {
	collectNoVideo = true
	collectNoLocal = true
	t.Cleanup(func() {
		collectNoVideo = false
		collectNoLocal = false
	})

	providers := buildProviders(7)
	assert.True(t, providers.Enabled(job.NamespaceWebSearch))
	assert.True(t, providers.Enabled(job.NamespaceWebExtract))
	assert.True(t, providers.Enabled(job.NamespaceAcademic))
	assert.True(t, providers.Enabled(job.NamespacePreprint))
	assert.False(t, providers.Enabled(job.NamespaceVideo))
	assert.False(t, providers.Enabled(job.NamespaceLocalDocs))
	assert.Equal(t, 7, providers.Academic.Limit)
}

func TestBuildCollectors_NoCredentials(t *testing.T) {
	set, err := buildCollectors(context.Background(), config.Credentials{}, nil, nil)
	require.NoError(t, err)
	require.Len(t, set, 6)

	names := make([]string, len(set))
	for i, c := range set {
		names[i] = c.Name()
	}
	assert.Equal(t, []string{
		job.NamespaceWebSearch,
		job.NamespaceWebExtract,
		job.NamespaceAcademic,
		job.NamespacePreprint,
		job.NamespaceVideo,
		job.NamespaceLocalDocs,
	}, names)
}
