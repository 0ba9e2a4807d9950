package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ighashtag/pkg/config"
)

func TestConfigInitWritesExample(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "ighashtag.yaml")

	require.Equal(t, 0, execute([]string{"config", "init", "--config", path}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, exampleConfig, string(data))

	// an existing file is never overwritten
	assert.Equal(t, 1, execute([]string{"config", "init", "--config", path}))
}

func TestConfigInitFromCurrent(t *testing.T) {
	isolate(t)
	t.Setenv(config.EnvAPIToken, "apify_api_secret_value")
	t.Setenv(config.EnvSessionID, "session-secret")
	t.Setenv("IGHASHTAG_RESULTS_LIMIT", "45")
	t.Setenv("IGHASHTAG_HASHTAGS", "biryani,#chai")
	path := filepath.Join(t.TempDir(), "nested", "ighashtag.yaml")

	require.Equal(t, 0, execute([]string{"config", "init", "--from-current", "--config", path}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "apify_api_secret_value")
	assert.NotContains(t, string(data), "session-secret")

	saved := config.DefaultConfig()
	require.NoError(t, saved.LoadFromFile(path))
	assert.Equal(t, 45, saved.Scrape.ResultsLimit)
	assert.Equal(t, []string{"biryani", "chai"}, saved.Scrape.Hashtags)
	assert.Empty(t, saved.Apify.Token)
	assert.Empty(t, saved.Apify.SessionID)
}
