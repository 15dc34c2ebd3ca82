package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://pixabay.com/api/", cfg.Pixabay.BaseURL)
	assert.Equal(t, "photo", cfg.Pixabay.ImageType)
	assert.Equal(t, 200, cfg.Pixabay.PerPage)
	assert.Equal(t, 30*time.Second, cfg.Pixabay.Timeout)
	assert.Empty(t, cfg.Pixabay.APIKey)

	assert.Equal(t, "images.csv", cfg.Output.Path)
	assert.Equal(t, []string{"tags", "views", "downloads", "likes", "user", "comments"}, cfg.Output.Fields)

	require.Len(t, cfg.Queries, 7)
	assert.Equal(t, QueryJob{Query: "yellow flowers", Target: 4000}, cfg.Queries[0])
	assert.Equal(t, QueryJob{Query: "money", Target: 4000}, cfg.Queries[6])

	assert.True(t, cfg.Scrape.VerifyOutput)
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerMinute)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PIXSCRAPE_API_KEY", "env-key")
	t.Setenv("PIXSCRAPE_IMAGE_TYPE", "vector")
	t.Setenv("PIXSCRAPE_PER_PAGE", "50")
	t.Setenv("PIXSCRAPE_TIMEOUT", "5s")
	t.Setenv("PIXSCRAPE_VERIFY_OUTPUT", "false")
	t.Setenv("PIXSCRAPE_OUTPUT", "/tmp/out.csv")
	t.Setenv("PIXSCRAPE_FIELDS", "tags, likes ,user")
	t.Setenv("PIXSCRAPE_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "env-key", cfg.Pixabay.APIKey)
	assert.Equal(t, "vector", cfg.Pixabay.ImageType)
	assert.Equal(t, 50, cfg.Pixabay.PerPage)
	assert.Equal(t, 5*time.Second, cfg.Pixabay.Timeout)
	assert.False(t, cfg.Scrape.VerifyOutput)
	assert.Equal(t, "/tmp/out.csv", cfg.Output.Path)
	assert.Equal(t, []string{"tags", "likes", "user"}, cfg.Output.Fields)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvRejectsBadNumbers(t *testing.T) {
	t.Setenv("PIXSCRAPE_PER_PAGE", "lots")
	t.Setenv("PIXSCRAPE_VERIFY_OUTPUT", "maybe")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PIXSCRAPE_PER_PAGE")
	assert.Contains(t, err.Error(), "PIXSCRAPE_VERIFY_OUTPUT")
	assert.Equal(t, 200, cfg.Pixabay.PerPage)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pixscrape.yaml")
	content := `
pixabay:
  api_key: file-key
  per_page: 100
  timeout: 10s
queries:
  - query: cat
    target: 250
  - query: dog
    target: 10
output:
  path: out/cats.csv
  fields: [tags, views]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "file-key", cfg.Pixabay.APIKey)
	assert.Equal(t, 100, cfg.Pixabay.PerPage)
	assert.Equal(t, 10*time.Second, cfg.Pixabay.Timeout)
	// Untouched keys keep their defaults
	assert.Equal(t, "photo", cfg.Pixabay.ImageType)

	assert.Equal(t, []QueryJob{{Query: "cat", Target: 250}, {Query: "dog", Target: 10}}, cfg.Queries)
	assert.Equal(t, "out/cats.csv", cfg.Output.Path)
	assert.Equal(t, []string{"tags", "views"}, cfg.Output.Fields)
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("queries: [unclosed"), 0644))
	assert.Error(t, cfg.LoadFromFile(bad))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"empty base url", func(c *Config) { c.Pixabay.BaseURL = "" }, "base URL is required"},
		{"base url without host", func(c *Config) { c.Pixabay.BaseURL = "/api/" }, "host"},
		{"bad image type", func(c *Config) { c.Pixabay.ImageType = "gif" }, "image type"},
		{"per page too large", func(c *Config) { c.Pixabay.PerPage = 201 }, "per page"},
		{"per page too small", func(c *Config) { c.Pixabay.PerPage = 2 }, "per page"},
		{"zero timeout", func(c *Config) { c.Pixabay.Timeout = 0 }, "timeout"},
		{"negative rpm", func(c *Config) { c.RateLimit.RequestsPerMinute = -1 }, "requests per minute"},
		{"empty output", func(c *Config) { c.Output.Path = "" }, "output path"},
		{"no fields", func(c *Config) { c.Output.Fields = nil }, "at least one"},
		{"duplicate fields", func(c *Config) { c.Output.Fields = []string{"tags", "tags"} }, "duplicate"},
		{"blank field", func(c *Config) { c.Output.Fields = []string{"tags", ""} }, "empty"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "log level"},
		{"missing api key is allowed", func(c *Config) { c.Pixabay.APIKey = "" }, ""},
		{"zero target is allowed", func(c *Config) { c.Queries = []QueryJob{{Query: "cat", Target: 0}} }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pixabay.PerPage = 0
	cfg.Output.Path = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "per page")
	assert.Contains(t, err.Error(), "output path")
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"api-key":       "flag-key",
		"per-page":      20,
		"queries":       []QueryJob{{Query: "lion", Target: 5}},
		"verify-output": false,
		"output":        "lions.csv",
		"fields":        []string{"user"},
		"log-level":     "warn",
		// zero values are ignored
		"image-type": "",
	})

	assert.Equal(t, "flag-key", cfg.Pixabay.APIKey)
	assert.Equal(t, 20, cfg.Pixabay.PerPage)
	assert.Equal(t, "photo", cfg.Pixabay.ImageType)
	assert.Equal(t, []QueryJob{{Query: "lion", Target: 5}}, cfg.Queries)
	assert.False(t, cfg.Scrape.VerifyOutput)
	assert.Equal(t, "lions.csv", cfg.Output.Path)
	assert.Equal(t, []string{"user"}, cfg.Output.Fields)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestParseQueryJob(t *testing.T) {
	job, err := ParseQueryJob("yellow flowers=4000")
	require.NoError(t, err)
	assert.Equal(t, QueryJob{Query: "yellow flowers", Target: 4000}, job)

	job, err = ParseQueryJob("a=b=7")
	require.NoError(t, err)
	assert.Equal(t, QueryJob{Query: "a=b", Target: 7}, job)

	_, err = ParseQueryJob("cat")
	assert.Error(t, err)

	_, err = ParseQueryJob("cat=many")
	assert.Error(t, err)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pixabay:\n  api_key: file-key\n  per_page: 100\noutput:\n  path: file.csv\n"), 0644))

	t.Setenv("PIXSCRAPE_API_KEY", "env-key")
	t.Setenv("PIXSCRAPE_OUTPUT", "")

	cfg, err := Load(path, map[string]interface{}{"output": "flag.csv"})
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Pixabay.APIKey)
	assert.Equal(t, 100, cfg.Pixabay.PerPage)
	assert.Equal(t, "flag.csv", cfg.Output.Path)
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pixabay:\n  per_page: 500\n"), 0644))

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestSaveOmitsAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pixabay.APIKey = "secret"
	path := filepath.Join(t.TempDir(), "nested", "cfg.yaml")

	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.Equal(t, "secret", cfg.Pixabay.APIKey)

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, cfg.Queries, loaded.Queries)
	assert.Equal(t, cfg.Output, loaded.Output)
}
