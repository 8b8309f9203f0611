package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/shitsumon/internal/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "./data/assistant.db"
llm:
  provider: genai
  model: gemini-2.0-flash
  timeout: 45s
chunking:
  strategy: sentence
  max_size: 400
  overlap: 40
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "data", "assistant.db"), cfg.Storage.DatabasePath)
	assert.Equal(t, "genai", cfg.LLM.Provider)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "sentence", cfg.Chunking.Strategy)
	assert.False(t, cfg.Debug)
}

func TestLoad_rejectsOverlapNotSmallerThanMaxSize(t *testing.T) {
	path := writeConfig(t, `
chunking:
  max_size: 100
  overlap: 100
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidConfiguration)
}

func TestLoad_rejectsUnknownProvider(t *testing.T) {
	path := writeConfig(t, `
embedding:
  provider: word2vec
`)
	_, err := Load(path)
	assert.ErrorIs(t, err, models.ErrInvalidConfiguration)
}

func TestLoad_envOverridesAPIKey(t *testing.T) {
	t.Setenv(EnvLLMAPIKey, "from-env")
	path := writeConfig(t, `
llm:
  api_key: from-file
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: "./db/a.db"
watch:
  directories: ["./inbox"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	dir := filepath.Dir(path)
	assert.Equal(t, filepath.Join(dir, "db", "a.db"), cfg.Storage.DatabasePath)
	require.Len(t, cfg.Watch.Directories, 1)
	assert.Equal(t, filepath.Join(dir, "inbox"), cfg.Watch.Directories[0])
	assert.True(t, cfg.Watch.RecursiveOrDefault())
}

func TestLoad_missingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestApplyDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "paragraph", cfg.Chunking.Strategy)
	assert.Equal(t, 1000, cfg.Chunking.MaxSize)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, models.ReplaceModeReplace, cfg.Lexicon.ReplaceMode)
	assert.Equal(t, []string{".pdf", ".docx", ".doc", ".xlsx", ".xls", ".txt", ".md"}, cfg.Watch.Extensions)
	assert.NoError(t, cfg.Validate())
}

func TestOn(t *testing.T) {
	f := false
	assert.True(t, On(nil))
	assert.False(t, On(&f))
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Watch.Directories = []string{"/tmp/inbox"}
	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Chunking, loaded.Chunking)
	assert.Equal(t, []string{"/tmp/inbox"}, loaded.Watch.Directories)
}
