package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "https://pypi.org", cfg.RegistryBaseURL)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, "python", cfg.Grammar)
	assert.Equal(t, filepath.Join("data", "top-pypi-packages-365-days.json"), cfg.CorpusListPath())
	assert.Equal(t, filepath.Join("data", "pypi"), cfg.WorkspaceDir())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "data_dir: /srv/corpus\nworkers: 8\nhttp_timeout: 30s\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/corpus", cfg.DataDir)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 30*time.Second, cfg.Timeout())
	// Untouched fields keep their defaults.
	assert.Equal(t, "python", cfg.Grammar)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "data", cfg.DataDir)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("env wins over file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("workers: 2\n"), 0o644))
		t.Setenv("GRAMHOUND_WORKERS", "16")
		t.Setenv("GRAMHOUND_DATA_DIR", "/tmp/hound")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 16, cfg.Workers)
		assert.Equal(t, "/tmp/hound", cfg.DataDir)
	})

	t.Run("malformed env value ignored", func(t *testing.T) {
		t.Setenv("GRAMHOUND_WORKERS", "many")
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, 1, cfg.Workers)
	})
}

func TestValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 0\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("grammar: ''\n"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}
