// Package config holds gramhound's configuration: the data workspace
// layout, registry endpoint, grammar selection and worker-pool sizing.
// Values come from defaults, an optional YAML file, then environment
// overrides, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all gramhound configuration.
type Config struct {
	// DataDir is the workspace root: metadata JSON lands directly in it,
	// archives and extracted corpora under its pypi/ subdirectory.
	DataDir string `yaml:"data_dir"`

	// CorpusList names the priority-ordered input file inside DataDir,
	// without the .json suffix.
	CorpusList string `yaml:"corpus_list"`

	// RegistryBaseURL points at the package registry.
	RegistryBaseURL string `yaml:"registry_base_url"`

	// HTTPTimeout bounds each registry request, as a duration string
	// ("60s", "2m"). Empty disables the limit.
	HTTPTimeout string `yaml:"http_timeout"`

	// Workers sizes the pipeline worker pool.
	Workers int `yaml:"workers"`

	// Grammar selects the verifier grammar.
	Grammar string `yaml:"grammar"`

	// ExcludeFile optionally names a YAML file overriding the built-in
	// verification exclusion globs.
	ExcludeFile string `yaml:"exclude_file"`
}

// Default returns the configuration matching the standard data layout.
func Default() *Config {
	return &Config{
		DataDir:         "data",
		CorpusList:      "top-pypi-packages-365-days",
		RegistryBaseURL: "https://pypi.org",
		HTTPTimeout:     "60s",
		Workers:         1,
		Grammar:         "python",
	}
}

// Load builds the config from defaults, the YAML file at path (skipped
// when missing), and environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets GRAMHOUND_* environment variables win over file
// values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GRAMHOUND_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("GRAMHOUND_REGISTRY_URL"); v != "" {
		c.RegistryBaseURL = v
	}
	if v := os.Getenv("GRAMHOUND_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
	if v := os.Getenv("GRAMHOUND_GRAMMAR"); v != "" {
		c.Grammar = v
	}
	if v := os.Getenv("GRAMHOUND_HTTP_TIMEOUT"); v != "" {
		c.HTTPTimeout = v
	}
}

// Timeout parses HTTPTimeout; validate has already guaranteed it parses.
func (c *Config) Timeout() time.Duration {
	if c.HTTPTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.HTTPTimeout)
	if err != nil {
		return 0
	}
	return d
}

func (c *Config) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Grammar == "" {
		return fmt.Errorf("grammar must not be empty")
	}
	if c.HTTPTimeout != "" {
		if _, err := time.ParseDuration(c.HTTPTimeout); err != nil {
			return fmt.Errorf("invalid http_timeout %q: %w", c.HTTPTimeout, err)
		}
	}
	return nil
}

// CorpusListPath returns the full path of the input corpus list.
func (c *Config) CorpusListPath() string {
	return filepath.Join(c.DataDir, c.CorpusList+".json")
}

// WorkspaceDir returns the shared archive and extraction workspace.
func (c *Config) WorkspaceDir() string {
	return filepath.Join(c.DataDir, "pypi")
}
