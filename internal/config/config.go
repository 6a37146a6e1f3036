// Package config resolves tool configuration from three layers: a TOML file,
// environment variables, and command-line flags. Later layers win; flags are
// applied by the command layer after Load.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// DefaultFile is the config file looked for in the working directory when no
// explicit path is given.
const DefaultFile = "forgeport.toml"

// Config holds resolved tool configuration.
type Config struct {
	GitLab   GitLabConfig   `toml:"gitlab"`
	GitHub   GitHubConfig   `toml:"github"`
	Transfer TransferConfig `toml:"transfer"`
}

// GitLabConfig is the source side.
type GitLabConfig struct {
	URL     string `toml:"url"`
	Token   string `toml:"token"`
	Project string `toml:"project"` // namespace path, e.g. "group/project"
}

// GitHubConfig is the destination side.
type GitHubConfig struct {
	APIURL string `toml:"api_url"`
	Token  string `toml:"token"`
	Repo   string `toml:"repo"` // owner/name
}

// TransferConfig tunes the run itself.
type TransferConfig struct {
	ExportDir      string `toml:"export_dir"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		GitLab: GitLabConfig{URL: "https://gitlab.com"},
		GitHub: GitHubConfig{APIURL: "https://api.github.com"},
		Transfer: TransferConfig{
			ExportDir:      "metadata_export",
			TimeoutSeconds: 30,
		},
	}
}

// Load resolves configuration from the file at path (or DefaultFile in the
// working directory when path is empty), then applies environment overrides.
// A missing default file is not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// No config file is fine; env and flags may carry everything.
	default:
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FORGEPORT_GITLAB_URL"); v != "" {
		cfg.GitLab.URL = v
	}
	if v := os.Getenv("GITLAB_TOKEN"); v != "" {
		cfg.GitLab.Token = v
	}
	if v := os.Getenv("FORGEPORT_PROJECT"); v != "" {
		cfg.GitLab.Project = v
	}
	if v := os.Getenv("FORGEPORT_GITHUB_API_URL"); v != "" {
		cfg.GitHub.APIURL = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		cfg.GitHub.Token = v
	}
	if v := os.Getenv("FORGEPORT_REPO"); v != "" {
		cfg.GitHub.Repo = v
	}
	if v := os.Getenv("FORGEPORT_EXPORT_DIR"); v != "" {
		cfg.Transfer.ExportDir = v
	}
}

// Timeout returns the per-request HTTP timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Transfer.TimeoutSeconds) * time.Second
}

// RequireSource validates that the source side is usable.
func (c *Config) RequireSource() error {
	if c.GitLab.Token == "" {
		return fmt.Errorf("gitlab token not set (flag --gitlab-token, env GITLAB_TOKEN, or config)")
	}
	if c.GitLab.Project == "" {
		return fmt.Errorf("gitlab project not set (flag --project, env FORGEPORT_PROJECT, or config)")
	}
	return nil
}

// RequireDestination validates that the destination side is usable.
func (c *Config) RequireDestination() error {
	if c.GitHub.Token == "" {
		return fmt.Errorf("github token not set (flag --github-token, env GITHUB_TOKEN, or config)")
	}
	if c.GitHub.Repo == "" {
		return fmt.Errorf("github repository not set (flag --repo, env FORGEPORT_REPO, or config)")
	}
	return nil
}
