// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// DefaultDir is the workspace-relative directory holding everything
// greenlight writes: workflows, runs, artifacts, secrets, history.
const DefaultDir = ".greenlight"

// Config is the master configuration for greenlight. Relative paths
// are resolved against the workspace root at use time, so a checked-in
// config file works for every clone location.
type Config struct {
	// Workflows configures workflow discovery.
	Workflows WorkflowsConfig `yaml:"workflows"`

	// Runner configures execution behavior.
	Runner RunnerConfig `yaml:"runner"`

	// Artifacts configures the content-addressed artifact store.
	Artifacts ArtifactsConfig `yaml:"artifacts"`

	// Secrets configures the encrypted secrets store.
	Secrets SecretsConfig `yaml:"secrets"`

	// Watch configures watch mode.
	Watch WatchConfig `yaml:"watch"`
}

// WorkflowsConfig configures workflow discovery.
type WorkflowsConfig struct {
	// Dir is the directory scanned for workflow files.
	// Default: .greenlight/workflows
	Dir string `yaml:"dir"`
}

// RunnerConfig configures execution behavior.
type RunnerConfig struct {
	// RunsDir is where per-run directories (logs, records, state) are
	// created. Default: .greenlight/runs
	RunsDir string `yaml:"runs_dir"`

	// HistoryDB is the SQLite run-history database path.
	// Default: .greenlight/history.db
	HistoryDB string `yaml:"history_db"`

	// DefaultTimeoutMinutes bounds steps that set no timeout of their
	// own and whose job sets none either. Default: 5
	DefaultTimeoutMinutes int `yaml:"default_timeout_minutes"`

	// DefaultShell interprets run steps that declare no shell.
	// Values: "sh", "bash". Default: sh
	DefaultShell string `yaml:"default_shell"`

	// MaxParallelJobs caps how many jobs execute concurrently across
	// the whole run. 0 means unbounded. Matrix-level parallelism is
	// capped separately by strategy.max-parallel. Default: 0
	MaxParallelJobs int `yaml:"max_parallel_jobs"`

	// PlatformMismatch decides what happens to a job whose runs-on
	// labels name a different platform family than the host.
	// Values: "skip" (job reports skipped), "fail". Default: skip
	PlatformMismatch string `yaml:"platform_mismatch"`

	// RemoteActions decides what happens to a uses step referencing a
	// remote action (owner/repo@ref). Greenlight never fetches.
	// Values: "skip" (step reports skipped), "fail". Default: skip
	RemoteActions string `yaml:"remote_actions"`
}

// ArtifactsConfig configures the content-addressed artifact store.
type ArtifactsConfig struct {
	// Dir is the blob store root. Default: .greenlight/artifacts
	Dir string `yaml:"dir"`

	// KeyFile optionally names a 32-byte master key file. When set,
	// blobs are encrypted at rest with per-blob derived keys. Empty
	// disables encryption. Default: empty
	KeyFile string `yaml:"key_file"`
}

// SecretsConfig configures the encrypted secrets store.
type SecretsConfig struct {
	// File is the age-encrypted secrets file.
	// Default: .greenlight/secrets.age
	File string `yaml:"file"`

	// IdentityFile holds the age identities that can open File.
	// Default: <user config dir>/greenlight/identity.txt
	IdentityFile string `yaml:"identity_file"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	// DebounceMS is the quiet window after a filesystem change before
	// a rerun starts. Bursts within the window coalesce. Default: 500
	DebounceMS int `yaml:"debounce_ms"`

	// Ignore lists extra path globs the watcher skips, in addition to
	// the built-in .greenlight, .git, and editor temp patterns.
	Ignore []string `yaml:"ignore"`
}

// Default returns the default configuration for local runs.
func Default() *Config {
	identity := "greenlight/identity.txt"
	if configDir, err := os.UserConfigDir(); err == nil {
		identity = filepath.Join(configDir, "greenlight", "identity.txt")
	}

	return &Config{
		Workflows: WorkflowsConfig{
			Dir: filepath.Join(DefaultDir, "workflows"),
		},
		Runner: RunnerConfig{
			RunsDir:               filepath.Join(DefaultDir, "runs"),
			HistoryDB:             filepath.Join(DefaultDir, "history.db"),
			DefaultTimeoutMinutes: 5,
			DefaultShell:          "sh",
			MaxParallelJobs:       0,
			PlatformMismatch:      "skip",
			RemoteActions:         "skip",
		},
		Artifacts: ArtifactsConfig{
			Dir: filepath.Join(DefaultDir, "artifacts"),
		},
		Secrets: SecretsConfig{
			File:         filepath.Join(DefaultDir, "secrets.age"),
			IdentityFile: identity,
		},
		Watch: WatchConfig{
			DebounceMS: 500,
		},
	}
}

// Load resolves configuration for the given workspace. An explicit
// GREENLIGHT_CONFIG path must exist; otherwise the workspace config
// file is used when present, and built-in defaults apply when not.
func Load(workspace string) (*Config, error) {
	if path := os.Getenv("GREENLIGHT_CONFIG"); path != "" {
		return LoadFile(path)
	}

	path := filepath.Join(workspace, DefaultDir, "config.yml")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := Default()
			cfg.expandVariables()
			return cfg, nil
		}
		return nil, fmt.Errorf("checking config %s: %w", path, err)
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, merging the
// file's values over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in the
// path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Workflows.Dir = expandVars(c.Workflows.Dir, vars)
	c.Runner.RunsDir = expandVars(c.Runner.RunsDir, vars)
	c.Runner.HistoryDB = expandVars(c.Runner.HistoryDB, vars)
	c.Artifacts.Dir = expandVars(c.Artifacts.Dir, vars)
	c.Artifacts.KeyFile = expandVars(c.Artifacts.KeyFile, vars)
	c.Secrets.File = expandVars(c.Secrets.File, vars)
	c.Secrets.IdentityFile = expandVars(c.Secrets.IdentityFile, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns. Provided
// vars win over the process environment; an unset variable expands to
// its default, or to the empty string without one.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Workflows.Dir == "" {
		errs = append(errs, fmt.Errorf("workflows.dir is required"))
	}
	if c.Runner.RunsDir == "" {
		errs = append(errs, fmt.Errorf("runner.runs_dir is required"))
	}
	if c.Runner.HistoryDB == "" {
		errs = append(errs, fmt.Errorf("runner.history_db is required"))
	}
	if c.Runner.DefaultTimeoutMinutes <= 0 {
		errs = append(errs, fmt.Errorf("runner.default_timeout_minutes must be positive"))
	}
	if c.Runner.DefaultShell != "sh" && c.Runner.DefaultShell != "bash" {
		errs = append(errs, fmt.Errorf("runner.default_shell must be \"sh\" or \"bash\", got %q", c.Runner.DefaultShell))
	}
	if c.Runner.MaxParallelJobs < 0 {
		errs = append(errs, fmt.Errorf("runner.max_parallel_jobs must not be negative"))
	}

	policyValues := []string{"skip", "fail"}
	if !contains(policyValues, c.Runner.PlatformMismatch) {
		errs = append(errs, fmt.Errorf("runner.platform_mismatch must be one of: %v", policyValues))
	}
	if !contains(policyValues, c.Runner.RemoteActions) {
		errs = append(errs, fmt.Errorf("runner.remote_actions must be one of: %v", policyValues))
	}

	if c.Artifacts.Dir == "" {
		errs = append(errs, fmt.Errorf("artifacts.dir is required"))
	}
	if c.Secrets.File == "" {
		errs = append(errs, fmt.Errorf("secrets.file is required"))
	}
	if c.Watch.DebounceMS < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce_ms must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}

// WorkflowsDir returns the workflow directory resolved against the
// workspace root.
func (c *Config) WorkflowsDir(workspace string) string {
	return resolvePath(workspace, c.Workflows.Dir)
}

// RunsDir returns the runs directory resolved against the workspace
// root.
func (c *Config) RunsDir(workspace string) string {
	return resolvePath(workspace, c.Runner.RunsDir)
}

// HistoryPath returns the history database path resolved against the
// workspace root.
func (c *Config) HistoryPath(workspace string) string {
	return resolvePath(workspace, c.Runner.HistoryDB)
}

// ArtifactsDir returns the artifact store root resolved against the
// workspace root.
func (c *Config) ArtifactsDir(workspace string) string {
	return resolvePath(workspace, c.Artifacts.Dir)
}

// ArtifactKeyPath returns the artifact master key file path resolved
// against the workspace root. Empty when encryption is not
// configured.
func (c *Config) ArtifactKeyPath(workspace string) string {
	return resolvePath(workspace, c.Artifacts.KeyFile)
}

// SecretsPath returns the secrets file path resolved against the
// workspace root.
func (c *Config) SecretsPath(workspace string) string {
	return resolvePath(workspace, c.Secrets.File)
}

// IdentityPath returns the age identity file path. A relative path is
// resolved against the workspace root.
func (c *Config) IdentityPath(workspace string) string {
	return resolvePath(workspace, c.Secrets.IdentityFile)
}

func resolvePath(workspace, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workspace, path)
}

// EnsurePaths creates the workspace directories greenlight writes to.
func (c *Config) EnsurePaths(workspace string) error {
	paths := []string{
		c.WorkflowsDir(workspace),
		c.RunsDir(workspace),
		c.ArtifactsDir(workspace),
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}
