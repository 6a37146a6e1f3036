package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/forgeport/forgeport/internal/config"
	"github.com/forgeport/forgeport/internal/github"
	"github.com/forgeport/forgeport/internal/gitlab"
	"github.com/forgeport/forgeport/internal/output"
	"github.com/forgeport/forgeport/internal/store"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

type contextKey string

const cfgKey contextKey = "cfg"

// CmdError wraps an error with a machine-readable error code for structured output.
type CmdError struct {
	Err  error
	Code output.ErrorCode
}

func (e *CmdError) Error() string { return e.Err.Error() }

func cmdErr(err error, code output.ErrorCode) *CmdError {
	return &CmdError{Err: err, Code: code}
}

var rootCmd = &cobra.Command{
	Use:     "forgeport",
	Short:   "Transfer GitLab project metadata to GitHub",
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return cmdErr(err, output.ErrValidation)
		}
		applyFlags(cmd, cfg)

		cmd.SetContext(context.WithValue(cmd.Context(), cfgKey, cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default forgeport.toml)")
	rootCmd.PersistentFlags().String("gitlab-url", "", "GitLab instance URL")
	rootCmd.PersistentFlags().String("gitlab-token", "", "GitLab private token")
	rootCmd.PersistentFlags().String("github-token", "", "GitHub token")
	rootCmd.PersistentFlags().String("project", "", "GitLab project path (group/project)")
	rootCmd.PersistentFlags().String("repo", "", "GitHub repository (owner/name)")
	rootCmd.PersistentFlags().String("export-dir", "", "Directory for snapshot and summary files")
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

// applyFlags layers explicitly set flags over the loaded configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	set := func(name string, dst *string) {
		if cmd.Flags().Changed(name) {
			*dst, _ = cmd.Flags().GetString(name)
		}
	}
	set("gitlab-url", &cfg.GitLab.URL)
	set("gitlab-token", &cfg.GitLab.Token)
	set("github-token", &cfg.GitHub.Token)
	set("project", &cfg.GitLab.Project)
	set("repo", &cfg.GitHub.Repo)
	set("export-dir", &cfg.Transfer.ExportDir)
}

func getWriter(cmd *cobra.Command) *output.Writer {
	jsonMode, _ := cmd.Flags().GetBool("json")
	quietMode, _ := cmd.Flags().GetBool("quiet")
	return output.New(jsonMode, quietMode)
}

func getCfg(cmd *cobra.Command) *config.Config {
	cfg, _ := cmd.Context().Value(cfgKey).(*config.Config)
	return cfg
}

// withAudit attaches the JSONL audit log in the export directory to the
// writer. The directory is created if needed; an unwritable audit log is not
// fatal.
func withAudit(w *output.Writer, dir string) *output.Writer {
	if err := store.EnsureDir(dir); err != nil {
		w.Warn("%v", err)
		return w
	}
	f, err := os.OpenFile(filepath.Join(dir, store.AuditFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		w.Warn("could not open audit log: %v", err)
		return w
	}
	return w.WithAudit(f)
}

func newSourceClient(cfg *config.Config) *gitlab.Client {
	return gitlab.New(cfg.GitLab.URL, cfg.GitLab.Token, cfg.Timeout())
}

func newDestClient(cfg *config.Config) *github.Client {
	return github.New(cfg.GitHub.APIURL, cfg.GitHub.Token, cfg.GitHub.Repo, cfg.Timeout())
}

// Execute runs the root command and returns an exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		jsonMode, _ := rootCmd.PersistentFlags().GetBool("json")
		quietMode, _ := rootCmd.PersistentFlags().GetBool("quiet")
		w := output.New(jsonMode, quietMode)

		var ce *CmdError
		if errors.As(err, &ce) {
			return w.Error(ce.Err, ce.Code)
		}
		return w.Error(err, output.ErrGeneral)
	}
	return 0
}
