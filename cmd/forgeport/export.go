package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/forgeport/forgeport/internal/extract"
	"github.com/forgeport/forgeport/internal/identity"
	"github.com/forgeport/forgeport/internal/output"
	"github.com/forgeport/forgeport/internal/store"
)

type exportResult struct {
	ExportDir     string `json:"export_dir"`
	Issues        int    `json:"issues"`
	MergeRequests int    `json:"merge_requests"`
	Labels        int    `json:"labels"`
	Milestones    int    `json:"milestones"`
	Users         int    `json:"users"`
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Extract GitLab project metadata into a snapshot directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getCfg(cmd)
		if err := cfg.RequireSource(); err != nil {
			return cmdErr(err, output.ErrValidation)
		}

		dir := cfg.Transfer.ExportDir
		w := withAudit(getWriter(cmd), dir)
		ctx := cmd.Context()

		src := newSourceClient(cfg)
		user, err := src.Auth(ctx)
		if err != nil {
			return cmdErr(err, output.ErrAuth)
		}
		w.Info("authenticated with GitLab as %s", user.Username)

		project, err := src.Project(ctx, cfg.GitLab.Project)
		if err != nil {
			return cmdErr(err, output.ErrNotFound)
		}

		resolver := identity.NewResolver(src, w)
		snap, err := extract.New(src, resolver, w).Run(ctx, project)
		if err != nil {
			return cmdErr(err, output.ErrGeneral)
		}
		snap.Project.GitHubRepo = cfg.GitHub.Repo

		if err := store.WriteSnapshot(dir, snap); err != nil {
			return cmdErr(err, output.ErrGeneral)
		}
		users := snap.Users()
		if err := identity.SaveMappingFile(filepath.Join(dir, store.MappingFile), users); err != nil {
			return cmdErr(err, output.ErrGeneral)
		}
		if err := store.WriteExportSummary(dir, snap); err != nil {
			return cmdErr(err, output.ErrGeneral)
		}

		result := &exportResult{
			ExportDir:     dir,
			Issues:        len(snap.Issues),
			MergeRequests: len(snap.MergeRequests),
			Labels:        len(snap.Labels),
			Milestones:    len(snap.Milestones),
			Users:         len(users),
		}
		w.Success(result, fmt.Sprintf(
			"Exported %d issues, %d merge requests, %d labels, %d milestones to %s\nEdit %s to map users before import",
			result.Issues, result.MergeRequests, result.Labels, result.Milestones, dir,
			filepath.Join(dir, store.MappingFile)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
