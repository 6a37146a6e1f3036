package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/forgeport/forgeport/internal/identity"
	"github.com/forgeport/forgeport/internal/importer"
	"github.com/forgeport/forgeport/internal/model"
	"github.com/forgeport/forgeport/internal/output"
	"github.com/forgeport/forgeport/internal/render"
	"github.com/forgeport/forgeport/internal/retry"
	"github.com/forgeport/forgeport/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Replay a snapshot into a GitHub repository",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getCfg(cmd)
		if err := cfg.RequireDestination(); err != nil {
			return cmdErr(err, output.ErrValidation)
		}

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		yes, _ := cmd.Flags().GetBool("yes")

		dir := cfg.Transfer.ExportDir
		w := withAudit(getWriter(cmd), dir)
		ctx := cmd.Context()

		snap, err := store.ReadSnapshot(dir)
		if err != nil {
			return cmdErr(fmt.Errorf("no usable snapshot in %s, run export first: %w", dir, err), output.ErrNotFound)
		}
		if snap.Project.GitHubRepo != "" && snap.Project.GitHubRepo != cfg.GitHub.Repo {
			w.Warn("snapshot was exported for %s but importing into %s", snap.Project.GitHubRepo, cfg.GitHub.Repo)
		}

		applyMappings(w, dir, snap)

		if dryRun {
			var message string
			if !w.JSONMode {
				message = render.CountsTable(
					fmt.Sprintf("Would import into %s", cfg.GitHub.Repo), planRows(snap))
			}
			w.Success(importPlan(snap), message)
			return nil
		}

		dst := newDestClient(cfg)
		user, err := dst.Auth(ctx)
		if err != nil {
			return cmdErr(err, output.ErrAuth)
		}
		w.Info("authenticated with GitHub as %s", user.Login)

		if !yes && !w.JSONMode {
			ok, err := confirmImport(snap, cfg.GitHub.Repo)
			if err != nil {
				return cmdErr(err, output.ErrGeneral)
			}
			if !ok {
				w.Info("Cancelled.")
				return nil
			}
		}

		ledger, err := store.OpenLedger(dir)
		if err != nil {
			return cmdErr(err, output.ErrGeneral)
		}
		defer ledger.Close()

		inv := retry.New(dst, w)
		report, err := importer.New(dst, inv, ledger, w).Run(ctx, snap)
		if err != nil {
			return cmdErr(err, output.ErrGeneral)
		}

		if err := store.WriteImportSummary(dir, report); err != nil {
			return cmdErr(err, output.ErrGeneral)
		}

		w.Success(report, fmt.Sprintf(
			"Imported %d issues (%d skipped), %d labels, %d milestones, %d comments into %s\nSummary written to %s",
			report.Issues, report.SkippedIssues, report.Labels, report.Milestones, report.Comments,
			cfg.GitHub.Repo, filepath.Join(dir, store.ImportSummaryFile)))
		return nil
	},
}

// applyMappings merges the operator-edited user mapping file into the
// snapshot. A missing file just means nobody gets a destination mention.
func applyMappings(w *output.Writer, dir string, snap *model.Snapshot) {
	path := filepath.Join(dir, store.MappingFile)
	mappings, err := identity.LoadMappingFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			w.Warn("no user mapping file at %s, provenance footers will use GitLab attributions", path)
		} else {
			w.Warn("could not load user mappings: %v", err)
		}
		return
	}
	resolved := identity.Apply(snap, mappings)
	w.Info("applied user mappings: %d identities resolved to GitHub usernames", resolved)
}

type importPlanResult struct {
	Issues        int `json:"issues"`
	Comments      int `json:"comments"`
	Labels        int `json:"labels"`
	Milestones    int `json:"milestones"`
	MergeRequests int `json:"merge_requests_recorded"`
}

func importPlan(snap *model.Snapshot) *importPlanResult {
	plan := &importPlanResult{
		Issues:        len(snap.Issues),
		Labels:        len(snap.Labels),
		Milestones:    len(snap.Milestones),
		MergeRequests: len(snap.MergeRequests),
	}
	for _, issue := range snap.Issues {
		plan.Comments += len(issue.Comments)
	}
	return plan
}

func planRows(snap *model.Snapshot) []render.CountRow {
	plan := importPlan(snap)
	return []render.CountRow{
		{Category: "Labels", Count: plan.Labels},
		{Category: "Milestones", Count: plan.Milestones},
		{Category: "Issues", Count: plan.Issues},
		{Category: "Comments", Count: plan.Comments},
		{Category: "Merge requests", Count: plan.MergeRequests, Note: "recorded only, not created"},
	}
}

func confirmImport(snap *model.Snapshot, repo string) (bool, error) {
	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Import %d issues, %d labels, and %d milestones into %s?",
					len(snap.Issues), len(snap.Labels), len(snap.Milestones), repo)).
				Affirmative("Yes, import").
				Negative("Cancel").
				Value(&confirmed),
		),
	)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("interactive form failed: %w", err)
	}
	return confirmed, nil
}

func init() {
	importCmd.Flags().Bool("dry-run", false, "Show what would be imported without writing anything")
	importCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(importCmd)
}
