package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/forgeport/forgeport/internal/extract"
	"github.com/forgeport/forgeport/internal/identity"
	"github.com/forgeport/forgeport/internal/importer"
	"github.com/forgeport/forgeport/internal/output"
	"github.com/forgeport/forgeport/internal/render"
	"github.com/forgeport/forgeport/internal/retry"
	"github.com/forgeport/forgeport/internal/store"
	"github.com/forgeport/forgeport/internal/validate"
)

type transferResult struct {
	Export *exportResult       `json:"export"`
	Import *store.ImportReport `json:"import"`
}

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Validate, export, and import in one run",
	Long: `Transfer runs the full pipeline: pre-flight validation, extraction of the
GitLab project into a snapshot, and import into the GitHub repository.

A user mapping file already present in the export directory is applied, so a
previous export's edited mappings carry over. For control over the mapping
step, run export and import separately.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getCfg(cmd)
		if err := cfg.RequireSource(); err != nil {
			return cmdErr(err, output.ErrValidation)
		}
		if err := cfg.RequireDestination(); err != nil {
			return cmdErr(err, output.ErrValidation)
		}

		yes, _ := cmd.Flags().GetBool("yes")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		dir := cfg.Transfer.ExportDir
		w := withAudit(getWriter(cmd), dir)
		ctx := cmd.Context()

		src := newSourceClient(cfg)
		dst := newDestClient(cfg)

		report := validate.New(src, dst).Run(ctx, cfg.GitLab.Project)
		if !w.JSONMode {
			fmt.Fprintln(w.Stdout, checksTable(report))
		}
		if report.Blocking() {
			return cmdErr(fmt.Errorf("pre-flight validation failed"), output.ErrValidation)
		}
		if dryRun {
			var message string
			if !w.JSONMode {
				message = render.CountsTable("Would transfer", countRows(report.Counts))
			}
			w.Success(report, message)
			return nil
		}
		if n := report.Warnings(); n > 0 && !yes && !w.JSONMode {
			ok, err := confirmWarnings(n)
			if err != nil {
				return cmdErr(err, output.ErrGeneral)
			}
			if !ok {
				w.Info("Cancelled.")
				return nil
			}
		}

		// Export phase. The validated project handle is reused.
		resolver := identity.NewResolver(src, w)
		snap, err := extract.New(src, resolver, w).Run(ctx, report.Project)
		if err != nil {
			return cmdErr(err, output.ErrGeneral)
		}
		snap.Project.GitHubRepo = cfg.GitHub.Repo

		if err := store.WriteSnapshot(dir, snap); err != nil {
			return cmdErr(err, output.ErrGeneral)
		}
		users := snap.Users()
		mappingPath := filepath.Join(dir, store.MappingFile)
		if existing, err := identity.LoadMappingFile(mappingPath); err == nil {
			resolved := identity.Apply(snap, existing)
			w.Info("applied existing user mappings: %d identities resolved", resolved)
		} else if err := identity.SaveMappingFile(mappingPath, users); err != nil {
			return cmdErr(err, output.ErrGeneral)
		}
		if err := store.WriteExportSummary(dir, snap); err != nil {
			return cmdErr(err, output.ErrGeneral)
		}

		// Import phase.
		ledger, err := store.OpenLedger(dir)
		if err != nil {
			return cmdErr(err, output.ErrGeneral)
		}
		defer ledger.Close()

		inv := retry.New(dst, w)
		imported, err := importer.New(dst, inv, ledger, w).Run(ctx, snap)
		if err != nil {
			return cmdErr(err, output.ErrGeneral)
		}
		if err := store.WriteImportSummary(dir, imported); err != nil {
			return cmdErr(err, output.ErrGeneral)
		}

		result := &transferResult{
			Export: &exportResult{
				ExportDir:     dir,
				Issues:        len(snap.Issues),
				MergeRequests: len(snap.MergeRequests),
				Labels:        len(snap.Labels),
				Milestones:    len(snap.Milestones),
				Users:         len(users),
			},
			Import: imported,
		}
		w.Success(result, fmt.Sprintf(
			"Transferred %s to %s: %d issues (%d skipped), %d labels, %d milestones, %d comments",
			cfg.GitLab.Project, cfg.GitHub.Repo,
			imported.Issues, imported.SkippedIssues, imported.Labels, imported.Milestones, imported.Comments))
		return nil
	},
}

func countRows(counts map[string]int) []render.CountRow {
	rows := make([]render.CountRow, 0, len(counts))
	for _, category := range []string{"issues", "merge requests", "labels", "milestones"} {
		if n, ok := counts[category]; ok {
			rows = append(rows, render.CountRow{Category: category, Count: n})
		}
	}
	return rows
}

func confirmWarnings(n int) (bool, error) {
	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Validation raised %d warning(s). Continue with the transfer?", n)).
				Affirmative("Continue").
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
	transferCmd.Flags().Bool("dry-run", false, "Stop after validation and show what would be transferred")
	transferCmd.Flags().BoolP("yes", "y", false, "Proceed despite validation warnings without prompting")
	rootCmd.AddCommand(transferCmd)
}
