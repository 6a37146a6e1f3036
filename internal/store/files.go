// Package store owns everything that lands in the export directory: the
// snapshot file, the human-readable summaries, and the sqlite ledger that
// makes issue import idempotent across runs.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/forgeport/forgeport/internal/model"
)

// Well-known file names inside the export directory.
const (
	SnapshotFile      = "metadata_export.json"
	MappingFile       = "user_mapping.json"
	ExportSummaryFile = "export_summary.txt"
	ImportSummaryFile = "import_summary.txt"
	LedgerFile        = "transfer_ledger.db"
	AuditFile         = "transfer_audit.jsonl"
)

// EnsureDir creates the export directory if it does not exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	return nil
}

// WriteSnapshot serializes the snapshot to its well-known file in dir.
func WriteSnapshot(dir string, snap *model.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	path := filepath.Join(dir, SnapshotFile)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot loads and validates the snapshot file from dir.
func ReadSnapshot(dir string) (*model.Snapshot, error) {
	path := filepath.Join(dir, SnapshotFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	if snap.Version != model.SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d (expected %d)", snap.Version, model.SnapshotVersion)
	}
	return &snap, nil
}

// WriteExportSummary writes a human-readable recap of an extraction run.
func WriteExportSummary(dir string, snap *model.Snapshot) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Export Summary\n")
	fmt.Fprintf(&b, "==============\n\n")
	fmt.Fprintf(&b, "Project:   %s\n", snap.Project.GitLabName)
	fmt.Fprintf(&b, "URL:       %s\n", snap.Project.GitLabURL)
	fmt.Fprintf(&b, "Exported:  %s\n\n", snap.Project.ExportedAt.UTC().Format(time.RFC3339))

	comments := 0
	for _, issue := range snap.Issues {
		comments += len(issue.Comments)
	}
	for _, mr := range snap.MergeRequests {
		comments += len(mr.Comments)
	}

	fmt.Fprintf(&b, "Issues:          %d\n", len(snap.Issues))
	fmt.Fprintf(&b, "Merge requests:  %d\n", len(snap.MergeRequests))
	fmt.Fprintf(&b, "Labels:          %d\n", len(snap.Labels))
	fmt.Fprintf(&b, "Milestones:      %d\n", len(snap.Milestones))
	fmt.Fprintf(&b, "Comments:        %d\n\n", comments)

	users := snap.Users()
	fmt.Fprintf(&b, "Users referenced (%d):\n", len(users))
	for _, u := range users {
		github := u.GitHubUsername
		if github == "" {
			github = "(unmapped)"
		}
		fmt.Fprintf(&b, "  %-24s -> %s\n", u.GitLabUsername, github)
	}
	fmt.Fprintf(&b, "\nEdit %s to map users before import.\n", MappingFile)

	path := filepath.Join(dir, ExportSummaryFile)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing export summary: %w", err)
	}
	return nil
}

// ImportReport is the outcome of an import run, written to the import summary
// file and returned to the caller for display.
type ImportReport struct {
	Repo          string              `json:"repo"`
	ImportedAt    time.Time           `json:"imported_at"`
	Labels        int                 `json:"labels"`
	Milestones    int                 `json:"milestones"`
	Issues        int                 `json:"issues"`
	SkippedIssues int                 `json:"skipped_issues"`
	Comments      int                 `json:"comments"`
	MergeRequests int                 `json:"merge_requests_recorded"`
	Correlations  []model.Correlation `json:"correlations"`
}

// WriteImportSummary writes a human-readable recap of an import run,
// including the source-to-destination issue correlation table.
func WriteImportSummary(dir string, report *ImportReport) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Import Summary\n")
	fmt.Fprintf(&b, "==============\n\n")
	fmt.Fprintf(&b, "Repository: %s\n", report.Repo)
	fmt.Fprintf(&b, "Imported:   %s\n\n", report.ImportedAt.UTC().Format(time.RFC3339))

	fmt.Fprintf(&b, "Labels created:      %d\n", report.Labels)
	fmt.Fprintf(&b, "Milestones created:  %d\n", report.Milestones)
	fmt.Fprintf(&b, "Issues created:      %d\n", report.Issues)
	fmt.Fprintf(&b, "Issues skipped:      %d (already imported)\n", report.SkippedIssues)
	fmt.Fprintf(&b, "Comments created:    %d\n", report.Comments)
	fmt.Fprintf(&b, "Merge requests:      %d (recorded only, not created)\n\n", report.MergeRequests)

	if len(report.Correlations) > 0 {
		fmt.Fprintf(&b, "Issue correlations:\n")
		for _, c := range report.Correlations {
			fmt.Fprintf(&b, "  GitLab !%d (id %d) -> GitHub #%d %s\n",
				c.GitLabIID, c.GitLabID, c.GitHubNumber, c.GitHubURL)
		}
	}

	path := filepath.Join(dir, ImportSummaryFile)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing import summary: %w", err)
	}
	return nil
}
