// Package importer replays a snapshot into a GitHub repository in dependency
// order: labels first, then milestones, then issues with their comments.
// Merge requests are summarized but never created; GitHub pull requests
// require real branches.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/forgeport/forgeport/internal/github"
	"github.com/forgeport/forgeport/internal/model"
	"github.com/forgeport/forgeport/internal/output"
	"github.com/forgeport/forgeport/internal/retry"
	"github.com/forgeport/forgeport/internal/store"
)

// GitHub's field limits for label and milestone descriptions.
const (
	maxLabelDescription     = 100
	maxMilestoneDescription = 200
)

// Destination is the write surface of the target repository the importer
// depends on.
type Destination interface {
	FullName() string
	GetLabel(ctx context.Context, name string) (*github.Label, error)
	CreateLabel(ctx context.Context, name, color, description string) (*github.Label, error)
	ListMilestones(ctx context.Context) ([]*github.Milestone, error)
	CreateMilestone(ctx context.Context, title, description, state string, dueOn *time.Time) (*github.Milestone, error)
	CreateIssue(ctx context.Context, title, body string, labels []string, milestone int) (*github.Issue, error)
	EditIssueState(ctx context.Context, number int, state string) error
	CreateComment(ctx context.Context, number int, body string) error
}

// Importer drives one import run. A failed item is reported and skipped; the
// run continues so a re-run (backed by the ledger) can pick up the remainder.
type Importer struct {
	dst    Destination
	inv    *retry.Invoker
	ledger *store.Ledger
	out    *output.Writer
}

// New creates an importer writing through inv to dst, recording completed
// issues in ledger.
func New(dst Destination, inv *retry.Invoker, ledger *store.Ledger, out *output.Writer) *Importer {
	return &Importer{dst: dst, inv: inv, ledger: ledger, out: out}
}

// Run imports the snapshot and returns the outcome report. The category order
// is fixed: issues reference labels by name and milestones by number, so both
// tables must exist before the first issue is created.
func (im *Importer) Run(ctx context.Context, snap *model.Snapshot) (*store.ImportReport, error) {
	report := &store.ImportReport{
		Repo:       im.dst.FullName(),
		ImportedAt: time.Now().UTC(),
	}

	available, created, err := im.importLabels(ctx, snap.Labels)
	if err != nil {
		return nil, err
	}
	report.Labels = created

	milestones, created, err := im.importMilestones(ctx, snap.Milestones)
	if err != nil {
		return nil, err
	}
	report.Milestones = created

	if err := im.importIssues(ctx, snap.Issues, available, milestones, report); err != nil {
		return nil, err
	}

	report.MergeRequests = len(snap.MergeRequests)
	if len(snap.MergeRequests) > 0 {
		im.out.Info("%d merge requests recorded in the snapshot; pull requests are not created", len(snap.MergeRequests))
	}

	return report, nil
}

// importLabels ensures every snapshot label exists on the destination.
// Returns the set of label names known to exist and the number created.
func (im *Importer) importLabels(ctx context.Context, labels []*model.Label) (map[string]bool, int, error) {
	available := make(map[string]bool, len(labels))
	created := 0

	for _, label := range labels {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		var existing *github.Label
		err := im.inv.Do(ctx, fmt.Sprintf("look up label %q", label.Name), func() error {
			var err error
			existing, err = im.dst.GetLabel(ctx, label.Name)
			if errors.Is(err, github.ErrNotFound) {
				existing = nil
				return nil
			}
			return err
		})
		if err != nil {
			im.out.ItemFailed("label", label.Name, err)
			continue
		}
		if existing != nil {
			available[label.Name] = true
			continue
		}

		err = im.inv.Do(ctx, fmt.Sprintf("create label %q", label.Name), func() error {
			_, err := im.dst.CreateLabel(ctx, label.Name, label.Color, clip(label.Description, maxLabelDescription))
			return err
		})
		if err != nil {
			im.out.ItemFailed("label", label.Name, err)
			continue
		}
		available[label.Name] = true
		created++
	}

	im.out.Info("labels: %d created, %d already present", created, len(available)-created)
	return available, created, nil
}

// importMilestones ensures every snapshot milestone exists, matching existing
// milestones by title. Returns the title-to-number table issues resolve
// against and the number created.
func (im *Importer) importMilestones(ctx context.Context, milestones []*model.Milestone) (map[string]int, int, error) {
	byTitle := make(map[string]int)

	err := im.inv.Do(ctx, "list milestones", func() error {
		existing, err := im.dst.ListMilestones(ctx)
		if err != nil {
			return err
		}
		for _, m := range existing {
			byTitle[m.Title] = m.Number
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("listing destination milestones: %w", err)
	}

	created := 0
	for _, milestone := range milestones {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		if _, ok := byTitle[milestone.Title]; ok {
			continue
		}

		state := "closed"
		if milestone.State == "active" {
			state = "open"
		}

		var dueOn *time.Time
		if milestone.DueDate != "" {
			due, err := time.Parse("2006-01-02", milestone.DueDate)
			if err != nil {
				im.out.Warn("milestone %q has unparseable due date %q, importing without one", milestone.Title, milestone.DueDate)
			} else {
				dueOn = &due
			}
		}

		var made *github.Milestone
		err := im.inv.Do(ctx, fmt.Sprintf("create milestone %q", milestone.Title), func() error {
			var err error
			made, err = im.dst.CreateMilestone(ctx, milestone.Title, clip(milestone.Description, maxMilestoneDescription), state, dueOn)
			return err
		})
		if err != nil {
			im.out.ItemFailed("milestone", milestone.Title, err)
			continue
		}
		byTitle[milestone.Title] = made.Number
		created++
	}

	im.out.Info("milestones: %d created, %d already present", created, len(byTitle)-created)
	return byTitle, created, nil
}

// importIssues creates snapshot issues in order, replays their comments, and
// closes the ones that were closed at the source. Issues already in the
// ledger are skipped.
func (im *Importer) importIssues(ctx context.Context, issues []*model.Issue, labels map[string]bool, milestones map[string]int, report *store.ImportReport) error {
	for _, issue := range issues {
		if err := ctx.Err(); err != nil {
			return err
		}

		done, err := im.ledger.Lookup(issue.ID)
		if err != nil {
			return err
		}
		if done != nil {
			im.out.Info("issue #%d already imported as #%d, skipping", issue.IID, done.GitHubNumber)
			report.SkippedIssues++
			report.Correlations = append(report.Correlations, *done)
			continue
		}

		var names []string
		for _, name := range issue.Labels {
			if !labels[name] {
				im.out.Warn("issue #%d references label %q which is not on the destination, dropping it", issue.IID, name)
				continue
			}
			names = append(names, name)
		}

		milestone := 0
		if issue.Milestone != "" {
			number, ok := milestones[issue.Milestone]
			if !ok {
				im.out.Warn("issue #%d references milestone %q which is not on the destination, importing without one", issue.IID, issue.Milestone)
			} else {
				milestone = number
			}
		}

		var made *github.Issue
		err = im.inv.Do(ctx, fmt.Sprintf("create issue #%d", issue.IID), func() error {
			var err error
			made, err = im.dst.CreateIssue(ctx, issue.Title, issueBody(issue), names, milestone)
			return err
		})
		if err != nil {
			im.out.ItemFailed("issue", fmt.Sprintf("#%d", issue.IID), err)
			continue
		}

		for _, comment := range issue.Comments {
			body := commentBody(comment)
			err := im.inv.Do(ctx, fmt.Sprintf("comment on issue #%d", made.Number), func() error {
				return im.dst.CreateComment(ctx, made.Number, body)
			})
			if err != nil {
				im.out.ItemFailed("comment", fmt.Sprintf("issue #%d note %d", issue.IID, comment.ID), err)
				continue
			}
			report.Comments++
		}

		// Issues are created open; closed source issues need a follow-up
		// transition.
		if issue.State.Terminal() {
			err := im.inv.Do(ctx, fmt.Sprintf("close issue #%d", made.Number), func() error {
				return im.dst.EditIssueState(ctx, made.Number, "closed")
			})
			if err != nil {
				im.out.Warn("could not close issue #%d: %v", made.Number, err)
			}
		}

		corr := model.Correlation{
			GitLabID:     issue.ID,
			GitLabIID:    issue.IID,
			GitHubNumber: made.Number,
			GitHubURL:    made.HTMLURL,
		}
		if err := im.ledger.Record(corr); err != nil {
			return err
		}
		report.Issues++
		report.Correlations = append(report.Correlations, corr)
	}

	im.out.Info("issues: %d created, %d skipped", report.Issues, report.SkippedIssues)
	return nil
}

// issueBody renders the destination issue body: the original description (or
// a placeholder when empty) plus the provenance footer.
func issueBody(issue *model.Issue) string {
	body := issue.Description
	if body == "" {
		body = "*Issue imported from GitLab*"
	}
	return body + fmt.Sprintf("\n\n---\n*Originally created by %s on %s in [GitLab](%s)*\n",
		issue.Author.Mention(), issue.CreatedAt.UTC().Format("2006-01-02"), issue.GitLabURL)
}

// commentBody renders a replayed comment with its provenance footer.
func commentBody(comment *model.Comment) string {
	return comment.Body + fmt.Sprintf("\n\n---\n*Originally commented by %s on %s in [GitLab](%s)*",
		comment.Author.Mention(), comment.CreatedAt.UTC().Format("2006-01-02"), comment.GitLabURL)
}

// clip truncates s to at most max runes. Destination field limits are hard
// errors, not silent truncation, so the cut happens client-side.
func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
