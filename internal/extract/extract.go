// Package extract reads a GitLab project's metadata and assembles the
// transfer snapshot: issues, merge requests, labels, milestones, and
// non-system comments, with every user reference resolved to an identity
// mapping.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/forgeport/forgeport/internal/gitlab"
	"github.com/forgeport/forgeport/internal/identity"
	"github.com/forgeport/forgeport/internal/model"
	"github.com/forgeport/forgeport/internal/output"
)

// Source is the read surface of the source project the extractor depends on.
type Source interface {
	ListIssues(ctx context.Context, projectID int) ([]*gitlab.Issue, error)
	ListMergeRequests(ctx context.Context, projectID int) ([]*gitlab.MergeRequest, error)
	ListIssueNotes(ctx context.Context, projectID, issueIID int) ([]*gitlab.Note, error)
	ListMergeRequestNotes(ctx context.Context, projectID, mrIID int) ([]*gitlab.Note, error)
	ListLabels(ctx context.Context, projectID int) ([]*gitlab.Label, error)
	ListMilestones(ctx context.Context, projectID int) ([]*gitlab.Milestone, error)
}

// Extractor assembles a snapshot from a source project. Failures are
// contained at two levels: a category that cannot be listed degrades to empty
// with a warning, and an item whose comments cannot be fetched keeps its
// place with the comments it has. The run itself never aborts mid-category.
type Extractor struct {
	src   Source
	users *identity.Resolver
	out   *output.Writer
}

// New creates an extractor.
func New(src Source, users *identity.Resolver, out *output.Writer) *Extractor {
	return &Extractor{src: src, users: users, out: out}
}

// Run extracts all metadata categories from the project and returns the
// assembled snapshot. Items are kept in the API's native list order.
func (e *Extractor) Run(ctx context.Context, project *gitlab.Project) (*model.Snapshot, error) {
	snap := &model.Snapshot{
		Version: model.SnapshotVersion,
		Project: model.ProjectInfo{
			GitLabID:   project.ID,
			GitLabName: project.Name,
			GitLabURL:  project.WebURL,
			ExportedAt: time.Now().UTC(),
		},
	}

	snap.Issues = e.extractIssues(ctx, project)
	snap.MergeRequests = e.extractMergeRequests(ctx, project)
	snap.Labels = e.extractLabels(ctx, project)
	snap.Milestones = e.extractMilestones(ctx, project)

	return snap, nil
}

func (e *Extractor) extractIssues(ctx context.Context, project *gitlab.Project) []*model.Issue {
	raw, err := e.src.ListIssues(ctx, project.ID)
	if err != nil {
		e.out.Warn("could not list issues: %v", err)
		return nil
	}
	e.out.Info("extracting %d issues", len(raw))

	issues := make([]*model.Issue, 0, len(raw))
	for _, in := range raw {
		issue := &model.Issue{
			ID:          in.ID,
			IID:         in.IID,
			Title:       in.Title,
			Description: in.Description,
			State:       model.State(in.State),
			CreatedAt:   in.CreatedAt,
			UpdatedAt:   in.UpdatedAt,
			ClosedAt:    in.ClosedAt,
			Author:      e.resolveRef(ctx, in.Author),
			Labels:      in.Labels,
			GitLabURL:   fmt.Sprintf("%s/-/issues/%d", project.WebURL, in.IID),
		}
		if in.Milestone != nil {
			issue.Milestone = in.Milestone.Title
		}
		for _, ref := range assigneeRefs(in.Assignees, in.Assignee) {
			issue.Assignees = append(issue.Assignees, e.resolveRef(ctx, ref))
		}

		notes, err := e.src.ListIssueNotes(ctx, project.ID, in.IID)
		if err != nil {
			e.out.ItemFailed("issue", fmt.Sprintf("#%d", in.IID), fmt.Errorf("fetching comments: %w", err))
		} else {
			issue.Comments = e.convertNotes(ctx, notes, fmt.Sprintf("%s/-/issues/%d", project.WebURL, in.IID))
		}

		issues = append(issues, issue)
	}
	return issues
}

// extractMergeRequests keeps only merge requests in a terminal state. Open
// merge requests cannot be meaningfully recreated without their branches, so
// they are left behind.
func (e *Extractor) extractMergeRequests(ctx context.Context, project *gitlab.Project) []*model.MergeRequest {
	raw, err := e.src.ListMergeRequests(ctx, project.ID)
	if err != nil {
		e.out.Warn("could not list merge requests: %v", err)
		return nil
	}

	var mrs []*model.MergeRequest
	for _, in := range raw {
		state := model.State(in.State)
		if !state.Terminal() {
			continue
		}

		mr := &model.MergeRequest{
			ID:           in.ID,
			IID:          in.IID,
			Title:        in.Title,
			Description:  in.Description,
			State:        state,
			CreatedAt:    in.CreatedAt,
			UpdatedAt:    in.UpdatedAt,
			ClosedAt:     in.ClosedAt,
			MergedAt:     in.MergedAt,
			Author:       e.resolveRef(ctx, in.Author),
			Labels:       in.Labels,
			SourceBranch: in.SourceBranch,
			TargetBranch: in.TargetBranch,
			SHA:          in.SHA,
			GitLabURL:    fmt.Sprintf("%s/-/merge_requests/%d", project.WebURL, in.IID),
		}
		if in.Milestone != nil {
			mr.Milestone = in.Milestone.Title
		}
		if in.Assignee != nil {
			mr.Assignee = e.resolveRef(ctx, in.Assignee)
		}

		notes, err := e.src.ListMergeRequestNotes(ctx, project.ID, in.IID)
		if err != nil {
			e.out.ItemFailed("merge request", fmt.Sprintf("!%d", in.IID), fmt.Errorf("fetching comments: %w", err))
		} else {
			mr.Comments = e.convertNotes(ctx, notes, fmt.Sprintf("%s/-/merge_requests/%d", project.WebURL, in.IID))
		}

		mrs = append(mrs, mr)
	}
	e.out.Info("extracted %d terminal merge requests of %d total", len(mrs), len(raw))
	return mrs
}

func (e *Extractor) extractLabels(ctx context.Context, project *gitlab.Project) []*model.Label {
	raw, err := e.src.ListLabels(ctx, project.ID)
	if err != nil {
		e.out.Warn("could not list labels: %v", err)
		return nil
	}

	labels := make([]*model.Label, 0, len(raw))
	for _, in := range raw {
		color := strings.TrimPrefix(in.Color, "#")
		if color == "" {
			color = model.DefaultLabelColor
		}
		labels = append(labels, &model.Label{
			Name:        in.Name,
			Description: in.Description,
			Color:       color,
		})
	}
	e.out.Info("extracted %d labels", len(labels))
	return labels
}

func (e *Extractor) extractMilestones(ctx context.Context, project *gitlab.Project) []*model.Milestone {
	raw, err := e.src.ListMilestones(ctx, project.ID)
	if err != nil {
		e.out.Warn("could not list milestones: %v", err)
		return nil
	}

	milestones := make([]*model.Milestone, 0, len(raw))
	for _, in := range raw {
		milestones = append(milestones, &model.Milestone{
			Title:       in.Title,
			Description: in.Description,
			State:       model.State(in.State),
			DueDate:     in.DueDate,
			CreatedAt:   in.CreatedAt,
			UpdatedAt:   in.UpdatedAt,
		})
	}
	e.out.Info("extracted %d milestones", len(milestones))
	return milestones
}

// convertNotes turns raw notes into comments, dropping system notes. itemURL
// is the web address of the parent issue or merge request; each comment links
// to its own note anchor beneath it.
func (e *Extractor) convertNotes(ctx context.Context, notes []*gitlab.Note, itemURL string) []*model.Comment {
	var comments []*model.Comment
	for _, n := range notes {
		if n.System {
			continue
		}
		comments = append(comments, &model.Comment{
			ID:        n.ID,
			Body:      n.Body,
			CreatedAt: n.CreatedAt,
			UpdatedAt: n.UpdatedAt,
			Author:    e.resolveRef(ctx, n.Author),
			GitLabURL: fmt.Sprintf("%s#note_%d", itemURL, n.ID),
		})
	}
	return comments
}

func (e *Extractor) resolveRef(ctx context.Context, ref *gitlab.UserRef) *model.UserMapping {
	if ref == nil {
		return nil
	}
	return e.users.Resolve(ctx, ref.ID)
}

// assigneeRefs merges the two assignee shapes the API exposes, the plural
// list and the legacy singular field, without duplicating the same user.
func assigneeRefs(many []*gitlab.UserRef, one *gitlab.UserRef) []*gitlab.UserRef {
	if len(many) > 0 {
		return many
	}
	if one != nil {
		return []*gitlab.UserRef{one}
	}
	return nil
}
