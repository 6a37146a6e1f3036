package extract

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/forgeport/forgeport/internal/gitlab"
	"github.com/forgeport/forgeport/internal/identity"
	"github.com/forgeport/forgeport/internal/model"
	"github.com/forgeport/forgeport/internal/output"
)

// fakeSource serves canned project metadata. failNotesFor makes the notes
// call for one issue iid fail, to exercise per-item containment.
type fakeSource struct {
	users        map[int]*gitlab.User
	issues       []*gitlab.Issue
	mrs          []*gitlab.MergeRequest
	labels       []*gitlab.Label
	milestones   []*gitlab.Milestone
	notes        map[int][]*gitlab.Note
	failNotesFor int
	failLabels   bool
}

func (f *fakeSource) User(ctx context.Context, id int) (*gitlab.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user %d: 404", id)
}

func (f *fakeSource) ListIssues(ctx context.Context, projectID int) ([]*gitlab.Issue, error) {
	return f.issues, nil
}

func (f *fakeSource) ListMergeRequests(ctx context.Context, projectID int) ([]*gitlab.MergeRequest, error) {
	return f.mrs, nil
}

func (f *fakeSource) ListIssueNotes(ctx context.Context, projectID, issueIID int) ([]*gitlab.Note, error) {
	if issueIID == f.failNotesFor {
		return nil, fmt.Errorf("notes for issue %d: 500", issueIID)
	}
	return f.notes[issueIID], nil
}

func (f *fakeSource) ListMergeRequestNotes(ctx context.Context, projectID, mrIID int) ([]*gitlab.Note, error) {
	return f.notes[1000+mrIID], nil
}

func (f *fakeSource) ListLabels(ctx context.Context, projectID int) ([]*gitlab.Label, error) {
	if f.failLabels {
		return nil, fmt.Errorf("labels: 500")
	}
	return f.labels, nil
}

func (f *fakeSource) ListMilestones(ctx context.Context, projectID int) ([]*gitlab.Milestone, error) {
	return f.milestones, nil
}

func testProject() *gitlab.Project {
	return &gitlab.Project{
		ID:                7,
		Name:              "widgets",
		PathWithNamespace: "acme/widgets",
		WebURL:            "https://gitlab.example.com/acme/widgets",
	}
}

func newExtractor(src *fakeSource) *Extractor {
	w := output.New(false, true)
	w.Stdout = &bytes.Buffer{}
	w.Stderr = &bytes.Buffer{}
	return New(src, identity.NewResolver(src, w), w)
}

func TestRunKeepsIssuesWhoseCommentsFail(t *testing.T) {
	now := time.Now().UTC()
	src := &fakeSource{
		users:        map[int]*gitlab.User{1: {ID: 1, Username: "alice", Name: "Alice"}},
		failNotesFor: 3,
		notes:        map[int][]*gitlab.Note{},
	}
	for iid := 1; iid <= 5; iid++ {
		src.issues = append(src.issues, &gitlab.Issue{
			ID: 100 + iid, IID: iid, Title: fmt.Sprintf("issue %d", iid),
			State: "opened", CreatedAt: now, UpdatedAt: now,
			Author: &gitlab.UserRef{ID: 1},
		})
		src.notes[iid] = []*gitlab.Note{
			{ID: 900 + iid, Body: "a comment", CreatedAt: now, UpdatedAt: now, Author: &gitlab.UserRef{ID: 1}},
		}
	}

	snap, err := newExtractor(src).Run(context.Background(), testProject())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(snap.Issues) != 5 {
		t.Fatalf("extracted %d issues, want 5", len(snap.Issues))
	}
	for _, issue := range snap.Issues {
		wantComments := 1
		if issue.IID == 3 {
			wantComments = 0
		}
		if len(issue.Comments) != wantComments {
			t.Errorf("issue #%d has %d comments, want %d", issue.IID, len(issue.Comments), wantComments)
		}
	}
}

func TestRunSkipsSystemNotes(t *testing.T) {
	now := time.Now().UTC()
	src := &fakeSource{
		users: map[int]*gitlab.User{1: {ID: 1, Username: "alice"}},
		issues: []*gitlab.Issue{
			{ID: 101, IID: 1, Title: "one", State: "opened", CreatedAt: now, UpdatedAt: now, Author: &gitlab.UserRef{ID: 1}},
		},
		notes: map[int][]*gitlab.Note{
			1: {
				{ID: 1, Body: "changed milestone to v1", System: true, CreatedAt: now, UpdatedAt: now, Author: &gitlab.UserRef{ID: 1}},
				{ID: 2, Body: "real comment", CreatedAt: now, UpdatedAt: now, Author: &gitlab.UserRef{ID: 1}},
			},
		},
	}

	snap, err := newExtractor(src).Run(context.Background(), testProject())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	comments := snap.Issues[0].Comments
	if len(comments) != 1 {
		t.Fatalf("comments = %d, want 1 (system note skipped)", len(comments))
	}
	if comments[0].Body != "real comment" {
		t.Errorf("comment body = %q", comments[0].Body)
	}
	wantURL := "https://gitlab.example.com/acme/widgets/-/issues/1#note_2"
	if comments[0].GitLabURL != wantURL {
		t.Errorf("comment url = %q, want %q", comments[0].GitLabURL, wantURL)
	}
}

func TestRunMergesAssigneeShapes(t *testing.T) {
	now := time.Now().UTC()
	src := &fakeSource{
		users: map[int]*gitlab.User{
			1: {ID: 1, Username: "alice"},
			2: {ID: 2, Username: "bob"},
		},
		issues: []*gitlab.Issue{
			{ID: 101, IID: 1, Title: "plural", State: "opened", CreatedAt: now, UpdatedAt: now,
				Author:    &gitlab.UserRef{ID: 1},
				Assignees: []*gitlab.UserRef{{ID: 1}, {ID: 2}},
				Assignee:  &gitlab.UserRef{ID: 1}},
			{ID: 102, IID: 2, Title: "singular", State: "opened", CreatedAt: now, UpdatedAt: now,
				Author:   &gitlab.UserRef{ID: 1},
				Assignee: &gitlab.UserRef{ID: 2}},
		},
		notes: map[int][]*gitlab.Note{},
	}

	snap, err := newExtractor(src).Run(context.Background(), testProject())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The plural list wins when present; the legacy field fills in otherwise.
	if got := len(snap.Issues[0].Assignees); got != 2 {
		t.Errorf("issue #1 assignees = %d, want 2", got)
	}
	if got := len(snap.Issues[1].Assignees); got != 1 {
		t.Fatalf("issue #2 assignees = %d, want 1", got)
	}
	if snap.Issues[1].Assignees[0].GitLabUsername != "bob" {
		t.Errorf("issue #2 assignee = %q, want bob", snap.Issues[1].Assignees[0].GitLabUsername)
	}
}

func TestRunFiltersNonTerminalMergeRequests(t *testing.T) {
	now := time.Now().UTC()
	src := &fakeSource{
		users: map[int]*gitlab.User{1: {ID: 1, Username: "alice"}},
		mrs: []*gitlab.MergeRequest{
			{ID: 201, IID: 1, Title: "open", State: "opened", CreatedAt: now, UpdatedAt: now, Author: &gitlab.UserRef{ID: 1}},
			{ID: 202, IID: 2, Title: "merged", State: "merged", CreatedAt: now, UpdatedAt: now, Author: &gitlab.UserRef{ID: 1}},
			{ID: 203, IID: 3, Title: "closed", State: "closed", CreatedAt: now, UpdatedAt: now, Author: &gitlab.UserRef{ID: 1}},
		},
		notes: map[int][]*gitlab.Note{},
	}

	snap, err := newExtractor(src).Run(context.Background(), testProject())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(snap.MergeRequests) != 2 {
		t.Fatalf("extracted %d merge requests, want 2", len(snap.MergeRequests))
	}
	if snap.MergeRequests[0].IID != 2 || snap.MergeRequests[1].IID != 3 {
		t.Errorf("kept iids = %d, %d; want 2, 3", snap.MergeRequests[0].IID, snap.MergeRequests[1].IID)
	}
	wantURL := "https://gitlab.example.com/acme/widgets/-/merge_requests/2"
	if snap.MergeRequests[0].GitLabURL != wantURL {
		t.Errorf("mr url = %q, want %q", snap.MergeRequests[0].GitLabURL, wantURL)
	}
}

func TestRunNormalizesLabelColors(t *testing.T) {
	src := &fakeSource{
		labels: []*gitlab.Label{
			{Name: "bug", Color: "#ff0000", Description: "broken"},
			{Name: "chore", Color: ""},
		},
		notes: map[int][]*gitlab.Note{},
	}

	snap, err := newExtractor(src).Run(context.Background(), testProject())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if snap.Labels[0].Color != "ff0000" {
		t.Errorf("bug color = %q, want ff0000", snap.Labels[0].Color)
	}
	if snap.Labels[1].Color != model.DefaultLabelColor {
		t.Errorf("chore color = %q, want default %q", snap.Labels[1].Color, model.DefaultLabelColor)
	}
}

func TestRunDegradesFailedCategory(t *testing.T) {
	src := &fakeSource{
		failLabels: true,
		milestones: []*gitlab.Milestone{{Title: "v1.0", State: "active"}},
		notes:      map[int][]*gitlab.Note{},
	}

	snap, err := newExtractor(src).Run(context.Background(), testProject())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(snap.Labels) != 0 {
		t.Errorf("labels = %d, want 0 after listing failure", len(snap.Labels))
	}
	if len(snap.Milestones) != 1 {
		t.Errorf("milestones = %d, want 1 (other categories unaffected)", len(snap.Milestones))
	}
}
