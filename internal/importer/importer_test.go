package importer

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/forgeport/forgeport/internal/github"
	"github.com/forgeport/forgeport/internal/model"
	"github.com/forgeport/forgeport/internal/output"
	"github.com/forgeport/forgeport/internal/retry"
	"github.com/forgeport/forgeport/internal/store"
)

type createdIssue struct {
	title     string
	body      string
	labels    []string
	milestone int
}

// fakeDest records every write in order so tests can assert on sequencing and
// payloads.
type fakeDest struct {
	existingLabels     map[string]*github.Label
	existingMilestones []*github.Milestone

	ops        []string
	created    []createdIssue
	comments   map[int][]string
	stateEdits map[int]string

	nextMilestone int
	nextIssue     int
}

func newFakeDest() *fakeDest {
	return &fakeDest{
		existingLabels: map[string]*github.Label{},
		comments:       map[int][]string{},
		stateEdits:     map[int]string{},
		nextMilestone:  100,
	}
}

func (f *fakeDest) FullName() string { return "acme/widgets" }

func (f *fakeDest) RateLimit(ctx context.Context) (*github.RateLimit, error) {
	return &github.RateLimit{Limit: 5000, Remaining: 4000}, nil
}

func (f *fakeDest) GetLabel(ctx context.Context, name string) (*github.Label, error) {
	f.ops = append(f.ops, "get-label "+name)
	if label, ok := f.existingLabels[name]; ok {
		return label, nil
	}
	return nil, github.ErrNotFound
}

func (f *fakeDest) CreateLabel(ctx context.Context, name, color, description string) (*github.Label, error) {
	f.ops = append(f.ops, "create-label "+name)
	label := &github.Label{Name: name, Color: color}
	f.existingLabels[name] = label
	return label, nil
}

func (f *fakeDest) ListMilestones(ctx context.Context) ([]*github.Milestone, error) {
	f.ops = append(f.ops, "list-milestones")
	return f.existingMilestones, nil
}

func (f *fakeDest) CreateMilestone(ctx context.Context, title, description, state string, dueOn *time.Time) (*github.Milestone, error) {
	f.ops = append(f.ops, "create-milestone "+title)
	f.nextMilestone++
	m := &github.Milestone{Number: f.nextMilestone, Title: title, State: state}
	f.existingMilestones = append(f.existingMilestones, m)
	return m, nil
}

func (f *fakeDest) CreateIssue(ctx context.Context, title, body string, labels []string, milestone int) (*github.Issue, error) {
	f.ops = append(f.ops, "create-issue "+title)
	f.nextIssue++
	f.created = append(f.created, createdIssue{title: title, body: body, labels: labels, milestone: milestone})
	return &github.Issue{
		Number:  f.nextIssue,
		HTMLURL: fmt.Sprintf("https://github.com/acme/widgets/issues/%d", f.nextIssue),
		State:   "open",
	}, nil
}

func (f *fakeDest) EditIssueState(ctx context.Context, number int, state string) error {
	f.ops = append(f.ops, fmt.Sprintf("edit-state %d %s", number, state))
	f.stateEdits[number] = state
	return nil
}

func (f *fakeDest) CreateComment(ctx context.Context, number int, body string) error {
	f.ops = append(f.ops, fmt.Sprintf("create-comment %d", number))
	f.comments[number] = append(f.comments[number], body)
	return nil
}

func newTestImporter(t *testing.T, dst *fakeDest) (*Importer, *store.Ledger) {
	t.Helper()
	w := output.New(false, true)
	w.Stdout = &bytes.Buffer{}
	w.Stderr = &bytes.Buffer{}

	ledger, err := store.OpenLedger(t.TempDir())
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	t.Cleanup(func() { ledger.Close() })

	inv := retry.New(dst, w)
	inv.SleepFn = func(time.Duration) {}
	return New(dst, inv, ledger, w), ledger
}

func testSnapshot() *model.Snapshot {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	alice := &model.UserMapping{GitLabUsername: "alice", GitLabID: 1, GitHubUsername: "alice-gh"}
	bob := &model.UserMapping{GitLabUsername: "bob", GitLabID: 2, FallbackName: "Bob Jones"}

	return &model.Snapshot{
		Version: model.SnapshotVersion,
		Labels: []*model.Label{
			{Name: "bug", Description: "broken", Color: "ff0000"},
			{Name: "feature", Description: strings.Repeat("x", 150), Color: "00ff00"},
		},
		Milestones: []*model.Milestone{
			{Title: "v1.0", Description: strings.Repeat("y", 250), State: "active", DueDate: "2024-06-01"},
			{Title: "v0.9", State: "closed"},
		},
		Issues: []*model.Issue{
			{
				ID: 500, IID: 1, Title: "Open issue", Description: "details",
				State: model.StateOpened, CreatedAt: created, UpdatedAt: created,
				Author: alice, Labels: []string{"bug", "wontexist"}, Milestone: "v1.0",
				GitLabURL: "https://gitlab.example.com/acme/widgets/-/issues/1",
				Comments: []*model.Comment{
					{ID: 900, Body: "same here", CreatedAt: created, UpdatedAt: created, Author: bob,
						GitLabURL: "https://gitlab.example.com/acme/widgets/-/issues/1#note_900"},
				},
			},
			{
				ID: 501, IID: 2, Title: "Closed issue", Description: "",
				State: model.StateClosed, CreatedAt: created, UpdatedAt: created,
				Author:    bob,
				GitLabURL: "https://gitlab.example.com/acme/widgets/-/issues/2",
			},
		},
		MergeRequests: []*model.MergeRequest{
			{ID: 600, IID: 9, Title: "A merge", State: model.StateMerged, CreatedAt: created, UpdatedAt: created, Author: alice},
		},
	}
}

func TestRunCreatesInDependencyOrder(t *testing.T) {
	dst := newFakeDest()
	im, _ := newTestImporter(t, dst)

	if _, err := im.Run(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	firstIssue := -1
	lastTable := -1
	for i, op := range dst.ops {
		if strings.HasPrefix(op, "create-issue") && firstIssue == -1 {
			firstIssue = i
		}
		if strings.HasPrefix(op, "create-label") || strings.HasPrefix(op, "create-milestone") {
			lastTable = i
		}
	}
	if firstIssue == -1 {
		t.Fatal("no issues created")
	}
	if lastTable > firstIssue {
		t.Errorf("label/milestone write at %d after first issue at %d\nops: %v", lastTable, firstIssue, dst.ops)
	}
}

func TestRunSkipsExistingLabelsAndMilestones(t *testing.T) {
	dst := newFakeDest()
	dst.existingLabels["bug"] = &github.Label{Name: "bug", Color: "ff0000"}
	dst.existingMilestones = []*github.Milestone{{Number: 7, Title: "v1.0", State: "open"}}
	im, _ := newTestImporter(t, dst)

	report, err := im.Run(context.Background(), testSnapshot())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Labels != 1 {
		t.Errorf("labels created = %d, want 1 (bug already present)", report.Labels)
	}
	if report.Milestones != 1 {
		t.Errorf("milestones created = %d, want 1 (v1.0 already present)", report.Milestones)
	}
	for _, op := range dst.ops {
		if op == "create-label bug" || op == "create-milestone v1.0" {
			t.Errorf("recreated an existing entity: %s", op)
		}
	}

	// The issue referencing v1.0 uses the existing milestone's number.
	if dst.created[0].milestone != 7 {
		t.Errorf("issue milestone = %d, want 7", dst.created[0].milestone)
	}
}

func TestRunClipsLongDescriptions(t *testing.T) {
	dst := newFakeDest()
	im, _ := newTestImporter(t, dst)

	if _, err := im.Run(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Verified indirectly: clip is exercised through the calls above; check
	// the helper contract directly too.
	if got := clip(strings.Repeat("x", 150), maxLabelDescription); len(got) != 100 {
		t.Errorf("clip length = %d, want 100", len(got))
	}
	if got := clip("short", maxLabelDescription); got != "short" {
		t.Errorf("clip(short) = %q", got)
	}
}

func TestRunIssuePayloads(t *testing.T) {
	dst := newFakeDest()
	im, _ := newTestImporter(t, dst)

	report, err := im.Run(context.Background(), testSnapshot())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(dst.created) != 2 {
		t.Fatalf("created %d issues, want 2", len(dst.created))
	}

	open := dst.created[0]
	if !strings.Contains(open.body, "details") {
		t.Errorf("open issue body missing description: %q", open.body)
	}
	if !strings.Contains(open.body, "*Originally created by @alice-gh on 2024-03-01 in [GitLab](https://gitlab.example.com/acme/widgets/-/issues/1)*") {
		t.Errorf("open issue body missing provenance footer: %q", open.body)
	}
	// The unknown label was dropped, the known one kept.
	if len(open.labels) != 1 || open.labels[0] != "bug" {
		t.Errorf("open issue labels = %v, want [bug]", open.labels)
	}

	closed := dst.created[1]
	if !strings.Contains(closed.body, "*Issue imported from GitLab*") {
		t.Errorf("empty description not replaced with placeholder: %q", closed.body)
	}
	if !strings.Contains(closed.body, "Bob Jones") {
		t.Errorf("fallback name not used in footer: %q", closed.body)
	}
	if dst.stateEdits[2] != "closed" {
		t.Errorf("closed issue not transitioned: edits = %v", dst.stateEdits)
	}
	if _, touched := dst.stateEdits[1]; touched {
		t.Error("open issue should not get a state edit")
	}

	comments := dst.comments[1]
	if len(comments) != 1 {
		t.Fatalf("issue #1 comments = %d, want 1", len(comments))
	}
	if !strings.Contains(comments[0], "same here") ||
		!strings.Contains(comments[0], "*Originally commented by Bob Jones on 2024-03-01 in [GitLab](https://gitlab.example.com/acme/widgets/-/issues/1#note_900)*") {
		t.Errorf("comment body = %q", comments[0])
	}

	if report.Issues != 2 || report.Comments != 1 || report.MergeRequests != 1 {
		t.Errorf("report = %+v", report)
	}
	if len(report.Correlations) != 2 {
		t.Fatalf("correlations = %d, want 2", len(report.Correlations))
	}
	if c := report.Correlations[0]; c.GitLabID != 500 || c.GitLabIID != 1 || c.GitHubNumber != 1 ||
		c.GitHubURL != "https://github.com/acme/widgets/issues/1" {
		t.Errorf("correlation = %+v", c)
	}
}

func TestRunIsIdempotentAcrossRuns(t *testing.T) {
	dst := newFakeDest()
	im, ledger := newTestImporter(t, dst)
	snap := testSnapshot()

	first, err := im.Run(context.Background(), snap)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if first.Issues != 2 || first.SkippedIssues != 0 {
		t.Fatalf("first report = %+v", first)
	}

	// A second run against the same ledger creates nothing new.
	w2 := newQuietWriter()
	im2 := New(dst, retry.New(dst, w2), ledger, w2)
	second, err := im2.Run(context.Background(), snap)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.Issues != 0 || second.SkippedIssues != 2 {
		t.Errorf("second report = %+v", second)
	}
	if len(dst.created) != 2 {
		t.Errorf("destination has %d issues after re-run, want 2", len(dst.created))
	}
	// Skipped issues still appear in the correlation table.
	if len(second.Correlations) != 2 {
		t.Errorf("second run correlations = %d, want 2", len(second.Correlations))
	}
}

func newQuietWriter() *output.Writer {
	w := output.New(false, true)
	w.Stdout = &bytes.Buffer{}
	w.Stderr = &bytes.Buffer{}
	return w
}
