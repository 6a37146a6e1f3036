// Package gitlab implements the source project handle: a thin REST client
// for the GitLab v4 API covering the read-only surface the extractor needs.
package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// perPage is the page size used for all list calls. Iteration stops at the
// first short page.
const perPage = 100

// Client talks to one GitLab instance with a private token.
type Client struct {
	rest *resty.Client
}

// User is a GitLab user profile.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// Project is a GitLab project.
type Project struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	PathWithNamespace string `json:"path_with_namespace"`
	WebURL            string `json:"web_url"`
	DefaultBranch     string `json:"default_branch"`
}

// UserRef is the embedded author/assignee reference on issues, merge
// requests, and notes.
type UserRef struct {
	ID int `json:"id"`
}

// MilestoneRef is the embedded milestone reference on issues and merge
// requests. Only the title is carried forward; the import join is by name.
type MilestoneRef struct {
	Title string `json:"title"`
}

// Issue is a GitLab issue as returned by the list endpoint.
type Issue struct {
	ID          int           `json:"id"`
	IID         int           `json:"iid"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	State       string        `json:"state"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	ClosedAt    *time.Time    `json:"closed_at"`
	Author      *UserRef      `json:"author"`
	Assignees   []*UserRef    `json:"assignees"`
	Assignee    *UserRef      `json:"assignee"`
	Labels      []string      `json:"labels"`
	Milestone   *MilestoneRef `json:"milestone"`
}

// MergeRequest is a GitLab merge request as returned by the list endpoint.
type MergeRequest struct {
	ID           int           `json:"id"`
	IID          int           `json:"iid"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	State        string        `json:"state"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	ClosedAt     *time.Time    `json:"closed_at"`
	MergedAt     *time.Time    `json:"merged_at"`
	Author       *UserRef      `json:"author"`
	Assignee     *UserRef      `json:"assignee"`
	Labels       []string      `json:"labels"`
	Milestone    *MilestoneRef `json:"milestone"`
	SourceBranch string        `json:"source_branch"`
	TargetBranch string        `json:"target_branch"`
	SHA          string        `json:"sha"`
}

// Note is a comment on an issue or merge request. System notes are
// machine-generated state-change notifications and are skipped by the
// extractor.
type Note struct {
	ID        int       `json:"id"`
	Body      string    `json:"body"`
	System    bool      `json:"system"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Author    *UserRef  `json:"author"`
}

// Label is a GitLab project label. Color includes the leading "#".
type Label struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// Milestone is a GitLab project milestone. State is "active" or "closed".
type Milestone struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	State       string    `json:"state"`
	DueDate     string    `json:"due_date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// New creates a client for the GitLab instance at baseURL authenticated with
// a private token.
func New(baseURL, token string, timeout time.Duration) *Client {
	rest := resty.New().
		SetBaseURL(baseURL + "/api/v4").
		SetHeader("PRIVATE-TOKEN", token).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)

	return &Client{rest: rest}
}

// Auth verifies the token by fetching the authenticated user. A failure here
// is fatal to the whole run.
func (c *Client) Auth(ctx context.Context) (*User, error) {
	var user User
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&user).
		Get("/user")
	if err != nil {
		return nil, fmt.Errorf("gitlab auth: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("gitlab auth: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &user, nil
}

// Project fetches a project by its namespace path. The path is URL-encoded,
// e.g. "group/project" becomes "group%2Fproject".
func (c *Client) Project(ctx context.Context, path string) (*Project, error) {
	var project Project
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&project).
		Get("/projects/" + url.PathEscape(path))
	if err != nil {
		return nil, fmt.Errorf("fetching project %q: %w", path, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("fetching project %q: status %d: %s", path, resp.StatusCode(), resp.String())
	}
	return &project, nil
}

// User fetches a single user profile by numeric id.
func (c *Client) User(ctx context.Context, id int) (*User, error) {
	var user User
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&user).
		Get("/users/" + strconv.Itoa(id))
	if err != nil {
		return nil, fmt.Errorf("fetching user %d: %w", id, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("fetching user %d: status %d: %s", id, resp.StatusCode(), resp.String())
	}
	return &user, nil
}

// ListIssues returns all project issues in the API's native list order.
func (c *Client) ListIssues(ctx context.Context, projectID int) ([]*Issue, error) {
	var all []*Issue
	err := c.listPages(ctx, fmt.Sprintf("/projects/%d/issues", projectID), func() any {
		return &[]*Issue{}
	}, func(page any) int {
		issues := *page.(*[]*Issue)
		all = append(all, issues...)
		return len(issues)
	})
	if err != nil {
		return nil, fmt.Errorf("listing issues: %w", err)
	}
	return all, nil
}

// ListMergeRequests returns all project merge requests in native list order.
func (c *Client) ListMergeRequests(ctx context.Context, projectID int) ([]*MergeRequest, error) {
	var all []*MergeRequest
	err := c.listPages(ctx, fmt.Sprintf("/projects/%d/merge_requests", projectID), func() any {
		return &[]*MergeRequest{}
	}, func(page any) int {
		mrs := *page.(*[]*MergeRequest)
		all = append(all, mrs...)
		return len(mrs)
	})
	if err != nil {
		return nil, fmt.Errorf("listing merge requests: %w", err)
	}
	return all, nil
}

// ListIssueNotes returns all notes on one issue, system notes included.
func (c *Client) ListIssueNotes(ctx context.Context, projectID, issueIID int) ([]*Note, error) {
	return c.listNotes(ctx, fmt.Sprintf("/projects/%d/issues/%d/notes", projectID, issueIID))
}

// ListMergeRequestNotes returns all notes on one merge request.
func (c *Client) ListMergeRequestNotes(ctx context.Context, projectID, mrIID int) ([]*Note, error) {
	return c.listNotes(ctx, fmt.Sprintf("/projects/%d/merge_requests/%d/notes", projectID, mrIID))
}

func (c *Client) listNotes(ctx context.Context, path string) ([]*Note, error) {
	var all []*Note
	err := c.listPages(ctx, path, func() any {
		return &[]*Note{}
	}, func(page any) int {
		notes := *page.(*[]*Note)
		all = append(all, notes...)
		return len(notes)
	})
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	return all, nil
}

// ListLabels returns all project labels.
func (c *Client) ListLabels(ctx context.Context, projectID int) ([]*Label, error) {
	var all []*Label
	err := c.listPages(ctx, fmt.Sprintf("/projects/%d/labels", projectID), func() any {
		return &[]*Label{}
	}, func(page any) int {
		labels := *page.(*[]*Label)
		all = append(all, labels...)
		return len(labels)
	})
	if err != nil {
		return nil, fmt.Errorf("listing labels: %w", err)
	}
	return all, nil
}

// ListMilestones returns all project milestones.
func (c *Client) ListMilestones(ctx context.Context, projectID int) ([]*Milestone, error) {
	var all []*Milestone
	err := c.listPages(ctx, fmt.Sprintf("/projects/%d/milestones", projectID), func() any {
		return &[]*Milestone{}
	}, func(page any) int {
		milestones := *page.(*[]*Milestone)
		all = append(all, milestones...)
		return len(milestones)
	})
	if err != nil {
		return nil, fmt.Errorf("listing milestones: %w", err)
	}
	return all, nil
}

// listPages walks page/per_page pagination until a short page. newPage
// allocates the result slice for one request; collect appends it and reports
// the page length.
func (c *Client) listPages(ctx context.Context, path string, newPage func() any, collect func(any) int) error {
	for page := 1; ; page++ {
		result := newPage()
		resp, err := c.rest.R().
			SetContext(ctx).
			SetQueryParam("page", strconv.Itoa(page)).
			SetQueryParam("per_page", strconv.Itoa(perPage)).
			SetResult(result).
			Get(path)
		if err != nil {
			return err
		}
		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode(), resp.String())
		}
		if collect(result) < perPage {
			return nil
		}
	}
}
