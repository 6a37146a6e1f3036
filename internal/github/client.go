// Package github implements the destination repository handle: a REST client
// for the GitHub v3 API covering label/milestone/issue creation and the rate
// limit probe. Every mutating call is expected to run under the retry layer.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const perPage = 100

// ErrNotFound signals a 404 on a lookup. For lookup-before-create calls it is
// expected control flow, not a failure.
var ErrNotFound = errors.New("github: not found")

// ErrRateLimited signals that GitHub rejected the call for quota reasons
// (429, or 403 with an exhausted rate limit). The retry layer treats it as
// transient.
var ErrRateLimited = errors.New("github: rate limited")

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("github: status %d: %s", e.StatusCode, e.Body)
}

// Client talks to one GitHub repository with a token.
type Client struct {
	rest *resty.Client
	repo string // owner/name
}

// User is the authenticated GitHub user.
type User struct {
	Login string `json:"login"`
	ID    int    `json:"id"`
}

// Repo is a GitHub repository.
type Repo struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
}

// Label is a GitHub label handle.
type Label struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Milestone is a GitHub milestone handle. Number is what issue creation
// references.
type Milestone struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state"`
}

// Issue is a created GitHub issue.
type Issue struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
	State   string `json:"state"`
}

// RateLimit is the core rate limit status.
type RateLimit struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// New creates a client for the repository fullName ("owner/name") on the API
// at baseURL (https://api.github.com for github.com).
func New(baseURL, token, fullName string, timeout time.Duration) *Client {
	rest := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token).
		SetHeader("Accept", "application/vnd.github+json").
		SetTimeout(timeout)

	return &Client{rest: rest, repo: fullName}
}

// FullName returns the owner/name this client is bound to.
func (c *Client) FullName() string {
	return c.repo
}

// classify maps a response to the package error taxonomy. A nil return means
// the call succeeded.
func classify(resp *resty.Response) error {
	code := resp.StatusCode()
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code == http.StatusForbidden && resp.Header().Get("X-RateLimit-Remaining") == "0":
		return ErrRateLimited
	default:
		return &StatusError{StatusCode: code, Body: resp.String()}
	}
}

// Auth verifies the token by fetching the authenticated user.
func (c *Client) Auth(ctx context.Context) (*User, error) {
	var user User
	resp, err := c.rest.R().SetContext(ctx).SetResult(&user).Get("/user")
	if err != nil {
		return nil, fmt.Errorf("github auth: %w", err)
	}
	if err := classify(resp); err != nil {
		return nil, fmt.Errorf("github auth: %w", err)
	}
	return &user, nil
}

// GetRepo fetches the bound repository.
func (c *Client) GetRepo(ctx context.Context) (*Repo, error) {
	var repo Repo
	resp, err := c.rest.R().SetContext(ctx).SetResult(&repo).Get("/repos/" + c.repo)
	if err != nil {
		return nil, fmt.Errorf("fetching repository %s: %w", c.repo, err)
	}
	if err := classify(resp); err != nil {
		return nil, fmt.Errorf("fetching repository %s: %w", c.repo, err)
	}
	return &repo, nil
}

// HasCommits reports whether the repository has any commit history. GitHub
// answers 409 for a repository with no commits.
func (c *Client) HasCommits(ctx context.Context) (bool, error) {
	var commits []struct {
		SHA string `json:"sha"`
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("per_page", "1").
		SetResult(&commits).
		Get("/repos/" + c.repo + "/commits")
	if err != nil {
		return false, fmt.Errorf("listing commits: %w", err)
	}
	if resp.StatusCode() == http.StatusConflict {
		return false, nil
	}
	if err := classify(resp); err != nil {
		return false, fmt.Errorf("listing commits: %w", err)
	}
	return len(commits) > 0, nil
}

// GetLabel looks a label up by name. Returns ErrNotFound when absent.
func (c *Client) GetLabel(ctx context.Context, name string) (*Label, error) {
	var label Label
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&label).
		Get("/repos/" + c.repo + "/labels/" + url.PathEscape(name))
	if err != nil {
		return nil, fmt.Errorf("fetching label %q: %w", name, err)
	}
	if err := classify(resp); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetching label %q: %w", name, err)
	}
	return &label, nil
}

// CreateLabel creates a label. Color is 6 hex digits without "#".
func (c *Client) CreateLabel(ctx context.Context, name, color, description string) (*Label, error) {
	var label Label
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"name":        name,
			"color":       color,
			"description": description,
		}).
		SetResult(&label).
		Post("/repos/" + c.repo + "/labels")
	if err != nil {
		return nil, fmt.Errorf("creating label %q: %w", name, err)
	}
	if err := classify(resp); err != nil {
		return nil, fmt.Errorf("creating label %q: %w", name, err)
	}
	return &label, nil
}

// ListMilestones returns every milestone regardless of state.
func (c *Client) ListMilestones(ctx context.Context) ([]*Milestone, error) {
	var all []*Milestone
	for page := 1; ; page++ {
		var batch []*Milestone
		resp, err := c.rest.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"state":    "all",
				"page":     strconv.Itoa(page),
				"per_page": strconv.Itoa(perPage),
			}).
			SetResult(&batch).
			Get("/repos/" + c.repo + "/milestones")
		if err != nil {
			return nil, fmt.Errorf("listing milestones: %w", err)
		}
		if err := classify(resp); err != nil {
			return nil, fmt.Errorf("listing milestones: %w", err)
		}
		all = append(all, batch...)
		if len(batch) < perPage {
			return all, nil
		}
	}
}

// CreateMilestone creates a milestone. dueOn may be nil; state is "open" or
// "closed".
func (c *Client) CreateMilestone(ctx context.Context, title, description, state string, dueOn *time.Time) (*Milestone, error) {
	body := map[string]any{
		"title":       title,
		"description": description,
		"state":       state,
	}
	if dueOn != nil {
		body["due_on"] = dueOn.UTC().Format(time.RFC3339)
	}

	var milestone Milestone
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&milestone).
		Post("/repos/" + c.repo + "/milestones")
	if err != nil {
		return nil, fmt.Errorf("creating milestone %q: %w", title, err)
	}
	if err := classify(resp); err != nil {
		return nil, fmt.Errorf("creating milestone %q: %w", title, err)
	}
	return &milestone, nil
}

// CreateIssue creates an issue. labels are label names that must already
// exist; milestone is a milestone number, 0 for none.
func (c *Client) CreateIssue(ctx context.Context, title, body string, labels []string, milestone int) (*Issue, error) {
	payload := map[string]any{
		"title": title,
		"body":  body,
	}
	if len(labels) > 0 {
		payload["labels"] = labels
	}
	if milestone > 0 {
		payload["milestone"] = milestone
	}

	var issue Issue
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&issue).
		Post("/repos/" + c.repo + "/issues")
	if err != nil {
		return nil, fmt.Errorf("creating issue %q: %w", title, err)
	}
	if err := classify(resp); err != nil {
		return nil, fmt.Errorf("creating issue %q: %w", title, err)
	}
	return &issue, nil
}

// EditIssueState transitions an issue to "open" or "closed".
func (c *Client) EditIssueState(ctx context.Context, number int, state string) error {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(map[string]string{"state": state}).
		Patch(fmt.Sprintf("/repos/%s/issues/%d", c.repo, number))
	if err != nil {
		return fmt.Errorf("editing issue #%d state: %w", number, err)
	}
	if err := classify(resp); err != nil {
		return fmt.Errorf("editing issue #%d state: %w", number, err)
	}
	return nil
}

// CreateComment adds a comment to an issue.
func (c *Client) CreateComment(ctx context.Context, number int, body string) error {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(map[string]string{"body": body}).
		Post(fmt.Sprintf("/repos/%s/issues/%d/comments", c.repo, number))
	if err != nil {
		return fmt.Errorf("commenting on issue #%d: %w", number, err)
	}
	if err := classify(resp); err != nil {
		return fmt.Errorf("commenting on issue #%d: %w", number, err)
	}
	return nil
}

// RateLimit fetches the current core rate limit status.
func (c *Client) RateLimit(ctx context.Context) (*RateLimit, error) {
	var out struct {
		Resources struct {
			Core struct {
				Limit     int   `json:"limit"`
				Remaining int   `json:"remaining"`
				Reset     int64 `json:"reset"`
			} `json:"core"`
		} `json:"resources"`
	}
	resp, err := c.rest.R().SetContext(ctx).SetResult(&out).Get("/rate_limit")
	if err != nil {
		return nil, fmt.Errorf("fetching rate limit: %w", err)
	}
	if err := classify(resp); err != nil {
		return nil, fmt.Errorf("fetching rate limit: %w", err)
	}
	return &RateLimit{
		Limit:     out.Resources.Core.Limit,
		Remaining: out.Resources.Core.Remaining,
		Reset:     time.Unix(out.Resources.Core.Reset, 0),
	}, nil
}

// IsTransient reports whether an error is worth retrying: rate limiting,
// server-side failures, and transport errors. Client errors (404, validation)
// are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	if errors.Is(err, ErrNotFound) {
		return false
	}
	// Anything that is not an HTTP status outcome is a transport-level
	// failure (timeout, connection reset) and is retryable.
	return true
}
