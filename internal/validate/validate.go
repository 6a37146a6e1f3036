// Package validate runs the pre-flight checks a transfer must pass before any
// write happens: both sides reachable, the destination plausible, and the
// source enumerable.
package validate

import (
	"context"
	"fmt"
	"strings"

	"github.com/forgeport/forgeport/internal/github"
	"github.com/forgeport/forgeport/internal/gitlab"
)

// Check severities. Blocking checks stop the transfer; warnings require
// operator confirmation.
const (
	SeverityPass     = "pass"
	SeverityWarning  = "warning"
	SeverityBlocking = "blocking"
)

// Check is one validation result.
type Check struct {
	Name     string `json:"name"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

// Report is the outcome of a validation run.
type Report struct {
	Checks []Check        `json:"checks"`
	Counts map[string]int `json:"counts"`

	// Project is the resolved source project, nil when the source check
	// failed. Callers reuse it to avoid a second lookup.
	Project *gitlab.Project `json:"-"`
}

// Blocking reports whether any check failed hard.
func (r *Report) Blocking() bool {
	for _, c := range r.Checks {
		if c.Severity == SeverityBlocking {
			return true
		}
	}
	return false
}

// Warnings counts non-blocking findings.
func (r *Report) Warnings() int {
	n := 0
	for _, c := range r.Checks {
		if c.Severity == SeverityWarning {
			n++
		}
	}
	return n
}

// Source is the source-side surface validation probes.
type Source interface {
	Auth(ctx context.Context) (*gitlab.User, error)
	Project(ctx context.Context, path string) (*gitlab.Project, error)
	ListIssues(ctx context.Context, projectID int) ([]*gitlab.Issue, error)
	ListMergeRequests(ctx context.Context, projectID int) ([]*gitlab.MergeRequest, error)
	ListLabels(ctx context.Context, projectID int) ([]*gitlab.Label, error)
	ListMilestones(ctx context.Context, projectID int) ([]*gitlab.Milestone, error)
}

// Destination is the destination-side surface validation probes.
type Destination interface {
	FullName() string
	Auth(ctx context.Context) (*github.User, error)
	GetRepo(ctx context.Context) (*github.Repo, error)
	HasCommits(ctx context.Context) (bool, error)
}

// Validator runs the pre-flight checks.
type Validator struct {
	src Source
	dst Destination
}

// New creates a validator over both project handles.
func New(src Source, dst Destination) *Validator {
	return &Validator{src: src, dst: dst}
}

// Run executes every check and returns the report. Network failures surface
// as blocking checks rather than errors so the report is always complete.
func (v *Validator) Run(ctx context.Context, projectPath string) *Report {
	report := &Report{Counts: make(map[string]int)}
	add := func(name, severity, detail string) {
		report.Checks = append(report.Checks, Check{Name: name, Severity: severity, Detail: detail})
	}

	srcUser, err := v.src.Auth(ctx)
	if err != nil {
		add("source authentication", SeverityBlocking, err.Error())
	} else {
		add("source authentication", SeverityPass, "authenticated as "+srcUser.Username)
	}

	project, err := v.src.Project(ctx, projectPath)
	if err != nil {
		add("source project", SeverityBlocking, err.Error())
	} else {
		report.Project = project
		add("source project", SeverityPass, project.PathWithNamespace)
	}

	dstUser, err := v.dst.Auth(ctx)
	if err != nil {
		add("destination authentication", SeverityBlocking, err.Error())
	} else {
		add("destination authentication", SeverityPass, "authenticated as "+dstUser.Login)
	}

	repo, err := v.dst.GetRepo(ctx)
	if err != nil {
		add("destination repository", SeverityBlocking, err.Error())
	} else {
		add("destination repository", SeverityPass, repo.FullName)
	}

	if project != nil && repo != nil {
		if namesSimilar(project.PathWithNamespace, repo.Name) {
			add("name similarity", SeverityPass, "source and destination names match")
		} else {
			add("name similarity", SeverityWarning,
				fmt.Sprintf("source %q and destination %q look unrelated, confirm the target", project.PathWithNamespace, repo.Name))
		}
	}

	if repo != nil {
		hasCommits, err := v.dst.HasCommits(ctx)
		switch {
		case err != nil:
			add("destination history", SeverityWarning, "could not check commit history: "+err.Error())
		case !hasCommits:
			add("destination history", SeverityWarning, "repository has no commits, was the code pushed first?")
		default:
			add("destination history", SeverityPass, "repository has commit history")
		}
	}

	if project != nil {
		v.countCategories(ctx, project.ID, report, add)
	}

	return report
}

// countCategories enumerates every source category. A category that cannot be
// listed blocks the transfer; an entirely empty project is only a warning.
func (v *Validator) countCategories(ctx context.Context, projectID int, report *Report, add func(name, severity, detail string)) {
	count := func(name string, n int, err error) {
		if err != nil {
			add("source "+name, SeverityBlocking, err.Error())
			return
		}
		report.Counts[name] = n
		add("source "+name, SeverityPass, fmt.Sprintf("%d found", n))
	}

	issues, err := v.src.ListIssues(ctx, projectID)
	count("issues", len(issues), err)
	mrs, err := v.src.ListMergeRequests(ctx, projectID)
	count("merge requests", len(mrs), err)
	labels, err := v.src.ListLabels(ctx, projectID)
	count("labels", len(labels), err)
	milestones, err := v.src.ListMilestones(ctx, projectID)
	count("milestones", len(milestones), err)

	total := 0
	for _, n := range report.Counts {
		total += n
	}
	if len(report.Counts) == 4 && total == 0 {
		add("source content", SeverityWarning, "project has no metadata to transfer")
	}
}

// namesSimilar compares the last path segment of the source project with the
// destination repository name, case-insensitively, accepting containment in
// either direction.
func namesSimilar(projectPath, repoName string) bool {
	segs := strings.Split(projectPath, "/")
	src := strings.ToLower(segs[len(segs)-1])
	dst := strings.ToLower(repoName)
	return src == dst || strings.Contains(src, dst) || strings.Contains(dst, src)
}
