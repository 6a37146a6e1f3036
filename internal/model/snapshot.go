package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotVersion is the wire format version of the snapshot file.
const SnapshotVersion = 1

// ProjectInfo identifies the source project and destination repository of a
// transfer run.
type ProjectInfo struct {
	GitLabID   int
	GitLabName string
	GitLabURL  string
	GitHubRepo string
	ExportedAt time.Time
}

// projectInfoJSON is the JSON wire format for ProjectInfo.
type projectInfoJSON struct {
	GitLabID   int    `json:"gitlab_id"`
	GitLabName string `json:"gitlab_name"`
	GitLabURL  string `json:"gitlab_url"`
	GitHubRepo string `json:"github_repo,omitempty"`
	ExportedAt string `json:"export_timestamp"`
}

// MarshalJSON implements custom JSON serialization for ProjectInfo.
func (p ProjectInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(projectInfoJSON{
		GitLabID:   p.GitLabID,
		GitLabName: p.GitLabName,
		GitLabURL:  p.GitLabURL,
		GitHubRepo: p.GitHubRepo,
		ExportedAt: formatTime(p.ExportedAt),
	})
}

// UnmarshalJSON implements custom JSON deserialization for ProjectInfo.
func (p *ProjectInfo) UnmarshalJSON(data []byte) error {
	var j projectInfoJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}

	p.GitLabID = j.GitLabID
	p.GitLabName = j.GitLabName
	p.GitLabURL = j.GitLabURL
	p.GitHubRepo = j.GitHubRepo

	exportedAt, err := parseTime(j.ExportedAt)
	if err != nil {
		return fmt.Errorf("parsing export_timestamp: %w", err)
	}
	p.ExportedAt = exportedAt

	return nil
}

// Snapshot is the serialized aggregate handed from extraction to import. It
// is append-only: import reads it and never mutates it.
type Snapshot struct {
	Version       int             `json:"version"`
	Project       ProjectInfo     `json:"project_info"`
	Issues        []*Issue        `json:"issues"`
	MergeRequests []*MergeRequest `json:"merge_requests"`
	Labels        []*Label        `json:"labels"`
	Milestones    []*Milestone    `json:"milestones"`
}

// Users returns the deduplicated identity mappings referenced anywhere in the
// snapshot (authors, assignees, comment authors), in first-reference order.
func (s *Snapshot) Users() []*UserMapping {
	seen := make(map[UserKey]bool)
	var users []*UserMapping

	add := func(u *UserMapping) {
		if u == nil || seen[u.Key()] {
			return
		}
		seen[u.Key()] = true
		users = append(users, u)
	}

	for _, issue := range s.Issues {
		add(issue.Author)
		for _, a := range issue.Assignees {
			add(a)
		}
		for _, c := range issue.Comments {
			add(c.Author)
		}
	}
	for _, mr := range s.MergeRequests {
		add(mr.Author)
		add(mr.Assignee)
		for _, c := range mr.Comments {
			add(c.Author)
		}
	}

	return users
}

// Correlation records where one source issue ended up on the destination,
// suitable for post-transfer audit.
type Correlation struct {
	GitLabID     int    `json:"gitlab_id"`
	GitLabIID    int    `json:"gitlab_iid"`
	GitHubNumber int    `json:"github_number"`
	GitHubURL    string `json:"github_url"`
}
