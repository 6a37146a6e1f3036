package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// MergeRequest represents a closed or merged GitLab merge request. Open merge
// requests are filtered out during extraction because GitHub cannot create a
// pull request in a pre-resolved state; terminal ones are kept for reference
// and summarized during import.
type MergeRequest struct {
	ID           int
	IID          int
	Title        string
	Description  string
	State        State
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ClosedAt     *time.Time
	MergedAt     *time.Time
	Author       *UserMapping
	Assignee     *UserMapping
	Labels       []string
	Milestone    string
	SourceBranch string
	TargetBranch string
	Comments     []*Comment
	GitLabURL    string
	SHA          string
}

// mergeRequestJSON is the JSON wire format for MergeRequest.
type mergeRequestJSON struct {
	ID           int          `json:"id"`
	IID          int          `json:"iid"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	State        string       `json:"state"`
	CreatedAt    string       `json:"created_at"`
	UpdatedAt    string       `json:"updated_at"`
	ClosedAt     *string      `json:"closed_at,omitempty"`
	MergedAt     *string      `json:"merged_at,omitempty"`
	Author       *UserMapping `json:"author"`
	Assignee     *UserMapping `json:"assignee,omitempty"`
	Labels       []string     `json:"labels"`
	Milestone    string       `json:"milestone,omitempty"`
	SourceBranch string       `json:"source_branch"`
	TargetBranch string       `json:"target_branch"`
	Comments     []*Comment   `json:"comments"`
	GitLabURL    string       `json:"gitlab_url"`
	SHA          string       `json:"sha,omitempty"`
}

// MarshalJSON implements custom JSON serialization for MergeRequest.
func (m MergeRequest) MarshalJSON() ([]byte, error) {
	j := mergeRequestJSON{
		ID:           m.ID,
		IID:          m.IID,
		Title:        m.Title,
		Description:  m.Description,
		State:        string(m.State),
		CreatedAt:    formatTime(m.CreatedAt),
		UpdatedAt:    formatTime(m.UpdatedAt),
		ClosedAt:     formatTimePtr(m.ClosedAt),
		MergedAt:     formatTimePtr(m.MergedAt),
		Author:       m.Author,
		Assignee:     m.Assignee,
		Labels:       m.Labels,
		Milestone:    m.Milestone,
		SourceBranch: m.SourceBranch,
		TargetBranch: m.TargetBranch,
		Comments:     m.Comments,
		GitLabURL:    m.GitLabURL,
		SHA:          m.SHA,
	}

	if j.Labels == nil {
		j.Labels = []string{}
	}
	if j.Comments == nil {
		j.Comments = []*Comment{}
	}

	return json.Marshal(j)
}

// UnmarshalJSON implements custom JSON deserialization for MergeRequest.
func (m *MergeRequest) UnmarshalJSON(data []byte) error {
	var j mergeRequestJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}

	m.ID = j.ID
	m.IID = j.IID
	m.Title = j.Title
	m.Description = j.Description
	m.State = State(j.State)
	m.Author = j.Author
	m.Assignee = j.Assignee
	m.Labels = j.Labels
	m.Milestone = j.Milestone
	m.SourceBranch = j.SourceBranch
	m.TargetBranch = j.TargetBranch
	m.Comments = j.Comments
	m.GitLabURL = j.GitLabURL
	m.SHA = j.SHA

	createdAt, err := parseTime(j.CreatedAt)
	if err != nil {
		return fmt.Errorf("parsing created_at: %w", err)
	}
	m.CreatedAt = createdAt

	updatedAt, err := parseTime(j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("parsing updated_at: %w", err)
	}
	m.UpdatedAt = updatedAt

	closedAt, err := parseTimePtr(j.ClosedAt)
	if err != nil {
		return fmt.Errorf("parsing closed_at: %w", err)
	}
	m.ClosedAt = closedAt

	mergedAt, err := parseTimePtr(j.MergedAt)
	if err != nil {
		return fmt.Errorf("parsing merged_at: %w", err)
	}
	m.MergedAt = mergedAt

	return nil
}
