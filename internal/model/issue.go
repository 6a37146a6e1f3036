package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Issue represents a GitLab issue with all metadata needed to recreate it on
// GitHub. Records are owned by the transfer run and immutable once extracted.
type Issue struct {
	ID          int
	IID         int
	Title       string
	Description string
	State       State
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ClosedAt    *time.Time
	Author      *UserMapping
	Assignees   []*UserMapping
	Labels      []string
	Milestone   string // milestone title; empty means none
	Comments    []*Comment
	GitLabURL   string
}

// issueJSON is the JSON wire format for Issue.
type issueJSON struct {
	ID          int            `json:"id"`
	IID         int            `json:"iid"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	State       string         `json:"state"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
	ClosedAt    *string        `json:"closed_at,omitempty"`
	Author      *UserMapping   `json:"author"`
	Assignees   []*UserMapping `json:"assignees"`
	Labels      []string       `json:"labels"`
	Milestone   string         `json:"milestone,omitempty"`
	Comments    []*Comment     `json:"comments"`
	GitLabURL   string         `json:"gitlab_url"`
}

// MarshalJSON implements custom JSON serialization for Issue.
func (i Issue) MarshalJSON() ([]byte, error) {
	j := issueJSON{
		ID:          i.ID,
		IID:         i.IID,
		Title:       i.Title,
		Description: i.Description,
		State:       string(i.State),
		CreatedAt:   formatTime(i.CreatedAt),
		UpdatedAt:   formatTime(i.UpdatedAt),
		ClosedAt:    formatTimePtr(i.ClosedAt),
		Author:      i.Author,
		Assignees:   i.Assignees,
		Labels:      i.Labels,
		Milestone:   i.Milestone,
		Comments:    i.Comments,
		GitLabURL:   i.GitLabURL,
	}

	// Nil slices become empty arrays so the snapshot file is stable.
	if j.Assignees == nil {
		j.Assignees = []*UserMapping{}
	}
	if j.Labels == nil {
		j.Labels = []string{}
	}
	if j.Comments == nil {
		j.Comments = []*Comment{}
	}

	return json.Marshal(j)
}

// UnmarshalJSON implements custom JSON deserialization for Issue.
func (i *Issue) UnmarshalJSON(data []byte) error {
	var j issueJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}

	i.ID = j.ID
	i.IID = j.IID
	i.Title = j.Title
	i.Description = j.Description
	i.State = State(j.State)
	i.Author = j.Author
	i.Assignees = j.Assignees
	i.Labels = j.Labels
	i.Milestone = j.Milestone
	i.Comments = j.Comments
	i.GitLabURL = j.GitLabURL

	createdAt, err := parseTime(j.CreatedAt)
	if err != nil {
		return fmt.Errorf("parsing created_at: %w", err)
	}
	i.CreatedAt = createdAt

	updatedAt, err := parseTime(j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("parsing updated_at: %w", err)
	}
	i.UpdatedAt = updatedAt

	closedAt, err := parseTimePtr(j.ClosedAt)
	if err != nil {
		return fmt.Errorf("parsing closed_at: %w", err)
	}
	i.ClosedAt = closedAt

	return nil
}
