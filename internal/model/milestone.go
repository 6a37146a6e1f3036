package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Milestone represents a project milestone. Title is the unique key used for
// the name-based join during import; DueDate keeps GitLab's date-only string
// verbatim and is parsed leniently at import time.
type Milestone struct {
	Title       string
	Description string
	State       State
	DueDate     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// milestoneJSON is the JSON wire format for Milestone.
type milestoneJSON struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	State       string `json:"state"`
	DueDate     string `json:"due_date,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// MarshalJSON implements custom JSON serialization for Milestone.
func (m Milestone) MarshalJSON() ([]byte, error) {
	return json.Marshal(milestoneJSON{
		Title:       m.Title,
		Description: m.Description,
		State:       string(m.State),
		DueDate:     m.DueDate,
		CreatedAt:   formatTime(m.CreatedAt),
		UpdatedAt:   formatTime(m.UpdatedAt),
	})
}

// UnmarshalJSON implements custom JSON deserialization for Milestone.
func (m *Milestone) UnmarshalJSON(data []byte) error {
	var j milestoneJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}

	m.Title = j.Title
	m.Description = j.Description
	m.State = State(j.State)
	m.DueDate = j.DueDate

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

	return nil
}
