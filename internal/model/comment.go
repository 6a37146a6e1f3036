package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Comment represents a non-system note on an issue or merge request. It
// belongs to exactly one parent record and is never shared.
type Comment struct {
	ID        int
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
	Author    *UserMapping
	GitLabURL string
}

// commentJSON is the JSON wire format for Comment.
type commentJSON struct {
	ID        int          `json:"id"`
	Body      string       `json:"body"`
	CreatedAt string       `json:"created_at"`
	UpdatedAt string       `json:"updated_at"`
	Author    *UserMapping `json:"author"`
	GitLabURL string       `json:"gitlab_url"`
}

// MarshalJSON implements custom JSON serialization for Comment.
func (c Comment) MarshalJSON() ([]byte, error) {
	return json.Marshal(commentJSON{
		ID:        c.ID,
		Body:      c.Body,
		CreatedAt: formatTime(c.CreatedAt),
		UpdatedAt: formatTime(c.UpdatedAt),
		Author:    c.Author,
		GitLabURL: c.GitLabURL,
	})
}

// UnmarshalJSON implements custom JSON deserialization for Comment.
func (c *Comment) UnmarshalJSON(data []byte) error {
	var j commentJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}

	c.ID = j.ID
	c.Body = j.Body
	c.Author = j.Author
	c.GitLabURL = j.GitLabURL

	createdAt, err := parseTime(j.CreatedAt)
	if err != nil {
		return fmt.Errorf("parsing created_at: %w", err)
	}
	c.CreatedAt = createdAt

	updatedAt, err := parseTime(j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("parsing updated_at: %w", err)
	}
	c.UpdatedAt = updatedAt

	return nil
}
