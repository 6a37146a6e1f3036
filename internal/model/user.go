package model

import "fmt"

// UserMapping represents one person across both hosting systems. The GitLab
// side is filled during extraction; the GitHub side is filled by the operator
// editing the user mapping file between export and import.
type UserMapping struct {
	GitLabUsername string `json:"gitlab_username"`
	GitLabID       int    `json:"gitlab_id"`
	GitHubUsername string `json:"github_username,omitempty"`
	GitHubID       int    `json:"github_id,omitempty"`
	FallbackName   string `json:"fallback_name,omitempty"`
	Email          string `json:"email,omitempty"`
}

// UserKey identifies a user for set deduplication. Both the GitLab username
// and numeric id participate so that a renamed or placeholder account never
// collides with a real one.
type UserKey struct {
	Username string
	ID       int
}

// Key returns the deduplication key for the mapping.
func (u *UserMapping) Key() UserKey {
	return UserKey{Username: u.GitLabUsername, ID: u.GitLabID}
}

// Mention resolves the display string used in provenance footers. A mapped
// GitHub username wins, then the fallback display name, then a literal
// GitLab attribution. A nil mapping renders as an anonymous attribution.
func (u *UserMapping) Mention() string {
	if u == nil {
		return "an unknown user"
	}
	if u.GitHubUsername != "" {
		return "@" + u.GitHubUsername
	}
	if u.FallbackName != "" {
		return u.FallbackName
	}
	return fmt.Sprintf("@%s (GitLab)", u.GitLabUsername)
}

// PlaceholderUser synthesizes a mapping for a user whose profile could not be
// fetched (deleted account, permission denied).
func PlaceholderUser(id int) *UserMapping {
	return &UserMapping{
		GitLabUsername: fmt.Sprintf("user_%d", id),
		GitLabID:       id,
		FallbackName:   fmt.Sprintf("Unknown User %d", id),
	}
}
