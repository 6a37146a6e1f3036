package identity

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/forgeport/forgeport/internal/model"
)

// mappingEntry is the on-disk shape of one user. Unlike the snapshot wire
// format it always writes github_username and github_id, so the operator sees
// the blank fields they are expected to fill in.
type mappingEntry struct {
	GitLabUsername string `json:"gitlab_username"`
	GitLabID       int    `json:"gitlab_id"`
	GitHubUsername string `json:"github_username"`
	GitHubID       int    `json:"github_id"`
	FallbackName   string `json:"fallback_name,omitempty"`
	Email          string `json:"email,omitempty"`
}

// SaveMappingFile writes the editable user mapping file. Entries are keyed by
// GitLab username; github_username is the field the operator is expected to
// fill in before import.
func SaveMappingFile(path string, users []*model.UserMapping) error {
	entries := make(map[string]mappingEntry, len(users))
	for _, u := range users {
		entries[u.GitLabUsername] = mappingEntry{
			GitLabUsername: u.GitLabUsername,
			GitLabID:       u.GitLabID,
			GitHubUsername: u.GitHubUsername,
			GitHubID:       u.GitHubID,
			FallbackName:   u.FallbackName,
			Email:          u.Email,
		}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding user mappings: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing user mapping file: %w", err)
	}
	return nil
}

// LoadMappingFile reads the (possibly hand-edited) user mapping file.
func LoadMappingFile(path string) (map[string]*model.UserMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading user mapping file: %w", err)
	}

	var entries map[string]*model.UserMapping
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing user mapping file: %w", err)
	}
	return entries, nil
}

// Apply merges edited mappings into every identity embedded in the snapshot:
// authors, assignees, and comment authors. The snapshot's GitLab-side fields
// are authoritative; only the destination-side fields are taken from the
// edited file. Returns the number of identities that gained a GitHub
// username.
func Apply(snap *model.Snapshot, mappings map[string]*model.UserMapping) int {
	if len(mappings) == 0 {
		return 0
	}

	resolved := 0
	forEachUser(snap, func(u *model.UserMapping) {
		edited, ok := mappings[u.GitLabUsername]
		if !ok || edited.GitHubUsername == "" {
			return
		}
		if u.GitHubUsername == "" {
			resolved++
		}
		u.GitHubUsername = edited.GitHubUsername
		u.GitHubID = edited.GitHubID
	})
	return resolved
}

// forEachUser visits every identity mapping referenced by the snapshot. After
// deserialization each reference is a distinct object, so the walk must touch
// all of them, not just the deduplicated set.
func forEachUser(snap *model.Snapshot, visit func(*model.UserMapping)) {
	maybe := func(u *model.UserMapping) {
		if u != nil {
			visit(u)
		}
	}

	for _, issue := range snap.Issues {
		maybe(issue.Author)
		for _, a := range issue.Assignees {
			maybe(a)
		}
		for _, c := range issue.Comments {
			maybe(c.Author)
		}
	}
	for _, mr := range snap.MergeRequests {
		maybe(mr.Author)
		maybe(mr.Assignee)
		for _, c := range mr.Comments {
			maybe(c.Author)
		}
	}
}
