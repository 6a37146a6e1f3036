package model

// DefaultLabelColor is used when the source label has no color set.
const DefaultLabelColor = "ffffff"

// Label represents a project label. Name is the unique, case-sensitive key;
// color is a 6-hex-digit string without the leading "#".
type Label struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color"`
}
