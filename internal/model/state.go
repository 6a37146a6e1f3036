package model

// State represents the lifecycle state of an issue or merge request as
// reported by GitLab.
type State string

const (
	StateOpened State = "opened"
	StateClosed State = "closed"
	StateMerged State = "merged"
)

// Terminal reports whether the state is closed or merged. Only terminal merge
// requests survive extraction: GitHub cannot create a pull request that is
// already resolved.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateMerged
}
