// Package identity reconciles user identities across the two hosting
// systems: a per-run resolver that turns GitLab numeric ids into identity
// mappings, and the editable mapping file the operator fills in between
// export and import.
package identity

import (
	"context"

	"github.com/forgeport/forgeport/internal/gitlab"
	"github.com/forgeport/forgeport/internal/model"
	"github.com/forgeport/forgeport/internal/output"
)

// UserSource fetches user profiles from the source system.
type UserSource interface {
	User(ctx context.Context, id int) (*gitlab.User, error)
}

// Resolver maps GitLab numeric user ids to identity mappings. Lookups are
// cached for the lifetime of the run; profile data is assumed immutable for
// that long. One network read per distinct user, on cache miss only.
type Resolver struct {
	src   UserSource
	out   *output.Writer
	cache map[int]*model.UserMapping
}

// NewResolver creates a resolver backed by src.
func NewResolver(src UserSource, out *output.Writer) *Resolver {
	return &Resolver{
		src:   src,
		out:   out,
		cache: make(map[int]*model.UserMapping),
	}
}

// Resolve returns the identity mapping for a GitLab user id. When the profile
// cannot be fetched (deleted account, permission denied) a placeholder
// mapping is synthesized instead of failing the extraction; the placeholder
// is cached like any other result so the warning fires once per user.
func (r *Resolver) Resolve(ctx context.Context, id int) *model.UserMapping {
	if mapping, ok := r.cache[id]; ok {
		return mapping
	}

	var mapping *model.UserMapping
	user, err := r.src.User(ctx, id)
	if err != nil {
		r.out.Warn("could not fetch user %d: %v", id, err)
		mapping = model.PlaceholderUser(id)
	} else {
		mapping = &model.UserMapping{
			GitLabUsername: user.Username,
			GitLabID:       user.ID,
			FallbackName:   user.Name,
			Email:          user.Email,
		}
	}

	r.cache[id] = mapping
	return mapping
}
