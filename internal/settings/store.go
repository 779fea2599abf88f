package settings

import "context"

// Store persists per-user voice profiles.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves the profile for a user. Returns (nil, nil) if the user
	// has no stored profile.
	Get(ctx context.Context, userID string) (*Profile, error)

	// Put creates or replaces the profile for a user.
	Put(ctx context.Context, userID string, p Profile) error
}
