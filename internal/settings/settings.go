// Package settings resolves the voice profile to use for a comment by
// merging inline comment settings with the commenter's persisted profile.
//
// Merging is field-wise with a fixed precedence: inline value, then stored
// value, then default. Numeric fields use pointers throughout so that an
// explicit value of zero is distinguishable from "not supplied".
package settings

import (
	"context"
	"log/slog"

	"github.com/hikaline/kanade/internal/comment"
)

// DefaultVoice is the speaker used when neither the comment nor the stored
// profile selects one.
const DefaultVoice = 2

// Profile is the sparse per-user voice profile as persisted. All fields are
// optional; nil means the user never set the field. Profiles are created on
// first write and updated in place, never deleted here.
type Profile struct {
	Name  string `json:"name,omitempty"`
	Voice *int   `json:"voice,omitempty"`
	Skin  *int   `json:"skin,omitempty"`
	Font  *int   `json:"font,omitempty"`
	Sound *int   `json:"sound,omitempty"`
}

// Resolved is the effective settings for one comment, with defaults applied.
// It is computed per comment and never stored.
type Resolved struct {
	Name  string
	Voice int
	Skin  *int
	Font  *int
	Sound *int
}

// Resolver merges inline and stored settings and decides when to write the
// profile back. Safe for concurrent use when the underlying store is.
type Resolver struct {
	store        Store
	defaultVoice int
}

// Option configures a [Resolver].
type Option func(*Resolver)

// WithDefaultVoice overrides the fallback speaker ID.
func WithDefaultVoice(id int) Option {
	return func(r *Resolver) { r.defaultVoice = id }
}

// NewResolver creates a Resolver backed by store.
func NewResolver(store Store, opts ...Option) *Resolver {
	r := &Resolver{store: store, defaultVoice: DefaultVoice}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve computes the effective settings for one comment and persists the
// merged profile when the comment carried at least one inline field. It
// reports whether a profile write happened.
//
// Store failures are logged and degrade gracefully: a failed read resolves
// against defaults only, a failed write is reported as no write. Resolve
// itself never fails.
func (r *Resolver) Resolve(ctx context.Context, userID string, pc comment.ParsedComment) (Resolved, bool) {
	var current *Profile
	if userID != "" {
		p, err := r.store.Get(ctx, userID)
		if err != nil {
			slog.Warn("settings: profile read failed, using defaults",
				"user_id", userID, "err", err)
		} else {
			current = p
		}
	}

	res := r.merge(pc, current)

	wrote := false
	if userID != "" {
		wrote = r.MaybePersist(ctx, userID, pc, current)
	}
	return res, wrote
}

// MaybePersist writes the merged profile iff the comment supplied at least
// one inline field, and reports whether a write occurred. Each field of the
// written profile is the inline value when present, else the previously
// stored value, so an unrelated inline update never erases a saved field.
func (r *Resolver) MaybePersist(ctx context.Context, userID string, pc comment.ParsedComment, current *Profile) bool {
	if !pc.HasInlineSettings() {
		return false
	}

	merged := Profile{}
	if current != nil {
		merged = *current
	}
	if pc.Name != "" {
		merged.Name = pc.Name
	}
	if pc.Voice != nil {
		merged.Voice = pc.Voice
	}
	if pc.Skin != nil {
		merged.Skin = pc.Skin
	}
	if pc.Font != nil {
		merged.Font = pc.Font
	}

	if err := r.store.Put(ctx, userID, merged); err != nil {
		slog.Warn("settings: profile write failed",
			"user_id", userID, "err", err)
		return false
	}
	return true
}

// merge applies the inline > stored > default precedence field by field.
func (r *Resolver) merge(pc comment.ParsedComment, current *Profile) Resolved {
	res := Resolved{Voice: r.defaultVoice}
	if current != nil {
		res.Name = current.Name
		if current.Voice != nil {
			res.Voice = *current.Voice
		}
		res.Skin = current.Skin
		res.Font = current.Font
		res.Sound = current.Sound
	}
	if pc.Name != "" {
		res.Name = pc.Name
	}
	if pc.Voice != nil {
		res.Voice = *pc.Voice
	}
	if pc.Skin != nil {
		res.Skin = pc.Skin
	}
	if pc.Font != nil {
		res.Font = pc.Font
	}
	return res
}
