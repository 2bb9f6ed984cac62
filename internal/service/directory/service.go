// Package directory is the authoritative profile copy kept next to the
// identity provider: one Firestore document per user id holding the name and
// email given at registration.
package directory

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get for an unknown id and by List when
	// nothing matches.
	ErrNotFound = errors.New("profile not found")
	// ErrStorage wraps any failure of the backing store.
	ErrStorage = errors.New("profile directory storage failure")
)

// Record is what gets stored for a user.
type Record struct {
	Name  string
	Email string
}

// Profile is a stored record together with its id.
type Profile struct {
	ID    string
	Name  string
	Email string
}

// Filter narrows List. An empty Name matches every profile.
type Filter struct {
	Name string
}

// Service stores and queries profiles.
type Service interface {
	// Upsert creates or fully replaces the profile stored under id.
	Upsert(ctx context.Context, id string, rec Record) error
	Get(ctx context.Context, id string) (*Profile, error)
	List(ctx context.Context, filter Filter) ([]Profile, error)
}
