// Package account runs the user-facing flows: registration fans out to the
// identity provider, the profile directory and the local mirror; login, reset
// and token issuance go to the provider only.
package account

import (
	"context"
	"errors"
	"strings"

	"github.com/janisto/identity-gateway/internal/service/directory"
	"github.com/janisto/identity-gateway/internal/service/identity"
	"github.com/janisto/identity-gateway/internal/service/localstore"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrStorage means the user was not fully persisted: the directory write
	// failed after retries, or the local mirror append failed.
	ErrStorage = errors.New("failed to store user profile")
)

// ValidationError is a request that was rejected before any I/O.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// RegisterParams are the registration fields. All are required.
type RegisterParams struct {
	Email    string
	Password string
	Name     string
}

// LoginParams are the sign-in fields. Both are required.
type LoginParams struct {
	Email    string
	Password string
}

// UserProfile is a registered user with the session token from sign-up.
type UserProfile struct {
	ID    string
	Email string
	Name  string
	Token string
}

// LocalStore is the optional local mirror.
type LocalStore interface {
	Append(ctx context.Context, p localstore.UserProfile) error
}

// Orchestrator is what the HTTP layer calls.
type Orchestrator interface {
	Register(ctx context.Context, params RegisterParams) (*UserProfile, error)
	Login(ctx context.Context, params LoginParams) (*identity.Session, error)
	List(ctx context.Context, name string) ([]directory.Profile, error)
	ResetPassword(ctx context.Context, email string) (string, error)
	CustomToken(ctx context.Context, uid string) (string, error)
	Me(ctx context.Context, uid string) (*directory.Profile, error)
}

// blank is the presence check for emails, names and uids. Passwords are
// opaque and only missing when empty.
func blank(s string) bool { return strings.TrimSpace(s) == "" }
