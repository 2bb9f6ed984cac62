// Package identity talks to Firebase Authentication: email/password sign-up
// and sign-in over the Identity Toolkit REST API, and password reset links,
// custom tokens and account deletion through the Admin SDK.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUpstreamAuth is the sentinel behind every *UpstreamError.
	ErrUpstreamAuth = errors.New("identity provider rejected the request")
	// ErrUnavailable means the provider could not be reached or answered
	// with something other than a provider error.
	ErrUnavailable = errors.New("identity provider unavailable")
)

// UpstreamError carries the provider's error code, e.g. EMAIL_EXISTS or
// INVALID_PASSWORD.
type UpstreamError struct {
	Code    string
	Message string
	Status  int
}

func (e *UpstreamError) Error() string {
	if e.Message != "" && e.Message != e.Code {
		return fmt.Sprintf("identity provider: %s (%s)", e.Code, e.Message)
	}
	return "identity provider: " + e.Code
}

func (e *UpstreamError) Unwrap() error { return ErrUpstreamAuth }

// Session is the result of a successful sign-up or sign-in.
type Session struct {
	UserID       string
	Email        string
	IDToken      string
	RefreshToken string
	ExpiresIn    time.Duration
}

// Service is everything the rest of the server needs from the provider.
type Service interface {
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	PasswordResetLink(ctx context.Context, email string) (string, error)
	CustomToken(ctx context.Context, uid string, claims map[string]any) (string, error)
	DeleteUser(ctx context.Context, uid string) error
}
