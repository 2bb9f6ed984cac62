// Package auth verifies Firebase ID tokens presented as bearer credentials and
// exposes the verified caller to huma operations.
package auth

import (
	"context"
	"errors"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
)

// SchemeName is the OpenAPI security scheme operations reference to require
// a bearer ID token.
const SchemeName = "firebaseIdToken"

// Caller is the identity proven by a verified ID token.
type Caller struct {
	UID   string
	Email string
}

var (
	ErrNoToken      = errors.New("missing authorization header")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")
	ErrUserDisabled = errors.New("user disabled")
	// ErrCertificateFetch means Google's signing keys could not be fetched;
	// the request is answered with 503.
	ErrCertificateFetch = errors.New("failed to fetch certificates")
)

// Verifier turns a raw ID token into a Caller.
type Verifier interface {
	Verify(ctx context.Context, idToken string) (*Caller, error)
}

// tokenChecker is the part of *fbauth.Client the verifier needs.
type tokenChecker interface {
	VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// IDTokenVerifier checks signature, expiry and revocation through the Admin SDK.
type IDTokenVerifier struct {
	client tokenChecker
}

func NewIDTokenVerifier(client *fbauth.Client) *IDTokenVerifier {
	return &IDTokenVerifier{client: client}
}

func (v *IDTokenVerifier) Verify(ctx context.Context, idToken string) (*Caller, error) {
	token, err := v.client.VerifyIDTokenAndCheckRevoked(ctx, idToken)
	if err != nil {
		return nil, classify(err)
	}
	email, _ := token.Claims["email"].(string)
	return &Caller{UID: token.UID, Email: email}, nil
}

func classify(err error) error {
	switch {
	case fbauth.IsCertificateFetchFailed(err):
		return ErrCertificateFetch
	case fbauth.IsIDTokenExpired(err):
		return ErrTokenExpired
	case fbauth.IsIDTokenRevoked(err):
		return ErrTokenRevoked
	case fbauth.IsUserDisabled(err):
		return ErrUserDisabled
	default:
		return ErrInvalidToken
	}
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrNoToken
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" || strings.ContainsAny(token, " \t") {
		return "", ErrInvalidToken
	}
	return token, nil
}

var _ Verifier = (*IDTokenVerifier)(nil)
