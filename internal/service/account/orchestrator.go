package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/janisto/identity-gateway/internal/platform/logging"
	"github.com/janisto/identity-gateway/internal/service/directory"
	"github.com/janisto/identity-gateway/internal/service/identity"
	"github.com/janisto/identity-gateway/internal/service/localstore"
)

const defaultDirectoryAttempts = 3

// customTokenClaims are attached to every issued custom token.
var customTokenClaims = map[string]any{"role": "user"}

// Service implements Orchestrator.
type Service struct {
	identity   identity.Service
	directory  directory.Service
	local      LocalStore
	attempts   uint
	newBackOff func() backoff.BackOff
}

// Option configures a Service.
type Option func(*Service)

// WithLocalStore enables the local mirror.
func WithLocalStore(ls LocalStore) Option {
	return func(s *Service) { s.local = ls }
}

// WithDirectoryAttempts caps how many times a directory write is tried.
func WithDirectoryAttempts(n uint) Option {
	return func(s *Service) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// WithBackOff replaces the wait policy between directory attempts.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(s *Service) { s.newBackOff = fn }
}

func New(id identity.Service, dir directory.Service, opts ...Option) *Service {
	s := &Service{
		identity:  id,
		directory: dir,
		attempts:  defaultDirectoryAttempts,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates the provider account, then the directory profile, then
// the local mirror entry.
//
// A directory write that still fails after retries leaves an account with no
// profile. The account is deleted again; if that also fails the orphan is
// recorded in the audit log. Either way the caller gets ErrStorage.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*UserProfile, error) {
	if blank(params.Email) || params.Password == "" || blank(params.Name) {
		return nil, &ValidationError{Message: "email, password, and name are required"}
	}

	session, err := s.identity.SignUp(ctx, params.Email, params.Password)
	if err != nil {
		logging.LogAudit(ctx, logging.AuditEvent{
			Action: "register", Resource: "identity", Result: logging.AuditFailure,
			Details: map[string]any{"error": upstreamCategory(err)},
		})
		return nil, err
	}
	uid := session.UserID
	email := session.Email
	if email == "" {
		email = params.Email
	}

	rec := directory.Record{Name: params.Name, Email: email}
	if err := s.upsertWithRetry(ctx, uid, rec); err != nil {
		s.compensate(ctx, uid, err)
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	profile := &UserProfile{ID: uid, Email: email, Name: params.Name, Token: session.IDToken}
	if s.local != nil {
		err := s.local.Append(ctx, localstore.UserProfile{
			ID: profile.ID, Email: profile.Email, Name: profile.Name, Token: profile.Token,
		})
		if err != nil {
			logging.LogError(ctx, "local profile mirror append failed", err, zap.String("uid", uid))
			return nil, fmt.Errorf("%w: %w", ErrStorage, err)
		}
	}

	logging.LogAudit(ctx, logging.AuditEvent{
		Action: "register", Actor: uid, Resource: "identity", ResourceID: uid, Result: logging.AuditSuccess,
	})
	return profile, nil
}

func (s *Service) upsertWithRetry(ctx context.Context, uid string, rec directory.Record) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := s.directory.Upsert(ctx, uid, rec)
		if err != nil {
			logging.LogWarn(ctx, "directory write failed",
				zap.String("uid", uid), zap.Int("attempt", attempt), zap.Error(err))
		}
		return struct{}{}, err
	}, backoff.WithBackOff(s.newBackOff()), backoff.WithMaxTries(s.attempts))
	return err
}

// compensate removes an account whose profile could not be stored.
func (s *Service) compensate(ctx context.Context, uid string, cause error) {
	// The request context may already be done; the delete must still run.
	cctx := context.WithoutCancel(ctx)
	if err := s.identity.DeleteUser(cctx, uid); err != nil {
		logging.LogError(ctx, "orphaned identity: compensation failed", err, zap.String("uid", uid))
		logging.LogAudit(ctx, logging.AuditEvent{
			Action: "orphaned_identity", Actor: uid, Resource: "identity", ResourceID: uid,
			Result:  logging.AuditFailure,
			Details: map[string]any{"directory_error": cause.Error(), "delete_error": err.Error()},
		})
		return
	}
	logging.LogAudit(ctx, logging.AuditEvent{
		Action: "compensate_delete", Actor: uid, Resource: "identity", ResourceID: uid,
		Result: logging.AuditSuccess,
	})
}

func (s *Service) Login(ctx context.Context, params LoginParams) (*identity.Session, error) {
	if blank(params.Email) || params.Password == "" {
		return nil, &ValidationError{Message: "email and password are required"}
	}
	session, err := s.identity.SignIn(ctx, params.Email, params.Password)
	if err != nil {
		logging.LogAudit(ctx, logging.AuditEvent{
			Action: "login", Resource: "identity", Result: logging.AuditFailure,
			Details: map[string]any{"error": upstreamCategory(err)},
		})
		return nil, err
	}
	logging.LogAudit(ctx, logging.AuditEvent{
		Action: "login", Actor: session.UserID, Resource: "identity", ResourceID: session.UserID,
		Result: logging.AuditSuccess,
	})
	return session, nil
}

// List returns directory profiles, filtered by exact name when name is set.
func (s *Service) List(ctx context.Context, name string) ([]directory.Profile, error) {
	return s.directory.List(ctx, directory.Filter{Name: name})
}

func (s *Service) ResetPassword(ctx context.Context, email string) (string, error) {
	if blank(email) {
		return "", &ValidationError{Message: "email is required"}
	}
	return s.identity.PasswordResetLink(ctx, email)
}

func (s *Service) CustomToken(ctx context.Context, uid string) (string, error) {
	if blank(uid) {
		return "", &ValidationError{Message: "uid is required"}
	}
	token, err := s.identity.CustomToken(ctx, uid, customTokenClaims)
	if err != nil {
		return "", err
	}
	logging.LogAudit(ctx, logging.AuditEvent{
		Action: "issue_custom_token", Actor: uid, Resource: "identity", ResourceID: uid,
		Result: logging.AuditSuccess,
	})
	return token, nil
}

func (s *Service) Me(ctx context.Context, uid string) (*directory.Profile, error) {
	return s.directory.Get(ctx, uid)
}

// upstreamCategory is an audit-safe label for a provider failure.
func upstreamCategory(err error) string {
	var ue *identity.UpstreamError
	switch {
	case errors.As(err, &ue):
		return ue.Code
	case errors.Is(err, identity.ErrUnavailable):
		return "unavailable"
	default:
		return "internal_error"
	}
}

var _ Orchestrator = (*Service)(nil)
