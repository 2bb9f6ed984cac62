package users

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/janisto/identity-gateway/internal/platform/auth"
	"github.com/janisto/identity-gateway/internal/service/account"
	"github.com/janisto/identity-gateway/internal/service/directory"
	"github.com/janisto/identity-gateway/internal/service/identity"
)

const (
	msgRegistered  = "Registration successful"
	msgLoggedIn    = "Login successful"
	msgResetSent   = "Password reset email sent successfully"
	msgTokenIssued = "Custom token issued"
	msgNoUsers     = "No users found."
	msgListFailed  = "Error fetching users"
	msgUnavailable = "identity provider unavailable"
	msgStoreFailed = "failed to store user profile"
	msgInternal    = "Internal Server Error"
	msgNoProfile   = "profile not found"
	tagUsers       = "Users"
	tagSession     = "Session"
)

var bearer = []map[string][]string{{auth.SchemeName: {}}}

// Register mounts the user and session endpoints under prefix.
func Register(api huma.API, prefix string, svc account.Orchestrator) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-user",
		Method:        http.MethodPost,
		Path:          prefix + "/register",
		Summary:       "Register a user",
		Description:   "Creates the account with the identity provider and stores the profile.",
		Tags:          []string{tagUsers},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, in *RegisterInput) (*RegisterOutput, error) {
		p, err := svc.Register(ctx, account.RegisterParams{
			Email:    in.Body.Email,
			Password: in.Body.Password,
			Name:     in.Body.Name,
		})
		if err != nil {
			return nil, mapError(err)
		}
		out := &RegisterOutput{}
		out.Body.Message = msgRegistered
		out.Body.User = RegisteredUser{ID: p.ID, Email: p.Email, Name: p.Name, Token: p.Token}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        prefix + "/login",
		Summary:     "Sign in with email and password",
		Tags:        []string{tagSession},
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, in *LoginInput) (*LoginOutput, error) {
		s, err := svc.Login(ctx, account.LoginParams{Email: in.Body.Email, Password: in.Body.Password})
		if err != nil {
			return nil, mapError(err)
		}
		out := &LoginOutput{}
		out.Body.Message = msgLoggedIn
		out.Body.User = SessionUser{ID: s.UserID, Email: s.Email, Token: s.IDToken}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        prefix + "/users",
		Summary:     "List user profiles",
		Description: "Lists every profile, or only those whose name matches exactly.",
		Tags:        []string{tagUsers},
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, in *ListInput) (*ListOutput, error) {
		profiles, err := svc.List(ctx, in.Name)
		if errors.Is(err, directory.ErrNotFound) {
			return nil, huma.Error404NotFound(msgNoUsers)
		}
		if err != nil {
			return nil, huma.Error500InternalServerError(msgListFailed, err)
		}
		out := &ListOutput{Body: make([]User, 0, len(profiles))}
		for _, p := range profiles {
			out.Body = append(out.Body, toUser(p))
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "forgot-password",
		Method:      http.MethodPost,
		Path:        prefix + "/forgot-password",
		Summary:     "Generate a password reset link",
		Tags:        []string{tagSession},
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, in *ForgotPasswordInput) (*ForgotPasswordOutput, error) {
		link, err := svc.ResetPassword(ctx, in.Body.Email)
		if err != nil {
			return nil, mapError(err)
		}
		out := &ForgotPasswordOutput{}
		out.Body.Message = msgResetSent
		out.Body.ResetLink = link
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-me",
		Method:      http.MethodGet,
		Path:        prefix + "/me",
		Summary:     "Get the caller's profile",
		Tags:        []string{tagUsers},
		Security:    bearer,
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*MeOutput, error) {
		caller := auth.CallerFromContext(ctx)
		p, err := svc.Me(ctx, caller.UID)
		if errors.Is(err, directory.ErrNotFound) {
			return nil, huma.Error404NotFound(msgNoProfile)
		}
		if err != nil {
			return nil, huma.Error500InternalServerError(msgInternal, err)
		}
		return &MeOutput{Body: toUser(*p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "issue-custom-token",
		Method:      http.MethodPost,
		Path:        prefix + "/token",
		Summary:     "Issue a custom token for the caller",
		Description: "Mints a Firebase custom token with the role claim set to user.",
		Tags:        []string{tagSession},
		Security:    bearer,
		Errors:      []int{http.StatusUnauthorized, http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*TokenOutput, error) {
		caller := auth.CallerFromContext(ctx)
		tok, err := svc.CustomToken(ctx, caller.UID)
		if err != nil {
			return nil, mapError(err)
		}
		out := &TokenOutput{}
		out.Body.Message = msgTokenIssued
		out.Body.CustomToken = tok
		return out, nil
	})
}

// mapError turns account and provider failures into status errors. Provider
// rejections are reported with the provider's code as the message.
func mapError(err error) error {
	var (
		ve *account.ValidationError
		ue *identity.UpstreamError
	)
	switch {
	case errors.As(err, &ve):
		return huma.Error400BadRequest(ve.Message)
	case errors.Is(err, account.ErrStorage):
		return huma.Error500InternalServerError(msgStoreFailed, err)
	case errors.As(err, &ue):
		return huma.Error500InternalServerError(ue.Code, err)
	case errors.Is(err, identity.ErrUnavailable):
		return huma.Error500InternalServerError(msgUnavailable, err)
	default:
		return huma.Error500InternalServerError(msgInternal, err)
	}
}

func toUser(p directory.Profile) User {
	return User{ID: p.ID, Name: p.Name, Email: p.Email}
}
