package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	"github.com/janisto/identity-gateway/internal/platform/logging"
)

type callerKey struct{}

// Middleware enforces a verified ID token on operations that declare a
// security requirement and leaves every other operation alone.
func Middleware(api huma.API, verifier Verifier) func(huma.Context, func(huma.Context)) {
	return func(hctx huma.Context, next func(huma.Context)) {
		if len(hctx.Operation().Security) == 0 {
			next(hctx)
			return
		}

		token, err := BearerToken(hctx.Header("Authorization"))
		if err != nil {
			logging.LogWarn(hctx.Context(), "bearer token rejected", zap.String("reason", reason(err)))
			hctx.SetHeader("WWW-Authenticate", "Bearer")
			_ = huma.WriteErr(api, hctx, http.StatusUnauthorized, "missing or invalid authorization header")
			return
		}

		caller, err := verifier.Verify(hctx.Context(), token)
		if err != nil {
			logging.LogWarn(hctx.Context(), "bearer token rejected", zap.String("reason", reason(err)))
			if errors.Is(err, ErrCertificateFetch) {
				hctx.SetHeader("Retry-After", "30")
				_ = huma.WriteErr(api, hctx, http.StatusServiceUnavailable, "authentication service temporarily unavailable")
				return
			}
			hctx.SetHeader("WWW-Authenticate", `Bearer error="invalid_token"`)
			_ = huma.WriteErr(api, hctx, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		next(huma.WithValue(hctx, callerKey{}, caller))
	}
}

// reason is a log-safe label; token contents are never logged.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrNoToken):
		return "no_token"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrTokenRevoked):
		return "token_revoked"
	case errors.Is(err, ErrUserDisabled):
		return "user_disabled"
	case errors.Is(err, ErrCertificateFetch):
		return "certificate_fetch_failed"
	default:
		return "invalid_token"
	}
}

// CallerFromContext returns the verified caller, or nil on unsecured operations.
func CallerFromContext(ctx context.Context) *Caller {
	c, _ := ctx.Value(callerKey{}).(*Caller)
	return c
}
