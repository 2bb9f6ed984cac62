// Package respond renders every error the API produces as a {"message": ...}
// body, whether it comes from a huma operation, chi's fallback handlers or a
// recovered panic.
package respond

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/janisto/identity-gateway/internal/platform/logging"
)

const (
	msgNotFound         = "resource not found"
	msgMethodNotAllowed = "method not allowed"
	msgInternal         = "internal server error"

	contentTypeJSON = "application/json"
	contentTypeCBOR = "application/cbor"
)

// ErrorBody is the only error shape clients ever see.
type ErrorBody struct {
	Message string `json:"message" doc:"Human readable error description"`

	status int
	cause  error
}

func (e *ErrorBody) Error() string { return e.Message }

// GetStatus implements huma.StatusError.
func (e *ErrorBody) GetStatus() int { return e.status }

func (e *ErrorBody) Unwrap() error { return e.cause }

var installOnce sync.Once

// Install replaces huma's error constructors so operation errors render as
// ErrorBody. Request validation failures (422 in huma) are reported as 400.
func Install() {
	installOnce.Do(func() {
		huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
			return newError(context.Background(), status, msg, errs)
		}
		huma.NewErrorWithContext = func(hctx huma.Context, status int, msg string, errs ...error) huma.StatusError {
			ctx := context.Background()
			if hctx != nil {
				ctx = hctx.Context()
			}
			return newError(ctx, status, msg, errs)
		}
	})
}

// Error builds an ErrorBody and logs it at a level derived from status.
func Error(ctx context.Context, status int, msg string, errs ...error) huma.StatusError {
	return newError(ctx, status, msg, errs)
}

func newError(ctx context.Context, status int, msg string, errs []error) *ErrorBody {
	if status == http.StatusUnprocessableEntity {
		status = http.StatusBadRequest
		msg = validationMessage(msg, errs)
	}
	if strings.TrimSpace(msg) == "" {
		msg = http.StatusText(status)
	}
	body := &ErrorBody{Message: msg, status: status, cause: errors.Join(errs...)}
	// huma builds a zero-status error at registration time to derive the schema.
	if status != 0 {
		logStatus(ctx, body)
	}
	return body
}

// validationMessage folds huma's per-field details into a single line.
func validationMessage(msg string, errs []error) string {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		var detailer huma.ErrorDetailer
		if errors.As(err, &detailer) {
			if d := detailer.ErrorDetail(); d != nil {
				if d.Location != "" {
					parts = append(parts, d.Location+": "+d.Message)
				} else {
					parts = append(parts, d.Message)
				}
				continue
			}
		}
		if err != nil {
			parts = append(parts, err.Error())
		}
	}
	if msg == "" {
		msg = "validation failed"
	}
	if len(parts) == 0 {
		return msg
	}
	return msg + ": " + strings.Join(parts, "; ")
}

func logStatus(ctx context.Context, body *ErrorBody) {
	fields := []zap.Field{zap.Int("status", body.status), zap.String("error_message", body.Message)}
	switch {
	case body.status >= http.StatusInternalServerError:
		logging.LogError(ctx, "request failed", body.cause, fields...)
	case body.cause != nil:
		logging.LogWarn(ctx, "request rejected", append(fields, zap.Error(body.cause))...)
	default:
		logging.LogWarn(ctx, "request rejected", fields...)
	}
}

// Write renders body outside of huma, honoring Accept: application/cbor.
func Write(w http.ResponseWriter, r *http.Request, status int, msg string, errs ...error) {
	body := newError(r.Context(), status, msg, errs)

	var (
		data []byte
		err  error
		ct   = contentTypeJSON
	)
	if acceptsCBOR(r.Header.Get("Accept")) {
		ct = contentTypeCBOR
		data, err = cbor.Marshal(body)
	} else {
		data, err = json.Marshal(body)
	}
	if err != nil {
		logging.LogError(r.Context(), "failed to encode error body", err)
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(body.status)
	_, _ = w.Write(data)
}

// NotFoundHandler is chi's fallback for unknown routes.
func NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		Write(w, r, http.StatusNotFound, msgNotFound)
	}
}

// MethodNotAllowedHandler is chi's fallback for known routes hit with the
// wrong method. It lists the supported methods in Allow.
func MethodNotAllowedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if allow := allowedMethods(r); len(allow) > 0 {
			w.Header().Set("Allow", strings.Join(allow, ", "))
		}
		Write(w, r, http.StatusMethodNotAllowed, fmt.Sprintf("%s: %s", msgMethodNotAllowed, r.Method))
	}
}

// Recoverer turns panics into 500 responses and logs the stack.
func Recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &responseWriter{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("%v", rec)
				}
				err = fmt.Errorf("panic: %w\n%s", err, debug.Stack())
				if rw.wroteHeader {
					logging.LogError(r.Context(), "panic after response started", err)
					return
				}
				Write(w, r, http.StatusInternalServerError, msgInternal, err)
			}()
			next.ServeHTTP(rw, r)
		})
	}
}

// responseWriter remembers whether the status line has gone out.
type responseWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// acceptsCBOR reports whether the Accept header lists application/cbor with a
// non-zero quality.
func acceptsCBOR(accept string) bool {
	for part := range strings.SplitSeq(accept, ",") {
		mediaType, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(mediaType), contentTypeCBOR) {
			continue
		}
		q := strings.ReplaceAll(params, " ", "")
		if strings.HasPrefix(q, "q=0") && strings.Trim(strings.TrimPrefix(q, "q=0"), ".0") == "" {
			return false
		}
		return true
	}
	return false
}

func allowedMethods(r *http.Request) []string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.Routes == nil {
		return nil
	}
	path := rctx.RoutePath
	if path == "" {
		path = r.URL.Path
	}
	if path == "" {
		path = "/"
	}

	var allowed []string
	for _, m := range []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions} {
		if rctx.Routes.Match(chi.NewRouteContext(), m, path) {
			allowed = append(allowed, m)
		}
	}
	return allowed
}
