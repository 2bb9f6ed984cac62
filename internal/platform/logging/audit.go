package logging

import (
	"context"

	"go.uber.org/zap"
)

// Audit results.
const (
	AuditSuccess = "success"
	AuditFailure = "failure"
)

// AuditEvent describes a security-relevant change to an account or profile.
type AuditEvent struct {
	Action     string // e.g. "register", "login", "upsert"
	Actor      string // uid of the acting user, or "" before one exists
	Resource   string // e.g. "identity", "profile", "local_profile"
	ResourceID string
	Result     string
	Details    map[string]any
}

// LogAudit writes ev as a structured "Audit event" entry.
func LogAudit(ctx context.Context, ev AuditEvent) {
	fields := []zap.Field{
		zap.String("audit.action", ev.Action),
		zap.String("audit.user_id", ev.Actor),
		zap.String("audit.resource_type", ev.Resource),
		zap.String("audit.resource_id", ev.ResourceID),
		zap.String("audit.result", ev.Result),
	}
	if len(ev.Details) > 0 {
		fields = append(fields, zap.Any("audit.details", ev.Details))
	}
	LoggerFromContext(ctx).Info("Audit event", fields...)
}
