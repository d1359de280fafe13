package audit

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/auth"
	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/obs"
)

// Auth event names.
const (
	EventLoginSucceeded   = "auth.login.succeeded"
	EventLoginFailed      = "auth.login.failed"
	EventLogout           = "auth.logout"
	EventRefreshed        = "auth.token.refreshed"
	EventRefreshRejected  = "auth.token.refresh_rejected"
	EventPasswordChanged  = "auth.password.changed"
	EventResetRequested   = "auth.password.reset_requested"
	EventResetCompleted   = "auth.password.reset_completed"
	EventAccountCreated   = "account.created"
	EventPermissionsSet   = "account.permissions.updated"
	EventAccountStatusSet = "account.status.updated"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit entry enriched with the request id and the
// authenticated account, if any. Callers never pass secrets in fields.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	copyFields := make(map[string]any, len(fields))
	for k, v := range fields {
		copyFields[k] = v
	}
	entry := logrus.Fields{
		"type":   "audit",
		"event":  event,
		"fields": copyFields,
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if accountID, ok := auth.AccountIDFromContext(ctx); ok {
		entry["account_id"] = accountID
	}
	obs.Logger().WithFields(entry).Info(event)
	return nil
}
