package logger

import (
	"go.uber.org/zap"

	"scheduleingest.dev/worker/internal/pkg/apperr"
)

// Session returns the baseline fields every session-scoped log line must
// carry: session_id, user_id, correlation_id. Call-site code appends its
// own fields (event name, counts, durations) on top.
func Session(sessionID, userID, correlationID string) []zap.Field {
	return []zap.Field{
		zap.String("session_id", sessionID),
		zap.String("user_id", userID),
		zap.String("correlation_id", correlationID),
	}
}

// ErrorFields formats the error.type/error.message/error.stage triple
// required on failed-stage log lines. It unwraps err to its *apperr.Error
// classification when present, falling back to Unexpected/Lifecycle for a
// plain error so the triple is never dropped.
func ErrorFields(err error) []zap.Field {
	kind, stage := apperr.KindUnexpected, apperr.StageLifecycle
	if appErr, ok := apperr.As(err); ok {
		kind, stage = appErr.Kind, appErr.Stage
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return []zap.Field{
		zap.String("error.type", string(kind)),
		zap.String("error.message", msg),
		zap.String("error.stage", string(stage)),
	}
}
