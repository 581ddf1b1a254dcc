package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	// LogFieldRequestID is the field name for request ID.
	LogFieldRequestID = "request_id"
	// LogFieldStudentID is the field name for student ID.
	LogFieldStudentID = "student_id"
	// LogFieldCourseID is the field name for course ID.
	LogFieldCourseID = "course_id"
	// LogFieldOperation is the field name for the service operation.
	LogFieldOperation = "operation"
	// LogFieldDuration is the field name for duration in milliseconds.
	LogFieldDuration = "duration_ms"
	// LogFieldErrorCode is the field name for error code.
	LogFieldErrorCode = "error_code"
	// LogFieldAttempt is the field name for the conflict retry attempt.
	LogFieldAttempt = "attempt"
	// LogFieldVersion is the field name for the aggregate version.
	LogFieldVersion = "version"
)

// RequestContext carries the identity of one service operation on one
// (student, course) aggregate, with structured logging.
type RequestContext struct {
	RequestID string
	StudentID string
	CourseID  string
	Operation string
	StartTime time.Time
	Logger    *slog.Logger
}

// NewRequestContext creates a new request context with a generated request ID.
func NewRequestContext(logger *slog.Logger, operation, studentID, courseID string) *RequestContext {
	return NewRequestContextWithID(logger, generateRequestID(), operation, studentID, courseID)
}

// NewRequestContextWithID creates a new request context with a specific request ID.
func NewRequestContextWithID(logger *slog.Logger, requestID, operation, studentID, courseID string) *RequestContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestContext{
		RequestID: requestID,
		StudentID: studentID,
		CourseID:  courseID,
		Operation: operation,
		StartTime: time.Now(),
		Logger:    logger,
	}
}

// WithFields returns a new logger with the request fields and attrs attached.
func (r *RequestContext) WithFields(attrs ...slog.Attr) *slog.Logger {
	combined := r.baseAttrsAppended(attrs...)
	args := make([]any, 0, len(combined))
	for _, attr := range combined {
		args = append(args, attr)
	}
	return r.Logger.With(args...)
}

// Info logs an info message.
func (r *RequestContext) Info(msg string, attrs ...slog.Attr) {
	r.log(slog.LevelInfo, msg, attrs...)
}

// Debug logs a debug message.
func (r *RequestContext) Debug(msg string, attrs ...slog.Attr) {
	r.log(slog.LevelDebug, msg, attrs...)
}

// Warn logs a warning message.
func (r *RequestContext) Warn(msg string, attrs ...slog.Attr) {
	r.log(slog.LevelWarn, msg, attrs...)
}

// Error logs an error message with the error.
func (r *RequestContext) Error(msg string, err error, attrs ...slog.Attr) {
	attrs = append(attrs, slog.String("error", err.Error()))
	r.log(slog.LevelError, msg, attrs...)
}

// Done logs completion of the operation with its duration.
func (r *RequestContext) Done(attrs ...slog.Attr) {
	attrs = append(attrs, slog.Int64(LogFieldDuration, r.DurationMs()))
	r.log(slog.LevelInfo, "operation completed", attrs...)
}

func (r *RequestContext) log(level slog.Level, msg string, attrs ...slog.Attr) {
	r.Logger.LogAttrs(context.Background(), level, msg, r.baseAttrsAppended(attrs...)...)
}

// Duration returns the elapsed time since the request started.
func (r *RequestContext) Duration() time.Duration {
	return time.Since(r.StartTime)
}

// DurationMs returns the elapsed time in milliseconds.
func (r *RequestContext) DurationMs() int64 {
	return r.Duration().Milliseconds()
}

func (r *RequestContext) baseAttrsAppended(attrs ...slog.Attr) []slog.Attr {
	base := []slog.Attr{
		slog.String(LogFieldRequestID, r.RequestID),
		slog.String(LogFieldOperation, r.Operation),
		slog.String(LogFieldStudentID, r.StudentID),
	}
	if r.CourseID != "" {
		base = append(base, slog.String(LogFieldCourseID, r.CourseID))
	}
	return append(base, attrs...)
}

func generateRequestID() string {
	return uuid.New().String()
}

type ctxKey struct{}

// WithRequestContext adds the request context to the context.
func WithRequestContext(ctx context.Context, reqCtx *RequestContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, reqCtx)
}

// FromContext extracts the request context from the context.
func FromContext(ctx context.Context) (*RequestContext, bool) {
	reqCtx, ok := ctx.Value(ctxKey{}).(*RequestContext)
	return reqCtx, ok
}
