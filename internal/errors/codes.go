package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hrygo/learnengine/plugin/learning/badge"
	"github.com/hrygo/learnengine/plugin/learning/gamification"
	"github.com/hrygo/learnengine/plugin/learning/path"
	"github.com/hrygo/learnengine/plugin/learning/srs"
	"github.com/hrygo/learnengine/store"
)

// ErrorCode represents a specific error type for learning operations.
type ErrorCode string

const (
	// ErrCodeInvalidQualityRating indicates a recall rating outside 0-5.
	ErrCodeInvalidQualityRating ErrorCode = "INVALID_QUALITY_RATING"
	// ErrCodeUnknownBranchCondition indicates an unrecognized branch condition tag.
	ErrCodeUnknownBranchCondition ErrorCode = "UNKNOWN_BRANCH_CONDITION"
	// ErrCodeMissingConceptNode indicates a branch or path points outside the course graph.
	ErrCodeMissingConceptNode ErrorCode = "MISSING_CONCEPT_NODE"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeNotFound indicates the requested record does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeVersionConflict indicates concurrent writers kept colliding on one aggregate.
	ErrCodeVersionConflict ErrorCode = "VERSION_CONFLICT"
	// ErrCodeContextCanceled indicates the operation was canceled.
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeInternal covers everything else.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// LearningError represents a structured error for learning operations.
type LearningError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *LearningError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *LearningError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *LearningError) WithContext(key string, value any) *LearningError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// HTTPStatus returns the HTTP status class for the error's code.
func (e *LearningError) HTTPStatus() int {
	return HTTPStatus(e.Code)
}

// GRPCStatus lets grpc/status.FromError recognise LearningError.
func (e *LearningError) GRPCStatus() *status.Status {
	return status.New(GRPCCode(e.Code), e.Message)
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *LearningError {
	return &LearningError{Code: ErrCodeInvalidArgument, Message: msg}
}

// NotFound creates a not found error.
func NotFound(what string) *LearningError {
	return &LearningError{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s not found", what)}
}

// Wrap wraps an existing error with additional context.
func Wrap(cause error, code ErrorCode, msg string) *LearningError {
	return &LearningError{Code: code, Message: msg, Cause: cause}
}

// Classify maps any error returned by the engine, store or service into a
// LearningError carrying the message a caller should show. It returns nil
// for a nil error and passes LearningErrors through unchanged.
func Classify(err error) *LearningError {
	if err == nil {
		return nil
	}
	var le *LearningError
	if stderrors.As(err, &le) {
		return le
	}
	code := codeOf(err)
	return &LearningError{Code: code, Message: userMessages[code], Cause: err}
}

func codeOf(err error) ErrorCode {
	switch {
	case stderrors.Is(err, srs.ErrInvalidQualityRating):
		return ErrCodeInvalidQualityRating
	case stderrors.Is(err, path.ErrUnknownBranchCondition):
		return ErrCodeUnknownBranchCondition
	case stderrors.Is(err, path.ErrMissingConceptNode):
		return ErrCodeMissingConceptNode
	case stderrors.Is(err, path.ErrUnknownBranch),
		stderrors.Is(err, path.ErrInvalidAction),
		stderrors.Is(err, path.ErrInvalidGraph),
		stderrors.Is(err, gamification.ErrUnknownAction),
		stderrors.Is(err, badge.ErrUnknownRequirement),
		stderrors.Is(err, badge.ErrDuplicateBadge),
		stderrors.Is(err, badge.ErrInvalidBadge),
		stderrors.Is(err, badge.ErrInvalidExpression):
		return ErrCodeInvalidArgument
	case stderrors.Is(err, store.ErrNotFound):
		return ErrCodeNotFound
	case stderrors.Is(err, store.ErrVersionConflict):
		return ErrCodeVersionConflict
	case stderrors.Is(err, context.Canceled):
		return ErrCodeContextCanceled
	case stderrors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	}
	return ErrCodeInternal
}

var userMessages = map[ErrorCode]string{
	ErrCodeInvalidQualityRating:   "Recall quality must be a whole number from 0 to 5.",
	ErrCodeUnknownBranchCondition: "This course contains a branch rule the engine does not understand.",
	ErrCodeMissingConceptNode:     "This course refers to a module that is not part of its learning path.",
	ErrCodeInvalidArgument:        "The request is not valid for the current learning state.",
	ErrCodeNotFound:               "The requested learning record does not exist.",
	ErrCodeVersionConflict:        "Your progress was updated elsewhere at the same time. Please try again.",
	ErrCodeContextCanceled:        "The request was canceled.",
	ErrCodeTimeout:                "The request took too long.",
	ErrCodeInternal:               "Something went wrong while updating your progress.",
}

// HTTPStatus maps a code to its HTTP status class: input problems are 4xx,
// conflicts 409, everything else 5xx.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidQualityRating, ErrCodeUnknownBranchCondition,
		ErrCodeMissingConceptNode, ErrCodeInvalidArgument:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeVersionConflict:
		return http.StatusConflict
	case ErrCodeContextCanceled:
		return 499
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// GRPCCode maps a code to its gRPC status code.
func GRPCCode(code ErrorCode) codes.Code {
	switch code {
	case ErrCodeInvalidQualityRating, ErrCodeInvalidArgument:
		return codes.InvalidArgument
	case ErrCodeUnknownBranchCondition, ErrCodeMissingConceptNode:
		return codes.FailedPrecondition
	case ErrCodeNotFound:
		return codes.NotFound
	case ErrCodeVersionConflict:
		return codes.Aborted
	case ErrCodeContextCanceled:
		return codes.Canceled
	case ErrCodeTimeout:
		return codes.DeadlineExceeded
	}
	return codes.Internal
}

// IsCode checks if an error classifies as a specific code.
func IsCode(err error, code ErrorCode) bool {
	le := Classify(err)
	return le != nil && le.Code == code
}
