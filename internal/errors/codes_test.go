package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hrygo/learnengine/plugin/learning/gamification"
	"github.com/hrygo/learnengine/plugin/learning/path"
	"github.com/hrygo/learnengine/plugin/learning/srs"
	"github.com/hrygo/learnengine/store"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     ErrorCode
		http     int
		grpcCode codes.Code
	}{
		{"quality", fmt.Errorf("review: %w", srs.ErrInvalidQualityRating), ErrCodeInvalidQualityRating, http.StatusBadRequest, codes.InvalidArgument},
		{"condition", fmt.Errorf("branch x: %w", path.ErrUnknownBranchCondition), ErrCodeUnknownBranchCondition, http.StatusBadRequest, codes.FailedPrecondition},
		{"missing node", path.ErrMissingConceptNode, ErrCodeMissingConceptNode, http.StatusBadRequest, codes.FailedPrecondition},
		{"bad action", path.ErrInvalidAction, ErrCodeInvalidArgument, http.StatusBadRequest, codes.InvalidArgument},
		{"xp action", gamification.ErrUnknownAction, ErrCodeInvalidArgument, http.StatusBadRequest, codes.InvalidArgument},
		{"not found", pkgerrors.Wrap(store.ErrNotFound, "failed to get progress"), ErrCodeNotFound, http.StatusNotFound, codes.NotFound},
		{"conflict", store.ErrVersionConflict, ErrCodeVersionConflict, http.StatusConflict, codes.Aborted},
		{"canceled", context.Canceled, ErrCodeContextCanceled, 499, codes.Canceled},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout, http.StatusGatewayTimeout, codes.DeadlineExceeded},
		{"other", fmt.Errorf("disk on fire"), ErrCodeInternal, http.StatusInternalServerError, codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			le := Classify(tt.err)
			require.NotNil(t, le)
			assert.Equal(t, tt.code, le.Code)
			assert.Equal(t, tt.http, le.HTTPStatus())
			assert.NotEmpty(t, le.Message)
			assert.ErrorIs(t, le, tt.err)

			st, ok := status.FromError(le)
			require.True(t, ok)
			assert.Equal(t, tt.grpcCode, st.Code())
		})
	}
}

func TestClassify_PassThrough(t *testing.T) {
	assert.Nil(t, Classify(nil))

	orig := InvalidArgument("limit must be positive").WithContext("limit", -1)
	wrapped := fmt.Errorf("list due: %w", orig)
	assert.Same(t, orig, Classify(wrapped))
	assert.True(t, IsCode(wrapped, ErrCodeInvalidArgument))
	assert.False(t, IsCode(wrapped, ErrCodeInternal))
}

func TestLearningError_Error(t *testing.T) {
	assert.Equal(t, "[NOT_FOUND] course go-101 not found", NotFound("course go-101").Error())

	e := Wrap(fmt.Errorf("boom"), ErrCodeInternal, "save failed")
	assert.Equal(t, "[INTERNAL] save failed: boom", e.Error())
}
