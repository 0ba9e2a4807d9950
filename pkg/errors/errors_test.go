package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithStageKeepsType(t *testing.T) {
	base := New(ErrorTypeServerError, 503, "server error")

	tagged := SubmissionError(fmt.Errorf("start run: %w", base))
	require.NotNil(t, tagged)
	assert.Equal(t, ErrorTypeServerError, tagged.Type)
	assert.Equal(t, StageSubmit, tagged.Stage)
	assert.Equal(t, 503, tagged.Code)

	// the original error is not mutated
	assert.Equal(t, Stage(""), base.Stage)
}

func TestWithStageWrapsPlainErrors(t *testing.T) {
	cause := stderrors.New("boom")
	tagged := DatasetFetchError(cause)

	assert.Equal(t, ErrorTypeUnknown, tagged.Type)
	assert.Equal(t, StageDatasetFetch, tagged.Stage)
	assert.ErrorIs(t, tagged, cause)
	assert.Nil(t, WithStage(StageSubmit, nil))
}

func TestStageAndTypeOf(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", RunFailedError("run1", "ABORTED"))

	assert.Equal(t, StageStatusCheck, StageOf(err))
	assert.Equal(t, ErrorTypeRunFailed, TypeOf(err))
	assert.True(t, IsType(err, ErrorTypeRunFailed))
	assert.Contains(t, err.Error(), "ABORTED")

	assert.Equal(t, Stage(""), StageOf(stderrors.New("plain")))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(stderrors.New("plain")))
	assert.False(t, IsType(nil, ErrorTypeUnknown))
}

func TestErrorString(t *testing.T) {
	err := StatusCheckError(New(ErrorTypeNetwork, 0, "network error"))
	assert.Equal(t, "status_check: network error (code 0): network error", err.Error())

	cfg := ConfigurationError("APIFY_TOKEN is not set")
	assert.Equal(t, "configuration: configuration error (code 0): APIFY_TOKEN is not set", cfg.Error())
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		want      bool
	}{
		{ErrorTypeNetwork, true},
		{ErrorTypeRateLimit, true},
		{ErrorTypeServerError, true},
		{ErrorTypeAuth, false},
		{ErrorTypeNotFound, false},
		{ErrorTypeParsing, false},
		{ErrorTypeRunFailed, false},
		{ErrorTypeTimedOut, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.errorType), func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.errorType))
		})
	}
}
