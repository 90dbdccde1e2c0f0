package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesWrappedSentinel(t *testing.T) {
	err := wrap(ErrTaskNotFound, "upload", nil)
	assert.True(t, errors.Is(err, ErrTaskNotFound))
	assert.False(t, errors.Is(err, ErrDocumentNotFound))

	outer := fmt.Errorf("handler: %w", err)
	assert.True(t, errors.Is(outer, ErrTaskNotFound))
	assert.Equal(t, KindNotFound, KindOf(outer))
}

func TestKindOfAndReason(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   Kind
		wantReason string
	}{
		{"gate", ErrRatingRequired, KindGate, "a rating is required to complete a verification task"},
		{"transport", transportErr("save file", errors.New("disk full")), KindTransport, "temporarily unavailable, please retry"},
		{"validation", validationErr("create task", "title is required"), KindValidation, "title is required"},
		{"plain error", errors.New("sql: connection refused"), KindInternal, "something went wrong, please try again"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantKind, KindOf(tt.err))
			assert.Equal(t, tt.wantReason, Reason(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(transportErr("send", errors.New("timeout"))))
	assert.False(t, IsRetryable(ErrSlotSatisfied))
}

func TestError_MessageIncludesCause(t *testing.T) {
	err := transportErr("save file", errors.New("disk full"))
	assert.Equal(t, "save file: temporarily unavailable, please retry: disk full", err.Error())
}
