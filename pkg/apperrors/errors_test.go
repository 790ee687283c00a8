package apperrors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"throttled", ErrThrottled, KindTransientUpstream},
		{"wrapped timeout", fmt.Errorf("calling model: %w", ErrUpstreamTimeout), KindTransientUpstream},
		{"auth", ErrUpstreamAuth, KindPersistentUpstream},
		{"chain broken", ErrChainBroken, KindIntegrityViolation},
		{"unknown action", ErrUnknownActionID, KindLogicViolation},
		{"admission cap", ErrAdmissionCapExceeded, KindResourceExhaustion},
		{"unrelated", fmt.Errorf("boom"), KindUnknown},
		{"nil", nil, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("confidence", "must be within [0, 1]")
	assert.True(t, IsValidationError(err))
	assert.False(t, IsValidationError(ErrThrottled))
	assert.Contains(t, err.Error(), "confidence")
	assert.Contains(t, err.Error(), "must be within [0, 1]")
}
