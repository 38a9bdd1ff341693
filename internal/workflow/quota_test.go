package workflow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRevisionQuotaRecomputesRemaining(t *testing.T) {
	assert.Equal(t, RevisionQuota{Total: 3, Used: 1, Remaining: 2}, NewRevisionQuota(3, 1))
	assert.Equal(t, RevisionQuota{Total: 3, Used: 3, Remaining: 0}, NewRevisionQuota(3, 3))
	// Remaining never goes negative even from inconsistent stored counters.
	assert.Equal(t, 0, NewRevisionQuota(2, 5).Remaining)
	assert.Equal(t, RevisionQuota{Total: 0, Used: 0, Remaining: 0}, NewRevisionQuota(-1, -4))
}

func TestConsumeDecrementsUntilExhausted(t *testing.T) {
	quota := NewRevisionQuota(3, 0)

	for i := 1; i <= 3; i++ {
		next, err := quota.Consume()
		require.NoError(t, err)
		assert.Equal(t, i, next.Used)
		assert.Equal(t, 3-i, next.Remaining)
		assert.GreaterOrEqual(t, next.Used, quota.Used, "used is non-decreasing")
		assert.LessOrEqual(t, next.Used, next.Total, "used never exceeds total")
		quota = next
	}

	_, err := quota.Consume()
	assert.ErrorIs(t, err, ErrQuotaExhausted)
	assert.Equal(t, 3, quota.Used, "failed consume leaves used unchanged")
}

func TestConsumeOnExhaustedQuota(t *testing.T) {
	quota := RevisionQuota{Total: 3, Used: 3, Remaining: 0}

	got, err := quota.Consume()

	assert.ErrorIs(t, err, ErrQuotaExhausted)
	assert.Equal(t, quota, got, "quota unchanged on failure")
	assert.False(t, quota.CanRequestRevision())
	assert.True(t, quota.Exhausted())
}

func TestConsumeLastRemainingRevision(t *testing.T) {
	quota := RevisionQuota{Total: 3, Used: 2, Remaining: 1}
	require.True(t, quota.CanRequestRevision())

	got, err := quota.Consume()

	require.NoError(t, err)
	assert.Equal(t, RevisionQuota{Total: 3, Used: 3, Remaining: 0}, got)
}

func TestValidateAdditionalRequest(t *testing.T) {
	validReason := strings.Repeat("x", 100)

	cases := []struct {
		name    string
		reason  string
		count   int
		wantErr bool
	}{
		{"valid", validReason, 3, false},
		{"reason one short of minimum", strings.Repeat("x", 99), 3, true},
		{"reason exactly at minimum", validReason, 1, false},
		{"count below range", validReason, 0, true},
		{"count above range", validReason, 6, true},
		{"count at upper bound", validReason, 5, false},
		{"padding does not count", "  " + strings.Repeat("x", 99) + "  ", 2, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAdditionalRequest(tc.reason, tc.count)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, IsValidation(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
