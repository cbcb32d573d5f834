package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchLifecycle(t *testing.T) {
	d := NewDispatch("group-1", "background", 4)
	assert.Equal(t, StatusAccepted, d.Status)
	assert.False(t, d.Status.Finished())
	assert.Equal(t, 4, d.Requested)

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	d.Start(start)
	assert.Equal(t, StatusRunning, d.Status)
	require.NotNil(t, d.StartedAt)
	assert.Equal(t, start, *d.StartedAt)

	d.Complete(BulkSendResult{TotalAttempted: 3, Sent: 2, Failed: 1}, start.Add(time.Minute))
	assert.Equal(t, StatusCompleted, d.Status)
	assert.True(t, d.Status.Finished())
	assert.Equal(t, 3, d.Result.TotalAttempted)
	require.NotNil(t, d.FinishedAt)
}

func TestDispatchFail(t *testing.T) {
	d := NewDispatch("", "queue", 1)
	d.Fail(ErrProviderNotConfigured, time.Now())

	assert.Equal(t, StatusFailed, d.Status)
	assert.Equal(t, ErrProviderNotConfigured.Error(), d.Error)
	assert.True(t, d.Status.Finished())
}

func TestFailureReason(t *testing.T) {
	t.Run("provider message wins", func(t *testing.T) {
		err := fmt.Errorf("send: %w", &ProviderError{StatusCode: 422, Message: "The to field must be a valid phone number."})
		assert.Equal(t, "The to field must be a valid phone number.", FailureReason(err))
	})

	t.Run("provider error without message", func(t *testing.T) {
		err := &ProviderError{StatusCode: 502}
		assert.Equal(t, "provider returned 502", FailureReason(err))
	})

	t.Run("plain error", func(t *testing.T) {
		assert.Equal(t, "dial tcp: timeout", FailureReason(errors.New("dial tcp: timeout")))
	})
}
