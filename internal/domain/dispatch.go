package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a bulk dispatch.
type Status string

const (
	StatusAccepted  Status = "accepted"  // Acknowledged, not yet started
	StatusRunning   Status = "running"   // Delay elapsed or sends in progress
	StatusCompleted Status = "completed" // Every batch processed
	StatusFailed    Status = "failed"    // Dispatch refused as a whole (e.g. provider not configured)
)

// Finished reports whether the status is terminal.
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed
}

// BulkSendResult is the aggregate outcome of one dispatch call.
// TotalAttempted always equals Sent + Failed.
type BulkSendResult struct {
	TotalAttempted int `json:"totalAttempted"`
	Sent           int `json:"sent"`
	Failed         int `json:"failed"`
}

// Dispatch is the status record of one bulk request. It carries counts only,
// never recipients or message text.
type Dispatch struct {
	ID         uuid.UUID      `json:"id"`
	GroupID    string         `json:"groupId,omitempty"`
	Mode       string         `json:"mode"`
	Status     Status         `json:"status"`
	Requested  int            `json:"requested"`
	Result     BulkSendResult `json:"result"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	StartedAt  *time.Time     `json:"startedAt,omitempty"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
}

// NewDispatch creates an accepted Dispatch with a generated ID.
func NewDispatch(groupID, mode string, requested int) Dispatch {
	now := time.Now().UTC()
	return Dispatch{
		ID:        uuid.New(),
		GroupID:   groupID,
		Mode:      mode,
		Status:    StatusAccepted,
		Requested: requested,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Start marks the dispatch as running.
func (d *Dispatch) Start(at time.Time) {
	at = at.UTC()
	d.Status = StatusRunning
	d.StartedAt = &at
	d.UpdatedAt = at
}

// Complete records the aggregate result and marks the dispatch completed.
func (d *Dispatch) Complete(res BulkSendResult, at time.Time) {
	at = at.UTC()
	d.Status = StatusCompleted
	d.Result = res
	d.FinishedAt = &at
	d.UpdatedAt = at
}

// Fail marks the dispatch as failed with the given cause.
func (d *Dispatch) Fail(err error, at time.Time) {
	at = at.UTC()
	d.Status = StatusFailed
	d.Error = err.Error()
	d.FinishedAt = &at
	d.UpdatedAt = at
}

// BulkJob is the unit of work handed to background execution or the job queue.
type BulkJob struct {
	DispatchID   uuid.UUID     `json:"dispatch_id"`
	GroupID      string        `json:"group_id,omitempty"`
	PhoneNumbers []string      `json:"phone_numbers"`
	Text         string        `json:"text"`
	Delay        time.Duration `json:"delay"`
}

// ProviderError is a structured rejection returned by the messaging provider.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider returned %d", e.StatusCode)
	}
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Message)
}

// FailureReason extracts the human-readable reason for a failed send:
// the provider's own message when there is one, the error text otherwise.
func FailureReason(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return err.Error()
}

// Domain errors
var (
	ErrProviderNotConfigured = errors.New("whatsapp provider is not configured: WASENDER_API_KEY or WASENDER_PERSONAL_ACCESS_TOKEN is required")
	ErrDispatchNotFound      = errors.New("dispatch not found")
)
