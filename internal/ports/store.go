package ports

import (
	"context"

	"whatsapp-bulk-worker/internal/domain"

	"github.com/google/uuid"
)

// DispatchStore persists aggregate dispatch status records.
type DispatchStore interface {
	// Save inserts or replaces the record with the same ID.
	Save(ctx context.Context, d domain.Dispatch) error

	// Get returns the record or domain.ErrDispatchNotFound.
	Get(ctx context.Context, id uuid.UUID) (domain.Dispatch, error)
}
