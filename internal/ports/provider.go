package ports

import (
	"context"
)

// SendResult is the response from the messaging provider after submitting a message.
type SendResult struct {
	ProviderID string // External message ID assigned by the provider
	Status     string // Provider-side state, e.g. "in_progress"
}

// TextSender abstracts the external messaging gateway.
type TextSender interface {
	// Configured reports whether credentials are present. A sender that is not
	// configured must not be called.
	Configured() bool

	// SendText submits one text message to a normalized identifier.
	SendText(ctx context.Context, to, text string) (SendResult, error)
}
