package messaging

import "context"

// EmailSender delivers a message through one provider.
type EmailSender interface {
	// Name identifies the provider, e.g. "resend".
	Name() string
	// Send delivers msg and returns the provider's message id.
	Send(ctx context.Context, msg Message) (string, error)
}
