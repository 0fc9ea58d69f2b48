package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/a2zsellr/backend/internal/domain/messaging"
)

// ErrNoProviders is returned when no sender is configured
var ErrNoProviders = errors.New("email: no providers configured")

// FallbackSender tries each sender in order until one accepts the message.
// Name reports the chain; the provider that delivered is returned by
// SendWithProvider.
type FallbackSender struct {
	senders []messaging.EmailSender
	logger  *zap.Logger
}

// NewFallbackSender creates a chain from the given senders, skipping nils
func NewFallbackSender(logger *zap.Logger, senders ...messaging.EmailSender) *FallbackSender {
	chain := make([]messaging.EmailSender, 0, len(senders))
	for _, s := range senders {
		if s != nil {
			chain = append(chain, s)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackSender{senders: chain, logger: logger}
}

// Name lists the providers in order, e.g. "resend,sendgrid"
func (f *FallbackSender) Name() string {
	names := make([]string, len(f.senders))
	for i, s := range f.senders {
		names[i] = s.Name()
	}
	return strings.Join(names, ",")
}

// Len returns the number of providers in the chain
func (f *FallbackSender) Len() int { return len(f.senders) }

// Send delivers msg with the first provider that succeeds
func (f *FallbackSender) Send(ctx context.Context, msg messaging.Message) (string, error) {
	_, id, err := f.SendWithProvider(ctx, msg)
	return id, err
}

// SendWithProvider delivers msg and returns the name of the provider used
func (f *FallbackSender) SendWithProvider(ctx context.Context, msg messaging.Message) (string, string, error) {
	if len(f.senders) == 0 {
		return "", "", ErrNoProviders
	}
	if err := msg.Validate(); err != nil {
		return "", "", err
	}

	var errs []error
	for _, s := range f.senders {
		id, err := s.Send(ctx, msg)
		if err == nil {
			return s.Name(), id, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		f.logger.Warn("Email provider failed",
			zap.String("provider", s.Name()),
			zap.String("to", msg.ToEmail),
			zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	return "", "", errors.Join(errs...)
}

// NewSenderChain builds the Resend then SendGrid chain from whichever
// keys are set
func NewSenderChain(logger *zap.Logger, base ProviderConfig, resendKey, sendGridKey string) *FallbackSender {
	var senders []messaging.EmailSender
	if resendKey != "" {
		cfg := base
		cfg.APIKey = resendKey
		if s, err := NewResendSender(cfg); err == nil {
			senders = append(senders, s)
		}
	}
	if sendGridKey != "" {
		cfg := base
		cfg.APIKey = sendGridKey
		if s, err := NewSendGridSender(cfg); err == nil {
			senders = append(senders, s)
		}
	}
	return NewFallbackSender(logger, senders...)
}

var _ messaging.EmailSender = (*FallbackSender)(nil)
