// Package messaging sends transactional email and drains the email queue.
package messaging

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/a2zsellr/backend/internal/domain/messaging"
	"github.com/a2zsellr/backend/internal/domain/reset"
	"github.com/a2zsellr/backend/internal/infrastructure/email"
)

const (
	// DefaultBatchSize is used when ProcessQueue gets no limit
	DefaultBatchSize = 50
	// MaxBatchSize caps a single queue pass
	MaxBatchSize = 200
	// DefaultRetryDelay is the wait before a failed email is retried
	DefaultRetryDelay = 5 * time.Minute
)

// Renderer turns template data into a message
type Renderer interface {
	Render(tmpl messaging.Template, data email.TemplateData) (messaging.Message, error)
}

// providerSender is implemented by senders that can report which
// provider delivered a message
type providerSender interface {
	SendWithProvider(ctx context.Context, msg messaging.Message) (provider, id string, err error)
}

// EmailService renders, sends and queues email
type EmailService struct {
	queue      messaging.EmailQueueRepository
	sender     messaging.EmailSender
	renderer   Renderer
	retryDelay time.Duration
	batchSize  int
	resetDays  int
	logger     *zap.Logger

	now func() time.Time
}

// EmailServiceConfig contains the collaborators of EmailService
type EmailServiceConfig struct {
	Queue      messaging.EmailQueueRepository
	Sender     messaging.EmailSender
	Renderer   Renderer
	RetryDelay time.Duration
	BatchSize  int
	// ResetIntervalDays is quoted in welcome and reset emails
	ResetIntervalDays int
	Logger            *zap.Logger
}

// NewEmailService creates a new EmailService
func NewEmailService(cfg EmailServiceConfig) *EmailService {
	s := &EmailService{
		queue:      cfg.Queue,
		sender:     cfg.Sender,
		renderer:   cfg.Renderer,
		retryDelay: cfg.RetryDelay,
		batchSize:  cfg.BatchSize,
		resetDays:  cfg.ResetIntervalDays,
		logger:     cfg.Logger,
		now:        time.Now,
	}
	if s.retryDelay <= 0 {
		s.retryDelay = DefaultRetryDelay
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}
	if s.resetDays <= 0 {
		s.resetDays = reset.DefaultIntervalDays
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// ProcessQueue sends up to limit due emails. Send failures are counted
// and collected in the result; only a failure to claim the batch is
// returned as an error.
func (s *EmailService) ProcessQueue(ctx context.Context, limit int) (*ProcessResult, error) {
	if limit <= 0 {
		limit = s.batchSize
	}
	if limit > MaxBatchSize {
		limit = MaxBatchSize
	}

	due, err := s.queue.ClaimDue(ctx, s.now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim due emails: %w", err)
	}

	// outcomes are written even if the caller goes away mid-send
	store := context.WithoutCancel(ctx)
	result := &ProcessResult{Errors: []string{}}
	for i := range due {
		if ctx.Err() != nil {
			s.requeue(ctx, due[i:])
			result.Errors = append(result.Errors, fmt.Sprintf("queue pass stopped after %d of %d emails", i, len(due)))
			break
		}

		e := &due[i]
		result.Processed++
		provider, id, sendErr := s.send(ctx, e.Message)
		if sendErr != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", e.ID, sendErr))
			e.MarkFailed(sendErr, s.now().Add(s.retryDelay))
			s.logger.Warn("Queued email failed",
				zap.String("email_id", e.ID.String()),
				zap.String("template", string(e.Template)),
				zap.Int("attempts", e.Attempts),
				zap.String("status", string(e.Status)),
				zap.Error(sendErr))
		} else {
			result.Sent++
			e.MarkSent(provider, id, s.now())
		}

		if err := s.queue.Update(store, e); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: failed to update queue row: %v", e.ID, err))
		}
	}

	if result.Processed > 0 {
		s.logger.Info("Email queue processed",
			zap.Int("processed", result.Processed),
			zap.Int("sent", result.Sent),
			zap.Int("failed", result.Failed))
	}
	return result, nil
}

// requeue returns claimed but unsent emails to pending
func (s *EmailService) requeue(ctx context.Context, emails []messaging.QueuedEmail) {
	ctx = context.WithoutCancel(ctx)
	for i := range emails {
		emails[i].Status = messaging.EmailStatusPending
		if err := s.queue.Update(ctx, &emails[i]); err != nil {
			s.logger.Warn("Failed to requeue email",
				zap.String("email_id", emails[i].ID.String()),
				zap.Error(err))
		}
	}
}

// SendWelcome sends the welcome email now, queueing it on failure
func (s *EmailService) SendWelcome(ctx context.Context, req WelcomeEmailRequest) (*SendResult, error) {
	return s.sendNow(ctx, messaging.TemplateWelcome, email.TemplateData{
		Email: req.Email,
		Name:  req.Name,
	})
}

// SendListingActivated sends the listing-live email now, queueing it on
// failure
func (s *EmailService) SendListingActivated(ctx context.Context, req ListingActivatedEmailRequest) (*SendResult, error) {
	return s.sendNow(ctx, messaging.TemplateListingActivated, email.TemplateData{
		Email:        req.Email,
		Name:         req.Name,
		ListingTitle: req.ListingTitle,
		ListingURL:   req.ListingURL,
	})
}

// Enqueue renders tmpl and stores it for the queue worker
func (s *EmailService) Enqueue(ctx context.Context, tmpl messaging.Template, data email.TemplateData) (*messaging.QueuedEmail, error) {
	msg, err := s.render(tmpl, data)
	if err != nil {
		return nil, err
	}
	queued, err := messaging.NewQueuedEmail(msg, tmpl, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(ctx, queued); err != nil {
		return nil, fmt.Errorf("failed to enqueue email: %w", err)
	}
	return queued, nil
}

// Stats counts queue rows per status
func (s *EmailService) Stats(ctx context.Context) (*QueueStats, error) {
	stats := &QueueStats{}
	for status, dst := range map[messaging.EmailStatus]*int64{
		messaging.EmailStatusPending: &stats.Pending,
		messaging.EmailStatusSending: &stats.Sending,
		messaging.EmailStatusSent:    &stats.Sent,
		messaging.EmailStatusFailed:  &stats.Failed,
	} {
		n, err := s.queue.CountByStatus(ctx, status)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s emails: %w", status, err)
		}
		*dst = n
	}
	return stats, nil
}

func (s *EmailService) sendNow(ctx context.Context, tmpl messaging.Template, data email.TemplateData) (*SendResult, error) {
	msg, err := s.render(tmpl, data)
	if err != nil {
		return nil, err
	}
	queued, err := messaging.NewQueuedEmail(msg, tmpl, s.now())
	if err != nil {
		return nil, err
	}

	result := &SendResult{EmailID: queued.ID}
	provider, id, sendErr := s.send(ctx, msg)
	if sendErr == nil {
		queued.MarkSent(provider, id, s.now())
		result.Success = true
		result.Provider = provider
		result.MessageID = id
	} else {
		queued.MarkFailed(sendErr, s.now().Add(s.retryDelay))
		result.Queued = true
		s.logger.Warn("Immediate send failed, email queued for retry",
			zap.String("template", string(tmpl)),
			zap.String("to", msg.ToEmail),
			zap.Error(sendErr))
	}

	// the row is an audit record once sent, and the retry source otherwise
	if err := s.queue.Enqueue(context.WithoutCancel(ctx), queued); err != nil {
		if result.Success {
			s.logger.Warn("Failed to record sent email", zap.String("email_id", queued.ID.String()), zap.Error(err))
			return result, nil
		}
		return nil, fmt.Errorf("failed to queue email after send failure: %w", err)
	}
	return result, nil
}

func (s *EmailService) render(tmpl messaging.Template, data email.TemplateData) (messaging.Message, error) {
	if data.ResetIntervalDays == 0 {
		data.ResetIntervalDays = s.resetDays
	}
	return s.renderer.Render(tmpl, data)
}

func (s *EmailService) send(ctx context.Context, msg messaging.Message) (string, string, error) {
	if ps, ok := s.sender.(providerSender); ok {
		return ps.SendWithProvider(ctx, msg)
	}
	id, err := s.sender.Send(ctx, msg)
	if err != nil {
		return "", "", err
	}
	return s.sender.Name(), id, nil
}
