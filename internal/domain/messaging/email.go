package messaging

import (
	"errors"
	"strings"
	"time"

	"github.com/a2zsellr/backend/internal/domain/shared"
)

// EmailStatus is the delivery state of a queued email.
type EmailStatus string

const (
	EmailStatusPending EmailStatus = "pending"
	EmailStatusSending EmailStatus = "sending"
	EmailStatusSent    EmailStatus = "sent"
	EmailStatusFailed  EmailStatus = "failed"
)

const (
	// DefaultMaxAttempts is how many sends are tried before giving up.
	DefaultMaxAttempts = 3
	// SendLease is how long a claimed email may stay in sending before
	// another queue pass takes it back.
	SendLease = 10 * time.Minute
)

// ErrAttemptsExhausted is returned when reclaiming a lapsed send used up
// the last attempt.
var ErrAttemptsExhausted = shared.NewDomainError("ATTEMPTS_EXHAUSTED", "Email has no send attempts left")

var errLeaseExpired = errors.New("send attempt did not report an outcome")

// Template names the body an email was rendered from.
type Template string

const (
	TemplateWelcome               Template = "welcome"
	TemplateListingActivated      Template = "listing_activated"
	TemplateSubscriptionActivated Template = "subscription_activated"
	TemplateContentReset          Template = "content_reset"
	TemplateCustom                Template = "custom"
)

// Message is a rendered email ready to hand to a provider.
type Message struct {
	ToEmail  string
	ToName   string
	Subject  string
	HTMLBody string
	TextBody string
	Tags     map[string]string
}

// Validate checks the minimum a provider needs.
func (m Message) Validate() error {
	if strings.TrimSpace(m.ToEmail) == "" || !strings.Contains(m.ToEmail, "@") {
		return shared.NewDomainError("INVALID_RECIPIENT", "A valid recipient email is required")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return shared.NewDomainError("INVALID_SUBJECT", "Subject cannot be empty")
	}
	if m.HTMLBody == "" && m.TextBody == "" {
		return shared.NewDomainError("INVALID_BODY", "Email body cannot be empty")
	}
	return nil
}

// QueuedEmail is a row of the outbound email queue.
type QueuedEmail struct {
	shared.BaseEntity
	Message
	Template    Template
	Status      EmailStatus
	Attempts    int
	MaxAttempts int
	LastError   string
	Provider    string
	ProviderID  string
	ScheduledAt time.Time
	SentAt      *time.Time
}

// NewQueuedEmail enqueues msg for delivery at scheduledAt.
func NewQueuedEmail(msg Message, tmpl Template, scheduledAt time.Time) (*QueuedEmail, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	if tmpl == "" {
		tmpl = TemplateCustom
	}
	return &QueuedEmail{
		BaseEntity:  shared.NewBaseEntity(),
		Message:     msg,
		Template:    tmpl,
		Status:      EmailStatusPending,
		MaxAttempts: DefaultMaxAttempts,
		ScheduledAt: scheduledAt,
	}, nil
}

// IsDue reports whether the email should be picked up at now: pending and
// scheduled, or left in sending past its lease.
func (e *QueuedEmail) IsDue(now time.Time) bool {
	switch e.Status {
	case EmailStatusPending:
		return !e.ScheduledAt.After(now)
	case EmailStatusSending:
		return !now.Before(e.UpdatedAt.Add(SendLease))
	default:
		return false
	}
}

// MarkSending claims the email for a send attempt. Reclaiming a lapsed
// send counts the lost attempt; if it was the last one the email is failed
// and ErrAttemptsExhausted is returned.
func (e *QueuedEmail) MarkSending(now time.Time) error {
	if !e.IsDue(now) {
		return shared.NewDomainError("INVALID_TRANSITION", "Only due emails can be sent")
	}
	if e.Status == EmailStatusSending {
		e.MarkFailed(errLeaseExpired, now)
		if e.Status == EmailStatusFailed {
			return ErrAttemptsExhausted
		}
	}
	e.Status = EmailStatusSending
	e.UpdatedAt = now
	return nil
}

// MarkSent records a successful delivery.
func (e *QueuedEmail) MarkSent(provider, providerID string, at time.Time) {
	e.Status = EmailStatusSent
	e.Attempts++
	e.Provider = provider
	e.ProviderID = providerID
	e.LastError = ""
	e.SentAt = &at
	e.UpdatedAt = at
}

// MarkFailed records a failed attempt. The email goes back to pending
// until it has used up MaxAttempts, then it is failed for good.
func (e *QueuedEmail) MarkFailed(err error, retryAt time.Time) {
	e.Attempts++
	if err != nil {
		e.LastError = err.Error()
	}
	e.UpdatedAt = time.Now()
	if !e.CanRetry() {
		e.Status = EmailStatusFailed
		return
	}
	e.Status = EmailStatusPending
	e.ScheduledAt = retryAt
}

// CanRetry reports whether another attempt is allowed.
func (e *QueuedEmail) CanRetry() bool {
	return e.Attempts < e.maxAttempts()
}

func (e *QueuedEmail) maxAttempts() int {
	if e.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return e.MaxAttempts
}
