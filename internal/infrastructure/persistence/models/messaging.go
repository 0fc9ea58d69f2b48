package models

import (
	"time"

	"github.com/a2zsellr/backend/internal/domain/messaging"
)

// EmailQueueModel is the persistence model for email_queue.
type EmailQueueModel struct {
	BaseModel
	ToEmail     string    `gorm:"type:varchar(255);not null"`
	ToName      string    `gorm:"type:varchar(200)"`
	Subject     string    `gorm:"type:varchar(500);not null"`
	HTMLBody    string    `gorm:"type:text"`
	TextBody    string    `gorm:"type:text"`
	Template    string    `gorm:"type:varchar(50);not null;default:'custom'"`
	Status      string    `gorm:"type:varchar(20);not null;default:'pending';index:idx_email_queue_due,priority:1"`
	Attempts    int       `gorm:"not null;default:0"`
	MaxAttempts int       `gorm:"not null;default:3"`
	LastError   string    `gorm:"type:text"`
	Provider    string    `gorm:"type:varchar(20)"`
	ProviderID  string    `gorm:"type:varchar(100)"`
	ScheduledAt time.Time `gorm:"not null;index:idx_email_queue_due,priority:2"`
	SentAt      *time.Time
}

func (EmailQueueModel) TableName() string { return "email_queue" }

// ToDomain converts the model to a domain QueuedEmail
func (m *EmailQueueModel) ToDomain() *messaging.QueuedEmail {
	return &messaging.QueuedEmail{
		BaseEntity: m.BaseModel.ToDomain(),
		Message: messaging.Message{
			ToEmail:  m.ToEmail,
			ToName:   m.ToName,
			Subject:  m.Subject,
			HTMLBody: m.HTMLBody,
			TextBody: m.TextBody,
		},
		Template:    messaging.Template(m.Template),
		Status:      messaging.EmailStatus(m.Status),
		Attempts:    m.Attempts,
		MaxAttempts: m.MaxAttempts,
		LastError:   m.LastError,
		Provider:    m.Provider,
		ProviderID:  m.ProviderID,
		ScheduledAt: m.ScheduledAt,
		SentAt:      m.SentAt,
	}
}

// EmailQueueFromDomain creates a model from a domain QueuedEmail
func EmailQueueFromDomain(e *messaging.QueuedEmail) *EmailQueueModel {
	m := &EmailQueueModel{
		ToEmail:     e.ToEmail,
		ToName:      e.ToName,
		Subject:     e.Subject,
		HTMLBody:    e.HTMLBody,
		TextBody:    e.TextBody,
		Template:    string(e.Template),
		Status:      string(e.Status),
		Attempts:    e.Attempts,
		MaxAttempts: e.MaxAttempts,
		LastError:   e.LastError,
		Provider:    e.Provider,
		ProviderID:  e.ProviderID,
		ScheduledAt: e.ScheduledAt,
		SentAt:      e.SentAt,
	}
	m.FromDomainBaseEntity(e.BaseEntity)
	return m
}
