package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/a2zsellr/backend/internal/domain/messaging"
	"github.com/a2zsellr/backend/internal/domain/shared"
	"github.com/a2zsellr/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormEmailQueueRepository implements EmailQueueRepository using GORM
type GormEmailQueueRepository struct {
	db *gorm.DB
}

// NewGormEmailQueueRepository creates a new GormEmailQueueRepository
func NewGormEmailQueueRepository(db *gorm.DB) *GormEmailQueueRepository {
	return &GormEmailQueueRepository{db: db}
}

// Enqueue inserts a new email
func (r *GormEmailQueueRepository) Enqueue(ctx context.Context, email *messaging.QueuedEmail) error {
	return r.db.WithContext(ctx).Create(models.EmailQueueFromDomain(email)).Error
}

// ClaimDue moves up to limit due emails to sending and returns them. Due
// means pending and scheduled, or stuck in sending past SendLease after a
// worker died or lost its context mid-send. On Postgres the rows are locked
// with SKIP LOCKED so concurrent workers never claim the same email.
func (r *GormEmailQueueRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]messaging.QueuedEmail, error) {
	if limit <= 0 {
		return []messaging.QueuedEmail{}, nil
	}

	claimed := []messaging.QueuedEmail{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Where("(status = ? AND scheduled_at <= ?) OR (status = ? AND updated_at <= ?)",
			string(messaging.EmailStatusPending), now,
			string(messaging.EmailStatusSending), now.Add(-messaging.SendLease)).
			Order("scheduled_at ASC").
			Limit(limit)
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var rows []models.EmailQueueModel
		if err := query.Find(&rows).Error; err != nil {
			return err
		}

		for i := range rows {
			email := rows[i].ToDomain()
			claimErr := email.MarkSending(now)
			if claimErr != nil && !errors.Is(claimErr, messaging.ErrAttemptsExhausted) {
				return claimErr
			}
			if err := tx.Save(models.EmailQueueFromDomain(email)).Error; err != nil {
				return err
			}
			if claimErr == nil {
				claimed = append(claimed, *email)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Update persists the delivery state of an email
func (r *GormEmailQueueRepository) Update(ctx context.Context, email *messaging.QueuedEmail) error {
	return r.db.WithContext(ctx).Save(models.EmailQueueFromDomain(email)).Error
}

// FindByID finds a queued email by ID
func (r *GormEmailQueueRepository) FindByID(ctx context.Context, id uuid.UUID) (*messaging.QueuedEmail, error) {
	var model models.EmailQueueModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// CountByStatus counts queued emails in a status
func (r *GormEmailQueueRepository) CountByStatus(ctx context.Context, status messaging.EmailStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.EmailQueueModel{}).
		Where("status = ?", string(status)).
		Count(&count).Error
	return count, err
}

var _ messaging.EmailQueueRepository = (*GormEmailQueueRepository)(nil)
