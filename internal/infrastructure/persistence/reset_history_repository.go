package persistence

import (
	"context"
	"errors"

	"github.com/a2zsellr/backend/internal/domain/reset"
	"github.com/a2zsellr/backend/internal/domain/shared"
	"github.com/a2zsellr/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormResetHistoryRepository reads and annotates reset_history rows
type GormResetHistoryRepository struct {
	db *gorm.DB
}

// NewGormResetHistoryRepository creates a new GormResetHistoryRepository
func NewGormResetHistoryRepository(db *gorm.DB) *GormResetHistoryRepository {
	return &GormResetHistoryRepository{db: db}
}

// FindByProfile returns a page of a profile's reset history and the total count
func (r *GormResetHistoryRepository) FindByProfile(ctx context.Context, profileID uuid.UUID, filter shared.Filter) ([]reset.History, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.ResetHistoryModel{}).Where("profile_id = ?", profileID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.ResetHistoryModel
	if err := query.
		Order(orderClause(filter.OrderBy, ResetHistorySortFields, "reset_at", filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]reset.History, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// LatestForProfile returns the most recent reset of a profile
func (r *GormResetHistoryRepository) LatestForProfile(ctx context.Context, profileID uuid.UUID) (*reset.History, error) {
	var model models.ResetHistoryModel
	if err := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("reset_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// AttachErrors stores post-commit failures on an existing history row
func (r *GormResetHistoryRepository) AttachErrors(ctx context.Context, historyID uuid.UUID, errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.ResetHistoryModel{ID: historyID}).
		Select("errors").
		Updates(&models.ResetHistoryModel{Errors: errs})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ reset.HistoryRepository = (*GormResetHistoryRepository)(nil)
