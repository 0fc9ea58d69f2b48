package persistence

import (
	"context"
	"errors"

	"github.com/a2zsellr/backend/internal/domain/billing"
	"github.com/a2zsellr/backend/internal/domain/profile"
	"github.com/a2zsellr/backend/internal/domain/shared"
	"github.com/a2zsellr/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPaymentTransactionRepository implements PaymentTransactionRepository
// and SettlementStore using GORM
type GormPaymentTransactionRepository struct {
	db *gorm.DB
}

// NewGormPaymentTransactionRepository creates a new GormPaymentTransactionRepository
func NewGormPaymentTransactionRepository(db *gorm.DB) *GormPaymentTransactionRepository {
	return &GormPaymentTransactionRepository{db: db}
}

// FindByID finds a payment transaction by ID
func (r *GormPaymentTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.PaymentTransaction, error) {
	var model models.PaymentTransactionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByMerchantReference finds a payment transaction by the m_payment_id sent to PayFast
func (r *GormPaymentTransactionRepository) FindByMerchantReference(ctx context.Context, ref string) (*billing.PaymentTransaction, error) {
	var model models.PaymentTransactionModel
	if err := r.db.WithContext(ctx).
		Where("merchant_reference = ?", ref).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByProfile returns a page of a profile's payments and the total count
func (r *GormPaymentTransactionRepository) FindByProfile(ctx context.Context, profileID uuid.UUID, filter shared.Filter) ([]billing.PaymentTransaction, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.PaymentTransactionModel{}).Where("profile_id = ?", profileID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.PaymentTransactionModel
	if err := query.
		Order(orderClause(filter.OrderBy, PaymentTransactionSortFields, "created_at", filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]billing.PaymentTransaction, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// Save creates or updates a payment transaction
func (r *GormPaymentTransactionRepository) Save(ctx context.Context, tx *billing.PaymentTransaction) error {
	return r.db.WithContext(ctx).Save(models.PaymentTransactionFromDomain(tx)).Error
}

// Settle stores the paid transaction and upgrades the profile tier in one
// database transaction
func (r *GormPaymentTransactionRepository) Settle(ctx context.Context, payment *billing.PaymentTransaction, tier profile.SubscriptionTier) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(models.PaymentTransactionFromDomain(payment)).Error; err != nil {
			return err
		}
		return updateTier(tx, payment.ProfileID, tier)
	})
}

var (
	_ billing.PaymentTransactionRepository = (*GormPaymentTransactionRepository)(nil)
	_ billing.SettlementStore              = (*GormPaymentTransactionRepository)(nil)
)
