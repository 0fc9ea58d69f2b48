package models

import (
	"time"

	"github.com/a2zsellr/backend/internal/domain/profile"
	"github.com/a2zsellr/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProfileModel is the persistence model for seller profiles.
type ProfileModel struct {
	BaseModel
	Email            string     `gorm:"type:varchar(255);not null;uniqueIndex"`
	DisplayName      string     `gorm:"type:varchar(200)"`
	BusinessName     string     `gorm:"type:varchar(200)"`
	SubscriptionTier string     `gorm:"type:varchar(20);not null;default:'free';index"`
	CurrentListings  int        `gorm:"not null;default:0"`
	ProfileViews     int64      `gorm:"not null;default:0"`
	LastFreeReset    *time.Time `gorm:"index"`
	LastResetAt      *time.Time
}

// TableName returns the table name for GORM
func (ProfileModel) TableName() string {
	return "profiles"
}

// ToDomain converts the model to a domain Profile
func (m *ProfileModel) ToDomain() *profile.Profile {
	return &profile.Profile{
		BaseAggregateRoot: shared.BaseAggregateRoot{BaseEntity: m.BaseModel.ToDomain()},
		Email:             m.Email,
		DisplayName:       m.DisplayName,
		BusinessName:      m.BusinessName,
		SubscriptionTier:  profile.SubscriptionTier(m.SubscriptionTier),
		CurrentListings:   m.CurrentListings,
		ProfileViews:      m.ProfileViews,
		LastFreeReset:     m.LastFreeReset,
		LastResetAt:       m.LastResetAt,
	}
}

// FromDomain populates the model from a domain Profile
func (m *ProfileModel) FromDomain(p *profile.Profile) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.Email = p.Email
	m.DisplayName = p.DisplayName
	m.BusinessName = p.BusinessName
	m.SubscriptionTier = string(p.SubscriptionTier)
	m.CurrentListings = p.CurrentListings
	m.ProfileViews = p.ProfileViews
	m.LastFreeReset = p.LastFreeReset
	m.LastResetAt = p.LastResetAt
}

// ProfileFromDomain creates a ProfileModel from a domain Profile
func ProfileFromDomain(p *profile.Profile) *ProfileModel {
	m := &ProfileModel{}
	m.FromDomain(p)
	return m
}

// ProductModel is a row of profile_products. Products are only ever
// counted and bulk-deleted by this service; the catalog UI owns edits.
type ProductModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ProfileID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Name      string          `gorm:"type:varchar(200);not null"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2)"`
	ImageURL  string          `gorm:"type:text"`
	CreatedAt time.Time       `gorm:"not null"`
}

func (ProductModel) TableName() string { return "profile_products" }

// ListingModel is a row of profile_listings.
type ListingModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProfileID uuid.UUID `gorm:"type:uuid;not null;index"`
	Title     string    `gorm:"type:varchar(200);not null"`
	Status    string    `gorm:"type:varchar(20);not null;default:'active'"`
	CreatedAt time.Time `gorm:"not null"`
}

func (ListingModel) TableName() string { return "profile_listings" }

// GalleryItemModel is a row of profile_gallery.
type GalleryItemModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProfileID  uuid.UUID `gorm:"type:uuid;not null;index"`
	ImageURL   string    `gorm:"type:text;not null"`
	StorageKey string    `gorm:"type:text"`
	Caption    string    `gorm:"type:varchar(500)"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (GalleryItemModel) TableName() string { return "profile_gallery" }
