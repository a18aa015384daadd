package bidding

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bidfinderz-backend/pkg/db/models"
)

// Repository persists accepted bids. Bids are append-only.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, bid *models.Bid) (*models.Bid, error)
	ListByAuction(ctx context.Context, auctionID uuid.UUID, limit int) ([]models.Bid, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a bid repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, bid *models.Bid) (*models.Bid, error) {
	if err := r.db.WithContext(ctx).Create(bid).Error; err != nil {
		return nil, err
	}
	return bid, nil
}

func (r *repository) ListByAuction(ctx context.Context, auctionID uuid.UUID, limit int) ([]models.Bid, error) {
	var rows []models.Bid
	err := r.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("placed_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
