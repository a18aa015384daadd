package auctions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/bidfinderz-backend/pkg/db/models"
	"github.com/angelmondragon/bidfinderz-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an auctions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, auction *models.Auction) (*models.Auction, error) {
	if err := r.db.WithContext(ctx).Create(auction).Error; err != nil {
		return nil, err
	}
	return auction, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	var auction models.Auction
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&auction).Error
	if err != nil {
		return nil, err
	}
	return &auction, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	var auction models.Auction
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&auction).Error
	if err != nil {
		return nil, err
	}
	return &auction, nil
}

func (r *repository) Activate(ctx context.Context, id uuid.UUID, startedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Auction{}).
		Where("id = ? AND status = ?", id, enums.AuctionStatusScheduled).
		Updates(map[string]any{
			"status":             enums.AuctionStatusActive,
			"started_at":         startedAt,
			"countdown_end_time": nil,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Auction{}).
		Where("id = ? AND status IN ?", id, []enums.AuctionStatus{enums.AuctionStatusScheduled, enums.AuctionStatusActive}).
		Updates(map[string]any{
			"status":   enums.AuctionStatusCancelled,
			"ended_at": at,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) RecordBid(ctx context.Context, id uuid.UUID, amountCents int, bidderID uuid.UUID, countdownEnd time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Auction{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"current_bid_cents":  amountCents,
			"highest_bidder_id":  bidderID,
			"countdown_end_time": countdownEnd,
		}).Error
}

func (r *repository) ForceCountdown(ctx context.Context, id uuid.UUID, end time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Auction{}).
		Where("id = ? AND status = ?", id, enums.AuctionStatusActive).
		Update("countdown_end_time", end)
	return res.RowsAffected > 0, res.Error
}

func (r *repository) FindDueScheduled(ctx context.Context, now time.Time, limit int) ([]models.Auction, error) {
	var rows []models.Auction
	err := r.db.WithContext(ctx).
		Where("status = ? AND start_time <= ?", enums.AuctionStatusScheduled, now).
		Order("start_time ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindExpiredActive(ctx context.Context, now time.Time, limit int) ([]models.Auction, error) {
	var rows []models.Auction
	err := r.db.WithContext(ctx).
		Where("status = ? AND countdown_end_time IS NOT NULL AND countdown_end_time <= ?", enums.AuctionStatusActive, now).
		Order("countdown_end_time ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListOpen(ctx context.Context, limit, offset int) ([]models.Auction, error) {
	var rows []models.Auction
	err := r.db.WithContext(ctx).
		Where("status IN ?", []enums.AuctionStatus{enums.AuctionStatusScheduled, enums.AuctionStatusActive}).
		Order("start_time ASC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListBySeller(ctx context.Context, sellerStoreID uuid.UUID, limit, offset int) ([]models.Auction, error) {
	var rows []models.Auction
	err := r.db.WithContext(ctx).
		Where("seller_store_id = ?", sellerStoreID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	return rows, err
}
