package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bidfinderz-backend/pkg/db/models"
)

// Repository persists user notifications and resolves store owners.
type Repository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID, at time.Time) (bool, error)
	FindStoreOwner(ctx context.Context, storeID uuid.UUID) (uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a notifications repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error) {
	var rows []models.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	return rows, err
}

func (r *repository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND read_at IS NULL", notificationID, userID).
		Update("read_at", at)
	return res.RowsAffected > 0, res.Error
}

func (r *repository) FindStoreOwner(ctx context.Context, storeID uuid.UUID) (uuid.UUID, error) {
	var store models.Store
	err := r.db.WithContext(ctx).
		Select("owner_user_id").
		Where("id = ?", storeID).
		First(&store).Error
	if err != nil {
		return uuid.Nil, err
	}
	return store.OwnerUserID, nil
}
