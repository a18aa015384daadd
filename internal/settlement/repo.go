package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/bidfinderz-backend/pkg/db/models"
	"github.com/angelmondragon/bidfinderz-backend/pkg/enums"
)

// Repository is the write surface of the settlement transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	// MarkEnded flips active -> ended and reports whether this call performed
	// the transition. The conditional predicate is what makes settlement
	// exactly-once across restarts and concurrent sweeps.
	MarkEnded(ctx context.Context, auctionID uuid.UUID, endedAt time.Time) (bool, error)
	FindUserForUpdate(ctx context.Context, userID uuid.UUID) (*models.User, error)
	// DebitWallet subtracts the amount only when the balance covers it.
	DebitWallet(ctx context.Context, userID uuid.UUID, amountCents int) (bool, error)
	FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	// FindOrderByAuction returns the order a previous settlement created, or
	// nil when the auction closed without a sale.
	FindOrderByAuction(ctx context.Context, auctionID uuid.UUID) (*models.Order, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a settlement repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) MarkEnded(ctx context.Context, auctionID uuid.UUID, endedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Auction{}).
		Where("id = ? AND status = ?", auctionID, enums.AuctionStatusActive).
		Updates(map[string]any{
			"status":   enums.AuctionStatusEnded,
			"ended_at": endedAt,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) FindUserForUpdate(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) DebitWallet(ctx context.Context, userID uuid.UUID, amountCents int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND wallet_balance_cents >= ?", userID, amountCents).
		Update("wallet_balance_cents", gorm.Expr("wallet_balance_cents - ?", amountCents))
	return res.RowsAffected > 0, res.Error
}

func (r *repository) FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindOrderByAuction(ctx context.Context, auctionID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		First(&order).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}
