package auctions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bidfinderz-backend/pkg/db/models"
)

// Repository is the persistence surface for auction rows. Implementations
// must be safe to rebind onto a transaction via WithTx.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, auction *models.Auction) (*models.Auction, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Auction, error)
	// FindByIDForUpdate takes the per-auction row lock. Callers must hold an
	// open transaction; every bid and settlement decision happens under it.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Auction, error)

	// Activate flips scheduled -> active and clears any stale countdown; the
	// bid window arms on the first accepted bid. Returns false when the row
	// was not in scheduled state, which makes concurrent activations a no-op.
	Activate(ctx context.Context, id uuid.UUID, startedAt time.Time) (bool, error)
	// MarkCancelled flips scheduled|active -> cancelled and reports whether
	// this call performed the transition.
	MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// RecordBid advances the accepted floor, the highest bidder and the
	// countdown in one write. Must run under the row lock.
	RecordBid(ctx context.Context, id uuid.UUID, amountCents int, bidderID uuid.UUID, countdownEnd time.Time) error
	// ForceCountdown rewrites countdown_end_time on an active auction so the
	// normal expiry path picks it up.
	ForceCountdown(ctx context.Context, id uuid.UUID, end time.Time) (bool, error)

	FindDueScheduled(ctx context.Context, now time.Time, limit int) ([]models.Auction, error)
	FindExpiredActive(ctx context.Context, now time.Time, limit int) ([]models.Auction, error)
	ListOpen(ctx context.Context, limit, offset int) ([]models.Auction, error)
	ListBySeller(ctx context.Context, sellerStoreID uuid.UUID, limit, offset int) ([]models.Auction, error)
}
