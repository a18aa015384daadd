package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bidfinderz-backend/pkg/db/models"
	"github.com/angelmondragon/bidfinderz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bidfinderz-backend/pkg/errors"
	"github.com/angelmondragon/bidfinderz-backend/pkg/logger"
)

// Service writes in-app notifications. The Notify* methods are fire and
// forget: a failed insert is logged and never propagates into the bidding or
// settlement paths that triggered it.
type Service interface {
	NotifyOutbid(ctx context.Context, userID, auctionID uuid.UUID, newAmountCents int)
	NotifyEndingSoon(ctx context.Context, userID, auctionID uuid.UUID, remainingSeconds int)
	NotifyAuctionWon(ctx context.Context, userID, auctionID uuid.UUID, priceCents int)
	NotifySellerSold(ctx context.Context, sellerStoreID, auctionID, orderID uuid.UUID, priceCents int)

	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
}

type service struct {
	repo    Repository
	logg    *logger.Logger
	enabled bool
	now     func() time.Time
}

// NewService builds the notification sink. When enabled is false every
// Notify* call is a no-op, matching the notifications feature flag.
func NewService(repo Repository, logg *logger.Logger, enabled bool) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg, enabled: enabled, now: time.Now}, nil
}

func (s *service) NotifyOutbid(ctx context.Context, userID, auctionID uuid.UUID, newAmountCents int) {
	s.insert(ctx, userID, auctionID, enums.NotificationTypeOutbid,
		"You have been outbid",
		fmt.Sprintf("Another bidder raised the price to $%.2f.", cents(newAmountCents)),
		map[string]any{"amountCents": newAmountCents},
	)
}

func (s *service) NotifyEndingSoon(ctx context.Context, userID, auctionID uuid.UUID, remainingSeconds int) {
	s.insert(ctx, userID, auctionID, enums.NotificationTypeEndingSoon,
		"Auction ending soon",
		fmt.Sprintf("Your auction closes in %d seconds.", remainingSeconds),
		map[string]any{"remainingSeconds": remainingSeconds},
	)
}

func (s *service) NotifyAuctionWon(ctx context.Context, userID, auctionID uuid.UUID, priceCents int) {
	s.insert(ctx, userID, auctionID, enums.NotificationTypeAuctionWon,
		"You won the auction",
		fmt.Sprintf("Congratulations, you won at $%.2f.", cents(priceCents)),
		map[string]any{"priceCents": priceCents},
	)
}

func (s *service) NotifySellerSold(ctx context.Context, sellerStoreID, auctionID, orderID uuid.UUID, priceCents int) {
	if !s.enabled {
		return
	}
	ownerID, err := s.repo.FindStoreOwner(ctx, sellerStoreID)
	if err != nil {
		s.logg.Warn(s.logg.WithAuctionID(ctx, auctionID.String()), "store owner lookup failed")
		return
	}
	s.insert(ctx, ownerID, auctionID, enums.NotificationTypeSellerInfo,
		"Your auction sold",
		fmt.Sprintf("The winning bid was $%.2f. An order has been created.", cents(priceCents)),
		map[string]any{"priceCents": priceCents, "orderId": orderID},
	)
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDB, err, "list notifications")
	}
	return rows, nil
}

func (s *service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}
	ok, err := s.repo.MarkRead(ctx, userID, notificationID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDB, err, "mark notification read")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) insert(ctx context.Context, userID, auctionID uuid.UUID, kind enums.NotificationType, title, message string, data map[string]any) {
	if !s.enabled || userID == uuid.Nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["auctionId"] = auctionID
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	notification := &models.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
		Data:    payload,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		logCtx := s.logg.WithAuctionID(ctx, auctionID.String())
		logCtx = s.logg.WithUserID(logCtx, userID.String())
		s.logg.Warn(s.logg.WithField(logCtx, "type", kind), "notification insert failed")
	}
}

func cents(amount int) float64 {
	return float64(amount) / 100
}
