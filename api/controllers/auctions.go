package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/bidfinderz-backend/api/middleware"
	"github.com/angelmondragon/bidfinderz-backend/api/responses"
	"github.com/angelmondragon/bidfinderz-backend/api/validators"
	"github.com/angelmondragon/bidfinderz-backend/internal/auctions"
	"github.com/angelmondragon/bidfinderz-backend/internal/settlement"
	"github.com/angelmondragon/bidfinderz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bidfinderz-backend/pkg/errors"
	"github.com/angelmondragon/bidfinderz-backend/pkg/logger"
)

type createAuctionRequest struct {
	ProductID          uuid.UUID `json:"productId" validate:"required"`
	StartingPriceCents int       `json:"startingPriceCents" validate:"min=0"`
	MinIncrementCents  int       `json:"minIncrementCents" validate:"required,gt=0"`
	StartTime          time.Time `json:"startTime" validate:"required"`
}

type cancelAuctionRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// CreateAuction schedules an auction for the caller's store.
func CreateAuction(svc auctions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID := middleware.StoreIDFromContext(r.Context())
		if storeID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "store context missing"))
			return
		}

		var req createAuctionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Create(r.Context(), auctions.CreateAuctionInput{
			ProductID:          req.ProductID,
			SellerStoreID:      storeID,
			StartingPriceCents: req.StartingPriceCents,
			MinIncrementCents:  req.MinIncrementCents,
			StartTime:          req.StartTime,
			ActorUserID:        middleware.UserIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// GetAuction returns one auction snapshot.
func GetAuction(svc auctions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := auctionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// ListOpenAuctions returns scheduled and active auctions.
func ListOpenAuctions(svc auctions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset, err := validators.Pagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		views, err := svc.ListOpen(r.Context(), limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views)
	}
}

// ListSellerAuctions returns the caller store's auctions, newest first.
func ListSellerAuctions(svc auctions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID := middleware.StoreIDFromContext(r.Context())
		if storeID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "store context missing"))
			return
		}
		limit, offset, err := validators.Pagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		views, err := svc.ListBySeller(r.Context(), storeID, limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views)
	}
}

// CancelAuction withdraws an auction before it produced a sale.
func CancelAuction(svc auctions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := auctionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req cancelAuctionRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		err = svc.Cancel(r.Context(), auctions.CancelInput{
			AuctionID:    id,
			ActorUserID:  middleware.UserIDFromContext(r.Context()),
			ActorStoreID: middleware.StoreIDFromContext(r.Context()),
			ActorRole:    middleware.RoleFromContext(r.Context()),
			Reason:       req.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"cancelled": true})
	}
}

// ForceStopAuction collapses an active auction's countdown and settles it on
// the spot, accepting the current highest bid. The expiry sweep remains the
// backstop if the settlement call fails after the collapse. Admin only.
func ForceStopAuction(svc auctions.Service, settle settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := auctionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.ForceStop(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := settle.EndAuction(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSettlementResponse(result))
	}
}

type settlementResponse struct {
	AuctionID       uuid.UUID           `json:"auctionId"`
	Status          enums.AuctionStatus `json:"status"`
	Settled         bool                `json:"settled"`
	WinnerID        *uuid.UUID          `json:"winnerId,omitempty"`
	OrderID         *uuid.UUID          `json:"orderId,omitempty"`
	FinalPriceCents int                 `json:"finalPriceCents"`
	OrderError      string              `json:"orderError,omitempty"`
}

func toSettlementResponse(result *settlement.Result) settlementResponse {
	return settlementResponse{
		AuctionID:       result.AuctionID,
		Status:          result.Status,
		Settled:         result.Settled,
		WinnerID:        result.WinnerID,
		OrderID:         result.OrderID,
		FinalPriceCents: result.FinalPriceCents,
		OrderError:      result.OrderError,
	}
}

// EndAuctionNow settles an expired auction without waiting for the sweep.
// Safe to repeat: an already-ended auction reports its persisted outcome.
// Admin only.
func EndAuctionNow(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := auctionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.EndAuction(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSettlementResponse(result))
	}
}

func auctionIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "auctionID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid auction id")
	}
	return id, nil
}
