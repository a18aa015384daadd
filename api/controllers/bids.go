package controllers

import (
	"net/http"

	"github.com/angelmondragon/bidfinderz-backend/api/middleware"
	"github.com/angelmondragon/bidfinderz-backend/api/responses"
	"github.com/angelmondragon/bidfinderz-backend/api/validators"
	"github.com/angelmondragon/bidfinderz-backend/internal/bidding"
	"github.com/angelmondragon/bidfinderz-backend/pkg/logger"
)

type placeBidRequest struct {
	AmountCents int `json:"amountCents" validate:"required,gt=0"`
}

// PlaceBid submits a bid over plain HTTP. The websocket gateway is the hot
// path; this exists for clients without a socket.
func PlaceBid(svc bidding.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auctionID, err := auctionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req placeBidRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.SubmitBid(r.Context(), bidding.SubmitBidInput{
			AuctionID:   auctionID,
			BidderID:    middleware.UserIDFromContext(r.Context()),
			AmountCents: req.AmountCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// ListBids returns the newest accepted bids for an auction.
func ListBids(svc bidding.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auctionID, err := auctionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, _, err := validators.Pagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bids, err := svc.History(r.Context(), auctionID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bids)
	}
}
