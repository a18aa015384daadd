package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bidfinderz-backend/api/middleware"
	"github.com/angelmondragon/bidfinderz-backend/internal/auctions"
	"github.com/angelmondragon/bidfinderz-backend/internal/settlement"
	"github.com/angelmondragon/bidfinderz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bidfinderz-backend/pkg/errors"
)

func TestCreateAuction(t *testing.T) {
	logg := testControllerLogger()
	storeID := uuid.New()
	userID := uuid.New()
	productID := uuid.New()
	startTime := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)

	body := `{"productId":"` + productID.String() + `","startingPriceCents":1000,"minIncrementCents":100,"startTime":"` + startTime + `"}`

	t.Run("missing store", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auctions", strings.NewReader(body))
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
		rec := httptest.NewRecorder()
		CreateAuction(&stubAuctionService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403 when store missing, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		stub := &stubAuctionService{view: &auctions.AuctionView{ID: uuid.New(), ProductID: productID}}
		ctx := middleware.WithStoreID(context.Background(), storeID)
		ctx = middleware.WithUserID(ctx, userID)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auctions", strings.NewReader(body)).WithContext(ctx)
		rec := httptest.NewRecorder()
		CreateAuction(stub, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if stub.created.SellerStoreID != storeID {
			t.Fatalf("store must come from the token context, got %s", stub.created.SellerStoreID)
		}
		if stub.created.ActorUserID != userID {
			t.Fatalf("actor must come from the token context, got %s", stub.created.ActorUserID)
		}
		if stub.created.ProductID != productID || stub.created.MinIncrementCents != 100 {
			t.Fatalf("unexpected input %+v", stub.created)
		}
	})

	t.Run("missing increment", func(t *testing.T) {
		ctx := middleware.WithStoreID(context.Background(), storeID)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auctions",
			strings.NewReader(`{"productId":"`+productID.String()+`","startTime":"`+startTime+`"}`)).WithContext(ctx)
		rec := httptest.NewRecorder()
		CreateAuction(&stubAuctionService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for missing increment, got %d", rec.Code)
		}
	})
}

func TestGetAuctionNotFound(t *testing.T) {
	logg := testControllerLogger()
	stub := &stubAuctionService{err: pkgerrors.New(pkgerrors.CodeAuctionNotFound, "auction not found")}

	req := requestWithAuctionID(http.MethodGet, "/api/v1/auctions/x", "", uuid.NewString())
	rec := httptest.NewRecorder()
	GetAuction(stub, logg).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeAuctionNotFound) {
		t.Fatalf("unexpected error code %q", body.Error.Code)
	}
}

func TestCancelAuction(t *testing.T) {
	logg := testControllerLogger()
	auctionID := uuid.New()
	userID := uuid.New()
	storeID := uuid.New()

	t.Run("with reason", func(t *testing.T) {
		stub := &stubAuctionService{}
		req := requestWithAuctionID(http.MethodPost, "/api/v1/auctions/"+auctionID.String()+"/cancel",
			`{"reason":"listing mistake"}`, auctionID.String())
		ctx := middleware.WithUserID(req.Context(), userID)
		ctx = middleware.WithStoreID(ctx, storeID)
		ctx = middleware.WithRole(ctx, "seller")
		req = req.WithContext(ctx)
		rec := httptest.NewRecorder()
		CancelAuction(stub, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if stub.cancelled.AuctionID != auctionID || stub.cancelled.Reason != "listing mistake" {
			t.Fatalf("unexpected cancel input %+v", stub.cancelled)
		}
		if stub.cancelled.ActorStoreID != storeID || stub.cancelled.ActorRole != "seller" {
			t.Fatalf("actor fields must come from context, got %+v", stub.cancelled)
		}
	})

	t.Run("empty body allowed", func(t *testing.T) {
		stub := &stubAuctionService{}
		req := requestWithAuctionID(http.MethodPost, "/api/v1/auctions/"+auctionID.String()+"/cancel",
			"", auctionID.String())
		rec := httptest.NewRecorder()
		CancelAuction(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 for empty body, got %d", rec.Code)
		}
	})

	t.Run("conflict surfaces", func(t *testing.T) {
		stub := &stubAuctionService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "auction already has bids")}
		req := requestWithAuctionID(http.MethodPost, "/api/v1/auctions/"+auctionID.String()+"/cancel",
			"", auctionID.String())
		rec := httptest.NewRecorder()
		CancelAuction(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
	})
}

func TestForceStopAuction(t *testing.T) {
	logg := testControllerLogger()
	auctionID := uuid.New()
	winner := uuid.New()

	t.Run("settles immediately", func(t *testing.T) {
		stub := &stubAuctionService{}
		settle := &stubSettlementService{result: &settlement.Result{
			AuctionID:       auctionID,
			Status:          enums.AuctionStatusEnded,
			Settled:         true,
			WinnerID:        &winner,
			FinalPriceCents: 7500,
		}}
		req := requestWithAuctionID(http.MethodPost, "/api/v1/admin/auctions/"+auctionID.String()+"/force-stop",
			"", auctionID.String())
		rec := httptest.NewRecorder()
		ForceStopAuction(stub, settle, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if stub.forceStopped != auctionID {
			t.Fatalf("expected force stop for %s, got %s", auctionID, stub.forceStopped)
		}
		if settle.ended != auctionID {
			t.Fatalf("force stop must settle in the same request, got %s", settle.ended)
		}
		var body struct {
			Data settlementResponse `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if !body.Data.Settled || body.Data.WinnerID == nil || *body.Data.WinnerID != winner {
			t.Fatalf("unexpected body %s", rec.Body.String())
		}
	})

	t.Run("inactive auction conflicts", func(t *testing.T) {
		stub := &stubAuctionService{err: pkgerrors.New(pkgerrors.CodeAuctionNotActive, "auction is not active")}
		settle := &stubSettlementService{}
		req := requestWithAuctionID(http.MethodPost, "/api/v1/admin/auctions/"+auctionID.String()+"/force-stop",
			"", auctionID.String())
		rec := httptest.NewRecorder()
		ForceStopAuction(stub, settle, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		if settle.ended != uuid.Nil {
			t.Fatal("failed collapse must not reach settlement")
		}
	})
}

func TestEndAuctionNow(t *testing.T) {
	logg := testControllerLogger()
	auctionID := uuid.New()
	winner := uuid.New()

	t.Run("settled", func(t *testing.T) {
		stub := &stubSettlementService{result: &settlement.Result{
			AuctionID:       auctionID,
			Status:          enums.AuctionStatusEnded,
			Settled:         true,
			WinnerID:        &winner,
			FinalPriceCents: 5000,
		}}
		req := requestWithAuctionID(http.MethodPost, "/api/v1/admin/auctions/"+auctionID.String()+"/end",
			"", auctionID.String())
		rec := httptest.NewRecorder()
		EndAuctionNow(stub, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var body struct {
			Data settlementResponse `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if !body.Data.Settled || body.Data.WinnerID == nil || *body.Data.WinnerID != winner {
			t.Fatalf("unexpected body %s", rec.Body.String())
		}
	})

	t.Run("countdown still running", func(t *testing.T) {
		stub := &stubSettlementService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "countdown still running")}
		req := requestWithAuctionID(http.MethodPost, "/api/v1/admin/auctions/"+auctionID.String()+"/end",
			"", auctionID.String())
		rec := httptest.NewRecorder()
		EndAuctionNow(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
	})
}

type stubSettlementService struct {
	result *settlement.Result
	err    error
	ended  uuid.UUID
}

func (s *stubSettlementService) EndAuction(_ context.Context, auctionID uuid.UUID) (*settlement.Result, error) {
	s.ended = auctionID
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubAuctionService struct {
	view         *auctions.AuctionView
	views        []auctions.AuctionView
	err          error
	created      auctions.CreateAuctionInput
	cancelled    auctions.CancelInput
	forceStopped uuid.UUID
}

func (s *stubAuctionService) Create(_ context.Context, input auctions.CreateAuctionInput) (*auctions.AuctionView, error) {
	s.created = input
	if s.err != nil {
		return nil, s.err
	}
	return s.view, nil
}

func (s *stubAuctionService) Get(context.Context, uuid.UUID) (*auctions.AuctionView, error) {
	return s.view, s.err
}

func (s *stubAuctionService) ListOpen(context.Context, int, int) ([]auctions.AuctionView, error) {
	return s.views, s.err
}

func (s *stubAuctionService) ListBySeller(context.Context, uuid.UUID, int, int) ([]auctions.AuctionView, error) {
	return s.views, s.err
}

func (s *stubAuctionService) Activate(context.Context, uuid.UUID) (bool, error) {
	panic("unimplemented")
}

func (s *stubAuctionService) Cancel(_ context.Context, input auctions.CancelInput) error {
	s.cancelled = input
	return s.err
}

func (s *stubAuctionService) ForceStop(_ context.Context, id uuid.UUID) error {
	s.forceStopped = id
	return s.err
}
