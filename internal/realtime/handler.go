package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/angelmondragon/bidfinderz-backend/internal/auctions"
	"github.com/angelmondragon/bidfinderz-backend/internal/bidding"
	pkgauth "github.com/angelmondragon/bidfinderz-backend/pkg/auth"
	"github.com/angelmondragon/bidfinderz-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/bidfinderz-backend/pkg/errors"
	"github.com/angelmondragon/bidfinderz-backend/pkg/logger"
)

type auctionGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*auctions.AuctionView, error)
}

type bidSubmitter interface {
	SubmitBid(ctx context.Context, input bidding.SubmitBidInput) (*bidding.BidResult, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Cross-origin browsers are expected; the JWT is the access control.
		return true
	},
}

// Handler upgrades authenticated HTTP requests to auction websockets and
// dispatches inbound frames to the engine.
type Handler struct {
	cfg      config.JWTConfig
	hub      *Hub
	auctions auctionGetter
	bids     bidSubmitter
	logg     *logger.Logger
}

// HandlerParams collects the gateway handler dependencies.
type HandlerParams struct {
	JWT      config.JWTConfig
	Hub      *Hub
	Auctions auctionGetter
	Bids     bidSubmitter
	Logger   *logger.Logger
}

func NewHandler(params HandlerParams) (*Handler, error) {
	if params.Hub == nil {
		return nil, fmt.Errorf("hub required")
	}
	if params.Auctions == nil {
		return nil, fmt.Errorf("auction getter required")
	}
	if params.Bids == nil {
		return nil, fmt.Errorf("bid submitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Handler{
		cfg:      params.JWT,
		hub:      params.Hub,
		auctions: params.Auctions,
		bids:     params.Bids,
		logg:     params.Logger,
	}, nil
}

// ServeHTTP handles GET /ws. Browsers cannot set headers on websocket
// dials, so the token is also accepted as a query parameter.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := h.authenticate(r)
	if err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logg.Error(r.Context(), "websocket upgrade failed", err)
		return
	}

	client := newClient(conn, claims.UserID, claims.StoreID, string(claims.Role))
	go client.writePump()
	h.sendJSON(client, connectedMessage{Type: MsgConnected, ClientID: client.ID})

	go h.readPump(client)
}

func (h *Handler) authenticate(r *http.Request) (*pkgauth.AccessTokenClaims, error) {
	token := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		return nil, fmt.Errorf("missing credentials")
	}
	return pkgauth.ParseAccessToken(h.cfg, token)
}

func (h *Handler) readPump(client *Client) {
	ctx := h.logg.WithUserID(context.Background(), client.UserID.String())
	defer func() {
		h.hub.RemoveClient(client)
		client.Close()
	}()

	client.conn.SetReadLimit(maxMessageSize)
	_ = client.conn.SetReadDeadline(timeNow().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(timeNow().Add(pongWait))
	})

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logg.Warn(ctx, "websocket closed unexpectedly")
			}
			return
		}

		var msg InboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.sendError(client, nil, pkgerrors.New(pkgerrors.CodeValidation, "malformed message"))
			continue
		}
		h.dispatch(ctx, client, msg)
	}
}

func (h *Handler) dispatch(ctx context.Context, client *Client, msg InboundMessage) {
	if msg.AuctionID == uuid.Nil {
		h.sendError(client, nil, pkgerrors.New(pkgerrors.CodeValidation, "auction id required"))
		return
	}
	auctionID := msg.AuctionID

	switch msg.Type {
	case MsgJoinAuction:
		view, err := h.auctions.Get(ctx, auctionID)
		if err != nil {
			h.sendError(client, &auctionID, err)
			return
		}
		h.hub.Join(ctx, client, auctionID)
		h.sendJSON(client, auctionStateMessage{Type: MsgAuctionState, Auction: *view})

	case MsgLeaveAuction:
		h.hub.Leave(client, auctionID)

	case MsgPlaceBid:
		result, err := h.bids.SubmitBid(ctx, bidding.SubmitBidInput{
			AuctionID:   auctionID,
			BidderID:    client.UserID,
			AmountCents: msg.AmountCents,
		})
		if err != nil {
			h.sendError(client, &auctionID, err)
			return
		}
		h.sendJSON(client, bidSuccessMessage{Type: MsgBidSuccess, Bid: *result})

	default:
		h.sendError(client, &auctionID, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown message type %q", msg.Type)))
	}
}

func (h *Handler) sendError(client *Client, auctionID *uuid.UUID, err error) {
	code := pkgerrors.CodeOf(err)
	meta := pkgerrors.MetadataFor(code)
	out := auctionErrorMessage{
		Type:      MsgAuctionError,
		AuctionID: auctionID,
		Code:      string(code),
		Message:   meta.PublicMessage,
	}
	if typed := pkgerrors.As(err); typed != nil && meta.DetailsAllowed {
		out.Details = typed.Details()
	}
	h.sendJSON(client, out)
}

func (h *Handler) sendJSON(client *Client, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	client.trySend(raw)
}
