package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/angelmondragon/bidfinderz-backend/pkg/logger"
)

// countdownTracker mirrors room membership into the countdown supervisor:
// the first watcher arms local supervision, the last one hands the auction
// back to the expiry sweep.
type countdownTracker interface {
	Track(ctx context.Context, auctionID uuid.UUID) error
	Release(auctionID uuid.UUID)
}

// Hub tracks which local clients watch which auction room and fans room
// payloads out to them. Cross-instance delivery happens over redis pub/sub;
// the hub only owns this process's sockets.
type Hub struct {
	logg    *logger.Logger
	tracker countdownTracker

	mu    sync.RWMutex
	rooms map[uuid.UUID]map[*Client]struct{}
}

func NewHub(tracker countdownTracker, logg *logger.Logger) (*Hub, error) {
	if tracker == nil {
		return nil, fmt.Errorf("countdown tracker required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Hub{
		logg:    logg,
		tracker: tracker,
		rooms:   make(map[uuid.UUID]map[*Client]struct{}),
	}, nil
}

// Join subscribes a client to an auction room.
func (h *Hub) Join(ctx context.Context, client *Client, auctionID uuid.UUID) {
	h.mu.Lock()
	room, ok := h.rooms[auctionID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[auctionID] = room
	}
	room[client] = struct{}{}
	first := len(room) == 1
	h.mu.Unlock()

	if first {
		if err := h.tracker.Track(ctx, auctionID); err != nil {
			logCtx := h.logg.WithAuctionID(ctx, auctionID.String())
			h.logg.Warn(logCtx, "countdown tracking failed")
		}
	}
}

// Leave unsubscribes a client from an auction room.
func (h *Hub) Leave(client *Client, auctionID uuid.UUID) {
	h.mu.Lock()
	room, ok := h.rooms[auctionID]
	if ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, auctionID)
		} else {
			ok = false
		}
	}
	h.mu.Unlock()

	if ok {
		h.tracker.Release(auctionID)
	}
}

// RemoveClient drops the client from every room it joined.
func (h *Hub) RemoveClient(client *Client) {
	h.mu.Lock()
	var emptied []uuid.UUID
	for auctionID, room := range h.rooms {
		if _, ok := room[client]; !ok {
			continue
		}
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, auctionID)
			emptied = append(emptied, auctionID)
		}
	}
	h.mu.Unlock()

	for _, auctionID := range emptied {
		h.tracker.Release(auctionID)
	}
}

// BroadcastRoom delivers a payload to every local client in the room. A
// client whose send buffer is full is dropped so one slow reader cannot
// stall the room.
func (h *Hub) BroadcastRoom(auctionID uuid.UUID, payload []byte) {
	h.mu.RLock()
	room := h.rooms[auctionID]
	clients := make([]*Client, 0, len(room))
	for client := range room {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if !client.trySend(payload) {
			h.RemoveClient(client)
			client.Close()
		}
	}
}

// RoomSize reports how many local clients watch the auction.
func (h *Hub) RoomSize(auctionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[auctionID])
}
