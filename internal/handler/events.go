package handler

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
	"github.com/vitrine-shop/api/internal/order"
	"github.com/vitrine-shop/api/internal/ws"
)

// Order feed event types.
const (
	EventOrderCreated   = "order.created"
	EventOrderUpdated   = "order.updated"
	EventOrderCancelled = "order.cancelled"
)

// Broadcaster pushes events to the staff order feed. Satisfied by *ws.Hub;
// nil-able in tests.
type Broadcaster interface {
	Broadcast(event ws.Event)
}

// broadcastOrder publishes the order to the staff feed. Feed delivery is best
// effort and never fails the request.
func broadcastOrder(hub Broadcaster, eventType string, o *order.Order) {
	if hub == nil {
		return
	}
	payload, err := json.Marshal(o)
	if err != nil {
		log.Error().Err(err).Msg("marshal order event")
		return
	}
	hub.Broadcast(ws.Event{Type: eventType, Payload: payload})
}
