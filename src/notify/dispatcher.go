package notify

import (
	"encoding/json"
	"log/slog"

	"orchestrator-service/src/rabbitmq"
	"orchestrator-service/src/schemas"
)

// NotificationsExchange is the fanout exchange the push-notification
// workers consume from.
const NotificationsExchange = "session.notifications"

// pushMessage is the payload handed to the notification workers.
type pushMessage struct {
	PartyID string        `json:"party_id"`
	Event   schemas.Event `json:"event"`
}

// Dispatcher publishes session events for parties that have no live
// transport handle. Fire and forget: failures are logged and never block
// session progress.
type Dispatcher struct {
	publisher rabbitmq.Publisher
}

// NewDispatcher creates a dispatcher over the given publisher.
func NewDispatcher(publisher rabbitmq.Publisher) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
	}
}

// Notify queues a push notification for the party.
func (d *Dispatcher) Notify(partyID string, event schemas.Event) {
	body, err := json.Marshal(pushMessage{PartyID: partyID, Event: event})
	if err != nil {
		slog.Error("Failed to marshal push notification", "party_id", partyID, "error", err)
		return
	}

	if err := d.publisher.Publish(NotificationsExchange, body); err != nil {
		slog.Error("Failed to publish push notification",
			"party_id", partyID,
			"event", event.Type,
			"error", err)
	}
}
