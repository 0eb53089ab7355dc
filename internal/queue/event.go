// Package queue defines the reservation events exchanged over RabbitMQ
// and the consumer that records them.
package queue

// Queue that carries every reservation event.
const ReservationQueueName = "reservation.events"

// Event types.
const (
	EventBooked    = "reservation.booked"
	EventCancelled = "reservation.cancelled"
)

// ReservationEvent is published after a booking or cancellation has been
// written to the store.  It carries enough detail for downstream consumers
// to log or notify without reading the reservations table.
type ReservationEvent struct {
	EventID        string   `json:"event_id"`
	Type           string   `json:"type"`
	ReservationIDs []uint64 `json:"reservation_ids"`
	ReserverName   string   `json:"reserver_name"`
	Purpose        string   `json:"purpose"`
	Room           string   `json:"room"`
	Date           string   `json:"date"`
	Time           string   `json:"time"`
	OccurredAt     string   `json:"occurred_at"`
}
