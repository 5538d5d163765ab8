package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	EventBookingRequestCreated       = "booking_request_created"
	EventBookingRequestStatusChanged = "booking_request_status_changed"
	EventBookingRequestPaymentUpdate = "booking_request_payment_updated"
	EventPhoneVerified               = "phone_verified"
)

// BookingRequestPayload is the booking snapshot handed to event consumers.
type BookingRequestPayload struct {
	BookingRequestID string    `json:"booking_request_id"`
	BoatID           string    `json:"boat_id"`
	UserID           string    `json:"user_id,omitempty"`
	CustomerName     string    `json:"customer_name,omitempty"`
	StartDate        string    `json:"start_date"`
	EndDate          string    `json:"end_date,omitempty"`
	TotalAmount      float64   `json:"total_amount"`
	Currency         string    `json:"currency"`
	Status           string    `json:"status"`
	PreviousStatus   string    `json:"previous_status,omitempty"`
	ReviewNotes      string    `json:"review_notes,omitempty"`
	ChangedBy        string    `json:"changed_by,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// PhoneVerifiedPayload is emitted when a user's phone becomes verified.
type PhoneVerifiedPayload struct {
	UserID          string    `json:"user_id"`
	PhoneNumber     string    `json:"phone_number"`
	VerificationSID string    `json:"verification_sid"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      zerolog.Logger
}

// NewEventBus constructs an empty bus. Handler errors are logged to logger.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "events").Logger()
	}
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: l}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type synchronously.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			b.logger.Warn().Err(err).Str("event", event.Type).Msg("event handler failed")
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
