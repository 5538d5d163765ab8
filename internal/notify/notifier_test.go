package notify

import (
	"errors"
	"testing"
	"time"

	"charterly/internal/events"
	"charterly/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTelegramSender struct {
	mock.Mock
}

func (m *mockTelegramSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func samplePayload() events.BookingRequestPayload {
	return events.BookingRequestPayload{
		BookingRequestID: "br-1",
		BoatID:           "boat_7",
		CustomerName:     "Alice",
		StartDate:        "2024-07-01",
		EndDate:          "2024-07-03",
		TotalAmount:      1250.5,
		Currency:         "USD",
		Status:           "APPROVED",
		PreviousStatus:   "PENDING",
		ReviewNotes:      "ok",
		OccurredAt:       time.Now(),
	}
}

func TestFormatBookingRequestMessage(t *testing.T) {
	p := samplePayload()

	text := formatBookingRequestMessage(events.EventBookingRequestStatusChanged, p)
	assert.Contains(t, text, "PENDING → APPROVED")
	assert.Contains(t, text, `Boat: boat\_7`)
	assert.Contains(t, text, "Dates: 2024-07-01 to 2024-07-03")
	assert.Contains(t, text, "Amount: 1250.50 USD")
	assert.Contains(t, text, "Notes: ok")

	p.EndDate = ""
	p.ReviewNotes = ""
	text = formatBookingRequestMessage(events.EventBookingRequestCreated, p)
	assert.Contains(t, text, "New booking request")
	assert.Contains(t, text, "Date: 2024-07-01")
	assert.NotContains(t, text, "Notes:")
}

func TestNotifierSendsToEveryChat(t *testing.T) {
	sender := new(mockTelegramSender)
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ParseMode == models.ParseModeMarkdown && (msg.ChatID == 10 || msg.ChatID == 20)
	})).Return(tgbotapi.Message{}, nil).Twice()

	n := NewNotifier(sender, []int64{10, 20}, nil)
	bus := events.NewEventBus(nil)
	n.Register(bus)

	require.NoError(t, bus.PublishJSON(events.EventBookingRequestCreated, samplePayload()))
	sender.AssertExpectations(t)
}

func TestNotifierContinuesAfterFailure(t *testing.T) {
	sender := new(mockTelegramSender)
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		return c.(tgbotapi.MessageConfig).ChatID == 10
	})).Return(tgbotapi.Message{}, errors.New("blocked")).Once()
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		return c.(tgbotapi.MessageConfig).ChatID == 20
	})).Return(tgbotapi.Message{}, nil).Once()

	n := NewNotifier(sender, []int64{10, 20}, nil)
	raw := `{"booking_request_id":"br-1","status":"PENDING"}`
	err := n.HandleBookingRequestEvent(&events.Event{Type: events.EventBookingRequestCreated, Payload: []byte(raw)})

	assert.Error(t, err)
	sender.AssertExpectations(t)
}

func TestNotifierBadPayload(t *testing.T) {
	n := NewNotifier(new(mockTelegramSender), []int64{10}, nil)
	err := n.HandleBookingRequestEvent(&events.Event{Type: events.EventBookingRequestCreated, Payload: []byte("{")})
	assert.Error(t, err)
}
