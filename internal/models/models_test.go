package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to BookingStatus
		want     bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusDenied, true},
		{StatusPending, StatusConfirmed, false},
		{StatusApproved, StatusAwaiting, true},
		{StatusApproved, StatusConfirmed, true},
		{StatusApproved, StatusCancelled, true},
		{StatusApproved, StatusExpired, false},
		{StatusAwaiting, StatusConfirmed, true},
		{StatusAwaiting, StatusExpired, true},
		{StatusAwaiting, StatusCancelled, true},
		{StatusDenied, StatusConfirmed, false},
		{StatusConfirmed, StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []BookingStatus{StatusConfirmed, StatusDenied, StatusExpired, StatusCancelled} {
		assert.True(t, s.IsTerminal(), s)
		assert.Empty(t, AllowedTransitions[s], s)
	}
	for _, s := range []BookingStatus{StatusPending, StatusApproved, StatusAwaiting} {
		assert.False(t, s.IsTerminal(), s)
	}
	assert.False(t, BookingStatus("SHIPPED").Valid())
	assert.True(t, StatusAwaiting.Valid())
}

func TestMergePaymentInfo(t *testing.T) {
	exp := time.Date(2024, 7, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	b := &BookingRequest{Status: StatusApproved, PaymentProviderRef: "old", PaymentLinkURL: "https://pay/old"}

	b.Merge(PaymentInfo{LinkURL: "https://pay/new", ExpiresAt: &exp})

	assert.Equal(t, "old", b.PaymentProviderRef)
	assert.Equal(t, "https://pay/new", b.PaymentLinkURL)
	assert.Equal(t, exp.UTC(), *b.PaymentLinkExpiry)
	assert.Equal(t, StatusApproved, b.Status)
}

func TestOwnerID(t *testing.T) {
	assert.Equal(t, "", (&BookingRequest{}).OwnerID())
	id := "u1"
	assert.Equal(t, "u1", (&BookingRequest{UserID: &id}).OwnerID())
}
