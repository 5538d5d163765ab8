package models

import "time"

// Date and time layouts accepted on booking requests.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "PENDING"
	StatusApproved  BookingStatus = "APPROVED"
	StatusDenied    BookingStatus = "DENIED"
	StatusAwaiting  BookingStatus = "AWAITING"
	StatusConfirmed BookingStatus = "CONFIRMED"
	StatusExpired   BookingStatus = "EXPIRED"
	StatusCancelled BookingStatus = "CANCELLED"
)

// AllowedTransitions maps a status to the statuses reachable from it.
// Terminal statuses have no entry.
var AllowedTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:  {StatusApproved, StatusDenied},
	StatusApproved: {StatusAwaiting, StatusConfirmed, StatusCancelled},
	StatusAwaiting: {StatusConfirmed, StatusExpired, StatusCancelled},
}

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDenied, StatusAwaiting,
		StatusConfirmed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	switch s {
	case StatusConfirmed, StatusDenied, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the table allows moving from one status to another.
func CanTransition(from, to BookingStatus) bool {
	for _, next := range AllowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// BookingRequest is a customer's proposal to charter a boat. BoatID references
// the external boat catalogue and is not resolved here.
type BookingRequest struct {
	ID     string  `json:"id"`
	BoatID string  `json:"boatId"`
	UserID *string `json:"userId,omitempty"`

	CustomerName  string `json:"customerName,omitempty"`
	CustomerEmail string `json:"customerEmail,omitempty"`
	CustomerPhone string `json:"customerPhone,omitempty"`

	IsMultiDay         bool   `json:"isMultiDay"`
	StartDate          string `json:"startDate"`
	EndDate            string `json:"endDate,omitempty"`
	StartTime          string `json:"startTime,omitempty"`
	EndTime            string `json:"endTime,omitempty"`
	NumberOfHours      int    `json:"numberOfHours,omitempty"`
	NumberOfPassengers int    `json:"numberOfPassengers,omitempty"`
	NeedsCaptain       bool   `json:"needsCaptain"`
	SpecialRequests    string `json:"specialRequests,omitempty"`

	TotalAmount   float64  `json:"totalAmount"`
	DepositAmount *float64 `json:"depositAmount,omitempty"`
	Currency      string   `json:"currency"`

	Status      BookingStatus `json:"status"`
	ReviewNotes string        `json:"reviewNotes,omitempty"`
	ReviewedAt  *time.Time    `json:"reviewedAt,omitempty"`

	PaymentProviderRef string     `json:"paymentProviderRef,omitempty"`
	PaymentLinkURL     string     `json:"paymentLinkUrl,omitempty"`
	PaymentLinkExpiry  *time.Time `json:"paymentLinkExpiresAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PaymentInfo carries payment-link fields. Empty fields are left untouched on merge.
type PaymentInfo struct {
	ProviderRef string     `json:"paymentProviderRef"`
	LinkURL     string     `json:"paymentLinkUrl"`
	ExpiresAt   *time.Time `json:"paymentLinkExpiresAt"`
}

// Merge copies the non-empty fields of info onto b.
func (b *BookingRequest) Merge(info PaymentInfo) {
	if info.ProviderRef != "" {
		b.PaymentProviderRef = info.ProviderRef
	}
	if info.LinkURL != "" {
		b.PaymentLinkURL = info.LinkURL
	}
	if info.ExpiresAt != nil {
		exp := info.ExpiresAt.UTC()
		b.PaymentLinkExpiry = &exp
	}
}

// OwnerID returns the user id or "" for guest bookings.
func (b *BookingRequest) OwnerID() string {
	if b.UserID == nil {
		return ""
	}
	return *b.UserID
}
