package models

import "time"

type VerificationStatus string

const (
	VerificationPending VerificationStatus = "PENDING"
	VerificationPassed  VerificationStatus = "PASSED"
	VerificationFailed  VerificationStatus = "FAILED"
)

// VerificationRecord tracks one phone-ownership check run by the external provider.
type VerificationRecord struct {
	ID              string             `json:"id"`
	UserID          string             `json:"userId"`
	PhoneNumber     string             `json:"phoneNumber"`
	VerificationSID string             `json:"verificationSid"`
	Status          VerificationStatus `json:"status"`
	ProviderStatus  string             `json:"providerStatus"`
	VerifiedAt      *time.Time         `json:"verifiedAt,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}
