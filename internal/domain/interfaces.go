package domain

import (
	"context"
	"time"

	"charterly/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type BookingRepository interface {
	CreateBookingRequest(ctx context.Context, req *models.BookingRequest) error
	GetBookingRequest(ctx context.Context, id string) (*models.BookingRequest, error)
	UpdateBookingRequestStatus(ctx context.Context, id string, status models.BookingStatus, notes string, at time.Time) error
	UpdateBookingRequestPayment(ctx context.Context, req *models.BookingRequest) error
	GetUserBookingRequests(ctx context.Context, userID string) ([]*models.BookingRequest, error)
	GetBoatBookingRequests(ctx context.Context, boatID string) ([]*models.BookingRequest, error)
	ListBookingRequests(ctx context.Context, from, to time.Time) ([]*models.BookingRequest, error)
	GetExpiredPaymentLinks(ctx context.Context, now time.Time) ([]*models.BookingRequest, error)
}

type VerificationRepository interface {
	CreateVerification(ctx context.Context, rec *models.VerificationRecord) error
	FindVerification(ctx context.Context, phone, sid string) (*models.VerificationRecord, error)
	// ApplyVerificationUpdate writes rec (when writeRecord) and marks the owning
	// user phone-verified (when markUser) inside one transaction.
	ApplyVerificationUpdate(ctx context.Context, rec *models.VerificationRecord, writeRecord, markUser bool) error
}

type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpsertUser(ctx context.Context, user *models.User) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// PhoneVerifier talks to the external verification provider.
type PhoneVerifier interface {
	StartVerification(ctx context.Context, phone, channel string) (*VerificationResult, error)
	CheckVerification(ctx context.Context, phone, code string) (*VerificationResult, error)
}

// VerificationResult is the provider's view of a verification session.
type VerificationResult struct {
	SID    string
	To     string
	Status string
}

type SheetsWriter interface {
	UpsertBookingRequest(ctx context.Context, req *models.BookingRequest) error
}

type SyncWorker interface {
	EnqueueBookingRequest(ctx context.Context, req *models.BookingRequest) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// CacheStore persists request-cache entries. Get returns nil, nil on a miss.
// Expiry is judged by the caller against its own clock.
type CacheStore interface {
	Get(ctx context.Context, key string) (*models.CacheEntry, error)
	Set(ctx context.Context, key string, entry *models.CacheEntry, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	InvalidateTag(ctx context.Context, tag string) error
}

// RateLimiter counts hits per key in a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
