package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charterly/internal/cache"
	"charterly/internal/config"
	"charterly/internal/domain"
	"charterly/internal/events"
	"charterly/internal/metrics"
	"charterly/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultRevalidate = 60 * time.Second

// CreateBookingRequestInput is the client-supplied part of a booking request.
type CreateBookingRequestInput struct {
	BoatID string `json:"boatId" validate:"required,max=64"`

	CustomerName  string `json:"customerName" validate:"max=200"`
	CustomerEmail string `json:"customerEmail" validate:"omitempty,email"`
	CustomerPhone string `json:"customerPhone" validate:"max=32"`

	IsMultiDay         bool   `json:"isMultiDay"`
	StartDate          string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate            string `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	StartTime          string `json:"startTime" validate:"omitempty,datetime=15:04"`
	EndTime            string `json:"endTime" validate:"omitempty,datetime=15:04"`
	NumberOfHours      int    `json:"numberOfHours" validate:"gte=0,lte=24"`
	NumberOfPassengers int    `json:"numberOfPassengers" validate:"gte=0,lte=500"`
	NeedsCaptain       bool   `json:"needsCaptain"`
	SpecialRequests    string `json:"specialRequests" validate:"max=2000"`

	TotalAmount   float64  `json:"totalAmount" validate:"gt=0"`
	DepositAmount *float64 `json:"depositAmount" validate:"omitempty,gte=0"`
	Currency      string   `json:"currency" validate:"omitempty,len=3,alpha"`
}

type BookingService struct {
	repo     domain.BookingRepository
	cache    *cache.Cache
	eventBus domain.EventPublisher
	sync     domain.SyncWorker
	validate *validator.Validate

	enforceTransitions bool
	invalidateOnWrite  bool
	revalidate         time.Duration
	defaultCurrency    string

	now    func() time.Time
	logger *zerolog.Logger
}

func NewBookingService(
	repo domain.BookingRepository,
	c *cache.Cache,
	eventBus domain.EventPublisher,
	syncWorker domain.SyncWorker,
	bookingCfg config.BookingConfig,
	cacheCfg config.CacheConfig,
	logger *zerolog.Logger,
) *BookingService {
	revalidate := cacheCfg.Revalidate
	if revalidate <= 0 {
		revalidate = defaultRevalidate
	}
	currency := strings.ToUpper(bookingCfg.DefaultCurrency)
	if currency == "" {
		currency = models.DefaultCurrency
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BookingService{
		repo:               repo,
		cache:              c,
		eventBus:           eventBus,
		sync:               syncWorker,
		validate:           newValidator(),
		enforceTransitions: bookingCfg.EnforceTransitions,
		invalidateOnWrite:  cacheCfg.InvalidateOnWrite,
		revalidate:         revalidate,
		defaultCurrency:    currency,
		now:                time.Now,
		logger:             logger,
	}
}

// Cache tags for booking reads.
const TagBookings = "bookings"

func bookingTag(id string) string          { return "booking-" + id }
func userBookingsTag(userID string) string { return "user-bookings-" + userID }
func boatBookingsTag(boatID string) string { return "boat-bookings-" + boatID }

// CreateBookingRequest validates input and stores a new PENDING request owned by
// the actor when the actor is signed in.
func (s *BookingService) CreateBookingRequest(ctx context.Context, actor domain.Actor, in CreateBookingRequestInput) (*models.BookingRequest, error) {
	in = in.normalized()
	if err := s.validateInput(in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	req := &models.BookingRequest{
		ID:                 uuid.NewString(),
		BoatID:             in.BoatID,
		CustomerName:       in.CustomerName,
		CustomerEmail:      in.CustomerEmail,
		CustomerPhone:      in.CustomerPhone,
		IsMultiDay:         in.IsMultiDay,
		StartDate:          in.StartDate,
		EndDate:            in.EndDate,
		StartTime:          in.StartTime,
		EndTime:            in.EndTime,
		NumberOfHours:      in.NumberOfHours,
		NumberOfPassengers: in.NumberOfPassengers,
		NeedsCaptain:       in.NeedsCaptain,
		SpecialRequests:    in.SpecialRequests,
		TotalAmount:        in.TotalAmount,
		DepositAmount:      in.DepositAmount,
		Currency:           in.Currency,
		Status:             models.StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if req.Currency == "" {
		req.Currency = s.defaultCurrency
	}
	if actor.Authenticated() {
		uid := actor.UserID
		req.UserID = &uid
	}

	if err := s.repo.CreateBookingRequest(ctx, req); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("booking_request_id", req.ID).
		Str("boat_id", req.BoatID).
		Str("user_id", req.OwnerID()).
		Msg("Booking request created")

	s.publishEvent(events.EventBookingRequestCreated, req, "", actor)
	s.enqueueSync(ctx, req)
	if s.invalidateOnWrite {
		tags := []string{boatBookingsTag(req.BoatID)}
		if owner := req.OwnerID(); owner != "" {
			tags = append(tags, userBookingsTag(owner))
		}
		s.invalidate(ctx, tags...)
	}

	return req, nil
}

// normalized trims free-text fields and drops endDate for single-day
// requests, so validation sees what will be stored.
func (in CreateBookingRequestInput) normalized() CreateBookingRequestInput {
	in.BoatID = strings.TrimSpace(in.BoatID)
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerEmail = strings.TrimSpace(in.CustomerEmail)
	in.CustomerPhone = strings.TrimSpace(in.CustomerPhone)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if !in.IsMultiDay {
		in.EndDate = ""
	}
	return in
}

func (s *BookingService) validateInput(in CreateBookingRequestInput) error {
	verr := &domain.ValidationError{}
	if err := s.validate.Struct(in); err != nil {
		verr = toValidationError(err)
	}

	if in.IsMultiDay {
		switch {
		case in.EndDate == "":
			verr.Add("endDate", "is required for multi-day bookings")
		case in.StartDate != "" && in.EndDate < in.StartDate:
			// both fields are YYYY-MM-DD here, so lexical order is date order
			verr.Add("endDate", "must not be before startDate")
		}
	}
	if in.DepositAmount != nil && *in.DepositAmount > in.TotalAmount {
		verr.Add("depositAmount", "must not exceed totalAmount")
	}

	if verr.Empty() {
		return nil
	}
	return verr
}

// GetBookingRequest returns a request by id through the request cache.
func (s *BookingService) GetBookingRequest(ctx context.Context, id string) (*models.BookingRequest, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.NewValidationError("id", "is required")
	}
	return cache.Fetch(ctx, s.cache, "booking-request:"+id,
		func(ctx context.Context) (*models.BookingRequest, error) {
			return s.repo.GetBookingRequest(ctx, id)
		},
		cache.Options{Revalidate: s.revalidate, Tags: []string{TagBookings, bookingTag(id)}},
	)
}

// GetUserBookingRequests lists a user's requests. Users see their own; admins see anyone's.
func (s *BookingService) GetUserBookingRequests(ctx context.Context, actor domain.Actor, userID string) ([]*models.BookingRequest, error) {
	if !actor.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	if userID == "" {
		userID = actor.UserID
	}
	if userID != actor.UserID && !actor.IsAdmin() {
		return nil, domain.ErrUnauthorized
	}
	return cache.Fetch(ctx, s.cache, "user-booking-requests:"+userID,
		func(ctx context.Context) ([]*models.BookingRequest, error) {
			return s.repo.GetUserBookingRequests(ctx, userID)
		},
		cache.Options{Revalidate: s.revalidate, Tags: []string{TagBookings, userBookingsTag(userID)}},
	)
}

// GetBoatBookingRequests lists every request for a boat. Admin only.
func (s *BookingService) GetBoatBookingRequests(ctx context.Context, actor domain.Actor, boatID string) ([]*models.BookingRequest, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrUnauthorized
	}
	boatID = strings.TrimSpace(boatID)
	if boatID == "" {
		return nil, domain.NewValidationError("boatId", "is required")
	}
	return cache.Fetch(ctx, s.cache, "boat-booking-requests:"+boatID,
		func(ctx context.Context) ([]*models.BookingRequest, error) {
			return s.repo.GetBoatBookingRequests(ctx, boatID)
		},
		cache.Options{Revalidate: s.revalidate, Tags: []string{TagBookings, boatBookingsTag(boatID)}},
	)
}

// UpdateBookingRequestStatus records an admin review decision. A nil
// reviewNotes keeps whatever notes are already stored.
func (s *BookingService) UpdateBookingRequestStatus(ctx context.Context, actor domain.Actor, id string, status models.BookingStatus, reviewNotes *string) (*models.BookingRequest, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrUnauthorized
	}

	id = strings.TrimSpace(id)
	verr := &domain.ValidationError{}
	if id == "" {
		verr.Add("id", "is required")
	}
	status = models.BookingStatus(strings.ToUpper(string(status)))
	if !status.Valid() {
		verr.Add("status", fmt.Sprintf("unknown status %q", status))
	}
	if !verr.Empty() {
		return nil, verr
	}

	current, err := s.repo.GetBookingRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.enforceTransitions && !models.CanTransition(current.Status, status) {
		return nil, fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, current.Status, status)
	}

	notes := current.ReviewNotes
	if reviewNotes != nil {
		notes = *reviewNotes
	}
	return s.applyStatus(ctx, actor, current, status, notes)
}

func (s *BookingService) applyStatus(ctx context.Context, actor domain.Actor, current *models.BookingRequest, status models.BookingStatus, notes string) (*models.BookingRequest, error) {
	now := s.now().UTC()
	if err := s.repo.UpdateBookingRequestStatus(ctx, current.ID, status, notes, now); err != nil {
		return nil, err
	}

	previous := current.Status
	updated := *current
	updated.Status = status
	updated.ReviewNotes = notes
	updated.ReviewedAt = &now
	updated.UpdatedAt = now

	metrics.IncStatusTransition(string(previous), string(status))
	s.logger.Info().
		Str("booking_request_id", updated.ID).
		Str("from", string(previous)).
		Str("to", string(status)).
		Str("changed_by", changedBy(actor)).
		Msg("Booking request status changed")

	s.publishEvent(events.EventBookingRequestStatusChanged, &updated, previous, actor)
	s.enqueueSync(ctx, &updated)
	s.invalidateRequest(ctx, &updated)

	return &updated, nil
}

// UpdateBookingRequestPaymentInfo attaches payment-link fields without touching status.
func (s *BookingService) UpdateBookingRequestPaymentInfo(ctx context.Context, actor domain.Actor, id string, info models.PaymentInfo) (*models.BookingRequest, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrUnauthorized
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.NewValidationError("id", "is required")
	}
	if info.ProviderRef == "" && info.LinkURL == "" && info.ExpiresAt == nil {
		return nil, domain.NewValidationError("payment", "at least one payment field is required")
	}

	req, err := s.repo.GetBookingRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Merge(info)
	req.UpdatedAt = s.now().UTC()

	if err := s.repo.UpdateBookingRequestPayment(ctx, req); err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingRequestPaymentUpdate, req, "", actor)
	s.enqueueSync(ctx, req)
	s.invalidateRequest(ctx, req)

	return req, nil
}

// ListBookingRequests returns requests created in [from, to) for admin export. Uncached.
func (s *BookingService) ListBookingRequests(ctx context.Context, actor domain.Actor, from, to time.Time) ([]*models.BookingRequest, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrUnauthorized
	}
	if !to.After(from) {
		return nil, domain.NewValidationError("to", "must be after from")
	}
	return s.repo.ListBookingRequests(ctx, from, to)
}

// ExpireStalePaymentLinks moves AWAITING requests whose payment link expired
// at or before now to EXPIRED and returns how many were moved.
func (s *BookingService) ExpireStalePaymentLinks(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.repo.GetExpiredPaymentLinks(ctx, now)
	if err != nil {
		return 0, err
	}

	system := domain.Actor{}
	expired := 0
	for _, req := range stale {
		if _, err := s.applyStatus(ctx, system, req, models.StatusExpired, "payment link expired"); err != nil {
			if errors.Is(err, context.Canceled) {
				return expired, err
			}
			s.logger.Error().Err(err).Str("booking_request_id", req.ID).Msg("failed to expire booking request")
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *BookingService) invalidateRequest(ctx context.Context, req *models.BookingRequest) {
	if !s.invalidateOnWrite {
		return
	}
	tags := []string{bookingTag(req.ID), boatBookingsTag(req.BoatID)}
	if owner := req.OwnerID(); owner != "" {
		tags = append(tags, userBookingsTag(owner))
	}
	s.invalidate(ctx, tags...)
}

func (s *BookingService) invalidate(ctx context.Context, tags ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateTags(ctx, tags...); err != nil {
		s.logger.Warn().Err(err).Strs("tags", tags).Msg("cache invalidation failed")
	}
}

func (s *BookingService) publishEvent(eventType string, req *models.BookingRequest, previous models.BookingStatus, actor domain.Actor) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingRequestPayload{
		BookingRequestID: req.ID,
		BoatID:           req.BoatID,
		UserID:           req.OwnerID(),
		CustomerName:     req.CustomerName,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		TotalAmount:      req.TotalAmount,
		Currency:         req.Currency,
		Status:           string(req.Status),
		PreviousStatus:   string(previous),
		ReviewNotes:      req.ReviewNotes,
		ChangedBy:        changedBy(actor),
		OccurredAt:       s.now().UTC(),
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_request_id", req.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, req *models.BookingRequest) {
	if s.sync == nil {
		return
	}
	if err := s.sync.EnqueueBookingRequest(ctx, req); err != nil {
		s.logger.Error().Err(err).Str("booking_request_id", req.ID).Msg("sheets enqueue error")
	}
}

func changedBy(actor domain.Actor) string {
	if !actor.Authenticated() {
		return "system"
	}
	return actor.UserID
}
