package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"charterly/internal/config"
	"charterly/internal/domain"
	"charterly/internal/events"
	"charterly/internal/metrics"
	"charterly/internal/models"
	"charterly/internal/verify"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Start attempts allowed per phone number within startWindow.
const (
	startLimit  = 5
	startWindow = 10 * time.Minute
)

// VerificationCallback is the provider's status notification.
type VerificationCallback struct {
	VerificationSID string
	To              string
	Status          string
}

type VerificationService struct {
	repo     domain.VerificationRepository
	users    *UserService
	verifier domain.PhoneVerifier
	limiter  domain.RateLimiter
	eventBus domain.EventPublisher
	region   string
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewVerificationService(
	repo domain.VerificationRepository,
	users *UserService,
	verifier domain.PhoneVerifier,
	limiter domain.RateLimiter,
	eventBus domain.EventPublisher,
	cfg config.VerificationConfig,
	logger *zerolog.Logger,
) *VerificationService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	region := cfg.DefaultRegion
	if region == "" {
		region = "US"
	}
	return &VerificationService{
		repo:     repo,
		users:    users,
		verifier: verifier,
		limiter:  limiter,
		eventBus: eventBus,
		region:   region,
		now:      time.Now,
		logger:   logger,
	}
}

// mapProviderStatus translates a provider status. ok is false for statuses
// that should leave the local status alone.
func mapProviderStatus(status string) (models.VerificationStatus, bool) {
	switch strings.ToLower(status) {
	case "pending":
		return models.VerificationPending, true
	case "approved":
		return models.VerificationPassed, true
	case "canceled", "failed":
		return models.VerificationFailed, true
	}
	return "", false
}

// HandleVerificationCallback reconciles a provider notification with the local
// record. Replaying the same notification changes nothing.
func (s *VerificationService) HandleVerificationCallback(ctx context.Context, cb VerificationCallback) (*models.VerificationRecord, error) {
	verr := &domain.ValidationError{}
	if strings.TrimSpace(cb.VerificationSID) == "" {
		verr.Add("VerificationSid", "is required")
	}
	if strings.TrimSpace(cb.To) == "" {
		verr.Add("To", "is required")
	}
	if strings.TrimSpace(cb.Status) == "" {
		verr.Add("Status", "is required")
	}
	if !verr.Empty() {
		metrics.IncWebhook("invalid")
		return nil, verr
	}

	phone, err := verify.CanonicalE164(cb.To, s.region)
	if err != nil {
		metrics.IncWebhook("invalid")
		return nil, domain.NewValidationError("To", "is not a valid phone number")
	}

	rec, changed, err := s.reconcile(ctx, "", phone, strings.TrimSpace(cb.VerificationSID), strings.TrimSpace(cb.Status))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		metrics.IncWebhook("not_found")
		return nil, err
	case err != nil:
		metrics.IncWebhook("error")
		return nil, err
	case changed:
		metrics.IncWebhook("updated")
	default:
		metrics.IncWebhook("unchanged")
	}
	return rec, nil
}

// reconcile applies providerStatus to the record for (phone, sid). When owner
// is set the record must belong to that user.
func (s *VerificationService) reconcile(ctx context.Context, owner, phone, sid, providerStatus string) (*models.VerificationRecord, bool, error) {
	rec, err := s.repo.FindVerification(ctx, phone, sid)
	if err != nil {
		return nil, false, err
	}
	if owner != "" && rec.UserID != owner {
		return nil, false, domain.ErrUnauthorized
	}

	now := s.now().UTC()
	next := *rec
	next.ProviderStatus = providerStatus
	if mapped, ok := mapProviderStatus(providerStatus); ok {
		next.Status = mapped
	}
	if next.Status == models.VerificationPassed && next.VerifiedAt == nil {
		next.VerifiedAt = &now
	}

	changed := next.Status != rec.Status ||
		next.ProviderStatus != rec.ProviderStatus ||
		(next.VerifiedAt != nil) != (rec.VerifiedAt != nil)
	if changed {
		next.UpdatedAt = now
	}
	markUser := strings.EqualFold(providerStatus, "approved")

	if err := s.repo.ApplyVerificationUpdate(ctx, &next, changed, markUser); err != nil {
		return nil, false, err
	}

	if changed {
		s.logger.Info().
			Str("verification_id", next.ID).
			Str("status", string(next.Status)).
			Str("provider_status", providerStatus).
			Msg("Verification updated")
	}
	if changed && markUser {
		s.publishVerified(&next)
	}
	return &next, changed, nil
}

// StartPhoneVerification asks the provider to send a code to phone and stores a
// PENDING record for the caller.
func (s *VerificationService) StartPhoneVerification(ctx context.Context, actor domain.Actor, phone string) (*models.VerificationRecord, error) {
	if !actor.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	normalized, err := verify.NormalizeE164(phone, s.region)
	if err != nil {
		return nil, domain.NewValidationError("phoneNumber", "is not a valid phone number")
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, "verify_start:"+normalized, startLimit, startWindow)
		if err != nil {
			s.logger.Warn().Err(err).Msg("verification rate limiter unavailable")
		} else if !allowed {
			return nil, domain.ErrRateLimited
		}
	}

	if _, err := s.users.EnsureUser(ctx, actor); err != nil {
		return nil, err
	}

	res, err := s.verifier.StartVerification(ctx, normalized, "")
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec := &models.VerificationRecord{
		ID:              uuid.NewString(),
		UserID:          actor.UserID,
		PhoneNumber:     normalized,
		VerificationSID: res.SID,
		Status:          models.VerificationPending,
		ProviderStatus:  res.Status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if mapped, ok := mapProviderStatus(res.Status); ok {
		rec.Status = mapped
	}
	if err := s.repo.CreateVerification(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info().Str("verification_id", rec.ID).Str("user_id", rec.UserID).Msg("Verification started")
	return rec, nil
}

// CheckPhoneVerification submits code to the provider and reconciles the answer
// the same way a provider notification would be.
func (s *VerificationService) CheckPhoneVerification(ctx context.Context, actor domain.Actor, phone, code string) (*models.VerificationRecord, error) {
	if !actor.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	verr := &domain.ValidationError{}
	normalized, err := verify.NormalizeE164(phone, s.region)
	if err != nil {
		verr.Add("phoneNumber", "is not a valid phone number")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		verr.Add("code", "is required")
	}
	if !verr.Empty() {
		return nil, verr
	}

	res, err := s.verifier.CheckVerification(ctx, normalized, code)
	if err != nil {
		return nil, err
	}

	rec, _, err := s.reconcile(ctx, actor.UserID, normalized, res.SID, res.Status)
	return rec, err
}

func (s *VerificationService) publishVerified(rec *models.VerificationRecord) {
	if s.eventBus == nil {
		return
	}
	payload := events.PhoneVerifiedPayload{
		UserID:          rec.UserID,
		PhoneNumber:     rec.PhoneNumber,
		VerificationSID: rec.VerificationSID,
		OccurredAt:      s.now().UTC(),
	}
	if err := s.eventBus.PublishJSON(events.EventPhoneVerified, payload); err != nil {
		s.logger.Error().Err(err).Str("verification_id", rec.ID).Msg("publish event error")
	}
}
