package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// PaymentLinkExpirer expires AWAITING booking requests whose payment link has lapsed.
type PaymentLinkExpirer interface {
	ExpireStalePaymentLinks(ctx context.Context, now time.Time) (int, error)
}

// ExpirySweeper runs the expirer on a fixed interval.
type ExpirySweeper struct {
	expirer  PaymentLinkExpirer
	interval time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

func NewExpirySweeper(expirer PaymentLinkExpirer, interval time.Duration, logger *zerolog.Logger) *ExpirySweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "expiry_sweeper").Logger()
	}
	return &ExpirySweeper{expirer: expirer, interval: interval, now: time.Now, logger: l}
}

// Start sweeps once immediately and then every interval until ctx is done.
func (s *ExpirySweeper) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("Expiry sweeper started")
	defer s.logger.Info().Msg("Expiry sweeper stopped")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass and returns how many requests were expired.
func (s *ExpirySweeper) Sweep(ctx context.Context) int {
	n, err := s.expirer.ExpireStalePaymentLinks(ctx, s.now())
	if err != nil {
		s.logger.Error().Err(err).Msg("expiry sweep failed")
		return n
	}
	if n > 0 {
		s.logger.Info().Int("expired", n).Msg("Expired stale payment links")
	}
	return n
}
