// Package verify talks to the Twilio Verify phone verification service.
package verify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"charterly/internal/config"
	"charterly/internal/domain"

	"github.com/rs/zerolog"
	twilio "github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	verifyv2 "github.com/twilio/twilio-go/rest/verify/v2"
)

const providerName = "verify"

type Client struct {
	config config.VerificationConfig
	rest   *twilio.RestClient
	logger zerolog.Logger
}

// NewClient builds a Verify client. httpClient may be nil; tests pass one
// whose transport points at a local server.
func NewClient(cfg config.VerificationConfig, httpClient *http.Client, logger *zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "verify_client").Logger()
	}

	base := &twclient.Client{
		Credentials: twclient.NewCredentials(cfg.AccountSID, cfg.AuthToken),
		HTTPClient:  httpClient,
	}
	base.SetAccountSid(cfg.AccountSID)

	return &Client{
		config: cfg,
		rest:   twilio.NewRestClientWithParams(twilio.ClientParams{Client: base}),
		logger: l,
	}
}

// StartVerification asks the provider to send a code to phone over channel.
func (c *Client) StartVerification(ctx context.Context, phone, channel string) (*domain.VerificationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, upstream(err)
	}
	if channel == "" {
		channel = c.config.Channel
	}

	params := &verifyv2.CreateVerificationParams{}
	params.SetTo(phone)
	params.SetChannel(channel)

	c.logger.Debug().Str("channel", channel).Msg("Starting provider verification")
	resp, err := c.rest.VerifyV2.CreateVerification(c.config.ServiceSID, params)
	if err != nil {
		return nil, upstream(describe(err))
	}
	return toResult(resp.Sid, resp.To, resp.Status)
}

// CheckVerification submits the code the user received.
func (c *Client) CheckVerification(ctx context.Context, phone, code string) (*domain.VerificationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, upstream(err)
	}

	params := &verifyv2.CreateVerificationCheckParams{}
	params.SetTo(phone)
	params.SetCode(code)

	c.logger.Debug().Msg("Checking provider verification")
	resp, err := c.rest.VerifyV2.CreateVerificationCheck(c.config.ServiceSID, params)
	if err != nil {
		return nil, upstream(describe(err))
	}
	return toResult(resp.Sid, resp.To, resp.Status)
}

func toResult(sid, to, status *string) (*domain.VerificationResult, error) {
	if sid == nil || *sid == "" {
		return nil, upstream(errors.New("response without sid"))
	}
	return &domain.VerificationResult{SID: *sid, To: deref(to), Status: deref(status)}, nil
}

// describe keeps the provider's error code and message in the wrapped error.
func describe(err error) error {
	var rest *twclient.TwilioRestError
	if errors.As(err, &rest) {
		return fmt.Errorf("unexpected status code: %d, code %d: %s", rest.Status, rest.Code, rest.Message)
	}
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func upstream(err error) error {
	return &domain.UpstreamError{Provider: providerName, Err: err}
}
