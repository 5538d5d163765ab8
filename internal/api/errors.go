package api

import (
	"errors"
	"net/http"

	"charterly/internal/domain"

	"github.com/rs/zerolog"
)

// statusFor maps a service error to its HTTP status code.
func statusFor(err error) int {
	var verr *domain.ValidationError
	var upstream *domain.UpstreamError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError renders err as a failure body. Internal errors are logged
// and reported without detail.
func writeServiceError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	code := statusFor(err)
	resp := response{Error: err.Error()}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}

	switch code {
	case http.StatusInternalServerError:
		logger.Error().Err(err).Msg("request failed")
		resp.Error = "internal error"
	case http.StatusBadGateway:
		logger.Warn().Err(err).Msg("upstream provider failed")
		resp.Error = "upstream provider unavailable"
	}
	writeJSON(w, code, resp)
}
