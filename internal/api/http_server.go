package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"charterly/internal/config"
	"charterly/internal/domain"
	"charterly/internal/metrics"
	"charterly/internal/models"
	"charterly/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type BookingService interface {
	CreateBookingRequest(ctx context.Context, actor domain.Actor, in service.CreateBookingRequestInput) (*models.BookingRequest, error)
	GetBookingRequest(ctx context.Context, id string) (*models.BookingRequest, error)
	GetUserBookingRequests(ctx context.Context, actor domain.Actor, userID string) ([]*models.BookingRequest, error)
	GetBoatBookingRequests(ctx context.Context, actor domain.Actor, boatID string) ([]*models.BookingRequest, error)
	UpdateBookingRequestStatus(ctx context.Context, actor domain.Actor, id string, status models.BookingStatus, reviewNotes *string) (*models.BookingRequest, error)
	UpdateBookingRequestPaymentInfo(ctx context.Context, actor domain.Actor, id string, info models.PaymentInfo) (*models.BookingRequest, error)
	ListBookingRequests(ctx context.Context, actor domain.Actor, from, to time.Time) ([]*models.BookingRequest, error)
}

type VerificationService interface {
	HandleVerificationCallback(ctx context.Context, cb service.VerificationCallback) (*models.VerificationRecord, error)
	StartPhoneVerification(ctx context.Context, actor domain.Actor, phone string) (*models.VerificationRecord, error)
	CheckPhoneVerification(ctx context.Context, actor domain.Actor, phone, code string) (*models.VerificationRecord, error)
}

type UserService interface {
	GetProfile(ctx context.Context, actor domain.Actor) (*models.User, error)
}

// SessionParser turns a bearer token into the caller identity.
type SessionParser interface {
	Parse(raw string) (domain.Actor, error)
}

type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// Dependencies are the services the HTTP layer dispatches to.
type Dependencies struct {
	Bookings      BookingService
	Verifications VerificationService
	Users         UserService
	Sessions      SessionParser
	Readiness     ReadinessChecker
}

// HTTPServer exposes the booking and verification API.
type HTTPServer struct {
	cfg     config.Config
	deps    Dependencies
	server  *http.Server
	auth    *HTTPAuth
	handler http.Handler
	logger  zerolog.Logger
}

func NewHTTPServer(cfg config.Config, deps Dependencies, logger *zerolog.Logger) *HTTPServer {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "http").Logger()
	}

	srv := &HTTPServer{cfg: cfg, deps: deps, logger: l}
	srv.auth = NewHTTPAuth(deps.Sessions, cfg.RateLimit)

	mux := http.NewServeMux()
	srv.route(mux, "GET /healthz", srv.handleHealth)
	srv.route(mux, "GET /readyz", srv.handleReady)

	mux.Handle("POST /api/v1/webhooks/verification", srv.auth.WrapUnlimited(http.HandlerFunc(srv.handleVerificationWebhook)))
	srv.route(mux, "POST /api/v1/verifications", srv.handleStartVerification)
	srv.route(mux, "POST /api/v1/verifications/check", srv.handleCheckVerification)

	srv.route(mux, "POST /api/v1/booking-requests", srv.handleCreateBookingRequest)
	srv.route(mux, "PATCH /api/v1/booking-requests", srv.handleUpdateBookingRequestStatus)
	srv.route(mux, "GET /api/v1/booking-requests/{id}", srv.handleGetBookingRequest)
	srv.route(mux, "PATCH /api/v1/booking-requests/{id}", srv.handleUpdateBookingRequestStatus)
	srv.route(mux, "PUT /api/v1/booking-requests/{id}/payment", srv.handleUpdatePaymentInfo)
	srv.route(mux, "GET /api/v1/me", srv.handleProfile)
	srv.route(mux, "GET /api/v1/me/booking-requests", srv.handleMyBookingRequests)
	srv.route(mux, "GET /api/v1/boats/{boatId}/booking-requests", srv.handleBoatBookingRequests)
	srv.route(mux, "GET /api/v1/admin/booking-requests/export", srv.handleExport)

	srv.handler = srv.loggingMiddleware(mux)
	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	return srv
}

// route registers h behind session auth and rate limiting.
func (s *HTTPServer) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, s.auth.Wrap(h))
}

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler { return s.handler }

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Readiness != nil {
		if err := s.deps.Readiness.Ready(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

const requestIDHeader = "X-Request-ID"

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTP(route, recorder.status, dur)

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	})
}

type response struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, response{Error: message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
