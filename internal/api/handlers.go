package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"charterly/internal/domain"
	"charterly/internal/export"
	"charterly/internal/models"
	"charterly/internal/service"
	"charterly/internal/verify"
)

const maxBodyBytes = 1 << 20

func decodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return domain.NewValidationError("body", "invalid JSON body")
	}
	return nil
}

func (s *HTTPServer) handleVerificationWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	vcfg := s.cfg.Verification
	if vcfg.ValidateWebhook {
		fullURL := strings.TrimRight(s.cfg.HTTP.PublicURL, "/") + r.URL.RequestURI()
		if !verify.ValidSignature(vcfg.AuthToken, fullURL, r.PostForm, r.Header.Get(verify.SignatureHeader)) {
			s.logger.Warn().Str("url", fullURL).Msg("rejected webhook with bad signature")
			writeError(w, http.StatusForbidden, "invalid signature")
			return
		}
	}

	cb := service.VerificationCallback{
		VerificationSID: r.PostForm.Get("VerificationSid"),
		To:              r.PostForm.Get("To"),
		Status:          r.PostForm.Get("Status"),
	}
	if _, err := s.deps.Verifications.HandleVerificationCallback(r.Context(), cb); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true})
}

type phoneRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Code        string `json:"code,omitempty"`
}

func (s *HTTPServer) handleStartVerification(w http.ResponseWriter, r *http.Request) {
	var body phoneRequest
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	rec, err := s.deps.Verifications.StartPhoneVerification(r.Context(), domain.ActorFrom(r.Context()), body.PhoneNumber)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	writeData(w, http.StatusCreated, rec)
}

func (s *HTTPServer) handleCheckVerification(w http.ResponseWriter, r *http.Request) {
	var body phoneRequest
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	rec, err := s.deps.Verifications.CheckPhoneVerification(r.Context(), domain.ActorFrom(r.Context()), body.PhoneNumber, body.Code)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, rec)
}

func (s *HTTPServer) handleCreateBookingRequest(w http.ResponseWriter, r *http.Request) {
	var in service.CreateBookingRequestInput
	if err := decodeJSON(r, &in); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	req, err := s.deps.Bookings.CreateBookingRequest(r.Context(), domain.ActorFrom(r.Context()), in)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	writeData(w, http.StatusCreated, req)
}

func (s *HTTPServer) handleGetBookingRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.deps.Bookings.GetBookingRequest(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, req)
}

type statusUpdateRequest struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ReviewNotes *string `json:"reviewNotes"`
}

// handleUpdateBookingRequestStatus serves both the path and the body-id form.
// A path id wins over the body.
func (s *HTTPServer) handleUpdateBookingRequestStatus(w http.ResponseWriter, r *http.Request) {
	var body statusUpdateRequest
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	id := r.PathValue("id")
	if id == "" {
		id = body.ID
	}

	req, err := s.deps.Bookings.UpdateBookingRequestStatus(r.Context(), domain.ActorFrom(r.Context()),
		id, models.BookingStatus(body.Status), body.ReviewNotes)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, req)
}

func (s *HTTPServer) handleUpdatePaymentInfo(w http.ResponseWriter, r *http.Request) {
	var info models.PaymentInfo
	if err := decodeJSON(r, &info); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	req, err := s.deps.Bookings.UpdateBookingRequestPaymentInfo(r.Context(), domain.ActorFrom(r.Context()), r.PathValue("id"), info)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, req)
}

func (s *HTTPServer) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.deps.Users.GetProfile(r.Context(), domain.ActorFrom(r.Context()))
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, user)
}

func (s *HTTPServer) handleMyBookingRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := s.deps.Bookings.GetUserBookingRequests(r.Context(), domain.ActorFrom(r.Context()), "")
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(reqs))
}

func (s *HTTPServer) handleBoatBookingRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := s.deps.Bookings.GetBoatBookingRequests(r.Context(), domain.ActorFrom(r.Context()), r.PathValue("boatId"))
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(reqs))
}

// handleExport streams requests created between from and to (both dates
// inclusive) as an XLSX workbook.
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	actor := domain.ActorFrom(r.Context())
	if !actor.IsAdmin() {
		writeServiceError(w, s.logger, domain.ErrUnauthorized)
		return
	}

	verr := &domain.ValidationError{}
	from, err := time.Parse(models.DateLayout, r.URL.Query().Get("from"))
	if err != nil {
		verr.Add("from", "must be a date in YYYY-MM-DD format")
	}
	to, err := time.Parse(models.DateLayout, r.URL.Query().Get("to"))
	if err != nil {
		verr.Add("to", "must be a date in YYYY-MM-DD format")
	}
	if !verr.Empty() {
		writeServiceError(w, s.logger, verr)
		return
	}

	reqs, err := s.deps.Bookings.ListBookingRequests(r.Context(), actor, from, to.AddDate(0, 0, 1))
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteBookingRequests(&buf, reqs, from, to); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(from, to)+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn().Err(err).Msg("export write failed")
	}
}

func nonNil(reqs []*models.BookingRequest) []*models.BookingRequest {
	if reqs == nil {
		return []*models.BookingRequest{}
	}
	return reqs
}
