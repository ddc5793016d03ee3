package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"carshare/internal/domain"
	"carshare/internal/models"
)

type createBookingRequest struct {
	CarID     string `json:"car_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type rejectBookingRequest struct {
	RejectionReason string `json:"rejection_reason"`
}

type submitReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	caller, err := CallerFromContext(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body createBookingRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(body.CarID) == "" {
		s.writeError(w, r, fmt.Errorf("%w: car_id is required", domain.ErrValidation))
		return
	}
	start, err := parseDateField("start_date", body.StartDate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	end, err := parseDateField("end_date", body.EndDate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	booking, err := s.deps.Bookings.CreateBooking(r.Context(), caller, models.CreateBookingRequest{
		CarID:     strings.TrimSpace(body.CarID),
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, booking, "booking created")
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	caller, err := CallerFromContext(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var status models.BookingStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		parsed, err := models.ParseBookingStatus(raw)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: %w", domain.ErrValidation, err))
			return
		}
		status = parsed
	}

	bookings, err := s.deps.Bookings.ListBookings(r.Context(), caller, status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if bookings == nil {
		bookings = []*models.BookingDetails{}
	}
	writeSuccess(w, http.StatusOK, bookings, "")
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	caller, err := CallerFromContext(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	booking, err := s.deps.Bookings.GetBooking(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, booking, "")
}

func (s *HTTPServer) handleConfirmBooking(w http.ResponseWriter, r *http.Request) {
	caller, err := CallerFromContext(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	booking, err := s.deps.Bookings.ConfirmBooking(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, booking, "booking confirmed")
}

func (s *HTTPServer) handleRejectBooking(w http.ResponseWriter, r *http.Request) {
	caller, err := CallerFromContext(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body rejectBookingRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	booking, err := s.deps.Bookings.RejectBooking(r.Context(), caller, r.PathValue("id"), body.RejectionReason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, booking, "booking rejected")
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	caller, err := CallerFromContext(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	booking, err := s.deps.Bookings.CancelBooking(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, booking, "booking cancelled")
}

func (s *HTTPServer) handleReviewEligibility(w http.ResponseWriter, r *http.Request) {
	caller, err := CallerFromContext(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	eligibility, err := s.deps.Reviews.ReviewEligibility(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, eligibility, "")
}

func (s *HTTPServer) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	caller, err := CallerFromContext(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body submitReviewRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	review, err := s.deps.Reviews.SubmitReview(r.Context(), caller, models.SubmitReviewRequest{
		BookingID: r.PathValue("id"),
		Rating:    body.Rating,
		Comment:   body.Comment,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, review, "review submitted")
}

func (s *HTTPServer) handleCarAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := parseDateField("start_date", q.Get("start_date"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	end, err := parseDateField("end_date", q.Get("end_date"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	availability, err := s.deps.Bookings.CheckCarAvailability(r.Context(), r.PathValue("id"), start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, availability, "")
}

func (s *HTTPServer) handleCarReviews(w http.ResponseWriter, r *http.Request) {
	rating, err := s.deps.Reviews.ListCarReviews(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, rating, "")
}

func (s *HTTPServer) handleExportOwnerBookings(w http.ResponseWriter, r *http.Request) {
	caller, err := CallerFromContext(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.deps.Exporter == nil {
		writeJSON(w, http.StatusNotImplemented, envelope{Success: false, Error: "export is not configured"})
		return
	}

	data, err := s.deps.Exporter.ExportOwnerBookings(r.Context(), caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.deps.Exporter.FileName(caller.UserID)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body", domain.ErrValidation)
	}
	return nil
}

func parseDateField(name, raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", domain.ErrValidation, name)
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %w", domain.ErrValidation, name, err)
	}
	return d, nil
}
