package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"carshare/internal/config"
	"carshare/internal/domain"
	"carshare/internal/metrics"
	"carshare/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-ID"

// BookingExporter renders an owner's bookings as a spreadsheet.
type BookingExporter interface {
	ExportOwnerBookings(ctx context.Context, caller models.Caller) ([]byte, error)
	FileName(ownerID string) string
}

// Dependencies are the services behind the HTTP API.
type Dependencies struct {
	Bookings      domain.BookingService
	Reviews       domain.ReviewService
	Exporter      BookingExporter
	ActionLimiter domain.RateLimiter
	// Ready reports whether backing stores are reachable; nil means always ready.
	Ready func(ctx context.Context) error
}

// HTTPServer exposes the booking API over JSON.
type HTTPServer struct {
	cfg      config.APIConfig
	deps     Dependencies
	identity *Identity
	clients  *clientLimiter
	actions  *actionLimiter
	server   *http.Server
	log      zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, deps Dependencies, logger *zerolog.Logger) *HTTPServer {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "http").Logger()
	}

	srv := &HTTPServer{
		cfg:      cfg,
		deps:     deps,
		identity: NewIdentity(cfg.Auth),
		clients:  newClientLimiter(cfg.RateLimit),
		log:      base,
	}
	srv.actions = newActionLimiter(deps.ActionLimiter, cfg.RateLimit, &srv.log)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealthz)
	mux.HandleFunc("GET /readyz", srv.handleReadyz)

	mux.Handle("POST /api/v1/bookings", srv.authed(srv.throttled(srv.handleCreateBooking)))
	mux.Handle("GET /api/v1/bookings", srv.authed(srv.handleListBookings))
	mux.Handle("GET /api/v1/bookings/{id}", srv.authed(srv.handleGetBooking))
	mux.Handle("POST /api/v1/bookings/{id}/confirm", srv.authed(srv.throttled(srv.handleConfirmBooking)))
	mux.Handle("POST /api/v1/bookings/{id}/reject", srv.authed(srv.throttled(srv.handleRejectBooking)))
	mux.Handle("POST /api/v1/bookings/{id}/cancel", srv.authed(srv.throttled(srv.handleCancelBooking)))
	mux.Handle("GET /api/v1/bookings/{id}/review-eligibility", srv.authed(srv.handleReviewEligibility))
	mux.Handle("POST /api/v1/bookings/{id}/review", srv.authed(srv.throttled(srv.handleSubmitReview)))
	mux.HandleFunc("GET /api/v1/cars/{id}/availability", srv.handleCarAvailability)
	mux.HandleFunc("GET /api/v1/cars/{id}/reviews", srv.handleCarReviews)
	mux.Handle("GET /api/v1/owner/bookings/export", srv.authed(srv.handleExportOwnerBookings))

	handler := srv.loggingMiddleware(srv.clientRateLimit(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler returns the fully wrapped router.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
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

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"}, "")
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			s.log.Warn().Err(err).Msg("readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, envelope{Success: false, Error: "not ready"})
			return
		}
	}
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ready"}, "")
}

// authed resolves the bearer token into a caller before calling next.
func (s *HTTPServer) authed(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := s.identity.FromRequest(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next(w, r.WithContext(withCaller(r.Context(), caller)))
	})
}

// throttled applies the per-user action limit. Must run inside authed.
func (s *HTTPServer) throttled(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := CallerFromContext(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if !s.actions.Allow(r.Context(), caller.UserID) {
			metrics.IncRateLimited("action")
			writeJSON(w, http.StatusTooManyRequests, envelope{Success: false, Error: "too many booking actions, try again later"})
			return
		}
		next(w, r)
	}
}

func (s *HTTPServer) clientRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.clients.Allow(remoteHost(r)) {
			metrics.IncRateLimited("client")
			writeJSON(w, http.StatusTooManyRequests, envelope{Success: false, Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		reqLog := s.log.With().Str("request_id", requestID).Logger()
		r = r.WithContext(reqLog.WithContext(r.Context()))

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.IncHTTP(endpoint, strconv.Itoa(recorder.status))

		reqLog.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", remoteHost(r)).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any, message string) {
	writeJSON(w, statusCode, envelope{Success: true, Data: data, Message: message})
}

// writeError maps err onto a status code. Unclassified errors are logged and hidden.
func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, code, envelope{Success: false, Error: "internal server error"})
		return
	}
	writeJSON(w, code, envelope{Success: false, Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
