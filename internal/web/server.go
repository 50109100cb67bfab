// Package web serves the scheduling API over HTTP.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/example/post-scheduler/internal/auth"
	"github.com/example/post-scheduler/internal/calendar"
	"github.com/example/post-scheduler/internal/internaltypes"
	"github.com/example/post-scheduler/internal/scheduler"
	"github.com/example/post-scheduler/internal/telemetry"
)

const maxBodyBytes = 4 << 10

type Server struct {
	Scheduler *scheduler.Scheduler
	Logger    zerolog.Logger
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// TokenHash is the bcrypt hash of the API bearer token.
	TokenHash string
	// Now defaults to time.Now.
	Now func() time.Time

	validate *validator.Validate
}

type scheduleRequest struct {
	Priority string     `json:"priority" validate:"required_without=Date,excluded_with=Date"`
	Date     string     `json:"date" validate:"required_without=Priority"`
	Now      *time.Time `json:"now"`
}

type scheduleResponse struct {
	Seconds  int64     `json:"seconds"`
	Slot     time.Time `json:"slot"`
	Tier     string    `json:"tier,omitempty"`
	Explicit bool      `json:"explicit"`
}

type nextResponse struct {
	Tier    string    `json:"tier"`
	Slot    time.Time `json:"slot"`
	Seconds int64     `json:"seconds"`
}

func (s *Server) Routes() http.Handler {
	s.validate = validator.New()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	if s.Gatherer != nil {
		r.Handle("/metrics", telemetry.Handler(s.Gatherer))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.RequireToken(s.TokenHash, func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusUnauthorized, "unauthorized", internaltypes.ErrUnauthorized.Error())
		}))
		r.Post("/schedule", s.handleSchedule)
		r.Get("/slots", s.handleSlots)
		r.Get("/slots/{tier}/next", s.handleNext)
	})

	return r
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var body scheduleRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		s.writeErr(w, fmt.Errorf("%w: body: %v", internaltypes.ErrInvalidInput, err))
		return
	}
	if err := s.validate.Struct(body); err != nil {
		s.writeErr(w, fmt.Errorf("%w: %v", internaltypes.ErrInvalidInput, err))
		return
	}

	req, err := scheduler.ParseRequest(body.Priority, body.Date)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	now := s.now()
	if body.Now != nil {
		// A future override would move the tier's anchor past the real clock.
		if body.Now.After(now) {
			s.writeErr(w, fmt.Errorf("%w: now %s is after the server clock", internaltypes.ErrInvalidInput, body.Now.UTC().Format(time.RFC3339)))
			return
		}
		now = body.Now.UTC()
	}

	d, err := s.Scheduler.Schedule(r.Context(), req, now)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scheduleResponse{
		Seconds:  d.Seconds,
		Slot:     d.Slot,
		Tier:     string(d.Tier),
		Explicit: d.Explicit,
	})
}

func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	taken, err := s.Scheduler.Taken(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taken)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	tier, err := calendar.ParseTier(chi.URLParam(r, "tier"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	now := s.now()
	if q := r.URL.Query().Get("now"); q != "" {
		t, err := time.Parse(time.RFC3339, q)
		if err != nil {
			s.writeErr(w, fmt.Errorf("%w: now %q: %v", internaltypes.ErrInvalidInput, q, err))
			return
		}
		now = t.UTC()
	}

	slot, err := s.Scheduler.Preview(r.Context(), tier, now)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nextResponse{
		Tier:    string(tier),
		Slot:    slot,
		Seconds: scheduler.SecondsBetween(slot, now),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, internaltypes.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, internaltypes.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, internaltypes.ErrLockBusy):
		return http.StatusConflict
	case errors.Is(err, internaltypes.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.Logger.Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeError(w, status, scheduler.Reason(err), err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}

// Start serves h on addr until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, addr string, h http.Handler, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info().Str("addr", addr).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
