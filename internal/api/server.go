// Package api exposes the extraction engine over HTTP for the external
// scheduler: POST /v1/extract plus health and metrics endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pricewatch/extractor/internal/engine"
	"github.com/pricewatch/extractor/internal/fetch"
	"github.com/pricewatch/extractor/internal/urlsafety"
)

// Extractor is the engine surface the server depends on.
type Extractor interface {
	Extract(ctx context.Context, req engine.Request) (engine.Result, error)
}

// Server wires HTTP handlers to the extraction engine.
type Server struct {
	router    chi.Router
	extractor Extractor
	timeout   time.Duration
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes. requestTimeout
// bounds a whole extract call including the JS-render path.
func NewServer(extractor Extractor, requestTimeout time.Duration, logger *zap.Logger) *Server {
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		extractor: extractor,
		timeout:   requestTimeout,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Post("/extract", s.extract)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type extractRequest struct {
	URL      string `json:"url"`
	Selector string `json:"selector,omitempty"`
}

type extractResponse struct {
	URL      string   `json:"url"`
	Price    *float64 `json:"price"`
	Currency string   `json:"currency,omitempty"`
	Title    string   `json:"title,omitempty"`
	Strategy string   `json:"strategy"`
	UsedJS   bool     `json:"used_js"`
}

func (s *Server) extract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "url required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	result, err := s.extractor.Extract(ctx, engine.Request{URL: req.URL, Selector: req.Selector})
	if err != nil {
		status, msg := classifyExtractError(err)
		s.writeError(w, status, msg)
		return
	}

	resp := extractResponse{
		URL:      req.URL,
		Title:    result.Title,
		Strategy: result.Strategy,
		UsedJS:   result.UsedJS,
	}
	if result.Price != nil {
		amount := result.Price.Amount
		resp.Price = &amount
		resp.Currency = result.Price.Currency
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// classifyExtractError maps engine errors onto HTTP statuses so the scheduler
// can tell "do not retry" (4xx) apart from "retry later" (5xx).
func classifyExtractError(err error) (int, string) {
	var unsafeErr *urlsafety.UnsafeURLError
	switch {
	case errors.As(err, &unsafeErr):
		return http.StatusBadRequest, unsafeErr.Error()
	case errors.Is(err, engine.ErrPolicyDenied):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, engine.ErrPolicyUnavailable):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, "extraction timed out"
	}
	if fe, ok := fetch.AsError(err); ok {
		if fe.Kind == fetch.KindTimeout {
			return http.StatusGatewayTimeout, fe.Error()
		}
		return http.StatusBadGateway, fe.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

type requestIDKey struct{}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("request_id", requestID(r.Context())),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
