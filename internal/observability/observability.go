package observability

import (
	"context"
	"net/http"
	"time"

	"fittrack/internal/config"
	"fittrack/internal/httputils"
	"fittrack/internal/observability/logging"
	"fittrack/internal/observability/metrics"

	"github.com/gorilla/mux"
)

// Provider provides observability capabilities
type Provider struct {
	Logger  *logging.Logger
	Metrics *metrics.Collector
}

// NewProvider creates a new observability provider
func NewProvider(cfg *config.Config) (*Provider, error) {
	logger, err := logging.NewLogger(cfg.Observability.LogLevel)
	if err != nil {
		return nil, err
	}

	return &Provider{
		Logger:  logger,
		Metrics: metrics.NewCollector(),
	}, nil
}

// Middleware traces, logs and measures every request
func (p *Provider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ctx := r.Context()
		traceID := r.Header.Get("X-Trace-ID")
		if !validTraceID(traceID) {
			traceID = logging.NewTraceID()
		}
		ctx = logging.ContextWithTraceID(ctx, traceID)

		logger := p.Logger.WithTracing(traceID, logging.NewSpanID())
		ctx = logging.ContextWithLogger(ctx, logger)

		route := new(string)
		ctx = context.WithValue(ctx, routeKey{}, route)

		wrapper := httputils.NewResponseWriter(w)
		wrapper.Header().Set("X-Trace-ID", traceID)

		logger.Debug("Request started",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)

		r = r.WithContext(ctx)
		next.ServeHTTP(wrapper, r)

		duration := time.Since(startTime)
		p.Metrics.RecordRequest(r.Method, routeLabel(*route), wrapper.StatusCode, duration)

		logger.Info("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapper.StatusCode,
			"duration_ms", duration.Milliseconds(),
			"bytes_written", wrapper.BytesWritten,
		)
	})
}

// MetricsHandler returns an HTTP handler for exposing metrics
func (p *Provider) MetricsHandler() http.Handler {
	return metrics.Handler()
}

type routeKey struct{}

// RecordRoute is a mux middleware that reports the matched route template
// back to Middleware so raw ids never become metric labels
func RecordRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if holder, ok := r.Context().Value(routeKey{}).(*string); ok {
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					*holder = tpl
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// maxTraceIDLength fits a UUID or a W3C trace id with room to spare
const maxTraceIDLength = 64

// validTraceID reports whether a client supplied trace id may be echoed into
// logs and response headers
func validTraceID(id string) bool {
	if id == "" || len(id) > maxTraceIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

func routeLabel(route string) string {
	if route == "" {
		return "unmatched"
	}
	return route
}
