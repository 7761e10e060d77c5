package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"whatsflow/internal/httputil"
	"whatsflow/internal/metrics"
	"whatsflow/internal/service"
	"whatsflow/internal/tracing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

const requestIDHeader = "X-Request-ID"

// Observability continues an incoming trace (W3C traceparent), assigns a
// request id, and records a span, HTTP metrics and one log line per request.
func Observability(logger *logrus.Logger, trustProxy bool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routeTemplate(r)
			clientIP := httputil.ClientIP(r, trustProxy)

			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = tracing.NewRequestID()
			}
			w.Header().Set(requestIDHeader, requestID)

			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracing.StartSpan(ctx, r.Method+" "+route,
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("client.address", clientIP),
			)
			defer span.End()
			ctx = tracing.WithStartTime(tracing.WithRequestID(ctx, requestID), time.Now())

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			elapsed := tracing.Duration(ctx)
			tracing.AddSpanAttributes(ctx,
				attribute.Int("http.response.status_code", rec.status),
				attribute.Int64("http.response.body.size", rec.bytes),
			)
			if rec.status >= http.StatusInternalServerError {
				tracing.SetSpanStatus(ctx, codes.Error, http.StatusText(rec.status))
			}

			metrics.IncrementCounter(metrics.HTTPRequestsTotal,
				map[string]string{"method": r.Method, "route": route, "status_code": strconv.Itoa(rec.status)},
				"HTTP requests by route and status")
			metrics.RecordTimer(metrics.HTTPRequestDuration, elapsed, map[string]string{"route": route}, "HTTP request duration")

			logger.WithFields(logrus.Fields{
				service.LogFieldRequestID:  requestID,
				service.LogFieldTraceID:    tracing.TraceID(ctx),
				service.LogFieldMethod:     r.Method,
				service.LogFieldRoute:      route,
				service.LogFieldStatusCode: rec.status,
				service.LogFieldDuration:   elapsed.Milliseconds(),
				service.LogFieldRemoteIP:   clientIP,
				service.LogFieldSize:       rec.bytes,
			}).Log(levelFor(rec.status), "HTTP request completed")
		})
	}
}

func levelFor(status int) logrus.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return logrus.ErrorLevel
	case status >= http.StatusBadRequest:
		return logrus.WarnLevel
	}
	return logrus.InfoLevel
}

// routeTemplate keeps metric labels bounded to registered routes.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// statusRecorder remembers the first status written and counts body bytes.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	bytes   int64
	written bool
}

func (s *statusRecorder) WriteHeader(status int) {
	if !s.written {
		s.status, s.written = status, true
	}
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	s.written = true
	n, err := s.ResponseWriter.Write(p)
	s.bytes += int64(n)
	return n, err
}

// Hijack lets the inbox websocket upgrade through the recorder.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status, s.written = http.StatusSwitchingProtocols, true
	return hj.Hijack()
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
