package middleware

import (
	"net/http"
	"strings"

	"whatsflow/internal/service"
	"whatsflow/internal/tracing"

	"github.com/sirupsen/logrus"
)

var sensitiveHeaders = map[string]bool{
	"authorization":        true,
	"cookie":               true,
	"x-hub-signature-256":  true,
	"x-hub-signature":      true,
	"x-api-key":            true,
	"sec-websocket-key":    true,
	"sec-websocket-accept": true,
	"proxy-authorization":  true,
}

// DebugHeaders logs request headers with secrets masked. It does nothing
// unless the logger is at debug level.
func DebugHeaders(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logger.IsLevelEnabled(logrus.DebugLevel) {
				logger.WithFields(logrus.Fields{
					service.LogFieldRequestID: tracing.RequestID(r.Context()),
					service.LogFieldMethod:    r.Method,
					service.LogFieldURL:       r.URL.Path,
					"request_headers":         maskHeaders(r.Header),
					"content_length":          r.ContentLength,
				}).Debug("Request headers")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func maskHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if sensitiveHeaders[strings.ToLower(name)] {
			out[name] = "***MASKED***"
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}
