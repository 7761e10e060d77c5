package versioning

import (
	"net/http"

	"whatsflow/internal/httputil"

	"github.com/sirupsen/logrus"
)

const (
	// AcceptVersionHeader lets a client pin the API version it was written against.
	AcceptVersionHeader = "Accept-Version"
	// APIVersionHeader carries the served API version on every response.
	APIVersionHeader = "X-API-Version"
)

// Middleware stamps responses with the API version and rejects clients that
// ask for a version this build cannot serve. Requests without the header pass.
func Middleware(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(APIVersionHeader, CurrentAPIVersion.String())

			if raw := r.Header.Get(AcceptVersionHeader); raw != "" {
				requested, err := ParseVersion(raw)
				if err != nil {
					httputil.WriteError(w, http.StatusBadRequest, err.Error())
					return
				}
				if !CurrentAPIVersion.Serves(requested) {
					logger.WithFields(logrus.Fields{
						"requested_version": requested.String(),
						"current_version":   CurrentAPIVersion.String(),
						"path":              r.URL.Path,
					}).Warn("Rejected request for unsupported API version")
					httputil.WriteError(w, http.StatusBadRequest, "unsupported API version "+requested.String())
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
