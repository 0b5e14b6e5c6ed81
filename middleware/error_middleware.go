package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"rsvp-server/utils/errors"
)

// ErrorMiddleware recovers from panics and sends a standardized JSON response
func ErrorMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", "panic", rec, "path", r.URL.Path,
						"request_id", RequestIDFromContext(r.Context()))
					WriteError(w, errors.ErrInternal)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// WriteError writes err as a JSON APIError. Partial updates carry the
// failed step in the details.
func WriteError(w http.ResponseWriter, err error) {
	apiErr := errors.ToAPIError(err)
	if apiErr.Status >= 500 {
		slog.Error("server error", "error", err, "details", apiErr.Details)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	json.NewEncoder(w).Encode(apiErr)
}
