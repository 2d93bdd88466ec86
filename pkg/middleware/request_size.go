package middleware

import (
	"net/http"

	httputil "bookingsync/pkg/http"
)

// MaxRequestSize rejects bodies declared larger than maxBytes and caps the
// reader for bodies of unknown length.
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, httputil.ErrorResponse{
					Error: "Request body too large",
				})
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
